package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProvider is an in-memory Provider used across the package tests.
type fakeProvider struct {
	id           string
	name         string
	countries    []Country
	countriesErr error
	services     map[string][]Service
	servicesErr  error
	createFn     func(countryCode, serviceID string) (*ProviderOrder, error)
	checkFn      func(providerOrderID string) (*OrderCheck, error)
	cancelErr    error

	mu          sync.Mutex
	createCalls []string
	checkCalls  int
	cancelCalls int
}

func (f *fakeProvider) ID() string {
	if f.id == "" {
		return "fake"
	}
	return f.id
}

func (f *fakeProvider) DisplayName() string {
	if f.name == "" {
		return "Fake Provider"
	}
	return f.name
}

func (f *fakeProvider) Countries(ctx context.Context) ([]Country, error) {
	if f.countriesErr != nil {
		return nil, f.countriesErr
	}
	return append([]Country(nil), f.countries...), nil
}

func (f *fakeProvider) Services(ctx context.Context, countryCode string) ([]Service, error) {
	if f.servicesErr != nil {
		return nil, f.servicesErr
	}
	return append([]Service(nil), f.services[countryCode]...), nil
}

func (f *fakeProvider) CreateOrder(ctx context.Context, countryCode, serviceID string) (*ProviderOrder, error) {
	f.mu.Lock()
	f.createCalls = append(f.createCalls, serviceID)
	f.mu.Unlock()

	if f.createFn != nil {
		return f.createFn(countryCode, serviceID)
	}
	return &ProviderOrder{OrderID: "PO-1", PhoneNumber: "+15550000001", Cost: 1500, Status: "pending"}, nil
}

func (f *fakeProvider) CheckOrder(ctx context.Context, providerOrderID string) (*OrderCheck, error) {
	f.mu.Lock()
	f.checkCalls++
	f.mu.Unlock()

	if f.checkFn != nil {
		return f.checkFn(providerOrderID)
	}
	return &OrderCheck{Code: "", Status: "pending"}, nil
}

func (f *fakeProvider) CancelOrder(ctx context.Context, providerOrderID string) error {
	f.mu.Lock()
	f.cancelCalls++
	f.mu.Unlock()
	return f.cancelErr
}

func (f *fakeProvider) createCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.createCalls)
}

func svc(provider, serviceID, displayName string, cost float64, available int) Service {
	return Service{
		ServiceKey:          CanonicalServiceKey(displayName),
		ServiceID:           serviceID,
		DisplayName:         displayName,
		Cost:                cost,
		AvailableCount:      available,
		Provider:            provider,
		ProviderDisplayName: provider,
	}
}

func TestListCountries_MergesAndDeduplicates(t *testing.T) {
	t.Parallel()

	p1 := &fakeProvider{id: "p1", countries: []Country{
		{Code: "us", Name: "USA", Provider: "p1"},
		{Code: "XQ", Name: "Fictional Land", Provider: "p1"},
	}}
	p2 := &fakeProvider{id: "p2", countries: []Country{
		{Code: "US", Name: "United States of America", Provider: "p2"},
		{Code: "GB", Name: "Britain", Provider: "p2"},
	}}

	countries, err := NewCatalog(p1, p2).ListCountries(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, countries, 3)

	byCode := map[string]Country{}
	for _, c := range countries {
		byCode[c.Code] = c
	}

	// Duplicate codes merge; the reference table wins over provider spelling.
	assert.Equal(t, "United States", byCode["US"].Name)
	assert.Equal(t, "United Kingdom", byCode["GB"].Name)
	// Codes outside the reference table keep the provider's name.
	assert.Equal(t, "Fictional Land", byCode["XQ"].Name)
	assert.NotEmpty(t, byCode["US"].Flag)
}

func TestListCountries_SkipsFailingProvider(t *testing.T) {
	t.Parallel()

	p1 := &fakeProvider{id: "p1", countriesErr: errors.New("connection refused")}
	p2 := &fakeProvider{id: "p2", countries: []Country{{Code: "US", Name: "United States", Provider: "p2"}}}

	countries, err := NewCatalog(p1, p2).ListCountries(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, countries, 1)
	assert.Equal(t, "US", countries[0].Code)
}

func TestListServices_RanksWithinGroups(t *testing.T) {
	t.Parallel()

	p1 := &fakeProvider{id: "p1", services: map[string][]Service{
		"US": {
			svc("p1", "wa", "WhatsApp", 1500, 120),
			svc("p1", "tg", "Telegram", 900, 40),
		},
	}}
	p2 := &fakeProvider{id: "p2", services: map[string][]Service{
		"US": {
			svc("p2", "1001", "WhatsApp", 1200, 0),
			svc("p2", "1002", "WhatsApp", 1500, 300),
		},
	}}

	ranked, err := NewCatalog(p1, p2).ListServices(context.Background(), "US", "")
	require.NoError(t, err)
	require.Len(t, ranked, 4)

	var whatsapp []Service
	for _, s := range ranked {
		if s.ServiceKey == "whatsapp" {
			whatsapp = append(whatsapp, s)
		}
	}
	require.Len(t, whatsapp, 3)

	// Ascending cost, tie broken by descending availability.
	assert.Equal(t, []float64{1200, 1500, 1500}, []float64{whatsapp[0].Cost, whatsapp[1].Cost, whatsapp[2].Cost})
	assert.Equal(t, 300, whatsapp[1].AvailableCount)

	// Cheapest is flagged best price; the flags land on different entries here.
	assert.True(t, whatsapp[0].BestPrice)
	assert.False(t, whatsapp[0].MostAvailable)
	assert.True(t, whatsapp[1].MostAvailable)
}

func TestListServices_AllProvidersFailingYieldsEmpty(t *testing.T) {
	t.Parallel()

	p1 := &fakeProvider{id: "p1", servicesErr: errors.New("timeout")}
	p2 := &fakeProvider{id: "p2", servicesErr: errors.New("bad payload")}

	ranked, err := NewCatalog(p1, p2).ListServices(context.Background(), "US", "")
	require.NoError(t, err)
	assert.Empty(t, ranked)
}

func TestListServices_RequiresCountry(t *testing.T) {
	t.Parallel()

	_, err := NewCatalog(&fakeProvider{}).ListServices(context.Background(), "  ", "")
	assert.ErrorIs(t, err, ErrCountryRequired)
}

func TestListServicesAllProviders_OmitsEmptyProviders(t *testing.T) {
	t.Parallel()

	p1 := &fakeProvider{id: "p1", services: map[string][]Service{
		"US": {svc("p1", "wa", "WhatsApp", 1500, 10)},
	}}
	p2 := &fakeProvider{id: "p2", servicesErr: errors.New("down")}
	p3 := &fakeProvider{id: "p3", services: map[string][]Service{}}

	groups, err := NewCatalog(p1, p2, p3).ListServicesAllProviders(context.Background(), "US")
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, "p1", groups[0].Provider)
	require.Len(t, groups[0].Services, 1)
	assert.True(t, groups[0].Services[0].BestPrice)
}
