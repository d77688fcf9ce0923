package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/virtanum/internal/models"
)

// fakeStore is an in-memory OrderStore.
type fakeStore struct {
	mu        sync.Mutex
	orders    map[uuid.UUID]*models.Order
	createErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{orders: make(map[uuid.UUID]*models.Order)}
}

func (s *fakeStore) Create(ctx context.Context, order *models.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	cp := *order
	s.orders[order.ID] = &cp
	return nil
}

func (s *fakeStore) ByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[id]
	if !ok {
		return nil, ErrOrderNotFound
	}
	cp := *order
	return &cp, nil
}

func (s *fakeStore) ByIDForUser(ctx context.Context, userID, id uuid.UUID) (*models.Order, error) {
	order, err := s.ByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

func (s *fakeStore) ListForUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Order, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Order
	for _, order := range s.orders {
		if order.UserID == userID {
			out = append(out, *order)
		}
	}
	return out, int64(len(out)), nil
}

func (s *fakeStore) Complete(ctx context.Context, id uuid.UUID, code string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[id]
	if !ok || order.Status != models.OrderStatusPending {
		return false, nil
	}
	now := time.Now()
	order.Status = models.OrderStatusCompleted
	order.SMSCode = code
	order.CodeReceivedAt = &now
	return true, nil
}

func (s *fakeStore) Cancel(ctx context.Context, id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[id]
	if !ok || order.Status != models.OrderStatusPending || order.SMSCode != "" {
		return false, nil
	}
	now := time.Now()
	order.Status = models.OrderStatusCancelled
	order.CancelledAt = &now
	return true, nil
}

func (s *fakeStore) Expire(ctx context.Context, id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[id]
	if !ok || order.Status != models.OrderStatusPending {
		return false, nil
	}
	order.Status = models.OrderStatusExpired
	return true, nil
}

func (s *fakeStore) PendingExpired(ctx context.Context, now time.Time) ([]models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Order
	for _, order := range s.orders {
		if order.Status == models.OrderStatusPending && !order.ExpiresAt.After(now) {
			out = append(out, *order)
		}
	}
	return out, nil
}

func (s *fakeStore) put(order *models.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *order
	s.orders[order.ID] = &cp
}

// fakeLedger is an in-memory Ledger tracking debits and refunds.
type fakeLedger struct {
	mu       sync.Mutex
	balance  float64
	debits   []uuid.UUID
	refunds  []uuid.UUID
	refunded map[uuid.UUID]bool
}

func newFakeLedger(balance float64) *fakeLedger {
	return &fakeLedger{balance: balance, refunded: make(map[uuid.UUID]bool)}
}

func (l *fakeLedger) Balance(ctx context.Context, userID uuid.UUID) (float64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balance, nil
}

func (l *fakeLedger) Topup(ctx context.Context, userID uuid.UUID, amount float64, note string) (float64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balance += amount
	return l.balance, nil
}

func (l *fakeLedger) Debit(ctx context.Context, userID, orderID uuid.UUID, amount float64, note string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.balance < amount {
		return ErrInsufficientFunds
	}
	l.balance -= amount
	l.debits = append(l.debits, orderID)
	return nil
}

func (l *fakeLedger) Refund(ctx context.Context, userID, orderID uuid.UUID, amount float64, note string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.refunded[orderID] {
		return false, nil
	}
	l.refunded[orderID] = true
	l.balance += amount
	l.refunds = append(l.refunds, orderID)
	return true, nil
}

func (l *fakeLedger) Transactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.WalletTransaction, int64, error) {
	return nil, 0, nil
}

func (l *fakeLedger) debitCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.debits)
}

func (l *fakeLedger) refundCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.refunds)
}

func newTestOrchestrator(store *fakeStore, ledger *fakeLedger, providers ...Provider) *Orchestrator {
	catalog := NewCatalog(providers...)
	return NewOrchestrator(catalog, NewAutoRouter(catalog), store, ledger, 20*time.Minute)
}

func TestCreateOrder_ManualSuccess(t *testing.T) {
	t.Parallel()

	provider := &fakeProvider{
		id: "smspool",
		services: map[string][]Service{
			"US": {svc("smspool", "wa", "WhatsApp", 1500, 50)},
		},
		createFn: func(countryCode, serviceID string) (*ProviderOrder, error) {
			return &ProviderOrder{OrderID: "X1", PhoneNumber: "+15551234567", Cost: 1500, Status: "pending"}, nil
		},
	}
	store := newFakeStore()
	ledger := newFakeLedger(5000)
	orch := newTestOrchestrator(store, ledger, provider)
	userID := uuid.New()

	order, err := orch.CreateOrder(context.Background(), userID, CreateOrderInput{
		CountryCode: "us",
		ServiceKey:  "whatsapp",
		Mode:        ModeManual,
		Provider:    "smspool",
	})
	require.NoError(t, err)

	assert.Equal(t, models.OrderStatusPending, order.Status)
	assert.Empty(t, order.SMSCode)
	assert.Equal(t, "X1", order.ProviderOrderID)
	assert.Equal(t, "+15551234567", order.PhoneNumber)
	assert.Equal(t, "US", order.CountryCode)
	assert.Equal(t, 1500.0, order.Cost)
	assert.True(t, order.ExpiresAt.After(time.Now()))

	assert.Equal(t, 1, ledger.debitCount())
	assert.Equal(t, 0, ledger.refundCount())

	stored, err := store.ByID(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPending, stored.Status)
}

func TestCreateOrder_FallbackOnProviderBalance(t *testing.T) {
	t.Parallel()

	manual := &fakeProvider{
		id: "smspool",
		services: map[string][]Service{
			"US": {svc("smspool", "wa", "WhatsApp", 1500, 50)},
		},
		createFn: func(countryCode, serviceID string) (*ProviderOrder, error) {
			return nil, &ProviderError{Provider: "smspool", Code: CodeProviderBalance, Message: "vendor balance exhausted"}
		},
	}
	alternate := &fakeProvider{
		id: "tigersms",
		services: map[string][]Service{
			"US": {svc("tigersms", "1001", "WhatsApp", 1800, 20)},
		},
		createFn: func(countryCode, serviceID string) (*ProviderOrder, error) {
			return &ProviderOrder{OrderID: "T9", PhoneNumber: "+15559876543", Cost: 1800}, nil
		},
	}
	store := newFakeStore()
	ledger := newFakeLedger(10000)
	orch := newTestOrchestrator(store, ledger, manual, alternate)

	order, err := orch.CreateOrder(context.Background(), uuid.New(), CreateOrderInput{
		CountryCode: "US",
		ServiceKey:  "wa",
		Mode:        ModeManual,
		Provider:    "smspool",
	})
	require.NoError(t, err)

	// Exactly one manual attempt and one auto fallback, routed away from the
	// rejecting provider.
	assert.Equal(t, 1, manual.createCount())
	assert.Equal(t, 1, alternate.createCount())
	assert.Equal(t, ModeAuto, order.Mode)
	assert.Equal(t, "tigersms", order.Provider)

	// The manual debit was compensated; only the fallback debit sticks.
	assert.Equal(t, 2, ledger.debitCount())
	assert.Equal(t, 1, ledger.refundCount())
}

func TestCreateOrder_FallbackFailureSurfacesBothErrors(t *testing.T) {
	t.Parallel()

	manual := &fakeProvider{
		id: "smspool",
		services: map[string][]Service{
			"US": {svc("smspool", "wa", "WhatsApp", 1500, 50)},
		},
		createFn: func(countryCode, serviceID string) (*ProviderOrder, error) {
			return nil, &ProviderError{Provider: "smspool", Code: CodeWhitelistDenied, Message: "account not whitelisted"}
		},
	}
	alternate := &fakeProvider{
		id: "tigersms",
		services: map[string][]Service{
			"US": {svc("tigersms", "1001", "WhatsApp", 1800, 20)},
		},
		createFn: func(countryCode, serviceID string) (*ProviderOrder, error) {
			return nil, &ProviderError{Provider: "tigersms", Code: CodeServiceUnavailable, Message: "no numbers left"}
		},
	}
	store := newFakeStore()
	ledger := newFakeLedger(10000)
	orch := newTestOrchestrator(store, ledger, manual, alternate)

	_, err := orch.CreateOrder(context.Background(), uuid.New(), CreateOrderInput{
		CountryCode: "US",
		ServiceKey:  "wa",
		Mode:        ModeManual,
		Provider:    "smspool",
	})
	require.Error(t, err)

	// One attempt each, never more.
	assert.Equal(t, 1, manual.createCount())
	assert.Equal(t, 1, alternate.createCount())

	// The fallback error leads; the manual rejection rides along.
	assert.Contains(t, err.Error(), "no numbers left")
	assert.Contains(t, err.Error(), "account not whitelisted")

	// Every debit was compensated.
	assert.Equal(t, 2, ledger.debitCount())
	assert.Equal(t, 2, ledger.refundCount())
}

func TestCreateOrder_NoFallbackForUnrelatedErrors(t *testing.T) {
	t.Parallel()

	manual := &fakeProvider{
		id: "smspool",
		services: map[string][]Service{
			"US": {svc("smspool", "wa", "WhatsApp", 1500, 50)},
		},
		createFn: func(countryCode, serviceID string) (*ProviderOrder, error) {
			return nil, &ProviderError{Provider: "smspool", Code: CodeInvalidRequest, Message: "malformed service code"}
		},
	}
	alternate := &fakeProvider{
		id: "tigersms",
		services: map[string][]Service{
			"US": {svc("tigersms", "1001", "WhatsApp", 1800, 20)},
		},
	}
	store := newFakeStore()
	ledger := newFakeLedger(10000)
	orch := newTestOrchestrator(store, ledger, manual, alternate)

	_, err := orch.CreateOrder(context.Background(), uuid.New(), CreateOrderInput{
		CountryCode: "US",
		ServiceKey:  "wa",
		Mode:        ModeManual,
		Provider:    "smspool",
	})
	require.Error(t, err)

	assert.Equal(t, 1, manual.createCount())
	assert.Equal(t, 0, alternate.createCount())
	assert.Equal(t, 1, ledger.refundCount())
}

func TestCreateOrder_DebitFailureSkipsUpstream(t *testing.T) {
	t.Parallel()

	provider := &fakeProvider{
		id: "smspool",
		services: map[string][]Service{
			"US": {svc("smspool", "wa", "WhatsApp", 1500, 50)},
		},
	}
	store := newFakeStore()
	ledger := newFakeLedger(100)
	orch := newTestOrchestrator(store, ledger, provider)

	_, err := orch.CreateOrder(context.Background(), uuid.New(), CreateOrderInput{
		CountryCode: "US",
		ServiceKey:  "wa",
		Mode:        ModeManual,
		Provider:    "smspool",
	})
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	assert.Equal(t, 0, provider.createCount())
}

func TestCreateOrder_ServiceNotFound(t *testing.T) {
	t.Parallel()

	provider := &fakeProvider{
		id: "smspool",
		services: map[string][]Service{
			"US": {svc("smspool", "wa", "WhatsApp", 1500, 50)},
		},
	}
	store := newFakeStore()
	ledger := newFakeLedger(10000)
	orch := newTestOrchestrator(store, ledger, provider)

	_, err := orch.CreateOrder(context.Background(), uuid.New(), CreateOrderInput{
		CountryCode: "US",
		ServiceKey:  "nonexistent-service",
		Mode:        ModeManual,
		Provider:    "smspool",
	})
	assert.ErrorIs(t, err, ErrServiceNotFound)
	assert.Equal(t, 0, ledger.debitCount())
}

func TestCreateOrder_AutoModeUsesCheapestRoute(t *testing.T) {
	t.Parallel()

	pricey := &fakeProvider{
		id: "smspool",
		services: map[string][]Service{
			"US": {svc("smspool", "wa", "WhatsApp", 1500, 50)},
		},
	}
	cheap := &fakeProvider{
		id: "tigersms",
		services: map[string][]Service{
			"US": {svc("tigersms", "1001", "WhatsApp", 900, 10)},
		},
		createFn: func(countryCode, serviceID string) (*ProviderOrder, error) {
			return &ProviderOrder{OrderID: "T1", PhoneNumber: "+15550001111", Cost: 900}, nil
		},
	}
	store := newFakeStore()
	ledger := newFakeLedger(10000)
	orch := newTestOrchestrator(store, ledger, pricey, cheap)

	order, err := orch.CreateOrder(context.Background(), uuid.New(), CreateOrderInput{
		CountryCode: "US",
		ServiceKey:  "WhatsApp",
		Mode:        ModeAuto,
	})
	require.NoError(t, err)

	assert.Equal(t, "tigersms", order.Provider)
	assert.Equal(t, 900.0, order.Cost)
	assert.Equal(t, 0, pricey.createCount())
	assert.Equal(t, 1, cheap.createCount())
}
