package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/example/virtanum/internal/models"
)

// Order routing modes.
const (
	ModeAuto   = "auto"
	ModeManual = "manual"
)

// ErrInvalidMode rejects unknown routing modes.
var ErrInvalidMode = errors.New("mode must be auto or manual")

// CreateOrderInput carries the caller's order request.
type CreateOrderInput struct {
	CountryCode string
	ServiceKey  string
	Mode        string
	Provider    string
}

// Orchestrator creates number orders: it resolves the service, debits the
// wallet, places the order upstream and persists the result. A manual-mode
// rejection for whitelisting or provider balance triggers exactly one retry
// through the auto router.
type Orchestrator struct {
	catalog  *Catalog
	router   *AutoRouter
	store    OrderStore
	ledger   Ledger
	orderTTL time.Duration
}

// NewOrchestrator wires the orchestrator.
func NewOrchestrator(catalog *Catalog, router *AutoRouter, store OrderStore, ledger Ledger, orderTTL time.Duration) *Orchestrator {
	return &Orchestrator{
		catalog:  catalog,
		router:   router,
		store:    store,
		ledger:   ledger,
		orderTTL: orderTTL,
	}
}

// CreateOrder places an order for the user. On success the returned order is
// pending with a non-empty phone number and a creation-time expiry window.
func (o *Orchestrator) CreateOrder(ctx context.Context, userID uuid.UUID, in CreateOrderInput) (*models.Order, error) {
	country := strings.ToUpper(strings.TrimSpace(in.CountryCode))
	if country == "" {
		return nil, ErrCountryRequired
	}

	mode := in.Mode
	if mode == "" {
		mode = ModeAuto
	}
	if mode != ModeAuto && mode != ModeManual {
		return nil, ErrInvalidMode
	}

	var (
		svc *Service
		err error
	)
	if mode == ModeManual {
		if in.Provider == "" {
			return nil, errors.New("manual mode requires a provider")
		}
		svc, err = o.resolveManual(ctx, country, in.Provider, in.ServiceKey)
	} else {
		svc, err = o.router.Resolve(ctx, country, in.ServiceKey)
	}
	if err != nil {
		return nil, err
	}

	order, primaryErr := o.place(ctx, userID, country, mode, svc)
	if primaryErr == nil {
		return order, nil
	}

	// One automatic fallback: manual-mode rejections for whitelisting or
	// provider balance are retried through the auto router under the
	// natural-language service name. Any other failure propagates as is.
	var provErr *ProviderError
	if mode != ModeManual || !errors.As(primaryErr, &provErr) || !provErr.FallbackEligible() {
		return nil, primaryErr
	}

	log.Printf("[Orchestrator] manual order on %s rejected (%s), falling back to auto", svc.Provider, provErr.Code)

	fallbackSvc, err := o.router.ResolveExcluding(ctx, country, FallbackKey(svc.DisplayName), svc.Provider)
	if err != nil {
		return nil, fmt.Errorf("auto fallback found no route: %w (manual attempt: %v)", err, primaryErr)
	}

	order, err = o.place(ctx, userID, country, ModeAuto, fallbackSvc)
	if err != nil {
		// The fallback error is the more specific one and wins as the
		// reported message; the manual attempt rides along for context.
		return nil, fmt.Errorf("%w (manual attempt: %v)", err, primaryErr)
	}
	return order, nil
}

// resolveManual finds the service in the named provider's catalog by exact
// provider code, canonical key, or fuzzy display-name match, in that order.
func (o *Orchestrator) resolveManual(ctx context.Context, country, providerID, serviceKey string) (*Service, error) {
	p, ok := o.catalog.Provider(providerID)
	if !ok {
		return nil, errors.New("unknown provider: " + providerID)
	}

	services, err := p.Services(ctx, country)
	if err != nil {
		return nil, err
	}

	for i, svc := range services {
		if svc.ServiceID == serviceKey {
			return &services[i], nil
		}
	}

	wantedKey := CanonicalServiceKey(serviceKey)
	for i, svc := range services {
		if svc.ServiceKey == wantedKey {
			return &services[i], nil
		}
	}

	wanted := FallbackKey(serviceKey)
	for i, svc := range services {
		if wanted != "" && strings.Contains(FallbackKey(svc.DisplayName), wanted) {
			return &services[i], nil
		}
	}

	return nil, ErrServiceNotFound
}

// place debits the wallet, creates the upstream order and persists it. The
// debit is compensated with a refund if anything after it fails, so a failed
// creation never costs the user anything.
func (o *Orchestrator) place(ctx context.Context, userID uuid.UUID, country, mode string, svc *Service) (*models.Order, error) {
	p, ok := o.catalog.Provider(svc.Provider)
	if !ok {
		return nil, fmt.Errorf("unknown provider %q", svc.Provider)
	}

	orderID := uuid.New()

	if err := o.ledger.Debit(ctx, userID, orderID, svc.Cost, "number order: "+svc.DisplayName); err != nil {
		return nil, err
	}

	upstream, err := p.CreateOrder(ctx, country, svc.ServiceID)
	if err != nil {
		o.compensate(ctx, userID, orderID, svc.Cost, "order creation failed")
		return nil, err
	}

	now := time.Now()
	order := &models.Order{
		BaseModel:       models.BaseModel{ID: orderID},
		UserID:          userID,
		ProviderOrderID: upstream.OrderID,
		PhoneNumber:     upstream.PhoneNumber,
		CountryCode:     country,
		ServiceKey:      svc.ServiceKey,
		ServiceName:     svc.DisplayName,
		Provider:        svc.Provider,
		Mode:            mode,
		Cost:            svc.Cost,
		Status:          models.OrderStatusPending,
		ExpiresAt:       now.Add(o.orderTTL),
	}

	if err := o.store.Create(ctx, order); err != nil {
		if cancelErr := p.CancelOrder(ctx, upstream.OrderID); cancelErr != nil {
			log.Printf("[Orchestrator] upstream cancel after store failure: %v", cancelErr)
		}
		o.compensate(ctx, userID, orderID, svc.Cost, "order persistence failed")
		return nil, err
	}

	return order, nil
}

func (o *Orchestrator) compensate(ctx context.Context, userID, orderID uuid.UUID, amount float64, note string) {
	if _, err := o.ledger.Refund(ctx, userID, orderID, amount, note); err != nil {
		log.Printf("[Orchestrator] compensating refund failed for order %s: %v", orderID, err)
	}
}
