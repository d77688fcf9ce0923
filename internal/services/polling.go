package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/example/virtanum/internal/models"
)

// ErrOrderClosed is returned when polling hits an order that reached a
// terminal state without ever receiving a code.
var ErrOrderClosed = errors.New("order closed without a code")

// Poller retrieves one-time codes for open orders.
type Poller struct {
	store    OrderStore
	catalog  *Catalog
	notifier *TelegramService
}

// NewPoller wires the polling engine. notifier may be nil.
func NewPoller(store OrderStore, catalog *Catalog, notifier *TelegramService) *Poller {
	return &Poller{store: store, catalog: catalog, notifier: notifier}
}

// CheckOnce performs a single upstream status check. An empty code means the
// SMS has not arrived yet. Observing a code completes the order; the upstream
// order itself is never mutated by a check.
func (p *Poller) CheckOnce(ctx context.Context, orderID uuid.UUID) (*OrderCheck, error) {
	order, err := p.store.ByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if order.Status.Terminal() {
		return &OrderCheck{Code: order.SMSCode, Status: string(order.Status)}, nil
	}

	provider, ok := p.catalog.Provider(order.Provider)
	if !ok {
		return nil, fmt.Errorf("order %s references unknown provider %q", order.ID, order.Provider)
	}

	check, err := provider.CheckOrder(ctx, order.ProviderOrderID)
	if err != nil {
		return nil, err
	}

	if check.Code != "" {
		changed, err := p.store.Complete(ctx, order.ID, check.Code)
		if err != nil {
			return nil, err
		}
		if changed && p.notifier != nil {
			go p.notifier.NotifyOrderCompleted(order.ServiceName, order.PhoneNumber, check.Code)
		}
		check.Status = string(models.OrderStatusCompleted)
	}

	return check, nil
}

// PollForCode runs a bounded polling session: one status check per interval
// firing, strictly sequential, at most maxAttempts checks. The discipline is
// fixed-interval; a check that overruns the interval delays the next firing
// (ticks are never serviced concurrently). The session stops the instant a
// check observes a code, and stops issuing checks as soon as ctx is
// cancelled. Exhausting the budget without a code returns ErrPollTimeout and
// leaves the order pending for later re-checks.
func (p *Poller) PollForCode(ctx context.Context, orderID uuid.UUID, maxAttempts int, interval time.Duration) (string, error) {
	if maxAttempts <= 0 {
		return "", errors.New("maxAttempts must be positive")
	}
	if interval <= 0 {
		return "", errors.New("interval must be positive")
	}

	order, err := p.store.ByID(ctx, orderID)
	if err != nil {
		return "", err
	}
	if order.Status == models.OrderStatusCompleted {
		return order.SMSCode, nil
	}
	if order.Status.Terminal() {
		return "", ErrOrderClosed
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}

		check, err := p.CheckOnce(ctx, orderID)
		if err != nil {
			if errors.Is(err, ErrOrderNotFound) {
				return "", err
			}
			// Transient upstream failures consume the attempt but do not
			// abort the session.
			log.Printf("[Poller] check %d/%d for %s: %v", attempt, maxAttempts, orderID, err)
			continue
		}

		if check.Code != "" {
			return check.Code, nil
		}

		if models.OrderStatus(check.Status).Terminal() {
			return "", ErrOrderClosed
		}
	}

	return "", ErrPollTimeout
}
