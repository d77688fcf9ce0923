package services

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/example/virtanum/internal/models"
)

// RefundConfirmation reports the outcome of a cancellation.
type RefundConfirmation struct {
	OrderID          uuid.UUID `json:"order_id"`
	Amount           float64   `json:"amount"`
	AlreadyRequested bool      `json:"already_requested"`
}

// Lifecycle finalizes orders: user cancellation with refund, and expiry of
// orders that never received a code. Refunds go through the ledger exactly
// once per order regardless of how many paths race toward them.
type Lifecycle struct {
	store    OrderStore
	ledger   Ledger
	catalog  *Catalog
	notifier *TelegramService
}

// NewLifecycle wires the lifecycle manager. notifier may be nil.
func NewLifecycle(store OrderStore, ledger Ledger, catalog *Catalog, notifier *TelegramService) *Lifecycle {
	return &Lifecycle{store: store, ledger: ledger, catalog: catalog, notifier: notifier}
}

// CancelOrder cancels a pending order and refunds its cost. Orders that
// already carry a code signal ErrAlreadyCompleted; repeating a cancellation
// signals ErrAlreadyCancelled and never refunds twice.
func (l *Lifecycle) CancelOrder(ctx context.Context, userID, orderID uuid.UUID) (*RefundConfirmation, error) {
	order, err := l.store.ByIDForUser(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}

	if order.Status == models.OrderStatusCompleted || order.SMSCode != "" {
		return nil, ErrAlreadyCompleted
	}
	if order.Status.Terminal() {
		return nil, ErrAlreadyCancelled
	}

	// Best effort: release the number upstream. The provider-side window
	// closes on its own if this fails.
	if provider, ok := l.catalog.Provider(order.Provider); ok {
		if err := provider.CancelOrder(ctx, order.ProviderOrderID); err != nil {
			log.Printf("[Lifecycle] upstream cancel for %s: %v", order.ID, err)
		}
	}

	changed, err := l.store.Cancel(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	if !changed {
		// Lost a race against another cancel, a code, or expiry.
		current, err := l.store.ByID(ctx, order.ID)
		if err != nil {
			return nil, err
		}
		if current.Status == models.OrderStatusCompleted || current.SMSCode != "" {
			return nil, ErrAlreadyCompleted
		}
		return nil, ErrAlreadyCancelled
	}

	refunded, err := l.ledger.Refund(ctx, userID, order.ID, order.Cost, "order cancelled")
	if err != nil {
		return nil, err
	}

	return &RefundConfirmation{
		OrderID:          order.ID,
		Amount:           order.Cost,
		AlreadyRequested: !refunded,
	}, nil
}

// RunExpirySweeper periodically expires pending orders whose window elapsed,
// refunding each exactly once. It blocks until ctx is cancelled.
func (l *Lifecycle) RunExpirySweeper(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.SweepExpired(ctx)
		}
	}
}

// SweepExpired runs a single expiry pass.
func (l *Lifecycle) SweepExpired(ctx context.Context) {
	expired, err := l.store.PendingExpired(ctx, time.Now())
	if err != nil {
		log.Printf("[Lifecycle] expiry sweep: %v", err)
		return
	}

	for _, order := range expired {
		changed, err := l.store.Expire(ctx, order.ID)
		if err != nil {
			log.Printf("[Lifecycle] expire %s: %v", order.ID, err)
			continue
		}
		if !changed {
			continue
		}

		if _, err := l.ledger.Refund(ctx, order.UserID, order.ID, order.Cost, "order expired"); err != nil {
			log.Printf("[Lifecycle] expiry refund for %s: %v", order.ID, err)
			continue
		}

		log.Printf("[Lifecycle] order %s expired, refunded %.2f", order.ID, order.Cost)
		if l.notifier != nil {
			go l.notifier.NotifyOrderExpired(order.ServiceName, order.PhoneNumber)
		}
	}
}
