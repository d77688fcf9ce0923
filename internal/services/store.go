package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/example/virtanum/internal/models"
)

// OrderStore persists orders. State transitions are guarded: they return
// false when the order was no longer pending, so terminal states stay
// immutable no matter how many callers race.
type OrderStore interface {
	Create(ctx context.Context, order *models.Order) error
	ByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	ByIDForUser(ctx context.Context, userID, id uuid.UUID) (*models.Order, error)
	ListForUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Order, int64, error)

	Complete(ctx context.Context, id uuid.UUID, code string) (bool, error)
	Cancel(ctx context.Context, id uuid.UUID) (bool, error)
	Expire(ctx context.Context, id uuid.UUID) (bool, error)

	PendingExpired(ctx context.Context, now time.Time) ([]models.Order, error)
}

// Ledger is the wallet collaborator. Debit and Refund are single atomic
// operations; the orchestrator never does balance arithmetic of its own.
// Refund reports false when the order was already refunded.
type Ledger interface {
	Balance(ctx context.Context, userID uuid.UUID) (float64, error)
	Topup(ctx context.Context, userID uuid.UUID, amount float64, note string) (float64, error)
	Debit(ctx context.Context, userID, orderID uuid.UUID, amount float64, note string) error
	Refund(ctx context.Context, userID, orderID uuid.UUID, amount float64, note string) (bool, error)
	Transactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.WalletTransaction, int64, error)
}
