package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/virtanum/internal/models"
	"github.com/example/virtanum/internal/services"
)

// OrderRepository is the GORM-backed order store.
type OrderRepository struct {
	db *gorm.DB
}

// NewOrderRepository constructs an OrderRepository.
func NewOrderRepository(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// Create persists a new order.
func (r *OrderRepository) Create(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

// ByID loads an order by ID.
func (r *OrderRepository) ByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).First(&order, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, services.ErrOrderNotFound
		}
		return nil, err
	}
	return &order, nil
}

// ByIDForUser loads an order owned by the given user.
func (r *OrderRepository) ByIDForUser(ctx context.Context, userID, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).First(&order, "id = ? AND user_id = ?", id, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, services.ErrOrderNotFound
		}
		return nil, err
	}
	return &order, nil
}

// ListForUser returns a page of the user's orders, newest first.
func (r *OrderRepository) ListForUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Order, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Order{}).Where("user_id = ?", userID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var orders []models.Order
	if err := query.Order("created_at desc").Limit(limit).Offset(offset).Find(&orders).Error; err != nil {
		return nil, 0, err
	}

	return orders, total, nil
}

// Complete transitions a pending order to completed with its code. Returns
// false when the order was no longer pending.
func (r *OrderRepository) Complete(ctx context.Context, id uuid.UUID, code string) (bool, error) {
	now := time.Now()
	result := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND status = ?", id, models.OrderStatusPending).
		Updates(map[string]any{
			"status":           models.OrderStatusCompleted,
			"sms_code":         code,
			"code_received_at": &now,
		})
	return result.RowsAffected > 0, result.Error
}

// Cancel transitions a pending, code-less order to cancelled. Returns false
// when the guard did not match.
func (r *OrderRepository) Cancel(ctx context.Context, id uuid.UUID) (bool, error) {
	now := time.Now()
	result := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND status = ? AND sms_code = ''", id, models.OrderStatusPending).
		Updates(map[string]any{
			"status":       models.OrderStatusCancelled,
			"cancelled_at": &now,
		})
	return result.RowsAffected > 0, result.Error
}

// Expire transitions a pending order to expired. Returns false when the order
// was no longer pending.
func (r *OrderRepository) Expire(ctx context.Context, id uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND status = ?", id, models.OrderStatusPending).
		Update("status", models.OrderStatusExpired)
	return result.RowsAffected > 0, result.Error
}

// PendingExpired lists pending orders whose expiry window has elapsed.
func (r *OrderRepository) PendingExpired(ctx context.Context, now time.Time) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.WithContext(ctx).
		Where("status = ? AND expires_at <= ?", models.OrderStatusPending, now).
		Find(&orders).Error
	return orders, err
}
