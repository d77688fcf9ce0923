package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/example/virtanum/internal/models"
	"github.com/example/virtanum/internal/services"
)

// WalletRepository is the GORM-backed ledger. Balance changes happen inside
// a transaction with the user row locked, so every entry records a consistent
// balance_after and order-bound entries stay unique per (order, type).
type WalletRepository struct {
	db *gorm.DB
}

// NewWalletRepository constructs a WalletRepository.
func NewWalletRepository(db *gorm.DB) *WalletRepository {
	return &WalletRepository{db: db}
}

// Balance returns the user's current balance.
func (r *WalletRepository) Balance(ctx context.Context, userID uuid.UUID) (float64, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		return 0, err
	}
	return user.Balance, nil
}

// Topup credits the wallet and returns the new balance.
func (r *WalletRepository) Topup(ctx context.Context, userID uuid.UUID, amount float64, note string) (float64, error) {
	if amount <= 0 {
		return 0, errors.New("topup amount must be positive")
	}

	var balance float64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user, err := lockUser(tx, userID)
		if err != nil {
			return err
		}

		balance = user.Balance + amount
		if err := tx.Model(user).Update("balance", balance).Error; err != nil {
			return err
		}

		return tx.Create(&models.WalletTransaction{
			UserID:       userID,
			Type:         models.TxTypeTopup,
			Amount:       amount,
			BalanceAfter: balance,
			Note:         note,
		}).Error
	})
	return balance, err
}

// Debit charges the wallet for an order. Declines with ErrInsufficientFunds
// when the balance does not cover the amount.
func (r *WalletRepository) Debit(ctx context.Context, userID, orderID uuid.UUID, amount float64, note string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user, err := lockUser(tx, userID)
		if err != nil {
			return err
		}

		if user.Balance < amount {
			return services.ErrInsufficientFunds
		}

		balance := user.Balance - amount
		if err := tx.Model(user).Update("balance", balance).Error; err != nil {
			return err
		}

		return tx.Create(&models.WalletTransaction{
			UserID:       userID,
			OrderID:      &orderID,
			Type:         models.TxTypeDebit,
			Amount:       -amount,
			BalanceAfter: balance,
			Note:         note,
		}).Error
	})
}

// Refund returns an order's cost to the wallet. At most one refund per order:
// a repeat call is a no-op reporting false.
func (r *WalletRepository) Refund(ctx context.Context, userID, orderID uuid.UUID, amount float64, note string) (bool, error) {
	refunded := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.WalletTransaction
		err := tx.Where("order_id = ? AND type = ?", orderID, models.TxTypeRefund).First(&existing).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		user, err := lockUser(tx, userID)
		if err != nil {
			return err
		}

		balance := user.Balance + amount
		if err := tx.Model(user).Update("balance", balance).Error; err != nil {
			return err
		}

		if err := tx.Create(&models.WalletTransaction{
			UserID:       userID,
			OrderID:      &orderID,
			Type:         models.TxTypeRefund,
			Amount:       amount,
			BalanceAfter: balance,
			Note:         note,
		}).Error; err != nil {
			return err
		}

		refunded = true
		return nil
	})
	return refunded, err
}

// Transactions returns a page of the user's ledger entries, newest first.
func (r *WalletRepository) Transactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.WalletTransaction, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.WalletTransaction{}).Where("user_id = ?", userID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var txs []models.WalletTransaction
	if err := query.Order("created_at desc").Limit(limit).Offset(offset).Find(&txs).Error; err != nil {
		return nil, 0, err
	}

	return txs, total, nil
}

func lockUser(tx *gorm.DB, userID uuid.UUID) (*models.User, error) {
	var user models.User
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&user, "id = ?", userID).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}
