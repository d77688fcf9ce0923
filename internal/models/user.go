package models

import "github.com/google/uuid"

// User represents an authenticated reseller customer.
type User struct {
	BaseModel
	Phone        string  `gorm:"uniqueIndex" json:"phone"`
	DisplayName  string  `json:"display_name"`
	PasswordHash string  `json:"-"`
	Balance      float64 `json:"balance"`

	Orders       []Order             `json:"orders,omitempty"`
	Transactions []WalletTransaction `json:"transactions,omitempty"`
}

// Wallet transaction types.
const (
	TxTypeTopup  = "topup"
	TxTypeDebit  = "debit"
	TxTypeRefund = "refund"
)

// WalletTransaction is a single ledger entry. Order-bound entries carry the
// order ID; the (order_id, type) pair is unique so an order can be debited
// and refunded at most once.
type WalletTransaction struct {
	BaseModel
	UserID       uuid.UUID  `gorm:"type:uuid;index" json:"user_id"`
	OrderID      *uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_wallet_order_type" json:"order_id,omitempty"`
	Type         string     `gorm:"uniqueIndex:idx_wallet_order_type" json:"type"`
	Amount       float64    `json:"amount"`
	BalanceAfter float64    `json:"balance_after"`
	Note         string     `json:"note"`
}
