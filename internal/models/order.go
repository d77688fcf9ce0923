package models

import (
	"time"

	"github.com/google/uuid"
)

// OrderStatus tracks the lifecycle of a number order.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusExpired   OrderStatus = "expired"
	OrderStatusCancelled OrderStatus = "cancelled"
	OrderStatusFailed    OrderStatus = "failed"
)

// Terminal reports whether the status permits no further transitions.
func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderStatusCompleted, OrderStatusExpired, OrderStatusCancelled, OrderStatusFailed:
		return true
	}
	return false
}

// Order is a virtual number purchase. The upstream provider keeps its own
// order ID; ours is the reference everything else uses.
type Order struct {
	BaseModel
	UserID          uuid.UUID   `gorm:"type:uuid;index" json:"user_id"`
	User            *User       `json:"user,omitempty"`
	ProviderOrderID string      `gorm:"index" json:"provider_order_id"`
	PhoneNumber     string      `json:"phone_number"`
	CountryCode     string      `json:"country_code"`
	ServiceKey      string      `json:"service_key"`
	ServiceName     string      `json:"service_name"`
	Provider        string      `json:"provider"`
	Mode            string      `json:"mode"`
	Cost            float64     `json:"cost"`
	Status          OrderStatus `gorm:"index" json:"status"`
	SMSCode         string      `json:"sms_code,omitempty"`
	CodeReceivedAt  *time.Time  `json:"code_received_at,omitempty"`
	CancelledAt     *time.Time  `json:"cancelled_at,omitempty"`
	ExpiresAt       time.Time   `gorm:"index" json:"expires_at"`
}
