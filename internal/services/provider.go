package services

import "context"

// Country is a normalized entry from a provider's country catalog.
type Country struct {
	Code     string `json:"code"`
	Name     string `json:"name"`
	Flag     string `json:"flag"`
	Provider string `json:"provider"`
}

// Service is a purchasable target service in one provider's catalog.
// ServiceKey is the canonical cross-provider key; ServiceID is the
// provider-specific code used for manual-mode orders.
type Service struct {
	ServiceKey          string  `json:"service_key"`
	ServiceID           string  `json:"service_id"`
	DisplayName         string  `json:"display_name"`
	Cost                float64 `json:"cost"`
	AvailableCount      int     `json:"available_count"`
	Provider            string  `json:"provider"`
	ProviderDisplayName string  `json:"provider_display_name"`
	BestPrice           bool    `json:"best_price,omitempty"`
	MostAvailable       bool    `json:"most_available,omitempty"`
}

// ProviderOrder is the upstream's view of a freshly created order.
type ProviderOrder struct {
	OrderID     string  `json:"order_id"`
	PhoneNumber string  `json:"phone_number"`
	Cost        float64 `json:"cost"`
	Status      string  `json:"status"`
}

// OrderCheck is a single status-check result. An empty Code means the SMS
// has not arrived yet.
type OrderCheck struct {
	Code   string `json:"code"`
	Status string `json:"status"`
}

// Provider abstracts an upstream virtual-number vendor.
type Provider interface {
	ID() string
	DisplayName() string
	Countries(ctx context.Context) ([]Country, error)
	Services(ctx context.Context, countryCode string) ([]Service, error)
	CreateOrder(ctx context.Context, countryCode, serviceID string) (*ProviderOrder, error)
	CheckOrder(ctx context.Context, providerOrderID string) (*OrderCheck, error)
	CancelOrder(ctx context.Context, providerOrderID string) error
}
