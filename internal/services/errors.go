package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrServiceNotFound means the requested service key matched nothing in
	// the catalog at order-creation time.
	ErrServiceNotFound = errors.New("service not found")

	// ErrOrderNotFound covers lookups for unknown or foreign orders.
	ErrOrderNotFound = errors.New("order not found")

	// ErrPollTimeout is returned when the polling budget is exhausted without
	// a code. The order stays pending and may be checked again later.
	ErrPollTimeout = errors.New("no code received within polling window")

	// ErrAlreadyCompleted guards cancellation of orders that already carry a code.
	ErrAlreadyCompleted = errors.New("order already completed")

	// ErrAlreadyCancelled is the idempotent signal for repeated cancellation.
	ErrAlreadyCancelled = errors.New("cancellation already requested")

	// ErrInsufficientFunds means the wallet debit was declined.
	ErrInsufficientFunds = errors.New("insufficient wallet balance")
)

// ProviderErrorCode is the closed set of upstream failure categories the
// orchestrator branches on. Vendor clients translate raw payloads into these
// codes so nothing downstream ever inspects message text.
type ProviderErrorCode string

const (
	CodeWhitelistDenied    ProviderErrorCode = "whitelist_denied"
	CodeProviderBalance    ProviderErrorCode = "insufficient_provider_balance"
	CodeServiceUnavailable ProviderErrorCode = "service_unavailable"
	CodeInvalidRequest     ProviderErrorCode = "invalid_request"
)

// ProviderError is a structured rejection from an upstream vendor.
type ProviderError struct {
	Provider string
	Code     ProviderErrorCode
	Message  string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: %s (%s)", e.Provider, e.Message, e.Code)
}

// FallbackEligible reports whether a manual-mode rejection should trigger
// the single automatic fallback.
func (e *ProviderError) FallbackEligible() bool {
	return e.Code == CodeWhitelistDenied || e.Code == CodeProviderBalance
}

// Kind maps an error to the stable code carried in API error payloads.
func Kind(err error) string {
	var provErr *ProviderError

	switch {
	case err == nil:
		return ""

	case errors.Is(err, ErrServiceNotFound):
		return "service_not_found"

	case errors.Is(err, ErrOrderNotFound):
		return "order_not_found"

	case errors.Is(err, ErrPollTimeout):
		return "poll_timeout"

	case errors.Is(err, ErrAlreadyCompleted):
		return "already_completed"

	case errors.Is(err, ErrAlreadyCancelled):
		return "already_cancelled"

	case errors.Is(err, ErrInsufficientFunds):
		return "insufficient_funds"

	case errors.As(err, &provErr):
		return string(provErr.Code)

	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"

	case errors.Is(err, context.Canceled):
		return "canceled"

	default:
		return "internal"
	}
}

// HTTPStatus maps an error to the response status used by the handlers.
func HTTPStatus(err error) int {
	var provErr *ProviderError

	switch {
	case err == nil:
		return http.StatusOK

	case errors.Is(err, ErrServiceNotFound),
		errors.Is(err, ErrOrderNotFound):
		return http.StatusNotFound

	case errors.Is(err, ErrPollTimeout):
		return http.StatusRequestTimeout

	case errors.Is(err, ErrAlreadyCompleted),
		errors.Is(err, ErrAlreadyCancelled):
		return http.StatusConflict

	case errors.Is(err, ErrInsufficientFunds):
		return http.StatusPaymentRequired

	case errors.As(err, &provErr):
		return http.StatusBadGateway

	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout

	default:
		return http.StatusInternalServerError
	}
}
