package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// TigerSMSConfig holds credentials for the single-number vendor.
type TigerSMSConfig struct {
	BaseURL string
	APIKey  string
	Enabled bool
}

// TigerSMSClient talks to the single-number vendor. The vendor uses a static
// API key, no token dance. When disabled, every call fails fast and the
// aggregator degrades to the remaining providers.
type TigerSMSClient struct {
	cfg        TigerSMSConfig
	httpClient *http.Client
}

// NewTigerSMSClient builds a client for the single-number vendor.
func NewTigerSMSClient(cfg TigerSMSConfig) *TigerSMSClient {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &TigerSMSClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// ID implements Provider.
func (t *TigerSMSClient) ID() string { return "tigersms" }

// DisplayName implements Provider.
func (t *TigerSMSClient) DisplayName() string { return "Tiger SMS" }

// Enabled reports whether the integration is configured for use.
func (t *TigerSMSClient) Enabled() bool { return t.cfg.Enabled }

type tigersmsEnvelope struct {
	Status  string          `json:"status"`
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (t *TigerSMSClient) doRequest(ctx context.Context, method, path string, body any, out any) error {
	if !t.cfg.Enabled {
		return errors.New("tigersms integration is disabled")
	}
	if t.cfg.APIKey == "" {
		return errors.New("TIGERSMS_API_KEY is not configured")
	}

	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("tigersms request marshal: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	url := t.cfg.BaseURL + "/" + strings.TrimLeft(path, "/")
	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return fmt.Errorf("tigersms request build: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Api-Key", t.cfg.APIKey)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("tigersms request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("tigersms response read: %w", err)
	}

	var envelope tigersmsEnvelope
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return fmt.Errorf("tigersms response unmarshal: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 || envelope.Status == "error" {
		return t.translateError(resp.StatusCode, envelope)
	}

	if out != nil && len(envelope.Data) > 0 {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return fmt.Errorf("tigersms data unmarshal: %w", err)
		}
	}
	return nil
}

func (t *TigerSMSClient) translateError(status int, envelope tigersmsEnvelope) error {
	message := envelope.Message
	if message == "" {
		message = fmt.Sprintf("tigersms returned status %d", status)
	}

	code := CodeInvalidRequest
	switch envelope.Code {
	case "ACCESS_DENIED", "NOT_WHITELISTED":
		code = CodeWhitelistDenied
	case "NO_BALANCE", "NO_MONEY":
		code = CodeProviderBalance
	default:
		if status >= 500 {
			code = CodeServiceUnavailable
		}
	}

	return &ProviderError{Provider: t.ID(), Code: code, Message: message}
}

// Countries implements Provider.
func (t *TigerSMSClient) Countries(ctx context.Context) ([]Country, error) {
	var data []struct {
		ISO  string `json:"iso"`
		Name string `json:"name"`
	}
	if err := t.doRequest(ctx, http.MethodGet, "countries", nil, &data); err != nil {
		return nil, err
	}

	countries := make([]Country, 0, len(data))
	for _, c := range data {
		countries = append(countries, Country{
			Code:     c.ISO,
			Name:     c.Name,
			Provider: t.ID(),
		})
	}
	return countries, nil
}

// Services implements Provider.
func (t *TigerSMSClient) Services(ctx context.Context, countryCode string) ([]Service, error) {
	var data []struct {
		Code  string  `json:"code"`
		Name  string  `json:"name"`
		Cost  float64 `json:"cost"`
		Count int     `json:"count"`
	}
	path := "services?country=" + countryCode
	if err := t.doRequest(ctx, http.MethodGet, path, nil, &data); err != nil {
		return nil, err
	}

	services := make([]Service, 0, len(data))
	for _, raw := range data {
		services = append(services, Service{
			ServiceKey:          CanonicalServiceKey(raw.Name),
			ServiceID:           raw.Code,
			DisplayName:         collapseWhitespace(raw.Name),
			Cost:                raw.Cost,
			AvailableCount:      raw.Count,
			Provider:            t.ID(),
			ProviderDisplayName: t.DisplayName(),
		})
	}
	return services, nil
}

// CreateOrder implements Provider.
func (t *TigerSMSClient) CreateOrder(ctx context.Context, countryCode, serviceID string) (*ProviderOrder, error) {
	var data struct {
		ActivationID string  `json:"activation_id"`
		Number       string  `json:"number"`
		Cost         float64 `json:"cost"`
	}
	err := t.doRequest(ctx, http.MethodPost, "number/buy", map[string]string{
		"country": countryCode,
		"service": serviceID,
	}, &data)
	if err != nil {
		return nil, err
	}

	if data.ActivationID == "" {
		return nil, &ProviderError{
			Provider: t.ID(),
			Code:     CodeServiceUnavailable,
			Message:  "buy response missing activation_id",
		}
	}

	return &ProviderOrder{
		OrderID:     data.ActivationID,
		PhoneNumber: data.Number,
		Cost:        data.Cost,
		Status:      "pending",
	}, nil
}

// CheckOrder implements Provider.
func (t *TigerSMSClient) CheckOrder(ctx context.Context, providerOrderID string) (*OrderCheck, error) {
	var data struct {
		SMS    string `json:"sms"`
		Status string `json:"status"`
	}
	path := "number/status?activation_id=" + providerOrderID
	if err := t.doRequest(ctx, http.MethodGet, path, nil, &data); err != nil {
		return nil, err
	}
	return &OrderCheck{Code: data.SMS, Status: data.Status}, nil
}

// CancelOrder implements Provider.
func (t *TigerSMSClient) CancelOrder(ctx context.Context, providerOrderID string) error {
	return t.doRequest(ctx, http.MethodPost, "number/cancel", map[string]string{
		"activation_id": providerOrderID,
	}, nil)
}
