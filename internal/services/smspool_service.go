package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const smspoolTokenLeeway = 30 * time.Second

// SMSPoolConfig holds credentials for the pool-based number vendor.
type SMSPoolConfig struct {
	BaseURL string
	AuthURL string
	Secret  string
}

// SMSPoolClient talks to the pool vendor. Access tokens are cached and
// refreshed once on 401 responses.
type SMSPoolClient struct {
	cfg        SMSPoolConfig
	httpClient *http.Client

	tokenMu     sync.RWMutex
	token       string
	tokenExpiry time.Time
}

// NewSMSPoolClient builds a client for the pool vendor.
func NewSMSPoolClient(cfg SMSPoolConfig) *SMSPoolClient {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	cfg.AuthURL = strings.TrimRight(cfg.AuthURL, "/")
	return &SMSPoolClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// ID implements Provider.
func (s *SMSPoolClient) ID() string { return "smspool" }

// DisplayName implements Provider.
func (s *SMSPoolClient) DisplayName() string { return "SMS Pool" }

type smspoolAuthResponse struct {
	Data struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	} `json:"data"`
}

type smspoolErrorPayload struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (s *SMSPoolClient) getToken(ctx context.Context, force bool) (string, error) {
	if !force {
		s.tokenMu.RLock()
		if s.token != "" && time.Now().Add(smspoolTokenLeeway).Before(s.tokenExpiry) {
			token := s.token
			s.tokenMu.RUnlock()
			return token, nil
		}
		s.tokenMu.RUnlock()
	}

	s.tokenMu.Lock()
	defer s.tokenMu.Unlock()

	// Another goroutine may have refreshed while we waited for the lock.
	if !force && s.token != "" && time.Now().Add(smspoolTokenLeeway).Before(s.tokenExpiry) {
		return s.token, nil
	}

	if s.cfg.Secret == "" {
		return "", errors.New("SMSPOOL_API_SECRET_KEY is not configured")
	}

	payload, err := json.Marshal(map[string]string{"secret_token": s.cfg.Secret})
	if err != nil {
		return "", fmt.Errorf("marshal smspool auth payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.AuthURL, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create smspool auth request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("execute smspool auth request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read smspool auth response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("smspool auth failed: status %d, body: %s", resp.StatusCode, string(body))
	}

	var authResp smspoolAuthResponse
	if err := json.Unmarshal(body, &authResp); err != nil {
		return "", fmt.Errorf("unmarshal smspool auth response: %w", err)
	}

	if authResp.Data.AccessToken == "" {
		return "", errors.New("smspool auth response missing access_token")
	}

	s.token = authResp.Data.AccessToken
	if authResp.Data.ExpiresIn > 0 {
		s.tokenExpiry = time.Now().Add(time.Duration(authResp.Data.ExpiresIn) * time.Second)
	} else {
		s.tokenExpiry = time.Now().Add(5 * time.Minute)
	}

	return s.token, nil
}

type smspoolRequest struct {
	method string
	path   string
	query  map[string]string
	body   any
}

// doRequest performs an authenticated vendor call, retrying once on 401.
func (s *SMSPoolClient) doRequest(ctx context.Context, opts smspoolRequest, out any) error {
	token, err := s.getToken(ctx, false)
	if err != nil {
		return err
	}

	status, body, err := s.doOnce(ctx, opts, token)
	if err != nil {
		return err
	}

	if status == http.StatusUnauthorized {
		// Token likely expired; refresh and retry once.
		token, err = s.getToken(ctx, true)
		if err != nil {
			return err
		}
		status, body, err = s.doOnce(ctx, opts, token)
		if err != nil {
			return err
		}
	}

	if status < 200 || status >= 300 {
		return s.translateError(status, body)
	}

	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("unmarshal smspool response: %w", err)
		}
	}
	return nil
}

func (s *SMSPoolClient) doOnce(ctx context.Context, opts smspoolRequest, token string) (int, []byte, error) {
	target, err := url.Parse(s.cfg.BaseURL + "/" + strings.TrimLeft(opts.path, "/"))
	if err != nil {
		return 0, nil, fmt.Errorf("parse smspool URL: %w", err)
	}

	if len(opts.query) > 0 {
		values := target.Query()
		for k, v := range opts.query {
			values.Set(k, v)
		}
		target.RawQuery = values.Encode()
	}

	var bodyReader io.Reader
	if opts.body != nil {
		payload, err := json.Marshal(opts.body)
		if err != nil {
			return 0, nil, fmt.Errorf("marshal smspool request body: %w", err)
		}
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, opts.method, target.String(), bodyReader)
	if err != nil {
		return 0, nil, fmt.Errorf("create smspool request: %w", err)
	}
	if opts.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("execute smspool request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("read smspool response: %w", err)
	}

	return resp.StatusCode, body, nil
}

// translateError lifts the vendor's error payload into a structured
// ProviderError so callers branch on codes, never message text.
func (s *SMSPoolClient) translateError(status int, body []byte) error {
	var payload smspoolErrorPayload
	_ = json.Unmarshal(body, &payload)

	message := payload.Error.Message
	if message == "" {
		message = fmt.Sprintf("smspool returned status %d", status)
	}

	code := CodeInvalidRequest
	switch payload.Error.Code {
	case "whitelisted_only", "service_not_whitelisted":
		code = CodeWhitelistDenied
	case "no_money", "insufficient_balance":
		code = CodeProviderBalance
	default:
		if status >= 500 {
			code = CodeServiceUnavailable
		}
	}

	return &ProviderError{Provider: s.ID(), Code: code, Message: message}
}

type smspoolCountry struct {
	CountryCode string `json:"country_code"`
	CountryName string `json:"country_name"`
	Flag        string `json:"flag"`
}

// Countries implements Provider.
func (s *SMSPoolClient) Countries(ctx context.Context) ([]Country, error) {
	var resp struct {
		Data []smspoolCountry `json:"data"`
	}
	err := s.doRequest(ctx, smspoolRequest{method: http.MethodGet, path: "countries"}, &resp)
	if err != nil {
		return nil, err
	}

	countries := make([]Country, 0, len(resp.Data))
	for _, c := range resp.Data {
		countries = append(countries, Country{
			Code:     c.CountryCode,
			Name:     c.CountryName,
			Flag:     c.Flag,
			Provider: s.ID(),
		})
	}
	return countries, nil
}

type smspoolService struct {
	ServiceCode string  `json:"service_code"`
	ServiceName string  `json:"service_name"`
	Price       float64 `json:"price"`
	Stock       int     `json:"stock"`
}

// Services implements Provider.
func (s *SMSPoolClient) Services(ctx context.Context, countryCode string) ([]Service, error) {
	var resp struct {
		Data []smspoolService `json:"data"`
	}
	err := s.doRequest(ctx, smspoolRequest{
		method: http.MethodGet,
		path:   "services",
		query:  map[string]string{"country": countryCode},
	}, &resp)
	if err != nil {
		return nil, err
	}

	services := make([]Service, 0, len(resp.Data))
	for _, raw := range resp.Data {
		services = append(services, Service{
			ServiceKey:          CanonicalServiceKey(raw.ServiceName),
			ServiceID:           raw.ServiceCode,
			DisplayName:         collapseWhitespace(raw.ServiceName),
			Cost:                raw.Price,
			AvailableCount:      raw.Stock,
			Provider:            s.ID(),
			ProviderDisplayName: s.DisplayName(),
		})
	}
	return services, nil
}

// CreateOrder implements Provider.
func (s *SMSPoolClient) CreateOrder(ctx context.Context, countryCode, serviceID string) (*ProviderOrder, error) {
	var resp struct {
		Data struct {
			OrderID     string  `json:"order_id"`
			PhoneNumber string  `json:"phone_number"`
			Price       float64 `json:"price"`
			Status      string  `json:"status"`
		} `json:"data"`
	}
	err := s.doRequest(ctx, smspoolRequest{
		method: http.MethodPost,
		path:   "purchase",
		body: map[string]string{
			"country": countryCode,
			"service": serviceID,
		},
	}, &resp)
	if err != nil {
		return nil, err
	}

	if resp.Data.OrderID == "" {
		return nil, &ProviderError{
			Provider: s.ID(),
			Code:     CodeServiceUnavailable,
			Message:  "purchase response missing order_id",
		}
	}

	return &ProviderOrder{
		OrderID:     resp.Data.OrderID,
		PhoneNumber: resp.Data.PhoneNumber,
		Cost:        resp.Data.Price,
		Status:      resp.Data.Status,
	}, nil
}

// CheckOrder implements Provider.
func (s *SMSPoolClient) CheckOrder(ctx context.Context, providerOrderID string) (*OrderCheck, error) {
	var resp struct {
		Data struct {
			SMSCode string `json:"sms_code"`
			Status  string `json:"status"`
		} `json:"data"`
	}
	err := s.doRequest(ctx, smspoolRequest{
		method: http.MethodPost,
		path:   "status",
		body:   map[string]string{"order_id": providerOrderID},
	}, &resp)
	if err != nil {
		return nil, err
	}

	return &OrderCheck{Code: resp.Data.SMSCode, Status: resp.Data.Status}, nil
}

// CancelOrder implements Provider.
func (s *SMSPoolClient) CancelOrder(ctx context.Context, providerOrderID string) error {
	return s.doRequest(ctx, smspoolRequest{
		method: http.MethodPost,
		path:   "cancel",
		body:   map[string]string{"order_id": providerOrderID},
	}, nil)
}
