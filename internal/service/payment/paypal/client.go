// Package paypal — клиент PayPal Orders API v2.
package paypal

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
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/vladislavdragonenkov/straycare/internal/domain"
	"github.com/vladislavdragonenkov/straycare/internal/version"
)

const (
	// SandboxBaseURL указывает на sandbox-окружение PayPal.
	SandboxBaseURL = "https://api-m.sandbox.paypal.com"
	// LiveBaseURL указывает на боевое окружение PayPal.
	LiveBaseURL = "https://api-m.paypal.com"

	defaultTimeout  = 15 * time.Second
	maxResponseSize = 1 << 20
)

// Config задаёт подключение к PayPal.
type Config struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	// Timeout ограничивает одну операцию целиком: получение токена и сам вызов.
	Timeout   time.Duration
	BrandName string
	ReturnURL string
	CancelURL string
}

// Option настраивает Client.
type Option func(*Client)

// WithHTTPClient задаёт http-клиент (используется в тестах).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithLogger задаёт logger.
func WithLogger(logger *log.Entry) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// Client реализует domain.PaymentProvider поверх PayPal REST API.
// Токен запрашивается заново для каждой операции.
type Client struct {
	cfg        Config
	baseURL    *url.URL
	tokens     clientcredentials.Config
	httpClient *http.Client
	logger     *log.Entry
}

// NewClient проверяет конфигурацию и создаёт клиента.
func NewClient(cfg Config, options ...Option) (*Client, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, errors.New("paypal client id and secret are required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = SandboxBaseURL
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid paypal base url %q", cfg.BaseURL)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.BrandName == "" {
		cfg.BrandName = "Stray Care"
	}

	c := &Client{
		cfg:     cfg,
		baseURL: base,
		tokens: clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     base.String() + "/v1/oauth2/token",
			AuthStyle:    oauth2.AuthStyleInHeader,
		},
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
	for _, option := range options {
		option(c)
	}
	if c.logger == nil {
		c.logger = log.WithField("component", "paypal-client")
	}
	return c, nil
}

// AccessToken запрашивает новый токен client_credentials.
// Временный сбой (сеть или 5xx) повторяется один раз.
func (c *Client) AccessToken(ctx context.Context) (string, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)

	var lastErr error
	for attempt := 1; attempt <= 2; attempt++ {
		token, err := c.tokens.Token(ctx)
		if err == nil {
			return token.AccessToken, nil
		}
		lastErr = err
		if !tokenErrorTransient(ctx, err) {
			break
		}
		if attempt == 1 {
			c.logger.WithError(err).Warn("paypal token request failed, retrying once")
		}
	}
	return "", tokenError(lastErr)
}

func tokenErrorTransient(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	var rerr *oauth2.RetrieveError
	if errors.As(err, &rerr) {
		return rerr.Response != nil && rerr.Response.StatusCode >= http.StatusInternalServerError
	}
	return true
}

func tokenError(err error) error {
	perr := &domain.PaymentProviderError{Op: "access token", Err: err}
	var rerr *oauth2.RetrieveError
	if errors.As(err, &rerr) {
		if rerr.Response != nil {
			perr.StatusCode = rerr.Response.StatusCode
		}
		perr.Name = rerr.ErrorCode
		perr.Message = rerr.ErrorDescription
	}
	perr.Timeout = errors.Is(err, context.DeadlineExceeded)
	return perr
}

type money struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

type createOrderRequest struct {
	Intent             string             `json:"intent"`
	PurchaseUnits      []purchaseUnit     `json:"purchase_units"`
	ApplicationContext applicationContext `json:"application_context"`
}

type purchaseUnit struct {
	Amount      money  `json:"amount"`
	Description string `json:"description,omitempty"`
}

type applicationContext struct {
	BrandName  string `json:"brand_name,omitempty"`
	UserAction string `json:"user_action"`
	Locale     string `json:"locale,omitempty"`
	ReturnURL  string `json:"return_url,omitempty"`
	CancelURL  string `json:"cancel_url,omitempty"`
}

type orderResponse struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	PurchaseUnits []struct {
		Payments struct {
			Captures []struct {
				ID     string `json:"id"`
				Status string `json:"status"`
				Amount money  `json:"amount"`
			} `json:"captures"`
		} `json:"payments"`
	} `json:"purchase_units"`
}

type errorResponse struct {
	Name    string `json:"name"`
	Message string `json:"message"`
	DebugID string `json:"debug_id"`
	Details []struct {
		Issue       string `json:"issue"`
		Description string `json:"description"`
	} `json:"details"`
}

// CreateOrder создаёт заказ с intent CAPTURE на сумму total.
func (c *Client) CreateOrder(ctx context.Context, total decimal.Decimal, currency, description string) (domain.ProviderOrder, error) {
	const op = "create order"

	body := createOrderRequest{
		Intent: "CAPTURE",
		PurchaseUnits: []purchaseUnit{{
			Amount:      money{CurrencyCode: currency, Value: total.StringFixed(2)},
			Description: description,
		}},
		ApplicationContext: applicationContext{
			BrandName:  c.cfg.BrandName,
			UserAction: "PAY_NOW",
			Locale:     "en-US",
			ReturnURL:  c.cfg.ReturnURL,
			CancelURL:  c.cfg.CancelURL,
		},
	}

	raw, err := c.do(ctx, op, "/v2/checkout/orders", body)
	if err != nil {
		return domain.ProviderOrder{}, err
	}

	var resp orderResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return domain.ProviderOrder{}, &domain.PaymentProviderError{Op: op, Message: "malformed provider response", Err: err}
	}
	if resp.ID == "" {
		return domain.ProviderOrder{}, &domain.PaymentProviderError{Op: op, Message: "provider did not return an order id"}
	}
	return domain.ProviderOrder{ID: resp.ID, Status: resp.Status, Payload: raw}, nil
}

// CaptureOrder списывает деньги по заказу orderID.
func (c *Client) CaptureOrder(ctx context.Context, orderID string) (domain.ProviderCapture, error) {
	const op = "capture order"

	raw, err := c.do(ctx, op, "/v2/checkout/orders/"+url.PathEscape(orderID)+"/capture", nil)
	if err != nil {
		return domain.ProviderCapture{}, err
	}

	var resp orderResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return domain.ProviderCapture{}, &domain.PaymentProviderError{Op: op, Message: "malformed provider response", Err: err}
	}

	capture := domain.ProviderCapture{OrderID: resp.ID, Status: resp.Status, Payload: raw}
	if capture.OrderID == "" {
		capture.OrderID = orderID
	}
	if len(resp.PurchaseUnits) > 0 && len(resp.PurchaseUnits[0].Payments.Captures) > 0 {
		first := resp.PurchaseUnits[0].Payments.Captures[0]
		capture.CaptureID = first.ID
		capture.Currency = first.Amount.CurrencyCode
		if first.Amount.Value != "" {
			amount, err := decimal.NewFromString(first.Amount.Value)
			if err != nil {
				return domain.ProviderCapture{}, &domain.PaymentProviderError{Op: op, Message: "malformed capture amount", Err: err}
			}
			capture.Amount = amount
		}
	}
	if capture.Completed() && capture.CaptureID == "" {
		return domain.ProviderCapture{}, &domain.PaymentProviderError{Op: op, Message: "completed order without capture"}
	}
	return capture, nil
}

// do выполняет POST с новым токеном в пределах таймаута операции.
func (c *Client) do(ctx context.Context, op, path string, payload any) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	token, err := c.AccessToken(ctx)
	if err != nil {
		return nil, err
	}

	var body io.Reader = http.NoBody
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, &domain.PaymentProviderError{Op: op, Err: fmt.Errorf("encode request: %w", err)}
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL.String()+path, body)
	if err != nil {
		return nil, &domain.PaymentProviderError{Op: op, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("User-Agent", version.UserAgent())

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &domain.PaymentProviderError{
			Op:      op,
			Timeout: errors.Is(err, context.DeadlineExceeded) || isTimeout(err),
			Err:     err,
		}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, &domain.PaymentProviderError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("read response: %w", err)}
	}

	logger := c.logger.WithFields(log.Fields{
		"operation":   op,
		"status":      resp.StatusCode,
		"duration_ms": time.Since(start).Milliseconds(),
		"debug_id":    resp.Header.Get("Paypal-Debug-Id"),
	})
	if resp.StatusCode >= http.StatusBadRequest {
		perr := decodeError(op, resp.StatusCode, raw)
		logger.WithError(perr).Warn("paypal request rejected")
		return nil, perr
	}
	logger.Debug("paypal request completed")
	return raw, nil
}

func decodeError(op string, status int, raw []byte) *domain.PaymentProviderError {
	perr := &domain.PaymentProviderError{Op: op, StatusCode: status}
	var body errorResponse
	if err := json.Unmarshal(raw, &body); err != nil || (body.Name == "" && body.Message == "") {
		perr.Message = http.StatusText(status)
		return perr
	}
	perr.Name = body.Name
	perr.Message = body.Message
	if len(body.Details) > 0 {
		d := body.Details[0]
		if d.Issue != "" {
			perr.Name = d.Issue
		}
		if d.Description != "" {
			perr.Message = d.Description
		}
	}
	return perr
}

func isTimeout(err error) bool {
	var te interface{ Timeout() bool }
	return errors.As(err, &te) && te.Timeout()
}

var _ domain.PaymentProvider = (*Client)(nil)
