package asaas

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ecclesiahq/ecclesia/internal/config"
	gatewaydomain "github.com/ecclesiahq/ecclesia/internal/gateway/domain"
	"github.com/ecclesiahq/ecclesia/internal/observability"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

const (
	defaultBaseURL = "https://api.asaas.com/v3"
	defaultTimeout = 10 * time.Second

	genericErrorMessage = "Erro ao processar a requisição no gateway de pagamento"
)

// Client talks to the Asaas v3 REST API.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	metrics    *observability.Metrics
	log        *zap.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func NewClient(apiKey, baseURL string, timeout time.Duration, metrics *observability.Metrics, log *zap.Logger, opts ...Option) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = defaultBaseURL
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if log == nil {
		log = zap.NewNop()
	}
	c := &Client{
		apiKey:     strings.TrimSpace(apiKey),
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		metrics:    metrics,
		log:        log.Named("gateway.asaas"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Provide is the fx constructor.
func Provide(cfg config.Config, metrics *observability.Metrics, log *zap.Logger) gatewaydomain.Gateway {
	return NewClient(cfg.Asaas.APIKey, cfg.Asaas.BaseURL, cfg.Asaas.Timeout, metrics, log)
}

type customerRequest struct {
	Name              string `json:"name"`
	Email             string `json:"email"`
	CpfCnpj           string `json:"cpfCnpj,omitempty"`
	MobilePhone       string `json:"mobilePhone,omitempty"`
	ExternalReference string `json:"externalReference,omitempty"`
}

type listResponse[T any] struct {
	Data       []T  `json:"data"`
	TotalCount int  `json:"totalCount"`
	HasMore    bool `json:"hasMore"`
}

func (c *Client) CreateCustomer(ctx context.Context, input gatewaydomain.CustomerInput) (*gatewaydomain.Customer, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))

	var existing listResponse[gatewaydomain.Customer]
	query := url.Values{"email": {email}}
	if err := c.do(ctx, "find_customer", http.MethodGet, "/customers?"+query.Encode(), nil, &existing); err != nil {
		return nil, err
	}
	if len(existing.Data) > 0 {
		c.log.Debug("reusing existing customer", zap.String("customer_id", existing.Data[0].ID))
		return &existing.Data[0], nil
	}

	body := customerRequest{
		Name:              strings.TrimSpace(input.Name),
		Email:             email,
		CpfCnpj:           input.TaxID,
		MobilePhone:       strings.TrimSpace(input.Phone),
		ExternalReference: input.ExternalReference,
	}
	var created gatewaydomain.Customer
	if err := c.do(ctx, "create_customer", http.MethodPost, "/customers", body, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

type paymentLinkRequest struct {
	Name              string                 `json:"name"`
	Description       string                 `json:"description,omitempty"`
	Value             float64                `json:"value"`
	BillingType       string                 `json:"billingType"`
	ChargeType        string                 `json:"chargeType"`
	SubscriptionCycle string                 `json:"subscriptionCycle"`
	DueDateLimitDays  int                    `json:"dueDateLimitDays"`
	ExternalReference string                 `json:"externalReference,omitempty"`
	Callback          *paymentLinkCallbackIn `json:"callback,omitempty"`
}

type paymentLinkCallbackIn struct {
	SuccessURL   string `json:"successUrl"`
	AutoRedirect bool   `json:"autoRedirect"`
}

func (c *Client) CreatePaymentLink(ctx context.Context, input gatewaydomain.PaymentLinkInput) (*gatewaydomain.PaymentLink, error) {
	body := paymentLinkRequest{
		Name:              input.Name,
		Description:       input.Description,
		Value:             input.Value,
		BillingType:       string(gatewaydomain.BillingTypeUndefined),
		ChargeType:        "RECURRENT",
		SubscriptionCycle: "MONTHLY",
		DueDateLimitDays:  7,
		ExternalReference: input.ExternalReference,
	}
	if input.SuccessURL != "" {
		body.Callback = &paymentLinkCallbackIn{SuccessURL: input.SuccessURL, AutoRedirect: true}
	}

	var link gatewaydomain.PaymentLink
	if err := c.do(ctx, "create_payment_link", http.MethodPost, "/paymentLinks", body, &link); err != nil {
		return nil, err
	}
	return &link, nil
}

type subscriptionRequest struct {
	Customer             string                              `json:"customer"`
	BillingType          gatewaydomain.BillingType           `json:"billingType"`
	Value                float64                             `json:"value"`
	NextDueDate          string                              `json:"nextDueDate"`
	Cycle                string                              `json:"cycle"`
	Description          string                              `json:"description,omitempty"`
	ExternalReference    string                              `json:"externalReference,omitempty"`
	CreditCard           *gatewaydomain.CreditCard           `json:"creditCard,omitempty"`
	CreditCardHolderInfo *gatewaydomain.CreditCardHolderInfo `json:"creditCardHolderInfo,omitempty"`
}

func (c *Client) CreateSubscription(ctx context.Context, input gatewaydomain.SubscriptionInput) (*gatewaydomain.Subscription, error) {
	body := subscriptionRequest{
		Customer:          input.CustomerID,
		BillingType:       input.BillingType,
		Value:             input.Value,
		NextDueDate:       input.NextDueDate,
		Cycle:             "MONTHLY",
		Description:       input.Description,
		ExternalReference: input.ExternalReference,
	}
	if input.BillingType == gatewaydomain.BillingTypeCreditCard {
		body.CreditCard = input.CreditCard
		body.CreditCardHolderInfo = input.HolderInfo
	}

	var sub gatewaydomain.Subscription
	if err := c.do(ctx, "create_subscription", http.MethodPost, "/subscriptions", body, &sub); err != nil {
		return nil, err
	}
	return &sub, nil
}

type errorResponse struct {
	Errors []struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"errors"`
}

func (c *Client) do(ctx context.Context, op, method, path string, body any, out any) (err error) {
	if c.apiKey == "" {
		return gatewaydomain.ErrMissingCredentials
	}

	ctx, span := observability.Tracer().Start(ctx, "asaas."+op)
	defer span.End()
	span.SetAttributes(attribute.String("http.method", method), attribute.String("asaas.path", path))

	start := time.Now()
	status := 0
	defer func() {
		c.observe(op, status, time.Since(start))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("access_token", c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			status = http.StatusGatewayTimeout
			c.log.Warn("asaas request timed out", zap.String("operation", op))
			return &gatewaydomain.Error{Status: http.StatusGatewayTimeout, Message: "Tempo esgotado ao contatar o gateway de pagamento"}
		}
		status = http.StatusBadGateway
		c.log.Warn("asaas request failed", zap.String("operation", op), zap.Error(err))
		return &gatewaydomain.Error{Status: http.StatusBadGateway, Message: genericErrorMessage}
	}
	defer resp.Body.Close()
	status = resp.StatusCode
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		gwErr := &gatewaydomain.Error{Status: resp.StatusCode, Message: genericErrorMessage}
		var parsed errorResponse
		if decodeErr := json.NewDecoder(resp.Body).Decode(&parsed); decodeErr == nil && len(parsed.Errors) > 0 {
			if d := strings.TrimSpace(parsed.Errors[0].Description); d != "" {
				gwErr.Message = d
			}
			gwErr.Code = parsed.Errors[0].Code
		}
		c.log.Warn("asaas rejected request",
			zap.String("operation", op),
			zap.Int("status", resp.StatusCode),
			zap.String("code", gwErr.Code),
		)
		return gwErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode asaas %s response: %w", op, err)
	}
	return nil
}

func (c *Client) observe(op string, status int, elapsed time.Duration) {
	if c.metrics == nil {
		return
	}
	c.metrics.GatewayRequests.WithLabelValues(op, strconv.Itoa(status)).Observe(elapsed.Seconds())
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
