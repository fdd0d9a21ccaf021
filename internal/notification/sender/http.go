package sender

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/ecclesiahq/ecclesia/internal/config"
	notificationdomain "github.com/ecclesiahq/ecclesia/internal/notification/domain"
	"github.com/ecclesiahq/ecclesia/internal/observability"
	"go.uber.org/zap"
)

// HTTPSender posts messages to the email dispatch endpoint.
type HTTPSender struct {
	endpoint string
	token    string
	client   *http.Client
	metrics  *observability.Metrics
	log      *zap.Logger
}

func NewHTTPSender(endpoint, token string, timeout time.Duration, metrics *observability.Metrics, log *zap.Logger) *HTTPSender {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPSender{
		endpoint: endpoint,
		token:    token,
		client:   &http.Client{Timeout: timeout},
		metrics:  metrics,
		log:      log.Named("notification.sender"),
	}
}

func Provide(cfg config.Config, metrics *observability.Metrics, log *zap.Logger) *HTTPSender {
	return NewHTTPSender(cfg.Notify.Endpoint, cfg.Notify.Token, cfg.Notify.Timeout, metrics, log)
}

// Notify delivers inline.
func (s *HTTPSender) Notify(ctx context.Context, msg notificationdomain.Message) error {
	return s.Send(ctx, msg)
}

func (s *HTTPSender) Send(ctx context.Context, msg notificationdomain.Message) (err error) {
	defer func() {
		outcome := "sent"
		if err != nil {
			outcome = "failed"
		}
		if s.metrics != nil {
			s.metrics.Notifications.WithLabelValues(string(msg.Type), outcome).Inc()
		}
	}()

	if s.endpoint == "" {
		return notificationdomain.ErrNotConfigured
	}

	body, err := json.Marshal(msg.Payload())
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", msg.ID)
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("notification dispatch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("notification_dispatch_error: status=%d", resp.StatusCode)
	}

	s.log.Debug("notification sent",
		zap.String("id", msg.ID),
		zap.String("type", string(msg.Type)),
	)
	return nil
}
