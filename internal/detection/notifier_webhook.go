// Vigil - Behavioral Anti-Cheat Detection Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package detection

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/tomtom215/vigil/internal/logging"
	"github.com/tomtom215/vigil/internal/metrics"
)

// ErrRateLimited is returned when a notifier drops an alert to stay within
// its rate limit. Notifiers never wait for a token.
var ErrRateLimited = errors.New("notifier rate limit exceeded")

// NotifierConfig holds the delivery settings shared by HTTP notifiers.
type NotifierConfig struct {
	URL     string        `koanf:"url" validate:"omitempty,url"`
	Enabled bool          `koanf:"enabled"`
	Timeout time.Duration `koanf:"timeout" validate:"gte=0"`

	// RateLimit is the sustained alerts per second; Burst the bucket size.
	RateLimit float64 `koanf:"rate_limit" validate:"gte=0"`
	Burst     int     `koanf:"burst" validate:"gte=0"`

	// The breaker opens after BreakerFailures consecutive failures and
	// half-opens after BreakerTimeout.
	BreakerFailures uint32        `koanf:"breaker_failures" validate:"gte=0"`
	BreakerTimeout  time.Duration `koanf:"breaker_timeout" validate:"gte=0"`
}

// WebhookConfig configures the generic webhook notifier.
type WebhookConfig struct {
	NotifierConfig `koanf:",squash,flatten"`

	// Headers are added to every request (e.g. Authorization).
	Headers map[string]string `koanf:"headers"`
}

// WebhookPayload is the JSON body posted to the webhook endpoint.
type WebhookPayload struct {
	Title     string    `json:"title"`
	Subject   string    `json:"subject"`
	Reason    string    `json:"reason"`
	Severity  int       `json:"severity"`
	Timestamp time.Time `json:"timestamp"`
	Channel   Channel   `json:"channel"`
	Action    Action    `json:"action"`
	State     State     `json:"state"`
	Trust     float64   `json:"trust"`
	Details   Reason    `json:"details"`
	AlertID   string    `json:"alert_id"`
	Source    string    `json:"source"`
}

// httpNotifier posts JSON through a circuit breaker and a dropping rate limiter.
type httpNotifier struct {
	name    string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[interface{}]
	limiter *rate.Limiter

	mu      sync.RWMutex
	url     string
	enabled bool
	headers map[string]string
}

func newHTTPNotifier(name string, cfg NotifierConfig, headers map[string]string) *httpNotifier {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = sendTimeout
	}
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	failures := cfg.BreakerFailures
	if failures == 0 {
		failures = 5
	}
	breakerTimeout := cfg.BreakerTimeout
	if breakerTimeout == 0 {
		breakerTimeout = 30 * time.Second
	}

	h := make(map[string]string, len(headers))
	for k, v := range headers {
		h[k] = v
	}

	return &httpNotifier{
		name:    name,
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(limit, burst),
		breaker: gobreaker.NewCircuitBreaker[interface{}](gobreaker.Settings{
			Name:        name,
			MaxRequests: 1,
			Timeout:     breakerTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= failures
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				metrics.SetCircuitBreakerState(name, to.String())
				logging.Warn().
					Str("sink", name).
					Str("from", from.String()).
					Str("to", to.String()).
					Msg("notifier circuit breaker state changed")
			},
		}),
		url:     cfg.URL,
		enabled: cfg.Enabled,
		headers: h,
	}
}

// Enabled returns whether the notifier is enabled and has a URL.
func (n *httpNotifier) Enabled() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.enabled && n.url != ""
}

// BreakerState returns the circuit breaker state name.
func (n *httpNotifier) BreakerState() string {
	return n.breaker.State().String()
}

// post sends body once. A disabled notifier is a no-op.
func (n *httpNotifier) post(ctx context.Context, body interface{}) error {
	n.mu.RLock()
	if !n.enabled || n.url == "" {
		n.mu.RUnlock()
		return nil
	}
	url := n.url
	headers := make(map[string]string, len(n.headers))
	for k, v := range n.headers {
		headers[k] = v
	}
	n.mu.RUnlock()

	if !n.limiter.Allow() {
		return fmt.Errorf("%s: %w", n.name, ErrRateLimited)
	}

	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", n.name, err)
	}

	_, err = n.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("failed to create %s request: %w", n.name, err)
		}
		req.Header.Set("Content-Type", "application/json")
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := n.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("failed to send %s request: %w", n.name, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 400 {
			return nil, fmt.Errorf("%s returned status %d", n.name, resp.StatusCode)
		}
		return nil, nil
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %s: %v", ErrSinkUnavailable, n.name, err)
	}
	return err
}

// WebhookNotifier posts alerts to a generic JSON webhook.
type WebhookNotifier struct {
	*httpNotifier
}

// NewWebhookNotifier creates a webhook notifier.
func NewWebhookNotifier(cfg WebhookConfig) *WebhookNotifier {
	return &WebhookNotifier{httpNotifier: newHTTPNotifier("webhook", cfg.NotifierConfig, cfg.Headers)}
}

// Name implements Sink.
func (n *WebhookNotifier) Name() string {
	return "webhook"
}

// Send implements Sink.
func (n *WebhookNotifier) Send(ctx context.Context, alert *Alert) error {
	return n.post(ctx, WebhookPayload{
		Title:     alert.Title,
		Subject:   alert.Subject.String(),
		Reason:    alert.Message,
		Severity:  alert.Severity,
		Timestamp: alert.Timestamp.UTC(),
		Channel:   alert.Channel,
		Action:    alert.Action,
		State:     alert.State,
		Trust:     alert.Trust,
		Details:   alert.Reason,
		AlertID:   alert.ID,
		Source:    "vigil",
	})
}
