// Package events emits outbound engine events to an external bus. The
// engines only publish; nothing is consumed.
package events

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/partsbid/matching-engine/internal/config"
)

// EventType identifies the kind of engine event.
type EventType string

const (
	EventWaveExecuted        EventType = "escalation.wave_executed"
	EventEvaluationCompleted EventType = "evaluation.completed"
	EventEvaluationTimeout   EventType = "evaluation.timeout"
	EventOfferExpired        EventType = "offer.expired"
)

// Event is one outbound engine event.
type Event struct {
	Type      EventType      `json:"type"`
	RequestID string         `json:"request_id"`
	Payload   map[string]any `json:"payload,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Publisher delivers events to the external bus. Delivery failures are
// logged by callers, never fatal to an engine pass.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// WebhookPublisher POSTs events as JSON to a configured webhook.
type WebhookPublisher struct {
	cfg    config.EventsConfig
	client *http.Client
}

// NewWebhookPublisher creates a WebhookPublisher.
func NewWebhookPublisher(cfg config.EventsConfig) *WebhookPublisher {
	return &WebhookPublisher{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Publish sends the event. With no webhook configured it logs and drops.
func (p *WebhookPublisher) Publish(ctx context.Context, ev Event) error {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}

	if p.cfg.WebhookURL == "" {
		zap.L().Debug("event webhook not configured, dropping event",
			zap.String("type", string(ev.Type)),
			zap.String("request_id", ev.RequestID),
		)
		return nil
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return eris.Wrap(err, "events: marshal event")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return eris.Wrap(err, "events: create request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return eris.Wrapf(err, "events: post %s", ev.Type)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 300 {
		return eris.Errorf("events: webhook returned %d for %s", resp.StatusCode, ev.Type)
	}
	return nil
}

// Nop is a Publisher that discards events. Used in tests and when running
// one-shot CLI commands without a bus.
type Nop struct{}

// Publish discards the event.
func (Nop) Publish(context.Context, Event) error { return nil }
