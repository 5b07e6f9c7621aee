package escalation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/partsbid/matching-engine/internal/config"
	"github.com/partsbid/matching-engine/internal/model"
)

// HTTPGateway delivers notifications by POSTing to the notification
// service, one endpoint per channel. Without a configured base URL it logs
// and drops, so escalation stays testable offline.
type HTTPGateway struct {
	cfg    config.NotifyConfig
	client *http.Client
}

// NewHTTPGateway creates an HTTPGateway.
func NewHTTPGateway(cfg config.NotifyConfig) *HTTPGateway {
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPGateway{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

// Send notifies one advisor through the given channel.
func (g *HTTPGateway) Send(ctx context.Context, advisorID string, channel model.Channel, payload Payload) error {
	if g.cfg.BaseURL == "" {
		zap.L().Debug("notification gateway not configured, dropping send",
			zap.String("advisor_id", advisorID),
			zap.String("channel", string(channel)),
			zap.String("request_id", payload.RequestID),
		)
		return nil
	}

	body, err := json.Marshal(map[string]any{
		"advisor_id": advisorID,
		"request_id": payload.RequestID,
		"line_count": payload.LineCount,
		"respond_by": payload.RespondBy,
	})
	if err != nil {
		return eris.Wrap(err, "notify: marshal payload")
	}

	url := fmt.Sprintf("%s/notify/%s", g.cfg.BaseURL, channel)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return eris.Wrap(err, "notify: create request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return eris.Wrapf(err, "notify: send %s to %s", channel, advisorID)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 300 {
		return eris.Errorf("notify: gateway returned %d for advisor %s", resp.StatusCode, advisorID)
	}
	return nil
}
