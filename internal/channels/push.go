package channels

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/dtolk/booking-be/internal/booking/domain"
)

// PushConfig holds the push gateway settings
type PushConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// PushClient sends mobile push notifications through the push gateway's
// HTTP API
type PushClient struct {
	cfg        PushConfig
	httpClient *http.Client
	logger     *slog.Logger
}

// NewPushClient creates a new push client
func NewPushClient(cfg PushConfig, logger *slog.Logger) *PushClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &PushClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

type pushRequest struct {
	UserIDs []string          `json:"user_ids"`
	JobID   string            `json:"job_id"`
	Data    map[string]string `json:"data"`
	Message string            `json:"message"`
	Delayed bool              `json:"delayed"`
}

// Send delivers a push notification batch. delayed=true asks the gateway to
// hold the batch until the next business-hours window.
func (c *PushClient) Send(ctx context.Context, recipients []domain.UserMeta, jobID string, payload map[string]string, text string, delayed bool) error {
	if len(recipients) == 0 {
		return nil
	}

	ids := make([]string, 0, len(recipients))
	for _, r := range recipients {
		ids = append(ids, r.UserID)
	}

	req := pushRequest{
		UserIDs: ids,
		JobID:   jobID,
		Data:    payload,
		Message: text,
		Delayed: delayed,
	}

	if err := postJSON(ctx, c.httpClient, c.cfg.BaseURL+"/v1/push", c.cfg.APIKey, req, nil); err != nil {
		return fmt.Errorf("failed to send push batch: %w", err)
	}

	c.logger.Debug("Push batch sent",
		slog.String("job_id", jobID),
		slog.Int("recipients", len(ids)),
		slog.Bool("delayed", delayed),
	)

	return nil
}
