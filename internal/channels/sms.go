package channels

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// SMSConfig holds the SMS gateway settings
type SMSConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// SMSClient sends text messages through the SMS gateway's HTTP API
type SMSClient struct {
	cfg        SMSConfig
	httpClient *http.Client
	logger     *slog.Logger
}

// NewSMSClient creates a new SMS client
func NewSMSClient(cfg SMSConfig, logger *slog.Logger) *SMSClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &SMSClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

type smsRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
	Body string `json:"body"`
}

type smsResponse struct {
	Status string `json:"status"`
}

// Send delivers one text message and returns the gateway's delivery status.
func (c *SMSClient) Send(ctx context.Context, from, to, body string) (string, error) {
	req := smsRequest{From: from, To: to, Body: body}

	var resp smsResponse
	if err := postJSON(ctx, c.httpClient, c.cfg.BaseURL+"/v1/sms", c.cfg.APIKey, req, &resp); err != nil {
		return "", fmt.Errorf("failed to send sms: %w", err)
	}

	c.logger.Debug("SMS sent",
		slog.String("to", to),
		slog.String("status", resp.Status),
	)

	return resp.Status, nil
}
