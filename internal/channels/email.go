// Package channels implements the delivery provider clients behind the
// notification ports: templated email, SMS and mobile push. Each client is a
// thin JSON-over-HTTP wrapper around one provider endpoint.
package channels

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const defaultTimeout = 10 * time.Second

// EmailConfig holds the transactional mail provider settings
type EmailConfig struct {
	BaseURL     string
	APIKey      string
	FromAddress string
	FromName    string
	Timeout     time.Duration
}

// EmailClient sends templated emails through the mail provider's HTTP API
type EmailClient struct {
	cfg        EmailConfig
	httpClient *http.Client
	logger     *slog.Logger
}

// NewEmailClient creates a new email client
func NewEmailClient(cfg EmailConfig, logger *slog.Logger) *EmailClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &EmailClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

type emailParty struct {
	Address string `json:"address"`
	Name    string `json:"name,omitempty"`
}

type emailRequest struct {
	From      emailParty     `json:"from"`
	To        emailParty     `json:"to"`
	Subject   string         `json:"subject"`
	Template  string         `json:"template"`
	Variables map[string]any `json:"variables,omitempty"`
}

// Send delivers one templated email. templateKey selects the provider-side
// template; data fills its variables.
func (c *EmailClient) Send(ctx context.Context, to, name, subject, templateKey string, data map[string]any) error {
	req := emailRequest{
		From:      emailParty{Address: c.cfg.FromAddress, Name: c.cfg.FromName},
		To:        emailParty{Address: to, Name: name},
		Subject:   subject,
		Template:  templateKey,
		Variables: data,
	}

	if err := c.post(ctx, "/v1/messages", req, nil); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	c.logger.Debug("Email sent",
		slog.String("to", to),
		slog.String("template", templateKey),
	)

	return nil
}

func (c *EmailClient) post(ctx context.Context, path string, body, out any) error {
	return postJSON(ctx, c.httpClient, c.cfg.BaseURL+path, c.cfg.APIKey, body, out)
}

// postJSON issues an authenticated POST with a JSON body and optionally
// decodes the response into out. Shared by all three provider clients.
func postJSON(ctx context.Context, client *http.Client, url, apiKey string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("provider returned status %d: %s", resp.StatusCode, string(snippet))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}
