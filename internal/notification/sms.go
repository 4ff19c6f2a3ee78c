package notification

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aristath/capitol/internal/domain"
)

// maxSMSLength keeps a message within a few concatenated segments.
const maxSMSLength = 480

// SMSConfig holds the webhook settings. The request is a Twilio-compatible form post.
type SMSConfig struct {
	WebhookURL string
	AccountID  string
	AuthToken  string
	From       string
	To         string
}

// SMSChannel posts recommendations to an SMS gateway webhook.
type SMSChannel struct {
	cfg        SMSConfig
	httpClient *http.Client
}

// NewSMSChannel creates the SMS channel.
func NewSMSChannel(cfg SMSConfig) *SMSChannel {
	return &SMSChannel{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *SMSChannel) Name() string { return "sms" }

func (c *SMSChannel) Deliver(ctx context.Context, rec domain.Recommendation) error {
	text := PlainText(rec)
	if len(text) > maxSMSLength {
		text = text[:maxSMSLength-3] + "..."
	}

	form := url.Values{}
	form.Set("To", c.cfg.To)
	form.Set("From", c.cfg.From)
	form.Set("Body", text)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.WebhookURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to build sms request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if c.cfg.AccountID != "" {
		req.SetBasicAuth(c.cfg.AccountID, c.cfg.AuthToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sms webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("sms webhook returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}
