package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/tphakala/birdalert-go/internal/errors"
	"github.com/tphakala/birdalert-go/internal/logging"
)

// DefaultBrevoEndpoint is the transactional email endpoint.
const DefaultBrevoEndpoint = "https://api.sendinblue.com/v3/smtp/email"

// BrevoConfig configures the transactional email dispatcher.
type BrevoConfig struct {
	APIKey      string
	SenderName  string
	SenderEmail string
	Endpoint    string
	Timeout     time.Duration
}

// BrevoMailer delivers messages through the Brevo (formerly SendInBlue)
// transactional email API.
type BrevoMailer struct {
	apiKey      string
	senderName  string
	senderEmail string
	endpoint    string
	httpClient  *http.Client
	log         *slog.Logger
}

// DeliveryResult reports the outcome for a single recipient. MessageID is
// the provider-assigned identifier, set only on success.
type DeliveryResult struct {
	Recipient string
	MessageID string
	Err       error
}

// NewBrevoMailer creates a mailer. The API key is validated by the caller's
// configuration pass, not here.
func NewBrevoMailer(cfg BrevoConfig) *BrevoMailer {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultBrevoEndpoint
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &BrevoMailer{
		apiKey:      cfg.APIKey,
		senderName:  cfg.SenderName,
		senderEmail: cfg.SenderEmail,
		endpoint:    cfg.Endpoint,
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		log:         logging.ForService("notify"),
	}
}

type brevoPayload struct {
	Sender      brevoAddress   `json:"sender"`
	To          []brevoAddress `json:"to"`
	Subject     string         `json:"subject"`
	HTMLContent string         `json:"htmlContent"`
	TextContent string         `json:"textContent,omitempty"`
}

type brevoAddress struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email"`
}

type brevoResponse struct {
	MessageID string `json:"messageId"`
	Code      string `json:"code"`
	Message   string `json:"message"`
}

// Send delivers the message to one recipient and returns the provider
// message ID.
func (m *BrevoMailer) Send(ctx context.Context, recipient, subject string, msg Message) (string, error) {
	body, err := json.Marshal(brevoPayload{
		Sender:      brevoAddress{Name: m.senderName, Email: m.senderEmail},
		To:          []brevoAddress{{Email: recipient}},
		Subject:     subject,
		HTMLContent: msg.HTML,
		TextContent: msg.Text,
	})
	if err != nil {
		return "", errors.Newf("failed to marshal email payload: %w", err).
			Category(errors.CategoryDelivery).
			Component("notify").
			Build()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", errors.Newf("failed to create email request: %w", err).
			Category(errors.CategoryNetwork).
			Component("notify").
			Build()
	}
	req.Header.Set("accept", "application/json")
	req.Header.Set("api-key", m.apiKey)
	req.Header.Set("content-type", "application/json")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return "", errors.Newf("email request failed: %w", err).
			Category(errors.CategoryNetwork).
			Context("recipient", recipient).
			Component("notify").
			Build()
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", errors.Newf("failed to read email response: %w", err).
			Category(errors.CategoryNetwork).
			Component("notify").
			Build()
	}

	var parsed brevoResponse
	_ = json.Unmarshal(respBody, &parsed)

	if resp.StatusCode != http.StatusCreated {
		m.log.Error("email delivery failed",
			"recipient", recipient,
			"status_code", resp.StatusCode,
			"provider_code", parsed.Code,
			"provider_message", parsed.Message)
		return "", errors.Newf("email delivery failed (status %d): %s", resp.StatusCode, parsed.Message).
			Category(errors.CategoryDelivery).
			Context("status_code", resp.StatusCode).
			Context("recipient", recipient).
			Component("notify").
			Build()
	}

	m.log.Info("email sent",
		"recipient", recipient,
		"message_id", parsed.MessageID)
	return parsed.MessageID, nil
}

// SendAll delivers the message to every recipient sequentially. One
// recipient's failure does not halt delivery to the rest. The returned
// error is nil when everyone received the message, a delivery-category
// error naming the failed recipients when only some did, and wraps the
// same when all deliveries failed.
func (m *BrevoMailer) SendAll(ctx context.Context, recipients []string, subject string, msg Message) ([]DeliveryResult, error) {
	results := make([]DeliveryResult, 0, len(recipients))
	var failed []string

	for _, recipient := range recipients {
		messageID, err := m.Send(ctx, recipient, subject, msg)
		results = append(results, DeliveryResult{
			Recipient: recipient,
			MessageID: messageID,
			Err:       err,
		})
		if err != nil {
			failed = append(failed, recipient)
		}
	}

	if len(failed) == 0 {
		return results, nil
	}

	err := errors.Newf("delivery failed for %d of %d recipient(s): %s",
		len(failed), len(recipients), strings.Join(failed, ", ")).
		Category(errors.CategoryDelivery).
		Context("failed_recipients", strings.Join(failed, ",")).
		Context("total_recipients", len(recipients)).
		Component("notify").
		Build()
	return results, err
}

// AllFailed reports whether no recipient received the message.
func AllFailed(results []DeliveryResult) bool {
	if len(results) == 0 {
		return true
	}
	for _, r := range results {
		if r.Err == nil {
			return false
		}
	}
	return true
}
