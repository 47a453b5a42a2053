package notify

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tphakala/birdalert-go/internal/errors"
)

func newTestMailer(t *testing.T) *BrevoMailer {
	t.Helper()

	mailer := NewBrevoMailer(BrevoConfig{
		APIKey:      "brevo-key",
		SenderName:  "Bird Alerts",
		SenderEmail: "alerts@example.com",
	})

	httpmock.ActivateNonDefault(mailer.httpClient)
	t.Cleanup(httpmock.DeactivateAndReset)

	return mailer
}

func TestSend(t *testing.T) {
	mailer := newTestMailer(t)

	var payload brevoPayload
	httpmock.RegisterResponder(http.MethodPost, DefaultBrevoEndpoint,
		func(req *http.Request) (*http.Response, error) {
			assert.Equal(t, "brevo-key", req.Header.Get("api-key"))
			require.NoError(t, json.NewDecoder(req.Body).Decode(&payload))
			return httpmock.NewJsonResponse(http.StatusCreated, map[string]string{
				"messageId": "<202504021234.123@smtp-relay>",
			})
		})

	msg := Message{HTML: "<p>birds</p>", Text: "birds"}
	messageID, err := mailer.Send(t.Context(), "me@example.com", "New birds", msg)
	require.NoError(t, err)

	assert.Equal(t, "<202504021234.123@smtp-relay>", messageID)
	assert.Equal(t, "alerts@example.com", payload.Sender.Email)
	require.Len(t, payload.To, 1)
	assert.Equal(t, "me@example.com", payload.To[0].Email)
	assert.Equal(t, "New birds", payload.Subject)
	assert.Equal(t, "<p>birds</p>", payload.HTMLContent)
}

func TestSend_ProviderError(t *testing.T) {
	mailer := newTestMailer(t)

	httpmock.RegisterResponder(http.MethodPost, DefaultBrevoEndpoint,
		httpmock.NewStringResponder(http.StatusUnauthorized,
			`{"code":"unauthorized","message":"Key not found"}`))

	_, err := mailer.Send(t.Context(), "me@example.com", "New birds", Message{})
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryDelivery))
	assert.Contains(t, err.Error(), "Key not found")
}

func TestSendAll_PartialFailure(t *testing.T) {
	mailer := newTestMailer(t)

	httpmock.RegisterResponder(http.MethodPost, DefaultBrevoEndpoint,
		func(req *http.Request) (*http.Response, error) {
			var payload brevoPayload
			if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
				return nil, err
			}
			// Second recipient is rejected by the provider
			if payload.To[0].Email == "bad@example.com" {
				return httpmock.NewStringResponse(http.StatusBadRequest,
					`{"code":"invalid_parameter","message":"Invalid email"}`), nil
			}
			return httpmock.NewJsonResponse(http.StatusCreated, map[string]string{"messageId": "id-1"})
		})

	recipients := []string{"good@example.com", "bad@example.com", "also-good@example.com"}
	results, err := mailer.SendAll(t.Context(), recipients, "New birds", Message{HTML: "<p>x</p>"})

	// Partial failure is surfaced but doesn't halt the loop
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryDelivery))
	assert.Contains(t, err.Error(), "bad@example.com")

	require.Len(t, results, 3)
	assert.NoError(t, results[0].Err)
	assert.Error(t, results[1].Err)
	assert.NoError(t, results[2].Err)
	assert.Equal(t, "id-1", results[2].MessageID)
	assert.False(t, AllFailed(results))
}

func TestSendAll_AllFailed(t *testing.T) {
	mailer := newTestMailer(t)

	httpmock.RegisterResponder(http.MethodPost, DefaultBrevoEndpoint,
		httpmock.NewStringResponder(http.StatusInternalServerError, `{"message":"boom"}`))

	results, err := mailer.SendAll(t.Context(), []string{"a@example.com", "b@example.com"}, "s", Message{})

	require.Error(t, err)
	assert.True(t, AllFailed(results))
}
