package conf

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validSettings() *Settings {
	return &Settings{
		HTTPTimeout: 30 * time.Second,
		Location:    Location{Latitude: 40.6, Longitude: -73.9, DistanceKM: 1, BackDays: 1},
		EBird: EBirdSettings{
			APIKey:   "abc123",
			BaseURL:  "https://api.ebird.org/v2",
			Username: "birder",
			Password: "hunter2",
		},
		Lists: ListsSettings{Dir: "lists", LifeList: "lists/life_list.csv"},
		Notify: NotifySettings{
			Subject:    "Birds to Add to Your Life List",
			MaxDisplay: 10,
			Brevo: BrevoSettings{
				APIKey:      "brevo-key",
				SenderName:  "Bird Alerts",
				SenderEmail: "alerts@example.com",
				Recipients:  []string{"me@example.com"},
			},
		},
	}
}

func TestValidateCheck(t *testing.T) {
	require.NoError(t, validSettings().ValidateCheck())
}

func TestValidateCheck_MissingAPIKey(t *testing.T) {
	s := validSettings()
	s.EBird.APIKey = ""

	err := s.ValidateCheck()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ebird.apikey")
}

func TestValidateCheck_PlaceholderRejected(t *testing.T) {
	s := validSettings()
	s.EBird.APIKey = "your_ebird_api_key"

	err := s.ValidateCheck()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "placeholder")
}

func TestValidateCheck_NoRecipients(t *testing.T) {
	s := validSettings()
	s.Notify.Brevo.Recipients = nil

	require.Error(t, s.ValidateCheck())
}

func TestValidateDownload(t *testing.T) {
	s := validSettings()
	require.NoError(t, s.ValidateDownload(true))

	s.EBird.Password = ""
	require.Error(t, s.ValidateDownload(true))

	// A directly supplied session ID does not need credentials.
	require.NoError(t, s.ValidateDownload(false))
}

func TestSplitRecipients(t *testing.T) {
	got := splitRecipients([]string{"a@example.com, b@example.com", " c@example.com "})
	assert.Equal(t, []string{"a@example.com", "b@example.com", "c@example.com"}, got)
}
