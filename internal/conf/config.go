// Package conf loads and validates application configuration.
package conf

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/tphakala/birdalert-go/internal/errors"
)

// Location describes the fixed search area for nearby observations.
type Location struct {
	Latitude   float64
	Longitude  float64
	DistanceKM int
	BackDays   int
}

// EBirdSettings holds credentials for both the documented API and the
// session-based list export flow.
type EBirdSettings struct {
	APIKey   string
	BaseURL  string
	Username string
	Password string
}

// ListsSettings describes where downloaded list exports live.
type ListsSettings struct {
	Dir      string
	LifeList string
}

// BrevoSettings holds the transactional email provider configuration.
type BrevoSettings struct {
	APIKey      string
	SenderName  string
	SenderEmail string
	Recipients  []string
}

// NotifySettings groups outbound notification configuration.
type NotifySettings struct {
	Subject    string
	MaxDisplay int
	Brevo      BrevoSettings
	PushURLs   []string
}

// NarrativeSettings gates the optional LLM summary of results. An empty
// APIKey disables the enrichment step.
type NarrativeSettings struct {
	APIKey   string
	Endpoint string
	Model    string
}

// Settings is the complete application configuration, loaded once at startup
// and passed into each component at construction.
type Settings struct {
	Debug       bool
	HTTPTimeout time.Duration
	Location    Location
	EBird       EBirdSettings
	Lists       ListsSettings
	Notify      NotifySettings
	Narrative   NarrativeSettings
}

// placeholder values shipped in the sample config, rejected at validation
var placeholders = map[string]bool{
	"your_ebird_api_key":      true,
	"your_brevo_api_key":      true,
	"your_sendinblue_api_key": true,
}

// Load reads configuration from config.yaml and the environment and returns
// the unmarshalled settings. Environment variables take precedence over the
// config file; the classic env names used by earlier deployments
// (EBIRD_API_KEY, SENDINBLUE_API_KEY, ...) are honored as aliases.
func Load() (*Settings, error) {
	if err := initViper(); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	settings := &Settings{}
	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	// Recipients may arrive as a single comma-separated string from env.
	settings.Notify.Brevo.Recipients = splitRecipients(settings.Notify.Brevo.Recipients)

	return settings, nil
}

func initViper() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("$HOME/.config/birdalert")

	viper.SetEnvPrefix("birdalert")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Aliases matching the env names the original deployment used.
	bindEnvs := map[string][]string{
		"ebird.apikey":             {"EBIRD_API_KEY"},
		"ebird.username":           {"EBIRD_USERNAME"},
		"ebird.password":           {"EBIRD_PASSWORD"},
		"notify.brevo.apikey":      {"SENDINBLUE_API_KEY", "BREVO_API_KEY"},
		"notify.brevo.sendername":  {"SENDER_NAME"},
		"notify.brevo.senderemail": {"SENDER_EMAIL"},
		"notify.brevo.recipients":  {"RECIPIENTS_EMAIL"},
		"narrative.apikey":         {"LLM_API_KEY"},
	}
	for key, envs := range bindEnvs {
		if err := viper.BindEnv(append([]string{key}, envs...)...); err != nil {
			return err
		}
	}

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return err
		}
		// No config file is fine, env vars may carry everything.
	}
	return nil
}

func splitRecipients(raw []string) []string {
	var out []string
	for _, r := range raw {
		for _, part := range strings.Split(r, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				out = append(out, trimmed)
			}
		}
	}
	return out
}

func requireSetting(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return errors.Newf("required setting %s is not set", name).
			Category(errors.CategoryConfiguration).
			Context("setting", name).
			Component("conf").
			Build()
	}
	if placeholders[strings.TrimSpace(value)] {
		return errors.Newf("setting %s is still set to its placeholder value", name).
			Category(errors.CategoryConfiguration).
			Context("setting", name).
			Component("conf").
			Build()
	}
	return nil
}

// ValidateCheck verifies everything the check pipeline needs before any
// network call is made.
func (s *Settings) ValidateCheck() error {
	checks := []struct{ name, value string }{
		{"ebird.apikey", s.EBird.APIKey},
		{"notify.brevo.apikey", s.Notify.Brevo.APIKey},
		{"notify.brevo.sendername", s.Notify.Brevo.SenderName},
		{"notify.brevo.senderemail", s.Notify.Brevo.SenderEmail},
		{"lists.lifelist", s.Lists.LifeList},
	}
	for _, c := range checks {
		if err := requireSetting(c.name, c.value); err != nil {
			return err
		}
	}
	if len(s.Notify.Brevo.Recipients) == 0 {
		return errors.Newf("at least one notification recipient is required").
			Category(errors.CategoryConfiguration).
			Component("conf").
			Build()
	}
	if s.Location.DistanceKM <= 0 || s.Location.BackDays <= 0 {
		return errors.Newf("location.distancekm and location.backdays must be positive").
			Category(errors.CategoryConfiguration).
			Component("conf").
			Build()
	}
	return nil
}

// ValidateDownload verifies what the download pipeline needs. Credentials are
// only required when logging in; a directly supplied session ID needs nothing
// else from the configuration.
func (s *Settings) ValidateDownload(login bool) error {
	if !login {
		return nil
	}
	if err := requireSetting("ebird.username", s.EBird.Username); err != nil {
		return err
	}
	return requireSetting("ebird.password", s.EBird.Password)
}
