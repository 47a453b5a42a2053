// Package session obtains a reusable eBird session credential by emulating
// the browser login flow against the Cornell CAS endpoint. There is no
// documented API for this; the form field names are assumed stable and a
// missing field is surfaced as a protocol error distinct from bad credentials.
package session

import (
	"bytes"
	"context"
	"log/slog"
	"net/http/cookiejar"
	"net/url"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"github.com/tphakala/birdalert-go/internal/errors"
	"github.com/tphakala/birdalert-go/internal/logging"
)

const (
	// DefaultLoginURL is the CAS login endpoint that issues the session.
	DefaultLoginURL = "https://secure.birds.cornell.edu/cassso/login"
	// DefaultHomeURL is an authenticated landing page used to materialize
	// the session cookie on the ebird.org domain.
	DefaultHomeURL = "https://ebird.org/home"
	// SessionCookieName is the cookie carrying the session credential.
	SessionCookieName = "EBIRD_SESSIONID"

	// The provider rejects obviously non-browser agents.
	browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

	// defaultEventID is submitted when the form omits the _eventId field.
	defaultEventID = "submit"
)

// Issuer is the capability of turning credentials into a session token.
// It exists so the scraped CAS flow can be swapped for a documented token
// exchange without touching the fetcher or the observation client.
type Issuer interface {
	Login(ctx context.Context, username, password string) (string, error)
}

// CASIssuer performs the HTML-form login against the CAS endpoint.
type CASIssuer struct {
	client   *resty.Client
	loginURL string
	homeURL  string
	log      *slog.Logger
}

// Config holds the endpoints and timeout for the login flow. Zero values
// fall back to the production eBird endpoints and a 30s timeout.
type Config struct {
	LoginURL string
	HomeURL  string
	Timeout  time.Duration
}

// NewCASIssuer creates an issuer with a fresh cookie jar.
func NewCASIssuer(cfg Config) (*CASIssuer, error) {
	if cfg.LoginURL == "" {
		cfg.LoginURL = DefaultLoginURL
	}
	if cfg.HomeURL == "" {
		cfg.HomeURL = DefaultHomeURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, errors.Newf("failed to create cookie jar: %w", err).
			Category(errors.CategoryGeneric).
			Component("session").
			Build()
	}

	client := resty.New()
	client.SetCookieJar(jar)
	client.SetTimeout(cfg.Timeout)
	client.SetHeader("User-Agent", browserUserAgent)

	return &CASIssuer{
		client:   client,
		loginURL: cfg.LoginURL,
		homeURL:  cfg.HomeURL,
		log:      logging.ForService("session"),
	}, nil
}

// Login performs the full login flow and returns the session credential.
// A single failed step is terminal: there are no retries.
func (c *CASIssuer) Login(ctx context.Context, username, password string) (string, error) {
	res, err := c.client.R().SetContext(ctx).Get(c.loginURL)
	if err != nil {
		return "", errors.Newf("failed to fetch login page: %w", err).
			Category(errors.CategoryNetwork).
			Context("url", c.loginURL).
			Component("session").
			Build()
	}
	if !res.IsSuccess() {
		c.log.Error("login page returned non-success status",
			"status_code", res.StatusCode(),
			"url", c.loginURL)
		return "", errors.Newf("failed to access login page (status %d)", res.StatusCode()).
			Category(errors.CategoryNetwork).
			Context("status_code", res.StatusCode()).
			Context("url", c.loginURL).
			Component("session").
			Build()
	}

	execution, eventID, err := extractFormState(res.Body())
	if err != nil {
		return "", err
	}

	_, err = c.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"username":   username,
			"password":   password,
			"execution":  execution,
			"_eventId":   eventID,
			"rememberMe": "on", // stay signed in
		}).
		Post(c.loginURL)
	if err != nil {
		return "", errors.Newf("failed to submit login form: %w", err).
			Category(errors.CategoryNetwork).
			Context("url", c.loginURL).
			Component("session").
			Build()
	}

	// Landing on an authenticated page settles the session cookie on the
	// ebird.org domain.
	_, err = c.client.R().SetContext(ctx).Get(c.homeURL)
	if err != nil {
		return "", errors.Newf("failed to fetch home page after login: %w", err).
			Category(errors.CategoryNetwork).
			Context("url", c.homeURL).
			Component("session").
			Build()
	}

	sessionID := c.sessionCookie()
	if sessionID == "" {
		c.log.Warn("login flow completed without a session cookie",
			"cookie", SessionCookieName)
		return "", errors.Newf("login failed, please check your credentials").
			Category(errors.CategoryAuthentication).
			Component("session").
			Build()
	}

	c.log.Info("login successful", "cookie", SessionCookieName)
	return sessionID, nil
}

// extractFormState pulls the anti-forgery state out of the login page HTML.
// A missing execution field means the provider changed the flow.
func extractFormState(body []byte) (execution, eventID string, err error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", "", errors.Newf("failed to parse login page HTML: %w", err).
			Category(errors.CategoryProtocol).
			Component("session").
			Build()
	}

	execution = doc.Find(`input[name="execution"]`).AttrOr("value", "")
	if execution == "" {
		return "", "", errors.Newf("could not find execution value in the login form").
			Category(errors.CategoryProtocol).
			Context("field", "execution").
			Component("session").
			Build()
	}

	eventID = doc.Find(`input[name="_eventId"]`).AttrOr("value", defaultEventID)
	return execution, eventID, nil
}

// sessionCookie looks for the session cookie in the jar, checking both the
// landing page domain and the login domain.
func (c *CASIssuer) sessionCookie() string {
	jar := c.client.GetClient().Jar
	for _, rawURL := range []string{c.homeURL, c.loginURL} {
		u, err := url.Parse(rawURL)
		if err != nil {
			continue
		}
		for _, cookie := range jar.Cookies(u) {
			if cookie.Name == SessionCookieName {
				return cookie.Value
			}
		}
	}
	return ""
}
