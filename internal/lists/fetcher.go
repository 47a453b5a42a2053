// Package lists downloads eBird list exports and parses the local life list
// into the reference set used for reconciliation.
package lists

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/tphakala/birdalert-go/internal/errors"
	"github.com/tphakala/birdalert-go/internal/logging"
	"github.com/tphakala/birdalert-go/internal/session"
)

// Kind names one of the downloadable list exports. The three kinds differ
// only in query parameters, not in mechanism.
type Kind string

const (
	KindLife  Kind = "life"
	KindYear  Kind = "year"
	KindMonth Kind = "month"
)

// ValidKinds returns the list kinds accepted on the command line.
func ValidKinds() []string {
	return []string{string(KindLife), string(KindYear), string(KindMonth)}
}

// DefaultExportURL is the lifelist export endpoint shared by all kinds.
const DefaultExportURL = "https://ebird.org/lifelist"

const browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

// Result reports what a download did. Written distinguishes "operation
// failed" (no file on disk) from success; Suspicious flags a written file
// whose content type was not CSV and should be inspected by the caller.
type Result struct {
	Path       string
	Written    bool
	Suspicious bool
}

// Fetcher downloads list exports using a session credential. The credential
// is sent as a cookie, not an Authorization header, and requests carry a
// realistic browser User-Agent since the provider may reject non-browser
// agents.
type Fetcher struct {
	client    *resty.Client
	exportURL string
	sessionID string
	log       *slog.Logger
}

// NewFetcher creates a Fetcher bound to one session credential.
func NewFetcher(sessionID string, timeout time.Duration) *Fetcher {
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	client := resty.New()
	client.SetTimeout(timeout)
	client.SetHeader("User-Agent", browserUserAgent)
	client.SetHeader("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
	client.SetHeader("Accept-Language", "en-US,en;q=0.5")

	return &Fetcher{
		client:    client,
		exportURL: DefaultExportURL,
		sessionID: sessionID,
		log:       logging.ForService("lists"),
	}
}

// FileName returns the output file name for a list kind.
func FileName(kind Kind, year, month int) string {
	switch kind {
	case KindYear:
		return fmt.Sprintf("year_list_%d.csv", year)
	case KindMonth:
		return fmt.Sprintf("month_list_%d_%d.csv", month, year)
	default:
		return "life_list.csv"
	}
}

// exportQuery builds the query parameters for a list kind.
func exportQuery(kind Kind, year, month int) map[string]string {
	params := map[string]string{
		"r":   "world",
		"fmt": "csv",
	}
	switch kind {
	case KindYear:
		params["time"] = "year"
		params["year"] = fmt.Sprintf("%d", year)
	case KindMonth:
		params["time"] = "month"
		params["month"] = fmt.Sprintf("%d", month)
	default:
		params["time"] = "life"
	}
	return params
}

// Download fetches one list export and writes it under outputDir. HTTP-level
// failures are logged and reported through Result, never as an error; only
// filesystem problems return an error.
func (f *Fetcher) Download(ctx context.Context, kind Kind, year, month int, outputDir string) (Result, error) {
	outputPath := filepath.Join(outputDir, FileName(kind, year, month))
	result := Result{Path: outputPath}

	res, err := f.client.R().
		SetContext(ctx).
		SetQueryParams(exportQuery(kind, year, month)).
		SetCookie(&http.Cookie{Name: session.SessionCookieName, Value: f.sessionID}).
		Get(f.exportURL)
	if err != nil {
		f.log.Error("list download request failed",
			"kind", string(kind),
			"error", err)
		return result, nil
	}

	if !res.IsSuccess() {
		f.log.Error("list download returned non-success status",
			"kind", string(kind),
			"status_code", res.StatusCode(),
			"response_preview", preview(res.Body()))
		return result, nil
	}

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return result, errors.Newf("failed to create output directory %s: %w", outputDir, err).
			Category(errors.CategoryFileIO).
			Context("dir", outputDir).
			Component("lists").
			Build()
	}

	if err := os.WriteFile(outputPath, res.Body(), 0o644); err != nil {
		return result, errors.Newf("failed to write %s: %w", outputPath, err).
			Category(errors.CategoryFileIO).
			Context("path", outputPath).
			Component("lists").
			Build()
	}
	result.Written = true

	contentType := res.Header().Get("Content-Type")
	if !strings.Contains(strings.ToLower(contentType), "text/csv") {
		// The file is on disk but probably a login page or error document.
		result.Suspicious = true
		f.log.Warn("downloaded file does not look like CSV",
			"kind", string(kind),
			"content_type", contentType,
			"path", outputPath)
		return result, nil
	}

	f.log.Info("list downloaded",
		"kind", string(kind),
		"path", outputPath,
		"bytes", len(res.Body()))
	return result, nil
}

func preview(body []byte) string {
	const max = 200
	s := string(body)
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
