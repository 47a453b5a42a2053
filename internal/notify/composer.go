// Package notify renders and delivers the new-species notification.
package notify

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/k3a/html2text"
	"github.com/tphakala/birdalert-go/internal/reconcile"
)

// Meta carries the run parameters echoed in the message footer.
type Meta struct {
	Latitude    float64
	Longitude   float64
	DistanceKM  int
	BackDays    int
	GeneratedAt time.Time
}

// Message is an opaque rendered notification body with a plaintext
// alternative derived from the HTML.
type Message struct {
	HTML string
	Text string
}

// ComposeEmail renders the ranked entries (and the optional narrative) into
// an HTML email body. An empty entry list produces the "no new birds"
// message rather than no message at all.
func ComposeEmail(entries []reconcile.Entry, narrative string, meta Meta) Message {
	var rows strings.Builder

	for _, entry := range entries {
		fmt.Fprintf(&rows, `
        <tr>
            <td style="padding: 16px; border-bottom: 1px solid #eee;">
                <h3 style="margin: 0 0 8px 0; color: #2c3e50;">%s</h3>
                <p style="margin: 0 0 8px 0; font-style: italic; color: #7f8c8d;">%s</p>
                <p style="margin: 0 0 8px 0;"><strong>Location:</strong> %s</p>
                <p style="margin: 0 0 8px 0;"><strong>Last seen:</strong> %s</p>
                <p style="margin: 0 0 12px 0;"><strong>Count:</strong> %s</p>
                <a href="https://ebird.org/hotspot/%s"
                   style="display: inline-block; padding: 8px 16px;
                          background-color: #27ae60; color: white;
                          text-decoration: none; border-radius: 4px;
                          font-weight: 600;">
                    View on eBird
                </a>
            </td>
        </tr>`,
			html.EscapeString(entry.CommonName),
			html.EscapeString(entry.ScientificName),
			html.EscapeString(entry.Location),
			html.EscapeString(formatObservationDate(entry.Date)),
			html.EscapeString(entry.Count),
			html.EscapeString(entry.LocationID))
	}

	if rows.Len() == 0 {
		rows.WriteString(`
        <tr>
            <td style="padding: 16px; text-align: center; color: #7f8c8d;">
                <p>No new birds found in your area that aren't already on your life list.</p>
                <p>Try expanding your search radius or checking back in a few days!</p>
            </td>
        </tr>`)
	}

	narrativeBlock := ""
	if narrative != "" {
		// The narrative is model-generated HTML, embedded as-is.
		narrativeBlock = fmt.Sprintf(`
            <p style="margin: 0 0 20px 0; font-size: 14px; color: #7f8c8d;">
                %s
            </p>`, narrative)
	}

	htmlBody := fmt.Sprintf(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Birds to Add to Your Life List</title>
</head>
<body style="font-family: 'Helvetica Neue', Arial, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 0; background-color: #f9f9f9;">
    <div style="background-color: #2980b9; color: white; padding: 20px; text-align: center;">
        <h1 style="margin: 0; font-size: 24px;">Birds to Add to Your Life List</h1>
        <p style="margin: 8px 0 0 0; font-size: 14px;">Generated on %s</p>
    </div>

    <div style="background-color: white; padding: 20px; border-radius: 0 0 4px 4px; box-shadow: 0 2px 4px rgba(0,0,0,0.1);">
        <p style="margin-top: 0;">Here are the top birds in your area that aren't on your life list yet:</p>
%s
        <table style="width: 100%%; border-collapse: collapse; margin: 20px 0;">%s
        </table>

        <div style="margin-top: 30px; padding-top: 20px; border-top: 1px solid #eee; color: #7f8c8d; font-size: 12px;">
            <p>This email was automatically generated based on your life list and recent eBird observations within %dkm of your location.</p>
            <p>Location: Latitude %.6f, Longitude %.6f</p>
            <p>Time period: Past %d days</p>
            <p style="margin-top: 16px;">Happy birding!</p>
        </div>
    </div>
</body>
</html>`,
		meta.GeneratedAt.Format("January 2, 2006"),
		narrativeBlock,
		rows.String(),
		meta.DistanceKM,
		meta.Latitude,
		meta.Longitude,
		meta.BackDays)

	return Message{
		HTML: htmlBody,
		Text: html2text.HTML2Text(htmlBody),
	}
}

// formatObservationDate prettifies the eBird timestamp when it happens to be
// machine-parseable; the raw string is kept otherwise since the format is
// not guaranteed.
func formatObservationDate(raw string) string {
	if parsed, err := time.Parse("2006-01-02 15:04", raw); err == nil {
		return parsed.Format("Jan 2, 2006 at 3:04 PM")
	}
	return raw
}

// Summary renders a short plain-text summary of the ranked entries, used for
// push notifications and logs.
func Summary(entries []reconcile.Entry) string {
	if len(entries) == 0 {
		return "No new birds found near you today."
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d new bird(s) for your life list:\n", len(entries))
	for _, e := range entries {
		fmt.Fprintf(&sb, "%s (%s) x %s\n", e.CommonName, e.ScientificName, e.Count)
	}
	return strings.TrimRight(sb.String(), "\n")
}
