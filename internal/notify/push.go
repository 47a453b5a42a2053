package notify

import (
	"log/slog"

	shoutrrr "github.com/nicholas-fedor/shoutrrr"
	"github.com/nicholas-fedor/shoutrrr/pkg/router"
	"github.com/nicholas-fedor/shoutrrr/pkg/types"
	"github.com/tphakala/birdalert-go/internal/errors"
	"github.com/tphakala/birdalert-go/internal/logging"
)

// Push delivers a short summary to configured shoutrrr service URLs. It is
// a secondary channel next to the email dispatch and is disabled when no
// URLs are configured.
type Push struct {
	sender  *router.ServiceRouter
	enabled bool
	log     *slog.Logger
}

// NewPush builds a push sender from shoutrrr URLs. An empty URL list yields
// a disabled sender whose Send is a no-op.
func NewPush(urls []string) (*Push, error) {
	if len(urls) == 0 {
		return &Push{enabled: false, log: logging.ForService("notify")}, nil
	}

	sender, err := shoutrrr.CreateSender(urls...)
	if err != nil {
		return nil, errors.Newf("failed to create push sender: %w", err).
			Category(errors.CategoryConfiguration).
			Context("url_count", len(urls)).
			Component("notify").
			Build()
	}

	return &Push{
		sender:  sender,
		enabled: true,
		log:     logging.ForService("notify"),
	}, nil
}

// IsEnabled reports whether any push URLs are configured.
func (p *Push) IsEnabled() bool {
	return p.enabled
}

// Send pushes the title and body to every configured service. Per-service
// failures are joined into one error; push failure never fails the run.
func (p *Push) Send(title, body string) error {
	if !p.enabled {
		return nil
	}

	params := types.Params{"title": title}
	errs := p.sender.Send(body, &params)

	var failures []error
	for _, err := range errs {
		if err != nil {
			failures = append(failures, err)
		}
	}
	if len(failures) > 0 {
		p.log.Warn("push delivery partially failed",
			"failures", len(failures),
			"services", len(errs))
		return errors.Newf("push delivery failed: %w", errors.Join(failures...)).
			Category(errors.CategoryDelivery).
			Component("notify").
			Build()
	}

	p.log.Info("push notification sent", "services", len(errs))
	return nil
}
