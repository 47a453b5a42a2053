// Package download implements the list-retrieval pipeline: session login
// (or a directly supplied session ID) followed by CSV exports of the
// requested lists.
package download

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/tphakala/birdalert-go/internal/conf"
	"github.com/tphakala/birdalert-go/internal/errors"
	"github.com/tphakala/birdalert-go/internal/lists"
	"github.com/tphakala/birdalert-go/internal/logging"
	"github.com/tphakala/birdalert-go/internal/session"
)

type options struct {
	sessionID string
	login     bool
	outputDir string
	year      int
	listNames []string
}

// Command creates the download command.
func Command(settings *conf.Settings) *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "download",
		Short: "Download your eBird lists as CSV",
		Long: `Download your eBird life, year and month lists as CSV exports.

Authentication uses either a session ID you already hold (--session-id)
or an interactive login with the configured credentials (--login).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDownload(cmd.Context(), settings, opts)
		},
	}

	cmd.Flags().StringVar(&opts.sessionID, "session-id", "", "Directly use an existing eBird session ID")
	cmd.Flags().BoolVar(&opts.login, "login", false, "Login with the configured username and password")
	cmd.Flags().StringVar(&opts.outputDir, "output-dir", "", "Directory to save downloaded files")
	cmd.Flags().IntVar(&opts.year, "year", 0, "Year for the year list (default: current year)")
	cmd.Flags().StringSliceVar(&opts.listNames, "lists", []string{"life", "year"},
		fmt.Sprintf("Which lists to download (subset of %v)", lists.ValidKinds()))

	cmd.MarkFlagsMutuallyExclusive("session-id", "login")
	cmd.MarkFlagsOneRequired("session-id", "login")
	_ = cmd.MarkFlagRequired("output-dir")

	return cmd
}

func runDownload(ctx context.Context, settings *conf.Settings, opts *options) error {
	log := logging.ForService("download")

	if err := settings.ValidateDownload(opts.login); err != nil {
		return err
	}

	kinds, err := parseKinds(opts.listNames)
	if err != nil {
		return err
	}

	sessionID := opts.sessionID
	if opts.login {
		issuer, err := session.NewCASIssuer(session.Config{Timeout: settings.HTTPTimeout})
		if err != nil {
			return err
		}
		sessionID, err = issuer.Login(ctx, settings.EBird.Username, settings.EBird.Password)
		if err != nil {
			return err
		}
		// Printed so the operator can reuse the credential on later runs.
		fmt.Printf("Successfully logged in. Your session ID is: %s\n", sessionID)
	}

	now := time.Now()
	year := opts.year
	if year == 0 {
		year = now.Year()
	}
	month := int(now.Month())

	fetcher := lists.NewFetcher(sessionID, settings.HTTPTimeout)

	var failed []string
	for _, kind := range kinds {
		result, err := fetcher.Download(ctx, kind, year, month, opts.outputDir)
		if err != nil {
			// Filesystem problems are terminal, unlike HTTP-level failures.
			return err
		}
		switch {
		case !result.Written:
			failed = append(failed, string(kind))
		case result.Suspicious:
			log.Warn("downloaded file may not be a CSV, inspect it before use",
				"kind", string(kind),
				"path", result.Path)
			failed = append(failed, string(kind))
		default:
			log.Info("download complete", "kind", string(kind), "path", result.Path)
		}
	}

	if len(failed) > 0 {
		return errors.Newf("download failed for list(s): %v", failed).
			Category(errors.CategoryNetwork).
			Context("failed_lists", fmt.Sprintf("%v", failed)).
			Component("download").
			Build()
	}

	log.Info("all downloads completed successfully", "output_dir", opts.outputDir)
	return nil
}

func parseKinds(names []string) ([]lists.Kind, error) {
	valid := map[string]lists.Kind{
		"life":  lists.KindLife,
		"year":  lists.KindYear,
		"month": lists.KindMonth,
	}
	kinds := make([]lists.Kind, 0, len(names))
	for _, name := range names {
		kind, ok := valid[name]
		if !ok {
			return nil, errors.Newf("unknown list kind %q (valid: %v)", name, lists.ValidKinds()).
				Category(errors.CategoryValidation).
				Context("kind", name).
				Component("download").
				Build()
		}
		kinds = append(kinds, kind)
	}
	return kinds, nil
}
