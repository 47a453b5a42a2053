// Package check implements the main reconciliation-and-notify pipeline.
package check

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/tphakala/birdalert-go/internal/conf"
	"github.com/tphakala/birdalert-go/internal/ebird"
	"github.com/tphakala/birdalert-go/internal/lists"
	"github.com/tphakala/birdalert-go/internal/logging"
	"github.com/tphakala/birdalert-go/internal/narrative"
	"github.com/tphakala/birdalert-go/internal/notify"
	"github.com/tphakala/birdalert-go/internal/reconcile"
)

// Command creates the check command.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check nearby observations against your life list and send a notification",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd.Context(), settings)
		},
	}

	cmd.Flags().IntVar(&settings.Notify.MaxDisplay, "max-display", settings.Notify.MaxDisplay,
		"Maximum number of species to include in the notification")

	return cmd
}

func runCheck(ctx context.Context, settings *conf.Settings) error {
	log := logging.ForService("check")
	runID := uuid.New().String()

	// Configuration problems abort before any network call.
	if err := settings.ValidateCheck(); err != nil {
		return err
	}

	referenceSet, err := lists.LoadReferenceSet(settings.Lists.LifeList)
	if err != nil {
		// No point fetching observations with no reference to diff against.
		return err
	}
	log.Info("life list loaded",
		"run_id", runID,
		"species", len(referenceSet),
		"path", settings.Lists.LifeList)

	client, err := ebird.NewClient(ebird.Config{
		APIKey:  settings.EBird.APIKey,
		BaseURL: settings.EBird.BaseURL,
		Timeout: settings.HTTPTimeout,
	}, settings.Debug)
	if err != nil {
		return err
	}
	defer client.Close()

	observations, err := client.GetNearbyObservations(ctx,
		settings.Location.Latitude,
		settings.Location.Longitude,
		settings.Location.DistanceKM,
		settings.Location.BackDays)
	if err != nil {
		return err
	}
	log.Info("nearby observations fetched",
		"run_id", runID,
		"records", len(observations),
		"dist_km", settings.Location.DistanceKM,
		"back_days", settings.Location.BackDays)

	engine := reconcile.New()
	engine.MaxDisplay = settings.Notify.MaxDisplay
	entries := engine.Reconcile(observations, referenceSet)
	log.Info("reconciliation complete",
		"run_id", runID,
		"new_species_entries", len(entries))

	generator := narrative.NewGenerator(narrative.Config{
		APIKey:   settings.Narrative.APIKey,
		Endpoint: settings.Narrative.Endpoint,
		Model:    settings.Narrative.Model,
	})
	summary, err := generator.Summarize(ctx, entries)
	if err != nil {
		return err
	}

	message := notify.ComposeEmail(entries, summary, notify.Meta{
		Latitude:    settings.Location.Latitude,
		Longitude:   settings.Location.Longitude,
		DistanceKM:  settings.Location.DistanceKM,
		BackDays:    settings.Location.BackDays,
		GeneratedAt: time.Now(),
	})

	mailer := notify.NewBrevoMailer(notify.BrevoConfig{
		APIKey:      settings.Notify.Brevo.APIKey,
		SenderName:  settings.Notify.Brevo.SenderName,
		SenderEmail: settings.Notify.Brevo.SenderEmail,
		Timeout:     settings.HTTPTimeout,
	})

	results, deliveryErr := mailer.SendAll(ctx,
		settings.Notify.Brevo.Recipients,
		settings.Notify.Subject,
		message)
	for _, result := range results {
		if result.Err != nil {
			log.Error("delivery failed",
				"run_id", runID,
				"recipient", result.Recipient,
				"error", result.Err)
		} else {
			log.Info("delivered",
				"run_id", runID,
				"recipient", result.Recipient,
				"message_id", result.MessageID)
		}
	}
	if deliveryErr != nil {
		if notify.AllFailed(results) {
			return deliveryErr
		}
		// Partial delivery: the run completed with warnings.
		log.Warn("completed with warnings", "run_id", runID, "error", deliveryErr)
	}

	if err := sendPush(settings, entries); err != nil {
		log.Warn("push notification failed", "run_id", runID, "error", err)
	}

	return nil
}

func sendPush(settings *conf.Settings, entries []reconcile.Entry) error {
	push, err := notify.NewPush(settings.Notify.PushURLs)
	if err != nil {
		return err
	}
	if !push.IsEnabled() {
		return nil
	}
	return push.Send(settings.Notify.Subject, notify.Summary(entries))
}
