package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dmitrymomot/billsync/pkg/archive"
	"github.com/dmitrymomot/billsync/pkg/config"
	"github.com/dmitrymomot/billsync/pkg/webhook"
)

var (
	ErrNoEventSource   = errors.New("either --event or --archive-key is required")
	ErrTwoEventSources = errors.New("--event and --archive-key are mutually exclusive")
)

type replayOptions struct {
	eventPath  string
	archiveKey string
	url        string
	retries    int
}

func replayCmd() *cobra.Command {
	var opts replayOptions

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Re-deliver a stored event to a running instance",
		Long: `Signs a stored event with STRIPE_WEBHOOK_SECRET and posts it to the
webhook endpoint, as the processor would.

Examples:
  billsync replay --event ./evt_1.json
  billsync replay --archive-key stripe-events/2026/03/14/evt_1.json --url https://billing.internal/webhook`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			var whCfg webhook.Config
			if err := config.Load(&whCfg); err != nil {
				return err
			}

			payload, err := loadEvent(ctx, opts)
			if err != nil {
				return err
			}
			eventType, eventID, err := describeEvent(payload)
			if err != nil {
				return err
			}

			res, err := webhook.NewSender().Send(ctx, opts.url, payload,
				webhook.WithSigningSecret(whCfg.Secret),
				webhook.WithMaxRetries(opts.retries),
			)
			if err != nil {
				return fmt.Errorf("failed to replay %s: %w", eventID, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "replayed %s (%s): HTTP %d after %d attempt(s)\n",
				eventID, eventType, res.StatusCode, res.Attempt)
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.eventPath, "event", "", "path to an event JSON file")
	cmd.Flags().StringVar(&opts.archiveKey, "archive-key", "", "object key of an archived event")
	cmd.Flags().StringVar(&opts.url, "url", "http://localhost:8080/webhook", "webhook endpoint to deliver to")
	cmd.Flags().IntVar(&opts.retries, "retries", 3, "retries on temporary failures")

	return cmd
}

func loadEvent(ctx context.Context, opts replayOptions) ([]byte, error) {
	switch {
	case opts.eventPath == "" && opts.archiveKey == "":
		return nil, ErrNoEventSource
	case opts.eventPath != "" && opts.archiveKey != "":
		return nil, ErrTwoEventSources
	case opts.eventPath != "":
		payload, err := os.ReadFile(opts.eventPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read event file: %w", err)
		}
		return payload, nil
	}

	var cfg archive.Config
	if err := config.Load(&cfg); err != nil {
		return nil, err
	}
	a, err := archive.NewS3Archiver(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return a.Fetch(ctx, opts.archiveKey)
}

// describeEvent checks payload is an event envelope and returns its type and id.
func describeEvent(payload []byte) (string, string, error) {
	var evt webhook.Event
	if err := json.Unmarshal(payload, &evt); err != nil {
		return "", "", fmt.Errorf("invalid event payload: %w", err)
	}
	if evt.ID == "" || evt.Type == "" {
		return "", "", errors.New("invalid event payload: id and type are required")
	}
	return evt.Type, evt.ID, nil
}
