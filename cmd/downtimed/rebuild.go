package main

import (
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"machine-downtime-backend/internal/parse"
)

var serverURL string

const exclusiveNote = `
Per-machine locking and rebuild exclusivity only hold inside one process.
Run this against the database directly only while "serve" is stopped, or
pass --server to run it inside the live server instead.`

var rebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Re-derive every detail row and daily summary from the raw events",
	Long:  "Re-derive every detail row and daily summary from the raw events.\n" + exclusiveNote,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if serverURL != "" {
			out, err := postRemote(ctx, serverURL, "/api/rebuild", nil)
			if err != nil {
				return err
			}
			log.WithFields(logrus.Fields(out)).Info("Remote rebuild finished")
			return nil
		}

		a, err := bootstrap(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		res, err := a.service(nil).RebuildAll(ctx)
		if err != nil {
			return err
		}

		log.WithField("details", res.Details).
			WithField("summaries", res.Summaries).
			WithField("elapsed", res.Elapsed).
			Info("Rebuild finished")
		return nil
	},
}

var aggregateCmd = &cobra.Command{
	Use:   "aggregate [yyyy-MM-dd]",
	Short: "Recompute daily summaries for one day, or all days when omitted",
	Long:  "Recompute daily summaries for one day, or all days when omitted.\n" + exclusiveNote,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if serverURL != "" {
			var payload any
			if len(args) == 1 {
				payload = map[string]string{"date": args[0]}
			}
			out, err := postRemote(ctx, serverURL, "/api/aggregate", payload)
			if err != nil {
				return err
			}
			log.WithFields(logrus.Fields(out)).Info("Remote aggregation finished")
			return nil
		}

		a, err := bootstrap(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		svc := a.service(nil)

		var day *time.Time
		if len(args) == 1 {
			d, err := parse.ParseDay(args[0], svc.Location())
			if err != nil {
				return err
			}
			day = &d
		}

		n, err := svc.Aggregate(ctx, day)
		if err != nil {
			return err
		}

		log.WithField("summaries", n).Info("Aggregation finished")
		return nil
	},
}

func init() {
	for _, cmd := range []*cobra.Command{rebuildCmd, aggregateCmd} {
		cmd.Flags().StringVar(&serverURL, "server", "", "base URL of a running server (e.g. http://localhost:8080); runs the job there")
	}
}
