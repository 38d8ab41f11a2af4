package main

import (
	"encoding/json"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/use-agent/sellerwatch/models"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Execute one pass over the eligible tasks and print the summary",
		RunE: func(cmd *cobra.Command, _ []string) error {
			// stdout carries the JSON summary only.
			cfg, err := loadConfig(os.Stderr)
			if err != nil {
				return err
			}
			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			summary, err := a.orch.ExecuteTasks(ctx)
			if summary != nil {
				_ = writeSummary(os.Stdout, summary)
			}
			return err
		},
	}
}

// writeSummary prints summary as indented JSON.
func writeSummary(w io.Writer, summary *models.RunSummary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(summary)
}
