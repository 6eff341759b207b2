package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/patient360/api/internal/config"
	"github.com/patient360/api/internal/domain/copilot"
	"github.com/patient360/api/internal/platform/db"
	"github.com/patient360/api/internal/platform/sse"
)

func askCmd() *cobra.Command {
	var (
		patientID  string
		question   string
		maxSources int
	)
	cmd := &cobra.Command{
		Use:   "ask",
		Short: "Stream a copilot answer for one patient to stdout",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			req := copilot.AskRequest{Question: question, MaxSources: &maxSources}
			return runAsk(ctx, patientID, req, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&patientID, "patient", "", "patient id")
	cmd.Flags().StringVar(&question, "question", "", "free-text clinical question")
	cmd.Flags().IntVar(&maxSources, "max-sources", copilot.DefaultMaxSources, "number of sources to retrieve (1-20)")
	_ = cmd.MarkFlagRequired("patient")
	_ = cmd.MarkFlagRequired("question")
	return cmd
}

func runAsk(ctx context.Context, patientID string, req copilot.AskRequest, out io.Writer) error {
	// stdout carries the event stream.
	logger := newLogger(os.Stderr)

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBPoolMinSize, cfg.DBPoolMaxSize, logger)
	if err != nil {
		return err
	}
	defer pool.Close()

	svcs, err := newServices(ctx, cfg, pool, logger)
	if err != nil {
		return err
	}

	err = svcs.copilot.Stream(ctx, patientID, req, func() (copilot.Emitter, error) {
		return sse.NewStreamWriter(out), nil
	})
	if err != nil {
		return fmt.Errorf("ask: %w", err)
	}
	return nil
}
