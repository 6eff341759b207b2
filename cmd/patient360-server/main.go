package main

import (
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

const version = "1.0.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "patient360-server",
		Short: "Patient 360 clinical data API",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(askCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(out io.Writer) zerolog.Logger {
	if os.Getenv("ENV") == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: out}).With().Timestamp().Logger()
	}
	return zerolog.New(out).With().Timestamp().Logger()
}
