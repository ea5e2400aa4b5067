package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &clientOptions{}

	rootCmd := &cobra.Command{
		Use:           "cbledger-cli",
		Short:         "Compliance balance ledger CLI",
		Long:          `A command line interface for the compliance balance ledger API.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.baseURL, "url", "http://localhost:8080", "Base URL of the ledger API")
	rootCmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 10*time.Second, "Request timeout")
	rootCmd.PersistentFlags().StringVar(&opts.idempotencyKey, "idempotency-key", "", "Idempotency-Key header for mutating requests")

	rootCmd.AddCommand(
		cbCmd(opts),
		adjustedCmd(opts),
		bankCmd(opts),
		applyCmd(opts),
		poolCmd(opts),
		routesCmd(opts),
		reconcileCmd(opts),
	)

	return rootCmd
}
