package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "storyvault",
		Short: "Archival crawler for serialized web fiction",
		Long: `storyvault discovers serialized stories on their source site, enumerates
their chapter lists across pagination, and archives chapter content into
tiered storage so it stays readable after the source rots away.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is config.yaml lookup via environment)")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newCrawlCmd())

	return cmd
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "storyvault: %v\n", err)
		os.Exit(1)
	}
}
