package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ajitpratap0/voterelay/pkg/config"
	"github.com/ajitpratap0/voterelay/pkg/connector/registry"
	"github.com/ajitpratap0/voterelay/pkg/errors"

	// Import all sinks to register them
	_ "github.com/ajitpratap0/voterelay/pkg/connector/destinations/db2odbc"
	_ "github.com/ajitpratap0/voterelay/pkg/connector/destinations/db2rest"
	_ "github.com/ajitpratap0/voterelay/pkg/connector/destinations/postgres"
)

var version = "0.1.0"

func main() {
	// Load .env file if it exists
	_ = godotenv.Load() // Ignore error if .env doesn't exist

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "vote-worker",
		Short: "Relay votes from a redis list into Postgres or DB2",
		Long: `vote-worker pops JSON vote messages from the "votes" redis list and inserts
each one into the configured relational database: Postgres, DB2 over ODBC,
or DB2 through its REST service.

Settings come from environment variables (and a .env file), optionally
layered over a YAML file given with --config.`,
		SilenceUsage: true,
	}

	var configFile string
	root.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to an optional YAML configuration file")

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "vote-worker v%s\n", version)
			fmt.Fprintf(out, "Go version: %s\n", runtime.Version())
			fmt.Fprintf(out, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "sinks",
		Short: "List available sinks",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Available Sinks:")
			for _, info := range registry.List() {
				fmt.Fprintf(out, "  - %-10s %-32s %s\n", info.Name, info.Selector, info.Description)
			}
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Resolve and check the configuration",
		Long: `Resolve the configuration exactly as "run" would, print it with secrets
masked, and report every validation problem. Exits non-zero when invalid.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return validateConfig(cmd, configFile)
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Run the vote relay until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorker(cmd.Context(), configFile)
		},
	})

	return root
}

func validateConfig(cmd *cobra.Command, configFile string) error {
	cfg, err := config.Resolve(config.ResolveOptions{File: configFile})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(cfg.Redacted()); err != nil {
		return fmt.Errorf("failed to render configuration: %w", err)
	}
	_ = enc.Close()

	if err := cfg.Validate(); err != nil {
		return err
	}
	if !registry.HasSink(cfg.SinkName()) {
		return errors.Newf(errors.ErrorTypeNotFound, "sink %q is not built into this binary", cfg.SinkName())
	}
	fmt.Fprintf(out, "configuration is valid; sink: %s\n", cfg.SinkName())
	return nil
}
