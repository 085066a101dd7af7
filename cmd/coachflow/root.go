package main

import (
	"fmt"
	"os"

	"github.com/aretw0/coachflow/internal/cli"
	"github.com/aretw0/coachflow/internal/config"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "coachflow",
	Short: "Coachflow is a conversational coaching flow engine",
	Long: `Coachflow runs scripted coaching conversations authored as sequence documents
(YAML, JSON or Markdown front matter) in a terminal, over HTTP or as MCP tools.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "Config file (default ./coachflow.yaml when present)")
	flags.String("dir", "", "Directory containing the sequence documents")
	flags.String("loader", "", "Sequence loader: file or loam")
	flags.String("store", "", "Store driver: memory, file, sqlite, redis or postgres")
	flags.String("log-level", "", "Log level: debug, info, warn or error")
	flags.String("log-format", "", "Log format: text or json")
}

// loadConfig reads the config file and environment, then applies the
// persistent flags the user set explicitly.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, err
	}

	overrides := map[string]*string{
		"dir":        &cfg.Sequences.Dir,
		"loader":     &cfg.Sequences.Loader,
		"store":      &cfg.Store.Driver,
		"log-level":  &cfg.Log.Level,
		"log-format": &cfg.Log.Format,
	}
	for name, dst := range overrides {
		if cmd.Flags().Changed(name) {
			*dst, _ = cmd.Flags().GetString(name)
		}
	}
	return cfg, cfg.Validate()
}

// buildRuntime loads the config, lets adjust change it and builds the runtime.
func buildRuntime(cmd *cobra.Command, adjust func(*config.Config), opts ...cli.BuildOption) (*cli.Runtime, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if adjust != nil {
		adjust(&cfg)
	}
	return cli.Build(cmd.Context(), cfg, opts...)
}
