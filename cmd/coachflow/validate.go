package main

import (
	"fmt"

	"github.com/aretw0/coachflow/internal/config"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate [dir]",
	Short: "Check every sequence for consistency",
	Long: `Parses every sequence document and reports broken links, unknown
cross-sequence targets and unreachable messages.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := buildRuntime(cmd, func(cfg *config.Config) {
			if !cmd.Flags().Changed("dir") && len(args) > 0 {
				cfg.Sequences.Dir = args[0]
			}
		})
		if err != nil {
			return err
		}
		defer rt.Close()

		report, err := rt.Engine.Validate(cmd.Context())
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		for _, issue := range report.Issues {
			fmt.Fprintln(out, issue.String())
		}
		if err := report.Err(); err != nil {
			return fmt.Errorf("validation failed: %w", err)
		}
		fmt.Fprintln(out, "All sequences are valid! ✅")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
