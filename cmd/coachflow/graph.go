package main

import (
	"fmt"

	"github.com/aretw0/coachflow/internal/presentation/graph"
	"github.com/spf13/cobra"
)

// graphCmd represents the graph command
var graphCmd = &cobra.Command{
	Use:   "graph <sequence-id>",
	Short: "Export a sequence as a Mermaid diagram",
	Long: `Loads one sequence and outputs a Mermaid diagram (graph TD) of its messages.
With --session the session's awaited message is highlighted.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := buildRuntime(cmd, nil)
		if err != nil {
			return err
		}
		defer rt.Close()

		seq, err := rt.Engine.Sequence(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		var overlay *graph.Overlay
		if sessionID, _ := cmd.Flags().GetString("session"); sessionID != "" {
			overlay, err = sessionOverlay(cmd, rt.Engine.Sessions(), sessionID, seq.ID)
			if err != nil {
				return err
			}
		}

		fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(seq, overlay))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().String("session", "", "Highlight where this session stopped")
}
