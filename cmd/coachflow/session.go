package main

import (
	"encoding/json"
	"fmt"

	"github.com/aretw0/coachflow/internal/presentation/graph"
	"github.com/aretw0/coachflow/pkg/domain"
	"github.com/aretw0/coachflow/pkg/session"
	"github.com/spf13/cobra"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage persisted sessions",
	Long:  `List, inspect, and remove the sessions held by the configured store.`,
}

var sessionLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List all sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := buildRuntime(cmd, nil)
		if err != nil {
			return err
		}
		defer rt.Close()

		sessions, err := rt.Engine.Sessions().List(cmd.Context())
		if err != nil {
			return fmt.Errorf("listing sessions: %w", err)
		}

		out := cmd.OutOrStdout()
		if len(sessions) == 0 {
			fmt.Fprintln(out, "No sessions found.")
			return nil
		}
		fmt.Fprintln(out, "Sessions:")
		for _, s := range sessions {
			fmt.Fprintln(out, "- "+s)
		}
		return nil
	},
}

var sessionInspectCmd = &cobra.Command{
	Use:   "inspect <session-id>",
	Short: "Print the stored values of a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := buildRuntime(cmd, nil)
		if err != nil {
			return err
		}
		defer rt.Close()

		values, err := rt.Engine.Sessions().Values(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("loading session '%s': %w", args[0], err)
		}

		data, err := json.MarshalIndent(values, "", "  ")
		if err != nil {
			return fmt.Errorf("marshaling session: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	},
}

var sessionRmCmd = &cobra.Command{
	Use:   "rm <session-id>...",
	Short: "Remove one or more sessions",
	Args: func(cmd *cobra.Command, args []string) error {
		if all, _ := cmd.Flags().GetBool("all"); all {
			return cobra.NoArgs(cmd, args)
		}
		return cobra.MinimumNArgs(1)(cmd, args)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := buildRuntime(cmd, nil)
		if err != nil {
			return err
		}
		defer rt.Close()

		mgr := rt.Engine.Sessions()
		if all, _ := cmd.Flags().GetBool("all"); all {
			if args, err = mgr.List(cmd.Context()); err != nil {
				return fmt.Errorf("listing sessions: %w", err)
			}
		}

		out := cmd.OutOrStdout()
		failed := 0
		for _, sessionID := range args {
			if err := mgr.Delete(cmd.Context(), sessionID); err != nil {
				fmt.Fprintf(out, "Error removing '%s': %v\n", sessionID, err)
				failed++
				continue
			}
			fmt.Fprintf(out, "Removed session '%s'\n", sessionID)
		}
		if failed > 0 {
			return fmt.Errorf("%d sessions could not be removed", failed)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(sessionLsCmd)
	sessionCmd.AddCommand(sessionInspectCmd)
	sessionCmd.AddCommand(sessionRmCmd)

	sessionRmCmd.Flags().Bool("all", false, "Remove every session")
}

// sessionOverlay marks the node sessionID waits on when it is inside
// sequenceID.
func sessionOverlay(cmd *cobra.Command, mgr *session.Manager, sessionID, sequenceID string) (*graph.Overlay, error) {
	values, err := mgr.Values(cmd.Context(), sessionID)
	if err != nil {
		return nil, fmt.Errorf("loading session '%s': %w", sessionID, err)
	}
	current, _ := values[domain.KeyCurrentSequence].(domain.String)
	awaiting, _ := values[domain.KeyAwaitingNode].(domain.String)
	if string(current) != sequenceID {
		return &graph.Overlay{}, nil
	}
	return &graph.Overlay{CurrentNode: string(awaiting)}, nil
}
