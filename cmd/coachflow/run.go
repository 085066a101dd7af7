package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/aretw0/coachflow/internal/cli"
	"github.com/aretw0/coachflow/internal/config"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run [dir]",
	Short: "Chat with a coaching flow in the terminal",
	Long:  `Starts (or resumes) a session and converses with it on stdin/stdout.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sessionID, _ := cmd.Flags().GetString("session")
		sequenceID, _ := cmd.Flags().GetString("sequence")
		messageID, _ := cmd.Flags().GetString("message")
		watchMode, _ := cmd.Flags().GetBool("watch")
		plain, _ := cmd.Flags().GetBool("plain")
		debug, _ := cmd.Flags().GetBool("debug")

		rt, err := buildRuntime(cmd, func(cfg *config.Config) {
			if !cmd.Flags().Changed("dir") && len(args) > 0 {
				cfg.Sequences.Dir = args[0]
			}
			watchMode = watchMode || cfg.Sequences.Watch
		})
		if err != nil {
			return err
		}
		defer rt.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		interactive := !plain && term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
		err = rt.Chat(ctx, os.Stdin, os.Stdout, cli.ChatOptions{
			SessionID:   sessionID,
			SequenceID:  sequenceID,
			MessageID:   messageID,
			Interactive: interactive,
			Watch:       watchMode,
			Debug:       debug,
		})
		if ctx.Err() != nil {
			return nil
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().String("session", "cli", "Session id to start or resume")
	runCmd.Flags().String("sequence", "", "Sequence to start (default: resume, else the entry sequence)")
	runCmd.Flags().String("message", "", "Message to start from (default: the sequence entry)")
	runCmd.Flags().BoolP("watch", "w", false, "Reload sequences when their documents change")
	runCmd.Flags().Bool("plain", false, "Disable banner, markdown rendering and colours")
	runCmd.Flags().Bool("debug", false, "Print store changes after every step")

	rootCmd.Args = runCmd.Args
	rootCmd.RunE = runCmd.RunE
	rootCmd.Flags().AddFlagSet(runCmd.Flags())
}
