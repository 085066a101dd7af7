package cli

import (
	"context"
	"io"
	"strings"

	"github.com/aretw0/coachflow"
	"github.com/aretw0/coachflow/internal/presentation/tui"
	"github.com/aretw0/coachflow/pkg/domain"
)

// ChatOptions configures a terminal conversation.
type ChatOptions struct {
	SessionID  string
	SequenceID string
	MessageID  string

	// Interactive enables the banner, markdown rendering, colours and
	// animation delays.
	Interactive bool
	// Watch evicts cached flows whenever a sequence document changes.
	Watch bool
	// Debug prints the session's store changes after every step.
	Debug bool
}

// Chat converses with one session over in/out until the flow ends, input is
// exhausted or ctx is done.
func (rt *Runtime) Chat(ctx context.Context, in io.Reader, out io.Writer, opts ChatOptions) error {
	if opts.SessionID == "" {
		opts.SessionID = "cli"
	}

	if opts.Watch {
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()
		if err := rt.WatchSequences(ctx); err != nil {
			return err
		}
	}

	var chatOpts []tui.ChatOption
	if opts.Interactive {
		tui.PrintBanner(out, strings.TrimSpace(coachflow.Version))
		chatOpts = append(chatOpts,
			tui.WithRenderer(tui.NewRenderer()),
			tui.WithColors(true),
			tui.WithAnimations(true),
		)
	}

	if opts.Debug {
		sessions := rt.Engine.Sessions()
		sessionID := opts.SessionID
		chatOpts = append(chatOpts, tui.WithStateDiff(func(ctx context.Context) (domain.Snapshot, error) {
			return sessions.Values(ctx, sessionID)
		}))
	}

	chat := tui.NewChat(rt.Engine, opts.SessionID, in, out, chatOpts...)
	return chat.Run(ctx, opts.SequenceID, opts.MessageID)
}

// WatchSequences evicts every cached flow when a sequence document changes,
// so the next call of each session reloads its sequence. It returns once the
// watcher is running.
func (rt *Runtime) WatchSequences(ctx context.Context) error {
	changes, err := rt.Engine.Watch(ctx)
	if err != nil {
		return err
	}
	go func() {
		for id := range changes {
			rt.Logger.Info("sequence changed, reloading", "sequence_id", id)
			rt.Engine.Sessions().Evict()
		}
	}()
	return nil
}
