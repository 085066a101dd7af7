package tui

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/aretw0/coachflow/pkg/domain"
	"github.com/aretw0/coachflow/pkg/ports"
	"github.com/muesli/termenv"
)

// Chat drives one session of a FlowService from a line-oriented terminal.
type Chat struct {
	service   ports.FlowService
	sessionID string

	reader     *bufio.Reader
	writer     io.Writer
	renderer   func(string) (string, error)
	animations bool
	profile    termenv.Profile

	snapshot func(context.Context) (domain.Snapshot, error)
	last     domain.Snapshot
}

// ChatOption configures a Chat.
type ChatOption func(*Chat)

// WithRenderer renders bot text (markdown) before printing.
func WithRenderer(render func(string) (string, error)) ChatOption {
	return func(c *Chat) {
		c.renderer = render
	}
}

// WithAnimations honours the delayMs of message animations.
func WithAnimations(enabled bool) ChatOption {
	return func(c *Chat) {
		c.animations = enabled
	}
}

// WithColors enables ANSI colours using the terminal's profile.
func WithColors(enabled bool) ChatOption {
	return func(c *Chat) {
		if enabled {
			c.profile = termenv.ColorProfile()
		} else {
			c.profile = termenv.Ascii
		}
	}
}

// WithStateDiff prints the store changes after every step, reading the
// session's values with snapshot.
func WithStateDiff(snapshot func(context.Context) (domain.Snapshot, error)) ChatOption {
	return func(c *Chat) {
		c.snapshot = snapshot
	}
}

// NewChat creates a chat for sessionID reading r and writing w.
func NewChat(service ports.FlowService, sessionID string, r io.Reader, w io.Writer, opts ...ChatOption) *Chat {
	c := &Chat{
		service:   service,
		sessionID: sessionID,
		reader:    bufio.NewReader(r),
		writer:    w,
		profile:   termenv.Ascii,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run starts (or resumes, with empty ids) the flow and converses until the
// flow ends, input is exhausted, the user types "exit" or ctx is done.
func (c *Chat) Run(ctx context.Context, sequenceID, messageID string) error {
	res, err := c.service.Start(ctx, c.sessionID, sequenceID, messageID)
	if err != nil {
		return err
	}

	for {
		if err := c.show(ctx, res); err != nil {
			return err
		}
		c.showDiff(ctx)
		if res.RequiresTransition {
			c.system("Could not continue to sequence %q.", res.TransitionTarget)
			return nil
		}
		if !res.AwaitingInput {
			return nil
		}

		node := res.Messages[len(res.Messages)-1]
		next, err := c.ask(ctx, res.AwaitingNodeID, node)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if next == nil {
			return nil
		}
		res = next
	}
}

// ask reads responses until the flow accepts one. A nil result means the
// user quit.
func (c *Chat) ask(ctx context.Context, nodeID string, node domain.MessageNode) (*domain.TraversalResult, error) {
	for {
		if node.Kind == domain.KindChoice {
			for i, choice := range node.Choices {
				fmt.Fprintf(c.writer, "  %d) %s\n", i+1, choice.Text)
			}
		}

		line, err := c.readLine(ctx)
		if err != nil {
			return nil, err
		}
		if line == "exit" || line == "quit" {
			c.system("Bye!")
			return nil, nil
		}

		res, err := c.service.Respond(ctx, c.sessionID, nodeID, parseResponse(node, line))
		if errors.Is(err, domain.ErrInvalidResponse) {
			fmt.Fprintf(c.writer, "Error: %v. Please try again.\n", err)
			continue
		}
		return res, err
	}
}

// parseResponse maps "2" to the second option of a choice; anything else
// is sent as text.
func parseResponse(node domain.MessageNode, line string) domain.Response {
	if node.Kind == domain.KindChoice {
		if n, err := strconv.Atoi(line); err == nil && n >= 1 && n <= len(node.Choices) {
			idx := n - 1
			return domain.Response{ChoiceIndex: &idx}
		}
	}
	return domain.Response{Text: line}
}

func (c *Chat) readLine(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	fmt.Fprint(c.writer, "> ")

	lines := make(chan string, 1)
	errs := make(chan error, 1)
	go func() {
		text, err := c.reader.ReadString('\n')
		if err != nil && text == "" {
			errs <- err
			return
		}
		lines <- text
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case err := <-errs:
		return "", err
	case text := <-lines:
		return strings.TrimSpace(text), nil
	}
}

func (c *Chat) show(ctx context.Context, res *domain.TraversalResult) error {
	for _, m := range res.Messages {
		if c.animations && m.Animation != nil && m.Animation.DelayMs > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(m.Animation.DelayMs) * time.Millisecond):
			}
		}

		switch m.Kind {
		case domain.KindImage:
			fmt.Fprintln(c.writer, c.profile.String("[image] "+m.ImageURL).Faint())
		case domain.KindUser:
			fmt.Fprintln(c.writer, c.profile.String("you: "+m.Text).Italic())
		default:
			fmt.Fprintln(c.writer, c.render(m.Text))
		}
	}
	return nil
}

func (c *Chat) render(text string) string {
	if c.renderer == nil {
		return text
	}
	out, err := c.renderer(text)
	if err != nil {
		return text
	}
	return strings.TrimSpace(out)
}

func (c *Chat) system(format string, args ...any) {
	fmt.Fprintln(c.writer, c.profile.String(">>> "+fmt.Sprintf(format, args...)).Foreground(c.profile.Color("#60a5fa")))
}

func (c *Chat) showDiff(ctx context.Context) {
	if c.snapshot == nil {
		return
	}
	snap, err := c.snapshot(ctx)
	if err != nil {
		c.system("Could not read state: %v", err)
		return
	}
	diff := domain.Diff(c.last, snap)
	c.last = snap
	for _, k := range diff.Keys() {
		fmt.Fprintln(c.writer, c.profile.String(fmt.Sprintf("  ~ %s = %s", k, domain.StringForm(diff.Changed[k]))).Faint())
	}
	if diff != nil {
		for _, k := range diff.Removed {
			fmt.Fprintln(c.writer, c.profile.String("  - "+k).Faint())
		}
	}
}
