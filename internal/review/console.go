// Package review implements the interactive reviewer console. Staff use it
// to inspect pending interrupt requests and enter decisions.
package review

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/muesli/termenv"
	"golang.org/x/term"

	"github.com/enrollkit/enrollkit"
	"github.com/enrollkit/enrollkit/pkg/domain"
)

// Engine is the surface the console drives.
type Engine interface {
	Pending(ctx context.Context) ([]*domain.InterruptRequest, error)
	Resume(ctx context.Context, sessionID string, decision domain.Decision) (*enrollkit.TurnResult, error)
}

// Console reads reviewer decisions from in and writes rendered requests to
// out. Markdown rendering degrades to plain text when out is not a TTY.
type Console struct {
	engine Engine
	in     io.Reader
	out    io.Writer
	render func(string) (string, error)
}

// Option configures the Console.
type Option func(*Console)

// WithIO overrides the console's streams, mainly for tests.
func WithIO(in io.Reader, out io.Writer) Option {
	return func(c *Console) {
		c.in = in
		c.out = out
	}
}

// NewConsole creates a reviewer console.
func NewConsole(engine Engine, opts ...Option) *Console {
	c := &Console{
		engine: engine,
		in:     os.Stdin,
		out:    os.Stdout,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.render = newRenderer(c.out)
	return c
}

// newRenderer returns a markdown renderer appropriate for the output: glamour
// on a terminal, identity otherwise.
func newRenderer(out io.Writer) func(string) (string, error) {
	if f, ok := out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		if r, err := glamour.NewTermRenderer(glamour.WithAutoStyle()); err == nil {
			return r.Render
		}
	}
	return func(md string) (string, error) { return md, nil }
}

// Run processes the pending queue interactively until it is empty or the
// reviewer quits. Each request is shown once; the reviewer types approve,
// reject, modify, skip or quit.
func (c *Console) Run(ctx context.Context) error {
	scanner := bufio.NewScanner(c.in)

	for {
		pending, err := c.engine.Pending(ctx)
		if err != nil {
			return fmt.Errorf("failed to list pending reviews: %w", err)
		}
		if len(pending) == 0 {
			fmt.Fprintln(c.out, c.status("No pending reviews."))
			return nil
		}

		for _, req := range pending {
			c.show(req)

			decision, action, err := c.prompt(scanner, req)
			if err != nil {
				return err
			}
			switch action {
			case actionQuit:
				return nil
			case actionSkip:
				continue
			}

			res, err := c.engine.Resume(ctx, req.SessionID, decision)
			if err != nil {
				fmt.Fprintf(c.out, "resume failed: %v\n", err)
				continue
			}
			for _, msg := range res.Messages {
				fmt.Fprintln(c.out, "  "+msg)
			}
			fmt.Fprintln(c.out, c.status(fmt.Sprintf("Session %s is now at %s.", res.SessionID, res.Step)))
		}
	}
}

func (c *Console) show(req *domain.InterruptRequest) {
	var b strings.Builder
	fmt.Fprintf(&b, "# Review: %s\n\n", req.Kind)
	fmt.Fprintf(&b, "- **Session**: %s\n", req.SessionID)
	fmt.Fprintf(&b, "- **Request**: %s\n", req.RequestID)
	fmt.Fprintf(&b, "- **Created**: %s\n", req.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "- **Deadline**: %s\n", req.Deadline.Format("2006-01-02 15:04:05"))
	if len(req.Payload) > 0 {
		fmt.Fprintf(&b, "\n## Details\n\n")
		for k, v := range req.Payload {
			fmt.Fprintf(&b, "- %s: %v\n", k, v)
		}
	}
	if len(req.Options) > 0 {
		fmt.Fprintf(&b, "\nOptions: %s\n", strings.Join(req.Options, ", "))
	}

	rendered, err := c.render(b.String())
	if err != nil {
		rendered = b.String()
	}
	fmt.Fprint(c.out, rendered)
}

type promptAction int

const (
	actionDecide promptAction = iota
	actionSkip
	actionQuit
)

// prompt reads one decision line. Modify decisions take their correction
// from a follow-up prompt depending on the request kind.
func (c *Console) prompt(scanner *bufio.Scanner, req *domain.InterruptRequest) (domain.Decision, promptAction, error) {
	for {
		fmt.Fprintf(c.out, "decision (approve/reject/modify/skip/quit)> ")
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return domain.Decision{}, actionQuit, err
			}
			return domain.Decision{}, actionQuit, nil
		}
		choice := strings.ToLower(strings.TrimSpace(scanner.Text()))

		switch choice {
		case "quit", "q":
			return domain.Decision{}, actionQuit, nil
		case "skip", "s":
			return domain.Decision{}, actionSkip, nil
		case domain.DecisionApprove, domain.DecisionReject:
			return domain.Decision{RequestID: req.RequestID, Choice: choice}, actionDecide, nil
		case domain.DecisionModify:
			decision := domain.Decision{RequestID: req.RequestID, Choice: choice}
			switch req.Kind {
			case domain.KindPaymentConfirmation:
				fmt.Fprintf(c.out, "corrected amount> ")
				if scanner.Scan() {
					if amount, err := strconv.ParseFloat(strings.TrimSpace(scanner.Text()), 64); err == nil {
						decision.Amount = amount
					}
				}
			case domain.KindDormAssignment:
				fmt.Fprintf(c.out, "corrected dorm> ")
				if scanner.Scan() {
					decision.Dorm = strings.TrimSpace(scanner.Text())
				}
			}
			return decision, actionDecide, nil
		default:
			fmt.Fprintln(c.out, "unrecognized choice")
		}
	}
}

func (c *Console) status(msg string) string {
	return termenv.String(msg).Foreground(termenv.ANSIGreen).String()
}
