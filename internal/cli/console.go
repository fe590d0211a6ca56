package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/aretw0/multipage/internal/logging"
	"github.com/aretw0/multipage/internal/runtime"
	"github.com/aretw0/multipage/pkg/domain"
	"github.com/aretw0/multipage/pkg/ports"
	"github.com/aretw0/multipage/pkg/store"
)

// ErrQuit is returned when the user leaves the wizard with :quit.
var ErrQuit = errors.New("quit")

const help = "Commands: :back, :jump <page>, :quit. Enter keeps the current value."

// Console drives a controller from line-oriented input.
type Console struct {
	lines  <-chan string
	out    io.Writer
	host   ports.RenderHost
	auto   bool
	onStep func(context.Context, *runtime.Controller) error
	logger *slog.Logger
}

// ConsoleOption configures a Console.
type ConsoleOption func(*Console)

// WithRenderHost renders each page before prompting.
func WithRenderHost(h ports.RenderHost) ConsoleOption {
	return func(c *Console) { c.host = h }
}

// WithAuto advances without prompting. A refused advance ends the run.
func WithAuto(auto bool) ConsoleOption {
	return func(c *Console) { c.auto = auto }
}

// WithStepHook runs fn after every navigation, e.g. to save a snapshot.
func WithStepHook(fn func(context.Context, *runtime.Controller) error) ConsoleOption {
	return func(c *Console) { c.onStep = fn }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) ConsoleOption {
	return func(c *Console) { c.logger = l }
}

// NewConsole creates a Console reading lines and writing prompts to out.
// A nil out discards them.
func NewConsole(lines <-chan string, out io.Writer, opts ...ConsoleOption) *Console {
	c := &Console{lines: lines, out: out}
	for _, opt := range opts {
		opt(c)
	}
	if c.out == nil {
		c.out = io.Discard
	}
	if c.logger == nil {
		c.logger = logging.NewNop()
	}
	return c
}

// Run loops render, prompt and advance until the session leaves the active
// status. It returns ErrQuit on :quit and io.EOF when input runs out.
func (c *Console) Run(ctx context.Context, ctrl *runtime.Controller) error {
	for ctrl.Status() == domain.StatusActive {
		view, err := ctrl.View()
		if err != nil {
			return err
		}
		if c.host != nil {
			if err := c.host.Render(ctx, view); err != nil {
				c.logger.Warn("render failed", "page", view.PageID, "error", err)
			}
		}

		if !c.auto {
			moved, err := c.fill(ctx, ctrl, view)
			if err != nil {
				return err
			}
			if moved {
				if err := c.step(ctx, ctrl); err != nil {
					return err
				}
				continue
			}
		}

		if err := c.advance(ctx, ctrl); err != nil {
			var verr *domain.ValidationError
			if errors.As(err, &verr) && !c.auto {
				c.printFailures(verr)
				continue
			}
			return err
		}
		if err := c.step(ctx, ctrl); err != nil {
			return err
		}
	}

	if ctrl.Status() == domain.StatusAborted {
		return fmt.Errorf("wizard aborted at %s", ctrl.Current())
	}
	return nil
}

// advance retries once after waiting when only pending tasks block the page.
func (c *Console) advance(ctx context.Context, ctrl *runtime.Controller) error {
	err := ctrl.Advance(ctx)
	var verr *domain.ValidationError
	if !errors.As(err, &verr) || !onlyPending(verr.Failures) {
		return err
	}
	fmt.Fprintln(c.out, "Waiting for tasks...")
	if err := ctrl.Wait(ctx); err != nil {
		return err
	}
	return ctrl.Advance(ctx)
}

func onlyPending(failures []domain.Failure) bool {
	for _, f := range failures {
		if f.Reason != domain.ReasonPending {
			return false
		}
	}
	return len(failures) > 0
}

func (c *Console) step(ctx context.Context, ctrl *runtime.Controller) error {
	if c.onStep == nil {
		return nil
	}
	return c.onStep(ctx, ctrl)
}

// fill prompts for every editable element. moved reports that a command
// already changed the page.
func (c *Console) fill(ctx context.Context, ctrl *runtime.Controller, view domain.PageView) (moved bool, err error) {
	for _, el := range view.Elements {
		label, ok := promptLabel(el)
		if !ok {
			continue
		}
		for {
			fmt.Fprintf(c.out, "%s [%s]: ", label, store.Stringify(el.Value))
			line, err := readLine(ctx, c.lines)
			if err != nil {
				return false, err
			}
			line = strings.TrimSpace(line)

			if strings.HasPrefix(line, ":") {
				handled, err := c.command(ctx, ctrl, line)
				if err != nil {
					return false, err
				}
				if handled {
					return true, nil
				}
				continue
			}
			if line == "" {
				break
			}
			if err := ctrl.SetValue(ctx, el.ID, parseInput(el, line)); err != nil {
				fmt.Fprintf(c.out, "  %v\n", err)
				continue
			}
			break
		}
	}
	return false, nil
}

// command runs a :command. handled is false for help and refused commands.
func (c *Console) command(ctx context.Context, ctrl *runtime.Controller, line string) (handled bool, err error) {
	name, arg, _ := strings.Cut(strings.TrimPrefix(line, ":"), " ")
	switch name {
	case "quit", "q":
		return false, ErrQuit
	case "back", "b":
		err = ctrl.Back(ctx)
	case "jump", "j":
		err = ctrl.JumpTo(ctx, strings.TrimSpace(arg), true)
	default:
		fmt.Fprintln(c.out, help)
		return false, nil
	}
	if err == nil {
		return true, nil
	}
	if errors.Is(err, domain.ErrNoHistory) || errors.Is(err, domain.ErrPageNotFound) {
		fmt.Fprintf(c.out, "  %v\n", err)
		return false, nil
	}
	return false, err
}

func (c *Console) printFailures(verr *domain.ValidationError) {
	fmt.Fprintf(c.out, "Cannot continue from %s:\n", verr.PageID)
	for _, f := range verr.Failures {
		if f.Detail != "" {
			fmt.Fprintf(c.out, "  - %s: %s (%s)\n", f.ID, f.Reason, f.Detail)
			continue
		}
		fmt.Fprintf(c.out, "  - %s: %s\n", f.ID, f.Reason)
	}
}

// promptLabel reports whether el takes a value from the console.
func promptLabel(el domain.ElementView) (string, bool) {
	if el.BoundKey == "" {
		return "", false
	}
	label := ""
	switch props := el.Props.(type) {
	case domain.InputProps:
		label = props.Label
	case domain.FileSelectorProps:
		label = props.Label
	case domain.ButtonProps:
		if !props.Toggle {
			return "", false
		}
		label = props.Label + " (true/false)"
	case domain.TagListProps:
		label = fmt.Sprintf("%s (%s)", props.Label, strings.Join(props.Options, ", "))
	case domain.BranchSelectorProps:
		label = fmt.Sprintf("%s (%s)", props.Label, strings.Join(props.Options, "/"))
	default:
		return "", false
	}
	label = strings.TrimSpace(label)
	if strings.HasPrefix(label, "(") || label == "" {
		label = strings.TrimSpace(el.ID + " " + label)
	}
	if el.Required {
		label += " *"
	}
	return label, true
}

// parseInput splits comma separated tags for multi-select lists.
func parseInput(el domain.ElementView, line string) any {
	props, ok := el.Props.(domain.TagListProps)
	if !ok || !props.Multiple {
		return line
	}
	var picked []any
	for _, part := range strings.Split(line, ",") {
		if s := strings.TrimSpace(part); s != "" {
			picked = append(picked, s)
		}
	}
	return picked
}
