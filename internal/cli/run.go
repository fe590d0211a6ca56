package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/aretw0/multipage"
	"github.com/aretw0/multipage/internal/logging"
	"github.com/aretw0/multipage/internal/runtime"
	"github.com/aretw0/multipage/pkg/domain"
	"github.com/aretw0/multipage/pkg/ports"
)

// RunOptions configures a console session.
type RunOptions struct {
	// SessionID enables persistence: the session is resumed from Store when
	// present and saved after every step.
	SessionID string
	Store     ports.SessionStore
	// Values are written before the first prompt, in key order of the page
	// elements that bind them.
	Values map[string]string
	Auto   bool
	Lines  <-chan string
	// Out receives prompts and messages; nil discards them.
	Out    io.Writer
	Host   ports.RenderHost
	Logger *slog.Logger
}

// RunSession starts or resumes a session and drives it from the console.
// Leaving with :quit or at end of input is not an error.
func RunSession(ctx context.Context, eng *multipage.Engine, opts RunOptions) (*runtime.Controller, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	if opts.Out == nil {
		opts.Out = io.Discard
	}

	ctrl, resumed, err := open(ctx, eng, opts)
	if err != nil {
		return nil, err
	}
	if resumed {
		printSystemMessage(opts.Out, "Resuming at '%s' page.", ctrl.Current())
	}
	logger.Info("session ready", "session_id", opts.SessionID, "page", ctrl.Current(), "resumed", resumed)

	save := func(ctx context.Context, c *runtime.Controller) error {
		if opts.SessionID == "" || opts.Store == nil {
			return nil
		}
		snap := c.Snapshot()
		if err := opts.Store.Save(ctx, opts.SessionID, &snap); err != nil {
			return fmt.Errorf("save session: %w", err)
		}
		return nil
	}

	if err := Preset(ctx, ctrl, opts.Values); err != nil {
		return ctrl, err
	}
	if err := save(ctx, ctrl); err != nil {
		return ctrl, err
	}

	console := NewConsole(opts.Lines, opts.Out,
		WithRenderHost(opts.Host),
		WithAuto(opts.Auto),
		WithStepHook(func(ctx context.Context, c *runtime.Controller) error {
			if opts.Auto {
				// Values given up front may belong to later pages.
				if err := Preset(ctx, c, opts.Values); err != nil {
					return err
				}
			}
			return save(ctx, c)
		}),
		WithLogger(logger),
	)

	err = console.Run(ctx, ctrl)
	if saveErr := save(context.WithoutCancel(ctx), ctrl); saveErr != nil {
		logger.Warn("final save failed", "error", saveErr)
	}
	switch {
	case err == nil:
		printSystemMessage(opts.Out, "Finished at '%s' page.", ctrl.Current())
		return ctrl, nil
	case isInterrupted(err):
		printSystemMessage(opts.Out, "Stopped at '%s' page.", ctrl.Current())
		return ctrl, nil
	}
	return ctrl, err
}

func open(ctx context.Context, eng *multipage.Engine, opts RunOptions) (*runtime.Controller, bool, error) {
	if opts.SessionID != "" && opts.Store != nil {
		snap, err := opts.Store.Load(ctx, opts.SessionID)
		switch {
		case err == nil:
			ctrl, err := eng.Resume(ctx, *snap)
			if err != nil {
				return nil, false, fmt.Errorf("resume %s: %w", opts.SessionID, err)
			}
			return ctrl, true, nil
		case !errors.Is(err, domain.ErrSessionNotFound):
			return nil, false, err
		}
	}
	ctrl, err := eng.Start(ctx, opts.SessionID)
	if err != nil {
		return nil, false, err
	}
	return ctrl, false, nil
}

// Preset writes values to the elements of the current page that bind them.
// Keys that no element on the page binds are left for later pages.
func Preset(ctx context.Context, ctrl *runtime.Controller, values map[string]string) error {
	if len(values) == 0 || ctrl.Status() != domain.StatusActive {
		return nil
	}
	view, err := ctrl.View()
	if err != nil {
		return err
	}
	for _, el := range view.Elements {
		raw, ok := values[el.BoundKey]
		if !ok || el.BoundKey == "" {
			continue
		}
		if _, editable := promptLabel(el); !editable {
			continue
		}
		if err := ctrl.SetValue(ctx, el.ID, parseInput(el, raw)); err != nil {
			return fmt.Errorf("--set %s: %w", el.BoundKey, err)
		}
	}
	return nil
}

// ParseAssignments turns key=value pairs into a map.
func ParseAssignments(pairs []string) (map[string]string, error) {
	values := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid assignment %q, expected key=value", pair)
		}
		values[key] = value
	}
	return values, nil
}

// printSystemMessage prints a standardized system message.
func printSystemMessage(w io.Writer, format string, args ...any) {
	if w == nil {
		return
	}
	fmt.Fprintf(w, ">>> %s\n", fmt.Sprintf(format, args...))
}

func isInterrupted(err error) bool {
	return errors.Is(err, ErrQuit) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, context.Canceled)
}
