package cli

import (
	"context"
	"time"

	"github.com/aretw0/multipage"
	"github.com/aretw0/multipage/internal/logging"
	"github.com/aretw0/multipage/pkg/adapters/memory"
)

// reloadBackoff is how long a broken definition waits before the next try.
var reloadBackoff = 2 * time.Second

// RunWatch runs the wizard in development mode: whenever the page
// definitions change, the engine is rebuilt and the session resumes from its
// last snapshot. It returns when ctx ends.
func RunWatch(ctx context.Context, build func(context.Context) (*multipage.Engine, error), opts RunOptions) error {
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	if opts.Store == nil {
		opts.Store = memory.NewStore()
	}
	if opts.SessionID == "" {
		opts.SessionID = "watch"
	}
	opts.Auto = false

	printSystemMessage(opts.Out, "Watching session '%s'.", opts.SessionID)
	for {
		reload, err := watchIteration(ctx, build, opts)
		if err != nil || !reload {
			return err
		}
		opts.Logger.Info("watcher restarting")
		printSystemMessage(opts.Out, "Change detected, reloading.")
	}
}

func watchIteration(ctx context.Context, build func(context.Context) (*multipage.Engine, error), opts RunOptions) (bool, error) {
	iterCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	eng, err := build(iterCtx)
	if err != nil {
		opts.Logger.Error("engine initialization failed", "error", err)
		printSystemMessage(opts.Out, "Invalid definitions: %v", err)
		select {
		case <-ctx.Done():
			return false, nil
		case <-time.After(reloadBackoff):
			return true, nil
		}
	}

	changes, err := eng.Watch(iterCtx)
	if err != nil {
		return false, err
	}

	done := make(chan error, 1)
	go func() {
		_, err := RunSession(iterCtx, eng, opts)
		done <- err
	}()

	select {
	case <-ctx.Done():
		cancel()
		<-done
		return false, nil
	case _, ok := <-changes:
		cancel()
		<-done
		return ok, nil
	case err := <-done:
		if err != nil {
			opts.Logger.Error("run failed", "error", err)
			printSystemMessage(opts.Out, "Run failed: %v", err)
		}
		printSystemMessage(opts.Out, "Waiting for changes...")
		select {
		case <-ctx.Done():
			return false, nil
		case _, ok := <-changes:
			return ok, nil
		}
	}
}
