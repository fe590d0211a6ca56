// Package runtime drives a session through a page graph: it materializes
// the current page, applies value changes, validates requirements and moves
// between pages while tasks run through internal/tasks.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/aretw0/multipage/internal/tasks"
	"github.com/aretw0/multipage/pkg/condition"
	"github.com/aretw0/multipage/pkg/domain"
	"github.com/aretw0/multipage/pkg/graph"
	"github.com/aretw0/multipage/pkg/ports"
	"github.com/aretw0/multipage/pkg/registry"
	"github.com/aretw0/multipage/pkg/store"
)

// Settings loads and saves persisted keys. pkg/persistence.Adapter implements it.
type Settings interface {
	Load(ctx context.Context, keys []string) (map[string]any, error)
	Save(ctx context.Context, keys []string, values map[string]any) error
}

// Controller is the navigation state machine of one session.
// All exported methods are safe for concurrent use; navigation is serialized.
type Controller struct {
	graph     *graph.Graph
	store     *store.Store
	runner    *tasks.Runner
	registry  *registry.Registry
	settings  Settings
	host      ports.RenderHost
	eval      *condition.Evaluator
	hooks     domain.LifecycleHooks
	logger    *slog.Logger
	sessionID string

	mu      sync.Mutex
	started bool
	current string
	history []string
	status  domain.SessionStatus
	abort   error
	// handles holds the latest run of every task, keyed by task id.
	handles map[string]*tasks.Handle
}

// Option configures a Controller.
type Option func(*Controller)

// WithStore shares an existing store with the controller.
func WithStore(s *store.Store) Option {
	return func(c *Controller) { c.store = s }
}

// WithRunner sets the task runner. Its registry should match WithRegistry.
func WithRunner(r *tasks.Runner) Option {
	return func(c *Controller) { c.runner = r }
}

// WithRegistry sets the functions used by element change callbacks.
func WithRegistry(r *registry.Registry) Option {
	return func(c *Controller) { c.registry = r }
}

// WithSettings enables loading of page settings keys.
func WithSettings(s Settings) Option {
	return func(c *Controller) { c.settings = s }
}

// WithRenderHost delivers a PageView after every page entry.
func WithRenderHost(h ports.RenderHost) Option {
	return func(c *Controller) { c.host = h }
}

// WithEvaluator shares a condition evaluator (and its program cache).
func WithEvaluator(e *condition.Evaluator) Option {
	return func(c *Controller) { c.eval = e }
}

// WithLifecycleHooks registers page and validation observers.
// Task observers belong to the runner.
func WithLifecycleHooks(h domain.LifecycleHooks) Option {
	return func(c *Controller) { c.hooks = h }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// WithSessionID tags events and logs with a session id.
func WithSessionID(id string) Option {
	return func(c *Controller) { c.sessionID = id }
}

// New creates a controller positioned before the first page. Call Start or Restore.
func New(g *graph.Graph, opts ...Option) *Controller {
	c := &Controller{
		graph:   g,
		status:  domain.StatusActive,
		handles: make(map[string]*tasks.Handle),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.New(slog.DiscardHandler)
	}
	if c.sessionID != "" {
		c.logger = c.logger.With("session_id", c.sessionID)
	}
	if c.store == nil {
		c.store = store.New(store.WithLogger(c.logger))
	}
	if c.eval == nil {
		c.eval = condition.New()
	}
	if c.registry == nil {
		c.registry = registry.NewRegistry()
	}
	if c.runner == nil {
		c.runner = tasks.New(
			tasks.WithRegistry(c.registry),
			tasks.WithEvaluator(c.eval),
			tasks.WithLogger(c.logger),
		)
	}
	return c
}

// Store exposes the session state store.
func (c *Controller) Store() *store.Store {
	return c.store
}

// Graph returns the page graph the controller navigates.
func (c *Controller) Graph() *graph.Graph {
	return c.graph
}

// Current returns the id of the current page.
func (c *Controller) Current() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// History returns a copy of the visited page ids, current page last.
func (c *Controller) History() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.history)
}

// Status returns the session status.
func (c *Controller) Status() domain.SessionStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Start enters the first page of the graph. Its skip condition applies.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return errors.New("session already started")
	}
	c.started = true

	target, finished, err := c.resolveEntry(ctx, c.graph.Start(), "start")
	if err != nil {
		return c.fail(err)
	}
	if finished {
		c.finish(ctx, "start")
		return nil
	}
	c.history = []string{target}
	return c.land(ctx, target, "start", false)
}

// checkActive rejects navigation on finished or aborted sessions.
func (c *Controller) checkActive() error {
	switch {
	case !c.started:
		return errors.New("session not started")
	case c.status == domain.StatusAborted:
		return c.abort
	case c.status == domain.StatusFinished:
		return domain.ErrSessionFinished
	}
	return nil
}

// fail aborts the session on fatal errors and returns err.
func (c *Controller) fail(err error) error {
	var resErr *domain.ResolutionError
	if errors.As(err, &resErr) {
		c.status = domain.StatusAborted
		c.abort = err
		c.logger.Error("session aborted", "error", err)
	}
	return err
}

func (c *Controller) page(id string) (domain.Page, error) {
	p, err := c.graph.Page(id)
	if err != nil {
		return domain.Page{}, fmt.Errorf("navigation: %w", err)
	}
	return p, nil
}
