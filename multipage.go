package multipage

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/aretw0/multipage/internal/logging"
	"github.com/aretw0/multipage/internal/runtime"
	"github.com/aretw0/multipage/internal/tasks"
	"github.com/aretw0/multipage/pkg/adapters/archive"
	"github.com/aretw0/multipage/pkg/adapters/file"
	"github.com/aretw0/multipage/pkg/adapters/fs"
	"github.com/aretw0/multipage/pkg/adapters/network"
	"github.com/aretw0/multipage/pkg/condition"
	"github.com/aretw0/multipage/pkg/domain"
	"github.com/aretw0/multipage/pkg/graph"
	"github.com/aretw0/multipage/pkg/monolith"
	"github.com/aretw0/multipage/pkg/persistence"
	"github.com/aretw0/multipage/pkg/ports"
	"github.com/aretw0/multipage/pkg/registry"
	"github.com/aretw0/multipage/pkg/session"
)

// Engine is the high-level entry point for the multipage library.
// It owns a validated page graph and the capabilities its tasks use, and
// builds one controller per session.
type Engine struct {
	graph  *graph.Graph
	loader ports.GraphLoader

	registry   *registry.Registry
	evaluator  *condition.Evaluator
	settings   ports.SettingsFile
	fs         ports.FileSystem
	downloader ports.Downloader
	extractor  ports.Extractor
	host       ports.RenderHost
	hooks      domain.LifecycleHooks

	taskTimeout time.Duration
	tempDir     string
	logger      *slog.Logger
	Name        string

	runner  *tasks.Runner
	adapter *persistence.Adapter
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithLoader injects a custom GraphLoader, bypassing path detection.
func WithLoader(l ports.GraphLoader) Option {
	return func(e *Engine) { e.loader = l }
}

// WithGraph uses an already validated graph.
func WithGraph(g *graph.Graph) Option {
	return func(e *Engine) { e.graph = g }
}

// WithRegistry sets the functions used by custom tasks, function checks and
// element change callbacks.
func WithRegistry(r *registry.Registry) Option {
	return func(e *Engine) { e.registry = r }
}

// WithFunction registers a synchronous function on the engine registry.
func WithFunction(name string, fn registry.Function) Option {
	return func(e *Engine) {
		if e.registry == nil {
			e.registry = registry.NewRegistry()
		}
		e.registry.Register(name, fn)
	}
}

// WithSettingsFile enables page settings and persist tasks.
func WithSettingsFile(s ports.SettingsFile) Option {
	return func(e *Engine) { e.settings = s }
}

// WithSettingsPath stores settings in a JSON or YAML file at path.
func WithSettingsPath(path string) Option {
	return func(e *Engine) { e.settings = file.NewSettings(path) }
}

// WithFileSystem overrides the OS file system capability.
func WithFileSystem(f ports.FileSystem) Option {
	return func(e *Engine) { e.fs = f }
}

// WithDownloader overrides the HTTP downloader.
func WithDownloader(d ports.Downloader) Option {
	return func(e *Engine) { e.downloader = d }
}

// WithExtractor overrides the zip extractor.
func WithExtractor(x ports.Extractor) Option {
	return func(e *Engine) { e.extractor = x }
}

// WithRenderHost delivers every entered page to h.
func WithRenderHost(h ports.RenderHost) Option {
	return func(e *Engine) { e.host = h }
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) { e.hooks = hooks }
}

// WithTaskTimeout bounds tasks that do not declare a timeout.
func WithTaskTimeout(d time.Duration) Option {
	return func(e *Engine) { e.taskTimeout = d }
}

// WithTempDir sets where downloads without destination go.
func WithTempDir(dir string) Option {
	return func(e *Engine) { e.tempDir = dir }
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// New loads the page graph at path and prepares the engine.
// If WithLoader or WithGraph is given, path is only used as the engine name.
func New(path string, opts ...Option) (*Engine, error) {
	return NewContext(context.Background(), path, opts...)
}

// NewContext is New with a context for loading the graph.
func NewContext(ctx context.Context, path string, opts ...Option) (*Engine, error) {
	eng := &Engine{}
	for _, opt := range opts {
		opt(eng)
	}

	if path != "" {
		eng.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	if eng.graph == nil {
		if eng.loader == nil {
			if path == "" {
				return nil, fmt.Errorf("path is required when no custom loader is provided")
			}
			l, err := OpenLoader(path)
			if err != nil {
				return nil, err
			}
			eng.loader = l
		}
		pages, err := eng.loader.LoadPages(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load pages: %w", err)
		}
		g, err := graph.New(pages...)
		if err != nil {
			return nil, err
		}
		eng.graph = g
	}

	eng.init()
	return eng, nil
}

// init fills defaults and builds the shared task runner.
func (e *Engine) init() {
	// Ensure logger is initialized (so we don't pass nil to the runtime)
	if e.logger == nil {
		e.logger = logging.NewNop()
	}
	if e.Name != "" {
		e.logger = e.logger.With("graph", e.Name)
	}
	if e.registry == nil {
		e.registry = registry.NewRegistry()
	}
	if e.evaluator == nil {
		e.evaluator = condition.New()
	}
	if e.fs == nil {
		e.fs = fs.New(fs.WithLogger(e.logger))
	}
	if e.downloader == nil {
		e.downloader = network.New(network.WithLogger(e.logger))
	}
	if e.extractor == nil {
		e.extractor = archive.New()
	}

	runnerOpts := []tasks.Option{
		tasks.WithFileSystem(e.fs),
		tasks.WithDownloader(e.downloader),
		tasks.WithExtractor(e.extractor),
		tasks.WithRegistry(e.registry),
		tasks.WithEvaluator(e.evaluator),
		tasks.WithLifecycleHooks(e.hooks),
		tasks.WithLogger(e.logger),
		tasks.WithDefaultTimeout(e.taskTimeout),
		tasks.WithTempDir(e.tempDir),
	}
	if e.settings != nil {
		e.adapter = persistence.New(e.settings, persistence.WithLogger(e.logger))
		runnerOpts = append(runnerOpts, tasks.WithSaver(e.adapter))
	}
	e.runner = tasks.New(runnerOpts...)
}

// Graph returns the validated page graph.
func (e *Engine) Graph() *graph.Graph {
	return e.graph
}

// Registry returns the function registry shared by every session.
func (e *Engine) Registry() *registry.Registry {
	return e.registry
}

// Loader returns the underlying GraphLoader, nil when built WithGraph.
func (e *Engine) Loader() ports.GraphLoader {
	return e.loader
}

// Controller builds an unstarted controller for sessionID.
func (e *Engine) Controller(sessionID string) *runtime.Controller {
	opts := []runtime.Option{
		runtime.WithSessionID(sessionID),
		runtime.WithRunner(e.runner),
		runtime.WithRegistry(e.registry),
		runtime.WithEvaluator(e.evaluator),
		runtime.WithLifecycleHooks(e.hooks),
		runtime.WithLogger(e.logger),
	}
	if e.adapter != nil {
		opts = append(opts, runtime.WithSettings(e.adapter))
	}
	if e.host != nil {
		opts = append(opts, runtime.WithRenderHost(e.host))
	}
	return runtime.New(e.graph, opts...)
}

// Start begins a session on the first page. An empty id gets a random one.
func (e *Engine) Start(ctx context.Context, sessionID string) (*runtime.Controller, error) {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	c := e.Controller(sessionID)
	if err := c.Start(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// Resume restores a session from snap.
func (e *Engine) Resume(ctx context.Context, snap domain.Snapshot) (*runtime.Controller, error) {
	c := e.Controller(snap.SessionID)
	if err := c.Restore(ctx, snap); err != nil {
		return nil, err
	}
	return c, nil
}

// Sessions returns a session manager persisting into store.
func (e *Engine) Sessions(store ports.SessionStore, opts ...session.Option) *session.Manager {
	opts = append([]session.Option{session.WithLogger(e.logger)}, opts...)
	return session.NewManager(store, e.Controller, opts...)
}

// Export serializes the graph and the session held by c.
func (e *Engine) Export(c *runtime.Controller, opts ...monolith.Option) ([]byte, error) {
	opts = append([]monolith.Option{
		monolith.WithName(e.Name),
		monolith.WithGenerator("multipage " + strings.TrimSpace(Version)),
	}, opts...)
	return monolith.Export(c.Graph(), c.Snapshot(), opts...)
}

// Replay imports a monolith and resumes its session on the embedded graph,
// with this engine's capabilities and hooks.
func (e *Engine) Replay(ctx context.Context, blob []byte, opts ...monolith.Option) (*runtime.Controller, *monolith.Monolith, error) {
	m, err := monolith.Import(blob, opts...)
	if err != nil {
		return nil, nil, err
	}
	clone := *e
	clone.graph = m.Graph
	c, err := clone.Resume(ctx, m.Snapshot)
	if err != nil {
		return nil, nil, err
	}
	return c, m, nil
}

// Watch returns a channel that signals when the underlying definitions change.
// Returns error if the loader does not support watching.
func (e *Engine) Watch(ctx context.Context) (<-chan struct{}, error) {
	if w, ok := e.loader.(ports.Watchable); ok {
		return w.Watch(ctx)
	}
	return nil, fmt.Errorf("current loader does not support watching")
}
