// Package tasks runs page tasks (validate, download, extract, custom,
// persist) synchronously or on background goroutines and commits their
// outcome into the State Store through a single atomic Merge.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"slices"
	"time"

	"github.com/aretw0/multipage/pkg/condition"
	"github.com/aretw0/multipage/pkg/domain"
	"github.com/aretw0/multipage/pkg/ports"
	"github.com/aretw0/multipage/pkg/registry"
	"github.com/aretw0/multipage/pkg/store"
	"github.com/aretw0/multipage/pkg/template"
)

// unknownSizeStep is how many bytes a download of unknown length writes
// between progress updates.
const unknownSizeStep = 64 << 10

// Saver persists a subset of store keys. pkg/persistence.Adapter implements it.
type Saver interface {
	Save(ctx context.Context, keys []string, values map[string]any) error
}

// Runner executes tasks. It is safe for concurrent use and may be shared by sessions.
type Runner struct {
	fs         ports.FileSystem
	downloader ports.Downloader
	extractor  ports.Extractor
	registry   *registry.Registry
	saver      Saver
	eval       *condition.Evaluator
	hooks      domain.LifecycleHooks
	logger     *slog.Logger
	timeout    time.Duration
	tempDir    string
}

// Option configures a Runner.
type Option func(*Runner)

func WithFileSystem(fs ports.FileSystem) Option   { return func(r *Runner) { r.fs = fs } }
func WithDownloader(d ports.Downloader) Option    { return func(r *Runner) { r.downloader = d } }
func WithExtractor(e ports.Extractor) Option      { return func(r *Runner) { r.extractor = e } }
func WithRegistry(reg *registry.Registry) Option  { return func(r *Runner) { r.registry = reg } }
func WithSaver(s Saver) Option                    { return func(r *Runner) { r.saver = s } }
func WithEvaluator(e *condition.Evaluator) Option { return func(r *Runner) { r.eval = e } }

// WithLifecycleHooks registers task start/finish observers.
func WithLifecycleHooks(h domain.LifecycleHooks) Option {
	return func(r *Runner) { r.hooks = h }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// WithDefaultTimeout bounds every task that does not declare its own timeout.
func WithDefaultTimeout(d time.Duration) Option {
	return func(r *Runner) { r.timeout = d }
}

// WithTempDir sets where downloads without a destination are written.
func WithTempDir(dir string) Option {
	return func(r *Runner) { r.tempDir = dir }
}

// New creates a Runner.
func New(opts ...Option) *Runner {
	r := &Runner{}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.New(slog.DiscardHandler)
	}
	if r.eval == nil {
		r.eval = condition.New()
	}
	if r.registry == nil {
		r.registry = registry.NewRegistry()
	}
	if r.tempDir == "" {
		r.tempDir = os.TempDir()
	}
	return r
}

// Request identifies a task run.
type Request struct {
	SessionID string
	PageID    string
	Task      domain.Task
}

// Start runs the task. Sync tasks finish before Start returns; async tasks run
// on their own goroutine, detached from ctx cancellation so that they outlive
// the navigation call that fired them.
func (r *Runner) Start(ctx context.Context, req Request, st *store.Store) *Handle {
	h := newHandle(req.PageID, req.Task)
	logger := r.logger.With("page", req.PageID, "task", req.Task.ID, "kind", req.Task.Kind)

	if err := st.Merge(map[string]any{
		domain.TaskStatusKey(req.Task.ID): string(domain.TaskPending),
		domain.TaskReasonKey(req.Task.ID): "",
	}); err != nil {
		logger.Error("failed to record task start", "error", err)
	}
	r.emitStart(ctx, req)

	if req.Task.EffectiveNotification() == domain.NotifySync {
		h.finish(r.execute(ctx, req, st, logger))
		return h
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	h.cancel = cancel
	go func() {
		defer cancel()
		h.finish(r.execute(runCtx, req, st, logger))
	}()
	return h
}

func (r *Runner) execute(ctx context.Context, req Request, st *store.Store, logger *slog.Logger) domain.Outcome {
	started := time.Now()
	logger.Debug("task started")

	outcome, cause := r.run(ctx, req, st)
	outcome = r.commit(req.Task, outcome, st)

	switch outcome.Status {
	case domain.TaskFailed:
		logger.Warn("task failed",
			"error", &domain.TaskFailure{TaskID: req.Task.ID, Reason: outcome.Reason, Err: cause},
			"duration", time.Since(started))
	default:
		logger.Debug("task completed", "duration", time.Since(started))
	}
	r.emitFinish(ctx, req, outcome, time.Since(started))
	return outcome
}

// commit writes the outcome in one Merge. A failed task writes only its status keys.
func (r *Runner) commit(t domain.Task, o domain.Outcome, st *store.Store) domain.Outcome {
	if o.Status == domain.TaskCompleted {
		writes := make(map[string]any, len(o.Writes)+3)
		for k, v := range o.Writes {
			writes[k] = v
		}
		writes[t.DoneKey()] = true
		writes[domain.TaskStatusKey(t.ID)] = string(domain.TaskCompleted)
		writes[domain.TaskReasonKey(t.ID)] = ""
		err := st.Merge(writes)
		if err == nil {
			return o
		}
		o = domain.Failed(fmt.Sprintf("invalid writes: %v", err))
	}
	_ = st.Merge(map[string]any{
		t.DoneKey():               false,
		domain.TaskStatusKey(t.ID): string(domain.TaskFailed),
		domain.TaskReasonKey(t.ID): o.Reason,
	})
	return o
}

// run executes the task spec. The returned error is the cause of a failed
// outcome, if any.
func (r *Runner) run(ctx context.Context, req Request, st *store.Store) (domain.Outcome, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	var (
		out domain.Outcome
		err error
	)
	switch spec := req.Task.Spec.(type) {
	case domain.ValidateSpec:
		out, err = r.runValidate(ctx, req, spec, st)
	case domain.DownloadSpec:
		out, err = r.runDownload(ctx, req, spec, st)
	case domain.ExtractSpec:
		out, err = r.runExtract(ctx, req, spec, st)
	case domain.CustomSpec:
		out, err = r.runCustom(ctx, req, spec, st)
	case domain.PersistSpec:
		out, err = r.runPersist(ctx, spec, st)
	default:
		err = fmt.Errorf("unsupported task spec %T", req.Task.Spec)
	}
	if err != nil {
		return failure(err), err
	}
	return out, nil
}

func failure(err error) domain.Outcome {
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.Failed(domain.ReasonTimeout)
	}
	if errors.Is(err, context.Canceled) {
		return domain.Failed("cancelled")
	}
	return domain.Failed(err.Error())
}

func (r *Runner) runValidate(ctx context.Context, req Request, spec domain.ValidateSpec, st *store.Store) (domain.Outcome, error) {
	target := spec.TargetKey(req.Task.ID)
	var (
		ok     bool
		writes = map[string]any{}
	)

	switch spec.Check {
	case domain.CheckExists, domain.CheckDirectory:
		if r.fs == nil {
			return domain.Outcome{}, errors.New("no filesystem capability")
		}
		p, err := template.Resolve(spec.Path, lookup(st))
		if err != nil {
			return domain.Outcome{}, err
		}
		if spec.Check == domain.CheckExists {
			ok = r.fs.Exists(p)
		} else {
			ok = r.fs.IsDirectory(p)
		}
	case domain.CheckExpr:
		res, err := r.eval.Eval(spec.Expr, st.Snapshot())
		if err != nil {
			return domain.Outcome{}, err
		}
		ok = res
	case domain.CheckFunction:
		out, err := r.registry.Invoke(ctx, spec.Function, registry.Call{
			ID:     req.Task.ID,
			PageID: req.PageID,
			State:  st.Snapshot(),
		})
		if err != nil {
			return domain.Outcome{}, err
		}
		ok = true
		for k, v := range out {
			if k == target {
				ok = store.Truthy(v)
				continue
			}
			writes[k] = v
		}
	default:
		return domain.Outcome{}, fmt.Errorf("unknown check %q", spec.Check)
	}

	if !ok && spec.Must {
		return domain.Failed(fmt.Sprintf("%s check not satisfied", spec.Check)), nil
	}
	writes[target] = ok
	return domain.Completed(writes), nil
}

func (r *Runner) runDownload(ctx context.Context, req Request, spec domain.DownloadSpec, st *store.Store) (domain.Outcome, error) {
	if r.downloader == nil {
		return domain.Outcome{}, errors.New("no network capability")
	}
	lk := lookup(st)
	src, err := template.Resolve(spec.Source, lk)
	if err != nil {
		return domain.Outcome{}, err
	}
	writes := map[string]any{}
	dest := spec.Dest
	if dest == "" {
		dest = filepath.Join(r.tempDir, fmt.Sprintf("multipage-%s-%s", req.Task.ID, path.Base(src)))
		writes[req.Task.ID+"Path"] = dest
	} else if dest, err = template.Resolve(dest, lk); err != nil {
		return domain.Outcome{}, err
	}

	if spec.Timeout != "" {
		d, err := time.ParseDuration(spec.Timeout)
		if err != nil {
			return domain.Outcome{}, err
		}
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	progressKey := domain.TaskProgressKey(req.Task.ID)
	bytesKey := domain.TaskBytesKey(req.Task.ID)
	lastStep := int64(-1)
	progress := func(done, total int64) {
		// Without a length, publish the byte count once per chunk.
		if total <= 0 {
			if step := done / unknownSizeStep; step != lastStep {
				lastStep = step
				_ = st.Merge(map[string]any{bytesKey: done})
			}
			return
		}
		if step := done * 100 / total; step != lastStep {
			lastStep = step
			_ = st.Merge(map[string]any{bytesKey: done, progressKey: float64(done) / float64(total)})
		}
	}

	if err := r.downloader.Download(ctx, src, dest, progress); err != nil {
		if ctx.Err() != nil {
			return domain.Outcome{}, ctx.Err()
		}
		return domain.Outcome{}, fmt.Errorf("download %s: %w", src, err)
	}
	writes[progressKey] = 1
	return domain.Completed(writes), nil
}

func (r *Runner) runExtract(ctx context.Context, req Request, spec domain.ExtractSpec, st *store.Store) (domain.Outcome, error) {
	if r.extractor == nil {
		return domain.Outcome{}, errors.New("no archive capability")
	}
	lk := lookup(st)
	src, err := template.Resolve(spec.Source, lk)
	if err != nil {
		return domain.Outcome{}, err
	}
	dest, err := template.Resolve(spec.Dest, lk)
	if err != nil {
		return domain.Outcome{}, err
	}
	filesKey := req.Task.ID + "Files"

	if spec.SkipIfNoSource && r.fs != nil && !r.fs.Exists(src) {
		return domain.Completed(map[string]any{filesKey: []any{}}), nil
	}

	files, err := r.extractor.Unzip(ctx, src, dest, ports.ExtractOptions{
		SkipFirstComponent: spec.SkipFirstComponent,
		DeleteSource:       spec.DeleteSource,
		Overwrite:          spec.Overwrite,
	})
	if err != nil {
		return domain.Outcome{}, fmt.Errorf("extract %s: %w", src, err)
	}
	list := make([]any, len(files))
	for i, f := range files {
		list[i] = f
	}
	return domain.Completed(map[string]any{filesKey: list}), nil
}

func (r *Runner) runCustom(ctx context.Context, req Request, spec domain.CustomSpec, st *store.Store) (domain.Outcome, error) {
	out, err := r.registry.Invoke(ctx, spec.Function, registry.Call{
		ID:     req.Task.ID,
		PageID: req.PageID,
		State:  st.Snapshot(),
	})
	if err != nil {
		return domain.Outcome{}, err
	}
	if declared := req.Task.Writes; len(declared) > 0 {
		for k := range out {
			if !slices.Contains(declared, k) {
				return domain.Failed(fmt.Sprintf("undeclared write %q", k)), nil
			}
		}
	}
	return domain.Completed(out), nil
}

func (r *Runner) runPersist(ctx context.Context, spec domain.PersistSpec, st *store.Store) (domain.Outcome, error) {
	if r.saver == nil {
		return domain.Outcome{}, errors.New("no settings file configured")
	}
	if err := r.saver.Save(ctx, spec.Keys, st.Snapshot()); err != nil {
		return domain.Outcome{}, err
	}
	return domain.Completed(nil), nil
}

func lookup(st *store.Store) template.Lookup {
	return func(name string) (string, bool) {
		v, ok := st.Get(name)
		if !ok {
			return "", false
		}
		return store.Stringify(v), true
	}
}

func (r *Runner) emitStart(ctx context.Context, req Request) {
	if r.hooks.OnTaskStart == nil {
		return
	}
	r.hooks.OnTaskStart(ctx, &domain.TaskEvent{
		EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventTaskStart, SessionID: req.SessionID},
		PageID:    req.PageID,
		TaskID:    req.Task.ID,
		Kind:      req.Task.Kind,
	})
}

func (r *Runner) emitFinish(ctx context.Context, req Request, o domain.Outcome, d time.Duration) {
	if r.hooks.OnTaskFinish == nil {
		return
	}
	r.hooks.OnTaskFinish(ctx, &domain.TaskEvent{
		EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventTaskFinish, SessionID: req.SessionID},
		PageID:    req.PageID,
		TaskID:    req.Task.ID,
		Kind:      req.Task.Kind,
		Outcome:   &o,
		Duration:  d,
	})
}
