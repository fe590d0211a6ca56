package runtime_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/multipage/internal/runtime"
	"github.com/aretw0/multipage/pkg/domain"
	"github.com/aretw0/multipage/pkg/graph"
	"github.com/aretw0/multipage/pkg/registry"
	"github.com/aretw0/multipage/pkg/store"
)

func input(id, key string, required bool) domain.Element {
	return domain.Element{ID: id, Type: domain.ElementInput, BoundKey: key, Required: required, Props: domain.InputProps{Label: id}}
}

func text(id, s string) domain.Element {
	return domain.Element{ID: id, Type: domain.ElementText, Props: domain.TextProps{Text: s}}
}

func wizard(t *testing.T) *graph.Graph {
	t.Helper()
	g, err := graph.New(
		domain.Page{ID: "A", Elements: []domain.Element{input("name", "name", true)}},
		domain.Page{
			ID:     "B",
			Kind:   domain.PageBranch,
			Branch: &domain.Branch{Key: "skipEverything", Cases: map[string]string{"true": "D", "false": "C1"}},
			Elements: []domain.Element{{
				ID:       "skip",
				Type:     domain.ElementBranchSelector,
				BoundKey: "skipEverything",
				Props:    domain.BranchSelectorProps{Options: []string{"true", "false"}},
			}},
		},
		domain.Page{ID: "C1", Elements: []domain.Element{input("c1", "c1", false)}},
		domain.Page{ID: "C2"},
		domain.Page{ID: "D", Kind: domain.PageTerminal},
	)
	require.NoError(t, err)
	return g
}

func linear(t *testing.T, pages ...domain.Page) *graph.Graph {
	t.Helper()
	g, err := graph.New(pages...)
	require.NoError(t, err)
	return g
}

func TestController_BranchScenario(t *testing.T) {
	ctx := context.Background()
	c := runtime.New(wizard(t))
	require.NoError(t, c.Start(ctx))
	assert.Equal(t, "A", c.Current())

	err := c.Advance(ctx)
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.True(t, verr.Has("name"))
	assert.Equal(t, domain.ReasonEmpty, verr.Failures[0].Reason)
	assert.Equal(t, "A", c.Current(), "a refused advance keeps the page")

	require.NoError(t, c.SetValue(ctx, "name", "Ada"))
	require.NoError(t, c.Advance(ctx))
	assert.Equal(t, "B", c.Current())

	require.NoError(t, c.SetValue(ctx, "skip", true))
	require.NoError(t, c.Advance(ctx))
	assert.Equal(t, "D", c.Current())
	assert.Equal(t, []string{"A", "B", "D"}, c.History())

	require.NoError(t, c.Advance(ctx))
	assert.Equal(t, domain.StatusFinished, c.Status())
	assert.ErrorIs(t, c.Advance(ctx), domain.ErrSessionFinished)
	assert.ErrorIs(t, c.Back(ctx), domain.ErrSessionFinished)
}

func TestController_FalseCaseFollowsSequence(t *testing.T) {
	ctx := context.Background()
	st := store.New()
	require.NoError(t, st.Merge(map[string]any{"name": "Ada", "skipEverything": false}))

	c := runtime.New(wizard(t), runtime.WithStore(st))
	require.NoError(t, c.Start(ctx))
	require.NoError(t, c.Advance(ctx))
	require.NoError(t, c.Advance(ctx))
	assert.Equal(t, "C1", c.Current())
	require.NoError(t, c.Advance(ctx))
	assert.Equal(t, "C2", c.Current())
	require.NoError(t, c.Advance(ctx))
	assert.Equal(t, []string{"A", "B", "C1", "C2", "D"}, c.History())
}

func TestController_ResolutionErrorAborts(t *testing.T) {
	ctx := context.Background()
	st := store.New()
	require.NoError(t, st.Merge(map[string]any{"name": "Ada", "skipEverything": "maybe"}))

	c := runtime.New(wizard(t), runtime.WithStore(st))
	require.NoError(t, c.Start(ctx))
	require.NoError(t, c.Advance(ctx))

	err := c.Advance(ctx)
	var rerr *domain.ResolutionError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, "B", rerr.PageID)
	assert.Equal(t, "maybe", rerr.Value)
	assert.Equal(t, domain.StatusAborted, c.Status())

	assert.ErrorAs(t, c.Advance(ctx), &rerr)
	assert.NotEmpty(t, c.Snapshot().Abort)
}

func TestController_RequiredAsyncTaskBlocksAdvance(t *testing.T) {
	ctx := context.Background()
	release := make(chan struct{})
	reg := registry.NewRegistry()
	reg.RegisterDeferred("install", func(ctx context.Context, call registry.Call, done registry.Completion) {
		go func() {
			<-release
			done(map[string]any{"installed": true}, nil)
		}()
	})

	g := linear(t,
		domain.Page{ID: "P1", Tasks: []domain.Task{{
			ID:           "install",
			Kind:         domain.TaskCustom,
			Notification: domain.NotifyAsync,
			Trigger:      domain.TriggerOnSubmit,
			Required:     true,
			Spec:         domain.CustomSpec{Function: "install"},
		}}},
		domain.Page{ID: "P2"},
	)
	c := runtime.New(g, runtime.WithRegistry(reg))
	require.NoError(t, c.Start(ctx))

	err := c.Advance(ctx)
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []domain.Failure{{ID: "install", Kind: domain.FailureTask, Reason: domain.ReasonPending}}, verr.Failures)

	// A second attempt must not start the task again.
	require.Error(t, c.Advance(ctx))

	close(release)
	waitCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	require.NoError(t, c.Wait(waitCtx))

	require.NoError(t, c.Advance(ctx))
	assert.Equal(t, "P2", c.Current())
	assert.True(t, c.Store().Bool("installed"))
}

func TestController_RequiredTaskFailure(t *testing.T) {
	ctx := context.Background()
	calls := 0
	reg := registry.NewRegistry()
	reg.Register("check", func(ctx context.Context, call registry.Call) (map[string]any, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("license server down")
		}
		return nil, nil
	})

	g := linear(t,
		domain.Page{ID: "P1", Tasks: []domain.Task{{
			ID: "check", Kind: domain.TaskCustom, Trigger: domain.TriggerOnSubmit, Required: true,
			Spec: domain.CustomSpec{Function: "check"},
		}}},
		domain.Page{ID: "P2"},
	)
	c := runtime.New(g, runtime.WithRegistry(reg))
	require.NoError(t, c.Start(ctx))

	err := c.Advance(ctx)
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, domain.ReasonFailed, verr.Failures[0].Reason)
	assert.Contains(t, verr.Failures[0].Detail, "license server down")

	require.NoError(t, c.Advance(ctx), "failed submit tasks run again")
	assert.Equal(t, 2, calls)
}

func TestController_BackKeepsValues(t *testing.T) {
	ctx := context.Background()
	g := linear(t,
		domain.Page{ID: "P1", Elements: []domain.Element{input("a", "a", true)}},
		domain.Page{ID: "P2", Elements: []domain.Element{input("b", "b", false)}},
		domain.Page{ID: "P3"},
	)
	c := runtime.New(g)
	require.NoError(t, c.Start(ctx))

	var seen []string
	grows := func() {
		keys := c.Store().Keys()
		for _, k := range seen {
			assert.Contains(t, keys, k, "store lost key %s", k)
		}
		seen = keys
	}

	require.NoError(t, c.SetValue(ctx, "a", "one"))
	grows()
	require.NoError(t, c.Advance(ctx))
	grows()
	require.NoError(t, c.SetValue(ctx, "b", "two"))
	grows()
	require.NoError(t, c.Advance(ctx))
	grows()
	require.NoError(t, c.Back(ctx))
	grows()

	view, err := c.View()
	require.NoError(t, err)
	assert.Equal(t, "P2", view.PageID)
	assert.Equal(t, "two", view.Elements[0].Value)
	assert.True(t, view.CanGoBack)

	require.NoError(t, c.Back(ctx))
	grows()
	assert.ErrorIs(t, c.Back(ctx), domain.ErrNoHistory)
	assert.Equal(t, []string{"P1"}, c.History())
}

func TestController_NestedTaskOutputKeepsInputs(t *testing.T) {
	ctx := context.Background()
	reg := registry.NewRegistry()
	reg.Register("install", func(ctx context.Context, call registry.Call) (map[string]any, error) {
		return map[string]any{"install": map[string]any{"done": true}}, nil
	})
	g := linear(t,
		domain.Page{
			ID:       "A",
			Elements: []domain.Element{input("root", "install.root", true)},
			Tasks: []domain.Task{{
				ID: "install", Kind: domain.TaskCustom, Trigger: domain.TriggerOnSubmit,
				Spec: domain.CustomSpec{Function: "install"},
			}},
		},
		domain.Page{ID: "B", Elements: []domain.Element{input("mode", "install.mode", false)}},
		domain.Page{ID: "C"},
	)
	c := runtime.New(g, runtime.WithRegistry(reg))
	require.NoError(t, c.Start(ctx))

	var seen []string
	grows := func(step string) {
		keys := c.Store().Keys()
		for _, k := range seen {
			assert.Contains(t, keys, k, "%s lost key %s", step, k)
		}
		seen = keys
	}

	require.NoError(t, c.SetValue(ctx, "root", "/tmp/w"))
	grows("set root")
	steps := []struct {
		name string
		run  func() error
	}{
		{"advance", func() error { return c.Advance(ctx) }},
		{"set mode", func() error { return c.SetValue(ctx, "mode", "full") }},
		{"back", func() error { return c.Back(ctx) }},
		{"advance again", func() error { return c.Advance(ctx) }},
		{"advance to end", func() error { return c.Advance(ctx) }},
		{"back from end", func() error { return c.Back(ctx) }},
		{"back to start", func() error { return c.Back(ctx) }},
	}
	for _, st := range steps {
		require.NoError(t, st.run(), st.name)
		grows(st.name)
	}

	assert.Equal(t, "/tmp/w", c.Store().String("install.root"))
	assert.True(t, c.Store().Bool("install.done"))
	assert.Equal(t, "full", c.Store().String("install.mode"))
}

func TestController_RefusalListsElementsAndTasks(t *testing.T) {
	ctx := context.Background()
	calls := 0
	reg := registry.NewRegistry()
	reg.Register("check", func(ctx context.Context, call registry.Call) (map[string]any, error) {
		calls++
		return nil, nil
	})
	g := linear(t,
		domain.Page{
			ID:       "P1",
			Elements: []domain.Element{input("name", "name", true)},
			Tasks: []domain.Task{{
				ID: "check", Kind: domain.TaskCustom, Trigger: domain.TriggerOnSubmit, Required: true,
				Spec: domain.CustomSpec{Function: "check"},
			}},
		},
		domain.Page{ID: "P2"},
	)
	c := runtime.New(g, runtime.WithRegistry(reg))
	require.NoError(t, c.Start(ctx))

	err := c.Advance(ctx)
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []domain.Failure{
		{ID: "name", Kind: domain.FailureElement, Reason: domain.ReasonEmpty},
		{ID: "check", Kind: domain.FailureTask, Reason: domain.ReasonPending},
	}, verr.Failures)
	assert.Zero(t, calls, "submit tasks wait for required elements")

	require.NoError(t, c.SetValue(ctx, "name", "Ada"))
	require.NoError(t, c.Advance(ctx))
	assert.Equal(t, 1, calls)
	assert.Equal(t, "P2", c.Current())
}

func TestController_SkipIf(t *testing.T) {
	ctx := context.Background()
	var skipped []string
	hooks := domain.LifecycleHooks{
		OnPageSkip: func(ctx context.Context, e *domain.PageEvent) {
			skipped = append(skipped, e.PageID)
		},
	}
	g := linear(t,
		domain.Page{ID: "S1"},
		domain.Page{ID: "S2", SkipIf: "expert == true"},
		domain.Page{ID: "S3"},
	)

	st := store.New()
	require.NoError(t, st.Set("expert", true))
	c := runtime.New(g, runtime.WithStore(st), runtime.WithLifecycleHooks(hooks))
	require.NoError(t, c.Start(ctx))
	require.NoError(t, c.Advance(ctx))
	assert.Equal(t, []string{"S1", "S3"}, c.History())
	assert.Equal(t, []string{"S2"}, skipped)

	// Forced jumps ignore skip conditions.
	require.NoError(t, c.JumpTo(ctx, "S2", true))
	assert.Equal(t, "S2", c.Current())
}

func TestController_UnsetSkipKeyDoesNotSkip(t *testing.T) {
	ctx := context.Background()
	g := linear(t, domain.Page{ID: "S1"}, domain.Page{ID: "S2", SkipIf: "expert"}, domain.Page{ID: "S3"})
	c := runtime.New(g)
	require.NoError(t, c.Start(ctx))
	require.NoError(t, c.Advance(ctx))
	assert.Equal(t, "S2", c.Current())
}

func TestController_JumpHistory(t *testing.T) {
	ctx := context.Background()
	g := linear(t, domain.Page{ID: "P1"}, domain.Page{ID: "P2"}, domain.Page{ID: "P3"}, domain.Page{ID: "P4"})
	c := runtime.New(g)
	require.NoError(t, c.Start(ctx))
	require.NoError(t, c.Advance(ctx))
	require.NoError(t, c.Advance(ctx))

	require.NoError(t, c.JumpTo(ctx, "P1", false))
	assert.Equal(t, []string{"P1"}, c.History())

	require.NoError(t, c.Advance(ctx))
	require.NoError(t, c.JumpTo(ctx, "P4", true))
	assert.Equal(t, []string{"P1", "P2", "P4"}, c.History())

	require.NoError(t, c.JumpToIndex(ctx, 1, false))
	assert.Equal(t, []string{"P1", "P2"}, c.History())

	require.NoError(t, c.JumpTo(ctx, "P3", false))
	assert.Equal(t, []string{"P3"}, c.History())

	assert.ErrorIs(t, c.JumpTo(ctx, "nope", true), domain.ErrPageNotFound)
	assert.Error(t, c.JumpToIndex(ctx, 9, true))
	assert.Equal(t, "P3", c.Current())
}

func TestController_SetValue(t *testing.T) {
	ctx := context.Background()
	reg := registry.NewRegistry()
	reg.Register("upper", func(ctx context.Context, call registry.Call) (map[string]any, error) {
		return map[string]any{"echo": call.Value}, nil
	})
	g := linear(t, domain.Page{ID: "P1", Elements: []domain.Element{
		text("intro", "hello"),
		{ID: "accept", Type: domain.ElementButton, BoundKey: "accepted", Props: domain.ButtonProps{Label: "Accept", Toggle: true}},
		{ID: "tags", Type: domain.ElementTagList, BoundKey: "tags", Props: domain.TagListProps{Options: []string{"go", "zig"}, Multiple: true}},
		{ID: "os", Type: domain.ElementTagList, BoundKey: "os", Props: domain.TagListProps{Options: []string{"linux", "mac"}}},
		{ID: "dir", Type: domain.ElementInput, BoundKey: "dir", OnChange: "upper", Props: domain.InputProps{}},
	}})
	c := runtime.New(g, runtime.WithRegistry(reg))
	require.NoError(t, c.Start(ctx))

	assert.ErrorIs(t, c.SetValue(ctx, "ghost", "x"), domain.ErrUnknownElement)
	assert.ErrorIs(t, c.SetValue(ctx, "intro", "x"), domain.ErrUnknownElement)

	assert.ErrorIs(t, c.SetValue(ctx, "accept", "maybe"), domain.ErrInvalidValue)
	require.NoError(t, c.SetValue(ctx, "accept", "true"))
	assert.Equal(t, true, mustGet(t, c.Store(), "accepted"))

	assert.ErrorIs(t, c.SetValue(ctx, "tags", []string{"go", "rust"}), domain.ErrInvalidValue)
	require.NoError(t, c.SetValue(ctx, "tags", []any{"go", "zig"}))
	assert.Equal(t, []any{"go", "zig"}, c.Store().List("tags"))

	assert.ErrorIs(t, c.SetValue(ctx, "os", []string{"linux", "mac"}), domain.ErrInvalidValue)
	require.NoError(t, c.SetValue(ctx, "os", "mac"))
	assert.Equal(t, "mac", c.Store().String("os"))

	require.NoError(t, c.SetValue(ctx, "dir", "/opt"))
	assert.Equal(t, "/opt", c.Store().String("echo"))
}

func mustGet(t *testing.T, st *store.Store, key string) any {
	t.Helper()
	v, ok := st.Get(key)
	require.True(t, ok, "missing key %s", key)
	return v
}

func TestController_View(t *testing.T) {
	ctx := context.Background()
	g := linear(t, domain.Page{
		ID:    "P1",
		Title: "Install $product",
		Elements: []domain.Element{
			text("intro", "Installing $product into ${paths.root}"),
			{ID: "dir", Type: domain.ElementInput, BoundKey: "dir", Props: domain.InputProps{Default: "$home/app"}},
			{ID: "accept", Type: domain.ElementButton, BoundKey: "accepted", Props: domain.ButtonProps{Toggle: true}},
			{ID: "cfg", Type: domain.ElementSettings, Props: domain.SettingsProps{Keys: []string{"product", "missing"}}},
		},
	})
	st := store.New()
	require.NoError(t, st.Merge(map[string]any{"product": "Widget", "home": "/home/u"}))
	c := runtime.New(g, runtime.WithStore(st))
	require.NoError(t, c.Start(ctx))

	view, err := c.View()
	require.NoError(t, err)
	assert.Equal(t, "Install Widget", view.Title)
	assert.Equal(t, 0, view.Index)
	assert.Equal(t, 1, view.Total)
	assert.False(t, view.CanGoBack)

	require.Len(t, view.Elements, 4)
	assert.Equal(t, domain.TextProps{Text: "Installing Widget into ${paths.root}"}, view.Elements[0].Props)
	assert.Equal(t, "/home/u/app", view.Elements[1].Value)
	assert.Equal(t, false, view.Elements[2].Value)
	assert.Equal(t, map[string]any{"product": "Widget"}, view.Elements[3].Value)

	// Defaults apply once: a user edit survives re-entry.
	require.NoError(t, c.SetValue(ctx, "dir", "/srv"))
	require.NoError(t, c.JumpTo(ctx, "P1", false))
	assert.Equal(t, "/srv", c.Store().String("dir"))
}

func TestController_OnEnterTasks(t *testing.T) {
	ctx := context.Background()
	calls := 0
	reg := registry.NewRegistry()
	reg.Register("scan", func(ctx context.Context, call registry.Call) (map[string]any, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("flaky")
		}
		return map[string]any{"scanned": true}, nil
	})
	g := linear(t,
		domain.Page{
			ID:    "P1",
			Tasks: []domain.Task{{ID: "scan", Kind: domain.TaskCustom, Spec: domain.CustomSpec{Function: "scan"}}},
			Elements: []domain.Element{
				{ID: "status", Type: domain.ElementTask, Props: domain.TaskProps{TaskID: "scan"}},
			},
		},
		domain.Page{ID: "P2"},
	)
	c := runtime.New(g, runtime.WithRegistry(reg))
	require.NoError(t, c.Start(ctx))
	assert.Equal(t, 1, calls)

	view, err := c.View()
	require.NoError(t, err)
	assert.Equal(t, domain.TaskFailed, view.Elements[0].TaskStatus)

	// Non-required failures do not block.
	require.NoError(t, c.Advance(ctx))
	require.NoError(t, c.Back(ctx))
	assert.Equal(t, 2, calls, "failed OnEnter tasks re-run on back")

	require.NoError(t, c.Advance(ctx))
	require.NoError(t, c.Back(ctx))
	assert.Equal(t, 2, calls, "completed OnEnter tasks do not re-run on back")
	assert.True(t, c.Store().Bool("scanDone"))
}

func TestController_SnapshotRestore(t *testing.T) {
	ctx := context.Background()
	g := wizard(t)
	c := runtime.New(g, runtime.WithSessionID("s1"))
	require.NoError(t, c.Start(ctx))
	require.NoError(t, c.SetValue(ctx, "name", "Ada"))
	require.NoError(t, c.Advance(ctx))

	snap := c.Snapshot()
	assert.Equal(t, "s1", snap.SessionID)
	assert.Equal(t, "B", snap.Current)

	restored := runtime.New(g)
	require.NoError(t, restored.Restore(ctx, snap))
	assert.Equal(t, "B", restored.Current())
	assert.Equal(t, []string{"A", "B"}, restored.History())
	assert.Equal(t, "Ada", restored.Store().String("name"))

	require.NoError(t, restored.Back(ctx))
	assert.Equal(t, "A", restored.Current())

	bad := snap
	bad.Current = "ghost"
	assert.ErrorIs(t, runtime.New(g).Restore(ctx, bad), domain.ErrPageNotFound)
}

func TestController_RestoreSkippedEverything(t *testing.T) {
	ctx := context.Background()
	g := linear(t, domain.Page{ID: "P1", SkipIf: "true"}, domain.Page{ID: "P2", SkipIf: "true"})
	c := runtime.New(g)
	require.NoError(t, c.Start(ctx))
	require.Equal(t, domain.StatusFinished, c.Status())

	snap := c.Snapshot()
	assert.Empty(t, snap.Current)

	restored := runtime.New(g)
	require.NoError(t, restored.Restore(ctx, snap))
	assert.Equal(t, domain.StatusFinished, restored.Status())
	assert.Empty(t, restored.History())
	assert.ErrorIs(t, restored.Advance(ctx), domain.ErrSessionFinished)

	snap.Status = domain.StatusActive
	assert.ErrorIs(t, runtime.New(g).Restore(ctx, snap), domain.ErrPageNotFound)
}

func TestController_RestoreRerunsInterruptedTasks(t *testing.T) {
	ctx := context.Background()
	calls := 0
	reg := registry.NewRegistry()
	reg.Register("warm", func(ctx context.Context, call registry.Call) (map[string]any, error) {
		calls++
		return nil, nil
	})
	g := linear(t, domain.Page{
		ID:    "P1",
		Tasks: []domain.Task{{ID: "warm", Kind: domain.TaskCustom, Spec: domain.CustomSpec{Function: "warm"}}},
	})

	c := runtime.New(g, runtime.WithRegistry(reg))
	require.NoError(t, c.Restore(ctx, domain.Snapshot{
		Current: "P1",
		History: []string{"P1"},
		Status:  domain.StatusActive,
		Values:  map[string]any{"_tasks": map[string]any{"warm": map[string]any{"status": "pending"}}},
		Tasks:   map[string]domain.TaskRecord{"warm": {Page: "P1", Status: domain.TaskPending}},
	}))

	assert.Equal(t, 1, calls)
	assert.Equal(t, "completed", c.Store().String(domain.TaskStatusKey("warm")))
	assert.Equal(t, domain.TaskCompleted, c.Snapshot().Tasks["warm"].Status)
}

type fakeSettings struct {
	mu     sync.Mutex
	values map[string]any
	asked  [][]string
	err    error
}

func (f *fakeSettings) Load(ctx context.Context, keys []string) (map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.asked = append(f.asked, keys)
	if f.err != nil {
		return nil, f.err
	}
	out := map[string]any{}
	for _, k := range keys {
		if v, ok := f.values[k]; ok {
			out[k] = v
		}
	}
	return out, nil
}

func (f *fakeSettings) Save(ctx context.Context, keys []string, values map[string]any) error {
	return nil
}

func TestController_LoadsPageSettings(t *testing.T) {
	ctx := context.Background()
	g := linear(t, domain.Page{ID: "P1", Settings: []string{"root", "theme"}})

	st := store.New()
	require.NoError(t, st.Set("theme", "dark"))
	settings := &fakeSettings{values: map[string]any{"root": "/opt", "theme": "light"}}

	c := runtime.New(g, runtime.WithStore(st), runtime.WithSettings(settings))
	require.NoError(t, c.Start(ctx))
	assert.Equal(t, [][]string{{"root"}}, settings.asked)
	assert.Equal(t, "/opt", st.String("root"))
	assert.Equal(t, "dark", st.String("theme"))

	broken := &fakeSettings{err: errors.New("unreadable")}
	c = runtime.New(g, runtime.WithSettings(broken))
	require.NoError(t, c.Start(ctx), "settings failures fall back to defaults")
	assert.False(t, c.Store().Has("root"))
}

type MockRenderHost struct {
	mock.Mock
}

func (m *MockRenderHost) Render(ctx context.Context, v domain.PageView) error {
	return m.Called(ctx, v).Error(0)
}

func onPage(id string) any {
	return mock.MatchedBy(func(v domain.PageView) bool { return v.PageID == id })
}

func TestController_RendersAfterEntry(t *testing.T) {
	ctx := context.Background()
	host := new(MockRenderHost)
	host.On("Render", mock.Anything, onPage("P1")).Return(nil).Once()
	host.On("Render", mock.Anything, onPage("P2")).Return(errors.New("screen gone")).Once()

	g := linear(t, domain.Page{ID: "P1"}, domain.Page{ID: "P2"})
	c := runtime.New(g, runtime.WithRenderHost(host))
	require.NoError(t, c.Start(ctx))
	require.NoError(t, c.Advance(ctx), "render failures are logged, not returned")
	host.AssertExpectations(t)
}

func TestController_LifecycleHooks(t *testing.T) {
	ctx := context.Background()
	var entered, left, refused []string
	var finished int
	hooks := domain.LifecycleHooks{
		OnPageEnter: func(ctx context.Context, e *domain.PageEvent) { entered = append(entered, e.PageID) },
		OnPageLeave: func(ctx context.Context, e *domain.PageEvent) { left = append(left, e.PageID) },
		OnValidationFailed: func(ctx context.Context, e *domain.ValidationEvent) {
			refused = append(refused, e.PageID)
		},
		OnFinish: func(ctx context.Context, e *domain.PageEvent) { finished++ },
	}
	g := linear(t,
		domain.Page{ID: "P1", Elements: []domain.Element{input("a", "a", true)}},
		domain.Page{ID: "P2"},
	)
	c := runtime.New(g, runtime.WithLifecycleHooks(hooks))
	require.NoError(t, c.Start(ctx))
	require.Error(t, c.Advance(ctx))
	require.NoError(t, c.SetValue(ctx, "a", "x"))
	require.NoError(t, c.Advance(ctx))
	require.NoError(t, c.Back(ctx))
	require.NoError(t, c.Advance(ctx))
	require.NoError(t, c.Advance(ctx))

	assert.Equal(t, []string{"P1", "P2", "P1", "P2"}, entered)
	assert.Equal(t, []string{"P1", "P2", "P1", "P2"}, left)
	assert.Equal(t, []string{"P1"}, refused)
	assert.Equal(t, 1, finished)
}

func TestController_NotStarted(t *testing.T) {
	c := runtime.New(linear(t, domain.Page{ID: "P1"}))
	assert.Error(t, c.Advance(context.Background()))
	_, err := c.View()
	assert.Error(t, err)
	require.NoError(t, c.Start(context.Background()))
	assert.Error(t, c.Start(context.Background()))
}
