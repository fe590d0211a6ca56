package session

import (
	"context"
	"fmt"
	"testing"

	"github.com/aretw0/multipage/internal/runtime"
	"github.com/aretw0/multipage/pkg/adapters/memory"
	"github.com/aretw0/multipage/pkg/domain"
	"github.com/aretw0/multipage/pkg/graph"
)

func TestManager_LockLifecycle(t *testing.T) {
	g := graph.MustNew(domain.Page{ID: "only"})
	mgr := NewManager(memory.NewStore(), func(id string) *runtime.Controller {
		return runtime.New(g, runtime.WithSessionID(id))
	})
	ctx := context.Background()
	count := 1000

	for i := 0; i < count; i++ {
		sid := fmt.Sprintf("session-%d", i)
		_, _ = mgr.Open(ctx, sid)
		_ = mgr.Delete(ctx, sid)
	}

	if n := len(mgr.locks); n != 0 {
		t.Errorf("memory leak detected: %d locks remaining after Delete", n)
	}
	if n := len(mgr.live); n != 0 {
		t.Errorf("%d controllers still live after Delete", n)
	}
}
