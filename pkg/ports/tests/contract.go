package tests

import (
	"context"
	"testing"

	"github.com/aretw0/multipage/pkg/ports"
)

// GraphLoaderContractTest is a reusable test suite that verifies if an adapter complies with ports.GraphLoader.
// wantIDs lists the expected page ids in sequence order.
func GraphLoaderContractTest(t *testing.T, loader ports.GraphLoader, wantIDs []string) {
	t.Helper()

	t.Run("LoadPages_Order", func(t *testing.T) {
		pages, err := loader.LoadPages(context.Background())
		if err != nil {
			t.Fatalf("unexpected error loading pages: %v", err)
		}
		if len(pages) != len(wantIDs) {
			t.Fatalf("expected %d pages, got %d", len(wantIDs), len(pages))
		}
		for i, id := range wantIDs {
			if pages[i].ID != id {
				t.Errorf("page #%d: got %q, want %q", i, pages[i].ID, id)
			}
		}
	})

	t.Run("LoadPages_Stable", func(t *testing.T) {
		first, err := loader.LoadPages(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		second, err := loader.LoadPages(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(first) != len(second) {
			t.Fatalf("page count changed between loads: %d vs %d", len(first), len(second))
		}
		for i := range first {
			if first[i].ID != second[i].ID {
				t.Errorf("page #%d changed between loads: %q vs %q", i, first[i].ID, second[i].ID)
			}
		}
	})
}
