package retrieval

import (
	"testing"

	"github.com/amaydixit11/memvault/internal/keywords"
	"github.com/amaydixit11/memvault/internal/sliceindex"
	"github.com/amaydixit11/memvault/internal/vaultclock"
	"github.com/amaydixit11/memvault/internal/vaultmodel"
)

func newTestEngine(t *testing.T) (*Engine, *sliceindex.Store) {
	t.Helper()
	idx, err := sliceindex.Open(":memory:")
	if err != nil {
		t.Fatalf("sliceindex.Open: %v", err)
	}
	t.Cleanup(func() { idx.Close() })
	return New(idx, vaultclock.Fixed{At: "2026-01-01T00:00:00Z"}), idx
}

func storeSlice(t *testing.T, idx *sliceindex.Store, id, content string) {
	t.Helper()
	slice := vaultmodel.MemorySlice{
		SliceID:        id,
		PersonaID:      "alden",
		OwnerID:        "user-1",
		Content:        content,
		MemoryType:     vaultmodel.Episodic,
		Keywords:       keywords.Extract(content),
		RelevanceScore: 0.5,
		CreatedAt:      "2026-01-01T00:00:00Z",
		LastAccessed:   "2026-01-01T00:00:00Z",
	}
	if err := idx.StoreSlice(slice); err != nil {
		t.Fatalf("StoreSlice(%s): %v", id, err)
	}
}

func TestRetrieveOrdersByRelevanceAndExcludesBelowThreshold(t *testing.T) {
	e, idx := newTestEngine(t)
	storeSlice(t, idx, "a", "apple pie recipe with cinnamon and sugar")
	storeSlice(t, idx, "b", "banana bread recipe")
	storeSlice(t, idx, "c", "car engine maintenance guide")

	result, err := e.Retrieve("apple pie cinnamon sugar", "user-1", "alden", Options{})
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}

	ids := make([]string, len(result.Slices))
	for i, s := range result.Slices {
		ids[i] = s.Slice.SliceID
	}
	if len(ids) != 1 || ids[0] != "a" {
		t.Fatalf("Retrieve order = %v, want exactly slice 'a', unrelated slices excluded below min similarity", ids)
	}

	got, ok, err := idx.GetSlice("a")
	if err != nil || !ok {
		t.Fatalf("GetSlice(a): %v, %v", ok, err)
	}
	if got.RetrievalCount != 1 {
		t.Errorf("a.RetrievalCount = %d, want 1", got.RetrievalCount)
	}
}

func TestRetrieveEmptyStoreReturnsNoResults(t *testing.T) {
	e, _ := newTestEngine(t)
	result, err := e.Retrieve("anything", "user-1", "alden", Options{})
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(result.Slices) != 0 || result.TotalRelevance != 0 {
		t.Errorf("Retrieve on empty store = %+v, want no slices", result)
	}
}

func TestRetrieveRespectsMemoryTypeFilter(t *testing.T) {
	e, idx := newTestEngine(t)
	storeSlice(t, idx, "a", "apple pie recipe with cinnamon")
	semantic := vaultmodel.MemorySlice{
		SliceID: "b", PersonaID: "alden", OwnerID: "user-1",
		Content: "apple pie recipe with cinnamon", MemoryType: vaultmodel.Semantic,
		Keywords: keywords.Extract("apple pie recipe with cinnamon"),
		RelevanceScore: 0.5, CreatedAt: "2026-01-01T00:00:00Z", LastAccessed: "2026-01-01T00:00:00Z",
	}
	if err := idx.StoreSlice(semantic); err != nil {
		t.Fatalf("StoreSlice: %v", err)
	}

	result, err := e.Retrieve("apple cinnamon", "user-1", "alden", Options{MemoryTypes: []vaultmodel.MemoryType{vaultmodel.Semantic}})
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	for _, s := range result.Slices {
		if s.Slice.MemoryType != vaultmodel.Semantic {
			t.Errorf("Retrieve with type filter returned %s slice", s.Slice.MemoryType)
		}
	}
}

func TestRetrieveRespectsMaxResults(t *testing.T) {
	e, idx := newTestEngine(t)
	for i := 0; i < 5; i++ {
		storeSlice(t, idx, string(rune('a'+i)), "apple pie recipe with cinnamon and sugar")
	}

	result, err := e.Retrieve("apple cinnamon", "user-1", "alden", Options{MaxResults: 2})
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(result.Slices) != 2 {
		t.Fatalf("len(result.Slices) = %d, want 2", len(result.Slices))
	}
}
