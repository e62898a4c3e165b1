package reasoning

import (
	"testing"

	"github.com/amaydixit11/memvault/internal/retrieval"
	"github.com/amaydixit11/memvault/internal/sliceindex"
	"github.com/amaydixit11/memvault/internal/vaultclock"
	"github.com/amaydixit11/memvault/internal/vaultmodel"
)

func newTestGenerator(t *testing.T) (*Generator, *sliceindex.Store) {
	t.Helper()
	idx, err := sliceindex.Open(":memory:")
	if err != nil {
		t.Fatalf("sliceindex.Open: %v", err)
	}
	t.Cleanup(func() { idx.Close() })
	clock := vaultclock.Fixed{At: "2026-03-01T00:00:00Z"}
	return New(idx, retrieval.New(idx, clock), clock), idx
}

func TestReasonWithExplicitContextHasFourSteps(t *testing.T) {
	g, _ := newTestGenerator(t)

	context := []vaultmodel.MemorySlice{
		{SliceID: "s1", MemoryType: vaultmodel.Episodic, RelevanceScore: 0.6, Keywords: []string{"alpha"}, CreatedAt: "2026-01-01T00:00:00Z"},
		{SliceID: "s2", MemoryType: vaultmodel.Episodic, RelevanceScore: 0.6, Keywords: []string{"beta"}, CreatedAt: "2026-01-10T00:00:00Z"},
		{SliceID: "s3", MemoryType: vaultmodel.Semantic, RelevanceScore: 0.6, Keywords: []string{"gamma"}, CreatedAt: "2026-02-01T00:00:00Z"},
	}

	chain, err := g.Reason("summarize", "user-1", "alden", context)
	if err != nil {
		t.Fatalf("Reason: %v", err)
	}

	if len(chain.ReasoningSteps) != 4 {
		t.Fatalf("len(ReasoningSteps) = %d, want 4", len(chain.ReasoningSteps))
	}
	wantTypes := []string{stepQueryAnalysis, stepMemoryRetrieval, stepPatternRecognition, stepLogicalInference}
	for i, want := range wantTypes {
		if chain.ReasoningSteps[i].StepType != want {
			t.Errorf("step[%d].StepType = %q, want %q", i, chain.ReasoningSteps[i].StepType, want)
		}
	}

	if len(chain.SupportingMemories) != 3 {
		t.Fatalf("len(SupportingMemories) = %d, want 3", len(chain.SupportingMemories))
	}
	for i, id := range []string{"s1", "s2", "s3"} {
		if chain.SupportingMemories[i] != id {
			t.Errorf("SupportingMemories[%d] = %q, want %q", i, chain.SupportingMemories[i], id)
		}
	}

	if chain.ConfidenceScore < 0.55 || chain.ConfidenceScore > 0.9 {
		t.Errorf("ConfidenceScore = %v, want within [0.55, 0.9]", chain.ConfidenceScore)
	}
}

func TestReasonWithEmptyContextOmitsMemoryRetrievalStep(t *testing.T) {
	g, _ := newTestGenerator(t)

	chain, err := g.Reason("anything", "user-1", "alden", []vaultmodel.MemorySlice{})
	if err != nil {
		t.Fatalf("Reason: %v", err)
	}

	if len(chain.ReasoningSteps) != 3 {
		t.Fatalf("len(ReasoningSteps) = %d, want 3 (memory_retrieval omitted on empty context)", len(chain.ReasoningSteps))
	}
	for _, s := range chain.ReasoningSteps {
		if s.StepType == stepMemoryRetrieval {
			t.Error("expected memory_retrieval step to be omitted for empty context")
		}
	}
	// mean of query_analysis(0.9), pattern_recognition(0.7), and the
	// logical_inference fallback(0.2): (0.9+0.7+0.2)/3 = 0.6.
	if chain.ConfidenceScore < 0.59 || chain.ConfidenceScore > 0.61 {
		t.Errorf("ConfidenceScore = %v, want ~0.6", chain.ConfidenceScore)
	}
}

func TestReasonPersistsChainToIndex(t *testing.T) {
	g, idx := newTestGenerator(t)

	context := []vaultmodel.MemorySlice{
		{SliceID: "s1", MemoryType: vaultmodel.Episodic, RelevanceScore: 0.6, CreatedAt: "2026-01-01T00:00:00Z"},
	}
	chain, err := g.Reason("summarize", "user-1", "alden", context)
	if err != nil {
		t.Fatalf("Reason: %v", err)
	}

	got, ok, err := idx.GetChain(chain.ChainID)
	if err != nil || !ok {
		t.Fatalf("GetChain = (_, %v, %v), want found", ok, err)
	}
	if got.InitialQuery != "summarize" {
		t.Errorf("persisted chain InitialQuery = %q, want %q", got.InitialQuery, "summarize")
	}
}

func TestReasonFallsBackToRetrieveWhenContextNil(t *testing.T) {
	g, idx := newTestGenerator(t)

	if err := idx.StoreSlice(vaultmodel.MemorySlice{
		SliceID: "s1", OwnerID: "user-1", PersonaID: "alden",
		Content: "summarize this note", MemoryType: vaultmodel.Episodic,
		Keywords: []string{"summarize", "note"}, RelevanceScore: 0.6,
		CreatedAt: "2026-01-01T00:00:00Z", LastAccessed: "2026-01-01T00:00:00Z",
	}); err != nil {
		t.Fatalf("StoreSlice: %v", err)
	}

	chain, err := g.Reason("summarize note", "user-1", "alden", nil)
	if err != nil {
		t.Fatalf("Reason: %v", err)
	}
	if len(chain.ReasoningSteps) == 0 {
		t.Fatal("expected reasoning steps to be produced from the fallback retrieval")
	}
}
