// Package reasoning implements the reasoning chain generator: a
// deterministic four-step synthesis over retrieved slices that applies a
// fixed set of inference rules to accumulate a calibrated confidence and
// persists the result.
package reasoning

import (
	"fmt"
	"strings"

	"github.com/amaydixit11/memvault/internal/keywords"
	"github.com/amaydixit11/memvault/internal/patterns"
	"github.com/amaydixit11/memvault/internal/retrieval"
	"github.com/amaydixit11/memvault/internal/sliceindex"
	"github.com/amaydixit11/memvault/internal/vaultclock"
	"github.com/amaydixit11/memvault/internal/vaultmodel"
	"github.com/google/uuid"
)

const (
	stepQueryAnalysis      = "query_analysis"
	stepMemoryRetrieval    = "memory_retrieval"
	stepPatternRecognition = "pattern_recognition"
	stepLogicalInference   = "logical_inference"
)

// Generator synthesizes reasoning chains over a retrieval engine and
// persists them to the slice index's chains table.
type Generator struct {
	index     *sliceindex.Store
	retriever *retrieval.Engine
	clock     vaultclock.Clock
}

// New returns a Generator composing index and retriever.
func New(index *sliceindex.Store, retriever *retrieval.Engine, clock vaultclock.Clock) *Generator {
	return &Generator{index: index, retriever: retriever, clock: clock}
}

// Reason synthesizes a ReasoningChain for query within the given
// owner/persona scope. If context is nil, it is populated via the
// retriever's default Retrieve call.
func (g *Generator) Reason(query, ownerID, personaID string, context []vaultmodel.MemorySlice) (vaultmodel.ReasoningChain, error) {
	if context == nil {
		result, err := g.retriever.Retrieve(query, ownerID, personaID, retrieval.Options{})
		if err != nil {
			return vaultmodel.ReasoningChain{}, err
		}
		context = make([]vaultmodel.MemorySlice, len(result.Slices))
		for i, s := range result.Slices {
			context[i] = s.Slice
		}
	}

	queryKeywords := keywords.Extract(query)

	var steps []vaultmodel.ReasoningStep
	steps = append(steps, queryAnalysisStep(queryKeywords))
	if step, ok := memoryRetrievalStep(context); ok {
		steps = append(steps, step)
	}

	found := patterns.Analyze(context, queryKeywords)
	steps = append(steps, patternRecognitionStep())
	steps = append(steps, logicalInferenceStep(query, context, found, queryKeywords))

	var confidenceSum float64
	for _, s := range steps {
		confidenceSum += s.Confidence
	}
	overallConfidence := confidenceSum / float64(len(steps))

	supporting := make([]string, len(context))
	for i, s := range context {
		supporting[i] = s.SliceID
	}

	chain := vaultmodel.ReasoningChain{
		ChainID:            uuid.NewString(),
		OwnerID:            ownerID,
		PersonaID:          personaID,
		InitialQuery:       query,
		ReasoningSteps:     steps,
		FinalConclusion:    steps[len(steps)-1].Content,
		ConfidenceScore:    overallConfidence,
		SupportingMemories: supporting,
		CreatedAt:          g.clock.Now(),
	}

	if err := g.index.StoreChain(chain); err != nil {
		return vaultmodel.ReasoningChain{}, err
	}
	return chain, nil
}

func queryAnalysisStep(queryKeywords []string) vaultmodel.ReasoningStep {
	return vaultmodel.ReasoningStep{
		StepType:   stepQueryAnalysis,
		Content:    fmt.Sprintf("extracted %d query keywords: %s", len(queryKeywords), strings.Join(queryKeywords, ", ")),
		Confidence: 0.9,
	}
}

func memoryRetrievalStep(context []vaultmodel.MemorySlice) (vaultmodel.ReasoningStep, bool) {
	if len(context) == 0 {
		return vaultmodel.ReasoningStep{}, false
	}

	counts := make(map[string]int)
	var relevanceSum float64
	for _, s := range context {
		counts[string(s.MemoryType)]++
		relevanceSum += s.RelevanceScore
	}
	meanRelevance := relevanceSum / float64(len(context))

	confidence := meanRelevance
	if confidence > 0.8 {
		confidence = 0.8
	}

	return vaultmodel.ReasoningStep{
		StepType:   stepMemoryRetrieval,
		Content:    fmt.Sprintf("retrieved %d memories across types %v", len(context), counts),
		Confidence: confidence,
	}, true
}

func patternRecognitionStep() vaultmodel.ReasoningStep {
	return vaultmodel.ReasoningStep{
		StepType:   stepPatternRecognition,
		Content:    "computed memory-type, keyword, temporal, and relevance patterns over the retrieved context",
		Confidence: 0.7,
	}
}

func logicalInferenceStep(query string, context []vaultmodel.MemorySlice, found []vaultmodel.Pattern, queryKeywords []string) vaultmodel.ReasoningStep {
	confidence := 0.4
	var sentences []string

	typesPresent := make(map[vaultmodel.MemoryType]bool)
	for _, s := range context {
		typesPresent[s.MemoryType] = true
	}
	for _, mt := range []vaultmodel.MemoryType{vaultmodel.Episodic, vaultmodel.Semantic, vaultmodel.Procedural} {
		if typesPresent[mt] {
			confidence += 0.1
			sentences = append(sentences, fmt.Sprintf("%s memories inform this conclusion", mt))
		}
	}

	for _, p := range found {
		switch p.Type {
		case patterns.TypeKeywordClustering:
			ratio, _ := p.Data["overlap_ratio"].(float64)
			if ratio > 0.5 {
				confidence += 0.15
				sentences = append(sentences, "query terms show strong alignment with recalled keywords")
			} else if ratio > 0.2 {
				confidence += 0.05
				sentences = append(sentences, "query terms show a moderate connection to recalled keywords")
			}
		case patterns.TypeRelevanceDistribution:
			mean, _ := p.Data["mean_relevance"].(float64)
			if mean > 0.7 {
				confidence += 0.1
				sentences = append(sentences, "the retrieved context is strongly relevant")
			} else if mean > 0.5 {
				confidence += 0.05
				sentences = append(sentences, "the retrieved context is moderately relevant")
			}
		case patterns.TypeTemporalClustering:
			span, _ := p.Data["span_hours"].(float64)
			if span < 24 {
				confidence += 0.1
				sentences = append(sentences, "the recalled memories are recent")
			} else if span < 168 {
				confidence += 0.05
				sentences = append(sentences, "the recalled memories cluster within the past week")
			}
		}
	}

	if confidence > 1.0 {
		confidence = 1.0
	}

	if len(sentences) == 0 {
		return vaultmodel.ReasoningStep{
			StepType:   stepLogicalInference,
			Content:    "insufficient signal in the retrieved context to draw a confident conclusion.",
			Confidence: 0.2,
		}
	}

	quality := "limited"
	if len(context) > 5 {
		quality = "comprehensive"
	} else if len(context) > 2 {
		quality = "sufficient"
	}

	conclusion := fmt.Sprintf("Analysis of %d %s memories for query '%s': %s.",
		len(context), quality, query, strings.Join(sentences, "; "))
	if len(queryKeywords) > 3 {
		conclusion += " The query spans several distinct concepts."
	}

	return vaultmodel.ReasoningStep{
		StepType:   stepLogicalInference,
		Content:    conclusion,
		Confidence: confidence,
	}
}
