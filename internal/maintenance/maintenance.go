// Package maintenance implements the idempotent maintenance sweep that
// keeps the slice index from growing unbounded: stale chain and slice
// deletion, relevance-score decay/boost, and full-text reconciliation.
package maintenance

import (
	"fmt"
	"time"

	"github.com/amaydixit11/memvault/internal/sliceindex"
	"github.com/amaydixit11/memvault/internal/vaultclock"
)

const (
	chainMaxAge           = 30 * 24 * time.Hour
	staleSliceRelevance   = 0.2
	staleSliceAccessAfter = 7 * 24 * time.Hour
)

// Report summarizes a single sweep's effect.
type Report struct {
	ChainsDeleted       int   `json:"chains_deleted"`
	SlicesDeleted       int   `json:"slices_deleted"`
	SlicesScoreAdjusted int   `json:"slices_score_adjusted"`
	ElapsedMillis       int64 `json:"elapsed_millis"`
}

// Sweeper runs the periodic optimize() pass over a slice index.
type Sweeper struct {
	index *sliceindex.Store
	clock vaultclock.Clock
}

// New returns a Sweeper over index.
func New(index *sliceindex.Store, clock vaultclock.Clock) *Sweeper {
	return &Sweeper{index: index, clock: clock}
}

// Optimize runs one idempotent sweep: deletes chains older than 30 days,
// deletes slices that are simultaneously low-relevance, stale, and
// unused, adjusts relevance scores by usage, and reconciles the
// full-text index against whatever rows survive. On an empty store it
// returns an all-zero Report without error.
func (sw *Sweeper) Optimize() (Report, error) {
	start := time.Now()

	now, err := time.Parse(time.RFC3339Nano, sw.clock.Now())
	if err != nil {
		return Report{}, fmt.Errorf("maintenance: parse clock time: %w", err)
	}

	chainCutoff := now.Add(-chainMaxAge).Format(time.RFC3339Nano)
	chainsDeleted, err := sw.index.DeleteChainsOlderThan(chainCutoff)
	if err != nil {
		return Report{}, err
	}

	staleCutoff := now.Add(-staleSliceAccessAfter).Format(time.RFC3339Nano)
	slicesDeleted, err := sw.index.DeleteStaleSlices(staleSliceRelevance, staleCutoff)
	if err != nil {
		return Report{}, err
	}

	adjusted, err := sw.index.AdjustRelevanceScores(staleCutoff)
	if err != nil {
		return Report{}, err
	}

	if err := sw.index.Reconcile(); err != nil {
		return Report{}, err
	}

	return Report{
		ChainsDeleted:       chainsDeleted,
		SlicesDeleted:       slicesDeleted,
		SlicesScoreAdjusted: adjusted,
		ElapsedMillis:       time.Since(start).Milliseconds(),
	}, nil
}
