// Package sliceindex implements the persistent secondary store dedicated
// to retrieval: the slices and chains relational tables plus a full-text
// index over (content, keywords). It is deliberately separate from the
// encrypted vault file — a derivative index, local-only. Reconcile rebuilds
// the full-text index from the relational rows; it does not rebuild slice
// rows from the vault's persona or communal records.
package sliceindex

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/blevesearch/bleve/v2"
	_ "github.com/mattn/go-sqlite3"

	"github.com/amaydixit11/memvault/internal/vaultmodel"
)

// Store composes a relational store (slices, chains) with a full-text
// index over slice content and keywords. Neither concern subsumes the
// other: sqlite owns the rows of record, bleve only ever answers
// "which slice_ids match these terms".
type Store struct {
	db  *sql.DB
	fts bleve.Index
}

// Open opens or creates the sqlite-backed relational tables at path (use
// ":memory:" for an ephemeral store) and an in-memory bleve index layered
// over it. The full-text index is not itself durable; Open rebuilds it
// from the relational rows via Reconcile.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("sliceindex: open: %w", err)
	}
	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sliceindex: init schema: %w", err)
	}

	fts, err := newMemoryFTS()
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("sliceindex: init fts: %w", err)
	}

	s := &Store{db: db, fts: fts}
	if err := s.Reconcile(); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func initSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS slices (
			slice_id        TEXT PRIMARY KEY,
			persona_id      TEXT NOT NULL,
			owner_id        TEXT NOT NULL,
			content         TEXT NOT NULL,
			memory_type     TEXT NOT NULL,
			keywords        TEXT NOT NULL,
			relevance_score REAL NOT NULL,
			created_at      TEXT NOT NULL,
			last_accessed   TEXT NOT NULL,
			retrieval_count INTEGER NOT NULL,
			metadata        TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_slices_persona ON slices(persona_id);
		CREATE INDEX IF NOT EXISTS idx_slices_type ON slices(memory_type);
		CREATE INDEX IF NOT EXISTS idx_slices_relevance ON slices(relevance_score);

		CREATE TABLE IF NOT EXISTS chains (
			chain_id            TEXT PRIMARY KEY,
			persona_id          TEXT NOT NULL,
			owner_id            TEXT NOT NULL,
			initial_query       TEXT NOT NULL,
			reasoning_steps     TEXT NOT NULL,
			final_conclusion    TEXT NOT NULL,
			confidence_score    REAL NOT NULL,
			supporting_memories TEXT NOT NULL,
			created_at          TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_chains_persona ON chains(persona_id);
	`)
	return err
}

type ftsDoc struct {
	Content  string `json:"content"`
	Keywords string `json:"keywords"`
}

func newMemoryFTS() (bleve.Index, error) {
	mapping := bleve.NewIndexMapping()
	docMapping := bleve.NewDocumentMapping()

	contentField := bleve.NewTextFieldMapping()
	contentField.Analyzer = "standard"
	docMapping.AddFieldMappingsAt("content", contentField)

	keywordsField := bleve.NewTextFieldMapping()
	keywordsField.Analyzer = "standard"
	docMapping.AddFieldMappingsAt("keywords", keywordsField)

	mapping.AddDocumentMapping("slice", docMapping)
	return bleve.NewMemOnly(mapping)
}

// GenerateSliceID derives a stable slice_id from the owner, content, and
// creation instant, so re-storing identical content at the same instant
// is idempotent rather than accumulating duplicates.
func GenerateSliceID(ownerID, content, createdAt string) string {
	sum := sha256.Sum256([]byte(ownerID + "\x00" + content + "\x00" + createdAt))
	return hex.EncodeToString(sum[:])
}

// StoreSlice upserts a slice row and its full-text document.
func (s *Store) StoreSlice(slice vaultmodel.MemorySlice) error {
	keywordsJSON, err := json.Marshal(slice.Keywords)
	if err != nil {
		return fmt.Errorf("sliceindex: marshal keywords: %w", err)
	}
	metadataJSON, err := json.Marshal(slice.Metadata)
	if err != nil {
		return fmt.Errorf("sliceindex: marshal metadata: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO slices (slice_id, persona_id, owner_id, content, memory_type, keywords,
			relevance_score, created_at, last_accessed, retrieval_count, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(slice_id) DO UPDATE SET
			persona_id = excluded.persona_id,
			owner_id = excluded.owner_id,
			content = excluded.content,
			memory_type = excluded.memory_type,
			keywords = excluded.keywords,
			relevance_score = excluded.relevance_score,
			last_accessed = excluded.last_accessed,
			retrieval_count = excluded.retrieval_count,
			metadata = excluded.metadata
	`, slice.SliceID, slice.PersonaID, slice.OwnerID, slice.Content, string(slice.MemoryType),
		string(keywordsJSON), slice.RelevanceScore, slice.CreatedAt, slice.LastAccessed,
		slice.RetrievalCount, string(metadataJSON))
	if err != nil {
		return fmt.Errorf("sliceindex: upsert slice: %w", err)
	}

	if err := s.fts.Index(slice.SliceID, ftsDoc{Content: slice.Content, Keywords: joinKeywords(slice.Keywords)}); err != nil {
		return fmt.Errorf("sliceindex: index slice: %w", err)
	}
	return nil
}

func joinKeywords(keywords []string) string {
	out := ""
	for i, k := range keywords {
		if i > 0 {
			out += " "
		}
		out += k
	}
	return out
}

// GetSlice returns a single slice by id, or (false) if absent.
func (s *Store) GetSlice(sliceID string) (vaultmodel.MemorySlice, bool, error) {
	row := s.db.QueryRow(`
		SELECT slice_id, persona_id, owner_id, content, memory_type, keywords,
			relevance_score, created_at, last_accessed, retrieval_count, metadata
		FROM slices WHERE slice_id = ?
	`, sliceID)
	slice, err := scanSlice(row)
	if err == sql.ErrNoRows {
		return vaultmodel.MemorySlice{}, false, nil
	}
	if err != nil {
		return vaultmodel.MemorySlice{}, false, fmt.Errorf("sliceindex: get slice: %w", err)
	}
	return slice, true, nil
}

func scanSlice(row *sql.Row) (vaultmodel.MemorySlice, error) {
	var slice vaultmodel.MemorySlice
	var memoryType, keywordsJSON, metadataJSON string
	err := row.Scan(&slice.SliceID, &slice.PersonaID, &slice.OwnerID, &slice.Content, &memoryType,
		&keywordsJSON, &slice.RelevanceScore, &slice.CreatedAt, &slice.LastAccessed,
		&slice.RetrievalCount, &metadataJSON)
	if err != nil {
		return vaultmodel.MemorySlice{}, err
	}
	slice.MemoryType = vaultmodel.MemoryType(memoryType)
	if err := json.Unmarshal([]byte(keywordsJSON), &slice.Keywords); err != nil {
		return vaultmodel.MemorySlice{}, fmt.Errorf("unmarshal keywords: %w", err)
	}
	if err := json.Unmarshal([]byte(metadataJSON), &slice.Metadata); err != nil {
		return vaultmodel.MemorySlice{}, fmt.Errorf("unmarshal metadata: %w", err)
	}
	return slice, nil
}

// ListSlices returns every slice for (owner_id, persona_id), optionally
// filtered to the given memory types (no filter when empty).
func (s *Store) ListSlices(ownerID, personaID string, memoryTypes []vaultmodel.MemoryType) ([]vaultmodel.MemorySlice, error) {
	query := `
		SELECT slice_id, persona_id, owner_id, content, memory_type, keywords,
			relevance_score, created_at, last_accessed, retrieval_count, metadata
		FROM slices WHERE owner_id = ? AND persona_id = ?`
	args := []any{ownerID, personaID}

	if len(memoryTypes) > 0 {
		query += " AND memory_type IN ("
		for i, mt := range memoryTypes {
			if i > 0 {
				query += ", "
			}
			query += "?"
			args = append(args, string(mt))
		}
		query += ")"
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("sliceindex: list slices: %w", err)
	}
	defer rows.Close()

	var out []vaultmodel.MemorySlice
	for rows.Next() {
		var slice vaultmodel.MemorySlice
		var memoryType, keywordsJSON, metadataJSON string
		if err := rows.Scan(&slice.SliceID, &slice.PersonaID, &slice.OwnerID, &slice.Content, &memoryType,
			&keywordsJSON, &slice.RelevanceScore, &slice.CreatedAt, &slice.LastAccessed,
			&slice.RetrievalCount, &metadataJSON); err != nil {
			return nil, fmt.Errorf("sliceindex: scan slice: %w", err)
		}
		slice.MemoryType = vaultmodel.MemoryType(memoryType)
		_ = json.Unmarshal([]byte(keywordsJSON), &slice.Keywords)
		_ = json.Unmarshal([]byte(metadataJSON), &slice.Metadata)
		out = append(out, slice)
	}
	return out, rows.Err()
}

// SearchCandidates queries the full-text index with the disjunction of
// keywords and returns up to limit matching slice_ids.
func (s *Store) SearchCandidates(keywords []string, limit int) (map[string]bool, error) {
	result := make(map[string]bool)
	if len(keywords) == 0 {
		return result, nil
	}

	disjuncts := make([]bleve.Query, 0, len(keywords)*2)
	for _, kw := range keywords {
		content := bleve.NewMatchQuery(kw)
		content.SetField("content")
		disjuncts = append(disjuncts, content)

		kwq := bleve.NewMatchQuery(kw)
		kwq.SetField("keywords")
		disjuncts = append(disjuncts, kwq)
	}
	query := bleve.NewDisjunctionQuery(disjuncts...)

	req := bleve.NewSearchRequest(query)
	req.Size = limit
	if req.Size <= 0 {
		req.Size = 20
	}

	res, err := s.fts.Search(req)
	if err != nil {
		return nil, fmt.Errorf("sliceindex: fts search: %w", err)
	}
	for _, hit := range res.Hits {
		result[hit.ID] = true
	}
	return result, nil
}

// UpdateRetrievalStats atomically increments retrieval_count and sets
// last_accessed for the given slice_ids, used after a successful retrieve.
func (s *Store) UpdateRetrievalStats(sliceIDs []string, now string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("sliceindex: begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`UPDATE slices SET retrieval_count = retrieval_count + 1, last_accessed = ? WHERE slice_id = ?`)
	if err != nil {
		return fmt.Errorf("sliceindex: prepare: %w", err)
	}
	defer stmt.Close()

	for _, id := range sliceIDs {
		if _, err := stmt.Exec(now, id); err != nil {
			return fmt.Errorf("sliceindex: update stats for %s: %w", id, err)
		}
	}
	return tx.Commit()
}

// DeleteSlice removes a slice row and its full-text document.
func (s *Store) DeleteSlice(sliceID string) error {
	if _, err := s.db.Exec(`DELETE FROM slices WHERE slice_id = ?`, sliceID); err != nil {
		return fmt.Errorf("sliceindex: delete slice: %w", err)
	}
	if err := s.fts.Delete(sliceID); err != nil {
		return fmt.Errorf("sliceindex: delete fts doc: %w", err)
	}
	return nil
}

// StoreChain upserts a reasoning chain row.
func (s *Store) StoreChain(chain vaultmodel.ReasoningChain) error {
	stepsJSON, err := json.Marshal(chain.ReasoningSteps)
	if err != nil {
		return fmt.Errorf("sliceindex: marshal steps: %w", err)
	}
	supportingJSON, err := json.Marshal(chain.SupportingMemories)
	if err != nil {
		return fmt.Errorf("sliceindex: marshal supporting memories: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO chains (chain_id, persona_id, owner_id, initial_query, reasoning_steps,
			final_conclusion, confidence_score, supporting_memories, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(chain_id) DO UPDATE SET
			initial_query = excluded.initial_query,
			reasoning_steps = excluded.reasoning_steps,
			final_conclusion = excluded.final_conclusion,
			confidence_score = excluded.confidence_score,
			supporting_memories = excluded.supporting_memories
	`, chain.ChainID, chain.PersonaID, chain.OwnerID, chain.InitialQuery, string(stepsJSON),
		chain.FinalConclusion, chain.ConfidenceScore, string(supportingJSON), chain.CreatedAt)
	if err != nil {
		return fmt.Errorf("sliceindex: upsert chain: %w", err)
	}
	return nil
}

// GetChain returns a single chain by id, or (false) if absent.
func (s *Store) GetChain(chainID string) (vaultmodel.ReasoningChain, bool, error) {
	row := s.db.QueryRow(`
		SELECT chain_id, persona_id, owner_id, initial_query, reasoning_steps,
			final_conclusion, confidence_score, supporting_memories, created_at
		FROM chains WHERE chain_id = ?
	`, chainID)

	var chain vaultmodel.ReasoningChain
	var stepsJSON, supportingJSON string
	err := row.Scan(&chain.ChainID, &chain.PersonaID, &chain.OwnerID, &chain.InitialQuery, &stepsJSON,
		&chain.FinalConclusion, &chain.ConfidenceScore, &supportingJSON, &chain.CreatedAt)
	if err == sql.ErrNoRows {
		return vaultmodel.ReasoningChain{}, false, nil
	}
	if err != nil {
		return vaultmodel.ReasoningChain{}, false, fmt.Errorf("sliceindex: get chain: %w", err)
	}
	_ = json.Unmarshal([]byte(stepsJSON), &chain.ReasoningSteps)
	_ = json.Unmarshal([]byte(supportingJSON), &chain.SupportingMemories)
	return chain, true, nil
}

// DeleteChainsOlderThan removes every chain whose created_at sorts before
// cutoff (both ISO-8601 UTC, so lexical comparison is chronological) and
// returns how many rows were removed.
func (s *Store) DeleteChainsOlderThan(cutoff string) (int, error) {
	res, err := s.db.Exec(`DELETE FROM chains WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("sliceindex: delete old chains: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// DeleteStaleSlices removes slices satisfying the maintenance sweep's
// deletion criterion and returns how many rows were removed.
func (s *Store) DeleteStaleSlices(relevanceBelow float64, accessedBefore string) (int, error) {
	rows, err := s.db.Query(`
		SELECT slice_id FROM slices
		WHERE relevance_score < ? AND last_accessed < ? AND retrieval_count = 0
	`, relevanceBelow, accessedBefore)
	if err != nil {
		return 0, fmt.Errorf("sliceindex: select stale slices: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, fmt.Errorf("sliceindex: scan stale slice id: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	for _, id := range ids {
		if err := s.DeleteSlice(id); err != nil {
			return 0, err
		}
	}
	return len(ids), nil
}

// AdjustRelevanceScores applies the maintenance sweep's score adjustment
// rule to every slice and returns how many rows were touched.
func (s *Store) AdjustRelevanceScores(staleBefore string) (int, error) {
	rows, err := s.db.Query(`SELECT slice_id, relevance_score, retrieval_count, last_accessed FROM slices`)
	if err != nil {
		return 0, fmt.Errorf("sliceindex: select slices for adjustment: %w", err)
	}
	type row struct {
		id    string
		score float64
		count int
		last  string
	}
	var all []row
	for rows.Next() {
		var r row
		if err := rows.Scan(&r.id, &r.score, &r.count, &r.last); err != nil {
			rows.Close()
			return 0, fmt.Errorf("sliceindex: scan slice for adjustment: %w", err)
		}
		all = append(all, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	touched := 0
	for _, r := range all {
		newScore := r.score
		switch {
		case r.count > 10:
			newScore = min(r.score+0.1, 1.0)
		case r.count > 5:
			newScore = min(r.score+0.05, 1.0)
		case r.count == 0 && r.last < staleBefore:
			newScore = max(0.2, r.score-0.05)
		default:
			continue
		}
		if _, err := s.db.Exec(`UPDATE slices SET relevance_score = ? WHERE slice_id = ?`, newScore, r.id); err != nil {
			return touched, fmt.Errorf("sliceindex: update relevance for %s: %w", r.id, err)
		}
		touched++
	}
	return touched, nil
}

// Statistics summarizes slice volume for a (owner, persona) pair.
type Statistics struct {
	TotalSlices     int            `json:"total_slices"`
	ByMemoryType    map[string]int `json:"by_memory_type"`
	MeanRelevance   float64        `json:"mean_relevance"`
	TotalRetrievals int            `json:"total_retrievals"`
}

// GetMemoryStatistics summarizes the slices owned by (owner_id, persona_id).
func (s *Store) GetMemoryStatistics(ownerID, personaID string) (Statistics, error) {
	slices, err := s.ListSlices(ownerID, personaID, nil)
	if err != nil {
		return Statistics{}, err
	}

	stats := Statistics{ByMemoryType: make(map[string]int)}
	var relevanceSum float64
	for _, slice := range slices {
		stats.TotalSlices++
		stats.ByMemoryType[string(slice.MemoryType)]++
		relevanceSum += slice.RelevanceScore
		stats.TotalRetrievals += slice.RetrievalCount
	}
	if stats.TotalSlices > 0 {
		stats.MeanRelevance = relevanceSum / float64(stats.TotalSlices)
	}
	return stats, nil
}

// Reconcile rebuilds the full-text index from the relational rows of
// record, resolving any divergence left by a vault restore that bypassed
// the index (the index is a derivative structure; the sqlite rows plus
// the vault are the sources of truth).
func (s *Store) Reconcile() error {
	newFTS, err := newMemoryFTS()
	if err != nil {
		return fmt.Errorf("sliceindex: reconcile: rebuild index: %w", err)
	}

	rows, err := s.db.Query(`SELECT slice_id, content, keywords FROM slices`)
	if err != nil {
		return fmt.Errorf("sliceindex: reconcile: query slices: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, content, keywordsJSON string
		if err := rows.Scan(&id, &content, &keywordsJSON); err != nil {
			return fmt.Errorf("sliceindex: reconcile: scan slice: %w", err)
		}
		var keywords []string
		_ = json.Unmarshal([]byte(keywordsJSON), &keywords)
		if err := newFTS.Index(id, ftsDoc{Content: content, Keywords: joinKeywords(keywords)}); err != nil {
			return fmt.Errorf("sliceindex: reconcile: index slice %s: %w", id, err)
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	old := s.fts
	s.fts = newFTS
	return old.Close()
}

// Close releases the sqlite connection and full-text index.
func (s *Store) Close() error {
	ftsErr := s.fts.Close()
	dbErr := s.db.Close()
	if dbErr != nil {
		return dbErr
	}
	return ftsErr
}
