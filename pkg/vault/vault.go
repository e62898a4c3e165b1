// Package vault is the public façade over the encrypted memory vault: it
// composes the crypto, atomic-file, schema, cache, audit, slice-index,
// retrieval, pattern, and reasoning components behind a single API,
// mirroring the shape of a hand-wired engine rather than an inheritance
// hierarchy — each concern stays its own component, assembled here.
package vault

import (
	"fmt"
	"time"

	"github.com/amaydixit11/memvault/internal/audit"
	"github.com/amaydixit11/memvault/internal/cache"
	"github.com/amaydixit11/memvault/internal/keywords"
	"github.com/amaydixit11/memvault/internal/maintenance"
	"github.com/amaydixit11/memvault/internal/patterns"
	"github.com/amaydixit11/memvault/internal/reasoning"
	"github.com/amaydixit11/memvault/internal/recordstore"
	"github.com/amaydixit11/memvault/internal/retrieval"
	"github.com/amaydixit11/memvault/internal/schemaguard"
	"github.com/amaydixit11/memvault/internal/sliceindex"
	"github.com/amaydixit11/memvault/internal/vaultclock"
	"github.com/amaydixit11/memvault/internal/vaultfile"
	"github.com/amaydixit11/memvault/internal/vaultlog"
	"github.com/amaydixit11/memvault/internal/vaultmodel"
	"github.com/amaydixit11/memvault/pkg/crypto"
)

// Config controls how a Vault is opened. Configuration file loading and
// CLI argument parsing are out of scope for this package; callers
// populate Config themselves.
type Config struct {
	// VaultFilePath is where the encrypted blob is stored.
	VaultFilePath string
	// SliceIndexPath is the sqlite file backing the slice index, or
	// ":memory:" for an ephemeral, process-local index.
	SliceIndexPath string
	// KeyEnvVar and KeyFilePath configure the master key resolution order;
	// see crypto.LoadOrGenerateKey.
	KeyEnvVar   string
	KeyFilePath string
	// KeyPassphrase, if non-empty, switches key resolution to
	// passphrase-derived mode: KeyFilePath holds only a salt, and the
	// master key is derived via Argon2id on every open.
	KeyPassphrase string
	// CacheTTL defaults to 300 seconds when zero.
	CacheTTL time.Duration
	// Logger defaults to a no-op logger when nil.
	Logger vaultlog.Logger
	// Clock defaults to the system clock when nil.
	Clock vaultclock.Clock
}

func (c Config) cacheTTL() time.Duration {
	if c.CacheTTL > 0 {
		return c.CacheTTL
	}
	return 300 * time.Second
}

func (c Config) logger() vaultlog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return vaultlog.Noop{}
}

func (c Config) clock() vaultclock.Clock {
	if c.Clock != nil {
		return c.Clock
	}
	return vaultclock.System{}
}

// Vault is the assembled, ready-to-use memory vault.
type Vault struct {
	records   *recordstore.Store
	index     *sliceindex.Store
	retriever *retrieval.Engine
	reasoner  *reasoning.Generator
	sweeper   *maintenance.Sweeper
	audit     *audit.Log
	file      *vaultfile.Store
	log       vaultlog.Logger
	clock     vaultclock.Clock
}

// Open assembles every component per cfg and returns a ready Vault. The
// master key is resolved (env var, then key file, then generate-and-persist)
// before anything else, since every other component depends on it.
func Open(cfg Config) (*Vault, error) {
	key, err := crypto.LoadOrGenerateKey(crypto.KeyManagerConfig{
		EnvVar:      cfg.KeyEnvVar,
		KeyFilePath: cfg.KeyFilePath,
		Passphrase:  cfg.KeyPassphrase,
	})
	if err != nil {
		return nil, fmt.Errorf("vault: resolve master key: %w", err)
	}

	clock := cfg.clock()
	logger := cfg.logger()

	file := vaultfile.New(cfg.VaultFilePath, key, clock)
	if file.BackupExists() {
		logger.Info("vault file has a pending backup from an interrupted write", map[string]any{"path": cfg.VaultFilePath})
	}

	schemaRegistry, err := schemaguard.NewRegistry()
	if err != nil {
		return nil, fmt.Errorf("vault: build schema registry: %w", err)
	}

	auditLog := audit.New(clock)
	recordCache := cache.New(cfg.cacheTTL())
	records := recordstore.New(file, recordCache, schemaRegistry, auditLog, clock, logger)

	index, err := sliceindex.Open(cfg.SliceIndexPath)
	if err != nil {
		return nil, fmt.Errorf("vault: open slice index: %w", err)
	}

	retriever := retrieval.New(index, clock)
	reasoner := reasoning.New(index, retriever, clock)
	sweeper := maintenance.New(index, clock)

	return &Vault{
		records:   records,
		index:     index,
		retriever: retriever,
		reasoner:  reasoner,
		sweeper:   sweeper,
		audit:     auditLog,
		file:      file,
		log:       logger,
		clock:     clock,
	}, nil
}

// Close releases the slice index's resources. The vault file itself
// holds no open handle between calls.
func (v *Vault) Close() error {
	return v.index.Close()
}

// --- Persona / communal record lifecycle (C4) ---

func (v *Vault) UpsertPersona(personaID, ownerID string, payload map[string]any) (vaultmodel.PersonaMemory, error) {
	return v.records.UpsertPersona(personaID, ownerID, payload)
}

func (v *Vault) GetPersona(personaID, ownerID string) (vaultmodel.PersonaMemory, bool, error) {
	return v.records.GetPersona(personaID, ownerID)
}

func (v *Vault) DeletePersona(personaID, ownerID string) error {
	return v.records.DeletePersona(personaID, ownerID)
}

func (v *Vault) PurgePersona(personaID, ownerID string) error {
	return v.records.PurgePersona(personaID, ownerID)
}

func (v *Vault) ExportPersona(personaID, ownerID string) ([]byte, error) {
	return v.records.ExportPersona(personaID, ownerID)
}

func (v *Vault) ImportPersona(personaID, ownerID string, serialized []byte) (vaultmodel.PersonaMemory, error) {
	return v.records.ImportPersona(personaID, ownerID, serialized)
}

func (v *Vault) UpsertCommunal(memoryID, callerID string, payload map[string]any) (vaultmodel.CommunalMemory, error) {
	return v.records.UpsertCommunal(memoryID, callerID, payload)
}

func (v *Vault) GetCommunal(memoryID, callerID string) (vaultmodel.CommunalMemory, bool, error) {
	return v.records.GetCommunal(memoryID, callerID)
}

func (v *Vault) DeleteCommunal(memoryID, callerID string) error {
	return v.records.DeleteCommunal(memoryID, callerID)
}

func (v *Vault) PurgeCommunal(memoryID, callerID string) error {
	return v.records.PurgeCommunal(memoryID, callerID)
}

func (v *Vault) ExportCommunal(memoryID, callerID string) ([]byte, error) {
	return v.records.ExportCommunal(memoryID, callerID)
}

func (v *Vault) ImportCommunal(memoryID, callerID string, serialized []byte) (vaultmodel.CommunalMemory, error) {
	return v.records.ImportCommunal(memoryID, callerID, serialized)
}

// --- Slice lifecycle, retrieval, and reasoning (C7-C11) ---

// StoreSlice extracts keywords, derives a stable slice_id from owner,
// content, and creation instant, and persists a new memory slice.
func (v *Vault) StoreSlice(ownerID, personaID, content string, memoryType vaultmodel.MemoryType, metadata map[string]any) (vaultmodel.MemorySlice, error) {
	now := v.clock.Now()
	slice := vaultmodel.MemorySlice{
		SliceID:        sliceindex.GenerateSliceID(ownerID, content, now),
		PersonaID:      personaID,
		OwnerID:        ownerID,
		Content:        content,
		MemoryType:     memoryType,
		Keywords:       keywords.Extract(content),
		RelevanceScore: 0.5,
		CreatedAt:      now,
		LastAccessed:   now,
		RetrievalCount: 0,
		Metadata:       metadata,
	}
	if err := v.index.StoreSlice(slice); err != nil {
		v.audit.Failure("store_slice", ownerID, personaID, "slice", slice.SliceID, nil, err)
		return vaultmodel.MemorySlice{}, err
	}
	v.audit.Success("store_slice", ownerID, personaID, "slice", slice.SliceID, nil)
	return slice, nil
}

// Retrieve runs the lexical retrieval engine over the stored slices.
func (v *Vault) Retrieve(query, ownerID, personaID string, opts retrieval.Options) (retrieval.Result, error) {
	result, err := v.retriever.Retrieve(query, ownerID, personaID, opts)
	if err != nil {
		v.audit.Failure("retrieve", ownerID, personaID, "slice", "", nil, err)
		return retrieval.Result{}, err
	}
	v.audit.Success("retrieve", ownerID, personaID, "slice", "", map[string]any{"result_count": len(result.Slices)})
	return result, nil
}

// Reason synthesizes a reasoning chain for query, falling back to a
// default Retrieve call when context is nil.
func (v *Vault) Reason(query, ownerID, personaID string, context []vaultmodel.MemorySlice) (vaultmodel.ReasoningChain, error) {
	chain, err := v.reasoner.Reason(query, ownerID, personaID, context)
	if err != nil {
		v.audit.Failure("reason", ownerID, personaID, "chain", "", nil, err)
		return vaultmodel.ReasoningChain{}, err
	}
	v.audit.Success("reason", ownerID, personaID, "chain", chain.ChainID, nil)
	return chain, nil
}

// GetChain returns a previously persisted reasoning chain.
func (v *Vault) GetChain(chainID string) (vaultmodel.ReasoningChain, bool, error) {
	return v.index.GetChain(chainID)
}

// AnalyzePatterns exposes the pattern analyzer directly, for callers that
// already hold a context and don't need a full Reason call.
func (v *Vault) AnalyzePatterns(slices []vaultmodel.MemorySlice, queryKeywords []string) []vaultmodel.Pattern {
	return patterns.Analyze(slices, queryKeywords)
}

// Optimize runs the maintenance sweep (chain/slice expiry, score decay,
// full-text reconciliation).
func (v *Vault) Optimize() (maintenance.Report, error) {
	report, err := v.sweeper.Optimize()
	if err != nil {
		v.audit.Failure("optimize", "", "", "", "", nil, err)
		return maintenance.Report{}, err
	}
	v.audit.Success("optimize", "", "", "", "", map[string]any{
		"chains_deleted": report.ChainsDeleted, "slices_deleted": report.SlicesDeleted,
		"elapsed_millis": report.ElapsedMillis,
	})
	return report, nil
}

// GetMemoryStatistics summarizes slice volume for (owner_id, persona_id).
func (v *Vault) GetMemoryStatistics(ownerID, personaID string) (sliceindex.Statistics, error) {
	return v.index.GetMemoryStatistics(ownerID, personaID)
}

// Reconcile rebuilds the slice index's full-text structure from its
// relational rows, resolving any divergence left by a vault restore that
// bypassed the index.
func (v *Vault) Reconcile() error {
	return v.index.Reconcile()
}

// --- Whole-vault operations ---

// VerifyIntegrity recomputes the vault file's checksum without mutating it.
func (v *Vault) VerifyIntegrity() error {
	return v.records.VerifyIntegrity()
}

// RestoreBackup recovers the vault file from its automatic rollback backup.
func (v *Vault) RestoreBackup() error {
	return v.records.RestoreFromBackup()
}

// ExportAuditLog returns the filtered audit trail as a JSON array.
func (v *Vault) ExportAuditLog(filter audit.Filter) ([]byte, error) {
	return v.audit.ExportJSON(filter)
}
