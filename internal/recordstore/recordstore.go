// Package recordstore implements the persona/communal memory lifecycle:
// CRUD, export/import/purge, ownership enforcement, caching, and audit.
// It is the façade the design notes ask for in place of an "enhanced store
// inherits from base store" hierarchy — checksum, atomic I/O, schema
// validation, and caching are each a distinct component, composed here.
package recordstore

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/amaydixit11/memvault/internal/cache"
	"github.com/amaydixit11/memvault/internal/schemaguard"
	"github.com/amaydixit11/memvault/internal/vaultclock"
	"github.com/amaydixit11/memvault/internal/vaulterrors"
	"github.com/amaydixit11/memvault/internal/vaultfile"
	"github.com/amaydixit11/memvault/internal/vaultlog"
	"github.com/amaydixit11/memvault/internal/vaultmodel"
)

// AuditSink is the narrow capability recordstore needs of the audit log —
// an injected dependency, per the design notes, rather than a reach-back
// into a global audit object.
type AuditSink interface {
	Success(action, userID, personaID, memoryType, key string, details map[string]any)
	Failure(action, userID, personaID, memoryType, key string, details map[string]any, err error)
	Record(action, userID, personaID, memoryType, key string, details map[string]any, result string)
}

// Store owns the vault file, its in-process mutex, its cache, and its
// schema registry. No module-level singletons: every instance is
// independent.
type Store struct {
	mu     sync.Mutex
	file   *vaultfile.Store
	cache  *cache.Cache
	schema *schemaguard.Registry
	audit  AuditSink
	clock  vaultclock.Clock
	log    vaultlog.Logger
}

// New composes a record store over an already-open vault file.
func New(file *vaultfile.Store, c *cache.Cache, schema *schemaguard.Registry, audit AuditSink, clock vaultclock.Clock, logger vaultlog.Logger) *Store {
	return &Store{file: file, cache: c, schema: schema, audit: audit, clock: clock, log: logger}
}

// --- Persona ---

// UpsertPersona creates the record if absent, or rewrites payload and
// bumps updated_at if present. An existing record with a different
// owner_id is rejected — no ownership transfer.
func (s *Store) UpsertPersona(personaID, ownerID string, payload map[string]any) (vaultmodel.PersonaMemory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	vf, err := s.file.Load()
	if err != nil {
		s.audit.Failure("upsert_persona", ownerID, personaID, "persona", personaID, nil, err)
		return vaultmodel.PersonaMemory{}, err
	}

	now := s.clock.Now()
	existing, exists := vf.Persona[personaID]
	if exists && existing.OwnerID != ownerID {
		verr := vaulterrors.NewValidation("upsert_persona", "ownership mismatch: record is owned by a different principal")
		s.audit.Failure("upsert_persona", ownerID, personaID, "persona", personaID, nil, verr)
		return vaultmodel.PersonaMemory{}, verr
	}

	record := vaultmodel.PersonaMemory{
		PersonaID:     personaID,
		OwnerID:       ownerID,
		Payload:       payload,
		UpdatedAt:     now,
		SchemaVersion: vaultmodel.SchemaVersion,
	}
	if exists {
		record.CreatedAt = existing.CreatedAt
	} else {
		record.CreatedAt = now
	}

	if err := s.validatePersona(record); err != nil {
		s.audit.Failure("upsert_persona", ownerID, personaID, "persona", personaID, nil, err)
		return vaultmodel.PersonaMemory{}, err
	}

	vf.Persona[personaID] = record
	if err := s.file.Store(vf); err != nil {
		s.audit.Failure("upsert_persona", ownerID, personaID, "persona", personaID, nil, err)
		return vaultmodel.PersonaMemory{}, err
	}

	s.cache.Invalidate(cache.Key{Kind: "persona", ID: personaID, Owner: ownerID})
	s.audit.Success("create_or_update_persona", ownerID, personaID, "persona", personaID, nil)
	return record, nil
}

// GetPersona returns the record only if it exists and its owner_id equals
// the caller's. A non-matching owner or an absent record both return
// (_, false) — absence is not an error channel event.
func (s *Store) GetPersona(personaID, ownerID string) (vaultmodel.PersonaMemory, bool, error) {
	key := cache.Key{Kind: "persona", ID: personaID, Owner: ownerID}
	if cached, ok := s.cache.Get(key); ok {
		record := cached.(vaultmodel.PersonaMemory)
		s.audit.Success("get_persona", ownerID, personaID, "persona", personaID, map[string]any{"cache": "hit"})
		return record, true, nil
	}

	s.mu.Lock()
	vf, err := s.file.Load()
	s.mu.Unlock()
	if err != nil {
		s.audit.Failure("get_persona", ownerID, personaID, "persona", personaID, nil, err)
		return vaultmodel.PersonaMemory{}, false, err
	}

	record, exists := vf.Persona[personaID]
	if !exists {
		return vaultmodel.PersonaMemory{}, false, nil
	}
	if record.OwnerID != ownerID {
		s.audit.Record("get_persona_denied", ownerID, personaID, "persona", personaID, nil, "success")
		return vaultmodel.PersonaMemory{}, false, nil
	}

	s.cache.Set(key, record)
	s.audit.Success("get_persona", ownerID, personaID, "persona", personaID, nil)
	return record, true, nil
}

// DeletePersona removes the record if owner matches. A missing record, or
// one owned by a different principal, is a no-op — never an error.
func (s *Store) DeletePersona(personaID, ownerID string) error {
	return s.deletePersona(personaID, ownerID, "delete_persona")
}

// PurgePersona is an alias of DeletePersona with a distinct audit tag, for
// callers that want to distinguish an explicit purge from a routine delete.
func (s *Store) PurgePersona(personaID, ownerID string) error {
	return s.deletePersona(personaID, ownerID, "purge_persona")
}

func (s *Store) deletePersona(personaID, ownerID, action string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	vf, err := s.file.Load()
	if err != nil {
		s.audit.Failure(action, ownerID, personaID, "persona", personaID, nil, err)
		return err
	}

	record, exists := vf.Persona[personaID]
	if !exists || record.OwnerID != ownerID {
		s.audit.Record(action, ownerID, personaID, "persona", personaID, nil, "success")
		return nil
	}

	delete(vf.Persona, personaID)
	if err := s.file.Store(vf); err != nil {
		s.audit.Failure(action, ownerID, personaID, "persona", personaID, nil, err)
		return err
	}

	s.cache.Invalidate(cache.Key{Kind: "persona", ID: personaID, Owner: ownerID})
	s.audit.Success(action, ownerID, personaID, "persona", personaID, nil)
	return nil
}

// ExportPersona serializes the entire record (not just payload) as JSON.
func (s *Store) ExportPersona(personaID, ownerID string) ([]byte, error) {
	record, ok, err := s.GetPersona(personaID, ownerID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, vaulterrors.NewNotFound("persona", personaID)
	}
	return json.Marshal(record)
}

// ImportPersona parses, validates, and upserts serialized under the given
// owner. A schema-version mismatch is logged, not rejected.
func (s *Store) ImportPersona(personaID, ownerID string, serialized []byte) (vaultmodel.PersonaMemory, error) {
	var record vaultmodel.PersonaMemory
	if err := json.Unmarshal(serialized, &record); err != nil {
		verr := vaulterrors.NewValidation("import_persona", "malformed JSON: "+err.Error())
		s.audit.Failure("import_persona", ownerID, personaID, "persona", personaID, nil, verr)
		return vaultmodel.PersonaMemory{}, verr
	}

	var asMap map[string]any
	if err := json.Unmarshal(serialized, &asMap); err == nil {
		if err := s.schema.ValidateMap(schemaguard.Persona, asMap); err != nil {
			verr := vaulterrors.NewValidation("import_persona", err.Error())
			s.audit.Failure("import_persona", ownerID, personaID, "persona", personaID, nil, verr)
			return vaultmodel.PersonaMemory{}, verr
		}
	}

	if record.SchemaVersion != vaultmodel.SchemaVersion {
		s.audit.Record("schema_mismatch", ownerID, personaID, "persona", personaID,
			map[string]any{"imported_version": record.SchemaVersion, "current_version": vaultmodel.SchemaVersion}, "success")
	}

	return s.UpsertPersona(personaID, ownerID, record.Payload)
}

func (s *Store) validatePersona(record vaultmodel.PersonaMemory) error {
	data, err := json.Marshal(record)
	if err != nil {
		return vaulterrors.NewVault("validate_persona", err)
	}
	if err := s.schema.Validate(schemaguard.Persona, data); err != nil {
		return vaulterrors.NewValidation("validate_persona", err.Error())
	}
	return nil
}

// --- Communal ---

// UpsertCommunal creates or rewrites a shared record. There is no
// ownership restriction; writes are audited with the acting caller.
func (s *Store) UpsertCommunal(memoryID, callerID string, payload map[string]any) (vaultmodel.CommunalMemory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	vf, err := s.file.Load()
	if err != nil {
		s.audit.Failure("upsert_communal", callerID, "", "communal", memoryID, nil, err)
		return vaultmodel.CommunalMemory{}, err
	}

	now := s.clock.Now()
	existing, exists := vf.Communal[memoryID]

	record := vaultmodel.CommunalMemory{
		MemoryID:      memoryID,
		Payload:       payload,
		UpdatedAt:     now,
		SchemaVersion: vaultmodel.SchemaVersion,
	}
	if exists {
		record.CreatedAt = existing.CreatedAt
	} else {
		record.CreatedAt = now
	}

	data, err := json.Marshal(record)
	if err != nil {
		return vaultmodel.CommunalMemory{}, vaulterrors.NewVault("upsert_communal", err)
	}
	if err := s.schema.Validate(schemaguard.Communal, data); err != nil {
		verr := vaulterrors.NewValidation("upsert_communal", err.Error())
		s.audit.Failure("upsert_communal", callerID, "", "communal", memoryID, nil, verr)
		return vaultmodel.CommunalMemory{}, verr
	}

	vf.Communal[memoryID] = record
	if err := s.file.Store(vf); err != nil {
		s.audit.Failure("upsert_communal", callerID, "", "communal", memoryID, nil, err)
		return vaultmodel.CommunalMemory{}, err
	}

	s.cache.Invalidate(cache.Key{Kind: "communal", ID: memoryID, Owner: ""})
	s.audit.Success("create_or_update_communal", callerID, "", "communal", memoryID, nil)
	return record, nil
}

// GetCommunal returns the shared record if present. Reads are never denied.
func (s *Store) GetCommunal(memoryID, callerID string) (vaultmodel.CommunalMemory, bool, error) {
	key := cache.Key{Kind: "communal", ID: memoryID, Owner: ""}
	if cached, ok := s.cache.Get(key); ok {
		s.audit.Success("get_communal", callerID, "", "communal", memoryID, map[string]any{"cache": "hit"})
		return cached.(vaultmodel.CommunalMemory), true, nil
	}

	s.mu.Lock()
	vf, err := s.file.Load()
	s.mu.Unlock()
	if err != nil {
		s.audit.Failure("get_communal", callerID, "", "communal", memoryID, nil, err)
		return vaultmodel.CommunalMemory{}, false, err
	}

	record, exists := vf.Communal[memoryID]
	if !exists {
		return vaultmodel.CommunalMemory{}, false, nil
	}

	s.cache.Set(key, record)
	s.audit.Success("get_communal", callerID, "", "communal", memoryID, nil)
	return record, true, nil
}

// DeleteCommunal removes the record; missing is a no-op.
func (s *Store) DeleteCommunal(memoryID, callerID string) error {
	return s.deleteCommunal(memoryID, callerID, "delete_communal")
}

// PurgeCommunal is an alias of DeleteCommunal with a distinct audit tag.
func (s *Store) PurgeCommunal(memoryID, callerID string) error {
	return s.deleteCommunal(memoryID, callerID, "purge_communal")
}

func (s *Store) deleteCommunal(memoryID, callerID, action string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	vf, err := s.file.Load()
	if err != nil {
		s.audit.Failure(action, callerID, "", "communal", memoryID, nil, err)
		return err
	}

	if _, exists := vf.Communal[memoryID]; !exists {
		s.audit.Record(action, callerID, "", "communal", memoryID, nil, "success")
		return nil
	}

	delete(vf.Communal, memoryID)
	if err := s.file.Store(vf); err != nil {
		s.audit.Failure(action, callerID, "", "communal", memoryID, nil, err)
		return err
	}

	s.cache.Invalidate(cache.Key{Kind: "communal", ID: memoryID, Owner: ""})
	s.audit.Success(action, callerID, "", "communal", memoryID, nil)
	return nil
}

// ExportCommunal serializes the entire record as JSON.
func (s *Store) ExportCommunal(memoryID, callerID string) ([]byte, error) {
	record, ok, err := s.GetCommunal(memoryID, callerID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, vaulterrors.NewNotFound("communal", memoryID)
	}
	return json.Marshal(record)
}

// ImportCommunal parses, validates, and upserts serialized.
func (s *Store) ImportCommunal(memoryID, callerID string, serialized []byte) (vaultmodel.CommunalMemory, error) {
	var record vaultmodel.CommunalMemory
	if err := json.Unmarshal(serialized, &record); err != nil {
		verr := vaulterrors.NewValidation("import_communal", "malformed JSON: "+err.Error())
		s.audit.Failure("import_communal", callerID, "", "communal", memoryID, nil, verr)
		return vaultmodel.CommunalMemory{}, verr
	}

	var asMap map[string]any
	if err := json.Unmarshal(serialized, &asMap); err == nil {
		if err := s.schema.ValidateMap(schemaguard.Communal, asMap); err != nil {
			verr := vaulterrors.NewValidation("import_communal", err.Error())
			s.audit.Failure("import_communal", callerID, "", "communal", memoryID, nil, verr)
			return vaultmodel.CommunalMemory{}, verr
		}
	}

	if record.SchemaVersion != vaultmodel.SchemaVersion {
		s.audit.Record("schema_mismatch", callerID, "", "communal", memoryID,
			map[string]any{"imported_version": record.SchemaVersion, "current_version": vaultmodel.SchemaVersion}, "success")
	}

	return s.UpsertCommunal(memoryID, callerID, record.Payload)
}

// --- Whole-file operations ---

// VerifyIntegrity recomputes the checksum without mutating anything.
func (s *Store) VerifyIntegrity() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.VerifyIntegrity()
}

// RestoreFromBackup recovers the vault file from its automatic rollback
// backup, per the IntegrityError recovery policy.
func (s *Store) RestoreFromBackup() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.file.RestoreBackup(); err != nil {
		return fmt.Errorf("recordstore: restore backup: %w", err)
	}
	return nil
}
