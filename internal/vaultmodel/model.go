// Package vaultmodel defines the persisted shape of the encrypted vault
// file: persona and communal records, and the metadata envelope carrying
// the integrity checksum.
package vaultmodel

const SchemaVersion = 1

// PersonaMemory is an owned record: only owner_id may read, update, or
// delete it.
type PersonaMemory struct {
	PersonaID     string         `json:"persona_id"`
	OwnerID       string         `json:"owner_id"`
	Payload       map[string]any `json:"payload"`
	CreatedAt     string         `json:"created_at"`
	UpdatedAt     string         `json:"updated_at"`
	SchemaVersion int            `json:"schema_version"`
}

// CommunalMemory is a shared record: any caller may read it; writes are
// audited with the acting principal but carry no ownership restriction.
type CommunalMemory struct {
	MemoryID      string         `json:"memory_id"`
	Payload       map[string]any `json:"payload"`
	CreatedAt     string         `json:"created_at"`
	UpdatedAt     string         `json:"updated_at"`
	SchemaVersion int            `json:"schema_version"`
}

// Metadata is the VaultFile envelope excluded from its own checksum.
type Metadata struct {
	CreatedAt     string `json:"created_at"`
	UpdatedAt     string `json:"updated_at"`
	SchemaVersion int    `json:"schema_version"`
	Checksum      string `json:"checksum"`
}

// VaultFile is the decrypted logical structure stored in the encrypted
// blob: two record maps plus an integrity envelope.
type VaultFile struct {
	Persona  map[string]PersonaMemory  `json:"persona"`
	Communal map[string]CommunalMemory `json:"communal"`
	Metadata Metadata                  `json:"metadata"`
}

// NewEmpty returns a freshly initialized, unchecksummed vault file.
func NewEmpty(now string) VaultFile {
	return VaultFile{
		Persona:  make(map[string]PersonaMemory),
		Communal: make(map[string]CommunalMemory),
		Metadata: Metadata{
			CreatedAt:     now,
			UpdatedAt:     now,
			SchemaVersion: SchemaVersion,
		},
	}
}

// checksumView is the subset of VaultFile the checksum is computed over:
// everything except metadata.
type checksumView struct {
	Persona  map[string]PersonaMemory  `json:"persona"`
	Communal map[string]CommunalMemory `json:"communal"`
}

// ChecksumPayload returns the value to canonicalize and hash for the
// file's integrity checksum — the record maps, with metadata excluded.
func (v VaultFile) ChecksumPayload() any {
	return checksumView{Persona: v.Persona, Communal: v.Communal}
}

// MemoryType names the kind of recall a slice represents.
type MemoryType string

const (
	Episodic   MemoryType = "episodic"
	Semantic   MemoryType = "semantic"
	Procedural MemoryType = "procedural"
	Working    MemoryType = "working"
)

// MemorySlice is a retrievable unit of text content with derived keywords
// and usage statistics. It belongs to exactly one (owner_id, persona_id)
// pair and lives in the secondary slice index, not the encrypted vault
// file.
type MemorySlice struct {
	SliceID        string         `json:"slice_id"`
	PersonaID      string         `json:"persona_id"`
	OwnerID        string         `json:"owner_id"`
	Content        string         `json:"content"`
	MemoryType     MemoryType     `json:"memory_type"`
	Keywords       []string       `json:"keywords"`
	RelevanceScore float64        `json:"relevance_score"`
	CreatedAt      string         `json:"created_at"`
	LastAccessed   string         `json:"last_accessed"`
	RetrievalCount int            `json:"retrieval_count"`
	Metadata       map[string]any `json:"metadata"`
}

// ReasoningStep is one entry in a ReasoningChain's ordered step list.
type ReasoningStep struct {
	StepType   string  `json:"step_type"`
	Content    string  `json:"content"`
	Confidence float64 `json:"confidence"`
}

// ReasoningChain is a synthesized, persisted artifact produced by the
// reasoning chain generator over a set of retrieved slices.
type ReasoningChain struct {
	ChainID            string          `json:"chain_id"`
	OwnerID            string          `json:"owner_id"`
	PersonaID          string          `json:"persona_id"`
	InitialQuery       string          `json:"initial_query"`
	ReasoningSteps     []ReasoningStep `json:"reasoning_steps"`
	FinalConclusion    string          `json:"final_conclusion"`
	ConfidenceScore    float64         `json:"confidence_score"`
	SupportingMemories []string        `json:"supporting_memories"`
	CreatedAt          string          `json:"created_at"`
}

// Pattern is one computed observation emitted by the pattern analyzer.
type Pattern struct {
	Type        string         `json:"type"`
	Description string         `json:"description"`
	Data        map[string]any `json:"data"`
	Confidence  float64        `json:"confidence"`
}
