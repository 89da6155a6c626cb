package codeunit

// ChunkType tags an embeddable slice of a Unit.
type ChunkType string

const (
	ChunkWhole        ChunkType = "whole"
	ChunkSummary      ChunkType = "summary"
	ChunkAssociations ChunkType = "associations"
	ChunkValidations  ChunkType = "validations"
	ChunkCallbacks    ChunkType = "callbacks"
	ChunkScopes       ChunkType = "scopes"
	ChunkMethods      ChunkType = "methods"
)

// ActionChunkType builds the "action_<name>" chunk type for a controller
// action named name.
func ActionChunkType(name string) ChunkType {
	return ChunkType("action_" + name)
}

// Chunk is an embeddable slice of a Unit.
type Chunk struct {
	Content          string                 `json:"content"`
	ChunkType        ChunkType              `json:"chunk_type"`
	ParentIdentifier string                 `json:"parent_identifier"`
	ParentType       Type                   `json:"parent_type"`
	ContentHash      string                 `json:"content_hash"`
	TokenCount       int                    `json:"token_count"`
	Metadata         map[string]interface{} `json:"metadata,omitempty"`
}

// NewChunk builds a Chunk, computing ContentHash and TokenCount from
// content. Returns nil if content is empty — empty chunks are discarded
// per the chunker's contract.
func NewChunk(parentIdentifier string, parentType Type, chunkType ChunkType, content string, metadata map[string]interface{}) *Chunk {
	if content == "" {
		return nil
	}
	return &Chunk{
		Content:          content,
		ChunkType:        chunkType,
		ParentIdentifier: parentIdentifier,
		ParentType:       parentType,
		ContentHash:      SourceHashOf(content),
		TokenCount:       EstimateTokens(content),
		Metadata:         metadata,
	}
}

// ID returns the chunk identifier, "<parent>#<chunk_type>".
func (c *Chunk) ID() string {
	return c.ParentIdentifier + "#" + string(c.ChunkType)
}
