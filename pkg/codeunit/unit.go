// Package codeunit defines the canonical record shapes the retrieval core
// consumes from external source extractors: Units, Chunks, and the
// dependency graph built from their declared edges.
package codeunit

import (
	"crypto/sha256"
	"encoding/hex"
	"math"
)

// Type tags a Unit by the kind of code element it distills. The set is
// closed for documentation purposes but the core never privileges one tag
// over another — tags are data.
type Type string

const (
	TypeModel          Type = "model"
	TypeController     Type = "controller"
	TypeService        Type = "service"
	TypeJob            Type = "job"
	TypeMailer         Type = "mailer"
	TypeViewComponent  Type = "view_component"
	TypeConcern        Type = "concern"
	TypeGraphQLType    Type = "graphql_type"
	TypeRoute          Type = "route"
	TypeMigration      Type = "migration"
	TypeCacheSite      Type = "cache_site"
	TypeStateMachine   Type = "state_machine"
	TypeRubyClass      Type = "ruby_class"
	TypeRubyModule     Type = "ruby_module"
	TypeRubyMethod     Type = "ruby_method"
)

// tokensPerChar is the divisor used by the uniform token estimator,
// ceil(len(text) / 3.5), applied identically to Unit source and assembled
// context sections.
const tokensPerChar = 3.5

// EstimateTokens returns ceil(len(text) / 3.5).
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	return int(math.Ceil(float64(len(text)) / tokensPerChar))
}

// Dependency is one forward edge from a Unit to another unit identifier.
// The target need not resolve to a known Unit; dangling edges are
// permitted and reported by the graph store.
type Dependency struct {
	Target       string `json:"target"`
	Relationship string `json:"relationship"`
	Via          string `json:"via,omitempty"`
}

// Unit is a distilled code element produced by an external extractor.
type Unit struct {
	Identifier      string                 `json:"identifier"`
	Type            Type                   `json:"type"`
	Namespace       string                 `json:"namespace,omitempty"`
	FilePath        string                 `json:"file_path,omitempty"`
	SourceCode      string                 `json:"source_code"`
	SourceHash      string                 `json:"source_hash"`
	Metadata        map[string]interface{} `json:"metadata,omitempty"`
	Dependencies    []Dependency           `json:"dependencies,omitempty"`
	EstimatedTokens int                    `json:"estimated_tokens"`
}

// SourceHashOf returns the SHA-256 hex digest of text, the fingerprint
// used for both Unit.SourceHash and Chunk.ContentHash.
func SourceHashOf(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// NewUnit builds a Unit from extractor-supplied fields, computing the
// derived source_hash and estimated_tokens so callers never have to.
func NewUnit(identifier string, typ Type, namespace, filePath, source string, metadata map[string]interface{}, deps []Dependency) *Unit {
	return &Unit{
		Identifier:      identifier,
		Type:            typ,
		Namespace:       namespace,
		FilePath:        filePath,
		SourceCode:      source,
		SourceHash:      SourceHashOf(source),
		Metadata:        metadata,
		Dependencies:    deps,
		EstimatedTokens: EstimateTokens(source),
	}
}

// Refresh recomputes SourceHash and EstimatedTokens from the current
// SourceCode. Callers that mutate SourceCode directly must call this to
// keep the fingerprint deterministic, per the Unit invariants.
func (u *Unit) Refresh() {
	u.SourceHash = SourceHashOf(u.SourceCode)
	u.EstimatedTokens = EstimateTokens(u.SourceCode)
}
