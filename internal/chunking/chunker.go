// Package chunking splits a Unit's source into the semantic chunks the
// embedding provider and assembler consume, dispatching on the unit's
// type the way the teacher's content classifier dispatches on
// conversation chunk type.
package chunking

import (
	"codecortex/pkg/codeunit"
)

// Config tunes the chunker's single threshold.
type Config struct {
	// WholeThreshold: units at or below this many estimated tokens are
	// emitted as a single "whole" chunk regardless of type.
	WholeThreshold int
}

// DefaultConfig matches spec's default threshold of 200 tokens.
func DefaultConfig() Config {
	return Config{WholeThreshold: 200}
}

// strategy produces the ordered chunk list for a unit whose estimated
// token count exceeds the whole threshold.
type strategy func(unit *codeunit.Unit) []*codeunit.Chunk

// strategies maps a unit type to its dedicated chunking strategy.
// Types with no entry fall back to wholeStrategy.
var strategies = map[codeunit.Type]strategy{
	codeunit.TypeModel:      modelStrategy,
	codeunit.TypeController: controllerStrategy,
}

// Chunker dispatches a Unit to the strategy registered for its type.
type Chunker struct {
	cfg Config
}

// New builds a Chunker with cfg (zero-value WholeThreshold falls back
// to DefaultConfig's 200).
func New(cfg Config) *Chunker {
	if cfg.WholeThreshold <= 0 {
		cfg.WholeThreshold = DefaultConfig().WholeThreshold
	}
	return &Chunker{cfg: cfg}
}

// Chunk splits unit into an ordered list of Chunks. The result is
// deterministic: identical input always produces byte-identical
// chunks.
func (c *Chunker) Chunk(unit *codeunit.Unit) []*codeunit.Chunk {
	if unit.EstimatedTokens <= c.cfg.WholeThreshold {
		return wholeStrategy(unit)
	}
	if strat, ok := strategies[unit.Type]; ok {
		return strat(unit)
	}
	return wholeStrategy(unit)
}

func wholeStrategy(unit *codeunit.Unit) []*codeunit.Chunk {
	chunk := codeunit.NewChunk(unit.Identifier, unit.Type, codeunit.ChunkWhole, unit.SourceCode, nil)
	if chunk == nil {
		return nil
	}
	return []*codeunit.Chunk{chunk}
}
