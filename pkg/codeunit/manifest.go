package codeunit

import "time"

// Manifest is the root interchange record an extractor writes to
// manifest.json, describing one completed extraction run.
type Manifest struct {
	ExtractedAt time.Time      `json:"extracted_at"`
	TotalUnits  int            `json:"total_units"`
	Counts      map[Type]int   `json:"counts"`
	GitSHA      string         `json:"git_sha,omitempty"`
	GitBranch   string         `json:"git_branch,omitempty"`
}

// Stale reports whether the manifest is older than maxAge, measured
// against now.
func (m Manifest) Stale(now time.Time, maxAge time.Duration) bool {
	return now.Sub(m.ExtractedAt) > maxAge
}

// IndexEntry is one line of a per-type _index.json: enough to locate
// and sanity-check a unit without reading its full JSON record.
type IndexEntry struct {
	Identifier string `json:"identifier"`
	FilePath   string `json:"file_path"`
	SourceHash string `json:"source_hash"`
}
