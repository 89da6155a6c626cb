package resilience

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// StaleManifestAge is how old an extraction manifest may be before
// StatusReporter reports the corpus as stale rather than ok.
const StaleManifestAge = 24 * time.Hour

// Status is the health of the last extraction as reported by the
// manifest the extractor writes to its output directory.
type Status string

const (
	StatusOK           Status = "ok"
	StatusStale        Status = "stale"
	StatusNotExtracted Status = "not_extracted"
)

// manifest mirrors the extractor's manifest.json (spec §6).
type manifest struct {
	ExtractedAt time.Time      `json:"extracted_at"`
	TotalUnits  int            `json:"total_units"`
	Counts      map[string]int `json:"counts"`
	GitSHA      string         `json:"git_sha,omitempty"`
	GitBranch   string         `json:"git_branch,omitempty"`
}

// StatusReport is StatusReporter's output.
type StatusReport struct {
	Status          Status         `json:"status"`
	StalenessSeconds float64       `json:"staleness_seconds"`
	TotalUnits      int            `json:"total_units"`
	Counts          map[string]int `json:"counts"`
	GitSHA          string         `json:"git_sha,omitempty"`
	GitBranch       string         `json:"git_branch,omitempty"`
}

// StatusReporter reads the manifest file an extraction run produced
// and reports whether the indexed corpus is current.
type StatusReporter struct {
	manifestPath string
	now          func() time.Time
}

// NewStatusReporter builds a reporter reading the manifest at path.
func NewStatusReporter(manifestPath string) *StatusReporter {
	return &StatusReporter{manifestPath: manifestPath, now: time.Now}
}

// Report reads the manifest and classifies its staleness.
func (s *StatusReporter) Report() (*StatusReport, error) {
	data, err := os.ReadFile(s.manifestPath)
	if err != nil {
		if os.IsNotExist(err) {
			return &StatusReport{Status: StatusNotExtracted}, nil
		}
		return nil, fmt.Errorf("resilience: read manifest %s: %w", s.manifestPath, err)
	}

	var m manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("resilience: parse manifest %s: %w", s.manifestPath, err)
	}

	age := s.now().Sub(m.ExtractedAt)
	status := StatusOK
	if age > StaleManifestAge {
		status = StatusStale
	}

	return &StatusReport{
		Status:           status,
		StalenessSeconds: age.Seconds(),
		TotalUnits:       m.TotalUnits,
		Counts:           m.Counts,
		GitSHA:           m.GitSHA,
		GitBranch:        m.GitBranch,
	}, nil
}
