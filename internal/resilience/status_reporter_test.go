package resilience

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeManifest(t *testing.T, path string, m manifest) {
	t.Helper()
	data, err := json.Marshal(m)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func TestStatusReporter_NotExtractedWhenManifestMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.json")
	reporter := NewStatusReporter(path)

	report, err := reporter.Report()
	require.NoError(t, err)
	assert.Equal(t, StatusNotExtracted, report.Status)
}

func TestStatusReporter_OKWithinFreshWindow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.json")
	writeManifest(t, path, manifest{ExtractedAt: time.Now().Add(-time.Hour), TotalUnits: 42, Counts: map[string]int{"model": 10}})

	reporter := NewStatusReporter(path)
	report, err := reporter.Report()
	require.NoError(t, err)
	assert.Equal(t, StatusOK, report.Status)
	assert.Equal(t, 42, report.TotalUnits)
}

func TestStatusReporter_StaleAfterTwentyFourHours(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.json")
	writeManifest(t, path, manifest{ExtractedAt: time.Now().Add(-25 * time.Hour), TotalUnits: 42})

	reporter := NewStatusReporter(path)
	report, err := reporter.Report()
	require.NoError(t, err)
	assert.Equal(t, StatusStale, report.Status)
}
