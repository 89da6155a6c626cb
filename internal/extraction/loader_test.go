package extraction

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codecortex/pkg/codeunit"
)

func writeExtraction(t *testing.T, dir string) {
	t.Helper()

	manifest := codeunit.Manifest{
		ExtractedAt: time.Now(),
		TotalUnits:  1,
		Counts:      map[codeunit.Type]int{codeunit.TypeService: 1},
	}
	manifestData, err := json.Marshal(manifest)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "manifest.json"), manifestData, 0o644))

	servicesDir := filepath.Join(dir, "services")
	require.NoError(t, os.MkdirAll(servicesDir, 0o755))

	index := []codeunit.IndexEntry{{Identifier: "order_total", FilePath: "app/services/order_total.rb", SourceHash: "abc"}}
	indexData, err := json.Marshal(index)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(servicesDir, "_index.json"), indexData, 0o644))

	unit := codeunit.NewUnit("order_total", codeunit.TypeService, "", "app/services/order_total.rb", "class OrderTotal\nend", nil, nil)
	unitData, err := json.Marshal(unit)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(servicesDir, "order_total.json"), unitData, 0o644))
}

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	writeExtraction(t, dir)

	manifest, err := LoadManifest(dir)
	require.NoError(t, err)
	assert.Equal(t, 1, manifest.TotalUnits)
	assert.Equal(t, 1, manifest.Counts[codeunit.TypeService])
}

func TestLoadManifest_MissingFile(t *testing.T) {
	_, err := LoadManifest(t.TempDir())
	assert.Error(t, err)
}

func TestLoadUnits(t *testing.T) {
	dir := t.TempDir()
	writeExtraction(t, dir)

	units, errs := LoadUnits(dir)
	require.Empty(t, errs)
	require.Len(t, units, 1)
	assert.Equal(t, "order_total", units[0].Identifier)
	assert.Equal(t, codeunit.TypeService, units[0].Type)
}

func TestLoadUnits_SkipsZeroCountTypes(t *testing.T) {
	dir := t.TempDir()
	manifest := codeunit.Manifest{
		TotalUnits: 0,
		Counts:     map[codeunit.Type]int{codeunit.TypeModel: 0},
	}
	data, err := json.Marshal(manifest)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "manifest.json"), data, 0o644))

	units, errs := LoadUnits(dir)
	assert.Empty(t, units)
	assert.Empty(t, errs)
}

func TestLoadUnits_ReportsPerUnitErrorsWithoutAborting(t *testing.T) {
	dir := t.TempDir()
	writeExtraction(t, dir)

	servicesDir := filepath.Join(dir, "services")
	index := []codeunit.IndexEntry{
		{Identifier: "order_total"},
		{Identifier: "missing_unit"},
	}
	data, err := json.Marshal(index)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(servicesDir, "_index.json"), data, 0o644))

	units, errs := LoadUnits(dir)
	require.Len(t, units, 1)
	require.Len(t, errs, 1)
}
