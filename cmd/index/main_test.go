package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/require"

	"codecortex/internal/config"
	"codecortex/internal/di"
	"codecortex/pkg/codeunit"
)

func writeExtractedFixture(t *testing.T, dir string) {
	t.Helper()
	manifest := codeunit.Manifest{
		ExtractedAt: time.Now(),
		TotalUnits:  1,
		Counts:      map[codeunit.Type]int{codeunit.TypeService: 1},
	}
	data, err := json.Marshal(manifest)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "manifest.json"), data, 0o644))

	servicesDir := filepath.Join(dir, "services")
	require.NoError(t, os.MkdirAll(servicesDir, 0o755))

	index := []codeunit.IndexEntry{{Identifier: "order_total", FilePath: "app/services/order_total.rb"}}
	indexData, err := json.Marshal(index)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(servicesDir, "_index.json"), indexData, 0o644))

	unit := codeunit.NewUnit("order_total", codeunit.TypeService, "", "app/services/order_total.rb", "class OrderTotal\nend", nil, nil)
	unitData, err := json.Marshal(unit)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(servicesDir, "order_total.json"), unitData, 0o644))
}

func TestRunIndex_IndexesExtractedUnits(t *testing.T) {
	extractedDir := t.TempDir()
	writeExtractedFixture(t, extractedDir)

	workDir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Embedding.Provider = "mock"
	cfg.Embedding.Dimensions = 8
	cfg.VectorDB.Dimensions = 8
	cfg.Index.Dir = workDir
	cfg.Index.CheckpointPath = filepath.Join(workDir, "checkpoint.json")
	cfg.Resilience.FeedbackLogPath = filepath.Join(workDir, "feedback.jsonl")
	require.NoError(t, cfg.Validate())

	container, err := di.New(context.Background(), cfg)
	require.NoError(t, err)

	noColor := color.New()
	noColor.DisableColor()

	err = runIndex(context.Background(), container, extractedDir, false, noColor, noColor)
	require.NoError(t, err)

	count, err := container.Metadata.Count(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, count)
}
