// Package extraction reads the on-disk layout an external extractor
// writes per spec §6: a manifest.json at the output root, a per-type
// _index.json listing every unit of that type, and one JSON file per
// unit under <output_dir>/<type_plural>/<safe_identifier>.json.
package extraction

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"codecortex/pkg/codeunit"
)

var typePlural = map[codeunit.Type]string{
	codeunit.TypeModel:         "models",
	codeunit.TypeController:    "controllers",
	codeunit.TypeService:       "services",
	codeunit.TypeJob:           "jobs",
	codeunit.TypeMailer:        "mailers",
	codeunit.TypeViewComponent: "view_components",
	codeunit.TypeConcern:       "concerns",
	codeunit.TypeGraphQLType:   "graphql_types",
	codeunit.TypeRoute:         "routes",
	codeunit.TypeMigration:     "migrations",
	codeunit.TypeCacheSite:     "cache_sites",
	codeunit.TypeStateMachine:  "state_machines",
	codeunit.TypeRubyClass:     "ruby_classes",
	codeunit.TypeRubyModule:    "ruby_modules",
	codeunit.TypeRubyMethod:    "ruby_methods",
}

// LoadManifest reads <dir>/manifest.json.
func LoadManifest(dir string) (*codeunit.Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, "manifest.json"))
	if err != nil {
		return nil, err
	}
	var m codeunit.Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("extraction: parse manifest.json: %w", err)
	}
	return &m, nil
}

// LoadUnits reads every unit named by the manifest's per-type
// _index.json files, skipping types the manifest reports zero counts
// for. A unit file that fails to parse is reported in the returned
// error slice rather than aborting the whole load, so one bad record
// does not sink an entire extraction run.
func LoadUnits(dir string) ([]*codeunit.Unit, []error) {
	manifest, err := LoadManifest(dir)
	if err != nil {
		return nil, []error{fmt.Errorf("extraction: load manifest: %w", err)}
	}

	var units []*codeunit.Unit
	var loadErrs []error
	for t, count := range manifest.Counts {
		if count == 0 {
			continue
		}
		plural, ok := typePlural[t]
		if !ok {
			loadErrs = append(loadErrs, fmt.Errorf("extraction: unknown unit type %q in manifest", t))
			continue
		}
		typeDir := filepath.Join(dir, plural)
		entries, err := loadIndex(typeDir)
		if err != nil {
			loadErrs = append(loadErrs, fmt.Errorf("extraction: load index for %s: %w", plural, err))
			continue
		}
		for _, entry := range entries {
			unit, err := loadUnit(typeDir, entry)
			if err != nil {
				loadErrs = append(loadErrs, err)
				continue
			}
			units = append(units, unit)
		}
	}
	return units, loadErrs
}

func loadIndex(typeDir string) ([]codeunit.IndexEntry, error) {
	data, err := os.ReadFile(filepath.Join(typeDir, "_index.json"))
	if err != nil {
		return nil, err
	}
	var entries []codeunit.IndexEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse _index.json: %w", err)
	}
	return entries, nil
}

func loadUnit(typeDir string, entry codeunit.IndexEntry) (*codeunit.Unit, error) {
	path := filepath.Join(typeDir, safeFilename(entry.Identifier)+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read unit %s: %w", entry.Identifier, err)
	}
	var unit codeunit.Unit
	if err := json.Unmarshal(data, &unit); err != nil {
		return nil, fmt.Errorf("parse unit %s: %w", entry.Identifier, err)
	}
	return &unit, nil
}

// safeFilename mirrors the extractor's own identifier-to-filename
// mapping: path separators would otherwise escape the type directory.
func safeFilename(identifier string) string {
	safe := make([]rune, 0, len(identifier))
	for _, r := range identifier {
		switch r {
		case '/', '\\', ':':
			safe = append(safe, '_')
		default:
			safe = append(safe, r)
		}
	}
	return string(safe)
}
