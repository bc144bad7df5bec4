package orchestrators

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"

	"gopkg.in/yaml.v3"

	"footballeyeq/internal/adapters/storage/document"
	"footballeyeq/internal/domain/exercise"
)

//go:embed data/exercises.yaml
var starterCatalog []byte

// SeedExercisesDeps holds dependencies for SeedExercises.
type SeedExercisesDeps struct {
	Docs document.Store
	// Catalog overrides the embedded starter catalog. Tests use it.
	Catalog []byte
}

// ParseCatalog decodes a YAML list of exercises, filling defaults.
// PRE: raw is a YAML sequence of exercise mappings
// POST: Every returned exercise passes Validate
func ParseCatalog(raw []byte) ([]exercise.Exercise, error) {
	var list []exercise.Exercise
	if err := yaml.Unmarshal(raw, &list); err != nil {
		return nil, fmt.Errorf("failed to decode exercise catalog: %w", err)
	}
	seen := make(map[string]bool, len(list))
	for i := range list {
		list[i].ApplyDefaults()
		if err := list[i].Validate(); err != nil {
			return nil, fmt.Errorf("catalog entry %d: %w", i, err)
		}
		if seen[list[i].ID] {
			return nil, fmt.Errorf("catalog entry %d: duplicate id %q", i, list[i].ID)
		}
		seen[list[i].ID] = true
	}
	return list, nil
}

// ExecuteSeedExercises loads the starter catalog if the exercises collection is empty.
// POST: Returns the number of exercises written; 0 when already seeded
func ExecuteSeedExercises(ctx context.Context, deps SeedExercisesDeps) (int, error) {
	existing, err := deps.Docs.Query(ctx, exercise.Collection, document.Filter{})
	if err != nil {
		return 0, fmt.Errorf("failed to list exercises: %w", err)
	}
	if len(existing) > 0 {
		return 0, nil
	}

	raw := deps.Catalog
	if raw == nil {
		raw = starterCatalog
	}
	list, err := ParseCatalog(raw)
	if err != nil {
		return 0, err
	}
	for _, e := range list {
		if err := deps.Docs.Set(ctx, exercise.Collection, e.ID, e.ToDocument()); err != nil {
			return 0, fmt.Errorf("failed to seed exercise %s: %w", e.ID, err)
		}
	}
	slog.Info("seed_event", "event", "exercises_seeded", "count", len(list))
	return len(list), nil
}
