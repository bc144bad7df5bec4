package projections

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/yuin/goldmark"
	goldmarkHTML "github.com/yuin/goldmark/renderer/html"

	"footballeyeq/internal/adapters/storage/document"
	"footballeyeq/internal/application/listutil"
	"footballeyeq/internal/application/schema"
	"footballeyeq/internal/domain/exercise"
	"footballeyeq/internal/domain/plan"
)

// catalogMarkdown renders exercise text. Raw HTML in the source is escaped
// because WithUnsafe is not set.
var catalogMarkdown = goldmark.New(
	goldmark.WithRendererOptions(
		goldmarkHTML.WithHardWraps(),
	),
)

// ExerciseCatalogDeps holds dependencies for the exercise catalog projection.
type ExerciseCatalogDeps struct {
	Docs document.Store
	// IsFavorite marks entries; nil marks none.
	IsFavorite func(exerciseID string) bool
}

// ExerciseCatalogInput narrows the catalog. Empty fields do not filter.
type ExerciseCatalogInput struct {
	Type       plan.ExerciseType
	AgeGroup   string
	Difficulty string
	GameMoment string
	Search     string // case-insensitive substring of the title
	Sort       string // one of CatalogSortColumns; empty sorts by title
	Desc       bool
	Page       int // 1-indexed; zero means the first page
	PerPage    int // zero means listutil.DefaultPerPage
}

// CatalogSortColumns are the accepted Sort values.
var CatalogSortColumns = []string{"title", "difficulty", "ageGroup"}

// CatalogFilterKeys are the exact-match filters of the catalog.
var CatalogFilterKeys = []string{"ageGroup", "difficulty", "gameMoment"}

// CatalogEntry is one exercise prepared for display.
type CatalogEntry struct {
	exercise.Exercise
	OverviewHTML    string `json:"overviewHtml"`
	DescriptionHTML string `json:"descriptionHtml"`
	Favorite        bool   `json:"favorite"`
}

// ExerciseCatalog is the filtered catalog plus facet values for the filters.
type ExerciseCatalog struct {
	Entries []CatalogEntry      `json:"entries"`
	Facets  map[string][]string `json:"facets"`
	Page    listutil.PageInfo   `json:"page"`
}

// QueryExerciseCatalog reads every exercise, drops records that fail validation,
// and returns one page of those matching input. Only the page is rendered.
// POST: Facets are computed over the type-filtered catalog before the other filters
func QueryExerciseCatalog(ctx context.Context, input ExerciseCatalogInput, deps ExerciseCatalogDeps) (ExerciseCatalog, error) {
	snaps, err := deps.Docs.Query(ctx, exercise.Collection, document.Filter{})
	if err != nil {
		return ExerciseCatalog{}, fmt.Errorf("failed to list exercises: %w", err)
	}
	all := schema.ValidateMany(snaps, schema.ParseExercise)

	facets := newFacetSet()
	search := strings.ToLower(strings.TrimSpace(input.Search))
	matched := make([]exercise.Exercise, 0, len(all))
	for _, e := range all {
		if input.Type != "" && e.ExerciseType != input.Type {
			continue
		}
		facets.add(e)
		if !matches(input.AgeGroup, e.AgeGroup) || !matches(input.Difficulty, e.Difficulty) || !matches(input.GameMoment, e.GameMoment) {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(e.Title), search) {
			continue
		}
		matched = append(matched, e)
	}
	sortExercises(matched, input.Sort, input.Desc)

	page := listutil.NewPageInfo(input.Page, input.PerPage, len(matched))
	entries := make([]CatalogEntry, 0, page.PerPage)
	for _, e := range listutil.Slice(matched, page) {
		entry, err := renderEntry(e)
		if err != nil {
			return ExerciseCatalog{}, err
		}
		if deps.IsFavorite != nil {
			entry.Favorite = deps.IsFavorite(e.ID)
		}
		entries = append(entries, entry)
	}
	return ExerciseCatalog{Entries: entries, Facets: facets.sorted(), Page: page}, nil
}

// sortExercises orders by column, then title, then id.
func sortExercises(list []exercise.Exercise, column string, desc bool) {
	key := func(e exercise.Exercise) string {
		switch column {
		case "difficulty":
			return e.Difficulty
		case "ageGroup":
			return e.AgeGroup
		default:
			return e.Title
		}
	}
	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if ka, kb := key(a), key(b); ka != kb {
			return (ka < kb) != desc
		}
		if a.Title != b.Title {
			return a.Title < b.Title
		}
		return a.ID < b.ID
	})
}

func matches(want, got string) bool {
	return want == "" || want == got
}

func renderEntry(e exercise.Exercise) (CatalogEntry, error) {
	overview, err := renderMarkdown(e.Overview)
	if err != nil {
		return CatalogEntry{}, fmt.Errorf("exercise %s overview: %w", e.ID, err)
	}
	description, err := renderMarkdown(e.Description)
	if err != nil {
		return CatalogEntry{}, fmt.Errorf("exercise %s description: %w", e.ID, err)
	}
	return CatalogEntry{Exercise: e, OverviewHTML: overview, DescriptionHTML: description}, nil
}

func renderMarkdown(md string) (string, error) {
	if strings.TrimSpace(md) == "" {
		return "", nil
	}
	var buf bytes.Buffer
	if err := catalogMarkdown.Convert([]byte(md), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

type facetSet map[string]map[string]bool

func newFacetSet() facetSet {
	return facetSet{"ageGroup": {}, "difficulty": {}, "gameMoment": {}}
}

func (f facetSet) add(e exercise.Exercise) {
	f["ageGroup"][e.AgeGroup] = true
	f["difficulty"][e.Difficulty] = true
	f["gameMoment"][e.GameMoment] = true
}

func (f facetSet) sorted() map[string][]string {
	out := make(map[string][]string, len(f))
	for name, values := range f {
		list := make([]string, 0, len(values))
		for v := range values {
			list = append(list, v)
		}
		sort.Strings(list)
		out[name] = list
	}
	return out
}
