package projections

import (
	"context"
	"strings"
	"testing"

	"footballeyeq/internal/adapters/storage/document"
	"footballeyeq/internal/adapters/storage/document/doctest"
	"footballeyeq/internal/domain/exercise"
	"footballeyeq/internal/domain/plan"
)

func catalogStore(t *testing.T) document.Store {
	t.Helper()
	docs := doctest.Open(t)
	doctest.Put(t, docs, exercise.Collection, "e1", document.Document{
		"title":       "Rondo",
		"difficulty":  "Basic",
		"description": "Keep the ball **moving**.\n\n<script>alert(1)</script>",
	})
	doctest.Put(t, docs, exercise.Collection, "e2", document.Document{"title": "Cone Gates", "exerciseType": "plastic", "difficulty": "Basic"})
	doctest.Put(t, docs, exercise.Collection, "e3", document.Document{"title": "Pressing Game", "exerciseType": "eyeq", "difficulty": "Advanced"})
	doctest.Put(t, docs, exercise.Collection, "bad", document.Document{"title": "Broken", "exerciseType": "hoops"})
	return docs
}

func TestQueryExerciseCatalog_FiltersByType(t *testing.T) {
	cat, err := QueryExerciseCatalog(context.Background(), ExerciseCatalogInput{Type: plan.TypePrimary}, ExerciseCatalogDeps{Docs: catalogStore(t)})
	if err != nil {
		t.Fatal(err)
	}
	var titles []string
	for _, e := range cat.Entries {
		titles = append(titles, e.Title)
	}
	if strings.Join(titles, ",") != "Pressing Game,Rondo" {
		t.Errorf("titles = %v", titles)
	}
	if got := cat.Facets["difficulty"]; len(got) != 2 || got[0] != "Advanced" {
		t.Errorf("difficulty facet = %v", got)
	}
}

func TestQueryExerciseCatalog_RendersSafeMarkdown(t *testing.T) {
	cat, err := QueryExerciseCatalog(context.Background(), ExerciseCatalogInput{Search: "ron"}, ExerciseCatalogDeps{Docs: catalogStore(t)})
	if err != nil {
		t.Fatal(err)
	}
	if len(cat.Entries) != 1 {
		t.Fatalf("entries = %+v", cat.Entries)
	}
	html := cat.Entries[0].DescriptionHTML
	if !strings.Contains(html, "<strong>moving</strong>") {
		t.Errorf("markdown not rendered: %s", html)
	}
	if strings.Contains(html, "<script>") {
		t.Errorf("raw html passed through: %s", html)
	}
	if cat.Entries[0].AgeGroup != exercise.DefaultNA {
		t.Errorf("defaults not applied: %+v", cat.Entries[0].Exercise)
	}
}

func TestQueryExerciseCatalog_MarksFavorites(t *testing.T) {
	deps := ExerciseCatalogDeps{
		Docs:       catalogStore(t),
		IsFavorite: func(id string) bool { return id == "e2" },
	}
	cat, err := QueryExerciseCatalog(context.Background(), ExerciseCatalogInput{Difficulty: "Basic"}, deps)
	if err != nil {
		t.Fatal(err)
	}
	if len(cat.Entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(cat.Entries))
	}
	for _, e := range cat.Entries {
		if e.Favorite != (e.ID == "e2") {
			t.Errorf("%s favorite = %v", e.ID, e.Favorite)
		}
	}
}

func TestQueryExerciseCatalog_SortsAndPages(t *testing.T) {
	docs := catalogStore(t)
	in := ExerciseCatalogInput{Sort: "difficulty", Desc: true, PerPage: 2}

	first, err := QueryExerciseCatalog(context.Background(), in, ExerciseCatalogDeps{Docs: docs})
	if err != nil {
		t.Fatal(err)
	}
	if first.Page.Total != 3 || first.Page.TotalPages != 2 {
		t.Errorf("page info = %+v", first.Page)
	}
	if len(first.Entries) != 2 || first.Entries[0].Title != "Cone Gates" || first.Entries[1].Title != "Rondo" {
		t.Errorf("first page = %v, %v", first.Entries[0].Title, first.Entries[1].Title)
	}

	in.Page = 2
	second, err := QueryExerciseCatalog(context.Background(), in, ExerciseCatalogDeps{Docs: docs})
	if err != nil {
		t.Fatal(err)
	}
	if len(second.Entries) != 1 || second.Entries[0].Title != "Pressing Game" {
		t.Errorf("second page = %+v", second.Entries)
	}
}
