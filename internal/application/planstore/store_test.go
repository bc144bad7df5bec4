package planstore

import (
	"fmt"
	"reflect"
	"testing"

	"footballeyeq/internal/domain/plan"
)

func TestAddToWeek_CapacityScenario(t *testing.T) {
	s := New()
	for i := 0; i < 5; i++ {
		res := s.AddToWeek(1, fmt.Sprintf("Rondo %d", i), plan.TypePrimary)
		if !res.OK {
			t.Fatalf("add %d rejected: %s", i, res.Reason)
		}
	}

	res := s.AddToWeek(1, "Rondo 5", plan.TypePrimary)
	if res.OK || res.Reason != plan.ReasonFull {
		t.Errorf("sixth primary = %+v, want full", res)
	}

	res = s.AddToWeek(1, "Rondo 5", plan.TypeAlternate)
	if !res.OK {
		t.Errorf("alternate add = %+v, want ok", res)
	}

	w := s.Snapshot().Weeks[0]
	if w.CountType(plan.TypePrimary) != 5 || w.CountType(plan.TypeAlternate) != 1 {
		t.Errorf("week 1 = %+v", w.Exercises)
	}
}

func TestAddToWeek_Duplicate(t *testing.T) {
	s := New()
	s.AddToWeek(3, "Overload", plan.TypePrimary)
	before := s.Snapshot()

	res := s.AddToWeek(3, "Overload", plan.TypePrimary)
	if res.OK || res.Reason != plan.ReasonDuplicate {
		t.Errorf("duplicate add = %+v", res)
	}
	if !reflect.DeepEqual(before, s.Snapshot()) {
		t.Error("duplicate add changed state")
	}

	if res := s.AddToWeek(3, "Overload", plan.TypeAlternate); !res.OK {
		t.Errorf("same name, other type = %+v, want ok", res)
	}
}

func TestAddToWeek_InvalidInput(t *testing.T) {
	s := New()
	for _, week := range []int{0, 13, -1} {
		if res := s.AddToWeek(week, "Rondo", plan.TypePrimary); res.Reason != plan.ReasonInvalidWeek {
			t.Errorf("week %d = %+v, want invalid-week", week, res)
		}
	}
	if res := s.AddToWeek(1, "Rondo", "cones"); res.Reason != plan.ReasonInvalidType {
		t.Errorf("bad type = %+v, want invalid-type", res)
	}
}

func TestAddToWeek_InvariantHoldsForAnySequence(t *testing.T) {
	s := New()
	if err := s.SetMaxPerWeek(3); err != nil {
		t.Fatal(err)
	}
	types := []plan.ExerciseType{plan.TypePrimary, plan.TypeAlternate}
	for i := 0; i < 200; i++ {
		s.AddToWeek(i%14, fmt.Sprintf("ex%d", i%7), types[i%2])
	}

	p := s.Snapshot()
	for _, w := range p.Weeks {
		seen := map[plan.PlannedExercise]bool{}
		for _, e := range w.Exercises {
			if seen[e] {
				t.Errorf("week %d has duplicate %+v", w.Week, e)
			}
			seen[e] = true
		}
		for _, typ := range types {
			if w.CountType(typ) > p.MaxPerWeek {
				t.Errorf("week %d has %d %s entries", w.Week, w.CountType(typ), typ)
			}
		}
	}
}

func TestAddManyToWeek(t *testing.T) {
	s := New()
	s.SetMaxPerWeek(2)
	published := 0
	s.Subscribe(func(plan.SeasonPlan) { published++ })

	results := s.AddManyToWeek(2, []plan.PlannedExercise{
		{Name: "A", Type: plan.TypePrimary},
		{Name: "A", Type: plan.TypePrimary},
		{Name: "B", Type: plan.TypePrimary},
		{Name: "C", Type: plan.TypePrimary},
	})
	reasons := []string{results[0].Reason, results[1].Reason, results[2].Reason, results[3].Reason}
	want := []string{"", plan.ReasonDuplicate, "", plan.ReasonFull}
	if !reflect.DeepEqual(reasons, want) {
		t.Errorf("reasons = %v, want %v", reasons, want)
	}
	if published != 1 {
		t.Errorf("published = %d, want 1", published)
	}
}

func TestRemoveFromWeek(t *testing.T) {
	s := New()
	s.AddToWeek(1, "A", plan.TypePrimary)
	s.AddToWeek(1, "B", plan.TypePrimary)
	s.AddToWeek(1, "C", plan.TypeAlternate)

	if !s.RemoveFromWeek(1, 1) {
		t.Fatal("remove index 1 failed")
	}
	got := s.Snapshot().Weeks[0].Exercises
	want := []plan.PlannedExercise{{Name: "A", Type: plan.TypePrimary}, {Name: "C", Type: plan.TypeAlternate}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("week 1 = %+v", got)
	}

	if s.RemoveFromWeek(0, 0) || s.RemoveFromWeek(1, 5) || s.RemoveFromWeek(2, 0) {
		t.Error("invalid removals should be no-ops")
	}
}

func TestRemoveExerciseFromAll(t *testing.T) {
	s := New()
	s.AddToWeek(1, "Rondo", plan.TypePrimary)
	s.AddToWeek(1, "Rondo", plan.TypeAlternate)
	s.AddToWeek(4, "Rondo", plan.TypePrimary)
	s.AddToWeek(4, "Pressing", plan.TypePrimary)

	if n := s.RemoveExerciseFromAll("Rondo"); n != 3 {
		t.Errorf("removed = %d, want 3", n)
	}
	p := s.Snapshot()
	if len(p.Weeks[0].Exercises) != 0 || len(p.Weeks[3].Exercises) != 1 {
		t.Errorf("plan after removal = %+v", p.Weeks[:4])
	}
	if n := s.RemoveExerciseFromAll("Rondo"); n != 0 {
		t.Errorf("second removal = %d, want 0", n)
	}
}

func TestReset_KeepsMaxPerWeek(t *testing.T) {
	s := New()
	s.SetMaxPerWeek(8)
	s.AddToWeek(6, "Rondo", plan.TypePrimary)

	s.Reset()
	p := s.Snapshot()
	if p.MaxPerWeek != 8 {
		t.Errorf("MaxPerWeek = %d, want 8", p.MaxPerWeek)
	}
	if !reflect.DeepEqual(p, plan.NewSeasonPlan(8)) {
		t.Errorf("plan after reset = %+v", p)
	}
}

func TestSetAll_DeepCopiesAndIsIdempotent(t *testing.T) {
	s := New()
	in := plan.NewSeasonPlan(4)
	in.Weeks[0].Exercises = []plan.PlannedExercise{{Name: "Rondo", Type: plan.TypePrimary}}

	if err := s.SetAll(in); err != nil {
		t.Fatalf("SetAll: %v", err)
	}
	first := plan.Fingerprint(s.Snapshot())
	in.Weeks[0].Exercises[0].Name = "Mutated"
	if s.Snapshot().Weeks[0].Exercises[0].Name != "Rondo" {
		t.Error("SetAll aliased the caller's slice")
	}

	in.Weeks[0].Exercises[0].Name = "Rondo"
	s.SetAll(in)
	if plan.Fingerprint(s.Snapshot()) != first {
		t.Error("SetAll with the same payload changed state")
	}
}

func TestSetAll_RejectsMalformed(t *testing.T) {
	s := New()
	if err := s.SetAll(plan.SeasonPlan{MaxPerWeek: 5}); err != plan.ErrWeekCount {
		t.Errorf("SetAll = %v, want ErrWeekCount", err)
	}
}

func TestSnapshots_AreIsolated(t *testing.T) {
	s := New()
	s.AddToWeek(1, "A", plan.TypePrimary)
	before := s.Snapshot()

	var published plan.SeasonPlan
	s.Subscribe(func(p plan.SeasonPlan) { published = p })
	s.AddToWeek(1, "B", plan.TypePrimary)

	if len(before.Weeks[0].Exercises) != 1 {
		t.Error("earlier snapshot changed after a mutation")
	}
	published.Weeks[0].Exercises[0].Name = "Hacked"
	if s.Snapshot().Weeks[0].Exercises[0].Name != "A" {
		t.Error("subscriber copy aliases store state")
	}
}

func TestSetMaxPerWeek(t *testing.T) {
	s := New()
	if err := s.SetMaxPerWeek(0); err != plan.ErrInvalidMaxPerWeek {
		t.Errorf("SetMaxPerWeek(0) = %v", err)
	}
	count := 0
	s.Subscribe(func(plan.SeasonPlan) { count++ })
	s.SetMaxPerWeek(plan.DefaultMaxPerWeek)
	if count != 0 {
		t.Error("unchanged cap should not publish")
	}
	s.SetMaxPerWeek(2)
	if count != 1 || s.Snapshot().MaxPerWeek != 2 {
		t.Errorf("count=%d max=%d", count, s.Snapshot().MaxPerWeek)
	}
}
