package schema

import (
	"footballeyeq/internal/adapters/storage/document"
	"footballeyeq/internal/domain/plan"
)

// ParsePlanDocument normalizes a stored season plan. It always yields a plan
// with twelve weeks; ok is false when any part of the record had to be dropped.
//
// Bare-string exercise entries are read as primary. Entries that fail the
// duplicate or capacity rule are dropped exactly as an add would reject them.
func ParsePlanDocument(userID string, doc document.Document) (plan.SeasonPlan, bool) {
	f := newFields(doc)
	maxPerWeek, present := f.integer("maxPerWeek")
	if !present || maxPerWeek < 1 {
		maxPerWeek = plan.DefaultMaxPerWeek
	}
	p := plan.NewSeasonPlan(maxPerWeek)

	raw, present := doc["weeks"]
	if present && raw != nil {
		weeks, isList := raw.([]any)
		if !isList {
			f.fail("weeks")
		}
		for i, w := range weeks {
			parseWeek(f, &p, i, w)
		}
	}

	if !f.ok() {
		reject("plan", userID, f.bad)
		return p, false
	}
	return p, true
}

func parseWeek(f *fields, p *plan.SeasonPlan, index int, raw any) {
	wm, isMap := raw.(map[string]any)
	if !isMap {
		f.fail("weeks")
		return
	}
	week := index + 1
	if n, isInt := toInt(wm["week"]); isInt {
		week = n
	}
	if !plan.ValidWeek(week) {
		f.fail("weeks.week")
		return
	}
	list, isList := wm["exercises"].([]any)
	if !isList {
		if wm["exercises"] != nil {
			f.fail("weeks.exercises")
		}
		return
	}

	target := &p.Weeks[week-1]
	for _, item := range list {
		e, ok := parsePlannedExercise(item)
		if !ok {
			f.fail("weeks.exercises")
			continue
		}
		if res := plan.CheckAdd(*target, p.MaxPerWeek, e); !res.OK {
			f.fail("weeks.exercises." + res.Reason)
			continue
		}
		target.Exercises = append(target.Exercises, e)
	}
}

func parsePlannedExercise(raw any) (plan.PlannedExercise, bool) {
	switch v := raw.(type) {
	case string:
		if v == "" {
			return plan.PlannedExercise{}, false
		}
		return plan.PlannedExercise{Name: v, Type: plan.TypePrimary}, true
	case map[string]any:
		name, _ := v["name"].(string)
		if name == "" {
			return plan.PlannedExercise{}, false
		}
		t := plan.TypePrimary
		if rawType, present := v["type"]; present && rawType != nil {
			s, _ := rawType.(string)
			parsed, ok := ParseExerciseType(s)
			if !ok {
				return plan.PlannedExercise{}, false
			}
			t = parsed
		}
		return plan.PlannedExercise{Name: name, Type: t}, true
	}
	return plan.PlannedExercise{}, false
}

// PlanDocument returns the stored shape of a plan. The update time is left to the store.
func PlanDocument(p plan.SeasonPlan) document.Document {
	weeks := make([]any, 0, len(p.Weeks))
	for _, w := range p.Weeks {
		items := make([]any, 0, len(w.Exercises))
		for _, e := range w.Exercises {
			items = append(items, map[string]any{"name": e.Name, "type": string(e.Type)})
		}
		weeks = append(weeks, map[string]any{"week": w.Week, "exercises": items})
	}
	return document.Document{
		"weeks":      weeks,
		"maxPerWeek": p.MaxPerWeek,
		"updatedAt":  document.ServerTimestamp,
	}
}
