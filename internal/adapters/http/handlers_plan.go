package web

import (
	"fmt"
	"log/slog"
	"net/http"

	"footballeyeq/internal/application/projections"
	"footballeyeq/internal/application/workspace"
	"footballeyeq/internal/domain/entitlement"
	"footballeyeq/internal/domain/export"
	"footballeyeq/internal/domain/plan"
)

type planResponse struct {
	Plan  plan.SeasonPlan           `json:"plan"`
	Weeks []projections.PlannerWeek `json:"weeks"`
	Sync  projections.SyncIndicator `json:"sync"`
}

func planView(ws *workspace.Workspace) planResponse {
	p := ws.Plans.Snapshot()
	return planResponse{
		Plan: p,
		Weeks: projections.QueryPlanner(projections.PlannerInput{
			Plan:    p,
			Account: ws.Entitlements.Current(),
			Type:    ws.ExerciseType.Current().Selected,
		}),
		Sync: syncView(ws),
	}
}

func syncView(ws *workspace.Workspace) projections.SyncIndicator {
	attempt, _, _ := ws.Sync.Retry()
	return projections.QuerySyncIndicator(ws.Sync.State(), attempt)
}

// handleGetPlan handles GET /api/plan
func (s *server) handleGetPlan(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspaceFor(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, planView(ws))
}

type addToWeekInput struct {
	Name string            `json:"name"`
	Type plan.ExerciseType `json:"type"`
}

type addToWeekResponse struct {
	Result plan.AddResult `json:"result"`
	planResponse
}

// handleAddToWeek handles POST /api/plan/weeks/{week}/exercises
// Capacity rejections answer 409 with the AddResult; gate failures answer 403.
func (s *server) handleAddToWeek(w http.ResponseWriter, r *http.Request) {
	week, ok := pathInt(r, "week")
	if !ok {
		writeError(w, http.StatusBadRequest, "week must be a number")
		return
	}
	var input addToWeekInput
	if err := strictDecode(w, r, &input); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	if input.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	ws, ok := s.workspaceFor(w, r)
	if !ok {
		return
	}
	if input.Type == "" {
		input.Type = ws.ExerciseType.Current().Selected
	}
	result, err := ws.AddToWeek(week, input.Name, input.Type)
	if err != nil {
		gateError(w, err)
		return
	}

	status := http.StatusCreated
	if !result.OK {
		status = http.StatusConflict
	}
	writeJSON(w, status, addToWeekResponse{Result: result, planResponse: planView(ws)})
}

// handleRemoveFromWeek handles DELETE /api/plan/weeks/{week}/exercises/{index}
func (s *server) handleRemoveFromWeek(w http.ResponseWriter, r *http.Request) {
	week, okWeek := pathInt(r, "week")
	index, okIndex := pathInt(r, "index")
	if !okWeek || !okIndex {
		writeError(w, http.StatusBadRequest, "week and index must be numbers")
		return
	}
	ws, ok := s.workspaceFor(w, r)
	if !ok {
		return
	}
	removed, err := ws.RemoveFromWeek(week, index)
	if err != nil {
		gateError(w, err)
		return
	}
	if !removed {
		writeError(w, http.StatusNotFound, "no exercise at that position")
		return
	}
	writeJSON(w, http.StatusOK, planView(ws))
}

// handleRemoveExerciseFromAll handles DELETE /api/plan/exercises/{name}
func (s *server) handleRemoveExerciseFromAll(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	ws, ok := s.workspaceFor(w, r)
	if !ok {
		return
	}
	n, err := ws.RemoveExerciseFromAll(name)
	if err != nil {
		gateError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"removed": n, "plan": planView(ws)})
}

// handleResetPlan handles POST /api/plan/reset
func (s *server) handleResetPlan(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspaceFor(w, r)
	if !ok {
		return
	}
	if err := ws.ResetPlan(); err != nil {
		gateError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, planView(ws))
}

// handleSync handles GET /api/sync
func (s *server) handleSync(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspaceFor(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, syncView(ws))
}

// handleExportPlan handles GET /api/plan/export?format=csv|json
// Requires an account that can open the export screen.
func (s *server) handleExportPlan(w http.ResponseWriter, r *http.Request) {
	format, err := export.NormalizeFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ws, ok := s.workspaceFor(w, r)
	if !ok {
		return
	}
	if !ws.Entitlements.Current().Allows(entitlement.ScreenExport) {
		writeError(w, http.StatusForbidden, "export requires a premium account")
		return
	}

	now := s.deps.Now()
	doc := export.NewDocument(ws.Plans.Snapshot(), format, now)
	body, contentType, err := doc.Encode()
	if err != nil {
		internalError(w, err)
		return
	}
	slog.Info("export_event", "event", "plan_exported", "format", format, "rows", doc.Metadata.RecordCount)

	filename := fmt.Sprintf("season-plan-%s.%s", now.UTC().Format("2006-01-02"), format)
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}
