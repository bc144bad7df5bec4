package web

import (
	"errors"
	"net/http"
	"time"

	"footballeyeq/internal/adapters/http/middleware"
	"footballeyeq/internal/application/exercisetype"
	"footballeyeq/internal/application/favorites"
	"footballeyeq/internal/application/listutil"
	"footballeyeq/internal/application/orchestrators"
	"footballeyeq/internal/application/projections"
	"footballeyeq/internal/domain/account"
	"footballeyeq/internal/domain/entitlement"
	"footballeyeq/internal/domain/plan"
)

var gatedScreens = []entitlement.Screen{
	entitlement.ScreenPlanner,
	entitlement.ScreenStats,
	entitlement.ScreenExport,
	entitlement.ScreenClubDashboard,
	entitlement.ScreenSuperAdmin,
}

type accountResponse struct {
	entitlement.View
	Screens map[entitlement.Screen]bool `json:"screens"`
}

func accountView(v entitlement.View) accountResponse {
	screens := make(map[entitlement.Screen]bool, len(gatedScreens))
	for _, sc := range gatedScreens {
		screens[sc] = v.Allows(sc)
	}
	return accountResponse{View: v, Screens: screens}
}

// handleAccount handles GET /api/account
func (s *server) handleAccount(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspaceFor(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, accountView(ws.Entitlements.Current()))
}

// handleAccountRefresh handles POST /api/account/refresh
func (s *server) handleAccountRefresh(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspaceFor(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, accountView(ws.RefreshAccount(r.Context())))
}

// handleGetExerciseType handles GET /api/exercise-type
func (s *server) handleGetExerciseType(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspaceFor(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, ws.ExerciseType.Current())
}

type exerciseTypeInput struct {
	Type plan.ExerciseType `json:"type"`
}

// handleSetExerciseType handles PUT /api/exercise-type
func (s *server) handleSetExerciseType(w http.ResponseWriter, r *http.Request) {
	var input exerciseTypeInput
	if err := strictDecode(w, r, &input); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	ws, ok := s.workspaceFor(w, r)
	if !ok {
		return
	}
	err := ws.ExerciseType.Select(r.Context(), input.Type)
	switch {
	case errors.Is(err, exercisetype.ErrInvalidType):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, exercisetype.ErrSelectionLocked):
		writeError(w, http.StatusForbidden, err.Error())
	case err != nil:
		internalError(w, err)
	default:
		writeJSON(w, http.StatusOK, ws.ExerciseType.Current())
	}
}

// handleExercises handles GET /api/exercises
// The type filter defaults to the selected type; a locked account may not ask for another.
func (s *server) handleExercises(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspaceFor(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	sel := ws.ExerciseType.Current()
	t := sel.Selected
	if raw := q.Get("type"); raw != "" {
		t = plan.ExerciseType(raw)
		if !t.IsValid() {
			writeError(w, http.StatusBadRequest, exercisetype.ErrInvalidType.Error())
			return
		}
		if t != sel.Selected && !sel.CanChoose {
			writeError(w, http.StatusForbidden, exercisetype.ErrSelectionLocked.Error())
			return
		}
	}

	lp := listutil.Parse(q, projections.CatalogSortColumns, projections.CatalogFilterKeys)
	catalog, err := projections.QueryExerciseCatalog(r.Context(), projections.ExerciseCatalogInput{
		Type:       t,
		AgeGroup:   lp.Filters["ageGroup"],
		Difficulty: lp.Filters["difficulty"],
		GameMoment: lp.Filters["gameMoment"],
		Search:     lp.Search,
		Sort:       lp.Sort,
		Desc:       lp.Dir == "desc",
		Page:       lp.Page,
		PerPage:    lp.PerPage,
	}, projections.ExerciseCatalogDeps{
		Docs:       s.deps.Docs,
		IsFavorite: ws.Favorites.IsFavorite,
	})
	if err != nil {
		internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, catalog)
}

// handleFavorites handles GET /api/favorites
func (s *server) handleFavorites(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspaceFor(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, ws.Favorites.Current())
}

type toggleFavoriteInput struct {
	ExerciseID string            `json:"exerciseId"`
	Type       plan.ExerciseType `json:"type"`
}

// handleToggleFavorite handles POST /api/favorites/toggle
// A toggle refused by the favorites limit answers 409 with the result.
func (s *server) handleToggleFavorite(w http.ResponseWriter, r *http.Request) {
	var input toggleFavoriteInput
	if err := strictDecode(w, r, &input); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	if input.ExerciseID == "" {
		writeError(w, http.StatusBadRequest, "exerciseId is required")
		return
	}
	if input.Type != "" && !input.Type.IsValid() {
		writeError(w, http.StatusBadRequest, exercisetype.ErrInvalidType.Error())
		return
	}
	ws, ok := s.workspaceFor(w, r)
	if !ok {
		return
	}
	result, err := ws.ToggleFavorite(r.Context(), input.ExerciseID, input.Type)
	if err != nil {
		gateError(w, err)
		return
	}
	status := http.StatusOK
	if result.Action == favorites.ActionLimitReached {
		status = http.StatusConflict
	}
	writeJSON(w, status, result)
}

type redeemInviteInput struct {
	Code string `json:"code"`
}

type redeemInviteResponse struct {
	orchestrators.RedeemInviteResult
	Account accountResponse `json:"account"`
}

// handleRedeemInvite handles POST /api/invites/redeem
func (s *server) handleRedeemInvite(w http.ResponseWriter, r *http.Request) {
	var input redeemInviteInput
	if err := strictDecode(w, r, &input); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	ws, ok := s.workspaceFor(w, r)
	if !ok {
		return
	}
	id := ws.Identity()
	result, err := orchestrators.ExecuteRedeemInvite(r.Context(), orchestrators.RedeemInviteInput{
		UserID: id.UserID,
		Email:  id.Email,
		Code:   input.Code,
	}, orchestrators.RedeemInviteDeps{
		Docs:   s.deps.Docs,
		Sender: s.deps.Sender,
		AppURL: s.deps.AppURL,
		Now:    s.deps.Now,
	})
	if err != nil {
		if orchestrators.IsRedeemRejection(err) {
			writeError(w, redeemStatus(err), err.Error())
			return
		}
		internalError(w, err)
		return
	}
	view := ws.RefreshAccount(r.Context())
	writeJSON(w, http.StatusOK, redeemInviteResponse{RedeemInviteResult: result, Account: accountView(view)})
}

func redeemStatus(err error) int {
	switch {
	case errors.Is(err, account.ErrInviteCodeRequired):
		return http.StatusBadRequest
	case errors.Is(err, account.ErrInviteNotFound), errors.Is(err, account.ErrClubNotFound):
		return http.StatusNotFound
	case errors.Is(err, account.ErrInviteEmailMismatch):
		return http.StatusForbidden
	default:
		return http.StatusConflict
	}
}

// handleSignOut handles POST /api/session/signout
// The local plan is reset; the remote plan is left untouched.
func (s *server) handleSignOut(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "sign in required")
		return
	}
	s.deps.Registry.SignOut(r.Context(), id.UserID)
	w.WriteHeader(http.StatusNoContent)
}

// handleAdminPerf handles GET /api/admin/perf
func (s *server) handleAdminPerf(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspaceFor(w, r)
	if !ok {
		return
	}
	if !ws.Entitlements.Current().Allows(entitlement.ScreenSuperAdmin) {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}
	if s.deps.Perf == nil {
		writeError(w, http.StatusNotFound, "performance collection is disabled")
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Perf.Snapshot(s.deps.Now().Add(-time.Hour), 10))
}
