package projections

import (
	"footballeyeq/internal/application/plansync"
	"footballeyeq/internal/domain/plan"
)

// Sync status labels
const (
	LabelSaved   = "Saved"
	LabelSaving  = "Saving..."
	LabelOffline = "Offline"
	LabelFailed  = "Save failed"
	LabelPending = "Changes pending"
)

// SyncIndicator is the sync status as shown next to the planner title.
type SyncIndicator struct {
	Label   string             `json:"label"`
	Tone    string             `json:"tone"` // ok, busy, warn, error
	State   plansync.SyncState `json:"state"`
	Attempt int                `json:"retryAttempt"`
}

// QuerySyncIndicator maps the engine state to a label.
func QuerySyncIndicator(state plansync.SyncState, retryAttempt int) SyncIndicator {
	ind := SyncIndicator{State: state, Attempt: retryAttempt}
	switch {
	case state.Status == plan.SyncSyncing:
		ind.Label, ind.Tone = LabelSaving, "busy"
	case state.Status == plan.SyncOffline:
		ind.Label, ind.Tone = LabelOffline, "warn"
	case state.Status == plan.SyncError:
		ind.Label, ind.Tone = LabelFailed, "error"
	case state.PendingSave:
		ind.Label, ind.Tone = LabelPending, "warn"
	default:
		ind.Label, ind.Tone = LabelSaved, "ok"
	}
	return ind
}
