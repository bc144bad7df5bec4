package workspace

import (
	"context"
	"log/slog"
	"sync"

	"footballeyeq/internal/domain/identity"
)

// Registry holds the open workspace of every signed-in user and the
// process-wide connectivity flag.
type Registry struct {
	deps Deps

	mu         sync.Mutex
	online     bool
	workspaces map[string]*Workspace
	opening    map[string]*openGate
}

// openGate serializes first opens of one user. It is dropped when the last
// caller waiting on it leaves, whether the open succeeded or not.
type openGate struct {
	sync.Mutex
	waiters int
}

// NewRegistry creates an empty registry that starts online.
// Workspaces it opens ask the registry, not deps.IsOnline, for connectivity.
func NewRegistry(deps Deps) *Registry {
	r := &Registry{
		online:     true,
		workspaces: make(map[string]*Workspace),
		opening:    make(map[string]*openGate),
	}
	deps.IsOnline = r.Online
	r.deps = deps
	return r
}

// Online reports the last connectivity state passed to SetOnline.
func (r *Registry) Online() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.online
}

// Acquire returns the workspace of id, opening it on first use.
// Concurrent first requests for the same user open exactly one workspace.
func (r *Registry) Acquire(ctx context.Context, id identity.Identity) (*Workspace, error) {
	r.mu.Lock()
	if w, ok := r.workspaces[id.UserID]; ok {
		r.mu.Unlock()
		return w, nil
	}
	gate, ok := r.opening[id.UserID]
	if !ok {
		gate = &openGate{}
		r.opening[id.UserID] = gate
	}
	gate.waiters++
	r.mu.Unlock()

	gate.Lock()
	defer func() {
		gate.Unlock()
		r.mu.Lock()
		gate.waiters--
		if gate.waiters == 0 && r.opening[id.UserID] == gate {
			delete(r.opening, id.UserID)
		}
		r.mu.Unlock()
	}()

	r.mu.Lock()
	if w, ok := r.workspaces[id.UserID]; ok {
		r.mu.Unlock()
		return w, nil
	}
	r.mu.Unlock()

	w, err := Open(ctx, r.deps, id)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.workspaces[id.UserID] = w
	n := len(r.workspaces)
	r.mu.Unlock()
	slog.Info("workspace_event", "event", "opened", "user_id", id.UserID, "open", n)
	return w, nil
}

// Lookup returns the open workspace of userID, if any.
func (r *Registry) Lookup(userID string) (*Workspace, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.workspaces[userID]
	return w, ok
}

// SignOut closes the workspace of userID after resetting its local state.
// It returns false when the user had no open workspace.
func (r *Registry) SignOut(ctx context.Context, userID string) bool {
	r.mu.Lock()
	w, ok := r.workspaces[userID]
	delete(r.workspaces, userID)
	r.mu.Unlock()
	if !ok {
		return false
	}
	w.SignOut(ctx)
	slog.Info("workspace_event", "event", "signed_out", "user_id", userID)
	return true
}

// SetOnline records a connectivity transition and forwards it to every workspace.
func (r *Registry) SetOnline(online bool) {
	r.mu.Lock()
	if r.online == online {
		r.mu.Unlock()
		return
	}
	r.online = online
	open := make([]*Workspace, 0, len(r.workspaces))
	for _, w := range r.workspaces {
		open = append(open, w)
	}
	r.mu.Unlock()

	slog.Info("workspace_event", "event", "connectivity_changed", "online", online, "workspaces", len(open))
	for _, w := range open {
		w.SetOnline(online)
	}
}

// Len returns the number of open workspaces.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.workspaces)
}

// Close closes every workspace without signing anyone out.
func (r *Registry) Close() {
	r.mu.Lock()
	open := r.workspaces
	r.workspaces = make(map[string]*Workspace)
	r.mu.Unlock()
	for _, w := range open {
		w.Close()
	}
}
