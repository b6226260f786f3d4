package locks

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/casehub/accesscore/pkg/authz"
	"github.com/casehub/accesscore/pkg/httputil"
	"github.com/casehub/accesscore/pkg/middleware"
)

// Handlers provides HTTP handlers for resource locking.
type Handlers struct {
	manager *Manager
	log     *logrus.Logger
}

// NewHandlers creates lock handlers.
func NewHandlers(manager *Manager, log *logrus.Logger) *Handlers {
	if log == nil {
		log = logrus.New()
	}
	return &Handlers{manager: manager, log: log}
}

// RegisterRoutes registers all lock routes
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/locks/{resource_type}/{resource_id}", h.Acquire).Methods("POST")
	router.HandleFunc("/locks/{resource_type}/{resource_id}", h.Check).Methods("GET")
	router.HandleFunc("/locks/{resource_type}/{resource_id}", h.Release).Methods("DELETE")
	router.HandleFunc("/locks/{resource_type}/{resource_id}/heartbeat", h.Heartbeat).Methods("PUT")
	router.HandleFunc("/locks", h.ListMine).Methods("GET")
	router.HandleFunc("/locks", h.ReleaseAll).Methods("DELETE")
}

// Acquire takes or refreshes a lock. A held resource answers 409 with
// the holder's identity and expiry.
func (h *Handlers) Acquire(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sub, ok := h.subject(w, r)
	if !ok {
		return
	}
	resourceType, resourceID, ok := h.resourceVars(w, r)
	if !ok {
		return
	}

	ttlSeconds, err := httputil.ParseQueryDuration(r, "ttl", 0)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	result, err := h.manager.Acquire(ctx, *sub, resourceType, resourceID, time.Duration(ttlSeconds)*time.Second)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	if !result.Acquired {
		httputil.WriteJSON(w, http.StatusConflict, result)
		return
	}
	httputil.WriteCreated(w, result)
}

// Heartbeat extends the caller's lease.
func (h *Handlers) Heartbeat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sub, ok := h.subject(w, r)
	if !ok {
		return
	}
	resourceType, resourceID, ok := h.resourceVars(w, r)
	if !ok {
		return
	}

	ttlSeconds, err := httputil.ParseQueryDuration(r, "ttl", 0)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	lock, err := h.manager.Extend(ctx, *sub, resourceType, resourceID, time.Duration(ttlSeconds)*time.Second)
	switch {
	case errors.Is(err, ErrNotFound):
		httputil.WriteNotFound(w, "no live lock to extend")
		return
	case errors.Is(err, ErrNotOwner):
		httputil.WriteConflict(w, "lock held by another user")
		return
	case err != nil:
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteSuccess(w, lock)
}

// Check reports a resource's lock state.
func (h *Handlers) Check(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sub, ok := h.subject(w, r)
	if !ok {
		return
	}
	resourceType, resourceID, ok := h.resourceVars(w, r)
	if !ok {
		return
	}

	result, err := h.manager.Check(ctx, *sub, resourceType, resourceID)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteSuccess(w, result)
}

// Release drops the caller's lock. Absent locks release cleanly;
// another user's lock answers 409 and stays.
func (h *Handlers) Release(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sub, ok := h.subject(w, r)
	if !ok {
		return
	}
	resourceType, resourceID, ok := h.resourceVars(w, r)
	if !ok {
		return
	}

	outcome, err := h.manager.Release(ctx, *sub, resourceType, resourceID)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	if outcome == ReleaseNotOwner {
		httputil.WriteConflict(w, "lock held by another user")
		return
	}
	httputil.WriteSuccess(w, map[string]string{"result": string(outcome)})
}

// ListMine lists the caller's live locks.
func (h *Handlers) ListMine(w http.ResponseWriter, r *http.Request) {
	sub, ok := h.subject(w, r)
	if !ok {
		return
	}

	locks, err := h.manager.UserLocks(r.Context(), *sub)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	if locks == nil {
		locks = []Lock{}
	}
	httputil.WriteSuccess(w, locks)
}

// ReleaseAll drops every lock the caller holds.
func (h *Handlers) ReleaseAll(w http.ResponseWriter, r *http.Request) {
	sub, ok := h.subject(w, r)
	if !ok {
		return
	}

	n, err := h.manager.ReleaseAllUserLocks(r.Context(), sub.ID)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteSuccess(w, map[string]int64{"released": n})
}

// subject rejects requests that reached the handler without an
// authenticated caller, which happens only when a route is registered
// outside the subject middleware.
func (h *Handlers) subject(w http.ResponseWriter, r *http.Request) (*authz.Subject, bool) {
	sub := middleware.GetSubject(r)
	if sub == nil {
		httputil.WriteUnauthorized(w, "authentication required")
		return nil, false
	}
	return sub, true
}

func (h *Handlers) resourceVars(w http.ResponseWriter, r *http.Request) (string, string, bool) {
	resourceType, ok := httputil.ParsePathStringOrError(w, r, "resource_type")
	if !ok {
		return "", "", false
	}
	resourceID, ok := httputil.ParsePathStringOrError(w, r, "resource_id")
	if !ok {
		return "", "", false
	}
	return resourceType, resourceID, true
}
