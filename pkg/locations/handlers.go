package locations

import (
	"context"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/casehub/accesscore/pkg/authz"
	"github.com/casehub/accesscore/pkg/httputil"
	"github.com/casehub/accesscore/pkg/middleware"
)

// UserLookup resolves a user ID to an access-evaluation identity for
// the admin listing of another user's locations.
type UserLookup interface {
	UserSubject(ctx context.Context, userID string) (*authz.Subject, error)
}

// Handlers provides HTTP handlers for location management and access
// resolution.
type Handlers struct {
	store    *Store
	resolver *Resolver
	trees    TreeSource
	checker  *authz.Checker
	users    UserLookup
	log      *logrus.Logger
}

// NewHandlers creates location handlers.
func NewHandlers(store *Store, resolver *Resolver, trees TreeSource, checker *authz.Checker, users UserLookup, log *logrus.Logger) *Handlers {
	if log == nil {
		log = logrus.New()
	}
	return &Handlers{store: store, resolver: resolver, trees: trees, checker: checker, users: users, log: log}
}

// RegisterRoutes registers all location routes
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	// Location management
	router.HandleFunc("/locations", h.CreateLocation).Methods("POST")
	router.HandleFunc("/locations", h.ListAccessible).Methods("GET")
	router.HandleFunc("/locations/{id}", h.GetLocation).Methods("GET")
	router.HandleFunc("/locations/{id}", h.UpdateLocation).Methods("PUT", "PATCH")
	router.HandleFunc("/locations/{id}", h.DeleteLocation).Methods("DELETE")

	// Access grants
	router.HandleFunc("/locations/{id}/access", h.AssignAccess).Methods("POST")
	router.HandleFunc("/locations/{id}/access/{user_id}", h.RemoveAccess).Methods("DELETE")
	router.HandleFunc("/locations/{id}/users", h.ListUsers).Methods("GET")
	router.HandleFunc("/locations/{id}/check", h.CheckAccess).Methods("GET")

	// Meeting access
	router.HandleFunc("/meetings/{id}/check", h.CheckMeetingAccess).Methods("GET")

	// Admin view of another user's reach
	router.HandleFunc("/users/{user_id}/locations", h.ListUserLocations).Methods("GET")
}

// CreateLocation creates a location. Table permissions gate the call;
// only admin-tier roles hold location create.
func (h *Handlers) CreateLocation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sub, ok := h.subject(w, r)
	if !ok {
		return
	}

	decision, err := h.checker.Check(ctx, *sub, authz.CheckInput{
		Resource: authz.ResourceLocation,
		Action:   authz.ActionCreate,
	})
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	if !decision.Allowed {
		httputil.WriteForbidden(w, decision.UserMessage)
		return
	}

	var input CreateLocationInput
	if !httputil.ParseJSONOrError(w, r, &input) {
		return
	}
	input.TenantID = sub.TenantID

	loc, err := h.store.CreateLocation(ctx, input)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.trees.Invalidate(sub.TenantID)
	httputil.WriteCreated(w, loc)
}

// ListAccessible returns every location the caller can reach, with the
// effective level and the grant it derives from.
func (h *Handlers) ListAccessible(w http.ResponseWriter, r *http.Request) {
	sub, ok := h.subject(w, r)
	if !ok {
		return
	}

	access, err := h.resolver.AccessibleLocations(r.Context(), *sub)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	if access == nil {
		access = []LocationAccess{}
	}
	httputil.WriteSuccess(w, access)
}

// GetLocation returns one location the caller can at least view.
func (h *Handlers) GetLocation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sub, ok := h.subject(w, r)
	if !ok {
		return
	}
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	allowed, err := h.resolver.CanAccess(ctx, *sub, id, LevelView)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	if !allowed {
		httputil.WriteNotFound(w, "location not found")
		return
	}

	loc, err := h.store.GetLocation(ctx, id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	httputil.WriteSuccess(w, loc)
}

// UpdateLocation patches a location; the caller needs manage there.
func (h *Handlers) UpdateLocation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sub, ok := h.subject(w, r)
	if !ok {
		return
	}
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	if !h.requireManage(w, r, id) {
		return
	}

	var input UpdateLocationInput
	if !httputil.ParseJSONOrError(w, r, &input) {
		return
	}

	loc, err := h.store.UpdateLocation(ctx, id, input)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.trees.Invalidate(sub.TenantID)
	httputil.WriteSuccess(w, loc)
}

// DeleteLocation removes a location, soft-deleting when dependents
// exist. Locations with active children cannot be deleted.
func (h *Handlers) DeleteLocation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sub, ok := h.subject(w, r)
	if !ok {
		return
	}
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	if !h.requireManage(w, r, id) {
		return
	}

	outcome, err := h.store.DeleteLocation(ctx, id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.trees.Invalidate(sub.TenantID)
	httputil.WriteSuccess(w, map[string]string{"result": string(outcome)})
}

// AssignAccess grants a user a level at a location.
func (h *Handlers) AssignAccess(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sub, ok := h.subject(w, r)
	if !ok {
		return
	}
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	var req struct {
		UserID string      `json:"user_id"`
		Level  AccessLevel `json:"access_level"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.UserID == "" {
		httputil.WriteBadRequest(w, "user_id is required")
		return
	}

	err := h.resolver.AssignAccess(ctx, *sub, Grant{
		UserID:     req.UserID,
		LocationID: id,
		Level:      req.Level,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

// RemoveAccess revokes a user's grant at a location.
func (h *Handlers) RemoveAccess(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sub, ok := h.subject(w, r)
	if !ok {
		return
	}
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}
	userID, ok := httputil.ParsePathStringOrError(w, r, "user_id")
	if !ok {
		return
	}

	if err := h.resolver.RemoveAccess(ctx, *sub, userID, id); err != nil {
		h.writeError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

// ListUsers returns everyone with access at a location, explicit grants
// plus implicit admin access.
func (h *Handlers) ListUsers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sub, ok := h.subject(w, r)
	if !ok {
		return
	}
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	allowed, err := h.resolver.CanAccess(ctx, *sub, id, LevelView)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	if !allowed {
		httputil.WriteNotFound(w, "location not found")
		return
	}

	users, err := h.resolver.LocationUsers(ctx, *sub, id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if users == nil {
		users = []LocationUser{}
	}
	httputil.WriteSuccess(w, users)
}

// CheckAccess reports the caller's effective level at a location.
func (h *Handlers) CheckAccess(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sub, ok := h.subject(w, r)
	if !ok {
		return
	}
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	level, hasAccess, err := h.resolver.AccessLevel(ctx, *sub, id)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteSuccess(w, map[string]interface{}{
		"allowed":      hasAccess,
		"access_level": level,
	})
}

// CheckMeetingAccess reports whether the caller can access a meeting.
func (h *Handlers) CheckMeetingAccess(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sub, ok := h.subject(w, r)
	if !ok {
		return
	}
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	allowed, err := h.resolver.CanAccessMeeting(ctx, *sub, id)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteSuccess(w, map[string]bool{"allowed": allowed})
}

// ListUserLocations lets an admin inspect another user's reachable
// locations.
func (h *Handlers) ListUserLocations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sub, ok := h.subject(w, r)
	if !ok {
		return
	}
	userID, ok := httputil.ParsePathStringOrError(w, r, "user_id")
	if !ok {
		return
	}

	if !sub.Role.IsAdminTier() {
		httputil.WriteForbidden(w, "admin role required")
		return
	}

	target, err := h.users.UserSubject(ctx, userID)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	if target == nil || target.TenantID != sub.TenantID {
		httputil.WriteNotFound(w, "user not found")
		return
	}

	access, err := h.resolver.AccessibleLocations(ctx, *target)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	if access == nil {
		access = []LocationAccess{}
	}
	httputil.WriteSuccess(w, access)
}

func (h *Handlers) requireManage(w http.ResponseWriter, r *http.Request, locationID string) bool {
	sub, ok := h.subject(w, r)
	if !ok {
		return false
	}
	allowed, err := h.resolver.CanAccess(r.Context(), *sub, locationID, LevelManage)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return false
	}
	if !allowed {
		httputil.WriteForbidden(w, "manage access required")
		return false
	}
	return true
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

func (h *Handlers) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httputil.WriteNotFound(w, "location not found")
	case errors.Is(err, ErrInvalidInput):
		httputil.WriteBadRequest(w, err.Error())
	case errors.Is(err, ErrCycle):
		httputil.WriteBadRequest(w, "parent assignment would create a cycle")
	case errors.Is(err, ErrHasChildren):
		httputil.WriteConflict(w, "location has active children")
	case errors.Is(err, ErrInsufficientLevel):
		httputil.WriteForbidden(w, "manage access required")
	case errors.Is(err, ErrUserNotInTenant):
		httputil.WriteBadRequest(w, "user does not belong to this tenant")
	default:
		httputil.WriteInternalError(w, err)
	}
}
