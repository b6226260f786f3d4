package directory

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/casehub/accesscore/pkg/authz"
	"github.com/casehub/accesscore/pkg/httputil"
	"github.com/casehub/accesscore/pkg/middleware"
)

// Handlers manages settings delegations over HTTP. All routes are
// admin-only and should be registered behind middleware.RequireAdmin.
type Handlers struct {
	store       *Store
	delegations *DelegationStore
	log         *logrus.Logger
}

// NewHandlers creates directory handlers.
func NewHandlers(store *Store, delegations *DelegationStore, log *logrus.Logger) *Handlers {
	if log == nil {
		log = logrus.New()
	}
	return &Handlers{store: store, delegations: delegations, log: log}
}

// RegisterRoutes registers delegation routes
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/delegations", h.Grant).Methods("POST")
	router.HandleFunc("/delegations/{user_id}/{capability}", h.Revoke).Methods("DELETE")
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

// Grant delegates a settings capability to a non-admin user.
func (h *Handlers) Grant(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sub, ok := h.subject(w, r)
	if !ok {
		return
	}

	var req struct {
		UserID     string     `json:"user_id"`
		Capability string     `json:"capability"`
		ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.UserID == "" || req.Capability == "" {
		httputil.WriteBadRequest(w, "user_id and capability are required")
		return
	}

	tenantID, err := h.store.UserTenantID(ctx, req.UserID)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	if tenantID != sub.TenantID {
		httputil.WriteBadRequest(w, "user does not belong to this tenant")
		return
	}

	d := &Delegation{
		TenantID:   sub.TenantID,
		UserID:     req.UserID,
		Capability: authz.DelegatedCapability(req.Capability),
		GrantedBy:  sub.ID,
		ExpiresAt:  req.ExpiresAt,
	}
	if err := h.delegations.Grant(ctx, d); err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	h.log.WithFields(logrus.Fields{
		"user_id":    req.UserID,
		"capability": req.Capability,
		"granted_by": sub.ID,
	}).Info("settings capability delegated")
	httputil.WriteCreated(w, d)
}

// Revoke removes a delegated capability.
func (h *Handlers) Revoke(w http.ResponseWriter, r *http.Request) {
	sub, ok := h.subject(w, r)
	if !ok {
		return
	}
	userID, ok := httputil.ParsePathStringOrError(w, r, "user_id")
	if !ok {
		return
	}
	capability, ok := httputil.ParsePathStringOrError(w, r, "capability")
	if !ok {
		return
	}

	err := h.delegations.Revoke(r.Context(), sub.TenantID, userID, authz.DelegatedCapability(capability))
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}
