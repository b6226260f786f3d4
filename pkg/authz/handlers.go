package authz

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/casehub/accesscore/pkg/contextkeys"
	"github.com/casehub/accesscore/pkg/httputil"
)

// Handlers exposes permission evaluation over HTTP.
type Handlers struct {
	checker *Checker
	log     *logrus.Logger
}

// NewHandlers creates authz handlers.
func NewHandlers(checker *Checker, log *logrus.Logger) *Handlers {
	if log == nil {
		log = logrus.New()
	}
	return &Handlers{checker: checker, log: log}
}

// RegisterRoutes registers permission routes
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/authz/check", h.Check).Methods("POST")
	router.HandleFunc("/authz/capabilities", h.Capabilities).Methods("GET")
}

// subject reads the caller stored by the subject middleware. The
// middleware package depends on this one, so the lookup is done against
// the context key directly.
func subject(r *http.Request) *Subject {
	v := r.Context().Value(contextkeys.SubjectKey)
	if v == nil {
		return nil
	}
	sub, ok := v.(*Subject)
	if !ok {
		return nil
	}
	return sub
}

// Check evaluates one permission for the caller and returns the full
// decision, including the denial message and admin contact when
// access is refused.
func (h *Handlers) Check(w http.ResponseWriter, r *http.Request) {
	sub := subject(r)
	if sub == nil {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}

	var input CheckInput
	if !httputil.ParseJSONOrError(w, r, &input) {
		return
	}
	if input.Resource == "" || input.Action == "" {
		httputil.WriteBadRequest(w, "resource and action are required")
		return
	}

	decision, err := h.checker.Check(r.Context(), *sub, input)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteSuccess(w, decision)
}

// Capabilities lists every resource/action/scope grant the caller's
// role carries.
func (h *Handlers) Capabilities(w http.ResponseWriter, r *http.Request) {
	sub := subject(r)
	if sub == nil {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}

	caps := RoleCapabilities(sub.Role)
	if caps == nil {
		caps = []Capability{}
	}
	httputil.WriteSuccess(w, caps)
}
