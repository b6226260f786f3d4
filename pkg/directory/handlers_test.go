package directory

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
)

func TestDelegationEndpointsRejectMissingSubject(t *testing.T) {
	router := mux.NewRouter()
	NewHandlers(nil, nil, nil).RegisterRoutes(router)

	for _, req := range []*http.Request{
		httptest.NewRequest(http.MethodPost, "/delegations", nil),
		httptest.NewRequest(http.MethodDelete, "/delegations/u1/delegate_billing", nil),
	} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "%s %s", req.Method, req.URL.Path)
	}
}
