package api

import (
	"io"
	"net/http"

	"github.com/geoguard/geoguard/pkg/httputil"
	"github.com/geoguard/geoguard/pkg/tenants"
)

type transferOwnershipRequest struct {
	NewOwnerID string `json:"new_owner_id"`
}

// GET /api/v1/tenants
func (s *Server) listTenants(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.ListTenants(r.Context(), actor(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, list)
}

// GET /api/v1/tenants/{tenant_id}
func (s *Server) getTenant(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "tenant_id")
	if !ok {
		return
	}
	tenant, err := s.svc.GetTenant(r.Context(), actor(r), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, tenant)
}

// PATCH /api/v1/tenants/{tenant_id}/settings
func (s *Server) updateTenantSettings(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "tenant_id")
	if !ok {
		return
	}
	var patch tenants.SettingsPatch
	if !httputil.ParseJSONOrError(w, r, &patch) {
		return
	}
	settings, err := s.svc.UpdateTenantSettings(r.Context(), actor(r), id, patch)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, settings)
}

// PUT /api/v1/tenants/{tenant_id}/logo with the raw image as the body
func (s *Server) uploadLogo(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "tenant_id")
	if !ok {
		return
	}
	content, err := io.ReadAll(r.Body)
	if err != nil {
		httputil.WriteBadRequest(w, "could not read logo")
		return
	}
	settings, err := s.svc.UploadLogo(r.Context(), actor(r), id, content, r.Header.Get("Content-Type"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, settings)
}

// POST /api/v1/tenants/{tenant_id}/deactivate and /reactivate
func (s *Server) setTenantActive(active bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := httputil.ParsePathStringOrError(w, r, "tenant_id")
		if !ok {
			return
		}
		if err := s.svc.SetTenantActive(r.Context(), actor(r), id, active); err != nil {
			s.writeError(w, r, err)
			return
		}
		httputil.WriteNoContent(w)
	}
}

// POST /api/v1/tenants/{tenant_id}/transfer-ownership
func (s *Server) transferOwnership(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "tenant_id")
	if !ok {
		return
	}
	var req transferOwnershipRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if err := s.svc.TransferOwnership(r.Context(), actor(r), id, req.NewOwnerID); err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}
