package api

import (
	"net/http"

	"github.com/geoguard/geoguard/pkg/httputil"
	"github.com/geoguard/geoguard/pkg/licenses"
)

type validateLicenseRequest struct {
	LicenseKey string `json:"license_key"`
}

// POST /api/v1/licenses/validate
func (s *Server) validateLicense(w http.ResponseWriter, r *http.Request) {
	var req validateLicenseRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	license, err := s.svc.ValidateLicense(r.Context(), req.LicenseKey)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	// the key itself is not echoed back to anonymous callers
	httputil.WriteSuccess(w, map[string]interface{}{
		"valid":      true,
		"expires_at": license.ExpiresAt,
	})
}

// POST /api/v1/licenses
func (s *Server) issueLicense(w http.ResponseWriter, r *http.Request) {
	var req licenses.IssueRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	license, err := s.svc.IssueLicense(r.Context(), actor(r), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteCreated(w, license)
}

// GET /api/v1/licenses
func (s *Server) listLicenses(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.ListLicenses(r.Context(), actor(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, list)
}

// POST /api/v1/licenses/{id}/revoke
func (s *Server) revokeLicense(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}
	if err := s.svc.RevokeLicense(r.Context(), actor(r), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}
