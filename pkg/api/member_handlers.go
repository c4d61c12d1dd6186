package api

import (
	"net/http"

	"github.com/geoguard/geoguard/pkg/httputil"
	"github.com/geoguard/geoguard/pkg/onboarding"
	"github.com/geoguard/geoguard/pkg/users"
)

type validateInvitationRequest struct {
	Code  string `json:"code"`
	Email string `json:"email"`
}

// POST /api/v1/invitations/validate
func (s *Server) validateInvitation(w http.ResponseWriter, r *http.Request) {
	var req validateInvitationRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	inv, err := s.svc.ValidateInvitation(r.Context(), req.Code, req.Email)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, map[string]interface{}{
		"valid":      true,
		"role":       inv.Role,
		"expires_at": inv.ExpiresAt,
	})
}

// POST /api/v1/invitations
func (s *Server) createInvitation(w http.ResponseWriter, r *http.Request) {
	var req onboarding.InviteRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	inv, err := s.svc.InviteUser(r.Context(), actor(r), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteCreated(w, inv)
}

// GET /api/v1/invitations?tenant_id=
func (s *Server) listInvitations(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.ListInvitations(r.Context(), actor(r), httputil.ParseQueryString(r, "tenant_id", ""))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, list)
}

// DELETE /api/v1/invitations/{id}
func (s *Server) deleteInvitation(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}
	if err := s.svc.DeleteInvitation(r.Context(), actor(r), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}

// GET /api/v1/users?tenant_id=
func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.ListUsers(r.Context(), actor(r), httputil.ParseQueryString(r, "tenant_id", ""))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, list)
}

// GET /api/v1/users/{id}
func (s *Server) getUser(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}
	user, err := s.svc.GetUser(r.Context(), actor(r), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, user)
}

// PATCH /api/v1/users/{id}
func (s *Server) editUser(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}
	var patch users.EditPatch
	if !httputil.ParseJSONOrError(w, r, &patch) {
		return
	}
	user, err := s.svc.EditUser(r.Context(), actor(r), id, patch)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, user)
}

// PATCH /api/v1/users/me/profile
func (s *Server) updateProfile(w http.ResponseWriter, r *http.Request) {
	var patch users.ProfilePatch
	if !httputil.ParseJSONOrError(w, r, &patch) {
		return
	}
	user, err := s.svc.UpdateProfile(r.Context(), actor(r), patch)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, user)
}
