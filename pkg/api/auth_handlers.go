package api

import (
	"crypto/rand"
	"encoding/base64"
	"net/http"

	"github.com/geoguard/geoguard/pkg/contextkeys"
	"github.com/geoguard/geoguard/pkg/httputil"
	"github.com/geoguard/geoguard/pkg/onboarding"
)

const oidcStateCookie = "geoguard_oidc_state"

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// POST /api/v1/auth/register-organization
func (s *Server) registerOrganization(w http.ResponseWriter, r *http.Request) {
	var req onboarding.RegisterOrganizationRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	result, err := s.svc.RegisterOrganization(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteCreated(w, result)
}

// POST /api/v1/auth/signup
func (s *Server) signUp(w http.ResponseWriter, r *http.Request) {
	var req onboarding.SignUpRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	result, err := s.svc.SignUp(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteCreated(w, result)
}

// POST /api/v1/auth/signin
func (s *Server) signIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	result, err := s.svc.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, result)
}

// POST /api/v1/auth/signout
func (s *Server) signOut(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.SignOut(r.Context(), contextkeys.GetSessionToken(r.Context())); err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}

// GET /api/v1/auth/me
func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	result, err := s.svc.CurrentUser(r.Context(), contextkeys.GetSessionToken(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, result)
}

// GET /api/v1/auth/oidc/login
func (s *Server) oidcLogin(w http.ResponseWriter, r *http.Request) {
	if s.oidc == nil {
		s.writeError(w, r, onboarding.ErrOIDCUnavailable)
		return
	}

	stateBytes := make([]byte, 32)
	if _, err := rand.Read(stateBytes); err != nil {
		s.writeError(w, r, err)
		return
	}
	state := base64.URLEncoding.EncodeToString(stateBytes)

	http.SetCookie(w, &http.Cookie{
		Name:     oidcStateCookie,
		Value:    state,
		Path:     "/api/v1/auth/oidc",
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   600, // 10 minutes
	})
	http.Redirect(w, r, s.oidc.AuthCodeURL(state), http.StatusFound)
}

// GET /api/v1/auth/oidc/callback
func (s *Server) oidcCallback(w http.ResponseWriter, r *http.Request) {
	if s.oidc == nil {
		s.writeError(w, r, onboarding.ErrOIDCUnavailable)
		return
	}

	stateCookie, err := r.Cookie(oidcStateCookie)
	if err != nil {
		httputil.WriteBadRequest(w, "missing state cookie")
		return
	}
	if r.URL.Query().Get("state") != stateCookie.Value {
		httputil.WriteBadRequest(w, "invalid state parameter")
		return
	}
	http.SetCookie(w, &http.Cookie{Name: oidcStateCookie, MaxAge: -1, Path: "/api/v1/auth/oidc"})

	external, err := s.oidc.Exchange(r.Context(), r.URL.Query().Get("code"))
	if err != nil {
		s.logger.WithError(err).Warn("OIDC exchange failed")
		httputil.WriteUnauthorized(w, "authentication failed")
		return
	}

	result, err := s.svc.SignInOIDC(r.Context(), external)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, result)
}
