// Package api exposes the onboarding service over HTTP.
//
// All routes live under /api/v1 and speak JSON. Errors are returned as
//
//	{"error": "human readable message", "code": "machine_code"}
//
// with the status derived from the error kind (see httputil.StatusFor).
//
// # Public routes
//
//	POST /auth/register-organization
//	POST /auth/signup
//	POST /auth/signin
//	GET  /auth/oidc/login
//	GET  /auth/oidc/callback
//	POST /licenses/validate
//	POST /invitations/validate
//
// # Authenticated routes
//
// Callers send "Authorization: Bearer <session token>". Routes with a
// {tenant_id} segment are limited to the caller's own tenant unless the
// caller is a super admin.
//
//	POST   /auth/signout
//	GET    /auth/me
//	POST   /licenses                            super admin
//	GET    /licenses                            super admin
//	POST   /licenses/{id}/revoke                super admin
//	GET    /tenants                             super admin
//	GET    /tenants/{tenant_id}
//	PATCH  /tenants/{tenant_id}/settings
//	PUT    /tenants/{tenant_id}/logo
//	POST   /tenants/{tenant_id}/deactivate      super admin
//	POST   /tenants/{tenant_id}/reactivate      super admin
//	POST   /tenants/{tenant_id}/transfer-ownership
//	POST   /invitations                         invite_users
//	GET    /invitations                         invite_users
//	DELETE /invitations/{id}                    invite_users
//	GET    /users                               view_users
//	GET    /users/{id}
//	PATCH  /users/{id}                          manage_users
//	PATCH  /users/me/profile
//	GET    /audit
//
// Health and metrics are served on a separate port by cmd/geoguard.
package api
