// Package httputil holds the JSON request and response helpers and the
// generic middleware shared by the API server.
//
// Handlers answer domain errors with WriteAppError, which maps apperr kinds
// to 400, 401, 403, 404, 409, 410 and 422 and hides everything else
// behind an opaque 500:
//
//	var req SignUpRequest
//	if !httputil.ParseJSONOrError(w, r, &req) {
//		return
//	}
//	resp, err := svc.SignUp(ctx, req)
//	if err != nil {
//		httputil.WriteAppError(w, err)
//		return
//	}
//	httputil.WriteCreated(w, resp)
//
// The server wraps its router with
//
//	httputil.Chain(
//		httputil.RequestIDMiddleware,
//		httputil.LoggingMiddleware(logger),
//		httputil.MaxBytesMiddleware(1 << 20),
//	)(router)
package httputil
