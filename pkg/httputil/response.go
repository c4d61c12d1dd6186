package httputil

import (
	"encoding/json"
	"net/http"

	"github.com/geoguard/geoguard/pkg/apperr"
)

// ErrorResponse is the body of every error answer
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

var kindStatus = map[apperr.Kind]int{
	apperr.KindInvalid:         http.StatusBadRequest,
	apperr.KindUnauthenticated: http.StatusUnauthorized,
	apperr.KindForbidden:       http.StatusForbidden,
	apperr.KindNotFound:        http.StatusNotFound,
	apperr.KindConflict:        http.StatusConflict,
	apperr.KindExpired:         http.StatusGone,
	apperr.KindExhausted:       http.StatusUnprocessableEntity,
}

// StatusFor maps an apperr kind to its HTTP status; unknown kinds are 500
func StatusFor(kind apperr.Kind) int {
	if status, ok := kindStatus[kind]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// WriteJSON answers status with data encoded as JSON
func WriteJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

func WriteSuccess(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusOK, data)
}

func WriteCreated(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusCreated, data)
}

func WriteNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// WriteErrorMessage answers status with message and no code
func WriteErrorMessage(w http.ResponseWriter, status int, message string) {
	_ = WriteJSON(w, status, ErrorResponse{Error: message})
}

func WriteBadRequest(w http.ResponseWriter, message string) {
	_ = WriteJSON(w, http.StatusBadRequest, ErrorResponse{Error: message, Code: "bad_request"})
}

func WriteUnauthorized(w http.ResponseWriter, message string) {
	_ = WriteJSON(w, http.StatusUnauthorized, ErrorResponse{Error: message, Code: "unauthenticated"})
}

func WriteForbidden(w http.ResponseWriter, message string) {
	_ = WriteJSON(w, http.StatusForbidden, ErrorResponse{Error: message, Code: "forbidden"})
}

// WriteAppError answers with err's kind, message and code when err wraps an
// *apperr.Error and reports true. Anything else becomes an opaque 500 and
// reports false so the caller can log it.
func WriteAppError(w http.ResponseWriter, err error) bool {
	appErr, ok := apperr.As(err)
	if !ok {
		WriteErrorMessage(w, http.StatusInternalServerError, "internal server error")
		return false
	}
	_ = WriteJSON(w, StatusFor(appErr.Kind), ErrorResponse{Error: appErr.Message, Code: appErr.Code})
	return true
}
