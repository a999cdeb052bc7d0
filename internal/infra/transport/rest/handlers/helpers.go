package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/reviewkit/engine/internal/domain/usecase"
)

// Коды ошибок каркаса; AuthorizationDenied и StateGuardViolation не смешиваются
// с ValidationFailed, даже когда транспортный статус совпадает.
const (
	codeAuthorizationDenied = "AUTHORIZATION_DENIED"
	codeStateGuardViolation = "STATE_GUARD_VIOLATION"
	codeValidationFailed    = "VALIDATION_FAILED"
	codeMergeNotEligible    = "MERGE_NOT_ELIGIBLE"
	codeNotFound            = "NOT_FOUND"
	codeAlreadyExists       = "ALREADY_EXISTS"
	codeVersionConflict     = "VERSION_CONFLICT"
	codeBadRequest          = "BAD_REQUEST"
	codeInternal            = "INTERNAL"
)

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Error: ErrorBody{Code: code, Message: message}})
}

// writeEngineError отображает таксономию отказов движка на HTTP-статусы.
func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, usecase.ErrAuthorizationDenied):
		writeError(w, http.StatusForbidden, codeAuthorizationDenied, err.Error())
	case errors.Is(err, usecase.ErrStateGuardViolation):
		writeError(w, http.StatusConflict, codeStateGuardViolation, err.Error())
	case errors.Is(err, usecase.ErrValidationFailed):
		writeError(w, http.StatusBadRequest, codeValidationFailed, err.Error())
	case errors.Is(err, usecase.ErrMergeNotEligible):
		writeError(w, http.StatusConflict, codeMergeNotEligible, err.Error())
	case errors.Is(err, usecase.ErrPRNotFound):
		writeError(w, http.StatusNotFound, codeNotFound, err.Error())
	case errors.Is(err, usecase.ErrPRExists):
		writeError(w, http.StatusConflict, codeAlreadyExists, err.Error())
	case errors.Is(err, usecase.ErrVersionConflict):
		writeError(w, http.StatusConflict, codeVersionConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, codeInternal, err.Error())
	}
}

// callerID — идентичность вызывающего, уже разрешённая внешним слоем
// аутентификации и переданная заголовком.
func callerID(r *http.Request) string {
	return r.Header.Get("X-Caller-Id")
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid json body")
		return false
	}
	return true
}
