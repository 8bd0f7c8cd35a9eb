// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Bread Contributors

package web

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/breadsocial/bread/internal/auth"
	"github.com/breadsocial/bread/internal/post"
	"github.com/breadsocial/bread/pkg/errutil"
)

// Error codes returned in the JSON error body.
const (
	codeValidation   = "VALIDATION_FAILED"
	codeNameTaken    = "NAME_TAKEN"
	codeUnauthorized = "UNAUTHORIZED"
	codeNotFound     = "NOT_FOUND"
	codeRateLimited  = "RATE_LIMITED"
	codeInternal     = "INTERNAL_ERROR"
)

// unauthorizedMessage is shared by every credential, session and ownership
// failure so responses do not tell them apart.
const unauthorizedMessage = "Invalid or missing API token!"

// ErrorBody is the JSON body of every error response.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck // client may disconnect
	json.NewEncoder(w).Encode(body)
}

func writeJSONError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorBody{Code: code, Message: message})
}

// writeServiceError maps a service error onto a status code and body.
// Failures of the store or hasher are logged and reported as 500 without
// detail.
func writeServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, auth.ErrValidation), errors.Is(err, post.ErrValidation):
		if errutil.Code(err) == "USER_NAME_TAKEN" {
			writeJSONError(w, http.StatusBadRequest, codeNameTaken, "That username is already taken.")
			return
		}
		writeJSONError(w, http.StatusBadRequest, codeValidation, "The request is missing a required field.")
	case errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrUnauthorized),
		errors.Is(err, post.ErrForbidden):
		logger.DebugContext(r.Context(), "request rejected", errutil.Attrs(err)...)
		writeJSONError(w, http.StatusUnauthorized, codeUnauthorized, unauthorizedMessage)
	case errors.Is(err, auth.ErrNotFound), errors.Is(err, post.ErrNotFound):
		writeJSONError(w, http.StatusNotFound, codeNotFound, "Nothing was found.")
	default:
		errutil.LogErrorContext(r.Context(), logger, "request failed", err)
		writeJSONError(w, http.StatusInternalServerError, codeInternal, "Something went wrong.")
	}
}
