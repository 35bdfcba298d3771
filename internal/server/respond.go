package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/QTMarketing/cps-sub000/internal/auth"
	"github.com/QTMarketing/cps-sub000/internal/common"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErrorCode(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}

// writeError maps domain sentinels to HTTP outcomes. Anything unrecognized is
// a 500 with a generic body so internals never leak to the client.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, common.ErrNotFound):
		writeErrorCode(w, http.StatusNotFound, "not_found")
	case errors.Is(err, common.ErrInvalidInput):
		writeErrorCode(w, http.StatusBadRequest, "invalid_input")
	case errors.Is(err, common.ErrInvalidCredential):
		writeErrorCode(w, http.StatusUnauthorized, "invalid_credentials")
	case errors.Is(err, common.ErrUnauthenticated), errors.Is(err, common.ErrInvalidToken), errors.Is(err, common.ErrTokenExpired):
		writeErrorCode(w, http.StatusUnauthorized, "unauthenticated")
	case errors.Is(err, common.ErrForbidden):
		writeErrorCode(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, common.ErrReAuthRequired):
		auth.WriteReAuthRequired(w)
	default:
		writeErrorCode(w, http.StatusInternalServerError, "internal")
	}
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return common.ErrInvalidInput
	}
	return nil
}
