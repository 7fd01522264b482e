package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/and161185/jdue/internal/errs"
	"github.com/and161185/jdue/internal/session"
	"github.com/and161185/jdue/internal/webauthn"
)

const maxBody = 1 << 20

type errorBody struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors to HTTP statuses. Unknown errors are logged
// and reported without detail.
func writeError(w http.ResponseWriter, log *zap.Logger, err error) {
	var (
		rejected *webauthn.RejectedError
		inactive *webauthn.AccountInactiveError
	)
	switch {
	case errors.As(err, &rejected):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "passkey verification failed", Reason: string(rejected.Reason)})
	case errors.As(err, &inactive):
		writeJSON(w, http.StatusForbidden, errorBody{Error: "This " + inactive.Error() + "."})
	case errors.Is(err, errs.ErrValidation):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
	case errors.Is(err, errs.ErrUnauthorized), errors.Is(err, session.ErrInvalidToken):
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "unauthorized"})
	case errors.Is(err, errs.ErrForbidden):
		writeJSON(w, http.StatusForbidden, errorBody{Error: "forbidden"})
	case errors.Is(err, errs.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: "not found"})
	case errors.Is(err, errs.ErrAlreadyExists):
		writeJSON(w, http.StatusConflict, errorBody{Error: "already exists"})
	case errors.Is(err, errs.ErrRateLimited):
		writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "too many attempts, try again later"})
	default:
		log.Error("request failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}

// decodeJSON reads a bounded JSON body into v. Malformed input is a validation error.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBody))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("validation: malformed body: %v: %w", err, errs.ErrValidation)
	}
	return nil
}
