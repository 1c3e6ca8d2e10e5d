package httpx

import (
	"errors"
	"net/http"

	"github.com/billflow-erp/billflow/internal/shared"
)

// Sentinel errors for the HTTP layer.
var (
	// ErrValidation indicates a malformed or invalid request payload.
	ErrValidation = errors.New("validation failed")
)

// RespondError maps domain errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, shared.ErrRunInProgress):
		Problem(w, http.StatusConflict, "Run In Progress", err.Error())
	case errors.Is(err, shared.ErrRecordImmutable):
		Problem(w, http.StatusConflict, "Record Immutable", err.Error())
	case errors.Is(err, ErrValidation):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
