package server

import (
	"net/http"

	apperrors "github.com/gstcheck/gstcheck/internal/errors"
)

// HandleError renders err as a JSON envelope.
func HandleError(w http.ResponseWriter, r *http.Request, err error) {
	apperrors.RespondWithError(w, r, err)
}
