package handlers

import (
	"net/http"

	apperrors "github.com/gstcheck/gstcheck/internal/errors"
)

var httpErrorResponder = apperrors.RespondWithError

// SetHTTPErrorResponder lets the server inject its central error handler.
// Passing nil restores the default.
func SetHTTPErrorResponder(responder func(http.ResponseWriter, *http.Request, error)) {
	if responder == nil {
		responder = apperrors.RespondWithError
	}
	httpErrorResponder = responder
}

func respondWithError(w http.ResponseWriter, r *http.Request, err error) {
	httpErrorResponder(w, r, err)
}
