package rest

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	apperrors "uerp-backend/pkg/errors"
)

func respond(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		json.NewEncoder(w).Encode(body)
	}
}

// respondError maps an error to its HTTP status with a {"message"} body.
// Wrapped causes stay in the log, not on the wire.
func respondError(w http.ResponseWriter, logger *zap.Logger, err error) {
	status := apperrors.StatusOf(err)
	message := err.Error()

	var app *apperrors.AppError
	if errors.As(err, &app) {
		message = app.Message
	}
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", zap.Error(err))
	}
	respond(w, status, map[string]string{"message": message})
}
