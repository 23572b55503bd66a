package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/cuckooeats/backoffice/internal/order"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Error("failed to encode JSON response", zap.Error(err))
	}
}

// writeOrderError maps order errors onto HTTP statuses.
func writeOrderError(w http.ResponseWriter, logger *zap.Logger, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, order.ErrInvalidStatus):
		status = http.StatusBadRequest
	case errors.Is(err, order.ErrNotFound):
		status = http.StatusNotFound
	default:
		switch order.KindOf(err) {
		case order.KindTransitionRejected:
			status = http.StatusConflict
		case order.KindTransitionTransport, order.KindFetch, order.KindSubscription:
			status = http.StatusBadGateway
		}
	}

	if status >= 500 {
		logger.Error("order request failed", zap.String("kind", order.KindOf(err).String()), zap.Error(err))
	}
	writeJSON(w, status, map[string]string{"error": order.UserMessage(err)})
}

// WriteJSON is writeJSON for other packages' handlers.
func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	writeJSON(w, status, v)
}
