package adaptor

import (
	"context"
	"errors"
	"net/http"

	"cinema-ticketing/pkg/apperror"
	"cinema-ticketing/pkg/utils"

	"go.uber.org/zap"
)

// errorDetail carries the machine-readable kind next to the message.
type errorDetail struct {
	Kind apperror.Kind `json:"kind"`
	Seat string        `json:"seat,omitempty"`
}

// handleServiceError maps an error kind to its HTTP status.
func handleServiceError(w http.ResponseWriter, log *zap.Logger, err error, operation string) {
	kind := apperror.KindOf(err)
	detail := errorDetail{Kind: kind, Seat: apperror.SeatOf(err)}
	fields := []zap.Field{
		zap.Error(err),
		zap.String("operation", operation),
		zap.String("kind", string(kind)),
	}

	switch kind {
	case apperror.KindValidation:
		log.Warn(operation+" validation failed", fields...)
		utils.ResponseBadRequest(w, err.Error(), detail)

	case apperror.KindNotFound:
		log.Warn(operation+" failed - not found", fields...)
		utils.ResponseNotFound(w, err.Error(), detail)

	case apperror.KindSeatConflict, apperror.KindInsufficientCapacity, apperror.KindScheduleInactive:
		log.Info(operation+" rejected", fields...)
		utils.ResponseConflict(w, err.Error(), detail)

	case apperror.KindSchedulingBusy:
		log.Warn(operation+" failed - schedule busy", fields...)
		w.Header().Set("Retry-After", "1")
		utils.ResponseServiceUnavailable(w, err.Error())

	default:
		if errors.Is(err, context.Canceled) {
			log.Info(operation+" cancelled by client", fields...)
			return
		}
		log.Error("Failed to "+operation, fields...)
		utils.ResponseInternalError(w, "Internal server error")
	}
}
