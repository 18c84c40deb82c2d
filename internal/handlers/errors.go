package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/dimitrije/teamforge/internal/services"
	"github.com/dimitrije/teamforge/pkg/dto"
	"github.com/m1z23r/drift/pkg/drift"
)

func statusFor(kind services.Kind) int {
	switch kind {
	case services.KindValidation:
		return http.StatusBadRequest
	case services.KindForbidden:
		return http.StatusForbidden
	case services.KindNotFound:
		return http.StatusNotFound
	case services.KindConflict:
		return http.StatusConflict
	case services.KindContention, services.KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes the result code carried by err. Anything without one
// is reported as an opaque internal error.
func respondError(c *drift.Context, logger *slog.Logger, op string, err error) {
	var re *services.ResultError
	if !errors.As(err, &re) {
		logger.Error(op+" failed", "error", err)
		c.InternalServerError("internal error")
		return
	}

	status := statusFor(re.Kind)
	if status >= http.StatusInternalServerError || services.Degraded(err) {
		logger.Warn(op+" failed", "code", re.Code, "degraded", services.Degraded(err), "error", err)
	}

	_ = c.JSON(status, dto.ErrorResponse{
		Code:      string(re.Code),
		Message:   re.Message,
		Retryable: services.Retryable(err),
		Degraded:  services.Degraded(err),
	})
}
