package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/xraph/loanbook"
)

// writeError maps a ledger error onto a status code. Internal failures are
// logged and answered with a generic body.
func (h *Handler) writeError(c *gin.Context, err error) {
	status, message := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed",
			slog.String("method", c.Request.Method),
			slog.String("path", c.FullPath()),
			slog.String("error", err.Error()),
		)
	}
	c.JSON(status, gin.H{"error": message})
}

func statusFor(err error) (int, string) {
	var ve loanbook.ValidationError
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest, ve.Field + ": " + ve.Message
	case errors.Is(err, loanbook.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case loanbook.IsNotFound(err):
		return http.StatusNotFound, "loan not found"
	case errors.Is(err, loanbook.ErrLoanSettled):
		return http.StatusBadRequest, "loan is already settled and accepts no further payments"
	case errors.Is(err, loanbook.ErrEmptyUpdate):
		return http.StatusBadRequest, "no fields to update"
	case errors.Is(err, loanbook.ErrStatusMismatch):
		return http.StatusBadRequest, "status does not match the remaining balance"
	case loanbook.IsInvalidInput(err):
		return http.StatusBadRequest, "invalid input"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}
