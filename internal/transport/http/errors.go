package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"timed-quiz-service/internal/domain"
)

type errorResponse struct {
	Error string `json:"error"`
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUnauthorized), errors.Is(err, domain.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrUserNotFound),
		errors.Is(err, domain.ErrQuestionNotFound),
		errors.Is(err, domain.ErrResultNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrUsernameTaken),
		errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrQuizNotActive):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// respondError maps a use-case error to its status. Internal errors are logged and
// answered with a generic message.
func respondError(c *gin.Context, logger *zap.Logger, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		c.AbortWithStatusJSON(status, errorResponse{Error: "internal server error"})
		return
	}
	c.AbortWithStatusJSON(status, errorResponse{Error: err.Error()})
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{Error: msg})
}
