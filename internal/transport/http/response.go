package http

import (
	"errors"
	"net/http"

	"competition-service/internal/domain"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Response is the envelope of every REST reply.
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    http.StatusOK,
		Message: "success",
		Data:    data,
	})
}

func fail(c *gin.Context, code int, message string) {
	c.AbortWithStatusJSON(code, Response{
		Code:    code,
		Message: message,
	})
}

// statusFor maps a domain error to its HTTP status. Unknown errors are 500.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrWindowNotJoinable),
		errors.Is(err, domain.ErrEmptyAnswer),
		errors.Is(err, domain.ErrAlreadyActive),
		errors.Is(err, domain.ErrInvalidActivity):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrAlreadyAttempted):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrNoActiveSession),
		errors.Is(err, domain.ErrQuestionNotFound),
		errors.Is(err, domain.ErrNoParticipationFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrConcurrentUpdate),
		errors.Is(err, domain.ErrSubmissionClosed):
		return http.StatusConflict
	case errors.Is(err, domain.ErrQuestionBankEmpty):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// messageFor returns the client-facing text for err. Server faults never leak
// their underlying message.
func messageFor(err error) string {
	if statusFor(err) == http.StatusInternalServerError {
		return "Internal server error"
	}
	return err.Error()
}

func (h *Handler) respondError(c *gin.Context, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err))
	}
	fail(c, code, messageFor(err))
}
