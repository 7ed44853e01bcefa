package http

import (
	"errors"
	"net/http"

	"competition-service/internal/app"
	"competition-service/internal/domain"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handler exposes CompetitionService over REST.
type Handler struct {
	service *app.CompetitionService
	logger  *zap.Logger
}

func NewHandler(service *app.CompetitionService, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Config(c *gin.Context) {
	success(c, h.service.WindowConfig())
}

func (h *Handler) Status(c *gin.Context) {
	status, err := h.service.Status(c.Request.Context(), identityFrom(c).UserID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	success(c, status)
}

func (h *Handler) Start(c *gin.Context) {
	joined, err := h.service.Join(c.Request.Context(), identityFrom(c).UserID)
	if errors.Is(err, domain.ErrAlreadyActive) && joined.ParticipationID != "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, Response{
			Code:    http.StatusBadRequest,
			Message: err.Error(),
			Data:    joined,
		})
		return
	}
	if err != nil {
		h.respondError(c, err)
		return
	}
	success(c, joined)
}

func (h *Handler) Progress(c *gin.Context) {
	progress, err := h.service.Progress(c.Request.Context(), identityFrom(c).UserID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	success(c, progress)
}

func (h *Handler) Submit(c *gin.Context) {
	var form submitForm
	if err := c.ShouldBindJSON(&form); err != nil {
		fail(c, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := form.Validate(); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}

	entry, err := h.service.Submit(c.Request.Context(), identityFrom(c).UserID, c.Param("questionId"), form.Answer)
	if err != nil {
		h.respondError(c, err)
		return
	}
	success(c, entry)
}

func (h *Handler) LogActivity(c *gin.Context) {
	var form activityForm
	if err := c.ShouldBindJSON(&form); err != nil {
		fail(c, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := form.Validate(); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}

	ack, err := h.service.LogActivity(c.Request.Context(), identityFrom(c).UserID, app.ActivityReport{
		Type:         form.ActivityType,
		Details:      form.Details,
		WarningCount: form.WarningCount,
		ReportedAt:   form.Timestamp,
		IPAddress:    c.ClientIP(),
		UserAgent:    c.Request.UserAgent(),
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	success(c, ack)
}

func (h *Handler) Finish(c *gin.Context) {
	result, err := h.service.Finish(c.Request.Context(), identityFrom(c).UserID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	success(c, result)
}

func (h *Handler) Results(c *gin.Context) {
	results, err := h.service.Results(c.Request.Context(), identityFrom(c).UserID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	success(c, results)
}

func (h *Handler) Reset(c *gin.Context) {
	if err := h.service.Reset(c.Request.Context(), identityFrom(c)); err != nil {
		h.respondError(c, err)
		return
	}
	success(c, gin.H{"acknowledged": true})
}

func (h *Handler) Disqualify(c *gin.Context) {
	var form disqualifyForm
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&form); err != nil {
			fail(c, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	if err := form.Validate(); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}

	p, err := h.service.Disqualify(c.Request.Context(), identityFrom(c), c.Param("userId"), form.Reason)
	if err != nil {
		h.respondError(c, err)
		return
	}
	success(c, p)
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
