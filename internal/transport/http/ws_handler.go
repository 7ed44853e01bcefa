package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"competition-service/internal/app"
	"competition-service/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// WSHandler serves the live session socket: a progress frame on connect and
// every interval, plus answer, activity and finish commands.
type WSHandler struct {
	service  *app.CompetitionService
	logger   *zap.Logger
	interval time.Duration
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.CompetitionService, logger *zap.Logger, interval time.Duration) *WSHandler {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WSHandler{
		service:  service,
		logger:   logger,
		interval: interval,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type answerPayload struct {
	QuestionID string `json:"questionId"`
	Answer     string `json:"answer"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

func errorMessage(err error) outboundMessage[any] {
	return outboundMessage[any]{Type: "error", Payload: errorPayload{Message: messageFor(err)}}
}

// Serve upgrades an authenticated request. The caller must already hold an
// active or finished participation; joining stays a REST operation.
func (h *WSHandler) Serve(c *gin.Context) {
	identity := identityFrom(c)
	ctx := c.Request.Context()

	status, err := h.service.Status(ctx, identity.UserID)
	if err != nil {
		fail(c, statusFor(err), messageFor(err))
		return
	}
	if status.Status == domain.StatusNotStarted {
		fail(c, http.StatusNotFound, domain.ErrNoActiveSession.Error())
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	tickerDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				h.logger.Debug("ws write error", zap.Error(err))
				return
			}
		}
	}()

	go func() {
		defer close(tickerDone)
		ticker := time.NewTicker(h.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				msg, ok := h.progress(ctx, identity.UserID)
				if !ok {
					continue
				}
				select {
				case send <- msg:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	if msg, ok := h.progress(ctx, identity.UserID); ok {
		send <- msg
	}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		send <- h.dispatch(c, identity, inbound)
	}

	close(closeSignals)
	<-tickerDone
	close(send)
	<-writerDone
}

func (h *WSHandler) dispatch(c *gin.Context, identity domain.Identity, inbound inboundMessage) outboundMessage[any] {
	ctx := c.Request.Context()
	switch inbound.Type {
	case "answer":
		var payload answerPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			return outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid answer payload"}}
		}
		entry, err := h.service.Submit(ctx, identity.UserID, payload.QuestionID, payload.Answer)
		if err != nil {
			return errorMessage(err)
		}
		return outboundMessage[any]{Type: "answerResult", Payload: entry}

	case "activity":
		var form activityForm
		if err := json.Unmarshal(inbound.Payload, &form); err != nil {
			return outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid activity payload"}}
		}
		if err := form.Validate(); err != nil {
			return outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
		}
		ack, err := h.service.LogActivity(ctx, identity.UserID, app.ActivityReport{
			Type:         form.ActivityType,
			Details:      form.Details,
			WarningCount: form.WarningCount,
			ReportedAt:   form.Timestamp,
			IPAddress:    c.ClientIP(),
			UserAgent:    c.Request.UserAgent(),
		})
		if err != nil {
			return errorMessage(err)
		}
		return outboundMessage[any]{Type: "activityAck", Payload: ack}

	case "finish":
		result, err := h.service.Finish(ctx, identity.UserID)
		if err != nil {
			return errorMessage(err)
		}
		return outboundMessage[any]{Type: "finished", Payload: result}

	case "progress":
		if msg, ok := h.progress(ctx, identity.UserID); ok {
			return msg
		}
		return outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "progress unavailable"}}

	default:
		return outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "unsupported message type"}}
	}
}

func (h *WSHandler) progress(ctx context.Context, userID string) (outboundMessage[any], bool) {
	progress, err := h.service.Progress(ctx, userID)
	if err != nil {
		h.logger.Warn("ws progress failed", zap.String("user_id", userID), zap.Error(err))
		return outboundMessage[any]{}, false
	}
	return outboundMessage[any]{Type: "progress", Payload: progress}, true
}
