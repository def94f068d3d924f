package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/klasika/klasika-backend/internal/middleware"
	"github.com/klasika/klasika-backend/internal/session"
	ws "github.com/klasika/klasika-backend/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler runs the exam-taking stream: one attempt controller per
// connection, pushing hydration, ticks, and the final result while the read
// loop feeds student actions in.
type WSHandler struct {
	store    session.Store
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(store session.Store, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		store:    store,
		log:      log.With().Str("component", "ws_handler").Logger(),
		upgrader: buildUpgrader(allowedOrigins),
	}
}

// ExamWebSocketStream godoc
// WS /ws/v1/student/exams/:exam_id/stream
// Upgrades to WebSocket and starts (or resumes) the attempt immediately:
// the first event the client sees is either the hydrated paper or the
// stored result.
func (h *WSHandler) ExamWebSocketStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid exam ID"})
		return
	}

	raw, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	conn := ws.NewConn(raw)
	defer conn.Close()

	wsLog := h.log.With().
		Int("student_id", claims.UserID).
		Str("exam_id", examID.String()).
		Logger()

	ctrl := session.New(h.store, wsLog, func(e session.Event) {
		if err := conn.WriteEvent(mapEvent(e.Type), e.Data); err != nil {
			wsLog.Debug().Err(err).Msg("Event write failed")
		}
	})
	defer ctrl.Close()

	if err := ctrl.Begin(c.Request.Context(), examID, claims.UserID, claims.ClassID); err != nil {
		wsLog.Warn().Err(err).Msg("Attempt start failed")
		conn.WriteError(err.Error())
		return
	}

	wsLog.Info().Msg("Student connected")

	for {
		var msg ws.AnswerRequest
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			return
		}

		switch msg.Action {
		case ws.ActionAnswer:
			h.handleAnswer(conn, ctrl, &msg)
		case ws.ActionSubmit:
			if _, err := ctrl.RequestSubmit(); err != nil {
				conn.WriteError(err.Error())
			}
		case ws.ActionConfirm:
			// The result (or fault) event comes from the controller.
			if err := ctrl.ConfirmSubmit(context.Background()); err != nil {
				conn.WriteError(err.Error())
			}
		case ws.ActionCancel:
			if err := ctrl.CancelSubmit(); err != nil {
				conn.WriteError(err.Error())
			}
		case ws.ActionPing:
			conn.WriteTyped(ws.PongResponse{Event: ws.EventPong})
		default:
			wsLog.Warn().Str("action", string(msg.Action)).Msg("Unknown action")
			conn.WriteError("unknown action: " + string(msg.Action))
		}
	}
}

// handleAnswer records one selection. A persistence failure is reported as
// a notice, not an error: the selection is held locally and reconciled at
// submit time, so the client keeps going.
func (h *WSHandler) handleAnswer(conn *ws.Conn, ctrl *session.Controller, msg *ws.AnswerRequest) {
	questionID, err := uuid.Parse(msg.QuestionID)
	if err != nil {
		conn.WriteError("invalid question_id format")
		return
	}

	if err := ctrl.Select(context.Background(), questionID, msg.Option); err != nil {
		if errors.Is(err, session.ErrAnswerPersist) {
			conn.WriteEvent(ws.EventNotice, gin.H{"message": "selection held, storage is catching up"})
			return
		}
		conn.WriteError(err.Error())
		return
	}

	conn.WriteTyped(ws.SavedResponse{
		Event:      ws.EventSaved,
		QuestionID: msg.QuestionID,
		Option:     msg.Option,
	})
}

func mapEvent(t session.EventType) ws.Event {
	switch t {
	case session.EventHydrated:
		return ws.EventHydrated
	case session.EventTick:
		return ws.EventTick
	case session.EventConfirm:
		return ws.EventConfirm
	case session.EventResult:
		return ws.EventResult
	case session.EventFault:
		return ws.EventNotice
	default:
		return ws.EventNotice
	}
}
