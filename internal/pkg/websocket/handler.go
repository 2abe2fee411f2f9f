package websocket

import (
	"context"

	"github.com/academia/gradebot/internal/middleware"
	"github.com/academia/gradebot/internal/pkg/apperrors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Handler for WebSocket connections
type Handler struct {
	hub      *Hub
	messages *MessageHandler
	upgrader websocket.Upgrader
	// ctx bounds the lifetime of every connection
	ctx    context.Context
	logger zerolog.Logger
}

// NewHandler creates a new WebSocket handler
func NewHandler(ctx context.Context, hub *Hub, messages *MessageHandler, allowedOrigins []string, logger zerolog.Logger) *Handler {
	return &Handler{
		hub:      hub,
		messages: messages,
		upgrader: newUpgrader(allowedOrigins),
		ctx:      ctx,
		logger:   logger,
	}
}

// HandleConnection upgrades an authenticated request. The socket carries
// assistant chat and grade change notifications.
func (h *Handler) HandleConnection(c *gin.Context) {
	caller, ok := middleware.CallerFrom(c)
	if !ok {
		middleware.HandleAPIError(c, apperrors.NewCustomError(apperrors.ErrTokenInvalid, "Authentication required"))
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		h.logger.Warn().Err(err).Str("enrollment", caller.Enrollment).Msg("Failed to upgrade connection to WebSocket")
		return
	}

	client := newClient(h.hub, conn, caller, h.messages, h.logger)
	if !h.hub.Register(client) {
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump(h.ctx)

	h.logger.Info().
		Str("enrollment", caller.Enrollment).
		Str("remoteAddr", conn.RemoteAddr().String()).
		Msg("WebSocket connection established")
}
