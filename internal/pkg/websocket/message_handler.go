package websocket

import (
	"context"
	"encoding/json"
	"time"

	"github.com/academia/gradebot/internal/app/models/dto"
	"github.com/academia/gradebot/internal/app/services"
	"github.com/academia/gradebot/internal/pkg/apperrors"
	"github.com/rs/zerolog"
)

// MessageHandler answers chat frames through the assistant.
type MessageHandler struct {
	assistant services.AssistantService
	logger    zerolog.Logger
}

// NewMessageHandler creates a new MessageHandler
func NewMessageHandler(assistant services.AssistantService, logger zerolog.Logger) *MessageHandler {
	return &MessageHandler{
		assistant: assistant,
		logger:    logger,
	}
}

// Handle decodes one inbound frame and returns the frame to send back.
func (h *MessageHandler) Handle(ctx context.Context, caller services.Caller, raw []byte) Envelope {
	var in Envelope
	if err := json.Unmarshal(raw, &in); err != nil {
		return errorEnvelope("", apperrors.InvalidArgument(nil, "Frames must be JSON objects"))
	}
	if in.Type != "" && in.Type != TypeMessage {
		return errorEnvelope(in.ID, apperrors.InvalidArgument(nil, "Unsupported frame type "+in.Type))
	}

	reply, err := h.assistant.HandleMessage(ctx, caller, in.Content)
	if err != nil {
		h.logger.Debug().Err(err).Str("enrollment", caller.Enrollment).Msg("Assistant message failed")
		return errorEnvelope(in.ID, err)
	}
	return Envelope{Type: TypeReply, ID: in.ID, Reply: reply, Timestamp: time.Now().UTC()}
}

func errorEnvelope(id string, err error) Envelope {
	return Envelope{Type: TypeError, ID: id, Error: dto.NewErrorDetailFromError(err), Timestamp: time.Now().UTC()}
}
