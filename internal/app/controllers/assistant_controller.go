package controllers

import (
	"net/http"

	"github.com/academia/gradebot/internal/app/models/dto"
	"github.com/academia/gradebot/internal/app/services"
	"github.com/academia/gradebot/internal/middleware"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// AssistantController accepts free-text messages for the assistant.
type AssistantController struct {
	assistant services.AssistantService
	logger    zerolog.Logger
}

// NewAssistantController creates a new AssistantController
func NewAssistantController(assistant services.AssistantService, logger zerolog.Logger) *AssistantController {
	return &AssistantController{
		assistant: assistant,
		logger:    logger,
	}
}

// PostMessage handles POST /assistant/messages
func (c *AssistantController) PostMessage(ctx *gin.Context) {
	caller, ok := middleware.CallerFrom(ctx)
	if !ok {
		ctx.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	var req dto.AssistantMessageRequest
	if !middleware.BindJSON(ctx, &req) {
		return
	}

	reply, err := c.assistant.HandleMessage(ctx.Request.Context(), caller, req.Message)
	if err != nil {
		c.logger.Warn().Err(err).Str("enrollment", caller.Enrollment).Msg("Assistant message failed")
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(reply, ""))
}
