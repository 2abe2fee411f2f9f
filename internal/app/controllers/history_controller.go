package controllers

import (
	"net/http"

	"github.com/academia/gradebot/internal/app/models/dto"
	"github.com/academia/gradebot/internal/app/services"
	"github.com/academia/gradebot/internal/middleware"
	"github.com/gin-gonic/gin"
)

// HistoryController serves academic histories.
type HistoryController struct {
	history services.HistoryService
}

// NewHistoryController creates a new HistoryController
func NewHistoryController(history services.HistoryService) *HistoryController {
	return &HistoryController{history: history}
}

// GetHistory handles GET /students/:enrollment/history
func (c *HistoryController) GetHistory(ctx *gin.Context) {
	history, err := c.history.GetHistory(ctx.Request.Context(), ctx.Param("enrollment"))
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(history, ""))
}

// GetMyHistory handles GET /me/history for the authenticated caller.
func (c *HistoryController) GetMyHistory(ctx *gin.Context) {
	caller, ok := middleware.CallerFrom(ctx)
	if !ok {
		ctx.AbortWithStatus(http.StatusUnauthorized)
		return
	}
	history, err := c.history.GetHistory(ctx.Request.Context(), caller.Enrollment)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(history, ""))
}
