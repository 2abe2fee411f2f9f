package routes

import (
	"net/http"

	"github.com/academia/gradebot/internal/app/controllers"
	"github.com/academia/gradebot/internal/app/models"
	"github.com/academia/gradebot/internal/app/models/dto"
	"github.com/academia/gradebot/internal/middleware"
	"github.com/gin-gonic/gin"
)

// SetupRouter configures all application routes. wsHandler may be nil when
// the assistant socket is disabled.
func SetupRouter(
	router *gin.Engine,
	authController *controllers.AuthController,
	gradeController *controllers.GradeController,
	historyController *controllers.HistoryController,
	assistantController *controllers.AssistantController,
	wsHandler gin.HandlerFunc,
	authMiddleware *middleware.AuthMiddleware,
) {
	// Health check endpoint (public)
	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, dto.NewSuccessResponse(gin.H{"status": "ok"}, "pong"))
	})

	// API version group
	v1 := router.Group("/api/v1")

	// --- Public Auth routes ---
	auth := v1.Group("/auth")
	{
		auth.POST("/login", authController.Login)
	}

	// --- Authenticated Routes Group ---
	authenticated := v1.Group("")
	authenticated.Use(authMiddleware.JWTAuth())
	{
		authenticated.GET("/me/history", historyController.GetMyHistory)

		students := authenticated.Group("/students/:enrollment")
		{
			// Students may read only their own history
			students.GET("/history", authMiddleware.SelfOrInstructor("enrollment"), historyController.GetHistory)

			instructorOnly := students.Group("")
			instructorOnly.Use(authMiddleware.RoleRequired(models.RoleInstructor))
			{
				courses := instructorOnly.Group("/courses/:course")
				courses.POST("/partials", gradeController.PostPartial)
				courses.DELETE("/partials/:partial", gradeController.ClearPartial)
				courses.PUT("/project", gradeController.PostProjectScore)
				courses.PUT("/absences", gradeController.PostAbsences)
				courses.PUT("/completion", gradeController.SetCompletion)
				courses.POST("/recompute", gradeController.RecomputeCourse)

				instructorOnly.POST("/semesters/:semester/recompute", gradeController.RecomputeSemester)
			}
		}

		if assistantController != nil {
			assistant := authenticated.Group("/assistant")
			assistant.POST("/messages", assistantController.PostMessage)
			if wsHandler != nil {
				assistant.GET("/ws", wsHandler)
			}
		}
	}
}
