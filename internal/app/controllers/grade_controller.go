package controllers

import (
	"net/http"
	"strconv"

	"github.com/academia/gradebot/internal/app/models/dto"
	"github.com/academia/gradebot/internal/app/services"
	"github.com/academia/gradebot/internal/middleware"
	"github.com/academia/gradebot/internal/pkg/apperrors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// GradeController exposes the grade mutations to instructors.
type GradeController struct {
	grades services.GradeService
	recalc services.RecalculationService
	logger zerolog.Logger
}

// NewGradeController creates a new GradeController
func NewGradeController(grades services.GradeService, recalc services.RecalculationService, logger zerolog.Logger) *GradeController {
	return &GradeController{
		grades: grades,
		recalc: recalc,
		logger: logger,
	}
}

// PostPartial handles POST /students/:enrollment/courses/:course/partials
func (c *GradeController) PostPartial(ctx *gin.Context) {
	var req dto.PostPartialRequest
	if !middleware.BindJSON(ctx, &req) {
		return
	}

	res, err := c.grades.PostPartial(ctx.Request.Context(), ctx.Param("enrollment"), ctx.Param("course"), req.Partial, *req.Score)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	msg := "Partial score saved, average pending"
	if !res.Pending {
		msg = "Partial score saved, average updated"
	}
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(res, msg))
}

// ClearPartial handles DELETE /students/:enrollment/courses/:course/partials/:partial
func (c *GradeController) ClearPartial(ctx *gin.Context) {
	res, err := c.grades.ClearPartial(ctx.Request.Context(), ctx.Param("enrollment"), ctx.Param("course"), ctx.Param("partial"))
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(res, "Partial score cleared"))
}

// PostProjectScore handles PUT /students/:enrollment/courses/:course/project
func (c *GradeController) PostProjectScore(ctx *gin.Context) {
	var req dto.PostProjectScoreRequest
	if !middleware.BindJSON(ctx, &req) {
		return
	}

	res, err := c.grades.PostProjectScore(ctx.Request.Context(), ctx.Param("enrollment"), ctx.Param("course"), *req.Score)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(res, "Project score saved"))
}

// PostAbsences handles PUT /students/:enrollment/courses/:course/absences
func (c *GradeController) PostAbsences(ctx *gin.Context) {
	var req dto.PostAbsencesRequest
	if !middleware.BindJSON(ctx, &req) {
		return
	}

	res, err := c.grades.PostAbsences(ctx.Request.Context(), ctx.Param("enrollment"), ctx.Param("course"), *req.Absences)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(res, "Absences saved"))
}

// SetCompletion handles PUT /students/:enrollment/courses/:course/completion
func (c *GradeController) SetCompletion(ctx *gin.Context) {
	var req dto.SetCompletionRequest
	if !middleware.BindJSON(ctx, &req) {
		return
	}

	res, err := c.grades.SetCompletion(ctx.Request.Context(), ctx.Param("enrollment"), ctx.Param("course"), *req.Completed)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(res, "Completion saved"))
}

// RecomputeCourse handles POST /students/:enrollment/courses/:course/recompute
func (c *GradeController) RecomputeCourse(ctx *gin.Context) {
	enrollment, course := ctx.Param("enrollment"), ctx.Param("course")
	average, err := c.recalc.RecomputeOne(ctx.Request.Context(), enrollment, course)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(dto.RecomputeResult{
		Enrollment: enrollment,
		Course:     course,
		Average:    average,
		Recomputed: 1,
	}, "Average recomputed"))
}

// RecomputeSemester handles POST /students/:enrollment/semesters/:semester/recompute
func (c *GradeController) RecomputeSemester(ctx *gin.Context) {
	semester, err := strconv.Atoi(ctx.Param("semester"))
	if err != nil || semester < 1 {
		middleware.HandleAPIError(ctx, apperrors.InvalidArgument(nil, "Semester must be a positive number"))
		return
	}

	enrollment := ctx.Param("enrollment")
	count, err := c.recalc.RecomputeSemester(ctx.Request.Context(), enrollment, semester)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	c.logger.Info().Str("enrollment", enrollment).Int("semester", semester).Int("recomputed", count).Msg("Manual semester recompute")
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(dto.RecomputeResult{
		Enrollment: enrollment,
		Semester:   semester,
		Recomputed: count,
	}, "Semester recomputed"))
}
