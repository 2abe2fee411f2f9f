package middleware

import (
	"errors"
	"net/http"

	"github.com/academia/gradebot/internal/app/models/dto"
	"github.com/academia/gradebot/internal/pkg/apperrors"
	"github.com/academia/gradebot/internal/pkg/validation"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// BindJSON binds the request body into obj. On failure it writes a 400 with
// one entry per failed field and returns false.
func BindJSON(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		HandleBindingError(c, err)
		return false
	}
	return true
}

// HandleBindingError writes a validation failure response for err.
func HandleBindingError(c *gin.Context, err error) {
	detail := dto.NewErrorDetail(dto.ErrorCodeValidationFailed, "Invalid request format")
	detail.Kind = apperrors.KindInvalidArgument

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := dto.NewValidationErrors()
		for _, fe := range verrs {
			fields.AddError(fe.Field(), validation.FieldMessage(fe))
		}
		detail.Message = "Validation failed"
		detail = detail.WithDetails(fields.Errors)
	} else {
		detail = detail.WithDetails("Request body must be valid JSON")
	}

	c.AbortWithStatusJSON(http.StatusBadRequest, dto.NewErrorResponse(detail))
}
