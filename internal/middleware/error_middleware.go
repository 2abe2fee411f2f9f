package middleware

import (
	"net/http"

	"github.com/academia/gradebot/internal/app/models/dto"
	"github.com/academia/gradebot/internal/pkg/apperrors"
	"github.com/gin-gonic/gin"
)

var kindStatus = map[apperrors.Kind]int{
	apperrors.KindInvalidArgument:    http.StatusBadRequest,
	apperrors.KindNotFound:           http.StatusNotFound,
	apperrors.KindNoRecords:          http.StatusNotFound,
	apperrors.KindUnauthenticated:    http.StatusUnauthorized,
	apperrors.KindPermissionDenied:   http.StatusForbidden,
	apperrors.KindNotApplicable:      http.StatusUnprocessableEntity,
	apperrors.KindStoreUnavailable:   http.StatusServiceUnavailable,
	apperrors.KindServiceUnavailable: http.StatusServiceUnavailable,
	apperrors.KindInternal:           http.StatusInternalServerError,
}

// StatusForKind returns the HTTP status used for an error kind.
func StatusForKind(kind apperrors.Kind) int {
	if status, ok := kindStatus[kind]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// HandleAPIError writes err as an error response. The body only carries the
// caller-facing message.
func HandleAPIError(c *gin.Context, err error) {
	detail := dto.NewErrorDetailFromError(err)
	c.AbortWithStatusJSON(StatusForKind(detail.Kind), dto.NewErrorResponse(detail))
}
