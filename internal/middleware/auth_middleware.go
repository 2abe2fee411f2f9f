package middleware

import (
	"errors"
	"net/http"

	"github.com/academia/gradebot/internal/app/models"
	"github.com/academia/gradebot/internal/app/models/dto"
	"github.com/academia/gradebot/internal/app/services"
	"github.com/academia/gradebot/internal/pkg/apperrors"
	"github.com/academia/gradebot/internal/pkg/auth"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Context keys set by JWTAuth.
const (
	ContextEnrollment = "enrollment"
	ContextRole       = "role"
)

// AuthMiddleware for authentication and authorization
type AuthMiddleware struct {
	jwtService *auth.JWTService
	logger     zerolog.Logger
}

// NewAuthMiddleware creates a new AuthMiddleware
func NewAuthMiddleware(jwtService *auth.JWTService, logger zerolog.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		jwtService: jwtService,
		logger:     logger,
	}
}

func abortUnauthorized(c *gin.Context, code dto.ErrorCode, details string) {
	detail := dto.NewErrorDetail(code, "Authentication required").WithDetails(details)
	detail.Kind = apperrors.KindUnauthenticated
	c.AbortWithStatusJSON(http.StatusUnauthorized, dto.NewErrorResponse(detail))
}

// JWTAuth validates the bearer token and stores the caller in the context.
// Browsers cannot set headers on a websocket upgrade, so the token may also
// come in the "token" query parameter.
func (m *AuthMiddleware) JWTAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		var tokenString string

		if header := c.GetHeader("Authorization"); header != "" {
			token, err := auth.ExtractBearerToken(header)
			if err != nil {
				abortUnauthorized(c, dto.ErrorCodeInvalidToken, "Invalid token format")
				return
			}
			tokenString = token
		} else {
			tokenString = c.Query("token")
		}
		if tokenString == "" {
			abortUnauthorized(c, dto.ErrorCodeUnauthorized, "Authorization header missing")
			return
		}

		claims, err := m.jwtService.ValidateToken(tokenString)
		if err != nil {
			m.logger.Debug().Err(err).Str("path", c.FullPath()).Msg("Rejected token")
			if errors.Is(err, apperrors.ErrTokenExpired) {
				abortUnauthorized(c, dto.ErrorCodeExpiredToken, "Token has expired")
				return
			}
			abortUnauthorized(c, dto.ErrorCodeInvalidToken, "Invalid token")
			return
		}

		role, _ := models.ParseRole(string(claims.Role))
		c.Set(ContextEnrollment, models.NormalizeEnrollment(claims.Enrollment))
		c.Set(ContextRole, role)

		c.Next()
	}
}

// RoleRequired rejects callers without the given role.
func (m *AuthMiddleware) RoleRequired(required models.RoleType) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, ok := CallerFrom(c)
		if !ok {
			abortUnauthorized(c, dto.ErrorCodeUnauthorized, "User role not found")
			return
		}
		if caller.Role != required {
			HandleAPIError(c, apperrors.NewForbiddenError("You don't have sufficient permissions for this operation"))
			return
		}
		c.Next()
	}
}

// SelfOrInstructor lets instructors through and students only when the path
// parameter names their own enrollment.
func (m *AuthMiddleware) SelfOrInstructor(param string) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, ok := CallerFrom(c)
		if !ok {
			abortUnauthorized(c, dto.ErrorCodeUnauthorized, "User information not found")
			return
		}
		if caller.Role != models.RoleInstructor && models.NormalizeEnrollment(c.Param(param)) != caller.Enrollment {
			HandleAPIError(c, apperrors.NewForbiddenError("Students can only view their own history"))
			return
		}
		c.Next()
	}
}

// CallerFrom returns the account JWTAuth stored in the context.
func CallerFrom(c *gin.Context) (services.Caller, bool) {
	enrollment := c.GetString(ContextEnrollment)
	role, ok := c.Get(ContextRole)
	if enrollment == "" || !ok {
		return services.Caller{}, false
	}
	roleType, ok := role.(models.RoleType)
	if !ok || roleType == "" {
		return services.Caller{}, false
	}
	return services.Caller{Enrollment: enrollment, Role: roleType}, true
}
