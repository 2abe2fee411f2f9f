package services

import (
	"context"
	"errors"
	"strings"

	"github.com/academia/gradebot/internal/app/models"
	"github.com/academia/gradebot/internal/app/models/dto"
	"github.com/academia/gradebot/internal/app/repositories"
	"github.com/academia/gradebot/internal/pkg/apperrors"
	"github.com/academia/gradebot/internal/pkg/auth"
	"github.com/rs/zerolog"
)

// AuthService handles authentication operations
type AuthService interface {
	Login(ctx context.Context, req *dto.LoginRequest) (*dto.LoginResponse, error)
}

type authServiceImpl struct {
	store      repositories.GradeStore
	jwtService *auth.JWTService
	logger     zerolog.Logger
}

// NewAuthService creates a new AuthService
func NewAuthService(store repositories.GradeStore, jwtService *auth.JWTService, logger zerolog.Logger) AuthService {
	return &authServiceImpl{
		store:      store,
		jwtService: jwtService,
		logger:     logger,
	}
}

// invalidCredentials is returned for every failed check so callers cannot
// tell which part was wrong.
func invalidCredentials() error {
	return apperrors.NewCustomError(apperrors.ErrInvalidCredentials, "Invalid enrollment, password or role")
}

// Login checks the password, the requested role and, for instructors, the
// security code, then issues an access token.
func (s *authServiceImpl) Login(ctx context.Context, req *dto.LoginRequest) (*dto.LoginResponse, error) {
	role, ok := models.ParseRole(req.Role)
	if !ok {
		return nil, apperrors.InvalidArgument(nil, "Role must be student or instructor")
	}

	account, err := s.store.GetStudent(ctx, req.Enrollment)
	if errors.Is(err, apperrors.ErrStudentNotFound) {
		s.logger.Debug().Str("enrollment", req.Enrollment).Msg("Login for unknown enrollment")
		return nil, invalidCredentials()
	}
	if err != nil {
		return nil, err
	}

	if account.Role != role || !auth.CheckPassword(account.PasswordHash, req.Password) {
		s.logger.Info().Str("enrollment", account.Enrollment).Msg("Login rejected")
		return nil, invalidCredentials()
	}
	if account.IsInstructor() {
		code := strings.TrimSpace(req.SecurityCode)
		if account.SecurityCodeHash == nil || code == "" || !auth.CheckPassword(*account.SecurityCodeHash, code) {
			s.logger.Info().Str("enrollment", account.Enrollment).Msg("Instructor login rejected: security code")
			return nil, invalidCredentials()
		}
	}

	token, expiresIn, err := s.jwtService.GenerateAccessToken(account)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to sign access token")
		return nil, err
	}

	s.logger.Info().Str("enrollment", account.Enrollment).Str("role", string(account.Role)).Msg("Login succeeded")
	return &dto.LoginResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   expiresIn,
		Enrollment:  account.Enrollment,
		FullName:    account.FullName,
		Role:        string(account.Role),
	}, nil
}
