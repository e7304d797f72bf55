package services

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/tfxTanoli/nextperience-crm-sub001/internal/domain/models"
	"github.com/tfxTanoli/nextperience-crm-sub001/internal/infrastructure/persistence"
	"github.com/tfxTanoli/nextperience-crm-sub001/pkg/auth"
	appErrors "github.com/tfxTanoli/nextperience-crm-sub001/pkg/errors"
)

const invalidCredentials = "invalid email or password"

// AuthService handles login, session validation and password changes.
type AuthService struct {
	users     *persistence.UserRepository
	sessions  *persistence.SessionRepository
	companies *persistence.CompanyRepository
	tokens    *auth.TokenManager
	access    *AccessService
	logger    *zap.Logger
}

func NewAuthService(users *persistence.UserRepository, sessions *persistence.SessionRepository,
	companies *persistence.CompanyRepository, tokens *auth.TokenManager, access *AccessService, logger *zap.Logger) *AuthService {
	return &AuthService{
		users:     users,
		sessions:  sessions,
		companies: companies,
		tokens:    tokens,
		access:    access,
		logger:    logger,
	}
}

// Login authenticates by email and password and persists a session for the issued token.
// Unknown emails and wrong passwords produce the same error.
func (s *AuthService) Login(ctx context.Context, email, password, ip, userAgent string) (*models.LoginResult, error) {
	email = auth.NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, appErrors.NewValidationError("", "email and password are required")
	}

	user, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.NewUnauthorizedError(invalidCredentials)
	}
	if err != nil {
		return nil, appErrors.NewInternalError("failed to load user", err)
	}
	if !auth.VerifyPassword(password, user.PasswordHash) {
		s.logger.Info("login failed", zap.String("user_id", user.ID), zap.String("ip", ip))
		return nil, appErrors.NewUnauthorizedError(invalidCredentials)
	}
	if !user.IsActive {
		return nil, appErrors.NewUnauthorizedError("account is deactivated")
	}

	company, err := s.companies.GetByID(ctx, user.CompanyID)
	if err != nil {
		return nil, appErrors.NewInternalError("failed to load company", err)
	}
	if !company.IsActive && !user.IsPlatformAdmin {
		return nil, appErrors.NewUnauthorizedError("company is deactivated")
	}

	session := auth.UserSession{
		ID:              user.ID,
		Name:            user.FullName,
		Email:           user.Email,
		CompanyID:       user.CompanyID,
		RoleID:          user.RoleID,
		IsPlatformAdmin: user.IsPlatformAdmin,
	}
	token, claims, err := s.tokens.GenerateToken(session)
	if err != nil {
		return nil, appErrors.NewInternalError("failed to issue token", err)
	}

	now := time.Now().UTC()
	if err := s.sessions.Create(ctx, &models.Session{
		ID:           claims.ID,
		UserID:       user.ID,
		CompanyID:    user.CompanyID,
		ExpiresAt:    claims.ExpiresAt.Time,
		IPAddress:    ip,
		UserAgent:    userAgent,
		LastActivity: now,
		CreatedAt:    now,
	}); err != nil {
		return nil, appErrors.NewInternalError("failed to create session", err)
	}
	if err := s.users.UpdateLastLogin(ctx, user.ID, now); err != nil {
		s.logger.Warn("failed to update last login", zap.String("user_id", user.ID), zap.Error(err))
	}
	user.LastLoginAt = &now

	perms, err := s.access.EffectivePermissions(ctx, &session)
	if err != nil {
		return nil, err
	}
	s.logger.Info("user logged in", zap.String("user_id", user.ID), zap.String("company_id", user.CompanyID))
	return &models.LoginResult{
		Token:       token,
		ExpiresAt:   claims.ExpiresAt.Time,
		User:        user,
		Permissions: perms,
	}, nil
}

// ValidateSession verifies the token and that its server-side session is still live.
func (s *AuthService) ValidateSession(ctx context.Context, token string) (*auth.Claims, error) {
	claims, err := s.tokens.ValidateToken(token)
	if err != nil {
		return nil, appErrors.NewUnauthorizedError("invalid or expired token")
	}
	session, err := s.sessions.Get(ctx, claims.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.NewUnauthorizedError("session not found")
	}
	if err != nil {
		return nil, appErrors.NewInternalError("failed to load session", err)
	}
	if session.IsRevoked {
		return nil, appErrors.NewUnauthorizedError("session has been revoked")
	}
	if time.Now().After(session.ExpiresAt) {
		return nil, appErrors.NewUnauthorizedError("session expired")
	}
	return claims, nil
}

// TouchSession records activity without blocking the request.
func (s *AuthService) TouchSession(sessionID string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.sessions.Touch(ctx, sessionID, time.Now().UTC()); err != nil {
			s.logger.Debug("failed to touch session", zap.String("session_id", sessionID), zap.Error(err))
		}
	}()
}

// Logout revokes the session behind token. An unparsable token is ignored.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	claims, err := auth.DecodeToken(token)
	if err != nil || claims.ID == "" {
		return nil
	}
	if err := s.sessions.Revoke(ctx, claims.ID); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return appErrors.NewInternalError("failed to revoke session", err)
	}
	return nil
}

// ChangePassword verifies the current password, stores the new hash and revokes the
// user's other sessions.
func (s *AuthService) ChangePassword(ctx context.Context, user *auth.UserSession, sessionID, current, next string) error {
	if err := requireUser(user); err != nil {
		return err
	}
	if err := auth.ValidatePasswordStrength(next); err != nil {
		return appErrors.NewValidationError("new_password", err.Error())
	}
	stored, err := s.users.GetByEmail(ctx, auth.NormalizeEmail(user.Email))
	if err != nil {
		return notFoundOr(err, "user", user.ID)
	}
	if !auth.VerifyPassword(current, stored.PasswordHash) {
		return appErrors.NewValidationError("current_password", "current password is incorrect")
	}
	hash, err := auth.HashPassword(next)
	if err != nil {
		return appErrors.NewInternalError("failed to hash password", err)
	}
	if err := s.users.UpdatePassword(ctx, stored.CompanyID, stored.ID, hash); err != nil {
		return notFoundOr(err, "user", stored.ID)
	}
	revoked, err := s.sessions.RevokeAllForUser(ctx, stored.ID, sessionID)
	if err != nil {
		return appErrors.NewInternalError("failed to revoke sessions", err)
	}
	s.logger.Info("password changed", zap.String("user_id", stored.ID), zap.Int64("revoked_sessions", revoked))
	return nil
}

// Me returns the stored user record and the effective permissions.
func (s *AuthService) Me(ctx context.Context, user *auth.UserSession) (*models.User, []models.Permission, error) {
	if err := requireUser(user); err != nil {
		return nil, nil, err
	}
	stored, err := s.users.GetByEmail(ctx, auth.NormalizeEmail(user.Email))
	if err != nil {
		return nil, nil, notFoundOr(err, "user", user.ID)
	}
	perms, err := s.access.EffectivePermissions(ctx, user)
	if err != nil {
		return nil, nil, err
	}
	return stored, perms, nil
}

// PurgeExpiredSessions deletes sessions that expired before now.
func (s *AuthService) PurgeExpiredSessions(ctx context.Context) (int64, error) {
	return s.sessions.PurgeExpired(ctx, time.Now().UTC())
}
