package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"rapport/pkg/apperr"
	"rapport/pkg/auth"
	"rapport/pkg/logging"
	"rapport/pkg/models"
	"rapport/pkg/repository"
)

type AuthService interface {
	Register(ctx context.Context, req models.RegisterRequest, meta models.SessionMeta) (models.AuthResponse, error)
	Login(ctx context.Context, req models.LoginRequest, meta models.SessionMeta) (models.AuthResponse, error)
	Refresh(ctx context.Context, refreshToken string, meta models.SessionMeta) (models.AuthResponse, error)
	Logout(ctx context.Context, userID int, refreshToken string) error
	LogoutAll(ctx context.Context, userID int) error
	Me(ctx context.Context, userID int) (models.User, error)
	Sessions(ctx context.Context, userID int) ([]models.Session, error)
	ChangePassword(ctx context.Context, userID int, req models.ChangePasswordRequest, meta models.SessionMeta) (models.AuthResponse, error)
	PurgeSessions(ctx context.Context) (int64, error)
}

// UserCache holds user profiles between requests.
type UserCache interface {
	Get(ctx context.Context, key string, dest any) bool
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

type Notifier interface {
	Notify(ctx context.Context, userID int, kind, title, body string) error
}

type AuthConfig struct {
	MaxAttempts  int
	LockDuration time.Duration
	UserCacheTTL time.Duration
	// RevokedRetention is how long revoked sessions are kept before purging.
	RevokedRetention time.Duration
	Now              func() time.Time
}

type authService struct {
	repo     repository.AuthRepository
	issuer   *auth.Issuer
	cache    UserCache
	notifier Notifier
	log      logging.Logger
	cfg      AuthConfig
}

func NewAuthService(repo repository.AuthRepository, issuer *auth.Issuer, cache UserCache, notifier Notifier, log logging.Logger, cfg AuthConfig) AuthService {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.UserCacheTTL == 0 {
		cfg.UserCacheTTL = 15 * time.Minute
	}
	if cfg.RevokedRetention == 0 {
		cfg.RevokedRetention = 24 * time.Hour
	}
	return &authService{
		repo:     repo,
		issuer:   issuer,
		cache:    cache,
		notifier: notifier,
		log:      log,
		cfg:      cfg,
	}
}

// verifyPassword is replaced in tests.
var verifyPassword = auth.VerifyPassword

func userKey(id int) string { return fmt.Sprintf("user:%d", id) }

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *authService) Register(ctx context.Context, req models.RegisterRequest, meta models.SessionMeta) (models.AuthResponse, error) {
	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return models.AuthResponse{}, apperr.Wrap(apperr.CodeInternal, "could not hash password", err)
	}

	user, err := s.repo.CreateUser(ctx, normalizeEmail(req.Email), strings.TrimSpace(req.DisplayName), hash)
	if errors.Is(err, repository.ErrDuplicate) {
		return models.AuthResponse{}, apperr.New(apperr.CodeDuplicate, "email already registered")
	}
	if err != nil {
		return models.AuthResponse{}, apperr.Wrap(apperr.CodeInternal, "could not create user", err)
	}

	s.log.Info(ctx, "user registered", "user_id", user.ID)
	s.cacheUser(ctx, user)
	return s.issue(ctx, user, meta)
}

// Login checks credentials. Each wrong password counts towards a lockout;
// reaching MaxAttempts locks the account for LockDuration.
func (s *authService) Login(ctx context.Context, req models.LoginRequest, meta models.SessionMeta) (models.AuthResponse, error) {
	user, err := s.repo.GetUserByEmail(ctx, normalizeEmail(req.Email))
	if errors.Is(err, repository.ErrNotFound) {
		// Same bcrypt work as a wrong password.
		verifyPassword(req.Password, auth.DummyHash())
		return models.AuthResponse{}, apperr.ErrBadCredentials
	}
	if err != nil {
		return models.AuthResponse{}, apperr.Wrap(apperr.CodeInternal, "could not load user", err)
	}

	now := s.cfg.Now()
	if user.Locked(now) {
		return models.AuthResponse{}, apperr.ErrAccountLocked
	}

	if !verifyPassword(req.Password, user.PasswordHash) {
		until, err := s.repo.RecordFailedLogin(ctx, user.ID, s.cfg.MaxAttempts, now.Add(s.cfg.LockDuration))
		if err != nil {
			return models.AuthResponse{}, apperr.Wrap(apperr.CodeInternal, "could not record failed login", err)
		}
		if until != nil && now.Before(*until) {
			s.log.Warn(ctx, "account locked", "user_id", user.ID, "ip", meta.IP, "until", *until)
			return models.AuthResponse{}, apperr.ErrAccountLocked
		}
		return models.AuthResponse{}, apperr.ErrBadCredentials
	}

	if user.FailedLogins > 0 || user.LockedUntil != nil {
		if err := s.repo.ResetFailedLogins(ctx, user.ID); err != nil {
			s.log.Warn(ctx, "could not reset failed logins", "user_id", user.ID, "error", err)
		}
	}

	resp, err := s.issue(ctx, user, meta)
	if err != nil {
		return resp, err
	}
	s.cacheUser(ctx, user)
	s.notify(ctx, user.ID, models.NotifyNewSignIn, "New sign-in", signInBody(meta))
	return resp, nil
}

func signInBody(meta models.SessionMeta) string {
	if meta.UserAgent == "" {
		return "from " + meta.IP
	}
	return fmt.Sprintf("from %s (%s)", meta.IP, meta.UserAgent)
}

func (s *authService) Refresh(ctx context.Context, refreshToken string, meta models.SessionMeta) (models.AuthResponse, error) {
	if refreshToken == "" {
		return models.AuthResponse{}, apperr.New(apperr.CodeBadRequest, "refresh token required")
	}

	pair, userID, err := s.issuer.Refresh(ctx, refreshToken, meta)
	if err != nil {
		return models.AuthResponse{}, err
	}
	user, err := s.Me(ctx, userID)
	if err != nil {
		return models.AuthResponse{}, err
	}
	return s.response(user, pair), nil
}

func (s *authService) Logout(ctx context.Context, userID int, refreshToken string) error {
	if err := s.issuer.Revoke(ctx, refreshToken); err != nil {
		return err
	}
	s.evictUser(ctx, userID)
	return nil
}

func (s *authService) LogoutAll(ctx context.Context, userID int) error {
	n, err := s.repo.RevokeAllSessions(ctx, userID)
	if err != nil {
		return apperr.Wrap(apperr.CodeInternal, "could not revoke sessions", err)
	}
	s.evictUser(ctx, userID)
	s.log.Info(ctx, "all sessions revoked", "user_id", userID, "count", n)
	s.notify(ctx, userID, models.NotifySessionsRevoked, "Signed out everywhere", fmt.Sprintf("%d sessions ended", n))
	return nil
}

func (s *authService) Me(ctx context.Context, userID int) (models.User, error) {
	var user models.User
	if s.cache.Get(ctx, userKey(userID), &user) {
		return user, nil
	}

	user, err := s.repo.GetUserByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return models.User{}, apperr.New(apperr.CodeNotFound, "user not found")
	}
	if err != nil {
		return models.User{}, apperr.Wrap(apperr.CodeInternal, "could not load user", err)
	}
	s.cacheUser(ctx, user)
	return user, nil
}

func (s *authService) Sessions(ctx context.Context, userID int) ([]models.Session, error) {
	sessions, err := s.repo.ListActiveSessions(ctx, userID, s.cfg.Now())
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, "could not list sessions", err)
	}
	return sessions, nil
}

// ChangePassword replaces the password, ends every session and signs the
// caller in again.
func (s *authService) ChangePassword(ctx context.Context, userID int, req models.ChangePasswordRequest, meta models.SessionMeta) (models.AuthResponse, error) {
	user, err := s.repo.GetUserByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return models.AuthResponse{}, apperr.New(apperr.CodeNotFound, "user not found")
	}
	if err != nil {
		return models.AuthResponse{}, apperr.Wrap(apperr.CodeInternal, "could not load user", err)
	}
	if !verifyPassword(req.OldPassword, user.PasswordHash) {
		return models.AuthResponse{}, apperr.ErrBadCredentials
	}

	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		return models.AuthResponse{}, apperr.Wrap(apperr.CodeInternal, "could not hash password", err)
	}
	revoked, err := s.repo.ChangePassword(ctx, userID, hash)
	if err != nil {
		return models.AuthResponse{}, apperr.Wrap(apperr.CodeInternal, "could not change password", err)
	}
	s.evictUser(ctx, userID)
	s.log.Info(ctx, "password changed", "user_id", userID, "sessions_revoked", revoked)

	resp, err := s.issue(ctx, user, meta)
	if err != nil {
		return resp, err
	}
	s.notify(ctx, userID, models.NotifyPasswordChanged, "Password changed", "All other sessions were signed out")
	return resp, nil
}

func (s *authService) PurgeSessions(ctx context.Context) (int64, error) {
	now := s.cfg.Now()
	return s.repo.PurgeSessions(ctx, now, now.Add(-s.cfg.RevokedRetention))
}

func (s *authService) issue(ctx context.Context, user models.User, meta models.SessionMeta) (models.AuthResponse, error) {
	pair, err := s.issuer.Issue(ctx, user.ID, meta)
	if err != nil {
		return models.AuthResponse{}, err
	}
	return s.response(user, pair), nil
}

func (s *authService) response(user models.User, pair *models.TokenPair) models.AuthResponse {
	return models.AuthResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		User:         user,
		ExpiresIn:    int(s.issuer.AccessTTL().Seconds()),
	}
}

func (s *authService) cacheUser(ctx context.Context, user models.User) {
	if err := s.cache.Set(ctx, userKey(user.ID), user, s.cfg.UserCacheTTL); err != nil {
		s.log.Debug(ctx, "user cache set failed", "user_id", user.ID, "error", err)
	}
}

func (s *authService) evictUser(ctx context.Context, userID int) {
	if err := s.cache.Del(ctx, userKey(userID)); err != nil {
		s.log.Debug(ctx, "user cache evict failed", "user_id", userID, "error", err)
	}
}

func (s *authService) notify(ctx context.Context, userID int, kind, title, body string) {
	if err := s.notifier.Notify(ctx, userID, kind, title, body); err != nil {
		s.log.Warn(ctx, "notification not sent", "user_id", userID, "kind", kind, "error", err)
	}
}
