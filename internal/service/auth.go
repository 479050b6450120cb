package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Skotchmaster/medisync/internal/events"
	"github.com/Skotchmaster/medisync/internal/models"
	"github.com/Skotchmaster/medisync/internal/repo"
	"github.com/Skotchmaster/medisync/pkg/hash"
	"github.com/Skotchmaster/medisync/pkg/logging"
	"github.com/Skotchmaster/medisync/pkg/revocation"
	"github.com/Skotchmaster/medisync/pkg/tokens"
)

const (
	AccessTTL  = time.Hour
	RefreshTTL = 7 * 24 * time.Hour
)

type AuthService struct {
	Repo    *repo.GormRepo
	Hasher  *hash.Hasher
	Codec   *tokens.Codec
	Revoked revocation.Registry
	Events  events.Publisher

	decoyOnce sync.Once
	decoy     string
}

// Session is what a successful register, login or refresh hands back.
type Session struct {
	User         *models.User
	AccessToken  string
	RefreshToken string
	AccessExp    time.Time
	RefreshExp   time.Time
}

// ExpiresIn is the access token lifetime in seconds.
func (s *Session) ExpiresIn() int {
	return int(AccessTTL / time.Second)
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func ValidRole(role string) bool {
	return role == models.RolePatient || role == models.RoleDoctor
}

func (s *AuthService) Register(ctx context.Context, name, email, password, role string) (*Session, error) {
	l := logging.FromContext(ctx).With("svc", "auth.register")

	name = strings.TrimSpace(name)
	email = NormalizeEmail(email)
	if name == "" || email == "" || password == "" || role == "" {
		l.Warn("register_error", "status", 400, "reason", "missing required fields")
		return nil, fmt.Errorf("%w: name, email, password and role are required", ErrValidation)
	}
	if !ValidRole(role) {
		l.Warn("register_error", "status", 400, "reason", "unknown role", "role", role)
		return nil, fmt.Errorf("%w: role must be patient or doctor", ErrValidation)
	}

	if _, err := s.Repo.FindByEmail(ctx, email); err == nil {
		l.Warn("register_error", "status", 409, "reason", "email already registered")
		return nil, ErrDuplicateEmail
	} else if !errors.Is(err, repo.ErrNotFound) {
		l.Error("register_error", "status", 500, "reason", "cannot look up user", "error", err)
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	pwHash, err := s.Hasher.Hash(password)
	if err != nil {
		l.Error("register_error", "status", 500, "reason", "cannot hash the password", "error", err)
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &models.User{
		Name:         name,
		Email:        email,
		PasswordHash: pwHash,
		Role:         role,
	}
	if err := s.Repo.Insert(ctx, user); err != nil {
		if errors.Is(err, repo.ErrUserAlreadyExist) {
			l.Warn("register_error", "status", 409, "reason", "email already registered")
			return nil, ErrDuplicateEmail
		}
		l.Error("register_error", "status", 500, "reason", "cannot insert user", "error", err)
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	sess, err := s.issue(user)
	if err != nil {
		l.Error("register_error", "status", 500, "reason", "cannot issue tokens", "error", err)
		return nil, err
	}

	l.Info("register_successful", "user_id", user.ID, "role", user.Role)
	s.publish(ctx, events.Event{Type: events.UserRegistered, UserID: user.ID, Email: user.Email, Role: user.Role})
	return sess, nil
}

// Login fails with ErrInvalidCredentials for both an unknown email and a
// wrong password, and spends a bcrypt comparison in both cases.
func (s *AuthService) Login(ctx context.Context, email, password string) (*Session, error) {
	email = NormalizeEmail(email)
	l := logging.FromContext(ctx).With("svc", "auth.login")

	if email == "" || password == "" {
		l.Warn("login_failed", "status", 400, "reason", "missing email or password")
		return nil, fmt.Errorf("%w: email and password are required", ErrValidation)
	}

	user, err := s.Repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			s.Hasher.Verify(password, s.decoyHash())
			l.Warn("login_failed", "status", 401, "reason", "invalid email or password")
			return nil, ErrInvalidCredentials
		}
		l.Error("login_failed", "status", 500, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	if !s.Hasher.Verify(password, user.PasswordHash) {
		l.Warn("login_failed", "status", 401, "reason", "invalid email or password")
		return nil, ErrInvalidCredentials
	}

	sess, err := s.issue(user)
	if err != nil {
		l.Error("login_failed", "status", 500, "reason", "cannot issue tokens", "error", err)
		return nil, err
	}

	l.Info("login_successful", "user_id", user.ID)
	s.publish(ctx, events.Event{Type: events.UserLoggedIn, UserID: user.ID, Email: user.Email, Role: user.Role})
	return sess, nil
}

// Refresh exchanges a refresh token for a new pair. The presented refresh
// token stays valid until it expires.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	l := logging.FromContext(ctx).With("svc", "auth.refresh")

	claims, err := s.Codec.VerifyKind(refreshToken, tokens.KindRefresh)
	if err != nil {
		l.Warn("refresh_failed", "status", 401, "reason", "invalid refresh token", "error", err)
		return nil, ErrInvalidToken
	}

	user, err := s.Repo.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			l.Warn("refresh_failed", "status", 401, "reason", "user not found", "user_id", claims.UserID)
			return nil, ErrUserNotFound
		}
		l.Error("refresh_failed", "status", 500, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	sess, err := s.issue(user)
	if err != nil {
		l.Error("refresh_failed", "status", 500, "reason", "cannot issue tokens", "error", err)
		return nil, err
	}

	l.Info("refresh_successful", "user_id", user.ID)
	return sess, nil
}

// Logout revokes the presented access token. Revoking the same token twice
// is not an error.
func (s *AuthService) Logout(ctx context.Context, accessToken string, claims *tokens.Claims) error {
	l := logging.FromContext(ctx).With("svc", "auth.logout")

	var exp time.Time
	if claims.ExpiresAt != nil {
		exp = claims.ExpiresAt.Time
	}
	if err := s.Revoked.Revoke(ctx, accessToken, exp); err != nil {
		l.Error("logout_failed", "status", 500, "reason", "cannot revoke access token", "error", err)
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	l.Info("successful_logout", "user_id", claims.UserID)
	s.publish(ctx, events.Event{Type: events.UserLoggedOut, UserID: claims.UserID, Email: claims.Email, Role: claims.Role})
	return nil
}

func (s *AuthService) issue(user *models.User) (*Session, error) {
	access, accessExp, err := s.Codec.Issue(
		tokens.AccessClaims(user.ID, user.Name, user.Email, user.Role), tokens.KindAccess, AccessTTL)
	if err != nil {
		return nil, err
	}
	refresh, refreshExp, err := s.Codec.Issue(tokens.RefreshClaims(user.ID), tokens.KindRefresh, RefreshTTL)
	if err != nil {
		return nil, err
	}
	return &Session{
		User:         user,
		AccessToken:  access,
		RefreshToken: refresh,
		AccessExp:    accessExp,
		RefreshExp:   refreshExp,
	}, nil
}

func (s *AuthService) publish(ctx context.Context, ev events.Event) {
	if s.Events == nil {
		return
	}
	ev.At = time.Now().UTC()
	if err := s.Events.Publish(ctx, ev); err != nil {
		logging.FromContext(ctx).Warn("event_publish_failed", "event", ev.Type, "user_id", ev.UserID, "error", err)
	}
}

// decoyHash is compared against when the email is unknown so that a miss
// costs the same as a wrong password.
func (s *AuthService) decoyHash() string {
	s.decoyOnce.Do(func() {
		d, err := s.Hasher.Hash("medisync-decoy-password")
		if err == nil {
			s.decoy = d
		}
	})
	return s.decoy
}
