package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Shivanand-hulikatti/event-reservations/internal/auth"
	"github.com/Shivanand-hulikatti/event-reservations/internal/model"
	"github.com/Shivanand-hulikatti/event-reservations/internal/repository"
)

// AuthService handles registration, login and the caller's profile.
type AuthService struct {
	users  repository.UserStore
	tokens *auth.Tokens
	log    *slog.Logger
	now    func() time.Time
}

// NewAuthService constructs an AuthService.
func NewAuthService(users repository.UserStore, tokens *auth.Tokens, logger *slog.Logger) *AuthService {
	return &AuthService{users: users, tokens: tokens, log: logger, now: time.Now}
}

// Register creates an account. Roles default to participant.
func (s *AuthService) Register(ctx context.Context, req model.RegisterRequest) (*model.UserSummary, error) {
	req.FullName = strings.TrimSpace(req.FullName)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	roles := []model.Role{model.RoleParticipant}
	if len(req.Roles) > 0 {
		roles = roles[:0]
		for _, r := range req.Roles {
			role := model.Role(r)
			if !role.Valid() {
				return nil, model.Errorf(model.ErrInvalidInput, "unknown role %q", r)
			}
			roles = append(roles, role)
		}
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	u := &model.User{
		ID:           uuid.NewString(),
		FullName:     req.FullName,
		Email:        req.Email,
		PasswordHash: hash,
		Roles:        roles,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.CreateUser(ctx, u); err != nil {
		return nil, err
	}
	s.log.Info("user registered", "user_id", u.ID, "roles", roles)
	summary := u.Summary()
	return &summary, nil
}

// Login exchanges credentials for an access token. Unknown emails and
// wrong passwords produce the same error.
func (s *AuthService) Login(ctx context.Context, req model.LoginRequest) (*model.LoginResponse, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	invalid := model.Errorf(model.ErrUnauthorized, "invalid credentials")
	u, err := s.users.UserByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, invalid
		}
		return nil, fmt.Errorf("login: %w", err)
	}
	if !auth.CheckPassword(u.PasswordHash, req.Password) {
		return nil, invalid
	}

	token, err := s.tokens.Issue(u)
	if err != nil {
		return nil, err
	}
	return &model.LoginResponse{AccessToken: token}, nil
}

// Profile returns the account of userID.
func (s *AuthService) Profile(ctx context.Context, userID string) (*model.UserSummary, error) {
	u, err := s.users.UserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	summary := u.Summary()
	return &summary, nil
}

// EnsureAdmin creates an admin account for email unless one exists. An
// existing account with that email but without the admin role is a
// Conflict.
func (s *AuthService) EnsureAdmin(ctx context.Context, fullName, email, password string) error {
	existing, err := s.users.UserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err == nil {
		if !existing.HasRole(model.RoleAdmin) {
			s.log.Warn("configured admin email belongs to a non-admin account", "user_id", existing.ID)
			return model.Errorf(model.ErrConflict, "account %s exists without the admin role", existing.Email)
		}
		return nil
	}
	if !errors.Is(err, model.ErrNotFound) {
		return fmt.Errorf("look up admin: %w", err)
	}

	_, err = s.Register(ctx, model.RegisterRequest{
		FullName: fullName,
		Email:    email,
		Password: password,
		Roles:    []string{string(model.RoleAdmin)},
	})
	if err != nil && !errors.Is(err, model.ErrConflict) {
		return fmt.Errorf("create admin: %w", err)
	}
	s.log.Info("admin account ensured", "email", email)
	return nil
}
