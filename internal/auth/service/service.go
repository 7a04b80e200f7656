// Package service implements account registration and login.
package service

import (
	"context"

	"golang.org/x/crypto/bcrypt"

	"contractor_portal_backend/internal/auth/repository"
	"contractor_portal_backend/internal/auth/token"
	"contractor_portal_backend/internal/auth/transport"
	"contractor_portal_backend/internal/events"
	"contractor_portal_backend/internal/shared/authz"
	"contractor_portal_backend/platform/apperr"
	"contractor_portal_backend/platform/logger"
	"contractor_portal_backend/platform/phone"

	"github.com/google/uuid"
)

const invalidCredentialsMessage = "invalid email or password"

// Service provides account operations.
type Service struct {
	repo   repository.Repository
	tokens *token.Issuer
	bus    events.Bus
	log    *logger.Logger
}

// New creates a new auth service.
func New(repo repository.Repository, tokens *token.Issuer, bus events.Bus, log *logger.Logger) *Service {
	return &Service{repo: repo, tokens: tokens, bus: bus, log: log}
}

// Register creates a new customer account and signs the user in.
func (s *Service) Register(ctx context.Context, req transport.RegisterRequest) (transport.AuthResponse, error) {
	exists, err := s.repo.EmailExists(ctx, req.Email)
	if err != nil {
		return transport.AuthResponse{}, err
	}
	if exists {
		return transport.AuthResponse{}, apperr.Conflict("an account with this email already exists")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return transport.AuthResponse{}, apperr.Wrap(apperr.KindInternal, "failed to hash password", err)
	}

	user, err := s.repo.Create(ctx, repository.CreateParams{
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: string(hash),
		Phone:        phone.NormalizeE164(req.Phone),
		Role:         authz.RoleUser,
	})
	if err != nil {
		return transport.AuthResponse{}, err
	}

	s.log.AuthEvent("register", user.Email, true, "")
	s.bus.Publish(ctx, events.UserRegistered{
		BaseEvent: events.NewBaseEvent(),
		UserID:    user.ID,
		Email:     user.Email,
		Name:      user.Name,
	})

	return s.signIn(user)
}

// Login authenticates a user by email and password.
func (s *Service) Login(ctx context.Context, req transport.LoginRequest) (transport.AuthResponse, error) {
	user, err := s.repo.GetByEmail(ctx, req.Email)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			s.log.AuthEvent("login", req.Email, false, "unknown email")
			return transport.AuthResponse{}, apperr.Unauthorized(invalidCredentialsMessage)
		}
		return transport.AuthResponse{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		s.log.AuthEvent("login", req.Email, false, "wrong password")
		return transport.AuthResponse{}, apperr.Unauthorized(invalidCredentialsMessage)
	}

	s.log.AuthEvent("login", user.Email, true, "")
	return s.signIn(user)
}

// Me returns the profile of the authenticated user.
func (s *Service) Me(ctx context.Context, userID uuid.UUID) (transport.UserResponse, error) {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return transport.UserResponse{}, err
	}
	return toUserResponse(user), nil
}

func (s *Service) signIn(user repository.User) (transport.AuthResponse, error) {
	signed, expiresAt, err := s.tokens.Access(user.ID, user.Role)
	if err != nil {
		return transport.AuthResponse{}, err
	}
	return transport.AuthResponse{
		Token:     signed,
		ExpiresAt: expiresAt,
		User:      toUserResponse(user),
	}, nil
}

func toUserResponse(user repository.User) transport.UserResponse {
	return transport.UserResponse{
		ID:        user.ID,
		Name:      user.Name,
		Email:     user.Email,
		Phone:     user.Phone,
		Role:      user.Role,
		CreatedAt: user.CreatedAt,
	}
}
