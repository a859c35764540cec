package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/odyssey-erp/odyssey-retail/internal/shared"
)

// Service wraps authentication business rules.
type Service struct {
	repo   Repository
	tokens *TokenManager
	now    func() time.Time
}

// NewService constructs a new Service.
func NewService(repo Repository, tokens *TokenManager) *Service {
	return &Service{repo: repo, tokens: tokens, now: time.Now}
}

// Register creates a user with a bcrypt password hash.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*User, error) {
	role := req.Role
	if role == "" {
		role = shared.RoleStaff
	}
	if role != shared.RoleAdmin && role != shared.RoleStaff {
		return nil, shared.Validation("role", "must be admin or staff")
	}
	if len(req.Password) < 6 {
		return nil, shared.Validation("password", "must be at least 6 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	return s.repo.Create(ctx, User{
		Username:     strings.TrimSpace(req.Username),
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		PasswordHash: string(hash),
		Role:         role,
		IsActive:     true,
	})
}

// Authenticate validates credentials.
func (s *Service) Authenticate(ctx context.Context, identifier, password string) (*User, error) {
	user, err := s.repo.FindByIdentifier(ctx, strings.TrimSpace(identifier))
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.ErrInvalidCredentials
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	return user, nil
}

// Login authenticates and issues an access token.
func (s *Service) Login(ctx context.Context, req LoginRequest) (LoginResult, error) {
	user, err := s.Authenticate(ctx, req.Identifier, req.Password)
	if err != nil {
		return LoginResult{}, err
	}
	token, expiresAt, err := s.tokens.Issue(*user)
	if err != nil {
		return LoginResult{}, err
	}
	now := s.now()
	_ = s.repo.TouchLogin(ctx, user.ID, now)
	user.LastLoginAt = &now
	return LoginResult{Token: token, ExpiresAt: expiresAt, User: *user}, nil
}

// Profile returns the current user.
func (s *Service) Profile(ctx context.Context, id int64) (*User, error) {
	return s.repo.FindByID(ctx, id)
}
