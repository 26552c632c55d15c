package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sweetshop/apiserver/internal/store"
	"github.com/sweetshop/apiserver/types"
	"golang.org/x/crypto/bcrypt"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
}

// TokenIssuer signs bearer tokens for authenticated users.
type TokenIssuer interface {
	Issue(id, email, role string) (string, error)
}

// AuthResult is returned by Register and Login.
type AuthResult struct {
	Token string           `json:"token"`
	User  types.PublicUser `json:"user"`
}

// AuthService encapsulates registration and login.
type AuthService struct {
	repo     UserRepository
	tokens   TokenIssuer
	hashCost int
}

func NewAuthService(repo UserRepository, tokens TokenIssuer) *AuthService {
	return &AuthService{
		repo:     repo,
		tokens:   tokens,
		hashCost: bcrypt.DefaultCost,
	}
}

// Register creates a user with the default role and signs them in.
func (s *AuthService) Register(ctx context.Context, email, password, name string) (AuthResult, error) {
	email = strings.TrimSpace(email)
	name = strings.TrimSpace(name)
	if email == "" || password == "" || name == "" {
		return AuthResult{}, validationError(msgRegisterRequired)
	}

	if _, err := s.repo.GetByEmail(ctx, email); err == nil {
		return AuthResult{}, conflictError(msgEmailTaken)
	} else if !errors.Is(err, store.ErrNotFound) {
		return AuthResult{}, fmt.Errorf("check user: %w", err)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		return AuthResult{}, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.repo.Create(ctx, types.User{
		Email:        email,
		Name:         name,
		Role:         types.RoleUser,
		PasswordHash: string(hashed),
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return AuthResult{}, conflictError(msgEmailTaken)
		}
		return AuthResult{}, fmt.Errorf("create user: %w", err)
	}

	return s.signIn(user)
}

// Login verifies credentials. Unknown emails and wrong passwords fail the same way.
func (s *AuthService) Login(ctx context.Context, email, password string) (AuthResult, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return AuthResult{}, validationError(msgLoginRequired)
	}

	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return AuthResult{}, authError(msgInvalidCredentials)
		}
		return AuthResult{}, fmt.Errorf("load user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return AuthResult{}, authError(msgInvalidCredentials)
	}

	return s.signIn(user)
}

// Me returns the public view of the user with the given id.
func (s *AuthService) Me(ctx context.Context, id string) (types.PublicUser, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.PublicUser{}, notFoundError(msgUserNotFound)
		}
		return types.PublicUser{}, fmt.Errorf("load user: %w", err)
	}
	return user.Public(), nil
}

func (s *AuthService) signIn(user types.User) (AuthResult, error) {
	token, err := s.tokens.Issue(user.ID, user.Email, user.Role)
	if err != nil {
		return AuthResult{}, fmt.Errorf("issue token: %w", err)
	}
	return AuthResult{Token: token, User: user.Public()}, nil
}
