package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ericfisherdev/taskapi/internal/domain/model"
	"github.com/ericfisherdev/taskapi/internal/domain/port/driven"
)

// invalidCredentialsMessage is returned for both unknown emails and wrong
// passwords so the two cases are indistinguishable to clients.
const invalidCredentialsMessage = "invalid credentials"

// SignupInput is the payload for creating an account.
type SignupInput struct {
	Name     string `json:"name" validate:"min=1,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"min=8,max=72"`
}

// LoginInput is the payload for authenticating.
type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"min=1"`
}

// LoginResult is a freshly issued session token and the authenticated user.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	User      model.User
}

// AuthService orchestrates signup and login over the user store, the
// password hasher and the token issuer.
type AuthService struct {
	users     driven.UserStore
	hasher    driven.PasswordHasher
	tokens    driven.TokenIssuer
	logger    *slog.Logger
	dummyHash string
}

// NewAuthService creates an AuthService. It precomputes the hash used to
// equalize login timing for unknown emails.
func NewAuthService(
	users driven.UserStore,
	hasher driven.PasswordHasher,
	tokens driven.TokenIssuer,
	logger *slog.Logger,
) (*AuthService, error) {
	dummyHash, err := hasher.Hash("timing-equalization-placeholder")
	if err != nil {
		return nil, fmt.Errorf("precompute dummy hash: %w", err)
	}

	return &AuthService{
		users:     users,
		hasher:    hasher,
		tokens:    tokens,
		logger:    logger,
		dummyHash: dummyHash,
	}, nil
}

// Signup registers a new user and returns it. The email is lower-cased
// before the uniqueness check.
func (s *AuthService) Signup(ctx context.Context, in SignupInput) (*model.User, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = normalizeEmail(in.Email)

	if err := validateStruct(in); err != nil {
		return nil, err
	}

	existing, err := s.users.GetByEmail(ctx, in.Email)
	if err != nil {
		return nil, fmt.Errorf("signup: %w", err)
	}
	if existing != nil {
		return nil, Conflict("email already registered")
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		if errors.Is(err, driven.ErrPasswordTooLong) {
			return nil, Validation(invalidDataMessage, FieldError{
				Field:   "password",
				Message: "password must be at most 72 bytes",
			})
		}
		return nil, fmt.Errorf("signup: %w", err)
	}

	user, err := s.users.Create(ctx, model.User{
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: hash,
	})
	if err != nil {
		if errors.Is(err, driven.ErrUserAlreadyExists) {
			return nil, Conflict("email already registered")
		}
		return nil, fmt.Errorf("signup: %w", err)
	}

	s.logger.InfoContext(ctx, "user signed up", "user_id", user.ID)

	return user, nil
}

// Login verifies credentials and issues a session token. Unknown emails and
// wrong passwords produce the same error, and both paths run one password
// comparison.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	in.Email = normalizeEmail(in.Email)

	if err := validateStruct(in); err != nil {
		return nil, err
	}

	user, err := s.users.GetByEmail(ctx, in.Email)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}

	if user == nil {
		s.hasher.Verify(in.Password, s.dummyHash)
		s.logger.InfoContext(ctx, "login failed", "reason", "unknown email")
		return nil, Unauthorized(invalidCredentialsMessage)
	}

	if !s.hasher.Verify(in.Password, user.PasswordHash) {
		s.logger.InfoContext(ctx, "login failed", "reason", "wrong password", "user_id", user.ID)
		return nil, Unauthorized(invalidCredentialsMessage)
	}

	token, expiresAt, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}

	return &LoginResult{Token: token, ExpiresAt: expiresAt, User: *user}, nil
}

// CurrentUser returns the user behind an authenticated request. A token for
// a user that no longer exists is treated as unauthorized.
func (s *AuthService) CurrentUser(ctx context.Context, userID int64) (*model.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("current user: %w", err)
	}
	if user == nil {
		s.logger.WarnContext(ctx, "token subject no longer exists", "user_id", userID)
		return nil, Unauthorized("unauthorized")
	}
	return user, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
