package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tranvananh112/Messenger/internal/model"
	"github.com/tranvananh112/Messenger/internal/repo"
)

var (
	// ErrInvalidCredential covers unknown phone, wrong password and
	// invalid or expired bearer tokens. Callers must not distinguish
	// the cases to avoid leaking which phones are registered.
	ErrInvalidCredential = errors.New("invalid credentials")
	// ErrRefreshTokenReuseDetected is returned when a revoked refresh
	// token is presented again; all of the user's sessions are revoked.
	ErrRefreshTokenReuseDetected = errors.New("refresh token reuse detected")
)

// Service orchestrates credential operations: registration, login, token
// rotation and bearer verification. Its Verify method is the identity
// verifier consumed by the realtime layer.
type Service struct {
	jwtService  *JWTService
	userRepo    repo.UserRepo
	refreshRepo repo.RefreshRepo
	refreshTTL  time.Duration
}

// NewService creates a new auth service
func NewService(jwtService *JWTService, userRepo repo.UserRepo, refreshRepo repo.RefreshRepo, refreshTTL time.Duration) *Service {
	return &Service{
		jwtService:  jwtService,
		userRepo:    userRepo,
		refreshRepo: refreshRepo,
		refreshTTL:  refreshTTL,
	}
}

// Register creates a new user with a bcrypt-hashed password.
func (s *Service) Register(ctx context.Context, name, phone, password string) (model.User, error) {
	name = strings.TrimSpace(name)
	phone = strings.TrimSpace(phone)
	if name == "" || phone == "" {
		return model.User{}, fmt.Errorf("name and phone are required")
	}

	hash, err := HashPassword(password)
	if err != nil {
		return model.User{}, err
	}

	user, err := s.userRepo.Create(ctx, name, phone, hash)
	if err != nil {
		if errors.Is(err, repo.ErrDuplicatePhone) {
			return model.User{}, err
		}
		return model.User{}, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

// Login verifies phone+password and issues an access/refresh token pair.
func (s *Service) Login(ctx context.Context, phone, password string) (model.User, string, string, error) {
	user, err := s.userRepo.GetByPhone(ctx, strings.TrimSpace(phone))
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return model.User{}, "", "", ErrInvalidCredential
		}
		return model.User{}, "", "", fmt.Errorf("failed to look up user: %w", err)
	}

	if !CheckPassword(user.PasswordHash, password) {
		return model.User{}, "", "", ErrInvalidCredential
	}

	accessToken, err := s.jwtService.SignAccessToken(user.ID, user.Phone)
	if err != nil {
		return model.User{}, "", "", fmt.Errorf("failed to generate token: %w", err)
	}

	refreshToken, err := s.createRefreshSession(ctx, user)
	if err != nil {
		return model.User{}, "", "", err
	}

	return user, accessToken, refreshToken, nil
}

// Refresh rotates a refresh token: the presented token is revoked, a new
// session replaces it, and a fresh access token is issued. Presenting an
// already-revoked token is treated as theft and revokes every session of
// the affected user.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (string, string, error) {
	tokenHash := HashRefreshToken(refreshToken)

	session, err := s.refreshRepo.FindByTokenHash(ctx, tokenHash)
	if err != nil {
		// Reuse detection: a revoked session means this token was already rotated.
		if prior, findErr := s.refreshRepo.FindByTokenHashIncludeRevoked(ctx, tokenHash); findErr == nil && prior.RevokedAt != nil {
			_ = s.refreshRepo.RevokeAllForUser(ctx, prior.UserID)
			return "", "", ErrRefreshTokenReuseDetected
		}
		return "", "", ErrInvalidCredential
	}

	user, err := s.userRepo.GetByID(ctx, session.UserID)
	if err != nil {
		return "", "", ErrInvalidCredential
	}

	newToken, newHash, err := GenerateRefreshToken()
	if err != nil {
		return "", "", fmt.Errorf("failed to generate refresh token: %w", err)
	}
	newSessionID, err := s.refreshRepo.Create(ctx, user.ID, newHash, time.Now().Add(s.refreshTTL))
	if err != nil {
		return "", "", fmt.Errorf("failed to create refresh session: %w", err)
	}
	if err := s.refreshRepo.RevokeAndSetReplacedBy(ctx, session.ID, newSessionID); err != nil {
		return "", "", fmt.Errorf("failed to rotate refresh session: %w", err)
	}

	accessToken, err := s.jwtService.SignAccessToken(user.ID, user.Phone)
	if err != nil {
		return "", "", fmt.Errorf("failed to generate token: %w", err)
	}

	return accessToken, newToken, nil
}

// Logout revokes the presented refresh token's session.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	session, err := s.refreshRepo.FindByTokenHash(ctx, HashRefreshToken(refreshToken))
	if err != nil {
		return ErrInvalidCredential
	}
	return s.refreshRepo.Revoke(ctx, session.ID)
}

// Verify resolves a bearer credential to its user. This is the identity
// verifier contract: the realtime layer calls it to bind a connection to
// an authenticated identity.
func (s *Service) Verify(ctx context.Context, credential string) (model.User, error) {
	claims, err := s.jwtService.VerifyToken(credential)
	if err != nil {
		return model.User{}, ErrInvalidCredential
	}
	user, err := s.userRepo.GetByID(ctx, claims.UserID)
	if err != nil {
		return model.User{}, ErrInvalidCredential
	}
	return user, nil
}

func (s *Service) createRefreshSession(ctx context.Context, user model.User) (string, error) {
	token, hash, err := GenerateRefreshToken()
	if err != nil {
		return "", fmt.Errorf("failed to generate refresh token: %w", err)
	}
	if _, err := s.refreshRepo.Create(ctx, user.ID, hash, time.Now().Add(s.refreshTTL)); err != nil {
		return "", fmt.Errorf("failed to create refresh session: %w", err)
	}
	return token, nil
}
