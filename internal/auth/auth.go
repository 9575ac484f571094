// Package auth issues and validates bearer tokens and enforces roles.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"biblioteca/internal/keylock"
	"biblioteca/internal/models"
	"biblioteca/internal/storage"
)

// Issuer is the iss claim of every token
const Issuer = "biblioteca"

// Claims are the JWT claims carried by an access token
type Claims struct {
	Role models.Role `json:"role"`
	jwt.RegisteredClaims
}

// Service authenticates users against the credential store
type Service struct {
	users   storage.Users
	logins  storage.LoginLog
	locks   *keylock.Locker
	secret  []byte
	ttl     time.Duration
	revoked *revocationList
	now     func() time.Time
	logger  *zap.Logger
}

// NewService creates an auth service signing tokens with secret
func NewService(users storage.Users, logins storage.LoginLog, locks *keylock.Locker, secret []byte, ttl time.Duration, logger *zap.Logger) *Service {
	return &Service{
		users:   users,
		logins:  logins,
		locks:   locks,
		secret:  secret,
		ttl:     ttl,
		revoked: newRevocationList(),
		now:     time.Now,
		logger:  logger,
	}
}

// Login verifies the credentials, records the login and issues a token
func (s *Service) Login(ctx context.Context, identifier, password, remoteAddr string) (models.Token, error) {
	user, err := s.users.GetUser(ctx, identifier)
	if errors.Is(err, models.ErrNotFound) {
		s.logger.Info("Login rejected: unknown user", zap.String("user_id", identifier))
		return models.Token{}, models.ErrInvalidCredentials
	}
	if err != nil {
		return models.Token{}, fmt.Errorf("failed to load user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.logger.Info("Login rejected: wrong password", zap.String("user_id", identifier))
		return models.Token{}, models.ErrInvalidCredentials
	}

	now := s.now()
	expiresAt := now.Add(s.ttl)
	claims := Claims{
		Role: user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   user.ID,
			Issuer:    Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return models.Token{}, fmt.Errorf("failed to sign token: %w", err)
	}

	record := models.LoginRecord{
		ID:         uuid.NewString(),
		UserID:     user.ID,
		LoggedAt:   now.UTC(),
		RemoteAddr: remoteAddr,
	}
	if err := s.logins.AppendLogin(ctx, record); err != nil {
		return models.Token{}, fmt.Errorf("failed to record login: %w", err)
	}

	s.logger.Info("User logged in", zap.String("user_id", user.ID), zap.String("role", string(user.Role)))
	return models.Token{Value: signed, ExpiresAt: expiresAt}, nil
}

// Logout revokes the token until it would have expired
func (s *Service) Logout(ctx context.Context, token string) error {
	claims, err := s.parse(token)
	if err != nil {
		return err
	}
	s.revoked.revoke(claims.ID, claims.ExpiresAt.Time, s.now())
	s.logger.Info("User logged out", zap.String("user_id", claims.Subject))
	return nil
}

// Authorize validates the token and checks that its role satisfies required
func (s *Service) Authorize(ctx context.Context, token string, required models.Role) (models.Identity, error) {
	claims, err := s.parse(token)
	if err != nil {
		return models.Identity{}, err
	}

	identity := models.Identity{
		UserID:    claims.Subject,
		Role:      claims.Role,
		TokenID:   claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}
	if required == models.RoleAdministrator && !identity.IsAdministrator() {
		return identity, fmt.Errorf("administrator role required: %w", models.ErrForbidden)
	}
	return identity, nil
}

// ChangePassword replaces the password after checking the current one
func (s *Service) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	unlock := s.locks.Lock("user:" + userID)
	defer unlock()

	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(oldPassword)); err != nil {
		return fmt.Errorf("current password does not match: %w", models.ErrInvalidCredentials)
	}

	hash, err := HashPassword(newPassword)
	if err != nil {
		return err
	}
	user.PasswordHash = hash
	if err := s.users.UpdateUser(ctx, *user); err != nil {
		return err
	}

	s.logger.Info("Password changed", zap.String("user_id", userID))
	return nil
}

// parse verifies signature, expiry and revocation of a token
func (s *Service) parse(token string) (*Claims, error) {
	if token == "" {
		return nil, fmt.Errorf("missing token: %w", models.ErrUnauthenticated)
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !parsed.Valid {
		s.logger.Debug("Token rejected", zap.Error(err))
		return nil, fmt.Errorf("invalid token: %w", models.ErrUnauthenticated)
	}
	if !claims.Role.Valid() || claims.Subject == "" || claims.ID == "" {
		return nil, fmt.Errorf("incomplete token claims: %w", models.ErrUnauthenticated)
	}
	if s.revoked.contains(claims.ID) {
		return nil, fmt.Errorf("token revoked: %w", models.ErrUnauthenticated)
	}
	return claims, nil
}
