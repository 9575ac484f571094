// Package users administers library members and administrators.
package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"biblioteca/internal/auth"
	"biblioteca/internal/keylock"
	"biblioteca/internal/models"
	"biblioteca/internal/storage"
)

// NewUser is the input for creating a user
type NewUser struct {
	ID       string      `json:"id" binding:"required"`
	Name     string      `json:"name" binding:"required"`
	Surname1 string      `json:"surname1"`
	Surname2 string      `json:"surname2"`
	Password string      `json:"password" binding:"required"`
	Role     models.Role `json:"role"`
}

// Profile holds the self-service editable fields of a user
type Profile struct {
	Name     string `json:"name" binding:"required"`
	Surname1 string `json:"surname1"`
	Surname2 string `json:"surname2"`
}

// Service implements user administration rules
type Service struct {
	store        storage.Users
	locks        *keylock.Locker
	superAdminID string
	now          func() time.Time
	logger       *zap.Logger
}

// NewService creates a user service; superAdminID names the bootstrap
// administrator, the only one allowed to create other administrators
func NewService(store storage.Users, locks *keylock.Locker, superAdminID string, logger *zap.Logger) *Service {
	return &Service{
		store:        store,
		locks:        locks,
		superAdminID: superAdminID,
		now:          time.Now,
		logger:       logger,
	}
}

// Create registers a new user on behalf of an administrator
func (s *Service) Create(ctx context.Context, caller models.Identity, in NewUser) (*models.User, error) {
	if !caller.IsAdministrator() {
		return nil, fmt.Errorf("only administrators create users: %w", models.ErrForbidden)
	}

	in.ID = strings.TrimSpace(in.ID)
	if in.ID == "" || strings.TrimSpace(in.Name) == "" {
		return nil, fmt.Errorf("id and name are required: %w", models.ErrInvalidInput)
	}
	if in.Role == "" {
		in.Role = models.RoleStandard
	}
	if !in.Role.Valid() {
		return nil, fmt.Errorf("unknown role %q: %w", in.Role, models.ErrInvalidInput)
	}
	if in.Role == models.RoleAdministrator && caller.UserID != s.superAdminID {
		return nil, fmt.Errorf("only the super administrator creates administrators: %w", models.ErrForbidden)
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock("user:" + in.ID)
	defer unlock()

	user := models.User{
		ID:           in.ID,
		Name:         strings.TrimSpace(in.Name),
		Surname1:     strings.TrimSpace(in.Surname1),
		Surname2:     strings.TrimSpace(in.Surname2),
		PasswordHash: hash,
		Role:         in.Role,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("User created",
		zap.String("user_id", user.ID),
		zap.String("role", string(user.Role)),
		zap.String("created_by", caller.UserID),
	)
	return &user, nil
}

// Get returns a user; standard users may only read themselves
func (s *Service) Get(ctx context.Context, caller models.Identity, id string) (*models.User, error) {
	if id != caller.UserID && !caller.IsAdministrator() {
		return nil, fmt.Errorf("cannot read another user: %w", models.ErrForbidden)
	}
	return s.store.GetUser(ctx, id)
}

// List returns every user
func (s *Service) List(ctx context.Context) ([]models.User, error) {
	return s.store.ListUsers(ctx)
}

// UpdateProfile changes the name and surnames of a user
func (s *Service) UpdateProfile(ctx context.Context, id string, profile Profile) (*models.User, error) {
	if strings.TrimSpace(profile.Name) == "" {
		return nil, fmt.Errorf("name is required: %w", models.ErrInvalidInput)
	}

	unlock := s.locks.Lock("user:" + id)
	defer unlock()

	user, err := s.store.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	user.Name = strings.TrimSpace(profile.Name)
	user.Surname1 = strings.TrimSpace(profile.Surname1)
	user.Surname2 = strings.TrimSpace(profile.Surname2)
	if err := s.store.UpdateUser(ctx, *user); err != nil {
		return nil, err
	}

	s.logger.Info("User profile updated", zap.String("user_id", id))
	return user, nil
}

// Delete removes a user on behalf of an administrator
func (s *Service) Delete(ctx context.Context, caller models.Identity, id string) error {
	if !caller.IsAdministrator() {
		return fmt.Errorf("only administrators delete users: %w", models.ErrForbidden)
	}
	if id == s.superAdminID {
		return fmt.Errorf("the super administrator cannot be deleted: %w", models.ErrForbidden)
	}

	unlock := s.locks.Lock("user:" + id)
	defer unlock()

	if err := s.store.DeleteUser(ctx, id); err != nil {
		return err
	}

	s.logger.Info("User deleted", zap.String("user_id", id), zap.String("deleted_by", caller.UserID))
	return nil
}

// Bootstrap creates the super administrator when it does not exist yet.
// It reports whether a user was created.
func (s *Service) Bootstrap(ctx context.Context, name, password string) (bool, error) {
	unlock := s.locks.Lock("user:" + s.superAdminID)
	defer unlock()

	_, err := s.store.GetUser(ctx, s.superAdminID)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return false, err
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return false, err
	}
	if name == "" {
		name = "Administrador"
	}
	admin := models.User{
		ID:           s.superAdminID,
		Name:         name,
		PasswordHash: hash,
		Role:         models.RoleAdministrator,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.store.CreateUser(ctx, admin); err != nil {
		return false, err
	}

	s.logger.Info("Super administrator created", zap.String("user_id", admin.ID))
	return true, nil
}
