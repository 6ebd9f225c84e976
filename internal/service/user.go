package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/templui/accounts/internal/model"
	"github.com/templui/accounts/internal/repository"
	"github.com/templui/accounts/internal/validation"
)

var (
	ErrEmailAlreadyExists = errors.New("email already exists")
	ErrUserInactive       = errors.New("user is inactive")
)

type UserService struct {
	userRepository repository.UserRepository
}

func NewUserService(userRepository repository.UserRepository) *UserService {
	return &UserService{
		userRepository: userRepository,
	}
}

// ActiveByID loads a user for an authenticated request. Deactivated
// accounts are treated like missing ones by callers.
func (s *UserService) ActiveByID(ctx context.Context, id string) (*model.User, error) {
	user, err := s.userRepository.ByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrUserInactive
	}
	return user, nil
}

func (s *UserService) List(ctx context.Context) ([]*model.User, error) {
	return s.userRepository.List(ctx)
}

// CreateSuperuser creates an active staff superuser with no linked Google
// account. The Google subject is attached on its first federated login.
func (s *UserService) CreateSuperuser(ctx context.Context, email, name string) (*model.User, error) {
	email = validation.NormalizeEmail(email)

	err := validation.ValidateEmail(email)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidEmail, err)
	}

	name = strings.TrimSpace(name)
	if name == "" {
		name = validation.DisplayName(email)
	}
	err = validation.ValidateName(name)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		ID:          uuid.New().String(),
		Email:       email,
		Name:        name,
		IsActive:    true,
		IsStaff:     true,
		IsSuperuser: true,
		CreatedAt:   time.Now().UTC(),
	}

	err = s.userRepository.Create(ctx, user)
	if errors.Is(err, repository.ErrDuplicateEmail) {
		return nil, ErrEmailAlreadyExists
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	slog.Info("superuser created", "user_id", user.ID, "email", user.Email)
	return user, nil
}
