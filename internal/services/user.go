package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/paneladmin/apiserver/internal/mq"
	"github.com/paneladmin/apiserver/internal/password"
	"github.com/paneladmin/apiserver/internal/store"
	"github.com/paneladmin/apiserver/types"
	"go.uber.org/zap"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	List(ctx context.Context) ([]types.User, error)
	GetByID(ctx context.Context, id int) (types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	Update(ctx context.Context, user types.User) (types.User, error)
	Delete(ctx context.Context, id int) error
}

// EventPublisher announces user lifecycle changes.
type EventPublisher interface {
	PublishUserEvent(ctx context.Context, eventType string, userID int) error
}

// UserFields are the caller-editable attributes of a user.
type UserFields struct {
	Email     string
	Name      string
	Activity  int
	Lang      string
	ValidTill time.Time
}

// CreateUserInput is everything needed to register a user.
type CreateUserInput struct {
	UserFields
	Password string
}

// UserService encapsulates user use-cases.
type UserService struct {
	repo   UserRepository
	hasher password.Hasher
	events EventPublisher
	logger *zap.Logger
}

// UserServiceOption configures optional collaborators.
type UserServiceOption func(*UserService)

// WithEvents publishes lifecycle events through publisher.
func WithEvents(publisher EventPublisher) UserServiceOption {
	return func(s *UserService) {
		s.events = publisher
	}
}

// WithLogger sets the logger used for non-fatal failures.
func WithLogger(logger *zap.Logger) UserServiceOption {
	return func(s *UserService) {
		s.logger = logger
	}
}

func NewUserService(repo UserRepository, hasher password.Hasher, opts ...UserServiceOption) *UserService {
	s := &UserService{
		repo:   repo,
		hasher: hasher,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *UserService) List(ctx context.Context) ([]types.User, error) {
	return s.repo.List(ctx)
}

func (s *UserService) Get(ctx context.Context, id int) (types.User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, ErrNotFound
		}
		return types.User{}, err
	}
	return user, nil
}

// Create hashes the password and persists a new user with the default role.
func (s *UserService) Create(ctx context.Context, input CreateUserInput) (types.User, error) {
	user := types.User{Roles: []string{types.DefaultRole}}
	applyFields(&user, input.UserFields)

	hash, err := s.hasher.Hash(user, input.Password)
	if err != nil {
		return types.User{}, invalid(fmt.Errorf("hash password: %w", err))
	}
	user.PasswordHash = hash

	created, err := s.repo.Create(ctx, user)
	if err != nil {
		return types.User{}, invalid(fmt.Errorf("create user: %w", err))
	}

	s.publish(ctx, mq.UserCreated, created.ID)
	return created, nil
}

// Edit overwrites the editable fields of a loaded user and persists it.
// Password, roles, register date and id are kept as loaded.
func (s *UserService) Edit(ctx context.Context, user types.User, fields UserFields) (types.User, error) {
	applyFields(&user, fields)

	updated, err := s.repo.Update(ctx, user)
	if err != nil {
		return types.User{}, invalid(fmt.Errorf("update user %d: %w", user.ID, err))
	}

	s.publish(ctx, mq.UserEdited, updated.ID)
	return updated, nil
}

// Delete removes the user permanently.
func (s *UserService) Delete(ctx context.Context, id int) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}

	s.publish(ctx, mq.UserDeleted, id)
	return nil
}

func (s *UserService) publish(ctx context.Context, eventType string, userID int) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishUserEvent(ctx, eventType, userID); err != nil {
		s.logger.Warn("failed to publish user event",
			zap.String("event_type", eventType),
			zap.Int("user_id", userID),
			zap.Error(err),
		)
	}
}

func applyFields(user *types.User, fields UserFields) {
	user.Email = fields.Email
	user.Name = fields.Name
	user.Activity = fields.Activity
	user.Lang = fields.Lang
	user.ValidTill = fields.ValidTill.UTC()
}

func invalid(cause error) error {
	return fmt.Errorf("%w: %w", ErrInvalidRequest, cause)
}
