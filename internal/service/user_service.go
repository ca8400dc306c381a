package service

import (
	"context"
	"fmt"
	"net/mail"
	"strings"

	"espacio/internal/models"

	"github.com/rs/zerolog"
)

// UserDirectory is the storage slice behind user administration.
type UserDirectory interface {
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	GetAllUsers(ctx context.Context) ([]*models.User, error)
	CreateOrUpdateUser(ctx context.Context, user *models.User) error
	SetUserRole(ctx context.Context, id int64, role models.Role) error
}

// UserService manages the user directory. Every operation is admin
// only: regular users never shape roles or enumerate other accounts.
type UserService struct {
	users  UserDirectory
	logger *zerolog.Logger
}

func NewUserService(users UserDirectory, logger *zerolog.Logger) *UserService {
	return &UserService{users: users, logger: logger}
}

// ListUsers returns the full directory, newest first.
func (s *UserService) ListUsers(ctx context.Context, actorID int64) ([]*models.User, error) {
	if err := s.requireAdmin(ctx, actorID); err != nil {
		return nil, err
	}
	return s.users.GetAllUsers(ctx)
}

// UpsertUser registers a user or updates an existing one, matched by
// email. An empty role defaults to member.
func (s *UserService) UpsertUser(ctx context.Context, actorID int64, user *models.User) (*models.User, error) {
	if err := s.requireAdmin(ctx, actorID); err != nil {
		return nil, err
	}

	user.Name = strings.TrimSpace(user.Name)
	user.Email = strings.TrimSpace(user.Email)
	if user.Name == "" {
		return nil, &ValidationError{Rule: RuleUserName, Message: "name must not be empty"}
	}
	if _, err := mail.ParseAddress(user.Email); err != nil {
		return nil, &ValidationError{Rule: RuleUserEmail, Message: fmt.Sprintf("invalid email %q", user.Email)}
	}
	if user.Role == "" {
		user.Role = models.RoleMember
	}
	if !user.Role.Valid() {
		return nil, &ValidationError{Rule: RuleUserRole, Message: fmt.Sprintf("unknown role %q", user.Role)}
	}

	if err := s.users.CreateOrUpdateUser(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info().Int64("user_id", user.ID).Str("role", string(user.Role)).Int64("actor_id", actorID).Msg("user upserted")
	return user, nil
}

// SetRole promotes or demotes a user.
func (s *UserService) SetRole(ctx context.Context, actorID, userID int64, role models.Role) (*models.User, error) {
	if err := s.requireAdmin(ctx, actorID); err != nil {
		return nil, err
	}
	if !role.Valid() {
		return nil, &ValidationError{Rule: RuleUserRole, Message: fmt.Sprintf("unknown role %q", role)}
	}

	if err := s.users.SetUserRole(ctx, userID, role); err != nil {
		return nil, err
	}

	s.logger.Info().Int64("user_id", userID).Str("role", string(role)).Int64("actor_id", actorID).Msg("user role changed")
	return s.users.GetUserByID(ctx, userID)
}

func (s *UserService) requireAdmin(ctx context.Context, actorID int64) error {
	actor, err := s.users.GetUserByID(ctx, actorID)
	if err != nil {
		return err
	}
	if !CanListAll(actor) {
		return &AuthorizationError{ActorID: actorID, Action: models.ActionManageUsers}
	}
	return nil
}
