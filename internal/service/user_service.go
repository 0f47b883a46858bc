package service

import (
	"context"
	"strings"
	"unicode/utf8"

	"devlend/internal/domain"
	"devlend/internal/models"

	"github.com/rs/zerolog"
)

const maxNameLength = 100

type UserService struct {
	repo   domain.UserRepository
	logger *zerolog.Logger
}

func NewUserService(repo domain.UserRepository, logger *zerolog.Logger) *UserService {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &UserService{repo: repo, logger: logger}
}

// EnsureUser creates the actor's profile on first sight and refreshes email
// and role from the identity token afterwards. name is only used while the
// profile has none.
func (s *UserService) EnsureUser(ctx context.Context, actor models.Actor, name string) (*models.User, error) {
	if err := requireUser(actor); err != nil {
		return nil, err
	}
	role := actor.Role
	if role == "" {
		role = models.RoleUser
	}
	u, err := s.repo.UpsertUser(ctx, &models.User{
		ID:    actor.UserID,
		Email: actor.Email,
		Name:  strings.TrimSpace(name),
		Role:  role,
	})
	if err != nil {
		return nil, storeError("create user profile", err, "")
	}
	return u, nil
}

func (s *UserService) Profile(ctx context.Context, actor models.Actor) (*models.User, error) {
	if err := requireUser(actor); err != nil {
		return nil, err
	}
	u, err := s.repo.GetUser(ctx, actor.UserID)
	if err != nil {
		return nil, storeError("get profile", err, "Profile not found.")
	}
	return u, nil
}

// UpdateName sets the display name. An empty name clears it.
func (s *UserService) UpdateName(ctx context.Context, actor models.Actor, name string) (*models.User, error) {
	if err := requireUser(actor); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if utf8.RuneCountInString(name) > maxNameLength {
		return nil, domain.Validation("Name must be at most %d characters.", maxNameLength)
	}
	if err := s.repo.UpdateUserName(ctx, actor.UserID, name); err != nil {
		return nil, storeError("update profile", err, "Profile not found.")
	}
	s.logger.Debug().Str("user_id", actor.UserID).Msg("profile name updated")
	return s.Profile(ctx, actor)
}
