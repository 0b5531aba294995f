package service

import (
	"context"
	"fmt"
	"strings"

	"recharge-store/internal/core/domain"
	"recharge-store/internal/core/ports"
	"recharge-store/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// UserAdminServiceImpl implements ports.UserAdminService.
type UserAdminServiceImpl struct {
	userRepo ports.UserRepository
	log      zerolog.Logger
}

func NewUserAdminService(userRepo ports.UserRepository, log zerolog.Logger) *UserAdminServiceImpl {
	return &UserAdminServiceImpl{userRepo: userRepo, log: log}
}

func (s *UserAdminServiceImpl) ListUsers(ctx context.Context, filter ports.UserFilter) (*ports.UserPage, error) {
	filter.PageRequest = filter.PageRequest.Normalize(20, 100)
	filter.Search = strings.TrimSpace(filter.Search)

	users, total, err := s.userRepo.List(ctx, filter)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list users: %w", err))
	}
	return &ports.UserPage{Items: users, Total: total, Page: filter.PageRequest}, nil
}

func (s *UserAdminServiceImpl) SetActive(ctx context.Context, id uuid.UUID, active bool) (*domain.User, error) {
	user, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.userRepo.SetActive(ctx, id, active); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("set user active: %w", err))
	}
	user.IsActive = active

	s.log.Info().Str("user_id", id.String()).Bool("active", active).Msg("user status changed")
	return user, nil
}

func (s *UserAdminServiceImpl) SetRole(ctx context.Context, id uuid.UUID, role domain.UserRole) (*domain.User, error) {
	if !role.Valid() {
		return nil, apperror.Validation(fmt.Sprintf("unknown role %q", role))
	}
	user, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.userRepo.SetRole(ctx, id, role); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("set user role: %w", err))
	}
	user.Role = role

	s.log.Info().Str("user_id", id.String()).Str("role", string(role)).Msg("user role changed")
	return user, nil
}

// PromoteByEmail is the bootstrap path for the first admin account.
func (s *UserAdminServiceImpl) PromoteByEmail(ctx context.Context, email string, role domain.UserRole) (*domain.User, error) {
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("find user: %w", err))
	}
	if user == nil {
		return nil, apperror.ErrNotFound("user")
	}
	return s.SetRole(ctx, user.ID, role)
}

func (s *UserAdminServiceImpl) get(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("find user: %w", err))
	}
	if user == nil {
		return nil, apperror.ErrNotFound("user")
	}
	return user, nil
}
