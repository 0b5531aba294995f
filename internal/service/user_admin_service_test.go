package service

import (
	"context"
	"testing"

	"recharge-store/internal/core/domain"
	"recharge-store/internal/core/ports"
	"recharge-store/internal/core/ports/mocks"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func setupUserAdminService(t *testing.T) (*UserAdminServiceImpl, *mocks.MockUserRepository) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockUserRepository(ctrl)
	return NewUserAdminService(repo, zerolog.Nop()), repo
}

func TestUserAdminService_ListUsers_NormalizesPage(t *testing.T) {
	svc, repo := setupUserAdminService(t)
	ctx := context.Background()

	want := ports.UserFilter{Search: "ali", PageRequest: ports.PageRequest{Page: 1, Limit: 100}}
	repo.EXPECT().List(ctx, want).Return([]domain.User{{Username: "ali"}}, int64(1), nil)

	page, err := svc.ListUsers(ctx, ports.UserFilter{Search: " ali ", PageRequest: ports.PageRequest{Page: 0, Limit: 500}})
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.Total)
	assert.Len(t, page.Items, 1)
	assert.Equal(t, 100, page.Page.Limit)
}

func TestUserAdminService_SetActive(t *testing.T) {
	svc, repo := setupUserAdminService(t)
	ctx := context.Background()
	id := uuid.New()

	repo.EXPECT().GetByID(ctx, id).Return(&domain.User{ID: id, IsActive: true}, nil)
	repo.EXPECT().SetActive(ctx, id, false).Return(nil)

	user, err := svc.SetActive(ctx, id, false)
	require.NoError(t, err)
	assert.False(t, user.IsActive)
}

func TestUserAdminService_SetRole(t *testing.T) {
	ctx := context.Background()
	id := uuid.New()

	t.Run("valid role", func(t *testing.T) {
		svc, repo := setupUserAdminService(t)
		repo.EXPECT().GetByID(ctx, id).Return(&domain.User{ID: id, Role: domain.RoleUser}, nil)
		repo.EXPECT().SetRole(ctx, id, domain.RoleModerator).Return(nil)

		user, err := svc.SetRole(ctx, id, domain.RoleModerator)
		require.NoError(t, err)
		assert.Equal(t, domain.RoleModerator, user.Role)
	})

	t.Run("unknown role", func(t *testing.T) {
		svc, _ := setupUserAdminService(t)
		_, err := svc.SetRole(ctx, id, domain.UserRole("root"))
		assertAppError(t, err, "VAL_001")
	})

	t.Run("missing user", func(t *testing.T) {
		svc, repo := setupUserAdminService(t)
		repo.EXPECT().GetByID(ctx, id).Return(nil, nil)
		_, err := svc.SetRole(ctx, id, domain.RoleAdmin)
		assertAppError(t, err, "RES_001")
	})
}

func TestUserAdminService_PromoteByEmail(t *testing.T) {
	svc, repo := setupUserAdminService(t)
	ctx := context.Background()
	id := uuid.New()

	repo.EXPECT().GetByEmail(ctx, "boss@store.sa").Return(&domain.User{ID: id}, nil)
	repo.EXPECT().GetByID(ctx, id).Return(&domain.User{ID: id, Role: domain.RoleUser}, nil)
	repo.EXPECT().SetRole(ctx, id, domain.RoleAdmin).Return(nil)

	user, err := svc.PromoteByEmail(ctx, "boss@store.sa", domain.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, user.Role)
}
