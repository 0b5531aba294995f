package service

import (
	"context"
	"errors"
	"testing"

	"recharge-store/internal/core/domain"
	"recharge-store/internal/core/ports/mocks"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"
)

func TestAuditService_Log_PersistsToRepo(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockRepo := mocks.NewMockAuditRepository(ctrl)
	svc := NewAuditService(mockRepo, zerolog.Nop())

	userID := uuid.New()
	var got *domain.AuditLog
	mockRepo.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, entry *domain.AuditLog) error {
			got = entry
			return nil
		},
	)

	svc.Log(context.Background(), &domain.AuditLog{
		UserID:       &userID,
		Action:       domain.AuditActionDeposit,
		ResourceType: "wallet",
		IPAddress:    "127.0.0.1",
	})
	svc.Wait()

	if assert.NotNil(t, got) {
		assert.Equal(t, domain.AuditActionDeposit, got.Action)
		assert.NotEqual(t, uuid.Nil, got.ID, "id is assigned")
		assert.False(t, got.CreatedAt.IsZero(), "timestamp is assigned")
	}
}

func TestAuditService_Log_RepoErrorIsSwallowed(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockRepo := mocks.NewMockAuditRepository(ctrl)
	svc := NewAuditService(mockRepo, zerolog.Nop())

	mockRepo.EXPECT().Create(gomock.Any(), gomock.Any()).Return(errors.New("db down"))

	svc.Log(context.Background(), &domain.AuditLog{Action: domain.AuditActionLogin, ResourceType: "session"})
	svc.Wait()
}

func TestAuditService_Log_NilRepo(t *testing.T) {
	svc := NewAuditService(nil, zerolog.Nop())

	svc.Log(context.Background(), &domain.AuditLog{
		Action:       domain.AuditActionLogin,
		ResourceType: "session",
		IPAddress:    "127.0.0.1",
	})
	svc.Wait()
}
