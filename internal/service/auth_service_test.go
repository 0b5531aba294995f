package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"recharge-store/internal/core/domain"
	"recharge-store/internal/core/ports"
	"recharge-store/internal/core/ports/mocks"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type authTestDeps struct {
	svc        *AuthServiceImpl
	userRepo   *mocks.MockUserRepository
	walletRepo *mocks.MockWalletRepository
	hashSvc    *mocks.MockHashService
	tokenSvc   *mocks.MockTokenService
	transactor *mocks.MockDBTransactor
}

func setupAuthService(t *testing.T) *authTestDeps {
	ctrl := gomock.NewController(t)
	d := &authTestDeps{
		userRepo:   mocks.NewMockUserRepository(ctrl),
		walletRepo: mocks.NewMockWalletRepository(ctrl),
		hashSvc:    mocks.NewMockHashService(ctrl),
		tokenSvc:   mocks.NewMockTokenService(ctrl),
		transactor: mocks.NewMockDBTransactor(ctrl),
	}
	d.svc = NewAuthService(d.userRepo, d.walletRepo, d.hashSvc, d.tokenSvc, d.transactor, "SAR", zerolog.Nop())
	d.svc.now = fixedClock
	return d
}

func TestAuthService_Register_Success(t *testing.T) {
	d := setupAuthService(t)
	ctx := context.Background()
	tx := &mockTx{}
	expiry := fixedNow.Add(720 * time.Hour)

	req := ports.RegisterRequest{
		Username: "player_one",
		Email:    "  Player@Example.com ",
		Password: "secret123",
		Phone:    "0512345678",
	}

	d.userRepo.EXPECT().ExistsByEmailOrUsername(ctx, "player@example.com", "player_one").Return(false, false, nil)
	d.hashSvc.EXPECT().Hash("secret123").Return("$argon2id$hashed", nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.userRepo.EXPECT().Create(ctx, tx, gomock.Any()).DoAndReturn(func(_ context.Context, _ pgx.Tx, u *domain.User) error {
		assert.Equal(t, "player@example.com", u.Email)
		assert.Equal(t, domain.RoleUser, u.Role)
		assert.True(t, u.IsActive)
		assert.Equal(t, "$argon2id$hashed", u.PasswordHash)
		return nil
	})
	d.walletRepo.EXPECT().Create(ctx, tx, gomock.Any()).DoAndReturn(func(_ context.Context, _ pgx.Tx, w *domain.Wallet) error {
		assert.Equal(t, "SAR", w.Currency)
		assert.True(t, w.Balance.IsZero())
		return nil
	})
	d.tokenSvc.EXPECT().Generate(gomock.Any(), domain.RoleUser).Return("jwt-token", expiry, nil)

	res, err := d.svc.Register(ctx, req)
	require.NoError(t, err)
	assert.True(t, tx.committed)
	assert.Equal(t, "jwt-token", res.Token)
	assert.Equal(t, expiry, res.ExpiresAt)
	assert.Equal(t, "player_one", res.User.Username)
	assert.NotEqual(t, uuid.Nil, res.User.ID)
}

func TestAuthService_Register_Duplicates(t *testing.T) {
	tests := []struct {
		name          string
		emailTaken    bool
		usernameTaken bool
		wantCode      string
	}{
		{"email taken", true, false, "USR_001"},
		{"username taken", false, true, "USR_002"},
		{"both taken reports email", true, true, "USR_001"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := setupAuthService(t)
			ctx := context.Background()
			d.userRepo.EXPECT().ExistsByEmailOrUsername(ctx, "a@b.com", "abc").Return(tt.emailTaken, tt.usernameTaken, nil)

			_, err := d.svc.Register(ctx, ports.RegisterRequest{Username: "abc", Email: "a@b.com", Password: "secret123"})
			assertAppError(t, err, tt.wantCode)
		})
	}
}

func TestAuthService_Register_UniqueViolationRace(t *testing.T) {
	d := setupAuthService(t)
	ctx := context.Background()
	tx := &mockTx{}

	d.userRepo.EXPECT().ExistsByEmailOrUsername(ctx, gomock.Any(), gomock.Any()).Return(false, false, nil)
	d.hashSvc.EXPECT().Hash(gomock.Any()).Return("h", nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.userRepo.EXPECT().Create(ctx, tx, gomock.Any()).Return(ports.ErrAlreadyExists)

	_, err := d.svc.Register(ctx, ports.RegisterRequest{Username: "abc", Email: "a@b.com", Password: "secret123"})
	assertAppError(t, err, "USR_001")
	assert.False(t, tx.committed)
}

func TestAuthService_Login_Success(t *testing.T) {
	d := setupAuthService(t)
	ctx := context.Background()
	user := &domain.User{ID: uuid.New(), Email: "a@b.com", PasswordHash: "hash", Role: domain.RoleAdmin, IsActive: true}

	d.userRepo.EXPECT().GetByEmail(ctx, "a@b.com").Return(user, nil)
	d.hashSvc.EXPECT().Verify("secret123", "hash").Return(true, nil)
	d.tokenSvc.EXPECT().Generate(user.ID, domain.RoleAdmin).Return("jwt", fixedNow.Add(time.Hour), nil)
	d.userRepo.EXPECT().UpdateLastLogin(ctx, user.ID, fixedNow).Return(nil)

	res, err := d.svc.Login(ctx, ports.LoginRequest{Email: "a@b.com", Password: "secret123"})
	require.NoError(t, err)
	assert.Equal(t, "jwt", res.Token)
	require.NotNil(t, res.User.LastLoginAt)
	assert.Equal(t, fixedNow, *res.User.LastLoginAt)
}

func TestAuthService_Login_LastLoginFailureIsNotFatal(t *testing.T) {
	d := setupAuthService(t)
	ctx := context.Background()
	user := &domain.User{ID: uuid.New(), PasswordHash: "hash", Role: domain.RoleUser, IsActive: true}

	d.userRepo.EXPECT().GetByEmail(ctx, "a@b.com").Return(user, nil)
	d.hashSvc.EXPECT().Verify("pw", "hash").Return(true, nil)
	d.tokenSvc.EXPECT().Generate(user.ID, domain.RoleUser).Return("jwt", fixedNow, nil)
	d.userRepo.EXPECT().UpdateLastLogin(ctx, user.ID, fixedNow).Return(errors.New("db down"))

	res, err := d.svc.Login(ctx, ports.LoginRequest{Email: "a@b.com", Password: "pw"})
	require.NoError(t, err)
	assert.Nil(t, res.User.LastLoginAt)
}

func TestAuthService_Login_UserNotFound(t *testing.T) {
	d := setupAuthService(t)
	ctx := context.Background()
	d.userRepo.EXPECT().GetByEmail(ctx, "nobody@b.com").Return(nil, nil)

	_, err := d.svc.Login(ctx, ports.LoginRequest{Email: "nobody@b.com", Password: "pw"})
	assertAppError(t, err, "AUTH_001")
}

func TestAuthService_Login_WrongPassword(t *testing.T) {
	d := setupAuthService(t)
	ctx := context.Background()
	user := &domain.User{ID: uuid.New(), PasswordHash: "hash", IsActive: true}
	d.userRepo.EXPECT().GetByEmail(ctx, "a@b.com").Return(user, nil)
	d.hashSvc.EXPECT().Verify("wrong", "hash").Return(false, nil)

	_, err := d.svc.Login(ctx, ports.LoginRequest{Email: "a@b.com", Password: "wrong"})
	assertAppError(t, err, "AUTH_001")
}

func TestAuthService_Login_Deactivated(t *testing.T) {
	d := setupAuthService(t)
	ctx := context.Background()
	user := &domain.User{ID: uuid.New(), PasswordHash: "hash", IsActive: false}
	d.userRepo.EXPECT().GetByEmail(ctx, "a@b.com").Return(user, nil)
	d.hashSvc.EXPECT().Verify("pw", "hash").Return(true, nil)

	_, err := d.svc.Login(ctx, ports.LoginRequest{Email: "a@b.com", Password: "pw"})
	assertAppError(t, err, "AUTH_004")
}

func TestAuthService_Authenticate(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	t.Run("valid token, role read from store", func(t *testing.T) {
		d := setupAuthService(t)
		d.tokenSvc.EXPECT().Validate("tok").Return(&ports.TokenClaims{UserID: userID, Role: domain.RoleAdmin}, nil)
		d.userRepo.EXPECT().GetByID(ctx, userID).Return(&domain.User{ID: userID, Role: domain.RoleUser, IsActive: true}, nil)

		user, err := d.svc.Authenticate(ctx, "tok")
		require.NoError(t, err)
		assert.Equal(t, domain.RoleUser, user.Role)
	})

	t.Run("invalid token", func(t *testing.T) {
		d := setupAuthService(t)
		d.tokenSvc.EXPECT().Validate("bad").Return(nil, errors.New("expired"))

		_, err := d.svc.Authenticate(ctx, "bad")
		assertAppError(t, err, "AUTH_003")
	})

	t.Run("deleted user", func(t *testing.T) {
		d := setupAuthService(t)
		d.tokenSvc.EXPECT().Validate("tok").Return(&ports.TokenClaims{UserID: userID}, nil)
		d.userRepo.EXPECT().GetByID(ctx, userID).Return(nil, nil)

		_, err := d.svc.Authenticate(ctx, "tok")
		assertAppError(t, err, "AUTH_003")
	})

	t.Run("deactivated user", func(t *testing.T) {
		d := setupAuthService(t)
		d.tokenSvc.EXPECT().Validate("tok").Return(&ports.TokenClaims{UserID: userID}, nil)
		d.userRepo.EXPECT().GetByID(ctx, userID).Return(&domain.User{ID: userID, IsActive: false}, nil)

		_, err := d.svc.Authenticate(ctx, "tok")
		assertAppError(t, err, "AUTH_004")
	})
}

func TestAuthService_UpdateProfile(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	t.Run("changes username and phone", func(t *testing.T) {
		d := setupAuthService(t)
		d.userRepo.EXPECT().GetByID(ctx, userID).Return(&domain.User{ID: userID, Username: "old"}, nil)
		d.userRepo.EXPECT().ExistsByEmailOrUsername(ctx, "", "new_name").Return(false, false, nil)
		d.userRepo.EXPECT().UpdateProfile(ctx, gomock.Any()).Return(nil)

		name, phone := "new_name", "0598765432"
		user, err := d.svc.UpdateProfile(ctx, userID, ports.UpdateProfileRequest{Username: &name, Phone: &phone})
		require.NoError(t, err)
		assert.Equal(t, "new_name", user.Username)
		assert.Equal(t, "0598765432", user.Phone)
		assert.Equal(t, fixedNow, user.UpdatedAt)
	})

	t.Run("same username skips uniqueness check", func(t *testing.T) {
		d := setupAuthService(t)
		d.userRepo.EXPECT().GetByID(ctx, userID).Return(&domain.User{ID: userID, Username: "same"}, nil)
		d.userRepo.EXPECT().UpdateProfile(ctx, gomock.Any()).Return(nil)

		name := "same"
		_, err := d.svc.UpdateProfile(ctx, userID, ports.UpdateProfileRequest{Username: &name})
		require.NoError(t, err)
	})

	t.Run("username taken", func(t *testing.T) {
		d := setupAuthService(t)
		d.userRepo.EXPECT().GetByID(ctx, userID).Return(&domain.User{ID: userID, Username: "old"}, nil)
		d.userRepo.EXPECT().ExistsByEmailOrUsername(ctx, "", "taken").Return(false, true, nil)

		name := "taken"
		_, err := d.svc.UpdateProfile(ctx, userID, ports.UpdateProfileRequest{Username: &name})
		assertAppError(t, err, "USR_002")
	})

	t.Run("unknown user", func(t *testing.T) {
		d := setupAuthService(t)
		d.userRepo.EXPECT().GetByID(ctx, userID).Return(nil, nil)

		_, err := d.svc.UpdateProfile(ctx, userID, ports.UpdateProfileRequest{})
		assertAppError(t, err, "RES_001")
	})
}
