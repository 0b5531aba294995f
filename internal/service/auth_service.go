package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"recharge-store/internal/core/domain"
	"recharge-store/internal/core/ports"
	"recharge-store/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// AuthServiceImpl implements ports.AuthService.
type AuthServiceImpl struct {
	userRepo   ports.UserRepository
	walletRepo ports.WalletRepository
	hashSvc    ports.HashService
	tokenSvc   ports.TokenService
	transactor ports.DBTransactor
	currency   string
	log        zerolog.Logger
	now        func() time.Time
}

// NewAuthService creates a new AuthServiceImpl.
func NewAuthService(
	userRepo ports.UserRepository,
	walletRepo ports.WalletRepository,
	hashSvc ports.HashService,
	tokenSvc ports.TokenService,
	transactor ports.DBTransactor,
	currency string,
	log zerolog.Logger,
) *AuthServiceImpl {
	return &AuthServiceImpl{
		userRepo:   userRepo,
		walletRepo: walletRepo,
		hashSvc:    hashSvc,
		tokenSvc:   tokenSvc,
		transactor: transactor,
		currency:   currency,
		log:        log,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Register creates a user together with an empty wallet and signs them in.
func (s *AuthServiceImpl) Register(ctx context.Context, req ports.RegisterRequest) (*ports.AuthResult, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	username := strings.TrimSpace(req.Username)

	emailTaken, usernameTaken, err := s.userRepo.ExistsByEmailOrUsername(ctx, email, username)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("check user exists: %w", err))
	}
	if emailTaken {
		return nil, apperror.ErrEmailExists()
	}
	if usernameTaken {
		return nil, apperror.ErrUsernameExists()
	}

	passwordHash, err := s.hashSvc.Hash(req.Password)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("hash password: %w", err))
	}

	now := s.now()
	user := &domain.User{
		ID:            uuid.New(),
		Username:      username,
		Email:         email,
		PasswordHash:  passwordHash,
		Phone:         strings.TrimSpace(req.Phone),
		WalletBalance: decimal.Zero,
		Role:          domain.RoleUser,
		IsActive:      true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	wallet := domain.NewWallet(user.ID, s.currency, now)

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	if err := s.userRepo.Create(ctx, dbTx, user); err != nil {
		if errors.Is(err, ports.ErrAlreadyExists) {
			// lost a race with a concurrent registration
			return nil, apperror.ErrEmailExists()
		}
		return nil, apperror.InternalError(fmt.Errorf("create user: %w", err))
	}
	if err := s.walletRepo.Create(ctx, dbTx, wallet); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create wallet: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	token, expiresAt, err := s.tokenSvc.Generate(user.ID, user.Role)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("generate token: %w", err))
	}

	s.log.Info().
		Str("user_id", user.ID.String()).
		Str("username", user.Username).
		Msg("user registered")

	return &ports.AuthResult{Token: token, ExpiresAt: expiresAt, User: user}, nil
}

// Login validates credentials and returns a JWT token.
func (s *AuthServiceImpl) Login(ctx context.Context, req ports.LoginRequest) (*ports.AuthResult, error) {
	user, err := s.userRepo.GetByEmail(ctx, strings.TrimSpace(req.Email))
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("find user: %w", err))
	}
	if user == nil {
		return nil, apperror.ErrInvalidCredentials()
	}

	valid, err := s.hashSvc.Verify(req.Password, user.PasswordHash)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("verify password: %w", err))
	}
	if !valid {
		return nil, apperror.ErrInvalidCredentials()
	}

	if !user.IsActive {
		return nil, apperror.ErrAccountDisabled()
	}

	token, expiresAt, err := s.tokenSvc.Generate(user.ID, user.Role)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("generate token: %w", err))
	}

	now := s.now()
	if err := s.userRepo.UpdateLastLogin(ctx, user.ID, now); err != nil {
		s.log.Warn().Err(err).Str("user_id", user.ID.String()).Msg("failed to record last login")
	} else {
		user.LastLoginAt = &now
	}

	return &ports.AuthResult{Token: token, ExpiresAt: expiresAt, User: user}, nil
}

// Authenticate resolves a bearer token to an active user. The role is read
// from the database so demotions take effect before the token expires.
func (s *AuthServiceImpl) Authenticate(ctx context.Context, token string) (*domain.User, error) {
	claims, err := s.tokenSvc.Validate(token)
	if err != nil {
		return nil, apperror.ErrInvalidToken()
	}

	user, err := s.userRepo.GetByID(ctx, claims.UserID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("find user: %w", err))
	}
	if user == nil {
		return nil, apperror.ErrInvalidToken()
	}
	if !user.IsActive {
		return nil, apperror.ErrAccountDisabled()
	}
	return user, nil
}

func (s *AuthServiceImpl) Me(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("find user: %w", err))
	}
	if user == nil {
		return nil, apperror.ErrNotFound("user")
	}
	return user, nil
}

// UpdateProfile applies the non-nil fields of req.
func (s *AuthServiceImpl) UpdateProfile(ctx context.Context, userID uuid.UUID, req ports.UpdateProfileRequest) (*domain.User, error) {
	user, err := s.Me(ctx, userID)
	if err != nil {
		return nil, err
	}

	if req.Username != nil {
		username := strings.TrimSpace(*req.Username)
		if username != user.Username {
			_, taken, err := s.userRepo.ExistsByEmailOrUsername(ctx, "", username)
			if err != nil {
				return nil, apperror.InternalError(fmt.Errorf("check username: %w", err))
			}
			if taken {
				return nil, apperror.ErrUsernameExists()
			}
			user.Username = username
		}
	}
	if req.Phone != nil {
		user.Phone = strings.TrimSpace(*req.Phone)
	}
	user.UpdatedAt = s.now()

	if err := s.userRepo.UpdateProfile(ctx, user); err != nil {
		if errors.Is(err, ports.ErrAlreadyExists) {
			return nil, apperror.ErrUsernameExists()
		}
		return nil, apperror.InternalError(fmt.Errorf("update profile: %w", err))
	}

	s.log.Info().Str("user_id", user.ID.String()).Msg("profile updated")
	return user, nil
}
