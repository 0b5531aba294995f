// Package app assembles the store's repositories, adapters and services from
// configuration. The API server and the operator CLI share it.
package app

import (
	"context"
	"errors"
	"fmt"

	"recharge-store/config"
	"recharge-store/internal/adapter/gateway"
	"recharge-store/internal/adapter/objectstore"
	pgStorage "recharge-store/internal/adapter/storage/postgres"
	redisStorage "recharge-store/internal/adapter/storage/redis"
	"recharge-store/internal/core/ports"
	"recharge-store/internal/service"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// App holds the wired dependency graph.
type App struct {
	Config *config.Config
	Pool   *pgxpool.Pool
	Redis  *goredis.Client

	RateLimitStore *redisStorage.RateLimitStore
	HealthCheckers []ports.HealthChecker

	AuthSvc         *service.AuthServiceImpl
	UserAdminSvc    *service.UserAdminServiceImpl
	LedgerSvc       *service.LedgerServiceImpl
	OrderSvc        *service.OrderServiceImpl
	PaymentSvc      *service.PaymentServiceImpl
	CatalogSvc      *service.CatalogServiceImpl
	CouponSvc       *service.CouponServiceImpl
	NotificationSvc *service.NotificationServiceImpl
	ReportingSvc    ports.ReportingService
	AuditSvc        *service.AuditServiceImpl
	DeliveryWorker  *service.DeliveryWorker

	log zerolog.Logger
}

// New connects to PostgreSQL and Redis and builds every service. Close
// releases the connections.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*App, error) {
	if cfg.JWT.Secret == "" {
		return nil, errors.New("jwt.secret must be set")
	}

	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if cfg.Database.AutoMigrate {
		if err := pgStorage.Migrate(ctx, pool, log); err != nil {
			pool.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}

	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}

	a, err := Assemble(ctx, cfg, log, PostgresRepositories(pool), rdb)
	if err != nil {
		rdb.Close() //nolint:errcheck
		pool.Close()
		return nil, err
	}
	a.Pool = pool
	a.Redis = rdb
	a.HealthCheckers = append([]ports.HealthChecker{pgStorage.NewHealthCheck(pool)}, a.HealthCheckers...)
	return a, nil
}

// Repositories is the storage layer the services run on.
type Repositories struct {
	Users         ports.UserRepository
	Wallets       ports.WalletRepository
	Transactions  ports.TransactionRepository
	Orders        ports.OrderRepository
	Products      ports.ProductRepository
	Coupons       ports.CouponRepository
	Notifications ports.NotificationRepository
	Deliveries    ports.DeliveryTaskRepository
	Audit         ports.AuditRepository
	Reports       ports.ReportRepository
	Transactor    ports.DBTransactor
}

// PostgresRepositories backs every repository with pool.
func PostgresRepositories(pool pgStorage.Pool) Repositories {
	return Repositories{
		Users:         pgStorage.NewUserRepo(pool),
		Wallets:       pgStorage.NewWalletRepo(pool),
		Transactions:  pgStorage.NewTransactionRepo(pool),
		Orders:        pgStorage.NewOrderRepo(pool),
		Products:      pgStorage.NewProductRepo(pool),
		Coupons:       pgStorage.NewCouponRepo(pool),
		Notifications: pgStorage.NewNotificationRepo(pool),
		Deliveries:    pgStorage.NewDeliveryTaskRepo(pool),
		Audit:         pgStorage.NewAuditRepo(pool),
		Reports:       pgStorage.NewReportRepo(pool),
		Transactor:    pgStorage.NewTransactor(pool),
	}
}

// Assemble builds the services on top of repos and a Redis client. It opens
// no connections of its own apart from the optional S3 client.
func Assemble(ctx context.Context, cfg *config.Config, log zerolog.Logger, repos Repositories, rdb goredis.UniversalClient) (*App, error) {
	a := &App{Config: cfg, log: log}

	// Redis stores
	idempotencyCache := redisStorage.NewIdempotencyCache(rdb)
	lockStore := redisStorage.NewLockStore(rdb)
	pubsub := redisStorage.NewNotificationPubSub(rdb, log)
	a.RateLimitStore = redisStorage.NewRateLimitStore(rdb)

	// Simulated providers
	gw := gateway.NewSimulatedGateway(gateway.SimulatorConfig{
		DepositSuccessRate: cfg.Payment.DepositSuccessRate,
		OrderSuccessRate:   cfg.Payment.OrderSuccessRate,
		Latency:            cfg.Payment.Latency,
	}, log)
	fulfiller := gateway.NewSimulatedFulfiller(cfg.Delivery.FailureRate)

	var reportStore ports.ReportStore
	if cfg.S3.Enabled() {
		s3Store, err := objectstore.NewS3ReportStore(ctx, cfg.S3)
		if err != nil {
			return nil, fmt.Errorf("init report store: %w", err)
		}
		reportStore = s3Store
		log.Info().Str("bucket", cfg.S3.Bucket).Msg("Report export enabled")
	}

	// Core services
	var encSvc *service.AESEncryptionService
	var err error
	if cfg.Security.EncryptionKey != "" {
		encSvc, err = service.NewAESEncryptionService(cfg.Security.EncryptionKey)
	} else {
		log.Warn().Msg("security.encryption_key not set, deriving bank detail key from jwt.secret")
		encSvc, err = service.NewAESEncryptionServiceFromSecret(cfg.JWT.Secret)
	}
	if err != nil {
		return nil, fmt.Errorf("init encryption service: %w", err)
	}
	hashSvc := service.NewArgon2HashService()
	tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)

	// Business services
	a.NotificationSvc = service.NewNotificationService(repos.Notifications, pubsub, pubsub, cfg.Notification.Retention, log)
	a.AuthSvc = service.NewAuthService(repos.Users, repos.Wallets, hashSvc, tokenSvc, repos.Transactor, cfg.Wallet.Currency, log)
	a.UserAdminSvc = service.NewUserAdminService(repos.Users, log)
	a.LedgerSvc = service.NewLedgerService(
		repos.Wallets,
		repos.Transactions,
		repos.Users,
		repos.Transactor,
		gw,
		idempotencyCache,
		encSvc,
		a.NotificationSvc,
		service.LedgerConfig{
			Currency:      cfg.Wallet.Currency,
			MinDeposit:    decimal.NewFromFloat(cfg.Wallet.MinDeposit),
			MaxDeposit:    decimal.NewFromFloat(cfg.Wallet.MaxDeposit),
			MinWithdrawal: decimal.NewFromFloat(cfg.Wallet.MinWithdrawal),
		},
		log,
	)
	a.CatalogSvc = service.NewCatalogService(repos.Products, cfg.Wallet.Currency, log)
	a.CouponSvc = service.NewCouponService(repos.Coupons, log)
	a.OrderSvc = service.NewOrderService(repos.Orders, repos.Products, repos.Coupons, a.LedgerSvc, repos.Transactor, a.NotificationSvc, log)
	a.PaymentSvc = service.NewPaymentService(
		repos.Orders,
		repos.Products,
		repos.Deliveries,
		a.LedgerSvc,
		gw,
		lockStore,
		repos.Transactor,
		a.NotificationSvc,
		service.PaymentConfig{
			LockTTL:       cfg.Payment.LockTTL,
			DeliveryDelay: cfg.Delivery.Delay,
		},
		log,
	)
	a.ReportingSvc = service.NewReportingService(repos.Reports, repos.Orders, reportStore, log)
	a.AuditSvc = service.NewAuditService(repos.Audit, log)
	a.DeliveryWorker = service.NewDeliveryWorker(
		repos.Deliveries,
		repos.Orders,
		repos.Products,
		fulfiller,
		repos.Transactor,
		a.NotificationSvc,
		service.DeliveryConfig{
			PollInterval: cfg.Delivery.PollInterval,
			BatchSize:    cfg.Delivery.BatchSize,
			MaxAttempts:  cfg.Delivery.MaxAttempts,
			StaleAfter:   cfg.Delivery.StaleAfter,
		},
		log,
	)

	a.HealthCheckers = []ports.HealthChecker{redisStorage.NewHealthCheck(rdb)}
	return a, nil
}

// Close releases the database and cache connections.
func (a *App) Close() {
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			a.log.Warn().Err(err).Msg("closing redis client")
		}
	}
	if a.Pool != nil {
		a.Pool.Close()
	}
}
