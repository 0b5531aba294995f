package handler

import (
	"recharge-store/internal/adapter/http/middleware"
	"recharge-store/internal/core/domain"
	"recharge-store/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

const maxRequestBody = 1 << 20 // 1 MB

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	AuthSvc         ports.AuthService
	UserAdminSvc    ports.UserAdminService
	LedgerSvc       ports.LedgerService
	OrderSvc        ports.OrderService
	PaymentSvc      ports.PaymentService
	CatalogSvc      ports.CatalogService
	CouponSvc       ports.CouponService
	NotificationSvc ports.NotificationService
	ReportingSvc    ports.ReportingService
	RateLimitStore  middleware.RateLimitStore // nil = rate limiting disabled
	AuditSvc        ports.AuditService        // nil = audit logging disabled
	HealthCheckers  []ports.HealthChecker
	AllowedOrigins  []string
	Mode            string
	Logger          zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	if deps.Mode != "" {
		gin.SetMode(deps.Mode)
	}
	r := gin.New()

	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.Metrics())
	r.Use(middleware.MaxBodySize(maxRequestBody))
	if deps.AuditSvc != nil {
		r.Use(middleware.AuditLog(deps.AuditSvc))
	}

	r.GET("/health", HealthCheck(deps.HealthCheckers...))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/docs", APIDocs)
	r.GET("/docs/openapi.yaml", OpenAPISpec)

	rules := middleware.DefaultRateLimitRules()
	rl := func(group string) gin.HandlerFunc {
		if deps.RateLimitStore == nil {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rules[group], deps.Logger)
	}

	jwtAuth := middleware.JWTAuth(deps.AuthSvc, deps.Logger)
	adminOnly := middleware.RequireRoles(domain.RoleAdmin)
	staff := middleware.RequireRoles(domain.RoleAdmin, domain.RoleModerator)

	authHandler := NewAuthHandler(deps.AuthSvc, deps.ReportingSvc)
	walletHandler := NewWalletHandler(deps.LedgerSvc)
	paymentHandler := NewPaymentHandler(deps.PaymentSvc)
	orderHandler := NewOrderHandler(deps.OrderSvc)
	catalogHandler := NewCatalogHandler(deps.CatalogSvc)
	couponHandler := NewCouponHandler(deps.CouponSvc)
	notificationHandler := NewNotificationHandler(deps.NotificationSvc, deps.AllowedOrigins, deps.Logger)
	adminHandler := NewAdminHandler(deps.ReportingSvc, deps.UserAdminSvc, deps.LedgerSvc)

	v1 := r.Group("/api/v1", rl(middleware.RuleGlobal))

	// --- Public routes ---
	auth := v1.Group("/auth")
	{
		auth.POST("/register", rl(middleware.RuleAuth), authHandler.Register)
		auth.POST("/login", rl(middleware.RuleAuth), authHandler.Login)
		auth.GET("/me", jwtAuth, authHandler.Me)
	}

	products := v1.Group("/products")
	{
		products.GET("", catalogHandler.List)
		products.GET("/:id", catalogHandler.Get)
	}

	// --- Authenticated routes ---
	users := v1.Group("/users", jwtAuth)
	{
		users.PUT("/profile", authHandler.UpdateProfile)
		users.GET("/stats/:userId", authHandler.UserStats)
	}

	wallet := v1.Group("/wallet", jwtAuth)
	{
		wallet.GET("/balance", walletHandler.GetBalance)
		wallet.POST("/deposit", rl(middleware.RulePayments), walletHandler.Deposit)
		wallet.POST("/withdraw", rl(middleware.RulePayments), walletHandler.Withdraw)
		wallet.POST("/payment", rl(middleware.RulePayments), paymentHandler.WalletPayment)
		wallet.GET("/transactions", walletHandler.ListTransactions)
	}

	orders := v1.Group("/orders", jwtAuth)
	{
		orders.POST("", rl(middleware.RuleOrders), orderHandler.Create)
		orders.GET("/my-orders", orderHandler.MyOrders)
		orders.GET("/:id", orderHandler.Get)
	}

	payments := v1.Group("/payments", jwtAuth)
	{
		payments.POST("/process", rl(middleware.RulePayments), paymentHandler.ProcessPayment)
	}

	coupons := v1.Group("/coupons", jwtAuth)
	{
		coupons.POST("/validate", couponHandler.Validate)
	}

	notifications := v1.Group("/notifications", jwtAuth)
	{
		notifications.GET("", notificationHandler.List)
		notifications.GET("/stream", notificationHandler.Stream)
		notifications.PUT("/read-all", notificationHandler.MarkAllRead)
		notifications.PUT("/:id/read", notificationHandler.MarkRead)
		notifications.DELETE("/:id", notificationHandler.Delete)
	}

	// --- Staff routes: moderators may read orders and users ---
	admin := v1.Group("/admin", jwtAuth)
	{
		admin.GET("/orders", staff, orderHandler.AdminList)
		admin.GET("/users", staff, adminHandler.ListUsers)

		admin.GET("/stats", adminOnly, adminHandler.Stats)
		admin.GET("/reports", adminOnly, adminHandler.Reports)
		admin.POST("/reports/export", adminOnly, adminHandler.ExportReport)

		admin.PUT("/users/:id/status", adminOnly, adminHandler.SetUserStatus)
		admin.PUT("/users/:id/role", adminOnly, adminHandler.SetUserRole)

		admin.GET("/products", adminOnly, catalogHandler.AdminList)
		admin.POST("/products", adminOnly, catalogHandler.Create)
		admin.PUT("/products/:id", adminOnly, catalogHandler.Update)
		admin.DELETE("/products/:id", adminOnly, catalogHandler.Delete)

		admin.PUT("/orders/:id", adminOnly, orderHandler.AdminUpdate)
		admin.POST("/orders/:id/refund", adminOnly, orderHandler.Refund)

		admin.GET("/transactions", adminOnly, adminHandler.ListTransactions)
		admin.GET("/transactions/:id", adminOnly, adminHandler.GetTransaction)
		admin.PUT("/transactions/:id", adminOnly, adminHandler.ReviewTransaction)

		admin.GET("/coupons", adminOnly, couponHandler.List)
		admin.POST("/coupons", adminOnly, couponHandler.Create)
		admin.PUT("/coupons/:id", adminOnly, couponHandler.Update)
		admin.DELETE("/coupons/:id", adminOnly, couponHandler.Delete)

		admin.POST("/notifications", adminOnly, notificationHandler.AdminSend)
	}

	return r
}
