package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"smmstore/internal/audit"
	"smmstore/internal/auth"
	"smmstore/internal/bankaccount"
	"smmstore/internal/cache"
	"smmstore/internal/catalog"
	"smmstore/internal/config"
	"smmstore/internal/email"
	"smmstore/internal/order"
	"smmstore/internal/settings"
	"smmstore/internal/user"
	"smmstore/internal/wallet"
)

type Server struct {
	router *gin.Engine
	http   *http.Server
	db     *sqlx.DB
	config *config.Config
	email  *email.Service
}

func New(db *sqlx.DB, cfg *config.Config, emailService *email.Service, views *cache.OrderViews) *Server {
	router := gin.Default()
	router.Use(corsMiddleware())
	router.Use(RequestLoggingMiddleware())
	router.Use(MetricsMiddleware())
	router.Use(RateLimitMiddleware(cfg.RateLimitRPS, cfg.RateLimitBurst))

	userRepo := user.NewRepository(db)
	auditRepo := audit.NewRepository(db)
	catalogRepo := catalog.NewRepository(db)
	bankRepo := bankaccount.NewRepository(db)
	walletRepo := wallet.NewRepository(db)
	orderRepo := order.NewRepository(db)
	settingsRepo := settings.NewRepository(db)

	userService := user.NewService(userRepo, auditRepo)
	orderService := order.NewService(
		orderRepo, walletRepo, catalogRepo, userRepo, bankRepo,
		emailService, auditRepo, views, settingsRepo, cfg.AdminEmails,
	)

	userHandler := user.NewHandler(userRepo, userService, cfg.JWTSecret)
	catalogHandler := catalog.NewHandler(catalogRepo, auditRepo)
	bankHandler := bankaccount.NewHandler(bankRepo, auditRepo)
	walletHandler := wallet.NewHandler(walletRepo, auditRepo)
	orderHandler := order.NewHandler(orderService)
	settingsHandler := settings.NewHandler(settingsRepo, auditRepo)
	auditHandler := audit.NewHandler(auditRepo)

	public := router.Group("/auth")
	{
		public.POST("/register", userHandler.Register)
		public.POST("/login", userHandler.Login)
		public.POST("/refresh", userHandler.Refresh)
	}

	router.GET("/services", catalogHandler.ListServices)
	router.GET("/bank-accounts", bankHandler.ListActive)

	authMiddleware := auth.AuthMiddleware(cfg.JWTSecret)
	protected := router.Group("/")
	protected.Use(authMiddleware)
	{
		protected.GET("/me", userHandler.GetMe)
		protected.GET("/wallet", walletHandler.GetBalance)
		protected.GET("/wallet/transactions", walletHandler.ListTransactions)
		protected.POST("/orders", orderHandler.CreateOrder)
		protected.GET("/orders", orderHandler.ListMyOrders)
		protected.GET("/orders/:orderID", orderHandler.GetOrder)
		protected.POST("/orders/:orderID/confirm-payment", orderHandler.ConfirmBankPayment)
	}

	adminMiddleware := auth.RequireRole(userRepo, user.RoleSuperAdmin, user.RoleSubAdmin)
	admin := router.Group("/admin")
	admin.Use(authMiddleware, adminMiddleware)
	{
		admin.GET("/orders", orderHandler.AdminListOrders)
		admin.GET("/orders/:orderID", orderHandler.AdminGetOrder)
		admin.PUT("/orders/:orderID/status", orderHandler.AdminSetStatus)
		admin.POST("/orders/:orderID/auto-advance", orderHandler.AutoAdvance)
		admin.POST("/orders/sweep-overdue", orderHandler.SweepOverdue)

		admin.GET("/users", userHandler.AdminListUsers)
		admin.GET("/users/:userID", userHandler.AdminGetUser)
		admin.PUT("/users/:userID/active", userHandler.AdminSetUserActive)
		admin.PUT("/users/:userID/role", userHandler.AdminChangeRole)
		admin.POST("/users/:userID/wallet", walletHandler.AdminAdjust)

		admin.GET("/services", catalogHandler.AdminListServices)
		admin.POST("/services", catalogHandler.CreateService)
		admin.PUT("/services/:serviceID", catalogHandler.UpdateService)
		admin.DELETE("/services/:serviceID", catalogHandler.DeactivateService)

		admin.GET("/bank-accounts", bankHandler.AdminList)
		admin.POST("/bank-accounts", bankHandler.Create)
		admin.PUT("/bank-accounts/:accountID", bankHandler.Update)
		admin.DELETE("/bank-accounts/:accountID", bankHandler.Delete)

		admin.GET("/settings", settingsHandler.List)
		admin.PUT("/settings/:key", settingsHandler.Update)
		admin.GET("/audit", auditHandler.List)

		admin.GET("/test-email", TestEmail(emailService))
	}

	router.GET("/health", Health)
	router.GET("/metrics", Metrics())

	return &Server{
		router: router,
		db:     db,
		config: cfg,
		email:  emailService,
	}
}

func (s *Server) Start(port string) error {
	s.http = &http.Server{
		Addr:              ":" + port,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s.http.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}
