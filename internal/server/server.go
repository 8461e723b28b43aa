package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/drestrepo/giftregistry/config"
	"github.com/drestrepo/giftregistry/internal/handlers"
	"github.com/drestrepo/giftregistry/internal/middleware"
)

func Start() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %v", err)
	}

	db, err := config.InitDatabase(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %v", err)
	}
	defer func() {
		if err := config.CloseDatabase(db); err != nil {
			log.Printf("Error closing database: %v", err)
		}
	}()

	paymentCfg, err := config.LoadPaymentConfig()
	if err != nil {
		return fmt.Errorf("failed to load payment config: %v", err)
	}

	r := gin.Default()

	setupRoutes(r, db, paymentCfg)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		log.Printf("Received %v, shutting down", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	}
}

func setupRoutes(r *gin.Engine, db *gorm.DB, paymentCfg *config.PaymentConfig) {
	r.Use(middleware.DatabaseMiddleware(db))
	r.Use(middleware.PaymentConfigMiddleware(paymentCfg))

	r.GET("/health", handlers.HealthCheck)

	public := r.Group("/v1")
	{
		public.POST("/auth/login", handlers.Login)
		public.POST("/auth/setup", handlers.Setup)

		giftPublic := public.Group("/gifts")
		{
			giftPublic.GET("", handlers.ListGifts)
			giftPublic.GET("/:id", handlers.GetGift)
		}

		categoryPublic := public.Group("/categories")
		{
			categoryPublic.GET("", handlers.ListCategories)
			categoryPublic.GET("/:id", handlers.GetCategory)
		}

		public.GET("/events", handlers.GetEvent)
		public.GET("/payments/qr", handlers.PaymentQR)
	}

	optional := r.Group("/v1")
	optional.Use(middleware.OptionalAuthMiddleware())
	{
		optional.POST("/payments/confirm", handlers.ConfirmPayment)
	}

	protected := r.Group("/v1")
	protected.Use(middleware.JWTAuthMiddleware())
	{
		protected.GET("/auth/verify", handlers.Verify)
		protected.POST("/gifts/:id/contribute", handlers.ContributeToGift)
	}

	admin := r.Group("/v1")
	admin.Use(middleware.JWTAuthMiddleware(), middleware.AdminMiddleware())
	{
		giftAdmin := admin.Group("/gifts")
		{
			giftAdmin.POST("", handlers.CreateGift)
			giftAdmin.PUT("/:id", handlers.UpdateGift)
			giftAdmin.DELETE("/:id", handlers.DeleteGift)
		}

		categoryAdmin := admin.Group("/categories")
		{
			categoryAdmin.POST("", handlers.CreateCategory)
			categoryAdmin.PUT("/:id", handlers.UpdateCategory)
			categoryAdmin.DELETE("/:id", handlers.DeleteCategory)
		}

		admin.POST("/events", handlers.CreateEvent)
		admin.PUT("/events/:id", handlers.UpdateEvent)

		reportAdmin := admin.Group("/reports")
		{
			reportAdmin.GET("/contributions", handlers.ContributionsReport)
			reportAdmin.GET("/summary", handlers.SummaryReport)
			reportAdmin.GET("/orphans", handlers.OrphansReport)
		}
	}
}
