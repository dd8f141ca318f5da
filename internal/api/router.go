package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/codeldorado/rebill/internal/api/cron"
	v1 "github.com/codeldorado/rebill/internal/api/v1"
	"github.com/codeldorado/rebill/internal/config"
	"github.com/codeldorado/rebill/internal/logger"
	"github.com/codeldorado/rebill/internal/ratelimit"
	"github.com/codeldorado/rebill/internal/rest/middleware"
)

// Handlers bundles every HTTP handler the router mounts
type Handlers struct {
	Subscription *v1.SubscriptionHandler
	Vault        *v1.VaultHandler
	Payment      *v1.PaymentHandler
	BillingCron  *cron.BillingCronHandler
}

// NewRouter builds the gin engine with the standard middleware chain
func NewRouter(handlers Handlers, cfg *config.Configuration, log *logger.Logger) *gin.Engine {
	if cfg.Deployment.Mode == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware)
	router.Use(middleware.LoggingMiddleware(log))
	router.Use(middleware.ErrorHandler)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	limiter := ratelimit.NewLimiter(cfg.RateLimit)

	apiV1 := router.Group("/v1")
	apiV1.Use(middleware.RateLimitMiddleware(limiter))
	{
		subscriptions := apiV1.Group("/subscriptions")
		{
			subscriptions.POST("", handlers.Subscription.CreateSubscription)
			subscriptions.GET("", handlers.Subscription.ListSubscriptions)
			subscriptions.GET("/statistics", handlers.Subscription.GetStatistics)
			subscriptions.GET("/:id", handlers.Subscription.GetSubscription)
			subscriptions.POST("/:id/cancel", handlers.Subscription.CancelSubscription)
		}

		paymentMethods := apiV1.Group("/payment_methods")
		{
			paymentMethods.POST("", handlers.Vault.StorePaymentMethod)
			paymentMethods.GET("", handlers.Vault.ListPaymentMethods)
			paymentMethods.GET("/default", handlers.Vault.GetDefaultPaymentMethod)
			paymentMethods.GET("/:id", handlers.Vault.GetPaymentMethod)
			paymentMethods.POST("/:id/default", handlers.Vault.SetDefaultPaymentMethod)
			paymentMethods.POST("/:id/deactivate", handlers.Vault.DeactivatePaymentMethod)
			paymentMethods.POST("/charge", handlers.Vault.ChargeVault)
		}

		payments := apiV1.Group("/payments")
		{
			payments.POST("/checkout", handlers.Payment.BeginCheckout)
			payments.POST("/checkout/complete", handlers.Payment.CompleteCheckout)
			payments.POST("/refund", handlers.Payment.RefundTransaction)
		}

		transactions := apiV1.Group("/transactions")
		{
			transactions.GET("", handlers.Payment.ListTransactions)
			transactions.GET("/:id", handlers.Payment.GetTransaction)
		}
	}

	cronGroup := router.Group("/cron")
	{
		cronGroup.POST("/subscriptions/process-due", handlers.BillingCron.ProcessDueSubscriptions)
		cronGroup.POST("/payment-methods/cleanup-expired", handlers.BillingCron.CleanupExpiredPaymentMethods)
	}

	return router
}
