package v1

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/codeldorado/rebill/internal/api/dto"
	"github.com/codeldorado/rebill/internal/cache"
	ierr "github.com/codeldorado/rebill/internal/errors"
	"github.com/codeldorado/rebill/internal/logger"
	"github.com/codeldorado/rebill/internal/service"
)

const statsCacheKey = "subscription_statistics"

type SubscriptionHandler struct {
	service service.BillingService
	cache   cache.Cache
	log     *logger.Logger
}

func NewSubscriptionHandler(service service.BillingService, c cache.Cache, log *logger.Logger) *SubscriptionHandler {
	return &SubscriptionHandler{service: service, cache: c, log: log}
}

// CreateSubscription creates a new recurring subscription
func (h *SubscriptionHandler) CreateSubscription(c *gin.Context) {
	var req dto.CreateSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Error("Failed to bind JSON", "error", err)
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.service.CreateSubscription(c.Request.Context(), &req)
	if err != nil {
		h.log.Error("Failed to create subscription", "error", err)
		c.Error(err)
		return
	}

	h.cache.Delete(c.Request.Context(), statsCacheKey)
	c.JSON(http.StatusCreated, resp)
}

// GetSubscription retrieves a subscription by id
func (h *SubscriptionHandler) GetSubscription(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.Error(ierr.NewError("id is required").
			WithHint("Subscription ID is required").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.service.GetSubscription(c.Request.Context(), id)
	if err != nil {
		h.log.Error("Failed to get subscription", "error", err)
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// ListSubscriptions lists a customer's subscriptions, newest first
func (h *SubscriptionHandler) ListSubscriptions(c *gin.Context) {
	customerID := c.Query("customer_id")
	if customerID == "" {
		c.Error(ierr.NewError("customer_id is required").
			WithHint("Customer ID is required").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.service.ListByCustomer(c.Request.Context(), customerID)
	if err != nil {
		h.log.Error("Failed to list subscriptions", "error", err)
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// CancelSubscription cancels a subscription; repeated cancellation is a no-op
func (h *SubscriptionHandler) CancelSubscription(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.Error(ierr.NewError("id is required").
			WithHint("Subscription ID is required").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.service.CancelSubscription(c.Request.Context(), id)
	if err != nil {
		h.log.Error("Failed to cancel subscription", "error", err)
		c.Error(err)
		return
	}

	if resp.Cancelled {
		h.cache.Delete(c.Request.Context(), statsCacheKey)
	}
	c.JSON(http.StatusOK, resp)
}

// GetStatistics returns aggregate subscription counts, cached briefly at
// the boundary so the core query stays uncached
func (h *SubscriptionHandler) GetStatistics(c *gin.Context) {
	if cached, found := h.cache.Get(c.Request.Context(), statsCacheKey); found {
		if resp, ok := cached.(*dto.StatisticsResponse); ok {
			c.JSON(http.StatusOK, resp)
			return
		}
	}

	resp, err := h.service.Statistics(c.Request.Context())
	if err != nil {
		h.log.Error("Failed to get statistics", "error", err)
		c.Error(err)
		return
	}

	h.cache.Set(c.Request.Context(), statsCacheKey, resp, 30*time.Second)
	c.JSON(http.StatusOK, resp)
}
