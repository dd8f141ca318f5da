package cron

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/codeldorado/rebill/internal/logger"
	"github.com/codeldorado/rebill/internal/service"
)

// BillingCronHandler handles billing related cron jobs
type BillingCronHandler struct {
	billingService service.BillingService
	vaultService   service.VaultService
	logger         *logger.Logger
}

// NewBillingCronHandler creates a new billing cron handler
func NewBillingCronHandler(
	billingService service.BillingService,
	vaultService service.VaultService,
	logger *logger.Logger,
) *BillingCronHandler {
	return &BillingCronHandler{
		billingService: billingService,
		vaultService:   vaultService,
		logger:         logger,
	}
}

// ProcessDueSubscriptions bills every subscription due as of now
func (h *BillingCronHandler) ProcessDueSubscriptions(c *gin.Context) {
	now := time.Now().UTC()
	h.logger.Infow("starting due batch cron job", "as_of", now.Format(time.RFC3339))

	resp, err := h.billingService.ProcessDue(c.Request.Context(), now)
	if err != nil {
		h.logger.Errorw("failed to process due subscriptions", "error", err)
		c.Error(err)
		return
	}

	h.logger.Infow("completed due batch cron job",
		"processed", resp.Processed,
		"succeeded", resp.Succeeded,
		"declined", resp.Declined,
		"failed", resp.Failed)
	c.JSON(http.StatusOK, resp)
}

// CleanupExpiredPaymentMethods deactivates vault entries whose cards expired
func (h *BillingCronHandler) CleanupExpiredPaymentMethods(c *gin.Context) {
	now := time.Now().UTC()
	h.logger.Infow("starting expired payment method cleanup cron job", "as_of", now.Format(time.RFC3339))

	resp, err := h.vaultService.CleanupExpired(c.Request.Context(), now)
	if err != nil {
		h.logger.Errorw("failed to clean up expired payment methods", "error", err)
		c.Error(err)
		return
	}

	h.logger.Infow("completed expired payment method cleanup cron job",
		"deactivated", resp.Deactivated)
	c.JSON(http.StatusOK, resp)
}
