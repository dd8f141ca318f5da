package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/codeldorado/rebill/internal/api/dto"
	ierr "github.com/codeldorado/rebill/internal/errors"
	"github.com/codeldorado/rebill/internal/logger"
	"github.com/codeldorado/rebill/internal/service"
)

type VaultHandler struct {
	service service.VaultService
	log     *logger.Logger
}

func NewVaultHandler(service service.VaultService, log *logger.Logger) *VaultHandler {
	return &VaultHandler{service: service, log: log}
}

// StorePaymentMethod adds a tokenized payment method to the vault
func (h *VaultHandler) StorePaymentMethod(c *gin.Context) {
	var req dto.StorePaymentMethodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Error("Failed to bind JSON", "error", err)
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.service.StorePaymentMethod(c.Request.Context(), &req)
	if err != nil {
		h.log.Error("Failed to store payment method", "error", err)
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// GetPaymentMethod retrieves a vault entry by id
func (h *VaultHandler) GetPaymentMethod(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.Error(ierr.NewError("id is required").
			WithHint("Payment method ID is required").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.service.GetPaymentMethod(c.Request.Context(), id)
	if err != nil {
		h.log.Error("Failed to get payment method", "error", err)
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// ListPaymentMethods lists a customer's active vault entries, default first
func (h *VaultHandler) ListPaymentMethods(c *gin.Context) {
	customerID := c.Query("customer_id")
	if customerID == "" {
		c.Error(ierr.NewError("customer_id is required").
			WithHint("Customer ID is required").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.service.ListPaymentMethods(c.Request.Context(), customerID)
	if err != nil {
		h.log.Error("Failed to list payment methods", "error", err)
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// GetDefaultPaymentMethod returns the customer's default entry, 204 when none
func (h *VaultHandler) GetDefaultPaymentMethod(c *gin.Context) {
	customerID := c.Query("customer_id")
	if customerID == "" {
		c.Error(ierr.NewError("customer_id is required").
			WithHint("Customer ID is required").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.service.GetDefaultPaymentMethod(c.Request.Context(), customerID)
	if err != nil {
		h.log.Error("Failed to get default payment method", "error", err)
		c.Error(err)
		return
	}
	if resp == nil {
		c.Status(http.StatusNoContent)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// SetDefaultPaymentMethod makes the entry the customer's only default
func (h *VaultHandler) SetDefaultPaymentMethod(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.Error(ierr.NewError("id is required").
			WithHint("Payment method ID is required").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.service.SetDefaultPaymentMethod(c.Request.Context(), id)
	if err != nil {
		h.log.Error("Failed to set default payment method", "error", err)
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// DeactivatePaymentMethod soft-deactivates a vault entry
func (h *VaultHandler) DeactivatePaymentMethod(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.Error(ierr.NewError("id is required").
			WithHint("Payment method ID is required").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.service.DeactivatePaymentMethod(c.Request.Context(), id)
	if err != nil {
		h.log.Error("Failed to deactivate payment method", "error", err)
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// ChargeVault charges a stored payment method
func (h *VaultHandler) ChargeVault(c *gin.Context) {
	var req dto.ChargeVaultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Error("Failed to bind JSON", "error", err)
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.service.ChargeWithVault(c.Request.Context(), &req)
	if err != nil {
		h.log.Error("Failed to charge vault", "error", err)
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
