package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/codeldorado/rebill/internal/api/dto"
	ierr "github.com/codeldorado/rebill/internal/errors"
	"github.com/codeldorado/rebill/internal/logger"
	"github.com/codeldorado/rebill/internal/service"
)

type PaymentHandler struct {
	service service.PaymentService
	log     *logger.Logger
}

func NewPaymentHandler(service service.PaymentService, log *logger.Logger) *PaymentHandler {
	return &PaymentHandler{service: service, log: log}
}

// BeginCheckout starts a three step interactive card entry
func (h *PaymentHandler) BeginCheckout(c *gin.Context) {
	var req dto.BeginCheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Error("Failed to bind JSON", "error", err)
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.service.BeginCheckout(c.Request.Context(), &req)
	if err != nil {
		h.log.Error("Failed to begin checkout", "error", err)
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// CompleteCheckout finishes a three step charge with the redirect token
func (h *PaymentHandler) CompleteCheckout(c *gin.Context) {
	var req dto.CompleteCheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Error("Failed to bind JSON", "error", err)
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.service.CompleteCheckout(c.Request.Context(), &req)
	if err != nil {
		h.log.Error("Failed to complete checkout", "error", err)
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// RefundTransaction refunds all or part of a recorded transaction
func (h *PaymentHandler) RefundTransaction(c *gin.Context) {
	var req dto.RefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Error("Failed to bind JSON", "error", err)
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.service.RefundTransaction(c.Request.Context(), &req)
	if err != nil {
		h.log.Error("Failed to refund transaction", "error", err)
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// GetTransaction retrieves a recorded transaction by id
func (h *PaymentHandler) GetTransaction(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.Error(ierr.NewError("id is required").
			WithHint("Transaction ID is required").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.service.GetTransaction(c.Request.Context(), id)
	if err != nil {
		h.log.Error("Failed to get transaction", "error", err)
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// ListTransactions lists a customer's recorded transactions, newest first
func (h *PaymentHandler) ListTransactions(c *gin.Context) {
	customerID := c.Query("customer_id")
	if customerID == "" {
		c.Error(ierr.NewError("customer_id is required").
			WithHint("Customer ID is required").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.service.ListTransactions(c.Request.Context(), customerID)
	if err != nil {
		h.log.Error("Failed to list transactions", "error", err)
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
