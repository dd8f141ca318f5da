package errors

import (
	"net/http"

	"github.com/cockroachdb/errors"
)

// ErrorDetail is the machine readable portion of an error response
type ErrorDetail struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// ErrorResponse is the canonical error body rendered by the HTTP boundary.
// The boundary renders it directly; it never re-derives context from the
// error chain.
type ErrorResponse struct {
	Success bool        `json:"success"`
	Error   ErrorDetail `json:"error"`
}

// code maps a classified error to a stable machine code
func code(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return "validation_error"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrAlreadyExists):
		return "already_exists"
	case errors.Is(err, ErrGatewayDeclined):
		return "gateway_declined"
	case errors.Is(err, ErrGatewayCommunication):
		return "gateway_communication_error"
	case errors.Is(err, ErrGatewayProtocol):
		return "gateway_protocol_error"
	case errors.Is(err, ErrPaymentMethodExpired):
		return "payment_method_expired"
	case errors.Is(err, ErrPaymentProcessing):
		return "payment_processing_error"
	case errors.Is(err, ErrInvalidFrequency):
		return "invalid_billing_frequency"
	case errors.Is(err, ErrInvalidOperation):
		return "invalid_operation"
	case errors.Is(err, ErrDatabase):
		return "database_error"
	default:
		return "internal_error"
	}
}

// NewErrorResponse builds the response body for an error
func NewErrorResponse(err error) ErrorResponse {
	message := Hint(err)
	if message == "" {
		message = "An unexpected error occurred"
	}
	return ErrorResponse{
		Success: false,
		Error: ErrorDetail{
			Code:    code(err),
			Message: message,
			Details: Details(err),
		},
	}
}

// HTTPStatusFromErr maps a classified error to an HTTP status code
func HTTPStatusFromErr(err error) int {
	switch {
	case errors.Is(err, ErrValidation), errors.Is(err, ErrInvalidOperation):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, ErrGatewayDeclined), errors.Is(err, ErrPaymentMethodExpired):
		return http.StatusPaymentRequired
	case errors.Is(err, ErrGatewayCommunication), errors.Is(err, ErrGatewayProtocol):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
