package errors

import (
	"github.com/cockroachdb/errors"
)

// Sentinel errors used with Mark to classify failures. Callers compare with
// errors.Is (or the Is* helpers below), never by string.
var (
	ErrValidation           = errors.New("validation_error")
	ErrNotFound             = errors.New("not_found")
	ErrAlreadyExists        = errors.New("already_exists")
	ErrDatabase             = errors.New("database_error")
	ErrInternal             = errors.New("internal_error")
	ErrInvalidOperation     = errors.New("invalid_operation")
	ErrGatewayCommunication = errors.New("gateway_communication_error")
	ErrGatewayDeclined      = errors.New("gateway_declined")
	ErrGatewayProtocol      = errors.New("gateway_protocol_error")
	ErrPaymentMethodExpired = errors.New("payment_method_expired")
	ErrPaymentProcessing    = errors.New("payment_processing_error")
	ErrInvalidFrequency     = errors.New("invalid_billing_frequency")
)

// IsNotFound returns true if the error is marked as a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidation returns true if the error is marked as a validation error
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsDatabase returns true if the error is marked as a database error
func IsDatabase(err error) bool {
	return errors.Is(err, ErrDatabase)
}

// IsDeclined returns true if the gateway explicitly refused the charge.
// Declined charges must never be retried automatically.
func IsDeclined(err error) bool {
	return errors.Is(err, ErrGatewayDeclined)
}

// IsGatewayProtocol returns true for malformed or unexpected processor
// responses. These are safe for an external supervisor to retry.
func IsGatewayProtocol(err error) bool {
	return errors.Is(err, ErrGatewayProtocol)
}

// IsGatewayCommunication returns true for transport level failures reaching
// the processor.
func IsGatewayCommunication(err error) bool {
	return errors.Is(err, ErrGatewayCommunication)
}

// IsPaymentMethodExpired returns true if the vault entry's card is past its
// expiry month.
func IsPaymentMethodExpired(err error) bool {
	return errors.Is(err, ErrPaymentMethodExpired)
}

// IsInvalidFrequency returns true for a corrupt or unrecognized billing
// frequency. This is never defaulted away.
func IsInvalidFrequency(err error) bool {
	return errors.Is(err, ErrInvalidFrequency)
}

// IsInvalidOperation returns true when the operation is not applicable to
// the entity's current state.
func IsInvalidOperation(err error) bool {
	return errors.Is(err, ErrInvalidOperation)
}
