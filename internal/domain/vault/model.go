package vault

import (
	"strconv"
	"time"

	"github.com/codeldorado/rebill/internal/types"
)

// PaymentMethod is a reusable tokenized payment method held in the vault.
// For a given customer at most one active entry has IsDefault set; a
// deactivated entry never keeps IsDefault. Deactivation is soft so the
// record is retained for audit.
type PaymentMethod struct {
	ID                 string
	CustomerID         string
	GatewayCustomerRef string
	Token              string
	MethodType         types.PaymentMethodType
	CardLast4          *string
	CardBrand          *string
	ExpiryMonth        *string // two digit, "01".."12"
	ExpiryYear         *string // four digit
	BillingName        *string
	BillingAddress     *string
	IsActive           bool
	IsDefault          bool
	LastUsedAt         *time.Time
	Metadata           types.Metadata
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// IsExpired is a pure function of the expiry month/year and the given
// instant: true iff now is past the last calendar day of the expiry month.
// Entries without expiry data never expire.
func (p *PaymentMethod) IsExpired(now time.Time) bool {
	if p.ExpiryMonth == nil || p.ExpiryYear == nil {
		return false
	}
	month, err := strconv.Atoi(*p.ExpiryMonth)
	if err != nil || month < 1 || month > 12 {
		return false
	}
	year, err := strconv.Atoi(*p.ExpiryYear)
	if err != nil {
		return false
	}
	// Valid through the last instant of the expiry month
	endOfMonth := time.Date(year, time.Month(month)+1, 1, 0, 0, 0, 0, time.UTC)
	return !now.Before(endOfMonth)
}
