package service

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"github.com/codeldorado/rebill/internal/api/dto"
	ierr "github.com/codeldorado/rebill/internal/errors"
	"github.com/codeldorado/rebill/internal/gateway"
	"github.com/codeldorado/rebill/internal/testutil"
	"github.com/codeldorado/rebill/internal/types"
)

type VaultServiceSuite struct {
	testutil.BaseServiceTestSuite
	service VaultService
}

func TestVaultService(t *testing.T) {
	suite.Run(t, new(VaultServiceSuite))
}

func (s *VaultServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.service = NewVaultService(ServiceParams{
		Logger:          s.GetLogger(),
		Config:          s.GetConfig(),
		SubRepo:         s.GetStores().SubscriptionRepo,
		VaultRepo:       s.GetStores().VaultRepo,
		TransactionRepo: s.GetStores().TransactionRepo,
		GatewayClient:   s.GetGateway(),
	})
}

func (s *VaultServiceSuite) store(customerID, gatewayRef, month, year string) *dto.PaymentMethodResponse {
	resp, err := s.service.StorePaymentMethod(s.GetContext(), &dto.StorePaymentMethodRequest{
		CustomerID:         customerID,
		GatewayCustomerRef: gatewayRef,
		Token:              "tok_" + gatewayRef,
		MethodType:         types.PaymentMethodTypeCard,
		ExpiryMonth:        &month,
		ExpiryYear:         &year,
	})
	s.Require().NoError(err)
	return resp
}

func (s *VaultServiceSuite) TestFirstEntryBecomesDefault() {
	first := s.store("cust_001", "vault-1", "12", "2099")
	s.True(first.IsDefault)
	s.True(first.IsActive)

	second := s.store("cust_001", "vault-2", "12", "2099")
	s.False(second.IsDefault)

	// A different customer's first entry is independently default
	other := s.store("cust_002", "vault-3", "12", "2099")
	s.True(other.IsDefault)
}

func (s *VaultServiceSuite) TestAtMostOneDefault() {
	s.store("cust_001", "vault-1", "12", "2099")
	second := s.store("cust_001", "vault-2", "12", "2099")
	s.store("cust_001", "vault-3", "12", "2099")

	upd, err := s.service.SetDefaultPaymentMethod(s.GetContext(), second.ID)
	s.Require().NoError(err)
	s.True(upd.Changed)

	list, err := s.service.ListPaymentMethods(s.GetContext(), "cust_001")
	s.Require().NoError(err)
	defaults := 0
	for _, pm := range list.Items {
		if pm.IsDefault {
			defaults++
			s.Equal(second.ID, pm.ID)
		}
	}
	s.Equal(1, defaults)
	// Default sorts first
	s.Equal(second.ID, list.Items[0].ID)
}

func (s *VaultServiceSuite) TestSetDefaultOnDeactivatedEntry() {
	first := s.store("cust_001", "vault-1", "12", "2099")
	second := s.store("cust_001", "vault-2", "12", "2099")

	_, err := s.service.DeactivatePaymentMethod(s.GetContext(), second.ID)
	s.Require().NoError(err)

	// A no-op, not an error, and the existing default is untouched
	resp, err := s.service.SetDefaultPaymentMethod(s.GetContext(), second.ID)
	s.Require().NoError(err)
	s.False(resp.Changed)

	def, err := s.service.GetDefaultPaymentMethod(s.GetContext(), "cust_001")
	s.Require().NoError(err)
	s.Require().NotNil(def)
	s.Equal(first.ID, def.ID)
}

func (s *VaultServiceSuite) TestSetDefaultOnMissingEntry() {
	resp, err := s.service.SetDefaultPaymentMethod(s.GetContext(), "pm_missing")
	s.Require().NoError(err)
	s.False(resp.Changed)
	s.Nil(resp.PaymentMethod)
}

func (s *VaultServiceSuite) TestDeactivateMissingEntry() {
	resp, err := s.service.DeactivatePaymentMethod(s.GetContext(), "pm_missing")
	s.Require().NoError(err)
	s.False(resp.Changed)
	s.Nil(resp.PaymentMethod)
}

func (s *VaultServiceSuite) TestDeactivateDefaultPromotesNewestRemaining() {
	first := s.store("cust_001", "vault-1", "12", "2099")
	time.Sleep(2 * time.Millisecond)
	second := s.store("cust_001", "vault-2", "12", "2099")
	time.Sleep(2 * time.Millisecond)
	third := s.store("cust_001", "vault-3", "12", "2099")

	s.True(first.IsDefault)

	resp, err := s.service.DeactivatePaymentMethod(s.GetContext(), first.ID)
	s.Require().NoError(err)
	s.True(resp.Changed)
	s.False(resp.PaymentMethod.IsActive)
	s.False(resp.PaymentMethod.IsDefault)

	// The most recently created remaining entry takes over
	def, err := s.service.GetDefaultPaymentMethod(s.GetContext(), "cust_001")
	s.Require().NoError(err)
	s.Require().NotNil(def)
	s.Equal(third.ID, def.ID)
	_ = second
}

func (s *VaultServiceSuite) TestDeactivateSoleEntryLeavesNoDefault() {
	only := s.store("cust_001", "vault-1", "12", "2099")

	_, err := s.service.DeactivatePaymentMethod(s.GetContext(), only.ID)
	s.Require().NoError(err)

	def, err := s.service.GetDefaultPaymentMethod(s.GetContext(), "cust_001")
	s.Require().NoError(err)
	s.Nil(def)
}

func (s *VaultServiceSuite) TestDeactivateIsIdempotent() {
	only := s.store("cust_001", "vault-1", "12", "2099")

	resp, err := s.service.DeactivatePaymentMethod(s.GetContext(), only.ID)
	s.Require().NoError(err)
	s.True(resp.Changed)

	// The repeat reports a no-op, distinguishable from the call that
	// deactivated
	again, err := s.service.DeactivatePaymentMethod(s.GetContext(), only.ID)
	s.Require().NoError(err)
	s.False(again.Changed)
	s.False(again.PaymentMethod.IsActive)
}

func (s *VaultServiceSuite) TestStoreValidationCollectsAllViolations() {
	month, year := "13", "99"
	_, err := s.service.StorePaymentMethod(s.GetContext(), &dto.StorePaymentMethodRequest{
		CustomerID:  "x",
		MethodType:  "crypto",
		ExpiryMonth: &month,
		ExpiryYear:  &year,
	})
	s.Require().Error(err)
	s.True(ierr.IsValidation(err))

	details := ierr.Details(err)
	s.Contains(details, "customer_id")
	s.Contains(details, "gateway_customer_ref")
	s.Contains(details, "token")
	s.Contains(details, "method_type")
	s.Contains(details, "expiry_month")
	s.Contains(details, "expiry_year")
}

func (s *VaultServiceSuite) TestChargeWithVaultUsesDefault() {
	s.store("cust_001", "vault-1", "12", "2099")

	resp, err := s.service.ChargeWithVault(s.GetContext(), &dto.ChargeVaultRequest{
		CustomerID: "cust_001",
		Amount:     decimal.NewFromFloat(42.00),
		Currency:   "USD",
	})
	s.Require().NoError(err)
	s.Equal(gateway.StatusSuccess, resp.Status)
	s.NotEmpty(resp.TransactionID)

	s.Require().Len(s.GetGateway().ChargeRequests, 1)
	s.Equal("vault-1", s.GetGateway().ChargeRequests[0].CustomerRef)
	s.Equal(types.TransactionKindVault, s.GetGateway().ChargeRequests[0].Kind)

	// Success stamps last used
	def, err := s.service.GetDefaultPaymentMethod(s.GetContext(), "cust_001")
	s.Require().NoError(err)
	s.NotNil(def.LastUsedAt)
}

func (s *VaultServiceSuite) TestChargeWithVaultByExplicitEntry() {
	s.store("cust_001", "vault-1", "12", "2099")
	second := s.store("cust_001", "vault-2", "12", "2099")

	resp, err := s.service.ChargeWithVault(s.GetContext(), &dto.ChargeVaultRequest{
		CustomerID:      "cust_001",
		PaymentMethodID: second.ID,
		Amount:          decimal.NewFromInt(10),
		Currency:        "USD",
	})
	s.Require().NoError(err)
	s.Equal(gateway.StatusSuccess, resp.Status)
	s.Equal("vault-2", s.GetGateway().ChargeRequests[0].CustomerRef)
}

func (s *VaultServiceSuite) TestChargeWithVaultRejectsForeignEntry() {
	s.store("cust_001", "vault-1", "12", "2099")
	foreign := s.store("cust_002", "vault-2", "12", "2099")

	_, err := s.service.ChargeWithVault(s.GetContext(), &dto.ChargeVaultRequest{
		CustomerID:      "cust_001",
		PaymentMethodID: foreign.ID,
		Amount:          decimal.NewFromInt(10),
		Currency:        "USD",
	})
	s.Require().Error(err)
	s.True(ierr.IsInvalidOperation(err))
	s.Empty(s.GetGateway().ChargeRequests)
}

func (s *VaultServiceSuite) TestChargeWithVaultDeactivatedEntry() {
	entry := s.store("cust_001", "vault-1", "12", "2099")

	_, err := s.service.DeactivatePaymentMethod(s.GetContext(), entry.ID)
	s.Require().NoError(err)

	// A deactivated entry classifies the same as a missing one
	_, err = s.service.ChargeWithVault(s.GetContext(), &dto.ChargeVaultRequest{
		CustomerID:      "cust_001",
		PaymentMethodID: entry.ID,
		Amount:          decimal.NewFromInt(10),
		Currency:        "USD",
	})
	s.Require().Error(err)
	s.True(ierr.IsNotFound(err))
	s.Empty(s.GetGateway().ChargeRequests)
}

func (s *VaultServiceSuite) TestChargeWithVaultNoDefault() {
	_, err := s.service.ChargeWithVault(s.GetContext(), &dto.ChargeVaultRequest{
		CustomerID: "cust_001",
		Amount:     decimal.NewFromInt(10),
		Currency:   "USD",
	})
	s.Require().Error(err)
	s.True(ierr.IsNotFound(err))
}

func (s *VaultServiceSuite) TestChargeWithVaultExpiredCardFailsBeforeNetwork() {
	s.store("cust_001", "vault-1", "01", "2020")

	_, err := s.service.ChargeWithVault(s.GetContext(), &dto.ChargeVaultRequest{
		CustomerID: "cust_001",
		Amount:     decimal.NewFromInt(10),
		Currency:   "USD",
	})
	s.Require().Error(err)
	s.True(ierr.IsPaymentMethodExpired(err))
	s.Empty(s.GetGateway().ChargeRequests)
}

func (s *VaultServiceSuite) TestChargeWithVaultDeclined() {
	s.store("cust_001", "vault-1", "12", "2099")
	s.GetGateway().ScriptDecline("vault-1", "200")

	resp, err := s.service.ChargeWithVault(s.GetContext(), &dto.ChargeVaultRequest{
		CustomerID: "cust_001",
		Amount:     decimal.NewFromInt(10),
		Currency:   "USD",
	})
	s.Require().NoError(err)
	s.Equal(gateway.StatusDeclined, resp.Status)
	s.Equal("200", resp.DeclineCode)

	// Declined charges never stamp last used
	def, err := s.service.GetDefaultPaymentMethod(s.GetContext(), "cust_001")
	s.Require().NoError(err)
	s.Nil(def.LastUsedAt)
}

func (s *VaultServiceSuite) TestChargeWithVaultTransportFailure() {
	pm := s.store("cust_001", "vault-1", "12", "2099")
	s.GetGateway().ScriptTransportError()

	_, err := s.service.ChargeWithVault(s.GetContext(), &dto.ChargeVaultRequest{
		CustomerID: "cust_001",
		Amount:     decimal.NewFromInt(10),
		Currency:   "USD",
	})
	s.Require().Error(err)
	s.True(ierr.IsGatewayCommunication(err))
	// The wrapping error names the entry that failed
	s.Equal(pm.ID, ierr.Details(err)["payment_method_id"])
}

func (s *VaultServiceSuite) TestCleanupExpired() {
	expired1 := s.store("cust_001", "vault-1", "01", "2020")
	expired2 := s.store("cust_002", "vault-2", "06", "2024")
	healthy := s.store("cust_003", "vault-3", "12", "2099")

	now := time.Date(2025, time.June, 15, 0, 0, 0, 0, time.UTC)
	resp, err := s.service.CleanupExpired(s.GetContext(), now)
	s.Require().NoError(err)
	s.Equal(2, resp.Deactivated)
	s.ElementsMatch([]string{expired1.ID, expired2.ID}, resp.IDs)

	kept, err := s.service.GetPaymentMethod(s.GetContext(), healthy.ID)
	s.Require().NoError(err)
	s.True(kept.IsActive)

	// A second run finds nothing: cleanup is idempotent
	again, err := s.service.CleanupExpired(s.GetContext(), now)
	s.Require().NoError(err)
	s.Equal(0, again.Deactivated)
}
