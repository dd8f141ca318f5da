package service

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"github.com/codeldorado/rebill/internal/api/dto"
	"github.com/codeldorado/rebill/internal/domain/transaction"
	ierr "github.com/codeldorado/rebill/internal/errors"
	"github.com/codeldorado/rebill/internal/gateway"
	"github.com/codeldorado/rebill/internal/testutil"
	"github.com/codeldorado/rebill/internal/types"
)

type PaymentServiceSuite struct {
	testutil.BaseServiceTestSuite
	service PaymentService
}

func TestPaymentService(t *testing.T) {
	suite.Run(t, new(PaymentServiceSuite))
}

func (s *PaymentServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.service = NewPaymentService(ServiceParams{
		Logger:          s.GetLogger(),
		Config:          s.GetConfig(),
		SubRepo:         s.GetStores().SubscriptionRepo,
		VaultRepo:       s.GetStores().VaultRepo,
		TransactionRepo: s.GetStores().TransactionRepo,
		GatewayClient:   s.GetGateway(),
	})
}

func (s *PaymentServiceSuite) seedTransaction(kind types.TransactionKind, amount decimal.Decimal) *transaction.Transaction {
	txn := &transaction.Transaction{
		ID:           types.GenerateUUIDWithPrefix(types.UUID_PREFIX_TRANSACTION),
		GatewayTxnID: "gw-123",
		CustomerID:   "cust_001",
		Kind:         kind,
		Status:       types.TransactionStatusApproved,
		Amount:       amount,
		Currency:     "USD",
		CreatedAt:    time.Now().UTC(),
	}
	s.Require().NoError(s.GetStores().TransactionRepo.Create(s.GetContext(), txn))
	return txn
}

func (s *PaymentServiceSuite) TestBeginCheckout() {
	resp, err := s.service.BeginCheckout(s.GetContext(), &dto.BeginCheckoutRequest{
		Amount:      decimal.NewFromFloat(19.99),
		Currency:    "USD",
		RedirectURL: "https://example.com/return",
	})
	s.Require().NoError(err)
	s.NotEmpty(resp.FormURL)
}

func (s *PaymentServiceSuite) TestBeginCheckoutValidation() {
	_, err := s.service.BeginCheckout(s.GetContext(), &dto.BeginCheckoutRequest{
		Amount:   decimal.NewFromInt(-1),
		Currency: "usd",
	})
	s.Require().Error(err)
	s.True(ierr.IsValidation(err))

	details := ierr.Details(err)
	s.Contains(details, "amount")
	s.Contains(details, "currency")
	s.Contains(details, "redirect_url")
}

func (s *PaymentServiceSuite) TestCompleteCheckoutRecordsTransaction() {
	resp, err := s.service.CompleteCheckout(s.GetContext(), &dto.CompleteCheckoutRequest{TokenID: "tok_abc"})
	s.Require().NoError(err)
	s.Equal(gateway.StatusSuccess, resp.Status)
	s.NotEmpty(resp.TransactionID)

	// The durable record exists for the approved charge
	recorded := s.GetTransactionStore().All()
	s.Require().Len(recorded, 1)
	s.Equal(resp.TransactionID, recorded[0].GatewayTxnID)
}

func (s *PaymentServiceSuite) TestCompleteCheckoutRequiresToken() {
	_, err := s.service.CompleteCheckout(s.GetContext(), &dto.CompleteCheckoutRequest{})
	s.Require().Error(err)
	s.True(ierr.IsValidation(err))
}

func (s *PaymentServiceSuite) TestRefundValidatedAgainstRecord() {
	txn := s.seedTransaction(types.TransactionKindSale, decimal.NewFromInt(50))

	resp, err := s.service.RefundTransaction(s.GetContext(), &dto.RefundRequest{
		TransactionID: txn.ID,
		Amount:        decimal.NewFromInt(20),
	})
	s.Require().NoError(err)
	s.Equal(txn.ID, resp.OriginalTransactionID)
	s.Equal("USD", resp.Currency)
	s.NotEmpty(resp.RefundTransactionID)

	// The gateway was told the recorded gateway id, not our id
	s.Require().Len(s.GetGateway().RefundedTxnIDs, 1)
	s.Equal("gw-123", s.GetGateway().RefundedTxnIDs[0])
}

func (s *PaymentServiceSuite) TestRefundRejectsExcessiveAmount() {
	txn := s.seedTransaction(types.TransactionKindSale, decimal.NewFromInt(50))

	_, err := s.service.RefundTransaction(s.GetContext(), &dto.RefundRequest{
		TransactionID: txn.ID,
		Amount:        decimal.NewFromInt(51),
	})
	s.Require().Error(err)
	s.True(ierr.IsValidation(err))
	s.Empty(s.GetGateway().RefundedTxnIDs)
}

func (s *PaymentServiceSuite) TestRefundRejectsRefundOfRefund() {
	txn := s.seedTransaction(types.TransactionKindRefund, decimal.NewFromInt(50))

	_, err := s.service.RefundTransaction(s.GetContext(), &dto.RefundRequest{
		TransactionID: txn.ID,
		Amount:        decimal.NewFromInt(10),
	})
	s.Require().Error(err)
	s.True(ierr.IsInvalidOperation(err))
}

func (s *PaymentServiceSuite) TestRefundMissingTransaction() {
	_, err := s.service.RefundTransaction(s.GetContext(), &dto.RefundRequest{
		TransactionID: "txn_missing",
		Amount:        decimal.NewFromInt(10),
	})
	s.Require().Error(err)
	s.True(ierr.IsNotFound(err))
}

func (s *PaymentServiceSuite) TestGetAndListTransactions() {
	txn := s.seedTransaction(types.TransactionKindSale, decimal.NewFromInt(50))

	got, err := s.service.GetTransaction(s.GetContext(), txn.ID)
	s.Require().NoError(err)
	s.Equal(txn.ID, got.ID)
	s.True(got.Amount.Equal(txn.Amount))

	list, err := s.service.ListTransactions(s.GetContext(), "cust_001")
	s.Require().NoError(err)
	s.Equal(1, list.Total)

	empty, err := s.service.ListTransactions(s.GetContext(), "cust_999")
	s.Require().NoError(err)
	s.Equal(0, empty.Total)
}
