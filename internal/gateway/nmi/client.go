package nmi

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/codeldorado/rebill/internal/config"
	"github.com/codeldorado/rebill/internal/domain/transaction"
	ierr "github.com/codeldorado/rebill/internal/errors"
	"github.com/codeldorado/rebill/internal/gateway"
	"github.com/codeldorado/rebill/internal/logger"
	"github.com/codeldorado/rebill/internal/types"
)

// Client implements the gateway contract against the NMI processor. The
// three step API handles interactive card entry; the transaction API
// handles vault and rebill charges and refunds. Approved charges are
// persisted through the recorder before being reported as success.
type Client struct {
	cfg        config.GatewayConfig
	recorder   transaction.Repository
	logger     *logger.Logger
	httpClient *http.Client
}

// NewClient creates a new NMI gateway client
func NewClient(cfg config.GatewayConfig, recorder transaction.Repository, logger *logger.Logger) gateway.Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		cfg:      cfg,
		recorder: recorder,
		logger:   logger,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// InitializeCharge begins a three step interactive sale and returns the
// hosted form URL. Amount and currency are validated before any network
// call.
func (c *Client) InitializeCharge(ctx context.Context, req *gateway.InitializeRequest) (*gateway.InitializeResult, error) {
	if err := gateway.ValidateAmount(req.Amount); err != nil {
		return nil, err
	}
	if err := gateway.ValidateCurrency(req.Currency); err != nil {
		return nil, err
	}

	body := stepOneRequest{
		APIKey:      c.cfg.APIKey,
		RedirectURL: req.RedirectURL,
		Amount:      req.Amount.StringFixed(2),
		Currency:    req.Currency,
		Billing:     contactToXML(req.Billing),
		Shipping:    contactToXML(req.Shipping),
	}

	resp, err := c.postThreeStep(ctx, body)
	if err != nil {
		return nil, err
	}

	if resp.Result != resultApproved || resp.FormURL == "" {
		c.logger.Errorw("gateway refused step one",
			"result", resp.Result,
			"result_text", resp.ResultText,
			"result_code", resp.ResultCode)
		return nil, ierr.NewErrorf("gateway refused charge initialization: %s", resp.ResultText).
			WithHint("The payment processor did not accept the charge setup").
			WithReportableDetails(map[string]any{"result_code": resp.ResultCode}).
			Mark(ierr.ErrGatewayProtocol)
	}

	return &gateway.InitializeResult{FormURL: resp.FormURL}, nil
}

// CompleteCharge finalizes a previously initialized charge. The approved
// transaction is recorded before the result is reported as success.
func (c *Client) CompleteCharge(ctx context.Context, completionToken string) (*gateway.ChargeResult, error) {
	if strings.TrimSpace(completionToken) == "" {
		return nil, ierr.NewError("completion token is required").
			WithHint("Provide the token returned by the payment form redirect").
			Mark(ierr.ErrValidation)
	}

	resp, err := c.postThreeStep(ctx, stepThreeRequest{
		APIKey:  c.cfg.APIKey,
		TokenID: completionToken,
	})
	if err != nil {
		return nil, err
	}

	amount, _ := decimal.NewFromString(resp.Amount)
	result := &gateway.ChargeResult{
		TransactionID: resp.TransactionID,
		Amount:        amount,
		Currency:      resp.Currency,
		CardLast4:     maskedLast4(resp.Billing.CCNumber),
		Message:       resp.ResultText,
	}

	switch resp.Result {
	case resultApproved:
		if err := c.record(ctx, result, "", types.TransactionKindSale, nil); err != nil {
			return nil, err
		}
		result.Status = gateway.StatusSuccess
	case resultDeclined:
		result.Status = gateway.StatusDeclined
		result.DeclineCode = resp.ResultCode
	default:
		result.Status = gateway.StatusError
	}

	c.logger.Infow("completed interactive charge",
		"status", result.Status,
		"transaction_id", result.TransactionID,
		"result_code", resp.ResultCode)
	return result, nil
}

// Refund refunds a previously settled transaction
func (c *Client) Refund(ctx context.Context, originalTxnID string, amount decimal.Decimal) (*gateway.RefundResult, error) {
	if err := gateway.ValidateAmount(amount); err != nil {
		return nil, err
	}
	if strings.TrimSpace(originalTxnID) == "" {
		return nil, ierr.NewError("original transaction id is required").
			WithHint("Provide the transaction id of the charge to refund").
			Mark(ierr.ErrValidation)
	}

	form := url.Values{}
	form.Set("security_key", c.cfg.APIKey)
	form.Set("type", "refund")
	form.Set("transactionid", originalTxnID)
	form.Set("amount", amount.StringFixed(2))

	values, err := c.postTransaction(ctx, form)
	if err != nil {
		return nil, err
	}

	switch values.Get("response") {
	case resultApproved:
		c.logger.Infow("refund approved",
			"original_transaction_id", originalTxnID,
			"refund_transaction_id", values.Get("transactionid"))
		return &gateway.RefundResult{TransactionID: values.Get("transactionid")}, nil
	case resultDeclined:
		return nil, ierr.NewErrorf("refund declined: %s", values.Get("responsetext")).
			WithHint("The payment processor refused the refund").
			WithReportableDetails(map[string]any{
				"decline_code":   values.Get("response_code"),
				"transaction_id": originalTxnID,
			}).
			Mark(ierr.ErrGatewayDeclined)
	default:
		return nil, ierr.NewErrorf("unexpected refund response: %s", values.Get("responsetext")).
			WithHint("The payment processor returned an error for the refund").
			WithReportableDetails(map[string]any{"transaction_id": originalTxnID}).
			Mark(ierr.ErrGatewayProtocol)
	}
}

// ChargeCustomer charges a vaulted customer reference. Used for both
// subscription rebilling and vault based charges. The approved transaction
// is recorded before the result is reported as success.
func (c *Client) ChargeCustomer(ctx context.Context, req *gateway.ChargeCustomerRequest) (*gateway.ChargeResult, error) {
	if err := gateway.ValidateAmount(req.Amount); err != nil {
		return nil, err
	}
	if err := gateway.ValidateCurrency(req.Currency); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.CustomerRef) == "" {
		return nil, ierr.NewError("gateway customer reference is required").
			WithHint("The payment method has no gateway customer reference").
			Mark(ierr.ErrValidation)
	}

	form := url.Values{}
	form.Set("security_key", c.cfg.APIKey)
	form.Set("type", "sale")
	form.Set("customer_vault_id", req.CustomerRef)
	form.Set("amount", req.Amount.StringFixed(2))
	form.Set("currency", req.Currency)
	// The processor supports 20 merchant defined fields
	keys := lo.Keys(req.Metadata)
	sort.Strings(keys)
	for i, k := range keys {
		if i >= 20 {
			break
		}
		form.Set(fmt.Sprintf("merchant_defined_field_%d", i+1), k+"="+req.Metadata[k])
	}

	values, err := c.postTransaction(ctx, form)
	if err != nil {
		return nil, err
	}

	result := &gateway.ChargeResult{
		TransactionID: values.Get("transactionid"),
		Amount:        req.Amount,
		Currency:      req.Currency,
		CardLast4:     maskedLast4(values.Get("cc_number")),
		Message:       values.Get("responsetext"),
	}

	switch values.Get("response") {
	case resultApproved:
		if err := c.record(ctx, result, req.CustomerID, req.Kind, req.Metadata); err != nil {
			return nil, err
		}
		result.Status = gateway.StatusSuccess
	case resultDeclined:
		result.Status = gateway.StatusDeclined
		result.DeclineCode = values.Get("response_code")
	default:
		result.Status = gateway.StatusError
	}

	c.logger.Infow("charged vaulted customer",
		"status", result.Status,
		"customer_ref", req.CustomerRef,
		"transaction_id", result.TransactionID,
		"amount", req.Amount.String(),
		"currency", req.Currency)
	return result, nil
}

// record persists the durable transaction record for an approved charge.
// A failure here means the charge is NOT reported as success: the caller
// gets an error instead, keeping the no-success-without-record guarantee.
func (c *Client) record(ctx context.Context, result *gateway.ChargeResult, customerID string, kind types.TransactionKind, metadata types.Metadata) error {
	txn := &transaction.Transaction{
		ID:           types.GenerateUUIDWithPrefix(types.UUID_PREFIX_TRANSACTION),
		GatewayTxnID: result.TransactionID,
		CustomerID:   customerID,
		Kind:         kind,
		Status:       types.TransactionStatusApproved,
		Amount:       result.Amount,
		Currency:     result.Currency,
		Metadata:     metadata,
		CreatedAt:    time.Now().UTC(),
	}
	if result.CardLast4 != "" {
		last4 := result.CardLast4
		txn.CardLast4 = &last4
	}
	if err := c.recorder.Create(ctx, txn); err != nil {
		c.logger.Errorw("approved charge could not be recorded",
			"gateway_transaction_id", result.TransactionID,
			"error", err)
		return ierr.WithError(err).
			WithHint("Charge was approved but could not be recorded; do not retry blindly").
			WithReportableDetails(map[string]any{"gateway_transaction_id": result.TransactionID}).
			Mark(ierr.ErrDatabase)
	}
	return nil
}

// postThreeStep sends an XML request to the three step endpoint and decodes
// the response envelope
func (c *Client) postThreeStep(ctx context.Context, body any) (*threeStepResponse, error) {
	payload, err := xml.Marshal(body)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to encode gateway request").
			Mark(ierr.ErrInternal)
	}

	respBody, err := c.post(ctx, c.cfg.ThreeStepURL, "text/xml", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}

	var resp threeStepResponse
	if err := xml.Unmarshal(respBody, &resp); err != nil {
		return nil, ierr.WithError(err).
			WithHint("The payment processor returned a malformed response").
			Mark(ierr.ErrGatewayProtocol)
	}
	return &resp, nil
}

// postTransaction sends a form encoded request to the transaction endpoint
// and parses the query string response
func (c *Client) postTransaction(ctx context.Context, form url.Values) (url.Values, error) {
	respBody, err := c.post(ctx, c.cfg.TransactionURL, "application/x-www-form-urlencoded", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}

	values, err := url.ParseQuery(strings.TrimSpace(string(respBody)))
	if err != nil || values.Get("response") == "" {
		return nil, ierr.NewError("malformed gateway response").
			WithHint("The payment processor returned an unparseable response").
			Mark(ierr.ErrGatewayProtocol)
	}
	return values, nil
}

// post performs the HTTP call. Every transport failure is wrapped into a
// gateway communication error carrying the cause, never swallowed.
func (c *Client) post(ctx context.Context, endpoint, contentType string, body io.Reader) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to build gateway request").
			Mark(ierr.ErrInternal)
	}
	httpReq.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.Errorw("gateway request failed", "endpoint", endpoint, "error", err)
		return nil, ierr.WithError(err).
			WithHint("Unable to reach the payment processor").
			Mark(ierr.ErrGatewayCommunication)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to read payment processor response").
			Mark(ierr.ErrGatewayCommunication)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Errorw("gateway returned non-2xx status",
			"endpoint", endpoint,
			"status", resp.StatusCode)
		return nil, ierr.NewErrorf("gateway returned HTTP %d", resp.StatusCode).
			WithHint("The payment processor returned an unexpected status").
			Mark(ierr.ErrGatewayProtocol)
	}
	return respBody, nil
}

func contactToXML(info *gateway.ContactInfo) *stepOneContact {
	if info == nil {
		return nil
	}
	return &stepOneContact{
		FirstName:  info.FirstName,
		LastName:   info.LastName,
		Address1:   info.Address1,
		City:       info.City,
		State:      info.State,
		PostalCode: info.PostalCode,
		Country:    info.Country,
		Email:      info.Email,
		Phone:      info.Phone,
	}
}
