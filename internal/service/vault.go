package service

import (
	"context"
	"time"

	"github.com/codeldorado/rebill/internal/api/dto"
	"github.com/codeldorado/rebill/internal/domain/vault"
	ierr "github.com/codeldorado/rebill/internal/errors"
	"github.com/codeldorado/rebill/internal/gateway"
	"github.com/codeldorado/rebill/internal/types"
)

// VaultService manages stored payment methods and charges against them
type VaultService interface {
	StorePaymentMethod(ctx context.Context, req *dto.StorePaymentMethodRequest) (*dto.PaymentMethodResponse, error)
	GetPaymentMethod(ctx context.Context, id string) (*dto.PaymentMethodResponse, error)
	ListPaymentMethods(ctx context.Context, customerID string) (*dto.ListPaymentMethodsResponse, error)

	// GetDefaultPaymentMethod returns the customer's default entry, or nil
	// when the customer has none. Absence of a default is not an error.
	GetDefaultPaymentMethod(ctx context.Context, customerID string) (*dto.PaymentMethodResponse, error)

	// SetDefaultPaymentMethod and DeactivatePaymentMethod are no-ops with
	// Changed=false, never an error, when the entry is missing or not in a
	// state the operation applies to.
	SetDefaultPaymentMethod(ctx context.Context, id string) (*dto.VaultUpdateResponse, error)
	DeactivatePaymentMethod(ctx context.Context, id string) (*dto.VaultUpdateResponse, error)

	// ChargeWithVault charges a stored payment method, the customer's
	// default when no entry id is given. Expiry is checked before any
	// network call.
	ChargeWithVault(ctx context.Context, req *dto.ChargeVaultRequest) (*dto.ChargeResponse, error)

	// CleanupExpired deactivates every active card whose expiry month has
	// passed. Safe to run repeatedly.
	CleanupExpired(ctx context.Context, now time.Time) (*dto.CleanupExpiredResponse, error)
}

type vaultService struct {
	ServiceParams
}

// NewVaultService creates a new vault service
func NewVaultService(params ServiceParams) VaultService {
	return &vaultService{ServiceParams: params}
}

func (s *vaultService) StorePaymentMethod(ctx context.Context, req *dto.StorePaymentMethodRequest) (*dto.PaymentMethodResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	pm := req.ToPaymentMethod(time.Now().UTC())
	if err := s.VaultRepo.Create(ctx, pm); err != nil {
		return nil, err
	}

	s.Logger.WithContext(ctx).Infow("payment method stored",
		"payment_method_id", pm.ID,
		"customer_id", pm.CustomerID,
		"method_type", pm.MethodType,
		"is_default", pm.IsDefault)

	return dto.NewPaymentMethodResponse(pm), nil
}

func (s *vaultService) GetPaymentMethod(ctx context.Context, id string) (*dto.PaymentMethodResponse, error) {
	pm, err := s.VaultRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return dto.NewPaymentMethodResponse(pm), nil
}

func (s *vaultService) ListPaymentMethods(ctx context.Context, customerID string) (*dto.ListPaymentMethodsResponse, error) {
	if !types.IsValidCustomerID(customerID) {
		return nil, ierr.NewErrorf("invalid customer id: %s", customerID).
			WithHint("Customer id must be 3-255 characters of letters, digits, underscore or hyphen").
			Mark(ierr.ErrValidation)
	}

	pms, err := s.VaultRepo.ListActive(ctx, customerID)
	if err != nil {
		return nil, err
	}

	items := make([]*dto.PaymentMethodResponse, 0, len(pms))
	for _, pm := range pms {
		items = append(items, dto.NewPaymentMethodResponse(pm))
	}
	return &dto.ListPaymentMethodsResponse{Items: items, Total: len(items)}, nil
}

func (s *vaultService) GetDefaultPaymentMethod(ctx context.Context, customerID string) (*dto.PaymentMethodResponse, error) {
	if !types.IsValidCustomerID(customerID) {
		return nil, ierr.NewErrorf("invalid customer id: %s", customerID).
			WithHint("Customer id must be 3-255 characters of letters, digits, underscore or hyphen").
			Mark(ierr.ErrValidation)
	}

	pm, err := s.VaultRepo.GetDefault(ctx, customerID)
	if err != nil {
		if ierr.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return dto.NewPaymentMethodResponse(pm), nil
}

// SetDefaultPaymentMethod makes the entry the customer's only default. A
// missing or deactivated entry is a no-op reported as Changed=false.
func (s *vaultService) SetDefaultPaymentMethod(ctx context.Context, id string) (*dto.VaultUpdateResponse, error) {
	pm, err := s.VaultRepo.Get(ctx, id)
	if err != nil {
		if ierr.IsNotFound(err) {
			return &dto.VaultUpdateResponse{Changed: false}, nil
		}
		return nil, err
	}
	if !pm.IsActive {
		return &dto.VaultUpdateResponse{
			Changed:       false,
			PaymentMethod: dto.NewPaymentMethodResponse(pm),
		}, nil
	}

	changed, err := s.VaultRepo.SetDefault(ctx, id)
	if err != nil {
		return nil, err
	}
	if changed {
		s.Logger.WithContext(ctx).Infow("payment method set as default",
			"payment_method_id", id,
			"customer_id", pm.CustomerID)
	}

	pm, err = s.VaultRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &dto.VaultUpdateResponse{
		Changed:       changed,
		PaymentMethod: dto.NewPaymentMethodResponse(pm),
	}, nil
}

// DeactivatePaymentMethod soft-deactivates an entry. A missing or already
// inactive entry is a no-op reported as Changed=false. When the default
// entry is deactivated the store promotes the newest remaining active
// entry in the same transaction.
func (s *vaultService) DeactivatePaymentMethod(ctx context.Context, id string) (*dto.VaultUpdateResponse, error) {
	pm, err := s.VaultRepo.Get(ctx, id)
	if err != nil {
		if ierr.IsNotFound(err) {
			return &dto.VaultUpdateResponse{Changed: false}, nil
		}
		return nil, err
	}
	if !pm.IsActive {
		return &dto.VaultUpdateResponse{
			Changed:       false,
			PaymentMethod: dto.NewPaymentMethodResponse(pm),
		}, nil
	}

	deactivated, err := s.VaultRepo.Deactivate(ctx, id)
	if err != nil {
		return nil, err
	}
	if deactivated {
		s.Logger.WithContext(ctx).Infow("payment method deactivated",
			"payment_method_id", id,
			"customer_id", pm.CustomerID,
			"was_default", pm.IsDefault)
	}

	pm, err = s.VaultRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &dto.VaultUpdateResponse{
		Changed:       deactivated,
		PaymentMethod: dto.NewPaymentMethodResponse(pm),
	}, nil
}

func (s *vaultService) ChargeWithVault(ctx context.Context, req *dto.ChargeVaultRequest) (*dto.ChargeResponse, error) {
	if err := req.Validate(s.Config.Billing.MaxChargeAmount); err != nil {
		return nil, err
	}

	pm, err := s.resolvePaymentMethod(ctx, req)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if pm.IsExpired(now) {
		return nil, ierr.NewError("payment method has expired").
			WithHint("The stored card's expiry month has passed").
			WithReportableDetails(map[string]any{
				"payment_method_id": pm.ID,
				"expiry_month":      *pm.ExpiryMonth,
				"expiry_year":       *pm.ExpiryYear,
			}).
			Mark(ierr.ErrPaymentMethodExpired)
	}

	result, err := s.GatewayClient.ChargeCustomer(ctx, &gateway.ChargeCustomerRequest{
		CustomerRef: pm.GatewayCustomerRef,
		CustomerID:  req.CustomerID,
		Token:       pm.Token,
		Amount:      req.Amount,
		Currency:    req.Currency,
		Kind:        types.TransactionKindVault,
		Metadata:    req.Metadata,
	})
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to charge the stored payment method").
			WithReportableDetails(map[string]any{"payment_method_id": pm.ID}).
			Mark(ierr.ErrPaymentProcessing)
	}

	if result.Status == gateway.StatusSuccess {
		if err := s.VaultRepo.MarkUsed(ctx, pm.ID, now); err != nil {
			s.Logger.WithContext(ctx).Errorw("failed to stamp payment method last used",
				"payment_method_id", pm.ID, "error", err)
		}
		s.Logger.WithContext(ctx).Infow("vault charge approved",
			"payment_method_id", pm.ID,
			"customer_id", req.CustomerID,
			"transaction_id", result.TransactionID,
			"amount", req.Amount)
	}

	return dto.NewChargeResponse(result), nil
}

// resolvePaymentMethod picks the entry to charge: the named one, verified to
// belong to the customer and be active, or the customer's default.
func (s *vaultService) resolvePaymentMethod(ctx context.Context, req *dto.ChargeVaultRequest) (*vault.PaymentMethod, error) {
	if req.PaymentMethodID == "" {
		pm, err := s.VaultRepo.GetDefault(ctx, req.CustomerID)
		if err != nil {
			if ierr.IsNotFound(err) {
				return nil, ierr.NewError("customer has no default payment method").
					WithHint("Store a payment method before charging the vault").
					WithReportableDetails(map[string]any{"customer_id": req.CustomerID}).
					Mark(ierr.ErrNotFound)
			}
			return nil, err
		}
		return pm, nil
	}

	pm, err := s.VaultRepo.Get(ctx, req.PaymentMethodID)
	if err != nil {
		return nil, err
	}
	if pm.CustomerID != req.CustomerID {
		return nil, ierr.NewError("payment method does not belong to customer").
			WithHint("The payment method belongs to a different customer").
			WithReportableDetails(map[string]any{
				"payment_method_id": req.PaymentMethodID,
				"customer_id":       req.CustomerID,
			}).
			Mark(ierr.ErrInvalidOperation)
	}
	// A deactivated entry is not chargeable; it classifies the same as a
	// missing one
	if !pm.IsActive {
		return nil, ierr.NewError("payment method is not active").
			WithHint("The payment method was deactivated").
			WithReportableDetails(map[string]any{"payment_method_id": req.PaymentMethodID}).
			Mark(ierr.ErrNotFound)
	}
	return pm, nil
}

func (s *vaultService) CleanupExpired(ctx context.Context, now time.Time) (*dto.CleanupExpiredResponse, error) {
	expired, err := s.VaultRepo.ListExpired(ctx, now)
	if err != nil {
		return nil, err
	}

	resp := &dto.CleanupExpiredResponse{}
	for _, pm := range expired {
		deactivated, err := s.VaultRepo.Deactivate(ctx, pm.ID)
		if err != nil {
			s.Logger.WithContext(ctx).Errorw("failed to deactivate expired payment method",
				"payment_method_id", pm.ID, "error", err)
			continue
		}
		if deactivated {
			resp.Deactivated++
			resp.IDs = append(resp.IDs, pm.ID)
		}
	}

	if resp.Deactivated > 0 {
		s.Logger.WithContext(ctx).Infow("expired payment methods deactivated",
			"count", resp.Deactivated)
	}
	return resp, nil
}
