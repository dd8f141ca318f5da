package service

import (
	"context"
	"strconv"
	"time"

	"github.com/codeldorado/rebill/internal/api/dto"
	"github.com/codeldorado/rebill/internal/domain/subscription"
	ierr "github.com/codeldorado/rebill/internal/errors"
	"github.com/codeldorado/rebill/internal/gateway"
	"github.com/codeldorado/rebill/internal/types"
)

// Billing attempt outcomes reported by ProcessDue
const (
	OutcomeSuccess  = "success"
	OutcomeDeclined = "declined"
	OutcomeError    = "error"
	OutcomeSkipped  = "skipped"
)

// BillingService drives the subscription lifecycle and the due-batch
// scheduler
type BillingService interface {
	CreateSubscription(ctx context.Context, req *dto.CreateSubscriptionRequest) (*dto.SubscriptionResponse, error)
	GetSubscription(ctx context.Context, id string) (*dto.SubscriptionResponse, error)
	ListByCustomer(ctx context.Context, customerID string) (*dto.ListSubscriptionsResponse, error)
	// CancelSubscription is idempotent-safe: a missing or already cancelled
	// subscription yields Cancelled=false, never an error.
	CancelSubscription(ctx context.Context, id string) (*dto.CancelSubscriptionResponse, error)

	// ProcessDue bills every active subscription due as of the given instant,
	// longest overdue first. One failing subscription never aborts the batch.
	ProcessDue(ctx context.Context, asOf time.Time) (*dto.ProcessDueResponse, error)

	// ProcessOne attempts a single billing cycle for one subscription
	ProcessOne(ctx context.Context, sub *subscription.Subscription) *dto.BillingAttemptResult

	Statistics(ctx context.Context) (*dto.StatisticsResponse, error)
}

type billingService struct {
	ServiceParams
}

// NewBillingService creates a new billing service
func NewBillingService(params ServiceParams) BillingService {
	return &billingService{ServiceParams: params}
}

func (s *billingService) CreateSubscription(ctx context.Context, req *dto.CreateSubscriptionRequest) (*dto.SubscriptionResponse, error) {
	if err := req.Validate(s.Config.Billing.MaxChargeAmount); err != nil {
		return nil, err
	}

	sub, err := req.ToSubscription(time.Now().UTC())
	if err != nil {
		return nil, err
	}

	if err := s.SubRepo.Create(ctx, sub); err != nil {
		return nil, err
	}

	s.Logger.WithContext(ctx).Infow("subscription created",
		"subscription_id", sub.ID,
		"customer_id", sub.CustomerID,
		"frequency", sub.Frequency,
		"next_billing_at", sub.NextBillingAt)

	return dto.NewSubscriptionResponse(sub), nil
}

func (s *billingService) GetSubscription(ctx context.Context, id string) (*dto.SubscriptionResponse, error) {
	sub, err := s.SubRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return dto.NewSubscriptionResponse(sub), nil
}

func (s *billingService) ListByCustomer(ctx context.Context, customerID string) (*dto.ListSubscriptionsResponse, error) {
	if !types.IsValidCustomerID(customerID) {
		return nil, ierr.NewErrorf("invalid customer id: %s", customerID).
			WithHint("Customer id must be 3-255 characters of letters, digits, underscore or hyphen").
			Mark(ierr.ErrValidation)
	}

	subs, err := s.SubRepo.ListByCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}

	items := make([]*dto.SubscriptionResponse, 0, len(subs))
	for _, sub := range subs {
		items = append(items, dto.NewSubscriptionResponse(sub))
	}
	return &dto.ListSubscriptionsResponse{Items: items, Total: len(items)}, nil
}

// CancelSubscription cancels an active subscription. A missing or already
// cancelled subscription is a no-op reported as Cancelled=false, so the
// caller can tell whether this call performed the cancellation.
func (s *billingService) CancelSubscription(ctx context.Context, id string) (*dto.CancelSubscriptionResponse, error) {
	sub, err := s.SubRepo.Get(ctx, id)
	if err != nil {
		if ierr.IsNotFound(err) {
			return &dto.CancelSubscriptionResponse{Cancelled: false}, nil
		}
		return nil, err
	}

	if !sub.IsActive() {
		return &dto.CancelSubscriptionResponse{
			Cancelled:    false,
			Subscription: dto.NewSubscriptionResponse(sub),
		}, nil
	}

	now := time.Now().UTC()
	cancelled, err := s.SubRepo.Cancel(ctx, id, now)
	if err != nil {
		return nil, err
	}

	if cancelled {
		s.Logger.WithContext(ctx).Infow("subscription cancelled",
			"subscription_id", id,
			"customer_id", sub.CustomerID)
	}

	// On a lost race with another cancellation the re-read still reports
	// the final state, with Cancelled=false.
	sub, err = s.SubRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &dto.CancelSubscriptionResponse{
		Cancelled:    cancelled,
		Subscription: dto.NewSubscriptionResponse(sub),
	}, nil
}

func (s *billingService) ProcessDue(ctx context.Context, asOf time.Time) (*dto.ProcessDueResponse, error) {
	due, err := s.SubRepo.ListDue(ctx, asOf)
	if err != nil {
		return nil, err
	}

	resp := &dto.ProcessDueResponse{
		Results: make([]*dto.BillingAttemptResult, 0, len(due)),
	}

	for _, sub := range due {
		result := s.ProcessOne(ctx, sub)
		resp.Results = append(resp.Results, result)
		resp.Processed++
		switch result.Outcome {
		case OutcomeSuccess:
			resp.Succeeded++
		case OutcomeDeclined:
			resp.Declined++
		case OutcomeSkipped:
			resp.Skipped++
		default:
			resp.Failed++
		}
	}

	s.Logger.WithContext(ctx).Infow("due batch processed",
		"as_of", asOf,
		"processed", resp.Processed,
		"succeeded", resp.Succeeded,
		"declined", resp.Declined,
		"failed", resp.Failed,
		"skipped", resp.Skipped)

	return resp, nil
}

// ProcessOne attempts one billing cycle. The subscription is re-read before
// charging so a cancellation between batch selection and execution is
// honoured. A decline leaves every billing field untouched and carries the
// processor's decline code through verbatim.
func (s *billingService) ProcessOne(ctx context.Context, sub *subscription.Subscription) *dto.BillingAttemptResult {
	log := s.Logger.WithContext(ctx)

	fresh, err := s.SubRepo.Get(ctx, sub.ID)
	if err != nil {
		log.Errorw("billing attempt failed to load subscription",
			"subscription_id", sub.ID, "error", err)
		return &dto.BillingAttemptResult{
			SubscriptionID: sub.ID,
			Outcome:        OutcomeError,
			Message:        "failed to load subscription",
		}
	}
	if !fresh.IsActive() {
		return &dto.BillingAttemptResult{
			SubscriptionID: sub.ID,
			Outcome:        OutcomeError,
			Message:        "not active",
		}
	}

	pm, err := s.VaultRepo.GetDefault(ctx, fresh.CustomerID)
	if err != nil {
		if ierr.IsNotFound(err) {
			log.Warnw("billing attempt has no default payment method",
				"subscription_id", fresh.ID, "customer_id", fresh.CustomerID)
			return &dto.BillingAttemptResult{
				SubscriptionID: fresh.ID,
				Outcome:        OutcomeError,
				Message:        "customer has no default payment method",
			}
		}
		return &dto.BillingAttemptResult{
			SubscriptionID: fresh.ID,
			Outcome:        OutcomeError,
			Message:        "failed to load payment method",
		}
	}

	now := time.Now().UTC()
	if pm.IsExpired(now) {
		log.Warnw("billing attempt skipped expired payment method",
			"subscription_id", fresh.ID, "payment_method_id", pm.ID)
		return &dto.BillingAttemptResult{
			SubscriptionID: fresh.ID,
			Outcome:        OutcomeError,
			Message:        "default payment method has expired",
		}
	}

	result, err := s.GatewayClient.ChargeCustomer(ctx, &gateway.ChargeCustomerRequest{
		CustomerRef: pm.GatewayCustomerRef,
		CustomerID:  fresh.CustomerID,
		Token:       pm.Token,
		Amount:      fresh.Amount,
		Currency:    fresh.Currency,
		Kind:        types.TransactionKindRebill,
		Metadata: types.Metadata{
			"subscription_id": fresh.ID,
			"billing_cycle":   strconv.Itoa(fresh.BillingCycle + 1),
		},
	})
	if err != nil {
		log.Errorw("billing attempt failed at the gateway",
			"subscription_id", fresh.ID, "error", err)
		return &dto.BillingAttemptResult{
			SubscriptionID: fresh.ID,
			Outcome:        OutcomeError,
			Message:        err.Error(),
		}
	}

	switch result.Status {
	case gateway.StatusSuccess:
		// The next date anchors on the billing base date, which after this
		// charge is the charge instant itself
		lastBilled := now
		fresh.LastBillingAt = &lastBilled
		next, err := fresh.Frequency.NextBillingDate(fresh.BillingBaseDate())
		if err != nil {
			log.Errorw("billing attempt cannot compute next date",
				"subscription_id", fresh.ID, "frequency", fresh.Frequency, "error", err)
			return &dto.BillingAttemptResult{
				SubscriptionID: fresh.ID,
				Outcome:        OutcomeError,
				TransactionID:  result.TransactionID,
				Message:        "charge recorded but next billing date could not be computed",
			}
		}

		advanced, err := s.SubRepo.ApplyBillingSuccess(ctx, fresh.ID, now, next)
		if err != nil {
			log.Errorw("billing attempt failed to advance subscription",
				"subscription_id", fresh.ID, "error", err)
			return &dto.BillingAttemptResult{
				SubscriptionID: fresh.ID,
				Outcome:        OutcomeError,
				TransactionID:  result.TransactionID,
				Message:        "charge recorded but subscription could not be advanced",
			}
		}
		if !advanced {
			return &dto.BillingAttemptResult{
				SubscriptionID: fresh.ID,
				Outcome:        OutcomeSkipped,
				TransactionID:  result.TransactionID,
				Message:        "subscription was cancelled during billing",
			}
		}

		if err := s.VaultRepo.MarkUsed(ctx, pm.ID, now); err != nil {
			log.Errorw("failed to stamp payment method last used",
				"payment_method_id", pm.ID, "error", err)
		}

		log.Infow("billing attempt succeeded",
			"subscription_id", fresh.ID,
			"transaction_id", result.TransactionID,
			"billing_cycle", fresh.BillingCycle+1,
			"next_billing_at", next)
		return &dto.BillingAttemptResult{
			SubscriptionID: fresh.ID,
			Outcome:        OutcomeSuccess,
			TransactionID:  result.TransactionID,
			BillingCycle:   fresh.BillingCycle + 1,
		}

	case gateway.StatusDeclined:
		// A decline is final for this attempt. The subscription's billing
		// fields are left untouched and the processor's code is passed
		// through unchanged.
		log.Warnw("billing attempt declined",
			"subscription_id", fresh.ID,
			"decline_code", result.DeclineCode)
		return &dto.BillingAttemptResult{
			SubscriptionID: fresh.ID,
			Outcome:        OutcomeDeclined,
			DeclineCode:    result.DeclineCode,
			Message:        result.Message,
		}

	default:
		log.Errorw("billing attempt got a processor error",
			"subscription_id", fresh.ID, "message", result.Message)
		return &dto.BillingAttemptResult{
			SubscriptionID: fresh.ID,
			Outcome:        OutcomeError,
			Message:        result.Message,
		}
	}
}

func (s *billingService) Statistics(ctx context.Context) (*dto.StatisticsResponse, error) {
	stats, err := s.SubRepo.Counts(ctx)
	if err != nil {
		return nil, err
	}
	return dto.NewStatisticsResponse(stats), nil
}
