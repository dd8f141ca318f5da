package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	domainVault "github.com/codeldorado/rebill/internal/domain/vault"
	ierr "github.com/codeldorado/rebill/internal/errors"
	"github.com/codeldorado/rebill/internal/logger"
	"github.com/codeldorado/rebill/internal/types"
)

type vaultRepository struct {
	db     *sql.DB
	logger *logger.Logger
}

// NewVaultRepository creates a new postgres payment vault repository
func NewVaultRepository(db *sql.DB, logger *logger.Logger) domainVault.Repository {
	return &vaultRepository{db: db, logger: logger}
}

const vaultColumns = `id, customer_id, gateway_customer_ref, token, method_type,
	card_last4, card_brand, expiry_month, expiry_year, billing_name, billing_address,
	is_active, is_default, last_used_at, metadata, created_at, updated_at`

func (r *vaultRepository) Create(ctx context.Context, pm *domainVault.PaymentMethod) error {
	span := StartRepositorySpan(ctx, "payment_vault", "create", map[string]interface{}{
		"payment_method_id": pm.ID,
		"customer_id":       pm.CustomerID,
	})
	defer FinishSpan(span)

	metadata, err := marshalMetadata(pm.Metadata)
	if err != nil {
		SetSpanError(span, err)
		return err
	}

	// is_default is decided inside the insert itself: the entry becomes
	// default iff the customer has no other active entry. A concurrent
	// first-time store for the same customer is serialized by the partial
	// unique index, so two entries can never both become default.
	query := `
		INSERT INTO payment_vault (id, customer_id, gateway_customer_ref, token, method_type,
			card_last4, card_brand, expiry_month, expiry_year, billing_name, billing_address,
			is_active, is_default, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, TRUE,
			NOT EXISTS (SELECT 1 FROM payment_vault WHERE customer_id = $2 AND is_active),
			$12, $13, $14)
		RETURNING is_default
	`
	err = r.db.QueryRowContext(ctx, query,
		pm.ID, pm.CustomerID, pm.GatewayCustomerRef, pm.Token, string(pm.MethodType),
		pm.CardLast4, pm.CardBrand, pm.ExpiryMonth, pm.ExpiryYear, pm.BillingName,
		pm.BillingAddress, metadata, pm.CreatedAt, pm.UpdatedAt,
	).Scan(&pm.IsDefault)
	if err != nil {
		SetSpanError(span, err)
		return ierr.WithError(err).
			WithHint("Failed to store payment method").
			WithReportableDetails(map[string]any{"payment_method_id": pm.ID}).
			Mark(ierr.ErrDatabase)
	}
	pm.IsActive = true

	SetSpanSuccess(span)
	return nil
}

func (r *vaultRepository) Get(ctx context.Context, id string) (*domainVault.PaymentMethod, error) {
	span := StartRepositorySpan(ctx, "payment_vault", "get", map[string]interface{}{
		"payment_method_id": id,
	})
	defer FinishSpan(span)

	row := r.db.QueryRowContext(ctx,
		`SELECT `+vaultColumns+` FROM payment_vault WHERE id = $1`, id)

	pm, err := scanPaymentMethod(row)
	if err == sql.ErrNoRows {
		SetSpanError(span, err)
		return nil, ierr.NewError("payment method not found").
			WithHint("No payment method exists with this id").
			WithReportableDetails(map[string]any{"payment_method_id": id}).
			Mark(ierr.ErrNotFound)
	}
	if err != nil {
		SetSpanError(span, err)
		return nil, ierr.WithError(err).
			WithHint("Failed to get payment method").
			Mark(ierr.ErrDatabase)
	}

	SetSpanSuccess(span)
	return pm, nil
}

func (r *vaultRepository) ListActive(ctx context.Context, customerID string) ([]*domainVault.PaymentMethod, error) {
	span := StartRepositorySpan(ctx, "payment_vault", "list_active", map[string]interface{}{
		"customer_id": customerID,
	})
	defer FinishSpan(span)

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+vaultColumns+` FROM payment_vault
		 WHERE customer_id = $1 AND is_active
		 ORDER BY is_default DESC, created_at DESC, internal_id DESC`, customerID)
	if err != nil {
		SetSpanError(span, err)
		return nil, ierr.WithError(err).
			WithHint("Failed to list payment methods").
			Mark(ierr.ErrDatabase)
	}
	defer rows.Close()

	var methods []*domainVault.PaymentMethod
	for rows.Next() {
		pm, err := scanPaymentMethod(rows)
		if err != nil {
			SetSpanError(span, err)
			return nil, ierr.WithError(err).
				WithHint("Failed to scan payment method row").
				Mark(ierr.ErrDatabase)
		}
		methods = append(methods, pm)
	}
	if err := rows.Err(); err != nil {
		SetSpanError(span, err)
		return nil, ierr.WithError(err).
			WithHint("Failed to iterate payment method rows").
			Mark(ierr.ErrDatabase)
	}

	SetSpanSuccess(span)
	return methods, nil
}

func (r *vaultRepository) GetDefault(ctx context.Context, customerID string) (*domainVault.PaymentMethod, error) {
	span := StartRepositorySpan(ctx, "payment_vault", "get_default", map[string]interface{}{
		"customer_id": customerID,
	})
	defer FinishSpan(span)

	row := r.db.QueryRowContext(ctx,
		`SELECT `+vaultColumns+` FROM payment_vault
		 WHERE customer_id = $1 AND is_active AND is_default`, customerID)

	pm, err := scanPaymentMethod(row)
	if err == sql.ErrNoRows {
		return nil, ierr.NewError("no default payment method").
			WithHint("The customer has no default payment method").
			WithReportableDetails(map[string]any{"customer_id": customerID}).
			Mark(ierr.ErrNotFound)
	}
	if err != nil {
		SetSpanError(span, err)
		return nil, ierr.WithError(err).
			WithHint("Failed to get default payment method").
			Mark(ierr.ErrDatabase)
	}

	SetSpanSuccess(span)
	return pm, nil
}

func (r *vaultRepository) SetDefault(ctx context.Context, id string) (bool, error) {
	span := StartRepositorySpan(ctx, "payment_vault", "set_default", map[string]interface{}{
		"payment_method_id": id,
	})
	defer FinishSpan(span)

	ok, err := r.withTx(ctx, func(tx *sql.Tx) (bool, error) {
		var customerID string
		err := tx.QueryRowContext(ctx,
			`SELECT customer_id FROM payment_vault
			 WHERE id = $1 AND is_active FOR UPDATE`, id).Scan(&customerID)
		if err == sql.ErrNoRows {
			return false, nil
		}
		if err != nil {
			return false, err
		}

		// Clear-others-then-set inside one transaction keeps the single
		// default invariant through concurrent SetDefault calls.
		if _, err := tx.ExecContext(ctx,
			`UPDATE payment_vault SET is_default = FALSE, updated_at = now()
			 WHERE customer_id = $1 AND is_active AND is_default AND id <> $2`,
			customerID, id); err != nil {
			return false, err
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE payment_vault SET is_default = TRUE, updated_at = now()
			 WHERE id = $1`, id); err != nil {
			return false, err
		}
		return true, nil
	})
	if err != nil {
		SetSpanError(span, err)
		return false, ierr.WithError(err).
			WithHint("Failed to set default payment method").
			WithReportableDetails(map[string]any{"payment_method_id": id}).
			Mark(ierr.ErrDatabase)
	}

	SetSpanSuccess(span)
	return ok, nil
}

func (r *vaultRepository) Deactivate(ctx context.Context, id string) (bool, error) {
	span := StartRepositorySpan(ctx, "payment_vault", "deactivate", map[string]interface{}{
		"payment_method_id": id,
	})
	defer FinishSpan(span)

	ok, err := r.withTx(ctx, func(tx *sql.Tx) (bool, error) {
		var (
			customerID string
			wasDefault bool
		)
		err := tx.QueryRowContext(ctx,
			`SELECT customer_id, is_default FROM payment_vault
			 WHERE id = $1 AND is_active FOR UPDATE`, id).Scan(&customerID, &wasDefault)
		if err == sql.ErrNoRows {
			return false, nil
		}
		if err != nil {
			return false, err
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE payment_vault
			 SET is_active = FALSE, is_default = FALSE, updated_at = now()
			 WHERE id = $1`, id); err != nil {
			return false, err
		}

		// Hand the default to the most recently created remaining active
		// entry. With no remaining entries the customer simply has no
		// default.
		if wasDefault {
			if _, err := tx.ExecContext(ctx,
				`UPDATE payment_vault SET is_default = TRUE, updated_at = now()
				 WHERE internal_id = (
					SELECT internal_id FROM payment_vault
					WHERE customer_id = $1 AND is_active
					ORDER BY created_at DESC, internal_id DESC
					LIMIT 1
				 )`, customerID); err != nil {
				return false, err
			}
		}
		return true, nil
	})
	if err != nil {
		SetSpanError(span, err)
		return false, ierr.WithError(err).
			WithHint("Failed to deactivate payment method").
			WithReportableDetails(map[string]any{"payment_method_id": id}).
			Mark(ierr.ErrDatabase)
	}

	SetSpanSuccess(span)
	return ok, nil
}

func (r *vaultRepository) MarkUsed(ctx context.Context, id string, at time.Time) error {
	span := StartRepositorySpan(ctx, "payment_vault", "mark_used", map[string]interface{}{
		"payment_method_id": id,
	})
	defer FinishSpan(span)

	_, err := r.db.ExecContext(ctx,
		`UPDATE payment_vault SET last_used_at = $2, updated_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		SetSpanError(span, err)
		return ierr.WithError(err).
			WithHint("Failed to record payment method use").
			Mark(ierr.ErrDatabase)
	}

	SetSpanSuccess(span)
	return nil
}

func (r *vaultRepository) ListExpired(ctx context.Context, now time.Time) ([]*domainVault.PaymentMethod, error) {
	span := StartRepositorySpan(ctx, "payment_vault", "list_expired", nil)
	defer FinishSpan(span)

	// Strictly-before comparison on (year, month): entries expiring in the
	// current month remain usable through its last day.
	cutoff := fmt.Sprintf("%04d%02d", now.Year(), int(now.Month()))
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+vaultColumns+` FROM payment_vault
		 WHERE is_active AND method_type = 'card'
		   AND expiry_year IS NOT NULL AND expiry_month IS NOT NULL
		   AND (expiry_year || expiry_month) < $1
		 ORDER BY created_at ASC`, cutoff)
	if err != nil {
		SetSpanError(span, err)
		return nil, ierr.WithError(err).
			WithHint("Failed to list expired payment methods").
			Mark(ierr.ErrDatabase)
	}
	defer rows.Close()

	var methods []*domainVault.PaymentMethod
	for rows.Next() {
		pm, err := scanPaymentMethod(rows)
		if err != nil {
			SetSpanError(span, err)
			return nil, ierr.WithError(err).
				WithHint("Failed to scan payment method row").
				Mark(ierr.ErrDatabase)
		}
		methods = append(methods, pm)
	}
	if err := rows.Err(); err != nil {
		SetSpanError(span, err)
		return nil, ierr.WithError(err).
			WithHint("Failed to iterate payment method rows").
			Mark(ierr.ErrDatabase)
	}

	SetSpanSuccess(span)
	return methods, nil
}

// withTx runs fn inside a transaction, committing on success
func (r *vaultRepository) withTx(ctx context.Context, fn func(tx *sql.Tx) (bool, error)) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	ok, err := fn(tx)
	if err != nil {
		_ = tx.Rollback()
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, err
	}
	return ok, nil
}

func scanPaymentMethod(row rowScanner) (*domainVault.PaymentMethod, error) {
	var (
		pm             domainVault.PaymentMethod
		methodType     string
		cardLast4      sql.NullString
		cardBrand      sql.NullString
		expiryMonth    sql.NullString
		expiryYear     sql.NullString
		billingName    sql.NullString
		billingAddress sql.NullString
		lastUsedAt     sql.NullTime
		metadata       []byte
	)
	err := row.Scan(&pm.ID, &pm.CustomerID, &pm.GatewayCustomerRef, &pm.Token, &methodType,
		&cardLast4, &cardBrand, &expiryMonth, &expiryYear, &billingName, &billingAddress,
		&pm.IsActive, &pm.IsDefault, &lastUsedAt, &metadata, &pm.CreatedAt, &pm.UpdatedAt)
	if err != nil {
		return nil, err
	}

	pm.MethodType = types.PaymentMethodType(methodType)
	pm.CardLast4 = nullableString(cardLast4)
	pm.CardBrand = nullableString(cardBrand)
	pm.ExpiryMonth = nullableString(expiryMonth)
	pm.ExpiryYear = nullableString(expiryYear)
	pm.BillingName = nullableString(billingName)
	pm.BillingAddress = nullableString(billingAddress)
	if lastUsedAt.Valid {
		t := lastUsedAt.Time
		pm.LastUsedAt = &t
	}
	pm.Metadata, err = unmarshalMetadata(metadata)
	if err != nil {
		return nil, err
	}
	return &pm, nil
}

func nullableString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}
