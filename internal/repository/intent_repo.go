// internal/repository/intent_repo.go
package repository

import (
	"context"
	"errors"
	"math/big"

	"github.com/nomadstar/clpt/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// IntentStore owns payment-intent persistence and exposes the only
// mutation paths. CompareAndSetPaid and MarkExpired are the two
// conditional transitions out of PENDING; nothing else writes status.
type IntentStore interface {
	Create(ctx context.Context, intent *domain.PaymentIntent) error
	GetByID(ctx context.Context, id string) (*domain.PaymentIntent, error)
	FindPendingByAddressAndAmount(ctx context.Context, address string, amount domain.Amount) ([]*domain.PaymentIntent, error)
	// CompareAndSetPaid transitions the intent to PAID and records the
	// tx hash in a single conditional write. It returns false, without
	// error, when the intent is no longer PENDING or is already past
	// its expiry at commit time.
	CompareAndSetPaid(ctx context.Context, id, txHash string) (bool, error)
	// MarkExpired transitions a PENDING intent past its deadline to
	// EXPIRED. Returns false when the intent was not eligible.
	MarkExpired(ctx context.Context, id string) (bool, error)
}

type intentRepo struct {
	db *pgxpool.Pool
}

func NewIntentRepository(db *pgxpool.Pool) IntentStore {
	return &intentRepo{db: db}
}

func (r *intentRepo) Create(ctx context.Context, intent *domain.PaymentIntent) error {
	query := `
        INSERT INTO payment_intents (
            id, merchant_id, amount, merchant_address, status,
            expires_at, qr_payload, description, metadata
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
        RETURNING created_at, updated_at
    `

	return r.db.QueryRow(ctx, query,
		intent.ID,
		intent.MerchantID,
		numericFromAmount(intent.Amount),
		intent.MerchantAddress,
		intent.Status,
		intent.ExpiresAt,
		intent.QRPayload,
		intent.Description,
		intent.Metadata,
	).Scan(&intent.CreatedAt, &intent.UpdatedAt)
}

func (r *intentRepo) GetByID(ctx context.Context, id string) (*domain.PaymentIntent, error) {
	query := `
        SELECT
            id, merchant_id, amount, merchant_address, status,
            blockchain_tx_hash, expires_at, qr_payload, description,
            metadata, created_at, updated_at
        FROM payment_intents
        WHERE id = $1
    `

	intent, err := scanIntent(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrIntentNotFound
	}
	if err != nil {
		return nil, err
	}
	return intent, nil
}

func (r *intentRepo) FindPendingByAddressAndAmount(ctx context.Context, address string, amount domain.Amount) ([]*domain.PaymentIntent, error) {
	query := `
        SELECT
            id, merchant_id, amount, merchant_address, status,
            blockchain_tx_hash, expires_at, qr_payload, description,
            metadata, created_at, updated_at
        FROM payment_intents
        WHERE LOWER(merchant_address) = LOWER($1)
          AND amount = $2
          AND status = 'PENDING'
          AND expires_at > NOW()
    `

	rows, err := r.db.Query(ctx, query, address, numericFromAmount(amount))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var intents []*domain.PaymentIntent
	for rows.Next() {
		intent, err := scanIntent(rows)
		if err != nil {
			return nil, err
		}
		intents = append(intents, intent)
	}
	return intents, rows.Err()
}

// CompareAndSetPaid is the single-writer-wins primitive: the WHERE
// clause re-validates PENDING and the expiry at commit time, so of N
// concurrent deliveries exactly one observes rows-affected == 1.
func (r *intentRepo) CompareAndSetPaid(ctx context.Context, id, txHash string) (bool, error) {
	query := `
        UPDATE payment_intents
        SET
            status = 'PAID',
            blockchain_tx_hash = $1,
            updated_at = NOW()
        WHERE id = $2
          AND status = 'PENDING'
          AND expires_at > NOW()
    `

	tag, err := r.db.Exec(ctx, query, txHash, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *intentRepo) MarkExpired(ctx context.Context, id string) (bool, error) {
	query := `
        UPDATE payment_intents
        SET
            status = 'EXPIRED',
            updated_at = NOW()
        WHERE id = $1
          AND status = 'PENDING'
          AND expires_at <= NOW()
    `

	tag, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIntent(row rowScanner) (*domain.PaymentIntent, error) {
	var (
		intent domain.PaymentIntent
		amount pgtype.Numeric
	)

	err := row.Scan(
		&intent.ID,
		&intent.MerchantID,
		&amount,
		&intent.MerchantAddress,
		&intent.Status,
		&intent.BlockchainTxHash,
		&intent.ExpiresAt,
		&intent.QRPayload,
		&intent.Description,
		&intent.Metadata,
		&intent.CreatedAt,
		&intent.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	amt, err := amountFromNumeric(amount)
	if err != nil {
		return nil, err
	}
	intent.Amount = amt
	return &intent, nil
}

// Amounts are stored as NUMERIC(78,0) so the full uint256 range of
// on-chain minor units fits without truncation.
func numericFromAmount(a domain.Amount) pgtype.Numeric {
	v, _ := new(big.Int).SetString(a.String(), 10)
	return pgtype.Numeric{Int: v, Valid: true}
}

func amountFromNumeric(n pgtype.Numeric) (domain.Amount, error) {
	if !n.Valid || n.Int == nil {
		return domain.Amount{}, errors.New("null amount in payment_intents row")
	}
	v := new(big.Int).Set(n.Int)
	if n.Exp > 0 {
		v.Mul(v, new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n.Exp)), nil))
	}
	return domain.ParseAmount(v.String())
}
