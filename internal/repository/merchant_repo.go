// internal/repository/merchant_repo.go
package repository

import (
	"context"
	"errors"

	"github.com/nomadstar/clpt/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// MerchantDirectory resolves merchants for intent creation and API-key
// auth. Intent reconciliation never touches it; the receiving address
// is snapshotted onto the intent at creation.
type MerchantDirectory interface {
	Create(ctx context.Context, merchant *domain.Merchant) error
	GetByID(ctx context.Context, id string) (*domain.Merchant, error)
	GetByAPIKey(ctx context.Context, apiKey string) (*domain.Merchant, error)
}

type merchantRepo struct {
	db *pgxpool.Pool
}

func NewMerchantRepository(db *pgxpool.Pool) MerchantDirectory {
	return &merchantRepo{db: db}
}

func (r *merchantRepo) Create(ctx context.Context, merchant *domain.Merchant) error {
	query := `
        INSERT INTO merchants (id, name, receiving_address, callback_url, api_key)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING created_at
    `

	return r.db.QueryRow(ctx, query,
		merchant.ID,
		merchant.Name,
		merchant.ReceivingAddress,
		merchant.CallbackURL,
		merchant.APIKey,
	).Scan(&merchant.CreatedAt)
}

func (r *merchantRepo) GetByID(ctx context.Context, id string) (*domain.Merchant, error) {
	query := `
        SELECT id, name, receiving_address, callback_url, api_key, created_at
        FROM merchants
        WHERE id = $1
    `
	return r.scanMerchant(r.db.QueryRow(ctx, query, id))
}

func (r *merchantRepo) GetByAPIKey(ctx context.Context, apiKey string) (*domain.Merchant, error) {
	query := `
        SELECT id, name, receiving_address, callback_url, api_key, created_at
        FROM merchants
        WHERE api_key = $1
    `
	return r.scanMerchant(r.db.QueryRow(ctx, query, apiKey))
}

func (r *merchantRepo) scanMerchant(row pgx.Row) (*domain.Merchant, error) {
	var merchant domain.Merchant
	err := row.Scan(
		&merchant.ID,
		&merchant.Name,
		&merchant.ReceivingAddress,
		&merchant.CallbackURL,
		&merchant.APIKey,
		&merchant.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrMerchantNotFound
	}
	if err != nil {
		return nil, err
	}
	return &merchant, nil
}
