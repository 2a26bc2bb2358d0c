// internal/domain/intent.go
package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

type IntentStatus string

const (
	IntentStatusPending IntentStatus = "PENDING"
	IntentStatusPaid    IntentStatus = "PAID"
	IntentStatusExpired IntentStatus = "EXPIRED"
)

var ErrIntentNotFound = errors.New("payment intent not found")

// QRScheme prefixes every generated QR payload. Bump only with a new
// payload layout; scanners key off the first pipe-separated field.
const QRScheme = "CLPT"

// PaymentIntent is a merchant's declared expectation of an incoming
// on-chain payment: a fixed amount to a fixed address, with an expiry.
// PAID and EXPIRED are terminal; BlockchainTxHash is set exactly when
// the intent is PAID.
type PaymentIntent struct {
	ID               string          `json:"id" db:"id"`
	MerchantID       string          `json:"merchant_id" db:"merchant_id"`
	Amount           Amount          `json:"amount" db:"amount"`
	MerchantAddress  string          `json:"merchant_address" db:"merchant_address"`
	Status           IntentStatus    `json:"status" db:"status"`
	BlockchainTxHash *string         `json:"blockchain_tx_hash,omitempty" db:"blockchain_tx_hash"`
	ExpiresAt        time.Time       `json:"expires_at" db:"expires_at"`
	QRPayload        string          `json:"qr_payload" db:"qr_payload"`
	Description      *string         `json:"description,omitempty" db:"description"`
	Metadata         json.RawMessage `json:"metadata,omitempty" db:"metadata"`
	CreatedAt        time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at" db:"updated_at"`
}

// IsExpired reports whether the intent's deadline has passed at the
// given instant, regardless of whether an expiry sweep has run.
func (p *PaymentIntent) IsExpired(now time.Time) bool {
	return now.After(p.ExpiresAt)
}

// BuildQRPayload encodes the canonical scannable tuple for an intent.
func BuildQRPayload(address string, amount Amount, intentID string) string {
	return fmt.Sprintf("%s|%s|%s|%s", QRScheme, address, amount.String(), intentID)
}

// CreateIntentRequest is the validated create-intent body.
type CreateIntentRequest struct {
	MerchantID       string          `json:"merchant_id"`
	Amount           Amount          `json:"amount"`
	Description      *string         `json:"description,omitempty"`
	ExpiresInSeconds int             `json:"expires_in_seconds,omitempty"`
	Metadata         json.RawMessage `json:"metadata,omitempty"`
}
