// internal/domain/merchant.go
package domain

import (
	"errors"
	"time"
)

var ErrMerchantNotFound = errors.New("merchant not found")

// Merchant is the registered owner of payment intents. ReceivingAddress
// is snapshotted onto each intent at creation time, so later edits here
// never retarget an already-issued intent.
type Merchant struct {
	ID               string    `json:"id" db:"id"`
	Name             string    `json:"name" db:"name"`
	ReceivingAddress string    `json:"receiving_address" db:"receiving_address"`
	CallbackURL      *string   `json:"callback_url,omitempty" db:"callback_url"`
	APIKey           string    `json:"api_key,omitempty" db:"api_key"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
}

type CreateMerchantRequest struct {
	Name             string  `json:"name"`
	ReceivingAddress string  `json:"receiving_address"`
	CallbackURL      *string `json:"callback_url,omitempty"`
}
