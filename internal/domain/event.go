// internal/domain/event.go
package domain

// TransferEvent is a single observed blockchain transfer, consumed once
// per reconciliation attempt. The same TxHash may be delivered many
// times; reconciliation must be idempotent with respect to it.
type TransferEvent struct {
	TxHash          string `json:"tx_hash"`
	From            string `json:"from"`
	To              string `json:"to"`
	Amount          Amount `json:"amount"`
	PaymentIntentID string `json:"payment_intent_id,omitempty"`
}

// ReasonCode explains why a reconciliation attempt did not update an
// intent. These are ordinary decision outcomes, not errors.
type ReasonCode string

const (
	ReasonNotFound        ReasonCode = "not_found"
	ReasonAlreadyPaid     ReasonCode = "already_paid"
	ReasonExpired         ReasonCode = "expired"
	ReasonAddressMismatch ReasonCode = "address_mismatch"
	ReasonAmountTooSmall  ReasonCode = "amount_too_small"
	ReasonNoMatch         ReasonCode = "no_match"
	ReasonMultipleMatches ReasonCode = "multiple_matches"
)

// ReconcileResult is the tagged outcome of a reconciliation attempt.
// Reason is empty exactly when Updated is true.
type ReconcileResult struct {
	Updated bool       `json:"updated"`
	Reason  ReasonCode `json:"reason,omitempty"`
}

// Confirmation is the signal emitted after a successful PENDING→PAID
// transition, handed to the merchant notifier outside the transition's
// consistency boundary.
type Confirmation struct {
	PaymentIntentID string `json:"payment_intent_id"`
	Status          string `json:"status"`
	TxHash          string `json:"tx_hash"`
}
