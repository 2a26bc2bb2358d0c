// internal/usecase/reconcile_uc.go
package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/nomadstar/clpt/internal/domain"
	"github.com/nomadstar/clpt/internal/repository"

	"go.uber.org/zap"
)

// ConfirmationNotifier delivers a confirmation signal to a merchant
// callback endpoint. Best effort, at most one attempt per confirmation;
// failures are logged by the implementation and never surfaced here.
type ConfirmationNotifier interface {
	Dispatch(ctx context.Context, callbackURL string, conf domain.Confirmation) error
}

// ReconcileUsecase matches an observed transfer event to a pending
// intent and performs the PENDING→PAID transition. It owns no state;
// the store's conditional write is the sole authority, which is what
// makes duplicate and racing deliveries safe.
type ReconcileUsecase struct {
	intents   repository.IntentStore
	merchants repository.MerchantDirectory
	notifier  ConfirmationNotifier
	now       func() time.Time
	logger    *zap.Logger
}

func NewReconcileUsecase(
	intents repository.IntentStore,
	merchants repository.MerchantDirectory,
	notifier ConfirmationNotifier,
	logger *zap.Logger,
) *ReconcileUsecase {
	return &ReconcileUsecase{
		intents:   intents,
		merchants: merchants,
		notifier:  notifier,
		now:       time.Now,
		logger:    logger,
	}
}

// Reconcile applies one transfer event. The returned ReconcileResult is
// a decision outcome; the error return is reserved for infrastructure
// failures (store unavailable and the like).
func (uc *ReconcileUsecase) Reconcile(ctx context.Context, event *domain.TransferEvent) (domain.ReconcileResult, error) {
	if event.PaymentIntentID != "" {
		return uc.reconcileDirect(ctx, event)
	}
	return uc.reconcileByDiscovery(ctx, event)
}

func (uc *ReconcileUsecase) reconcileDirect(ctx context.Context, event *domain.TransferEvent) (domain.ReconcileResult, error) {
	intent, err := uc.intents.GetByID(ctx, event.PaymentIntentID)
	if errors.Is(err, domain.ErrIntentNotFound) {
		return rejected(domain.ReasonNotFound), nil
	}
	if err != nil {
		return domain.ReconcileResult{}, err
	}

	if intent.Status == domain.IntentStatusPaid {
		return rejected(domain.ReasonAlreadyPaid), nil
	}
	// The deadline governs even when no expiry sweep has flipped the
	// status yet.
	if intent.Status == domain.IntentStatusExpired || intent.IsExpired(uc.now()) {
		return rejected(domain.ReasonExpired), nil
	}
	if !strings.EqualFold(event.To, intent.MerchantAddress) {
		return rejected(domain.ReasonAddressMismatch), nil
	}
	// Overpayment settles the intent; only a shortfall is refused.
	if event.Amount.Cmp(intent.Amount) < 0 {
		return rejected(domain.ReasonAmountTooSmall), nil
	}

	return uc.settle(ctx, intent, event.TxHash)
}

func (uc *ReconcileUsecase) reconcileByDiscovery(ctx context.Context, event *domain.TransferEvent) (domain.ReconcileResult, error) {
	candidates, err := uc.intents.FindPendingByAddressAndAmount(ctx, event.To, event.Amount)
	if err != nil {
		return domain.ReconcileResult{}, err
	}

	// The listing may race a concurrent sweep or payment; re-filter on
	// our own clock before counting.
	now := uc.now()
	valid := candidates[:0]
	for _, c := range candidates {
		if c.Status == domain.IntentStatusPending && !c.IsExpired(now) {
			valid = append(valid, c)
		}
	}

	switch len(valid) {
	case 0:
		return rejected(domain.ReasonNoMatch), nil
	case 1:
		return uc.settle(ctx, valid[0], event.TxHash)
	default:
		// Amount and address alone cannot disambiguate; refuse and
		// leave every candidate untouched for out-of-band resolution.
		uc.logger.Warn("ambiguous transfer event",
			zap.String("tx_hash", event.TxHash),
			zap.String("to", event.To),
			zap.String("amount", event.Amount.String()),
			zap.Int("candidates", len(valid)))
		return rejected(domain.ReasonMultipleMatches), nil
	}
}

// settle attempts the atomic transition. A lost race reads back as
// ALREADY_PAID: some concurrent delivery won, the post-state is the
// same, and the caller must treat the outcome as a duplicate.
func (uc *ReconcileUsecase) settle(ctx context.Context, intent *domain.PaymentIntent, txHash string) (domain.ReconcileResult, error) {
	ok, err := uc.intents.CompareAndSetPaid(ctx, intent.ID, txHash)
	if err != nil {
		return domain.ReconcileResult{}, err
	}
	if !ok {
		return rejected(domain.ReasonAlreadyPaid), nil
	}

	uc.logger.Info("payment intent reconciled",
		zap.String("intent_id", intent.ID),
		zap.String("merchant_id", intent.MerchantID),
		zap.String("tx_hash", txHash))

	uc.emitConfirmation(intent, txHash)
	return domain.ReconcileResult{Updated: true}, nil
}

// emitConfirmation runs after the transition is durably committed and
// outside its consistency boundary: a notifier failure never rolls
// back or rechecks the payment state.
func (uc *ReconcileUsecase) emitConfirmation(intent *domain.PaymentIntent, txHash string) {
	if uc.notifier == nil {
		return
	}

	conf := domain.Confirmation{
		PaymentIntentID: intent.ID,
		Status:          string(domain.IntentStatusPaid),
		TxHash:          txHash,
	}
	merchantID := intent.MerchantID

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		merchant, err := uc.merchants.GetByID(ctx, merchantID)
		if err != nil {
			uc.logger.Error("failed to resolve merchant for confirmation",
				zap.String("merchant_id", merchantID),
				zap.String("intent_id", conf.PaymentIntentID),
				zap.Error(err))
			return
		}
		if merchant.CallbackURL == nil || *merchant.CallbackURL == "" {
			return
		}
		if err := uc.notifier.Dispatch(ctx, *merchant.CallbackURL, conf); err != nil {
			uc.logger.Error("merchant callback dispatch failed",
				zap.String("merchant_id", merchantID),
				zap.String("intent_id", conf.PaymentIntentID),
				zap.Error(err))
		}
	}()
}

func rejected(reason domain.ReasonCode) domain.ReconcileResult {
	return domain.ReconcileResult{Updated: false, Reason: reason}
}
