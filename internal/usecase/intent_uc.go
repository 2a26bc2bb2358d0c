// internal/usecase/intent_uc.go
package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/nomadstar/clpt/internal/domain"
	"github.com/nomadstar/clpt/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultIntentTTL = 300 * time.Second

// IntentUsecase creates and reads payment intents. Creation snapshots
// the merchant's receiving address so later merchant edits never
// retarget an issued intent.
type IntentUsecase struct {
	intents   repository.IntentStore
	merchants repository.MerchantDirectory
	now       func() time.Time
	logger    *zap.Logger
}

func NewIntentUsecase(
	intents repository.IntentStore,
	merchants repository.MerchantDirectory,
	logger *zap.Logger,
) *IntentUsecase {
	return &IntentUsecase{
		intents:   intents,
		merchants: merchants,
		now:       time.Now,
		logger:    logger,
	}
}

func (uc *IntentUsecase) CreateIntent(ctx context.Context, req *domain.CreateIntentRequest) (*domain.PaymentIntent, error) {
	merchant, err := uc.merchants.GetByID(ctx, req.MerchantID)
	if err != nil {
		return nil, err
	}

	if req.Amount.IsZero() {
		return nil, fmt.Errorf("%w: amount is required", domain.ErrInvalidAmount)
	}

	ttl := defaultIntentTTL
	if req.ExpiresInSeconds > 0 {
		ttl = time.Duration(req.ExpiresInSeconds) * time.Second
	}

	id := uuid.NewString()
	intent := &domain.PaymentIntent{
		ID:              id,
		MerchantID:      merchant.ID,
		Amount:          req.Amount,
		MerchantAddress: merchant.ReceivingAddress,
		Status:          domain.IntentStatusPending,
		ExpiresAt:       uc.now().Add(ttl),
		QRPayload:       domain.BuildQRPayload(merchant.ReceivingAddress, req.Amount, id),
		Description:     req.Description,
		Metadata:        req.Metadata,
	}

	if err := uc.intents.Create(ctx, intent); err != nil {
		return nil, fmt.Errorf("failed to persist payment intent: %w", err)
	}

	uc.logger.Info("payment intent created",
		zap.String("intent_id", intent.ID),
		zap.String("merchant_id", merchant.ID),
		zap.String("amount", intent.Amount.String()),
		zap.Time("expires_at", intent.ExpiresAt))

	return intent, nil
}

func (uc *IntentUsecase) GetIntent(ctx context.Context, id string) (*domain.PaymentIntent, error) {
	return uc.intents.GetByID(ctx, id)
}
