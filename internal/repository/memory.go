// internal/repository/memory.go
package repository

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/nomadstar/clpt/internal/domain"
)

// MemoryStore is a mutex-guarded in-memory IntentStore and
// MerchantDirectory. Its CompareAndSetPaid holds the lock across the
// check and the write, mirroring the conditional-UPDATE semantics of
// the Postgres store. Used by tests and local development.
type MemoryStore struct {
	mu        sync.Mutex
	intents   map[string]*domain.PaymentIntent
	merchants map[string]*domain.Merchant
	now       func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		intents:   make(map[string]*domain.PaymentIntent),
		merchants: make(map[string]*domain.Merchant),
		now:       time.Now,
	}
}

// SetClock overrides the commit-time clock. Test use only.
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *MemoryStore) Create(ctx context.Context, intent *domain.PaymentIntent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	intent.CreatedAt = now
	intent.UpdatedAt = now
	cp := *intent
	s.intents[intent.ID] = &cp
	return nil
}

func (s *MemoryStore) GetByID(ctx context.Context, id string) (*domain.PaymentIntent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	intent, ok := s.intents[id]
	if !ok {
		return nil, domain.ErrIntentNotFound
	}
	cp := *intent
	return &cp, nil
}

func (s *MemoryStore) FindPendingByAddressAndAmount(ctx context.Context, address string, amount domain.Amount) ([]*domain.PaymentIntent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var matches []*domain.PaymentIntent
	for _, intent := range s.intents {
		if intent.Status == domain.IntentStatusPending &&
			strings.EqualFold(intent.MerchantAddress, address) &&
			intent.Amount.Cmp(amount) == 0 &&
			intent.ExpiresAt.After(now) {
			cp := *intent
			matches = append(matches, &cp)
		}
	}
	return matches, nil
}

func (s *MemoryStore) CompareAndSetPaid(ctx context.Context, id, txHash string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	intent, ok := s.intents[id]
	if !ok {
		return false, nil
	}
	if intent.Status != domain.IntentStatusPending || !intent.ExpiresAt.After(s.now()) {
		return false, nil
	}

	intent.Status = domain.IntentStatusPaid
	intent.BlockchainTxHash = &txHash
	intent.UpdatedAt = s.now()
	return true, nil
}

func (s *MemoryStore) MarkExpired(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	intent, ok := s.intents[id]
	if !ok {
		return false, nil
	}
	if intent.Status != domain.IntentStatusPending || intent.ExpiresAt.After(s.now()) {
		return false, nil
	}

	intent.Status = domain.IntentStatusExpired
	intent.UpdatedAt = s.now()
	return true, nil
}

func (s *MemoryStore) CreateMerchant(ctx context.Context, merchant *domain.Merchant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	merchant.CreatedAt = s.now()
	cp := *merchant
	s.merchants[merchant.ID] = &cp
	return nil
}

func (s *MemoryStore) GetMerchantByID(ctx context.Context, id string) (*domain.Merchant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	merchant, ok := s.merchants[id]
	if !ok {
		return nil, domain.ErrMerchantNotFound
	}
	cp := *merchant
	return &cp, nil
}

func (s *MemoryStore) GetMerchantByAPIKey(ctx context.Context, apiKey string) (*domain.Merchant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, merchant := range s.merchants {
		if merchant.APIKey == apiKey {
			cp := *merchant
			return &cp, nil
		}
	}
	return nil, domain.ErrMerchantNotFound
}

// MerchantView adapts MemoryStore to the MerchantDirectory interface.
type MerchantView struct {
	*MemoryStore
}

func (v MerchantView) Create(ctx context.Context, merchant *domain.Merchant) error {
	return v.CreateMerchant(ctx, merchant)
}

func (v MerchantView) GetByID(ctx context.Context, id string) (*domain.Merchant, error) {
	return v.GetMerchantByID(ctx, id)
}

func (v MerchantView) GetByAPIKey(ctx context.Context, apiKey string) (*domain.Merchant, error) {
	return v.GetMerchantByAPIKey(ctx, apiKey)
}
