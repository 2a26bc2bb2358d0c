package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/nomadstar/clpt/internal/domain"
	"github.com/nomadstar/clpt/internal/repository"

	"go.uber.org/zap"
)

type capturingNotifier struct {
	dispatch chan dispatched
}

type dispatched struct {
	url  string
	conf domain.Confirmation
}

func newCapturingNotifier() *capturingNotifier {
	return &capturingNotifier{dispatch: make(chan dispatched, 16)}
}

func (n *capturingNotifier) Dispatch(ctx context.Context, callbackURL string, conf domain.Confirmation) error {
	n.dispatch <- dispatched{url: callbackURL, conf: conf}
	return nil
}

type reconcileEnv struct {
	store    *repository.MemoryStore
	notifier *capturingNotifier
	uc       *ReconcileUsecase
}

func newReconcileEnv(t *testing.T) *reconcileEnv {
	t.Helper()
	store := repository.NewMemoryStore()
	notifier := newCapturingNotifier()
	uc := NewReconcileUsecase(store, repository.MerchantView{MemoryStore: store}, notifier, zap.NewNop())
	return &reconcileEnv{store: store, notifier: notifier, uc: uc}
}

func (e *reconcileEnv) seedMerchant(t *testing.T, address, callbackURL string) *domain.Merchant {
	t.Helper()
	var cb *string
	if callbackURL != "" {
		cb = &callbackURL
	}
	merchant := &domain.Merchant{
		ID:               "merchant-1",
		Name:             "Acme",
		ReceivingAddress: address,
		CallbackURL:      cb,
		APIKey:           "key-1",
	}
	if err := e.store.CreateMerchant(context.Background(), merchant); err != nil {
		t.Fatalf("seed merchant: %v", err)
	}
	return merchant
}

func (e *reconcileEnv) seedIntent(t *testing.T, id, address string, amount int64, expiresAt time.Time) *domain.PaymentIntent {
	t.Helper()
	intent := &domain.PaymentIntent{
		ID:              id,
		MerchantID:      "merchant-1",
		Amount:          domain.NewAmount(amount),
		MerchantAddress: address,
		Status:          domain.IntentStatusPending,
		ExpiresAt:       expiresAt,
		QRPayload:       domain.BuildQRPayload(address, domain.NewAmount(amount), id),
	}
	if err := e.store.Create(context.Background(), intent); err != nil {
		t.Fatalf("seed intent: %v", err)
	}
	return intent
}

func TestReconcileDirectIdempotent(t *testing.T) {
	env := newReconcileEnv(t)
	env.seedMerchant(t, "0xabc", "")
	env.seedIntent(t, "pi-1", "0xabc", 1000, time.Now().Add(5*time.Minute))

	event := &domain.TransferEvent{
		TxHash:          "0x1",
		To:              "0xabc",
		Amount:          domain.NewAmount(1000),
		PaymentIntentID: "pi-1",
	}

	first, err := env.uc.Reconcile(context.Background(), event)
	if err != nil {
		t.Fatalf("first reconcile: %v", err)
	}
	if !first.Updated {
		t.Fatalf("expected first delivery to update, got reason %q", first.Reason)
	}

	second, err := env.uc.Reconcile(context.Background(), event)
	if err != nil {
		t.Fatalf("second reconcile: %v", err)
	}
	if second.Updated {
		t.Fatal("expected duplicate delivery to be a no-op")
	}
	if second.Reason != domain.ReasonAlreadyPaid {
		t.Fatalf("expected reason already_paid, got %q", second.Reason)
	}

	stored, err := env.store.GetByID(context.Background(), "pi-1")
	if err != nil {
		t.Fatalf("get intent: %v", err)
	}
	if stored.Status != domain.IntentStatusPaid {
		t.Fatalf("expected status PAID, got %s", stored.Status)
	}
	if stored.BlockchainTxHash == nil || *stored.BlockchainTxHash != "0x1" {
		t.Fatalf("expected tx hash 0x1, got %v", stored.BlockchainTxHash)
	}
}

func TestReconcileDirectNotFound(t *testing.T) {
	env := newReconcileEnv(t)

	result, err := env.uc.Reconcile(context.Background(), &domain.TransferEvent{
		TxHash:          "0x1",
		To:              "0xabc",
		Amount:          domain.NewAmount(1000),
		PaymentIntentID: "missing",
	})
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if result.Updated || result.Reason != domain.ReasonNotFound {
		t.Fatalf("expected not_found, got %+v", result)
	}
}

func TestReconcileDirectExpired(t *testing.T) {
	env := newReconcileEnv(t)
	env.seedMerchant(t, "0xabc", "")
	// Deadline passed but no sweep has flipped the status yet.
	env.seedIntent(t, "pi-1", "0xabc", 1000, time.Now().Add(-time.Minute))

	result, err := env.uc.Reconcile(context.Background(), &domain.TransferEvent{
		TxHash:          "0x1",
		To:              "0xabc",
		Amount:          domain.NewAmount(1000),
		PaymentIntentID: "pi-1",
	})
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if result.Updated || result.Reason != domain.ReasonExpired {
		t.Fatalf("expected expired, got %+v", result)
	}

	stored, _ := env.store.GetByID(context.Background(), "pi-1")
	if stored.Status != domain.IntentStatusPending {
		t.Fatalf("expected intent left PENDING for the sweep, got %s", stored.Status)
	}
}

func TestReconcileDirectSweptIntent(t *testing.T) {
	env := newReconcileEnv(t)
	env.seedMerchant(t, "0xabc", "")
	env.seedIntent(t, "pi-1", "0xabc", 1000, time.Now().Add(-time.Minute))

	ok, err := env.store.MarkExpired(context.Background(), "pi-1")
	if err != nil || !ok {
		t.Fatalf("mark expired: ok=%v err=%v", ok, err)
	}

	result, err := env.uc.Reconcile(context.Background(), &domain.TransferEvent{
		TxHash:          "0x1",
		To:              "0xabc",
		Amount:          domain.NewAmount(1000),
		PaymentIntentID: "pi-1",
	})
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if result.Updated || result.Reason != domain.ReasonExpired {
		t.Fatalf("expected expired, got %+v", result)
	}
}

func TestReconcileDirectAddressMismatch(t *testing.T) {
	env := newReconcileEnv(t)
	env.seedMerchant(t, "0xabc", "")
	env.seedIntent(t, "pi-1", "0xabc", 1000, time.Now().Add(5*time.Minute))

	result, err := env.uc.Reconcile(context.Background(), &domain.TransferEvent{
		TxHash:          "0x1",
		To:              "0xother",
		Amount:          domain.NewAmount(1000),
		PaymentIntentID: "pi-1",
	})
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if result.Updated || result.Reason != domain.ReasonAddressMismatch {
		t.Fatalf("expected address_mismatch, got %+v", result)
	}
}

func TestReconcileDirectAddressCaseInsensitive(t *testing.T) {
	env := newReconcileEnv(t)
	env.seedMerchant(t, "0xAbCd", "")
	env.seedIntent(t, "pi-1", "0xAbCd", 1000, time.Now().Add(5*time.Minute))

	result, err := env.uc.Reconcile(context.Background(), &domain.TransferEvent{
		TxHash:          "0x1",
		To:              "0xABCD",
		Amount:          domain.NewAmount(1000),
		PaymentIntentID: "pi-1",
	})
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if !result.Updated {
		t.Fatalf("expected case-insensitive address match to settle, got %+v", result)
	}
}

func TestReconcileDirectAmountComparison(t *testing.T) {
	tests := []struct {
		name        string
		eventAmount int64
		wantUpdated bool
		wantReason  domain.ReasonCode
	}{
		{name: "underpayment", eventAmount: 999, wantUpdated: false, wantReason: domain.ReasonAmountTooSmall},
		{name: "exact", eventAmount: 1000, wantUpdated: true},
		{name: "overpayment", eventAmount: 1500, wantUpdated: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newReconcileEnv(t)
			env.seedMerchant(t, "0xabc", "")
			env.seedIntent(t, "pi-1", "0xabc", 1000, time.Now().Add(5*time.Minute))

			result, err := env.uc.Reconcile(context.Background(), &domain.TransferEvent{
				TxHash:          "0x1",
				To:              "0xabc",
				Amount:          domain.NewAmount(tt.eventAmount),
				PaymentIntentID: "pi-1",
			})
			if err != nil {
				t.Fatalf("reconcile: %v", err)
			}
			if result.Updated != tt.wantUpdated || result.Reason != tt.wantReason {
				t.Fatalf("got %+v, want updated=%v reason=%q", result, tt.wantUpdated, tt.wantReason)
			}

			stored, _ := env.store.GetByID(context.Background(), "pi-1")
			if tt.wantUpdated && stored.Status != domain.IntentStatusPaid {
				t.Fatalf("expected PAID, got %s", stored.Status)
			}
			if !tt.wantUpdated && stored.Status != domain.IntentStatusPending {
				t.Fatalf("expected intent untouched, got %s", stored.Status)
			}
		})
	}
}

func TestReconcileDiscoverySingleMatch(t *testing.T) {
	env := newReconcileEnv(t)
	env.seedMerchant(t, "0xabc", "")
	env.seedIntent(t, "pi-1", "0xabc", 1000, time.Now().Add(5*time.Minute))

	result, err := env.uc.Reconcile(context.Background(), &domain.TransferEvent{
		TxHash: "0x1",
		To:     "0xabc",
		Amount: domain.NewAmount(1000),
	})
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if !result.Updated {
		t.Fatalf("expected discovery match to settle, got %+v", result)
	}

	stored, _ := env.store.GetByID(context.Background(), "pi-1")
	if stored.Status != domain.IntentStatusPaid {
		t.Fatalf("expected PAID, got %s", stored.Status)
	}
}

func TestReconcileDiscoveryNoMatch(t *testing.T) {
	env := newReconcileEnv(t)
	env.seedMerchant(t, "0xabc", "")
	env.seedIntent(t, "pi-1", "0xabc", 1000, time.Now().Add(5*time.Minute))

	result, err := env.uc.Reconcile(context.Background(), &domain.TransferEvent{
		TxHash: "0x1",
		To:     "0xabc",
		Amount: domain.NewAmount(555),
	})
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if result.Updated || result.Reason != domain.ReasonNoMatch {
		t.Fatalf("expected no_match, got %+v", result)
	}
}

func TestReconcileDiscoveryMultipleMatches(t *testing.T) {
	env := newReconcileEnv(t)
	env.seedMerchant(t, "0xabc", "")
	env.seedIntent(t, "pi-1", "0xabc", 1000, time.Now().Add(5*time.Minute))
	env.seedIntent(t, "pi-2", "0xabc", 1000, time.Now().Add(5*time.Minute))

	result, err := env.uc.Reconcile(context.Background(), &domain.TransferEvent{
		TxHash: "0x1",
		To:     "0xabc",
		Amount: domain.NewAmount(1000),
	})
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if result.Updated || result.Reason != domain.ReasonMultipleMatches {
		t.Fatalf("expected multiple_matches, got %+v", result)
	}

	for _, id := range []string{"pi-1", "pi-2"} {
		stored, _ := env.store.GetByID(context.Background(), id)
		if stored.Status != domain.IntentStatusPending {
			t.Fatalf("expected %s left PENDING, got %s", id, stored.Status)
		}
	}
}

func TestReconcileDiscoveryExpiredCandidateIgnored(t *testing.T) {
	env := newReconcileEnv(t)
	env.seedMerchant(t, "0xabc", "")
	env.seedIntent(t, "pi-live", "0xabc", 1000, time.Now().Add(5*time.Minute))
	env.seedIntent(t, "pi-stale", "0xabc", 1000, time.Now().Add(-time.Minute))

	result, err := env.uc.Reconcile(context.Background(), &domain.TransferEvent{
		TxHash: "0x1",
		To:     "0xabc",
		Amount: domain.NewAmount(1000),
	})
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if !result.Updated {
		t.Fatalf("expected the unexpired candidate to settle, got %+v", result)
	}

	stale, _ := env.store.GetByID(context.Background(), "pi-stale")
	if stale.Status != domain.IntentStatusPending {
		t.Fatalf("expected expired candidate untouched, got %s", stale.Status)
	}
}

func TestReconcileConcurrentExactlyOneWinner(t *testing.T) {
	env := newReconcileEnv(t)
	env.seedMerchant(t, "0xabc", "")
	env.seedIntent(t, "pi-1", "0xabc", 1000, time.Now().Add(5*time.Minute))

	const workers = 16

	results := make([]domain.ReconcileResult, workers)
	errs := make([]error, workers)
	var wg sync.WaitGroup
	start := make(chan struct{})

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			results[i], errs[i] = env.uc.Reconcile(context.Background(), &domain.TransferEvent{
				TxHash:          "0x1",
				To:              "0xabc",
				Amount:          domain.NewAmount(1000),
				PaymentIntentID: "pi-1",
			})
		}(i)
	}

	close(start)
	wg.Wait()

	winners := 0
	for i := 0; i < workers; i++ {
		if errs[i] != nil {
			t.Fatalf("worker %d: %v", i, errs[i])
		}
		if results[i].Updated {
			winners++
		} else if results[i].Reason != domain.ReasonAlreadyPaid {
			t.Fatalf("worker %d: expected already_paid for loser, got %q", i, results[i].Reason)
		}
	}
	if winners != 1 {
		t.Fatalf("expected exactly one winner, got %d", winners)
	}
}

func TestReconcileEmitsConfirmation(t *testing.T) {
	env := newReconcileEnv(t)
	env.seedMerchant(t, "0xabc", "https://merchant.example/callback")
	env.seedIntent(t, "pi-1", "0xabc", 1000, time.Now().Add(5*time.Minute))

	result, err := env.uc.Reconcile(context.Background(), &domain.TransferEvent{
		TxHash:          "0x1",
		To:              "0xabc",
		Amount:          domain.NewAmount(1000),
		PaymentIntentID: "pi-1",
	})
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if !result.Updated {
		t.Fatalf("expected update, got %+v", result)
	}

	select {
	case got := <-env.notifier.dispatch:
		if got.url != "https://merchant.example/callback" {
			t.Fatalf("unexpected callback url %q", got.url)
		}
		if got.conf.PaymentIntentID != "pi-1" || got.conf.TxHash != "0x1" || got.conf.Status != "PAID" {
			t.Fatalf("unexpected confirmation %+v", got.conf)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("expected a confirmation dispatch")
	}
}

func TestReconcileNoConfirmationWithoutCallbackURL(t *testing.T) {
	env := newReconcileEnv(t)
	env.seedMerchant(t, "0xabc", "")
	env.seedIntent(t, "pi-1", "0xabc", 1000, time.Now().Add(5*time.Minute))

	result, err := env.uc.Reconcile(context.Background(), &domain.TransferEvent{
		TxHash:          "0x1",
		To:              "0xabc",
		Amount:          domain.NewAmount(1000),
		PaymentIntentID: "pi-1",
	})
	if err != nil || !result.Updated {
		t.Fatalf("reconcile: result=%+v err=%v", result, err)
	}

	select {
	case got := <-env.notifier.dispatch:
		t.Fatalf("unexpected dispatch to %q", got.url)
	case <-time.After(100 * time.Millisecond):
	}
}
