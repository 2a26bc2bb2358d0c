// pkg/client/notifier.go
package client

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/nomadstar/clpt/internal/domain"

	"go.uber.org/zap"
)

// MerchantNotifier posts confirmation signals to merchant-configured
// callback endpoints. One attempt per confirmation, no retries;
// delivery failures are logged and never fed back into reconciliation.
type MerchantNotifier struct {
	signingSecret string
	httpClient    *http.Client
	logger        *zap.Logger
}

func NewMerchantNotifier(signingSecret string, logger *zap.Logger) *MerchantNotifier {
	return &MerchantNotifier{
		signingSecret: signingSecret,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
}

func (n *MerchantNotifier) Dispatch(ctx context.Context, callbackURL string, conf domain.Confirmation) error {
	payload, err := json.Marshal(conf)
	if err != nil {
		return fmt.Errorf("failed to marshal confirmation: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, callbackURL, bytes.NewBuffer(payload))
	if err != nil {
		return fmt.Errorf("failed to create callback request: %w", err)
	}

	timestamp := time.Now().Unix()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Timestamp", fmt.Sprintf("%d", timestamp))
	req.Header.Set("X-Signature", n.sign(payload, timestamp))

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to deliver callback: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		n.logger.Error("merchant callback returned non-success status",
			zap.String("url", callbackURL),
			zap.String("intent_id", conf.PaymentIntentID),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("response", body))
		return fmt.Errorf("callback endpoint returned status %d", resp.StatusCode)
	}

	n.logger.Info("merchant callback dispatched",
		zap.String("url", callbackURL),
		zap.String("intent_id", conf.PaymentIntentID),
		zap.String("tx_hash", conf.TxHash),
		zap.Int("status", resp.StatusCode))
	return nil
}

// sign computes HMAC-SHA256 over "<timestamp>.<payload>" so merchants
// can verify both authenticity and freshness.
func (n *MerchantNotifier) sign(payload []byte, timestamp int64) string {
	mac := hmac.New(sha256.New, []byte(n.signingSecret))
	fmt.Fprintf(mac, "%d.", timestamp)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}
