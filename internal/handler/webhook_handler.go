// internal/handler/webhook_handler.go
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/nomadstar/clpt/internal/domain"
	"github.com/nomadstar/clpt/internal/usecase"

	"go.uber.org/zap"
)

type WebhookHandler struct {
	reconcileUC *usecase.ReconcileUsecase
	logger      *zap.Logger
}

func NewWebhookHandler(reconcileUC *usecase.ReconcileUsecase, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{
		reconcileUC: reconcileUC,
		logger:      logger,
	}
}

// HandleBlockchainWebhook handles POST /webhooks/blockchain. A
// reconciliation that did not apply is still a 200 with
// {updated:false, reason}; only a structurally malformed payload is a
// client error. The event source retries on transport failures, so
// decisions must not look like failures.
func (h *WebhookHandler) HandleBlockchainWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var event domain.TransferEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		h.logger.Warn("failed to decode transfer event",
			zap.String("remote_addr", r.RemoteAddr),
			zap.Error(err))
		writeError(w, http.StatusBadRequest, "invalid event payload")
		return
	}

	if event.TxHash == "" || event.To == "" || event.Amount.IsZero() {
		writeError(w, http.StatusBadRequest, "tx_hash, to and amount are required")
		return
	}

	h.logger.Info("transfer event received",
		zap.String("tx_hash", event.TxHash),
		zap.String("to", event.To),
		zap.String("amount", event.Amount.String()),
		zap.String("payment_intent_id", event.PaymentIntentID))

	result, err := h.reconcileUC.Reconcile(ctx, &event)
	if err != nil {
		h.logger.Error("reconciliation failed",
			zap.String("tx_hash", event.TxHash),
			zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.Info("transfer event reconciled",
		zap.String("tx_hash", event.TxHash),
		zap.Bool("updated", result.Updated),
		zap.String("reason", string(result.Reason)))

	writeJSON(w, http.StatusOK, result)
}
