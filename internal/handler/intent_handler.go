// internal/handler/intent_handler.go
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/nomadstar/clpt/internal/domain"
	"github.com/nomadstar/clpt/internal/middleware"
	"github.com/nomadstar/clpt/internal/usecase"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type IntentHandler struct {
	intentUC *usecase.IntentUsecase
	logger   *zap.Logger
}

func NewIntentHandler(intentUC *usecase.IntentUsecase, logger *zap.Logger) *IntentHandler {
	return &IntentHandler{
		intentUC: intentUC,
		logger:   logger,
	}
}

// HandleCreateIntent handles POST /payment-intents for the
// authenticated merchant.
func (h *IntentHandler) HandleCreateIntent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req domain.CreateIntentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("failed to decode create-intent request", zap.Error(err))
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	merchant := middleware.MerchantFromContext(ctx)
	if merchant != nil {
		if req.MerchantID != "" && req.MerchantID != merchant.ID {
			writeError(w, http.StatusForbidden, "merchant_id does not match API key")
			return
		}
		req.MerchantID = merchant.ID
	}
	if req.MerchantID == "" {
		writeError(w, http.StatusBadRequest, "merchant_id is required")
		return
	}

	intent, err := h.intentUC.CreateIntent(ctx, &req)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, intent)
}

// HandleGetIntent handles GET /payment-intents/{id}.
func (h *IntentHandler) HandleGetIntent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	intent, err := h.intentUC.GetIntent(r.Context(), id)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, intent)
}
