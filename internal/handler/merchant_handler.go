// internal/handler/merchant_handler.go
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/nomadstar/clpt/internal/domain"
	"github.com/nomadstar/clpt/internal/repository"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type MerchantHandler struct {
	merchants repository.MerchantDirectory
	logger    *zap.Logger
}

func NewMerchantHandler(merchants repository.MerchantDirectory, logger *zap.Logger) *MerchantHandler {
	return &MerchantHandler{
		merchants: merchants,
		logger:    logger,
	}
}

// HandleCreateMerchant handles POST /merchants. The API key is
// generated here and returned once in the creation response.
func (h *MerchantHandler) HandleCreateMerchant(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateMerchantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Name == "" || req.ReceivingAddress == "" {
		writeError(w, http.StatusBadRequest, "name and receiving_address are required")
		return
	}

	merchant := &domain.Merchant{
		ID:               uuid.NewString(),
		Name:             req.Name,
		ReceivingAddress: req.ReceivingAddress,
		CallbackURL:      req.CallbackURL,
		APIKey:           uuid.NewString(),
	}

	if err := h.merchants.Create(r.Context(), merchant); err != nil {
		h.logger.Error("failed to create merchant", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.Info("merchant created",
		zap.String("merchant_id", merchant.ID),
		zap.String("name", merchant.Name))

	writeJSON(w, http.StatusCreated, merchant)
}

// HandleGetMerchant handles GET /merchants/{id}. The API key is never
// echoed after creation.
func (h *MerchantHandler) HandleGetMerchant(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	merchant, err := h.merchants.GetByID(r.Context(), id)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	merchant.APIKey = ""
	writeJSON(w, http.StatusOK, merchant)
}
