// Package checkout exposes the storefront's entry points into payment: start
// a gateway transaction for an order and list a method's issuers.
package checkout

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"payflow-be/internal/auth"
	"payflow-be/internal/logger"
	"payflow-be/internal/order"
	"payflow-be/internal/payment"
	"payflow-be/internal/utils"

	"go.uber.org/zap"
)

type Handler struct {
	Payments payment.Service
	Settings payment.Settings
}

func NewHandler(payments payment.Service, settings payment.Settings) *Handler {
	return &Handler{Payments: payments, Settings: settings}
}

type startRequest struct {
	OrderID string `json:"order_id"`
}

type startResponse struct {
	TransactionID string `json:"transaction_id"`
	Provider      string `json:"provider"`
	Status        string `json:"status"`
	CheckoutURL   string `json:"checkout_url"`
}

// StartTransaction handles POST /checkout/transactions.
func (h *Handler) StartTransaction(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.OrderID) == "" {
		utils.WriteJSONError(w, "order_id is required", http.StatusBadRequest)
		return
	}

	ctx := logger.WithOrderID(r.Context(), req.OrderID)
	log := logger.FromCtx(ctx)

	tx, err := h.Payments.StartTransaction(ctx, req.OrderID)
	if err != nil {
		var gwErr *payment.GatewayError
		switch {
		case errors.Is(err, order.ErrOrderNotFound):
			utils.WriteJSONError(w, "order not found", http.StatusNotFound)
		case errors.Is(err, payment.ErrOrderNotPayable):
			utils.WriteJSONError(w, err.Error(), http.StatusConflict)
		case errors.As(err, &gwErr):
			log.Error("gateway rejected transaction", zap.Error(err))
			utils.WriteJSONError(w, "payment could not be started", http.StatusBadGateway)
		case payment.IsTransient(err):
			log.Error("gateway unreachable", zap.Error(err))
			utils.WriteJSONError(w, "payment gateway unavailable", http.StatusBadGateway)
		default:
			log.Error("failed to start transaction", zap.Error(err))
			utils.WriteJSONError(w, "internal error", http.StatusInternalServerError)
		}
		return
	}

	utils.WriteJSON(w, http.StatusCreated, startResponse{
		TransactionID: tx.ID,
		Provider:      string(tx.Provider),
		Status:        tx.Status,
		CheckoutURL:   tx.CheckoutURL,
	})
}

type issuersResponse struct {
	Method   string           `json:"method"`
	ListType string           `json:"list_type"`
	Issuers  []payment.Issuer `json:"issuers"`
}

// Issuers handles GET /checkout/issuers?method=ideal.
func (h *Handler) Issuers(w http.ResponseWriter, r *http.Request) {
	method := payment.MethodFromCode(r.URL.Query().Get("method"))
	if method == "" {
		utils.WriteJSONError(w, "method is required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	if claims, ok := auth.ClaimsFrom(ctx); ok {
		ctx = payment.WithStoreID(ctx, claims.StoreID)
	}

	issuers, err := h.Payments.GetIssuers(ctx, method)
	if err != nil {
		logger.FromCtx(ctx).Error("failed to fetch issuers",
			zap.String("method", method),
			zap.Error(err),
		)
		utils.WriteJSONError(w, "issuers unavailable", http.StatusBadGateway)
		return
	}

	utils.WriteJSON(w, http.StatusOK, issuersResponse{
		Method:   method,
		ListType: h.Settings.IssuerListType(method),
		Issuers:  issuers,
	})
}
