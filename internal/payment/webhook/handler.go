package webhook

import (
	"encoding/json"
	"errors"
	"net/http"

	"payflow-be/internal/logger"
	"payflow-be/internal/order"
	"payflow-be/internal/payment"
	"payflow-be/internal/utils"

	"go.uber.org/zap"
)

// Handler serves the two gateway callbacks: the server-to-server webhook and
// the shopper's browser returning from checkout.
type Handler struct {
	Payments payment.Service
	Repo     payment.Repository
}

func NewWebhookHandler(payments payment.Service, repo payment.Repository) *Handler {
	return &Handler{
		Payments: payments,
		Repo:     repo,
	}
}

// PaymentWebhookHandler handles POST /webhook/payment. The gateway only sends
// the transaction id; the status is fetched from the API that owns it.
// Anything but a 2xx makes the gateway re-deliver, so outcomes that a retry
// cannot change are acknowledged.
func (h *Handler) PaymentWebhookHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromCtx(ctx)

	if err := r.ParseForm(); err != nil {
		utils.WriteJSONError(w, "invalid form body", http.StatusBadRequest)
		return
	}
	transactionID := r.PostForm.Get("id")
	if transactionID == "" {
		utils.WriteJSONError(w, "missing transaction id", http.StatusBadRequest)
		return
	}
	log = log.With(zap.String("transaction_id", transactionID))

	payload, _ := json.Marshal(r.PostForm)
	webhookID, err := h.Repo.SaveWebhook(ctx, transactionID, payment.OriginWebhook, payload)
	if err != nil {
		log.Error("failed to record webhook", zap.Error(err))
		utils.WriteJSONError(w, "failed to record webhook", http.StatusInternalServerError)
		return
	}

	state, err := h.Payments.ProcessTransactionByID(ctx, transactionID, payment.OriginWebhook)
	if err != nil {
		if markErr := h.Repo.MarkWebhookFailed(ctx, webhookID, err.Error()); markErr != nil {
			log.Error("failed to mark webhook failed", zap.Error(markErr))
		}

		switch {
		case errors.Is(err, payment.ErrInvalidStateTransition), errors.Is(err, payment.ErrUnsupportedStatus):
			log.Error("webhook acknowledged without transition", zap.Error(err))
			w.WriteHeader(http.StatusOK)
		case errors.Is(err, order.ErrOrderNotFound), isUnknownTransaction(err):
			log.Warn("webhook for unknown transaction", zap.Error(err))
			utils.WriteJSONError(w, "transaction not found", http.StatusNotFound)
		default:
			log.Error("webhook processing failed", zap.Error(err))
			utils.WriteJSONError(w, "failed to process webhook", http.StatusInternalServerError)
		}
		return
	}

	if err := h.Repo.MarkWebhookProcessed(ctx, webhookID); err != nil {
		log.Error("failed to mark webhook processed", zap.Error(err))
	}

	log.Info("webhook processed", zap.String("state", string(state)))
	w.WriteHeader(http.StatusOK)
}

type returnResponse struct {
	OrderID string `json:"order_id"`
	State   string `json:"state"`
	Paid    bool   `json:"paid"`
}

// RedirectHandler handles GET /payment/return?order_id=… when the shopper
// comes back from the gateway's checkout page.
func (h *Handler) RedirectHandler(w http.ResponseWriter, r *http.Request) {
	orderID := r.URL.Query().Get("order_id")
	if orderID == "" {
		utils.WriteJSONError(w, "missing order_id", http.StatusBadRequest)
		return
	}

	ctx := logger.WithOrderID(r.Context(), orderID)
	log := logger.FromCtx(ctx)

	state, err := h.Payments.ProcessTransaction(ctx, orderID, payment.OriginRedirect)
	if err != nil {
		code, msg := redirectError(err)
		if code >= http.StatusInternalServerError {
			log.Error("redirect processing failed", zap.Error(err))
		} else {
			log.Warn("redirect rejected", zap.Int("status", code), zap.Error(err))
		}
		utils.WriteJSONError(w, msg, code)
		return
	}

	utils.WriteJSON(w, http.StatusOK, returnResponse{
		OrderID: orderID,
		State:   string(state),
		Paid:    state.Paid(),
	})
}

func redirectError(err error) (int, string) {
	var gwErr *payment.GatewayError
	switch {
	case errors.Is(err, payment.ErrInvalidStateTransition):
		return http.StatusConflict, "order cannot accept this payment"
	case errors.Is(err, payment.ErrUnsupportedStatus):
		return http.StatusUnprocessableEntity, "unsupported payment status"
	case errors.Is(err, order.ErrOrderNotFound), errors.Is(err, payment.ErrNoTransaction), isUnknownTransaction(err):
		return http.StatusNotFound, "order not found"
	case errors.As(err, &gwErr), payment.IsTransient(err):
		return http.StatusBadGateway, "payment gateway unavailable"
	}
	return http.StatusInternalServerError, "internal error"
}

func isUnknownTransaction(err error) bool {
	var unknown *payment.UnknownTransactionError
	return errors.As(err, &unknown)
}
