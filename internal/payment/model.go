package payment

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Provider is the gateway API owning a transaction. It never changes once the
// transaction exists.
type Provider string

const (
	ProviderOrders   Provider = "orders"
	ProviderPayments Provider = "payments"
)

const (
	ordersIDPrefix   = "ord_"
	paymentsIDPrefix = "tr_"
)

// ProviderForTransactionID derives the owning API from the id the gateway
// issued: "ord_…" for Orders, "tr_…" for Payments.
func ProviderForTransactionID(id string) (Provider, error) {
	switch {
	case strings.HasPrefix(id, ordersIDPrefix):
		return ProviderOrders, nil
	case strings.HasPrefix(id, paymentsIDPrefix):
		return ProviderPayments, nil
	case id == "":
		return "", ErrNoTransaction
	}
	return "", &UnknownTransactionError{ID: id}
}

// Gateway status vocabulary.
const (
	StatusOpen        = "open"
	StatusPending     = "pending"
	StatusAuthorized  = "authorized"
	StatusPaid        = "paid"
	StatusFailed      = "failed"
	StatusCanceled    = "canceled"
	StatusExpired     = "expired"
	StatusRefunded    = "refunded"
	StatusChargedBack = "charged_back"

	// Orders API only
	StatusCreated   = "created"
	StatusShipping  = "shipping"
	StatusCompleted = "completed"
)

// IsTerminalStatus reports whether no further progression is expected.
func IsTerminalStatus(status string) bool {
	switch status {
	case StatusPaid, StatusFailed, StatusCanceled, StatusExpired, StatusRefunded, StatusChargedBack:
		return true
	}
	return false
}

type Transaction struct {
	ID          string
	Provider    Provider
	Status      string
	Method      string
	Amount      decimal.Decimal
	Currency    string
	CheckoutURL string
}

// Succeeded reports whether the gateway considers the money secured.
func (t *Transaction) Succeeded() bool {
	switch t.Status {
	case StatusPaid, StatusAuthorized, StatusCompleted:
		return true
	}
	return false
}

type Origin string

const (
	OriginWebhook  Origin = "webhook"
	OriginRedirect Origin = "redirect"
)

// Notification is the snapshot of one gateway callback. It is built once per
// callback and has no setters.
type Notification struct {
	success bool
	status  string
	orderID string
	origin  Origin
}

func NewNotification(success bool, status, orderID string, origin Origin) Notification {
	return Notification{
		success: success,
		status:  strings.ToLower(strings.TrimSpace(status)),
		orderID: orderID,
		origin:  origin,
	}
}

// NotificationFromTransaction snapshots a fetched transaction for an order.
func NotificationFromTransaction(tx *Transaction, orderID string, origin Origin) Notification {
	return NewNotification(tx.Succeeded(), tx.Status, orderID, origin)
}

func (n Notification) Success() bool   { return n.success }
func (n Notification) Status() string  { return n.status }
func (n Notification) OrderID() string { return n.orderID }
func (n Notification) Origin() Origin  { return n.origin }

type Issuer struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Image string `json:"image,omitempty"`
}

// StartParams is what a transaction start needs regardless of the API used.
type StartParams struct {
	OrderID     string
	Method      string
	Issuer      string
	Amount      decimal.Decimal
	Currency    string
	Description string
	RedirectURL string
	WebhookURL  string
	// IdempotencyKey is shared by every attempt of one start call.
	IdempotencyKey string
}
