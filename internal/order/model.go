package order

import (
	"time"

	"github.com/shopspring/decimal"
)

type State string

const (
	StateNew        State = "new"
	StatePending    State = "pending_payment"
	StateProcessing State = "processing"
	StateComplete   State = "complete"
	StateCanceled   State = "canceled"
	StateClosed     State = "closed"
	StateOnHold     State = "holded"
)

func (s State) Valid() bool {
	switch s {
	case StateNew, StatePending, StateProcessing, StateComplete,
		StateCanceled, StateClosed, StateOnHold:
		return true
	}
	return false
}

// Paid reports whether the order already progressed past payment.
func (s State) Paid() bool {
	return s == StateProcessing || s == StateComplete
}

// Order is owned by the commerce system. This service only reads it and moves
// its state.
type Order struct {
	ID                string
	StoreID           string
	State             State
	Method            string
	Issuer            string
	Amount            decimal.Decimal
	Currency          string
	TransactionID     string
	GatewayStatus     string
	PaidTransactionID string
	Invoiced          bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Uncancel reverts a cancellation so the order can progress again.
func (o *Order) Uncancel() error {
	if o.State != StateCanceled {
		return ErrNotCanceled
	}
	o.State = StatePending
	return nil
}

// AmountValue formats the total the way the gateway expects it.
func (o *Order) AmountValue() string {
	return o.Amount.StringFixed(2)
}
