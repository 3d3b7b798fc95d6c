package payment

import (
	"payflow-be/internal/order"
)

type Outcome string

const (
	OutcomeSuccess  Outcome = "success"
	OutcomeFailed   Outcome = "failed"
	OutcomeCanceled Outcome = "canceled"
	OutcomeExpired  Outcome = "expired"
	OutcomePending  Outcome = "pending"
)

// Classify maps a notification to the processor that owns it. Precedence:
// success, then the failure family, then known non-final statuses.
func Classify(n Notification) (Outcome, error) {
	status := n.Status()

	switch {
	case status == StatusPaid:
		return OutcomeSuccess, nil
	case (status == StatusAuthorized || status == StatusCompleted) && n.Success():
		return OutcomeSuccess, nil
	}

	switch status {
	case StatusFailed:
		return OutcomeFailed, nil
	case StatusCanceled:
		return OutcomeCanceled, nil
	case StatusExpired:
		return OutcomeExpired, nil
	case StatusOpen, StatusPending, StatusCreated, StatusShipping,
		StatusAuthorized, StatusCompleted, StatusRefunded, StatusChargedBack:
		return OutcomePending, nil
	}

	return "", &UnsupportedStatusError{Status: status}
}

// applied describes side effects a processor performed besides the state
// change itself.
type applied struct {
	uncanceled bool
	invoiced   bool
}

type outcomeProcessor interface {
	process(o *order.Order, n Notification) (applied, error)
}

type successfulPayment struct{}

func (successfulPayment) process(o *order.Order, n Notification) (applied, error) {
	var a applied

	switch o.State {
	case order.StateProcessing, order.StateComplete:
		// re-delivery, or webhook and redirect both reporting success
		o.GatewayStatus = n.Status()
		return a, nil
	case order.StateCanceled:
		// canceled (e.g. by the expiry job) before the payment came in
		if err := o.Uncancel(); err != nil {
			return a, err
		}
		a.uncanceled = true
	case order.StateNew, order.StatePending:
	default:
		return a, &InvalidStateTransitionError{OrderID: o.ID, From: o.State, Outcome: OutcomeSuccess}
	}

	deferred := n.Status() == StatusAuthorized || IsDeferredCapture(o.Method)

	o.GatewayStatus = n.Status()
	o.PaidTransactionID = o.TransactionID
	if deferred {
		o.State = order.StateProcessing
		return a, nil
	}

	o.State = order.StateComplete
	if !o.Invoiced {
		o.Invoiced = true
		a.invoiced = true
	}
	return a, nil
}

// failedPayment handles failed, canceled and expired transactions. An order
// that was never invoiced is canceled, an invoiced one is closed.
type failedPayment struct{}

func (failedPayment) process(o *order.Order, n Notification) (applied, error) {
	o.GatewayStatus = n.Status()

	switch o.State {
	case order.StateCanceled, order.StateClosed:
		return applied{}, nil
	}

	if o.Invoiced {
		o.State = order.StateClosed
	} else {
		o.State = order.StateCanceled
	}
	return applied{}, nil
}

// openPayment only records the latest gateway status.
type openPayment struct{}

func (openPayment) process(o *order.Order, n Notification) (applied, error) {
	o.GatewayStatus = n.Status()
	return applied{}, nil
}

func defaultProcessors() map[Outcome]outcomeProcessor {
	return map[Outcome]outcomeProcessor{
		OutcomeSuccess:  successfulPayment{},
		OutcomeFailed:   failedPayment{},
		OutcomeCanceled: failedPayment{},
		OutcomeExpired:  failedPayment{},
		OutcomePending:  openPayment{},
	}
}
