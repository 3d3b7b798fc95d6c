package payment

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"syscall"

	"payflow-be/internal/order"
)

var (
	ErrNoTransaction          = errors.New("order has no gateway transaction")
	ErrUnsupportedStatus      = errors.New("unsupported transaction status")
	ErrInvalidStateTransition = errors.New("invalid order state transition")
	ErrOrderMismatch          = errors.New("notification belongs to another order")
	ErrOrderNotPayable        = errors.New("order does not accept a new payment")
	ErrNoAPIKey               = errors.New("no gateway API key configured")
)

// TransportError is a failure before any HTTP response arrived: timeouts,
// resets, refused connections. It is the only kind the invoker retries.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("gateway transport error during %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error   { return e.Err }
func (e *TransportError) Temporary() bool { return true }

// GatewayError is a well-formed rejection by the gateway.
type GatewayError struct {
	StatusCode int
	Title      string
	Detail     string
	Field      string
}

func (e *GatewayError) Error() string {
	msg := fmt.Sprintf("gateway error %d", e.StatusCode)
	if e.Title != "" {
		msg += " " + e.Title
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Field != "" {
		msg += " (field " + e.Field + ")"
	}
	return msg
}

// ResponseError is a failure after the gateway answered, e.g. a truncated or
// undecodable body. The gateway may already have acted on the request, so it
// is never retried.
type ResponseError struct {
	StatusCode int
	Err        error
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("gateway response %d unusable: %v", e.StatusCode, e.Err)
}

func (e *ResponseError) Unwrap() error { return e.Err }

type UnsupportedStatusError struct {
	Status string
}

func (e *UnsupportedStatusError) Error() string {
	return fmt.Sprintf("unsupported transaction status %q", e.Status)
}

func (e *UnsupportedStatusError) Is(target error) bool { return target == ErrUnsupportedStatus }

type InvalidStateTransitionError struct {
	OrderID string
	From    order.State
	Outcome Outcome
}

func (e *InvalidStateTransitionError) Error() string {
	return fmt.Sprintf("order %s cannot take a %s notification in state %s", e.OrderID, e.Outcome, e.From)
}

func (e *InvalidStateTransitionError) Is(target error) bool {
	return target == ErrInvalidStateTransition
}

type UnknownTransactionError struct {
	ID string
}

func (e *UnknownTransactionError) Error() string {
	return fmt.Sprintf("transaction id %q does not belong to a known API", e.ID)
}

// transientMarkers catch transport failures that reach us only as text, e.g.
// from a proxy or an HTTP client that flattens its errors.
var transientMarkers = []string{
	"curl error 28",
	"connection timed out",
	"connection reset",
	"i/o timeout",
	"timeout awaiting response headers",
	"client.timeout exceeded",
}

// IsTransient classifies err for the retry loop. Anything that happened after
// the gateway responded is never transient, whatever the status code.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var gwErr *GatewayError
	if errors.As(err, &gwErr) {
		return false
	}

	var respErr *ResponseError
	if errors.As(err, &respErr) {
		return false
	}

	var tErr *TransportError
	if errors.As(err, &tErr) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range transientMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
