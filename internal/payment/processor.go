package payment

import (
	"context"
	"fmt"
	"time"

	"payflow-be/internal/events"
	"payflow-be/internal/logger"
	"payflow-be/internal/metrics"
	"payflow-be/internal/order"

	"go.uber.org/zap"
)

// ResponseProcessor applies gateway notifications to orders. Each call locks
// the order, re-reads it from the store and decides against that fresh
// state, so concurrent webhook and redirect callbacks serialize and the
// second one sees the first one's result.
type ResponseProcessor struct {
	store      OrderStore
	locker     Locker
	publisher  events.Publisher
	processors map[Outcome]outcomeProcessor
	now        func() time.Time
}

func NewResponseProcessor(store OrderStore, locker Locker, publisher events.Publisher) *ResponseProcessor {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &ResponseProcessor{
		store:      store,
		locker:     locker,
		publisher:  publisher,
		processors: defaultProcessors(),
		now:        time.Now,
	}
}

type paymentFields struct {
	state         order.State
	gatewayStatus string
	paidTxID      string
	invoiced      bool
}

func fieldsOf(o *order.Order) paymentFields {
	return paymentFields{o.State, o.GatewayStatus, o.PaidTransactionID, o.Invoiced}
}

// Process applies n to the order and returns the order's resulting state.
func (p *ResponseProcessor) Process(ctx context.Context, orderID string, n Notification) (order.State, error) {
	ctx = logger.WithOrderID(ctx, orderID)
	log := logger.FromCtx(ctx).With(
		zap.String("status", n.Status()),
		zap.Bool("success", n.Success()),
		zap.String("origin", string(n.Origin())),
	)

	if n.OrderID() != "" && n.OrderID() != orderID {
		return "", fmt.Errorf("%w: %s != %s", ErrOrderMismatch, n.OrderID(), orderID)
	}

	outcome, err := Classify(n)
	if err != nil {
		metrics.Notifications.WithLabelValues(string(n.Origin()), "unsupported", "rejected").Inc()
		log.Error("notification carries an unsupported status", zap.Error(err))
		return "", err
	}

	unlock, err := p.locker.Lock(ctx, orderID)
	if err != nil {
		return "", fmt.Errorf("lock order %s: %w", orderID, err)
	}
	defer unlock()

	o, err := p.store.GetByID(ctx, orderID)
	if err != nil {
		return "", err
	}

	from := o.State
	before := fieldsOf(o)

	a, err := p.processors[outcome].process(o, n)
	if err != nil {
		metrics.Notifications.WithLabelValues(string(n.Origin()), string(outcome), "rejected").Inc()
		log.Error("notification rejected", zap.String("state", string(from)), zap.Error(err))
		return from, err
	}

	if fieldsOf(o) == before {
		metrics.Notifications.WithLabelValues(string(n.Origin()), string(outcome), "noop").Inc()
		log.Info("notification already applied", zap.String("state", string(o.State)))
		return o.State, nil
	}

	if err := p.store.Save(ctx, o); err != nil {
		return from, fmt.Errorf("save order %s: %w", orderID, err)
	}

	if o.State == from && !a.invoiced {
		metrics.Notifications.WithLabelValues(string(n.Origin()), string(outcome), "noop").Inc()
		log.Debug("gateway status recorded", zap.String("state", string(o.State)))
		return o.State, nil
	}

	metrics.Notifications.WithLabelValues(string(n.Origin()), string(outcome), "transitioned").Inc()
	log.Info("order transitioned",
		zap.String("from", string(from)),
		zap.String("to", string(o.State)),
		zap.Bool("uncanceled", a.uncanceled),
		zap.Bool("invoiced", a.invoiced),
	)

	err = p.publisher.Publish(ctx, events.Transition{
		OrderID:       o.ID,
		From:          string(from),
		To:            string(o.State),
		Outcome:       string(outcome),
		Origin:        string(n.Origin()),
		TransactionID: o.TransactionID,
		GatewayStatus: o.GatewayStatus,
		Uncanceled:    a.uncanceled,
		Invoiced:      a.invoiced,
		OccurredAt:    p.now(),
	})
	if err != nil {
		// the order is saved; consumers can reconcile from the store
		log.Error("transition not published", zap.Error(err))
	}

	return o.State, nil
}
