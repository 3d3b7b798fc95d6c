package payment

import (
	"context"

	"payflow-be/internal/logger"
	"payflow-be/internal/metrics"

	"go.uber.org/zap"
)

// DefaultAttempts is the total number of tries for one gateway operation.
const DefaultAttempts = 3

// Operation is a single gateway call. Call may be invoked several times.
type Operation struct {
	Provider Provider
	Name     string
	Call     func(ctx context.Context) error
}

// Invoker retries transient gateway failures immediately, without backoff,
// up to a fixed attempt budget. It keeps no state between invocations.
type Invoker struct {
	attempts int
}

func NewInvoker(attempts int) *Invoker {
	if attempts < 1 {
		attempts = DefaultAttempts
	}
	return &Invoker{attempts: attempts}
}

// Invoke runs op until it succeeds, fails permanently or the budget is spent.
// A done ctx stops further attempts but never interrupts one in flight from
// here; the call itself is bound to ctx.
func (i *Invoker) Invoke(ctx context.Context, op Operation) error {
	log := logger.FromCtx(ctx).With(
		zap.String("provider", string(op.Provider)),
		zap.String("operation", op.Name),
	)

	var lastErr error
	for attempt := 1; attempt <= i.attempts; attempt++ {
		if attempt > 1 && ctx.Err() != nil {
			log.Warn("caller gave up before retry", zap.Int("attempt", attempt), zap.Error(ctx.Err()))
			return lastErr
		}

		timer := metrics.StartTimer()
		err := op.Call(ctx)
		timer.ObserveGatewayCall(string(op.Provider), op.Name)

		if err == nil {
			metrics.GatewayAttempts.WithLabelValues(string(op.Provider), op.Name, "ok").Inc()
			if attempt > 1 {
				log.Info("gateway call recovered after retry", zap.Int("attempt", attempt))
			}
			return nil
		}

		lastErr = err
		if !IsTransient(err) {
			metrics.GatewayAttempts.WithLabelValues(string(op.Provider), op.Name, "permanent").Inc()
			log.Warn("gateway call failed permanently", zap.Int("attempt", attempt), zap.Error(err))
			return err
		}

		metrics.GatewayAttempts.WithLabelValues(string(op.Provider), op.Name, "transient").Inc()
		log.Warn("transient gateway failure",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", i.attempts),
			zap.Error(err),
		)
	}

	log.Error("gateway retry budget exhausted", zap.Int("attempts", i.attempts), zap.Error(lastErr))
	return lastErr
}
