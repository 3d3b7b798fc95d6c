package payment

import (
	"context"

	"payflow-be/internal/logger"
	"payflow-be/internal/metrics"

	"go.uber.org/zap"
)

const (
	APIMethodOrder   = "order"
	APIMethodPayment = "payment"
)

// SelectProviders returns the APIs to try, in order, for a start. Preference
// "payment" never touches the Orders API. Any other preference means Orders
// first, with Payments as fallback unless the method is Orders-only.
func SelectProviders(preference, method string) []Provider {
	if preference == APIMethodPayment {
		return []Provider{ProviderPayments}
	}
	if IsOrdersOnly(method) {
		return []Provider{ProviderOrders}
	}
	return []Provider{ProviderOrders, ProviderPayments}
}

// Router starts transactions on the API chosen by SelectProviders. It does not
// retry; each attempt goes through the invoker.
type Router struct {
	gateway Gateway
	invoker *Invoker
}

func NewRouter(gateway Gateway, invoker *Invoker) *Router {
	return &Router{gateway: gateway, invoker: invoker}
}

func (r *Router) Start(ctx context.Context, preference string, params StartParams) (*Transaction, error) {
	plan := SelectProviders(preference, params.Method)
	log := logger.FromCtx(ctx).With(
		zap.String("order_id", params.OrderID),
		zap.String("method", params.Method),
		zap.String("preference", preference),
	)

	var err error
	for idx, provider := range plan {
		var tx *Transaction
		err = r.invoker.Invoke(ctx, Operation{
			Provider: provider,
			Name:     "start_transaction",
			Call: func(ctx context.Context) error {
				var callErr error
				tx, callErr = r.gateway.StartTransaction(ctx, provider, params)
				return callErr
			},
		})
		if err == nil {
			tx.Provider = provider
			log.Info("transaction started",
				zap.String("provider", string(provider)),
				zap.String("transaction_id", tx.ID),
			)
			return tx, nil
		}

		if idx+1 < len(plan) {
			if ctx.Err() != nil {
				log.Warn("caller gave up, not falling back",
					zap.String("provider", string(provider)),
					zap.Error(err),
				)
				return nil, err
			}
			metrics.RouterFallbacks.WithLabelValues(MethodFromCode(params.Method)).Inc()
			log.Warn("orders api failed, falling back to payments api", zap.Error(err))
		}
	}

	if len(plan) == 1 && plan[0] == ProviderOrders {
		log.Error("orders api failed for an orders-only method", zap.Error(err))
	}
	return nil, err
}
