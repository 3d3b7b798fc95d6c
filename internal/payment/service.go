package payment

import (
	"context"
	"fmt"
	"net/url"

	"payflow-be/internal/events"
	"payflow-be/internal/logger"
	"payflow-be/internal/order"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// IssuerListNone hides the issuer choice of a method.
const IssuerListNone = "none"

// Service is the payment side of checkout: starting transactions, applying
// gateway callbacks and listing issuers.
type Service interface {
	StartTransaction(ctx context.Context, orderID string) (*Transaction, error)
	ProcessTransaction(ctx context.Context, orderID string, origin Origin) (order.State, error)
	ProcessTransactionByID(ctx context.Context, transactionID string, origin Origin) (order.State, error)
	ProcessNotification(ctx context.Context, orderID string, n Notification) (order.State, error)
	GetIssuers(ctx context.Context, method string) ([]Issuer, error)
}

// Options carries the callback endpoints announced to the gateway.
type Options struct {
	RedirectURL string
	WebhookURL  string
	Attempts    int
}

type service struct {
	store     OrderStore
	gateway   Gateway
	settings  Settings
	locker    Locker
	invoker   *Invoker
	router    *Router
	processor *ResponseProcessor
	opts      Options
}

func NewService(
	store OrderStore,
	gateway Gateway,
	settings Settings,
	locker Locker,
	publisher events.Publisher,
	opts Options,
) Service {
	invoker := NewInvoker(opts.Attempts)
	return &service{
		store:     store,
		gateway:   gateway,
		settings:  settings,
		locker:    locker,
		invoker:   invoker,
		router:    NewRouter(gateway, invoker),
		processor: NewResponseProcessor(store, locker, publisher),
		opts:      opts,
	}
}

func (s *service) StartTransaction(ctx context.Context, orderID string) (*Transaction, error) {
	ctx = logger.WithOrderID(ctx, orderID)
	log := logger.FromCtx(ctx)

	o, err := s.store.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.State != order.StateNew && o.State != order.StatePending {
		log.Warn("start refused", zap.String("state", string(o.State)))
		return nil, fmt.Errorf("%w: order %s is %s", ErrOrderNotPayable, o.ID, o.State)
	}
	ctx = WithStoreID(ctx, o.StoreID)

	params := StartParams{
		OrderID:        o.ID,
		Method:         o.Method,
		Issuer:         o.Issuer,
		Amount:         o.Amount,
		Currency:       o.Currency,
		Description:    "Order " + o.ID,
		RedirectURL:    withOrderID(s.opts.RedirectURL, o.ID),
		WebhookURL:     s.opts.WebhookURL,
		IdempotencyKey: uuid.NewString(),
	}

	tx, err := s.router.Start(ctx, s.settings.APIMethod(o.StoreID), params)
	if err != nil {
		return nil, err
	}

	unlock, err := s.locker.Lock(ctx, o.ID)
	if err != nil {
		return nil, fmt.Errorf("lock order %s: %w", o.ID, err)
	}
	defer unlock()

	// a callback may have landed while the gateway call was in flight
	o, err = s.store.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	o.TransactionID = tx.ID
	o.GatewayStatus = tx.Status
	if o.State == order.StateNew {
		o.State = order.StatePending
	}
	if err := s.store.Save(ctx, o); err != nil {
		return nil, fmt.Errorf("save order %s: %w", o.ID, err)
	}

	log.Info("order awaiting payment",
		zap.String("transaction_id", tx.ID),
		zap.String("provider", string(tx.Provider)),
	)
	return tx, nil
}

func (s *service) ProcessTransaction(ctx context.Context, orderID string, origin Origin) (order.State, error) {
	o, err := s.store.GetByID(ctx, orderID)
	if err != nil {
		return "", err
	}
	return s.processTransaction(ctx, o, origin)
}

// ProcessTransactionByID resolves the order from the gateway transaction id,
// which is all a webhook carries.
func (s *service) ProcessTransactionByID(ctx context.Context, transactionID string, origin Origin) (order.State, error) {
	if _, err := ProviderForTransactionID(transactionID); err != nil {
		return "", err
	}
	o, err := s.store.GetByTransactionID(ctx, transactionID)
	if err != nil {
		return "", err
	}
	return s.processTransaction(ctx, o, origin)
}

func (s *service) processTransaction(ctx context.Context, o *order.Order, origin Origin) (order.State, error) {
	ctx = WithStoreID(logger.WithOrderID(ctx, o.ID), o.StoreID)

	provider, err := ProviderForTransactionID(o.TransactionID)
	if err != nil {
		return "", err
	}

	var tx *Transaction
	err = s.invoker.Invoke(ctx, Operation{
		Provider: provider,
		Name:     "get_transaction",
		Call: func(ctx context.Context) error {
			var callErr error
			tx, callErr = s.gateway.GetTransaction(ctx, provider, o.TransactionID)
			return callErr
		},
	})
	if err != nil {
		return "", err
	}

	return s.processor.Process(ctx, o.ID, NotificationFromTransaction(tx, o.ID, origin))
}

func (s *service) ProcessNotification(ctx context.Context, orderID string, n Notification) (order.State, error) {
	return s.processor.Process(ctx, orderID, n)
}

// GetIssuers returns the issuers of method in gateway order. Methods without
// issuers, or configured to hide them, yield an empty list without a call.
// The gateway is queried with the credentials of the store on ctx.
func (s *service) GetIssuers(ctx context.Context, method string) ([]Issuer, error) {
	method = MethodFromCode(method)
	if !HasIssuers(method) || s.settings.IssuerListType(method) == IssuerListNone {
		return []Issuer{}, nil
	}

	var issuers []Issuer
	err := s.invoker.Invoke(ctx, Operation{
		Provider: ProviderPayments,
		Name:     "fetch_issuers",
		Call: func(ctx context.Context) error {
			var callErr error
			issuers, callErr = s.gateway.FetchIssuers(ctx, method)
			return callErr
		},
	})
	if err != nil {
		return nil, err
	}
	return issuers, nil
}

func withOrderID(raw, orderID string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	q := u.Query()
	q.Set("order_id", orderID)
	u.RawQuery = q.Encode()
	return u.String()
}
