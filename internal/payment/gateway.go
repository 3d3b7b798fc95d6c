package payment

import (
	"context"

	"payflow-be/internal/order"
)

// Gateway is the remote payment service. Implementations return
// *TransportError for failures before a response and *GatewayError for
// rejections.
type Gateway interface {
	StartTransaction(ctx context.Context, provider Provider, params StartParams) (*Transaction, error)
	GetTransaction(ctx context.Context, provider Provider, id string) (*Transaction, error)
	FetchIssuers(ctx context.Context, method string) ([]Issuer, error)
}

// OrderStore is the commerce system's order persistence.
type OrderStore interface {
	GetByID(ctx context.Context, orderID string) (*order.Order, error)
	GetByTransactionID(ctx context.Context, transactionID string) (*order.Order, error)
	Save(ctx context.Context, o *order.Order) error
}

// KeyResolver picks the gateway API key of a store.
type KeyResolver interface {
	APIKey(storeID string) string
}

// StaticKey serves one API key to every store.
type StaticKey string

func (k StaticKey) APIKey(string) string { return string(k) }

// Settings exposes the admin configuration per store and method.
type Settings interface {
	KeyResolver
	APIMethod(storeID string) string
	IssuerListType(method string) string
}

type storeIDKey struct{}

// WithStoreID scopes gateway calls made with ctx to a store's credentials.
func WithStoreID(ctx context.Context, storeID string) context.Context {
	return context.WithValue(ctx, storeIDKey{}, storeID)
}

func StoreIDFrom(ctx context.Context) string {
	if v, ok := ctx.Value(storeIDKey{}).(string); ok {
		return v
	}
	return ""
}
