package payment

import (
	"context"
	"sync"
	"time"

	"payflow-be/internal/events"
	"payflow-be/internal/order"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

// memStore is an OrderStore over a map. Reads return copies so callers only
// see each other's changes through Save.
type memStore struct {
	mu     sync.Mutex
	orders map[string]order.Order
	saves  int
	// readDelay widens the window between read and save in race tests
	readDelay time.Duration
	saveErr   error
}

func newMemStore(orders ...order.Order) *memStore {
	s := &memStore{orders: make(map[string]order.Order)}
	for _, o := range orders {
		s.orders[o.ID] = o
	}
	return s
}

func (s *memStore) GetByID(ctx context.Context, orderID string) (*order.Order, error) {
	if s.readDelay > 0 {
		time.Sleep(s.readDelay)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return nil, order.ErrOrderNotFound
	}
	return &o, nil
}

func (s *memStore) GetByTransactionID(ctx context.Context, transactionID string) (*order.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.orders {
		if o.TransactionID == transactionID {
			o := o
			return &o, nil
		}
	}
	return nil, order.ErrOrderNotFound
}

func (s *memStore) Save(ctx context.Context, o *order.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	if _, ok := s.orders[o.ID]; !ok {
		return order.ErrOrderNotFound
	}
	s.orders[o.ID] = *o
	s.saves++
	return nil
}

func (s *memStore) get(orderID string) order.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.orders[orderID]
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Transition
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, t events.Transition) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, t)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) published() []events.Transition {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]events.Transition(nil), p.events...)
}

type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) StartTransaction(ctx context.Context, provider Provider, params StartParams) (*Transaction, error) {
	args := m.Called(ctx, provider, params)
	if tx, ok := args.Get(0).(*Transaction); ok {
		return tx, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockGateway) GetTransaction(ctx context.Context, provider Provider, id string) (*Transaction, error) {
	args := m.Called(ctx, provider, id)
	if tx, ok := args.Get(0).(*Transaction); ok {
		return tx, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockGateway) FetchIssuers(ctx context.Context, method string) ([]Issuer, error) {
	args := m.Called(ctx, method)
	if issuers, ok := args.Get(0).([]Issuer); ok {
		return issuers, args.Error(1)
	}
	return nil, args.Error(1)
}

type staticSettings struct {
	apiMethod  string
	issuerList map[string]string
}

func (s staticSettings) APIMethod(string) string { return s.apiMethod }
func (s staticSettings) APIKey(string) string    { return "test_key" }
func (s staticSettings) IssuerListType(method string) string {
	if t, ok := s.issuerList[method]; ok {
		return t
	}
	return "radio"
}

func transportTimeout() error {
	return &TransportError{Op: "POST /orders", Err: context.DeadlineExceeded}
}

func testOrder(id string, state order.State) order.Order {
	return order.Order{
		ID:            id,
		StoreID:       "default",
		State:         state,
		Method:        MethodIdeal,
		Amount:        decimal.RequireFromString("100.00"),
		Currency:      "EUR",
		TransactionID: "tr_" + id,
	}
}
