package payment

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"payflow-be/internal/logger"
	"payflow-be/internal/order"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		success bool
		status  string
		want    Outcome
	}{
		{true, StatusPaid, OutcomeSuccess},
		{false, StatusPaid, OutcomeSuccess},
		{true, StatusAuthorized, OutcomeSuccess},
		{true, StatusCompleted, OutcomeSuccess},
		{false, StatusAuthorized, OutcomePending},
		{false, StatusCompleted, OutcomePending},
		{false, StatusFailed, OutcomeFailed},
		{false, StatusCanceled, OutcomeCanceled},
		{true, StatusCanceled, OutcomeCanceled},
		{false, StatusExpired, OutcomeExpired},
		{false, StatusOpen, OutcomePending},
		{false, StatusPending, OutcomePending},
		{false, StatusCreated, OutcomePending},
		{false, StatusShipping, OutcomePending},
		{false, StatusRefunded, OutcomePending},
		{false, StatusChargedBack, OutcomePending},
		{false, " PAID ", OutcomeSuccess},
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			got, err := Classify(NewNotification(tt.success, tt.status, "", OriginWebhook))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("Unsupported", func(t *testing.T) {
		_, err := Classify(NewNotification(true, "settled", "", OriginWebhook))
		assert.ErrorIs(t, err, ErrUnsupportedStatus)

		var usErr *UnsupportedStatusError
		require.ErrorAs(t, err, &usErr)
		assert.Equal(t, "settled", usErr.Status)
	})
}

func newTestProcessor(store *memStore) (*ResponseProcessor, *recordingPublisher) {
	pub := &recordingPublisher{}
	p := NewResponseProcessor(store, NewMemoryLocker(), pub)
	p.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	return p, pub
}

func paid(orderID string, origin Origin) Notification {
	return NewNotification(true, StatusPaid, orderID, origin)
}

func TestResponseProcessor_Success(t *testing.T) {
	ctx := context.Background()

	t.Run("Pending order completes and is invoiced", func(t *testing.T) {
		store := newMemStore(testOrder("1", order.StatePending))
		p, pub := newTestProcessor(store)

		state, err := p.Process(ctx, "1", paid("1", OriginWebhook))
		require.NoError(t, err)
		assert.Equal(t, order.StateComplete, state)

		o := store.get("1")
		assert.True(t, o.Invoiced)
		assert.Equal(t, "tr_1", o.PaidTransactionID)
		assert.Equal(t, StatusPaid, o.GatewayStatus)

		events := pub.published()
		require.Len(t, events, 1)
		assert.Equal(t, "pending_payment", events[0].From)
		assert.Equal(t, "complete", events[0].To)
		assert.True(t, events[0].Invoiced)
		assert.False(t, events[0].Uncanceled)
		assert.Equal(t, "webhook", events[0].Origin)
	})

	t.Run("Canceled order is revived by a paid webhook", func(t *testing.T) {
		store := newMemStore(testOrder("2", order.StateCanceled))
		p, pub := newTestProcessor(store)

		state, err := p.Process(ctx, "2", NewNotification(true, "paid", "2", OriginWebhook))
		require.NoError(t, err)
		assert.Contains(t, []order.State{order.StateProcessing, order.StateComplete}, state)
		revived := store.get("2")
		assert.Equal(t, "100.00", revived.AmountValue())

		events := pub.published()
		require.Len(t, events, 1)
		assert.True(t, events[0].Uncanceled)
		assert.Equal(t, "canceled", events[0].From)
	})

	t.Run("Authorized payment waits for capture", func(t *testing.T) {
		store := newMemStore(testOrder("3", order.StatePending))
		p, _ := newTestProcessor(store)

		state, err := p.Process(ctx, "3", NewNotification(true, StatusAuthorized, "3", OriginRedirect))
		require.NoError(t, err)
		assert.Equal(t, order.StateProcessing, state)
		assert.False(t, store.get("3").Invoiced)
	})

	t.Run("Deferred capture method is not invoiced", func(t *testing.T) {
		o := testOrder("4", order.StatePending)
		o.Method = MethodKlarnaPayLater
		store := newMemStore(o)
		p, _ := newTestProcessor(store)

		state, err := p.Process(ctx, "4", paid("4", OriginWebhook))
		require.NoError(t, err)
		assert.Equal(t, order.StateProcessing, state)
		assert.False(t, store.get("4").Invoiced)
	})

	t.Run("Closed and on hold orders reject success", func(t *testing.T) {
		for _, st := range []order.State{order.StateClosed, order.StateOnHold} {
			store := newMemStore(testOrder("5", st))
			p, pub := newTestProcessor(store)

			state, err := p.Process(ctx, "5", paid("5", OriginWebhook))
			assert.ErrorIs(t, err, ErrInvalidStateTransition)
			assert.Equal(t, st, state)
			assert.Equal(t, st, store.get("5").State)
			assert.Zero(t, store.saves)
			assert.Empty(t, pub.published())
		}
	})
}

func TestResponseProcessor_Idempotent(t *testing.T) {
	ctx := context.Background()
	store := newMemStore(testOrder("10", order.StatePending))
	p, pub := newTestProcessor(store)

	first, err := p.Process(ctx, "10", paid("10", OriginWebhook))
	require.NoError(t, err)
	after := store.get("10")

	for i := 0; i < 3; i++ {
		again, err := p.Process(ctx, "10", paid("10", OriginWebhook))
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}

	assert.Equal(t, after, store.get("10"))
	assert.Equal(t, 1, store.saves)
	assert.Len(t, pub.published(), 1)

	// the redirect reporting the same payment changes nothing either
	state, err := p.Process(ctx, "10", paid("10", OriginRedirect))
	require.NoError(t, err)
	assert.Equal(t, order.StateComplete, state)
	assert.Len(t, pub.published(), 1)
}

func TestResponseProcessor_ConcurrentCallbacks(t *testing.T) {
	store := newMemStore(testOrder("20", order.StateCanceled))
	store.readDelay = 5 * time.Millisecond
	p, pub := newTestProcessor(store)

	var wg sync.WaitGroup
	results := make([]order.State, 2)
	errs := make([]error, 2)
	for i, origin := range []Origin{OriginWebhook, OriginRedirect} {
		wg.Add(1)
		go func(i int, origin Origin) {
			defer wg.Done()
			results[i], errs[i] = p.Process(context.Background(), "20", paid("20", origin))
		}(i, origin)
	}
	wg.Wait()

	for i := range errs {
		assert.NoError(t, errs[i])
		assert.Equal(t, order.StateComplete, results[i])
	}

	events := pub.published()
	require.Len(t, events, 1)
	assert.True(t, events[0].Uncanceled)
	assert.Equal(t, 1, store.saves)
	assert.True(t, store.get("20").Invoiced)
}

func TestResponseProcessor_Failures(t *testing.T) {
	ctx := context.Background()

	t.Run("Pending order is canceled", func(t *testing.T) {
		for _, status := range []string{StatusFailed, StatusCanceled, StatusExpired} {
			store := newMemStore(testOrder("30", order.StatePending))
			p, pub := newTestProcessor(store)

			state, err := p.Process(ctx, "30", NewNotification(false, status, "30", OriginWebhook))
			require.NoError(t, err)
			assert.Equal(t, order.StateCanceled, state)
			assert.Equal(t, status, store.get("30").GatewayStatus)
			assert.Len(t, pub.published(), 1)
		}
	})

	t.Run("Invoiced order is closed", func(t *testing.T) {
		o := testOrder("31", order.StateComplete)
		o.Invoiced = true
		store := newMemStore(o)
		p, _ := newTestProcessor(store)

		state, err := p.Process(ctx, "31", NewNotification(false, StatusExpired, "31", OriginWebhook))
		require.NoError(t, err)
		assert.Equal(t, order.StateClosed, state)
	})

	t.Run("Already canceled order only records the status", func(t *testing.T) {
		o := testOrder("32", order.StateCanceled)
		o.GatewayStatus = StatusOpen
		store := newMemStore(o)
		p, pub := newTestProcessor(store)

		state, err := p.Process(ctx, "32", NewNotification(false, StatusExpired, "32", OriginWebhook))
		require.NoError(t, err)
		assert.Equal(t, order.StateCanceled, state)
		assert.Equal(t, StatusExpired, store.get("32").GatewayStatus)
		assert.Empty(t, pub.published())
	})
}

func TestResponseProcessor_Bookkeeping(t *testing.T) {
	ctx := context.Background()

	for _, status := range []string{StatusOpen, StatusRefunded, StatusChargedBack} {
		t.Run(status, func(t *testing.T) {
			store := newMemStore(testOrder("40", order.StatePending))
			p, pub := newTestProcessor(store)

			state, err := p.Process(ctx, "40", NewNotification(false, status, "40", OriginWebhook))
			require.NoError(t, err)
			assert.Equal(t, order.StatePending, state)
			assert.Equal(t, status, store.get("40").GatewayStatus)
			assert.Empty(t, pub.published())
		})
	}
}

func TestResponseProcessor_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("Unsupported status is logged and leaves the order alone", func(t *testing.T) {
		core, logs := observer.New(zapcore.ErrorLevel)
		restore := logger.Replace(zap.New(core))
		defer restore()

		store := newMemStore(testOrder("50", order.StatePending))
		p, _ := newTestProcessor(store)

		_, err := p.Process(ctx, "50", NewNotification(false, "mystery", "50", OriginWebhook))
		assert.ErrorIs(t, err, ErrUnsupportedStatus)
		assert.Zero(t, store.saves)
		assert.Equal(t, 1, logs.FilterMessage("notification carries an unsupported status").Len())
	})

	t.Run("Notification for another order", func(t *testing.T) {
		store := newMemStore(testOrder("51", order.StatePending))
		p, _ := newTestProcessor(store)

		_, err := p.Process(ctx, "51", paid("52", OriginWebhook))
		assert.ErrorIs(t, err, ErrOrderMismatch)
	})

	t.Run("Unknown order", func(t *testing.T) {
		p, _ := newTestProcessor(newMemStore())

		_, err := p.Process(ctx, "missing", paid("missing", OriginWebhook))
		assert.ErrorIs(t, err, order.ErrOrderNotFound)
	})

	t.Run("Save failure surfaces", func(t *testing.T) {
		store := newMemStore(testOrder("53", order.StatePending))
		store.saveErr = errors.New("connection refused")
		p, pub := newTestProcessor(store)

		state, err := p.Process(ctx, "53", paid("53", OriginWebhook))
		assert.Error(t, err)
		assert.Equal(t, order.StatePending, state)
		assert.Empty(t, pub.published())
	})

	t.Run("Publish failure does not fail the transition", func(t *testing.T) {
		store := newMemStore(testOrder("54", order.StatePending))
		p, pub := newTestProcessor(store)
		pub.err = errors.New("broker down")

		state, err := p.Process(ctx, "54", paid("54", OriginWebhook))
		assert.NoError(t, err)
		assert.Equal(t, order.StateComplete, state)
	})

	t.Run("Canceled context while waiting for the lock", func(t *testing.T) {
		store := newMemStore(testOrder("55", order.StatePending))
		p, _ := newTestProcessor(store)
		locker := p.locker.(*MemoryLocker)

		unlock, err := locker.Lock(ctx, "55")
		require.NoError(t, err)
		defer unlock()

		cctx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
		defer cancel()
		_, err = p.Process(cctx, "55", paid("55", OriginWebhook))
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Zero(t, store.saves)
	})
}
