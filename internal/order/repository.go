package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"payflow-be/internal/logger"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type Repository interface {
	GetByID(ctx context.Context, orderID string) (*Order, error)
	GetByTransactionID(ctx context.Context, transactionID string) (*Order, error)
	Save(ctx context.Context, o *Order) error
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

const selectOrder = `
	SELECT increment_id, store_id, state, method, issuer, amount, currency,
		COALESCE(transaction_id, ''), gateway_status, paid_transaction_id, invoiced,
		created_at, updated_at
	FROM orders
`

func (r *repository) GetByID(ctx context.Context, orderID string) (*Order, error) {
	return r.getOne(ctx, selectOrder+` WHERE increment_id = $1`, orderID)
}

func (r *repository) GetByTransactionID(ctx context.Context, transactionID string) (*Order, error) {
	return r.getOne(ctx, selectOrder+` WHERE transaction_id = $1`, transactionID)
}

func (r *repository) getOne(ctx context.Context, query string, arg string) (*Order, error) {
	var (
		o      Order
		amount string
	)

	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&o.ID, &o.StoreID, &o.State, &o.Method, &o.Issuer, &amount, &o.Currency,
		&o.TransactionID, &o.GatewayStatus, &o.PaidTransactionID, &o.Invoiced,
		&o.CreatedAt, &o.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		logger.FromCtx(ctx).Error("failed to load order", zap.String("key", arg), zap.Error(err))
		return nil, err
	}

	o.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("order %s has malformed amount %q: %w", o.ID, amount, err)
	}

	return &o, nil
}

// Save persists the mutable payment fields of an order. Callers serialize
// writes per order, so this is a plain update.
func (r *repository) Save(ctx context.Context, o *Order) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE orders
		SET state = $2,
			transaction_id = NULLIF($3, ''),
			gateway_status = $4,
			paid_transaction_id = $5,
			invoiced = $6,
			updated_at = now()
		WHERE increment_id = $1
	`,
		o.ID, o.State, o.TransactionID, o.GatewayStatus, o.PaidTransactionID, o.Invoiced,
	)
	if err != nil {
		logger.FromCtx(ctx).Error("failed to save order", zap.String("order_id", o.ID), zap.Error(err))
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrOrderNotFound
	}
	return nil
}
