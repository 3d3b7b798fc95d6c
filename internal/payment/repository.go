package payment

import (
	"context"
	"database/sql"
	"encoding/json"
)

const webhookProvider = "mollie"

// Repository keeps the receipt log of gateway callbacks.
type Repository interface {
	SaveWebhook(ctx context.Context, transactionID string, origin Origin, payload json.RawMessage) (webhookID int64, err error)
	MarkWebhookProcessed(ctx context.Context, webhookID int64) error
	MarkWebhookFailed(ctx context.Context, webhookID int64, reason string) error
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

func (r *repository) SaveWebhook(
	ctx context.Context,
	transactionID string,
	origin Origin,
	payload json.RawMessage,
) (int64, error) {

	const q = `
	INSERT INTO payment_webhooks (
		provider,
		transaction_id,
		origin,
		payload
	)
	VALUES ($1, $2, $3, $4)
	RETURNING id;
	`

	var id int64
	err := r.db.QueryRowContext(
		ctx,
		q,
		webhookProvider,
		transactionID,
		string(origin),
		[]byte(payload),
	).Scan(&id)
	if err != nil {
		return 0, err
	}

	return id, nil
}

func (r *repository) MarkWebhookProcessed(
	ctx context.Context,
	webhookID int64,
) error {

	const q = `
	UPDATE payment_webhooks
	SET processed_at = now(), process_error = NULL
	WHERE id = $1;
	`

	_, err := r.db.ExecContext(ctx, q, webhookID)
	return err
}

func (r *repository) MarkWebhookFailed(
	ctx context.Context,
	webhookID int64,
	reason string,
) error {

	const q = `
	UPDATE payment_webhooks
	SET process_error = $2
	WHERE id = $1;
	`

	_, err := r.db.ExecContext(ctx, q, webhookID, reason)
	return err
}
