package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/vibast-solutions/ms-go-course-payments/app/entity"
)

type PaymentCallbackRepository struct {
	db DBTX
}

func NewPaymentCallbackRepository(db DBTX) *PaymentCallbackRepository {
	return &PaymentCallbackRepository{db: db}
}

func (r *PaymentCallbackRepository) Create(ctx context.Context, callback *entity.PaymentCallback) error {
	if callback.ID == "" {
		callback.ID = uuid.NewString()
	}

	query := `
		INSERT INTO payment_callbacks (
			id, checkout_handle, result_code, payload_json, outcome, error, created_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		callback.ID,
		callback.CheckoutHandle,
		nullableInt64Value(callback.ResultCode),
		callback.PayloadJSON,
		callback.Outcome,
		nullableStringValue(callback.Error),
		callback.CreatedAt.UTC(),
	)
	return err
}

func (r *PaymentCallbackRepository) ListByCheckoutHandle(ctx context.Context, checkoutHandle string) ([]*entity.PaymentCallback, error) {
	query := `
		SELECT id, checkout_handle, result_code, payload_json, outcome, error, created_at
		FROM payment_callbacks
		WHERE checkout_handle = ?
		ORDER BY created_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query, checkoutHandle)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	callbacks := make([]*entity.PaymentCallback, 0)
	for rows.Next() {
		item := &entity.PaymentCallback{}
		var resultCode sql.NullInt64
		var callbackErr sql.NullString
		if err := rows.Scan(&item.ID, &item.CheckoutHandle, &resultCode, &item.PayloadJSON, &item.Outcome, &callbackErr, &item.CreatedAt); err != nil {
			return nil, err
		}
		item.ResultCode = int64PtrFromNull(resultCode)
		item.Error = stringPtrFromNull(callbackErr)
		item.CreatedAt = item.CreatedAt.UTC()
		callbacks = append(callbacks, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return callbacks, nil
}
