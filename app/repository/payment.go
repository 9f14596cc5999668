package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/vibast-solutions/ms-go-course-payments/app/entity"
)

var (
	ErrPaymentNotFound      = errors.New("payment not found")
	ErrPaymentAlreadyExists = errors.New("payment already exists")
	ErrPaymentNotPending    = errors.New("payment is no longer pending")
)

const paymentColumns = `
	transaction_ref, checkout_handle, merchant_handle, user_id, course_type, phone, amount,
	status, receipt, error_description, processing_ms, created_at, completed_at, updated_at
`

type PaymentFilter struct {
	UserID     string
	CourseType string
	Status     string
	Limit      int32
	Offset     int32
}

// Outcome is the terminal state written over a pending record.
type Outcome struct {
	Status           string
	Receipt          *string
	ErrorDescription *string
	ProcessingMillis *int64
	CompletedAt      time.Time
}

// PaymentStats counts attempts per durable status and completed attempts per course.
type PaymentStats struct {
	Total             int64
	ByStatus          map[string]int64
	CompletedByCourse map[string]int64
}

type PaymentRepository struct {
	db DBTX
}

func NewPaymentRepository(db DBTX) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func (r *PaymentRepository) Create(ctx context.Context, payment *entity.Payment) error {
	query := `
		INSERT INTO payments (` + paymentColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		payment.TransactionRef,
		payment.CheckoutHandle,
		payment.MerchantHandle,
		payment.UserID,
		payment.CourseType,
		payment.Phone,
		payment.Amount,
		payment.Status,
		nullableStringValue(payment.Receipt),
		nullableStringValue(payment.ErrorDescription),
		nullableInt64Value(payment.ProcessingMillis),
		payment.CreatedAt.UTC(),
		nullableTimeValue(payment.CompletedAt),
		payment.UpdatedAt.UTC(),
	)
	if err != nil {
		if isDuplicateEntryError(err) {
			return ErrPaymentAlreadyExists
		}
		return err
	}
	return nil
}

func (r *PaymentRepository) FindByTransactionRef(ctx context.Context, transactionRef string) (*entity.Payment, error) {
	return r.findOne(ctx, "transaction_ref", transactionRef)
}

func (r *PaymentRepository) FindByCheckoutHandle(ctx context.Context, checkoutHandle string) (*entity.Payment, error) {
	return r.findOne(ctx, "checkout_handle", checkoutHandle)
}

// CompleteByCheckoutHandle moves a pending record to its terminal outcome. Records that are
// already terminal are left untouched and reported as ErrPaymentNotPending.
func (r *PaymentRepository) CompleteByCheckoutHandle(ctx context.Context, checkoutHandle string, outcome Outcome) error {
	return r.transitionPending(ctx, "checkout_handle", checkoutHandle, outcome)
}

func (r *PaymentRepository) CompleteByTransactionRef(ctx context.Context, transactionRef string, outcome Outcome) error {
	return r.transitionPending(ctx, "transaction_ref", transactionRef, outcome)
}

func (r *PaymentRepository) List(ctx context.Context, filter PaymentFilter) ([]*entity.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments`

	conditions := make([]string, 0, 3)
	args := make([]interface{}, 0, 5)

	if strings.TrimSpace(filter.UserID) != "" {
		conditions = append(conditions, "user_id = ?")
		args = append(args, filter.UserID)
	}
	if strings.TrimSpace(filter.CourseType) != "" {
		conditions = append(conditions, "course_type = ?")
		args = append(args, filter.CourseType)
	}
	if strings.TrimSpace(filter.Status) != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, filter.Status)
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	query += " ORDER BY created_at DESC, transaction_ref DESC LIMIT ? OFFSET ?"
	args = append(args, filter.Limit, filter.Offset)

	return r.queryPayments(ctx, query, args...)
}

func (r *PaymentRepository) ListStalePending(ctx context.Context, cutoff time.Time, limit int32) ([]*entity.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments
		WHERE status = ? AND created_at <= ?
		ORDER BY created_at ASC
		LIMIT ?`

	return r.queryPayments(ctx, query, entity.PaymentStatusPending, cutoff.UTC(), limit)
}

func (r *PaymentRepository) Stats(ctx context.Context) (*PaymentStats, error) {
	stats := &PaymentStats{
		ByStatus: map[string]int64{
			entity.PaymentStatusPending:   0,
			entity.PaymentStatusCompleted: 0,
			entity.PaymentStatusFailed:    0,
			entity.PaymentStatusTimeout:   0,
		},
		CompletedByCourse: map[string]int64{},
	}

	rows, err := r.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM payments GROUP BY status`)
	if err != nil {
		return nil, err
	}
	if err := scanCounts(rows, stats.ByStatus); err != nil {
		return nil, err
	}
	for _, count := range stats.ByStatus {
		stats.Total += count
	}

	rows, err = r.db.QueryContext(ctx,
		`SELECT course_type, COUNT(*) FROM payments WHERE status = ? GROUP BY course_type`,
		entity.PaymentStatusCompleted,
	)
	if err != nil {
		return nil, err
	}
	if err := scanCounts(rows, stats.CompletedByCourse); err != nil {
		return nil, err
	}

	return stats, nil
}

func (r *PaymentRepository) ListRefsByUser(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT transaction_ref FROM payments WHERE user_id = ?`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	refs := make([]string, 0)
	for rows.Next() {
		var ref string
		if err := rows.Scan(&ref); err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return refs, nil
}

// DeleteByUser removes every attempt of a user and reports how many were removed.
func (r *PaymentRepository) DeleteByUser(ctx context.Context, userID string) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM payments WHERE user_id = ?`, userID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *PaymentRepository) transitionPending(ctx context.Context, keyColumn, key string, outcome Outcome) error {
	query := `
		UPDATE payments SET
			status = ?,
			receipt = ?,
			error_description = ?,
			processing_ms = ?,
			completed_at = ?,
			updated_at = ?
		WHERE ` + keyColumn + ` = ? AND status = ?
	`

	completedAt := outcome.CompletedAt.UTC()
	result, err := r.db.ExecContext(ctx, query,
		outcome.Status,
		nullableStringValue(outcome.Receipt),
		nullableStringValue(outcome.ErrorDescription),
		nullableInt64Value(outcome.ProcessingMillis),
		completedAt,
		completedAt,
		key,
		entity.PaymentStatusPending,
	)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected > 0 {
		return nil
	}

	existing, err := r.findOne(ctx, keyColumn, key)
	if err != nil {
		return err
	}
	if existing == nil {
		return ErrPaymentNotFound
	}
	return ErrPaymentNotPending
}

func (r *PaymentRepository) findOne(ctx context.Context, keyColumn, key string) (*entity.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE ` + keyColumn + ` = ? LIMIT 1`

	payment := &entity.Payment{}
	if err := scanPayment(r.db.QueryRowContext(ctx, query, key), payment); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	return payment, nil
}

func (r *PaymentRepository) queryPayments(ctx context.Context, query string, args ...interface{}) ([]*entity.Payment, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	payments := make([]*entity.Payment, 0)
	for rows.Next() {
		item := &entity.Payment{}
		if err := scanPayment(rows, item); err != nil {
			return nil, err
		}
		payments = append(payments, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return payments, nil
}

func scanCounts(rows *sql.Rows, into map[string]int64) error {
	defer rows.Close()
	for rows.Next() {
		var key string
		var count int64
		if err := rows.Scan(&key, &count); err != nil {
			return err
		}
		into[key] = count
	}
	return rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPayment(scan rowScanner, payment *entity.Payment) error {
	var receipt sql.NullString
	var errorDescription sql.NullString
	var processingMillis sql.NullInt64
	var completedAt sql.NullTime

	err := scan.Scan(
		&payment.TransactionRef,
		&payment.CheckoutHandle,
		&payment.MerchantHandle,
		&payment.UserID,
		&payment.CourseType,
		&payment.Phone,
		&payment.Amount,
		&payment.Status,
		&receipt,
		&errorDescription,
		&processingMillis,
		&payment.CreatedAt,
		&completedAt,
		&payment.UpdatedAt,
	)
	if err != nil {
		return err
	}

	payment.CreatedAt = payment.CreatedAt.UTC()
	payment.UpdatedAt = payment.UpdatedAt.UTC()
	payment.Receipt = stringPtrFromNull(receipt)
	payment.ErrorDescription = stringPtrFromNull(errorDescription)
	payment.ProcessingMillis = int64PtrFromNull(processingMillis)
	payment.CompletedAt = timePtrFromNull(completedAt)

	return nil
}
