package repository

import (
	"context"

	"github.com/vibast-solutions/ms-go-course-payments/app/entity"
)

type EntitlementRepository struct {
	db DBTX
}

func NewEntitlementRepository(db DBTX) *EntitlementRepository {
	return &EntitlementRepository{db: db}
}

// Grant records course access for a user. It reports false when the user already owns the course.
func (r *EntitlementRepository) Grant(ctx context.Context, entitlement *entity.Entitlement) (bool, error) {
	query := `
		INSERT INTO user_courses (user_id, course_type, transaction_ref, granted_at)
		VALUES (?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		entitlement.UserID,
		entitlement.CourseType,
		entitlement.TransactionRef,
		entitlement.GrantedAt.UTC(),
	)
	if err != nil {
		if isDuplicateEntryError(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r *EntitlementRepository) HasCourse(ctx context.Context, userID, courseType string) (bool, error) {
	query := `SELECT COUNT(*) FROM user_courses WHERE user_id = ? AND course_type = ?`

	var count int64
	if err := r.db.QueryRowContext(ctx, query, userID, courseType).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *EntitlementRepository) DeleteByUser(ctx context.Context, userID string) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM user_courses WHERE user_id = ?`, userID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *EntitlementRepository) ListByUser(ctx context.Context, userID string) ([]*entity.Entitlement, error) {
	query := `
		SELECT user_id, course_type, transaction_ref, granted_at
		FROM user_courses
		WHERE user_id = ?
		ORDER BY granted_at ASC, course_type ASC
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entitlements := make([]*entity.Entitlement, 0)
	for rows.Next() {
		item := &entity.Entitlement{}
		if err := rows.Scan(&item.UserID, &item.CourseType, &item.TransactionRef, &item.GrantedAt); err != nil {
			return nil, err
		}
		item.GrantedAt = item.GrantedAt.UTC()
		entitlements = append(entitlements, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return entitlements, nil
}
