package service

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-course-payments/app/repository"
)

type PurgeResult struct {
	UserID              string
	PaymentsDeleted     int64
	EntitlementsDeleted int64
}

// PurgeUser removes the attempts, course access and cached statuses of a deleted user. The
// callback audit log is kept.
func (s *PaymentService) PurgeUser(ctx context.Context, userID string) (*PurgeResult, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrInvalidRequest
	}
	logger := s.logger.WithField("user_id", userID)

	refs, err := s.paymentRepo.ListRefsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	entitlements, err := s.entitlementRepo.DeleteByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	payments, err := s.paymentRepo.DeleteByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	if err := s.statusCache.Delete(ctx, refs...); err != nil {
		logger.WithError(err).Warn("status cache purge failed")
	}

	logger.WithFields(logrus.Fields{
		"payments_deleted":     payments,
		"entitlements_deleted": entitlements,
	}).Warn("user payment data purged")

	return &PurgeResult{
		UserID:              userID,
		PaymentsDeleted:     payments,
		EntitlementsDeleted: entitlements,
	}, nil
}

// PaymentStats lists every catalog course in the per-course counts, including those never sold.
func (s *PaymentService) PaymentStats(ctx context.Context) (*repository.PaymentStats, error) {
	stats, err := s.paymentRepo.Stats(ctx)
	if err != nil {
		return nil, err
	}
	for _, course := range s.courses.All() {
		if _, ok := stats.CompletedByCourse[course.Type]; !ok {
			stats.CompletedByCourse[course.Type] = 0
		}
	}
	return stats, nil
}
