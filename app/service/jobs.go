package service

import (
	"context"
	"errors"

	"github.com/vibast-solutions/ms-go-course-payments/app/entity"
	"github.com/vibast-solutions/ms-go-course-payments/app/repository"
)

// RunTimeoutPendingBatch marks stale pending attempts as timed out in the store. The cache is left
// alone; the next status check picks the outcome up from the store.
func (s *PaymentService) RunTimeoutPendingBatch(ctx context.Context) (int, error) {
	now := s.now()
	timeout := s.pendingTimeout()
	items, err := s.paymentRepo.ListStalePending(ctx, now.Add(-timeout), s.batchSize())
	if err != nil {
		return 0, err
	}

	var firstErr error
	expired := 0
	for _, payment := range items {
		if payment == nil || payment.IsTerminal() || now.Sub(payment.CreatedAt) <= timeout {
			continue
		}

		description := "no confirmation received within " + timeout.String()
		err := s.paymentRepo.CompleteByTransactionRef(ctx, payment.TransactionRef, repository.Outcome{
			Status:           entity.PaymentStatusTimeout,
			ErrorDescription: &description,
			CompletedAt:      now,
		})
		if errors.Is(err, repository.ErrPaymentNotPending) {
			continue
		}
		if err != nil {
			firstErr = keepFirstErr(firstErr, err)
			continue
		}

		expired++
		logger := s.paymentLogger(payment)
		logger.Info("stale pending payment timed out")
		s.publishOutcome(ctx, logger, payment, entity.PaymentStatusTimeout, "", "job", now)
	}

	return expired, firstErr
}
