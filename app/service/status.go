package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-course-payments/app/cache"
	"github.com/vibast-solutions/ms-go-course-payments/app/entity"
	"github.com/vibast-solutions/ms-go-course-payments/app/repository"
)

type CacheSnapshotEntry struct {
	TransactionRef string
	Status         string
	InitiatedAt    time.Time
	Age            time.Duration
}

type CacheSnapshot struct {
	Entries []CacheSnapshotEntry
	Counts  map[string]int
}

// CheckStatus resolves the client-facing status of an attempt. It is safe to call repeatedly and
// concurrently; an unknown reference reports pending.
func (s *PaymentService) CheckStatus(ctx context.Context, transactionRef string) (string, error) {
	transactionRef = strings.TrimSpace(transactionRef)
	if transactionRef == "" {
		return "", ErrInvalidRequest
	}
	logger := s.logger.WithField("transaction_ref", transactionRef)
	now := s.now()

	entry, err := s.statusCache.Get(ctx, transactionRef)
	if err != nil {
		logger.WithError(err).Warn("status cache read failed")
		entry = nil
	}
	status := entity.PollStatusPending
	if entry != nil && entry.Status != "" {
		status = entry.Status
	}

	payment, err := s.paymentRepo.FindByTransactionRef(ctx, transactionRef)
	if err != nil {
		logger.WithError(err).Warn("payment lookup failed, answering from cache")
		payment = nil
	}

	// The callback path and the timeout path are the only terminal writers, so a terminal
	// durable status is at least as fresh as the cache.
	if payment != nil && payment.IsTerminal() {
		stored := entity.PollStatus(payment.Status)
		if stored != status {
			s.setCacheStatus(ctx, logger, transactionRef, stored, now)
			status = stored
		}
	}

	if status == entity.PollStatusPending {
		initiatedAt, known := initiationTime(entry, payment)
		if known && now.Sub(initiatedAt) > s.pendingTimeout() {
			status = s.expire(ctx, logger, transactionRef, payment, now)
		}
	}

	if status == entity.PollStatusSuccess && payment != nil {
		s.grantEntitlement(ctx, logger, payment)
	}

	return status, nil
}

// expire records the timeout in the store first and caches whatever the store settled on. Only a
// missing record or a failed write leaves the timeout in the cache alone.
func (s *PaymentService) expire(ctx context.Context, logger logrus.FieldLogger, transactionRef string, payment *entity.Payment, now time.Time) string {
	if payment == nil {
		s.setCacheStatus(ctx, logger, transactionRef, entity.PollStatusTimeout, now)
		logger.Info("payment timed out (cache only)")
		return entity.PollStatusTimeout
	}

	description := "no confirmation received within " + s.pendingTimeout().String()
	err := s.paymentRepo.CompleteByTransactionRef(ctx, transactionRef, repository.Outcome{
		Status:           entity.PaymentStatusTimeout,
		ErrorDescription: &description,
		CompletedAt:      now,
	})
	switch {
	case err == nil:
		s.setCacheStatus(ctx, logger, transactionRef, entity.PollStatusTimeout, now)
		logger.Info("payment timed out")
		s.publishOutcome(ctx, logger, payment, entity.PaymentStatusTimeout, "", "poller", now)
		return entity.PollStatusTimeout
	case errors.Is(err, repository.ErrPaymentNotPending):
		current, findErr := s.paymentRepo.FindByTransactionRef(ctx, transactionRef)
		if findErr != nil || current == nil {
			logger.WithError(findErr).Warn("payment re-read after timeout conflict failed")
			return entity.PollStatusTimeout
		}
		stored := entity.PollStatus(current.Status)
		s.setCacheStatus(ctx, logger, transactionRef, stored, now)
		logger.WithField("status", current.Status).Info("payment settled before timeout could be recorded")
		return stored
	default:
		s.setCacheStatus(ctx, logger, transactionRef, entity.PollStatusTimeout, now)
		logger.WithError(err).Warn("durable timeout write failed, timeout cached only")
		return entity.PollStatusTimeout
	}
}

func initiationTime(entry *cache.Entry, payment *entity.Payment) (time.Time, bool) {
	if entry != nil && !entry.InitiatedAt.IsZero() {
		return entry.InitiatedAt, true
	}
	if payment != nil && !payment.CreatedAt.IsZero() {
		return payment.CreatedAt, true
	}
	return time.Time{}, false
}

// StatusCacheSnapshot lists cached entries, oldest first, with per-status counts.
func (s *PaymentService) StatusCacheSnapshot(ctx context.Context) (*CacheSnapshot, error) {
	entries, err := s.statusCache.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	snapshot := &CacheSnapshot{
		Entries: make([]CacheSnapshotEntry, 0, len(entries)),
		Counts: map[string]int{
			entity.PollStatusPending: 0,
			entity.PollStatusSuccess: 0,
			entity.PollStatusFailed:  0,
			entity.PollStatusTimeout: 0,
		},
	}
	for ref, entry := range entries {
		item := CacheSnapshotEntry{
			TransactionRef: ref,
			Status:         entry.Status,
			InitiatedAt:    entry.InitiatedAt,
		}
		if !entry.InitiatedAt.IsZero() {
			item.Age = now.Sub(entry.InitiatedAt)
		}
		snapshot.Entries = append(snapshot.Entries, item)
		snapshot.Counts[entry.Status]++
	}

	sort.Slice(snapshot.Entries, func(i, j int) bool {
		if snapshot.Entries[i].InitiatedAt.Equal(snapshot.Entries[j].InitiatedAt) {
			return snapshot.Entries[i].TransactionRef < snapshot.Entries[j].TransactionRef
		}
		return snapshot.Entries[i].InitiatedAt.Before(snapshot.Entries[j].InitiatedAt)
	})

	return snapshot, nil
}
