package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-course-payments/app/entity"
	"github.com/vibast-solutions/ms-go-course-payments/app/repository"
	"github.com/vibast-solutions/ms-go-course-payments/app/worker"
)

const maxCallbackErrorLength = 1024

// AcceptCallback hands a provider notification to the worker pool and returns immediately.
// It never fails: the provider is acknowledged whatever happens here.
func (s *PaymentService) AcceptCallback(ctx context.Context, payload []byte) {
	body := make([]byte, len(payload))
	copy(body, payload)
	receivedAt := s.now()

	err := s.dispatcher.Submit(worker.Job{
		Name: "process_callback",
		Run: func(jobCtx context.Context) {
			s.ProcessCallback(jobCtx, body, receivedAt)
		},
	})
	if err == nil {
		return
	}

	checkoutHandle := ""
	if event, parseErr := s.gateway.ParseCallback(body); parseErr == nil {
		checkoutHandle = event.CheckoutHandle
	}
	s.logger.WithError(err).WithField("checkout_handle", checkoutHandle).Error("callback dropped")
	s.recordCallback(ctx, checkoutHandle, nil, body, entity.CallbackOutcomeDropped, err.Error(), receivedAt)
}

// ProcessCallback applies one provider outcome to the store, the cache and the entitlements.
// Failures are logged and written to the callback audit log, never returned.
func (s *PaymentService) ProcessCallback(ctx context.Context, payload []byte, receivedAt time.Time) {
	event, err := s.gateway.ParseCallback(payload)
	if err != nil {
		s.logger.WithError(err).Warn("unrecognized callback payload")
		s.recordCallback(ctx, "", nil, payload, entity.CallbackOutcomeRejected, err.Error(), receivedAt)
		return
	}

	resultCode := event.ResultCode
	logger := s.logger.WithFields(logrus.Fields{
		"checkout_handle": event.CheckoutHandle,
		"result_code":     resultCode,
	})

	payment, err := s.paymentRepo.FindByCheckoutHandle(ctx, event.CheckoutHandle)
	if err != nil {
		logger.WithError(err).Error("payment lookup for callback failed")
		s.recordCallback(ctx, event.CheckoutHandle, &resultCode, payload, entity.CallbackOutcomeRejected,
			fmt.Sprintf("payment lookup failed: %v", err), receivedAt)
		return
	}
	if payment == nil {
		logger.Warn("callback for unknown checkout handle")
		s.recordCallback(ctx, event.CheckoutHandle, &resultCode, payload, entity.CallbackOutcomeUnmatched, "", receivedAt)
		return
	}

	logger = logger.WithField("transaction_ref", payment.TransactionRef)

	if reason := s.lateCallbackReason(ctx, logger, payment); reason != "" {
		logger.WithField("reason", reason).Info("late callback ignored")
		s.recordCallback(ctx, event.CheckoutHandle, &resultCode, payload, entity.CallbackOutcomeIgnored, reason, receivedAt)
		return
	}

	now := s.now()
	processingMillis := now.Sub(receivedAt).Milliseconds()
	if processingMillis < 0 {
		processingMillis = 0
	}

	var (
		outcome     repository.Outcome
		pollStatus  string
		receipt     string
		description string
	)
	if resultCode == 0 {
		receipt = ExtractReceipt(event.Metadata, event.ResultDescription)
		outcome = repository.Outcome{
			Status:           entity.PaymentStatusCompleted,
			Receipt:          &receipt,
			ProcessingMillis: &processingMillis,
			CompletedAt:      now,
		}
		pollStatus = entity.PollStatusSuccess
	} else {
		description = event.ResultDescription
		outcome = repository.Outcome{
			Status:           entity.PaymentStatusFailed,
			ErrorDescription: &description,
			ProcessingMillis: &processingMillis,
			CompletedAt:      now,
		}
		pollStatus = entity.PollStatusFailed
	}

	storeErr := s.paymentRepo.CompleteByCheckoutHandle(ctx, event.CheckoutHandle, outcome)
	if errors.Is(storeErr, repository.ErrPaymentNotPending) {
		logger.Info("late callback ignored, payment settled concurrently")
		s.recordCallback(ctx, event.CheckoutHandle, &resultCode, payload, entity.CallbackOutcomeIgnored, storeErr.Error(), receivedAt)
		return
	}

	auditErr := ""
	if storeErr != nil {
		logger.WithError(storeErr).Error("durable outcome write failed")
		auditErr = fmt.Sprintf("durable write failed: %v", storeErr)
	}

	s.setCacheStatus(ctx, logger, payment.TransactionRef, pollStatus, now)

	if resultCode == 0 {
		s.grantEntitlement(ctx, logger, payment)
		logger.WithField("receipt", receipt).WithField("processing_ms", processingMillis).Info("payment completed")
	} else {
		logger.WithField("description", description).Info("payment failed")
	}

	if storeErr == nil {
		s.publishOutcome(ctx, logger, payment, outcome.Status, receipt, "callback", now)
	}
	s.recordCallback(ctx, event.CheckoutHandle, &resultCode, payload, entity.CallbackOutcomeProcessed, auditErr, receivedAt)
}

// lateCallbackReason reports why a callback must not change the attempt, or "" when it may.
func (s *PaymentService) lateCallbackReason(ctx context.Context, logger logrus.FieldLogger, payment *entity.Payment) string {
	if payment.IsTerminal() {
		return "payment already " + payment.Status
	}

	entry, err := s.statusCache.Get(ctx, payment.TransactionRef)
	if err != nil {
		logger.WithError(err).Warn("status cache read failed")
		return ""
	}
	if entry != nil && entry.Status == entity.PollStatusTimeout {
		return "payment already timed out"
	}
	return ""
}

func (s *PaymentService) recordCallback(
	ctx context.Context,
	checkoutHandle string,
	resultCode *int64,
	payload []byte,
	outcome string,
	reason string,
	receivedAt time.Time,
) {
	callback := &entity.PaymentCallback{
		CheckoutHandle: checkoutHandle,
		ResultCode:     resultCode,
		PayloadJSON:    string(payload),
		Outcome:        outcome,
		CreatedAt:      receivedAt,
	}
	if reason != "" {
		trimmed := truncate(reason, maxCallbackErrorLength)
		callback.Error = &trimmed
	}

	if err := s.callbackRepo.Create(ctx, callback); err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"checkout_handle": checkoutHandle,
			"outcome":         outcome,
		}).Error("callback audit write failed")
	}
}
