package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-course-payments/app/cache"
	"github.com/vibast-solutions/ms-go-course-payments/app/catalog"
	"github.com/vibast-solutions/ms-go-course-payments/app/entity"
	"github.com/vibast-solutions/ms-go-course-payments/app/factory"
	"github.com/vibast-solutions/ms-go-course-payments/app/provider"
	"github.com/vibast-solutions/ms-go-course-payments/app/repository"
	"github.com/vibast-solutions/ms-go-course-payments/app/worker"
	"github.com/vibast-solutions/ms-go-course-payments/config"
)

const (
	defaultListLimit      = int32(100)
	maxListLimit          = int32(500)
	defaultBatchSize      = int32(100)
	defaultPendingTimeout = 1800 * time.Second
)

type initiatePaymentRequest interface {
	GetUserID() string
	GetCourseType() string
	GetPhone() string
}

type listPaymentsRequest interface {
	GetStatus() string
	GetUserID() string
	GetCourseType() string
	GetLimit() int32
	GetOffset() int32
}

type paymentRepository interface {
	Create(ctx context.Context, payment *entity.Payment) error
	FindByTransactionRef(ctx context.Context, transactionRef string) (*entity.Payment, error)
	FindByCheckoutHandle(ctx context.Context, checkoutHandle string) (*entity.Payment, error)
	CompleteByCheckoutHandle(ctx context.Context, checkoutHandle string, outcome repository.Outcome) error
	CompleteByTransactionRef(ctx context.Context, transactionRef string, outcome repository.Outcome) error
	List(ctx context.Context, filter repository.PaymentFilter) ([]*entity.Payment, error)
	ListStalePending(ctx context.Context, cutoff time.Time, limit int32) ([]*entity.Payment, error)
	ListRefsByUser(ctx context.Context, userID string) ([]string, error)
	DeleteByUser(ctx context.Context, userID string) (int64, error)
	Stats(ctx context.Context) (*repository.PaymentStats, error)
}

type entitlementRepository interface {
	Grant(ctx context.Context, entitlement *entity.Entitlement) (bool, error)
	HasCourse(ctx context.Context, userID, courseType string) (bool, error)
	ListByUser(ctx context.Context, userID string) ([]*entity.Entitlement, error)
	DeleteByUser(ctx context.Context, userID string) (int64, error)
}

type paymentCallbackRepository interface {
	Create(ctx context.Context, callback *entity.PaymentCallback) error
}

type courseCatalog interface {
	Lookup(courseType string) (catalog.Course, error)
	All() []catalog.Course
}

type pushGateway interface {
	Configured() bool
	SubmitPushPayment(ctx context.Context, phone string, amount int64, reference string) (*provider.SubmitResult, error)
	ParseCallback(payload []byte) (*provider.CallbackEvent, error)
}

type outcomePublisher interface {
	Publish(ctx context.Context, event *entity.PaymentOutcomeEvent) error
}

type jobDispatcher interface {
	Submit(job worker.Job) error
}

type PaymentService struct {
	paymentRepo     paymentRepository
	entitlementRepo entitlementRepository
	callbackRepo    paymentCallbackRepository
	courses         courseCatalog
	gateway         pushGateway
	statusCache     cache.StatusCache
	publisher       outcomePublisher
	dispatcher      jobDispatcher
	paymentsCfg     config.PaymentsConfig
	logger          logrus.FieldLogger
	now             func() time.Time
}

func NewPaymentService(
	paymentRepo paymentRepository,
	entitlementRepo entitlementRepository,
	callbackRepo paymentCallbackRepository,
	courses courseCatalog,
	gateway pushGateway,
	statusCache cache.StatusCache,
	publisher outcomePublisher,
	dispatcher jobDispatcher,
	paymentsCfg config.PaymentsConfig,
) *PaymentService {
	if paymentsCfg.PendingTimeout <= 0 {
		paymentsCfg.PendingTimeout = defaultPendingTimeout
	}

	return &PaymentService{
		paymentRepo:     paymentRepo,
		entitlementRepo: entitlementRepo,
		callbackRepo:    callbackRepo,
		courses:         courses,
		gateway:         gateway,
		statusCache:     statusCache,
		publisher:       publisher,
		dispatcher:      dispatcher,
		paymentsCfg:     paymentsCfg,
		logger:          factory.NewModuleLogger("payment-service"),
		now:             func() time.Time { return time.Now().UTC() },
	}
}

func (s *PaymentService) GatewayConfigured() bool {
	return s.gateway.Configured()
}

// InitiatePayment submits a push request for the course price and records a pending attempt once
// the gateway accepts it. Nothing is persisted when the gateway declines.
func (s *PaymentService) InitiatePayment(ctx context.Context, req initiatePaymentRequest) (*entity.Payment, error) {
	userID := strings.TrimSpace(req.GetUserID())
	if userID == "" {
		return nil, ErrInvalidRequest
	}

	course, err := s.courses.Lookup(req.GetCourseType())
	if err != nil {
		if errors.Is(err, catalog.ErrUnknownCourse) {
			return nil, ErrUnknownCourse
		}
		return nil, err
	}

	phone, err := NormalizePhone(req.GetPhone())
	if err != nil {
		return nil, err
	}

	if !s.gateway.Configured() {
		return nil, ErrPaymentUnavailable
	}

	now := s.now()
	transactionRef := newTransactionRef(course.Type, userID, now)
	logger := s.logger.WithFields(logrus.Fields{
		"transaction_ref": transactionRef,
		"course_type":     course.Type,
		"user_id":         userID,
	})

	result, err := s.gateway.SubmitPushPayment(ctx, phone, course.Price, transactionRef)
	if err != nil {
		var rejected *provider.RejectedError
		switch {
		case errors.Is(err, provider.ErrNotConfigured):
			return nil, ErrPaymentUnavailable
		case errors.As(err, &rejected):
			logger.WithField("description", rejected.Description).Warn("push payment rejected")
			return nil, &RejectedError{Description: rejected.Description}
		default:
			logger.WithError(err).Error("push payment submission failed")
			return nil, ErrPaymentSubmitFailed
		}
	}

	payment := &entity.Payment{
		TransactionRef: transactionRef,
		CheckoutHandle: result.CheckoutHandle,
		MerchantHandle: result.MerchantHandle,
		UserID:         userID,
		CourseType:     course.Type,
		Phone:          phone,
		Amount:         course.Price,
		Status:         entity.PaymentStatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.paymentRepo.Create(ctx, payment); err != nil {
		logger.WithError(err).WithField("checkout_handle", result.CheckoutHandle).
			Error("push payment accepted but the record could not be saved")
		return nil, err
	}

	if err := s.statusCache.Put(ctx, transactionRef, cache.Entry{
		Status:      entity.PollStatusPending,
		InitiatedAt: now,
		UpdatedAt:   now,
	}); err != nil {
		logger.WithError(err).Warn("status cache write failed")
	}

	logger.WithField("checkout_handle", result.CheckoutHandle).Info("push payment initiated")
	return payment, nil
}

func (s *PaymentService) GetPayment(ctx context.Context, transactionRef string) (*entity.Payment, error) {
	payment, err := s.paymentRepo.FindByTransactionRef(ctx, strings.TrimSpace(transactionRef))
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, ErrPaymentNotFound
	}
	return payment, nil
}

// GetUserPayment returns the attempt only when it belongs to userID.
func (s *PaymentService) GetUserPayment(ctx context.Context, userID, transactionRef string) (*entity.Payment, error) {
	payment, err := s.GetPayment(ctx, transactionRef)
	if err != nil {
		return nil, err
	}
	if payment.UserID != userID {
		return nil, ErrPaymentNotFound
	}
	return payment, nil
}

func (s *PaymentService) ListPayments(ctx context.Context, req listPaymentsRequest) ([]*entity.Payment, error) {
	limit := req.GetLimit()
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	offset := req.GetOffset()
	if offset < 0 {
		offset = 0
	}

	return s.paymentRepo.List(ctx, repository.PaymentFilter{
		Status:     strings.TrimSpace(req.GetStatus()),
		UserID:     strings.TrimSpace(req.GetUserID()),
		CourseType: strings.TrimSpace(req.GetCourseType()),
		Limit:      limit,
		Offset:     offset,
	})
}

// ForceComplete settles a stuck pending attempt by hand. The record, the cache and the entitlement
// end up exactly as a successful callback would leave them.
func (s *PaymentService) ForceComplete(ctx context.Context, transactionRef string) (*entity.Payment, error) {
	transactionRef = strings.TrimSpace(transactionRef)
	now := s.now()
	receipt := entity.ReceiptForced

	err := s.paymentRepo.CompleteByTransactionRef(ctx, transactionRef, repository.Outcome{
		Status:      entity.PaymentStatusCompleted,
		Receipt:     &receipt,
		CompletedAt: now,
	})
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrPaymentNotFound):
			return nil, ErrPaymentNotFound
		case errors.Is(err, repository.ErrPaymentNotPending):
			return nil, ErrPaymentNotPending
		default:
			return nil, err
		}
	}

	payment, err := s.GetPayment(ctx, transactionRef)
	if err != nil {
		return nil, err
	}

	logger := s.paymentLogger(payment)
	s.setCacheStatus(ctx, logger, transactionRef, entity.PollStatusSuccess, now)
	s.grantEntitlement(ctx, logger, payment)
	s.publishOutcome(ctx, logger, payment, entity.PaymentStatusCompleted, receipt, "admin", now)

	logger.Warn("payment force-completed")
	return payment, nil
}

func (s *PaymentService) setCacheStatus(ctx context.Context, logger logrus.FieldLogger, transactionRef, status string, at time.Time) {
	if err := s.statusCache.SetStatus(ctx, transactionRef, status, at); err != nil {
		logger.WithError(err).WithField("status", status).Warn("status cache write failed")
	}
}

func (s *PaymentService) publishOutcome(
	ctx context.Context,
	logger logrus.FieldLogger,
	payment *entity.Payment,
	status string,
	receipt string,
	source string,
	at time.Time,
) {
	event := &entity.PaymentOutcomeEvent{
		TransactionRef: payment.TransactionRef,
		CheckoutHandle: payment.CheckoutHandle,
		UserID:         payment.UserID,
		CourseType:     payment.CourseType,
		Amount:         payment.Amount,
		Status:         status,
		Receipt:        receipt,
		Source:         source,
		OccurredAt:     at,
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		logger.WithError(err).WithField("status", status).Warn("outcome event publish failed")
	}
}

func (s *PaymentService) paymentLogger(payment *entity.Payment) logrus.FieldLogger {
	return s.logger.WithFields(logrus.Fields{
		"transaction_ref": payment.TransactionRef,
		"checkout_handle": payment.CheckoutHandle,
	})
}

func (s *PaymentService) pendingTimeout() time.Duration {
	return s.paymentsCfg.PendingTimeout
}

func (s *PaymentService) batchSize() int32 {
	if s.paymentsCfg.JobBatchSize > 0 {
		return s.paymentsCfg.JobBatchSize
	}
	return defaultBatchSize
}

func keepFirstErr(current error, candidate error) error {
	if current != nil {
		return current
	}
	return candidate
}

func truncate(value string, max int) string {
	if len(value) <= max {
		return value
	}
	return value[:max]
}
