package service

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/vibast-solutions/ms-go-course-payments/app/cache"
	"github.com/vibast-solutions/ms-go-course-payments/app/catalog"
	"github.com/vibast-solutions/ms-go-course-payments/app/entity"
	"github.com/vibast-solutions/ms-go-course-payments/app/provider"
	"github.com/vibast-solutions/ms-go-course-payments/app/repository"
	"github.com/vibast-solutions/ms-go-course-payments/app/worker"
	"github.com/vibast-solutions/ms-go-course-payments/config"
)

type servicePaymentRepo struct {
	mu       sync.Mutex
	payments map[string]*entity.Payment

	createErr        error
	completeErr      error
	beforeCompleteFn func(transactionRef string)
}

func newServicePaymentRepo() *servicePaymentRepo {
	return &servicePaymentRepo{payments: map[string]*entity.Payment{}}
}

func (r *servicePaymentRepo) Create(_ context.Context, payment *entity.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	for _, item := range r.payments {
		if item.TransactionRef == payment.TransactionRef || item.CheckoutHandle == payment.CheckoutHandle {
			return repository.ErrPaymentAlreadyExists
		}
	}
	copyItem := *payment
	r.payments[payment.TransactionRef] = &copyItem
	return nil
}

func (r *servicePaymentRepo) FindByTransactionRef(_ context.Context, transactionRef string) (*entity.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.payments[transactionRef]
	if !ok {
		return nil, nil
	}
	copyItem := *item
	return &copyItem, nil
}

func (r *servicePaymentRepo) FindByCheckoutHandle(_ context.Context, checkoutHandle string) (*entity.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, item := range r.payments {
		if item.CheckoutHandle == checkoutHandle {
			copyItem := *item
			return &copyItem, nil
		}
	}
	return nil, nil
}

func (r *servicePaymentRepo) CompleteByCheckoutHandle(ctx context.Context, checkoutHandle string, outcome repository.Outcome) error {
	payment, _ := r.FindByCheckoutHandle(ctx, checkoutHandle)
	if payment == nil {
		return repository.ErrPaymentNotFound
	}
	return r.CompleteByTransactionRef(ctx, payment.TransactionRef, outcome)
}

func (r *servicePaymentRepo) CompleteByTransactionRef(_ context.Context, transactionRef string, outcome repository.Outcome) error {
	if r.beforeCompleteFn != nil {
		r.beforeCompleteFn(transactionRef)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.completeErr != nil {
		return r.completeErr
	}
	item, ok := r.payments[transactionRef]
	if !ok {
		return repository.ErrPaymentNotFound
	}
	if item.Status != entity.PaymentStatusPending {
		return repository.ErrPaymentNotPending
	}
	completedAt := outcome.CompletedAt
	item.Status = outcome.Status
	item.Receipt = outcome.Receipt
	item.ErrorDescription = outcome.ErrorDescription
	item.ProcessingMillis = outcome.ProcessingMillis
	item.CompletedAt = &completedAt
	item.UpdatedAt = completedAt
	return nil
}

func (r *servicePaymentRepo) List(_ context.Context, filter repository.PaymentFilter) ([]*entity.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	items := make([]*entity.Payment, 0)
	for _, item := range r.payments {
		if filter.Status != "" && item.Status != filter.Status {
			continue
		}
		if filter.UserID != "" && item.UserID != filter.UserID {
			continue
		}
		if filter.CourseType != "" && item.CourseType != filter.CourseType {
			continue
		}
		copyItem := *item
		items = append(items, &copyItem)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].CreatedAt.After(items[j].CreatedAt) })

	start := int(filter.Offset)
	if start > len(items) {
		return []*entity.Payment{}, nil
	}
	end := start + int(filter.Limit)
	if end > len(items) {
		end = len(items)
	}
	return items[start:end], nil
}

func (r *servicePaymentRepo) ListStalePending(_ context.Context, cutoff time.Time, limit int32) ([]*entity.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	items := make([]*entity.Payment, 0)
	for _, item := range r.payments {
		if item.Status == entity.PaymentStatusPending && !item.CreatedAt.After(cutoff) {
			copyItem := *item
			items = append(items, &copyItem)
		}
	}
	if limit > 0 && len(items) > int(limit) {
		items = items[:limit]
	}
	return items, nil
}

func (r *servicePaymentRepo) ListRefsByUser(_ context.Context, userID string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	refs := make([]string, 0)
	for ref, item := range r.payments {
		if item.UserID == userID {
			refs = append(refs, ref)
		}
	}
	sort.Strings(refs)
	return refs, nil
}

func (r *servicePaymentRepo) DeleteByUser(_ context.Context, userID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var deleted int64
	for ref, item := range r.payments {
		if item.UserID == userID {
			delete(r.payments, ref)
			deleted++
		}
	}
	return deleted, nil
}

func (r *servicePaymentRepo) Stats(_ context.Context) (*repository.PaymentStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stats := &repository.PaymentStats{ByStatus: map[string]int64{}, CompletedByCourse: map[string]int64{}}
	for _, item := range r.payments {
		stats.Total++
		stats.ByStatus[item.Status]++
		if item.Status == entity.PaymentStatusCompleted {
			stats.CompletedByCourse[item.CourseType]++
		}
	}
	return stats, nil
}

func (r *servicePaymentRepo) put(payment *entity.Payment) {
	r.mu.Lock()
	defer r.mu.Unlock()
	copyItem := *payment
	r.payments[payment.TransactionRef] = &copyItem
}

func (r *servicePaymentRepo) get(transactionRef string) *entity.Payment {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.payments[transactionRef]
	if !ok {
		return nil
	}
	copyItem := *item
	return &copyItem
}

func (r *servicePaymentRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.payments)
}

type serviceEntitlementRepo struct {
	mu      sync.Mutex
	courses map[string][]string
	grants  int
	err     error
}

func newServiceEntitlementRepo() *serviceEntitlementRepo {
	return &serviceEntitlementRepo{courses: map[string][]string{}}
}

func (r *serviceEntitlementRepo) Grant(_ context.Context, e *entity.Entitlement) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.grants++
	if r.err != nil {
		return false, r.err
	}
	for _, c := range r.courses[e.UserID] {
		if c == e.CourseType {
			return false, nil
		}
	}
	r.courses[e.UserID] = append(r.courses[e.UserID], e.CourseType)
	return true, nil
}

func (r *serviceEntitlementRepo) HasCourse(_ context.Context, userID, courseType string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.courses[userID] {
		if c == courseType {
			return true, nil
		}
	}
	return false, nil
}

func (r *serviceEntitlementRepo) ListByUser(_ context.Context, userID string) ([]*entity.Entitlement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	items := make([]*entity.Entitlement, 0)
	for _, c := range r.courses[userID] {
		items = append(items, &entity.Entitlement{UserID: userID, CourseType: c})
	}
	return items, nil
}

func (r *serviceEntitlementRepo) DeleteByUser(_ context.Context, userID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	deleted := int64(len(r.courses[userID]))
	delete(r.courses, userID)
	return deleted, nil
}

func (r *serviceEntitlementRepo) coursesOf(userID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.courses[userID]...)
}

type serviceCallbackRepo struct {
	mu        sync.Mutex
	callbacks []*entity.PaymentCallback
}

func (r *serviceCallbackRepo) Create(_ context.Context, callback *entity.PaymentCallback) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copyItem := *callback
	r.callbacks = append(r.callbacks, &copyItem)
	return nil
}

func (r *serviceCallbackRepo) outcomes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.callbacks))
	for _, cb := range r.callbacks {
		out = append(out, cb.Outcome)
	}
	return out
}

func (r *serviceCallbackRepo) last() *entity.PaymentCallback {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.callbacks) == 0 {
		return nil
	}
	return r.callbacks[len(r.callbacks)-1]
}

type fakeGateway struct {
	configured bool
	submitFn   func(ctx context.Context, phone string, amount int64, reference string) (*provider.SubmitResult, error)
	parser     *provider.MpesaProvider
}

func newFakeGateway() *fakeGateway {
	handles := 0
	var mu sync.Mutex
	return &fakeGateway{
		configured: true,
		parser:     provider.NewMpesaProvider(provider.MpesaConfig{}),
		submitFn: func(_ context.Context, _ string, _ int64, _ string) (*provider.SubmitResult, error) {
			mu.Lock()
			defer mu.Unlock()
			handles++
			return &provider.SubmitResult{
				CheckoutHandle: "ws_CO_" + strconv.Itoa(handles),
				MerchantHandle: "m-1",
			}, nil
		},
	}
}

func (g *fakeGateway) Configured() bool { return g.configured }

func (g *fakeGateway) SubmitPushPayment(ctx context.Context, phone string, amount int64, reference string) (*provider.SubmitResult, error) {
	return g.submitFn(ctx, phone, amount, reference)
}

func (g *fakeGateway) ParseCallback(payload []byte) (*provider.CallbackEvent, error) {
	return g.parser.ParseCallback(payload)
}

type fakePublisher struct {
	mu     sync.Mutex
	events []*entity.PaymentOutcomeEvent
	err    error
}

func (p *fakePublisher) Publish(_ context.Context, event *entity.PaymentOutcomeEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func (p *fakePublisher) statuses() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Status)
	}
	return out
}

type fakeDispatcher struct {
	submitFn func(job worker.Job) error
}

func (d *fakeDispatcher) Submit(job worker.Job) error {
	return d.submitFn(job)
}

// inlineDispatcher runs jobs on the caller's goroutine.
func inlineDispatcher() *fakeDispatcher {
	return &fakeDispatcher{submitFn: func(job worker.Job) error {
		job.Run(context.Background())
		return nil
	}}
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type serviceFixture struct {
	svc          *PaymentService
	payments     *servicePaymentRepo
	entitlements *serviceEntitlementRepo
	callbacks    *serviceCallbackRepo
	gateway      *fakeGateway
	cache        *cache.MemoryCache
	publisher    *fakePublisher
	dispatcher   *fakeDispatcher
	clock        *testClock
}

func newServiceFixture() *serviceFixture {
	courses, err := catalog.Load("")
	if err != nil {
		panic(err)
	}

	f := &serviceFixture{
		payments:     newServicePaymentRepo(),
		entitlements: newServiceEntitlementRepo(),
		callbacks:    &serviceCallbackRepo{},
		gateway:      newFakeGateway(),
		cache:        cache.NewMemoryCache(),
		publisher:    &fakePublisher{},
		dispatcher:   inlineDispatcher(),
		clock:        &testClock{now: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)},
	}
	f.svc = NewPaymentService(
		f.payments,
		f.entitlements,
		f.callbacks,
		courses,
		f.gateway,
		f.cache,
		f.publisher,
		f.dispatcher,
		config.PaymentsConfig{PendingTimeout: 1800 * time.Second, JobBatchSize: 10},
	)
	f.svc.now = f.clock.Now
	return f
}

type initiateReq struct {
	userID     string
	courseType string
	phone      string
}

func (r initiateReq) GetUserID() string     { return r.userID }
func (r initiateReq) GetCourseType() string { return r.courseType }
func (r initiateReq) GetPhone() string      { return r.phone }

type listReq struct {
	status     string
	userID     string
	courseType string
	limit      int32
	offset     int32
}

func (r listReq) GetStatus() string     { return r.status }
func (r listReq) GetUserID() string     { return r.userID }
func (r listReq) GetCourseType() string { return r.courseType }
func (r listReq) GetLimit() int32       { return r.limit }
func (r listReq) GetOffset() int32      { return r.offset }

func successCallback(handle, receipt string) []byte {
	return []byte(`{"Body":{"stkCallback":{"MerchantRequestID":"m-1","CheckoutRequestID":"` + handle +
		`","ResultCode":0,"ResultDesc":"The service request is processed successfully.","CallbackMetadata":{"Item":[{"Name":"Amount","Value":1},{"Name":"MpesaReceiptNumber","Value":"` +
		receipt + `"},{"Name":"PhoneNumber","Value":254712345678}]}}}}`)
}

func failureCallback(handle, desc string) []byte {
	return []byte(`{"Body":{"stkCallback":{"MerchantRequestID":"m-1","CheckoutRequestID":"` + handle +
		`","ResultCode":1,"ResultDesc":"` + desc + `"}}}`)
}
