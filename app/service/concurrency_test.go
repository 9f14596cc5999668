package service

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/vibast-solutions/ms-go-course-payments/app/cache"
	"github.com/vibast-solutions/ms-go-course-payments/app/catalog"
	"github.com/vibast-solutions/ms-go-course-payments/app/entity"
	"github.com/vibast-solutions/ms-go-course-payments/app/repository"
	"github.com/vibast-solutions/ms-go-course-payments/config"
)

type sqliteFixture struct {
	svc          *PaymentService
	payments     *repository.PaymentRepository
	entitlements *repository.EntitlementRepository
	callbacks    *repository.PaymentCallbackRepository
}

func newSQLiteFixture(t *testing.T) *sqliteFixture {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	if err := repository.Migrate(context.Background(), db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	courses, err := catalog.Load("")
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}

	f := &sqliteFixture{
		payments:     repository.NewPaymentRepository(db),
		entitlements: repository.NewEntitlementRepository(db),
		callbacks:    repository.NewPaymentCallbackRepository(db),
	}
	f.svc = NewPaymentService(
		f.payments,
		f.entitlements,
		f.callbacks,
		courses,
		newFakeGateway(),
		cache.NewMemoryCache(),
		&fakePublisher{},
		inlineDispatcher(),
		config.PaymentsConfig{PendingTimeout: 1800 * time.Second, JobBatchSize: 10},
	)
	return f
}

func TestCheckStatusRacingCallbackSettlesOnce(t *testing.T) {
	f := newSQLiteFixture(t)
	ctx := context.Background()

	payment, err := f.svc.InitiatePayment(ctx, initiateReq{userID: "u1", courseType: "webdev", phone: "0712345678"})
	if err != nil {
		t.Fatalf("initiate failed: %v", err)
	}

	const pollers = 16
	var (
		wg       sync.WaitGroup
		start    = make(chan struct{})
		settled  = make(chan struct{})
		failures = make(chan string, pollers)
	)
	for i := 0; i < pollers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			<-start
			seenSuccess := false
			for {
				status, err := f.svc.CheckStatus(ctx, payment.TransactionRef)
				if err != nil {
					failures <- fmt.Sprintf("poller %d: %v", id, err)
					return
				}
				switch status {
				case entity.PollStatusSuccess:
					seenSuccess = true
				case entity.PollStatusPending:
					if seenSuccess {
						failures <- fmt.Sprintf("poller %d: pending after success", id)
						return
					}
				default:
					failures <- fmt.Sprintf("poller %d: unexpected status %s", id, status)
					return
				}

				select {
				case <-settled:
					if seenSuccess {
						return
					}
				default:
				}
			}
		}(i)
	}

	close(start)
	f.svc.ProcessCallback(ctx, successCallback(payment.CheckoutHandle, "QGH7X2K9LM"), time.Now())
	close(settled)
	wg.Wait()
	close(failures)

	for failure := range failures {
		t.Error(failure)
	}

	status, err := f.svc.CheckStatus(ctx, payment.TransactionRef)
	if err != nil || status != entity.PollStatusSuccess {
		t.Fatalf("expected final success, got %s (%v)", status, err)
	}

	courses, err := f.entitlements.ListByUser(ctx, "u1")
	if err != nil {
		t.Fatalf("list entitlements: %v", err)
	}
	if len(courses) != 1 || courses[0].CourseType != "webdev" {
		t.Fatalf("expected exactly one entitlement, got %+v", courses)
	}

	audit, err := f.callbacks.ListByCheckoutHandle(ctx, payment.CheckoutHandle)
	if err != nil {
		t.Fatalf("list callbacks: %v", err)
	}
	processed := 0
	for _, item := range audit {
		if item.Outcome == entity.CallbackOutcomeProcessed {
			processed++
		}
	}
	if processed != 1 {
		t.Fatalf("expected exactly one processed callback, got %d of %d", processed, len(audit))
	}
}

func TestDuplicateCallbacksProcessedOnce(t *testing.T) {
	f := newSQLiteFixture(t)
	ctx := context.Background()

	payment, err := f.svc.InitiatePayment(ctx, initiateReq{userID: "u1", courseType: "graphic", phone: "0712345678"})
	if err != nil {
		t.Fatalf("initiate failed: %v", err)
	}

	const deliveries = 8
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < deliveries; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			f.svc.ProcessCallback(ctx, successCallback(payment.CheckoutHandle, "QGH7X2K9LM"), time.Now())
		}()
	}
	close(start)
	wg.Wait()

	audit, err := f.callbacks.ListByCheckoutHandle(ctx, payment.CheckoutHandle)
	if err != nil {
		t.Fatalf("list callbacks: %v", err)
	}
	if len(audit) != deliveries {
		t.Fatalf("expected every delivery audited, got %d", len(audit))
	}
	counts := map[string]int{}
	for _, item := range audit {
		counts[item.Outcome]++
	}
	if counts[entity.CallbackOutcomeProcessed] != 1 || counts[entity.CallbackOutcomeIgnored] != deliveries-1 {
		t.Fatalf("unexpected audit outcomes: %v", counts)
	}

	stored, err := f.payments.FindByTransactionRef(ctx, payment.TransactionRef)
	if err != nil || stored == nil || stored.Status != entity.PaymentStatusCompleted {
		t.Fatalf("expected completed payment, got %+v (%v)", stored, err)
	}
	courses, err := f.entitlements.ListByUser(ctx, "u1")
	if err != nil || len(courses) != 1 {
		t.Fatalf("expected one entitlement, got %+v (%v)", courses, err)
	}
}
