package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/vibast-solutions/ms-go-course-payments/app/service"
	"github.com/vibast-solutions/ms-go-course-payments/config"
)

var (
	workerMode bool
)

var timeoutCmd = &cobra.Command{
	Use:   "timeout",
	Short: "Run payment timeout commands",
}

var timeoutPendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "Mark pending payments older than the timeout window as timed out",
	Run: func(_ *cobra.Command, _ []string) {
		runCommand(
			"timeout_pending",
			func(cfg *config.Config) time.Duration { return cfg.Jobs.TimeoutPendingInterval },
			func(s *service.PaymentService, ctx context.Context) error {
				expired, err := s.RunTimeoutPendingBatch(ctx)
				if expired > 0 {
					logrus.WithField("job", "timeout_pending").WithField("expired", expired).Info("Pending payments timed out")
				}
				return err
			},
		)
	},
}

func init() {
	rootCmd.AddCommand(timeoutCmd)
	timeoutCmd.AddCommand(timeoutPendingCmd)

	rootCmd.PersistentFlags().BoolVar(&workerMode, "worker", false, "Run continuously using configured interval")
}

func runCommand(
	name string,
	intervalResolver func(cfg *config.Config) time.Duration,
	fn func(s *service.PaymentService, ctx context.Context) error,
) {
	app, cleanup := mustCreateApplication()
	defer cleanup()

	if workerMode {
		runWorker(name, intervalResolver(app.cfg), app.paymentService, fn)
		return
	}

	ctx := context.Background()
	runJob(name, func() error { return fn(app.paymentService, ctx) })
}

func runWorker(
	name string,
	interval time.Duration,
	paymentService *service.PaymentService,
	fn func(s *service.PaymentService, ctx context.Context) error,
) {
	if interval <= 0 {
		logrus.WithField("job", name).Fatal("invalid worker interval")
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runJob(name, func() error { return fn(paymentService, ctx) })

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	for {
		select {
		case <-quit:
			logrus.WithField("job", name).Info("Worker shutdown requested")
			return
		case <-ticker.C:
			runJob(name, func() error { return fn(paymentService, ctx) })
		}
	}
}

func runJob(name string, fn func() error) {
	start := time.Now()
	err := fn()
	latency := time.Since(start)
	if err != nil {
		logrus.WithError(err).WithField("job", name).WithField("latency", latency.String()).Error("job_failed")
		return
	}
	logrus.WithField("job", name).WithField("latency", latency.String()).Info("job_completed")
}
