package publisher

import (
	"context"

	"github.com/vibast-solutions/ms-go-course-payments/app/entity"
)

// Publisher announces terminal payment outcomes to other services.
type Publisher interface {
	Publish(ctx context.Context, event *entity.PaymentOutcomeEvent) error
	Close() error
}

// Noop is used when no broker is configured.
type Noop struct{}

func (Noop) Publish(context.Context, *entity.PaymentOutcomeEvent) error { return nil }

func (Noop) Close() error { return nil }
