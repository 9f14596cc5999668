package entity

import "time"

// Durable payment statuses.
const (
	PaymentStatusPending   = "pending"
	PaymentStatusCompleted = "completed"
	PaymentStatusFailed    = "failed"
	PaymentStatusTimeout   = "timeout"
)

// ReceiptUnavailable is stored when a successful callback carries no usable receipt.
const ReceiptUnavailable = "UNKNOWN_RCPT"

// ReceiptForced marks records completed manually by an administrator.
const ReceiptForced = "FORCED_COMPLETE"

type Payment struct {
	TransactionRef string

	CheckoutHandle string
	MerchantHandle string

	UserID     string
	CourseType string
	Phone      string
	Amount     int64

	Status           string
	Receipt          *string
	ErrorDescription *string
	ProcessingMillis *int64

	CreatedAt   time.Time
	CompletedAt *time.Time
	UpdatedAt   time.Time
}

func (p *Payment) IsTerminal() bool {
	return IsTerminalStatus(p.Status)
}

func IsTerminalStatus(status string) bool {
	switch status {
	case PaymentStatusCompleted, PaymentStatusFailed, PaymentStatusTimeout:
		return true
	default:
		return false
	}
}

// Statuses reported to polling clients. A durable completed record is reported as success.
const (
	PollStatusPending = "pending"
	PollStatusSuccess = "success"
	PollStatusFailed  = "failed"
	PollStatusTimeout = "timeout"
)

// PollStatus maps a durable status to the status reported to clients.
func PollStatus(status string) string {
	switch status {
	case PaymentStatusCompleted:
		return PollStatusSuccess
	case PaymentStatusFailed:
		return PollStatusFailed
	case PaymentStatusTimeout:
		return PollStatusTimeout
	default:
		return PollStatusPending
	}
}
