package entity

import "time"

// Outcomes recorded for every provider notification.
const (
	CallbackOutcomeProcessed = "processed"
	CallbackOutcomeIgnored   = "ignored"
	CallbackOutcomeUnmatched = "unmatched"
	CallbackOutcomeRejected  = "rejected"
	CallbackOutcomeDropped   = "dropped"
)

type PaymentCallback struct {
	ID string

	CheckoutHandle string
	ResultCode     *int64
	PayloadJSON    string
	Outcome        string
	Error          *string

	CreatedAt time.Time
}
