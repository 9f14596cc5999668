package service

import "errors"

var (
	ErrInvalidRequest      = errors.New("invalid request")
	ErrInvalidPhone        = errors.New("invalid phone number format")
	ErrUnknownCourse       = errors.New("unknown course type")
	ErrPaymentNotFound     = errors.New("payment not found")
	ErrPaymentNotPending   = errors.New("payment is no longer pending")
	ErrPaymentUnavailable  = errors.New("payment unavailable")
	ErrPaymentRejected     = errors.New("payment request rejected")
	ErrPaymentSubmitFailed = errors.New("failed to initiate payment, please try again")
)

// RejectedError carries the gateway's explanation for declining a push request.
type RejectedError struct {
	Description string
}

func (e *RejectedError) Error() string {
	if e.Description == "" {
		return ErrPaymentRejected.Error()
	}
	return ErrPaymentRejected.Error() + ": " + e.Description
}

func (e *RejectedError) Unwrap() error {
	return ErrPaymentRejected
}
