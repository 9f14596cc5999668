package provider

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrNotConfigured     = errors.New("payment gateway is not configured")
	ErrRejected          = errors.New("payment gateway rejected the request")
	ErrMalformedCallback = errors.New("unrecognized callback payload")
)

// RejectedError carries the description returned by the gateway when it declines a push request.
type RejectedError struct {
	Code        string
	Description string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("%s: code=%s description=%s", ErrRejected.Error(), e.Code, e.Description)
}

func (e *RejectedError) Unwrap() error {
	return ErrRejected
}

type Token struct {
	AccessToken string
	ExpiresIn   int64
}

type SubmitResult struct {
	CheckoutHandle      string
	MerchantHandle      string
	ResponseDescription string
}

type CallbackEvent struct {
	CheckoutHandle    string
	MerchantHandle    string
	ResultCode        int64
	ResultDescription string
	Metadata          map[string]string
}

// Gateway is a push-payment provider.
type Gateway interface {
	Configured() bool
	RequestToken(ctx context.Context) (*Token, error)
	SubmitPushPayment(ctx context.Context, phone string, amount int64, reference string) (*SubmitResult, error)
	ParseCallback(payload []byte) (*CallbackEvent, error)
}
