package entity

import "time"

// PaymentOutcomeEvent is published once a payment attempt reaches a terminal status.
type PaymentOutcomeEvent struct {
	TransactionRef string    `json:"transaction_ref"`
	CheckoutHandle string    `json:"checkout_handle"`
	UserID         string    `json:"user_id"`
	CourseType     string    `json:"course_type"`
	Amount         int64     `json:"amount"`
	Status         string    `json:"status"`
	Receipt        string    `json:"receipt,omitempty"`
	Source         string    `json:"source"`
	OccurredAt     time.Time `json:"occurred_at"`
}
