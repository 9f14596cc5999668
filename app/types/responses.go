package types

type ErrorResponse struct {
	Error string `json:"error"`
}

type HealthResponse struct {
	Status            string `json:"status"`
	GatewayConfigured bool   `json:"gateway_configured"`
}

type InitiatePaymentResponse struct {
	TransactionRef string `json:"transaction_ref"`
	Status         string `json:"status"`
	StatusURL      string `json:"status_url"`
	WaitURL        string `json:"wait_url"`
}

type WaitResponse struct {
	TransactionRef string `json:"transaction_ref"`
	CourseType     string `json:"course_type"`
	StatusURL      string `json:"status_url"`
}

type StatusResponse struct {
	Status string `json:"status"`
}

// CallbackAckResponse uses the provider's field casing.
type CallbackAckResponse struct {
	ResultCode int    `json:"ResultCode"`
	ResultDesc string `json:"ResultDesc"`
}

type Course struct {
	Type        string            `json:"type"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Price       int64             `json:"price"`
	Features    []string          `json:"features"`
	Links       map[string]string `json:"links,omitempty"`
	Paid        bool              `json:"paid"`
}

type ListCoursesResponse struct {
	Courses []*Course `json:"courses"`
}

type Payment struct {
	TransactionRef   string `json:"transaction_ref"`
	CheckoutHandle   string `json:"checkout_handle"`
	MerchantHandle   string `json:"merchant_handle,omitempty"`
	UserID           string `json:"user_id"`
	CourseType       string `json:"course_type"`
	Phone            string `json:"phone"`
	Amount           int64  `json:"amount"`
	Status           string `json:"status"`
	Receipt          string `json:"receipt,omitempty"`
	ErrorDescription string `json:"error_description,omitempty"`
	ProcessingMillis int64  `json:"processing_ms,omitempty"`
	CreatedAt        string `json:"created_at"`
	CompletedAt      string `json:"completed_at,omitempty"`
	UpdatedAt        string `json:"updated_at"`
}

type PaymentEnvelopeResponse struct {
	Payment *Payment `json:"payment"`
}

type ListPaymentsResponse struct {
	Payments []*Payment `json:"payments"`
}

type StatusCacheEntry struct {
	TransactionRef string `json:"transaction_ref"`
	Status         string `json:"status"`
	InitiatedAt    string `json:"initiated_at,omitempty"`
	AgeSeconds     int64  `json:"age_seconds"`
}

type StatusCacheResponse struct {
	Total   int                 `json:"total"`
	Counts  map[string]int      `json:"counts"`
	Entries []*StatusCacheEntry `json:"entries"`
}

type Entitlement struct {
	UserID         string `json:"user_id"`
	CourseType     string `json:"course_type"`
	TransactionRef string `json:"transaction_ref,omitempty"`
	GrantedAt      string `json:"granted_at"`
}

type ListEntitlementsResponse struct {
	UserID       string         `json:"user_id"`
	Entitlements []*Entitlement `json:"entitlements"`
}

type EntitlementResponse struct {
	Granted bool `json:"granted"`
}

type PaymentStatsResponse struct {
	Total             int64            `json:"total"`
	Completed         int64            `json:"completed"`
	Pending           int64            `json:"pending"`
	Failed            int64            `json:"failed"`
	Timeout           int64            `json:"timeout"`
	CompletedByCourse map[string]int64 `json:"completed_by_course"`
}

type PurgeUserResponse struct {
	UserID              string `json:"user_id"`
	PaymentsDeleted     int64  `json:"payments_deleted"`
	EntitlementsDeleted int64  `json:"entitlements_deleted"`
}
