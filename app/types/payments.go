package types

import (
	"errors"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/vibast-solutions/ms-go-course-payments/app/entity"
)

const (
	DefaultListLimit = int32(100)
	MaxListLimit     = int32(500)
)

type InitiatePaymentRequest struct {
	UserID     string `json:"-" form:"-"`
	CourseType string `json:"-" form:"-"`
	Phone      string `json:"phone" form:"phone"`
	FormPost   bool   `json:"-" form:"-"`
}

func NewInitiatePaymentRequestFromContext(ctx echo.Context, userID string) (*InitiatePaymentRequest, error) {
	var body InitiatePaymentRequest
	if err := (&echo.DefaultBinder{}).BindBody(ctx, &body); err != nil {
		return nil, err
	}

	contentType := ctx.Request().Header.Get(echo.HeaderContentType)
	body.FormPost = strings.HasPrefix(contentType, echo.MIMEApplicationForm) || strings.HasPrefix(contentType, echo.MIMEMultipartForm)
	body.UserID = strings.TrimSpace(userID)
	body.CourseType = strings.ToLower(strings.TrimSpace(ctx.Param("course_type")))
	body.Phone = strings.TrimSpace(body.Phone)

	return &body, nil
}

func (r *InitiatePaymentRequest) Validate() error {
	if r.GetUserID() == "" {
		return errors.New("user is required")
	}
	if r.GetCourseType() == "" {
		return errors.New("course_type is required")
	}
	if r.GetPhone() == "" {
		return errors.New("phone is required")
	}
	return nil
}

func (r *InitiatePaymentRequest) GetUserID() string {
	if r == nil {
		return ""
	}
	return r.UserID
}

func (r *InitiatePaymentRequest) GetCourseType() string {
	if r == nil {
		return ""
	}
	return r.CourseType
}

func (r *InitiatePaymentRequest) GetPhone() string {
	if r == nil {
		return ""
	}
	return r.Phone
}

type TransactionRefRequest struct {
	TransactionRef string
}

func NewTransactionRefRequestFromContext(ctx echo.Context) *TransactionRefRequest {
	return &TransactionRefRequest{TransactionRef: strings.TrimSpace(ctx.Param("transaction_ref"))}
}

func (r *TransactionRefRequest) Validate() error {
	if r.TransactionRef == "" {
		return errors.New("transaction_ref is required")
	}
	return nil
}

type ListPaymentsRequest struct {
	Status     string
	UserID     string
	CourseType string
	Limit      int32
	Offset     int32
}

func NewListPaymentsRequestFromContext(ctx echo.Context) (*ListPaymentsRequest, error) {
	req := &ListPaymentsRequest{
		Status:     strings.ToLower(strings.TrimSpace(ctx.QueryParam("status"))),
		UserID:     strings.TrimSpace(ctx.QueryParam("user_id")),
		CourseType: strings.ToLower(strings.TrimSpace(ctx.QueryParam("course_type"))),
		Limit:      DefaultListLimit,
	}

	if limitRaw := strings.TrimSpace(ctx.QueryParam("limit")); limitRaw != "" {
		limit, err := strconv.ParseInt(limitRaw, 10, 32)
		if err != nil {
			return nil, err
		}
		req.Limit = int32(limit)
	}

	if offsetRaw := strings.TrimSpace(ctx.QueryParam("offset")); offsetRaw != "" {
		offset, err := strconv.ParseInt(offsetRaw, 10, 32)
		if err != nil {
			return nil, err
		}
		req.Offset = int32(offset)
	}

	return req, nil
}

func (r *ListPaymentsRequest) Validate() error {
	if r.Limit == 0 {
		r.Limit = DefaultListLimit
	}
	if r.GetLimit() <= 0 || r.GetLimit() > MaxListLimit {
		return errors.New("limit must be between 1 and 500")
	}
	if r.GetOffset() < 0 {
		return errors.New("offset must be >= 0")
	}
	if r.GetStatus() != "" && !isValidPaymentStatus(r.GetStatus()) {
		return errors.New("invalid status")
	}
	return nil
}

func (r *ListPaymentsRequest) GetStatus() string     { return r.Status }
func (r *ListPaymentsRequest) GetUserID() string     { return r.UserID }
func (r *ListPaymentsRequest) GetCourseType() string { return r.CourseType }
func (r *ListPaymentsRequest) GetLimit() int32       { return r.Limit }
func (r *ListPaymentsRequest) GetOffset() int32      { return r.Offset }

type EntitlementRequest struct {
	UserID     string
	CourseType string
}

func NewEntitlementRequestFromContext(ctx echo.Context) *EntitlementRequest {
	return &EntitlementRequest{
		UserID:     strings.TrimSpace(ctx.Param("user_id")),
		CourseType: strings.ToLower(strings.TrimSpace(ctx.Param("course_type"))),
	}
}

// Validate requires course_type only when requireCourse is set.
func (r *EntitlementRequest) Validate(requireCourse bool) error {
	if r.UserID == "" {
		return errors.New("user_id is required")
	}
	if requireCourse && r.CourseType == "" {
		return errors.New("course_type is required")
	}
	return nil
}

func isValidPaymentStatus(status string) bool {
	switch status {
	case entity.PaymentStatusPending,
		entity.PaymentStatusCompleted,
		entity.PaymentStatusFailed,
		entity.PaymentStatusTimeout:
		return true
	default:
		return false
	}
}
