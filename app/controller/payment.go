package controller

import (
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-course-payments/app/auth"
	"github.com/vibast-solutions/ms-go-course-payments/app/entity"
	"github.com/vibast-solutions/ms-go-course-payments/app/factory"
	"github.com/vibast-solutions/ms-go-course-payments/app/mapper"
	"github.com/vibast-solutions/ms-go-course-payments/app/service"
	"github.com/vibast-solutions/ms-go-course-payments/app/types"
)

const (
	invalidPhoneMessage = "Invalid phone number format. Use 10-digit number starting with 07 or 01 (e.g., 0712345678)"
	maxCallbackBodySize = 1 << 20
)

type PaymentController struct {
	paymentService *service.PaymentService
	logger         logrus.FieldLogger
}

func NewPaymentController(paymentService *service.PaymentService) *PaymentController {
	return &PaymentController{
		paymentService: paymentService,
		logger:         factory.NewModuleLogger("payments-controller"),
	}
}

func (c *PaymentController) Health(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, &types.HealthResponse{
		Status:            "ok",
		GatewayConfigured: c.paymentService.GatewayConfigured(),
	})
}

func (c *PaymentController) InitiatePayment(ctx echo.Context) error {
	req, err := types.NewInitiatePaymentRequestFromContext(ctx, auth.UserID(ctx))
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	item, err := c.paymentService.InitiatePayment(ctx.Request().Context(), req)
	if err != nil {
		var rejected *service.RejectedError
		switch {
		case errors.Is(err, service.ErrInvalidPhone):
			return c.writeError(ctx, http.StatusBadRequest, invalidPhoneMessage)
		case errors.Is(err, service.ErrInvalidRequest):
			return c.writeError(ctx, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrUnknownCourse):
			return c.writeError(ctx, http.StatusNotFound, "course not found")
		case errors.Is(err, service.ErrPaymentUnavailable):
			return c.writeError(ctx, http.StatusServiceUnavailable, "payment service is not configured")
		case errors.As(err, &rejected):
			if rejected.Description == "" {
				return c.writeError(ctx, http.StatusUnprocessableEntity, err.Error())
			}
			return c.writeError(ctx, http.StatusUnprocessableEntity, "Payment failed: "+rejected.Description)
		case errors.Is(err, service.ErrPaymentSubmitFailed):
			return c.writeError(ctx, http.StatusBadGateway, err.Error())
		default:
			factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("Initiate payment failed")
			return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
		}
	}

	resp := &types.InitiatePaymentResponse{
		TransactionRef: item.TransactionRef,
		Status:         entity.PollStatusPending,
		StatusURL:      statusURL(item.TransactionRef),
		WaitURL:        waitURL(item.TransactionRef),
	}
	if req.FormPost {
		return ctx.Redirect(http.StatusSeeOther, resp.WaitURL)
	}
	return ctx.JSON(http.StatusCreated, resp)
}

func (c *PaymentController) WaitPayment(ctx echo.Context) error {
	req := types.NewTransactionRefRequestFromContext(ctx)
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	item, err := c.paymentService.GetUserPayment(ctx.Request().Context(), auth.UserID(ctx), req.TransactionRef)
	if err != nil {
		if errors.Is(err, service.ErrPaymentNotFound) {
			return c.writeError(ctx, http.StatusNotFound, "payment not found")
		}
		factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("Get payment failed")
		return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
	}

	return ctx.JSON(http.StatusOK, &types.WaitResponse{
		TransactionRef: item.TransactionRef,
		CourseType:     item.CourseType,
		StatusURL:      statusURL(item.TransactionRef),
	})
}

// PaymentStatus is unauthenticated and reports pending for references it does not know.
func (c *PaymentController) PaymentStatus(ctx echo.Context) error {
	req := types.NewTransactionRefRequestFromContext(ctx)
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	status, err := c.paymentService.CheckStatus(ctx.Request().Context(), req.TransactionRef)
	if err != nil {
		if errors.Is(err, service.ErrInvalidRequest) {
			return c.writeError(ctx, http.StatusBadRequest, err.Error())
		}
		factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("Check payment status failed")
		return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
	}

	return ctx.JSON(http.StatusOK, &types.StatusResponse{Status: status})
}

func (c *PaymentController) ListCourses(ctx echo.Context) error {
	views, err := c.paymentService.ListCourses(ctx.Request().Context(), auth.UserID(ctx))
	if err != nil {
		factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("List courses failed")
		return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
	}

	return ctx.JSON(http.StatusOK, &types.ListCoursesResponse{Courses: mapper.CourseViewsToResponse(views)})
}

// HandleCallback always acknowledges; the provider retries anything else.
func (c *PaymentController) HandleCallback(ctx echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(ctx.Request().Body, maxCallbackBodySize))
	if err != nil {
		factory.LoggerWithContext(c.logger, ctx).WithError(err).Warn("Read callback body failed")
	}

	c.paymentService.AcceptCallback(ctx.Request().Context(), body)

	return ctx.JSON(http.StatusOK, &types.CallbackAckResponse{ResultCode: 0, ResultDesc: "Accepted"})
}

func (c *PaymentController) HasEntitlement(ctx echo.Context) error {
	req := types.NewEntitlementRequestFromContext(ctx)
	if err := req.Validate(true); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	granted, err := c.paymentService.HasEntitlement(ctx.Request().Context(), req.UserID, req.CourseType)
	if err != nil {
		factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("Entitlement lookup failed")
		return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
	}

	return ctx.JSON(http.StatusOK, &types.EntitlementResponse{Granted: granted})
}

func (c *PaymentController) writeError(ctx echo.Context, statusCode int, message string) error {
	return ctx.JSON(statusCode, &types.ErrorResponse{Error: message})
}

func statusURL(transactionRef string) string {
	return "/payment/status/" + transactionRef
}

func waitURL(transactionRef string) string {
	return "/payment/wait/" + transactionRef
}
