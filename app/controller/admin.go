package controller

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-course-payments/app/auth"
	"github.com/vibast-solutions/ms-go-course-payments/app/factory"
	"github.com/vibast-solutions/ms-go-course-payments/app/mapper"
	"github.com/vibast-solutions/ms-go-course-payments/app/service"
	"github.com/vibast-solutions/ms-go-course-payments/app/types"
)

type AdminController struct {
	paymentService *service.PaymentService
	logger         logrus.FieldLogger
}

func NewAdminController(paymentService *service.PaymentService) *AdminController {
	return &AdminController{
		paymentService: paymentService,
		logger:         factory.NewModuleLogger("admin-controller"),
	}
}

func (c *AdminController) ListPayments(ctx echo.Context) error {
	req, err := types.NewListPaymentsRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	items, err := c.paymentService.ListPayments(ctx.Request().Context(), req)
	if err != nil {
		factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("List payments failed")
		return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
	}

	return ctx.JSON(http.StatusOK, &types.ListPaymentsResponse{Payments: mapper.PaymentsToResponse(items)})
}

func (c *AdminController) GetPayment(ctx echo.Context) error {
	req := types.NewTransactionRefRequestFromContext(ctx)
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	item, err := c.paymentService.GetPayment(ctx.Request().Context(), req.TransactionRef)
	if err != nil {
		if errors.Is(err, service.ErrPaymentNotFound) {
			return c.writeError(ctx, http.StatusNotFound, "payment not found")
		}
		factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("Get payment failed")
		return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
	}

	return ctx.JSON(http.StatusOK, &types.PaymentEnvelopeResponse{Payment: mapper.PaymentToResponse(item)})
}

func (c *AdminController) ForceComplete(ctx echo.Context) error {
	req := types.NewTransactionRefRequestFromContext(ctx)
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	item, err := c.paymentService.ForceComplete(ctx.Request().Context(), req.TransactionRef)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrPaymentNotFound):
			return c.writeError(ctx, http.StatusNotFound, "payment not found")
		case errors.Is(err, service.ErrPaymentNotPending):
			return c.writeError(ctx, http.StatusConflict, err.Error())
		default:
			factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("Force complete failed")
			return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
		}
	}

	factory.LoggerWithContext(c.logger, ctx).WithFields(logrus.Fields{
		"transaction_ref": item.TransactionRef,
		"admin_id":        auth.UserID(ctx),
	}).Warn("Payment force-completed by admin")

	return ctx.JSON(http.StatusOK, &types.PaymentEnvelopeResponse{Payment: mapper.PaymentToResponse(item)})
}

func (c *AdminController) StatusCache(ctx echo.Context) error {
	snapshot, err := c.paymentService.StatusCacheSnapshot(ctx.Request().Context())
	if err != nil {
		factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("Status cache snapshot failed")
		return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
	}

	return ctx.JSON(http.StatusOK, mapper.StatusCacheToResponse(snapshot))
}

func (c *AdminController) UserCourses(ctx echo.Context) error {
	req := types.NewEntitlementRequestFromContext(ctx)
	if err := req.Validate(false); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	items, err := c.paymentService.ListEntitlements(ctx.Request().Context(), req.UserID)
	if err != nil {
		factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("List entitlements failed")
		return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
	}

	return ctx.JSON(http.StatusOK, &types.ListEntitlementsResponse{
		UserID:       req.UserID,
		Entitlements: mapper.EntitlementsToResponse(items),
	})
}

func (c *AdminController) PaymentStats(ctx echo.Context) error {
	stats, err := c.paymentService.PaymentStats(ctx.Request().Context())
	if err != nil {
		factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("Payment stats failed")
		return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
	}

	return ctx.JSON(http.StatusOK, mapper.PaymentStatsToResponse(stats))
}

func (c *AdminController) DeleteUser(ctx echo.Context) error {
	req := types.NewEntitlementRequestFromContext(ctx)
	if err := req.Validate(false); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	result, err := c.paymentService.PurgeUser(ctx.Request().Context(), req.UserID)
	if err != nil {
		if errors.Is(err, service.ErrInvalidRequest) {
			return c.writeError(ctx, http.StatusBadRequest, err.Error())
		}
		factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("Purge user failed")
		return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
	}

	factory.LoggerWithContext(c.logger, ctx).WithFields(logrus.Fields{
		"user_id":  result.UserID,
		"admin_id": auth.UserID(ctx),
	}).Warn("User payment data deleted by admin")

	return ctx.JSON(http.StatusOK, mapper.PurgeResultToResponse(result))
}

func (c *AdminController) writeError(ctx echo.Context, statusCode int, message string) error {
	return ctx.JSON(statusCode, &types.ErrorResponse{Error: message})
}
