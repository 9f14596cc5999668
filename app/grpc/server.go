package grpc

import (
	"context"
	"errors"
	"strings"

	"github.com/vibast-solutions/ms-go-course-payments/app/service"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

type Server struct {
	paymentService *service.PaymentService
}

func NewServer(paymentService *service.PaymentService) *Server {
	return &Server{paymentService: paymentService}
}

func (s *Server) CheckStatus(ctx context.Context, req *wrapperspb.StringValue) (*wrapperspb.StringValue, error) {
	transactionRef := strings.TrimSpace(req.GetValue())
	if transactionRef == "" {
		return nil, status.Error(codes.InvalidArgument, "transaction_ref is required")
	}

	result, err := s.paymentService.CheckStatus(ctx, transactionRef)
	if err != nil {
		if errors.Is(err, service.ErrInvalidRequest) {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
		loggerWithContext(ctx).WithError(err).Error("Check status failed")
		return nil, status.Error(codes.Internal, "internal server error")
	}

	return wrapperspb.String(result), nil
}

func (s *Server) HasEntitlement(ctx context.Context, req *structpb.Struct) (*wrapperspb.BoolValue, error) {
	fields := req.GetFields()
	userID := strings.TrimSpace(fields["user_id"].GetStringValue())
	courseType := strings.TrimSpace(fields["course_type"].GetStringValue())
	if userID == "" || courseType == "" {
		return nil, status.Error(codes.InvalidArgument, "user_id and course_type are required")
	}

	granted, err := s.paymentService.HasEntitlement(ctx, userID, courseType)
	if err != nil {
		if errors.Is(err, service.ErrInvalidRequest) {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
		loggerWithContext(ctx).WithError(err).Error("Entitlement lookup failed")
		return nil, status.Error(codes.Internal, "internal server error")
	}

	return wrapperspb.Bool(granted), nil
}
