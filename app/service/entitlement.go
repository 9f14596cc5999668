package service

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-course-payments/app/catalog"
	"github.com/vibast-solutions/ms-go-course-payments/app/entity"
)

// CourseView is a catalog entry as seen by one user.
type CourseView struct {
	Course catalog.Course
	Paid   bool
}

// grantEntitlement is safe to repeat. Failures are logged; the poller re-asserts on the next read.
func (s *PaymentService) grantEntitlement(ctx context.Context, logger logrus.FieldLogger, payment *entity.Payment) {
	granted, err := s.entitlementRepo.Grant(ctx, &entity.Entitlement{
		UserID:         payment.UserID,
		CourseType:     payment.CourseType,
		TransactionRef: payment.TransactionRef,
		GrantedAt:      s.now(),
	})
	if err != nil {
		logger.WithError(err).Error("entitlement grant failed")
		return
	}
	if granted {
		logger.WithField("user_id", payment.UserID).WithField("course_type", payment.CourseType).Info("course access granted")
	}
}

func (s *PaymentService) HasEntitlement(ctx context.Context, userID, courseType string) (bool, error) {
	userID = strings.TrimSpace(userID)
	courseType = strings.ToLower(strings.TrimSpace(courseType))
	if userID == "" || courseType == "" {
		return false, ErrInvalidRequest
	}
	return s.entitlementRepo.HasCourse(ctx, userID, courseType)
}

func (s *PaymentService) ListEntitlements(ctx context.Context, userID string) ([]*entity.Entitlement, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrInvalidRequest
	}
	return s.entitlementRepo.ListByUser(ctx, userID)
}

// ListCourses returns the catalog flagged with the courses userID already owns.
func (s *PaymentService) ListCourses(ctx context.Context, userID string) ([]CourseView, error) {
	owned := map[string]bool{}
	if strings.TrimSpace(userID) != "" {
		items, err := s.entitlementRepo.ListByUser(ctx, strings.TrimSpace(userID))
		if err != nil {
			return nil, err
		}
		for _, item := range items {
			owned[item.CourseType] = true
		}
	}

	all := s.courses.All()
	views := make([]CourseView, 0, len(all))
	for _, course := range all {
		views = append(views, CourseView{Course: course, Paid: owned[course.Type]})
	}
	return views, nil
}
