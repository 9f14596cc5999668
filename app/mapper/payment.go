package mapper

import (
	"time"

	"github.com/vibast-solutions/ms-go-course-payments/app/catalog"
	"github.com/vibast-solutions/ms-go-course-payments/app/entity"
	"github.com/vibast-solutions/ms-go-course-payments/app/repository"
	"github.com/vibast-solutions/ms-go-course-payments/app/service"
	"github.com/vibast-solutions/ms-go-course-payments/app/types"
)

func PaymentToResponse(item *entity.Payment) *types.Payment {
	if item == nil {
		return nil
	}

	result := &types.Payment{
		TransactionRef:   item.TransactionRef,
		CheckoutHandle:   item.CheckoutHandle,
		MerchantHandle:   item.MerchantHandle,
		UserID:           item.UserID,
		CourseType:       item.CourseType,
		Phone:            item.Phone,
		Amount:           item.Amount,
		Status:           item.Status,
		Receipt:          derefString(item.Receipt),
		ErrorDescription: derefString(item.ErrorDescription),
		ProcessingMillis: derefInt64(item.ProcessingMillis),
		CreatedAt:        formatTime(item.CreatedAt),
		UpdatedAt:        formatTime(item.UpdatedAt),
	}
	if item.CompletedAt != nil {
		result.CompletedAt = formatTime(*item.CompletedAt)
	}
	return result
}

func PaymentsToResponse(items []*entity.Payment) []*types.Payment {
	result := make([]*types.Payment, 0, len(items))
	for _, item := range items {
		result = append(result, PaymentToResponse(item))
	}
	return result
}

// CourseViewsToResponse hides material links for courses the user has not paid for.
func CourseViewsToResponse(items []service.CourseView) []*types.Course {
	result := make([]*types.Course, 0, len(items))
	for _, item := range items {
		course := courseToResponse(item.Course)
		course.Paid = item.Paid
		if !item.Paid {
			course.Links = nil
		}
		result = append(result, course)
	}
	return result
}

func courseToResponse(course catalog.Course) *types.Course {
	result := &types.Course{
		Type:        course.Type,
		Title:       course.Title,
		Description: course.Description,
		Price:       course.Price,
		Features:    append([]string{}, course.Features...),
	}
	if len(course.Links) > 0 {
		result.Links = make(map[string]string, len(course.Links))
		for k, v := range course.Links {
			result.Links[k] = v
		}
	}
	return result
}

func EntitlementsToResponse(items []*entity.Entitlement) []*types.Entitlement {
	result := make([]*types.Entitlement, 0, len(items))
	for _, item := range items {
		result = append(result, &types.Entitlement{
			UserID:         item.UserID,
			CourseType:     item.CourseType,
			TransactionRef: item.TransactionRef,
			GrantedAt:      formatTime(item.GrantedAt),
		})
	}
	return result
}

func StatusCacheToResponse(snapshot *service.CacheSnapshot) *types.StatusCacheResponse {
	result := &types.StatusCacheResponse{
		Counts:  map[string]int{},
		Entries: make([]*types.StatusCacheEntry, 0),
	}
	if snapshot == nil {
		return result
	}

	for status, count := range snapshot.Counts {
		result.Counts[status] = count
	}
	for _, entry := range snapshot.Entries {
		result.Entries = append(result.Entries, &types.StatusCacheEntry{
			TransactionRef: entry.TransactionRef,
			Status:         entry.Status,
			InitiatedAt:    formatTime(entry.InitiatedAt),
			AgeSeconds:     int64(entry.Age / time.Second),
		})
	}
	result.Total = len(result.Entries)
	return result
}

func PaymentStatsToResponse(stats *repository.PaymentStats) *types.PaymentStatsResponse {
	result := &types.PaymentStatsResponse{CompletedByCourse: map[string]int64{}}
	if stats == nil {
		return result
	}

	result.Total = stats.Total
	result.Completed = stats.ByStatus[entity.PaymentStatusCompleted]
	result.Pending = stats.ByStatus[entity.PaymentStatusPending]
	result.Failed = stats.ByStatus[entity.PaymentStatusFailed]
	result.Timeout = stats.ByStatus[entity.PaymentStatusTimeout]
	for course, count := range stats.CompletedByCourse {
		result.CompletedByCourse[course] = count
	}
	return result
}

func PurgeResultToResponse(result *service.PurgeResult) *types.PurgeUserResponse {
	return &types.PurgeUserResponse{
		UserID:              result.UserID,
		PaymentsDeleted:     result.PaymentsDeleted,
		EntitlementsDeleted: result.EntitlementsDeleted,
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func derefInt64(v *int64) int64 {
	if v == nil {
		return 0
	}
	return *v
}
