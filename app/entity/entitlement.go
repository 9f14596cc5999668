package entity

import "time"

type Entitlement struct {
	UserID         string
	CourseType     string
	TransactionRef string
	GrantedAt      time.Time
}
