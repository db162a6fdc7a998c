package models

import "time"

// Roles a user can hold.
const (
	RoleStudent = "student"
	RoleTeacher = "teacher"
	RoleAdmin   = "admin"
)

// Account statuses. Teachers start pending until an admin activates them.
const (
	UserPending = "pending"
	UserActive  = "active"
)

// User is the local profile of an identity-provider subject.
type User struct {
	ID          string    `gorm:"primaryKey;size:64" json:"id"`
	Email       string    `gorm:"size:256;index" json:"email"`
	DisplayName string    `gorm:"size:128" json:"displayName"`
	Role        string    `gorm:"size:16;default:student;index" json:"role"`
	Status      string    `gorm:"size:16;default:active;index" json:"status"`
	TeamID      *string   `gorm:"size:36;index" json:"teamId"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}
