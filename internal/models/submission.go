package models

import "time"

// Submission statuses.
const (
	SubmissionSubmitted    = "submitted"
	SubmissionApproved     = "approved"
	SubmissionNeedsChanges = "needs_changes"
)

// Submission is a student or team attempt at a task.
type Submission struct {
	ID            string            `gorm:"primaryKey;size:36" json:"id"`
	TaskID        *string           `gorm:"size:36;index" json:"taskId"`
	TaskTitle     string            `gorm:"size:256" json:"taskTitle"`
	TaskType      string            `gorm:"size:16" json:"taskType"`
	TaskPoints    int               `gorm:"default:0" json:"taskPoints"`
	StageID       *string           `gorm:"size:64;index" json:"stageId"`
	TeamID        *string           `gorm:"size:36;index" json:"teamId"`
	UserID        *string           `gorm:"size:64;index" json:"userId"`
	SubmittedBy   string            `gorm:"size:64" json:"submittedBy"`
	Status        string            `gorm:"size:16;default:submitted;index" json:"status"`
	Content       SubmissionContent `gorm:"serializer:json;type:text" json:"content"`
	PointsAwarded int               `gorm:"default:0" json:"pointsAwarded"`
	BonusPoints   int               `gorm:"default:0" json:"bonusPoints"`
	Feedback      Feedback          `gorm:"embedded;embeddedPrefix:feedback_" json:"feedback"`
	ReviewedBy    string            `gorm:"size:64" json:"reviewedBy,omitempty"`
	ReviewedAt    *time.Time        `json:"reviewedAt,omitempty"`
	PointsIssued  bool              `gorm:"default:false" json:"pointsIssued"`
	CreatedAt     time.Time         `json:"createdAt"`
	UpdatedAt     time.Time         `json:"updatedAt"`
}

// SubmissionContent is the free-form body of a submission.
type SubmissionContent struct {
	Link         string `json:"link,omitempty"`
	Reflection   string `json:"reflection,omitempty"`
	TimelineNote string `json:"timelineNote,omitempty"`
	CompanyName  string `json:"companyName,omitempty"`
	Mission      string `json:"mission,omitempty"`
	LogoURL      string `json:"logoUrl,omitempty"`
}

// Feedback is the reviewer's note attached to a decision.
type Feedback struct {
	Note      string     `gorm:"type:text" json:"note"`
	Type      string     `gorm:"size:16" json:"type"`
	By        string     `gorm:"size:64" json:"by"`
	CreatedAt *time.Time `json:"createdAt,omitempty"`
}
