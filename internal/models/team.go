package models

import "time"

// Team is a student company. Membership lives in TeamMember rows.
type Team struct {
	ID          string       `gorm:"primaryKey;size:36" json:"id"`
	CompanyName string       `gorm:"size:128;not null" json:"companyName"`
	TeamName    string       `gorm:"size:128" json:"teamName"`
	Status      string       `gorm:"size:16;default:active" json:"status"`
	CreatedBy   string       `gorm:"size:64" json:"createdBy"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
	Members     []TeamMember `gorm:"foreignKey:TeamID" json:"members,omitempty"`
}

// MemberIDs returns the roster as a list of user ids.
func (t *Team) MemberIDs() []string {
	ids := make([]string, 0, len(t.Members))
	for _, m := range t.Members {
		ids = append(ids, m.UserID)
	}
	return ids
}

// TeamMember links a user to a team.
type TeamMember struct {
	TeamID   string    `gorm:"primaryKey;size:36" json:"teamId"`
	UserID   string    `gorm:"primaryKey;size:64;index" json:"userId"`
	JoinedAt time.Time `json:"joinedAt"`
}

// TeamStage is a team's status and progress for one stage.
type TeamStage struct {
	TeamID    string    `gorm:"primaryKey;size:36" json:"teamId"`
	StageID   string    `gorm:"primaryKey;size:64" json:"stageId"`
	Order     int       `gorm:"column:position" json:"order"`
	Status    string    `gorm:"size:16;default:locked;index" json:"status"`
	Progress  int       `gorm:"default:0" json:"progress"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TeamProfile is the published company profile read model.
type TeamProfile struct {
	TeamID      string    `gorm:"primaryKey;size:36" json:"teamId"`
	CompanyName string    `gorm:"size:128" json:"companyName"`
	Mission     string    `gorm:"type:text" json:"mission"`
	LogoURL     string    `gorm:"size:512" json:"logoUrl"`
	ApprovedAt  time.Time `json:"approvedAt"`
}

// Team request statuses.
const (
	RequestPending  = "pending"
	RequestApproved = "approved"
	RequestRejected = "rejected"
)

// TeamRequest is a student's request for a teacher to form a team.
type TeamRequest struct {
	ID           string     `gorm:"primaryKey;size:36" json:"id"`
	CompanyName  string     `gorm:"size:128;not null" json:"companyName"`
	TeamName     string     `gorm:"size:128" json:"teamName"`
	MemberEmails []string   `gorm:"serializer:json;type:text" json:"memberEmails"`
	RequestedBy  string     `gorm:"size:64;index" json:"requestedBy"`
	Status       string     `gorm:"size:16;default:pending;index" json:"status"`
	TeamID       *string    `gorm:"size:36" json:"teamId,omitempty"`
	ResolvedBy   string     `gorm:"size:64" json:"resolvedBy,omitempty"`
	ResolvedAt   *time.Time `json:"resolvedAt,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
}
