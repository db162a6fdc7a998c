package models

import "time"

// Notification is an in-app message for one user.
type Notification struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    string    `gorm:"size:64;not null;index" json:"userId"`
	Title     string    `gorm:"size:256" json:"title"`
	Message   string    `gorm:"type:text" json:"message"`
	Link      string    `gorm:"size:256" json:"link,omitempty"`
	Type      string    `gorm:"size:32;index" json:"type"`
	SourceID  string    `gorm:"size:36" json:"sourceId,omitempty"`
	Read      bool      `gorm:"column:is_read;default:false;index" json:"read"`
	CreatedAt time.Time `json:"createdAt"`
}

// Announcement is a class-wide post, optionally scheduled for later.
type Announcement struct {
	ID           string     `gorm:"primaryKey;size:36" json:"id"`
	Title        string     `gorm:"size:256;not null" json:"title"`
	Body         string     `gorm:"type:text" json:"body"`
	ScheduledFor *time.Time `gorm:"index" json:"scheduledFor,omitempty"`
	PublishedAt  *time.Time `gorm:"index" json:"publishedAt,omitempty"`
	CreatedBy    string     `gorm:"size:64" json:"createdBy"`
	CreatedAt    time.Time  `json:"createdAt"`
}
