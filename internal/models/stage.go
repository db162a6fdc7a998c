package models

import "time"

// Stage and TeamStage statuses.
const (
	StageLocked   = "locked"
	StageActive   = "active"
	StageComplete = "complete"
)

// Task types. Brand kit is only ever a submission type.
const (
	TaskTeam       = "team"
	TaskIndividual = "individual"
	TaskBrandKit   = "brand_kit"
)

// CategorySideHustle marks time-boxed bonus tasks.
const CategorySideHustle = "side_hustle"

// Stage is a sequential phase of the curriculum.
type Stage struct {
	ID             string    `gorm:"primaryKey;size:64" json:"id"`
	Title          string    `gorm:"size:128;not null" json:"title"`
	Description    string    `gorm:"type:text" json:"description"`
	Order          int       `gorm:"column:position;uniqueIndex" json:"order"`
	PointsTotal    int       `gorm:"default:0" json:"pointsTotal"`
	Status         string    `gorm:"size:16;default:locked" json:"status"`
	UnlockStageIDs []string  `gorm:"serializer:json;type:text" json:"unlockStageIds"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// Task is a unit of work inside a stage, or a standalone side hustle.
type Task struct {
	ID          string     `gorm:"primaryKey;size:36" json:"id"`
	StageID     *string    `gorm:"size:64;index" json:"stageId"`
	Title       string     `gorm:"size:256;not null" json:"title"`
	Description string     `gorm:"type:text" json:"description"`
	Type        string     `gorm:"size:16;default:team" json:"type"`
	Points      int        `gorm:"default:0" json:"points"`
	IsBonus     bool       `gorm:"default:false" json:"isBonus"`
	Order       int        `gorm:"column:position" json:"order"`
	Category    string     `gorm:"size:32;index" json:"category,omitempty"`
	StartAt     *time.Time `json:"startAt,omitempty"`
	EndAt       *time.Time `json:"endAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}
