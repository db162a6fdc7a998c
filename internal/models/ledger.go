package models

import "time"

// Ledger entity types.
const (
	EntityTeam = "team"
	EntityUser = "user"
)

// PointsLedgerEntry is one append-only point-issuing event.
type PointsLedgerEntry struct {
	ID         string    `gorm:"primaryKey;size:36" json:"id"`
	EntityType string    `gorm:"size:8;not null;index:idx_ledger_entity" json:"entityType"`
	EntityID   string    `gorm:"size:64;not null;index:idx_ledger_entity" json:"entityId"`
	Amount     int       `gorm:"not null" json:"amount"`
	Reason     string    `gorm:"size:32;not null;uniqueIndex:idx_ledger_source_reason" json:"reason"`
	SourceID   string    `gorm:"size:36;not null;uniqueIndex:idx_ledger_source_reason" json:"sourceId"`
	CreatedAt  time.Time `json:"createdAt"`
}

// TableName overrides the pluralized default.
func (PointsLedgerEntry) TableName() string { return "points_ledger" }
