// Package ledger is the append-only points ledger. Balances are always
// derived by summing entries; nothing here updates or deletes an entry.
package ledger

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/zulandar/beartank/internal/models"
	"gorm.io/gorm"
)

// ReasonTaskApproved is recorded for points earned by an approved submission.
const ReasonTaskApproved = "task-approved"

// ErrAlreadyIssued reports that a submission's points were issued earlier.
// Callers treat it as success.
var ErrAlreadyIssued = errors.New("ledger: points already issued")

// Entry holds parameters for appending a ledger entry.
type Entry struct {
	EntityType string // team or user
	EntityID   string
	Amount     int
	Reason     string
	SourceID   string
}

func (e Entry) validate() error {
	if e.EntityType != models.EntityTeam && e.EntityType != models.EntityUser {
		return fmt.Errorf("ledger: entity type must be %q or %q, got %q", models.EntityTeam, models.EntityUser, e.EntityType)
	}
	if e.EntityID == "" {
		return fmt.Errorf("ledger: entity id is required")
	}
	if e.Reason == "" {
		return fmt.Errorf("ledger: reason is required")
	}
	if e.SourceID == "" {
		return fmt.Errorf("ledger: source id is required")
	}
	return nil
}

// Append writes one entry. The (source, reason) pair is unique, so appending
// the same event twice fails rather than double counting.
func Append(db *gorm.DB, e Entry) (*models.PointsLedgerEntry, error) {
	if err := e.validate(); err != nil {
		return nil, err
	}
	row := models.PointsLedgerEntry{
		ID:         uuid.NewString(),
		EntityType: e.EntityType,
		EntityID:   e.EntityID,
		Amount:     e.Amount,
		Reason:     e.Reason,
		SourceID:   e.SourceID,
		CreatedAt:  time.Now(),
	}
	if err := db.Create(&row).Error; err != nil {
		return nil, fmt.Errorf("ledger: append %s/%s: %w", e.Reason, e.SourceID, err)
	}
	return &row, nil
}

// Issue pays out an approved submission exactly once. In one transaction it
// flips the submission's points_issued flag from false to true, records the
// amount as the submission's award and, when it is positive, appends the
// entry. If the flag was already set, or an
// entry for the same source and reason exists, it returns ErrAlreadyIssued
// and writes nothing new.
func Issue(db *gorm.DB, e Entry) (*models.PointsLedgerEntry, error) {
	if err := e.validate(); err != nil {
		return nil, err
	}

	var (
		row     *models.PointsLedgerEntry
		already bool
	)
	err := db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Submission{}).
			Where("id = ? AND points_issued = ?", e.SourceID, false).
			Updates(map[string]interface{}{"points_issued": true, "points_awarded": e.Amount})
		if res.Error != nil {
			return fmt.Errorf("ledger: mark %s issued: %w", e.SourceID, res.Error)
		}
		if res.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&models.Submission{}).Where("id = ?", e.SourceID).Count(&count).Error; err != nil {
				return fmt.Errorf("ledger: check submission %s: %w", e.SourceID, err)
			}
			if count == 0 {
				return fmt.Errorf("ledger: submission not found: %s", e.SourceID)
			}
			already = true
			return nil
		}
		if e.Amount <= 0 {
			return nil
		}

		var existing int64
		if err := tx.Model(&models.PointsLedgerEntry{}).
			Where("source_id = ? AND reason = ?", e.SourceID, e.Reason).
			Count(&existing).Error; err != nil {
			return fmt.Errorf("ledger: check existing entry for %s: %w", e.SourceID, err)
		}
		if existing > 0 {
			already = true
			return nil
		}

		var err error
		row, err = Append(tx, e)
		return err
	})
	if err != nil {
		return nil, err
	}
	if already {
		return nil, ErrAlreadyIssued
	}
	return row, nil
}

// Total sums every entry for an entity.
func Total(db *gorm.DB, entityType, entityID string) (int64, error) {
	var sum struct{ Total int64 }
	err := db.Model(&models.PointsLedgerEntry{}).
		Select("COALESCE(SUM(amount), 0) AS total").
		Where("entity_type = ? AND entity_id = ?", entityType, entityID).
		Scan(&sum).Error
	if err != nil {
		return 0, fmt.Errorf("ledger: total for %s %s: %w", entityType, entityID, err)
	}
	return sum.Total, nil
}

// UserTotal is a student's own earnings plus those of their current team.
func UserTotal(db *gorm.DB, userID string) (int64, error) {
	var user models.User
	if err := db.Where("id = ?", userID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, fmt.Errorf("ledger: user not found: %s", userID)
		}
		return 0, fmt.Errorf("ledger: get user %s: %w", userID, err)
	}
	total, err := Total(db, models.EntityUser, userID)
	if err != nil {
		return 0, err
	}
	if user.TeamID != nil {
		team, err := Total(db, models.EntityTeam, *user.TeamID)
		if err != nil {
			return 0, err
		}
		total += team
	}
	return total, nil
}

// Entries lists an entity's entries, newest first.
func Entries(db *gorm.DB, entityType, entityID string) ([]models.PointsLedgerEntry, error) {
	var rows []models.PointsLedgerEntry
	err := db.Where("entity_type = ? AND entity_id = ?", entityType, entityID).
		Order("created_at DESC").Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("ledger: entries for %s %s: %w", entityType, entityID, err)
	}
	return rows, nil
}

// Standing is one row of the valuation leaderboard.
type Standing struct {
	Rank        int    `json:"rank"`
	TeamID      string `json:"teamId"`
	CompanyName string `json:"companyName"`
	Valuation   int64  `json:"valuation"`
}

// Leaderboard ranks every team by valuation. Tied teams share a rank.
func Leaderboard(db *gorm.DB) ([]Standing, error) {
	var rows []Standing
	err := db.Table("teams").
		Select("teams.id AS team_id, teams.company_name AS company_name, COALESCE(SUM(points_ledger.amount), 0) AS valuation").
		Joins("LEFT JOIN points_ledger ON points_ledger.entity_type = ? AND points_ledger.entity_id = teams.id", models.EntityTeam).
		Group("teams.id, teams.company_name").
		Order("valuation DESC, company_name ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("ledger: leaderboard: %w", err)
	}
	for i := range rows {
		if i > 0 && rows[i].Valuation == rows[i-1].Valuation {
			rows[i].Rank = rows[i-1].Rank
		} else {
			rows[i].Rank = i + 1
		}
	}
	return rows, nil
}
