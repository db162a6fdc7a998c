// Package curriculum manages stages, tasks, teams and rosters, and keeps the
// one-team-stage-per-team-and-stage invariant as either side changes.
package curriculum

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/zulandar/beartank/internal/models"
	"github.com/zulandar/beartank/internal/unlock"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrNotFound reports a missing stage, task, team, user or request.
	ErrNotFound = errors.New("not found")
	// ErrInvalid reports input the caller must correct.
	ErrInvalid = errors.New("invalid input")
)

// CreateStageOpts holds parameters for creating a stage.
type CreateStageOpts struct {
	ID             string // optional; generated when empty
	Title          string
	Description    string
	Order          int
	PointsTotal    int
	Status         string // template status, defaults to locked
	UnlockStageIDs []string
}

// UpdateStageOpts holds the fields an edit may change. Nil fields are kept.
type UpdateStageOpts struct {
	Title          *string
	Description    *string
	Order          *int
	PointsTotal    *int
	UnlockStageIDs *[]string
}

// CreateStage creates a stage and a locked team stage for every existing team.
func CreateStage(db *gorm.DB, opts CreateStageOpts) (*models.Stage, error) {
	title := strings.TrimSpace(opts.Title)
	if title == "" {
		return nil, fmt.Errorf("curriculum: %w: stage title is required", ErrInvalid)
	}
	status := opts.Status
	if status == "" {
		status = models.StageLocked
	}
	if !validStageStatus(status) {
		return nil, fmt.Errorf("curriculum: %w: invalid stage status %q", ErrInvalid, status)
	}
	id := opts.ID
	if id == "" {
		id = uuid.NewString()
	}
	unlocks := opts.UnlockStageIDs
	if unlocks == nil {
		unlocks = []string{}
	}

	stage := models.Stage{
		ID:             id,
		Title:          title,
		Description:    strings.TrimSpace(opts.Description),
		Order:          opts.Order,
		PointsTotal:    opts.PointsTotal,
		Status:         status,
		UnlockStageIDs: unlocks,
	}
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&stage).Error; err != nil {
			return fmt.Errorf("curriculum: create stage: %w", err)
		}
		var teamIDs []string
		if err := tx.Model(&models.Team{}).Pluck("id", &teamIDs).Error; err != nil {
			return fmt.Errorf("curriculum: list teams: %w", err)
		}
		for _, teamID := range teamIDs {
			ts := models.TeamStage{TeamID: teamID, StageID: stage.ID, Order: stage.Order, Status: models.StageLocked}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&ts).Error; err != nil {
				return fmt.Errorf("curriculum: backfill stage %s for team %s: %w", stage.ID, teamID, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &stage, nil
}

// GetStage retrieves a stage by id.
func GetStage(db *gorm.DB, id string) (*models.Stage, error) {
	var s models.Stage
	if err := db.Where("id = ?", id).First(&s).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("curriculum: stage %w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("curriculum: get stage %s: %w", id, err)
	}
	return &s, nil
}

// ListStages returns every stage in curriculum order.
func ListStages(db *gorm.DB) ([]models.Stage, error) {
	var stages []models.Stage
	if err := db.Order("position ASC").Find(&stages).Error; err != nil {
		return nil, fmt.Errorf("curriculum: list stages: %w", err)
	}
	return stages, nil
}

// UpdateStage edits a stage template.
func UpdateStage(db *gorm.DB, id string, opts UpdateStageOpts) (*models.Stage, error) {
	stage, err := GetStage(db, id)
	if err != nil {
		return nil, err
	}
	var cols []string
	if opts.Title != nil {
		t := strings.TrimSpace(*opts.Title)
		if t == "" {
			return nil, fmt.Errorf("curriculum: %w: stage title is required", ErrInvalid)
		}
		stage.Title = t
		cols = append(cols, "title")
	}
	if opts.Description != nil {
		stage.Description = strings.TrimSpace(*opts.Description)
		cols = append(cols, "description")
	}
	if opts.Order != nil {
		stage.Order = *opts.Order
		cols = append(cols, "position")
	}
	if opts.PointsTotal != nil {
		stage.PointsTotal = *opts.PointsTotal
		cols = append(cols, "points_total")
	}
	if opts.UnlockStageIDs != nil {
		stage.UnlockStageIDs = *opts.UnlockStageIDs
		if stage.UnlockStageIDs == nil {
			stage.UnlockStageIDs = []string{}
		}
		cols = append(cols, "unlock_stage_ids")
	}
	if len(cols) == 0 {
		return stage, nil
	}
	if err := db.Model(stage).Select(cols).Updates(stage).Error; err != nil {
		return nil, fmt.Errorf("curriculum: update stage %s: %w", id, err)
	}
	if opts.Order != nil {
		if err := db.Model(&models.TeamStage{}).Where("stage_id = ?", id).Update("position", stage.Order).Error; err != nil {
			return nil, fmt.Errorf("curriculum: reorder team stages for %s: %w", id, err)
		}
	}
	return stage, nil
}

// DeleteStage removes a stage template. Its tasks are kept with the stage
// cleared; team stages and submissions are left as history.
func DeleteStage(db *gorm.DB, id string) error {
	return db.Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ?", id).Delete(&models.Stage{})
		if res.Error != nil {
			return fmt.Errorf("curriculum: delete stage %s: %w", id, res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("curriculum: stage %w: %s", ErrNotFound, id)
		}
		if err := tx.Model(&models.Task{}).Where("stage_id = ?", id).Update("stage_id", nil).Error; err != nil {
			return fmt.Errorf("curriculum: orphan tasks of %s: %w", id, err)
		}
		return nil
	})
}

// SetStageStatus sets a stage template's display status. Marking a stage
// complete activates its explicit unlock targets, or the next stage by
// order, when those templates are still locked. Returns the ids activated.
func SetStageStatus(db *gorm.DB, id, status string) ([]string, error) {
	if !validStageStatus(status) {
		return nil, fmt.Errorf("curriculum: %w: invalid stage status %q", ErrInvalid, status)
	}
	stage, err := GetStage(db, id)
	if err != nil {
		return nil, err
	}
	if err := db.Model(stage).Update("status", status).Error; err != nil {
		return nil, fmt.Errorf("curriculum: set stage %s status: %w", id, err)
	}
	if status != models.StageComplete {
		return nil, nil
	}

	all, err := ListStages(db)
	if err != nil {
		return nil, err
	}
	var activated []string
	for _, target := range unlock.ExplicitOnly().Targets(*stage, all) {
		res := db.Model(&models.Stage{}).
			Where("id = ? AND status = ?", target.ID, models.StageLocked).
			Update("status", models.StageActive)
		if res.Error != nil {
			return activated, fmt.Errorf("curriculum: activate stage %s: %w", target.ID, res.Error)
		}
		if res.RowsAffected > 0 {
			activated = append(activated, target.ID)
		}
	}
	return activated, nil
}

// BackfillTeamStages creates any missing team stage for every (team, stage)
// pair. Missing rows are created locked. Returns how many were created.
func BackfillTeamStages(db *gorm.DB) (int, error) {
	stages, err := ListStages(db)
	if err != nil {
		return 0, err
	}
	var teamIDs []string
	if err := db.Model(&models.Team{}).Pluck("id", &teamIDs).Error; err != nil {
		return 0, fmt.Errorf("curriculum: list teams: %w", err)
	}
	created := 0
	for _, teamID := range teamIDs {
		for _, s := range stages {
			ts := models.TeamStage{TeamID: teamID, StageID: s.ID, Order: s.Order, Status: models.StageLocked}
			res := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&ts)
			if res.Error != nil {
				return created, fmt.Errorf("curriculum: backfill %s/%s: %w", teamID, s.ID, res.Error)
			}
			created += int(res.RowsAffected)
		}
	}
	return created, nil
}

func validStageStatus(s string) bool {
	return s == models.StageLocked || s == models.StageActive || s == models.StageComplete
}
