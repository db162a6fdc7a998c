package db

import (
	"fmt"

	"github.com/zulandar/beartank/internal/config"
	"github.com/zulandar/beartank/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AllModels returns every GORM model, in migration order.
func AllModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Stage{},
		&models.Task{},
		&models.Team{},
		&models.TeamMember{},
		&models.TeamStage{},
		&models.TeamProfile{},
		&models.TeamRequest{},
		&models.Submission{},
		&models.PointsLedgerEntry{},
		&models.Notification{},
		&models.Announcement{},
	}
}

// AutoMigrate creates or updates all tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}

// DropAll drops every table. Used by db reset on SQLite, where there is no
// server-side database to drop.
func DropAll(db *gorm.DB) error {
	if err := db.Migrator().DropTable(AllModels()...); err != nil {
		return fmt.Errorf("db: drop tables: %w", err)
	}
	return nil
}

// SeedStages upserts Stage rows from configuration. Team stage backfill is
// left to the caller.
func SeedStages(db *gorm.DB, stages []config.StageConfig) error {
	for _, sc := range stages {
		unlocks := sc.Unlocks
		if unlocks == nil {
			unlocks = []string{}
		}
		stage := models.Stage{
			ID:             sc.ID,
			Title:          sc.Title,
			Description:    sc.Description,
			Order:          sc.Order,
			PointsTotal:    sc.PointsTotal,
			Status:         models.StageLocked,
			UnlockStageIDs: unlocks,
		}

		result := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"title", "description", "position", "points_total", "unlock_stage_ids"}),
		}).Create(&stage)
		if result.Error != nil {
			return fmt.Errorf("db: seed stage %q: %w", sc.ID, result.Error)
		}
	}
	return nil
}
