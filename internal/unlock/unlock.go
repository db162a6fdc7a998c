// Package unlock decides which stages open when a team completes a stage and
// activates them for that team.
package unlock

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/zulandar/beartank/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Resolver picks the stages to unlock once completed is finished.
type Resolver interface {
	Targets(completed models.Stage, all []models.Stage) []models.Stage
}

// Rule is one step of a resolution chain.
type Rule func(completed models.Stage, all []models.Stage) []models.Stage

// Chain is a Resolver that returns the first non-empty rule result.
type Chain []Rule

// Targets implements Resolver.
func (c Chain) Targets(completed models.Stage, all []models.Stage) []models.Stage {
	for _, rule := range c {
		if targets := rule(completed, all); len(targets) > 0 {
			return targets
		}
	}
	return nil
}

// Default resolves explicit unlocks, then the prototype title fallback, then
// the next stage by order.
func Default() Resolver {
	return Chain{Explicit, PrototypeFallback, NextByOrder}
}

// ExplicitOnly skips title matching entirely.
func ExplicitOnly() Resolver {
	return Chain{Explicit, NextByOrder}
}

// Explicit returns the stages named in completed.UnlockStageIDs.
func Explicit(completed models.Stage, all []models.Stage) []models.Stage {
	if len(completed.UnlockStageIDs) == 0 {
		return nil
	}
	want := make(map[string]bool, len(completed.UnlockStageIDs))
	for _, id := range completed.UnlockStageIDs {
		want[id] = true
	}
	var out []models.Stage
	for _, s := range all {
		if want[s.ID] {
			out = append(out, s)
		}
	}
	return out
}

// PrototypeFallback maps a "prototyp..." stage to every marketing or
// fabrication stage. Matching is case-insensitive on titles.
func PrototypeFallback(completed models.Stage, all []models.Stage) []models.Stage {
	if !strings.Contains(strings.ToLower(completed.Title), "prototyp") {
		return nil
	}
	var out []models.Stage
	for _, s := range all {
		title := strings.ToLower(s.Title)
		if strings.Contains(title, "marketing") || strings.Contains(title, "fabrication") {
			out = append(out, s)
		}
	}
	return out
}

// NextByOrder returns the single stage with the smallest order greater than
// completed's.
func NextByOrder(completed models.Stage, all []models.Stage) []models.Stage {
	var next *models.Stage
	for i := range all {
		s := &all[i]
		if s.Order <= completed.Order {
			continue
		}
		if next == nil || s.Order < next.Order {
			next = s
		}
	}
	if next == nil {
		return nil
	}
	return []models.Stage{*next}
}

// Activate opens each target for teamID. A missing team stage is created
// active; a locked one becomes active with its progress kept. Active and
// complete team stages are left alone. Returns the ids that changed.
func Activate(db *gorm.DB, teamID string, targets []models.Stage) ([]string, error) {
	var activated []string
	for _, s := range targets {
		res := db.Model(&models.TeamStage{}).
			Where("team_id = ? AND stage_id = ? AND status = ?", teamID, s.ID, models.StageLocked).
			Updates(map[string]interface{}{"status": models.StageActive, "updated_at": time.Now()})
		if res.Error != nil {
			return activated, fmt.Errorf("unlock: activate %s for team %s: %w", s.ID, teamID, res.Error)
		}
		if res.RowsAffected > 0 {
			activated = append(activated, s.ID)
			continue
		}

		ts := models.TeamStage{
			TeamID:  teamID,
			StageID: s.ID,
			Order:   s.Order,
			Status:  models.StageActive,
		}
		res = db.Clauses(clause.OnConflict{DoNothing: true}).Create(&ts)
		if res.Error != nil {
			return activated, fmt.Errorf("unlock: create %s for team %s: %w", s.ID, teamID, res.Error)
		}
		if res.RowsAffected > 0 {
			activated = append(activated, s.ID)
		}
	}
	sort.Strings(activated)
	return activated, nil
}

// Cascade resolves the targets of completed against every stage and
// activates them for teamID.
func Cascade(db *gorm.DB, r Resolver, teamID string, completed models.Stage) ([]string, error) {
	var all []models.Stage
	if err := db.Order("position ASC").Find(&all).Error; err != nil {
		return nil, fmt.Errorf("unlock: list stages: %w", err)
	}
	return Activate(db, teamID, r.Targets(completed, all))
}
