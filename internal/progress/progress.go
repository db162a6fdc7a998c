// Package progress computes a team's completion of a stage from its tasks and
// approved submissions.
package progress

import "github.com/zulandar/beartank/internal/models"

// Result is the outcome of a progress computation.
type Result struct {
	Completed int
	Total     int
	Percent   int
}

// Complete reports whether every counted task is done. A stage with no
// counted tasks never completes.
func (r Result) Complete() bool {
	return r.Total > 0 && r.Completed >= r.Total
}

// Compute derives stage progress for teamID. Bonus tasks are excluded from
// the denominator. A team task is done when any approved submission is
// scoped to the team; an individual task is done only when every user in
// roster has an approved submission for it. approved should hold only
// submissions already in the approved state; others are ignored.
func Compute(teamID string, roster []string, tasks []models.Task, approved []models.Submission) Result {
	teamDone := make(map[string]bool)
	byUser := make(map[string]map[string]bool)
	for _, s := range approved {
		if s.Status != models.SubmissionApproved || s.TaskID == nil {
			continue
		}
		taskID := *s.TaskID
		if s.TeamID != nil && *s.TeamID == teamID {
			teamDone[taskID] = true
		}
		if s.UserID != nil {
			if byUser[taskID] == nil {
				byUser[taskID] = make(map[string]bool)
			}
			byUser[taskID][*s.UserID] = true
		}
	}

	var r Result
	for _, task := range tasks {
		if task.IsBonus {
			continue
		}
		r.Total++
		if task.Type == models.TaskIndividual {
			if allApproved(roster, byUser[task.ID]) {
				r.Completed++
			}
			continue
		}
		if teamDone[task.ID] {
			r.Completed++
		}
	}
	r.Percent = Percent(r.Completed, r.Total)
	return r
}

// Percent returns round-half-up(100 * completed / total), or 0 when total is 0.
func Percent(completed, total int) int {
	if total <= 0 {
		return 0
	}
	return (200*completed + total) / (2 * total)
}

// NextStatus returns the team stage status implied by r. Completion wins;
// otherwise a locked stage stays locked and anything else is active.
func NextStatus(current string, r Result) string {
	if r.Complete() {
		return models.StageComplete
	}
	if current == models.StageLocked || current == "" {
		return models.StageLocked
	}
	return models.StageActive
}

func allApproved(roster []string, users map[string]bool) bool {
	if len(roster) == 0 {
		return false
	}
	for _, id := range roster {
		if !users[id] {
			return false
		}
	}
	return true
}
