package curriculum

import (
	"fmt"
	"time"

	"github.com/zulandar/beartank/internal/models"
	"gorm.io/gorm"
)

// StageSummary aggregates every team's standing in one stage.
type StageSummary struct {
	StageID  string `json:"stageId"`
	Title    string `json:"title"`
	Order    int    `json:"order"`
	Complete int    `json:"complete"`
	Active   int    `json:"active"`
	Locked   int    `json:"locked"`
	Progress int    `json:"progress"` // mean progress across teams
}

// Summary is the teacher's class overview.
type Summary struct {
	Stages           []StageSummary `json:"stages"`
	Teams            int            `json:"teams"`
	OverallProgress  int            `json:"overallProgress"`
	PendingByTeam    map[string]int `json:"pendingByTeam"`
	TeamsBlocked     int            `json:"teamsBlocked"`
	SubmissionsToday int            `json:"submissionsToday"`
}

// Analytics builds the class overview as of now. A team stage in an unknown
// status counts as locked. Averages round half up; with no teams they are 0.
func Analytics(db *gorm.DB, now time.Time) (*Summary, error) {
	stages, err := ListStages(db)
	if err != nil {
		return nil, err
	}
	var teams int64
	if err := db.Model(&models.Team{}).Count(&teams).Error; err != nil {
		return nil, fmt.Errorf("curriculum: count teams: %w", err)
	}
	var rows []models.TeamStage
	if err := db.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("curriculum: list team stages: %w", err)
	}

	byStage := make(map[string]*StageSummary, len(stages))
	sums := make(map[string]int, len(stages))
	sum := &Summary{Teams: int(teams), PendingByTeam: map[string]int{}}
	for _, s := range stages {
		sum.Stages = append(sum.Stages, StageSummary{StageID: s.ID, Title: s.Title, Order: s.Order})
	}
	for i := range sum.Stages {
		byStage[sum.Stages[i].StageID] = &sum.Stages[i]
	}

	total := 0
	for _, ts := range rows {
		ss, ok := byStage[ts.StageID]
		if !ok {
			continue
		}
		switch ts.Status {
		case models.StageComplete:
			ss.Complete++
		case models.StageActive:
			ss.Active++
		default:
			ss.Locked++
		}
		sums[ts.StageID] += ts.Progress
		total += ts.Progress
	}
	for i := range sum.Stages {
		sum.Stages[i].Progress = roundDiv(sums[sum.Stages[i].StageID], int(teams))
	}
	sum.OverallProgress = roundDiv(total, int(teams)*len(stages))

	var pending []models.Submission
	if err := db.Select("team_id").Where("status = ? AND team_id IS NOT NULL", models.SubmissionSubmitted).
		Find(&pending).Error; err != nil {
		return nil, fmt.Errorf("curriculum: pending submissions: %w", err)
	}
	for _, p := range pending {
		sum.PendingByTeam[*p.TeamID]++
	}
	sum.TeamsBlocked = len(sum.PendingByTeam)

	y, m, d := now.Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	var today int64
	if err := db.Model(&models.Submission{}).Where("created_at >= ?", midnight).Count(&today).Error; err != nil {
		return nil, fmt.Errorf("curriculum: count today's submissions: %w", err)
	}
	sum.SubmissionsToday = int(today)
	return sum, nil
}

func roundDiv(n, d int) int {
	if d <= 0 {
		return 0
	}
	return (2*n + d) / (2 * d)
}
