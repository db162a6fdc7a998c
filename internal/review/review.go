// Package review runs a teacher's decision on a submission through every
// side effect it implies: solo team creation for a first brand kit, the
// stored decision, the published company profile, the points ledger, stage
// progress and unlocks, and the notifications.
package review

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/zulandar/beartank/internal/curriculum"
	"github.com/zulandar/beartank/internal/ledger"
	"github.com/zulandar/beartank/internal/models"
	"github.com/zulandar/beartank/internal/notify"
	"github.com/zulandar/beartank/internal/progress"
	"github.com/zulandar/beartank/internal/submission"
	"github.com/zulandar/beartank/internal/telegraph"
	"github.com/zulandar/beartank/internal/unlock"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrNotFound reports a missing submission.
	ErrNotFound = submission.ErrNotFound
	// ErrInvalidTransition reports a decision on a submission that is not
	// awaiting review.
	ErrInvalidTransition = submission.ErrInvalidTransition
	// ErrAlreadyIssued reports points issued earlier. ReviewSubmission and
	// OnApproved treat it as success.
	ErrAlreadyIssued = ledger.ErrAlreadyIssued
	// ErrInvalidRequest reports a malformed review request.
	ErrInvalidRequest = errors.New("invalid review request")
)

// Steps that may fail after the decision is stored.
const (
	StepTeamProfile = "team-profile"
	StepLedger      = "ledger"
	StepProgress    = "progress"
	StepUnlock      = "unlock"
	StepNotify      = "notify"
)

// PartialWriteError reports that the decision was stored but a later step
// failed. Repeating the same request finishes the remaining steps without
// duplicating the ones already done.
type PartialWriteError struct {
	Step string
	Err  error
}

func (e *PartialWriteError) Error() string {
	return fmt.Sprintf("review: decision saved but %s step failed: %v", e.Step, e.Err)
}

func (e *PartialWriteError) Unwrap() error { return e.Err }

// Request is a teacher's decision on one submission.
type Request struct {
	SubmissionID string
	Decision     string // approved or needs_changes
	Feedback     string
	Bonus        int
	ReviewerID   string
}

// Result describes what a review changed.
type Result struct {
	SubmissionID    string   `json:"submissionId"`
	Status          string   `json:"status"`
	PointsAwarded   int      `json:"pointsAwarded"`
	TeamID          string   `json:"teamId,omitempty"`
	StageID         string   `json:"stageId,omitempty"`
	TeamStageStatus string   `json:"newTeamStageStatus"`
	Progress        int      `json:"progress"`
	Unlocked        []string `json:"unlocked,omitempty"`
	Notified        int      `json:"notified"`
}

// Service reviews submissions.
type Service struct {
	DB        *gorm.DB
	Resolver  unlock.Resolver        // defaults to unlock.Default()
	Broadcast *telegraph.Broadcaster // optional class channel mirror
	Now       func() time.Time       // defaults to time.Now
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) resolver() unlock.Resolver {
	if s.Resolver != nil {
		return s.Resolver
	}
	return unlock.Default()
}

func (r Request) validate() error {
	var errs []string
	if r.SubmissionID == "" {
		errs = append(errs, "submission id is required")
	}
	if !submission.IsDecision(r.Decision) {
		errs = append(errs, fmt.Sprintf("decision must be %q or %q, got %q",
			models.SubmissionApproved, models.SubmissionNeedsChanges, r.Decision))
	}
	if r.Bonus < 0 {
		errs = append(errs, "bonus points must not be negative")
	}
	if r.ReviewerID == "" {
		errs = append(errs, "reviewer is required")
	}
	if len(errs) > 0 {
		return fmt.Errorf("review: %w: %s", ErrInvalidRequest, strings.Join(errs, "; "))
	}
	return nil
}

// ReviewSubmission applies a decision. A submission must be awaiting review;
// repeating the decision it already holds re-runs the follow-up steps so an
// interrupted review can be finished. Any other state fails with
// ErrInvalidTransition before anything is written.
func (s *Service) ReviewSubmission(ctx context.Context, req Request) (*Result, error) {
	if s.DB == nil {
		return nil, fmt.Errorf("review: db is required")
	}
	if err := req.validate(); err != nil {
		return nil, err
	}

	sub, err := submission.Get(s.DB, req.SubmissionID)
	if err != nil {
		return nil, err
	}
	if sub.Status != req.Decision {
		if err := submission.CheckTransition(sub.Status, req.Decision); err != nil {
			return nil, err
		}
	}

	teamID, err := s.resolveTeam(sub)
	if err != nil {
		return nil, err
	}

	approved := req.Decision == models.SubmissionApproved
	brandKit := sub.TaskType == models.TaskBrandKit
	now := s.now()

	bonus := req.Bonus
	points := 0
	if approved {
		points = sub.TaskPoints + bonus
	}

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		if approved && brandKit && teamID == "" && sub.UserID != nil {
			id, err := soloTeam(tx, *sub.UserID, sub.Content.CompanyName, req.ReviewerID)
			if err != nil {
				return err
			}
			teamID = id
		}

		updates := map[string]interface{}{
			"status":              req.Decision,
			"feedback_note":       strings.TrimSpace(req.Feedback),
			"feedback_type":       req.Decision,
			"feedback_by":         req.ReviewerID,
			"feedback_created_at": now,
			"reviewed_by":         req.ReviewerID,
			"reviewed_at":         now,
			"updated_at":          now,
		}
		if teamID != "" {
			updates["team_id"] = teamID
		}
		res := tx.Model(&models.Submission{}).
			Where("id = ? AND status IN ?", sub.ID, []string{models.SubmissionSubmitted, req.Decision}).
			Updates(updates)
		if res.Error != nil {
			return fmt.Errorf("review: save decision on %s: %w", sub.ID, res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("review: %w: %s changed while under review", ErrInvalidTransition, sub.ID)
		}

		// Once paid, the stored award stands.
		err := tx.Model(&models.Submission{}).
			Where("id = ? AND points_issued = ?", sub.ID, false).
			Updates(map[string]interface{}{"points_awarded": points, "bonus_points": bonus}).Error
		if err != nil {
			return fmt.Errorf("review: save award on %s: %w", sub.ID, err)
		}
		var stored models.Submission
		if err := tx.Select("points_awarded", "bonus_points").Where("id = ?", sub.ID).First(&stored).Error; err != nil {
			return fmt.Errorf("review: reload award on %s: %w", sub.ID, err)
		}
		points, bonus = stored.PointsAwarded, stored.BonusPoints
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Printf("review: %s %s by %s (%d points)", sub.ID, req.Decision, req.ReviewerID, points)

	sub.Status = req.Decision
	sub.PointsAwarded = points
	sub.Feedback.Note = strings.TrimSpace(req.Feedback)
	if teamID != "" {
		sub.TeamID = &teamID
	}
	result := &Result{
		SubmissionID:  sub.ID,
		Status:        req.Decision,
		PointsAwarded: points,
		TeamID:        teamID,
		StageID:       deref(sub.StageID),
	}

	if approved && brandKit && teamID != "" {
		if err := curriculum.PublishProfile(s.DB, teamID, sub.Content, now); err != nil {
			return result, &PartialWriteError{Step: StepTeamProfile, Err: err}
		}
	}

	if approved {
		paid, err := s.issue(sub, teamID, points)
		if err != nil {
			return result, &PartialWriteError{Step: StepLedger, Err: err}
		}
		sub.PointsAwarded, result.PointsAwarded = paid, paid
	}

	stage, step, err := s.recompute(sub, teamID, result)
	if err != nil {
		return result, &PartialWriteError{Step: step, Err: err}
	}

	team, recipients, err := s.recipients(sub, teamID)
	if err != nil {
		return result, &PartialWriteError{Step: StepNotify, Err: err}
	}
	n, err := notify.Send(s.DB, recipients, decisionMessage(sub))
	if err != nil {
		return result, &PartialWriteError{Step: StepNotify, Err: err}
	}
	result.Notified = n

	s.broadcast(ctx, sub, team, stage, result)
	return result, nil
}

// OnApproved is the server-side payout hook for a submission that reached
// approved by any path. It issues pointsAwarded, or the task points when no
// award was recorded. Running it alongside ReviewSubmission, or more than
// once, still issues exactly one entry. Submissions not yet approved are
// ignored.
func (s *Service) OnApproved(ctx context.Context, submissionID string) (*models.PointsLedgerEntry, error) {
	if s.DB == nil {
		return nil, fmt.Errorf("review: db is required")
	}
	sub, err := submission.Get(s.DB, submissionID)
	if err != nil {
		return nil, err
	}
	if sub.Status != models.SubmissionApproved || sub.PointsIssued {
		return nil, nil
	}
	amount := sub.PointsAwarded
	if amount == 0 {
		amount = sub.TaskPoints
	}
	teamID, err := s.resolveTeam(sub)
	if err != nil {
		return nil, err
	}
	entry, err := ledger.Issue(s.DB, payee(sub, teamID, amount))
	if errors.Is(err, ErrAlreadyIssued) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("review: payout %s: %w", sub.ID, err)
	}
	if entry != nil {
		log.Printf("review: hook issued %d to %s %s for %s", entry.Amount, entry.EntityType, entry.EntityID, sub.ID)
	}
	return entry, nil
}

// ReconcilePayouts runs OnApproved for every approved submission whose
// points were never issued, such as after a partial write. Returns how many
// entries it wrote.
func (s *Service) ReconcilePayouts(ctx context.Context) (int, error) {
	if s.DB == nil {
		return 0, fmt.Errorf("review: db is required")
	}
	var ids []string
	err := s.DB.Model(&models.Submission{}).
		Where("status = ? AND points_issued = ?", models.SubmissionApproved, false).
		Order("created_at ASC").
		Pluck("id", &ids).Error
	if err != nil {
		return 0, fmt.Errorf("review: find unpaid submissions: %w", err)
	}
	issued := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return issued, err
		}
		entry, err := s.OnApproved(ctx, id)
		if err != nil {
			return issued, err
		}
		if entry != nil {
			issued++
		}
	}
	return issued, nil
}

// issue pays out an approved submission once and returns the amount
// recorded as paid, which is the earlier payout when one beat this call.
func (s *Service) issue(sub *models.Submission, teamID string, points int) (int, error) {
	e := payee(sub, teamID, points)
	if e.EntityID == "" {
		return points, nil
	}
	entry, err := ledger.Issue(s.DB, e)
	if errors.Is(err, ErrAlreadyIssued) {
		var stored models.Submission
		if err := s.DB.Select("points_awarded").Where("id = ?", sub.ID).First(&stored).Error; err != nil {
			return points, fmt.Errorf("review: reload award on %s: %w", sub.ID, err)
		}
		return stored.PointsAwarded, nil
	}
	if err != nil {
		return points, err
	}
	if entry != nil {
		log.Printf("review: issued %d to %s %s for %s", entry.Amount, entry.EntityType, entry.EntityID, sub.ID)
	}
	return points, nil
}

// resolveTeam is the submission's team, or for a teamless submission the
// team its student belongs to now.
func (s *Service) resolveTeam(sub *models.Submission) (string, error) {
	if id := deref(sub.TeamID); id != "" {
		return id, nil
	}
	if sub.UserID == nil {
		return "", nil
	}
	user, err := curriculum.GetUser(s.DB, *sub.UserID)
	if errors.Is(err, curriculum.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("review: resolve team for %s: %w", sub.ID, err)
	}
	return deref(user.TeamID), nil
}

// payee credits the team when there is one, otherwise the student.
func payee(sub *models.Submission, teamID string, amount int) ledger.Entry {
	e := ledger.Entry{Amount: amount, Reason: ledger.ReasonTaskApproved, SourceID: sub.ID}
	if teamID != "" {
		e.EntityType, e.EntityID = models.EntityTeam, teamID
	} else {
		e.EntityType, e.EntityID = models.EntityUser, deref(sub.UserID)
	}
	return e
}

// recompute refreshes the team's progress on the submission's stage and
// unlocks what follows when it completes. Submissions without a stage, a
// team or a surviving stage row are skipped. Returns the stage for display
// and, on error, the step that failed.
func (s *Service) recompute(sub *models.Submission, teamID string, result *Result) (*models.Stage, string, error) {
	if sub.StageID == nil || teamID == "" {
		return nil, "", nil
	}

	stage, err := curriculum.GetStage(s.DB, *sub.StageID)
	if errors.Is(err, curriculum.ErrNotFound) {
		return nil, "", nil
	}
	if err != nil {
		return nil, StepProgress, err
	}
	team, err := curriculum.GetTeam(s.DB, teamID)
	if errors.Is(err, curriculum.ErrNotFound) {
		return stage, "", nil
	}
	if err != nil {
		return stage, StepProgress, err
	}

	var current models.TeamStage
	err = s.DB.Where("team_id = ? AND stage_id = ?", teamID, stage.ID).First(&current).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		current = models.TeamStage{TeamID: teamID, StageID: stage.ID, Order: stage.Order, Status: models.StageLocked}
	case err != nil:
		return stage, StepProgress, fmt.Errorf("review: load team stage %s/%s: %w", teamID, stage.ID, err)
	}

	tasks, err := curriculum.ListTasks(s.DB, curriculum.TaskFilters{StageID: stage.ID})
	if err != nil {
		return stage, StepProgress, err
	}
	var taskIDs []string
	for _, t := range tasks {
		if !t.IsBonus {
			taskIDs = append(taskIDs, t.ID)
		}
	}
	if len(taskIDs) == 0 {
		result.TeamStageStatus = current.Status
		result.Progress = current.Progress
		return stage, "", nil
	}

	var approved []models.Submission
	err = s.DB.Where("task_id IN ? AND status = ?", taskIDs, models.SubmissionApproved).Find(&approved).Error
	if err != nil {
		return stage, StepProgress, fmt.Errorf("review: approved submissions for %s: %w", stage.ID, err)
	}

	r := progress.Compute(teamID, team.MemberIDs(), tasks, approved)
	next := progress.NextStatus(current.Status, r)
	row := models.TeamStage{
		TeamID:   teamID,
		StageID:  stage.ID,
		Order:    stage.Order,
		Status:   next,
		Progress: r.Percent,
	}
	err = s.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "team_id"}, {Name: "stage_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"status", "progress", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return stage, StepProgress, fmt.Errorf("review: save progress %s/%s: %w", teamID, stage.ID, err)
	}
	result.TeamStageStatus = next
	result.Progress = r.Percent

	if next != models.StageComplete {
		return stage, "", nil
	}
	unlocked, err := unlock.Cascade(s.DB, s.resolver(), teamID, *stage)
	if err != nil {
		return stage, StepUnlock, err
	}
	result.Unlocked = unlocked
	if len(unlocked) > 0 {
		log.Printf("review: team %s completed %s, unlocked %v", teamID, stage.ID, unlocked)
	}
	return stage, "", nil
}

// recipients is the whole team when there is one, otherwise the student.
func (s *Service) recipients(sub *models.Submission, teamID string) (*models.Team, []string, error) {
	if teamID != "" {
		team, err := curriculum.GetTeam(s.DB, teamID)
		if err == nil {
			return team, team.MemberIDs(), nil
		}
		if !errors.Is(err, curriculum.ErrNotFound) {
			return nil, nil, err
		}
	}
	if sub.UserID != nil {
		return nil, []string{*sub.UserID}, nil
	}
	return nil, nil, nil
}

func (s *Service) broadcast(ctx context.Context, sub *models.Submission, team *models.Team, stage *models.Stage, result *Result) {
	if s.Broadcast.Len() == 0 {
		return
	}
	evt := telegraph.ReviewEvent{
		CompanyName:   sub.Content.CompanyName,
		TaskTitle:     subjectOf(sub),
		Decision:      result.Status,
		PointsAwarded: result.PointsAwarded,
		StageStatus:   result.TeamStageStatus,
	}
	if team != nil {
		evt.CompanyName = team.CompanyName
	}
	if stage != nil {
		evt.StageTitle = stage.Title
	}
	for _, id := range result.Unlocked {
		if st, err := curriculum.GetStage(s.DB, id); err == nil {
			evt.Unlocked = append(evt.Unlocked, st.Title)
		} else {
			evt.Unlocked = append(evt.Unlocked, id)
		}
	}
	s.Broadcast.Publish(ctx, telegraph.OutboundMessage{
		Events: []telegraph.FormattedEvent{telegraph.FormatReview(evt)},
	})
}

// soloTeam puts a teamless student on a team of their own, named after the
// brand kit's company. A team assigned since submission wins.
func soloTeam(tx *gorm.DB, userID, companyName, reviewerID string) (string, error) {
	var user models.User
	if err := tx.Where("id = ?", userID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", fmt.Errorf("review: brand kit owner %w: %s", ErrNotFound, userID)
		}
		return "", fmt.Errorf("review: load brand kit owner %s: %w", userID, err)
	}
	if user.TeamID != nil && *user.TeamID != "" {
		return *user.TeamID, nil
	}
	name := strings.TrimSpace(companyName)
	if name == "" {
		name = "Solo Team"
	}
	team, err := curriculum.CreateTeam(tx, curriculum.CreateTeamOpts{
		CompanyName: name,
		MemberIDs:   []string{userID},
		CreatedBy:   reviewerID,
	})
	if err != nil {
		return "", fmt.Errorf("review: create solo team for %s: %w", userID, err)
	}
	log.Printf("review: created solo team %s (%s) for %s", team.ID, name, userID)
	return team.ID, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
