// Package submission provides the submission lifecycle: creating and
// resubmitting work, and the review state machine that guards decisions.
package submission

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/zulandar/beartank/internal/models"
	"gorm.io/gorm"
)

var (
	// ErrNotFound reports a missing submission, task, user, team or stage.
	ErrNotFound = errors.New("not found")
	// ErrInvalidTransition reports a status change the state machine forbids.
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrInvalid reports a submission the student must correct.
	ErrInvalid = errors.New("invalid input")
)

// ValidTransitions maps each status to the statuses it may move to.
// Approved is terminal for a revision.
var ValidTransitions = map[string][]string{
	models.SubmissionSubmitted:    {models.SubmissionApproved, models.SubmissionNeedsChanges},
	models.SubmissionNeedsChanges: {models.SubmissionSubmitted},
}

// BrandKitTitle is the task title recorded on brand kit submissions.
const BrandKitTitle = "Brand kit"

// IsDecision reports whether s is a reviewer decision.
func IsDecision(s string) bool {
	return s == models.SubmissionApproved || s == models.SubmissionNeedsChanges
}

// CanTransition reports whether a submission may move from one status to another.
func CanTransition(from, to string) bool {
	for _, v := range ValidTransitions[from] {
		if v == to {
			return true
		}
	}
	return false
}

// CheckTransition returns a wrapped ErrInvalidTransition when from -> to is
// not allowed.
func CheckTransition(from, to string) error {
	if CanTransition(from, to) {
		return nil
	}
	return fmt.Errorf("submission: %w from %q to %q; valid transitions: %v",
		ErrInvalidTransition, from, to, ValidTransitions[from])
}

// SubmitOpts holds parameters for submitting work on a task.
type SubmitOpts struct {
	TaskID  string
	UserID  string
	Content models.SubmissionContent
	Now     time.Time // defaults to time.Now()
}

// Submit creates the submission for a task, or resubmits the existing one.
// Team tasks keep one submission per team, individual tasks one per user.
// Resubmission keeps the id and created time, resets status to submitted and
// picks up the student's current team.
func Submit(db *gorm.DB, opts SubmitOpts) (*models.Submission, error) {
	if opts.TaskID == "" {
		return nil, fmt.Errorf("submission: %w: task id is required", ErrInvalid)
	}
	if opts.UserID == "" {
		return nil, fmt.Errorf("submission: %w: user id is required", ErrInvalid)
	}
	if strings.TrimSpace(opts.Content.TimelineNote) == "" {
		return nil, fmt.Errorf("submission: %w: timeline note is required", ErrInvalid)
	}
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}

	user, err := loadUser(db, opts.UserID)
	if err != nil {
		return nil, err
	}
	var task models.Task
	if err := db.Where("id = ?", opts.TaskID).First(&task).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("submission: task %w: %s", ErrNotFound, opts.TaskID)
		}
		return nil, fmt.Errorf("submission: get task %s: %w", opts.TaskID, err)
	}
	if task.Category == models.CategorySideHustle && !OpenAt(task, now) {
		return nil, fmt.Errorf("submission: %w: side hustle %q is not open", ErrInvalid, task.Title)
	}

	q := db.Where("task_id = ?", task.ID)
	var teamID, userID *string
	if task.Type == models.TaskIndividual {
		userID = &user.ID
		teamID = user.TeamID
		q = q.Where("user_id = ?", user.ID)
	} else {
		if user.TeamID == nil {
			return nil, fmt.Errorf("submission: %w: join a team before submitting team task %q", ErrInvalid, task.Title)
		}
		teamID = user.TeamID
		q = q.Where("team_id = ?", *user.TeamID)
	}

	var existing models.Submission
	err = q.First(&existing).Error
	switch {
	case err == nil:
		if existing.Status != models.SubmissionSubmitted {
			if err := CheckTransition(existing.Status, models.SubmissionSubmitted); err != nil {
				return nil, err
			}
		}
		updates := models.Submission{
			Status:      models.SubmissionSubmitted,
			Content:     opts.Content,
			SubmittedBy: user.ID,
			TeamID:      teamID,
			TaskTitle:   task.Title,
			TaskType:    task.Type,
			TaskPoints:  task.Points,
			UpdatedAt:   now,
		}
		err := db.Model(&existing).
			Select("status", "content", "submitted_by", "team_id", "task_title", "task_type", "task_points", "updated_at").
			Updates(updates).Error
		if err != nil {
			return nil, fmt.Errorf("submission: resubmit %s: %w", existing.ID, err)
		}
		return Get(db, existing.ID)
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, fmt.Errorf("submission: find existing for task %s: %w", task.ID, err)
	}

	sub := models.Submission{
		ID:          uuid.NewString(),
		TaskID:      &task.ID,
		TaskTitle:   task.Title,
		TaskType:    task.Type,
		TaskPoints:  task.Points,
		StageID:     task.StageID,
		TeamID:      teamID,
		UserID:      userID,
		SubmittedBy: user.ID,
		Status:      models.SubmissionSubmitted,
		Content:     opts.Content,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := db.Create(&sub).Error; err != nil {
		return nil, fmt.Errorf("submission: create: %w", err)
	}
	return &sub, nil
}

// SubmitBrandKit creates or resubmits a user's brand kit. A kit already
// awaiting review cannot be submitted again.
func SubmitBrandKit(db *gorm.DB, userID string, content models.SubmissionContent) (*models.Submission, error) {
	if strings.TrimSpace(content.CompanyName) == "" {
		return nil, fmt.Errorf("submission: %w: company name is required", ErrInvalid)
	}
	user, err := loadUser(db, userID)
	if err != nil {
		return nil, err
	}

	var existing models.Submission
	err = db.Where("task_type = ? AND user_id = ?", models.TaskBrandKit, user.ID).
		Order("created_at DESC").First(&existing).Error
	switch {
	case err == nil:
		if existing.Status == models.SubmissionSubmitted {
			return nil, fmt.Errorf("submission: %w: brand kit is already in review", ErrInvalid)
		}
		if err := CheckTransition(existing.Status, models.SubmissionSubmitted); err != nil {
			return nil, err
		}
		updates := models.Submission{
			Status:      models.SubmissionSubmitted,
			Content:     content,
			SubmittedBy: user.ID,
			TeamID:      user.TeamID,
		}
		err := db.Model(&existing).
			Select("status", "content", "submitted_by", "team_id").
			Updates(updates).Error
		if err != nil {
			return nil, fmt.Errorf("submission: resubmit brand kit %s: %w", existing.ID, err)
		}
		return Get(db, existing.ID)
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, fmt.Errorf("submission: find brand kit for %s: %w", user.ID, err)
	}

	sub := models.Submission{
		ID:          uuid.NewString(),
		TaskTitle:   BrandKitTitle,
		TaskType:    models.TaskBrandKit,
		TeamID:      user.TeamID,
		UserID:      &user.ID,
		SubmittedBy: user.ID,
		Status:      models.SubmissionSubmitted,
		Content:     content,
	}
	if err := db.Create(&sub).Error; err != nil {
		return nil, fmt.Errorf("submission: create brand kit: %w", err)
	}
	return &sub, nil
}

// Get retrieves a submission by id.
func Get(db *gorm.DB, id string) (*models.Submission, error) {
	var sub models.Submission
	if err := db.Where("id = ?", id).First(&sub).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("submission: %w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("submission: get %s: %w", id, err)
	}
	return &sub, nil
}

// ListFilters holds optional filters for listing submissions.
type ListFilters struct {
	Status string
	TeamID string
	UserID string
	TaskID string
}

// List returns submissions matching filters, oldest first so the review
// queue is first come first served.
func List(db *gorm.DB, filters ListFilters) ([]models.Submission, error) {
	q := db.Model(&models.Submission{})
	if filters.Status != "" {
		q = q.Where("status = ?", filters.Status)
	}
	if filters.TeamID != "" {
		q = q.Where("team_id = ?", filters.TeamID)
	}
	if filters.UserID != "" {
		q = q.Where("user_id = ? OR submitted_by = ?", filters.UserID, filters.UserID)
	}
	if filters.TaskID != "" {
		q = q.Where("task_id = ?", filters.TaskID)
	}

	var subs []models.Submission
	if err := q.Order("created_at ASC").Find(&subs).Error; err != nil {
		return nil, fmt.Errorf("submission: list: %w", err)
	}
	return subs, nil
}

// OpenAt reports whether a side hustle accepts submissions at t. The window
// is inclusive of start and exclusive of end.
func OpenAt(task models.Task, t time.Time) bool {
	if task.StartAt == nil || task.EndAt == nil {
		return false
	}
	return !t.Before(*task.StartAt) && t.Before(*task.EndAt)
}

func loadUser(db *gorm.DB, id string) (*models.User, error) {
	var user models.User
	if err := db.Where("id = ?", id).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("submission: user %w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("submission: get user %s: %w", id, err)
	}
	return &user, nil
}
