package curriculum

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/zulandar/beartank/internal/models"
	"gorm.io/gorm"
)

// CreateTaskOpts holds parameters for creating a task.
type CreateTaskOpts struct {
	StageID     string // required unless Category is side_hustle
	Title       string
	Description string
	Type        string // team (default) or individual
	Points      int
	IsBonus     bool
	Order       int
	Category    string
	StartAt     *time.Time
	EndAt       *time.Time
}

// UpdateTaskOpts holds the fields an edit may change. Nil fields are kept.
type UpdateTaskOpts struct {
	Title       *string
	Description *string
	Type        *string
	Points      *int
	IsBonus     *bool
	Order       *int
	StartAt     *time.Time
	EndAt       *time.Time
}

// TaskFilters holds optional filters for listing tasks.
type TaskFilters struct {
	StageID  string
	Category string
}

// CreateTask creates a stage task or a side hustle. Side hustles are team
// bonus tasks with a required schedule and no stage.
func CreateTask(db *gorm.DB, opts CreateTaskOpts) (*models.Task, error) {
	title := strings.TrimSpace(opts.Title)
	if title == "" {
		return nil, fmt.Errorf("curriculum: %w: task title is required", ErrInvalid)
	}
	typ := opts.Type
	if typ == "" {
		typ = models.TaskTeam
	}
	if typ != models.TaskTeam && typ != models.TaskIndividual {
		return nil, fmt.Errorf("curriculum: %w: invalid task type %q (team, individual)", ErrInvalid, typ)
	}
	if opts.Points < 0 {
		return nil, fmt.Errorf("curriculum: %w: points must not be negative", ErrInvalid)
	}

	task := models.Task{
		ID:          uuid.NewString(),
		Title:       title,
		Description: strings.TrimSpace(opts.Description),
		Type:        typ,
		Points:      opts.Points,
		IsBonus:     opts.IsBonus,
		Order:       opts.Order,
		Category:    opts.Category,
	}

	switch opts.Category {
	case models.CategorySideHustle:
		if opts.StartAt == nil || opts.EndAt == nil {
			return nil, fmt.Errorf("curriculum: %w: side hustle needs a start and end time", ErrInvalid)
		}
		if !opts.EndAt.After(*opts.StartAt) {
			return nil, fmt.Errorf("curriculum: %w: side hustle must end after it starts", ErrInvalid)
		}
		task.Type = models.TaskTeam
		task.IsBonus = true
		task.StartAt = opts.StartAt
		task.EndAt = opts.EndAt
	case "":
		if opts.StageID == "" {
			return nil, fmt.Errorf("curriculum: %w: stage id is required", ErrInvalid)
		}
		if _, err := GetStage(db, opts.StageID); err != nil {
			return nil, err
		}
		task.StageID = &opts.StageID
	default:
		return nil, fmt.Errorf("curriculum: %w: unknown task category %q", ErrInvalid, opts.Category)
	}

	if err := db.Create(&task).Error; err != nil {
		return nil, fmt.Errorf("curriculum: create task: %w", err)
	}
	return &task, nil
}

// GetTask retrieves a task by id.
func GetTask(db *gorm.DB, id string) (*models.Task, error) {
	var t models.Task
	if err := db.Where("id = ?", id).First(&t).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("curriculum: task %w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("curriculum: get task %s: %w", id, err)
	}
	return &t, nil
}

// ListTasks returns tasks matching filters in display order. Side hustles
// are ordered by start time.
func ListTasks(db *gorm.DB, filters TaskFilters) ([]models.Task, error) {
	q := db.Model(&models.Task{})
	if filters.StageID != "" {
		q = q.Where("stage_id = ?", filters.StageID)
	}
	if filters.Category != "" {
		q = q.Where("category = ?", filters.Category)
	}
	order := "position ASC, created_at ASC"
	if filters.Category == models.CategorySideHustle {
		order = "start_at ASC"
	}
	var tasks []models.Task
	if err := q.Order(order).Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("curriculum: list tasks: %w", err)
	}
	return tasks, nil
}

// UpdateTask edits a task. Submissions keep the title and points they were
// made against.
func UpdateTask(db *gorm.DB, id string, opts UpdateTaskOpts) (*models.Task, error) {
	task, err := GetTask(db, id)
	if err != nil {
		return nil, err
	}
	var cols []string
	if opts.Title != nil {
		t := strings.TrimSpace(*opts.Title)
		if t == "" {
			return nil, fmt.Errorf("curriculum: %w: task title is required", ErrInvalid)
		}
		task.Title = t
		cols = append(cols, "title")
	}
	if opts.Description != nil {
		task.Description = strings.TrimSpace(*opts.Description)
		cols = append(cols, "description")
	}
	if opts.Type != nil {
		if *opts.Type != models.TaskTeam && *opts.Type != models.TaskIndividual {
			return nil, fmt.Errorf("curriculum: %w: invalid task type %q (team, individual)", ErrInvalid, *opts.Type)
		}
		task.Type = *opts.Type
		cols = append(cols, "type")
	}
	if opts.Points != nil {
		if *opts.Points < 0 {
			return nil, fmt.Errorf("curriculum: %w: points must not be negative", ErrInvalid)
		}
		task.Points = *opts.Points
		cols = append(cols, "points")
	}
	if opts.IsBonus != nil {
		task.IsBonus = *opts.IsBonus
		cols = append(cols, "is_bonus")
	}
	if opts.Order != nil {
		task.Order = *opts.Order
		cols = append(cols, "position")
	}
	if opts.StartAt != nil {
		task.StartAt = opts.StartAt
		cols = append(cols, "start_at")
	}
	if opts.EndAt != nil {
		task.EndAt = opts.EndAt
		cols = append(cols, "end_at")
	}
	if task.Category == models.CategorySideHustle && !task.EndAt.After(*task.StartAt) {
		return nil, fmt.Errorf("curriculum: %w: side hustle must end after it starts", ErrInvalid)
	}
	if len(cols) == 0 {
		return task, nil
	}
	if err := db.Model(task).Select(cols).Updates(task).Error; err != nil {
		return nil, fmt.Errorf("curriculum: update task %s: %w", id, err)
	}
	return task, nil
}

// DeleteTask removes a task. Its submissions are kept.
func DeleteTask(db *gorm.DB, id string) error {
	res := db.Where("id = ?", id).Delete(&models.Task{})
	if res.Error != nil {
		return fmt.Errorf("curriculum: delete task %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("curriculum: task %w: %s", ErrNotFound, id)
	}
	return nil
}
