// Package bulletin publishes class-wide news: teacher announcements, side
// hustle openings and the weekly valuation digest.
package bulletin

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/zulandar/beartank/internal/models"
	"github.com/zulandar/beartank/internal/notify"
	"gorm.io/gorm"
)

// AnnouncementsLink is where announcement notifications point.
const AnnouncementsLink = "/student/announcements"

var (
	// ErrNotFound reports a missing announcement.
	ErrNotFound = errors.New("not found")
	// ErrInvalid reports an announcement missing required fields.
	ErrInvalid = errors.New("invalid input")
)

// CreateOpts holds parameters for posting an announcement.
type CreateOpts struct {
	Title        string
	Body         string
	ScheduledFor *time.Time // nil publishes now
	CreatedBy    string
	Now          time.Time // defaults to time.Now()
}

// Create posts an announcement. One that is unscheduled or already due is
// published at once; a future one waits for PublishDue.
func Create(db *gorm.DB, opts CreateOpts) (*models.Announcement, error) {
	title := strings.TrimSpace(opts.Title)
	if title == "" {
		return nil, fmt.Errorf("bulletin: %w: title is required", ErrInvalid)
	}
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	a := models.Announcement{
		ID:           uuid.NewString(),
		Title:        title,
		Body:         strings.TrimSpace(opts.Body),
		ScheduledFor: opts.ScheduledFor,
		CreatedBy:    opts.CreatedBy,
	}
	if err := db.Create(&a).Error; err != nil {
		return nil, fmt.Errorf("bulletin: create announcement: %w", err)
	}
	if a.ScheduledFor != nil && a.ScheduledFor.After(now) {
		return &a, nil
	}
	if _, err := Publish(db, a.ID, now); err != nil {
		return &a, err
	}
	return Get(db, a.ID)
}

// Publish marks an announcement published and notifies every active
// student. Only the first call for an announcement does anything; it
// reports whether this call published.
func Publish(db *gorm.DB, id string, now time.Time) (bool, error) {
	published := false
	err := db.Transaction(func(tx *gorm.DB) error {
		var a models.Announcement
		if err := tx.Where("id = ?", id).First(&a).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("bulletin: announcement %w: %s", ErrNotFound, id)
			}
			return fmt.Errorf("bulletin: get announcement %s: %w", id, err)
		}
		res := tx.Model(&models.Announcement{}).
			Where("id = ? AND published_at IS NULL", id).
			Update("published_at", now)
		if res.Error != nil {
			return fmt.Errorf("bulletin: mark %s published: %w", id, res.Error)
		}
		if res.RowsAffected == 0 {
			return nil
		}
		students, err := activeStudents(tx)
		if err != nil {
			return err
		}
		_, err = notify.Send(tx, students, notify.Message{
			Title:    a.Title,
			Body:     a.Body,
			Link:     AnnouncementsLink,
			Type:     notify.TypeAnnouncement,
			SourceID: a.ID,
		})
		if err != nil {
			return err
		}
		published = true
		return nil
	})
	return published, err
}

// PublishDue publishes every scheduled announcement due by now and returns
// the ones this call published.
func PublishDue(db *gorm.DB, now time.Time) ([]models.Announcement, error) {
	var due []models.Announcement
	err := db.Where("published_at IS NULL AND scheduled_for IS NOT NULL AND scheduled_for <= ?", now).
		Order("scheduled_for ASC").Find(&due).Error
	if err != nil {
		return nil, fmt.Errorf("bulletin: list due announcements: %w", err)
	}
	var out []models.Announcement
	for _, a := range due {
		ok, err := Publish(db, a.ID, now)
		if err != nil {
			return out, err
		}
		if ok {
			a.PublishedAt = &now
			out = append(out, a)
		}
	}
	return out, nil
}

// Get retrieves an announcement by id.
func Get(db *gorm.DB, id string) (*models.Announcement, error) {
	var a models.Announcement
	if err := db.Where("id = ?", id).First(&a).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("bulletin: announcement %w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("bulletin: get announcement %s: %w", id, err)
	}
	return &a, nil
}

// List returns announcements newest first. Students see published ones
// only; teachers pass includeScheduled to see the queue.
func List(db *gorm.DB, includeScheduled bool) ([]models.Announcement, error) {
	q := db.Model(&models.Announcement{})
	if !includeScheduled {
		q = q.Where("published_at IS NOT NULL")
	}
	var out []models.Announcement
	if err := q.Order("COALESCE(published_at, scheduled_for) DESC, created_at DESC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("bulletin: list announcements: %w", err)
	}
	return out, nil
}

// Delete removes an announcement. Notifications already sent stay.
func Delete(db *gorm.DB, id string) error {
	res := db.Where("id = ?", id).Delete(&models.Announcement{})
	if res.Error != nil {
		return fmt.Errorf("bulletin: delete announcement %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("bulletin: announcement %w: %s", ErrNotFound, id)
	}
	return nil
}

func activeStudents(db *gorm.DB) ([]string, error) {
	var ids []string
	err := db.Model(&models.User{}).
		Where("role = ? AND status = ?", models.RoleStudent, models.UserActive).
		Order("id ASC").Pluck("id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("bulletin: list active students: %w", err)
	}
	return ids, nil
}
