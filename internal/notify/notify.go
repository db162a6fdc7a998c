// Package notify writes and reads per-user in-app notifications.
package notify

import (
	"errors"
	"fmt"
	"time"

	"github.com/zulandar/beartank/internal/models"
	"gorm.io/gorm"
)

// Notification types.
const (
	TypeTaskApproved     = "task-approved"
	TypeTaskNeedsChanges = "task-needs-changes"
	TypeAnnouncement     = "announcement"
	TypeSideHustle       = "side-hustle"
)

// ErrNotFound reports a notification that does not exist for the user.
var ErrNotFound = errors.New("notify: notification not found")

// ErrInvalid reports a malformed message or query.
var ErrInvalid = errors.New("invalid input")

// Message is the content delivered to every recipient.
type Message struct {
	Title    string
	Body     string
	Link     string
	Type     string
	SourceID string
}

// Send writes one notification per distinct recipient and returns how many
// rows were written. Empty ids are skipped.
func Send(db *gorm.DB, userIDs []string, msg Message) (int, error) {
	if msg.Title == "" {
		return 0, fmt.Errorf("notify: %w: title is required", ErrInvalid)
	}
	if msg.Type == "" {
		return 0, fmt.Errorf("notify: %w: type is required", ErrInvalid)
	}

	now := time.Now()
	seen := make(map[string]bool, len(userIDs))
	var rows []models.Notification
	for _, id := range userIDs {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		rows = append(rows, models.Notification{
			UserID:    id,
			Title:     msg.Title,
			Message:   msg.Body,
			Link:      msg.Link,
			Type:      msg.Type,
			SourceID:  msg.SourceID,
			CreatedAt: now,
		})
	}
	if len(rows) == 0 {
		return 0, nil
	}
	if err := db.Create(&rows).Error; err != nil {
		return 0, fmt.Errorf("notify: send %s: %w", msg.Type, err)
	}
	return len(rows), nil
}

// InboxOpts filters an inbox listing.
type InboxOpts struct {
	UnreadOnly bool
	Limit      int // 0 means no limit
}

// Inbox returns a user's notifications, newest first.
func Inbox(db *gorm.DB, userID string, opts InboxOpts) ([]models.Notification, error) {
	if userID == "" {
		return nil, fmt.Errorf("notify: %w: user id is required", ErrInvalid)
	}
	q := db.Where("user_id = ?", userID)
	if opts.UnreadOnly {
		q = q.Where("is_read = ?", false)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	var out []models.Notification
	if err := q.Order("created_at DESC, id DESC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("notify: inbox %s: %w", userID, err)
	}
	return out, nil
}

// UnreadCount returns how many of a user's notifications are unread.
func UnreadCount(db *gorm.DB, userID string) (int64, error) {
	var n int64
	err := db.Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("notify: unread count %s: %w", userID, err)
	}
	return n, nil
}

// MarkRead marks one of the user's notifications read. Marking an already
// read notification succeeds.
func MarkRead(db *gorm.DB, userID string, id uint) error {
	res := db.Model(&models.Notification{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("is_read", true)
	if res.Error != nil {
		return fmt.Errorf("notify: mark read %d: %w", id, res.Error)
	}
	if res.RowsAffected > 0 {
		return nil
	}
	var n int64
	if err := db.Model(&models.Notification{}).Where("id = ? AND user_id = ?", id, userID).Count(&n).Error; err != nil {
		return fmt.Errorf("notify: mark read %d: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	return nil
}

// MarkAllRead marks every unread notification for the user read and returns
// how many changed.
func MarkAllRead(db *gorm.DB, userID string) (int64, error) {
	res := db.Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Update("is_read", true)
	if res.Error != nil {
		return 0, fmt.Errorf("notify: mark all read %s: %w", userID, res.Error)
	}
	return res.RowsAffected, nil
}
