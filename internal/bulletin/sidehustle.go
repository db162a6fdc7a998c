package bulletin

import (
	"fmt"
	"time"

	"github.com/zulandar/beartank/internal/models"
	"github.com/zulandar/beartank/internal/notify"
	"github.com/zulandar/beartank/internal/telegraph"
	"gorm.io/gorm"
)

// SideHustlesLink is where side hustle notifications point.
const SideHustlesLink = "/student/side-hustles"

// AnnounceOpened notifies active students of every side hustle open at now
// that has not been announced yet, and returns those side hustles. A side
// hustle counts as announced once any side-hustle notification names it.
func AnnounceOpened(db *gorm.DB, now time.Time) ([]models.Task, error) {
	var open []models.Task
	err := db.Where("category = ? AND start_at <= ? AND end_at > ?", models.CategorySideHustle, now, now).
		Order("start_at ASC").Find(&open).Error
	if err != nil {
		return nil, fmt.Errorf("bulletin: list open side hustles: %w", err)
	}

	var announced []models.Task
	for _, task := range open {
		sent := false
		err := db.Transaction(func(tx *gorm.DB) error {
			var n int64
			if err := tx.Model(&models.Notification{}).
				Where("type = ? AND source_id = ?", notify.TypeSideHustle, task.ID).
				Count(&n).Error; err != nil {
				return fmt.Errorf("bulletin: check side hustle %s: %w", task.ID, err)
			}
			if n > 0 {
				return nil
			}
			students, err := activeStudents(tx)
			if err != nil {
				return err
			}
			count, err := notify.Send(tx, students, notify.Message{
				Title:    "Side hustle open: " + task.Title,
				Body:     fmt.Sprintf("Earn %s Bear Bucks before %s.", telegraph.Bucks(int64(task.Points)), task.EndAt.Format("Mon Jan 2 15:04")),
				Link:     SideHustlesLink,
				Type:     notify.TypeSideHustle,
				SourceID: task.ID,
			})
			sent = count > 0
			return err
		})
		if err != nil {
			return announced, err
		}
		if sent {
			announced = append(announced, task)
		}
	}
	return announced, nil
}
