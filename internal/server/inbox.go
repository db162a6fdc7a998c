package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/beartank/internal/bulletin"
	"github.com/zulandar/beartank/internal/ledger"
	"github.com/zulandar/beartank/internal/notify"
	"gorm.io/gorm"
)

func handleInbox(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
		notes, err := notify.Inbox(db, currentUser(c).ID, notify.InboxOpts{
			UnreadOnly: c.Query("unread") == "true",
			Limit:      limit,
		})
		if err != nil {
			writeServerError(c, err)
			return
		}
		c.JSON(http.StatusOK, notes)
	}
}

func handleUnreadCount(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		n, err := notify.UnreadCount(db, currentUser(c).ID)
		if err != nil {
			writeServerError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"unread": n})
	}
}

func handleMarkRead(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseUint(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid notification id"})
			return
		}
		if err := notify.MarkRead(db, currentUser(c).ID, uint(id)); err != nil {
			writeError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func handleMarkAllRead(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		n, err := notify.MarkAllRead(db, currentUser(c).ID)
		if err != nil {
			writeServerError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"marked": n})
	}
}

func handleLeaderboard(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		rows, err := ledger.Leaderboard(db)
		if err != nil {
			writeServerError(c, err)
			return
		}
		if rows == nil {
			rows = []ledger.Standing{}
		}
		c.JSON(http.StatusOK, rows)
	}
}

func handleValuation(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := currentUser(c)
		total, err := ledger.UserTotal(db, user.ID)
		if err != nil {
			writeServerError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"userId": user.ID, "teamId": user.TeamID, "valuation": total})
	}
}

// handleListAnnouncements hides scheduled posts from students.
func handleListAnnouncements(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := bulletin.List(db, isStaff(currentUser(c)))
		if err != nil {
			writeServerError(c, err)
			return
		}
		c.JSON(http.StatusOK, list)
	}
}

type announcementBody struct {
	Title        string     `json:"title" binding:"required"`
	Body         string     `json:"body"`
	ScheduledFor *time.Time `json:"scheduledFor"`
}

func handleCreateAnnouncement(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body announcementBody
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		a, err := bulletin.Create(db, bulletin.CreateOpts{
			Title:        body.Title,
			Body:         body.Body,
			ScheduledFor: body.ScheduledFor,
			CreatedBy:    currentUser(c).ID,
		})
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, a)
	}
}

func handleDeleteAnnouncement(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := bulletin.Delete(db, c.Param("id")); err != nil {
			writeError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}
