package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/beartank/internal/models"
	"github.com/zulandar/beartank/internal/review"
	"github.com/zulandar/beartank/internal/submission"
	"gorm.io/gorm"
)

func registerRoutes(router *gin.Engine, db *gorm.DB, svc *review.Service, secret string) {
	router.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api", requireIdentity(db, secret))
	api.GET("/me", handleMe())

	// Everything past here needs an active account.
	member := api.Group("", requireRole(models.RoleStudent, models.RoleTeacher))
	member.GET("/stages", handleListStages(db))
	member.GET("/tasks", handleListTasks(db))
	member.GET("/side-hustles", handleListSideHustles(db))
	member.POST("/tasks/:id/submissions", handleSubmit(db))
	member.POST("/brand-kit", handleSubmitBrandKit(db))
	member.GET("/submissions", handleListSubmissions(db))
	member.GET("/submissions/:id", handleGetSubmission(db))
	member.GET("/teams/:id/stages", handleTeamStages(db))
	member.GET("/teams/:id/profile", handleTeamProfile(db))
	member.GET("/leaderboard", handleLeaderboard(db))
	member.GET("/me/valuation", handleValuation(db))
	member.GET("/notifications", handleInbox(db))
	member.GET("/notifications/unread-count", handleUnreadCount(db))
	member.POST("/notifications/:id/read", handleMarkRead(db))
	member.POST("/notifications/read-all", handleMarkAllRead(db))
	member.GET("/announcements", handleListAnnouncements(db))
	member.POST("/team-requests", handleRequestTeam(db))

	staff := api.Group("", requireRole(models.RoleTeacher))
	staff.POST("/submissions/:id/review", handleReview(svc))
	staff.POST("/stages", handleCreateStage(db))
	staff.PATCH("/stages/:id", handleUpdateStage(db))
	staff.DELETE("/stages/:id", handleDeleteStage(db))
	staff.POST("/stages/:id/status", handleSetStageStatus(db))
	staff.POST("/tasks", handleCreateTask(db))
	staff.PATCH("/tasks/:id", handleUpdateTask(db))
	staff.DELETE("/tasks/:id", handleDeleteTask(db))
	staff.GET("/teams", handleListTeams(db))
	staff.POST("/teams", handleCreateTeam(db))
	staff.GET("/teams/:id", handleGetTeam(db))
	staff.POST("/teams/:id/members", handleAddMember(db))
	staff.GET("/teams/:id/ledger", handleTeamLedger(db))
	staff.GET("/team-requests", handleListRequests(db))
	staff.POST("/team-requests/:id/approve", handleApproveRequest(db))
	staff.POST("/team-requests/:id/reject", handleRejectRequest(db))
	staff.POST("/announcements", handleCreateAnnouncement(db))
	staff.DELETE("/announcements/:id", handleDeleteAnnouncement(db))
	staff.GET("/users", handleListUsers(db))
	staff.GET("/analytics", handleAnalytics(db))

	admin := api.Group("/admin", requireRole())
	admin.GET("/teachers", handleListTeachers(db))
	admin.POST("/teachers/:id/activate", handleActivateTeacher(db))
}

func handleMe() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, currentUser(c))
	}
}

func handleSubmit(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var content models.SubmissionContent
		if err := c.ShouldBindJSON(&content); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		sub, err := submission.Submit(db, submission.SubmitOpts{
			TaskID:  c.Param("id"),
			UserID:  currentUser(c).ID,
			Content: content,
		})
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, sub)
	}
}

func handleSubmitBrandKit(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var content models.SubmissionContent
		if err := c.ShouldBindJSON(&content); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		sub, err := submission.SubmitBrandKit(db, currentUser(c).ID, content)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, sub)
	}
}

// handleListSubmissions serves the review queue to staff. Students see
// their own work and their team's team tasks.
func handleListSubmissions(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := currentUser(c)
		filters := submission.ListFilters{
			Status: c.Query("status"),
			TeamID: c.Query("team"),
			UserID: c.Query("user"),
			TaskID: c.Query("task"),
		}
		if isStaff(user) {
			subs, err := submission.List(db, filters)
			if err != nil {
				writeServerError(c, err)
				return
			}
			c.JSON(http.StatusOK, subs)
			return
		}

		filters.TeamID = ""
		filters.UserID = user.ID
		own, err := submission.List(db, filters)
		if err != nil {
			writeServerError(c, err)
			return
		}
		if user.TeamID == nil {
			c.JSON(http.StatusOK, own)
			return
		}
		filters.UserID = ""
		filters.TeamID = *user.TeamID
		team, err := submission.List(db, filters)
		if err != nil {
			writeServerError(c, err)
			return
		}
		c.JSON(http.StatusOK, mergeSubmissions(own, team))
	}
}

func mergeSubmissions(own, team []models.Submission) []models.Submission {
	seen := make(map[string]bool, len(own))
	out := append([]models.Submission{}, own...)
	for _, s := range own {
		seen[s.ID] = true
	}
	for _, s := range team {
		if seen[s.ID] || s.TaskType != models.TaskTeam {
			continue
		}
		out = append(out, s)
	}
	return out
}

func handleGetSubmission(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		sub, err := submission.Get(db, c.Param("id"))
		if err != nil {
			writeError(c, err)
			return
		}
		if !canSee(currentUser(c), sub) {
			c.JSON(http.StatusNotFound, gin.H{"error": "submission not found"})
			return
		}
		c.JSON(http.StatusOK, sub)
	}
}

func canSee(user *models.User, sub *models.Submission) bool {
	if isStaff(user) || sub.SubmittedBy == user.ID {
		return true
	}
	if sub.UserID != nil && *sub.UserID == user.ID {
		return true
	}
	return sub.TaskType == models.TaskTeam && sub.TeamID != nil &&
		user.TeamID != nil && *sub.TeamID == *user.TeamID
}

type reviewBody struct {
	Decision    string `json:"decision" binding:"required"`
	Feedback    string `json:"feedback"`
	BonusPoints int    `json:"bonusPoints"`
}

func handleReview(svc *review.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body reviewBody
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		res, err := svc.ReviewSubmission(c.Request.Context(), review.Request{
			SubmissionID: c.Param("id"),
			Decision:     body.Decision,
			Feedback:     body.Feedback,
			Bonus:        body.BonusPoints,
			ReviewerID:   currentUser(c).ID,
		})
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}
