package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/beartank/internal/curriculum"
	"github.com/zulandar/beartank/internal/ledger"
	"github.com/zulandar/beartank/internal/models"
	"github.com/zulandar/beartank/internal/submission"
	"gorm.io/gorm"
)

func handleListStages(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		stages, err := curriculum.ListStages(db)
		if err != nil {
			writeServerError(c, err)
			return
		}
		c.JSON(http.StatusOK, stages)
	}
}

type stageBody struct {
	ID             string    `json:"id"`
	Title          *string   `json:"title"`
	Description    *string   `json:"description"`
	Order          *int      `json:"order"`
	PointsTotal    *int      `json:"pointsTotal"`
	Status         string    `json:"status"`
	UnlockStageIDs *[]string `json:"unlockStageIds"`
}

func handleCreateStage(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body stageBody
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		opts := curriculum.CreateStageOpts{ID: body.ID, Status: body.Status}
		if body.Title != nil {
			opts.Title = *body.Title
		}
		if body.Description != nil {
			opts.Description = *body.Description
		}
		if body.Order != nil {
			opts.Order = *body.Order
		}
		if body.PointsTotal != nil {
			opts.PointsTotal = *body.PointsTotal
		}
		if body.UnlockStageIDs != nil {
			opts.UnlockStageIDs = *body.UnlockStageIDs
		}
		stage, err := curriculum.CreateStage(db, opts)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, stage)
	}
}

func handleUpdateStage(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body stageBody
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		stage, err := curriculum.UpdateStage(db, c.Param("id"), curriculum.UpdateStageOpts{
			Title:          body.Title,
			Description:    body.Description,
			Order:          body.Order,
			PointsTotal:    body.PointsTotal,
			UnlockStageIDs: body.UnlockStageIDs,
		})
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, stage)
	}
}

func handleDeleteStage(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := curriculum.DeleteStage(db, c.Param("id")); err != nil {
			writeError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func handleSetStageStatus(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body struct {
			Status string `json:"status" binding:"required"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		activated, err := curriculum.SetStageStatus(db, c.Param("id"), body.Status)
		if err != nil {
			writeError(c, err)
			return
		}
		if activated == nil {
			activated = []string{}
		}
		c.JSON(http.StatusOK, gin.H{"status": body.Status, "activated": activated})
	}
}

func handleListTasks(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		tasks, err := curriculum.ListTasks(db, curriculum.TaskFilters{
			StageID:  c.Query("stage"),
			Category: c.Query("category"),
		})
		if err != nil {
			writeServerError(c, err)
			return
		}
		c.JSON(http.StatusOK, tasks)
	}
}

// handleListSideHustles lists side hustles with whether each is open now.
func handleListSideHustles(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		tasks, err := curriculum.ListTasks(db, curriculum.TaskFilters{Category: models.CategorySideHustle})
		if err != nil {
			writeServerError(c, err)
			return
		}
		now := time.Now()
		type sideHustle struct {
			models.Task
			Open bool `json:"open"`
		}
		out := make([]sideHustle, 0, len(tasks))
		for _, t := range tasks {
			out = append(out, sideHustle{Task: t, Open: submission.OpenAt(t, now)})
		}
		c.JSON(http.StatusOK, out)
	}
}

type taskBody struct {
	StageID     string     `json:"stageId"`
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	Type        *string    `json:"type"`
	Points      *int       `json:"points"`
	IsBonus     *bool      `json:"isBonus"`
	Order       *int       `json:"order"`
	Category    string     `json:"category"`
	StartAt     *time.Time `json:"startAt"`
	EndAt       *time.Time `json:"endAt"`
}

func handleCreateTask(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body taskBody
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		opts := curriculum.CreateTaskOpts{
			StageID:  body.StageID,
			Category: body.Category,
			StartAt:  body.StartAt,
			EndAt:    body.EndAt,
		}
		if body.Title != nil {
			opts.Title = *body.Title
		}
		if body.Description != nil {
			opts.Description = *body.Description
		}
		if body.Type != nil {
			opts.Type = *body.Type
		}
		if body.Points != nil {
			opts.Points = *body.Points
		}
		if body.IsBonus != nil {
			opts.IsBonus = *body.IsBonus
		}
		if body.Order != nil {
			opts.Order = *body.Order
		}
		task, err := curriculum.CreateTask(db, opts)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, task)
	}
}

func handleUpdateTask(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body taskBody
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		task, err := curriculum.UpdateTask(db, c.Param("id"), curriculum.UpdateTaskOpts{
			Title:       body.Title,
			Description: body.Description,
			Type:        body.Type,
			Points:      body.Points,
			IsBonus:     body.IsBonus,
			Order:       body.Order,
			StartAt:     body.StartAt,
			EndAt:       body.EndAt,
		})
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, task)
	}
}

func handleDeleteTask(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := curriculum.DeleteTask(db, c.Param("id")); err != nil {
			writeError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func handleListTeams(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		teams, err := curriculum.ListTeams(db)
		if err != nil {
			writeServerError(c, err)
			return
		}
		c.JSON(http.StatusOK, teams)
	}
}

func handleCreateTeam(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body struct {
			CompanyName string   `json:"companyName" binding:"required"`
			TeamName    string   `json:"teamName"`
			MemberIDs   []string `json:"memberIds"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		team, err := curriculum.CreateTeam(db, curriculum.CreateTeamOpts{
			CompanyName: body.CompanyName,
			TeamName:    body.TeamName,
			MemberIDs:   body.MemberIDs,
			CreatedBy:   currentUser(c).ID,
		})
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, team)
	}
}

func handleGetTeam(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		team, err := curriculum.GetTeam(db, c.Param("id"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, team)
	}
}

func handleAddMember(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body struct {
			Email string `json:"email" binding:"required,email"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		user, err := curriculum.AddMember(db, c.Param("id"), body.Email)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, user)
	}
}

func handleTeamStages(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		teamID := c.Param("id")
		if !onTeam(currentUser(c), teamID) {
			c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		stages, err := curriculum.TeamStages(db, teamID)
		if err != nil {
			writeServerError(c, err)
			return
		}
		c.JSON(http.StatusOK, stages)
	}
}

// Published profiles are public to the class.
func handleTeamProfile(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := curriculum.GetProfile(db, c.Param("id"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, p)
	}
}

func handleTeamLedger(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		entries, err := ledger.Entries(db, models.EntityTeam, c.Param("id"))
		if err != nil {
			writeServerError(c, err)
			return
		}
		c.JSON(http.StatusOK, entries)
	}
}

func handleRequestTeam(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body struct {
			CompanyName  string   `json:"companyName" binding:"required"`
			TeamName     string   `json:"teamName"`
			MemberEmails []string `json:"memberEmails"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		req, err := curriculum.RequestTeam(db, curriculum.RequestTeamOpts{
			CompanyName:  body.CompanyName,
			TeamName:     body.TeamName,
			MemberEmails: body.MemberEmails,
			RequestedBy:  currentUser(c).ID,
		})
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, req)
	}
}

func handleListRequests(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := c.DefaultQuery("status", models.RequestPending)
		reqs, err := curriculum.ListRequests(db, status)
		if err != nil {
			writeServerError(c, err)
			return
		}
		c.JSON(http.StatusOK, reqs)
	}
}

func handleApproveRequest(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		team, err := curriculum.ApproveRequest(db, c.Param("id"), currentUser(c).ID)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, team)
	}
}

func handleRejectRequest(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := curriculum.RejectRequest(db, c.Param("id"), currentUser(c).ID); err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": models.RequestRejected})
	}
}

func handleListUsers(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		users, err := curriculum.ListUsers(db, curriculum.UserFilters{
			Role:   c.Query("role"),
			Status: c.Query("status"),
			TeamID: c.Query("team"),
		})
		if err != nil {
			writeServerError(c, err)
			return
		}
		c.JSON(http.StatusOK, users)
	}
}

func handleListTeachers(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		users, err := curriculum.ListUsers(db, curriculum.UserFilters{
			Role:   models.RoleTeacher,
			Status: c.Query("status"),
		})
		if err != nil {
			writeServerError(c, err)
			return
		}
		c.JSON(http.StatusOK, users)
	}
}

func handleActivateTeacher(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := curriculum.ActivateTeacher(db, c.Param("id"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, user)
	}
}

func handleAnalytics(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		sum, err := curriculum.Analytics(db, time.Now())
		if err != nil {
			writeServerError(c, err)
			return
		}
		c.JSON(http.StatusOK, sum)
	}
}

func onTeam(user *models.User, teamID string) bool {
	return isStaff(user) || (user.TeamID != nil && *user.TeamID == teamID)
}
