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

// RequestTeamOpts holds a student's team formation request.
type RequestTeamOpts struct {
	CompanyName  string
	TeamName     string
	MemberEmails []string
	RequestedBy  string
}

// RequestTeam records a pending request for a teacher to form a team.
func RequestTeam(db *gorm.DB, opts RequestTeamOpts) (*models.TeamRequest, error) {
	company := strings.TrimSpace(opts.CompanyName)
	if company == "" {
		return nil, fmt.Errorf("curriculum: %w: company name is required", ErrInvalid)
	}
	if opts.RequestedBy == "" {
		return nil, fmt.Errorf("curriculum: %w: requester is required", ErrInvalid)
	}
	var emails []string
	for _, e := range opts.MemberEmails {
		if e = strings.ToLower(strings.TrimSpace(e)); e != "" {
			emails = append(emails, e)
		}
	}
	if emails == nil {
		emails = []string{}
	}
	req := models.TeamRequest{
		ID:           uuid.NewString(),
		CompanyName:  company,
		TeamName:     strings.TrimSpace(opts.TeamName),
		MemberEmails: emails,
		RequestedBy:  opts.RequestedBy,
		Status:       models.RequestPending,
	}
	if err := db.Create(&req).Error; err != nil {
		return nil, fmt.Errorf("curriculum: create team request: %w", err)
	}
	return &req, nil
}

// ListRequests returns team requests, optionally filtered by status, oldest first.
func ListRequests(db *gorm.DB, status string) ([]models.TeamRequest, error) {
	q := db.Model(&models.TeamRequest{})
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var out []models.TeamRequest
	if err := q.Order("created_at ASC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("curriculum: list team requests: %w", err)
	}
	return out, nil
}

// ApproveRequest forms the requested team from the requester plus every
// listed email that matches a user. Unknown emails are skipped.
func ApproveRequest(db *gorm.DB, requestID, teacherID string) (*models.Team, error) {
	req, err := pendingRequest(db, requestID)
	if err != nil {
		return nil, err
	}

	members := []string{req.RequestedBy}
	if len(req.MemberEmails) > 0 {
		var ids []string
		if err := db.Model(&models.User{}).Where("LOWER(email) IN ?", req.MemberEmails).Pluck("id", &ids).Error; err != nil {
			return nil, fmt.Errorf("curriculum: resolve member emails: %w", err)
		}
		members = append(members, ids...)
	}

	team, err := CreateTeam(db, CreateTeamOpts{
		CompanyName: req.CompanyName,
		TeamName:    req.TeamName,
		MemberIDs:   members,
		CreatedBy:   teacherID,
	})
	if err != nil {
		return nil, err
	}

	now := time.Now()
	err = db.Model(req).Select("status", "team_id", "resolved_by", "resolved_at").Updates(models.TeamRequest{
		Status:     models.RequestApproved,
		TeamID:     &team.ID,
		ResolvedBy: teacherID,
		ResolvedAt: &now,
	}).Error
	if err != nil {
		return team, fmt.Errorf("curriculum: resolve team request %s: %w", requestID, err)
	}
	return team, nil
}

// RejectRequest closes a pending request without forming a team.
func RejectRequest(db *gorm.DB, requestID, teacherID string) error {
	req, err := pendingRequest(db, requestID)
	if err != nil {
		return err
	}
	now := time.Now()
	err = db.Model(req).Select("status", "resolved_by", "resolved_at").Updates(models.TeamRequest{
		Status:     models.RequestRejected,
		ResolvedBy: teacherID,
		ResolvedAt: &now,
	}).Error
	if err != nil {
		return fmt.Errorf("curriculum: reject team request %s: %w", requestID, err)
	}
	return nil
}

func pendingRequest(db *gorm.DB, id string) (*models.TeamRequest, error) {
	var req models.TeamRequest
	if err := db.Where("id = ?", id).First(&req).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("curriculum: team request %w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("curriculum: get team request %s: %w", id, err)
	}
	if req.Status != models.RequestPending {
		return nil, fmt.Errorf("curriculum: %w: team request %s is already %s", ErrInvalid, id, req.Status)
	}
	return &req, nil
}
