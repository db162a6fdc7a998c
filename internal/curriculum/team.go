package curriculum

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/zulandar/beartank/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CreateTeamOpts holds parameters for creating a team.
type CreateTeamOpts struct {
	CompanyName string
	TeamName    string // defaults to CompanyName
	MemberIDs   []string
	CreatedBy   string
}

// CreateTeam creates a team, enrolls its members and seeds a team stage for
// every stage: the first by order active, the rest locked. A member already
// on another team is moved.
func CreateTeam(db *gorm.DB, opts CreateTeamOpts) (*models.Team, error) {
	company := strings.TrimSpace(opts.CompanyName)
	if company == "" {
		return nil, fmt.Errorf("curriculum: %w: company name is required", ErrInvalid)
	}
	members := dedupe(opts.MemberIDs)
	if len(members) == 0 {
		return nil, fmt.Errorf("curriculum: %w: a team needs at least one member", ErrInvalid)
	}
	teamName := strings.TrimSpace(opts.TeamName)
	if teamName == "" {
		teamName = company
	}

	team := models.Team{
		ID:          uuid.NewString(),
		CompanyName: company,
		TeamName:    teamName,
		Status:      "active",
		CreatedBy:   opts.CreatedBy,
	}
	err := db.Transaction(func(tx *gorm.DB) error {
		var found int64
		if err := tx.Model(&models.User{}).Where("id IN ?", members).Count(&found).Error; err != nil {
			return fmt.Errorf("curriculum: check members: %w", err)
		}
		if int(found) != len(members) {
			return fmt.Errorf("curriculum: member %w among %v", ErrNotFound, members)
		}
		if err := tx.Create(&team).Error; err != nil {
			return fmt.Errorf("curriculum: create team: %w", err)
		}
		for _, id := range members {
			if err := enroll(tx, team.ID, id); err != nil {
				return err
			}
		}
		return seedTeamStages(tx, team.ID)
	})
	if err != nil {
		return nil, err
	}
	return GetTeam(db, team.ID)
}

// GetTeam retrieves a team with its roster.
func GetTeam(db *gorm.DB, id string) (*models.Team, error) {
	var t models.Team
	if err := db.Preload("Members").Where("id = ?", id).First(&t).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("curriculum: team %w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("curriculum: get team %s: %w", id, err)
	}
	return &t, nil
}

// ListTeams returns every team with its roster, by company name.
func ListTeams(db *gorm.DB) ([]models.Team, error) {
	var teams []models.Team
	if err := db.Preload("Members").Order("company_name ASC").Find(&teams).Error; err != nil {
		return nil, fmt.Errorf("curriculum: list teams: %w", err)
	}
	return teams, nil
}

// TeamStages returns a team's stage records in curriculum order.
func TeamStages(db *gorm.DB, teamID string) ([]models.TeamStage, error) {
	var out []models.TeamStage
	if err := db.Where("team_id = ?", teamID).Order("position ASC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("curriculum: team stages for %s: %w", teamID, err)
	}
	return out, nil
}

// AddMember adds the user with the given email to a team.
func AddMember(db *gorm.DB, teamID, email string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, fmt.Errorf("curriculum: %w: email is required", ErrInvalid)
	}
	team, err := GetTeam(db, teamID)
	if err != nil {
		return nil, err
	}
	var user models.User
	if err := db.Where("LOWER(email) = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("curriculum: no user %w with email %s", ErrNotFound, email)
		}
		return nil, fmt.Errorf("curriculum: find user %s: %w", email, err)
	}
	for _, id := range team.MemberIDs() {
		if id == user.ID {
			return nil, fmt.Errorf("curriculum: %w: %s is already on team %s", ErrInvalid, email, team.CompanyName)
		}
	}
	err = db.Transaction(func(tx *gorm.DB) error {
		return enroll(tx, team.ID, user.ID)
	})
	if err != nil {
		return nil, err
	}
	user.TeamID = &team.ID
	return &user, nil
}

// PublishProfile rebuilds the team's public profile from an approved brand kit.
func PublishProfile(db *gorm.DB, teamID string, c models.SubmissionContent, at time.Time) error {
	p := models.TeamProfile{
		TeamID:      teamID,
		CompanyName: c.CompanyName,
		Mission:     c.Mission,
		LogoURL:     c.LogoURL,
		ApprovedAt:  at,
	}
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "team_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"company_name", "mission", "logo_url", "approved_at"}),
	}).Create(&p).Error
	if err != nil {
		return fmt.Errorf("curriculum: publish profile for %s: %w", teamID, err)
	}
	return nil
}

// GetProfile returns a team's published profile.
func GetProfile(db *gorm.DB, teamID string) (*models.TeamProfile, error) {
	var p models.TeamProfile
	if err := db.Where("team_id = ?", teamID).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("curriculum: profile %w: %s", ErrNotFound, teamID)
		}
		return nil, fmt.Errorf("curriculum: get profile %s: %w", teamID, err)
	}
	return &p, nil
}

// enroll makes userID a member of teamID only.
func enroll(tx *gorm.DB, teamID, userID string) error {
	if err := tx.Where("user_id = ? AND team_id <> ?", userID, teamID).Delete(&models.TeamMember{}).Error; err != nil {
		return fmt.Errorf("curriculum: leave previous team for %s: %w", userID, err)
	}
	m := models.TeamMember{TeamID: teamID, UserID: userID, JoinedAt: time.Now()}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&m).Error; err != nil {
		return fmt.Errorf("curriculum: add %s to team %s: %w", userID, teamID, err)
	}
	if err := tx.Model(&models.User{}).Where("id = ?", userID).Update("team_id", teamID).Error; err != nil {
		return fmt.Errorf("curriculum: set team for %s: %w", userID, err)
	}
	return nil
}

// seedTeamStages creates the team's stage records. Existing rows are kept.
func seedTeamStages(tx *gorm.DB, teamID string) error {
	stages, err := ListStages(tx)
	if err != nil {
		return err
	}
	for i, s := range stages {
		status := models.StageLocked
		if i == 0 {
			status = models.StageActive
		}
		ts := models.TeamStage{TeamID: teamID, StageID: s.ID, Order: s.Order, Status: status}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&ts).Error; err != nil {
			return fmt.Errorf("curriculum: seed stage %s for team %s: %w", s.ID, teamID, err)
		}
	}
	return nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	var out []string
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
