package curriculum

import (
	"errors"
	"fmt"
	"strings"

	"github.com/zulandar/beartank/internal/models"
	"gorm.io/gorm"
)

// Identity is a verified subject from the identity provider.
type Identity struct {
	ID          string
	Email       string
	DisplayName string
	Role        string
}

// EnsureUser returns the local profile for an identity, creating it on first
// sight. New teachers start pending; everyone else starts active. Later calls
// refresh email and display name but never role or status.
func EnsureUser(db *gorm.DB, id Identity) (*models.User, error) {
	if id.ID == "" {
		return nil, fmt.Errorf("curriculum: %w: identity subject is required", ErrInvalid)
	}
	email := strings.ToLower(strings.TrimSpace(id.Email))

	var user models.User
	err := db.Where("id = ?", id.ID).First(&user).Error
	switch {
	case err == nil:
		if user.Email == email && (id.DisplayName == "" || user.DisplayName == id.DisplayName) {
			return &user, nil
		}
		updates := map[string]interface{}{"email": email}
		if id.DisplayName != "" {
			updates["display_name"] = id.DisplayName
		}
		if err := db.Model(&user).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("curriculum: refresh user %s: %w", id.ID, err)
		}
		user.Email = email
		if id.DisplayName != "" {
			user.DisplayName = id.DisplayName
		}
		return &user, nil
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, fmt.Errorf("curriculum: get user %s: %w", id.ID, err)
	}

	role := id.Role
	switch role {
	case models.RoleStudent, models.RoleTeacher, models.RoleAdmin:
	case "":
		role = models.RoleStudent
	default:
		return nil, fmt.Errorf("curriculum: %w: unknown role %q", ErrInvalid, role)
	}
	status := models.UserActive
	if role == models.RoleTeacher {
		status = models.UserPending
	}
	user = models.User{
		ID:          id.ID,
		Email:       email,
		DisplayName: id.DisplayName,
		Role:        role,
		Status:      status,
	}
	if err := db.Create(&user).Error; err != nil {
		return nil, fmt.Errorf("curriculum: create user %s: %w", id.ID, err)
	}
	return &user, nil
}

// GetUser retrieves a user by id.
func GetUser(db *gorm.DB, id string) (*models.User, error) {
	var user models.User
	if err := db.Where("id = ?", id).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("curriculum: user %w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("curriculum: get user %s: %w", id, err)
	}
	return &user, nil
}

// UserFilters holds optional filters for listing users.
type UserFilters struct {
	Role   string
	Status string
	TeamID string
}

// ListUsers returns users matching filters, by email.
func ListUsers(db *gorm.DB, filters UserFilters) ([]models.User, error) {
	q := db.Model(&models.User{})
	if filters.Role != "" {
		q = q.Where("role = ?", filters.Role)
	}
	if filters.Status != "" {
		q = q.Where("status = ?", filters.Status)
	}
	if filters.TeamID != "" {
		q = q.Where("team_id = ?", filters.TeamID)
	}
	var users []models.User
	if err := q.Order("email ASC").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("curriculum: list users: %w", err)
	}
	return users, nil
}

// ActivateTeacher approves a pending teacher account.
func ActivateTeacher(db *gorm.DB, id string) (*models.User, error) {
	user, err := GetUser(db, id)
	if err != nil {
		return nil, err
	}
	if user.Role != models.RoleTeacher {
		return nil, fmt.Errorf("curriculum: %w: user %s is a %s, not a teacher", ErrInvalid, id, user.Role)
	}
	if user.Status == models.UserActive {
		return user, nil
	}
	if err := db.Model(user).Update("status", models.UserActive).Error; err != nil {
		return nil, fmt.Errorf("curriculum: activate teacher %s: %w", id, err)
	}
	user.Status = models.UserActive
	return user, nil
}
