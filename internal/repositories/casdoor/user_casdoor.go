package casdoor

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/casdoor/casdoor-go-sdk/casdoorsdk"

	"github.com/cropsgg/ionia-stage2-sub000/internal/cache"
	"github.com/cropsgg/ionia-stage2-sub000/internal/models"
	"github.com/cropsgg/ionia-stage2-sub000/internal/repositories"
)

// CasdoorConfig holds the configuration for Casdoor connection
type CasdoorConfig struct {
	Endpoint         string
	ClientID         string
	ClientSecret     string
	Certificate      string
	OrganizationName string
	ApplicationName  string
}

// UserDirectory is the slice of the Casdoor client used here.
type UserDirectory interface {
	GetUserByUserId(userId string) (*casdoorsdk.User, error)
}

func NewClient(config CasdoorConfig) *casdoorsdk.Client {
	return casdoorsdk.NewClient(
		config.Endpoint,
		config.ClientID,
		config.ClientSecret,
		config.Certificate,
		config.OrganizationName,
		config.ApplicationName,
	)
}

type UserCasdoor struct {
	directory UserDirectory
	cache     *cache.CacheHelper
}

func NewUserCasdoor(directory UserDirectory, cacheHelper *cache.CacheHelper) *UserCasdoor {
	return &UserCasdoor{
		directory: directory,
		cache:     cacheHelper,
	}
}

// ===== CONVERSION METHODS =====

// UserFromCasdoor converts a Casdoor user, or returns nil for nil.
func UserFromCasdoor(casdoorUser *casdoorsdk.User) *models.User {
	if casdoorUser == nil {
		return nil
	}

	var createdAt, updatedAt time.Time
	if casdoorUser.CreatedTime != "" {
		createdAt, _ = time.Parse(time.RFC3339, casdoorUser.CreatedTime)
	}
	if casdoorUser.UpdatedTime != "" {
		updatedAt, _ = time.Parse(time.RFC3339, casdoorUser.UpdatedTime)
	}

	var avatar *string
	if casdoorUser.Avatar != "" {
		avatar = &casdoorUser.Avatar
	}

	return &models.User{
		ID:        casdoorUser.Id,
		FullName:  casdoorUser.DisplayName,
		Email:     casdoorUser.Email,
		Role:      RoleOf(casdoorUser),
		AvatarURL: avatar,
		Groups:    normalizeGroups(casdoorUser.Groups),
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
	}
}

// RoleOf resolves the highest role held by a Casdoor user.
func RoleOf(casdoorUser *casdoorsdk.User) models.UserRole {
	var roles []models.UserRole
	isExist := make(map[models.UserRole]bool)
	for _, casdoorRole := range casdoorUser.Roles {
		if casdoorRole == nil {
			continue
		}
		mappedRole := mapSingleCasdoorRoleToUserRole(casdoorRole.Name)
		if !isExist[mappedRole] {
			roles = append(roles, mappedRole)
			isExist[mappedRole] = true
		}
	}

	// admin wins over everything else
	if slices.Contains(roles, models.RoleAdmin) || casdoorUser.IsAdmin {
		return models.RoleAdmin
	}
	if slices.Contains(roles, models.RoleTeacher) {
		return models.RoleTeacher
	}
	return models.RoleStudent
}

func mapSingleCasdoorRoleToUserRole(casdoorType string) models.UserRole {
	switch strings.ToLower(casdoorType) {
	case "teacher", "instructor":
		return models.RoleTeacher
	case "admin", "administrator":
		return models.RoleAdmin
	default:
		return models.RoleStudent
	}
}

// normalizeGroups strips the "<org>/" prefix Casdoor puts on group names.
func normalizeGroups(groups []string) []string {
	out := make([]string, 0, len(groups))
	for _, g := range groups {
		if i := strings.LastIndex(g, "/"); i >= 0 {
			g = g[i+1:]
		}
		if g != "" {
			out = append(out, g)
		}
	}
	return out
}

// ===== BASIC READ OPERATIONS =====

// GetByID retrieves a user by ID, cached under user:id:<id>.
func (u *UserCasdoor) GetByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := u.cache.CacheOrExecute(ctx, fmt.Sprintf("id:%s", id), &user, func() (interface{}, error) {
		casdoorUser, err := u.directory.GetUserByUserId(id)
		if err != nil {
			return nil, fmt.Errorf("failed to get user from Casdoor: %w", err)
		}
		if casdoorUser == nil {
			return nil, repositories.ErrNotFound
		}
		return UserFromCasdoor(casdoorUser), nil
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// EnrollmentCasdoor treats Casdoor group membership as class enrollment: a
// student is enrolled in class X when X is one of their groups.
type EnrollmentCasdoor struct {
	users repositories.UserRepository
}

func NewEnrollmentCasdoor(users repositories.UserRepository) *EnrollmentCasdoor {
	return &EnrollmentCasdoor{users: users}
}

func (e *EnrollmentCasdoor) IsEnrolled(ctx context.Context, classID, studentID string) (bool, error) {
	user, err := e.users.GetByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check enrollment: %w", err)
	}
	return slices.Contains(user.Groups, classID), nil
}
