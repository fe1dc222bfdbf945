package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"schoolcrm_backend/internals/constants"
)

type UserModel struct {
	ID           uuid.UUID                   `gorm:"type:uuid;primaryKey" json:"id"`
	Login        string                      `gorm:"size:100;not null;uniqueIndex" json:"login"`
	Name         string                      `gorm:"size:255;not null" json:"name"`
	Email        string                      `gorm:"size:255;not null;uniqueIndex" json:"email"`
	Role         string                      `gorm:"size:20;not null;default:teacher" json:"role"`
	AuthType     string                      `gorm:"size:20;not null;default:local" json:"auth_type"`
	Groups       datatypes.JSONSlice[string] `gorm:"type:json" json:"groups,omitempty"`
	Description  string                      `gorm:"type:text" json:"description,omitempty"`
	PasswordHash string                      `gorm:"type:text" json:"-"`
	LastLogin    *time.Time                  `json:"last_login,omitempty"`
	CreatedAt    time.Time                   `json:"created_at"`
	UpdatedAt    time.Time                   `json:"updated_at"`
}

func (UserModel) TableName() string {
	return "users"
}

func (u *UserModel) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

func (u *UserModel) IsAdmin() bool {
	return u != nil && u.Role == constants.RoleAdmin
}

func (u *UserModel) IsExternal() bool {
	return u != nil && u.AuthType == constants.AuthTypeExternal
}

// DeriveRole is the role an external user holds for the given groups: admin
// iff at least one group is on the allow-list. Comparison is case-sensitive.
func DeriveRole(groups, allowList []string) string {
	allowed := make(map[string]struct{}, len(allowList))
	for _, g := range allowList {
		allowed[g] = struct{}{}
	}
	for _, g := range groups {
		if _, ok := allowed[g]; ok {
			return constants.RoleAdmin
		}
	}
	return constants.RoleTeacher
}
