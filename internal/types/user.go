package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type User struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Email     string         `gorm:"uniqueIndex;not null;column:email" json:"email"`
	Password  string         `gorm:"not null;column:password" json:"-"`
	Name      string         `gorm:"column:name" json:"name"`
	Role      string         `gorm:"column:role;default:user" json:"role"`
	Roles     datatypes.JSON `gorm:"column:roles;type:jsonb" json:"roles"`
	CreatedAt time.Time      `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (User) TableName() string { return "users" }

// RoleNames merges the legacy single role column with the preferred
// roles array, deduplicated, so callers never have to branch on which
// column a deployment populated.
func (u *User) RoleNames() []string {
	if u == nil {
		return nil
	}
	seen := map[string]bool{}
	out := []string{}
	add := func(r string) {
		if r == "" || seen[r] {
			return
		}
		seen[r] = true
		out = append(out, r)
	}
	add(u.Role)
	for _, r := range decodeStringArray(u.Roles) {
		add(r)
	}
	return out
}

// HasRole reports whether either role column carries the given role.
func (u *User) HasRole(role string) bool {
	for _, r := range u.RoleNames() {
		if r == role {
			return true
		}
	}
	return false
}
