package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UserToken persists refresh tokens so logout can revoke them.
type UserToken struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    uuid.UUID      `gorm:"type:uuid;not null;index" json:"user_id"`
	User      *User          `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID" json:"user,omitempty"`
	Token     string         `gorm:"column:token;not null;uniqueIndex" json:"-"`
	ExpiresAt time.Time      `gorm:"column:expires_at;not null;index" json:"expires_at"`
	CreatedAt time.Time      `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (UserToken) TableName() string { return "user_token" }
