package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ResourceProgress marks a user's completion state on a lesson or other
// completable resource.
type ResourceProgress struct {
	ID          uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	UserID      uuid.UUID        `gorm:"type:uuid;not null;uniqueIndex:idx_progress_user_resource" json:"user_id"`
	User        *User            `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID" json:"user,omitempty"`
	ResourceID  uuid.UUID        `gorm:"type:uuid;not null;uniqueIndex:idx_progress_user_resource" json:"resource_id"`
	Resource    *ContentResource `gorm:"constraint:OnDelete:CASCADE;foreignKey:ResourceID;references:ID" json:"resource,omitempty"`
	CompletedAt *time.Time       `gorm:"column:completed_at" json:"completed_at,omitempty"`
	Fields      datatypes.JSON   `gorm:"column:fields;type:jsonb" json:"fields"`
	CreatedAt   time.Time        `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time        `gorm:"not null;autoUpdateTime" json:"updated_at"`
	DeletedAt   gorm.DeletedAt   `gorm:"index" json:"deleted_at,omitempty"`
}

func (ResourceProgress) TableName() string { return "resource_progress" }
