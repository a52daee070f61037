package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ContentResourceResource is the ordered parent -> child edge between two
// ContentResource rows. A child may sit under several parents (shared
// lessons), so edges express a many-to-many forest, not an exclusive tree.
type ContentResourceResource struct {
	ResourceOfID uuid.UUID      `gorm:"type:uuid;column:resource_of_id;primaryKey" json:"resource_of_id"`
	ResourceID   uuid.UUID      `gorm:"type:uuid;column:resource_id;primaryKey" json:"resource_id"`
	Position     float64        `gorm:"column:position;not null;default:0" json:"position"`
	Metadata     datatypes.JSON `gorm:"column:metadata;type:jsonb" json:"metadata"`
	CreatedAt    time.Time      `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time      `gorm:"not null;autoUpdateTime" json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	Resource   *ContentResource `gorm:"constraint:OnDelete:CASCADE;foreignKey:ResourceID;references:ID" json:"resource,omitempty"`
	ResourceOf *ContentResource `gorm:"constraint:OnDelete:CASCADE;foreignKey:ResourceOfID;references:ID" json:"-"`
}

func (ContentResourceResource) TableName() string { return "content_resource_resource" }
