package types

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ContentResource is the polymorphic content node: every post, lesson,
// workshop, section, event and so on is one row, discriminated by Type,
// with type-specific attributes in the Fields JSONB column.
type ContentResource struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Type        string         `gorm:"column:type;not null;index" json:"type"`
	Fields      datatypes.JSON `gorm:"column:fields;type:jsonb" json:"fields"`
	CreatedByID uuid.UUID      `gorm:"type:uuid;column:created_by_id;index" json:"created_by_id"`
	CreatedBy   *User          `gorm:"constraint:OnDelete:SET NULL;foreignKey:CreatedByID;references:ID" json:"created_by,omitempty"`
	CreatedAt   time.Time      `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"not null;autoUpdateTime" json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	// Resources carries the ordered child edges when loaded by the tree
	// accessor. Not persisted as a column.
	Resources []*ContentResourceResource `gorm:"-" json:"resources,omitempty"`
}

func (ContentResource) TableName() string { return "content_resource" }

// FieldsMap decodes the Fields column. Never returns nil.
func (r *ContentResource) FieldsMap() map[string]any {
	out := map[string]any{}
	if r == nil || len(r.Fields) == 0 {
		return out
	}
	if err := json.Unmarshal(r.Fields, &out); err != nil {
		return map[string]any{}
	}
	return out
}

// FieldString reads a single string attribute out of Fields.
func (r *ContentResource) FieldString(key string) string {
	v, ok := r.FieldsMap()[key]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

func (r *ContentResource) Slug() string       { return r.FieldString("slug") }
func (r *ContentResource) Title() string      { return r.FieldString("title") }
func (r *ContentResource) State() string      { return r.FieldString("state") }
func (r *ContentResource) Visibility() string { return r.FieldString("visibility") }

// IsPublic reports whether the resource is readable without any
// entitlement: published and publicly visible.
func (r *ContentResource) IsPublic() bool {
	return r.State() == StatePublished && r.Visibility() == VisibilityPublic
}
