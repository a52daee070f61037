package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	EntitlementTypeContentAccess = "content_access"

	EntitlementSourcePurchase = "PURCHASE"
	EntitlementSourceManual   = "MANUAL"
)

// Entitlement grants a user (optionally through an organization
// membership) access to content. SourceType/SourceID point at whatever
// produced the grant, typically a purchase. The content tree never
// mutates entitlements; it only reads them.
type Entitlement struct {
	ID              uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	UserID          uuid.UUID      `gorm:"type:uuid;not null;index" json:"user_id"`
	User            *User          `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID" json:"user,omitempty"`
	MembershipID    *uuid.UUID     `gorm:"type:uuid;column:membership_id;index" json:"membership_id,omitempty"`
	EntitlementType string         `gorm:"column:entitlement_type;not null;index" json:"entitlement_type"`
	SourceType      string         `gorm:"column:source_type;not null;index:idx_entitlement_source" json:"source_type"`
	SourceID        uuid.UUID      `gorm:"type:uuid;column:source_id;not null;index:idx_entitlement_source" json:"source_id"`
	ExpiresAt       *time.Time     `gorm:"column:expires_at;index" json:"expires_at,omitempty"`
	Metadata        datatypes.JSON `gorm:"column:metadata;type:jsonb" json:"metadata"`
	CreatedAt       time.Time      `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time      `gorm:"not null;autoUpdateTime" json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Entitlement) TableName() string { return "entitlement" }

// Active reports whether the grant is usable at the given instant.
func (e *Entitlement) Active(now time.Time) bool {
	if e == nil || e.DeletedAt.Valid {
		return false
	}
	if e.ExpiresAt != nil && !e.ExpiresAt.After(now) {
		return false
	}
	return true
}

// ContentIDs decodes the granted resource ids out of Metadata
// (stored under "contentIds").
func (e *Entitlement) ContentIDs() []uuid.UUID {
	if e == nil || len(e.Metadata) == 0 {
		return nil
	}
	var meta struct {
		ContentIDs []string `json:"contentIds"`
	}
	if err := jsonUnmarshal(e.Metadata, &meta); err != nil {
		return nil
	}
	out := make([]uuid.UUID, 0, len(meta.ContentIDs))
	for _, s := range meta.ContentIDs {
		id, err := uuid.Parse(s)
		if err != nil {
			continue
		}
		out = append(out, id)
	}
	return out
}
