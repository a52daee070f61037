package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Purchase statuses follow the original platform's vocabulary.
const (
	PurchaseStatusValid      = "Valid"
	PurchaseStatusRefunded   = "Refunded"
	PurchaseStatusDisputed   = "Disputed"
	PurchaseStatusRestricted = "Restricted"
)

type Purchase struct {
	ID               uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	UserID           uuid.UUID      `gorm:"type:uuid;not null;index" json:"user_id"`
	User             *User          `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID" json:"user,omitempty"`
	ProductID        uuid.UUID      `gorm:"type:uuid;not null;index" json:"product_id"`
	Product          *Product       `gorm:"constraint:OnDelete:CASCADE;foreignKey:ProductID;references:ID" json:"product,omitempty"`
	Status           string         `gorm:"column:status;not null;default:Valid;index" json:"status"`
	StripeSessionID  string         `gorm:"column:stripe_session_id;uniqueIndex" json:"stripe_session_id,omitempty"`
	StripeCustomerID string         `gorm:"column:stripe_customer_id;index" json:"stripe_customer_id,omitempty"`
	TotalAmount      int64          `gorm:"column:total_amount;not null;default:0" json:"total_amount"`
	Currency         string         `gorm:"column:currency;not null;default:usd" json:"currency"`
	Metadata         datatypes.JSON `gorm:"column:metadata;type:jsonb" json:"metadata"`
	PurchasedAt      time.Time      `gorm:"column:purchased_at;not null;autoCreateTime" json:"purchased_at"`
	CreatedAt        time.Time      `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time      `gorm:"not null;autoUpdateTime" json:"updated_at"`
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Purchase) TableName() string { return "purchase" }
