package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Product joins a sellable ContentResource of type "product" with its
// Stripe identifiers and price snapshot.
type Product struct {
	ID                uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	ResourceID        uuid.UUID        `gorm:"type:uuid;column:resource_id;not null;uniqueIndex" json:"resource_id"`
	Resource          *ContentResource `gorm:"constraint:OnDelete:CASCADE;foreignKey:ResourceID;references:ID" json:"resource,omitempty"`
	Name              string           `gorm:"column:name;not null" json:"name"`
	StripeProductID   string           `gorm:"column:stripe_product_id;index" json:"stripe_product_id,omitempty"`
	StripePriceID     string           `gorm:"column:stripe_price_id;index" json:"stripe_price_id,omitempty"`
	UnitAmount        int64            `gorm:"column:unit_amount;not null;default:0" json:"unit_amount"`
	Currency          string           `gorm:"column:currency;not null;default:usd" json:"currency"`
	QuantityAvailable int              `gorm:"column:quantity_available;not null;default:-1" json:"quantity_available"`
	Status            string           `gorm:"column:status;not null;default:active" json:"status"`
	Metadata          datatypes.JSON   `gorm:"column:metadata;type:jsonb" json:"metadata"`
	CreatedAt         time.Time        `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time        `gorm:"not null;autoUpdateTime" json:"updated_at"`
	DeletedAt         gorm.DeletedAt   `gorm:"index" json:"deleted_at,omitempty"`
}

func (Product) TableName() string { return "product" }
