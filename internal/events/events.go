// Package events defines the closed set of domain events that drive the
// workflow runtime. Every event is a {name, payload} pair; payloads are
// validated before dispatch so malformed events never reach a pipeline.
package events

import (
	"fmt"

	"github.com/google/uuid"
)

// Event names double as job types in the workflow runtime.
const (
	VideoAssetAttached      = "video/asset.attached"
	NewPurchaseCreated      = "commerce/new-purchase-created"
	SyncProductEntitlements = "product/sync-entitlements"
	ResourceIndexRequested  = "search/resource-index-requested"
)

// Payload is implemented by every event payload.
type Payload interface {
	EventName() string
	Validate() error
}

// VideoAssetAttachedPayload fires when a video provider reports an asset
// ready for a videoResource.
type VideoAssetAttachedPayload struct {
	VideoResourceID uuid.UUID `json:"video_resource_id"`
	AssetID         string    `json:"asset_id"`
	PlaybackID      string    `json:"playback_id,omitempty"`
	OwnerUserID     uuid.UUID `json:"owner_user_id,omitempty"`
}

func (p VideoAssetAttachedPayload) EventName() string { return VideoAssetAttached }

func (p VideoAssetAttachedPayload) Validate() error {
	if p.VideoResourceID == uuid.Nil {
		return fmt.Errorf("%s: missing video_resource_id", VideoAssetAttached)
	}
	if p.AssetID == "" {
		return fmt.Errorf("%s: missing asset_id", VideoAssetAttached)
	}
	return nil
}

// NewPurchaseCreatedPayload fires after a verified checkout completes.
type NewPurchaseCreatedPayload struct {
	PurchaseID uuid.UUID `json:"purchase_id"`
	ProductID  uuid.UUID `json:"product_id"`
	UserID     uuid.UUID `json:"user_id"`
}

func (p NewPurchaseCreatedPayload) EventName() string { return NewPurchaseCreated }

func (p NewPurchaseCreatedPayload) Validate() error {
	if p.PurchaseID == uuid.Nil {
		return fmt.Errorf("%s: missing purchase_id", NewPurchaseCreated)
	}
	if p.ProductID == uuid.Nil {
		return fmt.Errorf("%s: missing product_id", NewPurchaseCreated)
	}
	if p.UserID == uuid.Nil {
		return fmt.Errorf("%s: missing user_id", NewPurchaseCreated)
	}
	return nil
}

// SyncProductEntitlementsPayload requests reconciliation of entitlements
// for everyone who holds a valid purchase of the product.
type SyncProductEntitlementsPayload struct {
	ProductID uuid.UUID `json:"product_id"`
}

func (p SyncProductEntitlementsPayload) EventName() string { return SyncProductEntitlements }

func (p SyncProductEntitlementsPayload) Validate() error {
	if p.ProductID == uuid.Nil {
		return fmt.Errorf("%s: missing product_id", SyncProductEntitlements)
	}
	return nil
}

// ResourceIndexRequestedPayload requests a search-index refresh for one
// resource.
type ResourceIndexRequestedPayload struct {
	ResourceID uuid.UUID `json:"resource_id"`
}

func (p ResourceIndexRequestedPayload) EventName() string { return ResourceIndexRequested }

func (p ResourceIndexRequestedPayload) Validate() error {
	if p.ResourceID == uuid.Nil {
		return fmt.Errorf("%s: missing resource_id", ResourceIndexRequested)
	}
	return nil
}

// UnknownEventError reports an inbound event name with no payload type.
type UnknownEventError struct{ Name string }

func (e *UnknownEventError) Error() string {
	return fmt.Sprintf("unknown event %q", e.Name)
}
