package events

import (
	"testing"

	"github.com/google/uuid"
)

func TestPayloadValidation(t *testing.T) {
	id := uuid.New()
	cases := []struct {
		name    string
		payload Payload
		wantErr bool
	}{
		{name: "video_ok", payload: VideoAssetAttachedPayload{VideoResourceID: id, AssetID: "asset_1"}},
		{name: "video_missing_resource", payload: VideoAssetAttachedPayload{AssetID: "asset_1"}, wantErr: true},
		{name: "video_missing_asset", payload: VideoAssetAttachedPayload{VideoResourceID: id}, wantErr: true},
		{name: "purchase_ok", payload: NewPurchaseCreatedPayload{PurchaseID: id, ProductID: id, UserID: id}},
		{name: "purchase_missing_user", payload: NewPurchaseCreatedPayload{PurchaseID: id, ProductID: id}, wantErr: true},
		{name: "sync_ok", payload: SyncProductEntitlementsPayload{ProductID: id}},
		{name: "sync_missing_product", payload: SyncProductEntitlementsPayload{}, wantErr: true},
		{name: "index_ok", payload: ResourceIndexRequestedPayload{ResourceID: id}},
		{name: "index_missing_resource", payload: ResourceIndexRequestedPayload{}, wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.payload.Validate()
			if tc.wantErr && err == nil {
				t.Fatalf("expected validation error")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tc.payload.EventName() == "" {
				t.Fatalf("event name must be set")
			}
		})
	}
}
