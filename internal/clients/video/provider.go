package video

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/coursebuilder/backend/internal/logger"
)

// AssetInfo is what the hosting provider reports about one video asset.
type AssetInfo struct {
	AssetID    string  `json:"asset_id"`
	PlaybackID string  `json:"playback_id"`
	Status     string  `json:"status"`
	Duration   float64 `json:"duration"`
}

// Transcript carries the generated caption artifacts for an asset.
type Transcript struct {
	Text string `json:"text"`
	SRT  string `json:"srt"`
}

// AssetInfoProvider resolves asset metadata from the video host.
type AssetInfoProvider interface {
	GetAsset(ctx context.Context, assetID string) (*AssetInfo, error)
}

// TranscriptProvider fetches the transcript for a ready asset.
type TranscriptProvider interface {
	GetTranscript(ctx context.Context, assetID string) (*Transcript, error)
}

// Client talks to the video hosting provider's REST API.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	log     *logger.Logger
}

func NewClient(baseURL, token string, baseLog *logger.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
		log:     baseLog.With("client", "video"),
	}
}

func (c *Client) GetAsset(ctx context.Context, assetID string) (*AssetInfo, error) {
	var info AssetInfo
	if err := c.getJSON(ctx, fmt.Sprintf("/v1/assets/%s", assetID), &info); err != nil {
		return nil, fmt.Errorf("get asset %s: %w", assetID, err)
	}
	return &info, nil
}

func (c *Client) GetTranscript(ctx context.Context, assetID string) (*Transcript, error) {
	var t Transcript
	if err := c.getJSON(ctx, fmt.Sprintf("/v1/assets/%s/transcript", assetID), &t); err != nil {
		return nil, fmt.Errorf("get transcript %s: %w", assetID, err)
	}
	return &t, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("provider returned %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
