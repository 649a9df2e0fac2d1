package media

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	vhttp "vidflow/http"
)

// Channel is a channel search hit.
type Channel struct {
	ID           string `json:"channel_id"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	ThumbnailURL string `json:"thumbnail_url"`
}

// Playlist is one playlist of a channel.
type Playlist struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Picture     string `json:"picture"`
}

// Listing is one video in a playlist or channel listing.
type Listing struct {
	ID           string `json:"video_id"`
	Title        string `json:"title"`
	Description  string `json:"description,omitempty"`
	PublishedAt  string `json:"published_at"`
	ThumbnailURL string `json:"thumbnail_url"`
}

// VideoDetails is the full metadata of a single video.
type VideoDetails struct {
	Listing
	ChannelID    string   `json:"channel_id"`
	ChannelTitle string   `json:"channel_title"`
	Tags         []string `json:"tags"`
	Duration     string   `json:"duration"`
	ViewCount    int64    `json:"view_count"`
	LikeCount    int64    `json:"like_count"`
	CommentCount int64    `json:"comment_count"`
}

// Catalog reads channel, playlist and video metadata from the backend.
// All calls are idempotent and go through the retrying request path.
type Catalog struct {
	http *vhttp.Client
}

// NewCatalog creates a catalog reader over hc.
func NewCatalog(hc *vhttp.Client) *Catalog {
	return &Catalog{http: hc}
}

// SearchChannels finds channels by handle.
func (c *Catalog) SearchChannels(ctx context.Context, handle string) ([]Channel, error) {
	if handle == "" {
		return nil, fmt.Errorf("search channels: handle is required")
	}
	var out []Channel
	err := c.get(ctx, "/youtube/search_channel?handle="+url.QueryEscape(handle), &out)
	return out, err
}

// ChannelPlaylists lists the playlists of a channel.
func (c *Catalog) ChannelPlaylists(ctx context.Context, channelID string) ([]Playlist, error) {
	var out []Playlist
	err := c.get(ctx, "/youtube/get_channel_playlists/"+url.PathEscape(channelID), &out)
	return out, err
}

// PlaylistVideos lists the videos of a playlist. max <= 0 uses the backend default.
func (c *Catalog) PlaylistVideos(ctx context.Context, playlistID string, max int) ([]Listing, error) {
	var out []Listing
	err := c.get(ctx, withMax("/youtube/fetch_playlist_videos/"+url.PathEscape(playlistID), max), &out)
	return out, err
}

// ChannelVideos lists the latest videos of a channel. max <= 0 uses the
// backend default.
func (c *Catalog) ChannelVideos(ctx context.Context, channelID string, max int) ([]Listing, error) {
	var out []Listing
	err := c.get(ctx, withMax("/youtube/fetch_channel_videos/"+url.PathEscape(channelID), max), &out)
	return out, err
}

// VideoDetails fetches the metadata of one video.
func (c *Catalog) VideoDetails(ctx context.Context, videoID string) (*VideoDetails, error) {
	var out VideoDetails
	if err := c.get(ctx, "/youtube/fetch_video_details/"+url.PathEscape(videoID), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Catalog) get(ctx context.Context, path string, v any) error {
	resp, err := c.http.Get(ctx, path)
	if err != nil {
		return fmt.Errorf("catalog %s: %w", path, err)
	}
	if err := json.Unmarshal(resp.Body, v); err != nil {
		return fmt.Errorf("catalog %s: decode: %w", path, err)
	}
	return nil
}

func withMax(path string, max int) string {
	if max <= 0 {
		return path
	}
	return path + "?max_results=" + strconv.Itoa(max)
}
