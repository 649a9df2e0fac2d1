package media

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"vidflow/task"
)

// ErrNoTranscript indicates a finished transcript job carried no text.
var ErrNoTranscript = errors.New("no transcript in result")

// TranscriptText extracts the transcript from a SUCCESS snapshot of the
// transcript workflow.
func TranscriptText(snap task.Snapshot) (string, error) {
	if !snap.Succeeded() {
		return "", fmt.Errorf("%w: task %s is %s", task.ErrNotReady, snap.TaskID, snap.State)
	}
	return decodeTranscript(snap.Result)
}

// decodeTranscript accepts a bare string, an object with a transcript or text
// field, or a list of segments with text fields.
func decodeTranscript(raw json.RawMessage) (string, error) {
	if len(raw) == 0 {
		return "", ErrNoTranscript
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if s == "" {
			return "", ErrNoTranscript
		}
		return s, nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err == nil && obj != nil {
		for _, k := range []string{"transcript", "text", "result"} {
			if v, ok := obj[k]; ok {
				return decodeTranscript(v)
			}
		}
		return "", ErrNoTranscript
	}

	var segments []struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &segments); err == nil && len(segments) > 0 {
		parts := make([]string, 0, len(segments))
		for _, seg := range segments {
			if t := strings.TrimSpace(seg.Text); t != "" {
				parts = append(parts, t)
			}
		}
		if len(parts) > 0 {
			return strings.Join(parts, "\n"), nil
		}
	}
	return "", ErrNoTranscript
}

// UserTranscript is a transcript linked to the current user.
type UserTranscript struct {
	VideoID      string `json:"video_id"`
	Title        string `json:"title"`
	Description  string `json:"description,omitempty"`
	Status       string `json:"status"`
	PublishedAt  string `json:"published_at,omitempty"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
	ChannelTitle string `json:"channel_title,omitempty"`
	ChannelID    string `json:"channel_id,omitempty"`
	Duration     string `json:"duration,omitempty"`
}

// CheckTranscript reports whether the video's transcript is linked to the user.
func (c *Client) CheckTranscript(ctx context.Context, videoID string) (bool, error) {
	resp, err := c.http.Get(ctx, "/check-user-transcript?video_id="+url.QueryEscape(videoID))
	if err != nil {
		return false, fmt.Errorf("check transcript: %w", err)
	}
	var out struct {
		AlreadyLinked bool `json:"already_linked"`
	}
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return false, fmt.Errorf("check transcript: decode: %w", err)
	}
	return out.AlreadyLinked, nil
}

// LinkTranscript links the video's transcript to the user.
func (c *Client) LinkTranscript(ctx context.Context, videoID string) error {
	body, err := json.Marshal(map[string]string{"video_id": videoID})
	if err != nil {
		return err
	}
	if _, err := c.http.DoOnce(ctx, http.MethodPost, "/add-user-transcript", body, nil); err != nil {
		return fmt.Errorf("link transcript: %w", err)
	}
	return nil
}

// UserTranscripts lists the transcripts linked to the user.
func (c *Client) UserTranscripts(ctx context.Context) ([]UserTranscript, error) {
	resp, err := c.http.Get(ctx, "/user-transcripts")
	if err != nil {
		return nil, fmt.Errorf("list transcripts: %w", err)
	}
	var out []UserTranscript
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return nil, fmt.Errorf("list transcripts: decode: %w", err)
	}
	return out, nil
}
