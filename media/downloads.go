package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"vidflow/task"
)

// resultPath serves a stored fragment by its download id.
const resultPath = "/download_fragment_result/{id}"

// UserDownload is a fragment download the backend keeps for the user.
type UserDownload struct {
	ID           int64  `json:"id"`
	VideoURL     string `json:"video_url"`
	StartTime    string `json:"start_time"`
	EndTime      string `json:"end_time"`
	FragmentPath string `json:"fragment_path"`
	CreatedAt    string `json:"created_at"`
}

// UserDownloads lists the user's fragment downloads kept by the backend.
func (c *Client) UserDownloads(ctx context.Context) ([]UserDownload, error) {
	resp, err := c.http.Get(ctx, "/user_downloads")
	if err != nil {
		return nil, fmt.Errorf("list downloads: %w", err)
	}
	out, err := decodeUserDownloads(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("list downloads: decode: %w", err)
	}
	return out, nil
}

// decodeUserDownloads accepts {"downloads": [...]} or a bare list.
func decodeUserDownloads(body []byte) ([]UserDownload, error) {
	body = bytes.TrimSpace(body)
	if len(body) > 0 && body[0] == '{' {
		var wrapped struct {
			Downloads []UserDownload `json:"downloads"`
		}
		if err := json.Unmarshal(body, &wrapped); err != nil {
			return nil, err
		}
		return wrapped.Downloads, nil
	}
	var out []UserDownload
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// DownloadResult fetches a stored fragment again by its download id.
func (c *Client) DownloadResult(ctx context.Context, id int64) (*task.Artifact, error) {
	sid := strconv.FormatInt(id, 10)
	h := task.Handle{ID: sid, Kind: DownloadFragment.Name}
	// The download list only holds finished fragments.
	done := task.Snapshot{TaskID: sid, State: task.StateSuccess, Progress: 100}
	return task.NewMaterializer(c.http, resultPath, "fragment_"+sid+".mp4").Fetch(ctx, h, done)
}
