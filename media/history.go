package media

import (
	"context"
	"errors"

	"vidflow/internal/storage"
	"vidflow/task"
)

// recordStart adds a history record for a newly tracked job. History is best
// effort: failures are logged and never fail the workflow.
func (c *Client) recordStart(ctx context.Context, kind Kind, h task.Handle, sourceURL string) {
	if c.opts.History == nil {
		return
	}
	if _, err := c.opts.History.GetDownloadByTaskID(ctx, h.ID); err == nil {
		return
	} else if !errors.Is(err, storage.ErrNotFound) {
		c.opts.Logf("vidflow: history: %v", err)
		return
	}
	rec := &storage.DownloadRecord{
		TaskID:    h.ID,
		Kind:      kind.Name,
		SourceURL: sourceURL,
		State:     task.StatePending.String(),
	}
	if !h.CreatedAt.IsZero() {
		rec.CreatedAt = h.CreatedAt
	}
	if err := c.opts.History.CreateDownload(ctx, rec); err != nil {
		c.opts.Logf("vidflow: history: %v", err)
	}
}

// recordEnd stores the final state of a job.
func (c *Client) recordEnd(ctx context.Context, h task.Handle, snap task.Snapshot, artifactPath string) {
	if c.opts.History == nil {
		return
	}
	// The caller's context may be what ended tracking.
	ctx = context.WithoutCancel(ctx)
	rec, err := c.opts.History.GetDownloadByTaskID(ctx, h.ID)
	if err != nil {
		c.opts.Logf("vidflow: history: %v", err)
		return
	}
	if snap.State != task.StateIdle {
		rec.State = snap.State.String()
		rec.Progress = snap.Progress
		rec.Error = snap.Err
	}
	if artifactPath != "" {
		rec.ArtifactPath = artifactPath
	}
	if err := c.opts.History.UpdateDownload(ctx, rec); err != nil {
		c.opts.Logf("vidflow: history: %v", err)
	}
}
