package media

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	vhttp "vidflow/http"
	"vidflow/internal/storage"
	"vidflow/task"
)

// Options configures a Client.
type Options struct {
	// Interval overrides every workflow's status cadence when non-zero.
	Interval time.Duration
	// MaxAttempts overrides every workflow's poll budget when non-zero.
	MaxAttempts int
	// History records submitted jobs. Optional.
	History storage.DownloadStore
	// Logf receives diagnostic messages. Default: log.Printf.
	Logf func(format string, args ...any)
}

// Client runs backend workflows.
type Client struct {
	http      *vhttp.Client
	submitter *task.Submitter
	opts      Options
}

// NewClient creates a workflow client over hc.
func NewClient(hc *vhttp.Client, opts Options) *Client {
	if opts.Logf == nil {
		opts.Logf = log.Printf
	}
	return &Client{
		http:      hc,
		submitter: task.NewSubmitter(hc),
		opts:      opts,
	}
}

// Megabytes is a file size the backend may send as a number, a numeric
// string or null.
type Megabytes float64

// UnmarshalJSON implements json.Unmarshaler.
func (m *Megabytes) UnmarshalJSON(data []byte) error {
	var f float64
	if err := json.Unmarshal(data, &f); err == nil {
		*m = Megabytes(f)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		// null or an unexpected shape: size unknown
		*m = 0
		return nil
	}
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "MB"))
	f, _ = strconv.ParseFloat(strings.TrimSpace(s), 64)
	*m = Megabytes(f)
	return nil
}

// Format is one downloadable quality of a video.
type Format struct {
	ID         string    `json:"format_id"`
	Resolution string    `json:"resolution"`
	FilesizeMB Megabytes `json:"filesize_mb"`
	Ext        string    `json:"ext,omitempty"`
}

// FormatList is the result of a format probe.
type FormatList struct {
	Title   string   `json:"video_title"`
	Formats []Format `json:"formats"`
}

// VideoFormats lists the qualities available for videoURL.
func (c *Client) VideoFormats(ctx context.Context, videoURL string) (*FormatList, error) {
	if videoURL == "" {
		return nil, errors.New("video url is required")
	}
	resp, err := c.http.Get(ctx, "/video_qualities?video_url="+url.QueryEscape(videoURL))
	if err != nil {
		return nil, fmt.Errorf("probe formats: %w", err)
	}
	var out FormatList
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return nil, fmt.Errorf("probe formats: decode: %w", err)
	}
	return &out, nil
}

// CutRequest selects a fragment of an already downloaded video.
type CutRequest struct {
	// TaskID is the task that downloaded the source video.
	TaskID         string `json:"task_id"`
	StartTime      string `json:"start_time"`
	EndTime        string `json:"end_time"`
	DeleteOriginal bool   `json:"delete_original"`
}

// VideoRequest is the body of a video download.
func VideoRequest(videoURL, formatID string) map[string]string {
	return map[string]string{"video_url": videoURL, "format_id": formatID}
}

// AudioRequest is the body of an audio download.
func AudioRequest(videoURL string) map[string]string {
	return map[string]string{"video_url": videoURL}
}

// FragmentRequest is the body of a direct fragment download.
func FragmentRequest(videoURL, start, end string) map[string]string {
	return map[string]string{"video_url": videoURL, "start_time": start, "end_time": end}
}

// TranscriptRequest is the body of a transcript request.
func TranscriptRequest(videoURL string) map[string]string {
	return map[string]string{"video_url": videoURL}
}

// Submit starts a job of kind with the given request body.
func (c *Client) Submit(ctx context.Context, kind Kind, body any) (*task.Submitted, error) {
	return c.submitter.Submit(ctx, task.Submission{
		Kind:       kind.Name,
		Path:       kind.SubmitPath,
		Body:       body,
		StatusPath: kind.StatusPath,
	})
}

// StartVideoDownload starts downloading videoURL in the given format.
func (c *Client) StartVideoDownload(ctx context.Context, videoURL, formatID string) (*task.Submitted, error) {
	return c.Submit(ctx, Video, VideoRequest(videoURL, formatID))
}

// StartAudioDownload starts extracting the audio track of videoURL.
func (c *Client) StartAudioDownload(ctx context.Context, videoURL string) (*task.Submitted, error) {
	return c.Submit(ctx, Audio, AudioRequest(videoURL))
}

// CutVideo starts cutting a fragment out of a downloaded video.
func (c *Client) CutVideo(ctx context.Context, req CutRequest) (*task.Submitted, error) {
	return c.Submit(ctx, Fragment, req)
}

// StartFragmentDownload starts downloading only a fragment of videoURL.
func (c *Client) StartFragmentDownload(ctx context.Context, videoURL, start, end string) (*task.Submitted, error) {
	return c.Submit(ctx, DownloadFragment, FragmentRequest(videoURL, start, end))
}

// RequestTranscript asks for the transcript of videoURL. The reply carries
// either the transcript, a handle to track, or Pending for a queued job.
func (c *Client) RequestTranscript(ctx context.Context, videoURL string) (*task.Submitted, error) {
	return c.Submit(ctx, Transcript, TranscriptRequest(videoURL))
}

// NewTracker returns an idle tracker with the cadence of kind.
func (c *Client) NewTracker(kind Kind) *task.Tracker {
	opts := task.Options{
		Interval:    kind.Interval,
		MaxAttempts: kind.MaxAttempts,
		Logf:        c.opts.Logf,
	}
	if c.opts.Interval > 0 {
		opts.Interval = c.opts.Interval
	}
	if c.opts.MaxAttempts > 0 {
		opts.MaxAttempts = c.opts.MaxAttempts
	}
	return task.NewTracker(task.HTTPChecker{Client: c.http}, opts)
}

// Track starts a tracker for h. The caller owns the tracker and must Close it.
func (c *Client) Track(ctx context.Context, kind Kind, h task.Handle) (*task.Tracker, error) {
	if h.StatusPath == "" {
		h.StatusPath = kind.StatusPath
	}
	if h.Kind == "" {
		h.Kind = kind.Name
	}
	tr := c.NewTracker(kind)
	if err := tr.Track(ctx, h); err != nil {
		tr.Close()
		return nil, err
	}
	return tr, nil
}

// FetchArtifact downloads the artifact of a finished job.
func (c *Client) FetchArtifact(ctx context.Context, kind Kind, h task.Handle, snap task.Snapshot) (*task.Artifact, error) {
	return task.NewMaterializer(c.http, kind.ArtifactPath, kind.DefaultFilename).Fetch(ctx, h, snap)
}

// RunOptions configures Run.
type RunOptions struct {
	// OnUpdate receives every published snapshot. It runs under the tracker
	// lock and must return quickly.
	OnUpdate func(task.Snapshot)
	// AutoSave writes the artifact, or the transcript text, into OutputDir.
	AutoSave  bool
	OutputDir string
	// SourceURL is recorded in the history.
	SourceURL string
	// TranscriptFormat selects how transcripts are rendered. Timed formats
	// need a segmented result. Default: FormatText.
	TranscriptFormat CaptionFormat
}

// Result is the outcome of Run.
type Result struct {
	// Handle is nil when the backend answered without starting a job.
	Handle   *task.Handle
	Snapshot task.Snapshot
	// Artifact is set for successful workflows with a download endpoint.
	// It is already released when AutoSave wrote it to Path.
	Artifact *task.Artifact
	// Path is where AutoSave wrote the result.
	Path string
	// Transcript is the text of a transcript workflow.
	Transcript string
	// Pending is set when the backend reported the job as already queued.
	Pending bool
}

// Run submits a job and follows it to the end: track the status until
// terminal, then fetch the artifact and optionally save it. A FAILURE is
// returned as an error together with the partial Result.
func (c *Client) Run(ctx context.Context, kind Kind, body any, opts RunOptions) (*Result, error) {
	sub, err := c.Submit(ctx, kind, body)
	if err != nil {
		return nil, err
	}

	// Only inline-result workflows may answer without a task id.
	if sub.Handle == nil && kind.HasArtifact() {
		return nil, &task.SubmitError{Kind: kind.Name, Op: "decode", Err: errors.New("response carries no task id")}
	}
	if sub.Pending {
		return &Result{Pending: true}, nil
	}
	if sub.Handle == nil {
		res := &Result{Snapshot: task.Snapshot{State: task.StateSuccess, Progress: 100, Result: sub.Result}}
		text, err := RenderTranscript(sub.Result, opts.TranscriptFormat)
		if err != nil {
			return res, err
		}
		res.Transcript = text
		if opts.AutoSave {
			res.Path, err = saveText(opts.OutputDir, filenameFor(kind.DefaultFilename, opts.TranscriptFormat), text)
		}
		return res, err
	}

	c.recordStart(ctx, kind, *sub.Handle, opts.SourceURL)
	return c.follow(ctx, kind, *sub.Handle, opts)
}

// Resume follows a job submitted earlier, identified by its task id.
func (c *Client) Resume(ctx context.Context, kind Kind, taskID string, opts RunOptions) (*Result, error) {
	if taskID == "" {
		return nil, errors.New("task id is required")
	}
	h := task.Handle{ID: taskID, Kind: kind.Name, StatusPath: kind.StatusPath}
	c.recordStart(ctx, kind, h, opts.SourceURL)
	return c.follow(ctx, kind, h, opts)
}

func (c *Client) follow(ctx context.Context, kind Kind, h task.Handle, opts RunOptions) (*Result, error) {
	tr := c.NewTracker(kind)
	defer tr.Close()
	if opts.OnUpdate != nil {
		tr.OnUpdate(opts.OnUpdate)
	}
	if err := tr.Track(ctx, h); err != nil {
		return nil, err
	}

	snap, err := tr.Wait(ctx)
	res := &Result{Handle: &h, Snapshot: snap}
	if err != nil {
		c.recordEnd(ctx, h, snap, "")
		return res, err
	}

	if !kind.HasArtifact() {
		text, err := RenderTranscript(snap.Result, opts.TranscriptFormat)
		if err != nil {
			c.recordEnd(ctx, h, snap, "")
			return res, err
		}
		res.Transcript = text
		if opts.AutoSave {
			if res.Path, err = saveText(opts.OutputDir, filenameFor(kind.DefaultFilename, opts.TranscriptFormat), text); err != nil {
				c.recordEnd(ctx, h, snap, "")
				return res, err
			}
		}
		c.recordEnd(ctx, h, snap, res.Path)
		return res, nil
	}

	art, err := c.FetchArtifact(ctx, kind, h, snap)
	if err != nil {
		c.recordEnd(ctx, h, snap, "")
		return res, err
	}
	res.Artifact = art
	if opts.AutoSave {
		if res.Path, err = art.Save(outputDir(opts.OutputDir)); err != nil {
			c.recordEnd(ctx, h, snap, "")
			return res, err
		}
	}
	c.recordEnd(ctx, h, snap, res.Path)
	return res, nil
}

func outputDir(dir string) string {
	if dir == "" {
		return "."
	}
	return dir
}

func saveText(dir, name, text string) (string, error) {
	path := filepath.Join(outputDir(dir), name)
	if _, err := storage.WriteFileAtomic(path, strings.NewReader(text), 0644); err != nil {
		return "", fmt.Errorf("save transcript: %w", err)
	}
	return path, nil
}
