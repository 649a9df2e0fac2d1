package task

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"vidflow/internal/storage"
)

// Artifact is the binary result of a finished job. The payload can be handed
// off once, through Save or WriteTo, and is released afterwards.
type Artifact struct {
	TaskID      string
	Filename    string
	ContentType string
	Size        int64

	mu       sync.Mutex
	data     []byte
	released bool
}

// Save writes the artifact atomically into dir and returns the file path.
// A failed save keeps the payload so it can be retried.
func (a *Artifact) Save(dir string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.released {
		return "", ErrArtifactReleased
	}
	path := filepath.Join(dir, a.Filename)
	if _, err := storage.WriteFileAtomic(path, bytes.NewReader(a.data), 0644); err != nil {
		return "", fmt.Errorf("save artifact: %w", err)
	}
	a.release()
	return path, nil
}

// WriteTo implements io.WriterTo. The payload is released once fully written.
func (a *Artifact) WriteTo(w io.Writer) (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.released {
		return 0, ErrArtifactReleased
	}
	n, err := w.Write(a.data)
	if err != nil {
		return int64(n), err
	}
	a.release()
	return int64(n), nil
}

// Released reports whether the payload has been handed off.
func (a *Artifact) Released() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.released
}

func (a *Artifact) release() {
	a.data = nil
	a.released = true
}

// Materializer fetches the artifact of a finished job.
type Materializer struct {
	client Doer
	// Path is the artifact endpoint template, e.g. "/get_fragment/{id}".
	Path string
	// DefaultName is used when the response names no file.
	DefaultName string
}

// NewMaterializer creates a Materializer for one artifact endpoint.
func NewMaterializer(client Doer, path, defaultName string) *Materializer {
	return &Materializer{client: client, Path: path, DefaultName: defaultName}
}

// Fetch downloads the artifact for h. snap must be the SUCCESS snapshot of the
// same task, otherwise ErrNotReady is returned and no request is made.
func (m *Materializer) Fetch(ctx context.Context, h Handle, snap Snapshot) (*Artifact, error) {
	if snap.TaskID != h.ID || !snap.Succeeded() {
		return nil, fmt.Errorf("%w: task %s is %s", ErrNotReady, h.ID, snap.State)
	}
	if m.Path == "" {
		return nil, &ArtifactError{TaskID: h.ID, Err: errors.New("workflow has no artifact endpoint")}
	}

	resp, err := m.client.DoOnce(ctx, http.MethodGet, Expand(m.Path, h.ID), nil, nil)
	if err != nil {
		return nil, &ArtifactError{TaskID: h.ID, Err: err}
	}
	if len(resp.Body) == 0 {
		return nil, &ArtifactError{TaskID: h.ID, Err: errors.New("empty response body")}
	}

	return &Artifact{
		TaskID:      h.ID,
		Filename:    Filename(resp.Header.Get("Content-Disposition"), m.DefaultName),
		ContentType: resp.Header.Get("Content-Type"),
		Size:        int64(len(resp.Body)),
		data:        resp.Body,
	}, nil
}

var filenamePattern = regexp.MustCompile(`filename="?([^";]*)"?`)

// Filename extracts the file name from a Content-Disposition header value,
// reduced to its base name. It returns fallback when none can be found.
func Filename(disposition, fallback string) string {
	if disposition == "" {
		return fallback
	}
	if _, params, err := mime.ParseMediaType(disposition); err == nil {
		if name := safeName(params["filename"]); name != "" {
			return name
		}
	}
	if m := filenamePattern.FindStringSubmatch(disposition); m != nil {
		if name := safeName(m[1]); name != "" {
			return name
		}
	}
	return fallback
}

func safeName(name string) string {
	name = strings.TrimSpace(strings.ReplaceAll(name, `\`, "/"))
	if name == "" {
		return ""
	}
	name = filepath.Base(filepath.FromSlash(name))
	switch name {
	case ".", "..", string(filepath.Separator):
		return ""
	}
	return name
}
