package task

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	vhttp "vidflow/http"
)

func TestFilename(t *testing.T) {
	tests := []struct {
		name        string
		disposition string
		want        string
	}{
		{"empty", "", "video.mp4"},
		{"quoted", `attachment; filename="My Clip.mp4"`, "My Clip.mp4"},
		{"unquoted", `attachment; filename=clip.mp3`, "clip.mp3"},
		{"rfc 5987", `attachment; filename*=UTF-8''%D0%B2%D0%B8%D0%B4%D0%B5%D0%BE.mp4`, "видео.mp4"},
		{"path stripped", `attachment; filename="../../etc/passwd"`, "passwd"},
		{"windows path stripped", `attachment; filename="C:\\tmp\\x.mp4"`, "x.mp4"},
		{"malformed uses regex", `attachment; filename="broken.mp4"; size=`, "broken.mp4"},
		{"no filename", `inline`, "video.mp4"},
		{"dot dot only", `attachment; filename=".."`, "video.mp4"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Filename(tt.disposition, "video.mp4"); got != tt.want {
				t.Errorf("Filename(%q) = %q, want %q", tt.disposition, got, tt.want)
			}
		})
	}
}

type fakeDoer struct {
	resp  *vhttp.Response
	err   error
	calls int
	path  string
}

func (f *fakeDoer) DoOnce(ctx context.Context, method, path string, body []byte, headers map[string]string) (*vhttp.Response, error) {
	f.calls++
	f.path = path
	return f.resp, f.err
}

func TestMaterializer_Fetch(t *testing.T) {
	doer := &fakeDoer{resp: &vhttp.Response{
		StatusCode: http.StatusOK,
		Header: http.Header{
			"Content-Disposition": {`attachment; filename="song.mp3"`},
			"Content-Type":        {"audio/mpeg"},
		},
		Body: []byte("ID3-bytes"),
	}}
	m := NewMaterializer(doer, "/get_downloaded_audio/{id}", "audio.mp3")
	h := Handle{ID: "t1"}

	art, err := m.Fetch(context.Background(), h, Snapshot{TaskID: "t1", State: StateSuccess, Progress: 100})
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if doer.path != "/get_downloaded_audio/t1" {
		t.Errorf("request path = %q", doer.path)
	}
	if art.Filename != "song.mp3" || art.ContentType != "audio/mpeg" || art.Size != 9 {
		t.Errorf("artifact = %+v", art)
	}

	dir := t.TempDir()
	path, err := art.Save(dir)
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if path != filepath.Join(dir, "song.mp3") {
		t.Errorf("Save() path = %q", path)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "ID3-bytes" {
		t.Errorf("saved content = %q", data)
	}
	if !art.Released() {
		t.Error("Released() = false after Save")
	}

	if _, err := art.Save(dir); !errors.Is(err, ErrArtifactReleased) {
		t.Errorf("second Save() error = %v, want ErrArtifactReleased", err)
	}
	if _, err := art.WriteTo(&bytes.Buffer{}); !errors.Is(err, ErrArtifactReleased) {
		t.Errorf("WriteTo() after Save error = %v, want ErrArtifactReleased", err)
	}
}

func TestMaterializer_NotReady(t *testing.T) {
	doer := &fakeDoer{}
	m := NewMaterializer(doer, "/get_fragment/{id}", "fragment.mp4")

	tests := []struct {
		name string
		snap Snapshot
	}{
		{"progress", Snapshot{TaskID: "t1", State: StateProgress, Progress: 99}},
		{"failure", Snapshot{TaskID: "t1", State: StateFailure, Err: "disk full"}},
		{"other task", Snapshot{TaskID: "t2", State: StateSuccess, Progress: 100}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.Fetch(context.Background(), Handle{ID: "t1"}, tt.snap)
			if !errors.Is(err, ErrNotReady) {
				t.Errorf("Fetch() error = %v, want ErrNotReady", err)
			}
		})
	}
	if doer.calls != 0 {
		t.Errorf("requests = %d, want 0", doer.calls)
	}
}

func TestMaterializer_Unavailable(t *testing.T) {
	success := Snapshot{TaskID: "t1", State: StateSuccess, Progress: 100}

	tests := []struct {
		name     string
		doer     *fakeDoer
		wantAuth bool
	}{
		{"not found", &fakeDoer{err: &vhttp.HTTPError{StatusCode: 404, Body: []byte(`{"error": "File not found on server"}`)}}, false},
		{"unauthorized", &fakeDoer{err: &vhttp.HTTPError{StatusCode: 401}}, true},
		{"empty body", &fakeDoer{resp: &vhttp.Response{StatusCode: 200}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMaterializer(tt.doer, "/get_fragment/{id}", "fragment.mp4")
			_, err := m.Fetch(context.Background(), Handle{ID: "t1"}, success)
			if !errors.Is(err, ErrArtifactUnavailable) {
				t.Fatalf("Fetch() error = %v, want ErrArtifactUnavailable", err)
			}
			if errors.Is(err, ErrJobFailed) {
				t.Error("artifact error must be distinct from job failure")
			}
			if got := errors.Is(err, vhttp.ErrUnauthorized); got != tt.wantAuth {
				t.Errorf("errors.Is(err, ErrUnauthorized) = %v, want %v", got, tt.wantAuth)
			}
		})
	}
}

func TestMaterializer_NoArtifactEndpoint(t *testing.T) {
	m := NewMaterializer(&fakeDoer{}, "", "transcript.txt")
	_, err := m.Fetch(context.Background(), Handle{ID: "t"}, Snapshot{TaskID: "t", State: StateSuccess})
	if !errors.Is(err, ErrArtifactUnavailable) {
		t.Errorf("Fetch() error = %v, want ErrArtifactUnavailable", err)
	}
}

func TestArtifact_WriteTo(t *testing.T) {
	art := &Artifact{TaskID: "t", Filename: "a.bin", data: []byte("abc"), Size: 3}
	var buf bytes.Buffer
	n, err := art.WriteTo(&buf)
	if err != nil || n != 3 || buf.String() != "abc" {
		t.Fatalf("WriteTo() = %d, %v, %q", n, err, buf.String())
	}
	if _, err := art.Save(t.TempDir()); !errors.Is(err, ErrArtifactReleased) {
		t.Errorf("Save() after WriteTo error = %v, want ErrArtifactReleased", err)
	}
}

func TestArtifact_SaveFailureKeepsPayload(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	if err := os.WriteFile(blocker, nil, 0600); err != nil {
		t.Fatal(err)
	}
	art := &Artifact{TaskID: "t", Filename: "a.bin", data: []byte("abc"), Size: 3}

	// A regular file where a directory is expected makes the save fail.
	if _, err := art.Save(filepath.Join(blocker, "sub")); err == nil {
		t.Fatal("Save() into a file path error = nil, want error")
	}
	if art.Released() {
		t.Fatal("payload released after failed Save")
	}
	if _, err := art.Save(dir); err != nil {
		t.Errorf("retry Save() error = %v", err)
	}
}
