package media

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"vidflow/internal/stubserver"
	"vidflow/task"
)

func TestClient_UserDownloads(t *testing.T) {
	_, client := newTestClient(t, stubserver.Options{}, Options{})
	ctx := waitCtx(t)

	list, err := client.UserDownloads(ctx)
	if err != nil {
		t.Fatalf("UserDownloads() error = %v", err)
	}
	if len(list) != 0 {
		t.Errorf("UserDownloads() before any download = %+v", list)
	}

	if _, err := client.DownloadResult(ctx, 1); !errors.Is(err, task.ErrArtifactUnavailable) {
		t.Errorf("DownloadResult() of unknown id error = %v, want ErrArtifactUnavailable", err)
	}

	res, err := client.Run(ctx, DownloadFragment, FragmentRequest("https://youtu.be/frag", "00:00:02", "00:00:07"), RunOptions{})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Snapshot.State != task.StateSuccess {
		t.Fatalf("Run() snapshot = %+v", res.Snapshot)
	}

	list, err = client.UserDownloads(ctx)
	if err != nil {
		t.Fatalf("UserDownloads() error = %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("UserDownloads() = %+v, want one entry", list)
	}
	d := list[0]
	if d.ID != 1 || d.VideoURL != "https://youtu.be/frag" || d.StartTime != "00:00:02" || d.EndTime != "00:00:07" || d.CreatedAt == "" {
		t.Errorf("download entry = %+v", d)
	}

	art, err := client.DownloadResult(ctx, d.ID)
	if err != nil {
		t.Fatalf("DownloadResult() error = %v", err)
	}
	if art.Filename != "stub-fragment.mp4" {
		t.Errorf("Filename = %q, want stub-fragment.mp4", art.Filename)
	}
	path, err := art.Save(t.TempDir())
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil || string(data) != "stub fragment bytes" {
		t.Errorf("saved fragment = %q, %v", data, err)
	}
	if filepath.Base(path) != "stub-fragment.mp4" {
		t.Errorf("saved as %q", path)
	}
}

func TestClient_DownloadResultDefaultName(t *testing.T) {
	_, client := newTestClient(t, stubserver.Options{
		Payloads: map[string]stubserver.Payload{
			stubserver.KindDownloadFragment: {ContentType: "video/mp4", Data: []byte("clip")},
		},
	}, Options{})
	ctx := waitCtx(t)

	if _, err := client.Run(ctx, DownloadFragment, FragmentRequest("https://youtu.be/frag", "1", "2"), RunOptions{}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	art, err := client.DownloadResult(ctx, 1)
	if err != nil {
		t.Fatalf("DownloadResult() error = %v", err)
	}
	if art.Filename != "fragment_1.mp4" {
		t.Errorf("Filename = %q, want fragment_1.mp4", art.Filename)
	}
}

func TestDecodeUserDownloads(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{"wrapped", `{"downloads": [{"id": 3, "video_url": "u"}]}`, 1},
		{"bare list", `[{"id": 3}, {"id": 4}]`, 2},
		{"wrapped empty", `{"downloads": []}`, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeUserDownloads([]byte(tt.body))
			if err != nil {
				t.Fatalf("decodeUserDownloads() error = %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("len = %d, want %d", len(got), tt.want)
			}
			if tt.want > 0 && got[0].ID != 3 {
				t.Errorf("first id = %d, want 3", got[0].ID)
			}
		})
	}
	if _, err := decodeUserDownloads([]byte(`"nope"`)); err == nil {
		t.Error("decodeUserDownloads() accepted a string")
	}
}
