package stubserver

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func do(t *testing.T, s *Server, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestJobLifecycle(t *testing.T) {
	s := New(Options{})

	rec := do(t, s, http.MethodPost, "/api/download_audio", `{"video_url": "https://www.youtube.com/watch?v=abc"}`, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("submit status = %d, body %s", rec.Code, rec.Body)
	}
	id, _ := decode(t, rec)["task_id"].(string)
	if id == "" {
		t.Fatal("submit returned no task_id")
	}

	// Artifact is not available before the job finishes.
	if rec := do(t, s, http.MethodGet, "/api/get_downloaded_audio/"+id, "", ""); rec.Code != http.StatusNotFound {
		t.Errorf("early artifact status = %d, want 404", rec.Code)
	}

	want := []string{"PENDING", "PROGRESS", "PROGRESS", "SUCCESS", "SUCCESS"}
	for i, w := range want {
		body := decode(t, do(t, s, http.MethodGet, "/api/download_audio_status/"+id, "", ""))
		if body["status"] != w {
			t.Errorf("poll %d status = %v, want %s", i, body["status"], w)
		}
	}
	if got := s.Polls(id); got != len(want) {
		t.Errorf("Polls() = %d, want %d", got, len(want))
	}

	rec = do(t, s, http.MethodGet, "/api/get_downloaded_audio/"+id, "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("artifact status = %d", rec.Code)
	}
	if cd := rec.Header().Get("Content-Disposition"); cd != `attachment; filename="stub-audio.mp3"` {
		t.Errorf("Content-Disposition = %q", cd)
	}
	if rec.Body.String() != "stub audio bytes" {
		t.Errorf("artifact body = %q", rec.Body.String())
	}
}

func TestSubmitValidation(t *testing.T) {
	s := New(Options{})
	rec := do(t, s, http.MethodPost, "/api/download_video", `{"video_url": "https://youtu.be/x"}`, "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing format_id status = %d, want 400", rec.Code)
	}
	if s.SubmissionCount(KindVideo) != 0 {
		t.Error("rejected submission created a job")
	}
}

func TestScriptedFailure(t *testing.T) {
	s := New(Options{Scripts: map[string]Script{
		KindFragment: {{Status: "PROGRESS", Percent: 40}, {Status: "FAILURE", Info: "disk full"}},
	}})
	rec := do(t, s, http.MethodPost, "/api/cut_video", `{"task_id": "src", "start_time": "00:00:01", "end_time": "00:00:05", "delete_original": false}`, "")
	id, _ := decode(t, rec)["task_id"].(string)

	first := decode(t, do(t, s, http.MethodGet, "/api/extract_fragment_status/"+id, "", ""))
	if first["percent"] != 40.0 {
		t.Errorf("percent = %v, want 40", first["percent"])
	}
	second := decode(t, do(t, s, http.MethodGet, "/api/extract_fragment_status/"+id, "", ""))
	if second["status"] != "FAILURE" || second["error"] != "disk full" {
		t.Errorf("failure body = %v", second)
	}
	if rec := do(t, s, http.MethodGet, "/api/get_fragment/"+id, "", ""); rec.Code != http.StatusNotFound {
		t.Errorf("artifact after failure status = %d, want 404", rec.Code)
	}
}

func TestTranscriptShapes(t *testing.T) {
	s := New(Options{
		Transcripts: map[string]string{"https://youtu.be/ready": "ready text"},
		Queued:      map[string]bool{"https://youtu.be/queued": true},
	})

	ready := decode(t, do(t, s, http.MethodPost, "/api/transcript", `{"video_url": "https://youtu.be/ready"}`, ""))
	if ready["transcript"] != "ready text" {
		t.Errorf("ready transcript body = %v", ready)
	}
	queued := decode(t, do(t, s, http.MethodPost, "/api/transcript", `{"video_url": "https://youtu.be/queued"}`, ""))
	if queued["status"] != "pending" {
		t.Errorf("queued transcript body = %v", queued)
	}

	started := decode(t, do(t, s, http.MethodPost, "/api/transcript", `{"video_url": "https://youtu.be/new"}`, ""))
	id, _ := started["transcribe_audio_task_id"].(string)
	if id == "" {
		t.Fatalf("transcript submit body = %v", started)
	}
	var last map[string]any
	for i := 0; i < 4; i++ {
		last = decode(t, do(t, s, http.MethodGet, "/api/task_status/"+id, "", ""))
	}
	if last["status"] != "SUCCESS" || last["result"] != "stub transcript for https://youtu.be/new" {
		t.Errorf("final transcript status = %v", last)
	}

	check := decode(t, do(t, s, http.MethodGet, "/api/check-user-transcript?video_id=new", "", ""))
	if check["already_linked"] != true {
		t.Errorf("check-user-transcript = %v, want linked", check)
	}
}

func TestAuth(t *testing.T) {
	s := New(Options{Token: "secret", Users: map[string]string{"alice": "pw"}})

	if rec := do(t, s, http.MethodGet, "/api/video_qualities?video_url=x", "", ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("unauthenticated status = %d, want 401", rec.Code)
	}

	if rec := do(t, s, http.MethodPost, "/api/login", `{"username": "alice", "password": "bad"}`, ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("bad login status = %d, want 401", rec.Code)
	}
	login := decode(t, do(t, s, http.MethodPost, "/api/login", `{"username": "alice", "password": "pw"}`, ""))
	if login["access_token"] != "secret" {
		t.Errorf("login body = %v", login)
	}

	rec := do(t, s, http.MethodGet, "/api/video_qualities?video_url=https://youtu.be/abc", "", "secret")
	if rec.Code != http.StatusOK {
		t.Fatalf("authenticated status = %d", rec.Code)
	}
	if title := decode(t, rec)["video_title"]; title != "Stub video abc" {
		t.Errorf("video_title = %v", title)
	}

	if rec := do(t, s, http.MethodPost, "/api/register", `{"username": "alice", "password": "x"}`, ""); rec.Code != http.StatusConflict {
		t.Errorf("duplicate register status = %d, want 409", rec.Code)
	}
	if rec := do(t, s, http.MethodPost, "/api/register", `{"username": "bob", "password": "x"}`, ""); rec.Code != http.StatusCreated {
		t.Errorf("register status = %d, want 201", rec.Code)
	}
}

func TestUserDownloads(t *testing.T) {
	s := New(Options{Users: map[string]string{"alice": "pw"}})

	if rec := do(t, s, http.MethodGet, "/api/protected", "", ""); rec.Code != http.StatusNotFound {
		t.Errorf("profile before login status = %d, want 404", rec.Code)
	}
	do(t, s, http.MethodPost, "/api/login", `{"username": "alice", "password": "pw"}`, "")
	if profile := decode(t, do(t, s, http.MethodGet, "/api/protected", "", "")); profile["username"] != "alice" || profile["id"] != 1.0 {
		t.Errorf("profile = %v", profile)
	}

	rec := do(t, s, http.MethodPost, "/api/download_fragment", `{"video_url": "https://youtu.be/frag", "start_time": "00:00:01", "end_time": "00:00:09"}`, "")
	id, _ := decode(t, rec)["task_id"].(string)

	var listing struct {
		Downloads []map[string]any `json:"downloads"`
	}
	if err := json.Unmarshal(do(t, s, http.MethodGet, "/api/user_downloads", "", "").Body.Bytes(), &listing); err != nil {
		t.Fatal(err)
	}
	if len(listing.Downloads) != 1 {
		t.Fatalf("downloads = %v, want one entry", listing.Downloads)
	}
	d := listing.Downloads[0]
	if d["id"] != 1.0 || d["video_url"] != "https://youtu.be/frag" || d["start_time"] != "00:00:01" || d["end_time"] != "00:00:09" {
		t.Errorf("download entry = %v", d)
	}

	if rec := do(t, s, http.MethodGet, "/api/download_fragment_result/1", "", ""); rec.Code != http.StatusNotFound {
		t.Errorf("result before finish status = %d, want 404", rec.Code)
	}
	for i := 0; i < len(DefaultScript()); i++ {
		do(t, s, http.MethodGet, "/api/extract_fragment_status/"+id, "", "")
	}
	rec = do(t, s, http.MethodGet, "/api/download_fragment_result/1", "", "")
	if rec.Code != http.StatusOK || rec.Body.String() != "stub fragment bytes" {
		t.Errorf("result status = %d, body %q", rec.Code, rec.Body)
	}
	if rec := do(t, s, http.MethodGet, "/api/download_fragment_result/x", "", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("bad id status = %d, want 400", rec.Code)
	}
}
