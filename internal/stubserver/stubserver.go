// Package stubserver is an in-memory stand-in for the video backend. It serves
// the job, catalog and auth endpoints with scripted responses, for tests and
// for local runs of the CLI without a real backend.
package stubserver

import (
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Step is one scripted status response.
type Step struct {
	Status  string  // e.g. "PENDING", "PROGRESS", "SUCCESS", "FAILURE"
	Percent float64 // reported when Status is a running state
	Step    string
	Info    string // failure message
	Result  any    // success result, if any
}

// Script is the sequence of status responses for a job. Each status request
// consumes one step; the last step repeats.
type Script []Step

// Payload is the artifact served for a finished job.
type Payload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Kinds served by the stub.
const (
	KindVideo            = "video"
	KindAudio            = "audio"
	KindFragment         = "fragment"
	KindDownloadFragment = "download_fragment"
	KindTranscript       = "transcript"
)

// Options configures a Server.
type Options struct {
	// Token is the bearer token required on protected endpoints. Empty
	// disables the check. /login hands out this token.
	Token string
	// Users maps usernames to passwords for /login.
	Users map[string]string
	// Scripts overrides the status script per kind.
	Scripts map[string]Script
	// Payloads overrides the artifact per kind.
	Payloads map[string]Payload
	// Transcripts maps video URLs to transcripts that are returned immediately.
	Transcripts map[string]string
	// Queued lists video URLs whose transcript is reported as already queued.
	Queued map[string]bool
	// Logger enables gin request logging.
	Logger bool
}

// DefaultScript is PENDING, PROGRESS 10, PROGRESS 55, SUCCESS.
func DefaultScript() Script {
	return Script{
		{Status: "PENDING"},
		{Status: "PROGRESS", Percent: 10, Step: "downloading"},
		{Status: "PROGRESS", Percent: 55, Step: "downloading"},
		{Status: "SUCCESS"},
	}
}

type job struct {
	id        string
	kind      string
	sourceURL string
	script    Script
	polls     int
	createdAt time.Time
}

// finished reports whether the job's last served status was SUCCESS.
func (j *job) finished() bool {
	if j.polls < len(j.script) {
		return false
	}
	return strings.EqualFold(j.script[len(j.script)-1].Status, "SUCCESS")
}

// Server is the stub backend.
type Server struct {
	opts   Options
	engine *gin.Engine

	mu          sync.Mutex
	jobs        map[string]*job
	users       map[string]string
	linked      map[string]bool
	submissions map[string]int
	userIDs     map[string]int
	current     string
	downloads   []*userDownload
}

// New creates a stub backend with routes under /api.
func New(opts Options) *Server {
	s := &Server{
		opts:        opts,
		jobs:        make(map[string]*job),
		users:       make(map[string]string),
		linked:      make(map[string]bool),
		submissions: make(map[string]int),
		userIDs:     make(map[string]int),
	}
	for u, p := range opts.Users {
		s.users[u] = p
		s.userIDs[u] = len(s.userIDs) + 1
	}

	r := gin.New()
	r.Use(gin.Recovery())
	if opts.Logger {
		r.Use(gin.Logger())
	}
	s.register(r.Group("/api"))
	s.engine = r
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.engine }

// Run serves on addr until the listener fails.
func (s *Server) Run(addr string) error { return s.engine.Run(addr) }

func (s *Server) register(api *gin.RouterGroup) {
	api.POST("/login", s.login)
	api.POST("/register", s.registerUser)

	p := api.Group("", s.requireToken)

	p.GET("/protected", s.profile)
	p.GET("/video_qualities", s.videoQualities)

	p.POST("/download_video", s.submit(KindVideo, "video_url", "format_id"))
	p.POST("/download_audio", s.submit(KindAudio, "video_url"))
	p.POST("/cut_video", s.submit(KindFragment, "task_id", "start_time", "end_time"))
	p.POST("/download_fragment", s.submit(KindDownloadFragment, "video_url", "start_time", "end_time"))
	p.POST("/transcript", s.transcript)

	p.GET("/download_video_status/:id", s.status)
	p.GET("/download_audio_status/:id", s.status)
	p.GET("/extract_fragment_status/:id", s.status)
	p.GET("/task_status/:id", s.celeryStatus)

	p.GET("/get_downloaded_video/:id", s.artifact)
	p.GET("/get_downloaded_audio/:id", s.artifact)
	p.GET("/get_fragment/:id", s.artifact)

	p.GET("/check-user-transcript", s.checkTranscript)
	p.POST("/add-user-transcript", s.addTranscript)
	p.GET("/user-transcripts", s.userTranscripts)

	p.GET("/user_downloads", s.userDownloads)
	p.GET("/download_fragment_result/:id", s.downloadResult)

	yt := p.Group("/youtube")
	yt.GET("/search_channel", s.searchChannel)
	yt.GET("/get_channel_playlists/:id", s.channelPlaylists)
	yt.GET("/fetch_playlist_videos/:id", s.playlistVideos)
	yt.GET("/fetch_channel_videos/:id", s.channelVideos)
	yt.GET("/fetch_video_details/:id", s.videoDetails)
}

func (s *Server) requireToken(c *gin.Context) {
	if s.opts.Token == "" {
		c.Next()
		return
	}
	if c.GetHeader("Authorization") != "Bearer "+s.opts.Token {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"msg": "Missing or invalid Authorization Header"})
		return
	}
	c.Next()
}

func (s *Server) login(c *gin.Context) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Username == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"msg": "Missing username or password"})
		return
	}
	s.mu.Lock()
	pass, ok := s.users[req.Username]
	s.mu.Unlock()
	if !ok || pass != req.Password {
		c.JSON(http.StatusUnauthorized, gin.H{"msg": "Bad username or password"})
		return
	}
	s.mu.Lock()
	s.current = req.Username
	s.mu.Unlock()
	token := s.opts.Token
	if token == "" {
		token = uuid.NewString()
	}
	c.JSON(http.StatusOK, gin.H{"access_token": token})
}

func (s *Server) registerUser(c *gin.Context) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Username == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"msg": "Missing username or password"})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[req.Username]; exists {
		c.JSON(http.StatusConflict, gin.H{"msg": "Username already exists"})
		return
	}
	s.users[req.Username] = req.Password
	s.userIDs[req.Username] = len(s.userIDs) + 1
	c.JSON(http.StatusCreated, gin.H{"msg": "User created successfully"})
}

// submit creates a job for kind after checking the required body fields.
func (s *Server) submit(kind string, required ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body map[string]any
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		for _, k := range required {
			if v, ok := body[k]; !ok || v == nil || v == "" {
				c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("%s is required", k)})
				return
			}
		}
		source, _ := body["video_url"].(string)
		j := s.newJob(kind, source)
		if kind == KindDownloadFragment {
			start, _ := body["start_time"].(string)
			end, _ := body["end_time"].(string)
			s.recordDownload(j, start, end)
		}
		c.JSON(http.StatusOK, gin.H{"task_id": j.id})
	}
}

func (s *Server) newJob(kind, source string) *job {
	script := s.opts.Scripts[kind]
	if len(script) == 0 {
		script = DefaultScript()
		if kind == KindTranscript {
			script[len(script)-1].Result = "stub transcript for " + source
		}
	}
	j := &job{
		id:        uuid.NewString(),
		kind:      kind,
		sourceURL: source,
		script:    script,
		createdAt: time.Now(),
	}
	s.mu.Lock()
	s.jobs[j.id] = j
	s.submissions[kind]++
	s.mu.Unlock()
	return j
}

func (s *Server) transcript(c *gin.Context) {
	var req struct {
		VideoURL string `json:"video_url"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.VideoURL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No URL provided"})
		return
	}
	videoID := videoIDFrom(req.VideoURL)
	if text, ok := s.opts.Transcripts[req.VideoURL]; ok {
		c.JSON(http.StatusOK, gin.H{"transcript": text, "videoId": videoID})
		return
	}
	if s.opts.Queued[req.VideoURL] {
		c.JSON(http.StatusOK, gin.H{"status": "pending", "videoId": videoID})
		return
	}

	download := uuid.NewString()
	j := s.newJob(KindTranscript, req.VideoURL)
	s.mu.Lock()
	s.linked[videoID] = true
	s.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{
		"message":                  fmt.Sprintf("URL %s submitted successfully!", req.VideoURL),
		"triger_download_task_id":  download,
		"transcribe_audio_task_id": j.id,
		"already_linked":           true,
	})
}

// next consumes one script step of the job.
func (s *Server) next(id string) (Step, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return Step{}, false
	}
	i := j.polls
	if i >= len(j.script) {
		i = len(j.script) - 1
	}
	j.polls++
	return j.script[i], true
}

// status serves the flat {status, percent, step} shape.
func (s *Server) status(c *gin.Context) {
	st, ok := s.next(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
		return
	}
	resp := gin.H{"status": st.Status}
	switch strings.ToUpper(st.Status) {
	case "PROGRESS":
		resp["percent"] = st.Percent
		if st.Step != "" {
			resp["step"] = st.Step
		}
	case "FAILURE":
		resp["error"] = st.Info
	case "SUCCESS":
		if st.Result != nil {
			resp["result"] = st.Result
		}
	}
	c.JSON(http.StatusOK, resp)
}

// celeryStatus serves the nested {status, meta} shape of the transcript endpoint.
// Unknown ids report PENDING, as a task queue does.
func (s *Server) celeryStatus(c *gin.Context) {
	st, ok := s.next(c.Param("id"))
	if !ok {
		c.JSON(http.StatusOK, gin.H{"status": "PENDING"})
		return
	}
	switch strings.ToUpper(st.Status) {
	case "PROGRESS":
		c.JSON(http.StatusOK, gin.H{"status": "PROGRESS", "meta": gin.H{"percent": st.Percent, "step": st.Step}})
	case "SUCCESS":
		c.JSON(http.StatusOK, gin.H{"status": "SUCCESS", "result": st.Result})
	case "PENDING":
		c.JSON(http.StatusOK, gin.H{"status": "PENDING"})
	default:
		c.JSON(http.StatusOK, gin.H{"status": st.Status, "info": st.Info})
	}
}

func (s *Server) artifact(c *gin.Context) {
	s.mu.Lock()
	j, ok := s.jobs[c.Param("id")]
	ready := ok && j.finished()
	s.mu.Unlock()
	if !ready {
		c.JSON(http.StatusNotFound, gin.H{"error": "File not found on server"})
		return
	}

	p := s.payload(j.kind)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", p.Filename))
	c.Data(http.StatusOK, p.ContentType, p.Data)
}

func (s *Server) payload(kind string) Payload {
	if p, ok := s.opts.Payloads[kind]; ok {
		return p
	}
	switch kind {
	case KindAudio:
		return Payload{Filename: "stub-audio.mp3", ContentType: "audio/mpeg", Data: []byte("stub audio bytes")}
	case KindFragment, KindDownloadFragment:
		return Payload{Filename: "stub-fragment.mp4", ContentType: "video/mp4", Data: []byte("stub fragment bytes")}
	default:
		return Payload{Filename: "stub-video.mp4", ContentType: "video/mp4", Data: []byte("stub video bytes")}
	}
}

func (s *Server) videoQualities(c *gin.Context) {
	videoURL := c.Query("video_url")
	if videoURL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "video_url is required"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"video_title": "Stub video " + videoIDFrom(videoURL),
		"formats": []gin.H{
			{"format_id": "18", "resolution": "640x360", "filesize_mb": 12.4, "ext": "mp4"},
			{"format_id": "22", "resolution": "1280x720", "filesize_mb": "48.9", "ext": "mp4"},
			{"format_id": "137", "resolution": "1920x1080", "filesize_mb": nil, "ext": "mp4"},
		},
	})
}

// SubmissionCount returns how many jobs of kind were created.
func (s *Server) SubmissionCount(kind string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.submissions[kind]
}

// Polls returns how many status requests the job has received.
func (s *Server) Polls(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j, ok := s.jobs[id]; ok {
		return j.polls
	}
	return 0
}

func videoIDFrom(videoURL string) string {
	if i := strings.Index(videoURL, "v="); i >= 0 {
		id := videoURL[i+2:]
		if j := strings.IndexAny(id, "&#"); j >= 0 {
			id = id[:j]
		}
		return id
	}
	if i := strings.LastIndex(videoURL, "/"); i >= 0 {
		return videoURL[i+1:]
	}
	return videoURL
}
