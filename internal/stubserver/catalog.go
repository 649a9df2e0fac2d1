package stubserver

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

func (s *Server) searchChannel(c *gin.Context) {
	handle := c.Query("handle")
	if handle == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Channel handle is required"})
		return
	}
	c.JSON(http.StatusOK, []gin.H{{
		"channel_id":    "UC" + handle,
		"title":         handle,
		"description":   "Stub channel " + handle,
		"thumbnail_url": nil,
	}})
}

func (s *Server) channelPlaylists(c *gin.Context) {
	id := c.Param("id")
	c.JSON(http.StatusOK, []gin.H{
		{"id": "PL" + id + "-1", "title": "Uploads", "description": "", "picture": "https://img.example/pl1.jpg"},
		{"id": "PL" + id + "-2", "title": "Talks", "description": "Conference talks", "picture": nil},
	})
}

func (s *Server) playlistVideos(c *gin.Context) {
	c.JSON(http.StatusOK, stubVideos(c.Param("id"), maxResults(c, 2)))
}

func (s *Server) channelVideos(c *gin.Context) {
	c.JSON(http.StatusOK, stubVideos(c.Param("id"), maxResults(c, 3)))
}

func (s *Server) videoDetails(c *gin.Context) {
	id := c.Param("id")
	c.JSON(http.StatusOK, gin.H{
		"video_id":      id,
		"title":         "Stub video " + id,
		"description":   "A video served by the stub backend",
		"published_at":  "2024-05-01T10:00:00Z",
		"channel_id":    "UCstub",
		"channel_title": "Stub Channel",
		"thumbnail_url": "https://img.example/" + id + ".jpg",
		"tags":          []string{"stub", "test"},
		"duration":      "PT4M13S",
		"view_count":    1024,
		"like_count":    64,
		"comment_count": 8,
	})
}

func (s *Server) checkTranscript(c *gin.Context) {
	videoID := c.Query("video_id")
	if videoID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "video_id param is required"})
		return
	}
	s.mu.Lock()
	linked := s.linked[videoID]
	s.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{"already_linked": linked})
}

func (s *Server) addTranscript(c *gin.Context) {
	var req struct {
		VideoID string `json:"video_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.VideoID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "video_id is required"})
		return
	}
	s.mu.Lock()
	s.linked[req.VideoID] = true
	s.mu.Unlock()
	c.JSON(http.StatusCreated, gin.H{"message": "success", "already_linked": true})
}

func (s *Server) userTranscripts(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]gin.H, 0, len(s.linked))
	for id := range s.linked {
		out = append(out, gin.H{
			"video_id": id,
			"title":    "Stub video " + id,
			"status":   "done",
		})
	}
	c.JSON(http.StatusOK, out)
}

func maxResults(c *gin.Context, def int) int {
	if n, err := strconv.Atoi(c.Query("max_results")); err == nil && n > 0 {
		return n
	}
	return def
}

func stubVideos(prefix string, n int) []gin.H {
	out := make([]gin.H, 0, n)
	for i := 1; i <= n; i++ {
		id := prefix + "-v" + strconv.Itoa(i)
		out = append(out, gin.H{
			"video_id":      id,
			"title":         "Stub video " + id,
			"published_at":  "2024-05-01T10:00:00Z",
			"thumbnail_url": "https://img.example/" + id + ".jpg",
		})
	}
	return out
}
