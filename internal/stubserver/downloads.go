package stubserver

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// userDownload is a fragment download kept on the server side, as listed by
// /user_downloads.
type userDownload struct {
	id        int
	job       *job
	start     string
	end       string
	createdAt time.Time
}

func (s *Server) recordDownload(j *job, start, end string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.downloads = append(s.downloads, &userDownload{
		id:        len(s.downloads) + 1,
		job:       j,
		start:     start,
		end:       end,
		createdAt: j.createdAt,
	})
}

func (s *Server) userDownloads(c *gin.Context) {
	s.mu.Lock()
	out := make([]gin.H, 0, len(s.downloads))
	for _, d := range s.downloads {
		out = append(out, gin.H{
			"id":            d.id,
			"video_url":     d.job.sourceURL,
			"start_time":    d.start,
			"end_time":      d.end,
			"fragment_path": fmt.Sprintf("/downloads/fragments/%s.mp4", d.job.id),
			"created_at":    d.createdAt.UTC().Format(time.RFC3339),
		})
	}
	s.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{"downloads": out})
}

// downloadResult serves a stored fragment by its download id. It is only
// available once the fragment job has finished.
func (s *Server) downloadResult(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid download id"})
		return
	}

	s.mu.Lock()
	var found *userDownload
	for _, d := range s.downloads {
		if d.id == id {
			found = d
			break
		}
	}
	ready := found != nil && found.job.finished()
	s.mu.Unlock()
	if !ready {
		c.JSON(http.StatusNotFound, gin.H{"error": "File not found on server"})
		return
	}

	p := s.payload(KindDownloadFragment)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", p.Filename))
	c.Data(http.StatusOK, p.ContentType, p.Data)
}

// profile answers /protected with the user who logged in last.
func (s *Server) profile(c *gin.Context) {
	s.mu.Lock()
	user := s.current
	id := s.userIDs[user]
	s.mu.Unlock()
	if user == "" {
		c.JSON(http.StatusNotFound, gin.H{"msg": "User not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"username": user, "id": id})
}
