package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/nexmoe/vidbee-server/internal/config"
	"github.com/nexmoe/vidbee-server/internal/queue"
)

func (s *Server) createDownload(c *gin.Context) {
	var input queue.DownloadInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	task, err := s.manager.Submit(input)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, task)
}

func (s *Server) listDownloads(c *gin.Context) {
	tasks, err := s.manager.ListDownloads()
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"downloads": tasks})
}

func (s *Server) cancelDownload(c *gin.Context) {
	id := c.Param("id")
	ok, err := s.manager.Cancel(id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no cancellable task with id " + id})
		return
	}
	c.JSON(http.StatusOK, gin.H{"cancelled": true})
}

func (s *Server) listHistory(c *gin.Context) {
	tasks, err := s.manager.ListHistory()
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": tasks})
}

func (s *Server) removeHistoryItems(c *gin.Context) {
	var body struct {
		IDs []string `json:"ids"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	if len(body.IDs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ids must not be empty"})
		return
	}
	removed, err := s.manager.RemoveHistoryItems(body.IDs)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": removed})
}

func (s *Server) removeHistoryByPlaylist(c *gin.Context) {
	removed, err := s.manager.RemoveHistoryByPlaylist(c.Param("gid"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": removed})
}

func (s *Server) getStatus(c *gin.Context) {
	status, err := s.manager.GetStatus()
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

func (s *Server) getVideoInfo(c *gin.Context) {
	url := strings.TrimSpace(c.Query("url"))
	if url == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url query parameter is required"})
		return
	}
	info, err := s.manager.GetVideoInfo(c.Request.Context(), url, settingsFromQuery(c))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

func (s *Server) getPlaylistInfo(c *gin.Context) {
	url := strings.TrimSpace(c.Query("url"))
	if url == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url query parameter is required"})
		return
	}
	info, err := s.manager.GetPlaylistInfo(c.Request.Context(), url, settingsFromQuery(c))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

func (s *Server) startPlaylistDownload(c *gin.Context) {
	var req queue.PlaylistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url must not be empty"})
		return
	}
	result, err := s.manager.StartPlaylistDownload(c.Request.Context(), req)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func settingsFromQuery(c *gin.Context) *config.Overrides {
	o := &config.Overrides{
		CookiesFromBrowser: c.Query("cookies_from_browser"),
		Proxy:              c.Query("proxy"),
	}
	if o.CookiesFromBrowser == "" && o.Proxy == "" {
		return nil
	}
	return o
}

// writeError maps manager errors onto HTTP statuses. Input problems are 400,
// a manager that never initialized is 503, anything else is 500.
func (s *Server) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, queue.ErrEmptyURL):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, queue.ErrNotInitialized):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
