package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ifuryst/agripost/internal/models"
	"github.com/ifuryst/agripost/internal/service"
)

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrInvalidState):
		return http.StatusConflict
	case errors.Is(err, models.ErrPublish):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(c *gin.Context, msg string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.Logger.Error(msg, zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(status, gin.H{"error": msg})
		return
	}
	s.Logger.Debug(msg, zap.String("path", c.FullPath()), zap.Error(err))
	c.JSON(status, gin.H{"error": err.Error()})
}

func (s *Server) bind(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return false
	}
	return true
}

func (s *Server) handleGenerateContent(c *gin.Context) {
	out := s.Posts.GenerateContent(c.Query("topic"), c.Query("platform"), c.Query("locale"))
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleSchedulePost(c *gin.Context) {
	var req service.ScheduleRequest
	if !s.bind(c, &req) {
		return
	}

	id, err := s.Posts.SchedulePost(c.Request.Context(), req)
	if err != nil {
		s.fail(c, "Failed to schedule post", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

func (s *Server) handleSaveDraft(c *gin.Context) {
	var req service.ScheduleRequest
	if !s.bind(c, &req) {
		return
	}

	id, err := s.Posts.SaveDraft(c.Request.Context(), req)
	if err != nil {
		s.fail(c, "Failed to save draft", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

func (s *Server) handleScheduleDraft(c *gin.Context) {
	var req struct {
		ScheduledTime string `json:"scheduled_time"`
	}
	if c.Request.ContentLength != 0 && !s.bind(c, &req) {
		return
	}

	if err := s.Posts.ScheduleDraft(c.Request.Context(), c.Param("id"), req.ScheduledTime); err != nil {
		s.fail(c, "Failed to schedule draft", err)
		return
	}
	s.respondPost(c, c.Param("id"))
}

func (s *Server) handleCancelPost(c *gin.Context) {
	if err := s.Posts.CancelPost(c.Request.Context(), c.Param("id")); err != nil {
		s.fail(c, "Failed to cancel post", err)
		return
	}
	s.respondPost(c, c.Param("id"))
}

func (s *Server) handleRetryPost(c *gin.Context) {
	if err := s.Posts.RetryPost(c.Request.Context(), c.Param("id")); err != nil {
		s.fail(c, "Failed to retry post", err)
		return
	}
	s.respondPost(c, c.Param("id"))
}

func (s *Server) handlePublishPost(c *gin.Context) {
	id := c.Param("id")
	ok, err := s.Posts.PublishPost(c.Request.Context(), id)
	if err != nil {
		var publishErr *models.PublishError
		if errors.As(err, &publishErr) {
			post, getErr := s.Posts.GetPost(c.Request.Context(), id)
			if getErr == nil {
				c.JSON(http.StatusBadGateway, gin.H{"published": false, "error": err.Error(), "post": post})
				return
			}
		}
		s.fail(c, "Failed to publish post", err)
		return
	}

	post, err := s.Posts.GetPost(c.Request.Context(), id)
	if err != nil {
		s.fail(c, "Failed to load post", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"published": ok, "post": post})
}

func (s *Server) respondPost(c *gin.Context, id string) {
	post, err := s.Posts.GetPost(c.Request.Context(), id)
	if err != nil {
		s.fail(c, "Failed to load post", err)
		return
	}
	c.JSON(http.StatusOK, post)
}

func (s *Server) handleGetPost(c *gin.Context) {
	s.respondPost(c, c.Param("id"))
}

func (s *Server) handleListPosts(c *gin.Context) {
	var filter models.PostFilter

	if raw := strings.ToLower(strings.TrimSpace(c.Query("status"))); raw != "" {
		status := models.PostStatus(raw)
		known := false
		for _, st := range models.AllPostStatuses() {
			if st == status {
				known = true
				break
			}
		}
		if !known {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown status " + raw})
			return
		}
		filter.Status = status
	}

	if raw := c.Query("platform"); raw != "" {
		platform, err := models.ParsePlatform(raw)
		if err != nil {
			s.fail(c, "Failed to list posts", err)
			return
		}
		filter.Platform = platform
	}

	posts, err := s.Posts.ListPosts(c.Request.Context(), filter)
	if err != nil {
		s.fail(c, "Failed to list posts", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"posts": posts, "count": len(posts)})
}

func (s *Server) handleListDue(c *gin.Context) {
	now := time.Now().UTC()
	if raw := c.Query("now"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "now must be an RFC 3339 timestamp"})
			return
		}
		now = t
	}

	posts, err := s.Posts.ListDue(c.Request.Context(), now)
	if err != nil {
		s.fail(c, "Failed to list due posts", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"posts": posts, "count": len(posts)})
}

func (s *Server) handleAnalyze(c *gin.Context) {
	period := c.DefaultQuery("period", "7d")

	report, err := s.Posts.AnalyzePerformance(c.Request.Context(), c.Param("platform"), period)
	if err != nil {
		s.fail(c, "Failed to analyze performance", err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (s *Server) handleRecordEngagement(c *gin.Context) {
	var snap models.EngagementSnapshot
	if !s.bind(c, &snap) {
		return
	}
	if snap.CollectedAt.IsZero() {
		snap.CollectedAt = time.Now().UTC()
	}

	if err := s.Posts.RecordEngagement(c.Request.Context(), c.Param("platform"), c.Param("ref"), snap); err != nil {
		s.fail(c, "Failed to record engagement", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleRegisterAccount(c *gin.Context) {
	var req service.RegisterAccountRequest
	if !s.bind(c, &req) {
		return
	}

	account, err := s.Posts.RegisterAccount(c.Request.Context(), req)
	if err != nil {
		s.fail(c, "Failed to register account", err)
		return
	}
	c.JSON(http.StatusCreated, account)
}

func (s *Server) handleGetAccount(c *gin.Context) {
	account, err := s.Posts.GetAccount(c.Request.Context(), c.Param("platform"), c.Param("account_id"))
	if err != nil {
		s.fail(c, "Failed to get account", err)
		return
	}
	c.JSON(http.StatusOK, account)
}
