package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"ferry/internal/daemon"
	"ferry/internal/extract"
	"ferry/internal/progress"
)

func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(dateTimeFormat),
	})
}

func (s *Server) getStatus(c *gin.Context) {
	c.JSON(http.StatusOK, FromStatus(s.service.Status(c.Request.Context())))
}

func (s *Server) getSummary(c *gin.Context) {
	c.JSON(http.StatusOK, FromSummary(s.service.Summary()))
}

func (s *Server) listUploads(c *gin.Context) {
	entries := s.service.Entries()
	items := make([]UploadEntry, 0, len(entries))
	for _, entry := range entries {
		items = append(items, FromEntry(entry))
	}
	c.JSON(http.StatusOK, UploadListResponse{Items: items})
}

func (s *Server) createUploads(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.opts.MaxUploadBytes)
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid multipart form: " + err.Error()})
		return
	}
	files := form.File["files"]
	if len(files) == 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "at least one file is required in field \"files\""})
		return
	}

	handles := make([]extract.Handle, 0, len(files))
	for _, fh := range files {
		handles = append(handles, fileHeaderHandle{header: fh})
	}
	kind := progress.ParseKind(c.PostForm("kind"))

	batchID, accepted, err := s.service.EnqueueBatch(c.Request.Context(), handles, kind)
	if errors.Is(err, daemon.ErrNotRunning) {
		s.writeError(c, err)
		return
	}
	resp := EnqueueResponse{BatchID: batchID, Items: make([]EnqueuedItem, 0, len(accepted))}
	for _, enq := range accepted {
		resp.Items = append(resp.Items, FromEnqueued(enq))
	}
	if err != nil {
		resp.Errors = strings.Split(err.Error(), "\n")
	}
	if len(resp.Items) == 0 {
		c.JSON(http.StatusBadRequest, resp)
		return
	}
	c.JSON(http.StatusAccepted, resp)
}

func (s *Server) createTextUpload(c *gin.Context) {
	var req TextUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request: " + err.Error()})
		return
	}

	kind := progress.ParseKind(req.Kind)
	handle := extract.BytesHandle{DisplayName: strings.TrimSpace(req.Name), Data: []byte(req.Content)}
	switch kind {
	case progress.KindLink:
		handle.MimeType = "text/uri-list"
		if handle.DisplayName == "" {
			handle.DisplayName = "link.url"
		}
	default:
		kind = progress.KindNote
		handle.MimeType = "text/plain; charset=utf-8"
		if handle.DisplayName == "" {
			handle.DisplayName = "note.txt"
		}
	}

	enq, err := s.service.Enqueue(c.Request.Context(), handle, daemon.EnqueueOptions{Kind: kind})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, EnqueueResponse{Items: []EnqueuedItem{FromEnqueued(enq)}})
}

func (s *Server) dismissUpload(c *gin.Context) {
	if !s.service.Dismiss(c.Param("id")) {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "upload not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) getBatch(c *gin.Context) {
	batchID := c.Param("id")
	counts := s.service.BatchCounts(batchID)
	if counts.Total == 0 {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "batch not found"})
		return
	}
	c.JSON(http.StatusOK, BatchCount{BatchID: batchID, Total: counts.Total, Completed: counts.Completed})
}

// streamProgress sends a "snapshot" event with every entry, then one
// "progress" event per update until the client disconnects.
func (s *Server) streamProgress(c *gin.Context) {
	updates, cancel := s.service.Watch(0)
	defer cancel()

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	entries := s.service.Entries()
	snapshot := make([]UploadEntry, 0, len(entries))
	for _, entry := range entries {
		snapshot = append(snapshot, FromEntry(entry))
	}
	c.SSEvent("snapshot", snapshot)
	c.Writer.Flush()

	heartbeat := time.NewTicker(s.opts.Heartbeat)
	defer heartbeat.Stop()
	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			c.SSEvent("progress", FromUpdate(update))
		case <-heartbeat.C:
			c.SSEvent("heartbeat", FromSummary(s.service.Summary()))
		}
		c.Writer.Flush()
	}
}

func (s *Server) listQueue(c *gin.Context) {
	items, err := s.service.ListPending(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	resp := QueueListResponse{Items: make([]QueueItem, 0, len(items))}
	for _, item := range items {
		resp.Items = append(resp.Items, FromQueueItem(item))
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) clearQueue(c *gin.Context) {
	removed, err := s.service.ClearQueue(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ClearResponse{Removed: removed})
}

func (s *Server) signIn(c *gin.Context) {
	var req SessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request: " + err.Error()})
		return
	}
	started, err := s.service.SignIn(req.Identity)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, SessionResponse{RestoreStarted: started})
}

func (s *Server) signOut(c *gin.Context) {
	cleared, err := s.service.SignOut(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, SessionResponse{Cleared: cleared})
}

func (s *Server) setReady(c *gin.Context) {
	var req ReadyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request: " + err.Error()})
		return
	}
	started, err := s.service.SetReady(*req.Ready)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, SessionResponse{RestoreStarted: started})
}

func (s *Server) testNotification(c *gin.Context) {
	if err := s.service.TestNotification(c.Request.Context()); err != nil {
		c.JSON(http.StatusBadGateway, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, NotificationResponse{Sent: true})
}
