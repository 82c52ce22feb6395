// Package transcriptions serves upload, status, export and progress feeds
// for transcription runs.
package transcriptions

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"vietscribe-go/internal/app/pipeline"
	"vietscribe-go/internal/domain/export"
	"vietscribe-go/internal/domain/transcript"
	"vietscribe-go/internal/platform/config"
	"vietscribe-go/internal/platform/errors"
	"vietscribe-go/internal/platform/logging"
	"vietscribe-go/internal/platform/storage"
	httptransport "vietscribe-go/internal/transport/http"
	"vietscribe-go/internal/transport/ws"
)

// Runner accepts jobs. pipeline.Jobs satisfies it.
type Runner interface {
	Submit(ctx context.Context, req pipeline.Request) (string, error)
	Cancel(id string) bool
	Defaults(path string) pipeline.Request
}

// Store reads persisted runs. storage.TranscriptRepository satisfies it.
type Store interface {
	GetRun(ctx context.Context, id string) (*storage.TranscriptRun, error)
	GetDocument(ctx context.Context, id string) (transcript.Document, error)
	ListRuns(ctx context.Context, limit, offset int) ([]storage.TranscriptRun, int64, error)
	DeleteRun(ctx context.Context, id string) error
	Events(ctx context.Context, runID string) ([]storage.RunEvent, error)
}

var allowedExtensions = map[string]bool{".wav": true, ".mp3": true}

// Service holds the transcription HTTP handlers.
type Service struct {
	cfg    *config.Config
	runner Runner
	store  Store
	feeds  *ws.Router
	logger *logging.Logger
	ctx    context.Context
}

// NewService wires the handlers. feeds may be nil to disable websockets.
func NewService(cfg *config.Config, runner Runner, store Store, feeds *ws.Router, logger *logging.Logger) (*Service, error) {
	if cfg == nil || runner == nil || store == nil {
		return nil, errors.New(errors.KindTransport, "transcriptions.new", "config, runner and store are required")
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &Service{
		cfg:    cfg,
		runner: runner,
		store:  store,
		feeds:  feeds,
		logger: logger,
		ctx:    context.Background(),
	}, nil
}

// Register mounts the routes under api. ctx bounds websocket feeds.
func (s *Service) Register(ctx context.Context, api *gin.RouterGroup) {
	if ctx != nil {
		s.ctx = ctx
	}
	group := api.Group("/transcriptions")
	group.POST("", s.handleCreate)
	group.GET("", s.handleList)
	group.GET("/:id", s.handleGet)
	group.DELETE("/:id", s.handleDelete)
	group.POST("/:id/cancel", s.handleCancel)
	group.GET("/:id/export", s.handleExport)
	group.GET("/:id/events", s.handleEvents)
	group.GET("/:id/ws", s.handleFeed)
}

func (s *Service) handleCreate(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		httptransport.RespondError(c, http.StatusBadRequest, "multipart field \"file\" is required", nil)
		return
	}
	maxBytes := int64(s.cfg.Server.MaxUploadMB) * 1024 * 1024
	if maxBytes > 0 && file.Size > maxBytes {
		httptransport.RespondError(c, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("file exceeds %d MB", s.cfg.Server.MaxUploadMB), nil)
		return
	}
	ext := strings.ToLower(filepath.Ext(file.Filename))
	if !allowedExtensions[ext] {
		httptransport.RespondError(c, http.StatusUnsupportedMediaType, "only .wav and .mp3 uploads are supported", nil)
		return
	}

	id := uuid.NewString()
	req, err := s.buildRequest(c, id, ext, file.Filename)
	if err != nil {
		httptransport.RespondErr(c, err, "invalid request")
		return
	}

	if err := os.MkdirAll(s.cfg.Server.UploadDir, 0o755); err != nil {
		s.logger.ErrorTag("HTTP", "failed to create upload dir: %v", err)
		httptransport.RespondError(c, http.StatusInternalServerError, "failed to store upload", nil)
		return
	}
	if err := c.SaveUploadedFile(file, req.Path); err != nil {
		s.logger.ErrorTag("HTTP", "failed to save upload %s: %v", file.Filename, err)
		httptransport.RespondError(c, http.StatusInternalServerError, "failed to store upload", nil)
		return
	}

	if _, err := s.runner.Submit(c.Request.Context(), req); err != nil {
		_ = os.Remove(req.Path)
		s.logger.ErrorTag("HTTP", "failed to queue %s: %v", id, err)
		httptransport.RespondErr(c, err, "failed to queue transcription")
		return
	}

	httptransport.RespondSuccess(c, http.StatusAccepted, gin.H{
		"id":     id,
		"status": storage.StatusQueued,
		"links": gin.H{
			"self":   "/api/transcriptions/" + id,
			"export": "/api/transcriptions/" + id + "/export",
			"feed":   "/api/transcriptions/" + id + "/ws",
		},
	}, "queued")
}

func (s *Service) buildRequest(c *gin.Context, id, ext, filename string) (pipeline.Request, error) {
	req := s.runner.Defaults(filepath.Join(s.cfg.Server.UploadDir, id+ext))
	req.ID = id
	req.RemoveSource = true
	req.Title = strings.TrimSpace(c.PostForm("title"))
	if req.Title == "" {
		req.Title = filename
	}
	if v := c.PostForm("strategy"); v != "" {
		strategy, err := pipeline.ParseStrategy(v)
		if err != nil {
			return req, err
		}
		req.Strategy = strategy
	}
	for field, target := range map[string]*bool{"diarize": &req.Diarize, "enhance": &req.Enhance} {
		v := c.PostForm(field)
		if v == "" {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return req, errors.New(errors.KindConfig, "transcriptions.create", fmt.Sprintf("invalid %s value %q", field, v))
		}
		*target = b
	}
	return req, nil
}

func (s *Service) handleList(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if offset < 0 {
		offset = 0
	}
	runs, total, err := s.store.ListRuns(c.Request.Context(), limit, offset)
	if err != nil {
		s.respondStoreError(c, err)
		return
	}
	httptransport.RespondSuccess(c, http.StatusOK, gin.H{"items": runs, "total": total}, "")
}

func (s *Service) handleGet(c *gin.Context) {
	id := c.Param("id")
	run, err := s.store.GetRun(c.Request.Context(), id)
	if err != nil {
		s.respondStoreError(c, err)
		return
	}
	data := gin.H{"run": run}
	if run.Status == storage.StatusCompleted {
		doc, err := s.store.GetDocument(c.Request.Context(), id)
		if err != nil {
			s.respondStoreError(c, err)
			return
		}
		data["document"] = doc
	}
	httptransport.RespondSuccess(c, http.StatusOK, data, "")
}

func (s *Service) handleExport(c *gin.Context) {
	format, err := export.ParseFormat(c.DefaultQuery("format", string(export.FormatText)))
	if err != nil {
		httptransport.RespondError(c, http.StatusBadRequest, err.Error(), gin.H{"formats": export.Formats()})
		return
	}
	id := c.Param("id")
	run, err := s.store.GetRun(c.Request.Context(), id)
	if err != nil {
		s.respondStoreError(c, err)
		return
	}
	if run.Status != storage.StatusCompleted {
		httptransport.RespondError(c, http.StatusConflict, "transcription is "+run.Status, gin.H{"status": run.Status})
		return
	}
	doc, err := s.store.GetDocument(c.Request.Context(), id)
	if err != nil {
		s.respondStoreError(c, err)
		return
	}

	c.Header("Content-Type", format.ContentType())
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", id+format.Extension()))
	c.Status(http.StatusOK)
	if err := export.Write(c.Writer, format, doc); err != nil {
		s.logger.ErrorTag("HTTP", "export %s as %s failed: %v", id, format, err)
		_ = c.Error(err)
	}
}

func (s *Service) handleEvents(c *gin.Context) {
	id := c.Param("id")
	if _, err := s.store.GetRun(c.Request.Context(), id); err != nil {
		s.respondStoreError(c, err)
		return
	}
	events, err := s.store.Events(c.Request.Context(), id)
	if err != nil {
		s.respondStoreError(c, err)
		return
	}
	httptransport.RespondSuccess(c, http.StatusOK, gin.H{"items": events}, "")
}

func (s *Service) handleCancel(c *gin.Context) {
	id := c.Param("id")
	run, err := s.store.GetRun(c.Request.Context(), id)
	if err != nil {
		s.respondStoreError(c, err)
		return
	}
	if !active(run.Status) {
		httptransport.RespondError(c, http.StatusConflict, "transcription is "+run.Status, gin.H{"status": run.Status})
		return
	}
	s.runner.Cancel(id)
	httptransport.RespondSuccess(c, http.StatusAccepted, gin.H{"id": id}, "cancelling")
}

func (s *Service) handleDelete(c *gin.Context) {
	id := c.Param("id")
	run, err := s.store.GetRun(c.Request.Context(), id)
	if err != nil {
		s.respondStoreError(c, err)
		return
	}
	if active(run.Status) {
		s.runner.Cancel(id)
	}
	if err := s.store.DeleteRun(c.Request.Context(), id); err != nil {
		s.respondStoreError(c, err)
		return
	}
	s.removeUpload(id)
	httptransport.RespondSuccess(c, http.StatusOK, gin.H{"id": id}, "deleted")
}

// removeUpload deletes whatever upload is still stored for id.
func (s *Service) removeUpload(id string) {
	for ext := range allowedExtensions {
		path := filepath.Join(s.cfg.Server.UploadDir, id+ext)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			s.logger.WarnTag("HTTP", "failed to remove upload %s: %v", path, err)
		}
	}
}

func (s *Service) handleFeed(c *gin.Context) {
	if s.feeds == nil {
		httptransport.RespondError(c, http.StatusNotFound, "progress feeds are disabled", nil)
		return
	}
	id := c.Param("id")
	run, err := s.store.GetRun(c.Request.Context(), id)
	if err != nil {
		s.respondStoreError(c, err)
		return
	}
	hello := ws.Message{Type: "status", RunID: id, Data: run}
	s.feeds.Handle(s.ctx, c.Writer, c.Request, id, &hello, !active(run.Status))
}

func (s *Service) respondStoreError(c *gin.Context, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		httptransport.RespondError(c, http.StatusNotFound, "transcription not found", nil)
		return
	}
	s.logger.ErrorTag("HTTP", "%s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	httptransport.RespondErr(c, err, "storage error")
}

func active(status string) bool {
	return status == storage.StatusQueued || status == storage.StatusRunning
}
