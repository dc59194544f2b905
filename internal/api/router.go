package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/LJTian/TrendingRelay/internal/logging"
	"github.com/LJTian/TrendingRelay/internal/pipeline"
	"github.com/LJTian/TrendingRelay/internal/scheduler"
	"github.com/LJTian/TrendingRelay/internal/storage"
	"github.com/LJTian/TrendingRelay/internal/translator"
)

// Store 是 API 用到的只读查询，*storage.Store 实现了它
type Store interface {
	ListPlatforms() ([]storage.Platform, error)
	ListTrending(platform string, limit int) ([]storage.TrendingItem, error)
	ListTranslations(lang, platform string, limit int) ([]storage.TrendingTranslation, error)
	ListRecentBatchJobs(jobType string, limit int) ([]storage.BatchJob, error)
	GetBatchJob(id string) (*storage.BatchJob, error)
	ListCollectionLogs(batchJobID string, limit int) ([]storage.CollectionLog, error)
}

// Trigger 启动后台采集，*scheduler.Scheduler 实现了它
type Trigger interface {
	Trigger(jobType string) error
	Running() bool
}

type Server struct {
	store   Store
	trigger Trigger
}

func NewServer(store Store, trigger Trigger) *Server {
	return &Server{store: store, trigger: trigger}
}

func (s *Server) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", s.health)

	v1 := r.Group("/api/v1")
	{
		v1.GET("/platforms", s.listPlatforms)
		v1.GET("/trending", s.listTrending)
		v1.GET("/translations", s.listTranslations)
		v1.GET("/batch-jobs", s.listBatchJobs)
		v1.GET("/batch-jobs/:id", s.getBatchJob)
		v1.POST("/collect", s.collect)
	}
}

func ok(c *gin.Context, status int, data any) {
	c.JSON(status, gin.H{
		"code":    "ok",
		"message": "success",
		"data":    data,
	})
}

func fail(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{
		"code":    code,
		"message": message,
	})
}

func internalError(c *gin.Context, err error) {
	logging.L().Errorf("%s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	fail(c, http.StatusInternalServerError, "internal_error", "internal server error")
}

func queryLimit(c *gin.Context, def int) int {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(def)))
	if err != nil || limit <= 0 {
		return def
	}
	return limit
}

func (s *Server) health(c *gin.Context) {
	collecting := false
	if s.trigger != nil {
		collecting = s.trigger.Running()
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "collecting": collecting})
}

func (s *Server) listPlatforms(c *gin.Context) {
	list, err := s.store.ListPlatforms()
	if err != nil {
		internalError(c, err)
		return
	}
	ok(c, http.StatusOK, list)
}

func (s *Server) listTrending(c *gin.Context) {
	items, err := s.store.ListTrending(c.Query("platform"), queryLimit(c, 50))
	if err != nil {
		internalError(c, err)
		return
	}
	ok(c, http.StatusOK, items)
}

func (s *Server) listTranslations(c *gin.Context) {
	lang, supported := translator.LookupLanguage(c.Query("lang"))
	if !supported {
		fail(c, http.StatusBadRequest, "bad_request", "unsupported or missing lang")
		return
	}
	items, err := s.store.ListTranslations(lang.Code, c.Query("platform"), queryLimit(c, 50))
	if err != nil {
		internalError(c, err)
		return
	}
	ok(c, http.StatusOK, items)
}

func (s *Server) listBatchJobs(c *gin.Context) {
	jobs, err := s.store.ListRecentBatchJobs(c.Query("type"), queryLimit(c, 10))
	if err != nil {
		internalError(c, err)
		return
	}
	ok(c, http.StatusOK, jobs)
}

func (s *Server) getBatchJob(c *gin.Context) {
	id := c.Param("id")
	job, err := s.store.GetBatchJob(id)
	if errors.Is(err, storage.ErrNotFound) {
		fail(c, http.StatusNotFound, "not_found", "batch job not found")
		return
	}
	if err != nil {
		internalError(c, err)
		return
	}
	logs, err := s.store.ListCollectionLogs(id, 100)
	if err != nil {
		internalError(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"job": job, "logs": logs})
}

func (s *Server) collect(c *gin.Context) {
	if s.trigger == nil {
		fail(c, http.StatusServiceUnavailable, "unavailable", "collection is not enabled")
		return
	}
	err := s.trigger.Trigger(pipeline.JobAPI)
	if errors.Is(err, scheduler.ErrAlreadyRunning) {
		fail(c, http.StatusConflict, "conflict", "a collection run is already in progress")
		return
	}
	if errors.Is(err, scheduler.ErrStopped) {
		fail(c, http.StatusServiceUnavailable, "unavailable", "service is shutting down")
		return
	}
	if err != nil {
		internalError(c, err)
		return
	}
	ok(c, http.StatusAccepted, gin.H{"jobType": pipeline.JobAPI})
}
