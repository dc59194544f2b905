package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/LJTian/TrendingRelay/internal/logging"
)

// 批次任务状态：pending → in_progress → completed | failed
const (
	JobPending    = "pending"
	JobInProgress = "in_progress"
	JobCompleted  = "completed"
	JobFailed     = "failed"
)

// ErrInvalidTransition 表示批次任务状态不允许这样流转
var ErrInvalidTransition = errors.New("invalid batch job status transition")

// BatchJob 一次跨所有平台的采集运行
type BatchJob struct {
	ID                 string            `gorm:"primaryKey;size:36" json:"id"`
	JobType            string            `gorm:"size:64;index" json:"jobType"`
	Status             string            `gorm:"size:32;index" json:"status"`
	PlatformsProcessed datatypes.JSON    `gorm:"type:jsonb" json:"platformsProcessed"`
	TotalItems         int               `json:"totalItems"`
	Metadata           datatypes.JSONMap `gorm:"type:jsonb" json:"metadata"`
	StartedAt          *time.Time        `json:"startedAt"`
	CompletedAt        *time.Time        `json:"completedAt"`

	CreatedAt time.Time `gorm:"index" json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// CollectionLog 单个平台一次采集的结果
type CollectionLog struct {
	ID              uint   `gorm:"primaryKey" json:"id"`
	Platform        string `gorm:"size:64;index" json:"platform"`
	Status          string `gorm:"size:32;index" json:"status"` // success / partial / failed
	ItemsCollected  int    `json:"itemsCollected"`
	ItemsTranslated int    `json:"itemsTranslated"`
	ErrorMessage    string `gorm:"size:1024" json:"errorMessage"`
	DurationMS      int64  `json:"durationMs"`
	BatchJobID      string `gorm:"size:36;index" json:"batchJobId"`

	CreatedAt time.Time `gorm:"index" json:"createdAt"`
}

// Platforms 返回已处理的平台列表
func (j *BatchJob) Platforms() []string {
	var out []string
	if len(j.PlatformsProcessed) > 0 {
		_ = json.Unmarshal(j.PlatformsProcessed, &out)
	}
	return out
}

func canTransition(from, to string) bool {
	switch to {
	case JobInProgress:
		return from == JobPending
	case JobCompleted:
		return from == JobInProgress
	case JobFailed:
		return from == JobPending || from == JobInProgress
	}
	return false
}

func newBatchJob(jobType string, platforms []string, now time.Time) *BatchJob {
	if platforms == nil {
		platforms = []string{}
	}
	return &BatchJob{
		ID:                 uuid.NewString(),
		JobType:            jobType,
		Status:             JobPending,
		PlatformsProcessed: datatypes.JSON("[]"),
		Metadata: datatypes.JSONMap{
			"scheduled_platforms": platforms,
			"start_time":          now.UTC().Format(time.RFC3339),
		},
		StartedAt: &now,
	}
}

// applyProgress 记录一个平台处理完成：追加到已处理列表、累加条数并合并元数据
func applyProgress(j *BatchJob, platform string, items int, meta map[string]any, now time.Time) {
	platforms := j.Platforms()
	found := false
	for _, p := range platforms {
		if p == platform {
			found = true
			break
		}
	}
	if !found {
		platforms = append(platforms, platform)
	}
	bs, _ := json.Marshal(platforms)
	j.PlatformsProcessed = datatypes.JSON(bs)
	j.TotalItems += items

	if j.Metadata == nil {
		j.Metadata = datatypes.JSONMap{}
	}
	j.Metadata[platform+"_items"] = items
	j.Metadata[platform+"_processed_at"] = now.UTC().Format(time.RFC3339)
	for k, v := range meta {
		j.Metadata[k] = v
	}
}

func applyCompletion(j *BatchJob, summary map[string]any, now time.Time) {
	if j.Metadata == nil {
		j.Metadata = datatypes.JSONMap{}
	}
	for k, v := range summary {
		j.Metadata[k] = v
	}
	if j.StartedAt != nil {
		j.Metadata["duration_ms"] = now.Sub(*j.StartedAt).Milliseconds()
	} else {
		j.Metadata["duration_ms"] = nil
	}
	j.Metadata["completed_time"] = now.UTC().Format(time.RFC3339)
	j.Status = JobCompleted
	j.CompletedAt = &now
}

func applyFailure(j *BatchJob, cause error, partial map[string]any, now time.Time) {
	if j.Metadata == nil {
		j.Metadata = datatypes.JSONMap{}
	}
	for k, v := range partial {
		j.Metadata[k] = v
	}
	msg := "unknown error"
	if cause != nil {
		msg = cause.Error()
	}
	j.Metadata["error_message"] = msg
	j.Metadata["failed_at"] = now.UTC().Format(time.RFC3339)
	if j.StartedAt != nil {
		j.Metadata["duration_ms"] = now.Sub(*j.StartedAt).Milliseconds()
	}
	j.Status = JobFailed
	j.CompletedAt = &now
}

// LogCollection 写入一条平台采集日志
func (s *Store) LogCollection(entry CollectionLog) error {
	entry.ErrorMessage = truncateRunesDB(toValidUTF8(entry.ErrorMessage), 1024)
	if err := s.DB.Create(&entry).Error; err != nil {
		return fmt.Errorf("log collection %s: %w", entry.Platform, err)
	}
	return nil
}

// ListCollectionLogs 返回某批次（或全部）最近的采集日志
func (s *Store) ListCollectionLogs(batchJobID string, limit int) ([]CollectionLog, error) {
	var list []CollectionLog
	db := s.DB.Model(&CollectionLog{})
	if batchJobID != "" {
		db = db.Where("batch_job_id = ?", batchJobID)
	}
	err := db.Order("created_at DESC").Limit(normalizeLimit(limit)).Find(&list).Error
	return list, err
}

// CreateBatchJob 新建 pending 状态的批次任务
func (s *Store) CreateBatchJob(jobType string, platforms []string) (*BatchJob, error) {
	job := newBatchJob(jobType, platforms, time.Now())
	if err := s.DB.Create(job).Error; err != nil {
		return nil, fmt.Errorf("create batch job: %w", err)
	}
	logging.L().Infof("created batch job %s for %s", job.ID, jobType)
	return job, nil
}

// StartBatchJob pending → in_progress，并重置开始时间
func (s *Store) StartBatchJob(id string) error {
	return s.updateBatchJob(id, func(j *BatchJob) error {
		if !canTransition(j.Status, JobInProgress) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, j.Status, JobInProgress)
		}
		now := time.Now()
		j.Status = JobInProgress
		j.StartedAt = &now
		return nil
	})
}

// UpdatePlatformProgress 在行锁内合并单个平台的处理结果，平台可并发调用
func (s *Store) UpdatePlatformProgress(id, platform string, items int, meta map[string]any) error {
	return s.updateBatchJob(id, func(j *BatchJob) error {
		applyProgress(j, platform, items, meta, time.Now())
		return nil
	})
}

// CompleteBatchJob in_progress → completed，元数据中写入 summary 与 duration_ms
func (s *Store) CompleteBatchJob(id string, summary map[string]any) error {
	return s.updateBatchJob(id, func(j *BatchJob) error {
		if !canTransition(j.Status, JobCompleted) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, j.Status, JobCompleted)
		}
		applyCompletion(j, summary, time.Now())
		return nil
	})
}

// FailBatchJob 标记失败，partial 为已完成部分的统计
func (s *Store) FailBatchJob(id string, cause error, partial map[string]any) error {
	return s.updateBatchJob(id, func(j *BatchJob) error {
		if !canTransition(j.Status, JobFailed) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, j.Status, JobFailed)
		}
		applyFailure(j, cause, partial, time.Now())
		return nil
	})
}

func (s *Store) updateBatchJob(id string, mutate func(*BatchJob) error) error {
	return s.DB.Transaction(func(tx *gorm.DB) error {
		var job BatchJob
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).First(&job).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("batch job %s: %w", id, ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("load batch job %s: %w", id, err)
		}
		if err := mutate(&job); err != nil {
			return err
		}
		return tx.Save(&job).Error
	})
}

// GetBatchJob 按 ID 查询，不存在时返回 ErrNotFound
func (s *Store) GetBatchJob(id string) (*BatchJob, error) {
	var job BatchJob
	silent := s.DB.Session(&gorm.Session{Logger: s.DB.Logger.LogMode(logger.Silent)})
	err := silent.Where("id = ?", id).First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// ListRecentBatchJobs 按创建时间倒序返回，jobType 为空时不过滤
func (s *Store) ListRecentBatchJobs(jobType string, limit int) ([]BatchJob, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	var list []BatchJob
	db := s.DB.Model(&BatchJob{})
	if jobType != "" {
		db = db.Where("job_type = ?", jobType)
	}
	err := db.Order("created_at DESC").Limit(limit).Find(&list).Error
	return list, err
}

// CleanupOldBatchJobs 删除 days 天前创建的批次任务及其采集日志
func (s *Store) CleanupOldBatchJobs(days int) (int64, error) {
	if days <= 0 {
		return 0, nil
	}
	cutoff := time.Now().AddDate(0, 0, -days)
	if err := s.DB.Where("created_at < ?", cutoff).Delete(&CollectionLog{}).Error; err != nil {
		return 0, fmt.Errorf("cleanup collection logs: %w", err)
	}
	res := s.DB.Where("created_at < ?", cutoff).Delete(&BatchJob{})
	if res.Error != nil {
		return 0, fmt.Errorf("cleanup batch jobs: %w", res.Error)
	}
	logging.L().Infof("cleaned up %d batch jobs older than %d days", res.RowsAffected, days)
	return res.RowsAffected, nil
}
