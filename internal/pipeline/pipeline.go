package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/LJTian/TrendingRelay/internal/collector"
	"github.com/LJTian/TrendingRelay/internal/logging"
	"github.com/LJTian/TrendingRelay/internal/processor"
	"github.com/LJTian/TrendingRelay/internal/storage"
	"github.com/LJTian/TrendingRelay/internal/translator"
)

// 单个平台的采集结果
const (
	StatusSuccess = "success"
	StatusPartial = "partial"
	StatusFailed  = "failed"
)

// 批次任务类型
const (
	JobScheduled = "scheduled_collection"
	JobManual    = "manual_collection"
	JobAPI       = "api_collection"
)

var errAllPlatformsFailed = errors.New("all platforms failed")

// Store 是流水线用到的持久化操作，*storage.Store 实现了它
type Store interface {
	SaveNewRecords(platform string, records []processor.Record) ([]processor.Record, error)
	SaveTranslations(lang string, rows []translator.Translation) (int, error)
	LogCollection(entry storage.CollectionLog) error
	CreateBatchJob(jobType string, platforms []string) (*storage.BatchJob, error)
	StartBatchJob(id string) error
	UpdatePlatformProgress(id, platform string, items int, meta map[string]any) error
	CompleteBatchJob(id string, summary map[string]any) error
	FailBatchJob(id string, cause error, partial map[string]any) error
}

type Service struct {
	Store      Store
	Translator *translator.Translator
	Fetchers   map[string]collector.Fetcher
	Platforms  []string
	Languages  []translator.Language
	// PlatformDelay 每个平台处理完后的间隔，避免触发上游限流
	PlatformDelay time.Duration
	// Concurrency 同时处理的平台数，<=1 时按顺序执行
	Concurrency int

	Now func() time.Time
}

// PlatformResult 单个平台一次采集的结果
type PlatformResult struct {
	Platform   string        `json:"platform"`
	Status     string        `json:"status"`
	Fetched    int           `json:"fetched"`
	New        int           `json:"new"`
	Translated int           `json:"translated"`
	Error      string        `json:"error,omitempty"`
	Duration   time.Duration `json:"duration"`
}

// Summary 一次批次运行的汇总
type Summary struct {
	JobID           string           `json:"jobId"`
	Total           int              `json:"total"`
	Success         int              `json:"success"`
	Partial         int              `json:"partial"`
	Failed          int              `json:"failed"`
	TotalItems      int              `json:"totalItems"`
	TotalTranslated int              `json:"totalTranslated"`
	Results         []PlatformResult `json:"results"`
}

// Map 转成写入批次任务元数据的形式
func (s Summary) Map() map[string]any {
	return map[string]any{
		"total":            s.Total,
		"success":          s.Success,
		"partial":          s.Partial,
		"failed":           s.Failed,
		"total_items":      s.TotalItems,
		"total_translated": s.TotalTranslated,
	}
}

func summarize(jobID string, results []PlatformResult) Summary {
	sum := Summary{JobID: jobID, Total: len(results), Results: results}
	for _, r := range results {
		switch r.Status {
		case StatusSuccess:
			sum.Success++
		case StatusPartial:
			sum.Partial++
		default:
			sum.Failed++
		}
		sum.TotalItems += r.New
		sum.TotalTranslated += r.Translated
	}
	return sum
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// CollectPlatform 采集一个平台：拉取 → 归一 → 新记录入库 → 翻译到所有语言 → 写日志与批次进度
func (s *Service) CollectPlatform(ctx context.Context, platform, jobID string) (res PlatformResult) {
	start := time.Now()
	res = PlatformResult{Platform: platform, Status: StatusSuccess}

	defer func() {
		res.Duration = time.Since(start)
		s.record(jobID, res)
	}()

	fetcher, ok := s.Fetchers[platform]
	if !ok {
		return failed(res, fmt.Errorf("no fetcher registered for %s", platform))
	}

	logging.L().Infof("collecting %s via %s", platform, fetcher.Name())
	items, err := fetcher.Fetch(ctx)
	if err != nil {
		return failed(res, fmt.Errorf("fetch: %w", err))
	}
	records := processor.Normalize(platform, items, s.now())
	if len(records) == 0 {
		return failed(res, fmt.Errorf("fetch: %w", collector.ErrNoData))
	}
	res.Fetched = len(records)

	var errs []error
	fresh, err := s.Store.SaveNewRecords(platform, records)
	if err != nil {
		errs = append(errs, fmt.Errorf("save records: %w", err))
	}
	res.New = len(fresh)
	logging.L().Infof("%s: fetched=%d new=%d", platform, res.Fetched, res.New)

	if len(fresh) > 0 && len(s.Languages) > 0 && s.Translator.Enabled() {
		for _, lang := range s.Languages {
			if ctx.Err() != nil {
				errs = append(errs, fmt.Errorf("translate: %w", ctx.Err()))
				break
			}
			rows := s.Translator.TranslateRecords(ctx, fresh, lang.Code)
			n, err := s.Store.SaveTranslations(lang.Code, rows)
			if err != nil {
				errs = append(errs, fmt.Errorf("save %s translations: %w", lang.Code, err))
				continue
			}
			res.Translated += n
		}
	}

	if len(errs) > 0 {
		res.Status = StatusPartial
		res.Error = errors.Join(errs...).Error()
	}
	return res
}

func failed(res PlatformResult, err error) PlatformResult {
	res.Status = StatusFailed
	res.Error = err.Error()
	return res
}

// record 写采集日志与批次进度；失败只记录日志，不影响采集结果
func (s *Service) record(jobID string, res PlatformResult) {
	if res.Status == StatusFailed {
		logging.L().Warnf("%s: collection failed: %s", res.Platform, res.Error)
	}

	entry := storage.CollectionLog{
		Platform:        res.Platform,
		Status:          res.Status,
		ItemsCollected:  res.New,
		ItemsTranslated: res.Translated,
		ErrorMessage:    res.Error,
		DurationMS:      res.Duration.Milliseconds(),
		BatchJobID:      jobID,
	}
	if err := s.Store.LogCollection(entry); err != nil {
		logging.L().Warnf("%s: write collection log: %v", res.Platform, err)
	}

	if jobID == "" {
		return
	}
	meta := map[string]any{
		res.Platform + "_status":     res.Status,
		res.Platform + "_translated": res.Translated,
	}
	if err := s.Store.UpdatePlatformProgress(jobID, res.Platform, res.New, meta); err != nil {
		logging.L().Warnf("%s: update batch progress: %v", res.Platform, err)
	}
}

// CollectAll 以一个批次任务采集所有配置的平台
func (s *Service) CollectAll(ctx context.Context, jobType string) (Summary, error) {
	return s.CollectPlatforms(ctx, jobType, s.Platforms)
}

// CollectPlatforms 以一个批次任务采集指定平台；所有平台失败或 ctx 被取消时批次标记为 failed 并返回错误
func (s *Service) CollectPlatforms(ctx context.Context, jobType string, platforms []string) (Summary, error) {
	jobID := ""
	if job, err := s.Store.CreateBatchJob(jobType, platforms); err != nil {
		logging.L().Warnf("create batch job: %v", err)
	} else {
		jobID = job.ID
		if err := s.Store.StartBatchJob(jobID); err != nil {
			logging.L().Warnf("start batch job %s: %v", jobID, err)
		}
	}

	logging.L().Infof("start collect job %s (%d platforms)", jobID, len(platforms))
	results := make([]PlatformResult, len(platforms))

	limit := s.Concurrency
	if limit < 1 {
		limit = 1
	}
	var g errgroup.Group
	g.SetLimit(limit)
	for i, p := range platforms {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i] = PlatformResult{Platform: p, Status: StatusFailed, Error: err.Error()}
				return nil
			}
			results[i] = s.CollectPlatform(ctx, p, jobID)
			if i < len(platforms)-1 {
				s.rest(ctx)
			}
			return nil
		})
	}
	_ = g.Wait()

	sum := summarize(jobID, results)
	logging.L().Infof("collect job %s done: total=%d success=%d partial=%d failed=%d new=%d translated=%d",
		jobID, sum.Total, sum.Success, sum.Partial, sum.Failed, sum.TotalItems, sum.TotalTranslated)

	var runErr error
	switch {
	case ctx.Err() != nil:
		runErr = ctx.Err()
	case sum.Total > 0 && sum.Failed == sum.Total:
		runErr = errAllPlatformsFailed
	}

	if jobID != "" {
		var err error
		if runErr != nil {
			err = s.Store.FailBatchJob(jobID, runErr, sum.Map())
		} else {
			err = s.Store.CompleteBatchJob(jobID, sum.Map())
		}
		if err != nil {
			logging.L().Warnf("finish batch job %s: %v", jobID, err)
		}
	}
	return sum, runErr
}

func (s *Service) rest(ctx context.Context) {
	if s.PlatformDelay <= 0 {
		return
	}
	t := time.NewTimer(s.PlatformDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
