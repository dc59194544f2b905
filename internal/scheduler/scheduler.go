package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/LJTian/TrendingRelay/internal/logging"
	"github.com/LJTian/TrendingRelay/internal/pipeline"
)

// ErrAlreadyRunning 表示已有一轮采集在本进程或其他进程中执行
var ErrAlreadyRunning = errors.New("collection already running")

// ErrStopped 表示调度器已停止，不再接受新的采集
var ErrStopped = errors.New("scheduler stopped")

const (
	runLockKey  = "trendingrelay:lock:collect"
	runLockTTL  = 30 * time.Minute
	cleanupSpec = "30 3 * * *"
	// 延迟执行首轮采集，避免与服务启动争抢资源
	startupDelay = 15 * time.Second
)

// Collector 执行一轮批次采集，*pipeline.Service 实现了它
type Collector interface {
	CollectAll(ctx context.Context, jobType string) (pipeline.Summary, error)
}

// Locker 提供跨进程互斥，*storage.Store 实现了它
type Locker interface {
	AcquireRunLock(ctx context.Context, key string, ttl time.Duration) (func(), bool, error)
}

// Cleaner 清理过期数据，*storage.Store 实现了它
type Cleaner interface {
	CleanupOldTrending(days int) (int64, error)
	CleanupOldBatchJobs(days int) (int64, error)
}

type Options struct {
	CronSpec   string
	Location   *time.Location
	RunOnStart bool

	TrendingRetentionDays int
	BatchJobRetentionDays int
}

type Scheduler struct {
	cron      *cron.Cron
	collector Collector
	locker    Locker
	cleaner   Cleaner
	opts      Options

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc

	// mu 保护 stopped 与 startTimer；wg 跟踪启动首轮与 Trigger 发起的后台采集
	mu           sync.Mutex
	stopped      bool
	startTimer   *time.Timer
	startupDelay time.Duration
	wg           sync.WaitGroup
}

func New(opts Options, c Collector, locker Locker, cleaner Cleaner) (*Scheduler, error) {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	cronLogger := cron.PrintfLogger(logging.L())
	cr := cron.New(
		cron.WithLocation(opts.Location),
		cron.WithLogger(cronLogger),
		cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
	)

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cron:         cr,
		collector:    c,
		locker:       locker,
		cleaner:      cleaner,
		opts:         opts,
		ctx:          ctx,
		cancel:       cancel,
		startupDelay: startupDelay,
	}

	if _, err := cr.AddFunc(opts.CronSpec, s.scheduledRun); err != nil {
		cancel()
		return nil, fmt.Errorf("add collection job %q: %w", opts.CronSpec, err)
	}
	if cleaner != nil {
		if _, err := cr.AddFunc(cleanupSpec, func() { _ = s.Cleanup() }); err != nil {
			cancel()
			return nil, fmt.Errorf("add cleanup job: %w", err)
		}
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	logging.L().Infof("scheduler started: collect=%q cleanup=%q tz=%s", s.opts.CronSpec, cleanupSpec, s.opts.Location)
	if s.opts.RunOnStart {
		s.mu.Lock()
		if !s.stopped {
			s.wg.Add(1)
			s.startTimer = time.AfterFunc(s.startupDelay, func() {
				defer s.wg.Done()
				s.scheduledRun()
			})
		}
		s.mu.Unlock()
	}
}

// Stop 停止调度并取消正在执行的采集；返回的 ctx 在定时任务与后台触发的采集都结束后关闭
func (s *Scheduler) Stop() context.Context {
	s.mu.Lock()
	s.stopped = true
	if s.startTimer != nil && s.startTimer.Stop() {
		// 首轮尚未触发，不会再执行
		s.wg.Done()
	}
	s.mu.Unlock()

	s.cancel()
	cronDone := s.cron.Stop()

	ctx, done := context.WithCancel(context.Background())
	go func() {
		<-cronDone.Done()
		s.wg.Wait()
		done()
	}()
	return ctx
}

// Running 表示本进程当前是否有采集在执行
func (s *Scheduler) Running() bool {
	return s.running.Load()
}

// RunOnce 同步执行一轮手动采集
func (s *Scheduler) RunOnce(ctx context.Context) (pipeline.Summary, error) {
	return s.run(ctx, pipeline.JobManual)
}

// Trigger 在后台启动一轮采集；已有采集在执行时返回 ErrAlreadyRunning
func (s *Scheduler) Trigger(jobType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return ErrStopped
	}
	if !s.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.running.Store(false)
		if _, err := s.runLocked(s.ctx, jobType); err != nil {
			logging.L().Warnf("triggered collection: %v", err)
		}
	}()
	return nil
}

func (s *Scheduler) scheduledRun() {
	if s.ctx.Err() != nil {
		return
	}
	_, err := s.run(s.ctx, pipeline.JobScheduled)
	switch {
	case errors.Is(err, ErrAlreadyRunning):
		logging.L().Info("skip scheduled collection: previous run still in progress")
	case err != nil:
		logging.L().Warnf("scheduled collection: %v", err)
	}
}

func (s *Scheduler) run(ctx context.Context, jobType string) (pipeline.Summary, error) {
	if !s.running.CompareAndSwap(false, true) {
		return pipeline.Summary{}, ErrAlreadyRunning
	}
	defer s.running.Store(false)
	return s.runLocked(ctx, jobType)
}

func (s *Scheduler) runLocked(ctx context.Context, jobType string) (pipeline.Summary, error) {
	if s.locker != nil {
		release, ok, err := s.locker.AcquireRunLock(ctx, runLockKey, runLockTTL)
		if err != nil {
			return pipeline.Summary{}, fmt.Errorf("acquire run lock: %w", err)
		}
		if !ok {
			return pipeline.Summary{}, ErrAlreadyRunning
		}
		defer release()
	}
	return s.collector.CollectAll(ctx, jobType)
}

// Cleanup 删除超过保留天数的热榜记录与批次任务
func (s *Scheduler) Cleanup() error {
	if s.cleaner == nil {
		return nil
	}
	var errs []error
	n, err := s.cleaner.CleanupOldTrending(s.opts.TrendingRetentionDays)
	if err != nil {
		errs = append(errs, err)
	} else {
		logging.L().Infof("cleanup: removed %d trending rows older than %d days", n, s.opts.TrendingRetentionDays)
	}
	if _, err := s.cleaner.CleanupOldBatchJobs(s.opts.BatchJobRetentionDays); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		logging.L().Warnf("cleanup: %v", err)
		return err
	}
	return nil
}
