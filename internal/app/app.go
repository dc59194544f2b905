package app

import (
	"fmt"
	"time"

	"github.com/LJTian/TrendingRelay/internal/collector"
	"github.com/LJTian/TrendingRelay/internal/config"
	"github.com/LJTian/TrendingRelay/internal/logging"
	"github.com/LJTian/TrendingRelay/internal/pipeline"
	"github.com/LJTian/TrendingRelay/internal/scheduler"
	"github.com/LJTian/TrendingRelay/internal/storage"
	"github.com/LJTian/TrendingRelay/internal/translator"
)

const translationMemoryTTL = 7 * 24 * time.Hour

// App 持有一次进程运行所需的全部组件
type App struct {
	Config     *config.Config
	Store      *storage.Store
	Translator *translator.Translator
	Pipeline   *pipeline.Service
	Scheduler  *scheduler.Scheduler
}

// New 按配置依次初始化日志、存储、平台、采集链、翻译与调度
func New(cfg *config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logging.Setup(cfg.LogLevel, cfg.LogFile)

	store, err := storage.NewStore(cfg.PostgresDSN, cfg.RedisAddr)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	catalog, err := config.LoadPlatformCatalog(cfg.PlatformsFile)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	platforms := config.ResolvePlatforms(catalog, cfg.Platforms)

	fopts := collector.Options{
		APIBaseURL:      cfg.APIBaseURL,
		WeiboRSSSources: cfg.WeiboRSSSources,
		WeiboGithubURL:  cfg.WeiboGithubURL,
	}
	fetchers := make(map[string]collector.Fetcher, len(platforms))
	codes := make([]string, 0, len(platforms))
	for _, p := range platforms {
		if _, err := store.EnsurePlatform(p.Code, p.Name, p.BaseURL); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("ensure platform %s: %w", p.Code, err)
		}
		fetchers[p.Code] = collector.NewPlatformFetcher(fopts, p.Code, p.APIPath)
		codes = append(codes, p.Code)
	}

	var completer translator.Completer
	if cfg.TranslationEnabled() {
		completer = translator.NewOpenAICompleter(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel)
	}
	tr := translator.New(completer, translator.Options{
		ChunkSize:  cfg.TranslateChunkSize,
		MaxRetries: cfg.TranslateMaxRetries,
		RPS:        cfg.TranslateRPS,
		Memory:     store.TranslationMemory(translationMemoryTTL),
	})

	svc := &pipeline.Service{
		Store:         store,
		Translator:    tr,
		Fetchers:      fetchers,
		Platforms:     codes,
		Languages:     translator.Languages(cfg.TargetLanguages),
		PlatformDelay: cfg.PlatformDelay,
		Concurrency:   cfg.Concurrency,
	}

	sched, err := scheduler.New(scheduler.Options{
		CronSpec:              cfg.CronSpec,
		Location:              cfg.Location(),
		RunOnStart:            cfg.RunOnStart,
		TrendingRetentionDays: cfg.TrendingRetentionDays,
		BatchJobRetentionDays: cfg.BatchJobRetentionDays,
	}, svc, store, store)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	logging.L().Infof("app ready: platforms=%v languages=%d translation=%v", codes, len(svc.Languages), tr.Enabled())
	return &App{
		Config:     cfg,
		Store:      store,
		Translator: tr,
		Pipeline:   svc,
		Scheduler:  sched,
	}, nil
}

func (a *App) Close() error {
	return a.Store.Close()
}
