package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/LJTian/TrendingRelay/internal/logging"
)

type Config struct {
	AppPort string

	PostgresDSN string
	RedisAddr   string

	// 上游热榜 API，形如 {APIBaseURL}/{platform}
	APIBaseURL    string
	Platforms     []string
	PlatformsFile string

	CronSpec string
	Timezone string
	// 启动后是否立即执行一轮采集（开发环境常用）
	RunOnStart bool

	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string

	TargetLanguages     []string
	TranslateChunkSize  int
	TranslateMaxRetries int
	// 每秒允许的 LLM 请求数
	TranslateRPS float64

	PlatformDelay time.Duration
	Concurrency   int

	WeiboRSSSources []string
	WeiboGithubURL  string

	TrendingRetentionDays int
	BatchJobRetentionDays int

	BasicAuthUser string
	BasicAuthPass string

	LogLevel string
	LogFile  string
}

var defaultWeiboRSSSources = []string{
	"https://rsshub.rssforever.com/weibo/search/hot",
	"https://rsshub.app/weibo/search/hot",
	"https://rsshub.feeded.xyz/weibo/search/hot",
}

func Load() *Config {
	// .env 可选，已存在的环境变量优先
	_ = godotenv.Load()

	cfg := &Config{
		AppPort:     getEnv("APP_PORT", "9000"),
		PostgresDSN: getEnv("POSTGRES_DSN", "host=localhost user=trendingrelay password=trendingrelay dbname=trendingrelay port=5432 sslmode=disable TimeZone=UTC"),
		RedisAddr:   getEnv("REDIS_ADDR", "localhost:6380"),

		APIBaseURL:    strings.TrimRight(getEnv("API_BASE_URL", "http://localhost:8081/api/hot"), "/"),
		Platforms:     splitList(getEnv("PLATFORMS", "baidu,toutiao,douban,xhs,36kr,juejin,ithome,weibo")),
		PlatformsFile: getEnv("PLATFORMS_FILE", ""),

		CronSpec:   getEnv("COLLECTION_SCHEDULE", "*/15 * * * *"),
		Timezone:   getEnv("TZ_NAME", "Asia/Shanghai"),
		RunOnStart: getEnvBool("RUN_ON_START", false),

		OpenAIAPIKey:  getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL: getEnv("OPENAI_BASE_URL", ""),
		OpenAIModel:   getEnv("OPENAI_MODEL", "gpt-3.5-turbo"),

		TargetLanguages:     splitList(getEnv("TARGET_LANGUAGES", "en,ja,ko,es,fr,de,ru,ar")),
		TranslateChunkSize:  getEnvInt("TRANSLATE_CHUNK_SIZE", 25),
		TranslateMaxRetries: getEnvInt("TRANSLATE_MAX_RETRIES", 1),
		TranslateRPS:        getEnvFloat("TRANSLATE_RPS", 1),

		PlatformDelay: getEnvDuration("PLATFORM_DELAY", 2*time.Second),
		Concurrency:   getEnvInt("COLLECT_CONCURRENCY", 1),

		WeiboRSSSources: splitList(getEnv("WEIBO_RSS_SOURCES", strings.Join(defaultWeiboRSSSources, ","))),
		WeiboGithubURL:  getEnv("WEIBO_GITHUB_URL", "https://raw.githubusercontent.com/justjavac/weibo-trending-hot-search/master/README.md"),

		TrendingRetentionDays: getEnvInt("TRENDING_RETENTION_DAYS", 7),
		BatchJobRetentionDays: getEnvInt("BATCH_JOB_RETENTION_DAYS", 30),

		BasicAuthUser: getEnv("APP_BASIC_USER", ""),
		BasicAuthPass: getEnv("APP_BASIC_PASS", ""),

		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogFile:  getEnv("LOG_FILE", ""),
	}

	logging.L().Infof("config loaded: port=%s cron=%s platforms=%d languages=%d", cfg.AppPort, cfg.CronSpec, len(cfg.Platforms), len(cfg.TargetLanguages))
	return cfg
}

// Validate 检查启动所需的最小配置
func (c *Config) Validate() error {
	if c.PostgresDSN == "" {
		return errors.New("config: POSTGRES_DSN is required")
	}
	if len(c.Platforms) == 0 {
		return errors.New("config: PLATFORMS is empty")
	}
	return nil
}

// TranslationEnabled 未配置 key 时翻译会原样回显
func (c *Config) TranslationEnabled() bool {
	return c.OpenAIAPIKey != ""
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		logging.L().Warnf("invalid %s=%q, using %d", key, v, def)
		return def
	}
	return n
}

func getEnvFloat(key string, def float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		logging.L().Warnf("invalid %s=%q, using %v", key, v, def)
		return def
	}
	return f
}

func getEnvBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

// getEnvDuration 支持 "2s" 这样的时长，也兼容纯数字（按毫秒）
func getEnvDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if ms, err := strconv.Atoi(v); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	logging.L().Warnf("invalid %s=%q, using %s", key, v, def)
	return def
}

// splitList 按逗号拆分并去掉空白与空项
func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Location 返回调度使用的时区，加载失败时回退到东八区
func (c *Config) Location() *time.Location {
	if loc, err := time.LoadLocation(c.Timezone); err == nil {
		return loc
	}
	logging.L().Warnf("invalid TZ_NAME=%q, using CST", c.Timezone)
	return time.FixedZone("CST", 8*3600)
}
