package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestGetEnvWithDefault(t *testing.T) {
	const key = "TEST_APP_PORT"

	// 环境变量未设置时，应该返回默认值
	_ = os.Unsetenv(key)
	if got := getEnv(key, "9000"); got != "9000" {
		t.Fatalf("getEnv(%q) = %q, want %q", key, got, "9000")
	}

	// 环境变量设置后，应优先返回环境变量
	t.Setenv(key, "8080")
	if got := getEnv(key, "9000"); got != "8080" {
		t.Fatalf("getEnv(%q) = %q, want %q", key, got, "8080")
	}
}

func TestLoadReadsPlatformsAndLanguages(t *testing.T) {
	t.Setenv("APP_PORT", "1234")
	t.Setenv("PLATFORMS", " weibo, ,baidu ,douyin")
	t.Setenv("TARGET_LANGUAGES", "en,ja")
	t.Setenv("APP_BASIC_USER", "user")
	t.Setenv("APP_BASIC_PASS", "pass")
	t.Setenv("PLATFORM_DELAY", "500")

	cfg := Load()
	if cfg.AppPort != "1234" {
		t.Fatalf("AppPort = %q, want %q", cfg.AppPort, "1234")
	}
	want := []string{"weibo", "baidu", "douyin"}
	if len(cfg.Platforms) != len(want) {
		t.Fatalf("Platforms = %v, want %v", cfg.Platforms, want)
	}
	for i := range want {
		if cfg.Platforms[i] != want[i] {
			t.Fatalf("Platforms[%d] = %q, want %q", i, cfg.Platforms[i], want[i])
		}
	}
	if len(cfg.TargetLanguages) != 2 {
		t.Fatalf("TargetLanguages = %v, want 2 entries", cfg.TargetLanguages)
	}
	if cfg.BasicAuthUser != "user" || cfg.BasicAuthPass != "pass" {
		t.Fatalf("BasicAuthUser/Pass not loaded correctly: %+v", cfg)
	}
	// 纯数字按毫秒解析
	if cfg.PlatformDelay != 500*time.Millisecond {
		t.Fatalf("PlatformDelay = %s, want 500ms", cfg.PlatformDelay)
	}
	if cfg.TranslationEnabled() {
		t.Fatalf("translation should be disabled without OPENAI_API_KEY")
	}
}

func TestGetEnvIntFallsBackOnGarbage(t *testing.T) {
	t.Setenv("TEST_CHUNK", "abc")
	if got := getEnvInt("TEST_CHUNK", 25); got != 25 {
		t.Fatalf("getEnvInt = %d, want 25", got)
	}
	t.Setenv("TEST_CHUNK", "10")
	if got := getEnvInt("TEST_CHUNK", 25); got != 10 {
		t.Fatalf("getEnvInt = %d, want 10", got)
	}
}

func TestValidate(t *testing.T) {
	cfg := &Config{PostgresDSN: "dsn", Platforms: []string{"weibo"}}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() = %v, want nil", err)
	}
	cfg.Platforms = nil
	if err := cfg.Validate(); err == nil {
		t.Fatalf("Validate() should fail without platforms")
	}
}

func TestLoadPlatformCatalogMergesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "platforms.yaml")
	content := `platforms:
  - code: weibo
    name: Weibo Hot
    base_url: https://weibo.com
  - code: hupu
    name: 虎扑
    api_path: hupu/v1
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write catalog: %v", err)
	}

	catalog, err := LoadPlatformCatalog(path)
	if err != nil {
		t.Fatalf("LoadPlatformCatalog error: %v", err)
	}

	resolved := ResolvePlatforms(catalog, []string{"weibo", "hupu", "unknown", "weibo"})
	if len(resolved) != 3 {
		t.Fatalf("expected 3 resolved platforms, got %d (%+v)", len(resolved), resolved)
	}
	if resolved[0].Name != "Weibo Hot" || resolved[0].APIPath != "weibo" {
		t.Fatalf("weibo entry not overridden: %+v", resolved[0])
	}
	if resolved[1].APIPath != "hupu/v1" {
		t.Fatalf("hupu api path = %q, want hupu/v1", resolved[1].APIPath)
	}
	if resolved[2].Name != "unknown" || resolved[2].APIPath != "unknown" {
		t.Fatalf("unknown platform should get a generated entry: %+v", resolved[2])
	}
}

func TestLoadPlatformCatalogMissingFile(t *testing.T) {
	catalog, err := LoadPlatformCatalog(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("missing file should not be an error: %v", err)
	}
	if len(catalog) != len(builtinPlatforms) {
		t.Fatalf("expected builtin catalog, got %d entries", len(catalog))
	}
}

func TestLocationFallback(t *testing.T) {
	cfg := &Config{Timezone: "Asia/Shanghai"}
	if _, offset := time.Date(2024, 1, 1, 0, 0, 0, 0, cfg.Location()).Zone(); offset != 8*3600 {
		t.Fatalf("Asia/Shanghai offset = %d", offset)
	}
	bad := &Config{Timezone: "Not/AZone"}
	if bad.Location().String() != "CST" {
		t.Fatalf("invalid timezone should fall back to CST, got %s", bad.Location())
	}
}
