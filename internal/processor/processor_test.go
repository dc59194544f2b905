package processor

import (
	"strings"
	"testing"
	"time"

	"github.com/LJTian/TrendingRelay/internal/collector"
)

func TestContentHashDeterministicAndDistinct(t *testing.T) {
	h1a := ContentHash("标题", "https://example.com/a")
	h1b := ContentHash("标题", "https://example.com/a")
	h2 := ContentHash("标题", "https://example.com/b")

	if h1a != h1b {
		t.Fatalf("ContentHash not deterministic: %q vs %q", h1a, h1b)
	}
	if h1a == h2 {
		t.Fatalf("ContentHash should differ for different URLs: %q", h1a)
	}
	// md5("") 的固定值
	if got := ContentHash("", ""); got != "d41d8cd98f00b204e9800998ecf8427e" {
		t.Fatalf("ContentHash(\"\", \"\") = %q", got)
	}
}

func TestParseHotValue(t *testing.T) {
	cases := []struct {
		in   string
		want int64 // 0 表示 nil
	}{
		{"", 0},
		{"0", 0},
		{"abc", 0},
		{"12345", 12345},
		{"1,234,567", 1234567},
		{"123万", 1230000},
		{"1.5万", 15000},
		{"2.3亿", 230000000},
		{"剧集 456万", 4560000},
	}
	for _, c := range cases {
		got := ParseHotValue(c.in)
		if c.want == 0 {
			if got != nil {
				t.Errorf("ParseHotValue(%q) = %d, want nil", c.in, *got)
			}
			continue
		}
		if got == nil || *got != c.want {
			t.Errorf("ParseHotValue(%q) = %v, want %d", c.in, got, c.want)
		}
	}
}

func TestNormalizeDeduplicateAndDefaults(t *testing.T) {
	now := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	items := []collector.RawItem{
		{Title: " 标题一 ", URL: "https://x/1", HotVal: "12万", Label: "热", Pos: 3, Origin: "api"},
		{Title: "标题一", URL: "https://x/1", HotVal: "1"}, // 同一 hash，丢弃
		{Title: "   ", URL: "https://x/empty"},
		{Title: "标题二", URL: "https://x/2", Desc: strings.Repeat("长", 700), Origin: "rss", PubDate: "2024-05-01T00:00:00Z"},
	}

	out := Normalize("weibo", items, now)
	if len(out) != 2 {
		t.Fatalf("expected 2 records after dedupe, got %d", len(out))
	}

	first := out[0]
	if first.Title != "标题一" || first.Rank != 3 || first.Platform != "weibo" {
		t.Fatalf("unexpected first record: %+v", first)
	}
	if first.HotValue == nil || *first.HotValue != 120000 {
		t.Fatalf("hot value = %v", first.HotValue)
	}
	if first.Category == nil || *first.Category != "热" {
		t.Fatalf("category = %v", first.Category)
	}
	if first.ContentHash != ContentHash("标题一", "https://x/1") {
		t.Fatalf("content hash mismatch")
	}
	if _, ok := first.OriginalData["source"]; ok {
		t.Fatalf("api items should not carry a source marker")
	}
	if !first.FetchedAt.Equal(now) {
		t.Fatalf("fetched_at = %v", first.FetchedAt)
	}

	second := out[1]
	// pos 缺失时按输入下标计算名次
	if second.Rank != 4 {
		t.Fatalf("rank = %d, want 4", second.Rank)
	}
	if second.Category != nil || second.HotValue != nil {
		t.Fatalf("empty label / hot value should be nil: %+v", second)
	}
	if second.OriginalData["source"] != "rss" {
		t.Fatalf("source = %v", second.OriginalData["source"])
	}
	desc, _ := second.OriginalData["description"].(string)
	if n := len([]rune(desc)); n != maxDescriptionRunes+1 {
		t.Fatalf("description runes = %d, want %d (including ellipsis)", n, maxDescriptionRunes+1)
	}
}

func TestNormalizeRepairsInvalidUTF8(t *testing.T) {
	out := Normalize("baidu", []collector.RawItem{{Title: "ok\xffbad", URL: "u"}}, time.Now())
	if len(out) != 1 {
		t.Fatalf("expected 1 record")
	}
	if out[0].Title != "ok�bad" {
		t.Fatalf("title = %q", out[0].Title)
	}
}

func TestTitles(t *testing.T) {
	got := Titles([]Record{{Title: "a"}, {Title: "b"}})
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("Titles = %v", got)
	}
}
