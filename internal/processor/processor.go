package processor

import (
	"crypto/md5"
	"encoding/hex"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/LJTian/TrendingRelay/internal/collector"
)

const maxDescriptionRunes = 600

var hotNumberPattern = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*([万亿]?)`)

// Record 是写入存储层前的统一结构，各平台条目都归一成这个形状
type Record struct {
	Platform     string
	Rank         int
	Title        string
	URL          string
	HotValue     *int64
	Category     *string
	ContentHash  string
	OriginalData map[string]any
	FetchedAt    time.Time
}

// ContentHash 以 title+url 的 MD5 作为去重键
func ContentHash(title, url string) string {
	sum := md5.Sum([]byte(title + url))
	return hex.EncodeToString(sum[:])
}

// ParseHotValue 解析热度文本，支持 “万”/“亿” 单位；前缀的非数字文字会被忽略
// 空值、零值或无法解析时返回 nil
func ParseHotValue(s string) *int64 {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return nil
	}
	m := hotNumberPattern.FindStringSubmatch(s)
	if m == nil {
		return nil
	}
	num, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return nil
	}
	// 带单位时四舍五入，避免 2.3亿 这类浮点误差少 1
	switch m[2] {
	case "万":
		num = math.Round(num * 1e4)
	case "亿":
		num = math.Round(num * 1e8)
	}
	v := int64(num)
	if v <= 0 {
		return nil
	}
	return &v
}

// Normalize 把一个平台的原始条目转成 Record，丢弃空标题，并按内容哈希批内去重（先到先得）
func Normalize(platform string, items []collector.RawItem, now time.Time) []Record {
	out := make([]Record, 0, len(items))
	seen := make(map[string]struct{}, len(items))

	for i, it := range items {
		title := strings.TrimSpace(strings.ToValidUTF8(it.Title, "�"))
		if title == "" {
			continue
		}
		url := strings.TrimSpace(it.URL)
		hash := ContentHash(title, url)
		if _, ok := seen[hash]; ok {
			continue
		}
		seen[hash] = struct{}{}

		rank := it.Pos
		if rank <= 0 {
			rank = i + 1
		}

		var category *string
		if label := strings.TrimSpace(it.Label); label != "" {
			category = &label
		}

		original := map[string]any{
			"description": truncateRunes(strings.ToValidUTF8(it.Desc, "�"), maxDescriptionRunes),
			"icon":        it.Icon,
			"is_top":      it.IsTop,
			"raw_hot_val": it.HotVal,
		}
		if it.Origin != "" && it.Origin != "api" {
			original["source"] = it.Origin
		}
		if it.PubDate != "" {
			original["pub_date"] = it.PubDate
		}

		out = append(out, Record{
			Platform:     platform,
			Rank:         rank,
			Title:        title,
			URL:          url,
			HotValue:     ParseHotValue(it.HotVal),
			Category:     category,
			ContentHash:  hash,
			OriginalData: original,
			FetchedAt:    now,
		})
	}

	return out
}

// Titles 返回记录标题，顺序与输入一致
func Titles(records []Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.Title
	}
	return out
}

func truncateRunes(s string, limit int) string {
	s = strings.TrimSpace(s)
	rs := []rune(s)
	if len(rs) <= limit {
		return s
	}
	return string(rs[:limit]) + "…"
}
