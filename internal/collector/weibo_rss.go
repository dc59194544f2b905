package collector

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/LJTian/TrendingRelay/internal/logging"
)

const (
	weiboRSSTimeout   = 15 * time.Second
	weiboMaxItems     = 50
	weiboMaxDescRunes = 500
)

var (
	weiboRankPrefix = regexp.MustCompile(`^(\d+)[.、\s]+`)
	// 描述里的热度：“热度：123万” 或 “123万人搜索”
	weiboHotPattern    = regexp.MustCompile(`热度[：:]\s*([\d.]+[万亿]?)`)
	weiboHotAltPattern = regexp.MustCompile(`([\d.]+[万亿]?)[人次搜索]`)
)

// WeiboRSSFetcher 从 RSSHub 镜像获取微博热搜，多个镜像轮换，记住上次成功的镜像
type WeiboRSSFetcher struct {
	Sources []string
	Client  *http.Client

	mu      sync.Mutex
	current int
}

func NewWeiboRSSFetcher(sources []string) *WeiboRSSFetcher {
	return &WeiboRSSFetcher{
		Sources: sources,
		Client:  &http.Client{Timeout: weiboRSSTimeout},
	}
}

func (w *WeiboRSSFetcher) Name() string {
	return "weibo_rss"
}

func (w *WeiboRSSFetcher) Fetch(ctx context.Context) ([]RawItem, error) {
	if len(w.Sources) == 0 {
		return nil, errors.New("weibo rss: no sources configured")
	}

	w.mu.Lock()
	start := w.current
	w.mu.Unlock()

	parser := gofeed.NewParser()
	parser.UserAgent = "Mozilla/5.0 (compatible; DataCollector/1.0)"
	if w.Client != nil {
		parser.Client = w.Client
	}

	var lastErr error
	for i := 0; i < len(w.Sources); i++ {
		idx := (start + i) % len(w.Sources)
		feedURL := w.Sources[idx]
		logging.L().Infof("fetching weibo rss from: %s", feedURL)

		feed, err := parser.ParseURLWithContext(feedURL, ctx)
		if err != nil {
			logging.L().Warnf("weibo rss: %s failed: %v", feedURL, err)
			lastErr = err
			continue
		}
		if feed == nil || len(feed.Items) == 0 {
			lastErr = ErrNoData
			continue
		}

		w.mu.Lock()
		w.current = idx
		w.mu.Unlock()

		logging.L().Infof("weibo rss: fetched %d items from %s", len(feed.Items), feedURL)
		return parseWeiboFeedItems(feed.Items), nil
	}
	return nil, fmt.Errorf("weibo rss: all sources failed: %w", lastErr)
}

func parseWeiboFeedItems(items []*gofeed.Item) []RawItem {
	out := make([]RawItem, 0, len(items))
	for i, it := range items {
		if it == nil {
			continue
		}
		title := strings.TrimSpace(it.Title)
		rank := i + 1
		if m := weiboRankPrefix.FindStringSubmatch(title); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil {
				rank = n
			}
		}
		title = strings.TrimSpace(weiboRankPrefix.ReplaceAllString(title, ""))
		if title == "" {
			continue
		}

		desc := it.Description
		if desc == "" {
			desc = it.Content
		}

		hot := ""
		if m := weiboHotPattern.FindStringSubmatch(desc); m != nil {
			hot = m[1]
		} else if m := weiboHotAltPattern.FindStringSubmatch(desc); m != nil {
			hot = m[1]
		}

		link := strings.TrimSpace(it.Link)
		if link == "" {
			link = weiboSearchURL(title)
		}

		pub := it.Published
		if it.PublishedParsed != nil {
			pub = it.PublishedParsed.UTC().Format(time.RFC3339)
		}

		label := "热搜"
		if len(it.Categories) > 0 && it.Categories[0] != "" {
			label = it.Categories[0]
		}

		out = append(out, RawItem{
			Title:   title,
			Desc:    truncateRunes(desc, weiboMaxDescRunes),
			HotVal:  hot,
			Pos:     rank,
			URL:     link,
			Label:   label,
			PubDate: pub,
			Origin:  "rss",
		})
		if len(out) >= weiboMaxItems {
			break
		}
	}
	return out
}

func weiboSearchURL(title string) string {
	return "https://s.weibo.com/weibo?q=" + url.QueryEscape(title)
}

// truncateRunes 按 rune 截断，避免中文被截成半个字符
func truncateRunes(s string, limit int) string {
	rs := []rune(s)
	if len(rs) <= limit {
		return s
	}
	return string(rs[:limit])
}
