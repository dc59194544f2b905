package collector

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/LJTian/TrendingRelay/internal/logging"
)

// ErrNoData 表示数据源可达但没有返回任何条目
var ErrNoData = errors.New("no data returned")

// RawItem 是各数据源采集到的原始条目，字段对齐上游热榜 API 的统一输出
type RawItem struct {
	Title  string
	Desc   string
	HotVal string
	Icon   string
	Pos    int
	URL    string
	Label  string
	IsTop  int
	// PubDate 仅 RSS 等来源提供
	PubDate string
	// Origin 标记条目来自哪条采集链路：api / rss / github / board
	Origin string
}

// Fetcher 抽象每一个数据源
type Fetcher interface {
	Name() string
	Fetch(ctx context.Context) ([]RawItem, error)
}

// FallbackFetcher 依次尝试多个数据源，第一个返回非空结果的胜出
type FallbackFetcher struct {
	Platform string
	Chain    []Fetcher
}

func (f *FallbackFetcher) Name() string {
	names := make([]string, 0, len(f.Chain))
	for _, c := range f.Chain {
		names = append(names, c.Name())
	}
	return f.Platform + "(" + strings.Join(names, ">") + ")"
}

func (f *FallbackFetcher) Fetch(ctx context.Context) ([]RawItem, error) {
	var lastErr error
	for _, c := range f.Chain {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		items, err := c.Fetch(ctx)
		if err == nil && len(items) > 0 {
			return items, nil
		}
		if err == nil {
			err = ErrNoData
		}
		logging.L().Warnf("%s: source %s failed: %v", f.Platform, c.Name(), err)
		lastErr = err
	}
	if lastErr == nil {
		lastErr = ErrNoData
	}
	return nil, fmt.Errorf("%s: all sources failed: %w", f.Platform, lastErr)
}

// Options 汇总构建各平台采集链所需的配置
type Options struct {
	APIBaseURL      string
	WeiboRSSSources []string
	WeiboGithubURL  string
}

// NewPlatformFetcher 为平台组装采集链：上游 API 优先，部分平台带备用源
func NewPlatformFetcher(opts Options, platform, apiPath string) Fetcher {
	primary := NewHotAPIFetcher(opts.APIBaseURL, platform, apiPath)
	switch platform {
	case "weibo":
		chain := []Fetcher{primary}
		if len(opts.WeiboRSSSources) > 0 {
			chain = append(chain, NewWeiboRSSFetcher(opts.WeiboRSSSources))
		}
		if opts.WeiboGithubURL != "" {
			chain = append(chain, &WeiboGithubFetcher{URL: opts.WeiboGithubURL})
		}
		return &FallbackFetcher{Platform: platform, Chain: chain}
	case "baidu":
		return &FallbackFetcher{Platform: platform, Chain: []Fetcher{primary, &BaiduBoardFetcher{}}}
	default:
		return primary
	}
}
