package collector

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/LJTian/TrendingRelay/internal/logging"
)

const (
	hotAPITimeout          = 30 * time.Second
	hotAPIMaxResponseBytes = 2 << 20 // 2MB
	hotAPIUserAgent        = "DataCollector/1.0"
)

// HotAPIFetcher 从上游热榜 API 拉取单个平台：GET {BaseURL}/{APIPath}
// 响应格式: {"succ":"ok","err":"","code":0,"data":[{title,desc,hot_val,icon,pos,to_url,label,is_top}]}
type HotAPIFetcher struct {
	BaseURL  string
	Platform string
	APIPath  string
	Client   *http.Client
}

func NewHotAPIFetcher(baseURL, platform, apiPath string) *HotAPIFetcher {
	if apiPath == "" {
		apiPath = platform
	}
	return &HotAPIFetcher{
		BaseURL:  strings.TrimRight(baseURL, "/"),
		Platform: platform,
		APIPath:  strings.Trim(apiPath, "/"),
		Client:   &http.Client{Timeout: hotAPITimeout},
	}
}

func (h *HotAPIFetcher) Name() string {
	return "hotapi_" + h.Platform
}

func (h *HotAPIFetcher) Fetch(ctx context.Context) ([]RawItem, error) {
	url := h.BaseURL + "/" + h.APIPath
	logging.L().Infof("fetching data from %s", url)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("hotapi %s: build request: %w", h.Platform, err)
	}
	req.Header.Set("User-Agent", hotAPIUserAgent)

	client := h.Client
	if client == nil {
		client = &http.Client{Timeout: hotAPITimeout}
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("hotapi %s: request: %w", h.Platform, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("hotapi %s: unexpected status %d", h.Platform, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, hotAPIMaxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("hotapi %s: read body: %w", h.Platform, err)
	}

	items, err := parseHotAPIResponse(body)
	if err != nil {
		return nil, fmt.Errorf("hotapi %s: %w", h.Platform, err)
	}
	return items, nil
}

// parseHotAPIResponse 只在 code==0 且 data 为非空数组时返回数据
func parseHotAPIResponse(body []byte) ([]RawItem, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("invalid json response")
	}
	root := gjson.ParseBytes(body)

	code := root.Get("code")
	if !code.Exists() || code.Int() != 0 {
		if msg := root.Get("err").String(); msg != "" {
			return nil, fmt.Errorf("upstream error (code=%d): %s: %w", code.Int(), msg, ErrNoData)
		}
		return nil, ErrNoData
	}

	data := root.Get("data")
	if !data.IsArray() || len(data.Array()) == 0 {
		return nil, ErrNoData
	}

	var items []RawItem
	data.ForEach(func(_, v gjson.Result) bool {
		items = append(items, RawItem{
			Title:  firstString(v, "title"),
			Desc:   firstString(v, "desc", "description"),
			HotVal: firstString(v, "hot_val", "hotVal"),
			Icon:   firstString(v, "icon"),
			Pos:    int(firstInt(v, "pos", "position")),
			URL:    firstString(v, "to_url", "toUrl", "url"),
			Label:  firstString(v, "label", "lab"),
			IsTop:  int(firstInt(v, "is_top", "isTop")),
			Origin: "api",
		})
		return true
	})
	return items, nil
}

// firstString 返回第一个非空字段的字符串形式；数字字段也会被转成字符串
func firstString(v gjson.Result, keys ...string) string {
	for _, k := range keys {
		f := v.Get(k)
		if !f.Exists() || f.Type == gjson.Null {
			continue
		}
		var s string
		switch f.Type {
		case gjson.Number:
			s = strconv.FormatFloat(f.Num, 'f', -1, 64)
		default:
			s = f.String()
		}
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return ""
}

// firstInt 返回第一个非零整数字段；兼容 bool 与字符串数字
func firstInt(v gjson.Result, keys ...string) int64 {
	for _, k := range keys {
		f := v.Get(k)
		if !f.Exists() {
			continue
		}
		var n int64
		switch f.Type {
		case gjson.True:
			n = 1
		case gjson.String:
			n, _ = strconv.ParseInt(strings.TrimSpace(f.Str), 10, 64)
		default:
			n = f.Int()
		}
		if n != 0 {
			return n
		}
	}
	return 0
}
