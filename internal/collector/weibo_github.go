package collector

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/ast"
	"github.com/gomarkdown/markdown/parser"

	"github.com/LJTian/TrendingRelay/internal/logging"
)

const (
	weiboGithubTimeout          = 15 * time.Second
	weiboGithubMaxResponseBytes = 1 << 20
)

var bandRankPattern = regexp.MustCompile(`band_rank=(\d+)`)

// WeiboGithubFetcher 从社区维护的 README 快照解析微博热搜（<!-- BEGIN --> 与 <!-- END --> 之间的有序列表）
type WeiboGithubFetcher struct {
	URL    string
	Client *http.Client
}

func (w *WeiboGithubFetcher) Name() string {
	return "weibo_github"
}

func (w *WeiboGithubFetcher) Fetch(ctx context.Context) ([]RawItem, error) {
	logging.L().Info("fetching weibo data from github readme")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("weibo github: build request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; DataCollector/1.0)")
	req.Header.Set("Accept", "text/plain, text/markdown, */*")

	client := w.Client
	if client == nil {
		client = &http.Client{Timeout: weiboGithubTimeout}
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("weibo github: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("weibo github: unexpected status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, weiboGithubMaxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("weibo github: read body: %w", err)
	}

	items := parseWeiboReadme(string(body))
	if len(items) == 0 {
		return nil, ErrNoData
	}
	logging.L().Infof("weibo github: parsed %d items", len(items))
	return items, nil
}

func parseWeiboReadme(content string) []RawItem {
	begin := strings.Index(content, "<!-- BEGIN -->")
	if begin == -1 {
		return nil
	}
	begin += len("<!-- BEGIN -->")
	end := strings.Index(content[begin:], "<!-- END -->")
	if end == -1 {
		return nil
	}
	section := content[begin : begin+end]

	p := parser.NewWithExtensions(parser.CommonExtensions)
	doc := markdown.Parse([]byte(section), p)

	var items []RawItem
	ast.WalkFunc(doc, func(node ast.Node, entering bool) ast.WalkStatus {
		li, ok := node.(*ast.ListItem)
		if !ok || !entering {
			return ast.GoToNext
		}
		link := firstLink(li)
		if link == nil {
			return ast.SkipChildren
		}
		title := strings.TrimSpace(nodeText(link))
		dest := strings.TrimSpace(string(link.Destination))
		if title == "" || dest == "" {
			return ast.SkipChildren
		}

		rank := len(items) + 1
		if !strings.HasPrefix(dest, "http") {
			dest = "https://s.weibo.com" + dest
		}
		hot := int64(51-rank) * 100000
		if m := bandRankPattern.FindStringSubmatch(dest); m != nil {
			if n, err := strconv.ParseInt(m[1], 10, 64); err == nil && n > 0 {
				hot = n * 10000
			}
		}
		if hot < 0 {
			hot = 0
		}

		items = append(items, RawItem{
			Title:  title,
			HotVal: strconv.FormatInt(hot, 10),
			Pos:    rank,
			URL:    dest,
			Label:  "热搜",
			Origin: "github",
		})
		if len(items) >= weiboMaxItems {
			return ast.Terminate
		}
		return ast.SkipChildren
	})
	return items
}

func firstLink(n ast.Node) *ast.Link {
	var found *ast.Link
	ast.WalkFunc(n, func(node ast.Node, entering bool) ast.WalkStatus {
		if l, ok := node.(*ast.Link); ok && entering {
			found = l
			return ast.Terminate
		}
		return ast.GoToNext
	})
	return found
}

func nodeText(n ast.Node) string {
	var sb strings.Builder
	ast.WalkFunc(n, func(node ast.Node, entering bool) ast.WalkStatus {
		if !entering {
			return ast.GoToNext
		}
		switch t := node.(type) {
		case *ast.Text:
			sb.Write(t.Literal)
		case *ast.Code:
			sb.Write(t.Literal)
		}
		return ast.GoToNext
	})
	return sb.String()
}
