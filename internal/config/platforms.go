package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// PlatformInfo 描述一个热榜平台；APIPath 为空时使用 Code
type PlatformInfo struct {
	Code    string `yaml:"code"`
	Name    string `yaml:"name"`
	BaseURL string `yaml:"base_url"`
	APIPath string `yaml:"api_path"`
}

type platformCatalogFile struct {
	Platforms []PlatformInfo `yaml:"platforms"`
}

// 上游 API 已知的平台
var builtinPlatforms = []PlatformInfo{
	{Code: "weibo", Name: "微博热搜", BaseURL: "https://s.weibo.com/top/summary"},
	{Code: "baidu", Name: "百度热搜", BaseURL: "https://top.baidu.com/board?tab=realtime"},
	{Code: "douyin", Name: "抖音热榜", BaseURL: "https://www.douyin.com/hot"},
	{Code: "toutiao", Name: "今日头条", BaseURL: "https://www.toutiao.com"},
	{Code: "douban", Name: "豆瓣", BaseURL: "https://www.douban.com"},
	{Code: "xhs", Name: "小红书", BaseURL: "https://www.xiaohongshu.com"},
	{Code: "bili", Name: "哔哩哔哩", BaseURL: "https://www.bilibili.com/v/popular/rank/all"},
	{Code: "zhihu", Name: "知乎热榜", BaseURL: "https://www.zhihu.com/hot", APIPath: "zhihu/v2"},
	{Code: "36kr", Name: "36氪", BaseURL: "https://36kr.com"},
	{Code: "juejin", Name: "稀土掘金", BaseURL: "https://juejin.cn"},
	{Code: "ithome", Name: "IT之家", BaseURL: "https://www.ithome.com"},
	{Code: "thepaper", Name: "澎湃新闻", BaseURL: "https://www.thepaper.cn"},
	{Code: "qq", Name: "腾讯新闻", BaseURL: "https://news.qq.com"},
	{Code: "wy163", Name: "网易新闻", BaseURL: "https://news.163.com"},
	{Code: "csdn", Name: "CSDN", BaseURL: "https://blog.csdn.net"},
	{Code: "hellogithub", Name: "HelloGitHub", BaseURL: "https://hellogithub.com"},
}

// LoadPlatformCatalog 读取可选的 YAML 平台目录；path 为空或文件不存在时返回内置目录
func LoadPlatformCatalog(path string) ([]PlatformInfo, error) {
	catalog := make([]PlatformInfo, len(builtinPlatforms))
	copy(catalog, builtinPlatforms)
	if path == "" {
		return catalog, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return catalog, nil
		}
		return nil, fmt.Errorf("config: read platform catalog: %w", err)
	}

	var f platformCatalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("config: parse platform catalog: %w", err)
	}

	// 文件中的条目覆盖同名内置条目
	for _, p := range f.Platforms {
		p.Code = strings.TrimSpace(p.Code)
		if p.Code == "" {
			continue
		}
		replaced := false
		for i := range catalog {
			if catalog[i].Code == p.Code {
				catalog[i] = p
				replaced = true
				break
			}
		}
		if !replaced {
			catalog = append(catalog, p)
		}
	}
	return catalog, nil
}

// ResolvePlatforms 按 codes 的顺序返回平台信息，目录中不存在的平台生成默认条目
func ResolvePlatforms(catalog []PlatformInfo, codes []string) []PlatformInfo {
	byCode := make(map[string]PlatformInfo, len(catalog))
	for _, p := range catalog {
		byCode[p.Code] = p
	}
	out := make([]PlatformInfo, 0, len(codes))
	seen := make(map[string]bool, len(codes))
	for _, code := range codes {
		if seen[code] {
			continue
		}
		seen[code] = true
		p, ok := byCode[code]
		if !ok {
			p = PlatformInfo{Code: code, Name: code}
		}
		if p.Name == "" {
			p.Name = code
		}
		if p.APIPath == "" {
			p.APIPath = code
		}
		out = append(out, p)
	}
	return out
}
