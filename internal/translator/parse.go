package translator

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// 解析策略名，按优先级排列
const (
	StrategyJSON     = "json"
	StrategyFence    = "fence"
	StrategyQuoted   = "quoted"
	StrategyNumbered = "numbered"
	StrategyLines    = "lines"
)

var (
	fencePattern         = regexp.MustCompile("(?s)```[A-Za-z]*[ \t]*\r?\n?(.*?)```")
	trailingCommaPattern = regexp.MustCompile(`,\s*([\]}])`)
	quotedPattern        = regexp.MustCompile(`"(?:[^"\\\n]|\\.)*"`)
	numberedLinePattern  = regexp.MustCompile(`^\s*[(（]?(\d{1,3})\s*[.)）、:：]\s*(.*)$`)
	numberingPrefix      = regexp.MustCompile(`^[(（]?\d{1,3}\s*(?:[)）、]|[.:：](?:\s|$))\s*`)

	smartQuotes = strings.NewReplacer("“", `"`, "”", `"`)

	// 常见的数组字段名；对象里只有一个数组字段时也会被采用
	arrayFieldNames = []string{"translations", "results", "data", "items", "output"}
	// 数组元素是对象时，依次取这些字段
	itemFieldNames = []string{"translation", "translated", "text", "result"}

	wrapPairs = [][2]string{
		{`"`, `"`},
		{"'", "'"},
		{"“", "”"},
		{"「", "」"},
		{"『", "』"},
		{"[", "]"},
	}
)

// ParseResult 是一次解析的结果；Items 与 Present 长度恒为 n，Present[i] 表示第 i 条是否被模型给出
// Strategy 为空表示所有策略都失败
type ParseResult struct {
	Items    []string
	Present  []bool
	Strategy string
}

func (r ParseResult) OK() bool {
	return r.Strategy != ""
}

// Count 返回被模型给出的条目数
func (r ParseResult) Count() int {
	c := 0
	for _, p := range r.Present {
		if p {
			c++
		}
	}
	return c
}

type parseStrategy struct {
	name string
	fn   func(content string, n int) (ParseResult, bool)
	// freeText 为 true 的策略只用于非结构化回复；回复中已有可解析的 JSON 数组/对象时，以 JSON 的条数为准
	freeText bool
}

var strategies = []parseStrategy{
	{StrategyJSON, decodeJSON, false},
	{StrategyFence, decodeFenced, false},
	{StrategyQuoted, extractQuoted, true},
	{StrategyNumbered, extractNumbered, true},
	{StrategyLines, extractLines, true},
}

// ParseResponse 依次尝试各解析策略，第一个成功的胜出
// 策略成功的条件：得到恰好 n 条按位置排列的结果，或至少一条落在 1..n 内的按序号标注的结果
func ParseResponse(content string, n int) ParseResult {
	miss := ParseResult{Items: make([]string, max(n, 0)), Present: make([]bool, max(n, 0))}
	content = strings.TrimSpace(content)
	if content == "" || n <= 0 {
		return miss
	}
	structured := hasStructuredJSON(content)
	for _, s := range strategies {
		if s.freeText && structured {
			continue
		}
		if r, ok := s.fn(content, n); ok {
			r.Strategy = s.name
			return r
		}
	}
	return miss
}

func decodeJSON(s string, n int) (ParseResult, bool) {
	if !gjson.Valid(s) {
		return ParseResult{}, false
	}
	root := gjson.Parse(s)
	switch {
	case root.IsArray():
		return positional(jsonStrings(root), n)
	case root.IsObject():
		for _, key := range arrayFieldNames {
			if v := root.Get(key); v.IsArray() {
				return positional(jsonStrings(v), n)
			}
		}
		var arrays []gjson.Result
		root.ForEach(func(_, v gjson.Result) bool {
			if v.IsArray() {
				arrays = append(arrays, v)
			}
			return true
		})
		if len(arrays) == 1 {
			return positional(jsonStrings(arrays[0]), n)
		}
		return indexedObject(root, n)
	}
	return ParseResult{}, false
}

// jsonCandidates 返回回复中可能承载 JSON 的片段：代码块内容、最外层 [..] 与 {..}
func jsonCandidates(s string) []string {
	var candidates []string
	if m := fencePattern.FindStringSubmatch(s); m != nil {
		candidates = append(candidates, strings.TrimSpace(m[1]))
	}
	if i, j := strings.Index(s, "["), strings.LastIndex(s, "]"); i >= 0 && j > i {
		candidates = append(candidates, s[i:j+1])
	}
	if i, j := strings.Index(s, "{"), strings.LastIndex(s, "}"); i >= 0 && j > i {
		candidates = append(candidates, s[i:j+1])
	}
	return candidates
}

// hasStructuredJSON 判断回复本身或其中某个片段（修复后）是合法的 JSON 数组/对象
func hasStructuredJSON(s string) bool {
	for _, c := range append([]string{s}, jsonCandidates(s)...) {
		for _, v := range []string{c, repairJSON(c)} {
			if !gjson.Valid(v) {
				continue
			}
			if root := gjson.Parse(v); root.IsArray() || root.IsObject() {
				return true
			}
		}
	}
	return false
}

func decodeFenced(s string, n int) (ParseResult, bool) {
	for _, c := range jsonCandidates(s) {
		if r, ok := decodeJSON(c, n); ok {
			return r, true
		}
		if r, ok := decodeJSON(repairJSON(c), n); ok {
			return r, true
		}
	}
	return ParseResult{}, false
}

// repairJSON 修正模型常见的格式问题：中文引号、数组/对象末尾多余的逗号
func repairJSON(s string) string {
	s = smartQuotes.Replace(s)
	return trailingCommaPattern.ReplaceAllString(s, "$1")
}

func extractQuoted(s string, n int) (ParseResult, bool) {
	matches := quotedPattern.FindAllString(s, -1)
	if len(matches) != n {
		return ParseResult{}, false
	}
	items := make([]string, 0, n)
	for _, m := range matches {
		items = append(items, gjson.Parse(m).String())
	}
	return positional(items, n)
}

func extractNumbered(s string, n int) (ParseResult, bool) {
	r := ParseResult{Items: make([]string, n), Present: make([]bool, n)}
	found := false
	for _, line := range strings.Split(s, "\n") {
		m := numberedLinePattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		idx, err := strconv.Atoi(m[1])
		if err != nil || idx < 1 || idx > n || r.Present[idx-1] {
			continue
		}
		r.Items[idx-1] = strings.TrimSpace(m[2])
		r.Present[idx-1] = true
		found = true
	}
	return r, found
}

// extractLines 兜底：非 JSON 的纯文本回复，非空行数恰好为 n 时按行对齐
func extractLines(s string, n int) (ParseResult, bool) {
	if strings.HasPrefix(s, "[") || strings.HasPrefix(s, "{") || strings.Contains(s, "```") {
		return ParseResult{}, false
	}
	var items []string
	for _, line := range strings.Split(s, "\n") {
		if t := strings.TrimSpace(line); t != "" {
			items = append(items, t)
		}
	}
	return positional(items, n)
}

func positional(items []string, n int) (ParseResult, bool) {
	if len(items) != n {
		return ParseResult{}, false
	}
	present := make([]bool, n)
	for i := range present {
		present[i] = true
	}
	return ParseResult{Items: items, Present: present}, true
}

// indexedObject 处理 {"1": "...", "2": "..."} 形式；出现键 "0" 时按从 0 开始的序号对齐
func indexedObject(root gjson.Result, n int) (ParseResult, bool) {
	r := ParseResult{Items: make([]string, n), Present: make([]bool, n)}
	offset := 0
	root.ForEach(func(k, _ gjson.Result) bool {
		if idx, err := strconv.Atoi(strings.TrimSpace(k.String())); err == nil && idx == 0 {
			offset = 1
			return false
		}
		return true
	})

	found := false
	root.ForEach(func(k, v gjson.Result) bool {
		idx, err := strconv.Atoi(strings.TrimSpace(k.String()))
		if err != nil {
			return true
		}
		idx += offset
		if idx < 1 || idx > n || r.Present[idx-1] {
			return true
		}
		r.Items[idx-1] = jsonScalar(v)
		r.Present[idx-1] = true
		found = true
		return true
	})
	return r, found
}

func jsonStrings(arr gjson.Result) []string {
	vals := arr.Array()
	out := make([]string, 0, len(vals))
	for _, v := range vals {
		out = append(out, jsonScalar(v))
	}
	return out
}

func jsonScalar(v gjson.Result) string {
	switch v.Type {
	case gjson.String:
		return v.Str
	case gjson.Null:
		return ""
	case gjson.JSON:
		if v.IsObject() {
			for _, f := range itemFieldNames {
				if fv := v.Get(f); fv.Type == gjson.String {
					return fv.Str
				}
			}
		}
		return v.Raw
	default:
		return v.Raw
	}
}

// cleanTranslation 清理单条译文：合并换行、去掉残留的序号与包裹的引号/括号，[empty] 视为空
func cleanTranslation(s string) string {
	s = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ").Replace(s)
	s = strings.TrimSpace(s)
	s = strings.TrimSpace(numberingPrefix.ReplaceAllString(s, ""))
	for i := 0; i < 2; i++ {
		if strings.EqualFold(s, emptyMarker) {
			return ""
		}
		unwrapped, ok := unwrap(s)
		if !ok {
			break
		}
		s = unwrapped
	}
	if strings.EqualFold(s, emptyMarker) {
		return ""
	}
	return s
}

func unwrap(s string) (string, bool) {
	for _, p := range wrapPairs {
		if len(s) < len(p[0])+len(p[1]) || !strings.HasPrefix(s, p[0]) || !strings.HasSuffix(s, p[1]) {
			continue
		}
		inner := s[len(p[0]) : len(s)-len(p[1])]
		// 内部还有同类符号时说明不是整体包裹，例如 [直播] 新闻 [回放]
		if strings.Contains(inner, p[0]) || strings.Contains(inner, p[1]) {
			continue
		}
		return strings.TrimSpace(inner), true
	}
	return s, false
}
