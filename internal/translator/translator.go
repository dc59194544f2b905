package translator

import (
	"context"
	"strings"
	"sync"

	"golang.org/x/time/rate"

	"github.com/LJTian/TrendingRelay/internal/logging"
	"github.com/LJTian/TrendingRelay/internal/processor"
)

const defaultChunkSize = 25

// Memory 缓存已通过校验的译文，键为 (语言, 原文)
type Memory interface {
	Get(lang, text string) (string, bool)
	Set(lang, text, translated string)
}

type Options struct {
	ChunkSize  int
	MaxRetries int
	// RPS <= 0 表示不限速
	RPS    float64
	Memory Memory
}

// Translator 把一批标题翻译成目标语言。对外保证：输出条数与输入相同且顺序一致，
// 任何失败都退回原文，从不向调用方返回错误
type Translator struct {
	Completer  Completer
	Memory     Memory
	Limiter    *rate.Limiter
	ChunkSize  int
	MaxRetries int

	warnOnce sync.Once
}

// New 创建 Translator；completer 为 nil 时所有调用直接回显原文
func New(completer Completer, opts Options) *Translator {
	t := &Translator{
		Completer:  completer,
		Memory:     opts.Memory,
		ChunkSize:  opts.ChunkSize,
		MaxRetries: opts.MaxRetries,
	}
	if t.ChunkSize <= 0 {
		t.ChunkSize = defaultChunkSize
	}
	if t.MaxRetries < 0 {
		t.MaxRetries = 0
	}
	if opts.RPS > 0 {
		t.Limiter = rate.NewLimiter(rate.Limit(opts.RPS), 1)
	}
	return t
}

// Enabled 表示是否配置了可用的补全服务
func (t *Translator) Enabled() bool {
	return t != nil && t.Completer != nil
}

// TranslateTexts 翻译 texts 到 lang，返回与 texts 等长、同序的结果
// 空串原样返回空串；解析失败、条数不符或译文不合格的位置回退为原文
func (t *Translator) TranslateTexts(ctx context.Context, texts []string, lang string) (out []string) {
	out = make([]string, len(texts))
	copy(out, texts)
	if len(texts) == 0 {
		return out
	}

	defer func() {
		if r := recover(); r != nil {
			logging.L().Errorf("translator: recovered from panic (%s): %v", lang, r)
			out = make([]string, len(texts))
			copy(out, texts)
		}
	}()

	if !t.Enabled() {
		if t != nil {
			t.warnOnce.Do(func() {
				logging.L().Warn("translator: completion api not configured, skipping translation")
			})
		}
		return out
	}
	language, ok := LookupLanguage(lang)
	if !ok {
		logging.L().Warnf("translator: unsupported language %q, echoing originals", lang)
		return out
	}

	// 待翻译的去重文本及其在输入中的位置
	var pending []string
	positions := make(map[string][]int)
	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			continue
		}
		if t.Memory != nil {
			if cached, hit := t.Memory.Get(language.Code, text); hit {
				out[i] = cached
				continue
			}
		}
		if _, seen := positions[text]; !seen {
			pending = append(pending, text)
		}
		positions[text] = append(positions[text], i)
	}

	for start := 0; start < len(pending); start += t.ChunkSize {
		if ctx.Err() != nil {
			logging.L().Warnf("translator: context done, %d texts left untranslated (%s)", len(pending)-start, language.Code)
			break
		}
		end := min(start+t.ChunkSize, len(pending))
		chunk := pending[start:end]

		translated, accepted := t.translateChunk(ctx, chunk, language)
		for j, src := range chunk {
			for _, idx := range positions[src] {
				out[idx] = translated[j]
			}
			if accepted[j] && t.Memory != nil {
				t.Memory.Set(language.Code, src, translated[j])
			}
		}
	}
	return out
}

// translateChunk 对一块文本调用补全服务，返回与 chunk 等长的译文及每条是否通过校验
func (t *Translator) translateChunk(ctx context.Context, chunk []string, lang Language) ([]string, []bool) {
	out := make([]string, len(chunk))
	copy(out, chunk)
	accepted := make([]bool, len(chunk))

	system, user := buildPrompt(chunk, lang)
	for attempt := 0; attempt <= t.MaxRetries; attempt++ {
		if t.Limiter != nil {
			if err := t.Limiter.Wait(ctx); err != nil {
				logging.L().Warnf("translator: rate limiter wait (%s): %v", lang.Code, err)
				return out, accepted
			}
		}

		content, err := t.Completer.Complete(ctx, system, user)
		if err != nil {
			logging.L().Warnf("translator: completion failed (%s, attempt %d): %v", lang.Code, attempt+1, err)
			if ctx.Err() != nil {
				return out, accepted
			}
			continue
		}

		res := ParseResponse(content, len(chunk))
		if !res.OK() {
			logging.L().Warnf("translator: unparsable response (%s, attempt %d, %d texts)", lang.Code, attempt+1, len(chunk))
			continue
		}
		logging.L().Debugf("translator: parsed %d/%d items via %s (%s)", res.Count(), len(chunk), res.Strategy, lang.Code)

		rejected := 0
		for i := range chunk {
			if !res.Present[i] {
				continue
			}
			candidate := cleanTranslation(res.Items[i])
			if Validate(lang.Code, chunk[i], candidate) {
				out[i] = candidate
				accepted[i] = true
			} else {
				rejected++
			}
		}
		if rejected > 0 {
			logging.L().Infof("translator: %d translations rejected by validation (%s)", rejected, lang.Code)
		}
		return out, accepted
	}
	return out, accepted
}

// Translation 是一条记录在某个语言下的译文行
type Translation struct {
	Lang            string
	Platform        string
	ContentHash     string
	OriginalTitle   string
	TranslatedTitle string
	Rank            int
	URL             string
	HotValue        *int64
	Category        *string
	OriginalData    map[string]any
}

// TranslateRecords 翻译记录标题，返回与 records 等长的译文行
func (t *Translator) TranslateRecords(ctx context.Context, records []processor.Record, lang string) []Translation {
	titles := t.TranslateTexts(ctx, processor.Titles(records), lang)
	out := make([]Translation, len(records))
	for i, r := range records {
		out[i] = Translation{
			Lang:            lang,
			Platform:        r.Platform,
			ContentHash:     r.ContentHash,
			OriginalTitle:   r.Title,
			TranslatedTitle: titles[i],
			Rank:            r.Rank,
			URL:             r.URL,
			HotValue:        r.HotValue,
			Category:        r.Category,
			OriginalData:    r.OriginalData,
		}
	}
	return out
}
