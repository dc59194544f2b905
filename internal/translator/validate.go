package translator

import (
	"strings"
	"unicode"

	"github.com/abadojack/whatlanggo"
)

const (
	maxLengthRatio = 5
	// 源文本很短时（如单字标题）放宽长度比例限制
	minLengthAllowance = 24
)

// 每种目标语言允许的主导文字，用代表字符描述，DetectScript 返回的表包含其一即视为匹配
var scriptProbes = map[string][]rune{
	"en": {'a'},
	"es": {'a'},
	"fr": {'a'},
	"de": {'a'},
	"ja": {'日', 'あ', 'ア'},
	"ko": {'한', '韓'},
	"ru": {'д'},
	"ar": {'ع'},
}

var latinTargets = map[string]bool{"en": true, "es": true, "fr": true, "de": true}

// Validate 判断一条译文是否可信：非空、长度合理、文字体系符合目标语言
// 不合格时调用方应回退到原文
func Validate(lang, source, translated string) bool {
	source = strings.TrimSpace(source)
	translated = strings.TrimSpace(translated)
	if source == "" {
		return translated == ""
	}
	if translated == "" {
		return false
	}

	srcLen := len([]rune(source))
	dstLen := len([]rune(translated))
	if dstLen > srcLen*maxLengthRatio && dstLen > minLengthAllowance {
		return false
	}

	// 原文有文字而译文只剩符号/数字，多半是解析到了残片
	if hasLetter(source) && !hasLetter(translated) {
		return false
	}
	return scriptMatches(lang, translated)
}

func scriptMatches(lang, text string) bool {
	probes, ok := scriptProbes[lang]
	if !ok {
		return true
	}
	if latinTargets[lang] && mostlyCJK(text) {
		return false
	}

	script := whatlanggo.DetectScript(text)
	if script == nil {
		return true
	}
	for _, r := range probes {
		if unicode.Is(script, r) {
			return true
		}
	}
	// 日/韩/俄/阿译文夹带英文品牌名时主导文字可能是拉丁，只要含有目标文字即可
	if !latinTargets[lang] && script == unicode.Latin {
		return containsScriptOf(text, probes)
	}
	return false
}

func containsScriptOf(text string, probes []rune) bool {
	tables := make([]*unicode.RangeTable, 0, len(probes))
	for _, p := range probes {
		for _, t := range []*unicode.RangeTable{unicode.Han, unicode.Hiragana, unicode.Katakana, unicode.Hangul, unicode.Cyrillic, unicode.Arabic} {
			if unicode.Is(t, p) {
				tables = append(tables, t)
			}
		}
	}
	for _, r := range text {
		if unicode.IsOneOf(tables, r) {
			return true
		}
	}
	return false
}

// mostlyCJK 统计汉字在字母类字符中的占比，达到四分之一即认为译文仍以中文为主
func mostlyCJK(s string) bool {
	var cjk, letters int
	for _, r := range s {
		if !unicode.IsLetter(r) {
			continue
		}
		letters++
		if isCJK(r) {
			cjk++
		}
	}
	return cjk > 0 && cjk*4 >= letters
}

func isCJK(r rune) bool {
	return (r >= 0x4e00 && r <= 0x9fff) || (r >= 0x3400 && r <= 0x4dbf)
}

func hasLetter(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}
