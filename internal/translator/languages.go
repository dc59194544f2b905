package translator

import "strings"

// Language 是一个翻译目标语言，Name 用于拼接提示词
type Language struct {
	Code string
	Name string
}

var DefaultLanguages = []Language{
	{Code: "en", Name: "English"},
	{Code: "ja", Name: "Japanese"},
	{Code: "ko", Name: "Korean"},
	{Code: "es", Name: "Spanish"},
	{Code: "fr", Name: "French"},
	{Code: "de", Name: "German"},
	{Code: "ru", Name: "Russian"},
	{Code: "ar", Name: "Arabic"},
}

// LookupLanguage 按代码查找内置语言，大小写不敏感
func LookupLanguage(code string) (Language, bool) {
	code = strings.ToLower(strings.TrimSpace(code))
	for _, l := range DefaultLanguages {
		if l.Code == code {
			return l, true
		}
	}
	return Language{}, false
}

// Languages 把配置里的语言代码转成 Language 列表，未知代码和重复代码被跳过
func Languages(codes []string) []Language {
	out := make([]Language, 0, len(codes))
	seen := make(map[string]struct{}, len(codes))
	for _, c := range codes {
		l, ok := LookupLanguage(c)
		if !ok {
			continue
		}
		if _, dup := seen[l.Code]; dup {
			continue
		}
		seen[l.Code] = struct{}{}
		out = append(out, l)
	}
	return out
}
