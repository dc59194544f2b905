package translator

import (
	"fmt"
	"strings"
)

const (
	systemPrompt = "You are a professional translator. Translate accurately while maintaining the meaning and context."
	emptyMarker  = "[empty]"
)

// buildPrompt 生成编号列表形式的用户提示词，要求模型只返回长度为 len(texts) 的 JSON 字符串数组
func buildPrompt(texts []string, lang Language) (string, string) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Translate the following Chinese texts to %s.\n", lang.Name)
	fmt.Fprintf(&sb, "Return ONLY a JSON array of exactly %d strings, one translation per text, in the same order.\n", len(texts))
	fmt.Fprintf(&sb, "If a text is %s, return an empty string for it. Do not add explanations.\n\n", emptyMarker)
	sb.WriteString("Texts to translate:\n")
	for i, t := range texts {
		t = strings.Join(strings.Fields(t), " ")
		if t == "" {
			t = emptyMarker
		}
		fmt.Fprintf(&sb, "%d. %s\n", i+1, t)
	}
	return systemPrompt, sb.String()
}
