// Package service 包含了应用的业务逻辑层。
package service

import (
	"unicode"

	"kb-space-go/internal/model"
)

// HighlightSpans 在页面纯文本内容上做大小写不敏感的子串匹配，
// 返回所有不重叠的命中区间。区间以 rune 为单位计偏移，[Start, End)，
// 逐 rune 小写化保证偏移与原文一一对应。
func HighlightSpans(content, searchStr string) []model.HighlightSpan {
	if searchStr == "" || content == "" {
		return nil
	}

	text := lowerRunes(content)
	needle := lowerRunes(searchStr)
	if len(needle) > len(text) {
		return nil
	}

	var spans []model.HighlightSpan
	for i := 0; i+len(needle) <= len(text); {
		if matchAt(text, needle, i) {
			spans = append(spans, model.HighlightSpan{Start: i, End: i + len(needle)})
			i += len(needle)
		} else {
			i++
		}
	}
	return spans
}

func lowerRunes(s string) []rune {
	runes := []rune(s)
	for i, r := range runes {
		runes[i] = unicode.ToLower(r)
	}
	return runes
}

func matchAt(text, needle []rune, offset int) bool {
	for i, r := range needle {
		if text[offset+i] != r {
			return false
		}
	}
	return true
}
