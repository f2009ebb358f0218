package service

import (
	"testing"

	"kb-space-go/internal/model"

	"github.com/stretchr/testify/assert"
)

func TestHighlightSpansCaseInsensitive(t *testing.T) {
	spans := HighlightSpans("Go is great. go is simple.", "GO")
	assert.Equal(t, []model.HighlightSpan{{Start: 0, End: 2}, {Start: 13, End: 15}}, spans)
}

func TestHighlightSpansRuneOffsets(t *testing.T) {
	// 偏移按 rune 计，中文内容下与字符位置一致
	spans := HighlightSpans("知识库中的知识", "知识")
	assert.Equal(t, []model.HighlightSpan{{Start: 0, End: 2}, {Start: 5, End: 7}}, spans)
}

func TestHighlightSpansNonOverlapping(t *testing.T) {
	spans := HighlightSpans("aaaa", "aa")
	assert.Equal(t, []model.HighlightSpan{{Start: 0, End: 2}, {Start: 2, End: 4}}, spans)
}

func TestHighlightSpansNoMatch(t *testing.T) {
	assert.Nil(t, HighlightSpans("hello", "world"))
}

func TestHighlightSpansEmptyInputs(t *testing.T) {
	assert.Nil(t, HighlightSpans("", "x"))
	assert.Nil(t, HighlightSpans("content", ""))
	assert.Nil(t, HighlightSpans("ab", "abc"))
}
