package ai

import (
	"strings"

	"ecosort/internal/model"
)

// Normalize lowercases text and drops every character outside a-z.
func Normalize(text string) string {
	lower := strings.ToLower(text)
	var b strings.Builder
	b.Grow(len(lower))
	for _, r := range lower {
		if r >= 'a' && r <= 'z' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// MapCategory maps free-form model output to a category. Categories are tried
// in order, so "recyclewaste" is recycle. Unknown text maps to mix.
func MapCategory(text string) model.Category {
	normalized := Normalize(text)
	for _, category := range model.Categories {
		if strings.Contains(normalized, string(category)) {
			return category
		}
	}
	return model.CategoryMix
}

// scanCategory looks for a bin name anywhere in a raw response. Only recycle
// and waste are considered since mix is the default anyway.
func scanCategory(raw []byte) string {
	lower := strings.ToLower(string(raw))
	switch {
	case strings.Contains(lower, string(model.CategoryRecycle)):
		return string(model.CategoryRecycle)
	case strings.Contains(lower, string(model.CategoryWaste)):
		return string(model.CategoryWaste)
	}
	return ""
}
