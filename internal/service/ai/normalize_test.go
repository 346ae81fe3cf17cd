package ai

import (
	"testing"

	"ecosort/internal/model"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Recycle", "recycle"},
		{"  WASTE.\n", "waste"},
		{"\"mix\"", "mix"},
		{"re-cycle!", "recycle"},
		{"123", ""},
		{"", ""},
	}

	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, expected %q", tt.in, got, tt.want)
		}
	}
}

func TestMapCategory(t *testing.T) {
	tests := []struct {
		in   string
		want model.Category
	}{
		{"recycle", model.CategoryRecycle},
		{"Recyclable", model.CategoryMix},
		{"Recycle!!", model.CategoryRecycle},
		{" RECYCLE ", model.CategoryRecycle},
		{"the recycle bin", model.CategoryRecycle},
		{"garbage-waste-item", model.CategoryWaste},
		{"banana", model.CategoryMix},
		{"waste", model.CategoryWaste},
		{"Mix.", model.CategoryMix},
		{"waste, maybe recycle", model.CategoryRecycle},
		{"mixed waste", model.CategoryWaste},
		{"unknown", model.CategoryMix},
		{"", model.CategoryMix},
	}

	for _, tt := range tests {
		if got := MapCategory(tt.in); got != tt.want {
			t.Errorf("MapCategory(%q) = %s, expected %s", tt.in, got, tt.want)
		}
	}
}

func TestScanCategory(t *testing.T) {
	if got := scanCategory([]byte(`{"x":"RECYCLE"}`)); got != "recycle" {
		t.Errorf("Expected recycle, got %q", got)
	}
	if got := scanCategory([]byte(`{"x":"waste"}`)); got != "waste" {
		t.Errorf("Expected waste, got %q", got)
	}
	if got := scanCategory([]byte(`{"x":"mix"}`)); got != "" {
		t.Errorf("Expected no match, got %q", got)
	}
}
