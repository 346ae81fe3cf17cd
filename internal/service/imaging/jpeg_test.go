package imaging

import (
	"image"
	"path/filepath"
	"testing"

	"gocv.io/x/gocv"

	"ecosort/internal/logger"
)

func TestScaledSize(t *testing.T) {
	tests := []struct {
		width, height, limit int
		want                 image.Point
	}{
		{640, 480, 1024, image.Pt(640, 480)},
		{2048, 1536, 1024, image.Pt(1024, 768)},
		{1536, 2048, 1024, image.Pt(768, 1024)},
		{4000, 1, 1000, image.Pt(1000, 1)},
		{2048, 1536, 0, image.Pt(2048, 1536)},
	}

	for _, tt := range tests {
		if got := scaledSize(tt.width, tt.height, tt.limit); got != tt.want {
			t.Errorf("scaledSize(%d, %d, %d) = %v, expected %v", tt.width, tt.height, tt.limit, got, tt.want)
		}
	}
}

func TestJPEGEncoder_Encode(t *testing.T) {
	l, err := logger.New(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	defer l.Close()

	src := gocv.NewMatWithSize(600, 1200, gocv.MatTypeCV8UC3)
	defer src.Close()

	path := filepath.Join(t.TempDir(), "capture.png")
	if !gocv.IMWrite(path, src) {
		t.Fatalf("Failed to write test image")
	}

	encoder := &JPEGEncoder{maxDimension: 300, logger: l}
	data, mimeType, err := encoder.Encode(path)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if mimeType != "image/jpeg" {
		t.Errorf("Expected image/jpeg, got %s", mimeType)
	}

	decoded, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		t.Fatalf("Failed to decode output: %v", err)
	}
	defer decoded.Close()
	if decoded.Cols() != 300 || decoded.Rows() != 150 {
		t.Errorf("Expected 300x150, got %dx%d", decoded.Cols(), decoded.Rows())
	}
}

func TestJPEGEncoder_EncodeMissingFile(t *testing.T) {
	l, err := logger.New(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	defer l.Close()

	encoder := &JPEGEncoder{maxDimension: 300, logger: l}
	if _, _, err := encoder.Encode(filepath.Join(t.TempDir(), "missing.jpg")); err == nil {
		t.Error("Expected error for missing file")
	}
}
