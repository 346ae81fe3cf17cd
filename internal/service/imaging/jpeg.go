package imaging

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"ecosort/internal/config"
	"ecosort/internal/logger"
)

// JPEGEncoder re-encodes stored captures as JPEG, shrinking them so the
// longest side does not exceed maxDimension. Zero disables resizing.
type JPEGEncoder struct {
	maxDimension int
	logger       *logger.Logger
}

func NewJPEGEncoder(cfg *config.Config, logger *logger.Logger) *JPEGEncoder {
	return &JPEGEncoder{maxDimension: cfg.MaxImageDimension, logger: logger}
}

// Encode reads the image at path and returns JPEG bytes.
func (e *JPEGEncoder) Encode(path string) ([]byte, string, error) {
	mat := gocv.IMRead(path, gocv.IMReadColor)
	if mat.Empty() {
		return nil, "", fmt.Errorf("failed to decode image: %s", path)
	}
	defer mat.Close()

	if size := scaledSize(mat.Cols(), mat.Rows(), e.maxDimension); size != image.Pt(mat.Cols(), mat.Rows()) {
		resized := gocv.NewMat()
		defer resized.Close()

		if err := gocv.Resize(mat, &resized, size, 0, 0, gocv.InterpolationArea); err != nil {
			return nil, "", fmt.Errorf("failed to resize image: %w", err)
		}
		e.logger.Info("Resized %s from %dx%d to %dx%d", path, mat.Cols(), mat.Rows(), size.X, size.Y)
		return encode(resized)
	}

	return encode(mat)
}

func encode(mat gocv.Mat) ([]byte, string, error) {
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, mat)
	if err != nil {
		return nil, "", fmt.Errorf("failed to encode image: %w", err)
	}
	defer buf.Close()

	out := make([]byte, len(buf.GetBytes()))
	copy(out, buf.GetBytes())
	return out, "image/jpeg", nil
}

// scaledSize keeps the aspect ratio while fitting the longest side into limit.
func scaledSize(width, height, limit int) image.Point {
	if limit <= 0 || (width <= limit && height <= limit) {
		return image.Pt(width, height)
	}
	if width >= height {
		return image.Pt(limit, max(1, height*limit/width))
	}
	return image.Pt(max(1, width*limit/height), limit)
}
