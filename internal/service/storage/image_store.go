package storage

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"ecosort/internal/config"
	"ecosort/internal/logger"
	"ecosort/internal/model"
)

// ErrInvalidDataURI is returned when captured image data is not a base64 data URI.
var ErrInvalidDataURI = errors.New("invalid base64 string")

var dataURIPattern = regexp.MustCompile(`^data:([A-Za-z+/-]+);base64,(.+)$`)

// ImageStore writes captured images to the uploads directory.
type ImageStore struct {
	dir    string
	logger *logger.Logger
	once   sync.Once
	dirErr error
}

// NewImageStore creates an ImageStore for the configured upload directory.
func NewImageStore(config *config.Config, logger *logger.Logger) *ImageStore {
	return NewImageStoreAt(config.UploadDir, logger)
}

// NewImageStoreAt creates an ImageStore writing into dir.
func NewImageStoreAt(dir string, logger *logger.Logger) *ImageStore {
	return &ImageStore{
		dir:    dir,
		logger: logger,
	}
}

// Dir returns the directory images are written to.
func (s *ImageStore) Dir() string {
	return s.dir
}

// Save decodes a data URI and writes the raw bytes to filename inside the store
// directory. It returns the full path of the written file.
func (s *ImageStore) Save(dataURI, filename string) (string, error) {
	_, data, err := DecodeDataURI(dataURI)
	if err != nil {
		return "", err
	}

	if err := s.ensureDir(); err != nil {
		return "", err
	}

	fullpath := filepath.Join(s.dir, filepath.Base(filename))
	if err := os.WriteFile(fullpath, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write image %s: %w", filename, err)
	}

	s.logger.Info("Image saved to %s (%d bytes)", fullpath, len(data))
	return fullpath, nil
}

// SaveCapture stores a data URI under a filename derived from capturedAt.
func (s *ImageStore) SaveCapture(dataURI string, capturedAt time.Time) (model.CapturedImage, error) {
	timestamp, filename := CaptureFilename(capturedAt)

	path, err := s.Save(dataURI, filename)
	if err != nil {
		return model.CapturedImage{}, err
	}

	return model.CapturedImage{
		Timestamp:  timestamp,
		Filename:   filename,
		Path:       path,
		CapturedAt: capturedAt,
	}, nil
}

// Open reads back a stored image.
func (s *ImageStore) Open(path string) ([]byte, error) {
	return os.ReadFile(path)
}

func (s *ImageStore) ensureDir() error {
	s.once.Do(func() {
		if _, err := os.Stat(s.dir); os.IsNotExist(err) {
			s.logger.Info("Created uploads directory %s", s.dir)
		}
		if err := os.MkdirAll(s.dir, 0755); err != nil {
			s.dirErr = fmt.Errorf("failed to create uploads directory: %w", err)
		}
	})
	return s.dirErr
}

// DecodeDataURI splits a "data:<mime>;base64,<payload>" string into its MIME type
// and decoded bytes.
func DecodeDataURI(dataURI string) (string, []byte, error) {
	matches := dataURIPattern.FindStringSubmatch(dataURI)
	if len(matches) != 3 {
		return "", nil, ErrInvalidDataURI
	}

	payload := matches[2]
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		// Some encoders drop the padding
		data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "="))
		if err != nil {
			return "", nil, fmt.Errorf("%w: %v", ErrInvalidDataURI, err)
		}
	}
	return matches[1], data, nil
}

// CaptureFilename derives the capture timestamp and filename from t. Colons are
// replaced so the name is valid on every filesystem.
func CaptureFilename(t time.Time) (timestamp, filename string) {
	timestamp = strings.ReplaceAll(t.UTC().Format("2006-01-02T15:04:05.000Z07:00"), ":", "-")
	return timestamp, fmt.Sprintf("capture_%s.jpg", timestamp)
}
