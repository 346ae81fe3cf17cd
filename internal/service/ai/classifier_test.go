package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/oauth2"

	"ecosort/internal/logger"
	"ecosort/internal/model"
)

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	l, err := logger.New(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return l
}

func writeImage(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "capture.jpg")
	if err := os.WriteFile(path, []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 0xFF, 0xD9}, 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	return path
}

// vertexServer replies to successive calls with the given bodies and records requests.
type vertexServer struct {
	*httptest.Server
	calls    atomic.Int32
	mu       sync.Mutex
	requests []generateRequest
}

func (vs *vertexServer) recorded() []generateRequest {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	return append([]generateRequest(nil), vs.requests...)
}

func newVertexServer(t *testing.T, status int, bodies ...string) *vertexServer {
	t.Helper()
	vs := &vertexServer{}
	vs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("Unexpected Authorization header %q", got)
		}
		var req generateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("Failed to decode request: %v", err)
		}
		vs.mu.Lock()
		vs.requests = append(vs.requests, req)
		vs.mu.Unlock()

		n := int(vs.calls.Add(1)) - 1
		w.WriteHeader(status)
		if n < len(bodies) {
			w.Write([]byte(bodies[n]))
		} else {
			w.Write([]byte(`{"candidates":[]}`))
		}
	}))
	t.Cleanup(vs.Close)
	return vs
}

func newTestClassifier(t *testing.T, endpoint string) *Classifier {
	t.Helper()
	c := NewClassifier(endpoint, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "test-token"}), nil, 5*time.Second, newTestLogger(t))
	c.now = func() time.Time { return time.Date(2025, 1, 4, 14, 30, 0, 0, time.UTC) }
	return c
}

func assertResult(t *testing.T, got model.ClassificationResult, category model.Category, confidence float64) {
	t.Helper()
	if got.Status != model.StatusSuccess {
		t.Errorf("Expected status success, got %s", got.Status)
	}
	if got.Data.Classification != category {
		t.Errorf("Expected classification %s, got %s", category, got.Data.Classification)
	}
	if len(got.Data.Detections) != 1 {
		t.Fatalf("Expected exactly one detection, got %d", len(got.Data.Detections))
	}
	if got.Data.Detections[0].Label != category {
		t.Errorf("Expected detection label %s, got %s", category, got.Data.Detections[0].Label)
	}
	if got.Data.Detections[0].Confidence != confidence {
		t.Errorf("Expected confidence %.2f, got %.2f", confidence, got.Data.Detections[0].Confidence)
	}
}

func TestClassifier_Responses(t *testing.T) {
	tests := []struct {
		name       string
		bodies     []string
		category   model.Category
		confidence float64
		calls      int32
	}{
		{
			name:       "parts text",
			bodies:     []string{`{"candidates":[{"content":{"parts":[{"text":"Recycle."}]},"finishReason":"STOP"}]}`},
			category:   model.CategoryRecycle,
			confidence: ConfidenceMatched,
			calls:      1,
		},
		{
			name:       "waste with whitespace",
			bodies:     []string{`{"candidates":[{"content":{"parts":[{"text":"  WASTE\n"}]}}]}`},
			category:   model.CategoryWaste,
			confidence: ConfidenceMatched,
			calls:      1,
		},
		{
			name:       "recycle wins over waste",
			bodies:     []string{`{"candidates":[{"content":{"parts":[{"text":"waste or recycle"}]}}]}`},
			category:   model.CategoryRecycle,
			confidence: ConfidenceMatched,
			calls:      1,
		},
		{
			name:       "unrecognized text",
			bodies:     []string{`{"candidates":[{"content":{"parts":[{"text":"banana"}]}}]}`},
			category:   model.CategoryMix,
			confidence: ConfidenceMatched,
			calls:      1,
		},
		{
			name:       "no candidates",
			bodies:     []string{`{"candidates":[]}`},
			category:   model.CategoryMix,
			confidence: ConfidenceFallback,
			calls:      1,
		},
		{
			name:       "blocked by safety",
			bodies:     []string{`{"candidates":[{"content":{"parts":[{"text":"recycle"}]},"finishReason":"SAFETY"}]}`},
			category:   model.CategoryMix,
			confidence: ConfidenceFallback,
			calls:      1,
		},
		{
			name:       "max tokens with text",
			bodies:     []string{`{"candidates":[{"content":{"parts":[{"text":"waste"}]},"finishReason":"MAX_TOKENS"}],"usageMetadata":{"thoughtsTokenCount":2000}}`},
			category:   model.CategoryWaste,
			confidence: ConfidenceMatched,
			calls:      1,
		},
		{
			name:       "content text",
			bodies:     []string{`{"candidates":[{"content":{"role":"model","text":"recycle"}}]}`},
			category:   model.CategoryRecycle,
			confidence: ConfidenceMatched,
			calls:      1,
		},
		{
			name:       "candidate text",
			bodies:     []string{`{"candidates":[{"text":"waste"}]}`},
			category:   model.CategoryWaste,
			confidence: ConfidenceMatched,
			calls:      1,
		},
		{
			name:       "raw scan",
			bodies:     []string{`{"candidates":[{"content":{"role":"model"},"groundingMetadata":{"note":"looks like Waste"}}]}`},
			category:   model.CategoryWaste,
			confidence: ConfidenceMatched,
			calls:      1,
		},
		{
			name: "retry succeeds",
			bodies: []string{
				`{"candidates":[{"content":{"role":"model"},"finishReason":"MAX_TOKENS"}]}`,
				`{"candidates":[{"content":{"parts":[{"text":"Recycle"}]}}]}`,
			},
			category:   model.CategoryRecycle,
			confidence: ConfidenceMatched,
			calls:      2,
		},
		{
			name: "retry empty",
			bodies: []string{
				`{"candidates":[{"content":{"role":"model"}}]}`,
				`{"candidates":[{"content":{"parts":[]}}]}`,
			},
			category:   model.CategoryMix,
			confidence: ConfidenceFallback,
			calls:      2,
		},
		{
			name:       "malformed body",
			bodies:     []string{`{"candidates":`},
			category:   model.CategoryMix,
			confidence: ConfidenceFallback,
			calls:      1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newVertexServer(t, http.StatusOK, tt.bodies...)
			c := newTestClassifier(t, srv.URL)

			got := c.Classify(context.Background(), writeImage(t))
			assertResult(t, got, tt.category, tt.confidence)

			if calls := srv.calls.Load(); calls != tt.calls {
				t.Errorf("Expected %d backend calls, got %d", tt.calls, calls)
			}
		})
	}
}

func TestClassifier_RequestShape(t *testing.T) {
	srv := newVertexServer(t, http.StatusOK,
		`{"candidates":[{"content":{}}]}`,
		`{"candidates":[{"content":{"parts":[{"text":"mix"}]}}]}`,
	)
	c := newTestClassifier(t, srv.URL)

	got := c.Classify(context.Background(), writeImage(t))
	assertResult(t, got, model.CategoryMix, ConfidenceMatched)

	requests := srv.recorded()
	if len(requests) != 2 {
		t.Fatalf("Expected 2 requests, got %d", len(requests))
	}

	first := requests[0]
	if first.GenerationConfig.Temperature != 0 || first.GenerationConfig.MaxOutputTokens != 2048 || first.GenerationConfig.CandidateCount != 1 {
		t.Errorf("Unexpected generation config %+v", first.GenerationConfig)
	}
	if len(first.SafetySettings) != 4 {
		t.Errorf("Expected 4 safety settings, got %d", len(first.SafetySettings))
	}
	parts := first.Contents[0].Parts
	if len(parts) != 2 || parts[0].Text != classificationPrompt {
		t.Fatalf("Unexpected prompt parts %+v", parts)
	}
	if parts[1].InlineData == nil || parts[1].InlineData.MimeType != "image/jpeg" || parts[1].InlineData.Data == "" {
		t.Errorf("Unexpected inline data %+v", parts[1].InlineData)
	}

	retry := requests[1]
	if retry.Contents[0].Parts[0].Text != retryPrompt {
		t.Errorf("Expected retry prompt, got %q", retry.Contents[0].Parts[0].Text)
	}
	if len(retry.SafetySettings) != 0 {
		t.Errorf("Retry must not carry safety settings, got %d", len(retry.SafetySettings))
	}
}

func TestClassifier_BackendFailures(t *testing.T) {
	t.Run("server error", func(t *testing.T) {
		srv := newVertexServer(t, http.StatusInternalServerError, `{"error":{"message":"boom"}}`)
		got := newTestClassifier(t, srv.URL).Classify(context.Background(), writeImage(t))
		assertResult(t, got, model.CategoryMix, ConfidenceFallback)
	})

	t.Run("unreachable", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()
		got := newTestClassifier(t, url).Classify(context.Background(), writeImage(t))
		assertResult(t, got, model.CategoryMix, ConfidenceFallback)
	})

	t.Run("token error", func(t *testing.T) {
		srv := newVertexServer(t, http.StatusOK, `{"candidates":[{"content":{"parts":[{"text":"recycle"}]}}]}`)
		c := newTestClassifier(t, srv.URL)
		c.tokens = failingTokenSource{}
		got := c.Classify(context.Background(), writeImage(t))
		assertResult(t, got, model.CategoryMix, ConfidenceFallback)
		if srv.calls.Load() != 0 {
			t.Error("Expected no backend call without a token")
		}
	})

	t.Run("missing image", func(t *testing.T) {
		srv := newVertexServer(t, http.StatusOK)
		got := newTestClassifier(t, srv.URL).Classify(context.Background(), filepath.Join(t.TempDir(), "missing.jpg"))
		assertResult(t, got, model.CategoryMix, ConfidenceFallback)
	})
}

func TestClassifier_Timestamp(t *testing.T) {
	srv := newVertexServer(t, http.StatusOK, `{"candidates":[{"content":{"parts":[{"text":"waste"}]}}]}`)
	got := newTestClassifier(t, srv.URL).Classify(context.Background(), writeImage(t))

	want := time.Date(2025, 1, 4, 14, 30, 0, 0, time.UTC)
	if !got.Data.Timestamp.Equal(want) {
		t.Errorf("Expected timestamp %v, got %v", want, got.Data.Timestamp)
	}
}

type failingTokenSource struct{}

func (failingTokenSource) Token() (*oauth2.Token, error) {
	return nil, errors.New("invalid_grant")
}
