package ai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"ecosort/internal/logger"
	"ecosort/internal/model"
)

const (
	// ConfidenceMatched is reported whenever the model produced any text.
	ConfidenceMatched = 0.95
	// ConfidenceFallback is reported when no usable answer was obtained.
	ConfidenceFallback = 0.50
)

const classificationPrompt = `You are an image classification system. Analyze the provided image of a single garbage item and classify it into one of the following three categories. Respond with only the category name: "recycle", "waste", or "mix".

Categories:
recycle: Items that are clean and recyclable such as paper, cardboard, books, notebooks, cans, glass bottles, or plastic containers, for example bottle caps or pen caps.

waste: Items that are non-recyclable, soiled, or disposable, such as used tissues, food-stained wrappers, plastic straws, napkins, styrofoam, crumpled paper or tissue, pencil shavings.

mix: Items made of two or more different materials that cannot be easily separated, such as juice boxes (plastic + foil + paper), mobile phones, chip packets (plastic + foil), plastic-lined paper cups, candy and chocolate wrappers.

Do not include any explanation, punctuation, or extra text. Your entire response must be just one word: "recycle", "waste", or "mix".`

const retryPrompt = "recycle, waste, or mix?"

// maxErrorBody bounds how much of a failed response is logged.
const maxErrorBody = 4096

// ImageEncoder turns a stored image into the bytes and MIME type sent to the model.
type ImageEncoder interface {
	Encode(path string) ([]byte, string, error)
}

// RawEncoder sends the stored file untouched.
type RawEncoder struct{}

// Encode reads the file and sniffs its MIME type, defaulting to image/jpeg.
func (RawEncoder) Encode(path string) ([]byte, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read image: %w", err)
	}
	mimeType := http.DetectContentType(data)
	if !strings.HasPrefix(mimeType, "image/") {
		mimeType = "image/jpeg"
	}
	return data, mimeType, nil
}

// Classifier sorts captured images into bins using a Gemini model on Vertex AI.
type Classifier struct {
	endpoint   string
	tokens     oauth2.TokenSource
	encoder    ImageEncoder
	httpClient *http.Client
	logger     *logger.Logger
	now        func() time.Time
}

// NewClassifier creates a Classifier calling endpoint with bearer tokens from tokens.
// A nil encoder sends the stored bytes as they are.
func NewClassifier(endpoint string, tokens oauth2.TokenSource, encoder ImageEncoder, timeout time.Duration, logger *logger.Logger) *Classifier {
	if encoder == nil {
		encoder = RawEncoder{}
	}
	return &Classifier{
		endpoint:   endpoint,
		tokens:     tokens,
		encoder:    encoder,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
		now:        time.Now,
	}
}

// Classify returns the bin for the image at imagePath. It never fails: every
// backend problem is turned into a mix result with fallback confidence.
func (c *Classifier) Classify(ctx context.Context, imagePath string) model.ClassificationResult {
	answer, err := c.answer(ctx, imagePath)
	if err != nil {
		c.logger.Error("Error classifying image %s: %v", imagePath, err)
		return c.fallback()
	}
	if answer == "" {
		return c.fallback()
	}

	normalized := Normalize(answer)
	category := MapCategory(normalized)
	if category == model.CategoryMix && !strings.Contains(normalized, string(model.CategoryMix)) {
		c.logger.Warning("Unexpected classification response %q, defaulting to mix", normalized)
	}

	c.logger.Info("Image %s classified as %s", imagePath, category)
	return c.result(category, ConfidenceMatched)
}

// answer returns the raw answer text. An empty answer with a nil error means
// the model gave nothing usable and the fallback applies.
func (c *Classifier) answer(ctx context.Context, imagePath string) (string, error) {
	data, mimeType, err := c.encoder.Encode(imagePath)
	if err != nil {
		return "", err
	}
	encoded := base64.StdEncoding.EncodeToString(data)

	resp, err := c.generate(ctx, newGenerateRequest(classificationPrompt, mimeType, encoded, blockNone))
	if err != nil {
		return "", err
	}

	if resp.UsageMetadata != nil && resp.UsageMetadata.ThoughtsTokenCount > 0 {
		c.logger.Info("Model used %d tokens for thinking", resp.UsageMetadata.ThoughtsTokenCount)
	}

	if len(resp.Candidates) == 0 {
		c.logger.Warning("No candidates found in classifier response")
		return "", nil
	}

	raw := resp.Candidates[0]
	var cand candidate
	if err := json.Unmarshal(raw, &cand); err != nil {
		return "", fmt.Errorf("failed to decode candidate: %w", err)
	}

	switch cand.FinishReason {
	case finishReasonSafety:
		c.logger.Warning("Response blocked by safety filters, defaulting to mix")
		return "", nil
	case finishReasonMaxTokens:
		c.logger.Warning("Response truncated at max tokens, extracting what was produced")
	}

	if text := extractText(cand, raw); text != "" {
		return text, nil
	}

	c.logger.Info("No text in classifier response, retrying with simplified prompt")
	retry, err := c.generate(ctx, newGenerateRequest(retryPrompt, mimeType, encoded, nil))
	if err != nil {
		c.logger.Warning("Retry failed: %v", err)
		return "", nil
	}
	if text := firstPartText(retry); text != "" {
		return text, nil
	}

	c.logger.Warning("No text found in response after retry, defaulting to mix")
	return "", nil
}

// extractText pulls the answer from the first field that carries one. As a
// last resort the serialized candidate is scanned for a bin name.
func extractText(cand candidate, raw json.RawMessage) string {
	if cand.Content != nil {
		for _, p := range cand.Content.Parts {
			if p.Text != "" {
				return p.Text
			}
		}
		if cand.Content.Text != "" {
			return cand.Content.Text
		}
	}
	if cand.Text != "" {
		return cand.Text
	}
	return scanCategory(raw)
}

func firstPartText(resp *generateResponse) string {
	if len(resp.Candidates) == 0 {
		return ""
	}
	var cand candidate
	if err := json.Unmarshal(resp.Candidates[0], &cand); err != nil {
		return ""
	}
	if cand.Content == nil || len(cand.Content.Parts) == 0 {
		return ""
	}
	return cand.Content.Parts[0].Text
}

func (c *Classifier) generate(ctx context.Context, payload generateRequest) (*generateResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	token, err := c.tokens.Token()
	if err != nil {
		return nil, fmt.Errorf("failed to get access token: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("classifier request failed: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBody))
		return nil, fmt.Errorf("classifier returned %s: %s", res.Status, strings.TrimSpace(string(msg)))
	}

	var out generateResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode classifier response: %w", err)
	}
	return &out, nil
}

func (c *Classifier) fallback() model.ClassificationResult {
	return c.result(model.CategoryMix, ConfidenceFallback)
}

func (c *Classifier) result(category model.Category, confidence float64) model.ClassificationResult {
	return model.ClassificationResult{
		Status: model.StatusSuccess,
		Data: model.ClassificationData{
			Timestamp:      c.now().UTC(),
			Detections:     []model.Detection{{Label: category, Confidence: confidence}},
			Classification: category,
		},
	}
}
