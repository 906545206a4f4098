package analyzer

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/khaledhikmat/vs-face/codec"
	"github.com/khaledhikmat/vs-face/model"
	"github.com/khaledhikmat/vs-face/service/config"
	"github.com/khaledhikmat/vs-face/service/lgr"
	"gocv.io/x/gocv"
	"golang.org/x/text/cases"
)

const (
	openAITimeout    = 30 * time.Second
	openAIRetryDelay = 250 * time.Millisecond
	openAIMaxTokens  = 500
)

const openAIPrompt = `You estimate demographics of the people in a photo.
Reply with JSON only, shaped as {"faces":[{"age":<int>,"gender":"Woman"|"Man","race":<label>,"region":{"x":<int>,"y":<int>,"w":<int>,"h":<int>}}]}.
race must be one of: asian, indian, black, white, middle eastern, latino hispanic.
region is the face bounding box in pixels of the %dx%d image.
List one entry per visible face, largest first.`

const openAINoFaceHint = `
If no face is clearly visible, still return exactly one entry with your best estimate for the whole image.`

// APIError is a non-2xx response from the vision API.
type APIError struct {
	StatusCode int
	Message    string
	Code       string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("openai: API error %d (%s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("openai: API error %d: %s", e.StatusCode, e.Message)
}

type chatCompletionResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

type visionFaces struct {
	Faces []struct {
		Age    float64      `json:"age"`
		Gender string       `json:"gender"`
		Race   string       `json:"race"`
		Region model.Region `json:"region"`
	} `json:"faces"`
}

// openAIService asks an OpenAI-compatible chat/completions endpoint to
// estimate age, gender and race from the frame.
type openAIService struct {
	params  config.OpenAIParameters
	http    *http.Client
	quality int
}

func NewOpenAI(cfgSvc config.IService) (IService, error) {
	params := cfgSvc.GetOpenAIParameters()
	if params.APIKey == "" {
		return nil, config.ErrNoAPIKey
	}

	return &openAIService{
		params:  params,
		http:    newHTTPClient(openAITimeout),
		quality: cfgSvc.GetJPEGQuality(),
	}, nil
}

func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   10 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   10,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}
}

func (svc *openAIService) Name() string {
	return config.AnalyzerOpenAI
}

func (svc *openAIService) Analyze(ctx context.Context, img gocv.Mat, opts Options) ([]model.FaceAnalysis, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if img.Empty() {
		return nil, ErrEmptyImage
	}

	jpeg, err := codec.EncodeJPEG(img, svc.quality)
	if err != nil {
		return nil, err
	}

	content, err := svc.vision(ctx, jpeg, img.Cols(), img.Rows(), opts)
	if err != nil {
		return nil, err
	}

	return parseVisionFaces(content, opts)
}

func (svc *openAIService) vision(ctx context.Context, jpeg []byte, width, height int, opts Options) (string, error) {
	prompt := fmt.Sprintf(openAIPrompt, width, height)
	if !opts.EnforceDetection {
		prompt += openAINoFaceHint
	}

	payload := map[string]interface{}{
		"model": svc.params.VisionModel,
		"messages": []map[string]interface{}{{
			"role": "user",
			"content": []map[string]interface{}{
				{"type": "text", "text": prompt},
				{
					"type": "image_url",
					"image_url": map[string]string{
						"url": "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(jpeg),
					},
				},
			},
		}},
		"max_tokens":      openAIMaxTokens,
		"temperature":     0,
		"response_format": map[string]string{"type": "json_object"},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}

	resp, err := svc.postWithRetry(ctx, "/chat/completions", body)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var result chatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}

	if len(result.Choices) == 0 {
		return "", fmt.Errorf("openai: no choices returned")
	}

	return result.Choices[0].Message.Content, nil
}

func (svc *openAIService) postWithRetry(ctx context.Context, path string, body []byte) (*http.Response, error) {
	url := strings.TrimRight(svc.params.BaseURL, "/") + path

	var lastErr error
	for attempt := 0; attempt <= svc.params.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(openAIRetryDelay * time.Duration(attempt)):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+svc.params.APIKey)

		resp, err := svc.http.Do(req)
		if err != nil {
			lastErr = err
			lgr.Logger.Warn("openai request failed, retrying",
				slog.Int("attempt", attempt+1),
				slog.Any("error", err),
			)
			continue
		}

		if resp.StatusCode == http.StatusOK {
			return resp, nil
		}

		lastErr = parseAPIError(resp)
		resp.Body.Close()

		if resp.StatusCode != http.StatusTooManyRequests && resp.StatusCode < 500 {
			return nil, lastErr
		}

		lgr.Logger.Warn("openai request retryable status",
			slog.Int("attempt", attempt+1),
			slog.Int("status", resp.StatusCode),
		)
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("openai: no request attempted (max retries %d)", svc.params.MaxRetries)
	}
	return nil, lastErr
}

func parseAPIError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	var errResp struct {
		Error struct {
			Message string `json:"message"`
			Code    string `json:"code"`
		} `json:"error"`
	}

	apiErr := &APIError{StatusCode: resp.StatusCode, Message: string(body)}
	if json.Unmarshal(body, &errResp) == nil && errResp.Error.Message != "" {
		apiErr.Message = errResp.Error.Message
		apiErr.Code = errResp.Error.Code
	}
	return apiErr
}

// parseVisionFaces converts the model's JSON answer into analysis records.
// The model only names a label, so the label gets the whole distribution.
func parseVisionFaces(content string, opts Options) ([]model.FaceAnalysis, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	var parsed visionFaces
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &parsed); err != nil {
		return nil, fmt.Errorf("openai: malformed analysis %q: %w", content, err)
	}

	if len(parsed.Faces) == 0 {
		if opts.EnforceDetection {
			return nil, ErrNoFace
		}
		return nil, ErrNoResult
	}

	out := make([]model.FaceAnalysis, 0, len(parsed.Faces))
	for _, f := range parsed.Faces {
		var rec model.FaceAnalysis
		if opts.Has(ActionAge) {
			rec.Age = int(math.Round(math.Max(f.Age, 0)))
		}
		if opts.Has(ActionGender) {
			rec.Gender = oneHot(GenderLabels, normalizeLabel(GenderLabels, f.Gender))
			rec.DominantGender = dominant(rec.Gender)
		}
		if opts.Has(ActionRace) {
			rec.Race = oneHot(RaceLabels, normalizeLabel(RaceLabels, f.Race))
			rec.DominantRace = dominant(rec.Race)
		}
		rec.Region = f.Region
		out = append(out, rec)
	}
	return out, nil
}

// normalizeLabel matches label case-insensitively against known labels and
// also accepts common synonyms. Unknown labels pass through unchanged.
func normalizeLabel(known []string, label string) string {
	fold := cases.Fold()
	l := fold.String(strings.TrimSpace(label))
	l = strings.ReplaceAll(l, "_", " ")

	switch l {
	case "male", "man":
		l = "man"
	case "female", "woman":
		l = "woman"
	case "latino", "hispanic", "latino/hispanic":
		l = "latino hispanic"
	}

	for _, k := range known {
		if fold.String(k) == l {
			return k
		}
	}
	return strings.TrimSpace(label)
}

func oneHot(labels []string, chosen string) map[string]float64 {
	out := make(map[string]float64, len(labels)+1)
	for _, label := range labels {
		out[label] = 0
	}
	out[chosen] = 100
	return out
}
