package analyzer

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

func newOpenAITestService(t *testing.T, handler http.HandlerFunc) IService {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := newTestConfig()
	cfg.openAI.APIKey = "test-key"
	cfg.openAI.BaseURL = server.URL
	cfg.openAI.MaxRetries = 2

	svc, err := NewOpenAI(cfg)
	if err != nil {
		t.Fatalf("NewOpenAI() error = %v", err)
	}
	return svc
}

func writeCompletion(w http.ResponseWriter, content string) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"model": "gpt-4o-mini",
		"choices": []map[string]interface{}{{
			"message":       map[string]string{"role": "assistant", "content": content},
			"finish_reason": "stop",
		}},
	})
}

func TestOpenAIAnalyze(t *testing.T) {
	img := newTestImage(t)

	svc := newOpenAITestService(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}

		var payload struct {
			Model    string `json:"model"`
			Messages []struct {
				Content []struct {
					Type     string `json:"type"`
					Text     string `json:"text"`
					ImageURL struct {
						URL string `json:"url"`
					} `json:"image_url"`
				} `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode payload: %v", err)
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if payload.Model != "gpt-4o-mini" {
			t.Errorf("model = %q", payload.Model)
		}
		if len(payload.Messages) != 1 || len(payload.Messages[0].Content) != 2 {
			t.Errorf("unexpected message shape: %+v", payload.Messages)
			http.Error(w, "bad shape", http.StatusBadRequest)
			return
		}
		if !strings.Contains(payload.Messages[0].Content[0].Text, "640x480") {
			t.Errorf("prompt missing image size: %q", payload.Messages[0].Content[0].Text)
		}
		if !strings.HasPrefix(payload.Messages[0].Content[1].ImageURL.URL, "data:image/jpeg;base64,") {
			t.Errorf("image_url = %.40q", payload.Messages[0].Content[1].ImageURL.URL)
		}

		writeCompletion(w, `{"faces":[{"age":34.4,"gender":"female","race":"Latino_Hispanic","region":{"x":5,"y":6,"w":70,"h":80}},{"age":9,"gender":"Man","race":"white"}]}`)
	})

	results, err := svc.Analyze(context.Background(), img, DefaultOptions())
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("results = %d, want 2", len(results))
	}

	got := results[0]
	if got.Age != 34 {
		t.Errorf("Age = %d, want 34", got.Age)
	}
	if got.DominantGender != "Woman" || got.Gender["Woman"] != 100 || got.Gender["Man"] != 0 {
		t.Errorf("Gender = %v / %q", got.Gender, got.DominantGender)
	}
	if got.DominantRace != "latino hispanic" {
		t.Errorf("DominantRace = %q, want latino hispanic", got.DominantRace)
	}
	if got.Region.W != 70 || got.Region.H != 80 {
		t.Errorf("Region = %+v", got.Region)
	}
}

func TestOpenAIRetriesServerErrors(t *testing.T) {
	img := newTestImage(t)
	var calls atomic.Int32

	svc := newOpenAITestService(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, `{"error":{"message":"overloaded"}}`, http.StatusServiceUnavailable)
			return
		}
		writeCompletion(w, `{"faces":[{"age":50,"gender":"Man","race":"indian"}]}`)
	})

	results, err := svc.Analyze(context.Background(), img, DefaultOptions())
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", calls.Load())
	}
	if results[0].DominantRace != "indian" {
		t.Errorf("DominantRace = %q", results[0].DominantRace)
	}
}

func TestOpenAIClientErrorNotRetried(t *testing.T) {
	img := newTestImage(t)
	var calls atomic.Int32

	svc := newOpenAITestService(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"Incorrect API key provided","code":"invalid_api_key"}}`))
	})

	_, err := svc.Analyze(context.Background(), img, DefaultOptions())

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Analyze() error = %v, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusUnauthorized || apiErr.Code != "invalid_api_key" {
		t.Errorf("APIError = %+v", apiErr)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestOpenAINoFaces(t *testing.T) {
	img := newTestImage(t)

	svc := newOpenAITestService(t, func(w http.ResponseWriter, r *http.Request) {
		writeCompletion(w, "```json\n{\"faces\":[]}\n```")
	})

	opts := DefaultOptions()
	opts.EnforceDetection = true
	if _, err := svc.Analyze(context.Background(), img, opts); !errors.Is(err, ErrNoFace) {
		t.Errorf("Analyze(enforce) error = %v, want ErrNoFace", err)
	}
	if _, err := svc.Analyze(context.Background(), img, DefaultOptions()); !errors.Is(err, ErrNoResult) {
		t.Errorf("Analyze() error = %v, want ErrNoResult", err)
	}
}

func TestOpenAIMalformedContent(t *testing.T) {
	img := newTestImage(t)

	svc := newOpenAITestService(t, func(w http.ResponseWriter, r *http.Request) {
		writeCompletion(w, "I cannot help with that.")
	})

	if _, err := svc.Analyze(context.Background(), img, DefaultOptions()); err == nil {
		t.Error("Analyze() should fail on non-JSON content")
	}
}

func TestOpenAINegativeRetriesFailsWithoutRequest(t *testing.T) {
	img := newTestImage(t)
	var calls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeCompletion(w, `{"faces":[]}`)
	}))
	defer server.Close()

	cfg := newTestConfig()
	cfg.openAI.APIKey = "test-key"
	cfg.openAI.BaseURL = server.URL
	cfg.openAI.MaxRetries = -1

	svc, err := NewOpenAI(cfg)
	if err != nil {
		t.Fatalf("NewOpenAI() error = %v", err)
	}

	if _, err := svc.Analyze(context.Background(), img, DefaultOptions()); err == nil {
		t.Error("Analyze() should fail when no request is attempted")
	}
	if calls.Load() != 0 {
		t.Errorf("calls = %d, want 0", calls.Load())
	}
}

func TestParseVisionFacesAge(t *testing.T) {
	tests := []struct {
		age  string
		want int
	}{
		{"34.5", 35},
		{"0", 0},
		{"-12", 0},
	}

	for _, tt := range tests {
		results, err := parseVisionFaces(`{"faces":[{"age":`+tt.age+`,"gender":"Man","race":"white"}]}`, DefaultOptions())
		if err != nil {
			t.Fatalf("parseVisionFaces(%s) error = %v", tt.age, err)
		}
		if results[0].Age != tt.want {
			t.Errorf("age %s: Age = %d, want %d", tt.age, results[0].Age, tt.want)
		}
	}
}

func TestNormalizeLabel(t *testing.T) {
	tests := []struct {
		known []string
		in    string
		want  string
	}{
		{GenderLabels, "male", "Man"},
		{GenderLabels, "WOMAN", "Woman"},
		{RaceLabels, "Middle_Eastern", "middle eastern"},
		{RaceLabels, "Hispanic", "latino hispanic"},
		{RaceLabels, " Asian ", "asian"},
		{RaceLabels, "martian", "martian"},
	}

	for _, tt := range tests {
		if got := normalizeLabel(tt.known, tt.in); got != tt.want {
			t.Errorf("normalizeLabel(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
