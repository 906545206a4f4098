package web

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/khaledhikmat/vs-face/codec"
	"github.com/khaledhikmat/vs-face/model"
	"github.com/khaledhikmat/vs-face/pipeline"
	"github.com/khaledhikmat/vs-face/service/analyzer"
	"github.com/khaledhikmat/vs-face/service/camera"
	"github.com/khaledhikmat/vs-face/service/config"
)

const partHeader = "--frame\r\nContent-Type: image/jpeg\r\n\r\n"

type brokenCamera struct{}

func (brokenCamera) Name() string { return "broken" }
func (brokenCamera) Open(_ context.Context) (camera.Capture, error) {
	return nil, errors.New("camera index out of range")
}

func newTestServer(t *testing.T, analyzerSvc analyzer.IService, cameraSvc camera.IService) *Server {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	cfg := config.NewHardCoded()
	streamer := pipeline.NewVideoStreamer(cfg, cameraSvc, analyzerSvc, nil, nil, nil)
	frameAnalyzer := pipeline.NewFrameAnalyzer(analyzerSvc, nil, nil, nil)
	return NewServer(ctx, cfg.GetPort(), analyzerSvc.Name(), streamer, frameAnalyzer)
}

func testJPEGDataURL(t *testing.T) string {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 800, 600))
	for y := 0; y < 600; y++ {
		for x := 0; x < 800; x++ {
			img.Set(x, y, color.RGBA{180, 140, 120, 255})
		}
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("jpeg encode: %v", err)
	}
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}

func postAnalyze(t *testing.T, s *Server, body string) (int, map[string]interface{}) {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/analyze_frame", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.App().Test(req, 5000)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	var out map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("response is not JSON: %v", err)
	}
	return resp.StatusCode, out
}

func TestAnalyzeFrame(t *testing.T) {
	s := newTestServer(t, analyzer.NewFake(nil, nil), camera.NewRandom(1))

	body, _ := json.Marshal(map[string]string{"image": testJPEGDataURL(t)})
	status, out := postAnalyze(t, s, string(body))

	if status != http.StatusOK {
		t.Fatalf("status = %d, body = %v", status, out)
	}
	if out["age"] != float64(30) || out["gender"] != "Man" || out["race"] != "white" {
		t.Errorf("body = %v", out)
	}
	if len(out) != 3 {
		t.Errorf("body has extra keys: %v", out)
	}
}

func TestAnalyzeFrameMultipleFacesUsesFirst(t *testing.T) {
	s := newTestServer(t, analyzer.NewFake([]model.FaceAnalysis{
		{Age: 22, DominantGender: "Woman", DominantRace: "black"},
		{Age: 64, DominantGender: "Man", DominantRace: "asian"},
	}, nil), camera.NewRandom(1))

	body, _ := json.Marshal(map[string]string{"image": testJPEGDataURL(t)})
	status, out := postAnalyze(t, s, string(body))

	if status != http.StatusOK {
		t.Fatalf("status = %d, body = %v", status, out)
	}
	if out["age"] != float64(22) || out["gender"] != "Woman" || out["race"] != "black" {
		t.Errorf("body = %v, want the first face", out)
	}
}

func TestAnalyzeFrameFailures(t *testing.T) {
	notAnImage := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString([]byte("definitely not a jpeg"))

	tests := []struct {
		name    string
		svc     analyzer.IService
		body    string
		wantMsg string
	}{
		{"missing image", analyzer.NewFake(nil, nil), `{}`, "missing image field"},
		{"null image", analyzer.NewFake(nil, nil), `{"image":null}`, "missing image field"},
		{"invalid base64", analyzer.NewFake(nil, nil), `{"image":"data:image/jpeg;base64,@@@"}`, ""},
		{"no separator", analyzer.NewFake(nil, nil), `{"image":"abc"}`, ""},
		{"undecodable", analyzer.NewFake(nil, nil), `{"image":"` + notAnImage + `"}`, ""},
		{"malformed json", analyzer.NewFake(nil, nil), `{"image":`, ""},
		{"analyzer error", analyzer.NewFake(nil, analyzer.ErrNoResult), "", "analyzer returned no result"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, tt.svc, camera.NewRandom(1))

			body := tt.body
			if body == "" {
				b, _ := json.Marshal(map[string]string{"image": testJPEGDataURL(t)})
				body = string(b)
			}

			status, out := postAnalyze(t, s, body)
			if status != http.StatusInternalServerError {
				t.Errorf("status = %d, want 500", status)
			}

			msg, ok := out["error"].(string)
			if !ok || msg == "" {
				t.Fatalf("body = %v, want an error message", out)
			}
			if tt.wantMsg != "" && msg != tt.wantMsg {
				t.Errorf("error = %q, want %q", msg, tt.wantMsg)
			}
		})
	}
}

func TestVideoFeed(t *testing.T) {
	s := newTestServer(t, analyzer.NewFake(nil, nil), camera.NewRandom(5))

	resp, err := s.App().Test(httptest.NewRequest(http.MethodGet, "/video_feed", nil), 5000)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Content-Type"); got != "multipart/x-mixed-replace; boundary=frame" {
		t.Errorf("Content-Type = %q", got)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if !bytes.HasPrefix(body, []byte(partHeader)) {
		t.Errorf("body starts with %q", body[:min(len(body), 40)])
	}
	if got := bytes.Count(body, []byte(partHeader)); got != 5 {
		t.Errorf("parts = %d, want 5", got)
	}
}

func TestVideoFeedAnalyzerErrorStillStreams(t *testing.T) {
	s := newTestServer(t, analyzer.NewFake(nil, errors.New("model exploded")), camera.NewRandom(3))

	resp, err := s.App().Test(httptest.NewRequest(http.MethodGet, "/video_feed", nil), 5000)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if got := bytes.Count(body, []byte(partHeader)); got != 3 {
		t.Errorf("parts = %d, want 3", got)
	}
}

func TestVideoFeedCameraUnavailable(t *testing.T) {
	s := newTestServer(t, analyzer.NewFake(nil, nil), brokenCamera{})

	resp, err := s.App().Test(httptest.NewRequest(http.MethodGet, "/video_feed", nil), 5000)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", resp.StatusCode)
	}

	var out model.ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("response is not JSON: %v", err)
	}
	if out.Error != "camera index out of range" {
		t.Errorf("error = %q", out.Error)
	}
}

func TestHealthAndCORS(t *testing.T) {
	s := newTestServer(t, analyzer.NewFake(nil, nil), camera.NewRandom(1))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "http://example.com")

	resp, err := s.App().Test(req, 5000)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q, want *", got)
	}

	var out map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("response is not JSON: %v", err)
	}
	if out["status"] != "ok" || out["analyzer"] != config.AnalyzerFake {
		t.Errorf("body = %v", out)
	}
}

func TestUnknownRouteIsJSON(t *testing.T) {
	s := newTestServer(t, analyzer.NewFake(nil, nil), camera.NewRandom(1))

	resp, err := s.App().Test(httptest.NewRequest(http.MethodGet, "/nope", nil), 5000)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
	var out model.ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil || out.Error == "" {
		t.Errorf("body = %+v, err = %v", out, err)
	}
}

func TestContentTypeMatchesCodec(t *testing.T) {
	if codec.ContentType != "multipart/x-mixed-replace; boundary=frame" {
		t.Errorf("ContentType = %q", codec.ContentType)
	}
}
