package analyzer

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
)

// MockCloser lets in-memory buffers stand in for the worker's pipes.
type MockCloser struct {
	*bytes.Buffer
}

func (m *MockCloser) Close() error { return nil }

func writeFrame(t *testing.T, w io.Writer, v interface{}) {
	t.Helper()

	body, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	binary.Write(w, binary.BigEndian, uint32(len(body)))
	w.Write(body)
}

func TestSidecarExchange(t *testing.T) {
	stdinMock := &MockCloser{Buffer: new(bytes.Buffer)}
	dataPipeMock := &MockCloser{Buffer: new(bytes.Buffer)}

	writeFrame(t, dataPipeMock, map[string]interface{}{
		"results": []map[string]interface{}{{
			"age":             31.6,
			"gender":          map[string]float64{"Woman": 97.1, "Man": 2.9},
			"dominant_gender": "Woman",
			"race":            map[string]float64{"asian": 70, "white": 30},
			"region":          map[string]int{"x": 10, "y": 20, "w": 100, "h": 120},
			"face_confidence": 0.93,
		}},
	})

	s := &sidecar{Stdin: stdinMock, DataPipe: dataPipeMock}
	resp, err := s.exchange(sidecarRequest{
		Image:   "aGVsbG8=",
		Actions: []Action{ActionAge, ActionGender, ActionRace},
	})
	if err != nil {
		t.Fatalf("exchange() error = %v", err)
	}

	// The request frame must be length-prefixed JSON.
	sent := stdinMock.Bytes()
	if len(sent) < 4 {
		t.Fatalf("request too short: %d bytes", len(sent))
	}
	n := binary.BigEndian.Uint32(sent[:4])
	if int(n) != len(sent)-4 {
		t.Errorf("length prefix = %d, body = %d", n, len(sent)-4)
	}
	var req sidecarRequest
	if err := json.Unmarshal(sent[4:], &req); err != nil {
		t.Fatalf("request is not JSON: %v", err)
	}
	if req.Image != "aGVsbG8=" || len(req.Actions) != 3 || req.EnforceDetection {
		t.Errorf("request = %+v", req)
	}

	results, err := resp.toModel(DefaultOptions())
	if err != nil {
		t.Fatalf("toModel() error = %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("results = %d, want 1", len(results))
	}

	got := results[0]
	if got.Age != 32 {
		t.Errorf("Age = %d, want 32", got.Age)
	}
	if got.DominantGender != "Woman" {
		t.Errorf("DominantGender = %q, want Woman", got.DominantGender)
	}
	// Missing dominant_race is derived from the race scores.
	if got.DominantRace != "asian" {
		t.Errorf("DominantRace = %q, want asian", got.DominantRace)
	}
	if got.Region.W != 100 || got.FaceConfidence != 0.93 {
		t.Errorf("Region/FaceConfidence = %+v / %f", got.Region, got.FaceConfidence)
	}
}

func TestSidecarWorkerError(t *testing.T) {
	stdinMock := &MockCloser{Buffer: new(bytes.Buffer)}
	dataPipeMock := &MockCloser{Buffer: new(bytes.Buffer)}

	writeFrame(t, dataPipeMock, map[string]interface{}{
		"error": "Face could not be detected in numpy array.",
	})

	s := &sidecar{Stdin: stdinMock, DataPipe: dataPipeMock}
	resp, err := s.exchange(sidecarRequest{Image: "x", Actions: []Action{ActionAge}})
	if err != nil {
		t.Fatalf("exchange() error = %v", err)
	}

	_, err = resp.toModel(DefaultOptions())
	if err == nil || err.Error() != "Face could not be detected in numpy array." {
		t.Errorf("toModel() error = %v", err)
	}
}

func TestSidecarEmptyResults(t *testing.T) {
	resp := sidecarResponse{}

	if _, err := resp.toModel(Options{Actions: []Action{ActionAge}, EnforceDetection: true}); !errors.Is(err, ErrNoFace) {
		t.Errorf("enforcing: error = %v, want ErrNoFace", err)
	}
	if _, err := resp.toModel(DefaultOptions()); !errors.Is(err, ErrNoResult) {
		t.Errorf("not enforcing: error = %v, want ErrNoResult", err)
	}
}

func TestSidecarTruncatedResponse(t *testing.T) {
	stdinMock := &MockCloser{Buffer: new(bytes.Buffer)}
	dataPipeMock := &MockCloser{Buffer: new(bytes.Buffer)}

	binary.Write(dataPipeMock, binary.BigEndian, uint32(100))
	dataPipeMock.WriteString(`{"results":`)

	s := &sidecar{Stdin: stdinMock, DataPipe: dataPipeMock}
	if _, err := s.exchange(sidecarRequest{Image: "x"}); !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("exchange() error = %v, want io.ErrUnexpectedEOF", err)
	}
}

func TestStderrTailKeepsLastBytes(t *testing.T) {
	tail := &stderrTail{}

	tail.Write(bytes.Repeat([]byte("a"), stderrTailSize))
	tail.Write([]byte("last line\n"))

	got := tail.String()
	if len(got) != stderrTailSize {
		t.Errorf("len = %d, want %d", len(got), stderrTailSize)
	}
	if !strings.HasSuffix(got, "last line\n") {
		t.Errorf("tail does not end with the latest write: %q", got[len(got)-20:])
	}
}

func TestStderrTailConcurrentUse(t *testing.T) {
	tail := &stderrTail{}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			tail.Write([]byte("tensorflow warning\n"))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			if len(tail.String()) > stderrTailSize {
				t.Error("tail exceeded its size limit")
				return
			}
		}
	}()
	wg.Wait()
}
