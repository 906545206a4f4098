package analyzer

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"os/exec"
	"sync"

	"github.com/khaledhikmat/vs-face/codec"
	"github.com/khaledhikmat/vs-face/model"
	"github.com/khaledhikmat/vs-face/service/config"
	"github.com/khaledhikmat/vs-face/service/lgr"
	"gocv.io/x/gocv"
	"golang.org/x/xerrors"
)

type sidecarRequest struct {
	Image            string   `json:"image"`
	Actions          []Action `json:"actions"`
	EnforceDetection bool     `json:"enforce_detection"`
}

type sidecarResponse struct {
	Results []sidecarRecord `json:"results"`
	Error   string          `json:"error"`
}

type sidecarRecord struct {
	Age            float64            `json:"age"`
	Gender         map[string]float64 `json:"gender"`
	DominantGender string             `json:"dominant_gender"`
	Race           map[string]float64 `json:"race"`
	DominantRace   string             `json:"dominant_race"`
	Region         model.Region       `json:"region"`
	FaceConfidence float64            `json:"face_confidence"`
}

// sidecar speaks the length-prefixed protocol: [uint32 big-endian length][JSON].
// Requests go to stdin, responses come back on a dedicated pipe so library
// chatter on stdout cannot corrupt the stream.
type sidecar struct {
	Stdin    io.WriteCloser
	DataPipe io.ReadCloser
}

func (s *sidecar) exchange(req sidecarRequest) (sidecarResponse, error) {
	var resp sidecarResponse

	body, err := json.Marshal(req)
	if err != nil {
		return resp, fmt.Errorf("marshal request: %w", err)
	}

	if err := binary.Write(s.Stdin, binary.BigEndian, uint32(len(body))); err != nil {
		return resp, err
	}
	if _, err := s.Stdin.Write(body); err != nil {
		return resp, err
	}

	header := make([]byte, 4)
	if _, err := io.ReadFull(s.DataPipe, header); err != nil {
		return resp, err
	}

	respBody := make([]byte, binary.BigEndian.Uint32(header))
	if _, err := io.ReadFull(s.DataPipe, respBody); err != nil {
		return resp, err
	}

	if err := json.Unmarshal(respBody, &resp); err != nil {
		return resp, fmt.Errorf("decode response: %w", err)
	}
	return resp, nil
}

func (r sidecarRecord) toModel() model.FaceAnalysis {
	out := model.FaceAnalysis{
		Age:            int(math.Round(r.Age)),
		Gender:         r.Gender,
		DominantGender: r.DominantGender,
		Race:           r.Race,
		DominantRace:   r.DominantRace,
		Region:         r.Region,
		FaceConfidence: r.FaceConfidence,
	}

	if out.DominantGender == "" && len(out.Gender) > 0 {
		out.DominantGender = dominant(out.Gender)
	}
	if out.DominantRace == "" && len(out.Race) > 0 {
		out.DominantRace = dominant(out.Race)
	}
	return out
}

const stderrTailSize = 8 * 1024

// stderrTail keeps the last stderrTailSize bytes the worker wrote. exec copies
// into it from its own goroutine while Analyze reads it.
type stderrTail struct {
	mu  sync.Mutex
	buf []byte
}

func (t *stderrTail) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.buf = append(t.buf, p...)
	if over := len(t.buf) - stderrTailSize; over > 0 {
		t.buf = append(t.buf[:0], t.buf[over:]...)
	}
	return len(p), nil
}

func (t *stderrTail) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.buf)
}

// deepFaceService delegates analysis to a long-lived Python DeepFace worker.
type deepFaceService struct {
	mu      sync.Mutex
	cmd     *exec.Cmd
	stderr  *stderrTail
	worker  *sidecar
	quality int
}

func NewDeepFace(cfgSvc config.IService) (IService, error) {
	params := cfgSvc.GetDeepFaceParameters()
	if _, err := os.Stat(params.Script); os.IsNotExist(err) {
		return nil, fmt.Errorf("deepface worker script not found: %s", params.Script)
	}

	cmd := exec.Command(params.Python, "-u", params.Script)
	stderr := &stderrTail{}
	cmd.Stderr = stderr

	// The worker writes responses to fd 3.
	r, w, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create pipe: %w", err)
	}
	cmd.ExtraFiles = []*os.File{w}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		w.Close()
		r.Close()
		return nil, fmt.Errorf("failed to create stdin pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		w.Close()
		r.Close()
		return nil, fmt.Errorf("deepface worker failed to start: %w", err)
	}

	// Only the child keeps the write end.
	w.Close()

	lgr.Logger.Info("deepface worker started",
		slog.String("python", params.Python),
		slog.String("script", params.Script),
		slog.Int("pid", cmd.Process.Pid),
	)

	return &deepFaceService{
		cmd:     cmd,
		stderr:  stderr,
		worker:  &sidecar{Stdin: stdin, DataPipe: r},
		quality: cfgSvc.GetJPEGQuality(),
	}, nil
}

func (svc *deepFaceService) Name() string {
	return config.AnalyzerDeepFace
}

func (svc *deepFaceService) Analyze(ctx context.Context, img gocv.Mat, opts Options) ([]model.FaceAnalysis, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if img.Empty() {
		return nil, ErrEmptyImage
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	jpeg, err := codec.EncodeJPEG(img, svc.quality)
	if err != nil {
		return nil, err
	}

	svc.mu.Lock()
	defer svc.mu.Unlock()

	resp, err := svc.worker.exchange(sidecarRequest{
		Image:            base64.StdEncoding.EncodeToString(jpeg),
		Actions:          opts.Actions,
		EnforceDetection: opts.EnforceDetection,
	})
	if err != nil {
		if tail := svc.stderr.String(); tail != "" {
			return nil, fmt.Errorf("deepface worker: %w (stderr: %s)", err, tail)
		}
		return nil, fmt.Errorf("deepface worker: %w", err)
	}

	return resp.toModel(opts)
}

func (resp sidecarResponse) toModel(opts Options) ([]model.FaceAnalysis, error) {
	if resp.Error != "" {
		return nil, xerrors.New(resp.Error)
	}

	if len(resp.Results) == 0 {
		if opts.EnforceDetection {
			return nil, ErrNoFace
		}
		return nil, ErrNoResult
	}

	out := make([]model.FaceAnalysis, 0, len(resp.Results))
	for _, r := range resp.Results {
		out = append(out, r.toModel())
	}
	return out, nil
}

func (svc *deepFaceService) Close() error {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	svc.worker.Stdin.Close()
	svc.worker.DataPipe.Close()
	return svc.cmd.Wait()
}
