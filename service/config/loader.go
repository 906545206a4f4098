package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is looked up under the XDG config directories.
const DefaultConfigFile = "vs-face/config.yaml"

// ErrConfigNotFound is returned when an explicit configuration path does not exist.
var ErrConfigNotFound = errors.New("configuration file not found")

// Option overrides a value after files and environment are applied (CLI flags).
type Option func(*settings)

func WithPort(port int) Option {
	return func(s *settings) { s.Port = port }
}

func WithAnalyzer(backend string) Option {
	return func(s *settings) { s.AnalyzerBackend = backend }
}

func WithCameraDevice(device string) Option {
	return func(s *settings) { s.CameraDevice = device }
}

func WithLogLevel(level string) Option {
	return func(s *settings) { s.LogLevel = level }
}

// Load builds the configuration from defaults, then the YAML file, then the
// environment, then opts. An empty path searches the XDG config directories.
func Load(path string, opts ...Option) (IService, error) {
	s := defaults()

	file := FindConfigFile(path)
	if path != "" && file == "" {
		return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
	}

	if file != "" {
		if err := s.loadFile(file); err != nil {
			return nil, err
		}
	}

	if err := s.applyEnv(); err != nil {
		return nil, err
	}

	for _, opt := range opts {
		opt(&s)
	}

	if err := s.validate(); err != nil {
		return nil, err
	}

	return &s, nil
}

// FindConfigFile returns path if it exists, otherwise the first
// vs-face/config.yaml found in the XDG config directories, or "".
func FindConfigFile(path string) string {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			return path
		}
		return ""
	}

	found, err := xdg.SearchConfigFile(DefaultConfigFile)
	if err != nil {
		return ""
	}
	return found
}

func (s *settings) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, s); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (s *settings) applyEnv() error {
	envString("CAMERA_TYPE", &s.CameraType)
	envString("CAMERA_DEVICE", &s.CameraDevice)
	envString("ANALYZER_BACKEND", &s.AnalyzerBackend)
	envString("FACE_MODEL_PATH", &s.Models.FaceModel)
	envString("AGE_MODEL_PATH", &s.Models.AgeModel)
	envString("AGE_PROTO_PATH", &s.Models.AgeProto)
	envString("GENDER_MODEL_PATH", &s.Models.GenderModel)
	envString("GENDER_PROTO_PATH", &s.Models.GenderProto)
	envString("RACE_MODEL_PATH", &s.Models.RaceModel)
	envString("OPENAI_API_KEY", &s.OpenAI.APIKey)
	envString("OPENAI_BASE_URL", &s.OpenAI.BaseURL)
	envString("OPENAI_VISION_MODEL", &s.OpenAI.VisionModel)
	envString("DEEPFACE_PYTHON", &s.DeepFace.Python)
	envString("DEEPFACE_SCRIPT", &s.DeepFace.Script)
	envString("DATA_STORE", &s.DataStore)
	envString("DATA_FOLDER", &s.DataFolder)
	envString("ANALYSIS_LOG", &s.AnalysisLogFile)
	envString("LOG_LEVEL", &s.LogLevel)
	envString("LOG_FILE", &s.LogFile)

	if env, ok := os.LookupEnv("RUN_TIME_ENV"); ok {
		s.Production = env == "prod" || env == "production"
	}

	for key, dst := range map[string]*int{
		"PORT":               &s.Port,
		"JPEG_QUALITY":       &s.JPEGQuality,
		"SHUTDOWN_TIMEOUT":   &s.MaxShutdownTime,
		"OPENAI_MAX_RETRIES": &s.OpenAI.MaxRetries,
	} {
		if err := envInt(key, dst); err != nil {
			return err
		}
	}

	return nil
}

func (s *settings) validate() error {
	if s.Port < 1 || s.Port > 65535 {
		return ErrInvalidPort
	}

	if s.JPEGQuality < 1 || s.JPEGQuality > 100 {
		return ErrInvalidJPEGQuality
	}

	if s.OpenAI.MaxRetries < 0 {
		return ErrInvalidMaxRetries
	}

	switch s.AnalyzerBackend {
	case AnalyzerDNN, AnalyzerDeepFace, AnalyzerFake:
	case AnalyzerOpenAI:
		if s.OpenAI.APIKey == "" {
			return ErrNoAPIKey
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownBackend, s.AnalyzerBackend)
	}

	switch s.CameraType {
	case CameraDevice, CameraRandom:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownCameraType, s.CameraType)
	}

	switch s.DataStore {
	case DataStoreFiles, DataStoreSQLite, DataStoreNone:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownDataStore, s.DataStore)
	}

	return nil
}

func envString(key string, dst *string) {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		*dst = strings.TrimSpace(v)
	}
}

func envInt(key string, dst *int) error {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return nil
	}

	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}
