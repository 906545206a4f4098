package config

const (
	AnalyzerDNN      = "dnn"
	AnalyzerDeepFace = "deepface"
	AnalyzerOpenAI   = "openai"
	AnalyzerFake     = "fake"

	CameraDevice = "device"
	CameraRandom = "random"

	DataStoreFiles  = "files"
	DataStoreSQLite = "sqlite"
	DataStoreNone   = "none"
)

type ModelPaths struct {
	FaceModel   string `yaml:"face_model"`
	AgeModel    string `yaml:"age_model"`
	AgeProto    string `yaml:"age_proto"`
	GenderModel string `yaml:"gender_model"`
	GenderProto string `yaml:"gender_proto"`
	RaceModel   string `yaml:"race_model"`
}

type OpenAIParameters struct {
	APIKey      string `yaml:"-"`
	BaseURL     string `yaml:"base_url"`
	VisionModel string `yaml:"vision_model"`
	MaxRetries  int    `yaml:"max_retries"`
}

type DeepFaceParameters struct {
	Python string `yaml:"python"`
	Script string `yaml:"script"`
}

type IService interface {
	GetPort() int
	GetCameraType() string
	GetCameraDevice() string
	GetJPEGQuality() int
	GetAnalyzerBackend() string
	GetModelPaths() ModelPaths
	GetOpenAIParameters() OpenAIParameters
	GetDeepFaceParameters() DeepFaceParameters
	GetDataStore() string
	GetDataFolder() string
	GetAnalysisLogFile() string
	GetLogLevel() string
	GetLogFile() string
	IsProduction() bool
	GetModeMaxShutdownTime() int
}
