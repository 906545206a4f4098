package config

// settings backs every IService implementation. Values are set once at startup
// and only read afterwards.
type settings struct {
	Port            int                `yaml:"port"`
	CameraType      string             `yaml:"camera_type"`
	CameraDevice    string             `yaml:"camera_device"`
	JPEGQuality     int                `yaml:"jpeg_quality"`
	AnalyzerBackend string             `yaml:"analyzer"`
	Models          ModelPaths         `yaml:"models"`
	OpenAI          OpenAIParameters   `yaml:"openai"`
	DeepFace        DeepFaceParameters `yaml:"deepface"`
	DataStore       string             `yaml:"data_store"`
	DataFolder      string             `yaml:"data_folder"`
	AnalysisLogFile string             `yaml:"analysis_log"`
	LogLevel        string             `yaml:"log_level"`
	LogFile         string             `yaml:"log_file"`
	Production      bool               `yaml:"production"`
	MaxShutdownTime int                `yaml:"shutdown_timeout"`
}

// NewHardCoded returns the built-in defaults without reading files or the environment.
func NewHardCoded() IService {
	s := defaults()
	return &s
}

func defaults() settings {
	return settings{
		Port:            5000,
		CameraType:      CameraDevice,
		CameraDevice:    "0",
		JPEGQuality:     95,
		AnalyzerBackend: AnalyzerDNN,
		Models: ModelPaths{
			FaceModel:   "./models/face_detection_yunet_2023mar.onnx",
			AgeModel:    "./models/age_net.caffemodel",
			AgeProto:    "./models/age_deploy.prototxt",
			GenderModel: "./models/gender_net.caffemodel",
			GenderProto: "./models/gender_deploy.prototxt",
			RaceModel:   "./models/race_deepface.onnx",
		},
		OpenAI: OpenAIParameters{
			BaseURL:     "https://api.openai.com/v1",
			VisionModel: "gpt-4o-mini",
			MaxRetries:  2,
		},
		DeepFace: DeepFaceParameters{
			Python: "python3",
			Script: "./python/deepface_worker.py",
		},
		DataStore:       DataStoreFiles,
		DataFolder:      "./data",
		LogLevel:        "info",
		MaxShutdownTime: 5,
	}
}

func (s *settings) GetPort() int {
	return s.Port
}

func (s *settings) GetCameraType() string {
	return s.CameraType
}

func (s *settings) GetCameraDevice() string {
	return s.CameraDevice
}

func (s *settings) GetJPEGQuality() int {
	return s.JPEGQuality
}

func (s *settings) GetAnalyzerBackend() string {
	return s.AnalyzerBackend
}

func (s *settings) GetModelPaths() ModelPaths {
	return s.Models
}

func (s *settings) GetOpenAIParameters() OpenAIParameters {
	return s.OpenAI
}

func (s *settings) GetDeepFaceParameters() DeepFaceParameters {
	return s.DeepFace
}

func (s *settings) GetDataStore() string {
	return s.DataStore
}

func (s *settings) GetDataFolder() string {
	return s.DataFolder
}

func (s *settings) GetAnalysisLogFile() string {
	return s.AnalysisLogFile
}

func (s *settings) GetLogLevel() string {
	return s.LogLevel
}

func (s *settings) GetLogFile() string {
	return s.LogFile
}

func (s *settings) IsProduction() bool {
	return s.Production
}

func (s *settings) GetModeMaxShutdownTime() int {
	return s.MaxShutdownTime
}
