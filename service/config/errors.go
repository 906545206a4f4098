package config

import "errors"

// Validation errors returned by Load.
var (
	ErrInvalidPort        = errors.New("invalid port: must be between 1 and 65535")
	ErrInvalidJPEGQuality = errors.New("invalid jpeg quality: must be between 1 and 100")
	ErrUnknownBackend     = errors.New("unknown analyzer backend")
	ErrUnknownCameraType  = errors.New("unknown camera type")
	ErrUnknownDataStore   = errors.New("unknown data store")
	ErrNoAPIKey           = errors.New("openai analyzer requires OPENAI_API_KEY")
	ErrInvalidMaxRetries  = errors.New("invalid openai max retries: must not be negative")
)
