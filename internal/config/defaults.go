package config

// Service defaults
const (
	DefaultHTTPAddr       = ":8000"
	DefaultOCRAddr        = "localhost:50061"
	DefaultOCRCommand     = "tesseract"
	DefaultProvider       = "gemini"
	DefaultSourceLanguage = "ja"
	DefaultTargetLanguage = "en"
	DefaultTimeoutSeconds = 30
)

// Generation defaults keep subtitle output short and deterministic.
const (
	DefaultTemperature = 0.1
	DefaultMaxTokens   = 1024
	DefaultTopP        = 0.1
)

// Cache and failover defaults
const (
	DefaultMaxImages       = 100
	DefaultMaxTexts        = 50
	DefaultTextSimilarity  = 0.92
	DefaultCooldownSeconds = 60
	DefaultWorkers         = 3
	MinWorkers             = 2
	MaxWorkers             = 5
	DefaultQueueSize       = 16
)

// OCR and change-detection defaults
const (
	DefaultMinConfidence       = 0.55
	DefaultMaxLines            = 2
	DefaultIntervalSeconds     = 0.15
	DefaultSimilarityThreshold = 0.85
	DefaultDuplicateRatio      = 0.95
	DefaultDebounceSeconds     = 0.2
	DefaultStabilityFrames     = 3
	MinStabilityFrames         = 2
	MaxStabilityFrames         = 4
)

// Upload encoding defaults
const (
	DefaultMaxImageWidth = 1280
	DefaultJPEGQuality   = 80
)

// ProviderDefaults lists every supported provider with its default model and
// endpoint.
var ProviderDefaults = map[string]ProviderConfig{
	"gemini": {
		Model:   "gemini-flash-lite-latest",
		BaseURL: "https://generativelanguage.googleapis.com/v1beta",
	},
	"groq": {
		Model:   "meta-llama/llama-4-scout-17b-16e-instruct",
		BaseURL: "https://api.groq.com/openai/v1",
	},
	"openrouter": {
		Model:   "google/gemini-2.0-flash-exp:free",
		BaseURL: "https://openrouter.ai/api/v1",
	},
	"sambanova": {
		Model:   "Llama-4-Maverick-17B-128E-Instruct",
		BaseURL: "https://api.sambanova.ai/v1",
	},
	"cerebras": {
		Model:   "llama-3.3-70b",
		BaseURL: "https://api.cerebras.ai/v1",
	},
}
