package config

import (
	"os"
	"strconv"
	"strings"
)

// applyEnv overrides cfg with environment variables. Current values act as
// defaults, so unset variables leave file and built-in values alone.
func applyEnv(cfg *Config) {
	cfg.HTTPAddr = getEnv("HTTP_ADDR", cfg.HTTPAddr)
	cfg.OCRAddr = getEnv("OCR_ADDR", cfg.OCRAddr)
	cfg.OCRCommand = getEnv("OCR_COMMAND", cfg.OCRCommand)
	cfg.SourceLanguage = getEnv("SOURCE_LANGUAGE", cfg.SourceLanguage)
	cfg.TargetLanguage = getEnv("TARGET_LANGUAGE", cfg.TargetLanguage)
	cfg.Provider = strings.ToLower(getEnv("TRANSLATION_SERVICE", cfg.Provider))
	cfg.FallbackProviders = getEnvList("FALLBACK_SERVICES", cfg.FallbackProviders)

	for name, p := range cfg.Providers {
		prefix := strings.ToUpper(name)
		p.APIKey = getEnv(prefix+"_API_KEY", p.APIKey)
		p.APIKeyPool = getEnvList(prefix+"_API_KEY_POOL", p.APIKeyPool)
		p.Model = getEnv(prefix+"_MODEL", p.Model)
		p.BaseURL = getEnv(prefix+"_BASE_URL", p.BaseURL)
		p.TimeoutSeconds = getEnvFloat(prefix+"_TIMEOUT", p.TimeoutSeconds)
		cfg.Providers[name] = p
	}

	g := &cfg.Generation
	g.Temperature = getEnvFloat("TEMPERATURE", g.Temperature)
	g.MaxTokens = getEnvInt("MAX_TOKENS", g.MaxTokens)
	g.TopP = getEnvFloat("TOP_P", g.TopP)
	g.FrequencyPenalty = getEnvFloat("FREQUENCY_PENALTY", g.FrequencyPenalty)
	g.PresencePenalty = getEnvFloat("PRESENCE_PENALTY", g.PresencePenalty)

	cfg.Cache.MaxImages = getEnvInt("MAX_CACHE_SIZE", cfg.Cache.MaxImages)
	cfg.Cache.MaxTexts = getEnvInt("TEXT_CACHE_SIZE", cfg.Cache.MaxTexts)
	cfg.Cache.TextSimilarity = getEnvFloat("TEXT_CACHE_SIMILARITY", cfg.Cache.TextSimilarity)

	cfg.Dispatch.Workers = getEnvInt("TRANSLATION_WORKERS", cfg.Dispatch.Workers)
	cfg.Dispatch.QueueSize = getEnvInt("TRANSLATION_QUEUE", cfg.Dispatch.QueueSize)
	cfg.Dispatch.MaxBacklog = getEnvInt("AUTO_MAX_BACKLOG", cfg.Dispatch.MaxBacklog)
	cfg.Dispatch.CooldownSeconds = getEnvFloat("COOLDOWN_SECONDS", cfg.Dispatch.CooldownSeconds)

	o := &cfg.OCR
	o.MinConfidence = getEnvFloat("SUBTITLE_OCR_MIN_CONFIDENCE", o.MinConfidence)
	o.MaxLines = getEnvInt("SUBTITLE_OCR_MAX_LINES", o.MaxLines)
	o.IntervalSeconds = getEnvFloat("OCR_MONITOR_INTERVAL", o.IntervalSeconds)
	o.SimilarityThreshold = getEnvFloat("OCR_SIMILARITY_THRESHOLD", o.SimilarityThreshold)
	o.DuplicateRatio = getEnvFloat("OCR_DUPLICATE_RATIO", o.DuplicateRatio)
	o.DebounceSeconds = getEnvFloat("OCR_DEBOUNCE_SECONDS", o.DebounceSeconds)
	o.StabilityFrames = getEnvInt("OCR_STABILITY_FRAMES", o.StabilityFrames)
	o.QuickAppearance = getEnvBool("OCR_QUICK_APPEARANCE", o.QuickAppearance)

	cfg.Image.MaxWidth = getEnvInt("MAX_IMAGE_WIDTH", cfg.Image.MaxWidth)
	cfg.Image.JPEGQuality = getEnvInt("JPEG_QUALITY", cfg.Image.JPEGQuality)
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		return v == "true" || v == "1"
	}
	return def
}

func getEnvList(key string, def []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if t := strings.TrimSpace(p); t != "" {
				result = append(result, t)
			}
		}
		return result
	}
	return def
}
