package config

import (
	"fmt"
	"time"
)

type Config struct {
	Env                        string
	HTTPAddr                   string
	AllowedOrigin              string
	GoogleCloudCredentialsJSON string
	SpeechLanguage             string
	SpeechModel                string
	SpeechStreamSampleRate     int
	GeminiAPIKey               string
	GeminiModel                string
	GCSBucket                  string
	FFmpegPath                 string
	MaxSessionDurationMin      int
	MaxAudioChunkBytes         int64
	MaxUploadBytes             int64
	StopDrainTimeout           time.Duration
	StreamCloseTimeout         time.Duration
	SummarizeTimeout           time.Duration
	MinutesWebhookURL          string
}

func (c *Config) Validate() error {
	for _, req := range c.requiredFieldChecks() {
		if req.value == "" {
			return fmt.Errorf("%s is required", req.name)
		}
	}
	if c.SpeechStreamSampleRate <= 0 {
		return fmt.Errorf("SPEECH_STREAM_SAMPLE_RATE must be positive, got %d", c.SpeechStreamSampleRate)
	}
	if c.MaxSessionDurationMin <= 0 {
		return fmt.Errorf("MAX_SESSION_DURATION_MIN must be positive, got %d", c.MaxSessionDurationMin)
	}
	if c.MaxAudioChunkBytes <= 0 {
		return fmt.Errorf("MAX_AUDIO_CHUNK_BYTES must be positive, got %d", c.MaxAudioChunkBytes)
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be positive, got %d", c.MaxUploadBytes)
	}
	for _, d := range c.durationChecks() {
		if d.value <= 0 {
			return fmt.Errorf("%s must be positive, got %s", d.name, d.value)
		}
	}
	return nil
}

type requiredEnvField struct {
	name  string
	value string
}

func (c *Config) requiredFieldChecks() []requiredEnvField {
	return []requiredEnvField{
		{name: "HTTP_ADDR", value: c.HTTPAddr},
		{name: "SPEECH_LANGUAGE", value: c.SpeechLanguage},
		{name: "SPEECH_MODEL", value: c.SpeechModel},
		{name: "GEMINI_API_KEY", value: c.GeminiAPIKey},
		{name: "GEMINI_MODEL", value: c.GeminiModel},
		{name: "GCS_BUCKET", value: c.GCSBucket},
		{name: "FFMPEG_PATH", value: c.FFmpegPath},
	}
}

type durationEnvField struct {
	name  string
	value time.Duration
}

func (c *Config) durationChecks() []durationEnvField {
	return []durationEnvField{
		{name: "STOP_DRAIN_TIMEOUT", value: c.StopDrainTimeout},
		{name: "STREAM_CLOSE_TIMEOUT", value: c.StreamCloseTimeout},
		{name: "SUMMARIZE_TIMEOUT", value: c.SummarizeTimeout},
	}
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func (c *Config) MaxSessionDuration() time.Duration {
	return time.Duration(c.MaxSessionDurationMin) * time.Minute
}
