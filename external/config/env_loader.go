package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	internalconfig "github.com/foxseedlab/minutagen/internal/config"
)

type envConfig struct {
	Env                        string        `env:"ENV" envDefault:"production"`
	HTTPAddr                   string        `env:"HTTP_ADDR" envDefault:":3001"`
	AllowedOrigin              string        `env:"ALLOWED_ORIGIN" envDefault:"http://localhost:3000"`
	GoogleCloudCredentialsJSON string        `env:"GOOGLE_CLOUD_CREDENTIALS_JSON"`
	SpeechLanguage             string        `env:"SPEECH_LANGUAGE" envDefault:"es-PE"`
	SpeechModel                string        `env:"SPEECH_MODEL" envDefault:"telephony"`
	SpeechStreamSampleRate     int           `env:"SPEECH_STREAM_SAMPLE_RATE" envDefault:"48000"`
	GeminiAPIKey               string        `env:"GEMINI_API_KEY,required"`
	GeminiModel                string        `env:"GEMINI_MODEL" envDefault:"gemini-2.5-flash"`
	GCSBucket                  string        `env:"GCS_BUCKET,required"`
	FFmpegPath                 string        `env:"FFMPEG_PATH" envDefault:"ffmpeg"`
	MaxSessionDurationMin      int           `env:"MAX_SESSION_DURATION_MIN" envDefault:"120"`
	MaxAudioChunkBytes         int64         `env:"MAX_AUDIO_CHUNK_BYTES" envDefault:"1048576"`
	MaxUploadBytes             int64         `env:"MAX_UPLOAD_BYTES" envDefault:"524288000"`
	StopDrainTimeout           time.Duration `env:"STOP_DRAIN_TIMEOUT" envDefault:"5s"`
	StreamCloseTimeout         time.Duration `env:"STREAM_CLOSE_TIMEOUT" envDefault:"3s"`
	SummarizeTimeout           time.Duration `env:"SUMMARIZE_TIMEOUT" envDefault:"2m"`
	MinutesWebhookURL          string        `env:"MINUTES_WEBHOOK_URL"`
}

func Load() (*internalconfig.Config, error) {
	var raw envConfig
	if err := env.Parse(&raw); err != nil {
		return nil, fmt.Errorf("environment variables are invalid or missing: %w", err)
	}

	cfg := &internalconfig.Config{
		Env:                        raw.Env,
		HTTPAddr:                   raw.HTTPAddr,
		AllowedOrigin:              raw.AllowedOrigin,
		GoogleCloudCredentialsJSON: raw.GoogleCloudCredentialsJSON,
		SpeechLanguage:             raw.SpeechLanguage,
		SpeechModel:                raw.SpeechModel,
		SpeechStreamSampleRate:     raw.SpeechStreamSampleRate,
		GeminiAPIKey:               raw.GeminiAPIKey,
		GeminiModel:                raw.GeminiModel,
		GCSBucket:                  raw.GCSBucket,
		FFmpegPath:                 raw.FFmpegPath,
		MaxSessionDurationMin:      raw.MaxSessionDurationMin,
		MaxAudioChunkBytes:         raw.MaxAudioChunkBytes,
		MaxUploadBytes:             raw.MaxUploadBytes,
		StopDrainTimeout:           raw.StopDrainTimeout,
		StreamCloseTimeout:         raw.StreamCloseTimeout,
		SummarizeTimeout:           raw.SummarizeTimeout,
		MinutesWebhookURL:          raw.MinutesWebhookURL,
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
