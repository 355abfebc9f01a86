package summarizer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/foxseedlab/minutagen/internal/summarizer"
	"google.golang.org/genai"
)

type GeminiConfig struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}

type GeminiSummarizer struct {
	client  *genai.Client
	model   string
	timeout time.Duration
}

func NewGeminiSummarizer(ctx context.Context, cfg GeminiConfig) (summarizer.Summarizer, error) {
	clientCfg := &genai.ClientConfig{
		APIKey:  strings.TrimSpace(cfg.APIKey),
		Backend: genai.BackendGeminiAPI,
	}
	if baseURL := strings.TrimSpace(cfg.BaseURL); baseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}
	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &GeminiSummarizer{
		client:  client,
		model:   strings.TrimSpace(cfg.Model),
		timeout: cfg.Timeout,
	}, nil
}

func (s *GeminiSummarizer) Summarize(ctx context.Context, transcript string) (string, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	started := time.Now()
	slog.Info("sending transcript to gemini", "model", s.model, "transcript_chars", len(transcript))
	resp, err := s.client.Models.GenerateContent(ctx, s.model, genai.Text(summarizer.BuildPrompt(transcript)), nil)
	if err != nil {
		return "", fmt.Errorf("%w: %w", summarizer.ErrSummarizationFailed, err)
	}
	text, err := responseText(resp)
	if err != nil {
		return "", fmt.Errorf("%w: %w", summarizer.ErrSummarizationFailed, err)
	}
	slog.Info("gemini summary received", "model", s.model, "latency_ms", time.Since(started).Milliseconds(), "summary_chars", len(text))
	return text, nil
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0] == nil {
		return "", errors.New("no candidates")
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil {
		return "", fmt.Errorf("empty candidate content (finish reason %s)", candidate.FinishReason)
	}
	var sb strings.Builder
	for _, part := range candidate.Content.Parts {
		if part != nil && part.Text != "" {
			sb.WriteString(part.Text)
		}
	}
	return sb.String(), nil
}
