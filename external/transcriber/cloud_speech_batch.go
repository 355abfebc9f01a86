package transcriber

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	speech "cloud.google.com/go/speech/apiv1"
	speechpb "cloud.google.com/go/speech/apiv1/speechpb"
	"github.com/foxseedlab/minutagen/external/gcp"
	"github.com/foxseedlab/minutagen/internal/transcriber"
)

const batchSampleRateHertz = 16000

type CloudSpeechBatchTranscriber struct {
	cfg CloudSpeechConfig
}

func NewCloudSpeechBatchTranscriber(cfg CloudSpeechConfig) transcriber.BatchTranscriber {
	cfg.Language = strings.TrimSpace(cfg.Language)
	cfg.Model = strings.TrimSpace(cfg.Model)
	return &CloudSpeechBatchTranscriber{cfg: cfg}
}

func batchRecognitionConfig(cfg CloudSpeechConfig) *speechpb.RecognitionConfig {
	return &speechpb.RecognitionConfig{
		Encoding:                   speechpb.RecognitionConfig_LINEAR16,
		SampleRateHertz:            batchSampleRateHertz,
		LanguageCode:               cfg.Language,
		Model:                      cfg.Model,
		EnableAutomaticPunctuation: true,
	}
}

func (t *CloudSpeechBatchTranscriber) newClient(ctx context.Context) (*speech.Client, error) {
	opts, err := gcp.ClientOptions(t.cfg.CredentialsJSON)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", transcriber.ErrUpstreamUnavailable, err)
	}
	client, err := speech.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: create client: %w", transcriber.ErrUpstreamUnavailable, err)
	}
	return client, nil
}

// RecognizeContent performs one synchronous recognition over inline audio.
func (t *CloudSpeechBatchTranscriber) RecognizeContent(ctx context.Context, pcm []byte) (string, error) {
	client, err := t.newClient(ctx)
	if err != nil {
		return "", err
	}
	defer func() {
		_ = client.Close()
	}()

	slog.Info("cloud speech recognize started", "audio_bytes", len(pcm))
	resp, err := client.Recognize(ctx, &speechpb.RecognizeRequest{
		Config: batchRecognitionConfig(t.cfg),
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: pcm},
		},
	})
	if err != nil {
		return "", fmt.Errorf("%w: recognize: %w", transcriber.ErrTranscriptionFailed, err)
	}
	return joinRecognitionResults(resp.GetResults()), nil
}

// RecognizeURI starts a long-running recognition over a Cloud Storage object
// and waits for the operation to finish.
func (t *CloudSpeechBatchTranscriber) RecognizeURI(ctx context.Context, uri string) (string, error) {
	client, err := t.newClient(ctx)
	if err != nil {
		return "", err
	}
	defer func() {
		_ = client.Close()
	}()

	op, err := client.LongRunningRecognize(ctx, &speechpb.LongRunningRecognizeRequest{
		Config: batchRecognitionConfig(t.cfg),
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Uri{Uri: uri},
		},
	})
	if err != nil {
		return "", fmt.Errorf("%w: start long running recognize: %w", transcriber.ErrTranscriptionFailed, err)
	}
	slog.Info("cloud speech long running recognize started; waiting for result", "uri", uri, "operation", op.Name())
	resp, err := op.Wait(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: wait long running recognize: %w", transcriber.ErrTranscriptionFailed, err)
	}
	return joinRecognitionResults(resp.GetResults()), nil
}

func joinRecognitionResults(results []*speechpb.SpeechRecognitionResult) string {
	lines := make([]string, 0, len(results))
	for _, r := range results {
		alternatives := r.GetAlternatives()
		if len(alternatives) == 0 {
			continue
		}
		lines = append(lines, alternatives[0].GetTranscript())
	}
	return strings.Join(lines, "\n")
}
