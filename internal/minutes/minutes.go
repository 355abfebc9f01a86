package minutes

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/foxseedlab/minutagen/internal/media"
	"github.com/foxseedlab/minutagen/internal/metrics"
	"github.com/foxseedlab/minutagen/internal/storage"
	"github.com/foxseedlab/minutagen/internal/summarizer"
	"github.com/foxseedlab/minutagen/internal/transcriber"
	"github.com/foxseedlab/minutagen/internal/webhook"
	"github.com/google/uuid"
)

var (
	ErrInvalidInput    = errors.New("invalid input")
	ErrEmptyTranscript = errors.New("no text could be extracted from the audio")
)

const (
	statusOK           = "ok"
	statusInvalidInput = "invalid_input"
	statusEmpty        = "empty"
	statusError        = "error"

	uploadObjectPrefix = "audio-uploads/"
	wavContentType     = "audio/wav"
	cleanupTimeout     = 30 * time.Second
)

// Outcome has the same shape as the live path's final minutes.
type Outcome struct {
	Minutes       string `json:"minutes"`
	RawTranscript string `json:"rawTranscript"`
}

// Service produces minutes from a whole recording in one request.
type Service struct {
	batch      transcriber.BatchTranscriber
	summarizer summarizer.Summarizer
	transcoder media.Transcoder
	downloader media.Downloader
	store      storage.ObjectStore
	webhook    webhook.Sender
	metrics    *metrics.Metrics

	tempDir string
}

func NewService(batch transcriber.BatchTranscriber, sum summarizer.Summarizer, tc media.Transcoder, dl media.Downloader, store storage.ObjectStore, wh webhook.Sender, m *metrics.Metrics) *Service {
	return &Service{
		batch:      batch,
		summarizer: sum,
		transcoder: tc,
		downloader: dl,
		store:      store,
		webhook:    wh,
		metrics:    m,
	}
}

// FromUpload transcodes an uploaded recording, stages it in object storage and
// runs a long-running recognition over it. The staged object is always
// deleted afterwards.
func (s *Service) FromUpload(ctx context.Context, filename string, r io.Reader) (out Outcome, err error) {
	defer func() { s.observe(webhook.SourceUpload, err) }()
	if r == nil {
		return Outcome{}, fmt.Errorf("%w: no audio file provided", ErrInvalidInput)
	}
	requestID := uuid.NewString()
	startedAt := time.Now()
	slog.Info("upload minutes requested", "request_id", requestID, "filename", filename)

	workdir, err := os.MkdirTemp(s.tempDir, "minutagen-upload-*")
	if err != nil {
		return Outcome{}, fmt.Errorf("create work dir: %w", err)
	}
	defer removeAll(workdir)

	inputPath := filepath.Join(workdir, "input"+inputExt(filename))
	n, err := writeFile(inputPath, r)
	if err != nil {
		return Outcome{}, err
	}
	if n == 0 {
		return Outcome{}, fmt.Errorf("%w: audio file is empty", ErrInvalidInput)
	}

	wavPath := filepath.Join(workdir, "converted.wav")
	if err := s.transcoder.ToLinear16WAV(ctx, inputPath, wavPath); err != nil {
		return Outcome{}, err
	}

	objectName := fmt.Sprintf("%s%d-%s.wav", uploadObjectPrefix, startedAt.UnixMilli(), requestID)
	uri, err := s.upload(ctx, objectName, wavPath)
	if err != nil {
		return Outcome{}, err
	}
	defer s.deleteObject(ctx, objectName)

	transcript, err := s.batch.RecognizeURI(ctx, uri)
	if err != nil {
		return Outcome{}, err
	}
	return s.summarize(ctx, webhook.SourceUpload, requestID, startedAt, transcript)
}

// FromYouTube downloads a video's audio track and runs one synchronous
// recognition over the inline audio.
func (s *Service) FromYouTube(ctx context.Context, videoURL string) (out Outcome, err error) {
	defer func() { s.observe(webhook.SourceYouTube, err) }()
	videoURL = strings.TrimSpace(videoURL)
	if videoURL == "" {
		return Outcome{}, fmt.Errorf("%w: no video url provided", ErrInvalidInput)
	}
	requestID := uuid.NewString()
	startedAt := time.Now()
	slog.Info("youtube minutes requested", "request_id", requestID, "url", videoURL)

	workdir, err := os.MkdirTemp(s.tempDir, "minutagen-youtube-*")
	if err != nil {
		return Outcome{}, fmt.Errorf("create work dir: %w", err)
	}
	defer removeAll(workdir)

	downloadPath := filepath.Join(workdir, "download")
	if err := s.download(ctx, videoURL, downloadPath); err != nil {
		if errors.Is(err, media.ErrInvalidURL) {
			return Outcome{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
		}
		return Outcome{}, err
	}

	wavPath := filepath.Join(workdir, "converted.wav")
	if err := s.transcoder.ToLinear16WAV(ctx, downloadPath, wavPath); err != nil {
		return Outcome{}, err
	}
	audio, err := os.ReadFile(wavPath)
	if err != nil {
		return Outcome{}, fmt.Errorf("read converted audio: %w", err)
	}

	transcript, err := s.batch.RecognizeContent(ctx, audio)
	if err != nil {
		return Outcome{}, err
	}
	return s.summarize(ctx, webhook.SourceYouTube, requestID, startedAt, transcript)
}

func (s *Service) summarize(ctx context.Context, source, requestID string, startedAt time.Time, transcript string) (Outcome, error) {
	if strings.TrimSpace(transcript) == "" {
		return Outcome{}, ErrEmptyTranscript
	}
	slog.Info("summarizing batch transcript", "request_id", requestID, "source", source, "transcript_chars", len(transcript))
	started := time.Now()
	minutes, err := s.summarizer.Summarize(ctx, transcript)
	s.metrics.SummarizationDuration.Observe(time.Since(started).Seconds())
	if err != nil {
		return Outcome{}, err
	}

	if s.webhook != nil {
		payload := webhook.BuildMinutesPayload(webhook.MinutesRecord{
			Source:        source,
			SessionID:     requestID,
			StartedAt:     startedAt,
			EndedAt:       time.Now(),
			SegmentCount:  strings.Count(transcript, "\n") + 1,
			Minutes:       minutes,
			RawTranscript: transcript,
		})
		if err := s.webhook.SendMinutes(context.WithoutCancel(ctx), payload); err != nil {
			slog.Error("failed to send minutes webhook", "error", err, "request_id", requestID)
		}
	}
	return Outcome{Minutes: minutes, RawTranscript: transcript}, nil
}

func (s *Service) download(ctx context.Context, videoURL, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create download file: %w", err)
	}
	if err := s.downloader.DownloadAudio(ctx, videoURL, f); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close download file: %w", err)
	}
	return nil
}

func (s *Service) upload(ctx context.Context, objectName, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open converted audio: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()
	return s.store.Upload(ctx, objectName, wavContentType, f)
}

func (s *Service) deleteObject(ctx context.Context, objectName string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()
	if err := s.store.Delete(ctx, objectName); err != nil {
		slog.Error("failed to delete staged audio", "error", err, "object", objectName)
	}
}

func (s *Service) observe(source string, err error) {
	status := statusOK
	switch {
	case err == nil:
	case errors.Is(err, ErrInvalidInput):
		status = statusInvalidInput
	case errors.Is(err, ErrEmptyTranscript):
		status = statusEmpty
	default:
		status = statusError
		slog.Error("batch minutes failed", "error", err, "source", source)
	}
	s.metrics.BatchRequests.WithLabelValues(source, status).Inc()
}

func writeFile(path string, r io.Reader) (int64, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("create input file: %w", err)
	}
	n, err := io.Copy(f, r)
	if err != nil {
		_ = f.Close()
		return 0, fmt.Errorf("store input file: %w", err)
	}
	if err := f.Close(); err != nil {
		return 0, fmt.Errorf("close input file: %w", err)
	}
	return n, nil
}

// inputExt keeps the uploaded extension as a hint for the transcoder.
func inputExt(filename string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(filename)))
	if len(ext) < 2 || len(ext) > 8 {
		return ""
	}
	for _, c := range ext[1:] {
		if (c < 'a' || c > 'z') && (c < '0' || c > '9') {
			return ""
		}
	}
	return ext
}

func removeAll(dir string) {
	if err := os.RemoveAll(dir); err != nil {
		slog.Warn("failed to remove work dir", "error", err, "dir", dir)
	}
}
