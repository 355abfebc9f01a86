package transcriber

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	speech "cloud.google.com/go/speech/apiv1"
	speechpb "cloud.google.com/go/speech/apiv1/speechpb"
	"github.com/foxseedlab/minutagen/external/gcp"
	"github.com/foxseedlab/minutagen/internal/transcriber"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	resultBufferSize    = 32
	defaultCloseTimeout = 3 * time.Second
)

type CloudSpeechConfig struct {
	CredentialsJSON       string
	Language              string
	Model                 string
	StreamSampleRateHertz int
	CloseTimeout          time.Duration
}

type CloudSpeechTranscriber struct {
	cfg CloudSpeechConfig
}

func NewCloudSpeechTranscriber(cfg CloudSpeechConfig) transcriber.Transcriber {
	cfg.Language = strings.TrimSpace(cfg.Language)
	cfg.Model = strings.TrimSpace(cfg.Model)
	if cfg.CloseTimeout <= 0 {
		cfg.CloseTimeout = defaultCloseTimeout
	}
	return &CloudSpeechTranscriber{cfg: cfg}
}

func streamingConfigRequest(cfg CloudSpeechConfig) *speechpb.StreamingRecognizeRequest {
	return &speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: &speechpb.StreamingRecognitionConfig{
				Config: &speechpb.RecognitionConfig{
					Encoding:                   speechpb.RecognitionConfig_WEBM_OPUS,
					SampleRateHertz:            int32(cfg.StreamSampleRateHertz),
					LanguageCode:               cfg.Language,
					Model:                      cfg.Model,
					EnableAutomaticPunctuation: true,
				},
				InterimResults: true,
			},
		},
	}
}

func (t *CloudSpeechTranscriber) Open(ctx context.Context, sessionID string) (transcriber.Stream, error) {
	slog.Info("opening cloud speech stream", "session_id", sessionID, "language", t.cfg.Language, "model", t.cfg.Model, "sample_rate", t.cfg.StreamSampleRateHertz)

	opts, err := gcp.ClientOptions(t.cfg.CredentialsJSON)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", transcriber.ErrUpstreamUnavailable, err)
	}

	streamCtx, cancel := context.WithCancel(ctx)
	client, err := speech.NewClient(streamCtx, opts...)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("%w: create client: %w", transcriber.ErrUpstreamUnavailable, err)
	}
	stream, err := client.StreamingRecognize(streamCtx)
	if err != nil {
		cancel()
		_ = client.Close()
		return nil, fmt.Errorf("%w: open stream: %w", transcriber.ErrUpstreamUnavailable, err)
	}
	if err := stream.Send(streamingConfigRequest(t.cfg)); err != nil {
		_ = stream.CloseSend()
		cancel()
		_ = client.Close()
		return nil, fmt.Errorf("%w: send config: %w", transcriber.ErrUpstreamUnavailable, err)
	}
	slog.Info("cloud speech stream initialized", "session_id", sessionID)

	s := newCloudStream(sessionID, stream, cancel, client.Close, t.cfg.CloseTimeout)
	s.reopen = func() (recognizeStream, error) {
		next, err := client.StreamingRecognize(streamCtx)
		if err != nil {
			return nil, fmt.Errorf("open stream: %w", err)
		}
		if err := next.Send(streamingConfigRequest(t.cfg)); err != nil {
			_ = next.CloseSend()
			return nil, fmt.Errorf("send config: %w", err)
		}
		return next, nil
	}
	go s.receive()
	return s, nil
}

// recognizeStream is the subset of speechpb.Speech_StreamingRecognizeClient the
// stream needs.
type recognizeStream interface {
	Send(*speechpb.StreamingRecognizeRequest) error
	Recv() (*speechpb.StreamingRecognizeResponse, error)
	CloseSend() error
}

type cloudStream struct {
	sessionID    string
	stream       recognizeStream
	cancel       context.CancelFunc
	closeClient  func() error
	closeTimeout time.Duration
	// reopen replaces an upstream stream that hit the per-stream duration cap
	reopen func() (recognizeStream, error)

	mu         sync.Mutex
	rollovers  int
	sendClosed bool
	closed     bool
	err        error

	results   chan transcriber.Result
	stopped   chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

func newCloudStream(sessionID string, stream recognizeStream, cancel context.CancelFunc, closeClient func() error, closeTimeout time.Duration) *cloudStream {
	return &cloudStream{
		sessionID:    sessionID,
		stream:       stream,
		cancel:       cancel,
		closeClient:  closeClient,
		closeTimeout: closeTimeout,
		results:      make(chan transcriber.Result, resultBufferSize),
		stopped:      make(chan struct{}),
		done:         make(chan struct{}),
	}
}

func (s *cloudStream) Write(audio []byte) error {
	if len(audio) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sendClosed || s.closed {
		return nil
	}
	err := s.stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_AudioContent{AudioContent: audio},
	})
	if err == nil {
		return nil
	}
	if errors.Is(err, io.EOF) {
		// the stream already terminated; Recv reports the cause and the
		// receive loop rolls over to a new stream when it can
		return nil
	}
	return fmt.Errorf("%w: send audio: %w", transcriber.ErrTranscriptionFailed, err)
}

func (s *cloudStream) CloseSend() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sendClosed || s.closed {
		return nil
	}
	s.sendClosed = true
	return s.stream.CloseSend()
}

func (s *cloudStream) Results() <-chan transcriber.Result {
	return s.results
}

func (s *cloudStream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *cloudStream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		// cancel first so a Send blocked on flow control releases mu
		s.cancel()
		close(s.stopped)

		s.mu.Lock()
		s.closed = true
		if !s.sendClosed {
			s.sendClosed = true
			_ = s.stream.CloseSend()
		}
		s.mu.Unlock()

		select {
		case <-s.done:
		case <-time.After(s.closeTimeout):
			slog.Warn("cloud speech stream did not acknowledge close; continuing teardown", "session_id", s.sessionID, "timeout", s.closeTimeout)
		}
		if s.closeClient != nil {
			err = s.closeClient()
		}
		slog.Info("cloud speech stream closed", "session_id", s.sessionID)
	})
	return err
}

func (s *cloudStream) receive() {
	defer close(s.done)
	defer close(s.results)
	s.mu.Lock()
	stream := s.stream
	s.mu.Unlock()
	for {
		resp, err := stream.Recv()
		if err != nil {
			next, ok := s.rollover(err)
			if !ok {
				return
			}
			stream = next
			continue
		}
		if st := resp.GetError(); st != nil && codes.Code(st.GetCode()) != codes.OK {
			s.finish(status.ErrorProto(st))
			return
		}
		for _, result := range resp.GetResults() {
			alternatives := result.GetAlternatives()
			if len(alternatives) == 0 {
				continue
			}
			select {
			case s.results <- transcriber.Result{Text: alternatives[0].GetTranscript(), IsFinal: result.GetIsFinal()}:
			case <-s.stopped:
				s.finish(context.Canceled)
				return
			}
		}
	}
}

// rollover continues the session on a fresh upstream stream when the current
// one ended at the recognizer's per-stream duration cap. Any other error ends
// the stream through finish.
func (s *cloudStream) rollover(err error) (recognizeStream, bool) {
	if !isStreamDurationLimit(err) {
		s.finish(err)
		return nil, false
	}
	s.mu.Lock()
	if s.closed || s.sendClosed || s.reopen == nil {
		s.mu.Unlock()
		// audio already ended, so the cap only cut the tail of the stream
		slog.Warn("cloud speech stream hit duration limit after end of audio", "session_id", s.sessionID, "error", err)
		s.finish(io.EOF)
		return nil, false
	}
	next, openErr := s.reopen()
	if openErr != nil {
		s.mu.Unlock()
		slog.Error("failed to roll over cloud speech stream", "session_id", s.sessionID, "error", openErr)
		s.finish(err)
		return nil, false
	}
	s.stream = next
	s.rollovers++
	n := s.rollovers
	s.mu.Unlock()
	slog.Info("cloud speech stream rolled over", "session_id", s.sessionID, "rollovers", n)
	return next, true
}

func (s *cloudStream) finish(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case errors.Is(err, io.EOF):
		slog.Info("cloud speech receive loop finished", "session_id", s.sessionID)
	case s.closed || isCanceled(err):
		slog.Info("cloud speech receive loop stopped", "session_id", s.sessionID, "reason", err.Error())
	default:
		slog.Error("cloud speech stream error", "session_id", s.sessionID, "error", err)
		s.err = fmt.Errorf("%w: %w", transcriber.ErrTranscriptionFailed, err)
	}
}

// isStreamDurationLimit reports whether err is the recognizer ending a stream
// that reached its maximum duration.
func isStreamDurationLimit(err error) bool {
	st, ok := status.FromError(err)
	if !ok {
		return false
	}
	msg := strings.ToLower(st.Message())
	switch st.Code() {
	case codes.Aborted:
		return strings.Contains(msg, "max duration of 5 minutes") ||
			strings.Contains(msg, "maximum allowed stream duration")
	case codes.OutOfRange:
		return strings.Contains(msg, "maximum allowed stream duration")
	default:
		return false
	}
}

func isCanceled(err error) bool {
	if errors.Is(err, context.Canceled) {
		return true
	}
	return status.Code(err) == codes.Canceled
}
