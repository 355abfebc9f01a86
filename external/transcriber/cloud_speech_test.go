package transcriber

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	speechpb "cloud.google.com/go/speech/apiv1/speechpb"
	"github.com/foxseedlab/minutagen/internal/transcriber"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type recvItem struct {
	resp *speechpb.StreamingRecognizeResponse
	err  error
}

type fakeRecognizeStream struct {
	ctx    context.Context
	recvCh chan recvItem

	mu         sync.Mutex
	sent       [][]byte
	closeSends int
	ignoreCtx  bool
	sendErr    error
}

func newFakeRecognizeStream(ctx context.Context) *fakeRecognizeStream {
	return &fakeRecognizeStream{ctx: ctx, recvCh: make(chan recvItem, 16)}
}

func (f *fakeRecognizeStream) Send(req *speechpb.StreamingRecognizeRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, req.GetAudioContent())
	return nil
}

func (f *fakeRecognizeStream) Recv() (*speechpb.StreamingRecognizeResponse, error) {
	if f.ignoreCtx {
		item := <-f.recvCh
		return item.resp, item.err
	}
	select {
	case item := <-f.recvCh:
		return item.resp, item.err
	case <-f.ctx.Done():
		return nil, status.Error(codes.Canceled, "context canceled")
	}
}

func (f *fakeRecognizeStream) CloseSend() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeSends++
	return nil
}

func (f *fakeRecognizeStream) sentChunks() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.sent...)
}

func response(text string, isFinal bool) *speechpb.StreamingRecognizeResponse {
	return &speechpb.StreamingRecognizeResponse{
		Results: []*speechpb.StreamingRecognitionResult{
			{
				Alternatives: []*speechpb.SpeechRecognitionAlternative{{Transcript: text}},
				IsFinal:      isFinal,
			},
		},
	}
}

func startTestStream(t *testing.T, closeTimeout time.Duration, configure ...func(*fakeRecognizeStream)) (*cloudStream, *fakeRecognizeStream, *int) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	fake := newFakeRecognizeStream(ctx)
	for _, fn := range configure {
		fn(fake)
	}
	closeCalls := 0
	s := newCloudStream("session-1", fake, cancel, func() error {
		closeCalls++
		return nil
	}, closeTimeout)
	go s.receive()
	return s, fake, &closeCalls
}

func collectResults(t *testing.T, s *cloudStream) []transcriber.Result {
	t.Helper()
	var got []transcriber.Result
	timeout := time.After(time.Second)
	for {
		select {
		case r, ok := <-s.Results():
			if !ok {
				return got
			}
			got = append(got, r)
		case <-timeout:
			t.Fatal("results channel was not closed")
		}
	}
}

func TestCloudStream_DeliversInterimAndFinalInOrder(t *testing.T) {
	s, fake, _ := startTestStream(t, time.Second)

	fake.recvCh <- recvItem{resp: response("hola", false)}
	fake.recvCh <- recvItem{resp: response("hola mundo", true)}
	fake.recvCh <- recvItem{resp: &speechpb.StreamingRecognizeResponse{
		Results: []*speechpb.StreamingRecognitionResult{{IsFinal: true}},
	}}
	fake.recvCh <- recvItem{err: io.EOF}

	got := collectResults(t, s)
	want := []transcriber.Result{{Text: "hola", IsFinal: false}, {Text: "hola mundo", IsFinal: true}}
	if len(got) != len(want) {
		t.Fatalf("unexpected results: %+v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("result %d: got %+v want %+v", i, got[i], want[i])
		}
	}
	if err := s.Err(); err != nil {
		t.Fatalf("expected clean end, got %v", err)
	}
}

func TestCloudStream_UpstreamErrorIsTranscriptionFailed(t *testing.T) {
	s, fake, _ := startTestStream(t, time.Second)

	fake.recvCh <- recvItem{err: status.Error(codes.Internal, "boom")}
	collectResults(t, s)

	if !errors.Is(s.Err(), transcriber.ErrTranscriptionFailed) {
		t.Fatalf("expected ErrTranscriptionFailed, got %v", s.Err())
	}
}

func TestCloudStream_WriteForwardsInOrderAndIgnoresLateWrites(t *testing.T) {
	s, fake, _ := startTestStream(t, time.Second)

	if err := s.Write([]byte("a")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.Write([]byte("b")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.CloseSend(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.Write([]byte("late")); err != nil {
		t.Fatalf("late write should be ignored, got %v", err)
	}
	_ = s.Close()
	if err := s.Write([]byte("after close")); err != nil {
		t.Fatalf("write after close should be ignored, got %v", err)
	}

	chunks := fake.sentChunks()
	if len(chunks) != 2 || string(chunks[0]) != "a" || string(chunks[1]) != "b" {
		t.Fatalf("unexpected chunks: %q", chunks)
	}
}

func TestCloudStream_WriteEOFIsNotAnError(t *testing.T) {
	s, _, _ := startTestStream(t, time.Second, func(f *fakeRecognizeStream) {
		f.sendErr = io.EOF
	})

	if err := s.Write([]byte("a")); err != nil {
		t.Fatalf("expected nil on EOF, got %v", err)
	}
	_ = s.Close()
}

func TestCloudStream_CloseIsIdempotentAndNotAnError(t *testing.T) {
	s, fake, closeCalls := startTestStream(t, time.Second)

	if err := s.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("unexpected error on second close: %v", err)
	}
	collectResults(t, s)

	if *closeCalls != 1 {
		t.Fatalf("expected client to be closed once, got %d", *closeCalls)
	}
	if fake.closeSends != 1 {
		t.Fatalf("expected one CloseSend, got %d", fake.closeSends)
	}
	if err := s.Err(); err != nil {
		t.Fatalf("local close should not be reported as failure, got %v", err)
	}
}

func TestCloudStream_CloseDoesNotBlockOnUnresponsiveUpstream(t *testing.T) {
	s, fake, _ := startTestStream(t, 50*time.Millisecond, func(f *fakeRecognizeStream) {
		f.ignoreCtx = true
	})
	defer func() {
		fake.recvCh <- recvItem{err: io.EOF}
	}()

	done := make(chan struct{})
	go func() {
		_ = s.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("close blocked on unresponsive upstream")
	}
}

func startRolloverStream(t *testing.T) (*cloudStream, *fakeRecognizeStream, *fakeRecognizeStream) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	first := newFakeRecognizeStream(ctx)
	second := newFakeRecognizeStream(ctx)
	s := newCloudStream("session-1", first, cancel, nil, time.Second)
	s.reopen = func() (recognizeStream, error) { return second, nil }
	go s.receive()
	t.Cleanup(func() { _ = s.Close() })
	return s, first, second
}

func TestCloudStream_RollsOverAtStreamDurationLimit(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{name: "out of range", err: status.Error(codes.OutOfRange, "Exceeded maximum allowed stream duration of 305 seconds.")},
		{name: "aborted", err: status.Error(codes.Aborted, "Audio Timeout Error: Long duration elapsed without audio. max duration of 5 minutes reached")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, first, second := startRolloverStream(t)

			first.recvCh <- recvItem{resp: response("uno", true)}
			first.recvCh <- recvItem{err: tt.err}
			waitFor(t, func() bool {
				s.mu.Lock()
				defer s.mu.Unlock()
				return s.rollovers == 1
			})
			if err := s.Write([]byte("a")); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			second.recvCh <- recvItem{resp: response("dos", true)}
			second.recvCh <- recvItem{err: io.EOF}

			got := collectResults(t, s)
			if len(got) != 2 || got[0].Text != "uno" || got[1].Text != "dos" {
				t.Fatalf("unexpected results: %+v", got)
			}
			if err := s.Err(); err != nil {
				t.Fatalf("expected rollover to be transparent, got %v", err)
			}
			if chunks := second.sentChunks(); len(chunks) != 1 || string(chunks[0]) != "a" {
				t.Fatalf("expected audio on the new stream, got %q", chunks)
			}
			if len(first.sentChunks()) != 0 {
				t.Fatalf("unexpected audio on the expired stream: %q", first.sentChunks())
			}
		})
	}
}

func TestCloudStream_DurationLimitAfterCloseSendEndsCleanly(t *testing.T) {
	s, first, _ := startRolloverStream(t)

	first.recvCh <- recvItem{resp: response("uno", true)}
	if err := s.CloseSend(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	first.recvCh <- recvItem{err: status.Error(codes.OutOfRange, "Exceeded maximum allowed stream duration of 305 seconds.")}

	if got := collectResults(t, s); len(got) != 1 {
		t.Fatalf("unexpected results: %+v", got)
	}
	if err := s.Err(); err != nil {
		t.Fatalf("expected clean end, got %v", err)
	}
}

func TestCloudStream_OtherAbortsAreNotRolledOver(t *testing.T) {
	s, first, _ := startRolloverStream(t)

	first.recvCh <- recvItem{err: status.Error(codes.Aborted, "stream aborted by server")}
	collectResults(t, s)

	if !errors.Is(s.Err(), transcriber.ErrTranscriptionFailed) {
		t.Fatalf("expected ErrTranscriptionFailed, got %v", s.Err())
	}
}

func TestCloudStream_RolloverFailureEndsWithError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	first := newFakeRecognizeStream(ctx)
	s := newCloudStream("session-1", first, cancel, nil, time.Second)
	s.reopen = func() (recognizeStream, error) { return nil, errors.New("unavailable") }
	go s.receive()
	defer func() { _ = s.Close() }()

	first.recvCh <- recvItem{err: status.Error(codes.OutOfRange, "Exceeded maximum allowed stream duration of 305 seconds.")}
	collectResults(t, s)

	if !errors.Is(s.Err(), transcriber.ErrTranscriptionFailed) {
		t.Fatalf("expected ErrTranscriptionFailed, got %v", s.Err())
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestStreamingConfigRequest_UsesFixedDecodeConfig(t *testing.T) {
	req := streamingConfigRequest(CloudSpeechConfig{Language: "es-PE", Model: "telephony", StreamSampleRateHertz: 48000})
	sc := req.GetStreamingConfig()
	if sc == nil {
		t.Fatal("expected streaming config")
	}
	if !sc.GetInterimResults() {
		t.Fatal("expected interim results enabled")
	}
	c := sc.GetConfig()
	if c.GetEncoding() != speechpb.RecognitionConfig_WEBM_OPUS {
		t.Fatalf("unexpected encoding: %v", c.GetEncoding())
	}
	if c.GetSampleRateHertz() != 48000 || c.GetLanguageCode() != "es-PE" || c.GetModel() != "telephony" {
		t.Fatalf("unexpected config: %+v", c)
	}
	if !c.GetEnableAutomaticPunctuation() {
		t.Fatal("expected automatic punctuation")
	}
}

func TestJoinRecognitionResults_UsesFirstAlternativePerLine(t *testing.T) {
	got := joinRecognitionResults([]*speechpb.SpeechRecognitionResult{
		{Alternatives: []*speechpb.SpeechRecognitionAlternative{{Transcript: "uno"}, {Transcript: "otro"}}},
		{},
		{Alternatives: []*speechpb.SpeechRecognitionAlternative{{Transcript: "dos"}}},
	})
	if got != "uno\ndos" {
		t.Fatalf("unexpected transcript: %q", got)
	}
}
