package transcriber

import (
	"context"
	"errors"
)

var (
	ErrUpstreamUnavailable = errors.New("speech recognizer unavailable")
	ErrTranscriptionFailed = errors.New("transcription failed")
)

// Result is one decoded unit. Interim results replace the previous interim
// result for the same utterance; final results are appended.
type Result struct {
	Text    string
	IsFinal bool
}

// Stream is one live recognition stream. Results yields every decoded unit and
// is closed when the upstream ends; Err reports why once Results is closed.
type Stream interface {
	Write(audio []byte) error
	CloseSend() error
	Results() <-chan Result
	Err() error
	Close() error
}

type Transcriber interface {
	Open(ctx context.Context, sessionID string) (Stream, error)
}

// BatchTranscriber recognizes already transcoded mono 16kHz LINEAR16 audio.
type BatchTranscriber interface {
	RecognizeContent(ctx context.Context, pcm []byte) (string, error)
	RecognizeURI(ctx context.Context, uri string) (string, error)
}
