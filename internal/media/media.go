package media

import (
	"context"
	"errors"
	"io"
)

var (
	ErrInvalidURL      = errors.New("invalid video url")
	ErrDownloadFailed  = errors.New("audio download failed")
	ErrTranscodeFailed = errors.New("audio transcode failed")
)

// Transcoder converts any audio or video file into mono 16 kHz 16-bit PCM WAV.
type Transcoder interface {
	ToLinear16WAV(ctx context.Context, inputPath, outputPath string) error
}

// Downloader fetches the audio track of a hosted video.
type Downloader interface {
	DownloadAudio(ctx context.Context, videoURL string, dst io.Writer) error
}
