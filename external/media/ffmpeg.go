package media

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"unicode/utf8"

	"github.com/foxseedlab/minutagen/internal/media"
)

const (
	wavSampleRate   = "16000"
	stderrTailBytes = 512
)

type FFmpegTranscoder struct {
	path string
}

func NewFFmpegTranscoder(path string) media.Transcoder {
	path = strings.TrimSpace(path)
	if path == "" {
		path = "ffmpeg"
	}
	return &FFmpegTranscoder{path: path}
}

func transcodeArgs(inputPath, outputPath string) []string {
	return []string{
		"-hide_banner",
		"-loglevel", "error",
		"-y",
		"-i", inputPath,
		"-vn",
		"-ac", "1",
		"-ar", wavSampleRate,
		"-acodec", "pcm_s16le",
		"-f", "wav",
		outputPath,
	}
}

func (t *FFmpegTranscoder) ToLinear16WAV(ctx context.Context, inputPath, outputPath string) error {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, t.path, transcodeArgs(inputPath, outputPath)...)
	cmd.Stderr = &stderr

	slog.Info("ffmpeg transcode started", "input", inputPath, "output", outputPath)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%w: %w: %s", media.ErrTranscodeFailed, err, tail(stderr.String(), stderrTailBytes))
	}
	slog.Info("ffmpeg transcode completed", "output", outputPath)
	return nil
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	s = s[len(s)-n:]
	for len(s) > 0 && !utf8.RuneStart(s[0]) {
		s = s[1:]
	}
	return s
}
