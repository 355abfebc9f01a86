package media

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"

	"github.com/foxseedlab/minutagen/internal/media"
	"github.com/kkdai/youtube/v2"
)

type YouTubeDownloader struct {
	client *youtube.Client
}

func NewYouTubeDownloader() media.Downloader {
	return &YouTubeDownloader{client: &youtube.Client{}}
}

// videoID accepts only http(s) links on YouTube hosts.
func videoID(videoURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(videoURL))
	if err != nil {
		return "", fmt.Errorf("%w: %w", media.ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%w: unsupported scheme %q", media.ErrInvalidURL, u.Scheme)
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	switch host {
	case "youtube.com", "m.youtube.com", "music.youtube.com", "youtu.be":
	default:
		return "", fmt.Errorf("%w: unsupported host %q", media.ErrInvalidURL, u.Hostname())
	}
	id, err := youtube.ExtractVideoID(u.String())
	if err != nil {
		return "", fmt.Errorf("%w: %w", media.ErrInvalidURL, err)
	}
	return id, nil
}

// lowestBitrateAudio picks the cheapest audio-only format, falling back to
// any format carrying audio.
func lowestBitrateAudio(formats youtube.FormatList) *youtube.Format {
	var best, fallback *youtube.Format
	for i := range formats {
		f := &formats[i]
		if f.AudioChannels == 0 && !strings.HasPrefix(f.MimeType, "audio/") {
			continue
		}
		if strings.HasPrefix(f.MimeType, "audio/") {
			if best == nil || f.Bitrate < best.Bitrate {
				best = f
			}
			continue
		}
		if fallback == nil || f.Bitrate < fallback.Bitrate {
			fallback = f
		}
	}
	if best != nil {
		return best
	}
	return fallback
}

func (d *YouTubeDownloader) DownloadAudio(ctx context.Context, videoURL string, dst io.Writer) error {
	id, err := videoID(videoURL)
	if err != nil {
		return err
	}
	video, err := d.client.GetVideoContext(ctx, id)
	if err != nil {
		return fmt.Errorf("%w: get video %s: %w", media.ErrDownloadFailed, id, err)
	}
	format := lowestBitrateAudio(video.Formats)
	if format == nil {
		return fmt.Errorf("%w: video %s has no audio formats", media.ErrDownloadFailed, id)
	}

	slog.Info("youtube audio download started", "video_id", id, "itag", format.ItagNo, "mime_type", format.MimeType, "bitrate", format.Bitrate)
	stream, _, err := d.client.GetStreamContext(ctx, video, format)
	if err != nil {
		return fmt.Errorf("%w: open stream %s: %w", media.ErrDownloadFailed, id, err)
	}
	defer func() {
		_ = stream.Close()
	}()
	n, err := io.Copy(dst, stream)
	if err != nil {
		return fmt.Errorf("%w: copy stream %s: %w", media.ErrDownloadFailed, id, err)
	}
	slog.Info("youtube audio download completed", "video_id", id, "bytes", n)
	return nil
}
