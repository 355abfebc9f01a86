package media

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/foxseedlab/minutagen/internal/media"
	"github.com/kkdai/youtube/v2"
)

func TestVideoID(t *testing.T) {
	cases := []struct {
		url     string
		want    string
		wantErr bool
	}{
		{url: "https://www.youtube.com/watch?v=dQw4w9WgXcQ", want: "dQw4w9WgXcQ"},
		{url: "https://youtu.be/dQw4w9WgXcQ", want: "dQw4w9WgXcQ"},
		{url: "http://m.youtube.com/watch?v=dQw4w9WgXcQ&t=10", want: "dQw4w9WgXcQ"},
		{url: "dQw4w9WgXcQ", wantErr: true},
		{url: "ftp://youtube.com/watch?v=dQw4w9WgXcQ", wantErr: true},
		{url: "https://vimeo.com/12345", wantErr: true},
		{url: "", wantErr: true},
	}
	for _, tc := range cases {
		got, err := videoID(tc.url)
		if tc.wantErr {
			if !errors.Is(err, media.ErrInvalidURL) {
				t.Fatalf("videoID(%q): expected ErrInvalidURL, got %v", tc.url, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("videoID(%q): unexpected error: %v", tc.url, err)
		}
		if got != tc.want {
			t.Fatalf("videoID(%q) = %q, want %q", tc.url, got, tc.want)
		}
	}
}

func TestLowestBitrateAudio(t *testing.T) {
	formats := youtube.FormatList{
		{ItagNo: 18, MimeType: `video/mp4; codecs="avc1.42001E, mp4a.40.2"`, Bitrate: 300000, AudioChannels: 2},
		{ItagNo: 140, MimeType: `audio/mp4; codecs="mp4a.40.2"`, Bitrate: 130000, AudioChannels: 2},
		{ItagNo: 249, MimeType: `audio/webm; codecs="opus"`, Bitrate: 50000, AudioChannels: 2},
		{ItagNo: 137, MimeType: `video/mp4; codecs="avc1.640028"`, Bitrate: 4000000},
	}
	if got := lowestBitrateAudio(formats); got == nil || got.ItagNo != 249 {
		t.Fatalf("expected itag 249, got %+v", got)
	}

	muxedOnly := youtube.FormatList{formats[0], formats[3]}
	if got := lowestBitrateAudio(muxedOnly); got == nil || got.ItagNo != 18 {
		t.Fatalf("expected muxed fallback, got %+v", got)
	}
	if got := lowestBitrateAudio(youtube.FormatList{formats[3]}); got != nil {
		t.Fatalf("expected no format, got %+v", got)
	}
}

func TestYouTubeDownloader_RejectsInvalidURLWithoutNetwork(t *testing.T) {
	var buf bytes.Buffer
	err := NewYouTubeDownloader().DownloadAudio(context.Background(), "not a url", &buf)
	if !errors.Is(err, media.ErrInvalidURL) {
		t.Fatalf("expected ErrInvalidURL, got %v", err)
	}
}
