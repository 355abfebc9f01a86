package webhook

import "context"

const MinutesWebhookSchemaVersion = 1

const (
	SourceLive    = "live"
	SourceUpload  = "upload"
	SourceYouTube = "youtube"
)

type MinutesWebhookPayload struct {
	SchemaVersion   int    `json:"schema_version"`
	Source          string `json:"source"`
	SessionID       string `json:"session_id"`
	StartedAt       string `json:"started_at"`
	EndedAt         string `json:"ended_at"`
	DurationSeconds int64  `json:"duration_seconds"`
	SegmentCount    int    `json:"segment_count"`
	Minutes         string `json:"minutes"`
	RawTranscript   string `json:"raw_transcript"`
}

type Sender interface {
	SendMinutes(ctx context.Context, payload MinutesWebhookPayload) error
}
