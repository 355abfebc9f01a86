package webhook

import "time"

type MinutesRecord struct {
	Source        string
	SessionID     string
	StartedAt     time.Time
	EndedAt       time.Time
	SegmentCount  int
	Minutes       string
	RawTranscript string
}

func BuildMinutesPayload(r MinutesRecord) MinutesWebhookPayload {
	durationSeconds := int64(r.EndedAt.Sub(r.StartedAt).Seconds())
	if durationSeconds < 0 {
		durationSeconds = 0
	}
	return MinutesWebhookPayload{
		SchemaVersion:   MinutesWebhookSchemaVersion,
		Source:          r.Source,
		SessionID:       r.SessionID,
		StartedAt:       r.StartedAt.UTC().Format(time.RFC3339),
		EndedAt:         r.EndedAt.UTC().Format(time.RFC3339),
		DurationSeconds: durationSeconds,
		SegmentCount:    r.SegmentCount,
		Minutes:         r.Minutes,
		RawTranscript:   r.RawTranscript,
	}
}
