package realtime

const (
	EventStartTranscription   = "start_transcription"
	EventAudioChunk           = "audio_chunk"
	EventStopTranscription    = "stop_transcription"
	EventInterimTranscript    = "interim_transcript"
	EventFinalTranscriptChunk = "final_transcript_chunk"
	EventFinalMinutes         = "final_minutes"
	EventTranscriptionError   = "transcription_error"
)

// Event is one server to client message.
type Event struct {
	Name string `json:"event"`
	Data any    `json:"data,omitempty"`
}

type TranscriptPayload struct {
	Transcript string `json:"transcript"`
}

type MinutesPayload struct {
	Minutes       string `json:"minutes"`
	RawTranscript string `json:"rawTranscript"`
}

type ErrorPayload struct {
	Error string `json:"error"`
}

func InterimTranscript(text string) Event {
	return Event{Name: EventInterimTranscript, Data: TranscriptPayload{Transcript: text}}
}

func FinalTranscriptChunk(text string) Event {
	return Event{Name: EventFinalTranscriptChunk, Data: TranscriptPayload{Transcript: text}}
}

func FinalMinutes(minutes, rawTranscript string) Event {
	return Event{Name: EventFinalMinutes, Data: MinutesPayload{Minutes: minutes, RawTranscript: rawTranscript}}
}

func TranscriptionError(message string) Event {
	return Event{Name: EventTranscriptionError, Data: ErrorPayload{Error: message}}
}

// Handler receives client events. Calls for one connection are made
// sequentially, in arrival order.
type Handler interface {
	HandleStart(connectionID string)
	HandleAudioChunk(connectionID string, chunk []byte)
	HandleStop(connectionID string)
	HandleDisconnect(connectionID string)
}

type Publisher interface {
	Send(connectionID string, event Event) error
}
