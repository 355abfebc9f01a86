package session

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/foxseedlab/minutagen/internal/config"
	"github.com/foxseedlab/minutagen/internal/metrics"
	"github.com/foxseedlab/minutagen/internal/realtime"
	"github.com/foxseedlab/minutagen/internal/summarizer"
	"github.com/foxseedlab/minutagen/internal/transcriber"
	"github.com/foxseedlab/minutagen/internal/webhook"
	"github.com/google/uuid"
)

const webhookTimeout = 30 * time.Second

// Manager runs at most one live transcription session per connection and
// relays its transcripts and minutes back to that connection.
type Manager struct {
	transcriber transcriber.Transcriber
	summarizer  summarizer.Summarizer
	publisher   realtime.Publisher
	webhook     webhook.Sender
	metrics     *metrics.Metrics

	stopDrainTimeout   time.Duration
	maxSessionDuration time.Duration

	mu       sync.Mutex
	sessions map[string]*liveSession
	workers  sync.WaitGroup
}

var _ realtime.Handler = (*Manager)(nil)

func NewManager(cfg *config.Config, stt transcriber.Transcriber, sum summarizer.Summarizer, pub realtime.Publisher, wh webhook.Sender, m *metrics.Metrics) *Manager {
	return &Manager{
		transcriber:        stt,
		summarizer:         sum,
		publisher:          pub,
		webhook:            wh,
		metrics:            m,
		stopDrainTimeout:   cfg.StopDrainTimeout,
		maxSessionDuration: cfg.MaxSessionDuration(),
		sessions:           make(map[string]*liveSession),
	}
}

func (m *Manager) HandleStart(connectionID string) {
	slog.Info("start transcription requested", "connection_id", connectionID)
	if m.discard(connectionID) {
		slog.Info("previous session discarded by restart", "connection_id", connectionID)
	}

	sessionID := uuid.NewString()
	ctx, cancel := context.WithCancel(context.Background())
	stream, err := m.transcriber.Open(ctx, sessionID)
	if err != nil {
		cancel()
		slog.Error("failed to open recognizer stream", "error", err, "connection_id", connectionID, "session_id", sessionID)
		m.metrics.SessionsFinished.WithLabelValues(metrics.OutcomeUpstreamError).Inc()
		m.send(connectionID, realtime.TranscriptionError(startFailedMessage(err)))
		return
	}

	s := newLiveSession(ctx, cancel, sessionID, connectionID, stream)
	m.mu.Lock()
	m.sessions[connectionID] = s
	m.mu.Unlock()
	m.metrics.SessionsStarted.Inc()
	m.metrics.ActiveSessions.Inc()
	slog.Info("session activated", "connection_id", connectionID, "session_id", sessionID)

	m.workers.Add(1)
	go m.run(s)
}

func (m *Manager) HandleAudioChunk(connectionID string, chunk []byte) {
	s := m.lookup(connectionID)
	if s == nil {
		m.metrics.DroppedChunks.Inc()
		slog.Debug("dropping audio chunk without active session", "connection_id", connectionID, "chunk_bytes", len(chunk))
		return
	}
	accepted, err := s.write(chunk)
	if !accepted {
		m.metrics.DroppedChunks.Inc()
		slog.Debug("dropping audio chunk after stop", "connection_id", connectionID, "session_id", s.id, "state", s.State().String())
		return
	}
	if err != nil {
		slog.Warn("failed to forward audio chunk", "error", err, "connection_id", connectionID, "session_id", s.id)
		return
	}
	m.metrics.AudioBytes.Add(float64(len(chunk)))
}

func (m *Manager) HandleStop(connectionID string) {
	s := m.lookup(connectionID)
	if s == nil {
		slog.Info("ignoring stop without session", "connection_id", connectionID)
		return
	}
	if m.stop(s, stopReasonClient) {
		m.halfClose(s)
	}
}

func (m *Manager) HandleDisconnect(connectionID string) {
	if m.discard(connectionID) {
		slog.Info("session discarded by disconnect", "connection_id", connectionID)
	}
}

// StopAll discards every session without relaying outcomes and returns how
// many were discarded.
func (m *Manager) StopAll() int {
	m.mu.Lock()
	sessions := make([]*liveSession, 0, len(m.sessions))
	for id, s := range m.sessions {
		sessions = append(sessions, s)
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	for _, s := range sessions {
		if s.terminate() {
			_ = s.stream.Close()
		}
	}
	return len(sessions)
}

// Wait blocks until every session worker has returned or ctx is done.
func (m *Manager) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		m.workers.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) ActiveSessions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *Manager) lookup(connectionID string) *liveSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[connectionID]
}

// discard removes the connection's session, cancels it and releases its
// recognizer stream. Nothing is relayed for a discarded session.
func (m *Manager) discard(connectionID string) bool {
	m.mu.Lock()
	s, ok := m.sessions[connectionID]
	if ok {
		delete(m.sessions, connectionID)
	}
	m.mu.Unlock()
	if !ok {
		return false
	}
	if s.terminate() {
		_ = s.stream.Close()
	}
	return true
}

// release drops the registry entry if it still belongs to s.
func (m *Manager) release(s *liveSession) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sessions[s.connectionID] == s {
		delete(m.sessions, s.connectionID)
	}
}

func (m *Manager) stop(s *liveSession, reason string) bool {
	if !s.requestStop(reason) {
		slog.Info("ignoring stop for session that is already stopping", "connection_id", s.connectionID, "session_id", s.id, "state", s.State().String())
		return false
	}
	slog.Info("stopping session", "connection_id", s.connectionID, "session_id", s.id, "reason", reason)
	return true
}

// halfClose signals end of audio upstream. It may wait for an in-flight
// write, which the drain timeout bounds through finalize.
func (m *Manager) halfClose(s *liveSession) {
	if err := s.stream.CloseSend(); err != nil {
		slog.Warn("failed to half-close recognizer stream", "error", err, "session_id", s.id)
	}
}

// run consumes recognition results in order until the session produces its
// outcome or is discarded.
func (m *Manager) run(s *liveSession) {
	defer m.workers.Done()
	defer m.metrics.ActiveSessions.Dec()
	defer func() {
		_ = s.stream.Close()
		s.cancel()
		m.release(s)
		m.metrics.SessionDuration.Observe(time.Since(s.startedAt).Seconds())
	}()

	var maxDuration <-chan time.Time
	if m.maxSessionDuration > 0 {
		timer := time.NewTimer(m.maxSessionDuration)
		defer timer.Stop()
		maxDuration = timer.C
	}

	var (
		results      = s.stream.Results()
		stopCh       = s.stopCh
		drain        <-chan time.Time
		upstreamDone bool
	)
	for {
		select {
		case <-s.ctx.Done():
			m.finished(s, metrics.OutcomeCancelled)
			return
		case <-maxDuration:
			maxDuration = nil
			slog.Warn("session reached max duration", "connection_id", s.connectionID, "session_id", s.id, "max_duration", m.maxSessionDuration.String())
			if m.stop(s, stopReasonMaxDuration) {
				m.workers.Add(1)
				go func() {
					defer m.workers.Done()
					m.halfClose(s)
				}()
			}
		case <-stopCh:
			stopCh = nil
			if upstreamDone {
				m.finalize(s)
				return
			}
			timer := time.NewTimer(m.stopDrainTimeout)
			defer timer.Stop()
			drain = timer.C
		case <-drain:
			slog.Warn("recognizer did not finish before drain timeout", "connection_id", s.connectionID, "session_id", s.id, "timeout", m.stopDrainTimeout.String())
			m.finalize(s)
			return
		case r, ok := <-results:
			if ok {
				m.handleResult(s, r)
				continue
			}
			results = nil
			upstreamDone = true
			if s.ctx.Err() != nil {
				m.finished(s, metrics.OutcomeCancelled)
				return
			}
			if err := s.stream.Err(); err != nil {
				m.fail(s, err)
				return
			}
			if stopCh == nil {
				m.finalize(s)
				return
			}
			slog.Info("recognizer stream ended before stop", "connection_id", s.connectionID, "session_id", s.id)
		}
	}
}

func (m *Manager) handleResult(s *liveSession, r transcriber.Result) {
	if !r.IsFinal {
		m.metrics.RecognitionResults.WithLabelValues(metrics.ResultInterim).Inc()
		m.relay(s, realtime.InterimTranscript(r.Text), false)
		return
	}
	m.metrics.RecognitionResults.WithLabelValues(metrics.ResultFinal).Inc()
	s.transcript.Append(r.Text)
	m.relay(s, realtime.FinalTranscriptChunk(r.Text), false)
}

func (m *Manager) fail(s *liveSession, err error) {
	if s.ctx.Err() != nil {
		m.finished(s, metrics.OutcomeCancelled)
		return
	}
	slog.Error("recognizer stream failed", "error", err, "connection_id", s.connectionID, "session_id", s.id, "state", s.State().String())
	if !m.relay(s, realtime.TranscriptionError(transcriptionFailedMessage(err)), true) {
		m.finished(s, metrics.OutcomeCancelled)
		return
	}
	m.finished(s, metrics.OutcomeTranscriptionError)
}

// finalize produces the session outcome from the accumulated transcript.
func (m *Manager) finalize(s *liveSession) {
	_ = s.stream.Close()
	if s.State() == StateDone {
		m.finished(s, metrics.OutcomeCancelled)
		return
	}
	transcript := s.transcript.FullText()
	if strings.TrimSpace(transcript) == "" {
		slog.Info("no transcript captured; skipping summarization", "connection_id", s.connectionID, "session_id", s.id)
		if !m.relay(s, realtime.FinalMinutes(messageNoTranscript, ""), true) {
			m.finished(s, metrics.OutcomeCancelled)
			return
		}
		m.finished(s, metrics.OutcomeEmpty)
		return
	}

	slog.Info("summarizing session transcript", "connection_id", s.connectionID, "session_id", s.id, "segments", s.transcript.Len(), "transcript_chars", len(transcript))
	started := time.Now()
	minutes, err := m.summarizer.Summarize(s.ctx, transcript)
	m.metrics.SummarizationDuration.Observe(time.Since(started).Seconds())
	if err != nil {
		if s.ctx.Err() != nil {
			m.finished(s, metrics.OutcomeCancelled)
			return
		}
		slog.Error("failed to summarize transcript", "error", err, "connection_id", s.connectionID, "session_id", s.id)
		if !m.relay(s, realtime.TranscriptionError(summarizationFailedMessage(err)), true) {
			m.finished(s, metrics.OutcomeCancelled)
			return
		}
		m.finished(s, metrics.OutcomeSummarizationError)
		return
	}

	if !m.relay(s, realtime.FinalMinutes(minutes, transcript), true) {
		m.finished(s, metrics.OutcomeCancelled)
		return
	}
	m.finished(s, metrics.OutcomeMinutes)
	m.notify(s, minutes, transcript)
}

func (m *Manager) notify(s *liveSession, minutes, transcript string) {
	if m.webhook == nil {
		return
	}
	payload := webhook.BuildMinutesPayload(webhook.MinutesRecord{
		Source:        webhook.SourceLive,
		SessionID:     s.id,
		StartedAt:     s.startedAt,
		EndedAt:       time.Now(),
		SegmentCount:  s.transcript.Len(),
		Minutes:       minutes,
		RawTranscript: transcript,
	})
	ctx, cancel := context.WithTimeout(context.Background(), webhookTimeout)
	defer cancel()
	if err := m.webhook.SendMinutes(ctx, payload); err != nil {
		slog.Error("failed to send minutes webhook", "error", err, "session_id", s.id)
	}
}

func (m *Manager) finished(s *liveSession, outcome string) {
	m.metrics.SessionsFinished.WithLabelValues(outcome).Inc()
	slog.Info("session finished", "connection_id", s.connectionID, "session_id", s.id, "outcome", outcome, "stop_reason", s.StopReason(), "segments", s.transcript.Len(), "duration", time.Since(s.startedAt).String())
}

func (m *Manager) relay(s *liveSession, event realtime.Event, closing bool) bool {
	sent, err := s.relay(m.publisher, event, closing)
	if err != nil {
		slog.Warn("failed to relay event", "error", err, "event", event.Name, "connection_id", s.connectionID, "session_id", s.id)
	}
	return sent
}

func (m *Manager) send(connectionID string, event realtime.Event) {
	if err := m.publisher.Send(connectionID, event); err != nil {
		slog.Warn("failed to relay event", "error", err, "event", event.Name, "connection_id", connectionID)
	}
}
