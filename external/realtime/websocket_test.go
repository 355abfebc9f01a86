package realtime

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/foxseedlab/minutagen/internal/realtime"
	"github.com/gorilla/websocket"
)

type recordedCall struct {
	kind         string
	connectionID string
	chunk        string
}

type recordingHandler struct {
	mu    sync.Mutex
	calls []recordedCall
}

func (h *recordingHandler) record(c recordedCall) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = append(h.calls, c)
}

func (h *recordingHandler) snapshot() []recordedCall {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]recordedCall(nil), h.calls...)
}

func (h *recordingHandler) HandleStart(connectionID string) {
	h.record(recordedCall{kind: "start", connectionID: connectionID})
}

func (h *recordingHandler) HandleAudioChunk(connectionID string, chunk []byte) {
	h.record(recordedCall{kind: "chunk", connectionID: connectionID, chunk: string(chunk)})
}

func (h *recordingHandler) HandleStop(connectionID string) {
	h.record(recordedCall{kind: "stop", connectionID: connectionID})
}

func (h *recordingHandler) HandleDisconnect(connectionID string) {
	h.record(recordedCall{kind: "disconnect", connectionID: connectionID})
}

func startHub(t *testing.T) (*Hub, *recordingHandler, string) {
	t.Helper()
	hub := NewHub("http://localhost:3000", 1<<20)
	handler := &recordingHandler{}
	hub.RegisterHandler(handler)
	server := httptest.NewServer(hub)
	t.Cleanup(server.Close)
	return hub, handler, "ws" + strings.TrimPrefix(server.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	return ws
}

func TestHub_DispatchesEventsInOrderAndDisconnects(t *testing.T) {
	_, handler, url := startHub(t)
	ws := dial(t, url)

	if err := ws.WriteMessage(websocket.TextMessage, []byte(`{"event":"start_transcription"}`)); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	_ = ws.WriteMessage(websocket.BinaryMessage, []byte("chunk-1"))
	_ = ws.WriteMessage(websocket.BinaryMessage, []byte("chunk-2"))
	_ = ws.WriteMessage(websocket.TextMessage, []byte(`{"event":"stop_transcription"}`))
	_ = ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	_ = ws.Close()

	waitUntil(t, time.Second, func() bool { return len(handler.snapshot()) == 5 }, "expected five handler calls")
	calls := handler.snapshot()
	wantKinds := []string{"start", "chunk", "chunk", "stop", "disconnect"}
	for i, kind := range wantKinds {
		if calls[i].kind != kind {
			t.Fatalf("call %d: got %q want %q", i, calls[i].kind, kind)
		}
		if calls[i].connectionID != calls[0].connectionID {
			t.Fatal("expected every call to carry the same connection id")
		}
	}
	if calls[0].connectionID == "" {
		t.Fatal("expected a connection id to be assigned")
	}
	if calls[1].chunk != "chunk-1" || calls[2].chunk != "chunk-2" {
		t.Fatalf("unexpected chunk order: %+v", calls)
	}
}

func TestHub_IgnoresMalformedAndUnknownMessages(t *testing.T) {
	_, handler, url := startHub(t)
	ws := dial(t, url)
	defer ws.Close()

	_ = ws.WriteMessage(websocket.TextMessage, []byte(`not json`))
	_ = ws.WriteMessage(websocket.TextMessage, []byte(`{"event":"something_else"}`))
	_ = ws.WriteMessage(websocket.TextMessage, []byte(`{"event":"start_transcription"}`))

	waitUntil(t, time.Second, func() bool { return len(handler.snapshot()) == 1 }, "expected the connection to survive bad messages")
	if handler.snapshot()[0].kind != "start" {
		t.Fatalf("unexpected call: %+v", handler.snapshot()[0])
	}
}

func TestHub_SendDeliversEventToClient(t *testing.T) {
	hub, handler, url := startHub(t)
	ws := dial(t, url)
	defer ws.Close()

	_ = ws.WriteMessage(websocket.TextMessage, []byte(`{"event":"start_transcription"}`))
	waitUntil(t, time.Second, func() bool { return len(handler.snapshot()) == 1 }, "expected start to be dispatched")
	connectionID := handler.snapshot()[0].connectionID

	if err := hub.Send(connectionID, realtime.FinalMinutes("# Minuta", "hola mundo ")); err != nil {
		t.Fatalf("send failed: %v", err)
	}

	_ = ws.SetReadDeadline(time.Now().Add(time.Second))
	_, data, err := ws.ReadMessage()
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	var got struct {
		Event string                  `json:"event"`
		Data  realtime.MinutesPayload `json:"data"`
	}
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if got.Event != realtime.EventFinalMinutes || got.Data.Minutes != "# Minuta" || got.Data.RawTranscript != "hola mundo " {
		t.Fatalf("unexpected event: %s", data)
	}
}

func TestHub_SendToUnknownConnection(t *testing.T) {
	hub := NewHub("", 0)
	err := hub.Send("missing", realtime.TranscriptionError("boom"))
	if !errors.Is(err, ErrConnectionNotFound) {
		t.Fatalf("expected ErrConnectionNotFound, got %v", err)
	}
}

func TestHub_CloseDisconnectsClients(t *testing.T) {
	hub, handler, url := startHub(t)
	ws := dial(t, url)
	defer ws.Close()

	waitUntil(t, time.Second, func() bool { return hub.ConnectionCount() == 1 }, "expected connection to be registered")
	if n := hub.Close(); n != 1 {
		t.Fatalf("expected one closed connection, got %d", n)
	}
	waitUntil(t, time.Second, func() bool {
		calls := handler.snapshot()
		return len(calls) == 1 && calls[0].kind == "disconnect"
	}, "expected disconnect after hub close")

	if _, _, err := websocket.DefaultDialer.Dial(url, nil); err == nil {
		t.Fatal("expected new connections to be refused after close")
	}
}

func TestHub_RejectsForeignOrigin(t *testing.T) {
	_, _, url := startHub(t)
	header := http.Header{}
	header.Set("Origin", "http://evil.example")
	if _, _, err := websocket.DefaultDialer.Dial(url, header); err == nil {
		t.Fatal("expected foreign origin to be rejected")
	}
}

func TestOriginAllowed(t *testing.T) {
	cases := []struct {
		allowed, origin string
		want            bool
	}{
		{"http://localhost:3000", "http://localhost:3000", true},
		{"http://localhost:3000/", "http://localhost:3000", true},
		{"http://localhost:3000", "http://other:3000", false},
		{"http://localhost:3000", "", true},
		{"*", "http://anything", true},
		{"", "http://anything", true},
	}
	for _, tc := range cases {
		if got := originAllowed(tc.allowed, tc.origin); got != tc.want {
			t.Fatalf("originAllowed(%q, %q) = %v, want %v", tc.allowed, tc.origin, got, tc.want)
		}
	}
}

func waitUntil(t *testing.T, timeout time.Duration, cond func() bool, message string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal(message)
}
