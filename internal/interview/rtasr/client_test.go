package rtasr

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{}

func writePCM(t *testing.T, size int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "answer.pcm")
	if err := os.WriteFile(path, make([]byte, size), 0o644); err != nil {
		t.Fatalf("writing pcm fixture: %v", err)
	}
	return path
}

func resultMessage(t *testing.T, text string, final bool) []byte {
	t.Helper()

	payload := map[string]any{
		"ls": final,
		"cn": map[string]any{"st": map[string]any{"rt": []any{
			map[string]any{"ws": []any{
				map[string]any{"cw": []any{map[string]any{"w": text}}},
			}},
		}}},
	}
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal result payload: %v", err)
	}
	msg, err := json.Marshal(map[string]any{"code": "0", "action": "result", "data": string(data)})
	if err != nil {
		t.Fatalf("marshal result message: %v", err)
	}
	return msg
}

// asrServer runs a fake transcription endpoint. handle gets the established
// connection after the upgrade.
func asrServer(t *testing.T, handle func(conn *websocket.Conn)) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("signa") == "" {
			t.Errorf("expected a signed connection url, got %s", r.URL.String())
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		handle(conn)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/ws"
}

// drainUntilEnd consumes client frames until the end-of-stream marker.
func drainUntilEnd(conn *websocket.Conn) bool {
	for {
		msgType, payload, err := conn.ReadMessage()
		if err != nil {
			return false
		}
		if msgType == websocket.TextMessage && strings.Contains(string(payload), "end") {
			return true
		}
	}
}

func TestTranscribeMissingCredentials(t *testing.T) {
	pcm := writePCM(t, 1280)
	client := NewClient(Config{}, NewReconciler(nil, nil), nil)

	transcript, warnings := client.Transcribe(context.Background(), pcm)
	if transcript != "" {
		t.Fatalf("expected an empty transcript, got %q", transcript)
	}
	if len(warnings) != 1 || !strings.Contains(warnings[0], "not configured") {
		t.Fatalf("expected a configuration warning, got %v", warnings)
	}
	if _, err := os.Stat(pcm); !os.IsNotExist(err) {
		t.Fatalf("expected the pcm file to be removed")
	}
}

func TestTranscribeHappyPath(t *testing.T) {
	srv := asrServer(t, func(conn *websocket.Conn) {
		conn.WriteMessage(websocket.TextMessage, []byte(`{"code": 0, "action": "started"}`))
		if !drainUntilEnd(conn) {
			return
		}
		conn.WriteMessage(websocket.TextMessage, resultMessage(t, "I led the", false))
		conn.WriteMessage(websocket.TextMessage, resultMessage(t, "I led the platform migration", true))
		conn.WriteMessage(websocket.TextMessage, []byte(`{"code": "0", "action": "finished"}`))
	})

	client := NewClient(Config{
		AppID:         "app",
		APIKey:        "key",
		URL:           wsURL(srv),
		FrameInterval: time.Millisecond,
	}, NewReconciler(nil, nil), nil)

	pcm := writePCM(t, 4*1280)
	transcript, warnings := client.Transcribe(context.Background(), pcm)

	if transcript != "I led the platform migration" {
		t.Fatalf("expected the reconciled transcript, got %q", transcript)
	}
	if len(warnings) != 0 {
		t.Fatalf("expected no warnings, got %v", warnings)
	}
	if _, err := os.Stat(pcm); !os.IsNotExist(err) {
		t.Fatalf("expected the pcm file to be removed")
	}
}

func TestTranscribeServiceError(t *testing.T) {
	srv := asrServer(t, func(conn *websocket.Conn) {
		conn.WriteMessage(websocket.TextMessage, []byte(`{"code": "10800", "action": "error", "desc": "over max connect limit"}`))
	})

	client := NewClient(Config{
		AppID:         "app",
		APIKey:        "key",
		URL:           wsURL(srv),
		FrameInterval: time.Millisecond,
	}, NewReconciler(nil, nil), nil)

	pcm := writePCM(t, 1280)
	transcript, warnings := client.Transcribe(context.Background(), pcm)

	if transcript != "" {
		t.Fatalf("expected an empty transcript, got %q", transcript)
	}
	found := false
	for _, warning := range warnings {
		if strings.Contains(warning, "over max connect limit") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected the service diagnostic in the warnings, got %v", warnings)
	}
	if _, err := os.Stat(pcm); !os.IsNotExist(err) {
		t.Fatalf("expected the pcm file to be removed")
	}
}

func TestTranscribeTimeout(t *testing.T) {
	// The service accepts audio but never sends a terminal message.
	srv := asrServer(t, func(conn *websocket.Conn) {
		drainUntilEnd(conn)
		time.Sleep(5 * time.Second)
	})

	client := NewClient(Config{
		AppID:         "app",
		APIKey:        "key",
		URL:           wsURL(srv),
		FrameInterval: time.Millisecond,
		MinTimeout:    300 * time.Millisecond,
	}, NewReconciler(nil, nil), nil)

	pcm := writePCM(t, 1280)
	start := time.Now()
	transcript, warnings := client.Transcribe(context.Background(), pcm)

	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Fatalf("expected the timeout to bound the call, took %s", elapsed)
	}
	if transcript != "" {
		t.Fatalf("expected an empty transcript, got %q", transcript)
	}
	found := false
	for _, warning := range warnings {
		if strings.Contains(warning, "timed out") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a timeout warning, got %v", warnings)
	}
	if _, err := os.Stat(pcm); !os.IsNotExist(err) {
		t.Fatalf("expected the pcm file to be removed after the timeout")
	}
}

func TestTranscribeUnreachableService(t *testing.T) {
	client := NewClient(Config{
		AppID:  "app",
		APIKey: "key",
		URL:    "ws://127.0.0.1:1/v1/ws",
	}, NewReconciler(nil, nil), nil)

	pcm := writePCM(t, 1280)
	transcript, warnings := client.Transcribe(context.Background(), pcm)

	if transcript != "" {
		t.Fatalf("expected an empty transcript, got %q", transcript)
	}
	if len(warnings) == 0 {
		t.Fatalf("expected a connection warning")
	}
}

func TestSignURL(t *testing.T) {
	client := NewClient(Config{AppID: "app1", APIKey: "key1"}, NewReconciler(nil, nil), nil)
	client.now = func() time.Time { return time.Unix(1700000000, 0) }

	signed, err := client.signURL()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	parsed, err := url.Parse(signed)
	if err != nil {
		t.Fatalf("parsing signed url: %v", err)
	}
	query := parsed.Query()
	if query.Get("appid") != "app1" {
		t.Fatalf("expected appid in the query, got %s", signed)
	}
	if query.Get("ts") != "1700000000" {
		t.Fatalf("expected the timestamp in the query, got %s", signed)
	}
	if query.Get("signa") == "" {
		t.Fatalf("expected a signature in the query, got %s", signed)
	}
}

func TestComputeTimeoutFloor(t *testing.T) {
	client := NewClient(Config{AppID: "a", APIKey: "k"}, NewReconciler(nil, nil), nil)

	if got := client.computeTimeout(time.Second); got != defaultMinTimeout {
		t.Fatalf("expected the minimum timeout for short audio, got %s", got)
	}
	long := client.computeTimeout(5 * time.Minute)
	if long <= defaultMinTimeout {
		t.Fatalf("expected a scaled timeout for long audio, got %s", long)
	}
}
