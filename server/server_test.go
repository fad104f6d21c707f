package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	contractx "github.com/sivanlv/pharmassist/agent/contract"
)

// scriptedRunner echoes a canned event sequence per turn and records the
// history it was handed.
type scriptedRunner struct {
	histories [][]contractx.Turn
	run       func(history []contractx.Turn, text string, emit contractx.EmitFunc) error
}

func (r *scriptedRunner) RunTurn(_ context.Context, history []contractx.Turn, text string, emit contractx.EmitFunc) error {
	r.histories = append(r.histories, history)
	return r.run(history, text, emit)
}

func echoRunner() *scriptedRunner {
	r := &scriptedRunner{}
	r.run = func(_ []contractx.Turn, text string, emit contractx.EmitFunc) error {
		text = strings.TrimSpace(text)
		if text == "" {
			return contractx.ErrEmptyMessage
		}
		if err := emit(contractx.TokenEvent("echo: ")); err != nil {
			return err
		}
		return emit(contractx.FinalEvent("echo: " + text))
	}
	return r
}

func dialWS(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	if resp != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) contractx.Event {
	t.Helper()
	var ev contractx.Event
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read event: %v", err)
	}
	return ev
}

func sendText(t *testing.T, conn *websocket.Conn, text string) {
	t.Helper()
	if err := conn.WriteJSON(map[string]string{"text": text}); err != nil {
		t.Fatalf("send message: %v", err)
	}
}

func TestHealth(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(New(echoRunner(), Config{}).Router())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("get /health: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var body map[string]bool
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if !body["ok"] {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestWSTurnStreamsEvents(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(New(echoRunner(), Config{}).Router())
	defer srv.Close()
	conn := dialWS(t, srv)

	sendText(t, conn, "hello")

	token := readEvent(t, conn)
	if token.Type != contractx.EventToken || token.Text != "echo: " {
		t.Fatalf("unexpected first event: %+v", token)
	}
	final := readEvent(t, conn)
	if final.Type != contractx.EventFinal || final.Text != "echo: hello" {
		t.Fatalf("unexpected final event: %+v", final)
	}
}

func TestWSHistoryAccumulatesAcrossTurns(t *testing.T) {
	t.Parallel()

	runner := echoRunner()
	srv := httptest.NewServer(New(runner, Config{}).Router())
	defer srv.Close()
	conn := dialWS(t, srv)

	sendText(t, conn, "first")
	readEvent(t, conn) // token
	readEvent(t, conn) // final

	sendText(t, conn, "second")
	readEvent(t, conn)
	readEvent(t, conn)

	if len(runner.histories) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(runner.histories))
	}
	if len(runner.histories[0]) != 0 {
		t.Fatalf("first turn must start with empty history: %+v", runner.histories[0])
	}
	second := runner.histories[1]
	if len(second) != 2 {
		t.Fatalf("second turn history = %+v", second)
	}
	if second[0].Role != contractx.RoleUser || second[0].Content != "first" {
		t.Fatalf("unexpected user turn: %+v", second[0])
	}
	if second[1].Role != contractx.RoleAssistant || second[1].Content != "echo: first" {
		t.Fatalf("unexpected assistant turn: %+v", second[1])
	}
}

func TestWSTurnErrorKeepsConnection(t *testing.T) {
	t.Parallel()

	runner := echoRunner()
	srv := httptest.NewServer(New(runner, Config{}).Router())
	defer srv.Close()
	conn := dialWS(t, srv)

	sendText(t, conn, "   ")
	errEv := readEvent(t, conn)
	if errEv.Type != contractx.EventError || errEv.Message != "Empty message." {
		t.Fatalf("unexpected error event: %+v", errEv)
	}

	// connection must survive and the failed turn must not enter history
	sendText(t, conn, "still here")
	readEvent(t, conn)
	final := readEvent(t, conn)
	if final.Type != contractx.EventFinal || final.Text != "echo: still here" {
		t.Fatalf("unexpected final event: %+v", final)
	}
	if got := runner.histories[len(runner.histories)-1]; len(got) != 0 {
		t.Fatalf("rejected turn leaked into history: %+v", got)
	}
}

func TestWSMalformedFrameKeepsConnection(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(New(echoRunner(), Config{}).Router())
	defer srv.Close()
	conn := dialWS(t, srv)

	if err := conn.WriteMessage(websocket.TextMessage, []byte("not json at all")); err != nil {
		t.Fatalf("send raw frame: %v", err)
	}
	errEv := readEvent(t, conn)
	if errEv.Type != contractx.EventError {
		t.Fatalf("expected error event, got %+v", errEv)
	}
	if !strings.Contains(errEv.Message, "Invalid message") {
		t.Fatalf("unexpected error message: %q", errEv.Message)
	}

	// connection must survive the bad frame
	sendText(t, conn, "still alive")
	readEvent(t, conn)
	final := readEvent(t, conn)
	if final.Type != contractx.EventFinal || final.Text != "echo: still alive" {
		t.Fatalf("unexpected final event: %+v", final)
	}
}

func TestWSRoundLimitMessage(t *testing.T) {
	t.Parallel()

	runner := &scriptedRunner{}
	runner.run = func(_ []contractx.Turn, _ string, _ contractx.EmitFunc) error {
		return contractx.ErrRoundLimit
	}
	srv := httptest.NewServer(New(runner, Config{}).Router())
	defer srv.Close()
	conn := dialWS(t, srv)

	sendText(t, conn, "loop")
	errEv := readEvent(t, conn)
	if errEv.Type != contractx.EventError {
		t.Fatalf("unexpected event: %+v", errEv)
	}
	if !strings.Contains(errEv.Message, "could not complete") {
		t.Fatalf("unexpected error message: %q", errEv.Message)
	}
}
