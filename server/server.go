package server

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	contractx "github.com/sivanlv/pharmassist/agent/contract"
	sessionx "github.com/sivanlv/pharmassist/agent/session"
)

// TurnRunner drives one user turn to a terminal final event.
type TurnRunner interface {
	RunTurn(ctx context.Context, history []contractx.Turn, text string, emit contractx.EmitFunc) error
}

type Config struct {
	HistoryWindow int
}

type Server struct {
	runner   TurnRunner
	window   int
	upgrader websocket.Upgrader
}

func New(runner TurnRunner, cfg Config) *Server {
	window := cfg.HistoryWindow
	if window <= 0 {
		window = sessionx.DefaultWindow
	}
	return &Server{
		runner: runner,
		window: window,
		upgrader: websocket.Upgrader{
			// same posture as the original CORS-open deployment
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/health", handleHealth)
	r.Get("/ws", s.handleWS)
	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]bool{"ok": true})
}
