// Package server exposes a Coordinator over HTTP: a small REST surface for
// the wheel's operations and a WebSocket that pushes state and prompts.
package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/fakeyudi/linewheel/internal/app"
)

// Options configures a Server.
type Options struct {
	// ReasonColumn adds the 理由 column to /export.csv.
	ReasonColumn bool
	Location     *time.Location
	Logger       *slog.Logger
}

// Server routes HTTP requests to a Coordinator and fans its state changes
// out to WebSocket clients.
type Server struct {
	coord       *app.Coordinator
	hub         *Hub
	opts        Options
	logger      *slog.Logger
	unsubscribe func()
}

// New wires coord to hub. The hub should also be the coordinator's
// Prompter so watchdog and break prompts reach the clients.
func New(coord *app.Coordinator, hub *Hub, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	s := &Server{coord: coord, hub: hub, opts: opts, logger: opts.Logger}
	hub.onConnect = func() []*Message {
		msg, err := NewMessage(TypeStateUpdate, coord.Status())
		if err != nil {
			return nil
		}
		return []*Message{msg}
	}
	s.unsubscribe = coord.Subscribe(func(st app.Status) {
		hub.send(TypeStateUpdate, st)
	})
	return s
}

// Handler returns an http.Handler with all routes configured.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/ws", s.hub.serveWS)

	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("POST /lines/{line}/start", s.handleStart)
	mux.HandleFunc("POST /lines/{line}/stop", s.handleStop)
	mux.HandleFunc("POST /lines/{line}/memo", s.handleMemo)
	mux.HandleFunc("POST /undo", s.handleUndo)
	mux.HandleFunc("POST /select/{line}", s.handleSelect)
	mux.HandleFunc("POST /center", s.handleCenter)
	mux.HandleFunc("GET /logs", s.handleLogs)
	mux.HandleFunc("DELETE /logs/{line}/{id}", s.handleDeleteLog)
	mux.HandleFunc("GET /export.csv", s.handleExportCSV)
	mux.HandleFunc("GET /config", s.handleConfig)
	mux.HandleFunc("POST /config/import", s.handleImportConfig)

	return corsMiddleware(mux)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully and disconnects WebSocket clients.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.hub.closeAll()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

// Close stops forwarding state changes.
func (s *Server) Close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
	s.hub.closeAll()
}
