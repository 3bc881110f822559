// Package server exposes sessions and the streaming relay over HTTP.
//
// Chat replies are Server-Sent Events: one `data: <json model.Event>` frame per
// event, flushed as soon as it is written. A client that disconnects cancels
// its stream through the request context.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"mercurial/artifact"
	"mercurial/config"
	"mercurial/model"
	"mercurial/modes"
	"mercurial/session"
	"mercurial/storage"
	"mercurial/stream"
)

// Server provides the HTTP API.
type Server struct {
	sessions *session.Manager
	relay    *stream.Aggregator
	store    *storage.Store
	mux      *http.ServeMux
	addr     string

	// main backs the single-conversation /chat and /clear routes.
	main *session.Session
}

func New(sessions *session.Manager, relay *stream.Aggregator, store *storage.Store, addr string) (*Server, error) {
	main, err := sessions.Create("")
	if err != nil {
		return nil, err
	}
	s := &Server{
		sessions: sessions,
		relay:    relay,
		store:    store,
		mux:      http.NewServeMux(),
		addr:     addr,
		main:     main,
	}
	s.setupRoutes()
	return s, nil
}

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /modes", s.handleModes)

	s.mux.HandleFunc("GET /sessions", s.handleListSessions)
	s.mux.HandleFunc("POST /sessions", s.handleCreateSession)
	s.mux.HandleFunc("GET /sessions/{id}", s.handleGetSession)
	s.mux.HandleFunc("DELETE /sessions/{id}", s.handleDeleteSession)
	s.mux.HandleFunc("PUT /sessions/{id}/mode", s.handleSetMode)
	s.mux.HandleFunc("POST /sessions/{id}/clear", s.handleClear)
	s.mux.HandleFunc("POST /sessions/{id}/chat", s.handleChat)

	s.mux.HandleFunc("POST /chat", s.handleChat)
	s.mux.HandleFunc("POST /clear", s.handleClear)

	s.mux.HandleFunc("GET /prefs", s.handleGetPrefs)
	s.mux.HandleFunc("PUT /prefs", s.handlePutPrefs)
	s.mux.HandleFunc("GET /profile", s.handleGetProfile)
	s.mux.HandleFunc("PUT /profile", s.handlePutProfile)
	s.mux.HandleFunc("GET /artifacts", s.handleArtifacts)
}

// Handler returns the API with request logging and CORS applied.
func (s *Server) Handler() http.Handler {
	return Logging(CORS(s.mux))
}

// Start serves until ctx is done, then shuts down gracefully. Streams in
// progress are cancelled through their request contexts.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		if config.DebugLog != nil {
			config.DebugLog.Printf("[Server] Listening on %s", s.addr)
		}
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) session(r *http.Request) (*session.Session, error) {
	id := r.PathValue("id")
	if id == "" {
		return s.main, nil
	}
	return s.sessions.Get(id)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleModes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, modes.All())
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.sessions.List())
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Mode    string          `json:"mode"`
		History []model.Message `json:"history"`
	}
	if err := decodeOptional(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	sess, err := s.sessions.Create(req.Mode)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	if len(req.History) > 0 {
		if err := sess.Seed(req.History); err != nil {
			s.sessions.Delete(sess.ID())
			writeError(w, statusFor(err), err)
			return
		}
	}

	writeJSON(w, http.StatusCreated, sess.Info())
}

type sessionView struct {
	session.Info
	History []model.Message `json:"history"`
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(r)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, sessionView{Info: sess.Info(), History: sess.History()})
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Delete(r.PathValue("id")); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSetMode(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(r)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	var req struct {
		Mode string `json:"mode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := sess.SetMode(req.Mode); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, sess.Info())
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(r)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	var req struct {
		ResetMode bool `json:"reset_mode"`
	}
	if err := decodeOptional(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	sess.Clear(req.ResetMode)
	writeJSON(w, http.StatusOK, map[string]any{"status": "success", "message": "conversation history cleared", "mode": sess.Mode().ID})
}

// ChatRequest is the body of a chat call. Mode, when set, switches the
// session's mode for this and later turns once the turn is admitted. History
// seeds an empty session with prior turns.
type ChatRequest struct {
	Message string          `json:"message"`
	Mode    string          `json:"mode,omitempty"`
	History []model.Message `json:"history,omitempty"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(r)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, session.ErrEmptyInput)
		return
	}
	if req.Mode != "" {
		if _, err := modes.Lookup(req.Mode); err != nil {
			writeError(w, statusFor(err), err)
			return
		}
	}
	if len(req.History) > 0 && len(sess.History()) == 0 {
		if err := sess.Seed(req.History); err != nil && !errors.Is(err, session.ErrNotEmpty) {
			writeError(w, statusFor(err), err)
			return
		}
	}

	turn, err := sess.BeginIn(r.Context(), req.Mode, req.Message)
	if errors.Is(err, session.ErrBusy) {
		sink := newSSESink(w)
		sink.start(http.StatusConflict)
		sink.Send(model.Busy(err.Error()))
		return
	}
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	sink := newSSESink(w)
	sink.start(http.StatusOK)
	if _, err := s.relay.Run(r.Context(), turn, sink); err != nil && config.DebugLog != nil {
		config.DebugLog.Printf("[Server] chat %s: %v", sess.ID(), err)
	}
}

func (s *Server) handleGetPrefs(w http.ResponseWriter, r *http.Request) {
	prefs, err := s.store.GetPrefs(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, prefs)
}

// handlePutPrefs merges the supplied fields into the stored preferences.
func (s *Server) handlePutPrefs(w http.ResponseWriter, r *http.Request) {
	prefs, err := s.store.GetPrefs(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if err := json.NewDecoder(r.Body).Decode(&prefs); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.store.SetPrefs(r.Context(), prefs); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

type profile struct {
	Memory string `json:"memory"`
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	memory, err := s.store.GetMemory(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, profile{Memory: memory})
}

func (s *Server) handlePutProfile(w http.ResponseWriter, r *http.Request) {
	var p profile
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.store.SetMemory(r.Context(), p.Memory); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleArtifacts(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		limit = n
	}

	list, err := s.store.ListArtifacts(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if list == nil {
		list = []artifact.Artifact{}
	}
	writeJSON(w, http.StatusOK, list)
}
