package mcp

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/mark3labs/mcp-go/server"

	"github.com/a3tai/mcp-pdf-formfill/internal/form"
	"github.com/a3tai/mcp-pdf-formfill/internal/session"
)

// multipart overhead allowed on top of the document size limit
const uploadSlack = 1 << 20

// Router returns the HTTP API with the MCP tools mounted at /sse and /message
func (s *Server) Router() http.Handler {
	sse := server.NewSSEServer(s.mcpServer,
		server.WithBaseURL("http://"+s.config.Address()),
	)
	return s.router(sse)
}

func (s *Server) router(sse *server.SSEServer) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	if s.config.IsDebug() {
		r.Use(middleware.Logger)
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", s.sessions.Recorder().Handler())

	r.Handle("/sse", sse)
	r.Handle("/message", sse)

	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", s.handleCreateSession)
		r.Get("/{id}", s.handleGetSession)
		r.Post("/{id}/answers", s.handleSubmitAnswer)
		r.Get("/{id}/download", s.handleDownload)
		r.Delete("/{id}", s.handleDeleteSession)
	})

	return r
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		st, err := s.sessions.OpenDefault()
		if err != nil {
			writeError(w, errorStatus(err), err)
			return
		}
		writeJSON(w, http.StatusCreated, st)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxFileSize+uploadSlack)
	file, header, err := r.FormFile("file")
	switch {
	case errors.Is(err, http.ErrMissingFile):
		st, err := s.sessions.OpenDefault()
		if err != nil {
			writeError(w, errorStatus(err), err)
			return
		}
		writeJSON(w, http.StatusCreated, st)
		return
	case err != nil:
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, session.ErrTooLarge)
			return
		}
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid upload: %w", err))
		return
	}
	defer file.Close()

	st, err := s.sessions.OpenUpload(header.Filename, file)
	if err != nil {
		writeError(w, errorStatus(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, st)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	st, err := s.sessions.Status(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, errorStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleSubmitAnswer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Value string `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	result, err := s.sessions.Submit(chi.URLParam(r, "id"), req.Value)
	if err != nil {
		writeError(w, errorStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	filled, err := s.sessions.Finish(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, errorStatus(err), err)
		return
	}

	w.Header().Set("Content-Type", form.FilledMIMEType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", form.FilledFileName))
	w.Header().Set("Content-Length", fmt.Sprint(len(filled)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(filled)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.sessions.Close(id); err != nil {
		writeError(w, errorStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id, "status": "closed"})
}

// errorStatus maps service errors onto HTTP status codes
func errorStatus(err error) int {
	switch {
	case errors.Is(err, session.ErrNotFound), errors.Is(err, session.ErrFormNotFound):
		return http.StatusNotFound
	case errors.Is(err, session.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, session.ErrNotCompleted):
		return http.StatusConflict
	case form.IsParseError(err):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
