package server

import (
	"encoding/json"
	"io"
	"io/fs"
	"net/http"
	"time"

	"github.com/jrsteele09/go-module-shell/events"
	"github.com/jrsteele09/go-module-shell/federation"
	apperrors "github.com/jrsteele09/go-module-shell/internal/errors"
	"github.com/jrsteele09/go-module-shell/session"
	"github.com/rs/zerolog/log"
)

const (
	contentTypeJSON = "application/json; charset=utf-8"
	maxEventBody    = 64 << 10
)

// RegistryDocumentHandler serves the registry document from the data
// folder.
func (s *Server) RegistryDocumentHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := fs.ReadFile(s.dataFS, registryDocument)
		if err != nil {
			logError(r.Method, r.URL.Path, err.Error())
			http.Error(w, "404 - Registry Not Found", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", contentTypeJSON)
		w.Header().Set("Cache-Control", "no-cache")
		_, _ = w.Write(data)
	}
}

type moduleResponse struct {
	Slug           string            `json:"slug"`
	Name           string            `json:"name"`
	Entry          string            `json:"entry"`
	ActiveWhenPath string            `json:"activeWhenPath"`
	Exposes        map[string]string `json:"exposes,omitempty"`
	Registered     bool              `json:"registered"`
}

// ModuleHandler returns the mount descriptor of one remote module.
func (s *Server) ModuleHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slug := r.PathValue("slug")
		entry, ok := s.shell.Remote(slug)
		if !ok {
			writeJSONError(w, "not_found", "unknown module", http.StatusNotFound)
			return
		}
		_, registered := s.shell.Container().Remote(entry.Name)
		writeJSON(w, http.StatusOK, moduleResponse{
			Slug:           slug,
			Name:           entry.Name,
			Entry:          entry.Entry,
			ActiveWhenPath: entry.ActiveWhenPath,
			Exposes:        entry.Exposes,
			Registered:     registered,
		})
	}
}

// RedirectHandler sends the browser to ?to= when it is a same-origin
// path or an allowlisted absolute URL.
func (s *Server) RedirectHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		target, err := s.shell.RedirectTarget(r.URL.Query().Get("to"))
		if err != nil {
			logError(r.Method, r.URL.Path, err.Error())
			http.Error(w, "invalid redirect target", http.StatusBadRequest)
			return
		}
		http.Redirect(w, r, target, http.StatusFound)
	}
}

type remotesResponse struct {
	Dynamic      bool                `json:"dynamic"`
	Registration string              `json:"registration"`
	Remotes      []federation.Remote `json:"remotes"`
}

func (s *Server) RemotesHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, remotesResponse{
			Dynamic:      s.shell.Dynamic(),
			Registration: s.shell.RegistrationOutcome().String(),
			Remotes:      s.shell.Container().Remotes(),
		})
	}
}

type idleResponse struct {
	Enabled   bool       `json:"enabled"`
	State     string     `json:"state"`
	Warning   bool       `json:"warning"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

type sessionResponse struct {
	session.Snapshot
	Idle idleResponse `json:"idle"`
}

// SessionHandler returns the session without its access token.
func (s *Server) SessionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := sessionResponse{Snapshot: s.shell.Store().Snapshot()}
		resp.Idle.Warning = s.shell.IdleWarning()
		if m := s.shell.Monitor(); m != nil {
			resp.Idle.Enabled = m.Enabled()
			resp.Idle.State = m.State().String()
			if exp := m.ExpiresAt(); !exp.IsZero() {
				resp.Idle.ExpiresAt = &exp
			}
		}
		w.Header().Set("Cache-Control", "no-store")
		writeJSON(w, http.StatusOK, resp)
	}
}

type activityRequest struct {
	Kind string `json:"kind"`
}

func (s *Server) ActivityHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req activityRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, maxEventBody)).Decode(&req); err != nil {
			writeJSONError(w, "invalid_request", "malformed activity", http.StatusBadRequest)
			return
		}
		if !s.shell.Activity(req.Kind) {
			writeJSONError(w, "invalid_request", "untracked activity kind", http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.shell.Logout(r.Context()); err != nil {
			if apperrors.Is(err, apperrors.ErrNotAuthenticated) {
				writeJSONError(w, "not_authenticated", "no active session", http.StatusUnauthorized)
				return
			}
			logError(r.Method, r.URL.Path, err.Error())
			writeJSONError(w, "server_error", "logout failed", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

type publishRequest struct {
	Name    string                  `json:"name"`
	Payload events.AuthEventPayload `json:"payload"`
}

// PublishEventHandler lets remote modules running outside the process
// publish authentication events onto the shell's bus.
func (s *Server) PublishEventHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req publishRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, maxEventBody)).Decode(&req); err != nil {
			writeJSONError(w, "invalid_request", "malformed event", http.StatusBadRequest)
			return
		}
		name, err := events.ParseAuthName(req.Name)
		if err != nil {
			log.Warn().Err(err).Msg("rejected event publish")
			writeJSONError(w, "invalid_request", "unknown event", http.StatusBadRequest)
			return
		}
		delivered := events.PublishAuth(r.Context(), s.shell.Bus(), name, req.Payload)
		writeJSON(w, http.StatusAccepted, map[string]int{"delivered": delivered})
	}
}

func (s *Server) PreflightHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":    "ok",
			"hydrating": s.shell.Store().IsHydrating(),
		})
	}
}

func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(v)
}

// writeJSONError writes an error response in the OAuth2 error shape
func writeJSONError(w http.ResponseWriter, errorCode, description string, statusCode int) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":             errorCode,
		"error_description": description,
	})
}
