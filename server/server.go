package server

import (
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"strings"

	"github.com/jrsteele09/go-module-shell/internal/config"
	"github.com/jrsteele09/go-module-shell/shell"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

type Server struct {
	env     string // Environment (e.g., "DEV", "PROD")
	mux     *http.ServeMux
	routes  []string
	config  config.Config
	shell   *shell.Shell
	dataFS  fs.FS
	limiter *clientLimiter
}

type Option func(*Server)

// WithEventRateLimit sets the per-client budget for event publishing and
// activity reports.
func WithEventRateLimit(limit rate.Limit, burst int) Option {
	return func(s *Server) {
		s.limiter = newClientLimiter(limit, burst)
	}
}

// WithDataFS replaces the data folder the registry document is served
// from.
func WithDataFS(fsys fs.FS) Option {
	return func(s *Server) {
		s.dataFS = fsys
	}
}

func New(config config.Config, sh *shell.Shell, opts ...Option) *Server {
	s := &Server{
		env:     config.GetEnv(),
		mux:     http.NewServeMux(),
		config:  config,
		shell:   sh,
		dataFS:  os.DirFS(config.GetDataFolder()),
		limiter: newClientLimiter(DefaultEventRate, DefaultEventBurst),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.initRoutes()
	s.logRoutes()

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("", parts[0])
		}
	}
}

func colourMethod(method string) string {
	paddedMethod := fmt.Sprintf(" %-7s", method)
	if color, ok := methodColors[method]; ok {
		return color + paddedMethod + ResetColor
	}
	return Gray + paddedMethod + ResetColor
}

func logRoute(method, path string) {
	log.Info().Msgf("[%-19s] %s", colourMethod(method), path)
}

func logError(method, path, error string) {
	log.Error().Msgf("[%-19s] %s %s", colourMethod(method), path, Red+error+ResetColor)
}
