// Package server assembles all HTTP handlers and starts the server.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/matthewbaird/formengine/internal/activity"
	"github.com/matthewbaird/formengine/internal/definition"
	"github.com/matthewbaird/formengine/internal/eventbus"
	"github.com/matthewbaird/formengine/internal/expr"
	"github.com/matthewbaird/formengine/internal/form"
	"github.com/matthewbaird/formengine/internal/inputs"
	"github.com/matthewbaird/formengine/internal/session"
	"github.com/matthewbaird/formengine/internal/wire"
)

// Config holds server configuration.
type Config struct {
	Port       int
	Definition *definition.Definition
	Choices    map[string][]form.Choice // merged over the definition's own lists
	Sessions   *session.Manager
	Bus        *eventbus.Bus  // optional; enables pushed events
	Activity   activity.Store // optional; enables session history
}

// Server serves one form definition.
type Server struct {
	cfg     Config
	configs []form.FieldConfig
	rules   form.Rules
	choices map[string][]form.Choice
	maker   form.Maker
}

// New compiles the definition and prepares the form factory.
func New(cfg Config) (*Server, error) {
	if cfg.Definition == nil {
		return nil, errors.New("server: no form definition")
	}
	if cfg.Sessions == nil {
		cfg.Sessions = session.NewManager(0, 0)
	}

	configs, err := cfg.Definition.Configs()
	if err != nil {
		return nil, fmt.Errorf("building field configs: %w", err)
	}
	env, err := expr.NewEnv()
	if err != nil {
		return nil, err
	}
	rules, err := cfg.Definition.Compile(env)
	if err != nil {
		return nil, fmt.Errorf("compiling rules: %w", err)
	}

	choices := make(map[string][]form.Choice, len(cfg.Definition.Choices)+len(cfg.Choices))
	for k, v := range cfg.Definition.Choices {
		choices[k] = v
	}
	for k, v := range cfg.Choices {
		choices[k] = v
	}

	return &Server{
		cfg:     cfg,
		configs: configs,
		rules:   rules,
		choices: choices,
		maker:   form.Install(inputs.Builtins()),
	}, nil
}

// NewForm builds a fresh form instance and the props it renders with.
func (s *Server) NewForm() (*form.Form, form.FormProps, error) {
	f, err := s.maker(s.configs, s.cfg.Definition.Options()...)
	if err != nil {
		return nil, form.FormProps{}, err
	}
	return f, form.FormProps{
		Validation: s.rules.Validation,
		Readonly:   s.rules.Readonly,
		Hide:       s.rules.Hide,
		Choices:    s.choices,
	}, nil
}

// Handler returns the router with every route and middleware registered.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(Recovery, Logging)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/form", s.getDefinition)
		r.Get("/form/render", s.renderForm)
		r.Method(http.MethodGet, "/form/ws", wire.NewHandler(s.cfg.Sessions, s.NewForm, s.cfg.Bus))
		r.Get("/sessions", s.listSessions)
		r.Get("/sessions/{id}/events", s.sessionEvents)
	})
	return r
}

// Run starts the HTTP server with all routes registered.
func Run(ctx context.Context, cfg Config) error {
	s, err := New(cfg)
	if err != nil {
		return err
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	log.Printf("starting server on %s (form %q, %d fields)", addr, cfg.Definition.Name, len(s.configs))

	server := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
