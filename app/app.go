// Package app wires configuration into the running pieces: the upstream
// provider, the artifact persister and ledger, the session registry and the
// stream relay. Nothing below this package reads configuration.
package app

import (
	"fmt"

	"mercurial/artifact"
	"mercurial/config"
	"mercurial/model"
	"mercurial/modes"
	"mercurial/provider"
	"mercurial/session"
	"mercurial/storage"
	"mercurial/stream"
)

// App holds the core application dependencies.
type App struct {
	Config    *config.Config
	Provider  model.Provider
	Store     *storage.Store
	Persister *artifact.Persister
	Sessions  *session.Manager
	Relay     *stream.Aggregator

	Version string
}

// New builds the application from cfg using the configured default provider.
func New(cfg *config.Config, version string) (*App, error) {
	p, err := provider.Initialize(cfg)
	if err != nil {
		return nil, err
	}
	return NewWithProvider(cfg, p, version)
}

// NewWithProvider builds the application around an already constructed
// provider.
func NewWithProvider(cfg *config.Config, p model.Provider, version string) (*App, error) {
	defaultMode, err := modes.Lookup(cfg.DefaultMode)
	if err != nil {
		return nil, fmt.Errorf("default_mode: %w", err)
	}

	if err := config.EnsureDir(cfg.DataDir()); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	store, err := storage.Open(cfg.DatabasePath())
	if err != nil {
		return nil, err
	}

	persister := artifact.NewPersister(cfg.CodeDir(), artifact.WithRecorder(store))
	sessions := session.NewManager(session.Options{
		Persona:     cfg.SystemPrompt,
		Preamble:    store,
		DefaultMode: defaultMode,
		MaxHistory:  cfg.MaxHistory,
	})

	if config.DebugLog != nil {
		config.DebugLog.Printf("[App] provider=%s model=%s code_dir=%s default_mode=%s",
			cfg.ActiveProvider().ID, p.GetModel(), persister.Dir(), defaultMode.ID)
	}

	return &App{
		Config:    cfg,
		Provider:  p,
		Store:     store,
		Persister: persister,
		Sessions:  sessions,
		Relay:     stream.New(p, persister),
		Version:   version,
	}, nil
}

func (a *App) Close() error {
	if a.Store == nil {
		return nil
	}
	return a.Store.Close()
}
