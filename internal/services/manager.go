// Package services wires the components of a docflow node and runs them.
package services

import (
	"context"
	"log/slog"
	"sync"

	"github.com/syntrixbase/docflow/internal/api"
	"github.com/syntrixbase/docflow/internal/config"
	"github.com/syntrixbase/docflow/internal/core/pubsub"
	"github.com/syntrixbase/docflow/internal/gateway/ws"
	"github.com/syntrixbase/docflow/internal/identity"
	"github.com/syntrixbase/docflow/internal/matching"
	"github.com/syntrixbase/docflow/internal/notify"
	"github.com/syntrixbase/docflow/internal/server"
	"github.com/syntrixbase/docflow/internal/storage"
	"github.com/syntrixbase/docflow/internal/validation"
	"golang.org/x/sync/errgroup"
)

// Manager owns every component of a node. Call Init, then Start, then
// Shutdown.
type Manager struct {
	cfg    *config.Config
	base   *slog.Logger // handed to components
	logger *slog.Logger

	store      storage.Client
	provider   pubsub.Provider
	tokens     *identity.TokenService
	validator  *validation.Service
	hub        *ws.Hub
	engine     *matching.Engine
	dispatcher *notify.Dispatcher
	funnel     *api.Funnel
	srv        server.Service

	mu     sync.Mutex
	group  *errgroup.Group
	runCtx context.Context
	cancel context.CancelFunc
}

// NewManager creates a manager for cfg.
func NewManager(cfg *config.Config, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		cfg:    cfg,
		base:   logger,
		logger: logger.With("component", "services"),
	}
}

// Funnel returns the request router, for embedded callers.
func (m *Manager) Funnel() *api.Funnel {
	return m.funnel
}

// Tokens returns the token service, nil when the node is anonymous-only.
func (m *Manager) Tokens() *identity.TokenService {
	return m.tokens
}

// Done is closed when a background component fails or Shutdown starts.
func (m *Manager) Done() <-chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.runCtx == nil {
		return nil
	}
	return m.runCtx.Done()
}
