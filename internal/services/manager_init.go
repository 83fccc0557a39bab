package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/syntrixbase/docflow/internal/api"
	"github.com/syntrixbase/docflow/internal/config"
	"github.com/syntrixbase/docflow/internal/core/pubsub"
	memorypubsub "github.com/syntrixbase/docflow/internal/core/pubsub/memory"
	natspubsub "github.com/syntrixbase/docflow/internal/core/pubsub/nats"
	"github.com/syntrixbase/docflow/internal/gateway/ws"
	"github.com/syntrixbase/docflow/internal/identity"
	"github.com/syntrixbase/docflow/internal/matching"
	"github.com/syntrixbase/docflow/internal/notify"
	"github.com/syntrixbase/docflow/internal/realtime"
	"github.com/syntrixbase/docflow/internal/request"
	"github.com/syntrixbase/docflow/internal/server"
	"github.com/syntrixbase/docflow/internal/storage"
	"github.com/syntrixbase/docflow/internal/storage/memory"
	"github.com/syntrixbase/docflow/internal/storage/mongo"
	"github.com/syntrixbase/docflow/internal/validation"
)

// Factories are variables so tests can replace the external backends.
var (
	openStore = func(ctx context.Context, cfg config.StorageConfig) (storage.Client, error) {
		if cfg.Backend == config.StorageMongo {
			return mongo.Connect(ctx, cfg.Mongo)
		}
		return memory.New(), nil
	}

	openProvider = func(ctx context.Context, cfg config.PubSubConfig) (pubsub.Provider, error) {
		if cfg.Provider != config.PubSubNATS {
			return memorypubsub.New(), nil
		}
		p := natspubsub.NewProvider(cfg.NATSOptions())
		if err := p.Connect(ctx); err != nil {
			return nil, err
		}
		return p, nil
	}
)

// Init connects the backends and wires the components. Nothing runs until
// Start. A failed Init releases what it opened.
func (m *Manager) Init(ctx context.Context) (err error) {
	defer func() {
		if err != nil {
			m.release(context.WithoutCancel(ctx))
		}
	}()

	if err := m.initStorage(ctx); err != nil {
		return err
	}
	if err := m.initPubSub(ctx); err != nil {
		return err
	}
	if err := m.initIdentity(); err != nil {
		return err
	}
	if err := m.initValidation(); err != nil {
		return err
	}
	if err := m.initRealtime(); err != nil {
		return err
	}
	m.initFunnel()
	m.initServer()
	return nil
}

func (m *Manager) initStorage(ctx context.Context) error {
	store, err := openStore(ctx, m.cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to open %s storage: %w", m.cfg.Storage.Backend, err)
	}
	m.store = store
	m.logger.Info("Storage ready", "backend", m.cfg.Storage.Backend)
	return nil
}

func (m *Manager) initPubSub(ctx context.Context) error {
	provider, err := openProvider(ctx, m.cfg.PubSub)
	if err != nil {
		return fmt.Errorf("failed to open %s pubsub provider: %w", m.cfg.PubSub.Provider, err)
	}
	m.provider = provider
	m.logger.Info("PubSub ready", "provider", m.cfg.PubSub.Provider, "stream", m.cfg.PubSub.Stream)
	return nil
}

func (m *Manager) initIdentity() error {
	if m.cfg.Identity.Secret == "" {
		m.logger.Warn("No identity secret configured, accepting anonymous requests only")
		return nil
	}
	tokens, err := identity.NewTokenService(m.cfg.Identity)
	if err != nil {
		return fmt.Errorf("failed to create token service: %w", err)
	}
	m.tokens = tokens
	return nil
}

func (m *Manager) initValidation() error {
	m.validator = validation.New(validation.WithLogger(m.base))
	if file := m.cfg.Validation.SchemaFile; file != "" {
		if err := m.validator.LoadFile(file); err != nil {
			return fmt.Errorf("failed to load validation specs: %w", err)
		}
		m.logger.Info("Loaded validation specs", "file", file)
	}
	return nil
}

func (m *Manager) initRealtime() error {
	m.hub = ws.NewHub(m.base)

	engine, err := matching.New(m.cfg.Realtime.NodeID, m.hub, m.provider,
		matching.WithLogger(m.base),
		matching.WithStream(m.cfg.PubSub.PublisherOptions()),
	)
	if err != nil {
		return fmt.Errorf("failed to create matching engine: %w", err)
	}
	m.engine = engine
	m.hub.OnDisconnect(engine.Disconnect)

	m.dispatcher = notify.NewDispatcher(engine, m.cfg.Realtime.NotifyConfig(), m.base)
	return nil
}

func (m *Manager) initFunnel() {
	m.funnel = api.NewFunnel(m.base, api.WithNotifier(m.dispatcher))

	documents := api.NewDocumentController(m.store, api.WithValidator(m.validator))
	m.funnel.Register(request.ControllerDocument, documents.Actions())
	m.funnel.Register(request.ControllerBulk, api.NewBulkController(m.store, m.base).Actions())

	rt := realtime.NewController(m.engine, m.validator, m.base)
	for action, h := range rt.Actions() {
		m.funnel.Handle(request.ControllerRealtime, action, api.Handler(h))
	}

	m.hub.SetExecutor(m.funnel)
}

func (m *Manager) initServer() {
	m.srv = server.New(m.cfg.Server, m.base)

	auth := identity.NewAuthenticator(m.tokens, m.cfg.Identity.AllowAnonymous)
	routes := http.NewServeMux()
	api.NewHTTPHandler(m.funnel, m.cfg.Server.HTTPWriteTimeout, m.base).RegisterRoutes(routes)

	m.srv.RegisterHTTPHandler("GET /health", routes)
	m.srv.RegisterHTTPHandler("GET /ws", ws.NewHandler(m.hub, auth, m.cfg.Realtime.WebSocket))
	m.srv.RegisterHTTPHandler("/", auth.Middleware(routes))
}

// release closes the backends opened so far.
func (m *Manager) release(ctx context.Context) error {
	var errs []error
	if m.provider != nil {
		if err := m.provider.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close pubsub provider: %w", err))
		}
		m.provider = nil
	}
	if m.store != nil {
		if err := m.store.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to close storage: %w", err))
		}
		m.store = nil
	}
	return errors.Join(errs...)
}
