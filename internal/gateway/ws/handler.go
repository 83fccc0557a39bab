package ws

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/syntrixbase/docflow/internal/identity"
	"github.com/syntrixbase/docflow/internal/request"
)

// Config controls the websocket endpoint.
type Config struct {
	AllowedOrigins []string      `yaml:"allowed_origins"`
	AllowDevOrigin bool          `yaml:"allow_dev_origin"`
	SendBuffer     int           `yaml:"send_buffer"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// DefaultConfig returns the default websocket configuration.
func DefaultConfig() Config {
	return Config{
		SendBuffer:     256,
		RequestTimeout: 30 * time.Second,
	}
}

// ApplyDefaults fills zero values with defaults.
func (c *Config) ApplyDefaults() {
	d := DefaultConfig()
	if c.SendBuffer <= 0 {
		c.SendBuffer = d.SendBuffer
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = d.RequestTimeout
	}
}

// Handler upgrades HTTP requests to websocket connections.
type Handler struct {
	hub      *Hub
	auth     *identity.Authenticator
	cfg      Config
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewHandler creates the websocket endpoint. A nil authenticator accepts
// every caller as anonymous.
func NewHandler(hub *Hub, auth *identity.Authenticator, cfg Config) *Handler {
	cfg.ApplyDefaults()
	h := &Handler{
		hub:    hub,
		auth:   auth,
		cfg:    cfg,
		logger: hub.logger,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return checkAllowedOrigin(r.Header.Get("Origin"), r.Host, h.cfg) == nil
		},
	}
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	user := request.Anonymous()
	if h.auth != nil {
		u, _, err := h.auth.Authenticate(r)
		if err != nil {
			http.Error(w, "Invalid or expired token", http.StatusUnauthorized)
			return
		}
		user = u
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied to the client
		h.logger.Warn("WebSocket upgrade failed", "error", err)
		return
	}

	c := newClient(uuid.New().String(), h.hub, conn, user, h.cfg)
	if !h.hub.Register(c) {
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
		conn.Close()
		return
	}

	// requests keep the handshake context values, not its cancellation
	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	defer cancel()

	go c.writePump()
	c.readPump(ctx)
}

func checkAllowedOrigin(origin string, reqHost string, cfg Config) error {
	if origin == "" {
		return nil
	}

	parsed, err := url.Parse(origin)
	if err != nil {
		return errors.New("origin not allowed")
	}

	// Allow same host origin
	originHost := strings.Split(parsed.Host, ":")[0]
	reqHostPart := strings.Split(reqHost, ":")[0]
	if strings.EqualFold(originHost, reqHostPart) {
		return nil
	}

	if cfg.AllowDevOrigin {
		if originHost == "localhost" || originHost == "127.0.0.1" {
			return nil
		}
	}

	trimmedOrigin := strings.TrimRight(origin, "/")
	for _, allowed := range cfg.AllowedOrigins {
		if allowed == "" {
			continue
		}
		if strings.EqualFold(strings.TrimRight(allowed, "/"), trimmedOrigin) {
			return nil
		}
	}
	return errors.New("origin not allowed")
}
