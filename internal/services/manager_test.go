package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syntrixbase/docflow/internal/config"
	"github.com/syntrixbase/docflow/internal/core/pubsub"
	memorypubsub "github.com/syntrixbase/docflow/internal/core/pubsub/memory"
	"github.com/syntrixbase/docflow/internal/request"
	"github.com/syntrixbase/docflow/internal/storage"
	"github.com/syntrixbase/docflow/internal/storage/memory"
	"github.com/syntrixbase/docflow/pkg/model"
)

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.HTTPPort = freePort(t)
	cfg.Server.GRPCPort = freePort(t)
	cfg.Server.RateLimit.Enabled = false
	cfg.Realtime.NodeID = "test-node"
	cfg.Realtime.ApplyDefaults()
	return cfg
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// stubBackends replaces the storage and pubsub factories for one test.
func stubBackends(t *testing.T, store storage.Client, provider pubsub.Provider, storeErr, providerErr error) {
	t.Helper()
	prevStore, prevProvider := openStore, openProvider
	t.Cleanup(func() { openStore, openProvider = prevStore, prevProvider })

	openStore = func(context.Context, config.StorageConfig) (storage.Client, error) {
		if storeErr != nil {
			return nil, storeErr
		}
		return store, nil
	}
	openProvider = func(context.Context, config.PubSubConfig) (pubsub.Provider, error) {
		if providerErr != nil {
			return nil, providerErr
		}
		return provider, nil
	}
}

func startManager(t *testing.T, cfg *config.Config) *Manager {
	t.Helper()
	m := NewManager(cfg, quietLogger())
	require.NoError(t, m.Init(context.Background()))
	require.NoError(t, m.Start(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = m.Shutdown(ctx)
	})

	healthURL := fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.HTTPPort)
	require.Eventually(t, func() bool {
		resp, err := http.Get(healthURL)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)
	return m
}

func TestManager_InitRegistersControllers(t *testing.T) {
	m := NewManager(testConfig(t), quietLogger())
	require.NoError(t, m.Init(context.Background()))

	actions := m.Funnel().Actions()
	assert.Contains(t, actions[request.ControllerDocument], request.ActionCreate)
	assert.Contains(t, actions[request.ControllerDocument], request.ActionUpdateByQuery)
	assert.Contains(t, actions[request.ControllerBulk], request.ActionMWrite)
	assert.Contains(t, actions[request.ControllerBulk], request.ActionImport)
	assert.Contains(t, actions[request.ControllerRealtime], request.ActionSubscribe)
	assert.Contains(t, actions[request.ControllerRealtime], request.ActionValidate)
	assert.Nil(t, m.Tokens())

	assert.NoError(t, m.Shutdown(context.Background()))
}

func TestManager_EmbeddedExecute(t *testing.T) {
	m := NewManager(testConfig(t), quietLogger())
	require.NoError(t, m.Init(context.Background()))
	defer m.Shutdown(context.Background())

	req := request.New(request.Payload{
		Controller: request.ControllerDocument,
		Action:     request.ActionCreate,
		Index:      "shop",
		Collection: "orders",
		Body:       map[string]interface{}{"total": 12},
		Args:       map[string]interface{}{request.ArgID: "o1"},
	}, request.Context{Connection: request.Connection{Protocol: request.ProtocolInternal}})

	require.NoError(t, m.Funnel().Execute(context.Background(), req))
	doc, ok := req.Result().(*model.CanonicalDocument)
	require.True(t, ok)
	assert.Equal(t, "o1", doc.ID)
}

func TestManager_InitStorageFailure(t *testing.T) {
	stubBackends(t, nil, nil, errors.New("connection refused"), nil)

	err := NewManager(testConfig(t), quietLogger()).Init(context.Background())
	assert.ErrorContains(t, err, "failed to open memory storage")
	assert.ErrorContains(t, err, "connection refused")
}

func TestManager_InitReleasesOnFailure(t *testing.T) {
	provider := memorypubsub.New()
	stubBackends(t, memory.New(), provider, nil, nil)

	cfg := testConfig(t)
	cfg.Validation.SchemaFile = filepath.Join(t.TempDir(), "missing.yml")

	err := NewManager(cfg, quietLogger()).Init(context.Background())
	assert.ErrorContains(t, err, "failed to load validation specs")
	assert.True(t, provider.IsClosed())
}

func TestManager_InitPubSubFailure(t *testing.T) {
	stubBackends(t, memory.New(), nil, nil, errors.New("no servers available"))

	err := NewManager(testConfig(t), quietLogger()).Init(context.Background())
	assert.ErrorContains(t, err, "failed to open memory pubsub provider")
}

func TestManager_StartRequiresInit(t *testing.T) {
	m := NewManager(testConfig(t), quietLogger())
	assert.ErrorContains(t, m.Start(context.Background()), "not initialized")
	assert.Nil(t, m.Done())
	assert.NoError(t, m.Shutdown(context.Background()))
}

func TestManager_StartTwice(t *testing.T) {
	m := startManager(t, testConfig(t))
	assert.ErrorContains(t, m.Start(context.Background()), "already started")
	assert.NotNil(t, m.Done())
}

func TestManager_StartPortInUse(t *testing.T) {
	cfg := testConfig(t)
	l, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", cfg.Server.HTTPPort))
	require.NoError(t, err)
	defer l.Close()

	m := NewManager(cfg, quietLogger())
	require.NoError(t, m.Init(context.Background()))

	// the engine may be ready before the listener fails
	if err := m.Start(context.Background()); err == nil {
		select {
		case <-m.Done():
		case <-time.After(2 * time.Second):
			t.Fatal("expected the server failure to stop the node")
		}
	}
	assert.Error(t, m.Shutdown(context.Background()))
}

type wsFrame struct {
	RequestID   string                 `json:"requestId"`
	Status      int                    `json:"status"`
	Result      map[string]interface{} `json:"result"`
	Type        string                 `json:"type"`
	Room        string                 `json:"room"`
	WriteAction int                    `json:"writeAction"`
}

func readWS(t *testing.T, conn *websocket.Conn) wsFrame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	var f wsFrame
	require.NoError(t, conn.ReadJSON(&f))
	return f
}

func TestManager_SubscribeThenWriteNotifies(t *testing.T) {
	cfg := testConfig(t)
	startManager(t, cfg)

	conn, _, err := websocket.DefaultDialer.Dial(fmt.Sprintf("ws://127.0.0.1:%d/ws", cfg.Server.HTTPPort), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(map[string]interface{}{
		"requestId":  "sub-1",
		"controller": "realtime",
		"action":     "subscribe",
		"index":      "shop",
		"collection": "orders",
		"body": map[string]interface{}{
			"filters": []interface{}{
				map[string]interface{}{"field": "status", "op": "==", "value": "paid"},
			},
		},
	}))
	sub := readWS(t, conn)
	require.Equal(t, "sub-1", sub.RequestID)
	require.Equal(t, http.StatusOK, sub.Status)
	roomID, _ := sub.Result["roomId"].(string)
	require.NotEmpty(t, roomID)

	post := func(id, status string) {
		body, _ := json.Marshal(map[string]interface{}{"status": status})
		resp, err := http.Post(fmt.Sprintf("http://127.0.0.1:%d/shop/orders/%s", cfg.Server.HTTPPort, id),
			"application/json", bytes.NewReader(body))
		require.NoError(t, err)
		resp.Body.Close()
		require.Less(t, resp.StatusCode, 300)
	}
	post("o1", "pending")
	post("o2", "paid")

	n := readWS(t, conn)
	assert.Equal(t, "document", n.Type)
	assert.Equal(t, roomID, n.Room)
	assert.Equal(t, int(model.WriteActionCreate), n.WriteAction)
	assert.Equal(t, "o2", n.Result["_id"])
}

func TestManager_TokensRequired(t *testing.T) {
	cfg := testConfig(t)
	cfg.Identity.Secret = "0123456789abcdef0123"
	cfg.Identity.AllowAnonymous = false
	m := startManager(t, cfg)
	require.NotNil(t, m.Tokens())

	url := fmt.Sprintf("http://127.0.0.1:%d/shop/orders/o1", cfg.Server.HTTPPort)

	resp, err := http.Get(url)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	token, err := m.Tokens().Issue("ada", nil, time.Minute)
	require.NoError(t, err)
	req, _ := http.NewRequest(http.MethodGet, url, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	_, _, err = websocket.DefaultDialer.Dial(fmt.Sprintf("ws://127.0.0.1:%d/ws", cfg.Server.HTTPPort), nil)
	assert.Error(t, err)
}

func TestManager_WatchReloadsSpecs(t *testing.T) {
	dir := t.TempDir()
	schema := filepath.Join(dir, "schemas.yml")
	require.NoError(t, os.WriteFile(schema, []byte("shop:\n  orders:\n    strict: false\n"), 0644))

	cfg := testConfig(t)
	cfg.Validation.SchemaFile = schema
	cfg.Validation.Watch = true
	m := startManager(t, cfg)

	require.NoError(t, os.WriteFile(schema, []byte("shop:\n  orders:\n    strict: true\n    fields:\n      total:\n        type: number\n"), 0644))

	assert.Eventually(t, func() bool {
		return m.validator.ValidateDocument("shop", "orders", model.Document{"note": "x"}, false) != nil
	}, 3*time.Second, 50*time.Millisecond)
}
