package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("DOCFLOW_NODE_ID", "node-a")
	dir := t.TempDir()

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, StorageMemory, cfg.Storage.Backend)
	assert.Equal(t, PubSubMemory, cfg.PubSub.Provider)
	assert.Equal(t, "DOCFLOW", cfg.PubSub.Stream)
	assert.Equal(t, "node-a", cfg.Realtime.NodeID)
	assert.Equal(t, 1024, cfg.Realtime.Dispatcher.QueueSize)
	assert.Equal(t, 256, cfg.Realtime.WebSocket.SendBuffer)
	assert.True(t, cfg.Identity.AllowAnonymous)
	assert.Empty(t, cfg.Identity.Secret)
	assert.Equal(t, 7512, cfg.Server.HTTPPort)
	assert.Equal(t, filepath.Join(filepath.Dir(dir), "logs"), cfg.Logging.Dir)
}

func TestLoadConfig_Layers(t *testing.T) {
	t.Setenv("DOCFLOW_NODE_ID", "")
	dir := t.TempDir()
	writeConfig(t, dir, "config.yml", `
server:
  http_port: 8000
storage:
  backend: mongo
  mongo:
    uri: mongodb://db:27017
realtime:
  node_id: from-file
  dispatcher:
    rate: 250
validation:
  schema_file: schemas.yml
  watch: true
`)
	writeConfig(t, dir, "config.local.yml", `
server:
  http_port: 8001
identity:
  secret: local-secret-0123456789
`)
	t.Setenv("DOCFLOW_MONGO_DATABASE", "from_env")

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, 8001, cfg.Server.HTTPPort)
	assert.Equal(t, StorageMongo, cfg.Storage.Backend)
	assert.Equal(t, "mongodb://db:27017", cfg.Storage.Mongo.URI)
	assert.Equal(t, "from_env", cfg.Storage.Mongo.Database)
	assert.Equal(t, "documents", cfg.Storage.Mongo.Collection)
	assert.Equal(t, "from-file", cfg.Realtime.NodeID)
	assert.Equal(t, 250.0, cfg.Realtime.Dispatcher.Rate)
	assert.Equal(t, 250, cfg.Realtime.Dispatcher.Burst)
	assert.Equal(t, filepath.Join(dir, "schemas.yml"), cfg.Validation.SchemaFile)
	assert.Equal(t, "local-secret-0123456789", cfg.Identity.Secret)
	assert.Equal(t, time.Hour, cfg.Identity.TokenTTL)

	nc := cfg.Realtime.NotifyConfig()
	assert.Equal(t, 250.0, nc.Rate)
	assert.Equal(t, 250, nc.Burst)
	assert.Equal(t, 5*time.Second, nc.DrainTimeout)

	po := cfg.PubSub.PublisherOptions()
	assert.Equal(t, "DOCFLOW", po.StreamName)
	assert.Equal(t, time.Hour, po.MaxAge)
	assert.Equal(t, "nats://localhost:4222", cfg.PubSub.NATSOptions().URL)
}

func TestLoadConfig_BadFilesAreSkipped(t *testing.T) {
	t.Setenv("DOCFLOW_NODE_ID", "node-a")
	dir := t.TempDir()
	// a directory where a file is expected cannot be read
	require.NoError(t, os.Mkdir(filepath.Join(dir, "config.yml"), 0755))
	writeConfig(t, dir, "config.local.yml", "not: [valid")

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, StorageMemory, cfg.Storage.Backend)
}

func TestLoadConfig_Invalid(t *testing.T) {
	t.Setenv("DOCFLOW_NODE_ID", "node-a")
	tests := []struct {
		name    string
		content string
		env     map[string]string
		wantErr string
	}{
		{"storage backend", "storage:\n  backend: redis\n", nil, "unknown storage backend"},
		{"pubsub provider", "pubsub:\n  provider: kafka\n", nil, "unknown pubsub provider"},
		{"pubsub storage", "pubsub:\n  storage: tape\n", nil, "invalid pubsub storage"},
		{"short secret", "identity:\n  secret: short\n", nil, "identity.secret"},
		{"tokens required", "identity:\n  allow_anonymous: false\n", nil, "identity.secret"},
		{"watch without schema", "validation:\n  watch: true\n", nil, "validation.watch"},
		{"log level from env", "", map[string]string{"DOCFLOW_LOG_LEVEL": "chatty"}, "invalid log level"},
		{"ports", "server:\n  http_port: 9000\n  grpc_port: 9000\n", nil, "must differ"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			dir := t.TempDir()
			writeConfig(t, dir, "config.yml", tt.content)

			_, err := LoadConfig(dir)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestPubSubConfig_EnvOverrides(t *testing.T) {
	t.Setenv("DOCFLOW_PUBSUB_PROVIDER", "nats")
	t.Setenv("DOCFLOW_NATS_URL", "nats://bus:4222")
	t.Setenv("DOCFLOW_NATS_MAX_RECONNECTS", "5")

	cfg := DefaultPubSubConfig()
	cfg.ApplyEnvOverrides()
	assert.Equal(t, PubSubNATS, cfg.Provider)
	assert.NoError(t, cfg.Validate())

	opts := cfg.NATSOptions()
	assert.Equal(t, "nats://bus:4222", opts.URL)
	assert.Equal(t, 5, opts.MaxReconnects)
}

func TestRealtimeConfig_EnvOverrides(t *testing.T) {
	t.Setenv("DOCFLOW_NODE_ID", "node-b")
	t.Setenv("DOCFLOW_DISPATCHER_QUEUE_SIZE", "64")
	t.Setenv("DOCFLOW_DISPATCHER_RATE", "12.5")

	cfg := DefaultRealtimeConfig()
	cfg.ApplyEnvOverrides()
	cfg.ApplyDefaults()
	assert.Equal(t, "node-b", cfg.NodeID)
	assert.Equal(t, 64, cfg.Dispatcher.QueueSize)
	assert.Equal(t, 12.5, cfg.Dispatcher.Rate)
	assert.Equal(t, 12, cfg.Dispatcher.Burst)
	assert.NoError(t, cfg.Validate())
}
