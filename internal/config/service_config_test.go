package config

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

// mockServiceConfig records the lifecycle calls it receives.
type mockServiceConfig struct {
	calls       []string
	configDir   string
	validateErr error
}

func (m *mockServiceConfig) ApplyDefaults()     { m.calls = append(m.calls, "defaults") }
func (m *mockServiceConfig) ApplyEnvOverrides() { m.calls = append(m.calls, "env") }

func (m *mockServiceConfig) ResolvePaths(configDir string) {
	m.calls = append(m.calls, "paths")
	m.configDir = configDir
}

func (m *mockServiceConfig) Validate() error {
	m.calls = append(m.calls, "validate")
	return m.validateErr
}

func TestApplyServiceConfigs_Order(t *testing.T) {
	a, b := &mockServiceConfig{}, &mockServiceConfig{}
	assert.NoError(t, ApplyServiceConfigs("/etc/docflow", a, b))

	for _, m := range []*mockServiceConfig{a, b} {
		assert.Equal(t, []string{"defaults", "env", "paths", "validate"}, m.calls)
		assert.Equal(t, "/etc/docflow", m.configDir)
	}
}

func TestApplyServiceConfigs_StopsAtFirstError(t *testing.T) {
	boom := errors.New("invalid")
	a := &mockServiceConfig{validateErr: boom}
	b := &mockServiceConfig{}

	assert.ErrorIs(t, ApplyServiceConfigs("config", a, b), boom)
	assert.Empty(t, b.calls)
}

func TestApplyServiceConfigs_NoConfigs(t *testing.T) {
	assert.NoError(t, ApplyServiceConfigs("config"))
}
