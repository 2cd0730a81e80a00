package di_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capgate/capgate/internal/di"
)

const testConfigYAML = `
server:
  listen: "127.0.0.1:0"
logging:
  level: error
  format: json
limits:
  generate:
    requests: 10
    window_ms: 60000
quota:
  guest_daily: 3
  user_daily: 20
upstream:
  base_url: "https://captions.example.com"
  api_key: "test-key"
`

func newTestContainer(t *testing.T) *di.Container {
	t.Helper()

	path := filepath.Join(t.TempDir(), "capgate.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testConfigYAML), 0o600))

	container, err := di.NewContainer(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Shutdown() })

	return container
}

func TestContainerResolvesAllServices(t *testing.T) {
	container := newTestContainer(t)

	cfgSvc, err := di.Invoke[*di.ConfigService](container)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:0", cfgSvc.Get().Server.Listen)

	_, err = di.Invoke[*di.LoggerService](container)
	require.NoError(t, err)

	storeSvc, err := di.Invoke[*di.StoreService](container)
	require.NoError(t, err)
	assert.NotNil(t, storeSvc.Store)

	_, err = di.Invoke[*di.QuotaService](container)
	require.NoError(t, err)

	_, err = di.Invoke[*di.LimiterService](container)
	require.NoError(t, err)

	_, err = di.Invoke[*di.BreakerService](container)
	require.NoError(t, err)

	admissionSvc, err := di.Invoke[*di.AdmissionService](container)
	require.NoError(t, err)
	assert.NotNil(t, admissionSvc.Controller)

	serverSvc, err := di.Invoke[*di.ServerService](container)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:0", serverSvc.Server.Addr())
}

func TestContainerConfigPath(t *testing.T) {
	container := newTestContainer(t)

	path, err := di.InvokeNamed[string](container, di.ConfigPathKey)
	require.NoError(t, err)
	assert.NotEmpty(t, path)

	cfgSvc := di.MustInvoke[*di.ConfigService](container)
	assert.Equal(t, path, cfgSvc.Path())
}

func TestContainerShutdown(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capgate.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testConfigYAML), 0o600))

	container, err := di.NewContainer(path)
	require.NoError(t, err)

	di.MustInvoke[*di.StoreService](container)
	di.MustInvoke[*di.ConfigService](container)

	assert.NoError(t, container.Shutdown())
}

func TestContainerInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capgate.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logging:\n  level: loud\n"), 0o600))

	container, err := di.NewContainer(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Shutdown() })

	_, err = di.Invoke[*di.ConfigService](container)
	assert.Error(t, err)
}
