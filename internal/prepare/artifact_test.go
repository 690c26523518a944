package prepare

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/s-celles/bemserver-core/internal/config"
)

func testDatabase() config.DatabaseConfig {
	return config.DatabaseConfig{
		Host: "db", Port: 5432, User: "bem", Password: "secret", Name: "bemserver",
	}
}

func testBroker() config.BrokerConfig {
	return config.BrokerConfig{Host: "redis", Port: 6379, DB: 0}
}

func TestSettingsFileRender(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "bemserver", "core-settings.py")
	sf := NewSettingsFile(config.SettingsConfig{Path: path}, testDatabase(), testBroker())

	got, err := sf.Render(context.Background())
	require.NoError(t, err)
	assert.Equal(t, path, got)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content),
		`SQLALCHEMY_DATABASE_URI = "postgresql+psycopg://bem:secret@db:5432/bemserver"`)
	assert.Contains(t, string(content), `"broker_url": "redis://redis:6379/0"`)
	assert.NotContains(t, string(content), "WEATHER_DATA_CLIENT_API_KEY")

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestSettingsFileRender_WeatherAPIKey(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "core-settings.py")
	sf := NewSettingsFile(
		config.SettingsConfig{Path: path, WeatherAPIKey: "oikolab-key"},
		testDatabase(), testBroker(),
	)

	_, err := sf.Render(context.Background())
	require.NoError(t, err)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), `WEATHER_DATA_CLIENT_API_KEY = "oikolab-key"`)
}

func TestSettingsFileRender_Idempotent(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "core-settings.py")
	sf := NewSettingsFile(config.SettingsConfig{Path: path}, testDatabase(), testBroker())

	_, err := sf.Render(context.Background())
	require.NoError(t, err)
	first, err := os.ReadFile(path)
	require.NoError(t, err)

	// A second render on top of an existing artifact must succeed and
	// produce identical content.
	_, err = sf.Render(context.Background())
	require.NoError(t, err)
	second, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestSettingsFileRender_CancelledContext(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "core-settings.py")
	sf := NewSettingsFile(config.SettingsConfig{Path: path}, testDatabase(), testBroker())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := sf.Render(ctx)
	require.Error(t, err)
	assert.NoFileExists(t, path)
}
