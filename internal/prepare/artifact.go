package prepare

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"text/template"

	"github.com/s-celles/bemserver-core/internal/config"
)

// settingsTemplate is the Python settings module consumed by the Flask
// application. Literal values are quoted with %q during rendering, so
// credentials containing quotes survive the round trip.
const settingsTemplate = `"""BEMServer Core settings.

Generated by bemboot at container start. Do not edit: this file is
rewritten on every boot.
"""

SQLALCHEMY_DATABASE_URI = {{ printf "%q" .DatabaseURI }}

CELERY_CONFIG = {
    "broker_url": {{ printf "%q" .BrokerURL }},
    "result_backend": {{ printf "%q" .BrokerURL }},
}
{{- if .WeatherAPIKey }}

WEATHER_DATA_CLIENT_API_KEY = {{ printf "%q" .WeatherAPIKey }}
{{- end }}
`

// SettingsFile renders the application settings artifact from the bootstrap
// configuration. Rendering is deterministic: the same configuration always
// produces byte-identical output.
type SettingsFile struct {
	path string
	data settingsData
}

type settingsData struct {
	DatabaseURI   string
	BrokerURL     string
	WeatherAPIKey string
}

// NewSettingsFile builds a SettingsFile targeting cfg.Settings.Path.
func NewSettingsFile(settings config.SettingsConfig, db config.DatabaseConfig, broker config.BrokerConfig) *SettingsFile {
	return &SettingsFile{
		path: settings.Path,
		data: settingsData{
			DatabaseURI:   db.SQLAlchemyURI(),
			BrokerURL:     broker.URL(),
			WeatherAPIKey: settings.WeatherAPIKey,
		},
	}
}

// Render writes the settings artifact and returns its path. The write is
// atomic (temp file then rename) so a crash mid-write never leaves the
// application with a truncated settings file. The file is mode 0600: it
// holds the database password.
func (s *SettingsFile) Render(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	tmpl, err := template.New("settings").Parse(settingsTemplate)
	if err != nil {
		return "", fmt.Errorf("parsing settings template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, s.data); err != nil {
		return "", fmt.Errorf("executing settings template: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating settings directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".core-settings-*.py")
	if err != nil {
		return "", fmt.Errorf("creating temp settings file: %w", err)
	}
	defer os.Remove(tmp.Name()) // no-op after a successful rename

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return "", fmt.Errorf("restricting settings file mode: %w", err)
	}
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return "", fmt.Errorf("writing settings file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("closing settings file: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return "", fmt.Errorf("replacing settings file %s: %w", s.path, err)
	}

	return s.path, nil
}
