package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the root configuration for bemboot.
type Config struct {
	Launch    LaunchConfig    `mapstructure:"launch"`
	Server    ServerConfig    `mapstructure:"server"`
	Settings  SettingsConfig  `mapstructure:"settings"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Broker    BrokerConfig    `mapstructure:"broker"`
	Prepare   PrepareConfig   `mapstructure:"prepare"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// LaunchConfig carries the two environment signals driving the launch
// selector. Mode selects the production path when it equals "production";
// any other value (including empty) selects the development server. TLS is
// a presence signal: any non-empty value enables TLS in production.
type LaunchConfig struct {
	Mode string `mapstructure:"mode"`
	TLS  string `mapstructure:"tls"`
}

// ServerConfig describes how the application server is invoked. The defaults
// are the fixed production deployment values; they exist as configuration so
// a non-standard image layout can still be launched.
type ServerConfig struct {
	GunicornBin string `mapstructure:"gunicorn_bin"`
	FlaskBin    string `mapstructure:"flask_bin"`
	Bind        string `mapstructure:"bind"`
	CertFile    string `mapstructure:"cert_file"`
	KeyFile     string `mapstructure:"key_file"`
	Entrypoint  string `mapstructure:"entrypoint"`
}

// SettingsConfig locates the application settings artifact rendered by the
// prepare step. The launched server finds it via BEMSERVER_CORE_SETTINGS_FILE.
type SettingsConfig struct {
	Path          string `mapstructure:"path"`
	WeatherAPIKey string `mapstructure:"weather_api_key"`
}

type DatabaseConfig struct {
	Host          string `mapstructure:"host"`
	Port          int    `mapstructure:"port"`
	User          string `mapstructure:"user"`
	Password      string `mapstructure:"password"`
	Name          string `mapstructure:"name"`
	MaintenanceDB string `mapstructure:"maintenance_db"`
	SSLMode       string `mapstructure:"ssl_mode"`
	MaxConns      int32  `mapstructure:"max_conns"`
}

// DSN returns the pgx connection string for the application database.
func (c DatabaseConfig) DSN() string {
	return c.dsn(c.Name)
}

// MaintenanceDSN returns the connection string for the maintenance database,
// used to create the application database when it does not exist yet.
func (c DatabaseConfig) MaintenanceDSN() string {
	return c.dsn(c.MaintenanceDB)
}

func (c DatabaseConfig) dsn(db string) string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, db, c.SSLMode,
	)
}

// SQLAlchemyURI returns the database URI in the form the Flask application
// expects in its settings file.
func (c DatabaseConfig) SQLAlchemyURI() string {
	return fmt.Sprintf(
		"postgresql+psycopg://%s:%s@%s:%d/%s",
		c.User, c.Password, c.Host, c.Port, c.Name,
	)
}

type BrokerConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns the host:port address for the go-redis client.
func (c BrokerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// URL returns the broker URL in the form the Celery workers expect.
func (c BrokerConfig) URL() string {
	if c.Password != "" {
		return fmt.Sprintf("redis://:%s@%s:%d/%d", c.Password, c.Host, c.Port, c.DB)
	}
	return fmt.Sprintf("redis://%s:%d/%d", c.Host, c.Port, c.DB)
}

type PrepareConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

type TelemetryConfig struct {
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	OTLPInsecure bool   `mapstructure:"otlp_insecure"`
	ServiceName  string `mapstructure:"service_name"`
	LogLevel     string `mapstructure:"log_level"`
}

// Load reads config from the optional YAML file at path, then overlays
// environment variables with the BEMSERVER_ prefix (e.g. BEMSERVER_LAUNCH_MODE,
// BEMSERVER_DATABASE_HOST). Environment values win over file values.
func Load(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("BEMSERVER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("launch.mode", "")
	v.SetDefault("launch.tls", "")

	v.SetDefault("server.gunicorn_bin", "gunicorn")
	v.SetDefault("server.flask_bin", "flask")
	v.SetDefault("server.bind", "0.0.0.0:5001")
	v.SetDefault("server.cert_file", "/etc/ssl/server.crt")
	v.SetDefault("server.key_file", "/etc/ssl/server.key")
	v.SetDefault("server.entrypoint", "app:create_app()")

	v.SetDefault("settings.path", "/etc/bemserver/core-settings.py")
	v.SetDefault("settings.weather_api_key", "")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "bemserver")
	// Registered empty so the env overlay picks the key up: viper's
	// AutomaticEnv only resolves keys it already knows about.
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "bemserver")
	v.SetDefault("database.maintenance_db", "postgres")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_conns", 10)

	v.SetDefault("broker.host", "localhost")
	v.SetDefault("broker.port", 6379)
	v.SetDefault("broker.db", 0)

	v.SetDefault("prepare.timeout", 2*time.Minute)

	v.SetDefault("telemetry.otlp_endpoint", "")
	v.SetDefault("telemetry.otlp_insecure", true)
	v.SetDefault("telemetry.service_name", "bemboot")
	v.SetDefault("telemetry.log_level", "info")
}
