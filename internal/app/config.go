package app

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/user"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/go-homedir"

	"github.com/florianilch/garmin-connect-go/internal/endpoint"
	"github.com/florianilch/garmin-connect-go/internal/garmin"
	"github.com/florianilch/garmin-connect-go/internal/oauth1"
	"github.com/florianilch/garmin-connect-go/internal/tokenstore"
	"github.com/florianilch/garmin-connect-go/internal/transport"
)

// LogFormat represents the logging output format.
type LogFormat string

const (
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"
	LogFormatOTel LogFormat = "otel"
)

// TokenStorageType represents the different storage types supported for stored tokens.
type TokenStorageType string

const (
	TokenStorageTypeFile    TokenStorageType = "file"
	TokenStorageTypeEnv     TokenStorageType = "env"
	TokenStorageTypeKeyring TokenStorageType = "keyring"
)

const keyringService = "gcconnect-token"

// Default configuration values
const (
	DefaultConfigLogFormat         = LogFormatText
	DefaultConfigDomain            = string(endpoint.DefaultDomain)
	DefaultConfigTransportTimeout  = transport.DefaultTimeout
	DefaultConfigTransportRetries  = transport.DefaultRetries
	DefaultConfigServerHost        = "127.0.0.1"
	DefaultConfigServerPort        = 4100
	DefaultConfigShutdownTimeout   = 5 * time.Second
	DefaultConfigAuthStorage       = TokenStorageTypeFile
	DefaultConfigSessionExpiryCode = http.StatusUnauthorized
)

// GarminConfig holds account and provider settings.
type GarminConfig struct {
	Domain   string `json:"domain" validate:"oneof=garmin.com garmin.cn"`
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`

	// Optional OAuth1 consumer override; both halves or neither.
	ConsumerKey    string `json:"consumer_key,omitempty"`
	ConsumerSecret string `json:"consumer_secret,omitempty"`
}

// TransportConfig tunes the HTTP transport.
type TransportConfig struct {
	Timeout   time.Duration `json:"timeout" validate:"gt=0"`
	Retries   *uint64       `json:"retries" validate:"omitnil,lte=10"`
	UserAgent string        `json:"user_agent,omitempty"`
}

// SessionConfig holds session recovery settings.
type SessionConfig struct {
	// ExpiredStatus lists response statuses treated as a rejected access token.
	ExpiredStatus []int `json:"expired_status" validate:"min=1,dive,gte=400,lte=599"`
}

// ServerConfig holds gateway server configuration.
type ServerConfig struct {
	Host string `json:"host" validate:"hostname_rfc1123|ip"`
	Port uint16 `json:"port"` // Port range 0-65535 handled by uint16 type
}

// ShutdownConfig holds shutdown behavior configuration.
type ShutdownConfig struct {
	// Timeout for graceful shutdown.
	Timeout time.Duration `json:"timeout"`
}

// ExportConfig holds activity export settings.
type ExportConfig struct {
	// Dir receives exported files. Empty keeps exports in memory only.
	Dir string `json:"dir,omitempty"`
}

// AuthConfig describes where the session token pair is persisted.
type AuthConfig struct {
	Storage TokenStorageType `json:"storage" validate:"required,oneof=file env keyring"`

	// Storage-specific settings (mutually exclusive based on Storage type)
	File        string `json:"file,omitempty"`         // For file storage: path to token file
	EnvKey      string `json:"env_key,omitempty"`      // For env storage: environment variable name
	KeyringUser string `json:"keyring_user,omitempty"` // For keyring storage: user identifier
}

// NewTokenStore creates a TokenStore from the authentication configuration.
func (a *AuthConfig) NewTokenStore() (tokenstore.TokenStore, error) {
	switch a.Storage {
	case TokenStorageTypeFile:
		return tokenstore.NewFileStore(a.File)
	case TokenStorageTypeEnv:
		return tokenstore.NewEnvStore(a.EnvKey)
	case TokenStorageTypeKeyring:
		return tokenstore.NewKeyringStore(keyringService, a.KeyringUser)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", a.Storage)
	}
}

// Config holds the application's configuration.
type Config struct {
	// LogLevel for logging output (defaults to Info if unset).
	LogLevel  slog.Level      `json:"log_level"`
	LogFormat LogFormat       `json:"log_format" validate:"oneof=text json otel"`
	Garmin    GarminConfig    `json:"garmin"`
	Transport TransportConfig `json:"transport"`
	Session   SessionConfig   `json:"session"`
	Auth      AuthConfig      `json:"auth"`
	Server    ServerConfig    `json:"server"`
	Shutdown  ShutdownConfig  `json:"shutdown"`
	Export    ExportConfig    `json:"export"`
}

// Default creates a new Config with default values applied.
func Default() (*Config, error) {
	cfg := &Config{}
	if err := cfg.ApplyDefaults(); err != nil {
		return nil, fmt.Errorf("failed to apply defaults: %w", err)
	}
	return cfg, nil
}

// ApplyDefaults fills unset config fields with sensible defaults and expands
// "~" in paths.
func (c *Config) ApplyDefaults() error {
	if c.LogFormat == "" {
		c.LogFormat = DefaultConfigLogFormat
	}
	if c.Garmin.Domain == "" {
		c.Garmin.Domain = DefaultConfigDomain
	}
	if c.Transport.Timeout == 0 {
		c.Transport.Timeout = DefaultConfigTransportTimeout
	}
	if c.Transport.Retries == nil {
		retries := uint64(DefaultConfigTransportRetries)
		c.Transport.Retries = &retries
	}
	if len(c.Session.ExpiredStatus) == 0 {
		c.Session.ExpiredStatus = []int{DefaultConfigSessionExpiryCode}
	}
	if c.Server.Host == "" {
		c.Server.Host = DefaultConfigServerHost
	}
	if c.Server.Port == 0 {
		c.Server.Port = DefaultConfigServerPort
	}
	if c.Shutdown.Timeout == 0 {
		c.Shutdown.Timeout = DefaultConfigShutdownTimeout
	}
	if c.Auth.Storage == "" {
		c.Auth.Storage = DefaultConfigAuthStorage
	}

	// Dynamic defaults based on storage type
	switch c.Auth.Storage {
	case TokenStorageTypeFile:
		if c.Auth.File == "" {
			configDir, err := os.UserConfigDir()
			if err != nil {
				return fmt.Errorf("auth.file required (auto-detect failed: %w)", err)
			}
			c.Auth.File = filepath.Join(configDir, "gcconnect", "tokens.json")
		}
	case TokenStorageTypeKeyring:
		if c.Auth.KeyringUser == "" {
			c.Auth.KeyringUser = c.Garmin.Username
		}
		if c.Auth.KeyringUser == "" {
			currentUser, err := user.Current()
			if err != nil {
				return fmt.Errorf("auth.keyring_user required (auto-detect failed: %w)", err)
			}
			c.Auth.KeyringUser = currentUser.Username
		}
	case TokenStorageTypeEnv:
		// env_key must be explicitly configured (no sensible default)
	}

	var err error
	if c.Auth.File, err = homedir.Expand(c.Auth.File); err != nil {
		return fmt.Errorf("invalid auth.file: %w", err)
	}
	if c.Export.Dir, err = homedir.Expand(c.Export.Dir); err != nil {
		return fmt.Errorf("invalid export.dir: %w", err)
	}

	return nil
}

// Validate validates the configuration using struct tags and enum values.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}

	if (c.Garmin.ConsumerKey == "") != (c.Garmin.ConsumerSecret == "") {
		return errors.New("garmin.consumer_key and garmin.consumer_secret must be set together")
	}

	switch c.Auth.Storage {
	case TokenStorageTypeFile:
		if c.Auth.File == "" {
			return errors.New("file path required for file storage")
		}
	case TokenStorageTypeEnv:
		if c.Auth.EnvKey == "" {
			return errors.New("env_key required for env storage")
		}
	case TokenStorageTypeKeyring:
		if c.Auth.KeyringUser == "" {
			return errors.New("keyring_user required for keyring storage")
		}
	}

	return nil
}

// ClientConfig translates the configuration into a garmin.Config.
func (c *Config) ClientConfig() (garmin.Config, error) {
	domain, err := endpoint.ParseDomain(c.Garmin.Domain)
	if err != nil {
		return garmin.Config{}, err
	}

	return garmin.Config{
		Credentials: &garmin.Credentials{
			Username: c.Garmin.Username,
			Password: c.Garmin.Password,
		},
		Domain: domain,
		Consumer: oauth1.Consumer{
			Key:    c.Garmin.ConsumerKey,
			Secret: c.Garmin.ConsumerSecret,
		},
		IsExpired: garmin.ExpiredOnStatus(c.Session.ExpiredStatus...),
	}, nil
}

// TransportOptions translates the transport section into transport options.
func (c *Config) TransportOptions() []transport.Option {
	opts := []transport.Option{
		transport.WithTimeout(c.Transport.Timeout),
	}
	if c.Transport.Retries != nil {
		opts = append(opts, transport.WithRetries(*c.Transport.Retries))
	}
	if c.Transport.UserAgent != "" {
		opts = append(opts, transport.WithUserAgent(c.Transport.UserAgent))
	}
	return opts
}
