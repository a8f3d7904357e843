// Package config holds the embedding configuration of the widget and the
// boundary check that gates mounting it.
package config

import (
	"os"
	"path/filepath"
)

// FullWidth is the chatPopupWidth sentinel meaning "use the whole host width".
const FullWidth = -1000

// APIConfig addresses the automation backend.
type APIConfig struct {
	BaseURL      string `mapstructure:"baseUrl" json:"baseUrl" yaml:"baseUrl" validate:"required,url"`
	APIKey       string `mapstructure:"apiKey" json:"apiKey" yaml:"apiKey" validate:"required"`
	AutomationID string `mapstructure:"automationId" json:"automationId" yaml:"automationId" validate:"required"`
}

// EmbedConfig is the look and feel of one widget embed.
type EmbedConfig struct {
	Name                string `mapstructure:"name" json:"name" yaml:"name" validate:"required"`
	Description         string `mapstructure:"description" json:"description" yaml:"description" validate:"required"`
	Logo                string `mapstructure:"logo" json:"logo,omitempty" yaml:"logo,omitempty" validate:"omitempty,url"`
	PrimaryColor        string `mapstructure:"primaryColor" json:"primaryColor" yaml:"primaryColor" validate:"required"`
	ForegroundColor     string `mapstructure:"foregroundColor" json:"foregroundColor" yaml:"foregroundColor" validate:"required"`
	ChatPopupWidth      int    `mapstructure:"chatPopupWidth" json:"chatPopupWidth" yaml:"chatPopupWidth" validate:"required"`
	ChatPopupHeight     int    `mapstructure:"chatPopupHeight" json:"chatPopupHeight" yaml:"chatPopupHeight" validate:"gt=0"`
	ChatTriggerSize     int    `mapstructure:"chatTriggerSize" json:"chatTriggerSize" yaml:"chatTriggerSize" validate:"gt=0"`
	WelcomeMessage      string `mapstructure:"welcomeMessage" json:"welcomeMessage,omitempty" yaml:"welcomeMessage,omitempty"`
	WelcomeMessageDelay int    `mapstructure:"welcomeMessageDelay" json:"welcomeMessageDelay" yaml:"welcomeMessageDelay" validate:"gte=0"`
}

// FullWidth reports whether the popup should take the whole host width.
func (e EmbedConfig) FullWidth() bool {
	return e.ChatPopupWidth == FullWidth
}

type StorageBackend string

const (
	StorageFile   StorageBackend = "file"
	StorageSQLite StorageBackend = "sqlite"
	StorageRedis  StorageBackend = "redis"
	StorageMemory StorageBackend = "memory"
)

// StorageSettings selects where the session identifier is kept between runs.
type StorageSettings struct {
	Backend   StorageBackend `mapstructure:"backend" json:"backend" yaml:"backend" validate:"oneof=file sqlite redis memory"`
	Path      string         `mapstructure:"path" json:"path,omitempty" yaml:"path,omitempty" validate:"required_if=Backend file,required_if=Backend sqlite"`
	RedisAddr string         `mapstructure:"redisAddr" json:"redisAddr,omitempty" yaml:"redisAddr,omitempty" validate:"required_if=Backend redis"`
	Namespace string         `mapstructure:"namespace" json:"namespace,omitempty" yaml:"namespace,omitempty"`
}

// EventsSettings configures the optional mirroring of widget events to Redis Streams.
type EventsSettings struct {
	RedisEnabled  bool   `mapstructure:"redisEnabled" json:"redisEnabled" yaml:"redisEnabled"`
	RedisAddr     string `mapstructure:"redisAddr" json:"redisAddr,omitempty" yaml:"redisAddr,omitempty" validate:"required_if=RedisEnabled true"`
	RedisGroup    string `mapstructure:"redisGroup" json:"redisGroup,omitempty" yaml:"redisGroup,omitempty"`
	RedisConsumer string `mapstructure:"redisConsumer" json:"redisConsumer,omitempty" yaml:"redisConsumer,omitempty"`
}

// AppConfig is the single configuration object read at startup.
type AppConfig struct {
	APIConfig   APIConfig       `mapstructure:"apiConfig" json:"apiConfig" yaml:"apiConfig"`
	EmbedConfig EmbedConfig     `mapstructure:"embedConfig" json:"embedConfig" yaml:"embedConfig"`
	Storage     StorageSettings `mapstructure:"storage" json:"storage" yaml:"storage"`
	Events      EventsSettings  `mapstructure:"events" json:"events" yaml:"events"`
}

// Default returns the defaults applied before any file, env or flag source.
// The embed look (colors, sizes) has no default and must be configured.
func Default() AppConfig {
	return AppConfig{
		EmbedConfig: EmbedConfig{
			WelcomeMessageDelay: 2000,
		},
		Storage: StorageSettings{
			Backend: StorageFile,
			Path:    DefaultSessionPath(),
		},
		Events: EventsSettings{
			RedisAddr:     "localhost:6379",
			RedisGroup:    "webchat-embed",
			RedisConsumer: "widget-1",
		},
	}
}

// StarterEmbed is the look `config init` proposes: brand colors, a full-width
// popup and a small trigger.
func StarterEmbed() EmbedConfig {
	return EmbedConfig{
		PrimaryColor:        "#4f46e5",
		ForegroundColor:     "#ffffff",
		ChatPopupWidth:      FullWidth,
		ChatPopupHeight:     30,
		ChatTriggerSize:     3,
		WelcomeMessageDelay: 2000,
	}
}

// DefaultSessionPath is where the file store keeps the session identifier.
func DefaultSessionPath() string {
	dir, err := os.UserConfigDir()
	if err != nil || dir == "" {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "webchat-embed", "session.yaml")
}
