package config

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. WEBCHAT_APICONFIG_BASEURL.
const EnvPrefix = "WEBCHAT"

// NewViper returns a viper instance seeded with the defaults and wired to the
// environment. If configFile is non-empty it is read (YAML or JSON by extension).
func NewViper(configFile string) (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config %s", configFile)
		}
	}
	return v, nil
}

// Load decodes the resolved configuration. It does not validate it.
func Load(v *viper.Viper) (AppConfig, error) {
	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return AppConfig{}, errors.Wrap(err, "decode config")
	}
	return cfg, nil
}

// LoadAndValidate is the boundary entry point: decode, then run the schema check.
func LoadAndValidate(v *viper.Viper) (AppConfig, error) {
	cfg, err := Load(v)
	if err != nil {
		return AppConfig{}, err
	}
	if err := cfg.Validate(); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

// Every key needs a default so that AutomaticEnv can override it on Unmarshal.
func setDefaults(v *viper.Viper, d AppConfig) {
	v.SetDefault("apiConfig.baseUrl", d.APIConfig.BaseURL)
	v.SetDefault("apiConfig.apiKey", d.APIConfig.APIKey)
	v.SetDefault("apiConfig.automationId", d.APIConfig.AutomationID)

	v.SetDefault("embedConfig.name", d.EmbedConfig.Name)
	v.SetDefault("embedConfig.description", d.EmbedConfig.Description)
	v.SetDefault("embedConfig.logo", d.EmbedConfig.Logo)
	v.SetDefault("embedConfig.primaryColor", d.EmbedConfig.PrimaryColor)
	v.SetDefault("embedConfig.foregroundColor", d.EmbedConfig.ForegroundColor)
	v.SetDefault("embedConfig.chatPopupWidth", d.EmbedConfig.ChatPopupWidth)
	v.SetDefault("embedConfig.chatPopupHeight", d.EmbedConfig.ChatPopupHeight)
	v.SetDefault("embedConfig.chatTriggerSize", d.EmbedConfig.ChatTriggerSize)
	v.SetDefault("embedConfig.welcomeMessage", d.EmbedConfig.WelcomeMessage)
	v.SetDefault("embedConfig.welcomeMessageDelay", d.EmbedConfig.WelcomeMessageDelay)

	v.SetDefault("storage.backend", string(d.Storage.Backend))
	v.SetDefault("storage.path", d.Storage.Path)
	v.SetDefault("storage.redisAddr", d.Storage.RedisAddr)
	v.SetDefault("storage.namespace", d.Storage.Namespace)

	v.SetDefault("events.redisEnabled", d.Events.RedisEnabled)
	v.SetDefault("events.redisAddr", d.Events.RedisAddr)
	v.SetDefault("events.redisGroup", d.Events.RedisGroup)
	v.SetDefault("events.redisConsumer", d.Events.RedisConsumer)
}
