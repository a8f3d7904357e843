package cmds

import (
	"github.com/go-go-golems/webchat-embed/pkg/config"
	"github.com/go-go-golems/webchat-embed/pkg/logging"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// RootSettings are the persistent flags shared by every subcommand.
type RootSettings struct {
	ConfigFile string
	Logging    logging.Settings
}

func NewRootCommand() *cobra.Command {
	settings := &RootSettings{Logging: logging.DefaultSettings()}

	rootCmd := &cobra.Command{
		Use:           "webchat-embed",
		Short:         "A terminal chat widget for Eldramatic automations",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// reinitialize the logger now that --log-level and co are parsed
			_, err := logging.Init(settings.Logging)
			return err
		},
	}
	rootCmd.PersistentFlags().StringVar(&settings.ConfigFile, "config", "", "Config file (YAML or JSON)")
	logging.AddFlags(rootCmd, &settings.Logging)

	rootCmd.AddCommand(
		NewChatCommand(settings),
		NewConfigCommand(settings),
		NewSessionCommand(settings),
		NewMockBackendCommand(),
	)
	return rootCmd
}

// loadViper resolves the configuration sources without validating them.
func (s *RootSettings) loadViper() (*viper.Viper, error) {
	return config.NewViper(s.ConfigFile)
}

// loadConfig runs the boundary check. A failing config is logged field by
// field and nothing gets mounted.
func (s *RootSettings) loadConfig() (config.AppConfig, error) {
	v, err := s.loadViper()
	if err != nil {
		return config.AppConfig{}, err
	}
	cfg, err := config.LoadAndValidate(v)
	if err != nil {
		logConfigError(err)
		return config.AppConfig{}, err
	}
	return cfg, nil
}

func logConfigError(err error) {
	var verr *config.ValidationError
	if !errors.As(err, &verr) {
		log.Error().Err(err).Msg(config.LogPrefix + ": could not load config")
		return
	}
	for _, f := range verr.Fields {
		log.Error().Str("field", f.Path).Str("rule", f.Rule).Msg(config.LogPrefix + ": invalid config")
	}
}
