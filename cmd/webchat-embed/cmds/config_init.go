package cmds

import (
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/go-go-golems/webchat-embed/pkg/config"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newConfigInitCommand() *cobra.Command {
	var (
		output string
		force  bool
	)
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file from an interactive form",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !force {
				if _, err := os.Stat(output); err == nil {
					return errors.Errorf("%s exists, pass --force to overwrite", output)
				}
			}
			cfg := config.Default()
			cfg.EmbedConfig = config.StarterEmbed()
			if err := configForm(&cfg).Run(); err != nil {
				if errors.Is(err, huh.ErrUserAborted) {
					return nil
				}
				return err
			}
			if err := writeConfigFile(output, cfg); err != nil {
				return err
			}
			log.Info().Str("path", output).Msg("config written")
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "webchat-embed.yaml", "Where to write the config")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")
	return cmd
}

func configForm(cfg *config.AppConfig) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("API base URL").
				Placeholder("https://api.example.com").
				Value(&cfg.APIConfig.BaseURL).
				Validate(validateURL),
			huh.NewInput().
				Title("API key").
				EchoMode(huh.EchoModePassword).
				Value(&cfg.APIConfig.APIKey).
				Validate(notBlank("API key")),
			huh.NewInput().
				Title("Automation id").
				Value(&cfg.APIConfig.AutomationID).
				Validate(notBlank("automation id")),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Assistant name").
				Value(&cfg.EmbedConfig.Name).
				Validate(notBlank("name")),
			huh.NewInput().
				Title("Description").
				Value(&cfg.EmbedConfig.Description).
				Validate(notBlank("description")),
			huh.NewInput().
				Title("Primary color").
				Value(&cfg.EmbedConfig.PrimaryColor).
				Validate(notBlank("primary color")),
			huh.NewText().
				Title("Welcome message").
				Description("Shown as a teaser before the chat is first opened. Leave empty for none.").
				Value(&cfg.EmbedConfig.WelcomeMessage),
		),
	).WithTheme(huh.ThemeCharm())
}

func validateURL(s string) error {
	u, err := url.Parse(strings.TrimSpace(s))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return errors.New("enter an absolute URL")
	}
	return nil
}

func notBlank(what string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return errors.Errorf("%s is required", what)
		}
		return nil
	}
}

// writeConfigFile validates cfg and writes it as YAML.
func writeConfigFile(path string, cfg config.AppConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, "encode config")
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrap(err, "create config directory")
		}
	}
	// the file holds the api key
	return errors.Wrapf(os.WriteFile(path, data, 0o600), "write %s", path)
}
