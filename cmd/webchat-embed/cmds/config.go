package cmds

import (
	"fmt"
	"strings"

	"github.com/go-go-golems/webchat-embed/pkg/config"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func NewConfigCommand(root *RootSettings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the resolved configuration",
	}

	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Run the mount-time check and list every failing field",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := root.loadViper()
			if err != nil {
				return err
			}
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				var verr *config.ValidationError
				if errors.As(err, &verr) {
					for _, f := range verr.Fields {
						_, _ = fmt.Fprintln(cmd.OutOrStdout(), "invalid: "+f.String())
					}
				}
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return nil
		},
	}

	var showSecrets bool
	printCmd := &cobra.Command{
		Use:   "print",
		Short: "Print the resolved configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := root.loadViper()
			if err != nil {
				return err
			}
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}
			if !showSecrets {
				cfg.APIConfig.APIKey = maskSecret(cfg.APIConfig.APIKey)
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			defer func() { _ = enc.Close() }()
			return errors.Wrap(enc.Encode(cfg), "encode config")
		},
	}
	printCmd.Flags().BoolVar(&showSecrets, "show-secrets", false, "Print the API key in clear")

	cmd.AddCommand(validateCmd, printCmd, newConfigInitCommand())
	return cmd
}

func maskSecret(s string) string {
	if len(s) <= 4 {
		return strings.Repeat("*", len(s))
	}
	return s[:2] + strings.Repeat("*", len(s)-4) + s[len(s)-2:]
}
