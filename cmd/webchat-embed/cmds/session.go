package cmds

import (
	"fmt"
	"io"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/go-go-golems/webchat-embed/pkg/config"
	"github.com/go-go-golems/webchat-embed/pkg/persistence/sessionstore"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	input "github.com/tcnksm/go-input"
)

func NewSessionCommand(root *RootSettings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Manage the stored session identifier",
	}

	withStore := func(fn func(cmd *cobra.Command, store sessionstore.Store) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			v, err := root.loadViper()
			if err != nil {
				return err
			}
			// only the storage section matters here
			var s struct {
				Storage config.StorageSettings `mapstructure:"storage"`
			}
			if err := v.Unmarshal(&s); err != nil {
				return errors.Wrap(err, "decode storage settings")
			}
			store, err := sessionstore.Open(s.Storage)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()
			return fn(cmd, store)
		}
	}

	var copyID bool
	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the stored session identifier",
		Args:  cobra.NoArgs,
		RunE: withStore(func(cmd *cobra.Command, store sessionstore.Store) error {
			id, ok, err := store.Get(cmd.Context(), sessionstore.SessionKey)
			if err != nil {
				return err
			}
			if !ok {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "no stored session")
				return nil
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), id)
			if copyID {
				return errors.Wrap(clipboard.WriteAll(id), "copy to clipboard")
			}
			return nil
		}),
	}
	showCmd.Flags().BoolVar(&copyID, "copy", false, "Also copy the identifier to the clipboard")

	var yes bool
	forgetCmd := &cobra.Command{
		Use:   "forget",
		Short: "Delete the stored session so the next open starts a new one",
		Args:  cobra.NoArgs,
		RunE: withStore(func(cmd *cobra.Command, store sessionstore.Store) error {
			if !yes {
				ok, err := confirm(cmd.InOrStdin(), cmd.OutOrStdout(), "Forget the stored session? The transcript cannot be restored afterwards. [y/N]")
				if err != nil {
					return err
				}
				if !ok {
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), "kept stored session")
					return nil
				}
			}
			if err := store.Delete(cmd.Context(), sessionstore.SessionKey); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "forgot stored session")
			return nil
		}),
	}

	forgetCmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")

	cmd.AddCommand(showCmd, forgetCmd)
	return cmd
}

func confirm(in io.Reader, out io.Writer, query string) (bool, error) {
	ui := &input.UI{Writer: out, Reader: in}
	answer, err := ui.Ask(query, &input.Options{
		Default:  "n",
		Required: true,
		Loop:     true,
		ValidateFunc: func(answer string) error {
			switch strings.ToLower(answer) {
			case "y", "n", "":
				return nil
			default:
				return errors.Errorf("please enter 'y' or 'n'")
			}
		},
	})
	if err != nil {
		return false, errors.Wrap(err, "failed to get user input")
	}
	return strings.EqualFold(answer, "y"), nil
}
