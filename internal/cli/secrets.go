package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/PabloGalante/smalltalk-dojo/internal/adapters/secrets"
)

func newSecretsCmd(st *rootState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secrets",
		Short: "Manage stored API keys",
	}
	cmd.AddCommand(newSecretsSetCmd(st))
	return cmd
}

func newSecretsSetCmd(st *rootState) *cobra.Command {
	return &cobra.Command{
		Use:       "set <key>",
		Short:     "Store an API key in the secrets directory",
		Long:      "set reads the value from stdin (hidden on a terminal) and writes it to the secrets directory with owner-only permissions.",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{secrets.KeyLLMAPIKey, secrets.KeySpeechAPIKey},
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			if key != secrets.KeyLLMAPIKey && key != secrets.KeySpeechAPIKey {
				return fmt.Errorf("unknown secret %q (want %s or %s)", key, secrets.KeyLLMAPIKey, secrets.KeySpeechAPIKey)
			}

			st.v.SetDefault("log.format", "text")
			cfg, err := st.load()
			if err != nil {
				return err
			}
			if cfg.SecretsDir == "" {
				return errors.New("secrets directory is not configured")
			}

			ctx := cmd.Context()
			value, err := secrets.NewPromptSource(cmd.InOrStdin(), cmd.ErrOrStderr()).Get(ctx, key)
			if err != nil {
				return err
			}

			if err := secrets.NewFileSource(cfg.SecretsDir).Put(ctx, key, value); err != nil {
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "stored %s in %s\n", key, cfg.SecretsDir)
			return err
		},
	}
}
