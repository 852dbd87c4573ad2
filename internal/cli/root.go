// Package cli implements the dojo command: the HTTP API server, the terminal
// chat and persona listing.
package cli

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/PabloGalante/smalltalk-dojo/internal/config"
	"github.com/PabloGalante/smalltalk-dojo/internal/observability"
)

func Execute() error {
	return NewRootCmd().Execute()
}

// rootState is shared by every subcommand: one viper instance that flags,
// env and the config file all feed.
type rootState struct {
	v          *viper.Viper
	configFile string
}

func (st *rootState) load() (*config.Config, error) {
	if st.configFile != "" {
		st.v.SetConfigFile(st.configFile)
	}

	cfg, err := config.Load(st.v)
	if err != nil {
		return nil, err
	}

	observability.Configure(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	return cfg, nil
}

func NewRootCmd() *cobra.Command {
	st := &rootState{v: config.NewViper()}

	rootCmd := &cobra.Command{
		Use:           "dojo",
		Short:         "Small Talk Dojo: practice networking small talk with simulated personas",
		Long:          "dojo runs a small-talk practice coach. Pick a persona, talk to them one turn at a time and get an in-character reply plus a short coaching critique.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&st.configFile, "config", "", "config file (default ./dojo.toml or ~/.config/smalltalk-dojo/dojo.toml)")
	flags.String("log-level", "", "log level: debug, info, warn, error")
	flags.String("log-format", "", "log format: json or text")
	flags.String("provider", "", "completion provider: deepseek, openai, gemini, vertex, mock")
	flags.String("model", "", "completion model name")
	flags.String("storage", "", "transcript store: none, memory, sqlite, firestore, sheets")
	flags.String("personas", "", "TOML file with extra personas")

	bindFlag(st.v, "log.level", flags.Lookup("log-level"))
	bindFlag(st.v, "log.format", flags.Lookup("log-format"))
	bindFlag(st.v, "llm.provider", flags.Lookup("provider"))
	bindFlag(st.v, "llm.model", flags.Lookup("model"))
	bindFlag(st.v, "storage.backend", flags.Lookup("storage"))
	bindFlag(st.v, "personas.file", flags.Lookup("personas"))

	rootCmd.AddCommand(
		newServeCmd(st),
		newChatCmd(st),
		newPersonasCmd(st),
		newSecretsCmd(st),
	)

	return rootCmd
}
