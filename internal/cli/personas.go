package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/PabloGalante/smalltalk-dojo/internal/persona"
)

func newPersonasCmd(st *rootState) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "personas",
		Short: "List the available personas",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st.v.SetDefault("log.format", "text")
			cfg, err := st.load()
			if err != nil {
				return err
			}

			catalog, err := persona.LoadFile(cfg.PersonasFile)
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(catalog.List())
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), newStyles().renderPersonas(catalog.List(), catalog.Default().ID))
			return err
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print personas as JSON")
	return cmd
}
