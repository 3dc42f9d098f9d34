package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/pyxis-energy/pyxis-cli/internal/schema"
)

var validateCmd = &cobra.Command{
	Use:   "validate <config>...",
	Short: "Validate mapping configs against the schema contract",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, path := range args {
			doc, err := os.ReadFile(path)
			if err != nil {
				return eris.Wrapf(err, "validate: read %s", path)
			}
			mc, err := schema.Validate(doc, registry)
			if err != nil {
				fmt.Fprintf(os.Stderr, "%s: INVALID\n", path)
				return err
			}
			fmt.Printf("%s: ok (%s@%s, %d mappings)\n",
				path, mc.DataMetadata.Name, mc.DataMetadata.Version, len(mc.Mappings))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
