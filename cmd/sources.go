package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/pyxis-energy/pyxis-cli/internal/schema"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List source mapping configs in a directory",
	RunE: func(cmd *cobra.Command, _ []string) error {
		dir, _ := cmd.Flags().GetString("dir")

		entries, err := os.ReadDir(dir)
		if err != nil {
			return eris.Wrapf(err, "sources: read dir %s", dir)
		}

		type row struct {
			file     string
			name     string
			typ      string
			version  string
			score    float64
			mappings int
		}
		var rows []row
		for _, e := range entries {
			ext := strings.ToLower(filepath.Ext(e.Name()))
			if e.IsDir() || (ext != ".json" && ext != ".yaml" && ext != ".yml") {
				continue
			}
			path := filepath.Join(dir, e.Name())
			doc, err := os.ReadFile(path)
			if err != nil {
				return eris.Wrapf(err, "sources: read %s", path)
			}
			mc, err := schema.Validate(doc, registry)
			if err != nil {
				fmt.Fprintf(os.Stderr, "%s: invalid, skipping\n", e.Name())
				continue
			}
			rows = append(rows, row{
				file:     e.Name(),
				name:     mc.DataMetadata.Name,
				typ:      mc.DataMetadata.Type,
				version:  mc.DataMetadata.Version,
				score:    mc.DataScore(),
				mappings: len(mc.Mappings),
			})
		}

		if len(rows) == 0 {
			fmt.Fprintln(os.Stderr, "No mapping configs found.")
			return nil
		}

		// Descending data score is the order the resolver merges in.
		sort.SliceStable(rows, func(i, j int) bool { return rows[i].score > rows[j].score })

		formatSources(os.Stdout, func(w io.Writer) {
			for _, r := range rows {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.1f\t%d\n",
					r.file, r.name, r.typ, r.version, r.score, r.mappings)
			}
		})
		return nil
	},
}

func formatSources(out io.Writer, body func(io.Writer)) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "FILE\tSOURCE\tTYPE\tVERSION\tSCORE\tMAPPINGS")
	body(w)
	_ = w.Flush()
}

func init() {
	sourcesCmd.Flags().String("dir", "configs", "directory of mapping configs")
	rootCmd.AddCommand(sourcesCmd)
}
