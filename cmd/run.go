package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/pyxis-energy/pyxis-cli/internal/fetcher"
	"github.com/pyxis-energy/pyxis-cli/internal/model"
	"github.com/pyxis-energy/pyxis-cli/internal/pipeline"
	"github.com/pyxis-energy/pyxis-cli/internal/store"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full ingestion pipeline for one source",
	Long:  "Validates the mapping config, reads the source file, maps attributes onto the canonical vocabulary, assigns H3 cells, resolves facility clusters, and persists the run.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		configPath, _ := cmd.Flags().GetString("config")
		filePath, _ := cmd.Flags().GetString("file")
		outPath, _ := cmd.Flags().GetString("out")
		noStore, _ := cmd.Flags().GetBool("no-store")
		if timeout, _ := cmd.Flags().GetInt("timeout"); timeout > 0 {
			cfg.Pipeline.TimeoutSecs = timeout
		}
		if workers, _ := cmd.Flags().GetInt("workers"); workers > 0 {
			cfg.Pipeline.Workers = workers
		}

		mode := "run"
		if noStore {
			mode = "validate"
		}
		if err := cfg.Validate(mode); err != nil {
			return err
		}

		doc, err := os.ReadFile(configPath)
		if err != nil {
			return eris.Wrapf(err, "run: read mapping config %s", configPath)
		}

		if fetcher.IsRemote(filePath) {
			local, cleanup, err := fetcher.Fetch(ctx, filePath, cfg.Fetch)
			if err != nil {
				return err
			}
			defer cleanup()
			filePath = local
		}

		var st store.Store
		if !noStore {
			st, err = initStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck
		}

		p := pipeline.New(cfg, registry, st)
		result, runErr := p.Run(ctx, doc, filePath)

		// The report exists even when the run failed.
		if outPath != "" {
			if werr := writeReport(outPath, result.Report); werr != nil {
				return werr
			}
		}
		formatReport(os.Stdout, result.Report)

		return runErr
	},
}

func init() {
	runCmd.Flags().String("config", "", "path to the source mapping config (json or yaml)")
	runCmd.Flags().String("file", "", "path or URL of the source data file")
	runCmd.Flags().String("out", "", "write the full RunReport JSON to this path")
	runCmd.Flags().Bool("no-store", false, "skip persistence, print the report only")
	runCmd.Flags().Int("timeout", 0, "per-run timeout in seconds (overrides config)")
	runCmd.Flags().Int("workers", 0, "worker count (overrides config)")
	_ = runCmd.MarkFlagRequired("config")
	_ = runCmd.MarkFlagRequired("file")

	rootCmd.AddCommand(runCmd)
}

func writeReport(path string, report *model.RunReport) error {
	doc, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return eris.Wrap(err, "run: marshal report")
	}
	return eris.Wrapf(os.WriteFile(path, doc, 0o644), "run: write report %s", path)
}

// formatReport prints the run summary table.
func formatReport(out io.Writer, r *model.RunReport) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Run:\t%s\n", r.RunID)
	_, _ = fmt.Fprintf(w, "Source:\t%s@%s\n", r.Source, r.SourceVersion)
	_, _ = fmt.Fprintf(w, "State:\t%s\n", r.State)
	_, _ = fmt.Fprintf(w, "Records read:\t%d\n", r.RecordsRead)
	_, _ = fmt.Fprintf(w, "Rows skipped:\t%d\n", r.RowsSkipped)
	_, _ = fmt.Fprintf(w, "Rejected:\t%d\n", r.Rejected)
	_, _ = fmt.Fprintf(w, "Indexed:\t%d\n", r.Indexed)
	_, _ = fmt.Fprintf(w, "Unlocated:\t%d\n", r.Unlocated)
	_, _ = fmt.Fprintf(w, "Clusters:\t%d (%d singletons, %d flagged)\n", r.Clusters, r.Singletons, r.ReviewFlagged)
	for _, reason := range r.TopRejectReasons(5) {
		_, _ = fmt.Fprintf(w, "  reject:\t%s (%d)\n", reason, r.RejectReasons[reason])
	}
	for _, st := range r.Stages {
		_, _ = fmt.Fprintf(w, "  stage %s:\t%s (%s)\n", st.Name, st.Status, st.Duration.Round(time.Millisecond))
	}
	if r.Error != "" {
		_, _ = fmt.Fprintf(w, "Error:\t%s\n", r.Error)
	}
	_ = w.Flush()
}
