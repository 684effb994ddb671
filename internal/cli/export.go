package cli

import (
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/BenjaminSRussell/paperboy/internal/export"
	"github.com/BenjaminSRussell/paperboy/internal/storage"
)

func newExportCmd(v *viper.Viper) *cobra.Command {
	var (
		format string
		output string
		runID  string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export article URLs recorded in a journal",
		Long: `Read the article pages recorded by a crawl journal and write them as JSON,
CSV or an XML sitemap. The latest run is exported unless --run is given.`,
		Args: cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			return bindFlags(v, cmd.Flags(), map[string]string{"storage.journal_path": "journal"})
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			journal, err := openJournal(v)
			if err != nil {
				return err
			}
			defer journal.Close()

			records, err := journal.TerminalPages(cmd.Context(), runID)
			if err != nil {
				return err
			}

			if output == "" || output == "-" {
				_, err = export.Write(cmd.OutOrStdout(), format, records)
				return err
			}
			n, err := export.ToFile(output, format, records)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "exported %d URLs to %s\n", n, output)
			return nil
		},
	}

	cmd.Flags().String("journal", "", "SQLite journal written by crawl --journal")
	cmd.Flags().StringVar(&format, "format", export.FormatJSON,
		"output format: "+strings.Join(export.Formats, ", "))
	cmd.Flags().StringVarP(&output, "output", "o", "-", "output file, - for stdout")
	cmd.Flags().StringVar(&runID, "run", "", "run id to export (default latest)")

	return cmd
}

func newRunsCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List the crawl runs recorded in a journal",
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			return bindFlags(v, cmd.Flags(), map[string]string{"storage.journal_path": "journal"})
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			journal, err := openJournal(v)
			if err != nil {
				return err
			}
			defer journal.Close()

			runs, err := journal.Runs(cmd.Context())
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "RUN\tSTARTED\tFINISHED\tSEEDS\tFETCHED\tERRORS\tWRITTEN")
			for _, run := range runs {
				finished := "-"
				if run.FinishedAt != nil {
					finished = run.FinishedAt.Local().Format("2006-01-02 15:04:05")
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%d\n",
					run.ID, run.StartedAt.Local().Format("2006-01-02 15:04:05"), finished,
					run.Seeds, run.Results.Fetched, run.Results.Errors, run.Results.Written)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().String("journal", "", "SQLite journal written by crawl --journal")
	return cmd
}

func openJournal(v *viper.Viper) (*storage.Journal, error) {
	path := v.GetString("storage.journal_path")
	if path == "" {
		return nil, errors.New("a journal is required: pass --journal or set storage.journal_path")
	}
	return storage.OpenJournal(path, nil)
}
