package cmd

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/wawrzek/carbon-multi-resize/lib"
)

var (
	exitOnMismatch bool
	checkCmd       = &cobra.Command{
		Use:   "check [whisper-dir]",
		Args:  cobra.MaximumNArgs(1),
		Short: "report whisper files whose configuration differs from the schemas",
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, err := loadConfig()
			if err != nil {
				return err
			}
			storage, aggregation, err := loadRegistries(conf)
			if err != nil {
				return err
			}
			whisperDir := whisperDirArg(conf, args)
			files, err := findFiles(whisperDir)
			if err != nil {
				return err
			}
			if len(files) == 0 {
				return fmt.Errorf("no .wsp files found under %s", whisperDir)
			}

			// output table header
			wr := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
			_, _ = fmt.Fprintln(wr, "status\tmetric\texpected\tactual\tdetail")

			metrics := lib.NewMetrics()
			r := &lib.Reconciler{
				Root:        whisperDir,
				Storage:     storage,
				Aggregation: aggregation,
				Store:       lib.WhisperStore{Logger: logger},
				Logger:      logger,
				Metrics:     metrics,
				OnOutcome: func(o lib.Outcome) {
					writeOutcome(wr, o)
				},
			}
			summary, runErr := r.Run(cmd.Context(), files)
			if err := wr.Flush(); err != nil {
				fmt.Fprintln(os.Stderr, "error flushing TabWriter")
			}
			writeMetrics(conf, metrics)

			if err := runError(summary, runErr, "could not be checked"); err != nil {
				return err
			}
			if summary.Mismatched > 0 && exitOnMismatch {
				return errors.New("mismatches found")
			}
			return nil
		},
	}
)

func writeOutcome(wr *tabwriter.Writer, o lib.Outcome) {
	expected := lib.FormatRetentionList(o.Effective.Archives)
	actual := lib.FormatRetentionList(o.Observed.Archives)
	switch o.Status {
	case lib.StatusOK:
		_, _ = fmt.Fprintf(wr, "OK\t%s\t%s\t%s\tmatched schema[%s]\n", o.Metric, expected, actual, o.Effective.StorageSchema)
	case lib.StatusMismatch, lib.StatusResized:
		_, _ = fmt.Fprintf(wr, "MISMATCH\t%s\texpected:%s\tgot:%s\tschema[%s] %s\n",
			o.Metric, expected, actual, o.Effective.StorageSchema, o.Mismatch)
	default:
		_, _ = fmt.Fprintf(wr, "ERROR\t%s\t-\t-\t%v\n", o.Metric, o.Err)
	}
}

func init() {
	checkCmd.Flags().BoolVar(&exitOnMismatch, "exit-on-mismatch", true, "exit with non-zero code if any mismatch is found")
	rootCmd.AddCommand(checkCmd)
}
