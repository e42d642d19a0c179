package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/wawrzek/carbon-multi-resize/lib"
)

var (
	short   bool
	infoCmd = &cobra.Command{
		Use:   "info [whisper-file]",
		Args:  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		Short: "dump info about whisper file",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			info, err := lib.WhisperStore{Logger: logger}.Info(path)
			if err != nil {
				return err
			}

			if short {
				fmt.Println(lib.FormatRetentionList(info.Archives))
				return nil
			}

			fmt.Printf("File: %s\n", path)
			fmt.Printf("Aggregation: %s\n", info.AggregationMethod)
			fmt.Printf("xFilesFactor: %g\n", *info.XFilesFactor)
			fmt.Println()

			wr := tabwriter.NewWriter(os.Stdout, 4, 4, 2, ' ', 0)
			_, _ = fmt.Fprintln(wr, "archive\tseconds/point\t#points\tretention\tmax age (sec)")
			for i, a := range info.Archives {
				_, _ = fmt.Fprintf(wr, "%d\t%d\t%d\t%s\t%d\n",
					i,
					a.SecondsPerPoint,
					a.Points,
					lib.ToHuman(a.RetentionSecs()),
					a.RetentionSecs(),
				)
			}
			err = wr.Flush()
			if err != nil {
				fmt.Fprintln(os.Stderr, "error flushing TabWriter")
			}
			return nil
		},
	}
)

func init() {
	infoCmd.Flags().BoolVar(&short, "short", false, "print retention in storage-schemas.conf format (e.g. 5m:60d,1h:2y)")
	rootCmd.AddCommand(infoCmd)
}
