package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wawrzek/carbon-multi-resize/lib"
)

var resizeCmd = &cobra.Command{
	Use:   "resize [whisper-dir]",
	Args:  cobra.MaximumNArgs(1),
	Short: "resize every whisper file whose configuration differs from the schemas",
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

		resizer, err := lib.NewCommandResizer(conf.ResizeCommand, conf.ResizeTimeout, conf.Backup, logger)
		if err != nil {
			return err
		}
		metrics := lib.NewMetrics()
		r := &lib.Reconciler{
			Root:        whisperDir,
			Storage:     storage,
			Aggregation: aggregation,
			Store:       lib.WhisperStore{Logger: logger},
			Resizer:     resizer,
			DryRun:      conf.DryRun,
			Logger:      logger,
			Metrics:     metrics,
		}
		if conf.DryRun {
			r.OnOutcome = func(o lib.Outcome) {
				if o.Status == lib.StatusMismatch {
					logger.Info("Dry run, not resizing",
						zap.String("command", resizer.CommandLine(lib.ResizeRequest{Path: o.Path, Config: o.Effective})))
				}
			}
		}

		summary, runErr := r.Run(cmd.Context(), files)
		writeMetrics(conf, metrics)
		return runError(summary, runErr, "failed to reconcile")
	},
}

func init() {
	flags := resizeCmd.Flags()
	flags.String("resize-command", "", "resize tool, shell quoted (default <graphite-root>/bin/whisper-resize.py)")
	flags.Duration("resize-timeout", 0, "kill a resize that runs longer than this, 0 waits forever (default 10m)")
	flags.Bool("backup", false, "let the resize tool keep a backup instead of passing --nobackup")
	flags.Bool("dry-run", false, "log the resize commands without running them")
	for _, name := range []string{"resize-command", "resize-timeout", "backup", "dry-run"} {
		if err := v.BindPFlag(name, flags.Lookup(name)); err != nil {
			fmt.Println(err)
		}
	}
	rootCmd.AddCommand(resizeCmd)
}
