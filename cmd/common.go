package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/wawrzek/carbon-multi-resize/lib"
)

func loadRegistries(conf *lib.Config) (*lib.StorageRegistry, *lib.AggregationRegistry, error) {
	opts := lib.LoadOptions{
		Fs:                  afero.NewOsFs(),
		ListsDir:            conf.ListsDir,
		ListRefreshInterval: conf.ListRefreshInterval,
		Logger:              logger,
	}

	logger.Info("Loading storage-schemas configuration", zap.String("path", conf.Schemas))
	storage, err := lib.LoadStorageSchemasFile(conf.Schemas, opts)
	if err != nil && storage == nil {
		return nil, nil, err
	}

	aggregation := lib.NewRegistry("aggregation", nil, lib.DefaultAggregationSchema())
	if conf.Aggregation != "" {
		logger.Info("Loading storage-aggregation configuration", zap.String("path", conf.Aggregation))
		// invalid sections were already logged one by one
		aggregation, _ = lib.LoadAggregationSchemasFile(conf.Aggregation, opts)
	}

	logger.Info("Schemas loaded", zap.String("registry", storage.Kind()), zap.Int("schemas", storage.Len()))
	logger.Info("Schemas loaded", zap.String("registry", aggregation.Kind()), zap.Int("schemas", aggregation.Len()))
	return storage, aggregation, nil
}

func findFiles(whisperDir string) ([]string, error) {
	files, err := lib.FindWhisperFiles(whisperDir, logger)
	if err != nil {
		return nil, fmt.Errorf("failed walking root %s: %w", whisperDir, err)
	}
	logger.Info("Found whisper files", zap.Int("count", len(files)), zap.String("root", whisperDir))
	return files, nil
}

func whisperDirArg(conf *lib.Config, args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return conf.WhisperDir
}

func writeMetrics(conf *lib.Config, metrics *lib.Metrics) {
	if conf.MetricsTextfile == "" {
		return
	}
	if err := metrics.WriteTextfile(conf.MetricsTextfile); err != nil {
		logger.Warn("Failed to write metrics textfile", zap.String("path", conf.MetricsTextfile), zap.Error(err))
	}
}

// runError turns the result of a reconciliation run into the command error.
func runError(summary lib.Summary, runErr error, failed string) error {
	if runErr == nil {
		return nil
	}
	if errors.Is(runErr, context.Canceled) || errors.Is(runErr, context.DeadlineExceeded) {
		return fmt.Errorf("run interrupted after %d files: %w", summary.Processed, runErr)
	}
	return fmt.Errorf("%d of %d files %s: %w", summary.Failed, summary.Processed, failed, runErr)
}
