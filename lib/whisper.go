package lib

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	whisper "github.com/go-graphite/go-whisper"
	"go.uber.org/zap"
)

// ArchiveStore reads the configuration stored in a whisper file header.
type ArchiveStore interface {
	Info(path string) (ArchiveConfig, error)
}

// WhisperStore reads headers with go-whisper.
type WhisperStore struct {
	Logger *zap.Logger
}

func (s WhisperStore) Info(path string) (ArchiveConfig, error) {
	w, err := whisper.Open(path)
	if err != nil {
		return ArchiveConfig{}, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() {
		err := w.Close()
		if err != nil && s.Logger != nil {
			s.Logger.Warn("Failed to close whisper file", zap.String("path", path), zap.Error(err))
		}
	}()

	xff := w.XFilesFactor()
	return ArchiveConfig{
		Archives:          WhisperRetentionsToSpecs(w.Retentions()),
		XFilesFactor:      &xff,
		AggregationMethod: AggregationMethod(w.AggregationMethod().String()),
	}, nil
}

// WhisperRetentionsToSpecs converts whisper.Retentions() -> []ArchiveSpec preserving order.
func WhisperRetentionsToSpecs(retentions []whisper.Retention) []ArchiveSpec {
	out := make([]ArchiveSpec, 0, len(retentions))
	for _, r := range retentions {
		out = append(out, ArchiveSpec{
			SecondsPerPoint: r.SecondsPerPoint(),
			Points:          r.NumberOfPoints(),
		})
	}
	return out
}

// FindWhisperFiles walks root and returns all files ending with .wsp.
// Entries that cannot be read are logged and skipped.
func FindWhisperFiles(root string, logger *zap.Logger) ([]string, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	out := []string{}
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			logger.Warn("Skipping unreadable path", zap.String("path", path), zap.Error(err))
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if strings.HasSuffix(strings.ToLower(path), ".wsp") {
			out = append(out, path)
		}
		return nil
	})
	return out, err
}

// MetricFromPath converts a filesystem path to Graphite metric name relative to root.
// e.g. /var/lib/graphite/whisper/servers/web01/cpu.wsp -> servers.web01.cpu
func MetricFromPath(root, full string) string {
	rel, err := filepath.Rel(root, full)
	if err != nil {
		// fallback to full path turned into dots (not ideal)
		rel = full
	}
	if strings.HasSuffix(strings.ToLower(rel), ".wsp") {
		rel = rel[:len(rel)-len(".wsp")]
	}
	rel = strings.TrimPrefix(rel, string(filepath.Separator))
	return strings.ReplaceAll(rel, string(filepath.Separator), ".")
}
