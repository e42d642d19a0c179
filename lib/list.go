package lib

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/klauspost/compress/zstd"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

// MembershipList is a set of metric names backed by a file. The set is
// reloaded when the file's modification time moves past the one seen at the
// last load. Between two checks the cached set may be stale; refreshInterval
// bounds how often the file is stat'ed (zero checks on every lookup).
type MembershipList struct {
	fs              afero.Fs
	path            string
	refreshInterval time.Duration
	now             func() time.Time
	logger          *zap.Logger

	mu        sync.Mutex
	members   map[string]struct{}
	mtime     time.Time
	checkedAt time.Time
}

type ListOption func(*MembershipList)

// WithRefreshInterval sets the minimum time between two stat calls on the list file.
func WithRefreshInterval(d time.Duration) ListOption {
	return func(l *MembershipList) {
		l.refreshInterval = d
	}
}

// WithClock replaces time.Now, used to simulate the passage of time.
func WithClock(now func() time.Time) ListOption {
	return func(l *MembershipList) {
		l.now = now
	}
}

func WithListLogger(logger *zap.Logger) ListOption {
	return func(l *MembershipList) {
		l.logger = logger
	}
}

// NewMembershipList loads the list at path. A missing file is an empty list.
func NewMembershipList(fs afero.Fs, path string, opts ...ListOption) *MembershipList {
	l := &MembershipList{
		fs:      fs,
		path:    path,
		now:     time.Now,
		logger:  zap.NewNop(),
		members: map[string]struct{}{},
	}
	for _, opt := range opts {
		opt(l)
	}
	l.mu.Lock()
	l.refresh()
	l.mu.Unlock()
	return l
}

// Contains reports whether metric is in the list as of the latest refresh.
func (l *MembershipList) Contains(metric string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.refresh()
	_, ok := l.members[metric]
	return ok
}

func (l *MembershipList) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.members)
}

// refresh must be called with mu held.
func (l *MembershipList) refresh() {
	now := l.now()
	if l.refreshInterval > 0 && !l.checkedAt.IsZero() && now.Sub(l.checkedAt) < l.refreshInterval {
		return
	}
	l.checkedAt = now

	info, err := l.fs.Stat(l.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			l.logger.Warn("Failed to stat membership list", zap.String("path", l.path), zap.Error(err))
			return
		}
		if len(l.members) > 0 {
			l.logger.Info("Membership list removed, clearing members", zap.String("path", l.path))
		}
		l.members = map[string]struct{}{}
		l.mtime = time.Time{}
		return
	}
	if !info.ModTime().After(l.mtime) {
		return
	}
	// a broken file is not parsed again until it changes
	l.mtime = info.ModTime()

	data, err := afero.ReadFile(l.fs, l.path)
	if err != nil {
		l.logger.Warn("Failed to read membership list", zap.String("path", l.path), zap.Error(err))
		return
	}
	members, err := parseMembers(data)
	if err != nil {
		l.logger.Warn("Failed to parse membership list, keeping previous members",
			zap.String("path", l.path), zap.Error(err))
		return
	}
	l.members = members
	l.logger.Debug("Loaded membership list",
		zap.String("path", l.path),
		zap.Int("members", len(members)),
		zap.Time("mtime", l.mtime),
	)
}

// parseMembers accepts a JSON array of names or one name per line, optionally
// zstd compressed.
func parseMembers(data []byte) (map[string]struct{}, error) {
	if bytes.HasPrefix(data, zstdMagic) {
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
		}
		defer dec.Close()
		data, err = dec.DecodeAll(data, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to decompress list: %w", err)
		}
	}

	members := map[string]struct{}{}
	trimmed := bytes.TrimSpace(data)
	if bytes.HasPrefix(trimmed, []byte("[")) {
		var names []string
		if err := json.Unmarshal(trimmed, &names); err != nil {
			return nil, fmt.Errorf("invalid JSON list: %w", err)
		}
		for _, n := range names {
			members[n] = struct{}{}
		}
		return members, nil
	}

	scanner := bufio.NewScanner(bytes.NewReader(trimmed))
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 || line[0] == '#' {
			continue
		}
		members[string(line)] = struct{}{}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return members, nil
}
