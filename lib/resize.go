package lib

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	shellquote "github.com/kballard/go-shellquote"
	"go.uber.org/zap"
)

// ResizeRequest asks for a file to be rewritten with a new configuration.
type ResizeRequest struct {
	Path   string
	Config ArchiveConfig
}

// Resizer rewrites a whisper file to a new configuration. The rewrite is all
// or nothing from the caller's point of view.
type Resizer interface {
	Resize(ctx context.Context, req ResizeRequest) error
}

// CommandResizer runs an external resize tool such as whisper-resize.py:
//
//	<command> <path> <spp:points>... [--nobackup] [--aggregationMethod=M] [--xFilesFactor=X]
type CommandResizer struct {
	command []string
	timeout time.Duration
	backup  bool
	logger  *zap.Logger
}

// NewCommandResizer splits command with shell quoting rules. A zero timeout
// lets the command run until ctx is done.
func NewCommandResizer(command string, timeout time.Duration, backup bool, logger *zap.Logger) (*CommandResizer, error) {
	argv, err := shellquote.Split(command)
	if err != nil {
		return nil, fmt.Errorf("invalid resize command %q: %w", command, err)
	}
	if len(argv) == 0 {
		return nil, errors.New("resize command is empty")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CommandResizer{
		command: argv,
		timeout: timeout,
		backup:  backup,
		logger:  logger,
	}, nil
}

// Args returns the full command line for req.
func (r *CommandResizer) Args(req ResizeRequest) []string {
	args := make([]string, 0, len(r.command)+len(req.Config.Archives)+4)
	args = append(args, r.command...)
	args = append(args, req.Path)
	for _, a := range req.Config.Archives {
		args = append(args, a.String())
	}
	if !r.backup {
		args = append(args, "--nobackup")
	}
	if req.Config.AggregationMethod != AggregationUnset {
		args = append(args, "--aggregationMethod="+string(req.Config.AggregationMethod))
	}
	if req.Config.XFilesFactor != nil {
		args = append(args, "--xFilesFactor="+formatXFilesFactor(req.Config.XFilesFactor))
	}
	return args
}

// CommandLine renders the command for logs.
func (r *CommandResizer) CommandLine(req ResizeRequest) string {
	return shellquote.Join(r.Args(req)...)
}

func (r *CommandResizer) Resize(ctx context.Context, req ResizeRequest) error {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	args := r.Args(req)
	r.logger.Info("Resizing whisper file",
		zap.String("path", req.Path),
		zap.String("command", shellquote.Join(args...)),
	)

	var output bytes.Buffer
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Stdout = &output
	cmd.Stderr = &output
	// children that keep the output pipe open must not outlive the kill
	cmd.WaitDelay = 5 * time.Second

	start := time.Now()
	err := cmd.Run()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		return fmt.Errorf("%w: %s: %v: %s", ErrResizeInvocation, req.Path, err, strings.TrimSpace(output.String()))
	}
	r.logger.Debug("Resize finished",
		zap.String("path", req.Path),
		zap.Duration("took", time.Since(start)),
		zap.String("output", strings.TrimSpace(output.String())),
	)
	return nil
}
