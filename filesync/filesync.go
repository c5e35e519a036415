// Package filesync moves a project tree between the local machine and a
// remote instance. The rsync implementation shells out to rsync over SSH;
// platforms without any sync support get the no-op implementation.
package filesync

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	extErrors "github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/variousplug/vp/platform"
	"github.com/variousplug/vp/util"
)

const defaultTransferTimeout = 5 * time.Minute

// rsync exit codes signalling a partial transfer rather than a hard failure.
const (
	rsyncPartialTransferError = 23
	rsyncPartialVanishedFiles = 24
)

// Options configures an Rsync sync.
type Options struct {
	Runner util.Runner
	Logger *zap.Logger

	// Delete removes remote files that no longer exist locally on upload.
	Delete bool
	// Timeout bounds each transfer subprocess. Zero means the default.
	Timeout time.Duration
}

// Rsync is the rsync-over-SSH file sync implementation.
type Rsync struct {
	Options
}

var _ platform.FileSync = &Rsync{}

// NewRsync returns an rsync-based FileSync.
func NewRsync(option Options) (*Rsync, error) {
	if option.Runner == nil {
		return nil, fmt.Errorf("nil Runner is invalid")
	}
	if option.Logger == nil {
		return nil, fmt.Errorf("nil Logger is invalid")
	}
	if option.Timeout == 0 {
		option.Timeout = defaultTransferTimeout
	}
	return &Rsync{
		Options: option,
	}, nil
}

// Upload pushes the local tree to the instance. A missing SSH triple is a
// logged failure, and any rsync failure is fatal to the upload.
func (s *Rsync) Upload(ctx context.Context, instance *platform.InstanceInfo, localPath, remotePath string, excludePatterns []string) error {
	if !instance.HasSSH() {
		s.Logger.Error("SSH connection info not available for upload",
			zap.String("InstanceID", instance.ID),
		)
		return fmt.Errorf("instance %s has no SSH connection info", instance.ID)
	}

	args := []string{"-avz", "--progress"}
	if s.Delete {
		args = append(args, "--delete")
	}
	for _, pattern := range excludePatterns {
		args = append(args, "--exclude", pattern)
	}
	args = append(args,
		"-e", platform.SSHTransport(instance.SSHPort),
		localPath+"/",
		fmt.Sprintf("%s:%s/", platform.SSHTarget(instance), remotePath),
	)

	s.Logger.Info("Uploading files to instance",
		zap.String("InstanceID", instance.ID),
		zap.String("Target", platform.SSHTarget(instance)),
		zap.Int("Port", instance.SSHPort),
	)

	result, err := s.Runner.Run(ctx, s.Timeout, "rsync", args...)
	if err != nil {
		if errors.Is(err, util.ErrCommandTimeout) {
			return extErrors.Wrap(err, "Upload timed out")
		}
		return extErrors.Wrap(err, "Cannot run rsync for upload")
	}
	if result.ExitCode != 0 {
		return fmt.Errorf("upload failed (rsync exit %d): %s", result.ExitCode, result.Stderr)
	}

	s.Logger.Info("Files uploaded successfully",
		zap.String("InstanceID", instance.ID),
	)
	return nil
}

// Download pulls results back from the instance. Partial transfers are
// reported as warnings and still succeed, because partial result retrieval
// beats treating the run's artifacts as lost.
func (s *Rsync) Download(ctx context.Context, instance *platform.InstanceInfo, remotePath, localPath string) error {
	if !instance.HasSSH() {
		s.Logger.Error("SSH connection info not available for download",
			zap.String("InstanceID", instance.ID),
		)
		return fmt.Errorf("instance %s has no SSH connection info", instance.ID)
	}

	if err := os.MkdirAll(localPath, 0o755); err != nil {
		return extErrors.Wrap(err, "Cannot create local download directory")
	}

	args := []string{
		"-avz", "--progress",
		"-e", platform.SSHTransport(instance.SSHPort),
		fmt.Sprintf("%s:%s/", platform.SSHTarget(instance), remotePath),
		localPath + "/",
	}

	s.Logger.Info("Downloading files from instance",
		zap.String("InstanceID", instance.ID),
		zap.String("Source", platform.SSHTarget(instance)),
		zap.Int("Port", instance.SSHPort),
	)

	result, err := s.Runner.Run(ctx, s.Timeout, "rsync", args...)
	if err != nil {
		if errors.Is(err, util.ErrCommandTimeout) {
			return extErrors.Wrap(err, "Download timed out")
		}
		return extErrors.Wrap(err, "Cannot run rsync for download")
	}

	switch result.ExitCode {
	case 0:
		s.Logger.Info("Files downloaded successfully",
			zap.String("InstanceID", instance.ID),
		)
		return nil
	case rsyncPartialTransferError, rsyncPartialVanishedFiles:
		s.Logger.Warn("Download completed with partial transfer",
			zap.String("InstanceID", instance.ID),
			zap.Int("ExitCode", result.ExitCode),
			zap.String("Stderr", result.Stderr),
		)
		return nil
	default:
		return fmt.Errorf("download failed (rsync exit %d): %s", result.ExitCode, result.Stderr)
	}
}

// Noop is the FileSync for platforms without any file transfer support. It
// always succeeds while warning the operator that nothing moved.
type Noop struct {
	Logger *zap.Logger
}

var _ platform.FileSync = &Noop{}

// NewNoop returns a no-op FileSync.
func NewNoop(logger *zap.Logger) (*Noop, error) {
	if logger == nil {
		return nil, fmt.Errorf("nil Logger is invalid")
	}
	return &Noop{
		Logger: logger,
	}, nil
}

func (n *Noop) Upload(_ context.Context, instance *platform.InstanceInfo, _, _ string, _ []string) error {
	n.Logger.Warn("File sync not supported for platform, skipping upload",
		zap.String("Platform", instance.Platform),
	)
	return nil
}

func (n *Noop) Download(_ context.Context, instance *platform.InstanceInfo, _, _ string) error {
	n.Logger.Warn("File sync not supported for platform, skipping download",
		zap.String("Platform", instance.Platform),
	)
	return nil
}
