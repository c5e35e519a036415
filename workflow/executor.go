// Package workflow sequences the remote-execution steps: validate, resolve,
// build, upload, run, download. Each step gates the next on success; the
// download step alone runs best-effort after a failed command.
package workflow

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/variousplug/vp/config"
	"github.com/variousplug/vp/platform"
	"github.com/variousplug/vp/util"
)

// ImageBuilder is the builder capability the workflow consumes; implemented
// by docker.Builder.
type ImageBuilder interface {
	Build(ctx context.Context, dockerfilePath, buildContext, tag string, buildArgs map[string]string) (string, error)
	ImageExists(ctx context.Context, tag string) bool
}

// Options wires the executor's collaborators. Every workflow invocation owns
// its own client and sync constructed fresh from configuration, so separate
// invocations need no coordination.
type Options struct {
	Config   *config.Manager
	Client   platform.Client
	FileSync platform.FileSync
	Builder  ImageBuilder
	Logger   *zap.Logger
}

// Executor runs the workflow state machine.
type Executor struct {
	Options
}

// NewExecutor returns a workflow executor.
func NewExecutor(option Options) (*Executor, error) {
	if option.Config == nil {
		return nil, fmt.Errorf("nil Config is invalid")
	}
	if option.Client == nil {
		return nil, fmt.Errorf("nil Client is invalid")
	}
	if option.FileSync == nil {
		return nil, fmt.Errorf("nil FileSync is invalid")
	}
	if option.Builder == nil {
		return nil, fmt.Errorf("nil Builder is invalid")
	}
	if option.Logger == nil {
		return nil, fmt.Errorf("nil Logger is invalid")
	}
	return &Executor{
		Options: option,
	}, nil
}

// Request describes one workflow invocation. Build and sync toggle
// independently: NoBuild skips the image build, NoSync skips both transfer
// directions, and SyncOnly stops after the upload.
type Request struct {
	Command    []string
	InstanceID string
	SyncOnly   bool
	NoSync     bool
	NoBuild    bool
	Dockerfile string
	WorkingDir string
}

// Result is the terminal workflow outcome: the (possibly simulated) command
// result plus elapsed wall-clock time.
type Result struct {
	platform.ExecutionResult
	Duration time.Duration
}

// Execute runs the state machine. Every fatal condition yields a failed
// Result with a one-line reason; the executor never terminates the process.
func (e *Executor) Execute(ctx context.Context, req Request) Result {
	start := time.Now()
	fail := func(format string, args ...interface{}) Result {
		return Result{
			ExecutionResult: platform.FailedResult(format, args...),
			Duration:        time.Since(start),
		}
	}

	if err := ValidateCommand(req.Command); err != nil {
		return fail("invalid command: %v", err)
	}

	workingDir := req.WorkingDir
	if workingDir == "" {
		workingDir = e.Config.GetProjectConfig().WorkingDir
	}

	// Resolve before building: no point producing an image with nowhere to
	// run it. Stopped instances are acceptable here, a restart is cheaper
	// than a fresh rental.
	target, err := ResolveInstance(ctx, e.Logger, e.Client, req.InstanceID, true)
	if err != nil {
		return fail("cannot resolve target instance: %v", err)
	}
	if target == nil && !req.SyncOnly {
		return fail("no instance available for execution")
	}
	if target != nil {
		e.Logger.Info("Target instance resolved",
			zap.String("InstanceID", target.ID),
			zap.String("Platform", target.Platform),
			zap.String("Status", string(target.Status)),
		)
	}

	if e.shouldBuild(req) {
		if err := e.buildStep(ctx, req.Dockerfile); err != nil {
			return fail("build step failed: %v", err)
		}
	}

	if !req.NoSync && target != nil {
		if err := e.uploadStep(ctx, target, workingDir); err != nil {
			return fail("upload sync step failed: %v", err)
		}
	}

	if req.SyncOnly {
		e.Logger.Info("Sync completed successfully")
		return Result{
			ExecutionResult: platform.ExecutionResult{Success: true, Output: "Files synchronized"},
			Duration:        time.Since(start),
		}
	}

	runResult := e.runStep(ctx, req.Command, target, workingDir)

	// Best-effort artifact retrieval: runs even when the command failed,
	// and its own failure never overturns the command result.
	if !req.NoSync {
		if err := e.downloadStep(ctx, target, workingDir); err != nil {
			e.Logger.Warn("Download sync failed",
				zap.String("InstanceID", target.ID),
				zap.Error(err),
			)
		}
	}

	duration := time.Since(start)
	e.Logger.Info("Execution completed",
		zap.String("Elapsed", util.FormatDuration(duration)),
		zap.Bool("Success", runResult.Success),
	)

	return Result{
		ExecutionResult: runResult,
		Duration:        duration,
	}
}

// shouldBuild gates the image build: it needs docker enabled in config and
// no per-run opt-out. Sync flags do not influence it.
func (e *Executor) shouldBuild(req Request) bool {
	return !req.NoBuild && e.Config.GetDockerConfig().Enabled
}

func (e *Executor) buildStep(ctx context.Context, dockerfileOverride string) error {
	e.Logger.Info("Build step: building image")

	dockerCfg := e.Config.GetDockerConfig()
	projectCfg := e.Config.GetProjectConfig()

	dockerfile := dockerfileOverride
	if dockerfile == "" {
		dockerfile = dockerCfg.Dockerfile
	}

	tag := fmt.Sprintf("vp-%s:latest", projectCfg.Name)
	_, err := e.Builder.Build(ctx, dockerfile, dockerCfg.BuildContext, tag, dockerCfg.BuildArgs)
	return err
}

func (e *Executor) uploadStep(ctx context.Context, target *platform.InstanceInfo, workingDir string) error {
	e.Logger.Info("Sync step: uploading files",
		zap.String("InstanceID", target.ID),
	)

	ignorePatterns, err := util.ReadIgnorePatterns(".")
	if err != nil {
		// A broken ignore file should not abort the sync.
		e.Logger.Warn("Cannot read ignore file",
			zap.Error(err),
		)
	}
	excludes := util.MergePatterns(e.Config.GetSyncConfig().ExcludePatterns, ignorePatterns)

	return e.FileSync.Upload(ctx, target, ".", workingDir, excludes)
}

func (e *Executor) downloadStep(ctx context.Context, target *platform.InstanceInfo, workingDir string) error {
	e.Logger.Info("Sync step: downloading files",
		zap.String("InstanceID", target.ID),
	)

	dataDir := e.Config.GetProjectConfig().DataDir
	remotePath := workingDir + "/" + dataDir
	localPath := "./" + dataDir

	return e.FileSync.Download(ctx, target, remotePath, localPath)
}

func (e *Executor) runStep(ctx context.Context, command []string, target *platform.InstanceInfo, workingDir string) platform.ExecutionResult {
	e.Logger.Info("Run step: executing command",
		zap.String("InstanceID", target.ID),
		zap.Strings("Command", command),
	)

	return e.Client.ExecuteCommand(ctx, target.ID, command, workingDir)
}
