// Package docker wraps the Docker engine API for the local image build step.
package docker

import (
	"archive/tar"
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/client"
	extErrors "github.com/pkg/errors"
	"go.uber.org/zap"
)

// ImageAPI is the slice of the engine API the builder needs; *client.Client
// satisfies it.
type ImageAPI interface {
	ImageBuild(ctx context.Context, buildContext io.Reader, options types.ImageBuildOptions) (types.ImageBuildResponse, error)
	ImageInspectWithRaw(ctx context.Context, imageID string) (types.ImageInspect, []byte, error)
}

var _ ImageAPI = (*client.Client)(nil)

type Options struct {
	Client ImageAPI
	Logger *zap.Logger
}

// Builder builds project images through the Docker engine.
type Builder struct {
	Options
}

// NewBuilder returns an image builder backed by the engine API.
func NewBuilder(option Options) (*Builder, error) {
	if option.Client == nil {
		return nil, fmt.Errorf("nil Client is invalid")
	}
	if option.Logger == nil {
		return nil, fmt.Errorf("nil Logger is invalid")
	}
	return &Builder{
		Options: option,
	}, nil
}

// Build builds an image from the given Dockerfile and context directory and
// returns the tag. The Dockerfile existence check happens before the engine
// is involved so a missing file never burns an engine round trip.
func (b *Builder) Build(ctx context.Context, dockerfilePath, buildContext, tag string, buildArgs map[string]string) (string, error) {
	if _, err := os.Stat(dockerfilePath); err != nil {
		return "", extErrors.Wrapf(err, "Dockerfile not found: %s", dockerfilePath)
	}

	contextTar, err := tarDirectory(buildContext)
	if err != nil {
		return "", extErrors.Wrap(err, "Cannot archive build context")
	}

	dockerfileRef := dockerfilePath
	if rel, err := filepath.Rel(buildContext, dockerfilePath); err == nil {
		dockerfileRef = rel
	}

	args := make(map[string]*string, len(buildArgs))
	for k := range buildArgs {
		v := buildArgs[k]
		args[k] = &v
	}

	b.Logger.Info("Building image",
		zap.String("Tag", tag),
		zap.String("Dockerfile", dockerfileRef),
	)

	resp, err := b.Client.ImageBuild(ctx, contextTar, types.ImageBuildOptions{
		Tags:       []string{tag},
		Dockerfile: dockerfileRef,
		BuildArgs:  args,
		Remove:     true,
	})
	if err != nil {
		return "", extErrors.Wrap(err, "Cannot build image")
	}
	defer resp.Body.Close()

	if err := b.drainBuildOutput(resp.Body); err != nil {
		return "", extErrors.Wrap(err, "Image build failed")
	}

	b.Logger.Info("Image built successfully",
		zap.String("Tag", tag),
	)
	return tag, nil
}

// ImageExists reports whether the tag is present locally. It never mutates
// engine state.
func (b *Builder) ImageExists(ctx context.Context, tag string) bool {
	_, _, err := b.Client.ImageInspectWithRaw(ctx, tag)
	return err == nil
}

// buildMessage is the engine's streamed build status line.
type buildMessage struct {
	Stream string `json:"stream"`
	Error  string `json:"error"`
}

// drainBuildOutput consumes the build stream; the engine reports failures as
// in-band error messages, not as an HTTP error.
func (b *Builder) drainBuildOutput(body io.Reader) error {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		var msg buildMessage
		if err := json.Unmarshal(scanner.Bytes(), &msg); err != nil {
			continue
		}
		if msg.Error != "" {
			return fmt.Errorf("%s", msg.Error)
		}
		if msg.Stream != "" {
			b.Logger.Debug(msg.Stream)
		}
	}
	return scanner.Err()
}

// tarDirectory archives dir for use as an engine build context.
func tarDirectory(dir string) (io.Reader, error) {
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}

		header, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		header.Name = filepath.ToSlash(rel)
		if err := tw.WriteHeader(header); err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(tw, f)
		return err
	})
	if err != nil {
		return nil, err
	}
	if err := tw.Close(); err != nil {
		return nil, err
	}
	return &buf, nil
}
