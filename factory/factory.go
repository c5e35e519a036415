// Package factory selects and constructs the platform client and file sync
// pair for a named platform. The registry is open: new platforms register at
// runtime without touching existing constructors.
package factory

import (
	"errors"
	"fmt"
	"sort"

	extErrors "github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/variousplug/vp/config"
	"github.com/variousplug/vp/filesync"
	"github.com/variousplug/vp/platform"
	"github.com/variousplug/vp/platform/runpod"
	"github.com/variousplug/vp/platform/vast"
	"github.com/variousplug/vp/util"
)

// Configuration errors, surfaced before any network call is made.
var (
	ErrUnknownPlatform   = errors.New("unsupported platform")
	ErrMissingCredential = errors.New("API key not configured")
)

// Deps are the shared collaborators handed to every constructor.
type Deps struct {
	Logger *zap.Logger
	Runner util.Runner
}

// ClientConstructor builds a platform client from its credential block.
type ClientConstructor func(cfg config.PlatformConfig, deps Deps) (platform.Client, error)

// FileSyncConstructor builds the file sync for a platform. A nil constructor
// in the registry means the platform has no sync support and callers get the
// no-op implementation.
type FileSyncConstructor func(cfg config.PlatformConfig, deps Deps) (platform.FileSync, error)

// Factory is the platform registry.
type Factory struct {
	deps    Deps
	clients map[string]ClientConstructor
	syncs   map[string]FileSyncConstructor
}

// New returns a Factory with the built-in platforms registered.
func New(deps Deps) (*Factory, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("nil Logger is invalid")
	}
	if deps.Runner == nil {
		return nil, fmt.Errorf("nil Runner is invalid")
	}

	f := &Factory{
		deps:    deps,
		clients: make(map[string]ClientConstructor),
		syncs:   make(map[string]FileSyncConstructor),
	}

	f.Register(vast.PlatformName,
		func(cfg config.PlatformConfig, deps Deps) (platform.Client, error) {
			return vast.NewClient(vast.Options{
				APIKey:          cfg.APIKey,
				Logger:          deps.Logger,
				Runner:          deps.Runner,
				AllowSimulation: cfg.AllowSimulation,
			})
		},
		func(cfg config.PlatformConfig, deps Deps) (platform.FileSync, error) {
			// Vast uploads mirror the local tree, deletions included.
			return filesync.NewRsync(filesync.Options{
				Runner: deps.Runner,
				Logger: deps.Logger,
				Delete: true,
			})
		})

	f.Register(runpod.PlatformName,
		func(cfg config.PlatformConfig, deps Deps) (platform.Client, error) {
			return runpod.NewClient(runpod.Options{
				APIKey:          cfg.APIKey,
				Logger:          deps.Logger,
				Runner:          deps.Runner,
				AllowSimulation: cfg.AllowSimulation,
			})
		},
		func(cfg config.PlatformConfig, deps Deps) (platform.FileSync, error) {
			return filesync.NewRsync(filesync.Options{
				Runner: deps.Runner,
				Logger: deps.Logger,
			})
		})

	return f, nil
}

// Register adds or replaces a platform. A nil syncConstructor registers the
// platform without file-sync support.
func (f *Factory) Register(name string, clientConstructor ClientConstructor, syncConstructor FileSyncConstructor) {
	f.clients[name] = clientConstructor
	f.syncs[name] = syncConstructor
}

// SupportedPlatforms lists the registered platform names.
func (f *Factory) SupportedPlatforms() []string {
	names := make([]string, 0, len(f.clients))
	for name := range f.clients {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CreateClient builds the client for a named platform, failing fast on an
// unregistered name or a missing credential.
func (f *Factory) CreateClient(name string, cfg config.PlatformConfig) (platform.Client, error) {
	constructor, ok := f.clients[name]
	if !ok {
		return nil, extErrors.Wrapf(ErrUnknownPlatform, "%q", name)
	}
	if cfg.APIKey == "" {
		return nil, extErrors.Wrapf(ErrMissingCredential, "platform %q", name)
	}
	return constructor(cfg, f.deps)
}

// CreateFileSync builds the file sync for a named platform. Platforms
// registered without sync support get the no-op implementation.
func (f *Factory) CreateFileSync(name string, cfg config.PlatformConfig) (platform.FileSync, error) {
	constructor, ok := f.syncs[name]
	if !ok {
		return nil, extErrors.Wrapf(ErrUnknownPlatform, "%q", name)
	}
	if constructor == nil {
		return filesync.NewNoop(f.deps.Logger)
	}
	if cfg.APIKey == "" {
		return nil, extErrors.Wrapf(ErrMissingCredential, "platform %q", name)
	}
	return constructor(cfg, f.deps)
}
