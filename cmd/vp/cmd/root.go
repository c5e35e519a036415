// Package cmd is the thin CLI wrapper around the workflow engine. Argument
// parsing and prompts live here; all sequencing logic stays in workflow.
package cmd

import (
	"fmt"
	"os"

	dockerclient "github.com/docker/docker/client"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/variousplug/vp/config"
	"github.com/variousplug/vp/docker"
	"github.com/variousplug/vp/factory"
	"github.com/variousplug/vp/platform"
	"github.com/variousplug/vp/util"
)

var (
	logger  *zap.Logger
	version = "dev"

	flagConfigPath string
	flagPlatform   string
	flagSimulate   bool
)

var rootCmd = &cobra.Command{
	Use:   "vp",
	Short: "vp runs project commands on rented GPU instances",
	Long: `vp coordinates a remote-execution workflow: build a container image
locally, sync the project tree to a rented GPU instance, run a command
there, and sync results back.`,
	SilenceUsage: true,
}

// SetVersion records the build version for the version command.
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}

// Execute runs the root command with the process logger.
func Execute(l *zap.Logger) error {
	logger = l
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagConfigPath, "config", "c", "", "config file (default .vp/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&flagPlatform, "platform", "p", "", "platform to use (default from config)")
	rootCmd.PersistentFlags().BoolVar(&flagSimulate, "simulate", false, "allow simulated execution when no SSH channel is available")
}

// deps bundles everything a command needs, constructed fresh per invocation.
type deps struct {
	cfg     *config.Manager
	factory *factory.Factory
}

func newDeps() (*deps, error) {
	path := flagConfigPath
	if path == "" {
		path = config.DefaultPath(".")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	// Environment variables override stored credentials.
	if key := os.Getenv("VAST_API_KEY"); key != "" {
		cfg.SetPlatformAPIKey("vast", key)
	}
	if key := os.Getenv("RUNPOD_API_KEY"); key != "" {
		cfg.SetPlatformAPIKey("runpod", key)
	}

	f, err := factory.New(factory.Deps{
		Logger: logger,
		Runner: util.NewExecRunner(),
	})
	if err != nil {
		return nil, err
	}

	return &deps{
		cfg:     cfg,
		factory: f,
	}, nil
}

// platformName resolves the effective platform for this invocation.
func (d *deps) platformName() string {
	if flagPlatform != "" {
		return flagPlatform
	}
	return d.cfg.GetDefaultPlatform()
}

// platformConfig returns the credential block, honoring --simulate.
func (d *deps) platformConfig(name string) (config.PlatformConfig, error) {
	cfg, ok := d.cfg.GetPlatformConfig(name)
	if !ok {
		return config.PlatformConfig{}, fmt.Errorf("platform %q is not configured", name)
	}
	if flagSimulate {
		cfg.AllowSimulation = true
	}
	return cfg, nil
}

func (d *deps) client(name string) (platform.Client, error) {
	cfg, err := d.platformConfig(name)
	if err != nil {
		return nil, err
	}
	return d.factory.CreateClient(name, cfg)
}

func (d *deps) fileSync(name string) (platform.FileSync, error) {
	cfg, err := d.platformConfig(name)
	if err != nil {
		return nil, err
	}
	return d.factory.CreateFileSync(name, cfg)
}

func (d *deps) imageBuilder() (*docker.Builder, error) {
	engine, err := dockerclient.NewClientWithOpts(dockerclient.FromEnv)
	if err != nil {
		return nil, err
	}
	return docker.NewBuilder(docker.Options{
		Client: engine,
		Logger: logger,
	})
}
