package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/variousplug/vp/config"
)

var (
	flagProjectName     string
	flagVastKey         string
	flagRunpodKey       string
	flagDefaultPlatform string
	flagNoScaffold      bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the project configuration and scaffolding files",
	Args:  cobra.NoArgs,
	RunE: func(c *cobra.Command, args []string) error {
		name := flagProjectName
		if name == "" {
			wd, err := os.Getwd()
			if err != nil {
				return err
			}
			name = filepath.Base(wd)
		}

		path := flagConfigPath
		if path == "" {
			path = config.DefaultPath(".")
		}
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("configuration already exists at %s", path)
		}

		vastKey := flagVastKey
		if vastKey == "" {
			vastKey = os.Getenv("VAST_API_KEY")
		}
		runpodKey := flagRunpodKey
		if runpodKey == "" {
			runpodKey = os.Getenv("RUNPOD_API_KEY")
		}

		cfg := config.New(name, vastKey, runpodKey, flagDefaultPlatform)
		if err := cfg.Save(path); err != nil {
			return err
		}
		logger.Info("Configuration created",
			zap.String("Path", path),
			zap.String("Project", name),
		)

		if !flagNoScaffold {
			project := cfg.GetProjectConfig()
			if _, err := config.ScaffoldDockerfile(".", project.BaseImage); err != nil {
				return err
			}
			if _, err := config.ScaffoldIgnoreFile(".", config.DefaultExcludePatterns); err != nil {
				return err
			}
		}

		fmt.Printf("Initialized project %q\n", name)
		fmt.Printf("Edit %s to adjust platforms and sync settings.\n", path)
		return nil
	},
}

func init() {
	initCmd.Flags().StringVar(&flagProjectName, "name", "", "project name (default: directory name)")
	initCmd.Flags().StringVar(&flagVastKey, "vast-api-key", "", "Vast.ai API key")
	initCmd.Flags().StringVar(&flagRunpodKey, "runpod-api-key", "", "RunPod API key")
	initCmd.Flags().StringVar(&flagDefaultPlatform, "default-platform", "", "default platform (vast or runpod)")
	initCmd.Flags().BoolVar(&flagNoScaffold, "no-scaffold", false, "skip Dockerfile and ignore file scaffolding")

	rootCmd.AddCommand(initCmd)
}
