package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect the project configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration with credentials masked",
	Args:  cobra.NoArgs,
	RunE: func(c *cobra.Command, args []string) error {
		d, err := newDeps()
		if err != nil {
			return err
		}

		project := d.cfg.GetProjectConfig()
		fmt.Printf("project:\n")
		fmt.Printf("  name: %s\n", project.Name)
		fmt.Printf("  working_dir: %s\n", project.WorkingDir)
		fmt.Printf("  data_dir: %s\n", project.DataDir)
		fmt.Printf("  base_image: %s\n", project.BaseImage)

		fmt.Printf("platforms:\n")
		fmt.Printf("  default: %s\n", d.cfg.GetDefaultPlatform())
		for _, name := range d.factory.SupportedPlatforms() {
			cfg, ok := d.cfg.GetPlatformConfig(name)
			if !ok {
				continue
			}
			fmt.Printf("  %s:\n", name)
			fmt.Printf("    enabled: %v\n", cfg.Enabled)
			fmt.Printf("    api_key: %s\n", maskKey(cfg.APIKey))
		}

		docker := d.cfg.GetDockerConfig()
		fmt.Printf("docker:\n")
		fmt.Printf("  enabled: %v\n", docker.Enabled)
		fmt.Printf("  dockerfile: %s\n", docker.Dockerfile)

		sync := d.cfg.GetSyncConfig()
		excludes := append([]string{}, sync.ExcludePatterns...)
		sort.Strings(excludes)
		fmt.Printf("sync:\n")
		fmt.Printf("  exclude_patterns: [%s]\n", strings.Join(excludes, ", "))
		return nil
	},
}

// maskKey keeps just enough of a credential to recognize it.
func maskKey(key string) string {
	if key == "" {
		return "(not set)"
	}
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "****" + key[len(key)-4:]
}

func init() {
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}
