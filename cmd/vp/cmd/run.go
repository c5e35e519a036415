package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/variousplug/vp/workflow"
)

var (
	flagInstanceID string
	flagSyncOnly   bool
	flagNoSync     bool
	flagNoBuild    bool
	flagDockerfile string
	flagWorkingDir string
)

var runCmd = &cobra.Command{
	Use:   "run -- <command> [args...]",
	Short: "Run a command on a remote instance",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(c *cobra.Command, args []string) error {
		d, err := newDeps()
		if err != nil {
			return err
		}
		return executeWorkflow(c.Context(), d, args, workflow.Request{
			InstanceID: flagInstanceID,
			SyncOnly:   flagSyncOnly,
			NoSync:     flagNoSync,
			NoBuild:    flagNoBuild,
			Dockerfile: flagDockerfile,
			WorkingDir: flagWorkingDir,
		})
	},
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Sync project files to a remote instance without running anything",
	Args:  cobra.NoArgs,
	RunE: func(c *cobra.Command, args []string) error {
		d, err := newDeps()
		if err != nil {
			return err
		}
		return executeWorkflow(c.Context(), d, []string{"true"}, workflow.Request{
			InstanceID: flagInstanceID,
			SyncOnly:   true,
			NoBuild:    flagNoBuild,
		})
	},
}

func executeWorkflow(ctx context.Context, d *deps, command []string, req workflow.Request) error {
	name := d.platformName()

	client, err := d.client(name)
	if err != nil {
		return err
	}
	fileSync, err := d.fileSync(name)
	if err != nil {
		return err
	}
	builder, err := d.imageBuilder()
	if err != nil {
		return err
	}

	executor, err := workflow.NewExecutor(workflow.Options{
		Config:   d.cfg,
		Client:   client,
		FileSync: fileSync,
		Builder:  builder,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	req.Command = command
	result := executor.Execute(ctx, req)

	if result.Output != "" {
		fmt.Println(result.Output)
	}
	if !result.Success {
		return fmt.Errorf("workflow failed: %s", result.Error)
	}
	return nil
}

func init() {
	for _, c := range []*cobra.Command{runCmd, syncCmd} {
		c.Flags().StringVarP(&flagInstanceID, "instance-id", "i", "", "target instance id (default: auto-select)")
	}
	runCmd.Flags().BoolVar(&flagSyncOnly, "sync-only", false, "stop after uploading files")
	runCmd.Flags().BoolVar(&flagNoSync, "no-sync", false, "skip file sync in both directions")
	runCmd.Flags().BoolVar(&flagNoBuild, "no-build", false, "skip the image build step")
	runCmd.Flags().StringVar(&flagDockerfile, "dockerfile", "", "Dockerfile path override")
	runCmd.Flags().StringVar(&flagWorkingDir, "working-dir", "", "remote working directory (default from config)")
	syncCmd.Flags().BoolVar(&flagNoBuild, "no-build", false, "skip the image build step")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(syncCmd)
}
