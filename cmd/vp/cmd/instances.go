package cmd

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/variousplug/vp/platform"
)

var (
	flagGPUType      string
	flagInstanceType string
	flagImage        string
	flagWait         bool
	flagWaitTimeout  time.Duration
)

var lsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List instances on the selected platform",
	Args:  cobra.NoArgs,
	RunE: func(c *cobra.Command, args []string) error {
		d, err := newDeps()
		if err != nil {
			return err
		}
		client, err := d.client(d.platformName())
		if err != nil {
			return err
		}

		instances, err := client.ListInstances(c.Context())
		if err != nil {
			return err
		}
		sort.Slice(instances, func(i, j int) bool {
			return instances[i].ID < instances[j].ID
		})

		if len(instances) == 0 {
			fmt.Println("No instances found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tPLATFORM\tSTATUS\tGPU\tSSH")
		for _, inst := range instances {
			ssh := "-"
			if inst.HasSSH() {
				ssh = fmt.Sprintf("%s:%d", inst.SSHHost, inst.SSHPort)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				inst.ID, inst.Platform, inst.Status, inst.GPUType, ssh)
		}
		return w.Flush()
	},
}

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Rent a new instance on the selected platform",
	Args:  cobra.NoArgs,
	RunE: func(c *cobra.Command, args []string) error {
		d, err := newDeps()
		if err != nil {
			return err
		}
		client, err := d.client(d.platformName())
		if err != nil {
			return err
		}

		image := flagImage
		if image == "" {
			image = d.cfg.GetProjectConfig().BaseImage
		}

		instance, err := client.CreateInstance(c.Context(), platform.CreateInstanceRequest{
			GPUType:      flagGPUType,
			InstanceType: flagInstanceType,
			Image:        image,
		})
		if err != nil {
			return err
		}
		fmt.Printf("Created instance %s (%s)\n", instance.ID, instance.Status)

		if flagWait {
			logger.Info("Waiting for instance to become ready",
				zap.String("InstanceID", instance.ID),
				zap.Duration("Timeout", flagWaitTimeout),
			)
			if !client.WaitForInstanceReady(c.Context(), instance.ID, flagWaitTimeout) {
				return fmt.Errorf("instance %s did not become ready within %s", instance.ID, flagWaitTimeout)
			}
			fmt.Printf("Instance %s is ready\n", instance.ID)
		}
		return nil
	},
}

var destroyCmd = &cobra.Command{
	Use:   "destroy <instance-id>",
	Short: "Destroy an instance on the selected platform",
	Args:  cobra.ExactArgs(1),
	RunE: func(c *cobra.Command, args []string) error {
		d, err := newDeps()
		if err != nil {
			return err
		}
		client, err := d.client(d.platformName())
		if err != nil {
			return err
		}

		id := args[0]
		if !client.DestroyInstance(c.Context(), id) {
			return fmt.Errorf("cannot destroy instance %s; check the platform console", id)
		}
		fmt.Printf("Destroyed instance %s\n", id)
		return nil
	},
}

func init() {
	createCmd.Flags().StringVar(&flagGPUType, "gpu-type", "", "GPU model to request (platform default when empty)")
	createCmd.Flags().StringVar(&flagInstanceType, "instance-type", "", "instance or cloud type (platform default when empty)")
	createCmd.Flags().StringVar(&flagImage, "image", "", "container image (default: project base image)")
	createCmd.Flags().BoolVar(&flagWait, "wait", false, "block until the instance is ready")
	createCmd.Flags().DurationVar(&flagWaitTimeout, "wait-timeout", 5*time.Minute, "how long to wait with --wait")

	rootCmd.AddCommand(lsCmd)
	rootCmd.AddCommand(createCmd)
	rootCmd.AddCommand(destroyCmd)
}
