package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wikibridge/feishu-sync/internal/supervise"
)

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the background workers",
	RunE: func(cmd *cobra.Command, args []string) error {
		runDir := supervise.RunDir(configPath)
		for _, worker := range []string{supervise.WorkerSync, supervise.WorkerAuth} {
			stopped, err := supervise.Stop(runDir, worker)
			if err != nil {
				return err
			}
			if stopped {
				fmt.Printf("%s worker stopped\n", worker)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(stopCmd)
}
