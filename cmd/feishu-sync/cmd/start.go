package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wikibridge/feishu-sync/internal/supervise"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the sync worker in the background",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if _, err := cfg.ReadToken(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: %v\n", err)
		}

		runDir := supervise.RunDir(configPath)
		pid, err := supervise.Spawn(runDir, supervise.WorkerSync, []string{"--config", configPath, "run"})
		if err != nil {
			return err
		}
		fmt.Printf("sync worker started with pid %d (logs in %s)\n", pid, runDir)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(startCmd)
}
