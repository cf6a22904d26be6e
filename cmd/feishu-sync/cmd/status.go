package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wikibridge/feishu-sync/internal/manifest"
	"github.com/wikibridge/feishu-sync/internal/supervise"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report worker liveness and manifest state",
	RunE: func(cmd *cobra.Command, args []string) error {
		runDir := supervise.RunDir(configPath)
		for _, worker := range []string{supervise.WorkerSync, supervise.WorkerAuth} {
			pid, alive := supervise.Status(runDir, worker)
			switch {
			case pid == 0:
				fmt.Printf("%s worker: not started\n", worker)
			case alive:
				fmt.Printf("%s worker: running (pid %d)\n", worker, pid)
			default:
				fmt.Printf("%s worker: dead (stale pid %d)\n", worker, pid)
			}
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		m := manifest.Read(cfg.Sync.FolderPath)
		if len(m.Docs) == 0 {
			fmt.Printf("manifest: no paired documents yet in %s\n", cfg.Sync.FolderPath)
			return nil
		}
		fmt.Printf("manifest: %d paired document(s) in space %s, last written %s\n",
			len(m.Docs), m.SpaceID, m.UpdatedAt)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
