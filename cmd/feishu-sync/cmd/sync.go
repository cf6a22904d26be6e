package cmd

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wikibridge/feishu-sync/internal/engine"
)

var syncDryRun bool

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one bidirectional reconciliation pass",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		client, _, err := newClient(cfg)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		reconciler := engine.NewReconciler(client, engine.ReconcilerOptions{
			SpaceID:                 cfg.WikiSpaceID,
			RootDir:                 cfg.Sync.FolderPath,
			KeepRemoteOnLocalDelete: !cfg.DeleteRemoteOnLocalDelete(),
			DryRun:                  syncDryRun,
			Logger:                  log.Default(),
		})
		counters, err := reconciler.Run(ctx)
		if err != nil {
			return fmt.Errorf("sync failed: %w", err)
		}
		fmt.Printf("downloaded=%d uploaded=%d deletedLocal=%d deletedRemote=%d conflicts=%d skipped=%d\n",
			counters.Downloaded, counters.Uploaded, counters.DeletedLocal,
			counters.DeletedRemote, counters.Conflicts, counters.Skipped)
		return nil
	},
}

func init() {
	syncCmd.Flags().BoolVar(&syncDryRun, "dry-run", false, "report planned actions without performing them")
	rootCmd.AddCommand(syncCmd)
}
