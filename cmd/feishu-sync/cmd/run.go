package cmd

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wikibridge/feishu-sync/internal/engine"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the sync worker in the foreground",
	Long: `run starts the continuous synchronizer: an optional initial
reconciliation, then the push-event stream, the new-document poller and the
local file watcher, all feeding the per-document change processor.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		client, token, err := newClient(cfg)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		orchestrator := engine.NewOrchestrator(client, engine.OrchestratorOptions{
			SpaceID:                 cfg.WikiSpaceID,
			RootDir:                 cfg.Sync.FolderPath,
			InitialSync:             cfg.Sync.InitialSync,
			PollInterval:            cfg.Sync.PollIntervalSeconds.Duration(),
			KeepRemoteOnLocalDelete: !cfg.DeleteRemoteOnLocalDelete(),
			EventEndpoint:           cfg.Sync.EventEndpoint,
			Token:                   token,
			Logger:                  log.Default(),
		})
		log.Printf("sync worker started for space %s in %s", cfg.WikiSpaceID, cfg.Sync.FolderPath)
		if err := orchestrator.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		log.Printf("sync worker stopped")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
