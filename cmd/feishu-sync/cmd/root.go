// Package cmd implements the feishu-sync command line interface.
package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/wikibridge/feishu-sync/internal/config"
	"github.com/wikibridge/feishu-sync/internal/feishu"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "feishu-sync",
	Short: "Bidirectional sync between a wiki space and local Markdown files",
	Long: `feishu-sync keeps a wiki space and a local directory of Markdown files in
sync. A manifest beside the files records the pairing between each document
and its file; content changes on either side propagate to the other, and
concurrent edits are saved as conflict copies instead of being merged.`,
	SilenceUsage: true,
}

// Execute runs the root command. Exit code 1 signals a configuration or
// unrecoverable error.
func Execute() {
	_ = godotenv.Load()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath(), "path to the config file")
}

// loadConfig resolves and validates the config for commands that need it.
func loadConfig() (*config.Config, error) {
	return config.Load(configPath)
}

// newClient builds the API client from the config's token file.
func newClient(cfg *config.Config) (*feishu.Client, string, error) {
	token, err := cfg.ReadToken()
	if err != nil {
		return nil, "", err
	}
	return feishu.NewClient(feishu.Options{Token: token}), token, nil
}
