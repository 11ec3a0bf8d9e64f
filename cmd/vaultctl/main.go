package main

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/zzenonn/nntpvault/internal/config"
	"github.com/zzenonn/nntpvault/internal/engine"
	"github.com/zzenonn/nntpvault/internal/logging"
	"github.com/zzenonn/nntpvault/internal/transport/memdriver"
)

var (
	cfg        *config.Config
	eng        *engine.Engine
	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "vaultctl",
	Short: "CLI for the deterministic vault storage engine",
	Long:  "A CLI application built with Cobra for storing and retrieving files in a deterministic, append-only vault",
}

func init() {
	cobra.OnInitialize(initConfig)
	setupFlags()
}

// setupFlags defines CLI flags
func setupFlags() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path (default is ./config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().String("storage-code", "", "vault storage code")
	rootCmd.PersistentFlags().String("password", "", "vault password")
	rootCmd.PersistentFlags().String("catalog-root", "", "directory holding per-vault catalog files")
	rootCmd.PersistentFlags().String("driver", "", "transport driver (mem)")
}

var debugCmd = &cobra.Command{
	Use:   "debug",
	Short: "Show resolved configuration for debugging",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("Configuration:\n")
		fmt.Printf("  Log Level: %s\n", cfg.LogLevel)
		fmt.Printf("  Driver: %s\n", cfg.Driver)
		fmt.Printf("  Catalog Root: %s\n", cfg.CatalogRoot)
		fmt.Printf("  Segment Size: %d\n", cfg.SegmentSize)
		fmt.Printf("  Data Shards: %d\n", cfg.DataShards)
		fmt.Printf("  Parity Shards: %d\n", cfg.ParityShards)
		fmt.Printf("  Replication Attempt Count: %d\n", cfg.ReplicationAttemptCount)
		fmt.Printf("  Assurance Replication Default/Search: %d/%d\n",
			cfg.AssuranceReplicationDefaultCount, cfg.AssuranceReplicationSearchCount)
		fmt.Printf("  Total/Upload Connections: %d/%d\n", cfg.TotalConnections, cfg.UploadConnections)
		if eng != nil {
			fmt.Printf("  Vault Public Hash: %s\n", eng.PublicHash())
		}
	},
}

var genStorageCodeCmd = &cobra.Command{
	Use:   "gen-storage-code",
	Short: "Generate a new random storage code",
	Run: func(cmd *cobra.Command, args []string) {
		code, err := genStorageCode()
		if err != nil {
			fmt.Printf("Error generating storage code: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(code)
	},
}

func initConfig() {
	var err error
	cfg, err = config.Load(configPath, rootCmd)
	if err != nil {
		log.Fatalf("Error loading configuration: %v", err)
	}

	logging.InitLogger(cfg.LogLevel)

	// gen-storage-code never needs a vault open, and commonly runs before
	// any storage code exists at all.
	if len(os.Args) > 1 && os.Args[1] == "gen-storage-code" {
		return
	}

	store := memdriver.NewStore()
	factory := memdriver.NewFactory(store)

	eng, err = engine.New(cfg, factory)
	if err != nil {
		log.Fatalf("Failed to open vault: %v", err)
	}
}

func init() {
	addCommands()
}

// addCommands registers subcommands
func addCommands() {
	rootCmd.AddCommand(debugCmd)
	rootCmd.AddCommand(genStorageCodeCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
