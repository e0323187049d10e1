package cmd

import (
	"os"

	"github.com/mezonai/starledger/config"
	"github.com/mezonai/starledger/logx"
	"github.com/spf13/cobra"
)

var (
	configPath   string
	iniPath      string
	storeType    string
	dataDir      string
	debugLogging bool
)

var rootCmd = &cobra.Command{
	Use:   "starledger",
	Short: "Star registry ledger CLI",
	Long:  "Command line interface for running and inspecting a star registry ledger node.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if debugLogging {
			logx.SetDebug(true)
		}
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configPath, "config", "c", "", "Path to node.yml")
	pf.StringVar(&iniPath, "ini", "", "Optional ini file overriding [validation] and [ratelimit]")
	pf.StringVar(&storeType, "store-type", "", "Block store backend: leveldb, badger, bolt, redis or memory")
	pf.StringVar(&dataDir, "data-dir", "", "Block store directory")
	pf.BoolVar(&debugLogging, "debug", false, "Enable debug logging")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		logx.Error("CMD", "Command execution failed:", err)
		os.Exit(1)
	}
}

// loadConfiguration layers defaults, node.yml, the ini overrides and flags, in that order
func loadConfiguration() (*config.LedgerConfig, error) {
	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.LoadConfig(configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if iniPath != "" {
		if err := config.LoadValidationOverrides(cfg, iniPath); err != nil {
			return nil, err
		}
	}
	if storeType != "" {
		cfg.Store.Type = storeType
	}
	if dataDir != "" {
		cfg.Store.Directory = dataDir
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
