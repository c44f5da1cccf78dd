package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"dinamifin/internal/backend"
	"dinamifin/internal/cli"
	"dinamifin/internal/config"
	"dinamifin/internal/history"
	"dinamifin/internal/log"
)

var (
	flagConfig  string
	flagUser    int64
	flagPeriod  string
	flagBackend string
	flagDB      string
	flagVerbose bool

	fileCfg config.FileConfig
)

var rootCmd = &cobra.Command{
	Use:           "dinactl",
	Short:         "Inspect and export dinamifin finance history",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.LoadFile(flagConfig)
		if err != nil {
			return err
		}
		if !cmd.Flags().Changed("user") {
			flagUser = cfg.General.UserID
		}
		if !cmd.Flags().Changed("period") && cfg.General.Period != "" {
			flagPeriod = cfg.General.Period
		}
		if cmd.Flags().Changed("backend") {
			cfg.Store.Backend = flagBackend
		}
		if cmd.Flags().Changed("db") {
			cfg.Store.SQLitePath = flagDB
		}
		fileCfg = cfg
		return nil
	},
}

// Execute is the entry point called from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "  error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "Config file (default "+config.FileConfigPath()+")")
	rootCmd.PersistentFlags().Int64VarP(&flagUser, "user", "u", 0, "User id")
	rootCmd.PersistentFlags().StringVarP(&flagPeriod, "period", "p", string(history.DefaultPeriod), "Lookback period (1m, 6m, 1y, 3y, 5y)")
	rootCmd.PersistentFlags().StringVar(&flagBackend, "backend", "", "Store backend (sqlite, postgres)")
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "", "SQLite database path")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Log at debug level")
}

func requireUser() error {
	if flagUser <= 0 {
		return fmt.Errorf("a user id is required (--user or [general] user_id)")
	}
	return nil
}

// session is an opened store plus the services built on it.
type session struct {
	backend *backend.Result
	history *history.Service
	logger  *log.Logger
}

func openSession(ctx context.Context) (*session, error) {
	cli.LoadEnvFile()
	appCfg := config.Load()
	fileCfg.Apply(appCfg)
	appCfg.LogLevel = "warn"
	if flagVerbose {
		appCfg.LogLevel = "debug"
	}
	logger := cli.SetupLogger(appCfg)

	bcfg, err := backend.FromAppConfig(appCfg)
	if err != nil {
		return nil, err
	}
	// dinactl reads only; events would reach nobody.
	bcfg.AMQPURL = ""
	res, err := backend.Open(ctx, bcfg, logger)
	if err != nil {
		return nil, err
	}
	return &session{
		backend: res,
		history: history.NewService(res.Store, res.Store, history.WithCache(0, 0), history.WithLogger(logger)),
		logger:  logger,
	}, nil
}

func (s *session) Close() {
	_ = s.backend.Close()
}
