package main

import (
	"fmt"
	"os"

	"ai-newsletter/internal/config"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var version = "dev"

var (
	logger *zap.Logger
	cfg    *config.Config

	configPath string
	envFile    string
	logJSON    bool
	logFile    string

	sourceKind string
	storeKind  string
	storePath  string
	redisURL   string
	limit      int
)

var rootCmd = &cobra.Command{
	Use:   "newsdash",
	Short: "newsdash - AI newsletter dashboard",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.LoadDotEnv(envFile); err != nil {
			return err
		}
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		applyFlags(cmd)

		logger, err = newLogger(cmd.Name() == "tui")
		return err
	},
	SilenceUsage: true,
}

// applyFlags lets explicitly set flags win over file and environment.
func applyFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	if flags.Changed("source") {
		cfg.Source.Kind = sourceKind
	}
	if flags.Changed("store") {
		cfg.Store.Backend = storeKind
		if !flags.Changed("store-path") {
			cfg.Store.Path = config.DefaultStorePath(storeKind)
		}
	}
	if flags.Changed("store-path") {
		cfg.Store.Path = storePath
	}
	if flags.Changed("redis") {
		cfg.Store.RedisURL = redisURL
	}
	if flags.Changed("limit") {
		cfg.Limit = limit
	}
}

// newLogger writes to stderr, or to --log-file. The terminal UI owns the
// screen, so without a file it gets no logger at all.
func newLogger(quiet bool) (*zap.Logger, error) {
	zcfg := zap.NewDevelopmentConfig()
	if logJSON {
		zcfg = zap.NewProductionConfig()
	}
	switch {
	case logFile != "":
		zcfg.OutputPaths = []string{logFile}
		zcfg.ErrorOutputPaths = []string{logFile}
	case quiet:
		return zap.NewNop(), nil
	}
	return zcfg.Build()
}

// bindFlags registers the persistent flags shared by every subcommand.
func bindFlags(cmd *cobra.Command) {
	pf := cmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "Path to config file (default $XDG_CONFIG_HOME/newsdash/config.yaml)")
	pf.StringVar(&envFile, "env-file", ".env", "Path to a .env file")
	pf.BoolVar(&logJSON, "log-json", false, "Emit JSON logs")
	pf.StringVar(&logFile, "log-file", "", "Write logs to this file")
	pf.StringVar(&sourceKind, "source", "", "Article source: postgrest, postgres, rss or file")
	pf.StringVar(&storeKind, "store", "", "Favorites backend: badger, redis, sqlite or memory")
	pf.StringVar(&storePath, "store-path", "", "Badger directory or sqlite file for favorites")
	pf.StringVar(&redisURL, "redis", "", "Redis URL or host:port for favorites")
	pf.IntVar(&limit, "limit", 0, "How many recent articles to load")
}

func main() {
	bindFlags(rootCmd)
	rootCmd.AddCommand(serveCmd, tuiCmd, listCmd, saveCmd, savedCmd, uploadCmd, versionCmd)

	err := rootCmd.Execute()
	if logger != nil {
		logger.Sync()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
