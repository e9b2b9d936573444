package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/codelion/codelion/internal/gemini"
	"github.com/codelion/codelion/internal/logging"
	"github.com/codelion/codelion/internal/output"
	"github.com/codelion/codelion/internal/store"
)

// Package-level shared dependencies, initialized in cobra.OnInitialize.
var (
	ui        *output.UI
	dataStore store.Store

	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "codelion",
	Short: "CodeLion - multi-agent AI code review for GitHub pull requests",
	Long: `codelion reviews GitHub pull requests with a set of AI agents
(security, performance, style), stores the results and serves a web
dashboard, a JSON API and a GitHub webhook endpoint.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	DisableAutoGenTag: true,
}

// Execute is the main entry point called from main.go.
func Execute(version, commit, date string) {
	buildVersion = version
	buildCommit = commit
	buildDate = date

	err := rootCmd.Execute()
	if dataStore != nil {
		_ = dataStore.Close()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig, initDeps)

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output (also sets log level to debug)")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.config/codelion/config.yaml)")
}

func initConfig() {
	if cfgFile, _ := rootCmd.PersistentFlags().GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		dir, err := configDirFunc()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: cannot find home directory: %v\n", err)
			os.Exit(1)
		}
		viper.AddConfigPath(dir)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("CODELION")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	dir, _ := configDirFunc()
	setDefaults(dir)

	// The config file is optional.
	_ = viper.ReadInConfig()
}

// setDefaults registers every config key with its default so that env
// overrides resolve through AutomaticEnv.
func setDefaults(stateDir string) {
	viper.SetDefault("state_dir", stateDir)
	viper.SetDefault("db_path", filepath.Join(stateDir, "codelion.db"))
	viper.SetDefault("port", 3000)
	viper.SetDefault("base_url", "")

	viper.SetDefault("github.client_id", "")
	viper.SetDefault("github.client_secret", "")
	viper.SetDefault("github.token", "")
	viper.SetDefault("github.webhook_secret", "")
	viper.SetDefault("github.api_url", "https://api.github.com")

	viper.SetDefault("gemini.api_key", "")
	viper.SetDefault("gemini.model", gemini.DefaultModel)
	viper.SetDefault("anthropic.api_key", "")
	viper.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	viper.SetDefault("llm.provider", "")

	viper.SetDefault("review.max_concurrency", 4)
	viper.SetDefault("review.post_comments", true)

	viper.SetDefault("dashboard.demo", true)

	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "text")
}

func initDeps() {
	ui = output.New()
	ui.Verbose = verbose

	level := viper.GetString("log.level")
	if verbose {
		level = "debug"
	}
	logger, err := logging.New(level, viper.GetString("log.format"), os.Stderr)
	if err != nil {
		ui.Warning("Invalid log configuration: %v (using defaults)", err)
		logger, _ = logging.New("info", "text", os.Stderr)
	}
	slog.SetDefault(logger)
}

// getStore returns the shared store, initializing it on first call.
func getStore() (store.Store, error) {
	if dataStore != nil {
		return dataStore, nil
	}

	s, err := store.NewSQLiteStore(viper.GetString("db_path"))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	ctx := rootCmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	dataStore = s
	return dataStore, nil
}
