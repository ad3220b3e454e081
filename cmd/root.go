package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/reviewkit/internal/checklist"
	"github.com/joescharf/reviewkit/internal/git"
	"github.com/joescharf/reviewkit/internal/models"
	"github.com/joescharf/reviewkit/internal/output"
	"github.com/joescharf/reviewkit/internal/provider"
	"github.com/joescharf/reviewkit/internal/quality"
	"github.com/joescharf/reviewkit/internal/store"
)

// Package-level shared dependencies, initialized in cobra.OnInitialize.
var (
	ui        *output.UI
	logger    *slog.Logger
	dataStore store.Store
	engine    *checklist.Engine
	pulls     *provider.Integration
	gitClient git.Client = git.NewClient()

	verbose bool
	dryRun  bool
)

var rootCmd = &cobra.Command{
	Use:   "rk",
	Short: "reviewkit - review checklists and pull request tooling",
	Long: `rk manages code review checklists and the reports produced against them,
and talks to GitHub, GitLab and Bitbucket pull requests for the repository
in the current directory.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	DisableAutoGenTag: true,
}

// Execute is the main entry point called from main.go.
func Execute(version, commit, date string) {
	buildVersion = version
	buildCommit = commit
	buildDate = date

	defer closeDeps()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		closeDeps()
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig, initDeps)

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVarP(&dryRun, "dry-run", "n", false, "Show what would happen without making changes")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.config/reviewkit/config.yaml)")
	rootCmd.PersistentFlags().String("repo", "", "Repository path (default: current directory)")
	_ = viper.BindPFlag("repo_path", rootCmd.PersistentFlags().Lookup("repo"))
}

func initConfig() {
	// If --config is explicitly set, use that file
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

	viper.SetEnvPrefix("RK")
	viper.AutomaticEnv()

	dir, _ := configDirFunc()
	setDefaults(dir)

	// Read config file if it exists (optional)
	_ = viper.ReadInConfig()
}

// setDefaults registers every config key with its default, rooted at dir.
func setDefaults(dir string) {
	viper.SetDefault("state_dir", dir)
	viper.SetDefault("storage.driver", store.DriverSQLite)
	viper.SetDefault("storage.db_path", filepath.Join(dir, "reviewkit.db"))
	viper.SetDefault("storage.postgres_dsn", "")
	viper.SetDefault("storage.json_path", filepath.Join(dir, "reviewkit.json"))
	viper.SetDefault("repo_path", ".")
	viper.SetDefault("history.limit", checklist.DefaultHistoryLimit)
	for _, kind := range providerKinds {
		viper.SetDefault(string(kind)+".token", "")
		viper.SetDefault(string(kind)+".api_url", "")
		viper.SetDefault("providers."+string(kind)+".hosts", []string{})
	}
	viper.SetDefault("http.timeout", 30*time.Second)
	viper.SetDefault("quality.max_line_length", quality.DefaultMaxLineLength)
	viper.SetDefault("quality.max_file_lines", quality.DefaultMaxFileLines)
	viper.SetDefault("quality.concurrency", provider.DefaultConcurrency)
	viper.SetDefault("serve.port", 8787)
	viper.SetDefault("serve.host", "127.0.0.1")
	viper.SetDefault("serve.allowed_origins", []string{})
}

var providerKinds = []models.ProviderKind{models.ProviderGitHub, models.ProviderGitLab, models.ProviderBitbucket}

func initDeps() {
	ui = output.New()
	ui.Verbose = verbose
	ui.DryRun = dryRun

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	// Store, engine and provider integration are built lazily so that
	// config/version commands run without a database.
}

func closeDeps() {
	if engine != nil {
		engine.Dispose()
		engine = nil
	} else if dataStore != nil {
		_ = dataStore.Close()
	}
	dataStore = nil
}

// getStore returns the shared store, initializing it on first call.
func getStore() (store.Store, error) {
	if dataStore != nil {
		return dataStore, nil
	}

	s, err := store.Open(context.Background(), store.Config{
		Driver:      viper.GetString("storage.driver"),
		DBPath:      viper.GetString("storage.db_path"),
		PostgresDSN: viper.GetString("storage.postgres_dsn"),
		JSONPath:    viper.GetString("storage.json_path"),
	})
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	dataStore = s
	return dataStore, nil
}

// getEngine returns the shared checklist engine. The engine owns the store
// and closes it on Dispose.
func getEngine() (*checklist.Engine, error) {
	if engine != nil {
		return engine, nil
	}
	s, err := getStore()
	if err != nil {
		return nil, err
	}
	engine = checklist.NewEngine(s, checklist.WithLogger(logger))
	engine.Register(checklist.DisposableFunc(func() { _ = s.Close() }))
	return engine, nil
}

// getIntegration returns the pull request integration for repo_path.
func getIntegration() *provider.Integration {
	if pulls != nil {
		return pulls
	}

	fs := afero.NewOsFs()
	repo := repoRoot()

	hosts := provider.HostMap{}
	creds := map[models.ProviderKind]provider.Credentials{}
	for _, kind := range providerKinds {
		for _, h := range viper.GetStringSlice("providers." + string(kind) + ".hosts") {
			hosts[h] = kind
		}
		creds[kind] = provider.Credentials{
			Token:   viper.GetString(string(kind) + ".token"),
			BaseURL: viper.GetString(string(kind) + ".api_url"),
		}
	}

	detector := provider.NewDetector(provider.NewFSConfigReader(fs, repo),
		provider.WithHosts(hosts),
		provider.WithDetectorLogger(logger),
	)
	factory := provider.NewAdapterFactory(provider.FactoryConfig{
		Providers: creds,
		Timeout:   viper.GetDuration("http.timeout"),
		Log:       logger,
	})
	checker := quality.New(fs,
		quality.WithRoot(repo),
		quality.WithMaxLineLength(viper.GetInt("quality.max_line_length")),
		quality.WithMaxFileLines(viper.GetInt("quality.max_file_lines")),
		quality.WithLogger(logger),
	)

	pulls = provider.NewIntegration(detector, factory, checker,
		provider.WithLogger(logger),
		provider.WithConcurrency(viper.GetInt("quality.concurrency")),
	)
	return pulls
}

// repoRoot resolves repo_path to the top of its checkout so commands work
// from subdirectories. Paths outside a checkout are used as given.
func repoRoot() string {
	repo := viper.GetString("repo_path")
	if root, err := gitClient.RepoRoot(repo); err == nil && root != "" {
		return root
	}
	return repo
}
