package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/abishchhetri-svg/Tasks/internal/config"
	"github.com/abishchhetri-svg/Tasks/internal/gateway"
	"github.com/abishchhetri-svg/Tasks/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:               "worklog",
	Short:             "worklog - daily work activity log",
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the API server, scheduler and file watcher",
	RunE:  runServe,
}

var onboardCmd = &cobra.Command{
	Use:   "onboard",
	Short: "Initialize config and the logs directory",
	RunE:  runOnboard,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show worklog status",
	RunE:  runStatus,
}

var (
	logLevelFlag string
	gatewayOpts  gateway.Options
)

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "Override the configured log level")
	rootCmd.AddCommand(serveCmd, onboardCmd, statusCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// setup loads .env files before anything reads the environment. A missing
// file is fine.
func setup(cmd *cobra.Command, args []string) error {
	_ = godotenv.Load()
	_ = godotenv.Load(filepath.Join(config.ConfigDir(), ".env"))
	return nil
}

// loadConfig reads config and configures logging to stderr.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	level := cfg.Log.Level
	if logLevelFlag != "" {
		level = logLevelFlag
	}
	logging.Init(cmd.ErrOrStderr(), level, cfg.Log.Format)
	return cfg, nil
}

// withComponents builds the pipeline for a one-shot command.
func withComponents(cmd *cobra.Command, fn func(ctx context.Context, comp *gateway.Components) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	comp, err := gateway.Build(ctx, cfg, gatewayOpts)
	if err != nil {
		return err
	}
	defer comp.Close()
	return fn(ctx, comp)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	gw, err := gateway.NewWithOptions(cmd.Context(), cfg, gatewayOpts)
	if err != nil {
		return fmt.Errorf("create gateway: %w", err)
	}
	return gw.Run(cmd.Context())
}

func runOnboard(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	cfgDir := config.ConfigDir()
	cfgPath := config.ConfigPath()

	if err := os.MkdirAll(cfgDir, 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		data, _ := json.MarshalIndent(config.DefaultConfig(), "", "  ")
		if err := os.WriteFile(cfgPath, data, 0644); err != nil {
			return fmt.Errorf("write config: %w", err)
		}
		fmt.Fprintf(out, "Created config: %s\n", cfgPath)
	} else {
		fmt.Fprintf(out, "Config already exists: %s\n", cfgPath)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := os.MkdirAll(cfg.Logs.Dir, 0755); err != nil {
		return fmt.Errorf("create logs dir: %w", err)
	}
	writeIfNotExists(out, filepath.Join(cfgDir, ".env"), defaultEnv)

	fmt.Fprintf(out, "Logs directory ready: %s\n", cfg.Logs.Dir)
	fmt.Fprintln(out, "\nNext steps:")
	fmt.Fprintf(out, "  1. Make %s a git repository with a remote to publish logs\n", cfg.RepoDir())
	fmt.Fprintf(out, "  2. Add tracked projects to %s\n", cfgPath)
	fmt.Fprintln(out, "  3. Run 'worklog add completed \"First task\"' to test")
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(out, "Config: error (%v)\n", err)
		return nil
	}

	on := color.New(color.FgGreen).SprintFunc()
	off := color.New(color.FgHiBlack).SprintFunc()
	flag := func(b bool) string {
		if b {
			return on("enabled")
		}
		return off("disabled")
	}

	fmt.Fprintf(out, "Config: %s\n", config.ConfigPath())
	fmt.Fprintf(out, "Logs: %s\n", cfg.Logs.Dir)
	fmt.Fprintf(out, "Repository: %s\n", cfg.RepoDir())
	fmt.Fprintf(out, "Publish: %s (push=%v)\n", flag(cfg.Publish.Enabled), cfg.Publish.Push)
	fmt.Fprintf(out, "ActivityWatch: %s %s\n", flag(cfg.ActivityWatch.Enabled), cfg.ActivityWatch.URL)
	fmt.Fprintf(out, "Projects: %d\n", len(cfg.Projects))
	fmt.Fprintf(out, "Analysis: %s (model %s, provider %s)\n", flag(cfg.Analysis.Enabled), cfg.Analysis.Model, providerDisplay(cfg.AnalysisProvider().Type))
	fmt.Fprintf(out, "API Key: %s\n", maskKey(cfg.AnalysisProvider().APIKey))
	fmt.Fprintf(out, "Telegram: %s\n", flag(cfg.Channels.Telegram.Enabled))
	fmt.Fprintf(out, "Server: http://%s:%d\n", cfg.Gateway.Host, cfg.Gateway.Port)

	if _, err := os.Stat(cfg.Logs.Dir); err != nil {
		fmt.Fprintln(out, "Logs directory: not found (run 'worklog onboard')")
	}
	return nil
}

func providerDisplay(t string) string {
	if t == "" {
		return "anthropic (default)"
	}
	return t
}

func maskKey(key string) string {
	switch {
	case key == "":
		return "not set"
	case len(key) > 8:
		return key[:4] + "..." + key[len(key)-4:]
	default:
		return "set"
	}
}

func writeIfNotExists(out io.Writer, path, content string) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		_ = os.WriteFile(path, []byte(content), 0600)
		fmt.Fprintf(out, "  Created: %s\n", path)
	}
}

const defaultEnv = `# Loaded by every worklog command.
# ANTHROPIC_API_KEY=
# WORKLOG_TELEGRAM_TOKEN=
# WORKLOG_TELEGRAM_CHAT_ID=
`
