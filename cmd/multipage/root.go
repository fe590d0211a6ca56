package main

import (
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aretw0/multipage"
	"github.com/aretw0/multipage/internal/cli"
	"github.com/aretw0/multipage/internal/logging"
	"github.com/aretw0/multipage/pkg/adapters/process"
	"github.com/aretw0/multipage/pkg/persistence/middleware"
	"github.com/aretw0/multipage/pkg/registry"
)

const envPrefix = "MULTIPAGE_"

var rootCmd = &cobra.Command{
	Use:   "multipage",
	Short: "Multipage is a guided multi-page wizard engine",
	Long: `Multipage runs installers, setup assistants and onboarding flows described
as a graph of pages in JSON, YAML, HCL or Markdown files.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().String("dir", ".", "Graph file or directory with page definitions")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn or error (env MULTIPAGE_LOG_LEVEL)")
	rootCmd.PersistentFlags().String("log-format", "text", "Log format: text or json")
	rootCmd.PersistentFlags().String("settings", "", "Settings file for persisted keys (.json or .yaml)")
	rootCmd.PersistentFlags().String("functions", "", "YAML or JSON file of external commands callable by custom tasks (env MULTIPAGE_FUNCTIONS)")
	rootCmd.PersistentFlags().StringArray("mask", nil, "Regexp of store keys masked in saved sessions (repeatable)")
}

// env reads MULTIPAGE_<name>, falling back to def.
func env(name, def string) string {
	if v, ok := os.LookupEnv(envPrefix + strings.ToUpper(name)); ok && v != "" {
		return v
	}
	return def
}

// flagOrEnv prefers an explicitly set flag, then the environment, then the flag default.
func flagOrEnv(cmd *cobra.Command, flag, name string) string {
	v, _ := cmd.Flags().GetString(flag)
	if cmd.Flags().Changed(flag) {
		return v
	}
	return env(name, v)
}

// graphPath resolves the graph location from the first argument or --dir.
func graphPath(cmd *cobra.Command, args []string) string {
	dir, _ := cmd.Flags().GetString("dir")
	if !cmd.Flags().Changed("dir") && len(args) > 0 {
		return args[0]
	}
	return dir
}

// newLogger builds the application logger. Without a level, logging is off.
func newLogger(cmd *cobra.Command) (*slog.Logger, error) {
	raw := flagOrEnv(cmd, "log-level", "log_level")
	if raw == "" {
		return logging.NewNop(), nil
	}
	level, err := logging.ParseLevel(raw)
	if err != nil {
		return nil, err
	}
	format, _ := cmd.Flags().GetString("log-format")
	return logging.NewWriter(os.Stderr, level, logging.Format(format)), nil
}

// newEngine loads the graph named by the command line.
func newEngine(cmd *cobra.Command, args []string, logger *slog.Logger, extra ...multipage.Option) (*multipage.Engine, error) {
	path := graphPath(cmd, args)
	opts := []multipage.Option{multipage.WithLogger(logger)}
	if settings := flagOrEnv(cmd, "settings", "settings"); settings != "" {
		opts = append(opts, multipage.WithSettingsPath(settings))
	}
	if fnPath := flagOrEnv(cmd, "functions", "functions"); fnPath != "" {
		cmds, err := process.LoadCommands(fnPath)
		if err != nil {
			return nil, err
		}
		baseDir := path
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			baseDir = filepath.Dir(path)
		}
		reg := registry.NewRegistry()
		process.NewRunner(process.WithCommands(cmds), process.WithBaseDir(baseDir)).Install(reg)
		logger.Debug("external functions registered", "count", len(cmds))
		opts = append(opts, multipage.WithRegistry(reg))
	}
	opts = append(opts, extra...)

	eng, err := multipage.NewContext(cmd.Context(), path, opts...)
	if err != nil {
		return nil, fmt.Errorf("error initializing multipage: %w", err)
	}
	return eng, nil
}

// openBackend opens the session store at location and applies the
// persistence middlewares: --mask patterns and, when MULTIPAGE_ENCRYPTION_KEY
// holds a hex-encoded 32-byte key, snapshot encryption.
func openBackend(cmd *cobra.Command, location string) (*cli.Backend, error) {
	var mws []middleware.Middleware
	if patterns, _ := cmd.Flags().GetStringArray("mask"); len(patterns) > 0 {
		mw, err := middleware.NewPIIMiddleware(patterns)
		if err != nil {
			return nil, err
		}
		mws = append(mws, mw)
	}
	if raw := env("encryption_key", ""); raw != "" {
		key, err := hex.DecodeString(raw)
		if err != nil {
			return nil, fmt.Errorf("%sENCRYPTION_KEY: %w", envPrefix, err)
		}
		mw, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: key})
		if err != nil {
			return nil, fmt.Errorf("%sENCRYPTION_KEY: %w", envPrefix, err)
		}
		mws = append(mws, mw)
	}

	b, err := cli.OpenBackend(cmd.Context(), location)
	if err != nil {
		return nil, err
	}
	b.Wrap(mws...)
	return b, nil
}
