package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/banshee-data/interface.report/internal/config"
	"github.com/banshee-data/interface.report/internal/monitoring"
	"github.com/banshee-data/interface.report/internal/storage/sqlite"
	"github.com/banshee-data/interface.report/internal/version"
)

// rootOptions holds the global flags.
type rootOptions struct {
	configPath string
	logLevel   string
	dbPath     string
}

// app carries the state initialised before every subcommand runs.
type app struct {
	opts   rootOptions
	cfg    *config.AnalysisConfig
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	cmd := &cobra.Command{
		Use:   "isurf",
		Short: "Intrinsic surface analysis of liquid slab simulations",
		Long: "isurf fits an intrinsic surface to each interface of a liquid slab,\n" +
			"stores the coefficients in a SQLite database and reports their spectra.",
		Version:       version.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd.ErrOrStderr())
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			a.close()
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&a.opts.configPath, "config", "c", "", "analysis config JSON file (default: built-in defaults)")
	pf.StringVar(&a.opts.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	pf.StringVar(&a.opts.dbPath, "db", "", "coefficient database path (overrides config)")

	cmd.AddCommand(
		newBuildCmd(a),
		newInspectCmd(a),
		newRunsCmd(a),
		newVersionCmd(),
	)
	return cmd
}

func (a *app) init(logOut io.Writer) error {
	logger, err := newLogger(a.opts.logLevel, logOut)
	if err != nil {
		return fmt.Errorf("logger initialization failed: %w", err)
	}
	a.logger = logger
	monitoring.SetLogger(logger.Sugar().Infof)

	cfg := config.DefaultAnalysisConfig()
	if a.opts.configPath != "" {
		cfg, err = config.LoadAnalysisConfig(a.opts.configPath)
		if err != nil {
			return fmt.Errorf("config initialization failed: %w", err)
		}
	}
	if a.opts.dbPath != "" {
		cfg.Database = &a.opts.dbPath
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	a.cfg = cfg
	return nil
}

func (a *app) close() {
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}

func (a *app) openDB() (*sqlite.DB, error) {
	path := a.cfg.GetDatabase()
	db, err := sqlite.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", path, err)
	}
	return db, nil
}

// newLogger builds a console logger writing to w.
func newLogger(level string, w io.Writer) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.AddSync(w), zap.NewAtomicLevelAt(lvl))
	return zap.New(core), nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "isurf", version.String())
		},
	}
}
