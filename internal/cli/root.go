package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/aaronromeo/imapbox/internal/config"
	"github.com/aaronromeo/imapbox/internal/telemetry"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// app is the state shared by all commands of one invocation.
type app struct {
	configPath string
	envFile    string
	folder     string
	verbose    bool
	imapDebug  bool

	cfg    config.Config
	tel    *telemetry.Telemetry
	logger *slog.Logger
}

// NewRootCmd builds the imapbox command tree.
func NewRootCmd() *cobra.Command {
	a := &app{}
	rootCmd := &cobra.Command{
		Use:           "imapbox",
		Short:         "imapbox searches, moves and cleans up IMAP folders",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return a.teardown(cmd.Context())
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "Path to YAML config file (or set "+config.EnvConfig+")")
	flags.StringVar(&a.envFile, "env-file", config.DefaultEnvFile, "Dotenv file with IMAP credentials")
	flags.StringVar(&a.folder, "folder", "", "Folder to operate on (default from config, INBOX)")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "Enable verbose logging")
	flags.BoolVar(&a.imapDebug, "imap-debug", false, "Write the raw IMAP exchange to stderr")

	rootCmd.AddCommand(
		newFoldersCmd(a),
		newSearchCmd(a),
		newLsCmd(a),
		newShowCmd(a),
		newMoveCmd(a),
		newDeleteCmd(a),
		newCleanupCmd(a),
		newServeCmd(a),
		newLoginCmd(a),
		newAnalyzeCmd(a),
	)
	return rootCmd
}

// Execute runs the root command.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func (a *app) setup(cmd *cobra.Command) error {
	if err := config.LoadEnvFile(a.envFile); err != nil {
		return err
	}

	cfgPath := resolveConfigPath(a.configPath)
	if cfgPath == "" {
		a.cfg = config.Default()
	} else {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return err
		}
		a.cfg = cfg
	}
	if err := config.Validate(a.cfg); err != nil {
		return err
	}

	telCfg, err := config.TelemetryFromEnv()
	if err != nil {
		return err
	}
	tel, err := telemetry.Setup(cmd.Context(), telCfg,
		telemetry.WithStderr(cmd.ErrOrStderr()),
		telemetry.WithVerbose(a.verbose))
	if err != nil {
		return errors.Wrap(err, "setting up telemetry")
	}
	a.tel = tel
	a.logger = tel.Logger.With(slog.String("command", cmd.Name()))
	return nil
}

func (a *app) teardown(ctx context.Context) error {
	if a.tel == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return a.tel.Shutdown(ctx)
}

func resolveConfigPath(flagValue string) string {
	if path := strings.TrimSpace(flagValue); path != "" {
		return path
	}
	return strings.TrimSpace(os.Getenv(config.EnvConfig))
}

// currentFolder is the --folder flag, else the configured default.
func (a *app) currentFolder() string {
	if folder := strings.TrimSpace(a.folder); folder != "" {
		return folder
	}
	if folder := strings.TrimSpace(a.cfg.Account.DefaultFolder); folder != "" {
		return folder
	}
	return "INBOX"
}
