package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"crash/internal/app"
)

// noApp marks commands that run without loading the configuration.
const noApp = "crash/no-app"

var (
	appInstance *app.App
	version     = "dev"

	flagDir      string
	flagLogLevel string
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "crash",
	Short: "Install and supervise Mihomo, Clash and sing-box",
	Long: `crash - install and supervise a local proxy core

  Downloads a proxy core (Mihomo, Clash or sing-box), a web dashboard and the
  geo databases, keeps the core config up to date and starts, stops or
  restarts the core process.

  Quick start:
    crash url "https://example.com/sub.yaml"
    crash install
    crash update
    crash start

  Running crash with no command prints the status.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Annotations[noApp] != "" {
			return nil
		}
		return initApp()
	},
	RunE: runStatus,
}

// Execute executes the root command
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("Error: ")+err.Error())
		os.Exit(1)
	}
}

func initApp() error {
	if appInstance != nil {
		return nil
	}

	logger, err := newLogger(flagLogLevel)
	if err != nil {
		return err
	}

	appInstance, err = app.New(app.Options{
		Dir:      flagDir,
		Version:  version,
		Logger:   logger,
		Progress: newProgress(os.Stderr),
	})
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	return nil
}

func newLogger(level string) (*logrus.Logger, error) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid --log-level: %w", err)
	}

	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetLevel(lvl)
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return logger, nil
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&flagDir, "dir", "d", "", "install directory (default: $CRASH_HOME or the executable's directory)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:         "version",
	Short:       "Print version information",
	Annotations: map[string]string{noApp: "true"},
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("crash %s\n", version)
	},
}
