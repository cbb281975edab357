package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/eryxsegithub/TheStudioBot/internal/bootstrap"
	"github.com/eryxsegithub/TheStudioBot/internal/config"
	"github.com/eryxsegithub/TheStudioBot/internal/logging"
)

const programName = "studiobot"

// Set at build time with -ldflags "-X main.version=...".
var version = "dev"

var (
	globalFlags = struct {
		debug bool
	}{}
	configFile string
	cfg        *config.Config
)

func main() {
	rootCmd := &cobra.Command{
		Use:           programName,
		Short:         "Discord anti-abuse bot",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runBot,
	}

	rootCmd.PersistentFlags().
		BoolVarP(&globalFlags.debug, "debug", "D", false, "enable debug logging")
	rootCmd.PersistentFlags().
		StringVar(&configFile, "config", "config.json", "path to config file")

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		logging.InitConsole(logging.LevelInfo)

		loaded, err := config.Load(configFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if globalFlags.debug {
			loaded.Logging.Level = "debug"
		}
		cfg = loaded

		return logging.InitGlobalLogger(logging.Options{
			Level:   logging.ParseLevel(cfg.Logging.Level),
			Path:    cfg.Logging.Path,
			JSON:    cfg.Logging.Format == "json",
			Console: os.Stdout,
		})
	}

	rootCmd.AddCommand(runCommand())
	rootCmd.AddCommand(configCommand())
	rootCmd.AddCommand(versionCommand())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", programName, err)
		logging.Close()
		os.Exit(1)
	}
}

func runCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Connect to the gateway and start enforcing",
		RunE:  runBot,
	}
}

func runBot(cmd *cobra.Command, args []string) error {
	defer logging.Close()

	if _, err := maxprocs.Set(maxprocs.Logger(logging.Info)); err != nil {
		logging.Warn("Failed to set GOMAXPROCS: %v", err)
	}
	logging.Info("%s %s starting (%s, GOMAXPROCS=%d)", programName, version, runtime.Version(), runtime.GOMAXPROCS(0))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	b := bootstrap.New(cfg)
	if err := b.Initialize(ctx); err != nil {
		return err
	}
	return b.Run(ctx)
}

func configCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration with secrets redacted",
		RunE: func(cmd *cobra.Command, args []string) error {
			shown := *cfg
			if shown.Bot.Token != "" {
				shown.Bot.Token = "<redacted>"
			}
			if shown.Store.DSN != "" {
				shown.Store.DSN = "<redacted>"
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(shown)
		},
	}
}

func versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", programName, version)
		},
	}
}
