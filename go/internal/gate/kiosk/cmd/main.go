package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/zachsouder/outpost-gate/go/internal/gate/config"
	"github.com/zachsouder/outpost-gate/go/internal/gate/kiosk"
)

var version = "dev"

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	// Setup logging
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	if err := newRootCmd().Execute(); err != nil {
		log.Error().Err(err).Msg("outpost kiosk failed")
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the gate kiosk",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), cmd)
		},
	}

	rootCmd := &cobra.Command{
		Use:           "outpost-kiosk",
		Short:         "Gate kiosk client for Outpost access events",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE:          runCmd.RunE,
	}

	rootCmd.PersistentFlags().String("config", os.Getenv("GATE_CONFIG"), "path to a YAML config file")
	rootCmd.PersistentFlags().String("transport", "", "transport: poll, stream or nats")
	rootCmd.PersistentFlags().String("server", "", "gate server base URL, or NATS URL for the nats transport")
	rootCmd.PersistentFlags().String("listen", "", "display service listen address")
	rootCmd.PersistentFlags().String("log-level", "", "log level: trace, debug, info, warn, error")

	rootCmd.AddCommand(runCmd, newVersionCmd())
	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the kiosk version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "outpost-kiosk %s\n", version)
		},
	}
}

// loadConfig reads the config and applies the flags that were set on top of it
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	flags := cmd.Flags()
	path, _ := flags.GetString("config")

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	if flags.Changed("transport") {
		cfg.Transport.Kind, _ = flags.GetString("transport")
	}
	if flags.Changed("server") {
		server, _ := flags.GetString("server")
		if cfg.Transport.Kind == config.TransportNATS {
			cfg.NATS.URL = server
		} else {
			cfg.Server.BaseURL = server
		}
	}
	if flags.Changed("listen") {
		cfg.Display.ListenAddr, _ = flags.GetString("listen")
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level, _ = flags.GetString("log-level")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating flags: %w", err)
	}
	return cfg, nil
}

// setupLogging points the global logger at the configured format and level
func setupLogging(cfg config.LoggingConfig, out io.Writer) error {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		return fmt.Errorf("parse log level: %w", err)
	}
	if cfg.Format == "json" {
		log.Logger = zerolog.New(out).With().Timestamp().Logger()
	} else {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: out})
	}
	zerolog.SetGlobalLevel(level)
	return nil
}

func run(ctx context.Context, cmd *cobra.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := setupLogging(cfg.Logging, os.Stderr); err != nil {
		return err
	}

	svc, err := kiosk.NewService(cfg, kiosk.Options{})
	if err != nil {
		return fmt.Errorf("create kiosk: %w", err)
	}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().
		Str("version", version).
		Str("transport", cfg.Transport.Kind).
		Str("server", cfg.Server.BaseURL).
		Str("listen", cfg.Display.ListenAddr).
		Msg("starting outpost kiosk")

	return svc.Run(ctx)
}
