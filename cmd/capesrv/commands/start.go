package commands

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/marmos91/cape/internal/config"
	"github.com/marmos91/cape/internal/logger"
	"github.com/marmos91/cape/internal/metrics"
	"github.com/marmos91/cape/internal/server"
)

var (
	flagPort    int
	flagTimeout int
	flagHome    string
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the Cape server",
	Long: `Start the Cape server in the foreground. The server runs until it
receives SIGINT or SIGTERM, then stops accepting connections and drains
in-flight requests.

Configuration is resolved from defaults, then the optional config file,
then CAPE_* environment variables, then flags.

Examples:
  # Serve /srv/cape on the default port
  capesrv start --home /srv/cape

  # Custom port and a 2 minute session timeout
  capesrv start --home /srv/cape --port 5050 --timeout 120

  # With a config file and a debug log level
  CAPE_LOGGING_LEVEL=DEBUG capesrv start --config /etc/cape/config.yaml`,
	RunE: runStart,
}

func init() {
	startCmd.Flags().IntVarP(&flagPort, "port", "p", 0, "TCP port to listen on")
	startCmd.Flags().IntVarP(&flagTimeout, "timeout", "t", 0, "Session inactivity timeout in seconds (max 255)")
	startCmd.Flags().StringVar(&flagHome, "home", "", "Home directory all client paths are confined to")
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}

	// Flags take precedence over file and environment values.
	if cmd.Flags().Changed("port") {
		cfg.Server.Port = flagPort
	}
	if cmd.Flags().Changed("timeout") {
		cfg.Server.Timeout = flagTimeout
	}
	if cmd.Flags().Changed("home") {
		cfg.Server.Home = flagHome
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}

	if err := logger.Init(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var m *metrics.ServerMetrics
	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
		m = metrics.NewServerMetrics()
		go func() {
			if err := metrics.Serve(ctx, cfg.Metrics.Port); err != nil {
				logger.Error("metrics server exited", logger.Err(err))
			}
		}()
	}

	srv, err := server.New(cfg, m)
	if err != nil {
		return err
	}

	logger.Info("starting capesrv", "version", Version)
	return srv.Serve(ctx)
}
