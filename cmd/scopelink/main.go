// ScopeLink Core - telescope control client
//
// This is the main entry point for the ScopeLink core service. It discovers
// telescopes through the discovery backend (and optionally mDNS), keeps a
// control channel open to the selected one, and serves the local REST and
// WebSocket API a user interface drives it through.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	_ "github.com/nerrad567/scopelink-core/migrations"

	"github.com/nerrad567/scopelink-core/internal/api"
	"github.com/nerrad567/scopelink-core/internal/backend"
	"github.com/nerrad567/scopelink-core/internal/channel"
	"github.com/nerrad567/scopelink-core/internal/command"
	"github.com/nerrad567/scopelink-core/internal/connection"
	"github.com/nerrad567/scopelink-core/internal/core"
	"github.com/nerrad567/scopelink-core/internal/device"
	"github.com/nerrad567/scopelink-core/internal/infrastructure/config"
	"github.com/nerrad567/scopelink-core/internal/infrastructure/database"
	"github.com/nerrad567/scopelink-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/scopelink-core/internal/infrastructure/logging"
	"github.com/nerrad567/scopelink-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/scopelink-core/internal/store"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	flags := pflag.NewFlagSet("scopelink", pflag.ExitOnError)
	configPath := flags.StringP("config", "c", "", "path to the YAML configuration file (env SCOPELINK_CONFIG)")
	showVersion := flags.Bool("version", false, "print the version and exit")
	flags.Parse(os.Args[1:]) //nolint:errcheck // ExitOnError

	if *showVersion {
		fmt.Printf("scopelink %s (%s, %s)\n", version, commit, date)
		return
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, resolveConfigPath(*configPath)); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// resolveConfigPath picks the flag, then SCOPELINK_CONFIG, then the default.
func resolveConfigPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if path := os.Getenv("SCOPELINK_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// run is the application logic, separated from main for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//   - configPath: YAML configuration file
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context, configPath string) error {
	log := logging.Default()
	log.Info("starting ScopeLink Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded", "path", configPath, "site", cfg.Site.ID)

	db, err := database.Open(ctx, database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	log.Info("database ready", "path", cfg.Database.Path)

	dialer, closeTransport, err := newDialer(cfg, log)
	if err != nil {
		return err
	}
	defer closeTransport()

	opts := core.Options{
		Repository: store.NewSQLiteRepository(db.DB),
		WriteQueue: cfg.Database.WriteQueue,
		Backend: backend.NewClient(backend.Config{
			URL:     cfg.Backend.URL,
			Token:   cfg.Backend.Token,
			Timeout: config.Seconds(cfg.Backend.Timeout),
		}),
		Dialer: dialer,
		Connection: connection.Config{
			DialTimeout:  config.Seconds(cfg.Connection.DialTimeout),
			InitialDelay: config.Millis(cfg.Connection.Reconnect.InitialDelay),
			MaxDelay:     config.Millis(cfg.Connection.Reconnect.MaxDelay),
			MaxAttempts:  cfg.Connection.Reconnect.MaxAttempts,
		},
		Command: command.Config{
			DefaultTimeout: config.Millis(cfg.Command.Timeouts.Default),
			GotoTimeout:    config.Millis(cfg.Command.Timeouts.Goto),
			ParkTimeout:    config.Millis(cfg.Command.Timeouts.Park),
			Retries:        cfg.Command.Retries,
			RetryDelay:     config.Millis(cfg.Command.RetryDelay),
		},
		SessionTick:     config.Millis(cfg.Session.TickInterval),
		SampleDevices:   sampleDevices(cfg.Discovery.SampleDevices),
		RefreshInterval: config.Seconds(cfg.Discovery.RefreshInterval),
		Logger:          log,
	}

	if cfg.Discovery.MDNS.Enabled {
		browser := device.NewMDNSBrowser(device.MDNSConfig{
			Service: cfg.Discovery.MDNS.Service,
			Domain:  cfg.Discovery.MDNS.Domain,
			Timeout: config.Seconds(cfg.Discovery.MDNS.Timeout),
		})
		browser.SetLogger(log.Component("mdns"))
		opts.Browser = browser
		log.Info("mDNS discovery enabled", "service", cfg.Discovery.MDNS.Service)
	}

	if cfg.InfluxDB.Enabled {
		influxClient, err := influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			// Telemetry export is optional; keep running without it.
			log.Warn("InfluxDB unavailable, telemetry export disabled", "url", cfg.InfluxDB.URL, "error", err)
		} else {
			defer func() {
				log.Info("closing InfluxDB connection")
				if closeErr := influxClient.Close(); closeErr != nil {
					log.Error("error closing InfluxDB", "error", closeErr)
				}
			}()
			influxClient.SetOnError(func(err error) {
				log.Error("InfluxDB write error", "error", err)
			})
			opts.Metrics = influxClient
			log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
		}
	}

	manager, err := core.New(opts)
	if err != nil {
		return fmt.Errorf("creating core: %w", err)
	}
	defer func() {
		if closeErr := manager.Close(); closeErr != nil {
			log.Error("error closing core", "error", closeErr)
		}
	}()

	if err := manager.Boot(ctx); err != nil {
		return fmt.Errorf("booting core: %w", err)
	}
	status := manager.ConnectionStatus()
	log.Info("core booted", "connection", status.State, "device", status.DeviceName)

	server, err := api.New(api.Deps{
		Config:   cfg.API,
		WS:       cfg.WebSocket,
		Security: cfg.Security,
		Logger:   log,
		Core:     manager,
		DB:       db.DB,
		Version:  version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()
	if cfg.Security.JWT.Secret == "" {
		log.Warn("API authentication disabled; set security.jwt.secret to enable it")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return manager.Run(gctx) })
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutdown signal received, cleaning up")
		return nil
	})
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	log.Info("ScopeLink Core stopped")
	return nil
}

// newDialer builds the control-channel transport named in the config. The
// returned cleanup closes any broker connection it opened.
func newDialer(cfg *config.Config, log *logging.Logger) (channel.Dialer, func(), error) {
	switch cfg.Connection.Transport {
	case "mqtt":
		client, err := mqtt.Connect(cfg.MQTT)
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to MQTT: %w", err)
		}
		client.SetLogger(log.Component("mqtt"))
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)
		return channel.MQTTDialer{Broker: client}, func() {
			log.Info("disconnecting from MQTT")
			if err := client.Close(); err != nil {
				log.Error("error closing MQTT", "error", err)
			}
		}, nil
	default:
		return channel.WebSocketDialer{
			Path:             cfg.Connection.WebSocketPath,
			HandshakeTimeout: config.Seconds(cfg.Connection.DialTimeout),
		}, func() {}, nil
	}
}

func sampleDevices(samples []config.SampleDevice) []device.Device {
	out := make([]device.Device, 0, len(samples))
	for _, s := range samples {
		out = append(out, device.Device{
			Name:            s.Name,
			SerialNumber:    s.SerialNumber,
			Host:            s.Host,
			Port:            s.Port,
			ProductModel:    s.ProductModel,
			DiscoveryMethod: device.DiscoveryAuto,
		})
	}
	return out
}
