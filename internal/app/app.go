package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"net"
	"net/http"
	"os"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"tab-overlay/server/internal/config"
	"tab-overlay/server/internal/hub"
	servernet "tab-overlay/server/internal/net"
	"tab-overlay/server/internal/observability"
	"tab-overlay/server/internal/telemetry"
	"tab-overlay/server/logging"
	loggingSinks "tab-overlay/server/logging/sinks"
)

const shutdownTimeout = 5 * time.Second

type Config struct {
	Logger telemetry.Logger
	// Zap additionally receives every structured event when set.
	Zap        *zap.Logger
	ConfigPath string
	// Addr overrides http.addr and TAB_ADDR when not empty.
	Addr   string
	Getenv func(string) string
	// Ready is called with the listening address once the server accepts
	// connections.
	Ready func(addr string)

	Observability observability.Config
}

func Run(ctx context.Context, cfg Config) (err error) {
	telemetryLogger := cfg.Logger
	if telemetryLogger == nil {
		telemetryLogger = telemetry.WrapLogger(log.Default())
	}

	fallbackLogger := log.Default()
	if provider, ok := telemetryLogger.(interface{ StandardLogger() *log.Logger }); ok {
		if candidate := provider.StandardLogger(); candidate != nil {
			fallbackLogger = candidate
		}
	}

	getenv := cfg.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	path := cfg.ConfigPath
	if path == "" {
		path = config.PathFromEnv(getenv, config.DefaultPath)
	}
	settings, err := loadSettings(path, getenv, telemetryLogger)
	if err != nil {
		return err
	}
	if cfg.Addr != "" {
		settings.HTTPAddr = cfg.Addr
	}

	metrics := &logging.Metrics{}
	router, err := newRouter(settings, cfg.Zap, fallbackLogger, metrics)
	if err != nil {
		return fmt.Errorf("failed to construct logging router: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if cerr := router.Close(closeCtx); cerr != nil {
			err = multierr.Append(err, fmt.Errorf("failed to close logging router: %w", cerr))
		}
	}()

	h := hub.New(hub.Config{
		Logger:    telemetryLogger,
		Publisher: router,
		Metrics:   telemetry.WrapMetrics(metrics),
	})
	h.Apply(settings)
	defer h.Shutdown()

	handler := servernet.NewHTTPHandler(h, servernet.HTTPHandlerConfig{
		Logger:    telemetryLogger,
		Publisher: router,
		Stats:     router.Stats,

		Observability: observability.FromEnv(cfg.Observability, getenv, telemetryLogger),
	})
	srv := &http.Server{Addr: settings.HTTPAddr, Handler: handler}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		h.RunTicker(gctx, settings.RefreshInterval)
		return nil
	})
	g.Go(func() error {
		return watchConfig(gctx, path, func() {
			reload(path, getenv, h, telemetryLogger)
		}, telemetryLogger)
	})
	g.Go(func() error {
		listener, err := listen(srv.Addr)
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		telemetryLogger.Printf("server listening on %s", listener.Addr())
		if cfg.Ready != nil {
			cfg.Ready(listener.Addr().String())
		}
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func listen(addr string) (net.Listener, error) {
	return net.Listen("tcp", addr)
}

// loadSettings reads path, falling back to defaults when it does not exist.
func loadSettings(path string, getenv func(string) string, logger telemetry.Logger) (*config.Config, error) {
	settings, err := config.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		logger.Printf("config %s not found, using defaults", path)
		settings, err = config.Default(), nil
	}
	if err != nil {
		return nil, err
	}
	settings.ApplyEnv(getenv)
	return settings, nil
}

// reload applies a changed config file. A broken file keeps the running
// configuration.
func reload(path string, getenv func(string) string, h *hub.Hub, logger telemetry.Logger) {
	settings, err := config.Load(path)
	if err != nil {
		logger.Printf("keeping current config: %v", err)
		return
	}
	settings.ApplyEnv(getenv)
	if previous := h.Settings(); previous != nil {
		if settings.HTTPAddr != previous.HTTPAddr || settings.RefreshInterval != previous.RefreshInterval {
			logger.Printf("http.addr and refresh-interval changes apply after a restart")
		}
		settings.HTTPAddr = previous.HTTPAddr
		settings.RefreshInterval = previous.RefreshInterval
	}
	h.Apply(settings)
	logger.Printf("reloaded config from %s", path)
}

func newRouter(settings *config.Config, zapLogger *zap.Logger, fallback *log.Logger, metrics *logging.Metrics) (*logging.Router, error) {
	logConfig := logging.DefaultConfig()
	severity, err := logging.ParseSeverity(settings.LogLevel)
	if err != nil {
		fallback.Printf("%v", err)
	}
	logConfig.MinimumSeverity = severity
	logConfig.CategorySeverity = settings.LogCategories
	logConfig.Fields = map[string]any{"service": "tab-overlay"}
	logConfig.Console.UseColor = settings.LogColor
	logConfig.JSON.FilePath = settings.LogJSONFile

	sinks := []logging.NamedSink{
		{Name: "console", Sink: loggingSinks.NewConsoleSink(os.Stdout, logConfig.Console)},
	}
	if logConfig.JSON.FilePath != "" {
		file, err := os.OpenFile(logConfig.JSON.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open json log: %w", err)
		}
		sinks = append(sinks, logging.NamedSink{Name: "json", Sink: loggingSinks.NewJSON(file, logConfig.JSON.FlushInterval)})
	}
	if zapLogger != nil {
		sinks = append(sinks, logging.NamedSink{Name: "zap", Sink: loggingSinks.NewZap(zapLogger)})
	}
	return logging.NewRouter(logConfig, logging.SystemClock{}, fallback, sinks, logging.WithMetrics(metrics))
}
