package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"tab-overlay/server/internal/app"
	"tab-overlay/server/internal/config"
	"tab-overlay/server/internal/telemetry"
)

type options struct {
	configPath string
	addr       string
	debug      bool
}

func parseFlags(args []string) (options, error) {
	var opts options
	flags := pflag.NewFlagSet("server", pflag.ContinueOnError)
	flags.StringVarP(&opts.configPath, "config", "c", config.PathFromEnv(os.Getenv, config.DefaultPath), "path to the YAML configuration")
	flags.StringVar(&opts.addr, "addr", "", "listen address, overrides http.addr and "+config.AddrEnv)
	flags.BoolVar(&opts.debug, "debug", false, "use the development logger")
	if err := flags.Parse(args); err != nil {
		return opts, err
	}
	return opts, nil
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func main() {
	opts, err := parseFlags(os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logger, err := newLogger(opts.debug)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx, app.Config{
		Logger:     telemetry.WrapSugared(logger.Sugar()),
		Zap:        logger,
		ConfigPath: opts.configPath,
		Addr:       opts.addr,
	}); err != nil {
		logger.Sugar().Errorf("%v", err)
		logger.Sync()
		os.Exit(1)
	}
}
