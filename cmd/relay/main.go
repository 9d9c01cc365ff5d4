package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/minhvt/roomcast/internal/server"
)

func main() {
	addr := flag.String("addr", "", "Listen address for both TCP and WebSocket clients (e.g. :12344)")
	configPath := flag.String("config", "", "Path to an INI config file")
	flag.Parse()

	cfg := server.DefaultConfig()
	if *configPath != "" {
		loaded, err := server.LoadConfig(*configPath)
		if err != nil {
			bl := bootstrapLogger()
			bl.Fatal().Err(err).Str("path", *configPath).Msg("cannot read config")
		}
		cfg = loaded
	}
	if *addr != "" {
		cfg.Addr = *addr
	}

	logger := newLogger(cfg.LogLevel)
	srv := server.New(cfg, logger)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	select {
	case err := <-errChan:
		if err != nil {
			logger.Fatal().Err(err).Msg("relay error")
		}
	case sig := <-sigChan:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
		srv.Stop()
	}

	logger.Info().Msg("relay stopped")
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	return zerolog.New(output).Level(lvl).With().Timestamp().Logger()
}

func bootstrapLogger() zerolog.Logger {
	return newLogger("info")
}
