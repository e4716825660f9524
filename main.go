package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/sirupsen/logrus"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, os.Args, linuxBackend{}))
}

func run(ctx context.Context, args []string, backend deviceBackend) int {
	cfg, err := parseArgs(filepath.Base(args[0]), args[1:], os.Stderr)
	if err != nil {
		return exitCode(err)
	}

	log, logFile := newLogger(cfg.LogFile)
	if logFile != nil {
		defer logFile.Close()
	}

	log.Infof("touch_remap starting. in=%s invert_y=%t invert_x=%t", cfg.Device, cfg.InvertY, cfg.InvertX)

	if cfg.WaitForDevice && cfg.Device != autoDevicePath {
		if err := waitForDevice(ctx, cfg.Device, log); err != nil {
			log.WithError(err).Errorf("failed waiting for %s", cfg.Device)
			return exitCode(&SourceOpenError{Path: cfg.Device, Err: err})
		}
	}

	bridge, err := setupBridge(cfg, backend, log)
	if err != nil {
		return exitCode(err)
	}
	defer func() {
		if err := bridge.Close(); err != nil {
			log.WithError(err).Warn("failed releasing devices")
		}
	}()

	relay := newRelay(bridge, cfg.Remap(), cfg.IdleInterval.Duration, log)
	stats := relay.Run(ctx)

	log.WithFields(logrus.Fields{
		"relayed":     stats.Relayed,
		"transformed": stats.Transformed,
		"dropped":     stats.Dropped,
	}).Info("touch_remap stopped")

	return exitOK
}
