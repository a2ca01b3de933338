package cli

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"github.com/nexmoe/vidbee-server/internal/config"
	"github.com/nexmoe/vidbee-server/internal/history"
	"github.com/nexmoe/vidbee-server/internal/queue"
	"github.com/nexmoe/vidbee-server/internal/server"
	"github.com/nexmoe/vidbee-server/internal/store"
)

const historyFileName = "history.json"

func defaultConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".vidbee", "config.yaml")
}

func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	configPath := fs.String("config", defaultConfigPath(), "config file path")
	debug := fs.Bool("debug", false, "verbose development logging")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(strings.TrimSpace(*configPath))
	if err != nil {
		return err
	}

	logger, err := newLogger(*debug)
	if err != nil {
		return err
	}
	defer logger.Sync()

	lock, err := store.AcquireStateLock(cfg.StateDir)
	if err != nil {
		return err
	}
	defer lock.Release()

	manager := queue.NewManager(queue.Options{
		Config:  cfg,
		History: history.NewStore(filepath.Join(cfg.StateDir, historyFileName), logger),
		Logger:  logger,
	})
	if err := manager.Initialize(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return server.New(cfg, manager, logger).Run(ctx)
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
