package cli

import (
	"errors"
	"flag"
	"fmt"
	"strings"

	"github.com/nexmoe/vidbee-server/internal/config"
	"github.com/nexmoe/vidbee-server/internal/tui"
)

func runWatch(args []string) error {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	configPath := fs.String("config", defaultConfigPath(), "config file path")
	serverURL := fs.String("server", "", "server base URL (default from config)")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}
	if !stdinIsTTY() {
		return errors.New("watch requires an interactive terminal (TTY)")
	}

	base := strings.TrimSpace(*serverURL)
	if base == "" {
		cfg, err := config.Load(strings.TrimSpace(*configPath))
		if err != nil {
			return err
		}
		host := cfg.Server.Host
		if host == "" {
			host = "localhost"
		}
		base = fmt.Sprintf("http://%s:%d", host, cfg.Server.Port)
	}

	err := tui.Watch(base)
	if err != nil && strings.Contains(strings.ToLower(err.Error()), "tty") {
		return errors.New("watch requires an interactive terminal (TTY)")
	}
	return err
}
