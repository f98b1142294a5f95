// Command actuator runs a stand-in for the robot's HTTP API, for driving the
// teleop client without hardware.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Versifine/teleop/internal/actuator"
	"github.com/Versifine/teleop/internal/config"
	"github.com/Versifine/teleop/internal/logger"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the YAML config")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	// The server owns no terminal, so it always logs to stdout.
	_ = logger.Init(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := actuator.NewServer(fmt.Sprintf("%s:%d", cfg.Listen.Host, cfg.Listen.Port))
	if err := server.Start(ctx); err != nil {
		slog.Error("Failed to start server", "error", err)
		os.Exit(1)
	}
}
