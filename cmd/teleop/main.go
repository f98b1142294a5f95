package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Versifine/teleop/internal/actuator"
	"github.com/Versifine/teleop/internal/config"
	"github.com/Versifine/teleop/internal/console"
	"github.com/Versifine/teleop/internal/dispatch"
	"github.com/Versifine/teleop/internal/event"
	"github.com/Versifine/teleop/internal/joystick"
	"github.com/Versifine/teleop/internal/logger"
	"github.com/Versifine/teleop/internal/motion"
	"github.com/Versifine/teleop/internal/servo"
	"github.com/Versifine/teleop/internal/telemetry"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the YAML config")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	if err := logger.Init(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		File:   cfg.Logging.File,
	}); err != nil {
		slog.Warn("Logging to stdout", "error", err)
	}

	err = run(cfg)
	_ = logger.Close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "teleop: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig falls back to defaults when the default path is missing.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if errors.Is(err, os.ErrNotExist) && !flagSet("config") {
		return config.Default(), nil
	}
	return cfg, err
}

func flagSet(name string) bool {
	set := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	bus := event.NewBus()

	recorder, err := telemetry.NewRecorder(cfg.Telemetry.File)
	if err != nil {
		return err
	}
	defer recorder.Close()

	var (
		controlSender dispatch.ControlSender = actuator.Discard{}
		servoSender   dispatch.ServoSender   = actuator.Discard{}
	)
	if cfg.Actuator.Enabled {
		client := actuator.NewClient(&actuator.Config{
			BaseURL: cfg.Actuator.BaseURL,
			Timeout: cfg.RequestTimeout(),
		})
		controlSender, servoSender = client, client
	} else {
		slog.Warn("Actuator disabled, commands stay local")
	}

	latch := motion.NewLatch()
	scaler, err := motion.NewScaler(cfg.Surface.OuterRadius,
		motion.Limits{MaxTranslate: cfg.Speed.MaxTranslate, MaxRotate: cfg.Speed.MaxRotate},
		motion.Range{Min: cfg.Speed.TranslateRange.Min, Max: cfg.Speed.TranslateRange.Max},
		motion.Range{Min: cfg.Speed.RotateRange.Min, Max: cfg.Speed.RotateRange.Max},
		latch,
	)
	if err != nil {
		return err
	}

	translate := joystick.NewSurface(motion.SurfaceTranslate, cfg.Surface.OuterRadius, cfg.Surface.KeyRadius)
	translate.SetKeyboardEnabled(true)
	rotate := joystick.NewSurface(motion.SurfaceRotate, cfg.Surface.OuterRadius, cfg.Surface.KeyRadius)
	publish := joystick.ObserverFunc(func(surface string, v joystick.Vector) {
		bus.Publish(event.TopicVector, event.VectorEvent{Surface: surface, Forward: v.Forward, Left: v.Left})
	})
	for _, s := range []*joystick.Surface{translate, rotate} {
		s.Observe(scaler)
		s.Observe(publish)
	}

	servoDispatcher := dispatch.NewServoDispatcher(ctx, servoSender, cfg.RequestTimeout(), bus, recorder)
	bank, err := servo.NewBank(servo.DefaultRanges(), cfg.Servos.InitialAngles, servoDispatcher)
	if err != nil {
		return err
	}

	loop := dispatch.NewLoop(latch, controlSender, dispatch.Options{
		Interval:     cfg.TickInterval(),
		Timeout:      cfg.ControlTimeout(),
		FlushTimeout: cfg.FlushTimeout(),
		Bus:          bus,
		Recorder:     recorder,
	})
	loopDone := make(chan error, 1)
	go func() { loopDone <- loop.Run(ctx) }()

	bank.Sync()

	slog.Info("Teleop started",
		"actuator", cfg.Actuator.BaseURL,
		"enabled", cfg.Actuator.Enabled,
		"rate_hz", cfg.Dispatch.RateHz,
		"session", recorder.Session(),
	)

	con := console.New(translate, rotate, scaler, bank, console.Options{
		KeyPulse:   cfg.KeyPulse(),
		CellWidth:  cfg.Surface.CellWidth,
		CellHeight: cfg.Surface.CellHeight,
		Mouse:      cfg.Console.Mouse,
		Bus:        bus,
	})
	consoleErr := con.Start(ctx)

	// Stopping the loop sends the final zero command.
	cancel()
	loopErr := <-loopDone
	servoDispatcher.Wait()
	slog.Info("Teleop stopped")

	return errors.Join(consoleErr, loopErr)
}
