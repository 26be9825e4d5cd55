package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sweeney/garage-sensor/internal/collector"
	"github.com/sweeney/garage-sensor/internal/config"
	"github.com/sweeney/garage-sensor/internal/gpio"
	"github.com/sweeney/garage-sensor/internal/logger"
	"github.com/sweeney/garage-sensor/internal/logic"
	"github.com/sweeney/garage-sensor/internal/monitor"
	"github.com/sweeney/garage-sensor/internal/mqtt"
	"github.com/sweeney/garage-sensor/internal/status"
	"github.com/sweeney/garage-sensor/internal/temperature"
	"github.com/sweeney/garage-sensor/internal/web"
)

// openInputs opens the GPIO lines. Tests replace it with a fake.
var openInputs = func(opts gpio.Options) (gpio.Reader, error) {
	r, err := gpio.NewRealReader(opts)
	if err != nil {
		return nil, err
	}
	return r, nil
}

// app carries flag values and the loaded configuration between cobra hooks.
type app struct {
	configPath string
	logLevel   string
	cfg        *config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "garage-sensor",
		Short: "Garage door and motion monitor.",
		Long: `Watches the garage door switch and motion sensor through GPIO interrupts,
sends alerts to the collector outside the configured daytime hours and uploads
door and temperature snapshots on a schedule.

Without a subcommand it runs as a daemon until SIGINT or SIGTERM.`,
		Version:           version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.load,
		RunE:              a.runDaemon,
	}

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "path to YAML configuration file")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level (debug, info, warn, error); overrides LOG_LEVEL")

	root.AddCommand(
		a.oneShot("checkDoorStatusAndAlert", "check-door-status-and-alert",
			"Alert if the door is open outside daytime hours.",
			(*monitor.Monitor).CheckDoorStatusAndAlert),
		a.uploadTempCmd(),
		a.oneShot("checkUploadDoor", "check-upload-door",
			"Upload the current door state.",
			(*monitor.Monitor).CheckUploadDoor),
		a.printStateCmd(),
	)
	return root
}

// load reads the configuration and applies the log level before any command runs.
func (a *app) load(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}

	level := cfg.LogLevel
	if a.logLevel != "" {
		level = a.logLevel
	}
	lvl, ok := logger.ParseLogLevel(level)
	if !ok {
		return fmt.Errorf("unknown log level %q", level)
	}
	logger.SetLevel(lvl)

	a.cfg = cfg
	cmd.SetContext(logger.WithName(cmd.Context(), "garage-sensor"))
	return nil
}

// oneShot builds a subcommand that runs a single check and exits.
func (a *app) oneShot(use, alias, short string, check func(*monitor.Monitor, context.Context) error) *cobra.Command {
	return &cobra.Command{
		Use:     use,
		Aliases: []string{alias},
		Short:   short,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			inputs, err := openInputs(a.gpioOptions())
			if err != nil {
				return fmt.Errorf("init gpio: %w", err)
			}
			defer inputs.Close()

			m, err := monitor.New(a.cfg, monitor.Deps{
				Inputs:      inputs,
				Collector:   a.collector(),
				Thermometer: a.thermometer(),
			})
			if err != nil {
				return err
			}
			return check(m, logger.WithName(cmd.Context(), use))
		},
	}
}

// uploadTempCmd reads only the 1-wire sensor; the GPIO lines may be held by
// a running daemon.
func (a *app) uploadTempCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "checkUploadTemp",
		Aliases: []string{"check-upload-temp"},
		Short:   "Upload the current temperature.",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := logger.WithName(cmd.Context(), "checkUploadTemp")
			return monitor.UploadTemperature(ctx, a.collector(), a.thermometer())
		},
	}
}

func (a *app) printStateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "print-state",
		Short: "Print the current input levels and exit.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			inputs, err := openInputs(a.gpioOptions())
			if err != nil {
				return fmt.Errorf("init gpio: %w", err)
			}
			defer inputs.Close()

			levels, err := inputs.Read()
			if err != nil {
				return fmt.Errorf("read gpio: %w", err)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Door: %s, Motion: %s\n",
				mqtt.DoorString(levels.Door), levelString(levels.Motion))
			return nil
		},
	}
}

func (a *app) runDaemon(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cfg := a.cfg

	inputs, err := openInputs(a.gpioOptions())
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer inputs.Close()

	tracker := status.NewTracker(time.Now(), status.Config{
		DebounceMs:    cfg.Debounce.Milliseconds(),
		MotionRearmMs: cfg.MotionRearm.Milliseconds(),
		DoorWindow:    windowOf(cfg.DoorAlert),
		MotionWindow:  windowOf(cfg.MotionAlert),
		CollectorURL:  cfg.CollectorURL,
		Broker:        cfg.MQTTBroker,
		HTTPAddr:      cfg.HTTPAddr,
	})
	tracker.SetNetwork(status.NetworkFromEnv())

	deps := monitor.Deps{
		Inputs:      inputs,
		Collector:   a.collector(),
		Thermometer: a.thermometer(),
		Tracker:     tracker,
	}

	if cfg.MQTTBroker != "" {
		pub, err := mqtt.NewRealPublisher(ctx, cfg.MQTTBroker, clientID())
		if err != nil {
			return err
		}
		defer pub.Close()
		deps.Publisher = pub
	}

	m, err := monitor.New(cfg, deps)
	if err != nil {
		return err
	}
	if err := m.RegisterJobs(); err != nil {
		return err
	}

	if cfg.HTTPAddr != "" {
		srv := web.New(cfg.HTTPAddr, m)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.ErrorKV(ctx, "http server error", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
		logger.InfoKV(ctx, "http status server listening", "addr", cfg.HTTPAddr)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sig)

	return m.Run(ctx, sig)
}

func (a *app) gpioOptions() gpio.Options {
	return gpio.Options{
		Chip:      a.cfg.GPIO.Chip,
		DoorPin:   a.cfg.GPIO.DoorPin,
		MotionPin: a.cfg.GPIO.MotionPin,
	}
}

func (a *app) collector() collector.Client {
	return collector.NewHTTPClient(a.cfg.CollectorURL, a.cfg.APIToken, a.cfg.HTTPTimeout)
}

func (a *app) thermometer() temperature.Sensor {
	return temperature.NewDS18B20(a.cfg.W1DevicesDir, a.cfg.TempSensorID)
}

func windowOf(w config.HourWindow) logic.AlertWindow {
	return logic.AlertWindow{MinHour: w.Min, MaxHour: w.Max}
}

func clientID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return "garage-sensor"
	}
	return "garage-sensor-" + host
}

func levelString(high bool) string {
	if high {
		return "HIGH"
	}
	return "LOW"
}
