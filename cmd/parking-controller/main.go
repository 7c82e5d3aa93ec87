// Command parking-controller drives the gates of a small parking facility,
// tracks slot occupancy and serves the facility state over HTTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/sweeney/parking-controller/internal/actuator"
	"github.com/sweeney/parking-controller/internal/config"
	"github.com/sweeney/parking-controller/internal/control"
	"github.com/sweeney/parking-controller/internal/gpio"
	"github.com/sweeney/parking-controller/internal/logger"
	"github.com/sweeney/parking-controller/internal/logic"
	"github.com/sweeney/parking-controller/internal/mqtt"
	"github.com/sweeney/parking-controller/internal/notify"
	"github.com/sweeney/parking-controller/internal/status"
	"github.com/sweeney/parking-controller/internal/web"
)

func main() {
	if err := newRootCmd(viper.New(), run).Execute(); err != nil {
		os.Exit(1)
	}
}

type runFunc func(cfg config.Config, printState bool) error

// flagKeys maps command-line flags to configuration keys.
var flagKeys = map[string]string{
	"capacity":        "capacity",
	"poll":            "poll",
	"heartbeat":       "heartbeat",
	"log-level":       "log_level",
	"counting-policy": "counting_policy",
	"broker":          "mqtt.broker",
	"http":            "http.addr",
	"logger-endpoint": "logger.endpoint",
}

func newRootCmd(v *viper.Viper, runner runFunc) *cobra.Command {
	var (
		cfgFile    string
		printState bool
	)

	cmd := &cobra.Command{
		Use:          "parking-controller",
		Short:        "Control the gates and slot sensors of a parking facility",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(v, cfgFile)
			if err != nil {
				return err
			}
			return runner(cfg, printState)
		},
	}

	f := cmd.Flags()
	f.StringVar(&cfgFile, "config", "", "config file (yaml, toml or json)")
	f.BoolVar(&printState, "print-state", false, "print current sensor levels and exit")
	f.Int("capacity", 4, "number of parking slots")
	f.Duration("poll", 50*time.Millisecond, "sensor polling interval")
	f.Duration("heartbeat", 15*time.Minute, "heartbeat interval (0 to disable)")
	f.String("log-level", "info", "log level (debug, info, warn, error)")
	f.String("counting-policy", string(logic.PolicySlot), "capacity counting: slot or gate")
	f.String("broker", "tcp://localhost:1883", "MQTT broker address (empty to disable)")
	f.String("http", ":80", "HTTP API address (empty to disable)")
	f.String("logger-endpoint", "", "base URL of the time-in/time-out logging service (empty to disable)")

	for name, key := range flagKeys {
		_ = v.BindPFlag(key, f.Lookup(name))
	}
	return cmd
}

func run(cfg config.Config, printState bool) error {
	log := logger.New(cfg.LogLevel)
	defer func() { _ = log.Sync() }()

	reader, err := gpio.NewRealReader(cfg.GPIOPins())
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer reader.Close()

	if printState {
		s, err := reader.Read()
		if err != nil {
			return fmt.Errorf("read gpio: %w", err)
		}
		fmt.Println(formatSample(s))
		return nil
	}

	if err := actuator.Init(); err != nil {
		return fmt.Errorf("init pwm: %w", err)
	}
	entrance, err := actuator.NewServo(cfg.Pins.EntranceServo, log.Named("entrance"))
	if err != nil {
		return fmt.Errorf("entrance servo: %w", err)
	}
	defer entrance.Halt()
	exit, err := actuator.NewServo(cfg.Pins.ExitServo, log.Named("exit"))
	if err != nil {
		return fmt.Errorf("exit servo: %w", err)
	}
	defer exit.Halt()

	facility, err := logic.NewFacility(cfg.Facility(), entrance, exit)
	if err != nil {
		return fmt.Errorf("%w: %v", config.ErrInvalid, err)
	}

	tracker := status.NewTracker(time.Now(), statusConfig(cfg))
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}

	opts := control.Options{
		Reader:    reader,
		Facility:  facility,
		Tracker:   tracker,
		Network:   readNetworkInfo,
		Heartbeat: cfg.Heartbeat,
		Log:       log.Named("control"),
	}

	var sinks []notify.Sink
	if cfg.Logger.Endpoint != "" {
		sinks = append(sinks, notify.NewHTTPLogger(cfg.Logger.Endpoint, cfg.Logger.Timeout))
	}
	if cfg.MQTT.Broker != "" {
		publisher, err := mqtt.NewRealPublisher(cfg.MQTT.Broker, cfg.MQTT.ClientID, log.Named("mqtt"))
		if err != nil {
			return fmt.Errorf("init mqtt: %w", err)
		}
		defer publisher.Close()

		sinks = append(sinks, &mqtt.EventSink{
			Publisher: publisher,
			Status: func(event string) []byte {
				return status.FormatStatusEvent(tracker.Snapshot(), event, "")
			},
		})
		opts.System = publisher
		opts.MQTTStatus = publisher
	}

	dispatcher := notify.NewDispatcher(cfg.Logger.QueueSize, cfg.Logger.Timeout, log.Named("notify"), sinks...)
	ctx, cancel := context.WithCancel(context.Background())
	// loop.Run drains the dispatcher during shutdown, so nothing is queued
	// by the time this runs.
	defer cancel()
	go dispatcher.Run(ctx)
	opts.Events = dispatcher

	loop := control.New(opts)

	if cfg.HTTP.Addr != "" {
		gin.SetMode(gin.ReleaseMode)
		srv := web.New(cfg.HTTP.Addr, tracker, loop, web.Options{
			Capacity:          cfg.Capacity,
			ExposeGateSensors: cfg.HTTP.ExposeGateSensors,
			Log:               log.Named("http"),
		})
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Errorw("http_server_failed", "err", err)
			}
		}()
		defer func() {
			sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer scancel()
			_ = srv.Shutdown(sctx)
		}()
		log.Infow("http_listening", "addr", cfg.HTTP.Addr)
	}

	log.Infow("started",
		"capacity", cfg.Capacity,
		"policy", cfg.CountingPolicy,
		"poll", cfg.Poll,
		"heartbeat", cfg.Heartbeat,
		"broker", cfg.MQTT.Broker,
		"logger", cfg.Logger.Endpoint,
	)

	ticker := time.NewTicker(cfg.Poll)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return loop.Run(ticker.C, sigCh)
}

func statusConfig(cfg config.Config) status.Config {
	return status.Config{
		Capacity:        cfg.Capacity,
		Policy:          cfg.CountingPolicy,
		PollMs:          cfg.Poll.Milliseconds(),
		HeartbeatMs:     cfg.Heartbeat.Milliseconds(),
		EntranceGuard:   cfg.Entrance.Guard,
		ExitGuard:       cfg.Exit.Guard,
		EntranceDwellMs: cfg.Entrance.Dwell.Milliseconds(),
		ExitDwellMs:     cfg.Exit.Dwell.Milliseconds(),
		Broker:          cfg.MQTT.Broker,
		HTTPAddr:        cfg.HTTP.Addr,
		LoggerEndpoint:  cfg.Logger.Endpoint,
	}
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}

// formatSample renders one reading as "slots: 1 0 0 1 entrance: 0 exit: 0".
func formatSample(s gpio.Sample) string {
	levels := make([]string, len(s.Slots))
	for i, present := range s.Slots {
		levels[i] = logic.LevelOf(present).String()
	}
	return fmt.Sprintf("slots: %s entrance: %s exit: %s",
		strings.Join(levels, " "),
		logic.LevelOf(s.Entrance),
		logic.LevelOf(s.Exit),
	)
}
