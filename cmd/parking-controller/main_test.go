package main

import (
	"errors"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/sweeney/parking-controller/internal/config"
	"github.com/sweeney/parking-controller/internal/gpio"
)

// TestEnvVarNames verifies the env var constants match what pi-helper writes
// to /run/pi-helper.env. If pi-helper changes its var names, this test fails
// and we update the constants, not the other way around.
func TestEnvVarNames(t *testing.T) {
	want := map[string]string{
		"NETWORK_TYPE":        envNetworkType,
		"NETWORK_IP":          envNetworkIP,
		"NETWORK_STATUS":      envNetworkStatus,
		"NETWORK_GATEWAY":     envNetworkGateway,
		"NETWORK_WIFI_STATUS": envNetworkWifiStatus,
		"NETWORK_WIFI_SSID":   envNetworkWifiSSID,
	}
	for canonical, got := range want {
		if got != canonical {
			t.Errorf("env var constant: got %q, want %q", got, canonical)
		}
	}
}

func TestReadNetworkInfoAllSet(t *testing.T) {
	t.Setenv(envNetworkType, "ap")
	t.Setenv(envNetworkIP, "192.168.4.1")
	t.Setenv(envNetworkStatus, "up")
	t.Setenv(envNetworkGateway, "192.168.4.1")
	t.Setenv(envNetworkWifiStatus, "hosting")
	t.Setenv(envNetworkWifiSSID, "parking")

	info := readNetworkInfo()
	if info == nil {
		t.Fatal("expected non-nil NetworkInfo")
	}
	if info.Type != "ap" || info.IP != "192.168.4.1" || info.Status != "up" {
		t.Errorf("unexpected info: %+v", info)
	}
	if info.Gateway != "192.168.4.1" || info.WifiStatus != "hosting" || info.SSID != "parking" {
		t.Errorf("unexpected info: %+v", info)
	}
}

func TestReadNetworkInfoNoneSet(t *testing.T) {
	t.Setenv(envNetworkStatus, "")
	if info := readNetworkInfo(); info != nil {
		t.Errorf("expected nil when NETWORK_STATUS is unset, got %+v", info)
	}
}

func TestFormatSample(t *testing.T) {
	got := formatSample(gpio.Sample{Slots: []bool{true, false, false, true}, Entrance: false, Exit: true})
	want := "slots: 1 0 0 1 entrance: 0 exit: 1"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

// execute runs the root command with a capturing runner.
func execute(t *testing.T, args ...string) (config.Config, bool, error) {
	t.Helper()
	var (
		gotCfg   config.Config
		gotPrint bool
	)
	cmd := newRootCmd(viper.New(), func(cfg config.Config, printState bool) error {
		gotCfg = cfg
		gotPrint = printState
		return nil
	})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return gotCfg, gotPrint, err
}

func TestRootCmdDefaults(t *testing.T) {
	cfg, printState, err := execute(t)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if printState {
		t.Error("print-state should default to false")
	}
	if cfg.Capacity != 4 || cfg.Poll != 50*time.Millisecond {
		t.Errorf("defaults: capacity=%d poll=%v", cfg.Capacity, cfg.Poll)
	}
	if cfg.HTTP.Addr != ":80" || cfg.MQTT.Broker != "tcp://localhost:1883" {
		t.Errorf("defaults: http=%q broker=%q", cfg.HTTP.Addr, cfg.MQTT.Broker)
	}
}

func TestRootCmdFlagsOverride(t *testing.T) {
	cfg, printState, err := execute(t,
		"--print-state",
		"--poll", "20ms",
		"--heartbeat", "0",
		"--counting-policy", "gate",
		"--broker", "",
		"--http", ":8080",
		"--logger-endpoint", "http://logger.local",
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !printState {
		t.Error("expected print-state")
	}
	if cfg.Poll != 20*time.Millisecond || cfg.Heartbeat != 0 {
		t.Errorf("poll=%v heartbeat=%v", cfg.Poll, cfg.Heartbeat)
	}
	if cfg.CountingPolicy != "gate" {
		t.Errorf("policy: got %q", cfg.CountingPolicy)
	}
	if cfg.MQTT.Broker != "" {
		t.Errorf("broker should be disabled, got %q", cfg.MQTT.Broker)
	}
	if cfg.HTTP.Addr != ":8080" || cfg.Logger.Endpoint != "http://logger.local" {
		t.Errorf("http=%q logger=%q", cfg.HTTP.Addr, cfg.Logger.Endpoint)
	}
}

func TestRootCmdRejectsInvalidConfig(t *testing.T) {
	// capacity 2 does not match the four default slot pins
	_, _, err := execute(t, "--capacity", "2")
	if !errors.Is(err, config.ErrInvalid) {
		t.Errorf("expected ErrInvalid, got %v", err)
	}
}

func TestStatusConfig(t *testing.T) {
	cfg, _, err := execute(t, "--heartbeat", "1m")
	if err != nil {
		t.Fatal(err)
	}
	sc := statusConfig(cfg)
	if sc.HeartbeatMs != 60000 || sc.PollMs != 50 || sc.EntranceDwellMs != 3000 {
		t.Errorf("status config: %+v", sc)
	}
	if sc.EntranceGuard != "capacity" || sc.ExitGuard != "none" {
		t.Errorf("guards: %+v", sc)
	}
}
