// Package config holds the controller configuration: defaults, loading
// through viper and validation.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/sweeney/parking-controller/internal/gpio"
	"github.com/sweeney/parking-controller/internal/logic"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// EnvPrefix is the environment variable prefix, e.g. PARKING_CAPACITY.
const EnvPrefix = "PARKING"

// Config is the complete controller configuration.
type Config struct {
	Capacity       int           `mapstructure:"capacity"`
	Poll           time.Duration `mapstructure:"poll"`
	Heartbeat      time.Duration `mapstructure:"heartbeat"`
	LogLevel       string        `mapstructure:"log_level"`
	CountingPolicy string        `mapstructure:"counting_policy"`
	Entrance       Gate          `mapstructure:"entrance"`
	Exit           Gate          `mapstructure:"exit"`
	Pins           Pins          `mapstructure:"pins"`
	Logger         Logger        `mapstructure:"logger"`
	MQTT           MQTT          `mapstructure:"mqtt"`
	HTTP           HTTP          `mapstructure:"http"`
}

// Gate configures one gate.
type Gate struct {
	Dwell       time.Duration `mapstructure:"dwell"`
	OpenAngle   int           `mapstructure:"open_angle"`
	ClosedAngle int           `mapstructure:"closed_angle"`
	Guard       string        `mapstructure:"guard"`
}

// Pins maps sensors and servos to hardware.
type Pins struct {
	Chip          string `mapstructure:"chip"`
	Slots         []int  `mapstructure:"slots"`
	Entrance      int    `mapstructure:"entrance"`
	Exit          int    `mapstructure:"exit"`
	EntranceServo string `mapstructure:"entrance_servo"`
	ExitServo     string `mapstructure:"exit_servo"`
}

// Logger configures the external time-in/time-out logging service.
// An empty endpoint disables it.
type Logger struct {
	Endpoint  string        `mapstructure:"endpoint"`
	Timeout   time.Duration `mapstructure:"timeout"`
	QueueSize int           `mapstructure:"queue_size"`
}

// MQTT configures the broker connection. An empty broker disables publishing.
type MQTT struct {
	Broker   string `mapstructure:"broker"`
	ClientID string `mapstructure:"client_id"`
}

// HTTP configures the API server. An empty addr disables it.
type HTTP struct {
	Addr              string `mapstructure:"addr"`
	ExposeGateSensors bool   `mapstructure:"expose_gate_sensors"`
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("capacity", 4)
	v.SetDefault("poll", 50*time.Millisecond)
	v.SetDefault("heartbeat", 15*time.Minute)
	v.SetDefault("log_level", "info")
	v.SetDefault("counting_policy", string(logic.PolicySlot))

	v.SetDefault("entrance.dwell", 3*time.Second)
	v.SetDefault("entrance.open_angle", 150)
	v.SetDefault("entrance.closed_angle", 0)
	v.SetDefault("entrance.guard", string(logic.GuardCapacity))
	v.SetDefault("exit.dwell", 3*time.Second)
	v.SetDefault("exit.open_angle", 150)
	v.SetDefault("exit.closed_angle", 0)
	v.SetDefault("exit.guard", string(logic.GuardNone))

	v.SetDefault("pins.chip", gpio.DefaultPins.Chip)
	v.SetDefault("pins.slots", gpio.DefaultPins.Slots)
	v.SetDefault("pins.entrance", gpio.DefaultPins.Entrance)
	v.SetDefault("pins.exit", gpio.DefaultPins.Exit)
	v.SetDefault("pins.entrance_servo", "GPIO12")
	v.SetDefault("pins.exit_servo", "GPIO18")

	v.SetDefault("logger.endpoint", "")
	v.SetDefault("logger.timeout", 2*time.Second)
	v.SetDefault("logger.queue_size", 64)

	v.SetDefault("mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("mqtt.client_id", "parking-controller")

	v.SetDefault("http.addr", ":80")
	v.SetDefault("http.expose_gate_sensors", true)
}

// Load reads the optional config file, applies environment overrides and
// decodes the result. Flags must already be bound to v.
func Load(v *viper.Viper, file string) (Config, error) {
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", file, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations the control loop cannot run with.
func (c Config) Validate() error {
	if c.Capacity <= 0 {
		return fmt.Errorf("%w: capacity must be positive, got %d", ErrInvalid, c.Capacity)
	}
	if len(c.Pins.Slots) != c.Capacity {
		return fmt.Errorf("%w: %d slot pins for capacity %d", ErrInvalid, len(c.Pins.Slots), c.Capacity)
	}
	if c.Poll <= 0 {
		return fmt.Errorf("%w: poll must be positive, got %v", ErrInvalid, c.Poll)
	}
	if c.Heartbeat < 0 {
		return fmt.Errorf("%w: heartbeat must not be negative, got %v", ErrInvalid, c.Heartbeat)
	}
	if _, err := logic.ParsePolicy(c.CountingPolicy); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if err := c.Entrance.validate("entrance"); err != nil {
		return err
	}
	if err := c.Exit.validate("exit"); err != nil {
		return err
	}
	if c.Logger.Timeout <= 0 {
		return fmt.Errorf("%w: logger.timeout must be positive, got %v", ErrInvalid, c.Logger.Timeout)
	}
	if c.Logger.QueueSize <= 0 {
		return fmt.Errorf("%w: logger.queue_size must be positive, got %d", ErrInvalid, c.Logger.QueueSize)
	}
	return nil
}

func (g Gate) validate(name string) error {
	if g.Dwell <= 0 {
		return fmt.Errorf("%w: %s.dwell must be positive, got %v", ErrInvalid, name, g.Dwell)
	}
	if g.OpenAngle < 0 || g.OpenAngle > 180 {
		return fmt.Errorf("%w: %s.open_angle %d outside 0..180", ErrInvalid, name, g.OpenAngle)
	}
	if g.ClosedAngle < 0 || g.ClosedAngle > 180 {
		return fmt.Errorf("%w: %s.closed_angle %d outside 0..180", ErrInvalid, name, g.ClosedAngle)
	}
	if _, err := logic.ParseGuardMode(g.Guard); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalid, name, err)
	}
	return nil
}

// Facility converts the configuration into the control logic's form.
func (c Config) Facility() logic.Config {
	return logic.Config{
		Capacity:      c.Capacity,
		Policy:        logic.Policy(c.CountingPolicy),
		Entrance:      c.Entrance.gateConfig(logic.Entrance),
		Exit:          c.Exit.gateConfig(logic.Exit),
		EntranceGuard: logic.GuardMode(c.Entrance.Guard),
		ExitGuard:     logic.GuardMode(c.Exit.Guard),
	}
}

func (g Gate) gateConfig(id logic.GateID) logic.GateConfig {
	return logic.GateConfig{
		ID:          id,
		Dwell:       g.Dwell,
		OpenAngle:   g.OpenAngle,
		ClosedAngle: g.ClosedAngle,
	}
}

// GPIOPins returns the sensor pin layout.
func (c Config) GPIOPins() gpio.Pins {
	return gpio.Pins{
		Chip:     c.Pins.Chip,
		Slots:    append([]int(nil), c.Pins.Slots...),
		Entrance: c.Pins.Entrance,
		Exit:     c.Pins.Exit,
	}
}
