package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds everything the agent needs at startup.
type Config struct {
	// APIToken authenticates every request to the collector. Required.
	APIToken string `yaml:"api_token"`
	// CollectorURL is the base URL of the remote collector.
	CollectorURL string `yaml:"collector_url"`
	// HTTPTimeout bounds each collector request.
	HTTPTimeout time.Duration `yaml:"http_timeout"`

	DoorAlert   HourWindow `yaml:"door_alert"`
	MotionAlert HourWindow `yaml:"motion_alert"`

	// MotionRearm is the minimum gap between motion alerts.
	MotionRearm time.Duration `yaml:"motion_rearm"`
	// Debounce is the quiet window between accepted transitions on a pin.
	Debounce time.Duration `yaml:"debounce"`

	GPIO GPIOConfig `yaml:"gpio"`

	// TempSensorID is the DS18B20 1-wire device id.
	TempSensorID string `yaml:"temp_sensor_id"`
	// W1DevicesDir is where the kernel exposes 1-wire devices.
	W1DevicesDir string `yaml:"w1_devices_dir"`

	Schedule ScheduleConfig `yaml:"schedule"`

	// MQTTBroker mirrors events to a local broker; empty disables.
	MQTTBroker string `yaml:"mqtt_broker"`
	// HTTPAddr serves the status endpoint; empty disables.
	HTTPAddr string `yaml:"http_addr"`
	// TimeZone is the IANA zone used for alert hours and message times.
	TimeZone string `yaml:"time_zone"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`

	location *time.Location
}

// HourWindow is the alert hour pair for one category.
type HourWindow struct {
	Min int `yaml:"min"`
	Max int `yaml:"max"`
}

// GPIOConfig selects the chip and BCM lines.
type GPIOConfig struct {
	Chip      string `yaml:"chip"`
	DoorPin   int    `yaml:"door_pin"`
	MotionPin int    `yaml:"motion_pin"`
}

// ScheduleConfig holds the cron cadences of the periodic jobs.
type ScheduleConfig struct {
	UploadDoor     string        `yaml:"upload_door"`
	UploadTemp     string        `yaml:"upload_temp"`
	DoorAlertCheck string        `yaml:"door_alert_check"`
	Heartbeat      time.Duration `yaml:"heartbeat"`
}

// Environment variable names.
const (
	EnvAPIToken       = "API_TOKEN"
	EnvCollectorURL   = "COLLECTOR_URL"
	EnvHTTPTimeout    = "HTTP_TIMEOUT"
	EnvDoorHourMin    = "DOOR_OPEN_ALERT_HOUR_MIN"
	EnvDoorHourMax    = "DOOR_OPEN_ALERT_HOUR_MAX"
	EnvMotionHourMin  = "MOTION_ALERT_HOUR_MIN"
	EnvMotionHourMax  = "MOTION_ALERT_HOUR_MAX"
	EnvMotionRearmSec = "MOTION_REARM_SEC"
	EnvDebounceMs     = "DEBOUNCE_MS"
	EnvGPIOChip       = "GPIO_CHIP"
	EnvSwitchPin      = "SWITCH_PIN"
	EnvMotionPin      = "MOTION_SENSOR_PIN"
	EnvTempSensorID   = "TEMP_SENSOR_ID"
	EnvW1DevicesDir   = "W1_DEVICES_DIR"
	EnvCronUploadDoor = "CRON_UPLOAD_DOOR"
	EnvCronUploadTemp = "CRON_UPLOAD_TEMP"
	EnvCronDoorAlert  = "CRON_DOOR_ALERT_CHECK"
	EnvHeartbeat      = "HEARTBEAT"
	EnvMQTTBroker     = "MQTT_BROKER"
	EnvHTTPAddr       = "HTTP_ADDR"
	EnvTimeZone       = "TIME_ZONE"
	EnvLogLevel       = "LOG_LEVEL"
)

// Defaults.
const (
	DefaultCollectorURL   = "http://garage-monitor.herokuapp.com"
	DefaultHTTPTimeout    = 10 * time.Second
	DefaultAlertHourMin   = 5  // 5am
	DefaultAlertHourMax   = 19 // 7pm
	DefaultMotionRearm    = 60 * time.Second
	DefaultDebounce       = time.Second
	DefaultTempSensorID   = "28-01157173a0ff"
	DefaultW1DevicesDir   = "/sys/bus/w1/devices"
	DefaultCronUploadDoor = "0 */30 * * * *"       // every 30 minutes
	DefaultCronUploadTemp = "0 1 * * * *"          // :01 of every hour
	DefaultCronDoorAlert  = "*/15 0-5,19-23 * * *" // every 15 minutes outside the middle of the day
	DefaultHeartbeat      = 15 * time.Minute
	DefaultEnvFile        = ".env"
)

var (
	// ErrAPITokenRequired is returned when no API token is configured.
	ErrAPITokenRequired = errors.New("API_TOKEN is not set")
	// ErrInvalidHour is returned for an alert hour outside 0..23.
	ErrInvalidHour = errors.New("alert hour must be between 0 and 23")
)

// Default returns a Config populated with defaults.
func Default() *Config {
	return &Config{
		CollectorURL: DefaultCollectorURL,
		HTTPTimeout:  DefaultHTTPTimeout,
		DoorAlert:    HourWindow{Min: DefaultAlertHourMin, Max: DefaultAlertHourMax},
		MotionAlert:  HourWindow{Min: DefaultAlertHourMin, Max: DefaultAlertHourMax},
		MotionRearm:  DefaultMotionRearm,
		Debounce:     DefaultDebounce,
		GPIO: GPIOConfig{
			Chip:      "gpiochip0",
			DoorPin:   5,
			MotionPin: 6,
		},
		TempSensorID: DefaultTempSensorID,
		W1DevicesDir: DefaultW1DevicesDir,
		Schedule: ScheduleConfig{
			UploadDoor:     DefaultCronUploadDoor,
			UploadTemp:     DefaultCronUploadTemp,
			DoorAlertCheck: DefaultCronDoorAlert,
			Heartbeat:      DefaultHeartbeat,
		},
		TimeZone: "Local",
		LogLevel: "info",
	}
}

// Load builds the configuration. path may be empty to skip the YAML file.
// A missing .env file is ignored; variables already set in the environment
// take precedence over it.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(filepath.Clean(path))
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	if err := godotenv.Load(DefaultEnvFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", DefaultEnvFile, err)
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func applyEnv(cfg *Config) error {
	var errs []error

	str := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		v := os.Getenv(key)
		if v == "" {
			return
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = n
	}
	dur := func(key string, unit time.Duration, dst *time.Duration) {
		v := os.Getenv(key)
		if v == "" {
			return
		}
		d, err := parseDuration(v, unit)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = d
	}

	str(EnvAPIToken, &cfg.APIToken)
	str(EnvCollectorURL, &cfg.CollectorURL)
	dur(EnvHTTPTimeout, time.Second, &cfg.HTTPTimeout)
	num(EnvDoorHourMin, &cfg.DoorAlert.Min)
	num(EnvDoorHourMax, &cfg.DoorAlert.Max)
	num(EnvMotionHourMin, &cfg.MotionAlert.Min)
	num(EnvMotionHourMax, &cfg.MotionAlert.Max)
	dur(EnvMotionRearmSec, time.Second, &cfg.MotionRearm)
	dur(EnvDebounceMs, time.Millisecond, &cfg.Debounce)
	str(EnvGPIOChip, &cfg.GPIO.Chip)
	num(EnvSwitchPin, &cfg.GPIO.DoorPin)
	num(EnvMotionPin, &cfg.GPIO.MotionPin)
	str(EnvTempSensorID, &cfg.TempSensorID)
	str(EnvW1DevicesDir, &cfg.W1DevicesDir)
	str(EnvCronUploadDoor, &cfg.Schedule.UploadDoor)
	str(EnvCronUploadTemp, &cfg.Schedule.UploadTemp)
	str(EnvCronDoorAlert, &cfg.Schedule.DoorAlertCheck)
	dur(EnvHeartbeat, time.Second, &cfg.Schedule.Heartbeat)
	str(EnvMQTTBroker, &cfg.MQTTBroker)
	str(EnvHTTPAddr, &cfg.HTTPAddr)
	str(EnvTimeZone, &cfg.TimeZone)
	str(EnvLogLevel, &cfg.LogLevel)

	return errors.Join(errs...)
}

// parseDuration accepts either a Go duration ("90s") or a bare number in unit.
func parseDuration(v string, unit time.Duration) (time.Duration, error) {
	v = strings.TrimSpace(v)
	if n, err := strconv.ParseInt(v, 10, 64); err == nil {
		return time.Duration(n) * unit, nil
	}
	return time.ParseDuration(v)
}

// Validate checks required fields and ranges and resolves the time zone.
func (c *Config) Validate() error {
	var errs []error

	if c.APIToken == "" {
		errs = append(errs, ErrAPITokenRequired)
	}

	for name, h := range map[string]int{
		"door_alert.min":   c.DoorAlert.Min,
		"door_alert.max":   c.DoorAlert.Max,
		"motion_alert.min": c.MotionAlert.Min,
		"motion_alert.max": c.MotionAlert.Max,
	} {
		if h < 0 || h > 23 {
			errs = append(errs, fmt.Errorf("%s=%d: %w", name, h, ErrInvalidHour))
		}
	}

	if c.Debounce <= 0 {
		errs = append(errs, errors.New("debounce must be positive"))
	}
	if c.MotionRearm <= 0 {
		errs = append(errs, errors.New("motion rearm must be positive"))
	}
	if c.HTTPTimeout <= 0 {
		errs = append(errs, errors.New("http timeout must be positive"))
	}
	if c.Schedule.Heartbeat < 0 {
		errs = append(errs, errors.New("heartbeat must not be negative"))
	}
	if c.GPIO.DoorPin < 0 || c.GPIO.MotionPin < 0 {
		errs = append(errs, errors.New("gpio pins must not be negative"))
	} else if c.GPIO.DoorPin == c.GPIO.MotionPin {
		errs = append(errs, errors.New("door and motion pins must differ"))
	}

	if u, err := url.ParseRequestURI(c.CollectorURL); err != nil {
		errs = append(errs, fmt.Errorf("invalid collector URL: %w", err))
	} else if u.Scheme != "http" && u.Scheme != "https" {
		errs = append(errs, fmt.Errorf("invalid collector URL scheme %q", u.Scheme))
	}

	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		errs = append(errs, fmt.Errorf("time zone: %w", err))
	}
	c.location = loc

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

// Location returns the resolved time zone. Only valid after Validate.
func (c *Config) Location() *time.Location {
	if c.location == nil {
		return time.Local
	}
	return c.location
}
