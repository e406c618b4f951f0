package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/relabs-tech/posture_monitor/internal/session"
)

// Config holds all application configuration values.
type Config struct {
	// MQTT
	MQTTBroker          string
	MQTTClientIDMonitor string
	MQTTClientIDConsole string
	MQTTClientIDWeb     string
	MQTTClientIDDisplay string

	// Topics
	TopicReport string
	TopicAlert  string

	// Acquisition. With neither a serial port nor a replay file the
	// monitor runs on synthetic frames.
	SerialPort     string
	SerialBaudRate int
	ReplayFile     string
	ReplayInterval int // milliseconds between replayed frames, 0 = as fast as possible
	RecordFile     string

	// Session tuning
	CalibrationWindow        int
	BaselineWindow           int
	HysteresisSize           int
	DeviationThreshold       float64 // degrees
	RecalibrationTickCeiling int
	RecalibrationBadCeiling  int
	WarmupTicks              int
	FusionSampleRate         float64 // Hz
	FusionKp                 float64
	FusionKi                 float64
	GyroScale                float64
	StrictRotationSpread     bool

	// Alert actuator
	AlertGPIOPin string // empty disables the GPIO notifier
	AlertPulseMS int

	// Web Server
	WebServerPort int

	// Display
	DisplayUpdateInterval int // milliseconds
}

var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Default returns a configuration with the stock tuning. A config file only
// needs to override what differs.
func Default() *Config {
	sc := session.DefaultConfig()
	return &Config{
		MQTTBroker:          "tcp://localhost:1883",
		MQTTClientIDMonitor: "posture-monitor",
		MQTTClientIDConsole: "posture-console",
		MQTTClientIDWeb:     "posture-web",
		MQTTClientIDDisplay: "posture-display",

		TopicReport: "posture/report",
		TopicAlert:  "posture/alert",

		SerialBaudRate: 115200,

		CalibrationWindow:        sc.CalibrationWindow,
		BaselineWindow:           sc.BaselineWindow,
		HysteresisSize:           sc.HysteresisSize,
		DeviationThreshold:       sc.Threshold,
		RecalibrationTickCeiling: sc.TripTickCeiling,
		RecalibrationBadCeiling:  sc.TripBadCeiling,
		WarmupTicks:              sc.WarmupTicks,
		FusionSampleRate:         sc.SampleRate,
		FusionKp:                 sc.Kp,
		FusionKi:                 sc.Ki,
		GyroScale:                sc.GyroScale,

		AlertPulseMS: 300,

		WebServerPort: 8080,

		DisplayUpdateInterval: 500,
	}
}

// Load reads the configuration file on top of Default.
func Load(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	cfg := Default()
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse KEY=VALUE
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid config line %d: %q", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if err := cfg.setValue(key, value); err != nil {
			return nil, fmt.Errorf("config line %d: %w", lineNum, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// positiveInt parses value and requires it to be > 0.
func positiveInt(key, value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %d", key, n)
	}
	return n, nil
}

func nonNegativeInt(key, value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	if n < 0 {
		return 0, fmt.Errorf("%s must not be negative, got %d", key, n)
	}
	return n, nil
}

func positiveFloat(key, value string) (float64, error) {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	if f <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %v", key, f)
	}
	return f, nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	var err error
	switch key {
	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID_MONITOR":
		c.MQTTClientIDMonitor = value
	case "MQTT_CLIENT_ID_CONSOLE":
		c.MQTTClientIDConsole = value
	case "MQTT_CLIENT_ID_WEB":
		c.MQTTClientIDWeb = value
	case "MQTT_CLIENT_ID_DISPLAY":
		c.MQTTClientIDDisplay = value

	// Topics
	case "TOPIC_REPORT":
		c.TopicReport = value
	case "TOPIC_ALERT":
		c.TopicAlert = value

	// Acquisition
	case "SERIAL_PORT":
		c.SerialPort = value
	case "SERIAL_BAUD_RATE":
		c.SerialBaudRate, err = positiveInt(key, value)
	case "REPLAY_FILE":
		c.ReplayFile = value
	case "REPLAY_INTERVAL":
		c.ReplayInterval, err = nonNegativeInt(key, value)
	case "RECORD_FILE":
		c.RecordFile = value

	// Session tuning
	case "CALIBRATION_WINDOW":
		c.CalibrationWindow, err = positiveInt(key, value)
	case "BASELINE_WINDOW":
		c.BaselineWindow, err = positiveInt(key, value)
	case "HYSTERESIS_SIZE":
		c.HysteresisSize, err = positiveInt(key, value)
	case "DEVIATION_THRESHOLD":
		c.DeviationThreshold, err = positiveFloat(key, value)
	case "RECALIBRATION_TICK_CEILING":
		c.RecalibrationTickCeiling, err = positiveInt(key, value)
	case "RECALIBRATION_BAD_CEILING":
		c.RecalibrationBadCeiling, err = positiveInt(key, value)
	case "WARMUP_TICKS":
		c.WarmupTicks, err = nonNegativeInt(key, value)
	case "FUSION_SAMPLE_RATE":
		c.FusionSampleRate, err = positiveFloat(key, value)
	case "FUSION_KP":
		c.FusionKp, err = strconv.ParseFloat(value, 64)
	case "FUSION_KI":
		c.FusionKi, err = strconv.ParseFloat(value, 64)
	case "GYRO_SCALE":
		c.GyroScale, err = positiveFloat(key, value)
	case "STRICT_ROTATION_SPREAD":
		c.StrictRotationSpread, err = strconv.ParseBool(value)

	// Alert actuator
	case "ALERT_GPIO_PIN":
		c.AlertGPIOPin = value
	case "ALERT_PULSE_MS":
		c.AlertPulseMS, err = positiveInt(key, value)

	// Web Server
	case "WEB_SERVER_PORT":
		port, perr := strconv.Atoi(value)
		if perr != nil {
			return fmt.Errorf("invalid WEB_SERVER_PORT %q: %w", value, perr)
		}
		if port <= 0 || port > 65535 {
			return fmt.Errorf("WEB_SERVER_PORT must be 1-65535, got %d", port)
		}
		c.WebServerPort = port

	// Display
	case "DISPLAY_UPDATE_INTERVAL":
		c.DisplayUpdateInterval, err = positiveInt(key, value)

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	return nil
}

// validate checks that all required fields are set.
func (c *Config) validate() error {
	if c.MQTTBroker == "" {
		return fmt.Errorf("MQTT_BROKER is required")
	}
	if c.TopicReport == "" {
		return fmt.Errorf("TOPIC_REPORT is required")
	}
	if c.TopicAlert == "" {
		return fmt.Errorf("TOPIC_ALERT is required")
	}
	if c.SerialPort != "" && c.ReplayFile != "" {
		return fmt.Errorf("SERIAL_PORT and REPLAY_FILE are mutually exclusive")
	}
	if c.FusionKp < 0 || c.FusionKi < 0 {
		return fmt.Errorf("FUSION_KP and FUSION_KI must not be negative")
	}
	return nil
}

// SessionConfig maps the tuning keys onto a session configuration.
func (c *Config) SessionConfig() session.Config {
	return session.Config{
		CalibrationWindow:    c.CalibrationWindow,
		BaselineWindow:       c.BaselineWindow,
		HysteresisSize:       c.HysteresisSize,
		Threshold:            c.DeviationThreshold,
		TripTickCeiling:      c.RecalibrationTickCeiling,
		TripBadCeiling:       c.RecalibrationBadCeiling,
		WarmupTicks:          c.WarmupTicks,
		SampleRate:           c.FusionSampleRate,
		Kp:                   c.FusionKp,
		Ki:                   c.FusionKi,
		GyroScale:            c.GyroScale,
		StrictRotationSpread: c.StrictRotationSpread,
	}
}

// InitGlobal initializes the global configuration from file.
// Only the first call loads; later calls return nil without reloading.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration instance.
// InitGlobal must be called first, or this will return nil.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
