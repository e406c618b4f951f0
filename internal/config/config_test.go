package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "posture_config.txt")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
# broker
MQTT_BROKER = tcp://broker:1883
SERIAL_PORT=/dev/ttyUSB0
CALIBRATION_WINDOW=50
DEVIATION_THRESHOLD=7.5
STRICT_ROTATION_SPREAD=true
WARMUP_TICKS=0
ALERT_GPIO_PIN=GPIO17
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "tcp://broker:1883", cfg.MQTTBroker)
	assert.Equal(t, "/dev/ttyUSB0", cfg.SerialPort)
	assert.Equal(t, 50, cfg.CalibrationWindow)
	assert.Equal(t, 7.5, cfg.DeviationThreshold)
	assert.True(t, cfg.StrictRotationSpread)
	assert.Equal(t, "GPIO17", cfg.AlertGPIOPin)

	// untouched keys keep their defaults
	assert.Equal(t, 25, cfg.BaselineWindow)
	assert.Equal(t, 115200, cfg.SerialBaudRate)
	assert.Equal(t, "posture/report", cfg.TopicReport)

	sc := cfg.SessionConfig()
	assert.Equal(t, 50, sc.CalibrationWindow)
	assert.Equal(t, 7.5, sc.Threshold)
	assert.Equal(t, 0, sc.WarmupTicks)
	assert.Equal(t, 150, sc.TripTickCeiling)
	assert.Equal(t, 30, sc.TripBadCeiling)
	assert.True(t, sc.StrictRotationSpread)
}

func TestDefaultSessionConfig(t *testing.T) {
	sc := Default().SessionConfig()
	assert.Equal(t, 25, sc.CalibrationWindow)
	assert.Equal(t, 10, sc.HysteresisSize)
	assert.Equal(t, 5.0, sc.Threshold)
	assert.Equal(t, 100, sc.WarmupTicks)
	assert.Equal(t, 5.0, sc.SampleRate)
	assert.Equal(t, 1.0, sc.Kp)
	assert.Equal(t, 0.3, sc.Ki)
	assert.False(t, sc.StrictRotationSpread)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unknown key", "NOPE=1"},
		{"missing equals", "MQTT_BROKER"},
		{"not a number", "CALIBRATION_WINDOW=abc"},
		{"zero window", "HYSTERESIS_SIZE=0"},
		{"negative warmup", "WARMUP_TICKS=-1"},
		{"bad bool", "STRICT_ROTATION_SPREAD=maybe"},
		{"port range", "WEB_SERVER_PORT=70000"},
		{"empty broker", "MQTT_BROKER="},
		{"two sources", "SERIAL_PORT=/dev/ttyUSB0\nREPLAY_FILE=walk.csv"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}
