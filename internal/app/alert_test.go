package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"

	"github.com/relabs-tech/posture_monitor/internal/posture"
)

func TestGPIONotifierPulses(t *testing.T) {
	pin := &gpiotest.Pin{N: "GPIO17", Num: 17, L: gpio.High}
	n, err := newGPIONotifier(pin, 20*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, gpio.Low, pin.Read())

	require.NoError(t, n.Notify(AlertEvent{Alert: posture.Alert{Tick: 12, Axis: posture.AxisY}}))
	assert.Equal(t, gpio.High, pin.Read())

	assert.Eventually(t, func() bool { return pin.Read() == gpio.Low },
		time.Second, 5*time.Millisecond)

	require.NoError(t, n.Notify(AlertEvent{}))
	require.NoError(t, n.Close())
	assert.Equal(t, gpio.Low, pin.Read())
}

func TestMQTTNotifierPayload(t *testing.T) {
	pub := &memPublisher{}
	n := mqttNotifier{pub: pub, topic: "posture/alert"}
	e := AlertEvent{
		SessionID: "abc",
		Time:      time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Alert:     posture.Alert{Tick: 42, Axis: posture.AxisX, Delta: [2]float64{7, 1}},
	}
	require.NoError(t, n.Notify(e))
	require.Len(t, pub.messages["posture/alert"], 1)
	assert.JSONEq(t,
		`{"session_id":"abc","time":"2026-01-02T03:04:05Z","tick":42,"axis":"x","delta":[7,1]}`,
		string(pub.messages["posture/alert"][0]))
}
