package posture

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/posture_monitor/internal/imu"
)

func TestSteady(t *testing.T) {
	assert.True(t, Steady(Angles{3, 2}, Angles{1, 4}))
	assert.False(t, Steady(Angles{6, 2}, Angles{1, 4}))
	assert.True(t, Steady(Angles{-5, 5}, Angles{5, -5}))
	assert.False(t, Steady(Angles{0, 0}, Angles{0, -5.1}))
}

func TestSideTilt(t *testing.T) {
	assert.True(t, SideTilt(Angles{20, 0}, Angles{0, 0}))
	assert.False(t, SideTilt(Angles{5, 0}, Angles{5, 0}))
	assert.True(t, SideTilt(Angles{0, 0}, Angles{-12, 0}))
	assert.False(t, SideTilt(Angles{30, 0}, Angles{10, 0}), "bounds are exclusive")
}

func TestForwardTilt(t *testing.T) {
	tests := []struct {
		name   string
		o1, o2 Angles
		want   bool
	}{
		{"upper leans lower upright", Angles{0, 15}, Angles{0, 3}, true},
		{"negative pitch", Angles{0, -20}, Angles{0, -6}, true},
		{"lower too far", Angles{0, 15}, Angles{0, 8}, false},
		{"seated", Angles{0, 12}, Angles{0, 27}, true},
		{"seated upper too far", Angles{0, 16}, Angles{0, 27}, false},
		{"upright", Angles{0, 2}, Angles{0, 1}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ForwardTilt(tt.o1, tt.o2))
		})
	}
}

func TestForwardRotationSelfComparison(t *testing.T) {
	// a 25° spread still passes because the upper pitch is compared with itself
	assert.True(t, ForwardRotation(Angles{0, 40}, Angles{0, 65}))
	assert.False(t, ForwardRotation(Angles{0, 40}, Angles{0, 75}))
	assert.False(t, ForwardRotation(Angles{0, 20}, Angles{0, 40}))

	c := NewClassifier()
	c.StrictRotationSpread = true
	res := c.Classify(Angles{0, 40}, Angles{0, 65})
	assert.NotEqual(t, ModeForwardRotation, res.Mode)
	res = c.Classify(Angles{0, 40}, Angles{0, 50})
	assert.Equal(t, ModeForwardRotation, res.Mode)
}

func TestClassifyCascade(t *testing.T) {
	c := NewClassifier()

	res := c.Classify(Angles{3, 2}, Angles{1, 4})
	assert.Equal(t, Classification{Steady: true}, res)

	res = c.Classify(Angles{6, 2}, Angles{1, 4})
	assert.False(t, res.Steady)
	assert.Equal(t, ModeNone, res.Mode)

	// rotation outranks side tilt
	res = c.Classify(Angles{20, 40}, Angles{0, 50})
	assert.Equal(t, ModeForwardRotation, res.Mode)

	// forward tilt outranks side tilt
	res = c.Classify(Angles{20, 15}, Angles{0, 3})
	assert.Equal(t, ModeForwardTilt, res.Mode)

	res = c.Classify(Angles{20, 0}, Angles{0, 0})
	assert.Equal(t, ModeSideTilt, res.Mode)

	assert.Equal(t, 5, c.Iterations())
	assert.Equal(t, map[Mode]int{
		ModeSteady:          1,
		ModeForwardRotation: 1,
		ModeForwardTilt:     1,
		ModeSideTilt:        1,
	}, c.Tallies())
}

func TestTalliesIsACopy(t *testing.T) {
	c := NewClassifier()
	c.Classify(Angles{}, Angles{})
	tallies := c.Tallies()
	tallies[ModeSteady] = 100
	assert.Equal(t, 1, c.Tallies()[ModeSteady])
}

func TestClassifyTrackers(t *testing.T) {
	c := NewClassifier()
	upper := &fakeTracker{dev: imu.Vector3{X: 20, Z: 99}, ok: true}
	lower := &fakeTracker{}

	_, err := c.ClassifyTrackers(upper, lower)
	assert.ErrorIs(t, err, ErrBaselineUnavailable)
	assert.Equal(t, 0, c.Iterations())

	lower.ok = true
	res, err := c.ClassifyTrackers(upper, lower)
	require.NoError(t, err)
	assert.Equal(t, ModeSideTilt, res.Mode)
}

func TestModeJSON(t *testing.T) {
	b, err := json.Marshal(map[Mode]int{ModeSideTilt: 2})
	require.NoError(t, err)
	assert.JSONEq(t, `{"side_tilt":2}`, string(b))

	b, err = json.Marshal(Classification{Mode: ModeForwardTilt})
	require.NoError(t, err)
	assert.JSONEq(t, `{"steady":false,"mode":"forward_tilt"}`, string(b))
}

func TestVerdictRoundTrip(t *testing.T) {
	in := Verdict{State: StateMonitoring, Bad: true, Axis: AxisY, Delta: [2]float64{1, 9}, BadCount: 3, Tick: 40}
	b, err := json.Marshal(in)
	require.NoError(t, err)

	var out Verdict
	require.NoError(t, json.Unmarshal(b, &out))
	assert.Equal(t, in, out)

	var m Mode
	assert.Error(t, m.UnmarshalText([]byte("slouch")))
}
