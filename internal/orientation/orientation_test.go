package orientation

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/posture_monitor/internal/imu"
	"github.com/relabs-tech/posture_monitor/internal/monitoring"
)

func TestMain(m *testing.M) {
	monitoring.SetLogger(nil)
	m.Run()
}

func rollQuat(deg float64) Quaternion {
	half := deg * math.Pi / 360
	return Quaternion{W: math.Cos(half), X: math.Sin(half)}
}

func TestIdentityEuler(t *testing.T) {
	assert.Equal(t, Pose{}, Identity.Euler())
}

func TestEulerRoundTrip(t *testing.T) {
	p := rollQuat(30).Euler()
	assert.InDelta(t, 30, p.Roll, 1e-9)
	assert.InDelta(t, 0, p.Pitch, 1e-9)
	assert.InDelta(t, 0, p.Yaw, 1e-9)

	half := 20 * math.Pi / 360
	p = Quaternion{W: math.Cos(half), Y: math.Sin(half)}.Euler()
	assert.InDelta(t, 20, p.Pitch, 1e-9)
}

func TestNormalize(t *testing.T) {
	q := Quaternion{W: 2}.Normalize()
	assert.Equal(t, Identity, q)
	assert.Equal(t, Identity, Quaternion{}.Normalize())
}

func TestMahonyStaysLevel(t *testing.T) {
	m := NewMahony(5)
	q := Identity
	for i := 0; i < 100; i++ {
		q = m.Fuse(q, imu.Vector3{}, imu.Vector3{Z: 1})
	}
	p := q.Euler()
	assert.InDelta(t, 0, p.Roll, 1e-9)
	assert.InDelta(t, 0, p.Pitch, 1e-9)
}

func TestMahonyConvergesToAccelTilt(t *testing.T) {
	accels := []imu.Vector3{
		{Y: math.Sin(30 * math.Pi / 180), Z: math.Cos(30 * math.Pi / 180)},
		{X: -math.Sin(20 * math.Pi / 180), Z: math.Cos(20 * math.Pi / 180)},
	}
	for _, a := range accels {
		m := NewMahony(5)
		q := Identity
		for i := 0; i < 500; i++ {
			q = m.Fuse(q, imu.Vector3{}, a)
		}
		want := ComputePoseFromAccel(a.X, a.Y, a.Z)
		got := q.Euler()
		assert.InDelta(t, want.Roll, got.Roll, 0.5)
		assert.InDelta(t, want.Pitch, got.Pitch, 0.5)
	}
}

func TestMahonyIgnoresZeroAccel(t *testing.T) {
	m := NewMahony(5)
	q := m.Fuse(Identity, imu.Vector3{}, imu.Vector3{})
	assert.Equal(t, Identity, q)
}

// scripted returns a FuseFunc that ignores its inputs and walks through
// the given roll angles, repeating the last one.
func scripted(rolls []float64, calls *int) FuseFunc {
	return func(Quaternion, imu.Vector3, imu.Vector3) Quaternion {
		i := *calls
		*calls++
		if i >= len(rolls) {
			i = len(rolls) - 1
		}
		return rollQuat(rolls[i])
	}
}

func TestTrackerBaselineCapture(t *testing.T) {
	var calls int
	rolls := []float64{50, 50, 1, 2, 3, 4, 5, 10}
	tr, err := NewTracker("upper", TrackerConfig{CalibrationWindow: 1, BaselineWindow: 5}, scripted(rolls, &calls))
	require.NoError(t, err)

	// warm-up ticks move orientation but never reach the baseline
	tr.Update(imu.Vector3{}, imu.Vector3{Z: 1}, true)
	tr.Update(imu.Vector3{}, imu.Vector3{Z: 1}, true)
	assert.Equal(t, BaselineUnset, tr.BaselineState())
	assert.InDelta(t, 50, tr.Pose().Roll, 1e-9)

	_, ok := tr.Deviation()
	assert.False(t, ok)

	for i := 0; i < 4; i++ {
		tr.Update(imu.Vector3{}, imu.Vector3{Z: 1}, false)
		assert.Equal(t, BaselineAccumulating, tr.BaselineState())
		assert.False(t, tr.HasBaseline())
	}
	tr.Update(imu.Vector3{}, imu.Vector3{Z: 1}, false)
	require.True(t, tr.HasBaseline())

	base, ok := tr.Baseline()
	require.True(t, ok)
	assert.InDelta(t, 3, base.Roll, 1e-9)

	for i := 0; i < 10; i++ {
		tr.Update(imu.Vector3{}, imu.Vector3{Z: 1}, false)
	}
	again, _ := tr.Baseline()
	assert.Equal(t, base, again, "baseline is immutable once fixed")

	dev, ok := tr.Deviation()
	require.True(t, ok)
	assert.InDelta(t, 7, dev.X, 1e-9)
	assert.InDelta(t, 0, dev.Y, 1e-9)

	rel, ok := tr.Relative()
	require.True(t, ok)
	assert.InDelta(t, 7, rel.X, 1e-9)
}

func TestTrackerDeviationIsAbsolute(t *testing.T) {
	var calls int
	tr, err := NewTracker("lower", TrackerConfig{CalibrationWindow: 1, BaselineWindow: 1}, scripted([]float64{10, 4}, &calls))
	require.NoError(t, err)

	tr.Update(imu.Vector3{}, imu.Vector3{Z: 1}, false)
	tr.Update(imu.Vector3{}, imu.Vector3{Z: 1}, false)

	rel, _ := tr.Relative()
	dev, _ := tr.Deviation()
	assert.InDelta(t, -6, rel.X, 1e-9)
	assert.InDelta(t, 6, dev.X, 1e-9)
}

func TestTrackerObserveWaitsForGyroBias(t *testing.T) {
	var calls int
	tr, err := NewTracker("upper", TrackerConfig{CalibrationWindow: 3, BaselineWindow: 2}, scripted([]float64{0}, &calls))
	require.NoError(t, err)

	s := imu.GroupSample{Source: "upper", Accel: imu.Vector3{Z: 1}, Gyro: imu.Vector3{X: 0.5}}
	for i := 0; i < 2; i++ {
		ok, err := tr.Observe(s, false)
		require.NoError(t, err)
		assert.False(t, ok)
	}
	assert.Equal(t, 0, calls, "no fusion before the bias is frozen")
	assert.Equal(t, Identity, tr.Quaternion())

	ok, err := tr.Observe(s, false)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, calls)
	assert.Equal(t, imu.Vector3{}, tr.Gyroscope().CurrentValue())
	assert.Equal(t, imu.Vector3{Z: 1}, tr.Accel())
}

func TestTrackerObserveMalformed(t *testing.T) {
	var calls int
	tr, err := NewTracker("upper", TrackerConfig{CalibrationWindow: 1, BaselineWindow: 1}, scripted([]float64{0}, &calls))
	require.NoError(t, err)

	_, err = tr.Observe(imu.GroupSample{Accel: imu.Vector3{X: math.NaN()}}, false)
	assert.ErrorIs(t, err, imu.ErrMalformedSample)
	assert.Equal(t, 0, calls)
}

func TestNewTrackerValidation(t *testing.T) {
	_, err := NewTracker("upper", TrackerConfig{CalibrationWindow: 25, BaselineWindow: 0}, NewMahony(5).Fuse)
	assert.Error(t, err)
	_, err = NewTracker("upper", TrackerConfig{CalibrationWindow: 25, BaselineWindow: 25}, nil)
	assert.Error(t, err)
	_, err = NewTracker("upper", TrackerConfig{CalibrationWindow: 0, BaselineWindow: 25}, NewMahony(5).Fuse)
	assert.Error(t, err)
}

func TestTrackerTiltBeforeConvergence(t *testing.T) {
	var calls int
	tr, err := NewTracker("upper", TrackerConfig{CalibrationWindow: 3, BaselineWindow: 2}, scripted([]float64{0}, &calls))
	require.NoError(t, err)

	// gravity tilt is readable while the gyro bias is still being estimated
	s := imu.GroupSample{Source: "upper", Accel: imu.Vector3{X: -1, Z: 1}}
	ok, err := tr.Observe(s, true)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.InDelta(t, 45, tr.Tilt().Pitch, 1e-9)
	assert.InDelta(t, 0, tr.Tilt().Roll, 1e-9)
	assert.Equal(t, Identity, tr.Quaternion())
}

func TestComputePoseFromAccel(t *testing.T) {
	p := ComputePoseFromAccel(0, 0, 1)
	assert.Equal(t, Pose{}, p)
	p = ComputePoseFromAccel(0, 1, 1)
	assert.InDelta(t, 45, p.Roll, 1e-9)
}
