package sensors

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/posture_monitor/internal/imu"
)

func TestLineSourceNext(t *testing.T) {
	input := "\r\n" +
		"0 0 1; 0.1 0.2 0.3; 0 0 1; 0 0 0\r\n" +
		"garbage\n" +
		"0 0.5 0.8; 0 0 0; 0 0 1; 1 1 1"
	src := NewLineSource(io.NopCloser(strings.NewReader(input)))

	f, err := src.Next()
	require.NoError(t, err)
	assert.Equal(t, imu.Vector3{X: 0.1, Y: 0.2, Z: 0.3}, f.Upper.Gyro)
	assert.False(t, f.Time.IsZero())

	_, err = src.Next()
	assert.ErrorIs(t, err, imu.ErrMalformedSample)

	// last line without newline is still delivered
	f, err = src.Next()
	require.NoError(t, err)
	assert.Equal(t, imu.Vector3{X: 1, Y: 1, Z: 1}, f.Lower.Gyro)

	_, err = src.Next()
	assert.ErrorIs(t, err, io.EOF)
	assert.NoError(t, src.Close())
}

func TestMockSourceSlouchesUpperOnly(t *testing.T) {
	m := NewMockSource(5)
	m.SlouchAfter = 2

	f0, err := m.Next()
	require.NoError(t, err)
	assert.Equal(t, imu.Vector3{Z: 1}, f0.Upper.Accel)
	assert.Equal(t, m.GyroBias, f0.Upper.Gyro)

	for i := 0; i < 100; i++ {
		f0, err = m.Next()
		require.NoError(t, err)
	}
	// fully slouched: upper pitched by MaxSlouch, gyro back to bias only
	assert.InDelta(t, -0.4226, f0.Upper.Accel.X, 1e-3)
	assert.Equal(t, m.GyroBias, f0.Upper.Gyro)
	assert.Equal(t, imu.Vector3{Z: 1}, f0.Lower.Accel)
}
