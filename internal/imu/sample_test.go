package imu

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFrameLine(t *testing.T) {
	f, err := ParseFrameLine("0.01 0.02 0.98; 0.1 -0.2 0.3; 0 0 1; 1 2 3\r\n")
	require.NoError(t, err)

	assert.Equal(t, "upper", f.Upper.Source)
	assert.Equal(t, Vector3{X: 0.01, Y: 0.02, Z: 0.98}, f.Upper.Accel)
	assert.Equal(t, Vector3{X: 0.1, Y: -0.2, Z: 0.3}, f.Upper.Gyro)
	assert.Equal(t, "lower", f.Lower.Source)
	assert.Equal(t, Vector3{X: 1, Y: 2, Z: 3}, f.Lower.Gyro)
}

func TestParseFrameLineMalformed(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{"missing group", "0 0 1; 0 0 0"},
		{"short vector", "0 0; 0 0 0; 0 0 1; 0 0 0"},
		{"non numeric", "0 0 x; 0 0 0; 0 0 1; 0 0 0"},
		{"not finite", "0 0 NaN; 0 0 0; 0 0 1; 0 0 0"},
		{"empty", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseFrameLine(tt.line)
			assert.ErrorIs(t, err, ErrMalformedSample)
		})
	}
}

func TestVectorOps(t *testing.T) {
	v := Vector3{X: 15, Y: -15, Z: 15}
	assert.Equal(t, Vector3{X: 3, Y: -27, Z: 3}, v.Sub(Vector3{X: 12, Y: 12, Z: 12}))
	assert.Equal(t, Vector3{X: 15, Y: 15, Z: 15}, v.Abs())
	assert.Equal(t, Vector3{X: 30, Y: -30, Z: 30}, v.Scale(2))
}

func TestFrameValidate(t *testing.T) {
	f := Frame{
		Upper: GroupSample{Source: "upper", Accel: Vector3{Z: 1}},
		Lower: GroupSample{Source: "lower", Gyro: Vector3{X: math.Inf(1)}},
	}
	err := f.Validate()
	require.ErrorIs(t, err, ErrMalformedSample)
	assert.Contains(t, err.Error(), "lower gyro")

	f.Lower.Gyro = Vector3{}
	assert.NoError(t, f.Validate())
}
