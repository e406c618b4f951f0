package sensors

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/posture_monitor/internal/imu"
	"github.com/relabs-tech/posture_monitor/internal/record"
)

const replayHeader = "human_time,computer_time,x_acc_1,y_acc_1,z_acc_1,x_gyro_1,y_gyro_1,z_gyro_1,x_acc_2,y_acc_2,z_acc_2,x_gyro_2,y_gyro_2,z_gyro_2\n"

func TestReplaySourceReadsRows(t *testing.T) {
	in := replayHeader +
		"t,100.5,0,0,1,0.1,0.2,0.3,0,0,1,0,0,0\n" +
		"t,100.7,0.1,0,1,0,0,0,0,0,1,0,0,-0.1\n"
	s, err := NewReplaySource(strings.NewReader(in))
	require.NoError(t, err)

	f, err := s.Next()
	require.NoError(t, err)
	assert.Equal(t, imu.Vector3{X: 0.1, Y: 0.2, Z: 0.3}, f.Upper.Gyro)
	assert.Equal(t, "upper", f.Upper.Source)
	assert.Equal(t, time.Unix(100, 500_000_000), f.Time)

	f, err = s.Next()
	require.NoError(t, err)
	assert.Equal(t, imu.Vector3{Z: -0.1}, f.Lower.Gyro)

	_, err = s.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestReplaySourceMalformedRow(t *testing.T) {
	in := replayHeader +
		"t,1,0,0,1\n" +
		"t,2,0,0,1,0,0,0,0,0,1,0,0,0\n"
	s, err := NewReplaySource(strings.NewReader(in))
	require.NoError(t, err)

	_, err = s.Next()
	assert.ErrorIs(t, err, imu.ErrMalformedSample)
	assert.Contains(t, err.Error(), "row 2")

	// the source keeps going after a bad row
	_, err = s.Next()
	assert.NoError(t, err)
}

func TestReplaySourceBadQuoteRow(t *testing.T) {
	in := replayHeader +
		"t,1,0,0,1,0,0,0,0,0,1,0,0,0\n" +
		"t,2,0,0,1,0.1\"5,0,0,0,0,1,0,0,0\n" +
		"t,3,0,0,1,0,0,0,0,0,1,0,0,0\n"
	s, err := NewReplaySource(strings.NewReader(in))
	require.NoError(t, err)

	_, err = s.Next()
	require.NoError(t, err)

	_, err = s.Next()
	require.Error(t, err)
	assert.ErrorIs(t, err, imu.ErrMalformedSample)
	assert.Contains(t, err.Error(), "row 3")

	f, err := s.Next()
	require.NoError(t, err)
	assert.Equal(t, time.Unix(3, 0), f.Time)

	_, err = s.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestReplaySourceRejectsForeignHeader(t *testing.T) {
	_, err := NewReplaySource(strings.NewReader("a,b,c\n1,2,3\n"))
	assert.Error(t, err)
}

func TestRecordThenReplay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "walk.csv")
	rec, err := record.Create(path)
	require.NoError(t, err)

	mock := NewMockSource(5)
	var written []imu.Frame
	for i := 0; i < 5; i++ {
		f, err := mock.Next()
		require.NoError(t, err)
		require.NoError(t, rec.Write(f))
		written = append(written, f)
	}
	require.NoError(t, rec.Close())

	s, err := OpenReplay(path)
	require.NoError(t, err)
	defer s.Close()
	for _, want := range written {
		got, err := s.Next()
		require.NoError(t, err)
		assert.Equal(t, want.Upper, got.Upper)
		assert.Equal(t, want.Lower, got.Lower)
	}
	_, err = s.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestOpenReplayMissing(t *testing.T) {
	_, err := OpenReplay(filepath.Join(t.TempDir(), "nope.csv"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
