// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package record

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"time"

	"github.com/relabs-tech/posture_monitor/internal/imu"
)

// Columns is the header of a recorded session. Group 1 is the upper back,
// group 2 the lower back.
var Columns = []string{
	"human_time", "computer_time",
	"x_acc_1", "y_acc_1", "z_acc_1", "x_gyro_1", "y_gyro_1", "z_gyro_1",
	"x_acc_2", "y_acc_2", "z_acc_2", "x_gyro_2", "y_gyro_2", "z_gyro_2",
}

// Recorder appends raw frames to a CSV file so sessions can be replayed.
type Recorder struct {
	w      *csv.Writer
	closer io.Closer
}

// NewRecorder writes the header to w.
func NewRecorder(w io.Writer) (*Recorder, error) {
	r := &Recorder{w: csv.NewWriter(w)}
	if err := r.w.Write(Columns); err != nil {
		return nil, fmt.Errorf("record: header: %w", err)
	}
	return r, nil
}

// Create truncates path and records into it.
func Create(path string) (*Recorder, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("record: %w", err)
	}
	r, err := NewRecorder(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	r.closer = f
	return r, nil
}

// Write appends one frame and flushes it.
func (r *Recorder) Write(f imu.Frame) error {
	row := make([]string, 0, len(Columns))
	row = append(row, f.Time.Format(time.RFC3339Nano), formatUnix(f.Time))
	for _, v := range []imu.Vector3{f.Upper.Accel, f.Upper.Gyro, f.Lower.Accel, f.Lower.Gyro} {
		row = append(row, formatFloat(v.X), formatFloat(v.Y), formatFloat(v.Z))
	}
	if err := r.w.Write(row); err != nil {
		return fmt.Errorf("record: %w", err)
	}
	r.w.Flush()
	return r.w.Error()
}

// Close flushes and closes the underlying file, if the recorder owns one.
func (r *Recorder) Close() error {
	r.w.Flush()
	if err := r.w.Error(); err != nil {
		return err
	}
	if r.closer != nil {
		return r.closer.Close()
	}
	return nil
}

// ParseRow turns one recorded row back into a frame.
func ParseRow(row []string) (imu.Frame, error) {
	if len(row) != len(Columns) {
		return imu.Frame{}, fmt.Errorf("%w: want %d columns, got %d", imu.ErrMalformedSample, len(Columns), len(row))
	}

	var vecs [4]imu.Vector3
	for i := range vecs {
		v, err := imu.VectorFromStrings(row[2+3*i : 5+3*i])
		if err != nil {
			return imu.Frame{}, fmt.Errorf("%s: %w", Columns[2+3*i], err)
		}
		vecs[i] = v
	}

	return imu.Frame{
		Time:  parseTime(row[0], row[1]),
		Upper: imu.GroupSample{Source: "upper", Accel: vecs[0], Gyro: vecs[1]},
		Lower: imu.GroupSample{Source: "lower", Accel: vecs[2], Gyro: vecs[3]},
	}, nil
}

// parseTime prefers computer_time. Rows with neither column readable get a
// zero time; the timestamps are informational only.
func parseTime(human, computer string) time.Time {
	if secs, err := strconv.ParseFloat(computer, 64); err == nil {
		whole, frac := math.Modf(secs)
		return time.Unix(int64(whole), int64(frac*1e9))
	}
	if t, err := time.Parse(time.RFC3339Nano, human); err == nil {
		return t
	}
	return time.Time{}
}

func formatUnix(t time.Time) string {
	return strconv.FormatFloat(float64(t.UnixNano())/1e9, 'f', 6, 64)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
