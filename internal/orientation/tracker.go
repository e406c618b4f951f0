// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package orientation

import (
	"fmt"

	"github.com/relabs-tech/posture_monitor/internal/imu"
	"github.com/relabs-tech/posture_monitor/internal/monitoring"
	"github.com/relabs-tech/posture_monitor/internal/sensors"
	"github.com/relabs-tech/posture_monitor/internal/window"
)

// BaselineState is the phase of a tracker's one-time baseline capture.
type BaselineState int

const (
	BaselineUnset BaselineState = iota
	BaselineAccumulating
	BaselineFixed
)

func (s BaselineState) String() string {
	switch s {
	case BaselineUnset:
		return "unset"
	case BaselineAccumulating:
		return "accumulating"
	case BaselineFixed:
		return "fixed"
	default:
		return "unknown"
	}
}

// TrackerConfig sizes the windows of a tracker.
type TrackerConfig struct {
	CalibrationWindow int
	BaselineWindow    int
	// GyroScale converts bias corrected gyro readings into the units the
	// fusion function expects.
	GyroScale float64
}

// Tracker follows the orientation of one sensor group and captures its
// neutral baseline once the fusion output has settled.
type Tracker struct {
	name  string
	q     Quaternion
	gyro  *sensors.Gyroscope
	accel *sensors.Accelerometer
	fuse  FuseFunc
	scale float64

	state    BaselineState
	pending  *window.Window[imu.Vector3]
	baseline Pose
}

// NewTracker returns a tracker at the identity orientation with an unset baseline.
func NewTracker(name string, cfg TrackerConfig, fuse FuseFunc) (*Tracker, error) {
	if cfg.BaselineWindow <= 0 {
		return nil, fmt.Errorf("%s: baseline window must be positive, got %d", name, cfg.BaselineWindow)
	}
	if fuse == nil {
		return nil, fmt.Errorf("%s: fusion function is required", name)
	}
	gyro, err := sensors.NewGyroscope(name, cfg.CalibrationWindow)
	if err != nil {
		return nil, err
	}
	pending, err := window.New[imu.Vector3](cfg.BaselineWindow)
	if err != nil {
		return nil, fmt.Errorf("%s: baseline: %w", name, err)
	}
	scale := cfg.GyroScale
	if scale == 0 {
		scale = 1
	}
	return &Tracker{
		name:    name,
		q:       Identity,
		gyro:    gyro,
		accel:   sensors.NewAccelerometer(),
		fuse:    fuse,
		scale:   scale,
		pending: pending,
	}, nil
}

func (t *Tracker) Name() string { return t.name }

// Observe feeds one raw group sample through the sensors. Once the gyro bias
// is known it advances the orientation via Update and returns true; before
// that it returns false and orientation is untouched.
func (t *Tracker) Observe(s imu.GroupSample, warmUp bool) (bool, error) {
	if err := t.accel.SetValues(s.Accel); err != nil {
		return false, fmt.Errorf("%s: %w", t.name, err)
	}
	if err := t.gyro.SetValues(s.Gyro); err != nil {
		return false, fmt.Errorf("%s: %w", t.name, err)
	}
	if !t.gyro.Calibrated() {
		return false, nil
	}
	t.Update(t.gyro.CurrentValue().Scale(t.scale), t.accel.CurrentValue(), warmUp)
	return true, nil
}

// Update advances the orientation unconditionally. Outside warm-up it also
// drives the baseline capture: the first BaselineWindow Euler readings are
// averaged into a baseline that never changes afterwards.
func (t *Tracker) Update(gyro, accel imu.Vector3, warmUp bool) {
	t.q = t.fuse(t.q, gyro, accel)
	if warmUp {
		return
	}

	switch t.state {
	case BaselineFixed:
		return
	case BaselineUnset:
		t.pending.Reset()
		t.state = BaselineAccumulating
	}

	t.pending.Push(t.q.Euler().Vector())
	if !t.pending.Full() {
		return
	}

	t.baseline = PoseFromVector(window.Mean(t.pending.Items()))
	t.pending.Reset()
	t.state = BaselineFixed
	monitoring.Logf("%s: baseline fixed at roll=%.2f pitch=%.2f yaw=%.2f",
		t.name, t.baseline.Roll, t.baseline.Pitch, t.baseline.Yaw)
}

// Deviation returns |current - baseline| per axis, or false before the
// baseline is fixed.
func (t *Tracker) Deviation() (imu.Vector3, bool) {
	rel, ok := t.Relative()
	if !ok {
		return imu.Vector3{}, false
	}
	return rel.Abs(), true
}

// Relative returns the signed current - baseline per axis, or false before
// the baseline is fixed.
func (t *Tracker) Relative() (imu.Vector3, bool) {
	if t.state != BaselineFixed {
		return imu.Vector3{}, false
	}
	return t.q.Euler().Vector().Sub(t.baseline.Vector()), true
}

func (t *Tracker) HasBaseline() bool { return t.state == BaselineFixed }

func (t *Tracker) BaselineState() BaselineState { return t.state }

// Baseline returns the fixed baseline pose, or false before it exists.
func (t *Tracker) Baseline() (Pose, bool) {
	return t.baseline, t.state == BaselineFixed
}

func (t *Tracker) Quaternion() Quaternion { return t.q }

func (t *Tracker) Pose() Pose { return t.q.Euler() }

// Gyroscope exposes the group's gyroscope and its bias state.
func (t *Tracker) Gyroscope() *sensors.Gyroscope { return t.gyro }

// Tilt is the roll and pitch implied by gravity alone. It is available from
// the first sample, before the fusion output has converged.
func (t *Tracker) Tilt() Pose {
	a := t.accel.CurrentValue()
	return ComputePoseFromAccel(a.X, a.Y, a.Z)
}

// Accel returns the latest accelerometer reading.
func (t *Tracker) Accel() imu.Vector3 { return t.accel.CurrentValue() }
