// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package calibration estimates the static gyroscope bias from the first
// full window of samples a sensor produces while the wearer stands still.
package calibration

import (
	"errors"

	"github.com/relabs-tech/posture_monitor/internal/imu"
	"github.com/relabs-tech/posture_monitor/internal/monitoring"
	"github.com/relabs-tech/posture_monitor/internal/window"
)

// DefaultWindowSize is the number of samples averaged into the bias.
const DefaultWindowSize = 25

// ErrMissingCalibration is returned when a correction is requested before the
// bias has been frozen.
var ErrMissingCalibration = errors.New("gyro bias not calibrated yet")

// Calibrator holds the bias state of one gyroscope. It starts uncalibrated
// with an empty window and freezes the bias exactly once.
type Calibrator struct {
	name string
	buf  *window.Window[imu.Vector3] // nil once calibrated
	bias imu.Vector3
	done bool
}

// NewCalibrator returns an uncalibrated Calibrator averaging size samples.
func NewCalibrator(name string, size int) (*Calibrator, error) {
	buf, err := window.New[imu.Vector3](size)
	if err != nil {
		return nil, err
	}
	return &Calibrator{name: name, buf: buf}, nil
}

// Observe returns raw-bias and true once the bias is known. Before that the
// raw sample is pushed into the window and returned unmodified with false.
// The sample that fills the window freezes the bias and is returned corrected.
func (c *Calibrator) Observe(raw imu.Vector3) (imu.Vector3, bool) {
	if c.done {
		return raw.Sub(c.bias), true
	}

	c.buf.Push(raw)
	if !c.buf.Full() {
		return raw, false
	}

	c.bias = window.Mean(c.buf.Items())
	c.done = true
	c.buf = nil
	monitoring.Logf("%s: gyro bias frozen at x=%.4f y=%.4f z=%.4f", c.name, c.bias.X, c.bias.Y, c.bias.Z)

	return raw.Sub(c.bias), true
}

// Correct subtracts the frozen bias from raw. It never feeds the window.
func (c *Calibrator) Correct(raw imu.Vector3) (imu.Vector3, error) {
	if !c.done {
		return imu.Vector3{}, ErrMissingCalibration
	}
	return raw.Sub(c.bias), nil
}

// Bias returns the frozen bias, or false while still calibrating.
func (c *Calibrator) Bias() (imu.Vector3, bool) {
	return c.bias, c.done
}

func (c *Calibrator) Calibrated() bool { return c.done }

func (c *Calibrator) Name() string { return c.name }

// Remaining is the number of samples still needed before the bias freezes.
func (c *Calibrator) Remaining() int {
	if c.done {
		return 0
	}
	return c.buf.Cap() - c.buf.Len()
}
