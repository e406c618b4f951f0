// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"fmt"

	"github.com/relabs-tech/posture_monitor/internal/calibration"
	"github.com/relabs-tech/posture_monitor/internal/imu"
)

// Sensor is the capability shared by the sensors of a group. The set is
// closed: only Accelerometer and Gyroscope implement it.
type Sensor interface {
	// CurrentValue returns the latest processed reading.
	CurrentValue() imu.Vector3
	// SetValues stores a new raw reading.
	SetValues(raw imu.Vector3) error

	sensor()
}

// Accelerometer passes raw readings through unchanged.
type Accelerometer struct {
	values imu.Vector3
}

func NewAccelerometer() *Accelerometer { return &Accelerometer{} }

func (a *Accelerometer) CurrentValue() imu.Vector3 { return a.values }

func (a *Accelerometer) SetValues(raw imu.Vector3) error {
	if err := raw.Validate(); err != nil {
		return fmt.Errorf("accelerometer: %w", err)
	}
	a.values = raw
	return nil
}

func (*Accelerometer) sensor() {}

// Gyroscope owns the bias Calibrator for one sensor group. Readings taken
// while the bias is unknown feed the calibration window and are reported
// uncorrected.
type Gyroscope struct {
	cal       *calibration.Calibrator
	values    imu.Vector3
	corrected bool
}

// NewGyroscope returns a gyroscope whose bias is averaged over windowSize samples.
func NewGyroscope(name string, windowSize int) (*Gyroscope, error) {
	cal, err := calibration.NewCalibrator(name, windowSize)
	if err != nil {
		return nil, fmt.Errorf("%s gyroscope: %w", name, err)
	}
	return &Gyroscope{cal: cal}, nil
}

func (g *Gyroscope) CurrentValue() imu.Vector3 { return g.values }

func (g *Gyroscope) SetValues(raw imu.Vector3) error {
	if err := raw.Validate(); err != nil {
		return fmt.Errorf("gyroscope: %w", err)
	}
	g.values, g.corrected = g.cal.Observe(raw)
	return nil
}

// ProcessValues applies the frozen bias to raw without touching the
// calibration window. It fails with calibration.ErrMissingCalibration
// before the bias exists.
func (g *Gyroscope) ProcessValues(raw imu.Vector3) (imu.Vector3, error) {
	return g.cal.Correct(raw)
}

// Calibrated reports whether CurrentValue is bias corrected.
func (g *Gyroscope) Calibrated() bool { return g.corrected }

// Calibrator exposes the underlying bias state.
func (g *Gyroscope) Calibrator() *calibration.Calibrator { return g.cal }

func (*Gyroscope) sensor() {}
