// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"math"
	"time"

	"github.com/relabs-tech/posture_monitor/internal/imu"
)

// MockSource generates a wearer who stands still and then slowly slouches:
// after SlouchAfter ticks the upper group pitches forward at SlouchRate
// degrees per second until it reaches MaxSlouch, while the lower group stays
// upright. Both gyroscopes carry a constant bias.
type MockSource struct {
	Rate        float64 // Hz
	SlouchAfter int
	SlouchRate  float64 // deg/s
	MaxSlouch   float64 // deg
	GyroBias    imu.Vector3

	tick  int
	start time.Time
}

// NewMockSource returns a mock sampling at rate Hz.
func NewMockSource(rate float64) *MockSource {
	return &MockSource{
		Rate:        rate,
		SlouchAfter: 200,
		SlouchRate:  2,
		MaxSlouch:   25,
		GyroBias:    imu.Vector3{X: 0.02, Y: -0.01, Z: 0.005},
		start:       time.Now(),
	}
}

func (m *MockSource) Next() (imu.Frame, error) {
	dt := 1 / m.Rate
	elapsed := float64(m.tick-m.SlouchAfter) * dt

	pitch, rate := 0.0, 0.0
	if m.tick >= m.SlouchAfter {
		pitch = m.SlouchRate * elapsed
		rate = m.SlouchRate
		if pitch >= m.MaxSlouch {
			pitch, rate = m.MaxSlouch, 0
		}
	}
	theta := pitch * math.Pi / 180

	upper := imu.GroupSample{
		Source: "upper",
		Accel:  imu.Vector3{X: -math.Sin(theta), Z: math.Cos(theta)},
		Gyro:   imu.Vector3{X: m.GyroBias.X, Y: m.GyroBias.Y + rate*math.Pi/180, Z: m.GyroBias.Z},
	}
	lower := imu.GroupSample{
		Source: "lower",
		Accel:  imu.Vector3{Z: 1},
		Gyro:   m.GyroBias,
	}

	f := imu.Frame{
		Time:  m.start.Add(time.Duration(float64(m.tick) * dt * float64(time.Second))),
		Upper: upper,
		Lower: lower,
	}
	m.tick++
	return f, nil
}
