// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package posture

import (
	"fmt"
	"math"

	"github.com/relabs-tech/posture_monitor/internal/imu"
)

// Mode is the kind of deviation a classification reports.
type Mode int

const (
	ModeNone Mode = iota
	ModeSteady
	ModeForwardRotation
	ModeForwardTilt
	ModeSideTilt
)

var modeNames = map[Mode]string{
	ModeNone:            "",
	ModeSteady:          "steady",
	ModeForwardRotation: "forward_rotation",
	ModeForwardTilt:     "forward_tilt",
	ModeSideTilt:        "side_tilt",
}

func (m Mode) String() string { return modeNames[m] }

func (m Mode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

func (m *Mode) UnmarshalText(b []byte) error {
	for mode, name := range modeNames {
		if name == string(b) {
			*m = mode
			return nil
		}
	}
	return fmt.Errorf("unknown mode %q", b)
}

// Angles is a baseline-relative (x, y) pair in degrees.
type Angles struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// AnglesFrom drops the yaw component of v.
func AnglesFrom(v imu.Vector3) Angles { return Angles{X: v.X, Y: v.Y} }

const (
	steadyLimit = 5.0

	rotationMin = 30.0
	rotationMax = 70.0
	// rotationSpreadLimit bounds |y1 - y1| in ForwardRotation. The
	// comparison is against the upper angle itself and therefore always
	// passes; StrictRotationSpread compares against the lower angle instead.
	rotationSpreadLimit = 20.0
)

func between(lo, v, hi float64) bool { return lo < v && v < hi }

// Steady holds when every component of both pairs is within ±5°.
func Steady(o1, o2 Angles) bool {
	for _, v := range []float64{o1.X, o1.Y, o2.X, o2.Y} {
		if math.Abs(v) > steadyLimit {
			return false
		}
	}
	return true
}

// ForwardRotation holds when both groups pitch between 30° and 70°.
func ForwardRotation(o1, o2 Angles) bool {
	return forwardRotation(o1, o2, false)
}

func forwardRotation(o1, o2 Angles, strict bool) bool {
	y1, y2 := math.Abs(o1.Y), math.Abs(o2.Y)
	if !between(rotationMin, y1, rotationMax) || !between(rotationMin, y2, rotationMax) {
		return false
	}
	other := o1.Y
	if strict {
		other = o2.Y
	}
	return math.Abs(o1.Y-other) < rotationSpreadLimit
}

// ForwardTilt holds when the upper group leans forward while the lower one
// stays upright, or for the seated variant with both leaning.
func ForwardTilt(o1, o2 Angles) bool {
	y1, y2 := math.Abs(o1.Y), math.Abs(o2.Y)
	if between(10, y1, 25) && y2 < 7 {
		return true
	}
	return between(10, y1, 15) && between(25, y2, 30)
}

// SideTilt holds when either group rolls between 10° and 30°.
func SideTilt(o1, o2 Angles) bool {
	return between(10, math.Abs(o1.X), 30) || between(10, math.Abs(o2.X), 30)
}

// Classification is the outcome of one Classify call. Steady is reported
// independently of Mode.
type Classification struct {
	Steady bool `json:"steady"`
	Mode   Mode `json:"mode,omitempty"`
}

// Classifier labels baseline-relative angle pairs and keeps running tallies.
type Classifier struct {
	// StrictRotationSpread makes ForwardRotation compare the upper pitch
	// against the lower one.
	StrictRotationSpread bool

	tallies    map[Mode]int
	iterations int
}

func NewClassifier() *Classifier {
	return &Classifier{tallies: make(map[Mode]int)}
}

// Classify evaluates Steady, then the cascade ForwardRotation, ForwardTilt,
// SideTilt where the first match wins.
func (c *Classifier) Classify(o1, o2 Angles) Classification {
	c.iterations++

	var res Classification
	if Steady(o1, o2) {
		res.Steady = true
		c.tallies[ModeSteady]++
	}

	switch {
	case forwardRotation(o1, o2, c.StrictRotationSpread):
		res.Mode = ModeForwardRotation
	case ForwardTilt(o1, o2):
		res.Mode = ModeForwardTilt
	case SideTilt(o1, o2):
		res.Mode = ModeSideTilt
	}
	if res.Mode != ModeNone {
		c.tallies[res.Mode]++
	}
	return res
}

// RelativeSource is what the classifier needs from an orientation tracker.
type RelativeSource interface {
	Relative() (imu.Vector3, bool)
}

// ClassifyTrackers classifies the trackers' baseline-relative angles. It
// returns ErrBaselineUnavailable and leaves the tallies untouched until
// both baselines exist.
func (c *Classifier) ClassifyTrackers(upper, lower RelativeSource) (Classification, error) {
	o1, ok1 := upper.Relative()
	o2, ok2 := lower.Relative()
	if !ok1 || !ok2 {
		return Classification{}, ErrBaselineUnavailable
	}
	return c.Classify(AnglesFrom(o1), AnglesFrom(o2)), nil
}

// Tallies returns a copy of the per-mode counts.
func (c *Classifier) Tallies() map[Mode]int {
	out := make(map[Mode]int, len(c.tallies))
	for k, v := range c.tallies {
		out[k] = v
	}
	return out
}

func (c *Classifier) Iterations() int { return c.iterations }
