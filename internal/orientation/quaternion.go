// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package orientation

import (
	"math"

	"gonum.org/v1/gonum/num/quat"
)

// Quaternion is a unit orientation quaternion, w first.
type Quaternion struct {
	W float64 `json:"w"`
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Identity is the initial orientation of every tracker.
var Identity = Quaternion{W: 1}

func (q Quaternion) number() quat.Number {
	return quat.Number{Real: q.W, Imag: q.X, Jmag: q.Y, Kmag: q.Z}
}

func fromNumber(n quat.Number) Quaternion {
	return Quaternion{W: n.Real, X: n.Imag, Y: n.Jmag, Z: n.Kmag}
}

// Normalize returns q scaled to unit length. The zero quaternion maps to Identity.
func (q Quaternion) Normalize() Quaternion {
	n := q.number()
	norm := quat.Abs(n)
	if norm == 0 || math.IsNaN(norm) {
		return Identity
	}
	return fromNumber(quat.Scale(1/norm, n))
}

// Euler converts q to roll/pitch/yaw in degrees (x-y-z convention). Pitch is
// clamped at ±90° near gimbal lock.
func (q Quaternion) Euler() Pose {
	w, x, y, z := q.W, q.X, q.Y, q.Z

	t0 := 2.0 * (w*x + y*z)
	t1 := 1.0 - 2.0*(x*x+y*y)
	roll := math.Atan2(t0, t1)

	t2 := 2.0 * (w*y - z*x)
	t2 = math.Max(-1, math.Min(1, t2))
	pitch := math.Asin(t2)

	t3 := 2.0 * (w*z + x*y)
	t4 := 1.0 - 2.0*(y*y+z*z)
	yaw := math.Atan2(t3, t4)

	return Pose{
		Roll:  roll * 180 / math.Pi,
		Pitch: pitch * 180 / math.Pi,
		Yaw:   yaw * 180 / math.Pi,
	}
}
