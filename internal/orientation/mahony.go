// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package orientation

import (
	"math"

	"gonum.org/v1/gonum/num/quat"

	"github.com/relabs-tech/posture_monitor/internal/imu"
)

// FuseFunc advances an orientation estimate by one sample. gyro is bias
// corrected angular rate, accel is the raw accelerometer reading. Any
// Mahony/Madgwick-style filter satisfies it.
type FuseFunc func(prev Quaternion, gyro, accel imu.Vector3) Quaternion

// Mahony is a 6-DOF Mahony complementary filter (gyro + accel, no mag).
// Each tracker needs its own instance because of the integral term.
type Mahony struct {
	Kp         float64 // proportional gain
	Ki         float64 // integral gain
	SampleFreq float64 // Hz

	integral imu.Vector3
}

// NewMahony returns a filter with the gains used by the wearable's firmware.
func NewMahony(sampleFreq float64) *Mahony {
	return &Mahony{
		Kp:         1.0,
		Ki:         0.3,
		SampleFreq: sampleFreq,
	}
}

// Fuse implements FuseFunc. gyro is in rad/s; accel may be in any unit.
func (m *Mahony) Fuse(prev Quaternion, gyro, accel imu.Vector3) Quaternion {
	dt := 1.0 / m.SampleFreq
	q0, q1, q2, q3 := prev.W, prev.X, prev.Y, prev.Z
	gx, gy, gz := gyro.X, gyro.Y, gyro.Z

	// Skip feedback on free fall (zero accel) to avoid NaN
	if norm := math.Sqrt(accel.X*accel.X + accel.Y*accel.Y + accel.Z*accel.Z); norm > 0 {
		ax, ay, az := accel.X/norm, accel.Y/norm, accel.Z/norm

		// Estimated direction of gravity
		vx := 2.0 * (q1*q3 - q0*q2)
		vy := 2.0 * (q0*q1 + q2*q3)
		vz := q0*q0 - q1*q1 - q2*q2 + q3*q3

		// Error is cross product between measured and estimated gravity
		ex := ay*vz - az*vy
		ey := az*vx - ax*vz
		ez := ax*vy - ay*vx

		if m.Ki > 0 {
			m.integral.X += m.Ki * ex * dt
			m.integral.Y += m.Ki * ey * dt
			m.integral.Z += m.Ki * ez * dt
			gx += m.integral.X
			gy += m.integral.Y
			gz += m.integral.Z
		}

		gx += m.Kp * ex
		gy += m.Kp * ey
		gz += m.Kp * ez
	}

	// q += 0.5 * q ⊗ (0, ω) * dt
	q := prev.number()
	omega := quat.Number{Imag: gx, Jmag: gy, Kmag: gz}
	qDot := quat.Scale(0.5*dt, quat.Mul(q, omega))

	return fromNumber(quat.Add(q, qDot)).Normalize()
}
