package orientation

import (
	"math"

	"github.com/relabs-tech/posture_monitor/internal/imu"
)

// Pose is the Euler representation of orientation used across the app, in
// degrees. Roll is rotation about x, Pitch about y, Yaw about z.
type Pose struct {
	Roll  float64 `json:"roll"`
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
}

// Vector returns the pose as an (x, y, z) triple for axis-wise arithmetic.
func (p Pose) Vector() imu.Vector3 {
	return imu.Vector3{X: p.Roll, Y: p.Pitch, Z: p.Yaw}
}

// PoseFromVector is the inverse of Pose.Vector.
func PoseFromVector(v imu.Vector3) Pose {
	return Pose{Roll: v.X, Pitch: v.Y, Yaw: v.Z}
}

// ComputePoseFromAccel computes roll and pitch from accelerometer data only.
// Yaw is unobservable from gravity and is left at 0.
//
// Uses simple tilt formulas:
//
//	roll  = atan2(ay, az)
//	pitch = atan2(-ax, sqrt(ay² + az²))
func ComputePoseFromAccel(ax, ay, az float64) Pose {
	rollRad := math.Atan2(ay, az)
	pitchRad := math.Atan2(-ax, math.Sqrt(ay*ay+az*az))

	return Pose{
		Roll:  rollRad * 180.0 / math.Pi,
		Pitch: pitchRad * 180.0 / math.Pi,
	}
}
