// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/relabs-tech/posture_monitor/internal/config"
	"github.com/relabs-tech/posture_monitor/internal/imu"
	"github.com/relabs-tech/posture_monitor/internal/sensors"
	"github.com/relabs-tech/posture_monitor/internal/window"
)

const (
	// Stillness heuristics for gyro std dev in rad/s
	stillStdGood = 0.01
	stillStdBad  = 0.05

	// Confidence floor (never hard zero unless we error out)
	confFloor = 0.05
)

// GyroCheck is the outcome of calibrating one group's gyroscope.
type GyroCheck struct {
	Group      string      `json:"group"`
	Samples    int         `json:"samples"`
	Bias       imu.Vector3 `json:"bias"`
	StdDev     imu.Vector3 `json:"stddev"`
	Confidence float64     `json:"confidence"`
}

// CalibrationReport is printed (and optionally written) by the calibration check.
type CalibrationReport struct {
	CalibrationAt string    `json:"calibration_at"` // RFC3339
	Upper         GyroCheck `json:"upper"`
	Lower         GyroCheck `json:"lower"`
	Skipped       int       `json:"skipped"`
}

// checkCalibration feeds frames into a fresh gyroscope per group until both
// have frozen their bias.
func checkCalibration(src imu.FrameSource, windowSize int) (CalibrationReport, error) {
	upper, err := sensors.NewGyroscope("upper", windowSize)
	if err != nil {
		return CalibrationReport{}, err
	}
	lower, err := sensors.NewGyroscope("lower", windowSize)
	if err != nil {
		return CalibrationReport{}, err
	}

	var rawUpper, rawLower []imu.Vector3
	var skipped int
	for !upper.Calibrated() || !lower.Calibrated() {
		f, err := src.Next()
		if errors.Is(err, imu.ErrMalformedSample) {
			skipped++
			continue
		}
		if errors.Is(err, io.EOF) {
			return CalibrationReport{}, fmt.Errorf("source ended after %d frames, need %d still frames", len(rawUpper), windowSize)
		}
		if err != nil {
			return CalibrationReport{}, err
		}
		if err := f.Validate(); err != nil {
			skipped++
			continue
		}

		rawUpper = append(rawUpper, f.Upper.Gyro)
		rawLower = append(rawLower, f.Lower.Gyro)
		if err := upper.SetValues(f.Upper.Gyro); err != nil {
			return CalibrationReport{}, err
		}
		if err := lower.SetValues(f.Lower.Gyro); err != nil {
			return CalibrationReport{}, err
		}
	}

	return CalibrationReport{
		CalibrationAt: time.Now().Format(time.RFC3339),
		Upper:         gyroCheck(upper, rawUpper),
		Lower:         gyroCheck(lower, rawLower),
		Skipped:       skipped,
	}, nil
}

func gyroCheck(g *sensors.Gyroscope, raw []imu.Vector3) GyroCheck {
	bias, _ := g.Calibrator().Bias()
	std := window.StdDev(raw)
	return GyroCheck{
		Group:      g.Calibrator().Name(),
		Samples:    len(raw),
		Bias:       bias,
		StdDev:     std,
		Confidence: stillnessConfidence(std),
	}
}

func stillnessConfidence(std imu.Vector3) float64 {
	// Use average std dev across axes.
	s := (std.X + std.Y + std.Z) / 3
	switch {
	case s <= stillStdGood:
		return 1.0
	case s >= stillStdBad:
		return confFloor
	default:
		// Linear interpolation between good and bad
		t := (s - stillStdGood) / (stillStdBad - stillStdGood)
		return clamp01(1.0 - 0.95*t)
	}
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

// RunCalibrationCheck runs the gyro bias calibration on the configured source
// and reports how still the wearer was. With outPath set the report is also
// written as JSON.
func RunCalibrationCheck(outPath string) error {
	cfg := config.Get()

	src, closer, _, err := openSource(cfg)
	if err != nil {
		return err
	}
	defer closer.Close()

	fmt.Printf("Keep still for %d samples...\n", cfg.CalibrationWindow)
	res, err := checkCalibration(src, cfg.CalibrationWindow)
	if err != nil {
		return fmt.Errorf("calibration: %w", err)
	}

	for _, g := range []GyroCheck{res.Upper, res.Lower} {
		fmt.Printf("%-5s gyro bias: X=%.4f Y=%.4f Z=%.4f | stddev X=%.4f Y=%.4f Z=%.4f | confidence=%.2f\n",
			g.Group, g.Bias.X, g.Bias.Y, g.Bias.Z, g.StdDev.X, g.StdDev.Y, g.StdDev.Z, g.Confidence)
	}
	if res.Skipped > 0 {
		log.Printf("calibration: skipped %d malformed frames", res.Skipped)
	}

	if outPath == "" {
		return nil
	}
	b, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(outPath, b, 0o644); err != nil {
		return err
	}
	fmt.Printf("\nWrote: %s\n", outPath)
	return nil
}
