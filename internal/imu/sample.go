// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package imu

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// ErrMalformedSample is returned when an input vector has the wrong arity or a
// component that is not a finite number.
var ErrMalformedSample = errors.New("malformed sample")

// Vector3 is a single 3-axis reading. Units follow whatever the fusion
// function expects (the serial firmware sends g and rad/s).
type Vector3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Sub returns v - o elementwise.
func (v Vector3) Sub(o Vector3) Vector3 {
	return Vector3{X: v.X - o.X, Y: v.Y - o.Y, Z: v.Z - o.Z}
}

// Scale returns v multiplied by k.
func (v Vector3) Scale(k float64) Vector3 {
	return Vector3{X: v.X * k, Y: v.Y * k, Z: v.Z * k}
}

// Abs returns the elementwise absolute value.
func (v Vector3) Abs() Vector3 {
	return Vector3{X: math.Abs(v.X), Y: math.Abs(v.Y), Z: math.Abs(v.Z)}
}

// Validate reports ErrMalformedSample if any component is NaN or infinite.
func (v Vector3) Validate() error {
	for i, c := range [3]float64{v.X, v.Y, v.Z} {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return fmt.Errorf("%w: component %d is %v", ErrMalformedSample, i, c)
		}
	}
	return nil
}

// GroupSample is one accelerometer+gyroscope reading from a sensor group.
type GroupSample struct {
	Source string `json:"source"` // "upper" or "lower"

	Accel Vector3 `json:"accel"`
	Gyro  Vector3 `json:"gyro"`
}

// Validate checks both vectors of the sample.
func (g GroupSample) Validate() error {
	if err := g.Accel.Validate(); err != nil {
		return fmt.Errorf("%s accel: %w", g.Source, err)
	}
	if err := g.Gyro.Validate(); err != nil {
		return fmt.Errorf("%s gyro: %w", g.Source, err)
	}
	return nil
}

// Frame is one sampling tick: a reading from each sensor group.
type Frame struct {
	Time  time.Time   `json:"time"`
	Upper GroupSample `json:"upper"`
	Lower GroupSample `json:"lower"`
}

// Validate checks both groups of the frame.
func (f Frame) Validate() error {
	if err := f.Upper.Validate(); err != nil {
		return err
	}
	return f.Lower.Validate()
}

// ParseVector parses three whitespace separated numbers.
func ParseVector(s string) (Vector3, error) {
	fields := strings.Fields(s)
	if len(fields) != 3 {
		return Vector3{}, fmt.Errorf("%w: want 3 components, got %d in %q", ErrMalformedSample, len(fields), s)
	}
	return VectorFromStrings(fields)
}

// VectorFromStrings converts exactly three numeric strings into a Vector3.
func VectorFromStrings(fields []string) (Vector3, error) {
	if len(fields) != 3 {
		return Vector3{}, fmt.Errorf("%w: want 3 components, got %d", ErrMalformedSample, len(fields))
	}
	var c [3]float64
	for i, f := range fields {
		val, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return Vector3{}, fmt.Errorf("%w: component %d %q", ErrMalformedSample, i, f)
		}
		c[i] = val
	}
	v := Vector3{X: c[0], Y: c[1], Z: c[2]}
	return v, v.Validate()
}

// ParseFrameLine parses a serial line of the form
//
//	ax ay az; gx gy gz; ax ay az; gx gy gz
//
// with the upper group first.
func ParseFrameLine(line string) (Frame, error) {
	parts := strings.Split(strings.TrimSpace(line), ";")
	if len(parts) != 4 {
		return Frame{}, fmt.Errorf("%w: want 4 vectors, got %d in %q", ErrMalformedSample, len(parts), line)
	}

	var vecs [4]Vector3
	for i, p := range parts {
		v, err := ParseVector(p)
		if err != nil {
			return Frame{}, fmt.Errorf("vector %d: %w", i, err)
		}
		vecs[i] = v
	}

	return Frame{
		Upper: GroupSample{Source: "upper", Accel: vecs[0], Gyro: vecs[1]},
		Lower: GroupSample{Source: "lower", Accel: vecs[2], Gyro: vecs[3]},
	}, nil
}

// FrameSource is anything that can provide frames over time: the serial
// line, a recorded file, or a synthetic generator.
type FrameSource interface {
	Next() (Frame, error)
}
