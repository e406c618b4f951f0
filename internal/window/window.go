// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package window provides the fixed-capacity FIFO used for gyro bias
// estimation, baseline capture and alert debouncing.
package window

import (
	"fmt"

	"gonum.org/v1/gonum/stat"

	"github.com/relabs-tech/posture_monitor/internal/imu"
)

// Window is a FIFO with a fixed capacity. Pushing onto a full window evicts
// the oldest element, so Len never exceeds Cap.
type Window[T any] struct {
	items []T
	size  int
}

// New returns an empty window holding at most size elements.
func New[T any](size int) (*Window[T], error) {
	if size <= 0 {
		return nil, fmt.Errorf("window size must be positive, got %d", size)
	}
	return &Window[T]{items: make([]T, 0, size), size: size}, nil
}

// Push appends v, evicting the oldest element when the window is full.
func (w *Window[T]) Push(v T) {
	if len(w.items) == w.size {
		copy(w.items, w.items[1:])
		w.items = w.items[:w.size-1]
	}
	w.items = append(w.items, v)
}

// Reset empties the window, keeping its capacity.
func (w *Window[T]) Reset() { w.items = w.items[:0] }

// Full reports whether the window holds Cap elements.
func (w *Window[T]) Full() bool { return len(w.items) == w.size }

func (w *Window[T]) Len() int { return len(w.items) }

func (w *Window[T]) Cap() int { return w.size }

// Items returns the elements oldest first. The slice is owned by the window.
func (w *Window[T]) Items() []T { return w.items }

// All reports whether pred holds for every element. An empty window yields true.
func (w *Window[T]) All(pred func(T) bool) bool {
	for _, v := range w.items {
		if !pred(v) {
			return false
		}
	}
	return true
}

// Mean returns the axis-wise mean of the vectors. It returns the zero vector
// for an empty slice.
func Mean(vs []imu.Vector3) imu.Vector3 {
	if len(vs) == 0 {
		return imu.Vector3{}
	}
	xs := make([]float64, len(vs))
	ys := make([]float64, len(vs))
	zs := make([]float64, len(vs))
	for i, v := range vs {
		xs[i], ys[i], zs[i] = v.X, v.Y, v.Z
	}
	return imu.Vector3{
		X: stat.Mean(xs, nil),
		Y: stat.Mean(ys, nil),
		Z: stat.Mean(zs, nil),
	}
}

// StdDev returns the axis-wise sample standard deviation. Fewer than two
// vectors yield the zero vector.
func StdDev(vs []imu.Vector3) imu.Vector3 {
	if len(vs) < 2 {
		return imu.Vector3{}
	}
	xs := make([]float64, len(vs))
	ys := make([]float64, len(vs))
	zs := make([]float64, len(vs))
	for i, v := range vs {
		xs[i], ys[i], zs[i] = v.X, v.Y, v.Z
	}
	return imu.Vector3{
		X: stat.StdDev(xs, nil),
		Y: stat.StdDev(ys, nil),
		Z: stat.StdDev(zs, nil),
	}
}
