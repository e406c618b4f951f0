// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package posture

import (
	"fmt"
	"math"

	"github.com/relabs-tech/posture_monitor/internal/imu"
	"github.com/relabs-tech/posture_monitor/internal/monitoring"
	"github.com/relabs-tech/posture_monitor/internal/window"
)

const (
	DefaultThreshold       = 5.0 // degrees
	DefaultHysteresisSize  = 10
	DefaultTripTickCeiling = 150
	DefaultTripBadCeiling  = 30
)

// State is the lifecycle of a Monitor.
type State int

const (
	StateWarmingUp State = iota
	StateMonitoring
	StateRecalibrationNeeded
)

func (s State) String() string {
	switch s {
	case StateWarmingUp:
		return "warming_up"
	case StateMonitoring:
		return "monitoring"
	case StateRecalibrationNeeded:
		return "recalibration_needed"
	default:
		return "unknown"
	}
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *State) UnmarshalText(b []byte) error {
	for _, c := range []State{StateWarmingUp, StateMonitoring, StateRecalibrationNeeded} {
		if c.String() == string(b) {
			*s = c
			return nil
		}
	}
	return fmt.Errorf("unknown monitor state %q", b)
}

// Axis names the axis that failed a check.
type Axis int

const (
	AxisNone Axis = iota
	AxisX
	AxisY
)

func (a Axis) String() string {
	switch a {
	case AxisX:
		return "x"
	case AxisY:
		return "y"
	default:
		return ""
	}
}

func (a Axis) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

func (a *Axis) UnmarshalText(b []byte) error {
	for _, c := range []Axis{AxisNone, AxisX, AxisY} {
		if c.String() == string(b) {
			*a = c
			return nil
		}
	}
	return fmt.Errorf("unknown axis %q", b)
}

// DeviationSource is what the monitor needs from an orientation tracker.
type DeviationSource interface {
	Deviation() (imu.Vector3, bool)
}

// Verdict is the result of one Check.
type Verdict struct {
	State    State      `json:"state"`
	Bad      bool       `json:"bad"`
	Axis     Axis       `json:"axis,omitempty"`
	Delta    [2]float64 `json:"delta"` // x, y
	Alert    bool       `json:"alert"`
	BadCount int        `json:"bad_count"`
	Tick     int        `json:"tick"`
}

// Alert is handed to the AlertFunc when the debounce window is all bad.
type Alert struct {
	Tick  int        `json:"tick"`
	Axis  Axis       `json:"axis"`
	Delta [2]float64 `json:"delta"`
}

// AlertFunc is notified every tick the alert condition holds.
type AlertFunc func(Alert)

// MonitorConfig holds the tunables of a Monitor. Zero fields take defaults.
type MonitorConfig struct {
	Threshold       float64
	HysteresisSize  int
	TripTickCeiling int
	TripBadCeiling  int
	OnAlert         AlertFunc
}

func (c MonitorConfig) withDefaults() MonitorConfig {
	if c.Threshold == 0 {
		c.Threshold = DefaultThreshold
	}
	if c.HysteresisSize == 0 {
		c.HysteresisSize = DefaultHysteresisSize
	}
	if c.TripTickCeiling == 0 {
		c.TripTickCeiling = DefaultTripTickCeiling
	}
	if c.TripBadCeiling == 0 {
		c.TripBadCeiling = DefaultTripBadCeiling
	}
	return c
}

// Monitor compares the deviation of two trackers. Bending between the two
// mount points shows up as a difference in their deviations; moving the
// whole torso deviates both equally and cancels out.
type Monitor struct {
	cfg      MonitorConfig
	recent   *window.Window[bool]
	ticks    int
	compared int
	badCount int
	state    State
}

// NewMonitor returns a monitor in the WarmingUp state.
func NewMonitor(cfg MonitorConfig) (*Monitor, error) {
	cfg = cfg.withDefaults()
	if cfg.Threshold < 0 {
		return nil, fmt.Errorf("deviation threshold must not be negative, got %v", cfg.Threshold)
	}
	recent, err := window.New[bool](cfg.HysteresisSize)
	if err != nil {
		return nil, fmt.Errorf("hysteresis: %w", err)
	}
	return &Monitor{cfg: cfg, recent: recent}, nil
}

// Check runs one tick. Every call counts toward Ticks, but the trip-wire
// ceiling only counts ticks on which both baselines existed, so a long
// warm-up cannot use up the early window.
func (m *Monitor) Check(upper, lower DeviationSource) (Verdict, error) {
	m.ticks++
	if m.state == StateRecalibrationNeeded {
		return m.verdict(), ErrRecalibrationNeeded
	}

	devUpper, okUpper := upper.Deviation()
	devLower, okLower := lower.Deviation()
	if !okUpper || !okLower {
		return m.verdict(), ErrBaselineUnavailable
	}
	m.state = StateMonitoring
	m.compared++

	bad, axis, delta := Compare(devUpper, devLower, m.cfg.Threshold)
	m.recent.Push(bad)
	if bad {
		m.badCount++
	}

	v := m.verdict()
	v.Bad, v.Axis, v.Delta = bad, axis, delta

	if m.compared < m.cfg.TripTickCeiling && m.badCount > m.cfg.TripBadCeiling {
		m.state = StateRecalibrationNeeded
		v.State = m.state
		monitoring.Logf("posture: %d bad readings within %d monitored ticks, recalibration needed", m.badCount, m.compared)
		return v, ErrRecalibrationNeeded
	}

	// TODO: switch to a majority vote if product confirms that was the intent.
	if m.recent.Full() && m.recent.All(func(b bool) bool { return b }) {
		v.Alert = true
		if m.cfg.OnAlert != nil {
			m.cfg.OnAlert(Alert{Tick: m.ticks, Axis: axis, Delta: delta})
		}
	}
	return v, nil
}

func (m *Monitor) verdict() Verdict {
	return Verdict{State: m.state, BadCount: m.badCount, Tick: m.ticks}
}

func (m *Monitor) State() State { return m.state }

func (m *Monitor) BadCount() int { return m.badCount }

func (m *Monitor) Ticks() int { return m.ticks }

// Compared is the number of ticks that ran the cross-sensor comparison.
func (m *Monitor) Compared() int { return m.compared }

// Compare computes the cross-sensor delta on x and y (yaw drifts without a
// magnetometer and is ignored). The reported axis is the first one over the
// threshold in x, y order, not the largest.
func Compare(devUpper, devLower imu.Vector3, threshold float64) (bool, Axis, [2]float64) {
	delta := [2]float64{
		math.Abs(devUpper.X - devLower.X),
		math.Abs(devUpper.Y - devLower.Y),
	}
	for i, d := range delta {
		if d > threshold {
			return true, Axis(i + 1), delta
		}
	}
	return false, AxisNone, delta
}
