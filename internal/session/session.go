// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/relabs-tech/posture_monitor/internal/calibration"
	"github.com/relabs-tech/posture_monitor/internal/imu"
	"github.com/relabs-tech/posture_monitor/internal/orientation"
	"github.com/relabs-tech/posture_monitor/internal/posture"
)

// Phase is the coarse stage a session is in.
type Phase string

const (
	PhaseCalibrating         Phase = "calibrating"
	PhaseWarmingUp           Phase = "warming_up"
	PhaseMonitoring          Phase = "monitoring"
	PhaseRecalibrationNeeded Phase = "recalibration_needed"
)

// Config holds every tunable of a session. Zero fields take defaults except
// WarmupTicks, where zero disables the warm-up.
type Config struct {
	CalibrationWindow    int
	BaselineWindow       int
	HysteresisSize       int
	Threshold            float64
	TripTickCeiling      int
	TripBadCeiling       int
	WarmupTicks          int
	SampleRate           float64 // Hz
	Kp, Ki               float64
	GyroScale            float64
	StrictRotationSpread bool

	// OnAlert is called on every tick the alert condition holds.
	OnAlert posture.AlertFunc
	// Fuse overrides the Mahony filter. It is shared by both trackers.
	Fuse orientation.FuseFunc
}

// DefaultConfig returns the stock tuning.
func DefaultConfig() Config {
	return Config{
		CalibrationWindow: calibration.DefaultWindowSize,
		BaselineWindow:    25,
		HysteresisSize:    posture.DefaultHysteresisSize,
		Threshold:         posture.DefaultThreshold,
		TripTickCeiling:   posture.DefaultTripTickCeiling,
		TripBadCeiling:    posture.DefaultTripBadCeiling,
		WarmupTicks:       100,
		SampleRate:        5,
		Kp:                1.0,
		Ki:                0.3,
		GyroScale:         1.0,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.CalibrationWindow == 0 {
		c.CalibrationWindow = d.CalibrationWindow
	}
	if c.BaselineWindow == 0 {
		c.BaselineWindow = d.BaselineWindow
	}
	if c.HysteresisSize == 0 {
		c.HysteresisSize = d.HysteresisSize
	}
	if c.Threshold == 0 {
		c.Threshold = d.Threshold
	}
	if c.TripTickCeiling == 0 {
		c.TripTickCeiling = d.TripTickCeiling
	}
	if c.TripBadCeiling == 0 {
		c.TripBadCeiling = d.TripBadCeiling
	}
	if c.SampleRate == 0 {
		c.SampleRate = d.SampleRate
	}
	if c.Kp == 0 && c.Ki == 0 {
		c.Kp, c.Ki = d.Kp, d.Ki
	}
	if c.GyroScale == 0 {
		c.GyroScale = d.GyroScale
	}
	return c
}

// TrackerReport is the per group part of a Report.
type TrackerReport struct {
	Name       string                 `json:"name"`
	Calibrated bool                   `json:"calibrated"`
	Quaternion orientation.Quaternion `json:"quaternion"`
	Pose       orientation.Pose       `json:"pose"`
	Tilt       orientation.Pose       `json:"tilt"`
	Baseline   *orientation.Pose      `json:"baseline,omitempty"`
	Deviation  *imu.Vector3           `json:"deviation,omitempty"`
}

// Report is the output of one tick, published as JSON.
type Report struct {
	SessionID      string                  `json:"session_id"`
	Time           time.Time               `json:"time"`
	Tick           int                     `json:"tick"`
	Phase          Phase                   `json:"phase"`
	Upper          TrackerReport           `json:"upper"`
	Lower          TrackerReport           `json:"lower"`
	Verdict        posture.Verdict         `json:"verdict"`
	Classification *posture.Classification `json:"classification,omitempty"`
	Tallies        map[string]int          `json:"tallies"`
	Iterations     int                     `json:"iterations"`
}

// Session owns one run of calibration, baseline capture and monitoring.
// It is not safe for concurrent use. After ErrRecalibrationNeeded the
// session is spent and a new one must be built.
type Session struct {
	id  string
	cfg Config

	upper, lower *orientation.Tracker
	monitor      *posture.Monitor
	classifier   *posture.Classifier

	tick int
}

// New builds a fresh session with its own calibrators, baselines and counters.
func New(cfg Config) (*Session, error) {
	cfg = cfg.withDefaults()
	if cfg.WarmupTicks < 0 {
		return nil, fmt.Errorf("session: warm-up ticks must not be negative, got %d", cfg.WarmupTicks)
	}
	if cfg.SampleRate <= 0 {
		return nil, fmt.Errorf("session: sample rate must be positive, got %v", cfg.SampleRate)
	}

	tcfg := orientation.TrackerConfig{
		CalibrationWindow: cfg.CalibrationWindow,
		BaselineWindow:    cfg.BaselineWindow,
		GyroScale:         cfg.GyroScale,
	}
	fuseUpper, fuseLower := cfg.Fuse, cfg.Fuse
	if fuseUpper == nil {
		fuseUpper = newMahony(cfg).Fuse
		fuseLower = newMahony(cfg).Fuse
	}

	upper, err := orientation.NewTracker("upper", tcfg, fuseUpper)
	if err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}
	lower, err := orientation.NewTracker("lower", tcfg, fuseLower)
	if err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}
	monitor, err := posture.NewMonitor(posture.MonitorConfig{
		Threshold:       cfg.Threshold,
		HysteresisSize:  cfg.HysteresisSize,
		TripTickCeiling: cfg.TripTickCeiling,
		TripBadCeiling:  cfg.TripBadCeiling,
		OnAlert:         cfg.OnAlert,
	})
	if err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}
	classifier := posture.NewClassifier()
	classifier.StrictRotationSpread = cfg.StrictRotationSpread

	return &Session{
		id:         uuid.NewString(),
		cfg:        cfg,
		upper:      upper,
		lower:      lower,
		monitor:    monitor,
		classifier: classifier,
	}, nil
}

func newMahony(cfg Config) *orientation.Mahony {
	m := orientation.NewMahony(cfg.SampleRate)
	m.Kp, m.Ki = cfg.Kp, cfg.Ki
	return m
}

func (s *Session) ID() string { return s.id }

func (s *Session) Ticks() int { return s.tick }

func (s *Session) Upper() *orientation.Tracker { return s.upper }

func (s *Session) Lower() *orientation.Tracker { return s.lower }

func (s *Session) Classifier() *posture.Classifier { return s.classifier }

// Tick processes one frame. A malformed frame returns an error wrapping
// imu.ErrMalformedSample and does not count as a tick. posture.ErrBaselineUnavailable
// is absorbed into the phase; posture.ErrRecalibrationNeeded is returned along
// with the final report.
func (s *Session) Tick(f imu.Frame) (Report, error) {
	if err := f.Validate(); err != nil {
		return Report{}, err
	}
	s.tick++
	warmUp := s.tick <= s.cfg.WarmupTicks

	if _, err := s.upper.Observe(f.Upper, warmUp); err != nil {
		return Report{}, err
	}
	if _, err := s.lower.Observe(f.Lower, warmUp); err != nil {
		return Report{}, err
	}

	verdict, err := s.monitor.Check(s.upper, s.lower)
	switch {
	case err == nil, errors.Is(err, posture.ErrBaselineUnavailable):
	case errors.Is(err, posture.ErrRecalibrationNeeded):
		return s.report(f, verdict), err
	default:
		return Report{}, err
	}

	r := s.report(f, verdict)
	if cls, err := s.classifier.ClassifyTrackers(s.upper, s.lower); err == nil {
		r.Classification = &cls
		r.Tallies = s.tallies()
		r.Iterations = s.classifier.Iterations()
	}
	return r, nil
}

func (s *Session) report(f imu.Frame, v posture.Verdict) Report {
	return Report{
		SessionID:  s.id,
		Time:       f.Time,
		Tick:       s.tick,
		Phase:      s.phase(v.State),
		Upper:      trackerReport(s.upper),
		Lower:      trackerReport(s.lower),
		Verdict:    v,
		Tallies:    s.tallies(),
		Iterations: s.classifier.Iterations(),
	}
}

func (s *Session) phase(st posture.State) Phase {
	switch {
	case st == posture.StateRecalibrationNeeded:
		return PhaseRecalibrationNeeded
	case st == posture.StateMonitoring:
		return PhaseMonitoring
	case !s.upper.Gyroscope().Calibrated() || !s.lower.Gyroscope().Calibrated():
		return PhaseCalibrating
	default:
		return PhaseWarmingUp
	}
}

func (s *Session) tallies() map[string]int {
	out := make(map[string]int)
	for mode, n := range s.classifier.Tallies() {
		out[mode.String()] = n
	}
	return out
}

func trackerReport(t *orientation.Tracker) TrackerReport {
	tr := TrackerReport{
		Name:       t.Name(),
		Calibrated: t.Gyroscope().Calibrated(),
		Quaternion: t.Quaternion(),
		Pose:       t.Pose(),
		Tilt:       t.Tilt(),
	}
	if b, ok := t.Baseline(); ok {
		tr.Baseline = &b
	}
	if d, ok := t.Deviation(); ok {
		tr.Deviation = &d
	}
	return tr
}
