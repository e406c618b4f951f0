// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/relabs-tech/posture_monitor/internal/imu"
	"github.com/relabs-tech/posture_monitor/internal/posture"
	"github.com/relabs-tech/posture_monitor/internal/record"
	"github.com/relabs-tech/posture_monitor/internal/session"
)

// Loop pulls frames from a source into a session, one tick per frame. When
// the session asks for recalibration it is replaced by a fresh one.
type Loop struct {
	Session  session.Config
	Source   imu.FrameSource
	Interval time.Duration // pacing between frames, 0 = as fast as the source delivers

	Recorder  *record.Recorder
	Notifiers []AlertNotifier
	OnReport  func(session.Report)

	sess      *session.Session
	frameTime time.Time
	restarts  int
	skipped   int
}

// Run returns nil when the source is exhausted or ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	if err := l.startSession(); err != nil {
		return err
	}

	var tick <-chan time.Time
	if l.Interval > 0 {
		ticker := time.NewTicker(l.Interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		if ctx.Err() != nil {
			return nil
		}
		if tick != nil {
			select {
			case <-ctx.Done():
				return nil
			case <-tick:
			}
		}

		f, err := l.Source.Next()
		switch {
		case err == nil:
		case errors.Is(err, io.EOF):
			log.Printf("monitor: source exhausted after %d ticks", l.sess.Ticks())
			return nil
		case errors.Is(err, imu.ErrMalformedSample):
			l.skip(err)
			continue
		case ctx.Err() != nil:
			return nil
		default:
			return fmt.Errorf("monitor: read frame: %w", err)
		}

		if l.Recorder != nil {
			if err := l.Recorder.Write(f); err != nil {
				log.Printf("monitor: record error: %v", err)
			}
		}

		l.frameTime = f.Time
		r, err := l.sess.Tick(f)
		switch {
		case err == nil:
			l.emit(r)
		case errors.Is(err, imu.ErrMalformedSample):
			l.skip(err)
		case errors.Is(err, posture.ErrRecalibrationNeeded):
			l.emit(r)
			log.Printf("monitor: session %s: too many bad readings early on, recalibrating", l.sess.ID())
			l.restarts++
			if err := l.startSession(); err != nil {
				return err
			}
		default:
			return fmt.Errorf("monitor: tick: %w", err)
		}
	}
}

func (l *Loop) startSession() error {
	cfg := l.Session
	cfg.OnAlert = l.alert
	sess, err := session.New(cfg)
	if err != nil {
		return err
	}
	l.sess = sess
	log.Printf("monitor: session %s started, keep still while the gyroscopes calibrate", sess.ID())
	return nil
}

func (l *Loop) alert(a posture.Alert) {
	e := AlertEvent{SessionID: l.sess.ID(), Time: l.frameTime, Alert: a}
	for _, n := range l.Notifiers {
		if err := n.Notify(e); err != nil {
			log.Printf("monitor: alert notifier: %v", err)
		}
	}
}

func (l *Loop) emit(r session.Report) {
	if l.OnReport != nil {
		l.OnReport(r)
	}
}

func (l *Loop) skip(err error) {
	l.skipped++
	log.Printf("monitor: skipping malformed frame: %v", err)
}

// Current returns the active session.
func (l *Loop) Current() *session.Session { return l.sess }

func (l *Loop) Restarts() int { return l.restarts }

func (l *Loop) Skipped() int { return l.skipped }
