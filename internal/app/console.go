// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/relabs-tech/posture_monitor/internal/config"
	"github.com/relabs-tech/posture_monitor/internal/posture"
	"github.com/relabs-tech/posture_monitor/internal/session"
)

// reportedModes is the order modes are listed in summaries.
var reportedModes = []posture.Mode{
	posture.ModeSteady,
	posture.ModeForwardRotation,
	posture.ModeForwardTilt,
	posture.ModeSideTilt,
}

// formatReport renders one report as a console line.
func formatReport(r session.Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%-20s] #%-5d", r.Phase, r.Tick)

	switch r.Phase {
	case session.PhaseCalibrating:
		b.WriteString("  keep still...")
		return b.String()
	case session.PhaseWarmingUp:
		fmt.Fprintf(&b, "  UP P=%6.2f R=%6.2f  LO P=%6.2f R=%6.2f",
			r.Upper.Pose.Pitch, r.Upper.Pose.Roll, r.Lower.Pose.Pitch, r.Lower.Pose.Roll)
		return b.String()
	}

	fmt.Fprintf(&b, "  dx=%5.1f dy=%5.1f", r.Verdict.Delta[0], r.Verdict.Delta[1])
	if r.Verdict.Bad {
		fmt.Fprintf(&b, "  BAD(%s)", r.Verdict.Axis)
	} else {
		b.WriteString("  ok    ")
	}
	if c := r.Classification; c != nil {
		if c.Steady {
			b.WriteString("  steady")
		}
		if c.Mode != posture.ModeNone {
			fmt.Fprintf(&b, "  %s", c.Mode)
		}
	}
	if r.Verdict.Alert {
		b.WriteString("  !! straighten up")
	}
	return b.String()
}

// formatTallies summarizes how often each mode was seen.
func formatTallies(c *posture.Classifier) string {
	tallies := c.Tallies()
	n := c.Iterations()

	var b strings.Builder
	fmt.Fprintf(&b, "Posture summary over %d monitored ticks:\n", n)
	for _, m := range reportedModes {
		pct := 0.0
		if n > 0 {
			pct = 100 * float64(tallies[m]) / float64(n)
		}
		fmt.Fprintf(&b, "  %-17s %5d  (%5.1f%%)\n", m, tallies[m], pct)
	}
	return b.String()
}

// RunConsole runs the monitor locally and prints every report, without MQTT.
// It is meant for replaying recorded sessions.
func RunConsole() error {
	cfg := config.Get()

	loop, cleanup, err := newLoop(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	loop.OnReport = func(r session.Report) {
		fmt.Println(formatReport(r))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := loop.Run(ctx); err != nil {
		return err
	}

	log.Println("console: done")
	fmt.Print(formatTallies(loop.Current().Classifier()))
	return nil
}
