// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/relabs-tech/posture_monitor/internal/config"
	"github.com/relabs-tech/posture_monitor/internal/imu"
	"github.com/relabs-tech/posture_monitor/internal/record"
	"github.com/relabs-tech/posture_monitor/internal/sensors"
	"github.com/relabs-tech/posture_monitor/internal/session"
)

// openSource picks the frame source from the configuration: serial port,
// recorded file, or synthetic frames. The returned interval paces the loop.
func openSource(cfg *config.Config) (imu.FrameSource, io.Closer, time.Duration, error) {
	switch {
	case cfg.SerialPort != "":
		src, err := sensors.OpenSerial(cfg.SerialPort, cfg.SerialBaudRate)
		if err != nil {
			return nil, nil, 0, err
		}
		return src, src, 0, nil

	case cfg.ReplayFile != "":
		src, err := sensors.OpenReplay(cfg.ReplayFile)
		if err != nil {
			return nil, nil, 0, err
		}
		log.Printf("monitor: replaying %s", cfg.ReplayFile)
		return src, src, time.Duration(cfg.ReplayInterval) * time.Millisecond, nil

	default:
		log.Println("monitor: no serial port or replay file configured, using synthetic frames")
		interval := time.Duration(float64(time.Second) / cfg.FusionSampleRate)
		return sensors.NewMockSource(cfg.FusionSampleRate), nopCloser{}, interval, nil
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// closingSource closes the underlying port or file at most once. Both the
// shutdown watcher and the deferred cleanup close it.
type closingSource struct {
	imu.FrameSource
	closer io.Closer
	once   sync.Once
	err    error
}

func (s *closingSource) Close() error {
	s.once.Do(func() { s.err = s.closer.Close() })
	return s.err
}

// newLoop wires a Loop from the configuration, minus the report sink.
func newLoop(cfg *config.Config) (*Loop, func(), error) {
	frames, srcCloser, interval, err := openSource(cfg)
	if err != nil {
		return nil, nil, err
	}
	src := &closingSource{FrameSource: frames, closer: srcCloser}
	cleanup := []func(){func() { src.Close() }}

	loop := &Loop{
		Session:   cfg.SessionConfig(),
		Source:    src,
		Interval:  interval,
		Notifiers: []AlertNotifier{logNotifier{}},
	}

	if cfg.RecordFile != "" {
		rec, err := record.Create(cfg.RecordFile)
		if err != nil {
			src.Close()
			return nil, nil, err
		}
		log.Printf("monitor: recording frames to %s", cfg.RecordFile)
		loop.Recorder = rec
		cleanup = append(cleanup, func() { rec.Close() })
	}

	if cfg.AlertGPIOPin != "" {
		n, err := openGPIONotifier(cfg.AlertGPIOPin, time.Duration(cfg.AlertPulseMS)*time.Millisecond)
		if err != nil {
			log.Printf("monitor: GPIO alert disabled: %v", err)
		} else {
			loop.Notifiers = append(loop.Notifiers, n)
			cleanup = append(cleanup, func() { n.Close() })
		}
	}

	return loop, func() {
		for i := len(cleanup) - 1; i >= 0; i-- {
			cleanup[i]()
		}
	}, nil
}

// RunMonitor runs sessions against the configured source and publishes every
// report and alert over MQTT.
func RunMonitor() error {
	cfg := config.Get()
	log.Println("starting posture monitor")

	client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDMonitor)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)
	pub := mqttPublisher{client: client}

	loop, cleanup, err := newLoop(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	loop.Notifiers = append(loop.Notifiers, mqttNotifier{pub: pub, topic: cfg.TopicAlert})
	loop.OnReport = func(r session.Report) {
		if err := publishJSON(pub, cfg.TopicReport, r); err != nil {
			log.Printf("monitor: %v", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// unblock a serial read on shutdown
	go func() {
		<-ctx.Done()
		if c, ok := loop.Source.(io.Closer); ok {
			c.Close()
		}
	}()

	if err := loop.Run(ctx); err != nil {
		return err
	}

	log.Printf("monitor: shutting down after %d restarts, %d skipped frames", loop.Restarts(), loop.Skipped())
	fmt.Print(formatTallies(loop.Current().Classifier()))
	return nil
}
