// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"fmt"
	"log"
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/posture_monitor/internal/posture"
)

// AlertEvent is a posture alert tagged with the session that raised it.
type AlertEvent struct {
	SessionID string    `json:"session_id"`
	Time      time.Time `json:"time"`
	posture.Alert
}

// AlertNotifier tells the wearer about bad posture. Notify is called from
// the monitor loop and must not block for long.
type AlertNotifier interface {
	Notify(AlertEvent) error
}

type logNotifier struct{}

func (logNotifier) Notify(e AlertEvent) error {
	log.Printf("alert: tick %d bad posture on %s axis (dx=%.1f dy=%.1f)",
		e.Tick, e.Axis, e.Delta[0], e.Delta[1])
	return nil
}

type mqttNotifier struct {
	pub   Publisher
	topic string
}

func (n mqttNotifier) Notify(e AlertEvent) error {
	return publishJSON(n.pub, n.topic, e)
}

// gpioNotifier drives a buzzer or vibration motor high for a pulse after
// each alert. Alerts arriving during a pulse extend it.
type gpioNotifier struct {
	pin   gpio.PinOut
	pulse time.Duration

	mu    sync.Mutex
	timer *time.Timer
}

// openGPIONotifier initializes periph and looks up the actuator pin by name.
func openGPIONotifier(name string, pulse time.Duration) (*gpioNotifier, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph: %w", err)
	}
	pin := gpioreg.ByName(name)
	if pin == nil {
		return nil, fmt.Errorf("gpio pin %q not found", name)
	}
	return newGPIONotifier(pin, pulse)
}

func newGPIONotifier(pin gpio.PinOut, pulse time.Duration) (*gpioNotifier, error) {
	if err := pin.Out(gpio.Low); err != nil {
		return nil, fmt.Errorf("gpio %s: %w", pin, err)
	}
	log.Printf("alert: actuator on %s, pulse %s", pin, pulse)
	return &gpioNotifier{pin: pin, pulse: pulse}, nil
}

func (n *gpioNotifier) Notify(AlertEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if err := n.pin.Out(gpio.High); err != nil {
		return fmt.Errorf("gpio %s: %w", n.pin, err)
	}
	if n.timer != nil {
		n.timer.Stop()
	}
	n.timer = time.AfterFunc(n.pulse, n.release)
	return nil
}

func (n *gpioNotifier) release() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.pin.Out(gpio.Low); err != nil {
		log.Printf("alert: gpio %s: %v", n.pin, err)
	}
}

// Close stops any pending pulse and leaves the pin low.
func (n *gpioNotifier) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.timer != nil {
		n.timer.Stop()
	}
	return n.pin.Out(gpio.Low)
}
