// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	serial "github.com/jacobsa/go-serial/serial"

	"github.com/relabs-tech/posture_monitor/internal/imu"
)

// LineSource reads frames from the wearable's text protocol, one frame per
// line: "ax ay az; gx gy gz; ax ay az; gx gy gz", upper group first.
type LineSource struct {
	port   io.ReadCloser
	reader *bufio.Reader
	now    func() time.Time
}

// NewLineSource wraps an already opened port (or any reader of lines).
func NewLineSource(port io.ReadCloser) *LineSource {
	return &LineSource{
		port:   port,
		reader: bufio.NewReader(port),
		now:    time.Now,
	}
}

// OpenSerial opens the wearable's serial port at the given baud rate.
func OpenSerial(portName string, baudRate int) (*LineSource, error) {
	opts := serial.OpenOptions{
		PortName:              portName,
		BaudRate:              uint(baudRate),
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       1,
		ParityMode:            serial.PARITY_NONE,
		InterCharacterTimeout: 0,
	}

	port, err := serial.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open serial %s: %w", portName, err)
	}
	log.Printf("serial: opened %s at %d baud", portName, baudRate)

	return NewLineSource(port), nil
}

// Next blocks until a non-empty line arrives and parses it. Malformed lines
// are returned as errors wrapping imu.ErrMalformedSample so the caller can
// decide to skip the tick.
func (s *LineSource) Next() (imu.Frame, error) {
	for {
		line, err := s.reader.ReadString('\n')
		if err != nil && !(errors.Is(err, io.EOF) && line != "") {
			return imu.Frame{}, err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		f, perr := imu.ParseFrameLine(line)
		if perr != nil {
			return imu.Frame{}, perr
		}
		f.Time = s.now()
		return f, nil
	}
}

func (s *LineSource) Close() error {
	return s.port.Close()
}
