// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/relabs-tech/posture_monitor/internal/imu"
	"github.com/relabs-tech/posture_monitor/internal/record"
)

// ReplaySource reads frames back from a file written by record.Recorder.
// Next returns io.EOF once the file is exhausted.
type ReplaySource struct {
	r      *csv.Reader
	closer io.Closer
	row    int
}

// NewReplaySource consumes the header row of r.
func NewReplaySource(r io.Reader) (*ReplaySource, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("replay: header: %w", err)
	}
	if len(header) != len(record.Columns) || header[0] != record.Columns[0] {
		return nil, fmt.Errorf("replay: unexpected header %v", header)
	}
	return &ReplaySource{r: cr, row: 1}, nil
}

// OpenReplay opens a recorded session file.
func OpenReplay(path string) (*ReplaySource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("replay: %w", err)
	}
	s, err := NewReplaySource(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	s.closer = f
	return s, nil
}

// Next returns the next recorded frame. Blank rows are skipped; a row that
// does not parse, as CSV or as a frame, is reported with its line number and
// wraps imu.ErrMalformedSample. Other read errors are returned as is.
func (s *ReplaySource) Next() (imu.Frame, error) {
	for {
		row, err := s.r.Read()
		if errors.Is(err, io.EOF) {
			return imu.Frame{}, io.EOF
		}
		s.row++
		var perr *csv.ParseError
		if errors.As(err, &perr) {
			return imu.Frame{}, fmt.Errorf("replay row %d: %w: %v", s.row, imu.ErrMalformedSample, err)
		}
		if err != nil {
			return imu.Frame{}, fmt.Errorf("replay row %d: %w", s.row, err)
		}
		if len(row) == 1 && row[0] == "" {
			continue
		}

		f, err := record.ParseRow(row)
		if err != nil {
			return imu.Frame{}, fmt.Errorf("replay row %d: %w", s.row, err)
		}
		return f, nil
	}
}

func (s *ReplaySource) Close() error {
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}
