// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// ./cmd/calibration/main.go
//
// Stillness check for the gyroscope bias calibration. Reads frames from the
// configured source (serial, replay or synthetic) until both sensor groups
// have frozen their gyro bias, then prints the bias, the std dev over the
// calibration window and a confidence score per group.
//
// Run:
//
//	go run ./cmd/calibration -out calibration.json
package main

import (
	"flag"
	"log"

	"github.com/relabs-tech/posture_monitor/internal/app"
	"github.com/relabs-tech/posture_monitor/internal/config"
)

func main() {
	configPath := flag.String("config", "posture_config.txt", "path to the KEY=VALUE config file")
	out := flag.String("out", "", "optional path for a JSON copy of the result")
	flag.Parse()

	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := app.RunCalibrationCheck(*out); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
