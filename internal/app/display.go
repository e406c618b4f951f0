package app

import (
	"encoding/json"
	"fmt"
	"image"
	"log"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/posture_monitor/internal/config"
	"github.com/relabs-tech/posture_monitor/internal/session"
)

const (
	displayWidth  = 128
	displayHeight = 64
	lineHeight    = 13
)

// DisplayData holds the latest data for display
type DisplayData struct {
	mu sync.RWMutex

	report     session.Report
	haveReport bool
	lastAlert  time.Time
}

func RunDisplay() error {
	cfg := config.Get()

	// Initialize periph
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("failed to initialize periph: %w", err)
	}

	// Open I2C bus
	bus, err := i2creg.Open("")
	if err != nil {
		return fmt.Errorf("failed to open I2C bus: %w", err)
	}
	defer bus.Close()

	dev, err := ssd1306.NewI2C(bus, &ssd1306.DefaultOpts)
	if err != nil {
		return fmt.Errorf("failed to initialize display: %w", err)
	}
	log.Println("display: initialized")

	if err := dev.Draw(dev.Bounds(), renderLines("Posture", "monitor", "starting..."), image.Point{}); err != nil {
		log.Printf("display: error showing splash: %v", err)
	}

	data := &DisplayData{}

	client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDDisplay)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	err = subscribe(client, cfg.TopicReport, func(_ mqtt.Client, msg mqtt.Message) {
		var r session.Report
		if err := json.Unmarshal(msg.Payload(), &r); err != nil {
			log.Printf("display: report unmarshal error: %v", err)
			return
		}
		data.mu.Lock()
		data.report = r
		data.haveReport = true
		data.mu.Unlock()
	})
	if err != nil {
		return err
	}

	err = subscribe(client, cfg.TopicAlert, func(_ mqtt.Client, _ mqtt.Message) {
		data.mu.Lock()
		data.lastAlert = time.Now()
		data.mu.Unlock()
	})
	if err != nil {
		return err
	}

	ticker := time.NewTicker(time.Duration(cfg.DisplayUpdateInterval) * time.Millisecond)
	defer ticker.Stop()

	log.Println("display: starting update loop")

	for now := range ticker.C {
		data.mu.RLock()
		report, haveReport := data.report, data.haveReport
		alerting := now.Sub(data.lastAlert) < 2*time.Second
		data.mu.RUnlock()

		img := renderReport(report, haveReport, alerting)
		if err := dev.Draw(dev.Bounds(), img, image.Point{}); err != nil {
			log.Printf("display: error updating display: %v", err)
		}
	}

	return nil
}

// renderReport lays out the phase, the current verdict and the mode.
func renderReport(r session.Report, haveData, alerting bool) *image1bit.VerticalLSB {
	if !haveData {
		return renderLines("Posture", "Waiting...")
	}

	switch r.Phase {
	case session.PhaseCalibrating:
		return renderLines("Calibrating", "keep still")
	case session.PhaseWarmingUp:
		return renderLines(
			"Warming up",
			fmt.Sprintf("tick %d", r.Tick),
			fmt.Sprintf("up %+4.0f %+4.0f", r.Upper.Tilt.Roll, r.Upper.Tilt.Pitch),
			fmt.Sprintf("lo %+4.0f %+4.0f", r.Lower.Tilt.Roll, r.Lower.Tilt.Pitch),
		)
	case session.PhaseRecalibrationNeeded:
		return renderLines("Recalibrating", "sit upright")
	}

	status := "OK"
	if r.Verdict.Bad {
		status = fmt.Sprintf("BAD %s", r.Verdict.Axis)
	}
	if alerting {
		status = "SIT UP!"
	}
	mode := "-"
	if c := r.Classification; c != nil && c.Mode.String() != "" {
		mode = c.Mode.String()
	} else if c != nil && c.Steady {
		mode = "steady"
	}
	return renderLines(
		status,
		fmt.Sprintf("dx %4.1f dy %4.1f", r.Verdict.Delta[0], r.Verdict.Delta[1]),
		mode,
		fmt.Sprintf("bad %d", r.Verdict.BadCount),
	)
}

// renderLines draws up to four lines of text in the 7x13 font.
func renderLines(lines ...string) *image1bit.VerticalLSB {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, displayWidth, displayHeight))

	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
	}

	for i, line := range lines {
		if i >= displayHeight/lineHeight {
			break
		}
		drawer.Dot = fixed.P(0, lineHeight*(i+1))
		drawer.DrawString(line)
	}
	return img
}
