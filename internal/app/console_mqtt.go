package app

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/posture_monitor/internal/config"
	"github.com/relabs-tech/posture_monitor/internal/session"
)

func RunConsoleMQTT() error {
	cfg := config.Get()

	client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDConsole)
	if err != nil {
		return err
	}

	// Subscribe to reports
	err = subscribe(client, cfg.TopicReport, func(_ mqtt.Client, msg mqtt.Message) {
		var r session.Report
		if err := json.Unmarshal(msg.Payload(), &r); err != nil {
			log.Printf("console: report unmarshal error: %v", err)
			return
		}
		fmt.Println(formatReport(r))
	})
	if err != nil {
		return err
	}

	// Subscribe to alerts
	err = subscribe(client, cfg.TopicAlert, func(_ mqtt.Client, msg mqtt.Message) {
		var e AlertEvent
		if err := json.Unmarshal(msg.Payload(), &e); err != nil {
			log.Printf("console: alert unmarshal error: %v", err)
			return
		}
		fmt.Printf("[ALERT] session=%s tick=%d axis=%s dx=%.1f dy=%.1f\n",
			e.SessionID, e.Tick, e.Axis, e.Delta[0], e.Delta[1])
	})
	if err != nil {
		return err
	}

	// Wait for Ctrl+C
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Println("console: shutting down")
	client.Disconnect(250)
	return nil
}
