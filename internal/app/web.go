package app

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gorilla/websocket"

	"github.com/relabs-tech/posture_monitor/internal/config"
	"github.com/relabs-tech/posture_monitor/internal/session"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

const wsWriteTimeout = 2 * time.Second

// WSMessage is what the live stream sends to browsers.
type WSMessage struct {
	Type   string          `json:"type"` // report, alert
	Report *session.Report `json:"report,omitempty"`
	Alert  *AlertEvent     `json:"alert,omitempty"`
}

// postureServer keeps the latest report and fans updates out to websocket
// clients.
type postureServer struct {
	mu         sync.RWMutex
	lastReport session.Report
	haveReport bool

	clientsMu sync.Mutex
	clients   map[*websocket.Conn]struct{}
}

func newPostureServer() *postureServer {
	return &postureServer{clients: make(map[*websocket.Conn]struct{})}
}

func (s *postureServer) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/posture", s.handlePosture)
	mux.HandleFunc("/ws/posture", s.handleWS)
	mux.Handle("/", http.FileServer(http.Dir("web")))
	return mux
}

// handlePosture serves the latest report as JSON.
func (s *postureServer) handlePosture(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.haveReport {
		http.Error(w, "no data yet", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.lastReport); err != nil {
		log.Printf("web: json encode error: %v", err)
	}
}

func (s *postureServer) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("web: websocket upgrade error: %v", err)
		return
	}

	s.clientsMu.Lock()
	s.clients[conn] = struct{}{}
	s.mu.RLock()
	if s.haveReport {
		last := s.lastReport
		s.write(conn, WSMessage{Type: "report", Report: &last})
	}
	s.mu.RUnlock()
	s.clientsMu.Unlock()

	// Drain until the browser goes away
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	s.clientsMu.Lock()
	delete(s.clients, conn)
	s.clientsMu.Unlock()
	conn.Close()
}

// write must be called with clientsMu held.
func (s *postureServer) write(conn *websocket.Conn, msg WSMessage) {
	conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	if err := conn.WriteJSON(msg); err != nil {
		log.Printf("web: websocket write error: %v", err)
		delete(s.clients, conn)
		conn.Close()
	}
}

func (s *postureServer) broadcast(msg WSMessage) {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	for conn := range s.clients {
		s.write(conn, msg)
	}
}

func (s *postureServer) clientCount() int {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	return len(s.clients)
}

func (s *postureServer) updateReport(r session.Report) {
	s.mu.Lock()
	s.lastReport = r
	s.haveReport = true
	s.mu.Unlock()
	s.broadcast(WSMessage{Type: "report", Report: &r})
}

func (s *postureServer) updateAlert(e AlertEvent) {
	s.broadcast(WSMessage{Type: "alert", Alert: &e})
}

func RunWeb() error {
	cfg := config.Get()
	srv := newPostureServer()

	client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDWeb)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	err = subscribe(client, cfg.TopicReport, func(_ mqtt.Client, msg mqtt.Message) {
		var r session.Report
		if err := json.Unmarshal(msg.Payload(), &r); err != nil {
			log.Printf("web: report unmarshal error: %v", err)
			return
		}
		srv.updateReport(r)
	})
	if err != nil {
		return err
	}

	err = subscribe(client, cfg.TopicAlert, func(_ mqtt.Client, msg mqtt.Message) {
		var e AlertEvent
		if err := json.Unmarshal(msg.Payload(), &e); err != nil {
			log.Printf("web: alert unmarshal error: %v", err)
			return
		}
		srv.updateAlert(e)
	})
	if err != nil {
		return err
	}

	addr := fmt.Sprintf(":%d", cfg.WebServerPort)
	log.Printf("web server listening on %s", addr)
	return http.ListenAndServe(addr, srv.handler())
}
