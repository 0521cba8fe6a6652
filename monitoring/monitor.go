// Package monitoring pushes session events to browsers over websockets.
package monitoring

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"mushroomnet/session"
)

// RealtimeMonitor relays session events to the websocket hub and sends
// periodic heartbeats.
type RealtimeMonitor struct {
	hub       *WebSocketHub
	heartbeat time.Duration
	logger    *zap.Logger

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	stats   MonitorStats
}

// MonitorStats is a snapshot of monitor activity.
type MonitorStats struct {
	ConnectedClients int           `json:"connected_clients"`
	MessagesSent     int64         `json:"messages_sent"`
	StartTime        time.Time     `json:"start_time"`
	LastMessageTime  time.Time     `json:"last_message_time"`
	Uptime           time.Duration `json:"uptime"`
}

// NewRealtimeMonitor returns a stopped monitor. A zero heartbeat disables
// heartbeats.
func NewRealtimeMonitor(logger *zap.Logger, heartbeat time.Duration) *RealtimeMonitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RealtimeMonitor{
		hub:       NewWebSocketHub(logger),
		heartbeat: heartbeat,
		logger:    logger,
	}
}

// Start runs the hub and, when a heartbeat interval is set, the heartbeat loop.
func (m *RealtimeMonitor) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return errors.New("monitor is already running")
	}

	go m.hub.Start()
	m.running = true
	m.stop = make(chan struct{})
	m.stats.StartTime = time.Now()
	if m.heartbeat > 0 {
		go m.heartbeatLoop(m.stop)
	}
	m.logger.Info("realtime monitor started")
	return nil
}

// Stop halts the heartbeat loop and the hub.
func (m *RealtimeMonitor) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return errors.New("monitor is not running")
	}
	m.running = false
	close(m.stop)
	m.hub.Stop()
	m.logger.Info("realtime monitor stopped")
	return nil
}

// Hub exposes the websocket hub for routing.
func (m *RealtimeMonitor) Hub() *WebSocketHub {
	return m.hub
}

// Publish is a session.Listener.
func (m *RealtimeMonitor) Publish(e session.Event) {
	if err := m.send(MessageType(e.Type), e); err != nil {
		m.logger.Warn("failed to publish session event", zap.String("type", string(e.Type)), zap.Error(err))
	}
}

// SendHeartbeat broadcasts one heartbeat immediately.
func (m *RealtimeMonitor) SendHeartbeat() error {
	return m.send(Heartbeat, HeartbeatMessage{
		Timestamp: time.Now(),
		Status:    "alive",
		Clients:   m.hub.ClientCount(),
	})
}

func (m *RealtimeMonitor) send(kind MessageType, data any) error {
	m.mu.Lock()
	running := m.running
	m.mu.Unlock()
	if !running {
		return errors.New("monitor is not running")
	}

	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", kind, err)
	}
	message, err := json.Marshal(Message{
		Type:      kind,
		Timestamp: time.Now(),
		Data:      payload,
		ID:        generateID("msg"),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	m.hub.Broadcast(kind, message)
	m.mu.Lock()
	m.stats.MessagesSent++
	m.stats.LastMessageTime = time.Now()
	m.mu.Unlock()
	return nil
}

func (m *RealtimeMonitor) heartbeatLoop(stop <-chan struct{}) {
	ticker := time.NewTicker(m.heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := m.SendHeartbeat(); err != nil {
				return
			}
		case <-stop:
			return
		}
	}
}

// GetStats returns a snapshot of monitor activity.
func (m *RealtimeMonitor) GetStats() MonitorStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := m.stats
	if m.running {
		stats.Uptime = time.Since(stats.StartTime)
	}
	stats.ConnectedClients = m.hub.ClientCount()
	return stats
}
