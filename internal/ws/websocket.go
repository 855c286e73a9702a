// internal/ws/websocket.go
package websocket

import (
	"log"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var ansiRegex = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

var Upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins in development
	},
}

// LogMessage is one build-log event pushed to connected clients. Build is
// empty for process-wide messages (startup, settings changes).
type LogMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Build   string `json:"build,omitempty"`
	Time    string `json:"time"`
}

type Manager struct {
	clients   map[*websocket.Conn]bool
	broadcast chan LogMessage
	mutex     sync.RWMutex
	writeMu   sync.Map // Per-connection write mutex
}

var (
	instance *Manager
	once     sync.Once
)

// GetInstance returns the singleton Manager. Build output from the engine is
// funneled here by the logging package so serve-mode clients see the same
// lines the console does.
func GetInstance() *Manager {
	once.Do(func() {
		instance = &Manager{
			clients:   make(map[*websocket.Conn]bool),
			broadcast: make(chan LogMessage, 100), // Buffered channel
		}
		go instance.Start()
	})
	return instance
}

func (m *Manager) Start() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case message := <-m.broadcast:
			m.mutex.RLock()
			for client := range m.clients {
				mutex, _ := m.writeMu.LoadOrStore(client, &sync.Mutex{})
				writeMu := mutex.(*sync.Mutex)

				go func(c *websocket.Conn, msg LogMessage) {
					writeMu.Lock()
					defer writeMu.Unlock()

					if err := c.WriteJSON(msg); err != nil {
						log.Printf("Error writing to client: %v", err)
						m.RemoveClient(c)
					}
				}(client, message)
			}
			m.mutex.RUnlock()

		case <-ticker.C:
			m.mutex.RLock()
			for client := range m.clients {
				mutex, _ := m.writeMu.LoadOrStore(client, &sync.Mutex{})
				writeMu := mutex.(*sync.Mutex)

				go func(c *websocket.Conn) {
					writeMu.Lock()
					defer writeMu.Unlock()

					if err := c.WriteMessage(websocket.PingMessage, nil); err != nil {
						log.Printf("Error sending ping: %v", err)
						m.RemoveClient(c)
					}
				}(client)
			}
			m.mutex.RUnlock()
		}
	}
}

func (m *Manager) AddClient(conn *websocket.Conn) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.clients[conn] = true
	log.Printf("Client added. Total clients: %d", len(m.clients))

	m.writeMu.Store(conn, &sync.Mutex{})

	msg := LogMessage{
		Type:    "info",
		Message: "Connected to PBW build server",
		Time:    time.Now().Format("2006/01/02 15:04:05"),
	}

	if mutex, ok := m.writeMu.Load(conn); ok {
		writeMu := mutex.(*sync.Mutex)
		writeMu.Lock()
		if err := conn.WriteJSON(msg); err != nil {
			log.Printf("Error sending initial message: %v", err)
		}
		writeMu.Unlock()
	}
}

func (m *Manager) RemoveClient(conn *websocket.Conn) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if _, ok := m.clients[conn]; ok {
		conn.Close()
		delete(m.clients, conn)
		m.writeMu.Delete(conn)
		log.Printf("Client removed. Total clients: %d", len(m.clients))
	}
}

// cleanMessage removes ANSI color codes and other control sequences so the
// browser gets plain text even when the console writer colored the line.
func cleanMessage(message string) string {
	cleaned := ansiRegex.ReplaceAllString(message, "")

	cleaned = strings.Map(func(r rune) rune {
		if r < 32 && r != '\n' && r != '\t' {
			return -1
		}
		return r
	}, cleaned)

	return strings.TrimSpace(cleaned)
}

func (m *Manager) BroadcastMessage(msgType, message string) {
	m.BroadcastBuildMessage(msgType, "", message)
}

// BroadcastBuildMessage tags the event with the build it belongs to. The
// send never blocks the pipeline: with no server running and the buffer
// full, events are dropped.
func (m *Manager) BroadcastBuildMessage(msgType, buildID, message string) {
	msg := LogMessage{
		Type:    msgType,
		Message: cleanMessage(message),
		Build:   buildID,
		Time:    time.Now().Format("2006/01/02 15:04:05"),
	}

	select {
	case m.broadcast <- msg:
	default:
	}
}
