package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/athletics-sim/internal/models"
	"github.com/stitts-dev/athletics-sim/internal/services"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 256
)

// Client is one dashboard connection
type Client struct {
	ID   string
	Conn *websocket.Conn
	Send chan []byte
	Hub  *Hub
}

// Hub fans simulation events out to every connected dashboard
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	upgrader   websocket.Upgrader
	logger     *logrus.Logger
	mutex      sync.RWMutex
}

// NewHub creates a hub accepting connections from the given origins. An empty
// list or "*" accepts any origin.
func NewHub(allowedOrigins []string, logger *logrus.Logger) *Hub {
	h := &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, sendBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		logger:     logger,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowedOrigins),
	}
	return h
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || len(allowed) == 0 {
			return true
		}
		for _, o := range allowed {
			if o == "*" || o == origin {
				return true
			}
		}
		return false
	}
}

// Run handles registration and broadcasts until ctx is done
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.mutex.Lock()
			for client := range h.clients {
				close(client.Send)
				delete(h.clients, client)
			}
			h.mutex.Unlock()
			return

		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mutex.Unlock()

			h.logger.WithFields(logrus.Fields{
				"client_id":     client.ID,
				"total_clients": total,
			}).Info("WebSocket client connected")

		case client := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.Send)
			}
			total := len(h.clients)
			h.mutex.Unlock()

			h.logger.WithFields(logrus.Fields{
				"client_id":     client.ID,
				"total_clients": total,
			}).Info("WebSocket client disconnected")

		case message := <-h.broadcast:
			h.mutex.Lock()
			for client := range h.clients {
				select {
				case client.Send <- message:
				default:
					// slow consumer
					close(client.Send)
					delete(h.clients, client)
				}
			}
			h.mutex.Unlock()
		}
	}
}

// HandleWebSocket upgrades the request and starts the client pumps
func (h *Hub) HandleWebSocket(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.WithError(err).Error("Failed to upgrade WebSocket connection")
		return
	}

	client := &Client{
		ID:   uuid.New().String(),
		Conn: conn,
		Send: make(chan []byte, sendBuffer),
		Hub:  h,
	}
	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// BroadcastToAll sends a typed frame to every client. Frames are dropped when
// the broadcast queue is full.
func (h *Hub) BroadcastToAll(messageType models.MessageType, payload interface{}) {
	msg, err := models.NewMessage(messageType, payload, "")
	if err != nil {
		h.logger.WithError(err).WithField("message_type", messageType).Error("Failed to marshal WebSocket message")
		return
	}
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.WithError(err).WithField("message_type", messageType).Error("Failed to marshal WebSocket message")
		return
	}

	select {
	case h.broadcast <- data:
	default:
		h.logger.WithField("message_type", messageType).Warn("WebSocket broadcast queue full, dropping frame")
	}
}

// Attach forwards the simulation streams to connected dashboards and returns a
// function detaching them.
func (h *Hub) Attach(sim *services.SimulationAPI) func() {
	detach := []func(){
		sim.OnLiveRaceUpdate(func(race *models.LiveRaceData) {
			h.BroadcastToAll(models.MsgLiveRaceUpdate, race)
		}),
		sim.OnRaceResults(func(results []models.RaceResult) {
			h.BroadcastToAll(models.MsgRaceResults, results)
		}),
		sim.OnSimulationResult(func(session *models.RunSession) {
			h.BroadcastToAll(models.MsgSimulationResult, session)
		}),
		sim.OnProbabilityResults(func(analysis *models.ProbabilityAnalysis) {
			h.BroadcastToAll(models.MsgProbabilityResults, analysis)
		}),
		sim.OnNotification(func(n models.Notification) {
			h.BroadcastToAll(models.MsgNotification, n)
		}),
	}
	return func() {
		for _, fn := range detach {
			fn()
		}
	}
}

// GetConnectionCount returns the number of active connections
func (h *Hub) GetConnectionCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// readPump discards client frames and detects disconnects
func (c *Client) readPump() {
	defer func() {
		select {
		case c.Hub.unregister <- c:
		case <-c.Hub.done:
		}
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Hub.logger.WithError(err).WithField("client_id", c.ID).Error("WebSocket error")
			}
			return
		}
	}
}

// writePump pumps frames from the hub to the connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.Hub.logger.WithError(err).WithField("client_id", c.ID).Error("Failed to write WebSocket message")
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
