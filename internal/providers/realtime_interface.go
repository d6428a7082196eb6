package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/stitts-dev/athletics-sim/internal/models"
)

// ConnectionState is the lifecycle state of the realtime transport
type ConnectionState string

const (
	StateConnecting ConnectionState = "connecting"
	StateOpen       ConnectionState = "open"
	StateClosed     ConnectionState = "closed"
	StateError      ConnectionState = "error"
)

// TransportError describes why a connection failed or was closed
type TransportError struct {
	Code   int    `json:"code"`
	Reason string `json:"reason"`
}

func (te *TransportError) Error() string {
	return fmt.Sprintf("transport error %d: %s", te.Code, te.Reason)
}

// StateChange is delivered to state listeners on every transition
type StateChange struct {
	State ConnectionState `json:"state"`
	Err   *TransportError `json:"error,omitempty"`
}

type StateListener func(change StateChange)

// MessageHandler receives decoded publications from a channel
type MessageHandler func(channel string, msg *models.Message)

// Connector is the part of the client the reconnection policy drives
type Connector interface {
	Connect(ctx context.Context, url string) error
	Disconnect()
	OnStateChange(listener StateListener) func()
}

// RealtimeClient defines a publish/subscribe client with RPC calls
type RealtimeClient interface {
	Connector

	Subscribe(ctx context.Context, channel string, handler MessageHandler) error
	Unsubscribe(ctx context.Context, channel string) error
	Send(messageType models.MessageType, payload interface{}) error
	Call(ctx context.Context, method string, payload interface{}) (json.RawMessage, error)

	AddMessageListener(listener MessageHandler) func()
	ConnectionID() (string, bool)
	State() ConnectionState
	Status() ConnectionStatus
}

// ConnectionStatus represents the health of the realtime connection
type ConnectionStatus struct {
	State            ConnectionState `json:"state"`
	ClientID         string          `json:"client_id,omitempty"`
	URL              string          `json:"url,omitempty"`
	Subscriptions    []string        `json:"subscriptions"`
	BreakerState     string          `json:"breaker_state"`
	LastConnected    time.Time       `json:"last_connected,omitempty"`
	ConnectionUptime time.Duration   `json:"connection_uptime"`
	Metrics          ClientMetrics   `json:"metrics"`
}

// ClientMetrics counts traffic seen by the client
type ClientMetrics struct {
	PublicationsReceived int64     `json:"publications_received"`
	PublicationsDropped  int64     `json:"publications_dropped"`
	CallsSent            int64     `json:"calls_sent"`
	CallsFailed          int64     `json:"calls_failed"`
	LastPublication      time.Time `json:"last_publication,omitempty"`
}

// RealtimeConfig represents configuration for the realtime client
type RealtimeConfig struct {
	ClientName     string
	Token          string
	TokenSecret    string
	TokenTTL       time.Duration
	ConnectTimeout time.Duration
	CallTimeout    time.Duration
	WriteTimeout   time.Duration

	// Circuit breaker
	BreakerInterval time.Duration
	BreakerTimeout  time.Duration
}

// DefaultRealtimeConfig returns settings suitable for a local backend
func DefaultRealtimeConfig() *RealtimeConfig {
	return &RealtimeConfig{
		ClientName:      "athletics-dashboard",
		TokenTTL:        time.Hour,
		ConnectTimeout:  10 * time.Second,
		CallTimeout:     30 * time.Second,
		WriteTimeout:    10 * time.Second,
		BreakerInterval: time.Minute,
		BreakerTimeout:  30 * time.Second,
	}
}
