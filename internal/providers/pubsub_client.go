package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/stitts-dev/athletics-sim/internal/models"
	"github.com/stitts-dev/athletics-sim/pkg/utils"
)

var pingFrame = []byte("{}")

type stateListenerEntry struct {
	id int
	fn StateListener
}

type messageListenerEntry struct {
	id int
	fn MessageHandler
}

// PubSubClient maintains one logical connection to a publish/subscribe backend.
// It never retries on its own; see ReconnectPolicy.
type PubSubClient struct {
	config         *RealtimeConfig
	logger         *logrus.Logger
	circuitBreaker *gobreaker.CircuitBreaker
	dialer         *websocket.Dialer

	// Connection management
	mu            sync.RWMutex
	state         ConnectionState
	conn          *websocket.Conn
	url           string
	session       uint64
	clientID      string
	connectedAt   time.Time
	subscriptions map[string]MessageHandler
	pending       map[uint64]chan *reply
	writeMu       sync.Mutex
	nextID        uint64

	// Listener management
	listenerMu       sync.Mutex
	nextListenerID   int
	stateListeners   []stateListenerEntry
	messageListeners []messageListenerEntry

	// Metrics
	metrics      ClientMetrics
	metricsMutex sync.Mutex
}

// NewPubSubClient creates a realtime client in the closed state
func NewPubSubClient(config *RealtimeConfig, logger *logrus.Logger) *PubSubClient {
	config = withDefaults(config)

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:     "realtime-transport",
		Interval: config.BreakerInterval,
		Timeout:  config.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker":    name,
				"from_state": from.String(),
				"to_state":   to.String(),
			}).Warn("Realtime transport circuit breaker state changed")
		},
	})

	return &PubSubClient{
		config:         config,
		logger:         logger,
		circuitBreaker: cb,
		dialer:         &websocket.Dialer{HandshakeTimeout: config.ConnectTimeout},
		state:          StateClosed,
		subscriptions:  make(map[string]MessageHandler),
		pending:        make(map[uint64]chan *reply),
	}
}

func withDefaults(config *RealtimeConfig) *RealtimeConfig {
	defaults := DefaultRealtimeConfig()
	if config == nil {
		return defaults
	}
	cfg := *config
	if cfg.ClientName == "" {
		cfg.ClientName = defaults.ClientName
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = defaults.TokenTTL
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = defaults.ConnectTimeout
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = defaults.CallTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaults.WriteTimeout
	}
	if cfg.BreakerInterval <= 0 {
		cfg.BreakerInterval = defaults.BreakerInterval
	}
	if cfg.BreakerTimeout <= 0 {
		cfg.BreakerTimeout = defaults.BreakerTimeout
	}
	return &cfg
}

// Connect dials url and performs the connect handshake. An existing connection
// is torn down first. Failures are reported through state listeners as well as
// the returned error.
func (c *PubSubClient) Connect(ctx context.Context, url string) error {
	c.mu.RLock()
	active := c.conn != nil || c.state == StateConnecting || c.state == StateOpen
	c.mu.RUnlock()
	if active {
		c.Disconnect()
	}

	c.mu.Lock()
	c.session++
	session := c.session
	c.url = url
	c.state = StateConnecting
	c.mu.Unlock()
	c.notifyState(StateChange{State: StateConnecting})

	c.logger.WithField("url", url).Info("Connecting to realtime backend")

	token, err := c.connectionToken()
	if err != nil {
		return c.failConnect(session, CodeConnectFailed, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.ConnectTimeout)
	defer cancel()

	result, err := c.circuitBreaker.Execute(func() (interface{}, error) {
		conn, _, err := c.dialer.DialContext(ctx, url, nil)
		return conn, err
	})
	if err != nil {
		return c.failConnect(session, CodeDialFailed, fmt.Errorf("failed to connect to realtime backend: %w", err))
	}
	conn := result.(*websocket.Conn)

	c.mu.Lock()
	if c.session != session {
		c.mu.Unlock()
		conn.Close()
		return fmt.Errorf("connect to %s superseded: %w", url, utils.ErrTransportClosed)
	}
	c.conn = conn
	c.mu.Unlock()

	go c.readMessages(conn, session)

	r, err := c.request(ctx, &command{Connect: &connectRequest{Token: token, Name: c.config.ClientName}})
	if err != nil {
		return c.failConnect(session, CodeConnectFailed, fmt.Errorf("connect handshake failed: %w", err))
	}
	if r.Connect == nil {
		return c.failConnect(session, CodeConnectFailed, fmt.Errorf("connect handshake: %w", utils.ErrMalformedPayload))
	}

	c.mu.Lock()
	if c.session != session {
		c.mu.Unlock()
		return fmt.Errorf("connect to %s superseded: %w", url, utils.ErrTransportClosed)
	}
	c.clientID = r.Connect.Client
	c.connectedAt = time.Now()
	c.state = StateOpen
	c.mu.Unlock()

	c.logger.WithFields(logrus.Fields{
		"url":       url,
		"client_id": r.Connect.Client,
	}).Info("Realtime connection established")

	c.notifyState(StateChange{State: StateOpen})
	return nil
}

func (c *PubSubClient) failConnect(session uint64, code int, err error) error {
	c.logger.WithError(err).Error("Realtime connection failed")
	c.dropConnection(session, StateError, &TransportError{Code: code, Reason: err.Error()})
	return err
}

// Disconnect unsubscribes every channel, closes the transport and forces the
// closed state. It is a no-op when already closed.
func (c *PubSubClient) Disconnect() {
	c.mu.Lock()
	if c.conn == nil && c.state == StateClosed {
		c.mu.Unlock()
		return
	}
	conn := c.conn
	session := c.session
	channels := make([]string, 0, len(c.subscriptions))
	for ch := range c.subscriptions {
		channels = append(channels, ch)
	}
	c.mu.Unlock()

	if conn != nil {
		sort.Strings(channels)
		for _, ch := range channels {
			cmd := &command{ID: atomic.AddUint64(&c.nextID, 1), Unsubscribe: &channelRequest{Channel: ch}}
			if err := c.write(conn, cmd); err != nil {
				c.logger.WithError(err).WithField("channel", ch).Debug("Failed to unsubscribe during disconnect")
				break
			}
		}
		c.writeControl(conn, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "client disconnect"))
	}

	c.dropConnection(session, StateClosed, nil)
	c.logger.Info("Disconnected from realtime backend")
}

// dropConnection tears down the connection of session and moves to state.
// Stale sessions are ignored.
func (c *PubSubClient) dropConnection(session uint64, state ConnectionState, terr *TransportError) {
	c.mu.Lock()
	if c.session != session {
		c.mu.Unlock()
		return
	}
	c.session++
	conn := c.conn
	c.conn = nil
	c.clientID = ""
	c.state = state
	c.subscriptions = make(map[string]MessageHandler)
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
	c.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	c.notifyState(StateChange{State: state, Err: terr})
}

// Subscribe opens a subscription to channel. It fails when the client is not
// open or the channel is already subscribed.
func (c *PubSubClient) Subscribe(ctx context.Context, channel string, handler MessageHandler) error {
	c.mu.Lock()
	if c.state != StateOpen {
		c.mu.Unlock()
		c.logger.WithField("channel", channel).Error("Cannot subscribe: not connected")
		return fmt.Errorf("subscribe %s: %w", channel, utils.ErrNotConnected)
	}
	if _, ok := c.subscriptions[channel]; ok {
		c.mu.Unlock()
		c.logger.WithField("channel", channel).Warn("Already subscribed to channel")
		return fmt.Errorf("subscribe %s: %w", channel, utils.ErrAlreadySubscribed)
	}
	c.subscriptions[channel] = handler
	c.mu.Unlock()

	if _, err := c.request(ctx, &command{Subscribe: &channelRequest{Channel: channel}}); err != nil {
		c.mu.Lock()
		delete(c.subscriptions, channel)
		c.mu.Unlock()
		c.logger.WithError(err).WithField("channel", channel).Error("Failed to subscribe")
		return fmt.Errorf("subscribe %s: %w", channel, err)
	}

	c.logger.WithField("channel", channel).Info("Subscribed to channel")
	return nil
}

// Unsubscribe closes a subscription. Unknown channels are ignored.
func (c *PubSubClient) Unsubscribe(ctx context.Context, channel string) error {
	c.mu.Lock()
	if _, ok := c.subscriptions[channel]; !ok {
		c.mu.Unlock()
		return nil
	}
	delete(c.subscriptions, channel)
	c.mu.Unlock()

	if _, err := c.request(ctx, &command{Unsubscribe: &channelRequest{Channel: channel}}); err != nil {
		c.logger.WithError(err).WithField("channel", channel).Warn("Unsubscribe was not acknowledged")
		return fmt.Errorf("unsubscribe %s: %w", channel, err)
	}

	c.logger.WithField("channel", channel).Info("Unsubscribed from channel")
	return nil
}

// Call performs an RPC and waits for its reply
func (c *PubSubClient) Call(ctx context.Context, method string, payload interface{}) (json.RawMessage, error) {
	if c.State() != StateOpen {
		return nil, fmt.Errorf("call %s: %w", method, utils.ErrNotConnected)
	}

	var data json.RawMessage
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("call %s: encode payload: %w", method, err)
		}
		data = raw
	}

	c.incrementMetric(func(m *ClientMetrics) { m.CallsSent++ })
	r, err := c.request(ctx, &command{RPC: &rpcRequest{Method: method, Data: data}})
	if err != nil {
		c.incrementMetric(func(m *ClientMetrics) { m.CallsFailed++ })
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	if r.RPC == nil {
		return nil, nil
	}
	return r.RPC.Data, nil
}

// Send issues a fire-and-forget RPC and logs its outcome in the background
func (c *PubSubClient) Send(messageType models.MessageType, payload interface{}) error {
	if c.State() != StateOpen {
		c.logger.WithField("message_type", messageType).Error("Cannot send message: not connected")
		return fmt.Errorf("send %s: %w", messageType, utils.ErrNotConnected)
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), c.config.CallTimeout)
		defer cancel()

		if _, err := c.Call(ctx, string(messageType), payload); err != nil {
			c.logger.WithError(err).WithField("message_type", messageType).Error("Realtime call failed")
			return
		}
		c.logger.WithField("message_type", messageType).Debug("Realtime call acknowledged")
	}()
	return nil
}

// OnStateChange registers a listener and returns its unsubscribe function
func (c *PubSubClient) OnStateChange(listener StateListener) func() {
	c.listenerMu.Lock()
	c.nextListenerID++
	id := c.nextListenerID
	c.stateListeners = append(c.stateListeners, stateListenerEntry{id: id, fn: listener})
	c.listenerMu.Unlock()

	return func() {
		c.listenerMu.Lock()
		defer c.listenerMu.Unlock()
		for i, l := range c.stateListeners {
			if l.id == id {
				c.stateListeners = append(c.stateListeners[:i:i], c.stateListeners[i+1:]...)
				return
			}
		}
	}
}

// AddMessageListener registers a handler for publications on every channel
func (c *PubSubClient) AddMessageListener(listener MessageHandler) func() {
	c.listenerMu.Lock()
	c.nextListenerID++
	id := c.nextListenerID
	c.messageListeners = append(c.messageListeners, messageListenerEntry{id: id, fn: listener})
	c.listenerMu.Unlock()

	return func() {
		c.listenerMu.Lock()
		defer c.listenerMu.Unlock()
		for i, l := range c.messageListeners {
			if l.id == id {
				c.messageListeners = append(c.messageListeners[:i:i], c.messageListeners[i+1:]...)
				return
			}
		}
	}
}

// ConnectionID returns the backend-assigned client id while open
func (c *PubSubClient) ConnectionID() (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.state != StateOpen || c.clientID == "" {
		return "", false
	}
	return c.clientID, true
}

func (c *PubSubClient) State() ConnectionState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Status returns connection health information
func (c *PubSubClient) Status() ConnectionStatus {
	c.mu.RLock()
	status := ConnectionStatus{
		State:         c.state,
		ClientID:      c.clientID,
		URL:           c.url,
		Subscriptions: make([]string, 0, len(c.subscriptions)),
		BreakerState:  c.circuitBreaker.State().String(),
	}
	for ch := range c.subscriptions {
		status.Subscriptions = append(status.Subscriptions, ch)
	}
	if c.state == StateOpen {
		status.LastConnected = c.connectedAt
		status.ConnectionUptime = time.Since(c.connectedAt)
	}
	c.mu.RUnlock()

	sort.Strings(status.Subscriptions)
	c.metricsMutex.Lock()
	status.Metrics = c.metrics
	c.metricsMutex.Unlock()
	return status
}

// request writes cmd with a fresh id and waits for the matching reply
func (c *PubSubClient) request(ctx context.Context, cmd *command) (*reply, error) {
	cmd.ID = atomic.AddUint64(&c.nextID, 1)
	replyCh := make(chan *reply, 1)

	c.mu.Lock()
	conn := c.conn
	if conn == nil {
		c.mu.Unlock()
		return nil, utils.ErrNotConnected
	}
	c.pending[cmd.ID] = replyCh
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, cmd.ID)
		c.mu.Unlock()
	}()

	if err := c.write(conn, cmd); err != nil {
		return nil, fmt.Errorf("write command: %w", err)
	}

	select {
	case r, ok := <-replyCh:
		if !ok {
			return nil, utils.ErrTransportClosed
		}
		if r.Error != nil {
			return nil, &TransportError{Code: r.Error.Code, Reason: r.Error.Message}
		}
		return r, nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %v", utils.ErrRequestTimeout, ctx.Err())
		}
		return nil, ctx.Err()
	}
}

func (c *PubSubClient) write(conn *websocket.Conn, v interface{}) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	return conn.WriteJSON(v)
}

func (c *PubSubClient) writeControl(conn *websocket.Conn, data []byte) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	conn.WriteControl(websocket.CloseMessage, data, time.Now().Add(time.Second))
}

// readMessages handles incoming frames until the connection of session fails
func (c *PubSubClient) readMessages(conn *websocket.Conn, session uint64) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.handleReadError(session, err)
			return
		}

		if bytes.Equal(bytes.TrimSpace(data), pingFrame) {
			c.writePong(conn)
			continue
		}

		var r reply
		if err := json.Unmarshal(data, &r); err != nil {
			c.logger.WithError(err).Error("Failed to parse realtime frame")
			continue
		}

		switch {
		case r.ID != 0:
			c.routeReply(&r)
		case r.Push != nil && r.Push.Disconnect != nil:
			c.logger.WithFields(logrus.Fields{
				"code":   r.Push.Disconnect.Code,
				"reason": r.Push.Disconnect.Reason,
			}).Warn("Realtime backend closed the connection")
			c.dropConnection(session, StateClosed, &TransportError{Code: r.Push.Disconnect.Code, Reason: r.Push.Disconnect.Reason})
			return
		case r.Push != nil && r.Push.Pub != nil:
			c.handlePublication(r.Push.Channel, r.Push.Pub)
		default:
			c.logger.WithField("frame", string(data)).Debug("Unknown realtime frame")
		}
	}
}

func (c *PubSubClient) writePong(conn *websocket.Conn) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, pingFrame); err != nil {
		c.logger.WithError(err).Debug("Failed to answer ping")
	}
}

func (c *PubSubClient) handleReadError(session uint64, err error) {
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		state := StateError
		if closeErr.Code == websocket.CloseNormalClosure || closeErr.Code == websocket.CloseGoingAway {
			state = StateClosed
		}
		c.dropConnection(session, state, &TransportError{Code: closeErr.Code, Reason: closeErr.Text})
		return
	}
	c.dropConnection(session, StateError, &TransportError{Code: CodeReadFailed, Reason: err.Error()})
}

func (c *PubSubClient) routeReply(r *reply) {
	c.mu.Lock()
	ch, ok := c.pending[r.ID]
	delete(c.pending, r.ID)
	c.mu.Unlock()

	if !ok {
		c.logger.WithField("id", r.ID).Debug("Reply for unknown command")
		return
	}
	ch <- r
}

func (c *PubSubClient) handlePublication(channel string, pub *publication) {
	var msg models.Message
	if err := json.Unmarshal(pub.Data, &msg); err != nil || msg.Type == "" {
		c.logger.WithField("channel", channel).Error("Dropping malformed publication")
		c.incrementMetric(func(m *ClientMetrics) { m.PublicationsDropped++ })
		return
	}
	c.incrementMetric(func(m *ClientMetrics) {
		m.PublicationsReceived++
		m.LastPublication = time.Now()
	})

	c.mu.RLock()
	handler := c.subscriptions[channel]
	c.mu.RUnlock()
	if handler != nil {
		handler(channel, &msg)
	}

	c.listenerMu.Lock()
	listeners := make([]messageListenerEntry, len(c.messageListeners))
	copy(listeners, c.messageListeners)
	c.listenerMu.Unlock()

	for _, l := range listeners {
		l.fn(channel, &msg)
	}
}

// notifyState calls state listeners in registration order outside any lock
func (c *PubSubClient) notifyState(change StateChange) {
	c.listenerMu.Lock()
	listeners := make([]stateListenerEntry, len(c.stateListeners))
	copy(listeners, c.stateListeners)
	c.listenerMu.Unlock()

	for _, l := range listeners {
		l.fn(change)
	}
}

func (c *PubSubClient) incrementMetric(update func(m *ClientMetrics)) {
	c.metricsMutex.Lock()
	update(&c.metrics)
	c.metricsMutex.Unlock()
}
