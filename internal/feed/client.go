// Package feed ingests live candles over websocket into the candle store.
// The feed is a producer collaborator: the replay core never sees it, only
// the candle history it leaves behind.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"token-replay-lab/internal/domain"
	"token-replay-lab/internal/observability"
)

// ClientConfig configures websocket client behavior.
type ClientConfig struct {
	// ReconnectDelay is the initial delay before a reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay caps the exponential backoff between attempts.
	MaxReconnectDelay time.Duration
	// PingInterval is the interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is the timeout for reading messages.
	ReadTimeout time.Duration
	// WriteTimeout is the timeout for writing messages.
	WriteTimeout time.Duration
}

// DefaultClientConfig returns the default websocket configuration.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
}

// Subscription names the candle series a client consumes.
type Subscription struct {
	Tokens     []string          `json:"tokens"`
	Resolution domain.Resolution `json:"resolution"`
}

// CandleMessage is one candle frame from the feed.
type CandleMessage struct {
	Token      string            `json:"token"`
	Resolution domain.Resolution `json:"resolution"`
	Candle     domain.Candle     `json:"candle"`
}

type subscribeRequest struct {
	Op         string            `json:"op"`
	Tokens     []string          `json:"tokens"`
	Resolution domain.Resolution `json:"resolution"`
}

// Client consumes candle frames from a websocket feed. It reconnects with
// exponential backoff and resubscribes after every reconnect; frames are
// delivered on a single channel with blocking sends so nothing is dropped.
type Client struct {
	endpoint string
	config   ClientConfig
	sub      Subscription

	conn   *websocket.Conn
	connMu sync.Mutex
	closed atomic.Bool

	out  chan CandleMessage
	done chan struct{}
	wg   sync.WaitGroup

	logger *log.Logger
}

// NewClient connects to the feed endpoint and subscribes. The returned client
// is running; consume Messages until Close.
func NewClient(ctx context.Context, endpoint string, sub Subscription, config *ClientConfig) (*Client, error) {
	cfg := DefaultClientConfig()
	if config != nil {
		cfg = *config
	}

	c := &Client{
		endpoint: endpoint,
		config:   cfg,
		sub:      sub,
		out:      make(chan CandleMessage, 1000),
		done:     make(chan struct{}),
		logger:   log.New(os.Stderr, "[feed] ", log.LstdFlags),
	}

	if err := c.connect(ctx); err != nil {
		return nil, err
	}
	if err := c.subscribe(); err != nil {
		c.closeConn()
		return nil, err
	}

	c.wg.Add(1)
	go c.readLoop()

	c.wg.Add(1)
	go c.pingLoop()

	return c, nil
}

// Messages returns the candle frame channel. Closed on Close.
func (c *Client) Messages() <-chan CandleMessage {
	return c.out
}

// Close shuts the client down and closes the message channel.
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil
	}

	close(c.done)

	c.connMu.Lock()
	if c.conn != nil {
		c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.conn.Close()
	}
	c.connMu.Unlock()

	c.wg.Wait()
	close(c.out)
	return nil
}

func (c *Client) connect(ctx context.Context) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, c.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	c.conn = conn
	return nil
}

func (c *Client) subscribe() error {
	req := subscribeRequest{
		Op:         "subscribe",
		Tokens:     c.sub.Tokens,
		Resolution: c.sub.Resolution,
	}

	c.connMu.Lock()
	defer c.connMu.Unlock()

	if c.conn == nil {
		return fmt.Errorf("not connected")
	}
	c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	if err := c.conn.WriteJSON(req); err != nil {
		return fmt.Errorf("write subscribe: %w", err)
	}
	return nil
}

func (c *Client) closeConn() {
	c.connMu.Lock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.connMu.Unlock()
}

// readLoop reads frames and dispatches them, reconnecting on errors.
func (c *Client) readLoop() {
	defer c.wg.Done()

	reconnectDelay := c.config.ReconnectDelay

	for !c.closed.Load() {
		c.connMu.Lock()
		conn := c.conn
		c.connMu.Unlock()

		if conn == nil {
			if !c.reconnect(reconnectDelay) {
				return
			}
			reconnectDelay = reconnectDelay * 2
			if reconnectDelay > c.config.MaxReconnectDelay {
				reconnectDelay = c.config.MaxReconnectDelay
			}
			continue
		}

		conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))

		_, message, err := conn.ReadMessage()
		if err != nil {
			if c.closed.Load() {
				return
			}
			c.logger.Printf("read error, reconnecting: %v", err)
			observability.DefaultMetrics.FeedErrors.WithLabelValues("read").Inc()
			c.closeConn()
			continue
		}

		reconnectDelay = c.config.ReconnectDelay
		c.handleMessage(message)
	}
}

// reconnect waits out the backoff delay, redials, and resubscribes. Returns
// false when the client is shutting down.
func (c *Client) reconnect(delay time.Duration) bool {
	select {
	case <-c.done:
		return false
	case <-time.After(delay):
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := c.connect(ctx); err != nil {
		c.logger.Printf("reconnect failed: %v", err)
		observability.DefaultMetrics.FeedErrors.WithLabelValues("reconnect").Inc()
		return !c.closed.Load()
	}
	observability.DefaultMetrics.FeedReconnects.Inc()

	if err := c.subscribe(); err != nil {
		c.logger.Printf("resubscribe failed: %v", err)
		observability.DefaultMetrics.FeedErrors.WithLabelValues("subscribe").Inc()
		c.closeConn()
	}
	return true
}

// handleMessage parses one frame and delivers it. Malformed frames are
// counted and dropped; the feed must survive a misbehaving producer.
func (c *Client) handleMessage(message []byte) {
	observability.DefaultMetrics.FeedMessages.Inc()

	var msg CandleMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		c.logger.Printf("malformed frame dropped: %v", err)
		observability.DefaultMetrics.FeedErrors.WithLabelValues("decode").Inc()
		return
	}
	if msg.Token == "" || msg.Resolution == "" {
		observability.DefaultMetrics.FeedErrors.WithLabelValues("decode").Inc()
		return
	}

	// Blocking send: the buffer absorbs bursts, the consumer sets the pace.
	select {
	case c.out <- msg:
	case <-c.done:
	}
}

// pingLoop sends periodic ping frames to keep the connection alive.
func (c *Client) pingLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.connMu.Lock()
			if c.conn != nil {
				c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
				if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					// Connection might be dead, the reader handles reconnect.
				}
			}
			c.connMu.Unlock()
		}
	}
}
