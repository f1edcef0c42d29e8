package dispatcher

import (
	"context"
	"courier-route-service/internal/domain"
	"courier-route-service/internal/ports"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1 << 20

	minBackoff = 500 * time.Millisecond
)

var ErrNotConnected = errors.New("dispatcher not connected")

// Client is the courier side of the dispatcher websocket. It implements
// ports.EventSource, ports.OptimizationChannel and ports.StatusReporter.
//
// Inbound frames are handled one at a time on the read goroutine, so
// handlers observe events in arrival order. Outbound writes are serialized.
type Client struct {
	url        string
	driver     string
	header     http.Header
	dialer     *websocket.Dialer
	maxBackoff time.Duration
	readWait   time.Duration

	mu   sync.Mutex
	conn *websocket.Conn

	handlersMu  sync.RWMutex
	onStop      ports.StopEventHandler
	onAnswer    func(ctx context.Context, ans domain.PermutationAnswer)
	onConnected func()
}

type Option func(*Client)

func WithHeader(h http.Header) Option {
	return func(c *Client) { c.header = h }
}

func WithMaxBackoff(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.maxBackoff = d
		}
	}
}

// WithOnConnected registers a hook run after every successful handshake.
func WithOnConnected(fn func()) Option {
	return func(c *Client) { c.onConnected = fn }
}

func NewClient(url, driver string, opts ...Option) *Client {
	c := &Client{
		url:        url,
		driver:     driver,
		dialer:     &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		maxBackoff: 30 * time.Second,
		readWait:   pongWait,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) OnStopEvent(handler ports.StopEventHandler) {
	c.handlersMu.Lock()
	defer c.handlersMu.Unlock()
	c.onStop = handler
}

func (c *Client) OnPermutation(handler func(ctx context.Context, ans domain.PermutationAnswer)) {
	c.handlersMu.Lock()
	defer c.handlersMu.Unlock()
	c.onAnswer = handler
}

// Connected reports whether a dispatcher connection is currently up.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Publish sends matrix-ready. Delivery is at most once: with no connection the
// matrix is dropped and ErrNotConnected returned.
func (c *Client) Publish(ctx context.Context, m domain.DistanceMatrix) error {
	env, err := matrixReady(m)
	if err != nil {
		return err
	}
	return c.send(ctx, env)
}

func (c *Client) StopsChanged(ctx context.Context, generation uint64, size int) error {
	env, err := encode(TypeStopsChanged, stopsChangedData{Size: size}, &generation, "")
	if err != nil {
		return err
	}
	return c.send(ctx, env)
}

func (c *Client) Rejected(ctx context.Context, reason, detail string) error {
	env, err := encode(TypeRejected, rejectedData{Reason: reason, Detail: detail}, nil, "")
	if err != nil {
		return err
	}
	return c.send(ctx, env)
}

func (c *Client) send(ctx context.Context, env Envelope) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return fmt.Errorf("send %s: %w", env.Type, ErrNotConnected)
	}

	deadline := time.Now().Add(writeWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = c.conn.SetWriteDeadline(deadline)

	if err := c.conn.WriteJSON(env); err != nil {
		return fmt.Errorf("send %s: %w", env.Type, err)
	}
	return nil
}

// Run keeps a connection to the dispatcher open until ctx is done,
// reconnecting with exponential backoff.
func (c *Client) Run(ctx context.Context) error {
	backoff := minBackoff

	for {
		conn, _, err := c.dialer.DialContext(ctx, c.url, c.header)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Warn().Err(err).Str("url", c.url).Dur("retry_in", backoff).Msg("dispatcher dial failed")
			if !wait(ctx, backoff) {
				return nil
			}
			backoff = min(backoff*2, c.maxBackoff)
			continue
		}

		backoff = minBackoff
		log.Info().Str("url", c.url).Msg("dispatcher connected")

		err = c.serve(ctx, conn)
		if ctx.Err() != nil {
			return nil
		}
		log.Warn().Err(err).Msg("dispatcher disconnected")

		if !wait(ctx, backoff) {
			return nil
		}
	}
}

func (c *Client) serve(ctx context.Context, conn *websocket.Conn) error {
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	done := make(chan struct{})
	defer func() {
		close(done)
		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
		_ = conn.Close()
	}()

	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
			_ = conn.Close()
		case <-done:
		}
	}()
	go c.keepalive(conn, done)

	if err := c.handshake(ctx); err != nil {
		return err
	}
	if c.onConnected != nil {
		c.onConnected()
	}

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(c.readWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(c.readWait))
	})

	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}
		// Handlers may block for a long time (geocoding a bulk replace), so the
		// deadline starts counting once the frame is handled.
		c.dispatch(ctx, frame)
		_ = conn.SetReadDeadline(time.Now().Add(c.readWait))
	}
}

// handshake announces the driver and asks the dispatcher to resend the stop list.
func (c *Client) handshake(ctx context.Context) error {
	hello, err := encode(TypeHello, helloData{Driver: c.driver}, nil, "")
	if err != nil {
		return err
	}
	if err := c.send(ctx, hello); err != nil {
		return err
	}
	return c.send(ctx, Envelope{Type: TypeSyncRequest})
}

func (c *Client) keepalive(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				log.Debug().Err(err).Msg("dispatcher ping failed")
				return
			}
		}
	}
}

func (c *Client) dispatch(ctx context.Context, frame []byte) {
	ev, err := Decode(frame)
	if err != nil {
		log.Warn().Err(err).Msg("dropping dispatcher message")
		if rerr := c.Rejected(ctx, "malformed_event", err.Error()); rerr != nil {
			log.Debug().Err(rerr).Msg("report malformed event failed")
		}
		return
	}

	c.handlersMu.RLock()
	onStop, onAnswer := c.onStop, c.onAnswer
	c.handlersMu.RUnlock()

	if ans, ok := ev.(domain.PermutationAnswer); ok {
		if onAnswer != nil {
			onAnswer(ctx, ans)
		}
		return
	}
	if onStop != nil {
		onStop(ctx, ev)
	}
}

func wait(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
