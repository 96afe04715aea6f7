// Package feed implements C1, the mempool feed client: a persistent push
// subscription to a provider of pending transactions, a reconnection state
// machine with exponential backoff, and a JSON-RPC-ish frame parser. It
// generalizes the teacher's functional-options, constructor-injected
// client idiom (txlistener.NewTxListener(client, WithPollInterval(...),
// WithTimeout(...))) from a polling listener to a push-subscription one.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/arbcore/detector/internal/config"
	"github.com/arbcore/detector/internal/domain"
	"github.com/arbcore/detector/internal/errs"
	"github.com/arbcore/detector/internal/logging"
	"github.com/gorilla/websocket"
)

// conn is the subset of *websocket.Conn this package depends on, so tests
// can substitute a fake transport without opening a real socket.
type conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// dialer opens a new transport connection. The default wraps
// websocket.DefaultDialer.Dial.
type dialer func(ctx context.Context, endpoint string, header map[string][]string) (conn, error)

func defaultDialer(ctx context.Context, endpoint string, header map[string][]string) (conn, error) {
	h := make(map[string][]string, len(header))
	for k, v := range header {
		h[k] = v
	}
	c, _, err := websocket.DefaultDialer.DialContext(ctx, endpoint, h)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Option configures a Client at construction, mirroring the teacher's
// functional-options pattern (pkg/txlistener.WithPollInterval /
// WithTimeout).
type Option func(*Client)

// WithDialer overrides the transport dialer; used by tests.
func WithDialer(d dialer) Option {
	return func(c *Client) { c.dial = d }
}

// WithLogger overrides the default no-op logger.
func WithLogger(l logging.Logger) Option {
	return func(c *Client) { c.log = l }
}

// Client is the C1 feed client.
type Client struct {
	cfg *config.FeedConfig
	log logging.Logger
	dial dialer

	mu          sync.Mutex
	state       State
	conn        conn
	subID       string
	disconnectedExplicitly bool
	reconnectGen int64
	attempt      int

	health *healthTracker
	bus    *bus

	allowlist map[string]struct{}

	readLoopDone chan struct{}
}

// NewClient constructs a feed client from its typed config, mirroring
// NewBlackhole's pattern of taking every collaborator as an explicit
// constructor argument.
func NewClient(cfg *config.FeedConfig, opts ...Option) *Client {
	c := &Client{
		cfg:    cfg,
		log:    logging.Nop{},
		dial:   defaultDialer,
		state:  StateDisconnected,
		health: newHealthTracker(),
		bus:    newBus(),
	}
	if len(cfg.RouterAllowlist) > 0 {
		c.allowlist = make(map[string]struct{}, len(cfg.RouterAllowlist))
		for _, addr := range cfg.RouterAllowlist {
			c.allowlist[strings.ToLower(addr)] = struct{}{}
		}
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Subscribe registers a handler set. Returns an unsubscribe function.
func (c *Client) Subscribe(h *Handlers) (unsubscribe func()) {
	return c.bus.Subscribe(h)
}

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// GetHealth returns the current health snapshot.
func (c *Client) GetHealth() Health {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.health.snapshot(c.state)
}

// Connect is idempotent: calling it while already connected or connecting
// is a no-op (spec §4.1).
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.state == StateConnected || c.state == StateConnecting {
		c.mu.Unlock()
		return nil
	}
	c.disconnectedExplicitly = false
	c.state = StateConnecting
	c.mu.Unlock()

	return c.dialAndRun(ctx)
}

func (c *Client) dialAndRun(ctx context.Context) error {
	header := map[string][]string{}
	if c.cfg.AuthHeader != "" {
		header["Authorization"] = []string{c.cfg.AuthHeader}
	}

	cn, err := c.dial(ctx, c.cfg.Endpoint, header)
	if err != nil {
		c.mu.Lock()
		c.state = StateDisconnected
		c.mu.Unlock()
		wrapped := errs.New(errs.FeedConnectFailed, "feed.Connect", err)
		c.bus.emitError(wrapped)
		return wrapped
	}

	c.mu.Lock()
	c.conn = cn
	c.state = StateConnected
	c.attempt = 0
	c.health.connectedSince = time.Now()
	c.readLoopDone = make(chan struct{})
	c.mu.Unlock()

	c.bus.emitConnected()

	go c.readLoop(ctx)
	return nil
}

// Disconnect is idempotent and never returns an error. It bumps the
// reconnect generation; a pending reconnect timer is not stopped, but when
// it fires its callback sees the stale generation and returns without
// reconnecting (spec §4.1, §5).
func (c *Client) Disconnect() {
	c.mu.Lock()
	c.disconnectedExplicitly = true
	c.reconnectGen++ // invalidate any in-flight reconnect timer
	cn := c.conn
	c.conn = nil
	prevState := c.state
	c.state = StateDisconnected
	c.mu.Unlock()

	if cn != nil {
		_ = cn.Close()
	}
	if prevState != StateDisconnected {
		c.bus.emitDisconnected("explicit disconnect")
	}
}

// SubscribePendingTxs sends the subscription frame. Only valid while
// connected (spec §4.1).
func (c *Client) SubscribePendingTxs() error {
	c.mu.Lock()
	if c.state != StateConnected {
		c.mu.Unlock()
		return fmt.Errorf("subscribePendingTxs: not connected (state=%s)", c.state)
	}
	cn := c.conn
	c.mu.Unlock()

	frame := map[string]any{
		"method": "eth_subscribe",
		"params": []any{"newPendingTransactions", map[string]any{
			"chains":          c.cfg.Chains,
			"routerAllowlist": c.cfg.RouterAllowlist,
		}},
	}
	payload, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("subscribePendingTxs: %w", err)
	}
	if err := cn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return errs.New(errs.FeedConnectFailed, "feed.SubscribePendingTxs", err)
	}
	return nil
}

func (c *Client) readLoop(ctx context.Context) {
	c.mu.Lock()
	cn := c.conn
	done := c.readLoopDone
	c.mu.Unlock()
	defer close(done)

	for {
		_, msg, err := cn.ReadMessage()
		if err != nil {
			c.handleDisconnect(ctx, err)
			return
		}
		c.handleFrame(msg)
	}
}

func (c *Client) handleFrame(msg []byte) {
	var env frameEnvelope
	if err := json.Unmarshal(msg, &env); err != nil {
		c.log.Debugf("feed: malformed frame dropped: %v", err)
		c.mu.Lock()
		c.health.errorCount++
		c.mu.Unlock()
		return
	}

	c.mu.Lock()
	c.health.messagesReceived++
	c.health.lastMessageAt = time.Now()
	c.mu.Unlock()

	switch classify(&env) {
	case frameConfirmation:
		var conf subscriptionConfirmation
		if err := json.Unmarshal(msg, &conf); err != nil {
			c.log.Debugf("feed: malformed confirmation dropped: %v", err)
			return
		}
		c.mu.Lock()
		c.subID = conf.Result
		c.mu.Unlock()
		c.log.Infof("feed: subscription confirmed id=%s", conf.Result)

	case framePush:
		var push subscriptionPush
		if err := json.Unmarshal(msg, &push); err != nil {
			c.log.Debugf("feed: malformed push dropped: %v", err)
			return
		}
		tx, err := toRawTx(push.Params.Result.TxHash, push.Params.Result.TxContents)
		if err != nil {
			c.log.Debugf("feed: unparseable tx payload dropped: %v", err)
			return
		}
		if c.filtered(tx) {
			return
		}
		c.mu.Lock()
		c.health.pendingTxCount++
		c.mu.Unlock()
		c.bus.emitPendingTx(tx)

	case frameErrorKind:
		wrapped := c.classifyError(env.Error)
		c.mu.Lock()
		c.health.errorCount++
		c.mu.Unlock()
		c.bus.emitError(wrapped)

	default:
		c.log.Debugf("feed: unrecognized frame shape dropped")
	}
}

func (c *Client) classifyError(fe *frameError) error {
	msg := strings.ToLower(fe.Message)
	if strings.Contains(msg, "rate limit") || fe.Code == 429 {
		c.log.Warnf("feed: rate limited: %s", fe.Message)
		return errs.New(errs.FeedRateLimited, "feed.frame", fmt.Errorf("%s (code %d)", fe.Message, fe.Code))
	}
	c.log.Errorf("feed: provider error: %s", fe.Message)
	return errs.New(errs.FeedConnectFailed, "feed.frame", fmt.Errorf("%s (code %d)", fe.Message, fe.Code))
}

// filtered reports whether tx should be dropped per the router allow-list
// configured for this feed (spec §4.1 optional filters).
func (c *Client) filtered(tx *domain.RawPendingTransaction) bool {
	if c.allowlist == nil || tx.To == nil {
		return false
	}
	_, ok := c.allowlist[strings.ToLower(tx.To.Hex())]
	return !ok
}

func (c *Client) handleDisconnect(ctx context.Context, cause error) {
	c.mu.Lock()
	explicit := c.disconnectedExplicitly
	if explicit {
		c.mu.Unlock()
		return
	}
	c.state = StateReconnecting
	gen := c.reconnectGen
	c.mu.Unlock()

	c.bus.emitDisconnected(cause.Error())
	c.scheduleReconnect(ctx, gen)
}

func (c *Client) scheduleReconnect(ctx context.Context, gen int64) {
	c.mu.Lock()
	if c.reconnectGen != gen {
		c.mu.Unlock()
		return
	}
	c.attempt++
	attempt := c.attempt
	maxAttempts := c.cfg.MaxReconnects
	c.mu.Unlock()

	if maxAttempts > 0 && attempt > maxAttempts {
		c.bus.emitError(errs.New(errs.FeedMaxReconnects, "feed.reconnect", fmt.Errorf("exceeded %d attempts", maxAttempts)))
		return
	}

	backoff := c.backoffFor(attempt)
	timer := time.AfterFunc(backoff, func() {
		c.mu.Lock()
		if c.reconnectGen != gen {
			c.mu.Unlock()
			return // disconnect() fired after this timer was scheduled
		}
		c.state = StateConnecting
		c.health.reconnectCount++
		c.mu.Unlock()

		if err := c.dialAndRun(ctx); err != nil {
			c.scheduleReconnect(ctx, gen)
		}
	})
	_ = timer
}

func (c *Client) backoffFor(attempt int) time.Duration {
	base := c.cfg.BackoffBase
	if base <= 0 {
		base = 500 * time.Millisecond
	}
	mult := c.cfg.BackoffMult
	if mult <= 0 {
		mult = 2.0
	}
	d := float64(base)
	for i := 1; i < attempt; i++ {
		d *= mult
	}
	return time.Duration(d)
}
