package broker

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/eclipse/paho.golang/paho"
	"go.uber.org/zap"

	"github.com/eurus-project/eurus/internal/v1/logging"
	"github.com/eurus-project/eurus/internal/v1/metrics"
)

const (
	defaultKeepAlive = 20
	defaultRetries   = 12
	defaultRetryWait = 5000 * time.Millisecond
	streamBufferSize = 25
)

// DialFunc opens the transport the MQTT session runs over. Tests inject
// their own; production uses net.Dial.
type DialFunc func(ctx context.Context, server string) (net.Conn, error)

func netDial(ctx context.Context, server string) (net.Conn, error) {
	var d net.Dialer
	return d.DialContext(ctx, "tcp", server)
}

// Options configures one broker session.
type Options struct {
	Server   string
	ClientID string
	Username string
	Password string

	// Last-will message the broker publishes if the session dies without a
	// clean disconnect.
	WillTopic   string
	WillPayload string

	KeepAlive uint16

	// Dial overrides the transport; nil means plain TCP.
	Dial DialFunc

	// Retries and RetryWait shape the connect/reconnect schedule. Zero
	// values take the defaults; tests shrink them.
	Retries   int
	RetryWait time.Duration
}

func (o *Options) fill() {
	if o.KeepAlive == 0 {
		o.KeepAlive = defaultKeepAlive
	}
	if o.Dial == nil {
		o.Dial = netDial
	}
	if o.Retries == 0 {
		o.Retries = defaultRetries
	}
	if o.RetryWait == 0 {
		o.RetryWait = defaultRetryWait
	}
}

// Message is one inbound publish.
type Message struct {
	Topic   string
	Payload []byte
}

// Client is an MQTT v5 session with an unbounded inbound stream. Inbound
// publishes land on an internal queue that a pump goroutine feeds into the
// stream channel, so the paho receive loop never blocks and nothing is shed.
// A nil entry on the stream signals that the session was reset and needs a
// Reconnect; the channel closes only on Disconnect.
type Client struct {
	opts Options

	mu           sync.Mutex
	inner        *paho.Client
	connected    bool
	queue        []*Message
	streamClosed bool

	stream chan *Message
	wake   chan struct{}
	quit   chan struct{}
}

// NewClient builds an unconnected client.
func NewClient(opts Options) *Client {
	opts.fill()
	c := &Client{
		opts:   opts,
		stream: make(chan *Message, streamBufferSize),
		wake:   make(chan struct{}, 1),
		quit:   make(chan struct{}),
	}
	go c.pump()
	return c
}

// Connect dials the broker and opens the session in a single attempt;
// retrying is Reconnect's job. A refusal from a reachable broker surfaces as
// ErrAuthFailed, everything else as ErrBrokerUnavailable.
func (c *Client) Connect(ctx context.Context) error {
	err := c.connectOnce(ctx)
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrAuthFailed) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrBrokerUnavailable, err)
}

func (c *Client) connectOnce(ctx context.Context) error {
	conn, err := c.opts.Dial(ctx, c.opts.Server)
	if err != nil {
		return err
	}

	inner := paho.NewClient(paho.ClientConfig{
		Conn: conn,
		OnPublishReceived: []func(paho.PublishReceived) (bool, error){
			c.onPublish,
		},
		OnClientError:      func(error) { c.reset() },
		OnServerDisconnect: func(*paho.Disconnect) { c.reset() },
	})

	cp := &paho.Connect{
		ClientID:   c.opts.ClientID,
		CleanStart: true,
		KeepAlive:  c.opts.KeepAlive,
	}
	if c.opts.Username != "" {
		cp.Username = c.opts.Username
		cp.UsernameFlag = true
	}
	if c.opts.Password != "" {
		cp.Password = []byte(c.opts.Password)
		cp.PasswordFlag = true
	}
	if c.opts.WillTopic != "" {
		cp.WillMessage = &paho.WillMessage{
			Topic:   c.opts.WillTopic,
			Payload: []byte(c.opts.WillPayload),
			QoS:     2,
		}
	}

	ca, err := inner.Connect(ctx, cp)
	if err != nil {
		_ = conn.Close()
		return err
	}
	if ca.ReasonCode != 0 {
		_ = conn.Close()
		return fmt.Errorf("%w: reason code %d", ErrAuthFailed, ca.ReasonCode)
	}

	c.mu.Lock()
	c.inner = inner
	c.connected = true
	c.mu.Unlock()
	return nil
}

// Subscribe registers the given topics at QoS 2. On any rejection the
// session is torn down so the caller never operates half-subscribed.
func (c *Client) Subscribe(ctx context.Context, topics []string) error {
	c.mu.Lock()
	inner := c.inner
	connected := c.connected
	c.mu.Unlock()
	if !connected || inner == nil {
		return ErrNotConnected
	}

	subs := make([]paho.SubscribeOptions, 0, len(topics))
	for _, t := range topics {
		subs = append(subs, paho.SubscribeOptions{Topic: t, QoS: 2})
	}

	sa, err := inner.Subscribe(ctx, &paho.Subscribe{Subscriptions: subs})
	if err != nil {
		c.Disconnect()
		return fmt.Errorf("%w: %v", ErrSubscribeFailed, err)
	}
	for i, reason := range sa.Reasons {
		if reason >= 0x80 {
			c.Disconnect()
			return fmt.Errorf("%w: topic %q reason code %d", ErrSubscribeFailed, topics[i], reason)
		}
	}
	return nil
}

// Publish sends one message at QoS 2.
func (c *Client) Publish(ctx context.Context, topic string, payload []byte) error {
	c.mu.Lock()
	inner := c.inner
	connected := c.connected
	c.mu.Unlock()
	if !connected || inner == nil {
		return ErrNotConnected
	}

	_, err := inner.Publish(ctx, &paho.Publish{
		Topic:   topic,
		QoS:     2,
		Payload: payload,
	})
	if err != nil {
		metrics.PublishFailures.Inc()
		return fmt.Errorf("%w: %v", ErrPublishFailed, err)
	}
	return nil
}

// Stream exposes the inbound messages. A nil entry means the session reset;
// the channel closes only when Disconnect runs.
func (c *Client) Stream() <-chan *Message {
	return c.stream
}

// IsConnected reports whether the session is believed live.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Reconnect re-dials, re-opens the session and restores the given
// subscriptions, retrying per the configured schedule (12 attempts spaced
// 5000 ms apart by default). Success on the first attempt that connects.
func (c *Client) Reconnect(ctx context.Context, topics []string) error {
	c.mu.Lock()
	c.connected = false
	c.inner = nil
	c.mu.Unlock()

	var lastErr error
	for attempt := 0; attempt < c.opts.Retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.opts.RetryWait):
			}
		}
		metrics.ReconnectAttempts.Inc()

		err := c.connectOnce(ctx)
		if err == nil {
			return c.Subscribe(ctx, topics)
		}
		if errors.Is(err, ErrAuthFailed) {
			return err
		}
		lastErr = err
		logging.Warn(ctx, "broker reconnect attempt failed",
			zap.Int("attempt", attempt+1), zap.Error(err))
	}
	return fmt.Errorf("%w: %v", ErrBrokerUnavailable, lastErr)
}

// Disconnect closes the session cleanly, stops the pump, and closes the
// stream. Safe to call more than once.
func (c *Client) Disconnect() {
	c.mu.Lock()
	inner := c.inner
	connected := c.connected
	c.inner = nil
	c.connected = false
	closed := c.streamClosed
	c.streamClosed = true
	c.mu.Unlock()

	if connected && inner != nil {
		_ = inner.Disconnect(&paho.Disconnect{ReasonCode: 0})
	}
	if !closed {
		close(c.quit)
	}
}

func (c *Client) onPublish(pr paho.PublishReceived) (bool, error) {
	msg := &Message{
		Topic:   pr.Packet.Topic,
		Payload: pr.Packet.Payload,
	}
	c.push(msg)
	return true, nil
}

// reset marks the session dead and puts the nil sentinel on the stream so
// the consumer knows to reconnect.
func (c *Client) reset() {
	c.mu.Lock()
	wasConnected := c.connected
	c.connected = false
	c.inner = nil
	c.mu.Unlock()

	if wasConnected {
		c.push(nil)
	}
}

// push enqueues one stream entry. The queue is unbounded so QoS 2-delivered
// messages are never shed, whatever the consumer's pace.
func (c *Client) push(msg *Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.streamClosed {
		return
	}
	c.queue = append(c.queue, msg)
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// pump moves queued entries onto the stream channel in arrival order and
// closes the stream once Disconnect fires.
func (c *Client) pump() {
	defer close(c.stream)
	for {
		c.mu.Lock()
		pending := c.queue
		c.queue = nil
		c.mu.Unlock()

		for _, msg := range pending {
			select {
			case c.stream <- msg:
			case <-c.quit:
				return
			}
		}

		select {
		case <-c.wake:
		case <-c.quit:
			return
		}
	}
}
