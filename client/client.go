// Package client is the typed doordb client.
//
// Every method performs one round trip:
//
//	build Query → Codec.Encode → Channel.Call → Codec.Decode(Envelope) → narrow Response → return
//
// Failures come back as *Error values whose Kind says where the round trip broke.
// The client never retries and never substitutes a zero value for a failure.
package client

import (
	"time"

	"doordb/message"
	"doordb/metrics"
	"doordb/transport"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Client owns one open channel for its lifetime.
//
// Client adds no locking of its own: it is safe for concurrent use exactly when its
// channel is. The socket channel Dial opens supports concurrent calls.
type Client struct {
	ch   transport.Channel
	opts Options
	id   string
}

// New wraps a channel that is already open.
func New(ch transport.Channel, opts ...Option) *Client {
	return newClient(ch, buildOptions(opts))
}

func newClient(ch transport.Channel, o Options) *Client {
	return &Client{ch: ch, opts: o, id: uuid.NewString()}
}

// Open opens the configured endpoint on t and returns a client that owns the channel.
func Open(t transport.Transport, opts ...Option) (*Client, error) {
	return open(t, buildOptions(opts))
}

func open(t transport.Transport, o Options) (*Client, error) {
	ch, err := t.Open(o.Endpoint)
	if err != nil {
		return nil, &Error{Op: "open", Kind: Transport, Err: err}
	}
	c := newClient(ch, o)
	o.Logger.Debug("client opened", zap.String("client", c.id), zap.String("endpoint", o.Endpoint))
	return c, nil
}

// Dial opens the endpoint over the socket transport, writing the client's codec
// type into every frame.
func Dial(opts ...Option) (*Client, error) {
	o := buildOptions(opts)
	sock := []transport.SocketOption{
		transport.WithCodecType(byte(o.Codec.Type())),
		transport.WithLogger(o.Logger),
	}
	return open(transport.NewSocketTransport(append(sock, o.Socket...)...), o)
}

// Close releases the channel.
func (c *Client) Close() error {
	return c.ch.Close()
}

func (c *Client) TextDelete(key string) (string, error) {
	v, err := roundTrip[message.Text](c, "text_delete", message.TextQuery{Method: message.TextDelete{Key: key}})
	return string(v), err
}

func (c *Client) TextRead(key string) (string, error) {
	v, err := roundTrip[message.Text](c, "text_read", message.TextQuery{Method: message.TextRead{Key: key}})
	return string(v), err
}

func (c *Client) TextWrite(key, value string) (string, error) {
	v, err := roundTrip[message.Text](c, "text_write", message.TextQuery{Method: message.TextWrite{Key: key, Value: value}})
	return string(v), err
}

// CounterQuery applies method to the counter named key and returns the counter value
// the server reports.
func (c *Client) CounterQuery(method message.Method, key string) (uint64, error) {
	v, err := roundTrip[message.Counter](c, "counter_query", message.CounterQuery{Key: key, Method: method})
	return uint64(v), err
}

// roundTrip performs one call and narrows the response to T. It is the only place
// that decides which variant an operation accepts.
func roundTrip[T message.Response](c *Client, op string, q message.Query) (T, error) {
	var zero T
	start := time.Now()
	reqSize, respSize := -1, -1

	fail := func(kind Kind, err error) (T, error) {
		c.opts.Logger.Debug("call failed",
			zap.String("client", c.id),
			zap.String("op", op),
			zap.Stringer("kind", kind),
			zap.Error(err))
		c.opts.Metrics.Observe(op, outcome(kind), time.Since(start), reqSize, respSize)
		return zero, &Error{Op: op, Kind: kind, Err: err}
	}

	req, err := c.opts.Codec.Encode(q)
	if err != nil {
		return fail(Encoding, err)
	}
	reqSize = len(req)

	resp, err := c.ch.Call(req)
	if err != nil {
		return fail(Transport, err)
	}
	respSize = len(resp)

	var env message.Envelope
	if err := c.opts.Codec.Decode(resp, &env); err != nil {
		return fail(Decoding, err)
	}
	if env.Err != nil {
		return fail(Server, env.Err)
	}

	v, ok := env.Response.(T)
	if !ok {
		return fail(UnexpectedVariant, &UnexpectedVariantError{
			Want: message.VariantName(zero),
			Got:  message.VariantName(env.Response),
		})
	}

	c.opts.Metrics.Observe(op, metrics.OutcomeOK, time.Since(start), reqSize, respSize)
	return v, nil
}

func outcome(k Kind) string {
	switch k {
	case Transport:
		return "transport"
	case Encoding:
		return "encoding"
	case Decoding:
		return "decoding"
	case UnexpectedVariant:
		return "unexpected_variant"
	case Server:
		return "server"
	}
	return "other"
}
