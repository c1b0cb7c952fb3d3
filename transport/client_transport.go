package transport

import (
	"net"
	"sync"
	"sync/atomic"
	"time"

	"doordb/protocol"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// ClientTransport is a Channel over a single stream connection.
//
// Call is safe for concurrent use. Each request gets a sequence number, and a
// background goroutine (recvLoop) reads response frames and hands each one to the
// caller waiting on that number:
//
//	goroutine-1 ──Call(seq=1)──┐
//	goroutine-2 ──Call(seq=2)──┼──→ one conn ──→ server
//	goroutine-3 ──Call(seq=3)──┘
//
//	recvLoop: ←── response(seq=2) → pending[2] → goroutine-2 returns
type ClientTransport struct {
	conn    net.Conn
	opts    SocketOptions
	seq     uint32     // last sequence number used (protected by sending)
	pending sync.Map   // map[uint32]chan result
	sending sync.Mutex // serializes frame writes and guards err
	err     error      // set once the connection is unusable
	closed  atomic.Bool
	done    chan struct{}
}

type result struct {
	body []byte
	err  error
}

// NewClientTransport wraps an established connection and starts its receive loop,
// plus a heartbeat loop if a heartbeat interval is configured.
func NewClientTransport(conn net.Conn, opts ...SocketOption) *ClientTransport {
	o := defaultSocketOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return newClientTransport(conn, o)
}

func newClientTransport(conn net.Conn, opts SocketOptions) *ClientTransport {
	t := &ClientTransport{
		conn: conn,
		opts: opts,
		done: make(chan struct{}),
	}
	go t.recvLoop()
	if opts.Heartbeat > 0 {
		go t.heartbeatLoop(opts.Heartbeat)
	}
	return t
}

// Call sends req as one request frame and waits for the matching response frame.
func (t *ClientTransport) Call(req []byte) ([]byte, error) {
	seq, ch, err := t.send(req)
	if err != nil {
		return nil, err
	}

	var timeout <-chan time.Time
	if t.opts.CallTimeout > 0 {
		timer := time.NewTimer(t.opts.CallTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case r := <-ch:
		return r.body, r.err
	case <-timeout:
		t.pending.Delete(seq)
		return nil, errors.Wrapf(ErrTimeout, "seq %d after %s", seq, t.opts.CallTimeout)
	}
}

func (t *ClientTransport) send(req []byte) (uint32, <-chan result, error) {
	t.sending.Lock()
	defer t.sending.Unlock()

	if t.err != nil {
		return 0, nil, t.err
	}

	t.seq++
	seq := t.seq

	// Register before writing so recvLoop cannot see the response first.
	ch := make(chan result, 1)
	t.pending.Store(seq, ch)

	header := protocol.Header{
		CodecType: t.opts.CodecType,
		MsgType:   protocol.MsgTypeRequest,
		Seq:       seq,
		BodyLen:   uint32(len(req)),
	}
	if err := protocol.Encode(t.conn, &header, req); err != nil {
		t.pending.Delete(seq)
		return 0, nil, errors.Wrap(err, "write request")
	}
	return seq, ch, nil
}

// recvLoop is the only reader of the connection; frame boundaries can only be
// parsed sequentially.
func (t *ClientTransport) recvLoop() {
	for {
		header, body, err := protocol.Decode(t.conn)
		if err != nil {
			t.fail(err)
			return
		}

		if header.MsgType != protocol.MsgTypeResponse {
			t.opts.Logger.Warn("unexpected frame",
				zap.Uint8("msg_type", uint8(header.MsgType)),
				zap.Uint32("seq", header.Seq))
			continue
		}

		if ch, ok := t.pending.LoadAndDelete(header.Seq); ok {
			ch.(chan result) <- result{body: body}
		}
	}
}

// fail marks the connection unusable and fails every pending call with the cause.
func (t *ClientTransport) fail(cause error) {
	var err error
	if t.closed.Load() {
		err = ErrClosed
	} else {
		err = errors.Wrap(cause, "connection lost")
		t.opts.Logger.Warn("connection lost", zap.String("remote", t.remoteAddr()), zap.Error(cause))
		t.conn.Close()
	}

	t.sending.Lock()
	if t.err == nil {
		t.err = err
	}
	t.sending.Unlock()

	t.pending.Range(func(key, value any) bool {
		if ch, ok := t.pending.LoadAndDelete(key); ok {
			ch.(chan result) <- result{err: err}
		}
		return true
	})
}

// Close closes the connection. Pending and later calls fail with ErrClosed.
func (t *ClientTransport) Close() error {
	if !t.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(t.done)
	t.sending.Lock()
	if t.err == nil {
		t.err = ErrClosed
	}
	t.sending.Unlock()
	return t.conn.Close()
}

func (t *ClientTransport) remoteAddr() string {
	if addr := t.conn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return ""
}

// heartbeatLoop keeps an idle connection alive. Heartbeat frames have no body.
func (t *ClientTransport) heartbeatLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-t.done:
			return
		case <-ticker.C:
		}

		header := &protocol.Header{
			CodecType: t.opts.CodecType,
			MsgType:   protocol.MsgTypeHeartbeat,
		}
		t.sending.Lock()
		err := t.err
		if err == nil {
			err = protocol.Encode(t.conn, header, nil)
		}
		t.sending.Unlock()
		if err != nil {
			return
		}
	}
}
