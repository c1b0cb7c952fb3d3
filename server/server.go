// Package server hosts the serving half of the doordb protocol: it accepts
// connections, decodes each request frame into a Query, hands it to a Handler
// through the middleware chain, and writes the Envelope back.
//
// Request processing pipeline:
//
//	Accept conn → handleConn (one goroutine reads frames)
//	  → for each request: go handleRequest
//	    → Codec.Decode → middleware chain → Handler.Serve → Codec.Encode → write response
//
// The server stores nothing itself; storage is the Handler's business.
package server

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"doordb/codec"
	"doordb/message"
	"doordb/middleware"
	"doordb/protocol"

	"go.uber.org/zap"
)

type Server struct {
	handler     Handler
	opts        Options
	middlewares []middleware.Middleware
	dispatch    middleware.HandlerFunc // middleware(middleware(...(businessHandler)))

	ctx    context.Context // cancelled on Shutdown
	cancel context.CancelFunc

	mu       sync.Mutex
	listener net.Listener
	conns    map[net.Conn]struct{}

	wg         sync.WaitGroup // in-flight requests
	shutdown   atomic.Bool
	registered atomic.Bool
}

func NewServer(h Handler, opts ...Option) *Server {
	o := Options{Logger: zap.NewNop(), TTL: DefaultTTL}
	for _, opt := range opts {
		opt(&o)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		handler: h,
		opts:    o,
		ctx:     ctx,
		cancel:  cancel,
		conns:   make(map[net.Conn]struct{}),
	}
}

// Use registers a middleware. Middlewares run in the order they are added.
// Use must be called before serving starts.
func (svr *Server) Use(mw middleware.Middleware) {
	svr.middlewares = append(svr.middlewares, mw)
}

// Serve listens on the address and serves until Shutdown. For "unix" the address is
// the socket path, i.e. the channel name clients open.
func (svr *Server) Serve(network, address string) error {
	listener, err := net.Listen(network, address)
	if err != nil {
		return err
	}
	return svr.ServeListener(listener)
}

// ServeListener serves connections accepted on ln until Shutdown.
// It returns nil after Shutdown and the Accept error otherwise.
func (svr *Server) ServeListener(ln net.Listener) error {
	svr.mu.Lock()
	if svr.shutdown.Load() {
		svr.mu.Unlock()
		ln.Close()
		return nil
	}
	svr.listener = ln
	svr.mu.Unlock()

	svr.dispatch = middleware.Chain(svr.middlewares...)(svr.businessHandler)

	if svr.opts.Registry != nil {
		if err := svr.opts.Registry.Register(svr.opts.Name, svr.opts.Instance, svr.opts.TTL); err != nil {
			ln.Close()
			return fmt.Errorf("register %s: %w", svr.opts.Name, err)
		}
		svr.registered.Store(true)
	}
	svr.opts.Logger.Info("serving", zap.String("addr", ln.Addr().String()))

	for {
		conn, err := ln.Accept()
		if err != nil {
			// Shutdown closes the listener; that Accept error is not a failure.
			if svr.shutdown.Load() {
				return nil
			}
			return err
		}
		if !svr.track(conn) {
			conn.Close()
			return nil
		}
		go svr.handleConn(conn)
	}
}

func (svr *Server) track(conn net.Conn) bool {
	svr.mu.Lock()
	defer svr.mu.Unlock()
	if svr.shutdown.Load() {
		return false
	}
	svr.conns[conn] = struct{}{}
	return true
}

func (svr *Server) untrack(conn net.Conn) {
	svr.mu.Lock()
	delete(svr.conns, conn)
	svr.mu.Unlock()
}

// handleConn reads frames sequentially and answers each request in its own goroutine.
// writeMu keeps concurrent responses on this connection from interleaving.
func (svr *Server) handleConn(conn net.Conn) {
	defer svr.untrack(conn)
	defer conn.Close()
	writeMu := &sync.Mutex{}
	for {
		header, body, err := protocol.Decode(conn)
		if err != nil {
			break
		}

		if header.MsgType == protocol.MsgTypeHeartbeat {
			continue
		}
		if header.MsgType != protocol.MsgTypeRequest {
			svr.opts.Logger.Warn("dropping non-request frame", zap.Uint8("msg_type", uint8(header.MsgType)))
			continue
		}
		if !svr.begin() {
			break
		}
		go svr.handleRequest(header, body, conn, writeMu)
	}
}

// begin counts a new in-flight request unless shutdown has started. Shutdown sets
// the flag under svr.mu before waiting, so every Add happens before that Wait.
func (svr *Server) begin() bool {
	svr.mu.Lock()
	defer svr.mu.Unlock()
	if svr.shutdown.Load() {
		return false
	}
	svr.wg.Add(1)
	return true
}

func (svr *Server) handleRequest(header *protocol.Header, body []byte, conn net.Conn, writeMu *sync.Mutex) {
	defer svr.wg.Done()

	// protocol.Decode has already rejected unknown codec types.
	c, err := codec.GetCodec(codec.CodecType(header.CodecType))
	if err != nil {
		svr.opts.Logger.Error("no codec for frame", zap.Error(err))
		return
	}

	var env message.Envelope
	var q message.Query
	if err := c.Decode(body, &q); err != nil {
		svr.opts.Logger.Warn("malformed query", zap.Uint32("seq", header.Seq), zap.Error(err))
		env = message.Fail("malformed query: " + err.Error())
	} else {
		env = svr.dispatch(svr.ctx, q)
	}

	result, err := c.Encode(env)
	if err != nil {
		svr.opts.Logger.Error("failed to encode reply", zap.String("query", message.VariantName(q)), zap.Error(err))
		if result, err = c.Encode(message.Fail("internal error: " + err.Error())); err != nil {
			return
		}
	}

	writeMu.Lock()
	defer writeMu.Unlock()

	replyHeader := protocol.Header{
		CodecType: header.CodecType,
		MsgType:   protocol.MsgTypeResponse,
		Seq:       header.Seq,
		BodyLen:   uint32(len(result)),
	}
	if err := protocol.Encode(conn, &replyHeader, result); err != nil {
		svr.opts.Logger.Warn("failed to write reply", zap.Uint32("seq", header.Seq), zap.Error(err))
	}
}

// businessHandler is the innermost HandlerFunc: it calls the Handler and turns its
// result into an Envelope.
func (svr *Server) businessHandler(ctx context.Context, q message.Query) message.Envelope {
	r, err := svr.handler.Serve(ctx, q)
	if err != nil {
		return message.Fail(err.Error())
	}
	if r == nil {
		return message.Fail("handler returned no response")
	}
	return message.Ok(r)
}

// Addr returns the listener address, or nil before serving starts.
func (svr *Server) Addr() net.Addr {
	svr.mu.Lock()
	defer svr.mu.Unlock()
	if svr.listener == nil {
		return nil
	}
	return svr.listener.Addr()
}

// Shutdown stops the server:
//  1. Deregister from the registry so clients stop resolving to it
//  2. Close the listener
//  3. Wait for in-flight requests, at most timeout
//  4. Cancel the handlers' context and close the remaining connections
func (svr *Server) Shutdown(timeout time.Duration) error {
	if svr.registered.Load() {
		if err := svr.opts.Registry.Deregister(svr.opts.Name, svr.opts.Instance.Addr); err != nil {
			svr.opts.Logger.Warn("deregister failed", zap.Error(err))
		}
	}

	// Set the flag before closing the listener so Serve sees the Accept error as intentional.
	svr.mu.Lock()
	svr.shutdown.Store(true)
	if svr.listener != nil {
		svr.listener.Close()
	}
	svr.mu.Unlock()

	done := make(chan struct{})
	go func() {
		svr.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-time.After(timeout):
		err = fmt.Errorf("timeout waiting for ongoing requests to finish")
	}

	svr.cancel()
	svr.mu.Lock()
	for conn := range svr.conns {
		conn.Close()
	}
	svr.mu.Unlock()
	return err
}
