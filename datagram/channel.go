// File: datagram/channel.go
// Package datagram implements typed frame channels over UDP sockets.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// A FrameChannel turns one UDP socket plus one marshaller into a duplex
// channel of typed frames. Receive decodes into values immediately, so
// no pooled memory escapes the receive loop; send encodes into a pooled
// segment sized by the marshaller's length hint. One send loop drains a
// single queue, which makes delivery FIFO by enqueue order across peers.

package datagram

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"sync"

	"github.com/momentics/pipebridge/api"
	"github.com/momentics/pipebridge/control"
	"github.com/momentics/pipebridge/pool"
)

const (
	// DefaultMaxDatagram caps the receive window per datagram.
	DefaultMaxDatagram = 64 * 1024

	// DefaultQueueDepth bounds the inbound and outbound frame queues.
	DefaultQueueDepth = 256
)

// Options tunes a frame channel. The zero value selects the defaults.
type Options struct {
	// Pools provides encode/receive segments; nil uses the process-wide
	// manager.
	Pools *pool.Manager

	// MaxDatagram caps the bytes read per datagram; longer datagrams
	// surface truncated.
	MaxDatagram int

	// InboundFrames bounds the decoded receive queue. When it is full
	// further datagrams are dropped and counted, matching UDP loss
	// semantics instead of stalling the socket.
	InboundFrames int

	// OutboundFrames bounds the send queue.
	OutboundFrames int

	// Counters receives channel accounting; nil uses a private set.
	Counters *control.CounterSet
}

func (o Options) withDefaults() Options {
	if o.Pools == nil {
		o.Pools = pool.DefaultManager()
	}
	if o.MaxDatagram <= 0 {
		o.MaxDatagram = DefaultMaxDatagram
	}
	if o.InboundFrames <= 0 {
		o.InboundFrames = DefaultQueueDepth
	}
	if o.OutboundFrames <= 0 {
		o.OutboundFrames = DefaultQueueDepth
	}
	if o.Counters == nil {
		o.Counters = control.NewCounterSet()
	}
	return o
}

// sendReq carries one frame through the send queue; result is buffered
// so the loop never blocks on delivery.
type sendReq[T any] struct {
	frame  api.Frame[T]
	result chan error
}

// FrameChannel is a duplex typed frame channel over one UDP socket.
type FrameChannel[T any] struct {
	conn       *net.UDPConn
	codec      api.Marshaller[T]
	pools      *pool.Manager
	maxGram    int
	serverMode bool
	fixedPeer  netip.AddrPort

	inbound  chan api.Frame[T]
	outbound chan sendReq[T]

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
	wg     sync.WaitGroup

	mu      sync.Mutex
	termErr error

	decodeFailures *control.Counter
	dropped        *control.Counter
	truncated      *control.Counter
	sent           *control.Counter
	received       *control.Counter
}

var _ api.DuplexChannel[[]byte] = (*FrameChannel[[]byte])(nil)

// Dial creates a client-mode channel with a fixed peer. Outgoing frames
// ignore their Peer field; incoming frames are tagged with the dialed
// peer.
func Dial[T any](network, raddr string, codec api.Marshaller[T], opts Options) (*FrameChannel[T], error) {
	ua, err := net.ResolveUDPAddr(network, raddr)
	if err != nil {
		return nil, fmt.Errorf("datagram: resolve %s: %w", raddr, err)
	}
	conn, err := net.DialUDP(network, nil, ua)
	if err != nil {
		return nil, fmt.Errorf("datagram: dial %s: %w", raddr, err)
	}
	c := newChannel(conn, codec, opts, false)
	c.fixedPeer = ua.AddrPort()
	c.start()
	return c, nil
}

// Listen creates a server-mode channel bound to laddr. Incoming frames
// carry their source address; outgoing frames must carry a destination
// peer.
func Listen[T any](network, laddr string, codec api.Marshaller[T], opts Options) (*FrameChannel[T], error) {
	la, err := net.ResolveUDPAddr(network, laddr)
	if err != nil {
		return nil, fmt.Errorf("datagram: resolve %s: %w", laddr, err)
	}
	conn, err := net.ListenUDP(network, la)
	if err != nil {
		return nil, fmt.Errorf("datagram: listen %s: %w", laddr, err)
	}
	c := newChannel(conn, codec, opts, true)
	c.start()
	return c, nil
}

func newChannel[T any](conn *net.UDPConn, codec api.Marshaller[T], opts Options, server bool) *FrameChannel[T] {
	opts = opts.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	return &FrameChannel[T]{
		conn:           conn,
		codec:          codec,
		pools:          opts.Pools,
		maxGram:        opts.MaxDatagram,
		serverMode:     server,
		inbound:        make(chan api.Frame[T], opts.InboundFrames),
		outbound:       make(chan sendReq[T], opts.OutboundFrames),
		ctx:            ctx,
		cancel:         cancel,
		done:           make(chan struct{}),
		decodeFailures: opts.Counters.Counter("datagram.decode_failures"),
		dropped:        opts.Counters.Counter("datagram.dropped"),
		truncated:      opts.Counters.Counter("datagram.truncated"),
		sent:           opts.Counters.Counter("datagram.sent"),
		received:       opts.Counters.Counter("datagram.received"),
	}
}

func (c *FrameChannel[T]) start() {
	c.wg.Add(2)
	go c.recvLoop()
	go c.sendLoop()
}

// LocalAddr reports the bound socket address.
func (c *FrameChannel[T]) LocalAddr() net.Addr { return c.conn.LocalAddr() }

// Send enqueues a frame and waits for its transmission result. Send
// failures are individual: a failed frame never tears the channel down
// unless the socket itself died.
func (c *FrameChannel[T]) Send(ctx context.Context, f api.Frame[T]) error {
	if c.serverMode && !f.Peer.IsValid() {
		return api.ErrNoPeer
	}
	req := sendReq[T]{frame: f, result: make(chan error, 1)}
	select {
	case c.outbound <- req:
	case <-c.done:
		return c.terminalErr()
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-req.result:
		return err
	case <-c.done:
		return c.terminalErr()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Recv returns the next decoded inbound frame. Frames buffered before a
// close are still delivered.
func (c *FrameChannel[T]) Recv(ctx context.Context) (api.Frame[T], error) {
	select {
	case fr := <-c.inbound:
		return fr, nil
	default:
	}
	select {
	case fr := <-c.inbound:
		return fr, nil
	case <-c.done:
		select {
		case fr := <-c.inbound:
			return fr, nil
		default:
		}
		var zero api.Frame[T]
		return zero, c.terminalErr()
	case <-ctx.Done():
		var zero api.Frame[T]
		return zero, ctx.Err()
	}
}

// Close tears the channel and socket down and waits for both loops.
// Idempotent.
func (c *FrameChannel[T]) Close() error {
	c.teardown(nil)
	c.wg.Wait()
	return nil
}

func (c *FrameChannel[T]) teardown(err error) {
	c.once.Do(func() {
		c.mu.Lock()
		c.termErr = err
		c.mu.Unlock()
		c.cancel()
		close(c.done)
		c.conn.Close()
	})
}

func (c *FrameChannel[T]) terminalErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.termErr != nil {
		return fmt.Errorf("%w: %v", api.ErrChannelClosed, c.termErr)
	}
	return api.ErrChannelClosed
}

func (c *FrameChannel[T]) recvLoop() {
	defer c.wg.Done()
	recvPool := c.pools.GetPool(c.maxGram)
	for {
		seg, err := recvPool.Rent(c.ctx)
		if err != nil {
			// Either our own teardown cancelled the rent, or the pool
			// itself died; both end the channel.
			c.teardown(err)
			return
		}
		buf := seg.Free()
		if len(buf) > c.maxGram {
			buf = buf[:c.maxGram]
		}
		n, _, sflags, peer, err := c.conn.ReadMsgUDPAddrPort(buf, nil)
		if err != nil {
			seg.Release()
			c.teardown(err)
			return
		}

		flags := sysFrameFlags(sflags)
		v, derr := c.codec.Decode(buf[:n])
		seg.Release()
		if derr != nil {
			c.decodeFailures.Inc()
			continue
		}
		if !c.serverMode {
			peer = c.fixedPeer
		}
		if flags.Has(api.FlagTruncated) {
			c.truncated.Inc()
		}

		fr := api.Frame[T]{Payload: v, Peer: peer, Flags: flags}
		select {
		case c.inbound <- fr:
			c.received.Inc()
		case <-c.done:
			return
		default:
			c.dropped.Inc()
		}
	}
}

func (c *FrameChannel[T]) sendLoop() {
	defer c.wg.Done()
	for {
		select {
		case req := <-c.outbound:
			err := c.sendOne(req.frame)
			req.result <- err
			if errors.Is(err, net.ErrClosed) {
				c.teardown(err)
				return
			}
		case <-c.done:
			return
		}
	}
}

func (c *FrameChannel[T]) sendOne(f api.Frame[T]) error {
	size, ok := c.codec.ByteLength(f.Payload)
	if !ok || size <= 0 {
		size = c.maxGram
	}
	seg, err := c.pools.GetPool(size).Rent(c.ctx)
	if err != nil {
		return err
	}
	defer seg.Release()

	n, err := c.codec.Encode(f.Payload, seg.Free())
	if err != nil {
		return fmt.Errorf("datagram: encode: %w", err)
	}
	if c.serverMode {
		_, err = c.conn.WriteToUDPAddrPort(seg.Free()[:n], f.Peer)
	} else {
		_, err = c.conn.Write(seg.Free()[:n])
	}
	if err != nil {
		return err
	}
	c.sent.Inc()
	return nil
}
