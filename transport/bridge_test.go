package transport_test

import (
	"bytes"
	"context"
	"crypto/rand"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/prep/socketpair"

	"github.com/momentics/pipebridge/api"
	"github.com/momentics/pipebridge/control"
	"github.com/momentics/pipebridge/fake"
	"github.com/momentics/pipebridge/pipe"
	"github.com/momentics/pipebridge/pool"
	"github.com/momentics/pipebridge/transport"
)

func testCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func newDuplex(t *testing.T) *pipe.Duplex {
	t.Helper()
	src := pool.NewSegmentPool(4096, 64)
	t.Cleanup(func() { src.Close() })
	return pipe.NewDuplex(src, 16384, 8192)
}

// appWrite pushes data through a pipe writer in one committed flush.
func appWrite(t *testing.T, ctx context.Context, w api.PipeWriter, data []byte) {
	t.Helper()
	for len(data) > 0 {
		buf, err := w.Writable(ctx, 1)
		if err != nil {
			t.Fatalf("Writable: %v", err)
		}
		n := copy(buf, data)
		w.Advance(n)
		data = data[n:]
	}
	if err := w.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}
}

// appRead consumes exactly n bytes from a pipe reader.
func appRead(t *testing.T, ctx context.Context, r api.PipeReader, n int) []byte {
	t.Helper()
	out := make([]byte, 0, n)
	for len(out) < n {
		res, err := r.Read(ctx)
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
		take := 0
		for _, rng := range res.Ranges {
			want := n - len(out)
			if len(rng) > want {
				rng = rng[:want]
			}
			out = append(out, rng...)
			take += len(rng)
			if len(out) == n {
				break
			}
		}
		r.AdvanceTo(take, take)
		if res.Completed && len(out) < n {
			t.Fatalf("pipe completed after %d of %d bytes (err=%v)", len(out), n, res.Err)
		}
	}
	return out
}

func TestStreamBridge_RoundTrip(t *testing.T) {
	ctx := testCtx(t)
	local, peer, err := socketpair.New("unix")
	if err != nil {
		t.Fatal(err)
	}
	defer peer.Close()

	d := newDuplex(t)
	b := transport.NewStreamBridge(local, d, transport.Options{})
	defer b.Abort()
	app := d.AppSide()

	if _, err := peer.Write([]byte("ping")); err != nil {
		t.Fatal(err)
	}
	if got := appRead(t, ctx, app.Reader(), 4); string(got) != "ping" {
		t.Fatalf("inbound = %q, want %q", got, "ping")
	}

	appWrite(t, ctx, app.Writer(), []byte("pong"))
	got := make([]byte, 4)
	if _, err := io.ReadFull(peer, got); err != nil {
		t.Fatal(err)
	}
	if string(got) != "pong" {
		t.Fatalf("outbound = %q, want %q", got, "pong")
	}
}

func TestStreamBridge_GracefulCloseDrains(t *testing.T) {
	ctx := testCtx(t)
	local, peer, err := socketpair.New("unix")
	if err != nil {
		t.Fatal(err)
	}
	defer peer.Close()

	counters := control.NewCounterSet()
	d := newDuplex(t)
	b := transport.NewStreamBridge(local, d, transport.Options{Counters: counters})
	app := d.AppSide()

	payload := make([]byte, 64*1024)
	if _, err := rand.Read(payload); err != nil {
		t.Fatal(err)
	}

	var peerGot []byte
	var peerErr error
	done := make(chan struct{})
	go func() {
		defer close(done)
		peerGot, peerErr = io.ReadAll(peer)
	}()

	for off := 0; off < len(payload); off += 8192 {
		appWrite(t, ctx, app.Writer(), payload[off:off+8192])
	}

	if err := b.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	<-done
	if peerErr != nil {
		t.Fatalf("peer read: %v", peerErr)
	}
	if !bytes.Equal(peerGot, payload) {
		t.Fatalf("peer received %d bytes, want %d intact", len(peerGot), len(payload))
	}
	if got := counters.Snapshot()["bridge.tx_bytes"]; got != int64(len(payload)) {
		t.Fatalf("tx_bytes = %d, want %d", got, len(payload))
	}
	if b.SendErr() != nil || b.RecvErr() != nil {
		t.Fatalf("pump errors after graceful close: send=%v recv=%v", b.SendErr(), b.RecvErr())
	}

	// Repeated close observes the first outcome.
	if err := b.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestStreamBridge_PeerEOFPropagates(t *testing.T) {
	ctx := testCtx(t)
	local, peer, err := socketpair.New("unix")
	if err != nil {
		t.Fatal(err)
	}
	defer peer.Close()

	d := newDuplex(t)
	b := transport.NewStreamBridge(local, d, transport.Options{})
	defer b.Abort()
	app := d.AppSide()

	if _, err := peer.Write([]byte("tail")); err != nil {
		t.Fatal(err)
	}
	if err := peer.(api.WriteHalfCloser).CloseWrite(); err != nil {
		t.Fatal(err)
	}

	if got := appRead(t, ctx, app.Reader(), 4); string(got) != "tail" {
		t.Fatalf("inbound = %q, want %q", got, "tail")
	}
	res, err := app.Reader().Read(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Completed || res.Err != nil {
		t.Fatalf("after peer EOF: completed=%v err=%v, want clean completion", res.Completed, res.Err)
	}

	// The write half stays open after the peer's read-side EOF.
	appWrite(t, ctx, app.Writer(), []byte("resp"))
	got := make([]byte, 4)
	if _, err := io.ReadFull(peer, got); err != nil {
		t.Fatal(err)
	}
	if string(got) != "resp" {
		t.Fatalf("outbound after EOF = %q, want %q", got, "resp")
	}
}

func TestStreamBridge_AbortUnblocksReader(t *testing.T) {
	ctx := testCtx(t)
	local, peer, err := socketpair.New("unix")
	if err != nil {
		t.Fatal(err)
	}
	defer peer.Close()

	d := newDuplex(t)
	b := transport.NewStreamBridge(local, d, transport.Options{})
	app := d.AppSide()

	type readOut struct {
		res api.ReadResult
		err error
	}
	got := make(chan readOut, 1)
	go func() {
		res, err := app.Reader().Read(ctx)
		got <- readOut{res, err}
	}()

	time.Sleep(10 * time.Millisecond)
	if err := b.Abort(); err != nil {
		t.Fatalf("Abort: %v", err)
	}

	select {
	case out := <-got:
		if out.err != nil {
			t.Fatalf("Read after abort errored: %v", out.err)
		}
		if !out.res.Completed || !errors.Is(out.res.Err, api.ErrBridgeClosed) {
			t.Fatalf("Read after abort = completed=%v err=%v, want ErrBridgeClosed completion",
				out.res.Completed, out.res.Err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("reader still blocked after Abort")
	}

	if err := b.Abort(); err != nil {
		t.Fatalf("second Abort: %v", err)
	}
	<-b.Done()
}

func TestStreamBridge_TimeoutWritesRetry(t *testing.T) {
	ctx := testCtx(t)
	conn := fake.NewStreamConn()
	conn.ScriptWriteErrors(fake.ErrTimeout, fake.ErrTimeout)
	counters := control.NewCounterSet()

	d := newDuplex(t)
	b := transport.NewStreamBridge(conn, d, transport.Options{
		RetryMin: time.Millisecond,
		RetryMax: 4 * time.Millisecond,
		Counters: counters,
	})
	defer b.Abort()
	app := d.AppSide()

	appWrite(t, ctx, app.Writer(), []byte("retry me"))

	deadline := time.Now().Add(5 * time.Second)
	for string(conn.Written()) != "retry me" {
		if time.Now().After(deadline) {
			t.Fatalf("conn received %q, want %q", conn.Written(), "retry me")
		}
		time.Sleep(time.Millisecond)
	}
	if got := counters.Snapshot()["bridge.retries"]; got != 2 {
		t.Fatalf("retries = %d, want 2", got)
	}
}
