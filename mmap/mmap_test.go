package mmap_test

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	mrand "math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/momentics/pipebridge/api"
	"github.com/momentics/pipebridge/mmap"
)

func writeTemp(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mapped.bin")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestReader_ChecksumMatchesSequentialRead(t *testing.T) {
	data := make([]byte, 4<<20)
	mrand.New(mrand.NewSource(42)).Read(data)
	path := writeTemp(t, data)

	r, err := mmap.OpenWindow(path, 256<<10)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	if r.Size() != len(data) {
		t.Fatalf("Size = %d, want %d", r.Size(), len(data))
	}

	ctx := context.Background()
	h := sha256.New()
	windows := 0
	for {
		res, err := r.Read(ctx)
		if err != nil {
			t.Fatal(err)
		}
		n := 0
		for _, rng := range res.Ranges {
			h.Write(rng)
			n += len(rng)
		}
		r.AdvanceTo(n, n)
		windows++
		if res.Completed {
			break
		}
	}
	if windows != 16 {
		t.Fatalf("consumed file in %d windows, want 16", windows)
	}
	want := sha256.Sum256(data)
	if got := h.Sum(nil); !bytes.Equal(got, want[:]) {
		t.Fatal("windowed checksum differs from the file content")
	}
	if r.Buffered() != 0 {
		t.Fatalf("Buffered after full consume = %d, want 0", r.Buffered())
	}
}

func TestReader_WindowCapAndPartialConsume(t *testing.T) {
	path := writeTemp(t, []byte("abcdefgh"))
	r, err := mmap.OpenWindow(path, 3)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	ctx := context.Background()

	res, err := r.Read(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if res.Completed || res.Len() != 3 || string(res.Ranges[0]) != "abc" {
		t.Fatalf("first window = %q completed=%v", res.Ranges, res.Completed)
	}

	// Consume one byte; the window slides, not jumps.
	r.AdvanceTo(1, 3)
	res, err = r.Read(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if string(res.Ranges[0]) != "bcd" {
		t.Fatalf("window after partial consume = %q, want %q", res.Ranges[0], "bcd")
	}

	r.AdvanceTo(3, 3)
	res, err = r.Read(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if string(res.Ranges[0]) != "efg" || res.Completed {
		t.Fatalf("third window = %q completed=%v", res.Ranges[0], res.Completed)
	}

	r.AdvanceTo(3, 3)
	res, err = r.Read(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Completed || string(res.Ranges[0]) != "h" {
		t.Fatalf("final window = %q completed=%v", res.Ranges, res.Completed)
	}
	r.AdvanceTo(1, 1)

	res, err = r.Read(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Completed || res.Len() != 0 {
		t.Fatalf("drained read = %d bytes completed=%v", res.Len(), res.Completed)
	}
}

func TestReader_EmptyFile(t *testing.T) {
	r, err := mmap.Open(writeTemp(t, nil))
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	res, err := r.Read(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !res.Completed || len(res.Ranges) != 0 {
		t.Fatalf("empty file read = %+v, want immediate completion", res)
	}
	if r.Buffered() != 0 {
		t.Fatalf("Buffered = %d, want 0", r.Buffered())
	}
}

func TestReader_ReadsAliasTheMapping(t *testing.T) {
	path := writeTemp(t, []byte("stable"))
	r, err := mmap.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	ctx := context.Background()

	first, err := r.Read(ctx)
	if err != nil {
		t.Fatal(err)
	}
	r.AdvanceTo(0, 0)
	second, err := r.Read(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if &first.Ranges[0][0] != &second.Ranges[0][0] {
		t.Fatal("redelivered window moved; views must alias the mapping")
	}
}

func TestReader_CloseSemantics(t *testing.T) {
	r, err := mmap.Open(writeTemp(t, []byte("x")))
	if err != nil {
		t.Fatal(err)
	}
	if err := r.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Read(context.Background()); !errors.Is(err, api.ErrReaderClosed) {
		t.Fatalf("Read after Close = %v, want api.ErrReaderClosed", err)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("second Close = %v", err)
	}

	// Complete is the pipe-contract spelling of Close.
	r2, err := mmap.Open(writeTemp(t, []byte("y")))
	if err != nil {
		t.Fatal(err)
	}
	r2.Complete(nil)
	if _, err := r2.Read(context.Background()); !errors.Is(err, api.ErrReaderClosed) {
		t.Fatalf("Read after Complete = %v, want api.ErrReaderClosed", err)
	}
}

func TestOpenWindow_RejectsBadWindow(t *testing.T) {
	_, err := mmap.OpenWindow(writeTemp(t, []byte("x")), 0)
	if !errors.Is(err, api.ErrInvalidArgument) {
		t.Fatalf("OpenWindow(0) = %v, want api.ErrInvalidArgument", err)
	}
}
