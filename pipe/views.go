// File: pipe/views.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Interface views over a Pipe. Both api contracts name their teardown
// method Complete, so one concrete type cannot satisfy them directly;
// the views bind each Complete to the matching side.

package pipe

import (
	"context"

	"github.com/momentics/pipebridge/api"
)

type readerView struct{ p *Pipe }

var _ api.PipeReader = readerView{}

func (v readerView) Read(ctx context.Context) (api.ReadResult, error) { return v.p.Read(ctx) }
func (v readerView) AdvanceTo(consumed, examined int)                 { v.p.AdvanceTo(consumed, examined) }
func (v readerView) Complete(err error)                               { v.p.CompleteReader(err) }
func (v readerView) Buffered() int                                    { return v.p.Buffered() }

type writerView struct{ p *Pipe }

var _ api.PipeWriter = writerView{}

func (v writerView) Writable(ctx context.Context, min int) ([]byte, error) {
	return v.p.Writable(ctx, min)
}
func (v writerView) Advance(n int)                    { v.p.Advance(n) }
func (v writerView) Flush(ctx context.Context) error  { return v.p.Flush(ctx) }
func (v writerView) Complete(err error)               { v.p.CompleteWriter(err) }
func (v writerView) Unflushed() int                   { return v.p.Unflushed() }
