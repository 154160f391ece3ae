// File: pipe/duplex.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Duplex pairs two pipes into one bidirectional link. The application
// and transport sides see the same pair crossed: the application writes
// what the transport reads and vice versa.

package pipe

import "github.com/momentics/pipebridge/api"

// Duplex is a bidirectional pipe pair.
type Duplex struct {
	in  *Pipe // transport -> application
	out *Pipe // application -> transport
}

// NewDuplex creates both directions over the same segment source and
// watermarks.
func NewDuplex(source api.SegmentSource, highWater, lowWater int) *Duplex {
	return &Duplex{
		in:  New(source, highWater, lowWater),
		out: New(source, highWater, lowWater),
	}
}

// In returns the inbound direction (transport writes, application reads).
func (d *Duplex) In() *Pipe { return d.in }

// Out returns the outbound direction (application writes, transport
// reads).
func (d *Duplex) Out() *Pipe { return d.out }

// side is one endpoint's crossed view of the pair.
type side struct {
	r api.PipeReader
	w api.PipeWriter
}

func (s side) Reader() api.PipeReader { return s.r }
func (s side) Writer() api.PipeWriter { return s.w }

var _ api.DuplexPipe = side{}

// AppSide returns the application's view: read inbound, write outbound.
func (d *Duplex) AppSide() api.DuplexPipe {
	return side{r: d.in.Reader(), w: d.out.Writer()}
}

// TransportSide returns the transport's view: read outbound, write
// inbound.
func (d *Duplex) TransportSide() api.DuplexPipe {
	return side{r: d.out.Reader(), w: d.in.Writer()}
}
