package json

import (
	"pha/acquisition"
	"pha/waveform"
)

// NewDefault returns a processor that knows every message pha puts on the
// wire: snapshots going out and buffers coming in.
func NewDefault() *Processor {
	p := NewCodec()

	for _, m := range []interface{}{&acquisition.Snapshot{}, &waveform.Buffer{}} {
		if _, err := p.Register(m); err != nil {
			panic(err)
		}
	}

	return p
}
