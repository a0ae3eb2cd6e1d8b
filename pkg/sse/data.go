package sse

import "io"

// DataReader presents the data payloads of an SSE stream as one contiguous
// byte stream. Payloads are concatenated without separators and the
// end-of-stream sentinel is dropped.
type DataReader struct {
	events  *Reader
	pending string
	err     error
}

// NewDataReader returns a DataReader over src. When tee is non-nil the raw
// SSE bytes are copied to it as they are read.
func NewDataReader(src io.Reader, tee io.Writer) *DataReader {
	return &DataReader{events: NewTeeReader(src, tee)}
}

// Read implements io.Reader. It returns io.EOF once the source is exhausted
// or the sentinel event has been seen.
func (d *DataReader) Read(p []byte) (int, error) {
	for d.pending == "" {
		if d.err != nil {
			return 0, d.err
		}

		ev, err := d.events.Next()
		switch {
		case err != nil:
			d.err = err
		case ev == nil, ev.IsDone():
			d.err = io.EOF
		default:
			d.pending = ev.Data
		}
	}

	n := copy(p, d.pending)
	d.pending = d.pending[n:]
	return n, nil
}
