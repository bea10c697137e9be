package resource

import (
	"bytes"
	"context"
	"io"
)

// Buffer is an in-memory, fully buffered stream resource. Reads never wait
// on data: an empty, open buffer reads as zero bytes, and an empty, shut
// down buffer reads as io.EOF. Concurrent operations serialize on a [Cell].
type Buffer struct {
	state *Cell[bufferState]
	name  string
}

type bufferState struct {
	buf      bytes.Buffer
	shutdown bool
	closed   bool
}

var _ Resource = (*Buffer)(nil)

// NewBuffer returns a Buffer holding a copy of initial.
func NewBuffer(name string, initial []byte) *Buffer {
	var s bufferState
	s.buf.Write(initial)
	if name == "" {
		name = "buffer"
	}
	return &Buffer{name: name, state: NewCell(s)}
}

func (b *Buffer) Name() string { return b.name }

func (b *Buffer) Read(ctx context.Context, limit int) ([]byte, error) {
	s, release, err := b.state.Borrow(ctx)
	if err != nil {
		return nil, err
	}
	defer release()
	if s.closed {
		return nil, io.ErrClosedPipe
	}
	if s.buf.Len() == 0 {
		if s.shutdown {
			return nil, io.EOF
		}
		return []byte{}, nil
	}
	if limit <= 0 || limit > s.buf.Len() {
		limit = s.buf.Len()
	}
	out := make([]byte, limit)
	n, _ := s.buf.Read(out)
	return out[:n], nil
}

func (b *Buffer) Write(ctx context.Context, p []byte) (int, error) {
	s, release, err := b.state.Borrow(ctx)
	if err != nil {
		return 0, err
	}
	defer release()
	if s.closed || s.shutdown {
		return 0, io.ErrClosedPipe
	}
	return s.buf.Write(p)
}

func (b *Buffer) Shutdown(ctx context.Context) error {
	s, release, err := b.state.Borrow(ctx)
	if err != nil {
		return err
	}
	defer release()
	s.shutdown = true
	return nil
}

func (b *Buffer) Close() {
	s, release, err := b.state.Borrow(context.Background())
	if err != nil {
		return
	}
	s.closed = true
	s.buf.Reset()
	release()
}

func (b *Buffer) SizeHint() (lower, upper uint64, bounded bool) {
	s, release, ok := b.state.TryBorrow()
	if !ok {
		return 0, 0, false
	}
	defer release()
	n := uint64(s.buf.Len())
	return n, n, s.shutdown
}
