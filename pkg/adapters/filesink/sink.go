// Package filesink records wire messages to a file.
//
// Each record is a 4-byte little-endian length followed by the message.
package filesink

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/user/framedecode/pkg/ports"
)

// ErrClosed is returned by Push after Close.
var ErrClosed = errors.New("filesink: closed")

// Sink appends wire messages to a writer.
type Sink struct {
	mu     sync.Mutex
	w      *bufio.Writer
	closer io.Closer
	closed bool
	count  int
}

// New creates a sink writing to w. If w is an io.Closer it is closed by
// Close.
func New(w io.Writer) *Sink {
	s := &Sink{w: bufio.NewWriter(w)}
	if c, ok := w.(io.Closer); ok {
		s.closer = c
	}
	return s
}

// Create creates or truncates the file at path.
func Create(path string) (*Sink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create recording: %w", err)
	}
	return New(f), nil
}

// Push appends msg. A write failure means the recording is unusable and is
// reported as a disconnect.
func (s *Sink) Push(msg []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	var prefix [4]byte
	binary.LittleEndian.PutUint32(prefix[:], uint32(len(msg)))
	if _, err := s.w.Write(prefix[:]); err != nil {
		return fmt.Errorf("write record: %w", err)
	}
	if _, err := s.w.Write(msg); err != nil {
		return fmt.Errorf("write record: %w", err)
	}
	s.count++
	return nil
}

// Count returns the number of records written.
func (s *Sink) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// Close flushes buffered records and closes the underlying writer.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	err := s.w.Flush()
	if s.closer != nil {
		if cerr := s.closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// Reader reads records written by Sink.
type Reader struct {
	r *bufio.Reader
}

// NewReader creates a record reader.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReader(r)}
}

// Next returns the next record, or io.EOF at a clean end of input.
func (r *Reader) Next() ([]byte, error) {
	var prefix [4]byte
	if _, err := io.ReadFull(r.r, prefix[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("read record length: %w", err)
		}
		return nil, err
	}
	msg := make([]byte, binary.LittleEndian.Uint32(prefix[:]))
	if _, err := io.ReadFull(r.r, msg); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, fmt.Errorf("read record: %w", err)
	}
	return msg, nil
}

// ReadAll returns every record in r.
func ReadAll(r io.Reader) ([][]byte, error) {
	rr := NewReader(r)
	var out [][]byte
	for {
		msg, err := rr.Next()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, msg)
	}
}

var _ ports.FrameSink = (*Sink)(nil)
