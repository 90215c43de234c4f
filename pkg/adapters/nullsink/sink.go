// Package nullsink provides a sink that discards wire messages.
package nullsink

import (
	"sync/atomic"

	"github.com/user/framedecode/pkg/ports"
)

// Sink counts and discards every message.
type Sink struct {
	messages atomic.Int64
	bytes    atomic.Int64
}

// New creates a new NullSink.
func New() *Sink {
	return &Sink{}
}

// Push discards msg.
func (s *Sink) Push(msg []byte) error {
	s.messages.Add(1)
	s.bytes.Add(int64(len(msg)))
	return nil
}

// Messages returns the number of messages received.
func (s *Sink) Messages() int64 { return s.messages.Load() }

// Bytes returns the total size of messages received.
func (s *Sink) Bytes() int64 { return s.bytes.Load() }

// Close does nothing.
func (s *Sink) Close() error { return nil }

var _ ports.FrameSink = (*Sink)(nil)
