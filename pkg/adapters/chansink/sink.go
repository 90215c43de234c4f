// Package chansink delivers wire messages to an in-process consumer over a
// bounded channel without ever blocking the decoder.
package chansink

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/user/framedecode/pkg/ports"
)

// ErrClosed is returned by Push once the consumer has closed the sink.
var ErrClosed = errors.New("chansink: closed")

// Sink is a bounded channel of wire messages. When the consumer falls
// behind, new messages are dropped and counted.
type Sink struct {
	mu      sync.RWMutex
	ch      chan []byte
	closed  bool
	dropped atomic.Int64
}

// New creates a sink buffering up to size messages.
func New(size int) *Sink {
	if size < 1 {
		size = 1
	}
	return &Sink{ch: make(chan []byte, size)}
}

// Push offers msg to the consumer.
func (s *Sink) Push(msg []byte) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	select {
	case s.ch <- msg:
	default:
		s.dropped.Add(1)
	}
	return nil
}

// Messages returns the receive side. It is closed by Close.
func (s *Sink) Messages() <-chan []byte {
	return s.ch
}

// Dropped returns how many messages were discarded because the channel was
// full.
func (s *Sink) Dropped() int64 {
	return s.dropped.Load()
}

// Close disconnects the consumer. Later pushes fail with ErrClosed.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
	return nil
}

var _ ports.FrameSink = (*Sink)(nil)
