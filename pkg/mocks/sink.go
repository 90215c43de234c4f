package mocks

import (
	"errors"
	"io"
	"sync"

	"github.com/user/framedecode/pkg/ports"
)

// ErrDisconnected is returned by Sink once it has been told to disconnect.
var ErrDisconnected = errors.New("mock sink: receiver gone")

// Sink is a mock implementation of ports.FrameSink that records messages.
type Sink struct {
	mu sync.Mutex

	// DisconnectAfter makes every push after that many accepted messages
	// fail. Negative means never.
	DisconnectAfter int

	PushFunc func(msg []byte) error

	Messages [][]byte
	Attempts int
}

// NewSink creates a mock sink that accepts everything.
func NewSink() *Sink {
	return &Sink{DisconnectAfter: -1}
}

func (m *Sink) Push(msg []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Attempts++
	if m.PushFunc != nil {
		if err := m.PushFunc(msg); err != nil {
			return err
		}
	}
	if m.DisconnectAfter >= 0 && len(m.Messages) >= m.DisconnectAfter {
		return ErrDisconnected
	}
	m.Messages = append(m.Messages, msg)
	return nil
}

// Count returns the number of accepted messages.
func (m *Sink) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Messages)
}

// PushAttempts returns the number of Push calls.
func (m *Sink) PushAttempts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Attempts
}

var _ ports.FrameSink = (*Sink)(nil)

// Source is a mock ports.FrameSource replaying a fixed list of frames.
type Source struct {
	mu     sync.Mutex
	Frames []ports.CompressedVideoFrame
	Err    error
	next   int
	Closed bool
}

// NewSource creates a source that yields frames then io.EOF.
func NewSource(frames ...ports.CompressedVideoFrame) *Source {
	return &Source{Frames: frames}
}

func (m *Source) Next() (ports.CompressedVideoFrame, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.next >= len(m.Frames) {
		if m.Err != nil {
			return ports.CompressedVideoFrame{}, m.Err
		}
		return ports.CompressedVideoFrame{}, io.EOF
	}
	f := m.Frames[m.next]
	m.next++
	return f, nil
}

func (m *Source) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
	return nil
}

var _ ports.FrameSource = (*Source)(nil)
