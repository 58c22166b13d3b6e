package speech

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var (
	ErrMicrophoneBusy = errors.New("microphone is already in use")
	ErrNotRecording   = errors.New("no recording in progress")
	ErrBufferFull     = errors.New("recording buffer is full")
)

// Stream delivers encoded audio chunks until it is closed
type Stream interface {
	Chunks() <-chan []byte
	Close() error
}

// Source opens audio capture streams
type Source interface {
	Open(ctx context.Context) (Stream, error)
}

// Microphone grants exclusive use of a Source
type Microphone struct {
	source Source

	mu   sync.Mutex
	held bool
}

// NewMicrophone wraps source
func NewMicrophone(source Source) *Microphone {
	return &Microphone{source: source}
}

// Recording is an acquired microphone stream. Release closes the stream and
// frees the microphone; it is safe to call more than once.
type Recording struct {
	Stream
	release func()
	once    sync.Once
}

// Release closes the stream and frees the microphone
func (r *Recording) Release() {
	r.once.Do(func() {
		_ = r.Stream.Close()
		r.release()
	})
}

// Acquire opens a stream, failing with ErrMicrophoneBusy while another holder has it
func (m *Microphone) Acquire(ctx context.Context) (*Recording, error) {
	m.mu.Lock()
	if m.held {
		m.mu.Unlock()
		return nil, ErrMicrophoneBusy
	}
	m.held = true
	m.mu.Unlock()

	stream, err := m.source.Open(ctx)
	if err != nil {
		m.free()
		return nil, fmt.Errorf("failed to open microphone: %w", err)
	}
	return &Recording{Stream: stream, release: m.free}, nil
}

// Held reports whether the microphone is in use
func (m *Microphone) Held() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.held
}

func (m *Microphone) free() {
	m.mu.Lock()
	m.held = false
	m.mu.Unlock()
}

// PushSource is a Source fed by chunks uploaded from the web client
type PushSource struct {
	bufferSize int

	mu      sync.Mutex
	current *pushStream
}

// NewPushSource creates a source buffering up to bufferSize chunks per stream
func NewPushSource(bufferSize int) *PushSource {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	return &PushSource{bufferSize: bufferSize}
}

// Open starts a new stream; chunks pushed from now on are delivered to it
func (s *PushSource) Open(ctx context.Context) (Stream, error) {
	stream := &pushStream{ch: make(chan []byte, s.bufferSize), source: s}
	s.mu.Lock()
	if s.current != nil {
		s.current.closeLocked()
	}
	s.current = stream
	s.mu.Unlock()
	return stream, nil
}

// Push delivers one encoded chunk to the open stream
func (s *PushSource) Push(chunk []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return ErrNotRecording
	}
	data := append([]byte(nil), chunk...)
	select {
	case s.current.ch <- data:
		return nil
	default:
		return ErrBufferFull
	}
}

type pushStream struct {
	ch     chan []byte
	source *PushSource
	closed bool
}

func (p *pushStream) Chunks() <-chan []byte {
	return p.ch
}

func (p *pushStream) Close() error {
	p.source.mu.Lock()
	defer p.source.mu.Unlock()
	p.closeLocked()
	if p.source.current == p {
		p.source.current = nil
	}
	return nil
}

// closeLocked requires source.mu
func (p *pushStream) closeLocked() {
	if !p.closed {
		p.closed = true
		close(p.ch)
	}
}
