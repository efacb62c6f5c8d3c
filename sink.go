package logust

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
)

// consoleSink writes rendered lines to stdout or stderr. Write errors are
// ignored: logging must never crash the host program on a broken pipe.
type consoleSink struct {
	mu sync.Mutex
	w  io.Writer
}

func newConsoleSink(stderr bool) *consoleSink {
	if stderr {
		return &consoleSink{w: os.Stderr}
	}
	return &consoleSink{w: os.Stdout}
}

func (s *consoleSink) write(line string) {
	s.mu.Lock()
	fmt.Fprintln(s.w, line)
	s.mu.Unlock()
}

// isTerminal reports whether a console stream is attached to a terminal,
// which decides the colorize default.
func isTerminal(stderr bool) bool {
	f := os.Stdout
	if stderr {
		f = os.Stderr
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// fileSink appends rendered lines to a file, consulting the rotation policy
// before every write. In enqueue mode the emitting goroutine only pushes the
// line onto the queue; a dedicated worker performs the rotation-checked write.
type fileSink struct {
	mu           sync.Mutex
	path         string
	file         *os.File
	size         int64
	rotation     rotationPolicy
	retention    retentionPolicy
	compress     bool
	nextRotation time.Time
	queue        *asyncQueue
	onError      func(error)
}

func newFileSink(path string, rotation rotationPolicy, retention retentionPolicy, compress, enqueue bool, onError func(error)) (*fileSink, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	var size int64
	if fi, err := file.Stat(); err == nil {
		size = fi.Size()
	}

	s := &fileSink{
		path:         path,
		file:         file,
		size:         size,
		rotation:     rotation,
		retention:    retention,
		compress:     compress,
		nextRotation: rotation.nextBoundary(time.Now()),
		onError:      onError,
	}
	if enqueue {
		s.queue = newAsyncQueue(s)
	}
	return s, nil
}

// write delivers one rendered line. Sync mode writes on the calling
// goroutine; enqueue mode returns as soon as the line is queued.
func (s *fileSink) write(line string) {
	if s.queue != nil {
		s.queue.enqueue(line)
		return
	}
	s.writeLine(line)
}

// writeLine performs the actual rotation-checked append.
func (s *fileSink) writeLine(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.maybeRotate()

	if s.file == nil {
		return
	}
	n, err := s.file.WriteString(line + "\n")
	if err != nil {
		s.onError(fmt.Errorf("log write error: %w", err))
		return
	}
	s.size += int64(n)
}

// flush blocks until every line enqueued before the call has been written.
// Sync sinks write unbuffered, so there is nothing to drain.
func (s *fileSink) flush() {
	if s.queue != nil {
		s.queue.drain()
	}
}

func (s *fileSink) close() {
	if s.queue != nil {
		s.queue.close()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file != nil {
		s.file.Close()
		s.file = nil
	}
}

// asyncQueue decouples emission latency from disk latency: one dedicated
// worker goroutine per enqueue-enabled file sink pops lines in strict FIFO
// order. A drain barrier is an acknowledged sentinel message, which the
// worker can only reach after writing everything queued before it.
type asyncQueue struct {
	sink   *fileSink
	ch     chan asyncMsg
	done   chan struct{}
	mu     sync.RWMutex
	closed bool
}

type asyncMsg struct {
	line string
	ack  chan struct{}
}

const asyncQueueCapacity = 10000

func newAsyncQueue(sink *fileSink) *asyncQueue {
	q := &asyncQueue{
		sink: sink,
		ch:   make(chan asyncMsg, asyncQueueCapacity),
		done: make(chan struct{}),
	}
	go q.run()
	return q
}

func (q *asyncQueue) run() {
	defer close(q.done)
	for msg := range q.ch {
		if msg.ack != nil {
			close(msg.ack)
			continue
		}
		q.sink.writeLine(msg.line)
	}
}

func (q *asyncQueue) enqueue(line string) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return
	}
	q.ch <- asyncMsg{line: line}
}

func (q *asyncQueue) drain() {
	q.mu.RLock()
	if q.closed {
		q.mu.RUnlock()
		return
	}
	ack := make(chan struct{})
	q.ch <- asyncMsg{ack: ack}
	q.mu.RUnlock()
	<-ack
}

func (q *asyncQueue) close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.ch)
	q.mu.Unlock()
	<-q.done
}
