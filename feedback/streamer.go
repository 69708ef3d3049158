package feedback

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gogpu/vtex"
)

// Streamer errors.
var (
	// ErrProducerTimeout is returned by Run when no notification arrives
	// within the configured timeout.
	ErrProducerTimeout = errors.New("feedback: no readback notification before timeout")

	// ErrStreamerRunning is returned by Start when the worker is already running.
	ErrStreamerRunning = errors.New("feedback: streamer already running")
)

// PageSink receives the reduced page list of each feedback cycle. It is the
// extension point where pages are fetched and uploaded to the physical atlas.
//
// pages is reused by the next cycle and must not be retained after
// RequirePages returns.
type PageSink interface {
	RequirePages(ctx context.Context, pages []PageID) error
}

// SinkFunc adapts a function to PageSink.
type SinkFunc func(ctx context.Context, pages []PageID) error

// RequirePages calls f(ctx, pages).
func (f SinkFunc) RequirePages(ctx context.Context, pages []PageID) error {
	return f(ctx, pages)
}

// StreamerOption configures a Streamer.
type StreamerOption func(*streamerOptions)

type streamerOptions struct {
	timeout time.Duration
	logger  *slog.Logger
}

// WithTimeout bounds how long Run waits for a notification. Zero, the
// default, waits forever.
func WithTimeout(d time.Duration) StreamerOption {
	return func(o *streamerOptions) {
		o.timeout = d
	}
}

// WithLogger sets the logger used by the streamer. The default is vtex.Logger().
func WithLogger(l *slog.Logger) StreamerOption {
	return func(o *streamerOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// Streamer is the long-lived consumer of feedback readbacks.
//
// The render loop calls Notify once a readback buffer has been mapped. The
// worker then reads the buffer, reduces it to the required page list, unmaps
// the buffer and passes the list to the sink. At most one notification is
// buffered: notifications sent while one is already queued are coalesced.
//
// There is a single consumer; Run must not be called concurrently.
type Streamer struct {
	buf    Mappable
	sink   PageSink
	notify chan struct{}
	opts   streamerOptions

	pages  []PageID
	cycles atomic.Uint64

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// NewStreamer creates a streamer reading buf and feeding sink.
func NewStreamer(buf Mappable, sink PageSink, opts ...StreamerOption) *Streamer {
	o := streamerOptions{logger: vtex.Logger()}
	for _, opt := range opts {
		opt(&o)
	}
	return &Streamer{
		buf:    buf,
		sink:   sink,
		notify: make(chan struct{}, 1),
		opts:   o,
	}
}

// Notify signals that the readback buffer is mapped. It never blocks and
// reports whether the notification was queued (false means one was already
// pending).
func (s *Streamer) Notify() bool {
	select {
	case s.notify <- struct{}{}:
		return true
	default:
		return false
	}
}

// Cycles returns the number of completed feedback cycles.
func (s *Streamer) Cycles() uint64 {
	return s.cycles.Load()
}

// Run processes notifications until ctx is cancelled, in which case it
// returns nil, or until the producer stays silent longer than the configured
// timeout, in which case it returns ErrProducerTimeout.
func (s *Streamer) Run(ctx context.Context) error {
	for {
		var timeout <-chan time.Time
		var timer *time.Timer
		if s.opts.timeout > 0 {
			timer = time.NewTimer(s.opts.timeout)
			timeout = timer.C
		}

		select {
		case <-ctx.Done():
			stopTimer(timer)
			return nil
		case <-timeout:
			return ErrProducerTimeout
		case <-s.notify:
			stopTimer(timer)
			s.cycle(ctx)
		}
	}
}

func stopTimer(t *time.Timer) {
	if t != nil {
		t.Stop()
	}
}

// cycle handles one notification. Failures are logged and the worker keeps
// going; there are no retries.
func (s *Streamer) cycle(ctx context.Context) {
	log := s.opts.logger

	data, err := s.buf.MappedRange()
	if err != nil {
		log.Warn("feedback: readback not mapped, cycle skipped", "err", err)
		return
	}

	pages, reduceErr := ReduceInto(s.pages, data)
	s.pages = pages

	// The buffer goes back to the producer before the sink runs.
	if err := s.buf.Unmap(); err != nil {
		log.Warn("feedback: unmap failed", "err", err)
	}
	if reduceErr != nil {
		log.Warn("feedback: readback dropped", "err", reduceErr)
		return
	}

	n := s.cycles.Add(1)
	log.Debug("feedback: pages required", "cycle", n, "samples", len(data)/EncodedSize, "pages", len(pages))

	if err := s.sink.RequirePages(ctx, pages); err != nil {
		log.Warn("feedback: page sink failed", "cycle", n, "err", err)
	}
}

// Start runs the worker on its own goroutine. Stop shuts it down.
func (s *Streamer) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.done != nil {
		return ErrStreamerRunning
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done
	s.err = nil

	go func() {
		defer close(done)
		err := s.Run(ctx)
		s.mu.Lock()
		s.err = err
		s.mu.Unlock()
	}()
	return nil
}

// Done returns a channel closed when the worker started by Start exits, or
// nil if it was never started.
func (s *Streamer) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

// Stop cancels the worker started by Start, waits for it to exit and returns
// the error it ended with. Stop on a stopped streamer returns nil.
func (s *Streamer) Stop() error {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()
	if done == nil {
		return nil
	}

	cancel()
	<-done

	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.err
	s.cancel, s.done, s.err = nil, nil, nil
	return err
}
