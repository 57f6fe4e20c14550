package engine

import (
	"encoding/json"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/skaphos/repomon/internal/logging"
	"github.com/skaphos/repomon/internal/model"
	"github.com/skaphos/repomon/internal/sortutil"
)

// Publisher delivers status messages. Publish must not block indefinitely.
type Publisher interface {
	Publish(msg model.StatusMessage)
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(msg model.StatusMessage)

func (f PublisherFunc) Publish(msg model.StatusMessage) {
	f(msg)
}

// RemoteResult is the outcome of one remote within a check cycle.
type RemoteResult struct {
	Remote     string
	Status     string
	Err        error
	ErrorClass string
	Divergence model.DivergenceResult
	Fetch      model.FetchStats
}

// Emitter assembles status messages and hands them to a Publisher.
type Emitter struct {
	publisher Publisher
	newID     func() string
	now       func() time.Time
}

// NewEmitter returns an Emitter publishing to p. A nil p only assembles.
func NewEmitter(p Publisher) *Emitter {
	return &Emitter{publisher: p, newID: uuid.NewString, now: time.Now}
}

// Emit builds one message for a completed cycle and publishes it.
func (e *Emitter) Emit(repository, branch string, results []RemoteResult, worktree []model.PathStatus) model.StatusMessage {
	msg := model.StatusMessage{
		ID:          e.newID(),
		Repository:  repository,
		Branch:      branch,
		Remotes:     make(map[string]string, len(results)),
		GeneratedAt: e.now().UTC(),
	}
	if flags, entries := ClassifyWorktree(worktree); len(entries) > 0 {
		sortutil.SortWorktree(entries)
		msg.Worktree = entries
		msg.WorktreeFlags = flags.Names()
	}
	for _, res := range results {
		msg.Remotes[res.Remote] = res.Status
		if res.Err != nil {
			if msg.ErrorClasses == nil {
				msg.ErrorClasses = make(map[string]string)
			}
			msg.ErrorClasses[res.Remote] = res.ErrorClass
			continue
		}
		if msg.Divergence == nil {
			msg.Divergence = make(map[string]model.Divergence)
		}
		msg.Divergence[res.Remote] = res.Divergence.Divergence
	}
	if e.publisher != nil {
		e.publisher.Publish(msg)
	}
	return msg
}

// ChannelPublisher buffers up to a fixed number of messages. When the buffer
// is full the oldest message is dropped so Publish never blocks.
type ChannelPublisher struct {
	mu      sync.Mutex
	ch      chan model.StatusMessage
	closed  bool
	dropped atomic.Int64
}

// NewChannelPublisher returns a publisher with the given buffer size (minimum 1).
func NewChannelPublisher(size int) *ChannelPublisher {
	if size < 1 {
		size = 1
	}
	return &ChannelPublisher{ch: make(chan model.StatusMessage, size)}
}

func (p *ChannelPublisher) Publish(msg model.StatusMessage) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	for {
		select {
		case p.ch <- msg:
			return
		default:
		}
		select {
		case <-p.ch:
			p.dropped.Add(1)
		default:
		}
	}
}

// Messages is the receive side. It is closed by Close.
func (p *ChannelPublisher) Messages() <-chan model.StatusMessage {
	return p.ch
}

// Dropped is the number of messages discarded because the buffer was full.
func (p *ChannelPublisher) Dropped() int64 {
	return p.dropped.Load()
}

// Close stops delivery and closes the channel. Later publishes are ignored.
func (p *ChannelPublisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.closed = true
		close(p.ch)
	}
}

// WriterPublisher writes each message as one JSON line.
type WriterPublisher struct {
	mu     sync.Mutex
	enc    *json.Encoder
	logger *zap.SugaredLogger
}

// NewWriterPublisher returns a publisher writing JSON lines to w. Write
// failures are logged and otherwise ignored.
func NewWriterPublisher(w io.Writer, logger *zap.SugaredLogger) *WriterPublisher {
	return &WriterPublisher{enc: json.NewEncoder(w), logger: logging.Nop(logger)}
}

func (p *WriterPublisher) Publish(msg model.StatusMessage) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enc.Encode(msg); err != nil {
		p.logger.Warnw("unable to write status message", "id", msg.ID, "repository", msg.Repository, "branch", msg.Branch, "error", err)
	}
}

// Fanout publishes every message to each publisher in order.
type Fanout []Publisher

func (f Fanout) Publish(msg model.StatusMessage) {
	for _, p := range f {
		p.Publish(msg)
	}
}
