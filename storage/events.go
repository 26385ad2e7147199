package storage

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"
	log "github.com/sirupsen/logrus"
)

// Task change-feed event types.
const (
	EventTaskCreated  = "task-created"
	EventTaskUpdated  = "task-updated"
	EventTaskDeleted  = "task-deleted"
	EventTaskMigrated = "task-migrated"
)

const (
	defaultEventBuffer  = 1024
	defaultEventWorkers = 4
	publishTimeout      = 30 * time.Second
)

// TaskEvent describes a mutation of the task collection for downstream consumers.
type TaskEvent struct {
	Type      string `json:"type"`
	TaskID    string `json:"taskId"`
	Date      string `json:"date"`
	ToDate    string `json:"toDate,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

type eventQueue interface {
	EnqueueMessage(ctx context.Context, content string, o *azqueue.EnqueueMessageOptions) (azqueue.EnqueueMessagesResponse, error)
}

// eventPublisher pushes task events to the change-feed queue from a bounded
// buffer. Publishing is best effort: the buffer saturating drops the event with
// a warning, and enqueue failures are logged, never surfaced to the caller.
type eventPublisher struct {
	queue  eventQueue
	logger *log.Logger
	jobs   chan TaskEvent
	wg     sync.WaitGroup

	lastTimestamp int64
}

func newEventPublisher(queue eventQueue, logger *log.Logger, buffer, workers int) *eventPublisher {
	p := &eventPublisher{
		queue:  queue,
		logger: logger,
		jobs:   make(chan TaskEvent, buffer),
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

func (p *eventPublisher) worker() {
	defer p.wg.Done()
	for ev := range p.jobs {
		data, err := json.Marshal(ev)
		if err != nil {
			p.logger.Errorf("event marshal failed: %v, type: %s, task: %s", err, ev.Type, ev.TaskID)
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		_, err = p.queue.EnqueueMessage(ctx, string(data), nil)
		cancel()
		if err != nil {
			p.logger.Errorf("event publish failed: %v, type: %s, task: %s", err, ev.Type, ev.TaskID)
		}
	}
}

// Publish stamps and buffers the event without blocking the caller.
func (p *eventPublisher) Publish(ev TaskEvent) {
	ev.Timestamp = p.nextTimestamp()
	ok, closed := p.trySend(ev)
	if closed {
		p.logger.Warnf("event publisher closed, dropping event, type: %s, task: %s", ev.Type, ev.TaskID)
		return
	}
	if !ok {
		p.logger.Warnf("event buffer saturated, dropping event, type: %s, task: %s", ev.Type, ev.TaskID)
	}
}

// trySend guards against a publish racing Close; sending on the closed jobs
// channel panics, which the recover turns into a dropped event.
func (p *eventPublisher) trySend(ev TaskEvent) (ok bool, closed bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			closed = true
		}
	}()

	select {
	case p.jobs <- ev:
		return true, false
	default:
		return false, false
	}
}

// Close stops the workers after draining buffered events.
func (p *eventPublisher) Close() {
	close(p.jobs)
	p.wg.Wait()
}

// nextTimestamp returns a strictly increasing nanosecond timestamp so event
// order survives same-instant mutations.
func (p *eventPublisher) nextTimestamp() int64 {
	for {
		now := time.Now().UnixNano()
		last := atomic.LoadInt64(&p.lastTimestamp)
		if now <= last {
			now = last + 1
		}
		if atomic.CompareAndSwapInt64(&p.lastTimestamp, last, now) {
			return now
		}
	}
}
