package notify

import (
	"container/heap"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Recorder receives delivery outcomes.
type Recorder interface {
	RecordNotification(eventType, transport string, err error)
}

// Status describes the queue at a point in time.
type Status struct {
	Length     int      `json:"length"`
	Processing bool     `json:"processing"`
	Transports []string `json:"transports"`
}

// Queue is a bounded priority queue with one delivery worker. Items of
// equal priority leave in arrival order. Enqueue never blocks.
type Queue struct {
	mu         sync.Mutex
	items      queueHeap
	seq        uint64
	capacity   int
	processing bool
	wake       chan struct{}

	transports []Transport
	delay      time.Duration
	logger     *zap.Logger
	recorder   Recorder
	now        func() time.Time
}

// QueueOptions configures a Queue.
type QueueOptions struct {
	Capacity   int
	Delay      time.Duration
	Transports []Transport
	Logger     *zap.Logger
	Recorder   Recorder
}

// NewQueue builds an idle queue. Call Run to start delivering.
func NewQueue(opts QueueOptions) *Queue {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Queue{
		capacity:   opts.Capacity,
		wake:       make(chan struct{}, 1),
		transports: opts.Transports,
		delay:      opts.Delay,
		logger:     logger.Named("notify"),
		recorder:   opts.Recorder,
		now:        time.Now,
	}
}

// Enqueue adds n to the queue and reports whether it was accepted. A full
// queue drops the notification.
func (q *Queue) Enqueue(n Notification) bool {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.EnqueuedAt.IsZero() {
		n.EnqueuedAt = q.now()
	}

	q.mu.Lock()
	if q.capacity > 0 && q.items.Len() >= q.capacity {
		q.mu.Unlock()
		q.logger.Warn("notification dropped, queue full",
			zap.String("type", string(n.Type)),
			zap.Int("capacity", q.capacity))
		return false
	}
	q.seq++
	heap.Push(&q.items, &queueItem{n: n, seq: q.seq})
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return true
}

// Run delivers notifications one at a time until ctx is done, pausing
// for the configured delay after each item.
func (q *Queue) Run(ctx context.Context) {
	for {
		n, ok := q.next()
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-q.wake:
				continue
			}
		}

		q.deliver(ctx, n)
		q.setProcessing(false)

		if q.delay > 0 {
			timer := time.NewTimer(q.delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
		} else if ctx.Err() != nil {
			return
		}
	}
}

func (q *Queue) next() (Notification, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.items.Len() == 0 {
		return Notification{}, false
	}
	item := heap.Pop(&q.items).(*queueItem)
	q.processing = true
	return item.n, true
}

func (q *Queue) setProcessing(v bool) {
	q.mu.Lock()
	q.processing = v
	q.mu.Unlock()
}

func (q *Queue) deliver(ctx context.Context, n Notification) {
	for _, t := range q.transports {
		err := send(ctx, t, n)
		if q.recorder != nil {
			q.recorder.RecordNotification(string(n.Type), t.Name(), err)
		}
		if err != nil {
			q.logger.Error("notification delivery failed",
				zap.String("id", n.ID),
				zap.String("type", string(n.Type)),
				zap.String("transport", t.Name()),
				zap.Error(err))
			continue
		}
		q.logger.Debug("notification delivered",
			zap.String("id", n.ID),
			zap.String("type", string(n.Type)),
			zap.String("transport", t.Name()))
	}
}

func send(ctx context.Context, t Transport, n Notification) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s transport panicked: %v", t.Name(), r)
		}
	}()
	return t.Send(ctx, n)
}

// Status reports the queue length and whether an item is being delivered.
func (q *Queue) Status() Status {
	q.mu.Lock()
	defer q.mu.Unlock()
	names := make([]string, 0, len(q.transports))
	for _, t := range q.transports {
		names = append(names, t.Name())
	}
	return Status{Length: q.items.Len(), Processing: q.processing, Transports: names}
}

// Clear drops every pending notification and returns how many were removed.
func (q *Queue) Clear() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := q.items.Len()
	q.items = nil
	return n
}

type queueItem struct {
	n   Notification
	seq uint64
}

type queueHeap []*queueItem

func (h queueHeap) Len() int { return len(h) }

func (h queueHeap) Less(i, j int) bool {
	if h[i].n.Priority != h[j].n.Priority {
		return h[i].n.Priority > h[j].n.Priority
	}
	return h[i].seq < h[j].seq
}

func (h queueHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *queueHeap) Push(x any) { *h = append(*h, x.(*queueItem)) }

func (h *queueHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}
