package queue

import (
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
)

// HandleOrderFn attempts to process order. ok=false with err=nil means "skip
// without retrying". A non-nil err triggers HandleFailedOrderFn.
type HandleOrderFn[TOrder any, TResult any] func(order TOrder, retryCount int) (result TResult, ok bool, err error)

// HandleFailedOrderFn decides whether order should be retried after err.
type HandleFailedOrderFn[TOrder any] func(order TOrder, retryCount int, err error) bool

// OnOrderCompletionFn is called once per order that finishes processing, with
// success=true only if a terminal non-null result was produced by
// HandleOrderFn. Orders still queued when Stop is called never reach it.
type OnOrderCompletionFn[TOrder any, TResult any] func(order TOrder, success bool, result TResult, retryCount int)

type queueEntry[TOrder any] struct {
	order        TOrder
	processAt    time.Time
	retryCount   int
	requeueCount int
}

// ProcessingQueue is a generic bounded retry queue: orders become eligible for
// processing once now >= processAt, failures are rescheduled processAt = now +
// retryInterval up to maxTries, and an already-seen order can be Requeue'd,
// which bumps requeueCount and resets retry state. This is how staged
// pipelines (evaluation -> submission -> confirmation) compose multiple
// queues.
type ProcessingQueue[TOrder any, TResult any] struct {
	lock    *sync.Cond
	data    []*queueEntry[TOrder]
	stopped bool

	maxTries      int
	retryInterval time.Duration

	keyFn             func(TOrder) string
	handleOrder       HandleOrderFn[TOrder, TResult]
	handleFailedOrder HandleFailedOrderFn[TOrder]
	onOrderCompletion OnOrderCompletionFn[TOrder, TResult]

	logger hclog.Logger
}

// NewProcessingQueue creates a ProcessingQueue. keyFn identifies an order for
// Requeue purposes; pass nil if the queue never needs dedup-on-requeue.
func NewProcessingQueue[TOrder any, TResult any](
	maxTries int,
	retryInterval time.Duration,
	keyFn func(TOrder) string,
	handleOrder HandleOrderFn[TOrder, TResult],
	handleFailedOrder HandleFailedOrderFn[TOrder],
	onOrderCompletion OnOrderCompletionFn[TOrder, TResult],
	logger hclog.Logger,
) *ProcessingQueue[TOrder, TResult] {
	return &ProcessingQueue[TOrder, TResult]{
		lock:              sync.NewCond(&sync.Mutex{}),
		maxTries:          maxTries,
		retryInterval:     retryInterval,
		keyFn:             keyFn,
		handleOrder:       handleOrder,
		handleFailedOrder: handleFailedOrder,
		onOrderCompletion: onOrderCompletion,
		logger:            logger,
	}
}

// Add enqueues order for processing as soon as it becomes eligible.
func (q *ProcessingQueue[TOrder, TResult]) Add(order TOrder) {
	q.lock.L.Lock()
	q.data = append(q.data, &queueEntry[TOrder]{order: order})
	q.lock.Signal()
	q.lock.L.Unlock()
}

// Requeue adds order back into the queue. If keyFn is set and an entry for the
// same key is already queued, its requeueCount is incremented and its retry
// state (retryCount, processAt) is reset instead of adding a duplicate entry.
func (q *ProcessingQueue[TOrder, TResult]) Requeue(order TOrder) {
	q.lock.L.Lock()
	defer q.lock.L.Unlock()

	if q.keyFn != nil {
		key := q.keyFn(order)

		for _, entry := range q.data {
			if q.keyFn(entry.order) == key {
				entry.order = order
				entry.retryCount = 0
				entry.processAt = time.Time{}
				entry.requeueCount++
				q.lock.Signal()

				return
			}
		}
	}

	q.data = append(q.data, &queueEntry[TOrder]{order: order, requeueCount: 1})
	q.lock.Signal()
}

// Run drains eligible orders until Stop is called. It is intended to run in
// its own goroutine; call it once per queue.
func (q *ProcessingQueue[TOrder, TResult]) Run() {
	for {
		entries := q.waitForEligible()
		if entries == nil {
			return
		}

		for _, entry := range entries {
			q.process(entry)
		}
	}
}

func (q *ProcessingQueue[TOrder, TResult]) waitForEligible() []*queueEntry[TOrder] {
	q.lock.L.Lock()
	defer q.lock.L.Unlock()

	for {
		if q.stopped {
			return nil
		}

		now := time.Now()

		eligible := make([]*queueEntry[TOrder], 0, len(q.data))
		remaining := make([]*queueEntry[TOrder], 0, len(q.data))

		var nextWake time.Time

		for _, entry := range q.data {
			if entry.processAt.IsZero() || !entry.processAt.After(now) {
				eligible = append(eligible, entry)
			} else {
				remaining = append(remaining, entry)

				if nextWake.IsZero() || entry.processAt.Before(nextWake) {
					nextWake = entry.processAt
				}
			}
		}

		if len(eligible) > 0 {
			q.data = remaining

			return eligible
		}

		if len(q.data) == 0 {
			q.lock.Wait()

			continue
		}

		q.waitWithTimeout(time.Until(nextWake))
	}
}

// waitWithTimeout releases the lock for up to d, or until Signal/Broadcast
// fires. Must be called with q.lock.L held; re-acquires it before returning.
func (q *ProcessingQueue[TOrder, TResult]) waitWithTimeout(d time.Duration) {
	if d <= 0 {
		return
	}

	timer := time.AfterFunc(d, func() {
		q.lock.L.Lock()
		q.lock.Broadcast()
		q.lock.L.Unlock()
	})

	q.lock.Wait()
	timer.Stop()
}

func (q *ProcessingQueue[TOrder, TResult]) process(entry *queueEntry[TOrder]) {
	result, ok, err := q.handleOrder(entry.order, entry.retryCount)
	if err == nil {
		if !ok {
			var zero TResult

			q.onOrderCompletion(entry.order, false, zero, entry.retryCount)

			return
		}

		q.onOrderCompletion(entry.order, true, result, entry.retryCount)

		return
	}

	if q.handleFailedOrder(entry.order, entry.retryCount, err) && entry.retryCount+1 < q.maxTries {
		entry.retryCount++
		entry.processAt = time.Now().Add(q.retryInterval)

		q.lock.L.Lock()
		q.data = append(q.data, entry)
		q.lock.Signal()
		q.lock.L.Unlock()

		if q.logger != nil {
			q.logger.Info("order failed, retrying", "err", err, "retryCount", entry.retryCount)
		}

		return
	}

	if q.logger != nil {
		q.logger.Error("order failed terminally", "err", err, "retryCount", entry.retryCount)
	}

	var zero TResult

	q.onOrderCompletion(entry.order, false, zero, entry.retryCount)
}

// Stop terminates Run's loop; any orders still queued are dropped without
// firing onOrderCompletion.
func (q *ProcessingQueue[TOrder, TResult]) Stop() {
	q.lock.L.Lock()
	q.stopped = true
	q.lock.Broadcast()
	q.lock.L.Unlock()
}
