// Package memory provides an in-memory implementation of the queue
// interfaces, used in memory storage mode and in tests.
package memory

import (
	"context"
	"sync"

	"lifebox-go/internal/queue"
)

// Queue implements both Producer and Consumer over a buffered channel,
// giving simple in-process pub/sub. Safe for concurrent use.
type Queue struct {
	messages chan *queue.Message
	closed   bool
	mu       sync.RWMutex
	wg       sync.WaitGroup
}

// NewQueue creates an in-memory queue. The buffer size bounds how many
// messages can be pending before Publish blocks.
func NewQueue(bufferSize int) *Queue {
	return &Queue{
		messages: make(chan *queue.Message, bufferSize),
	}
}

// Publish sends a message, blocking while the buffer is full until space is
// available or the context is canceled.
func (q *Queue) Publish(ctx context.Context, msg *queue.Message) error {
	q.mu.RLock()
	if q.closed {
		q.mu.RUnlock()
		return ErrQueueClosed
	}
	q.mu.RUnlock()

	select {
	case q.messages <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Start consumes messages and calls the handler for each one, blocking until
// the context is canceled or the queue is closed. Handler failures skip the
// message; siblings keep flowing.
func (q *Queue) Start(ctx context.Context, handler queue.MessageHandler) error {
	q.wg.Add(1)
	defer q.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-q.messages:
			if !ok {
				return nil
			}
			if err := handler(ctx, msg); err != nil {
				continue
			}
		}
	}
}

// Close shuts down the queue, stopping all consumers.
func (q *Queue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}

	q.closed = true
	close(q.messages)
	q.wg.Wait()
	return nil
}

// Len returns the current number of pending messages. Useful in tests.
func (q *Queue) Len() int {
	return len(q.messages)
}
