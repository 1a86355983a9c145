// Package queue defines interfaces for message transport. Two streams use
// it: inbound telemetry feeding the engine, and outbound device commands.
// The abstraction allows swapping implementations (Kafka, in-memory) without
// changing business logic.
package queue

import (
	"context"
)

// Message represents a message on a queue.
type Message struct {
	// Key is the partition key for ordering guarantees. Telemetry and
	// commands are both keyed by device ID.
	Key []byte

	// Value is the message payload.
	Value []byte

	// Headers contains optional metadata.
	Headers map[string]string
}

// Producer defines the interface for publishing messages.
// Implementations must be safe for concurrent use.
type Producer interface {
	// Publish sends a message. Messages with the same key are delivered
	// in order.
	Publish(ctx context.Context, msg *Message) error

	// Close releases any resources held by the producer.
	Close() error
}

// MessageHandler is a callback for processing consumed messages.
// Return an error to indicate processing failure.
type MessageHandler func(ctx context.Context, msg *Message) error

// Consumer defines the interface for consuming messages.
type Consumer interface {
	// Start begins consuming messages and calls the handler for each one.
	// This blocks until the context is canceled or an unrecoverable error
	// occurs.
	Start(ctx context.Context, handler MessageHandler) error

	// Close stops consuming and releases any resources.
	Close() error
}
