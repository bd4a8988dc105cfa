// Package queue carries job descriptors from admission to the dispatcher.
//
// A Queue is a durable FIFO of JSON payloads. The Redis backend pushes with
// LPUSH and pops with a bounded BRPOP on a single list key; the AMQP backend
// publishes persistent messages to a durable queue and consumes them with a
// prefetch of one, acknowledging on receipt. Pop returns the raw payload so
// the dispatcher can still account for a message whose body is malformed.
//
// Message is the wire format. Decoding accepts the legacy input_folder field
// as an alias for source_location and tolerates timestamps without a zone.
package queue
