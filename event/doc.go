// Package event defines the runtime event schema (§3, §6.3), the closed
// vocabulary of event kinds (§4.5), the write-only Sink interface, and an
// Emitter that assigns strictly increasing sequence numbers and delivers
// events to a Sink one at a time, in assignment order, without holding any
// lock across the delivery I/O (§5).
package event
