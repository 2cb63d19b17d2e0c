// ABOUTME: Byte ring buffer package for the producer/consumer boundary
// ABOUTME: Fixed-capacity FIFO with mutex-guarded read, write and occupancy
// Package ring provides the fixed-capacity byte FIFO that sits between the
// producer goroutine and the device callback.
//
// It is pure mechanism: no blocking, no overwrite policy, no bounds
// enforcement. Callers check Free before Write and Occupied before Read.
//
// Example:
//
//	rb := ring.New(16384)
//	if rb.Free() >= len(p) {
//	    rb.Write(p)
//	}
package ring
