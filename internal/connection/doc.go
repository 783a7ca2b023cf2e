// Package connection implements the reconnecting client connection manager.
//
// The Manager:
//   - Owns at most one transport handle at a time
//   - Drives Disconnected → Connecting → Open → Closing → Disconnected
//   - Schedules exactly one reconnect after an unexpected close
//   - Never reconnects after Close, and cancels any pending retry
//   - Publishes lifecycle events through an unbounded queue
package connection
