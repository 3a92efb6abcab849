// Package notifier delivers outbound chat messages asynchronously.
//
// Callers enqueue a transport.Notification and return immediately. A small
// worker pool drains the queue, paces sends with a token bucket and retries
// failed sends with jittered exponential backoff when RetryMax > 0.
//
// # Dedup
//
// With DedupWindow > 0, identical notifications (same channel, target and
// text) enqueued within the window are suppressed. The slot watcher leaves it
// off: a subscriber is told about open slots on every cycle that finds them.
//
// # History
//
// The service keeps a small in-memory history of delivered messages for the
// /status command.
package notifier
