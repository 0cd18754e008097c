// Package schedulers provides time-aware execution contexts for push-based
// streams. A Scheduler creates Workers; a Worker owns a queue of actions
// ordered by due time (ties broken by submission order) and bound to one
// execution context: the calling goroutine (Immediate, CurrentThread), a
// dedicated goroutine (NewThread), one goroutine of a shared pool
// (EventLoop), or an externally pumped loop (RunLoop).
//
// Panics escaping an action are recovered by the dispatching loop, wrapped
// in a *PanicError and reported to the configured error hook; the worker
// keeps processing the actions queued behind it.
package schedulers
