// Package poll turns a single-shot status check into a fixed-interval polling
// session that runs until the remote side reports completion, the check fails,
// or the caller cancels.
//
// # Overview
//
// Pairing flows (device share codes, adopt codes) and balance-code redemption
// resolve on human timescales: somebody has to confirm the code on another
// device. The client waits by asking a status endpoint every two seconds until
// the answer stops being "pending". This package owns that loop so call sites
// only provide the check itself.
//
// # State Machine
//
//	Pending --(pending result)-----> Pending
//	Pending --(resolved result)----> Resolved
//	Pending --(error or panic)-----> Failed
//	Pending --(Cancel / ctx done)--> Cancelled
//
// Resolved, Failed and Cancelled are terminal. A terminal session never invokes
// its check again and holds no timer.
//
// # Scheduling
//
// The first check runs as soon as Start is called. Each following check is
// scheduled interval after the previous one returned, so at most one check is
// ever in flight regardless of how short the interval is:
//
//	t=0      check #1 -> pending
//	t=2s     check #2 -> pending
//	t=4s     check #3 -> resolved (session ends)
//
// # Observing a Session
//
// Status returns a copy of the current state. Changes delivers the latest
// status on a channel with a buffer of one; stale values are replaced rather
// than queued, and the channel is closed right after the terminal status is
// published, so a consumer ranging over it sees exactly one terminal value.
// Wait blocks until the session ends and returns the payload or the error.
//
//	s := poll.Start(ctx, check, poll.WithInterval(2*time.Second))
//	for st := range s.Changes() {
//		render(st)
//	}
//
// Cancel may be called from any goroutine, including the one ranging over
// Changes, but not from inside the check. It cancels the context of a check
// that is reserved or running and waits for that check to return, so once
// Cancel returns no check is running and none is started again. The result of
// the interrupted check is discarded. A check that ignores its context holds
// Cancel until it returns.
//
// # Registry
//
// A Registry tracks sessions by id for callers that hand out handles instead of
// *Session values. Cancelling an id the registry never saw is a caller bug and
// returns ErrUnknownSession.
//
// # Results Without Payload
//
// Some endpoints answer pending=false without the data the caller expected.
// Such results are treated as Resolved and flagged with Status.Ambiguous so the
// caller can decide how to present them.
package poll
