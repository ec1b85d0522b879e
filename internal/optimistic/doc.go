// Package optimistic applies a local change before the remote side confirms
// it, and restores the previous value if the remote call fails.
//
// A Change names one Target in a shared Store. Mutator.Start captures the
// target's current value and writes the proposed value in a single Store.Swap,
// then runs the remote call in the background. When the call returns, exactly
// one more write happens for that target: the server's value on success, or
// the captured prior value on failure. Other targets are never touched, so
// concurrent changes to different targets cannot undo each other.
//
// Concurrent changes to the same target are not coordinated; the last settle
// wins.
//
// Failures are reported twice on purpose: the store is rolled back, and
// Mutation.Wait returns a *RollbackError wrapping the remote error so the
// caller can tell the user.
package optimistic
