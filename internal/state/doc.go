// Package state provides thread-safe state management for the byctl dashboard.
//
// # Overview
//
// This package implements the store shared by three writers and one reader:
// the background refresher, the provide toggle (through the optimistic
// package) and the UI, which reads snapshots on its own schedule.
//
// # Architecture
//
//	Refresher:                    Provide toggle:
//	┌────────────────┐            ┌────────────────────┐
//	│ FetchDevices() │            │ mutator.Start()    │
//	│ FetchProviders │            │   store.Swap()     │
//	│ store.Update() │            │   ... remote ...   │
//	└───────┬────────┘            │   store.Settle()   │
//	        │                     └─────────┬──────────┘
//	        └──────────→  Store  ←──────────┘
//	                        │
//	                 store.Snapshot() → UI
//
// # Update Semantics
//
//	// Success: replace devices and providers, reset failures
//	store.Update(devices, providers, nil)
//
//	// Error: keep old data, record error, count the failure
//	store.Update(nil, nil, err)
//
// A device with an unsettled optimistic change keeps its local value across a
// successful Update. Without this, a refresh landing between Swap and Settle
// would show the old provide mode for one poll and flip back afterwards.
//
// # Optimistic Writes
//
// Store implements optimistic.Store[string, api.Device] keyed by client id:
//
//   - Swap: computes the proposed device under the write lock and counts the
//     change as in flight
//   - Settle: writes the final device (server value or prior) and releases
//     the in-flight count
//
// Snapshot.Pending lists the client ids that still have a change in flight so
// the UI can draw a spinner next to them.
//
// # Copy on Read
//
// Snapshot clones the device and provider slices and wraps the last error,
// so the UI never shares memory with the writers.
//
// # Testing Considerations
//
// The zero Store is ready to use:
//
//	var store state.Store
package state
