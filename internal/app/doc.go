// Package app provides the orchestration layer for the byctl dashboard.
//
// # Overview
//
// This package wires together configuration, the API client, the device
// cache, background polling, and the UI. It is the composition root for
// `byctl dash`; the one-shot commands in the cli package talk to the API
// directly and never start a poller.
//
// # Architecture
//
//  1. Build an api.Client from config.Config and the session token
//  2. Open the SQLite device cache and seed the store from it (optional)
//  3. Create the shared state.Store for UI and poller coordination
//  4. Launch the background poller goroutine
//  5. Start the TUI and block until the user exits or the context cancels
//
// # Components
//
//   - app.go: Run and cache seeding
//   - poller.go: Background goroutine that fetches devices and provider stats
//
// # Data Flow
//
//	┌──────────────┐
//	│   Run()      │ Initialize everything
//	└──────┬───────┘
//	       │
//	       ├─────> api.NewClient()         Authenticated HTTP client
//	       ├─────> cache.Open()            Last known device list
//	       ├─────> state.Store{}           Shared state container
//	       ├─────> StartPoller()           Launch background updates
//	       ├─────> device.NewController()  Optimistic provide toggles
//	       └─────> ui.Run()                Start TUI (blocks)
//
//	Background Poller Loop:
//	┌─────────────────────────────────────────┐
//	│ StartPoller() goroutine                 │
//	│  ├─> FetchDevices()                     │
//	│  ├─> FetchProviders()                   │
//	│  ├─> store.Update()  (atomic)           │
//	│  └─> cache.SaveDevices()                │
//	│      └─> UI reads store.Snapshot()      │
//	└─────────────────────────────────────────┘
//
// # Polling Behavior
//
// The poller refreshes immediately on start and then waits for the
// configured interval (default 2 seconds). While the API keeps failing the
// wait doubles per consecutive failure, capped at 30 seconds, and the store
// keeps the last good data with the error recorded next to it.
//
// Kick skips the current wait. The UI calls it after a provide change
// settles so the confirmed server state shows up without waiting a full
// interval. Kicks issued while one is already queued are coalesced.
//
// Devices with an unsettled provide change keep their local value across a
// refresh; see state.Store.Update.
//
// # Error Handling
//
// Fatal errors (returned from Run):
//   - Missing session token
//   - Invalid API URL
//   - TUI failure
//
// Recoverable errors (logged, polling continues):
//   - Device or provider fetch failures
//   - Cache open, load, or save failures
//
// # Testing
//
// Poller tests run against apitest.Server with a clockwork fake clock, so
// backoff timing is asserted by advancing time rather than sleeping.
package app
