// Package ui provides the terminal views of byctl.
//
// # Overview
//
// Two Bubble Tea programs live here:
//
//   - Model: the live device dashboard started by `byctl dash`
//   - WaitModel: a one-line spinner shown while a pairing code or a redeemed
//     balance is being polled
//
// Both are plain tea.Models so tests drive them by calling Update with
// messages and inspecting View.
//
// # Dashboard
//
// The dashboard reads state.Store snapshots on a tick and never talks to the
// API itself. Fetching is done by the background poller in the app package;
// provide changes go through a Toggler (device.Controller in production).
//
// Toggling a device:
//
//  1. `p` on the selected row calls Toggler.Toggle, which writes the proposed
//     mode into the store before the network call starts
//  2. the row shows a spinner while the store reports the device as pending
//  3. when the mutation settles, exactly one status line is appended (the new
//     mode, or the rollback error) and Options.Refresh asks the poller for an
//     early refresh
//
// A device with a change in flight ignores further toggles until it settles.
//
// # Layout
//
//	byctl · my-network  3 devices  updated 2 seconds ago
//
//	  NAME                     CLIENT ID  PROVIDE              STATUS    UPTIME 24H
//	  laptop                   6f1c2a9e   Public               online    23.5h
//	⠋ phone                    0b7d4c11   Friends And Family   offline   -
//
//	  ✓ laptop: now Public
//	  p Toggle provide • r Refresh • ? Toggle help • q Quit
//
// The header turns red once state.Snapshot.IsOffline reports repeated refresh
// failures; the last known device list stays on screen.
//
// # Keys
//
//   - j/k, arrows: move selection
//   - g/G: first/last device
//   - p, enter, space: toggle provide mode
//   - r: refresh now
//   - T: cycle theme
//   - ?: full help
//   - q, ctrl+c: quit
package ui
