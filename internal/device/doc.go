// Package device implements the device operations of the dashboard and CLI on
// top of the api client: the provide toggle and the pairing waits.
//
// # Provide Toggle
//
// Controller changes a device's provide mode optimistically. The new mode is
// written to the local store first, so the dashboard shows it at once, and
// the device/set-provide call runs in the background. The mode the server
// answers with is what ends up in the store. If the call fails the device is
// restored exactly as it was and the mutation reports an
// *optimistic.RollbackError.
//
//	ctl := device.NewController(client, store)
//	mut, err := ctl.Toggle(ctx, clientID)
//	if err != nil {
//		return err // unknown device, nothing was written
//	}
//	// ... later
//	if _, err := mut.Wait(ctx); err != nil {
//		notify(err) // already rolled back
//	}
//
// # Pairing
//
// A share or adopt code resolves once somebody confirms it on the other side.
// StatusCheck builds the poll.CheckFunc for a code and WaitForCode starts a
// poll session with it:
//
//	s, err := device.WaitForCode(ctx, client, api.CodeTypeAdopt, code)
//	assoc, err := s.Wait(ctx)
//
// A status answer that is no longer pending but names no network resolves the
// session without a payload (Status.Ambiguous).
package device
