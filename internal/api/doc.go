// Package api provides an HTTP client for the BringYour network API.
//
// # Overview
//
// The client is a thin, typed wrapper over the JSON endpoints the dashboard
// and CLI need: authentication, the network's device list, provider stats,
// device provide mode, device pairing (add, share, adopt, confirm) and
// subscription balance codes. It holds no state besides the bearer token it
// was constructed with.
//
// # Client Usage
//
//	client, err := api.NewClient("https://api.bringyour.com/", api.WithToken(jwt))
//	if err != nil {
//		return err
//	}
//
//	devices, err := client.FetchDevices(ctx)
//	if err != nil {
//		var apiErr *api.Error
//		if errors.As(err, &apiErr) && apiErr.Kind == api.KindAuth {
//			// ask the user to log in again
//		}
//	}
//
// # Endpoints
//
//   - POST auth/code-login, auth/login-with-password
//   - GET  network/clients, stats/providers, subscription/balance
//   - POST device/set-provide, device/add, device/create-share-code
//   - POST device/share-status, device/adopt-status, device/confirm-share
//   - POST subscription/check-balance-code, subscription/redeem-balance-code
//
// Endpoint paths are relative to the configured API URL, so a URL with a path
// prefix ("https://example.com/api/") keeps that prefix.
//
// # Request Handling
//
// All requests:
//   - Use context for cancellation
//   - Send Accept: application/json and User-Agent: byctl/<version>
//   - Send Authorization: Bearer <jwt> when a token is configured
//   - Encode bodies as JSON for POST
//   - Share one http.Client with a configurable timeout (default 10 seconds)
//
// # Error Handling
//
// Almost every BringYour response may carry an optional error object:
//
//	{"error": {"message": "Invalid code."}}
//
// The client checks for it once, at decode time, and turns it into an *Error
// with Kind KindRemote. Callers never inspect response bodies for an error
// field themselves. Other kinds:
//
//   - KindNetwork: the request never produced a response
//   - KindHTTP: a 4xx/5xx status not covered below
//   - KindAuth: 401 or 403
//   - KindRateLimit: 429, with RetryAfter parsed from the header
//   - KindParse: the body was not valid JSON
//
// Malformed arguments (an empty code, a client id that is not a UUID) are
// rejected before any request is made.
//
// # Thread Safety
//
// A Client is safe for concurrent use.
//
// # Design Rationale
//
// No caching and no retries live here. The poll and optimistic packages own
// retry cadence and local state; the remote call stays a single attempt with
// a single timeout so the two never stack.
package api
