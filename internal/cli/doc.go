// Package cli implements the byctl command tree.
//
// # Overview
//
// Every command is built by a NewXCommand(rootOpts) constructor and shares
// one RootOptions value. PersistentPreRunE resolves the global flags before
// any RunE runs, so commands read a validated output format, the loaded
// config and a logger from RootOptions instead of parsing them again.
//
// # Commands
//
//	login, logout          session file handling
//	devices [--offline]    device table, cached for offline use
//	provide <id> <mode>    optimistic provide change, waits for the server
//	device add <code>      enter a share or adopt code
//	share create|wait|confirm
//	adopt wait
//	balance show|redeem
//	dash                   live dashboard (bubbletea)
//	logs                   tail of the dashboard log
//
// # Output
//
// Results go to stdout through output.Renderer in the --format chosen.
// Logs and progress go to stderr. Long waits draw a spinner on stderr when
// it is a terminal and the format is text; otherwise they only log.
//
// # Exit Codes
//
//	0  success
//	1  the API call or wait failed, or was interrupted
//	2  the invocation was wrong: bad arguments, unreadable config, not logged in
//
// apiFailure picks between 1 and 2 from the API error: invalid arguments and
// authentication problems are the caller's to fix.
//
// # Credentials
//
// The token comes from BY_JWT when set, otherwise from the session file.
// A .env file in the working directory is loaded before the config so BY_JWT
// and BY_API_URL can live there.
package cli
