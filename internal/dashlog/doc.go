// Package dashlog places and reads the dashboard's log file.
//
// # Overview
//
// While `byctl dash` runs, the terminal belongs to the TUI, so log records
// cannot go to stderr. With --verbose they are appended to dash.log in the
// directory of the device cache instead, and `byctl logs` prints the end of
// that file afterwards.
//
//	byctl dash -v ──► slog TextHandler ──► <cache dir>/dash.log
//	                                              │
//	byctl logs -n 50 ◄────────── Tail ◄───────────┘
//
// # Reading
//
// Tail keeps a ring buffer of maxLines entries while scanning the file once,
// so memory stays bounded by the number of lines requested rather than by
// the size of the file. Lines longer than 1MB fail the read.
//
// Example:
//
//	lines, err := dashlog.Tail(dashlog.Path(cfg.CachePath), 50)
//
// A missing log is not an error: it returns no lines.
package dashlog
