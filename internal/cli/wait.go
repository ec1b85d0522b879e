package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/bringyour/byctl/internal/output"
	"github.com/bringyour/byctl/internal/poll"
	"github.com/bringyour/byctl/internal/ui"
)

// waitFlags are shared by every command that can block on a poll session.
type waitFlags struct {
	wait    bool
	timeout time.Duration
}

func (w *waitFlags) register(cmd *cobra.Command, withWait bool) {
	if withWait {
		cmd.Flags().BoolVar(&w.wait, "wait", false, "poll until the server confirms")
	}
	cmd.Flags().DurationVar(&w.timeout, "timeout", 0, "give up waiting after this long (0 waits until interrupted)")
}

func (w *waitFlags) context(parent context.Context) (context.Context, context.CancelFunc) {
	if w.timeout > 0 {
		return context.WithTimeout(parent, w.timeout)
	}
	return context.WithCancel(parent)
}

// awaitSession blocks until s ends. On a terminal a spinner is drawn on
// stderr; otherwise progress is only logged. A session that does not
// resolve is turned into an ExitError.
func awaitSession[T any](ctx context.Context, cmd *cobra.Command, opts *RootOptions, title string, s *poll.Session[T]) (poll.Status[T], error) {
	// No session started for the command outlives its wait.
	defer opts.sessions.CancelAll()

	var st poll.Status[T]
	if opts.format == output.FormatText && interactive(cmd.ErrOrStderr()) {
		final, err := ui.RunWait[T](ctx, cmd.ErrOrStderr(), title, s, nil)
		if err != nil {
			return final, WrapExitError(ExitFailure, title+" interrupted", err)
		}
		st = final
	} else {
		opts.logger.Debug("waiting", "what", title, "session", s.ID(), "interval", s.Interval())
		if _, err := s.Wait(ctx); err != nil && ctx.Err() != nil {
			s.Cancel()
			return s.Status(), WrapExitError(ExitFailure, title+" interrupted", ctx.Err())
		}
		st = s.Status()
	}

	switch st.State {
	case poll.StateResolved:
		if st.Ambiguous {
			opts.logger.Warn("finished without details", "what", title, "checks", st.Checks)
		}
		return st, nil
	case poll.StateCancelled:
		if ctx.Err() != nil {
			return st, WrapExitError(ExitFailure, title+" interrupted", ctx.Err())
		}
		return st, NewExitError(ExitFailure, title+" cancelled")
	default:
		return st, apiFailure(title+" failed", st.Err)
	}
}
