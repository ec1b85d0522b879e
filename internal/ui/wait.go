package ui

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/bringyour/byctl/internal/poll"
)

// WaitModel shows a spinner while a poll session is pending and exits once
// it reaches a terminal state. Pressing q, esc or ctrl+c cancels the session.
type WaitModel[T any] struct {
	title    string
	session  *poll.Session[T]
	describe func(T) string
	styles   Styles
	spinner  spinner.Model

	status  poll.Status[T]
	started time.Time
	now     time.Time
	done    bool
}

// NewWaitModel creates a waiter for session. describe renders a resolved
// payload; it may be nil.
func NewWaitModel[T any](title string, session *poll.Session[T], describe func(T) string) WaitModel[T] {
	styles := GetTheme("").Styles()
	sp := spinner.New(spinner.WithSpinner(spinner.MiniDot))
	sp.Style = styles.AccentText
	now := time.Now()
	return WaitModel[T]{
		title:    title,
		session:  session,
		describe: describe,
		styles:   styles,
		spinner:  sp,
		status:   session.Status(),
		started:  now,
		now:      now,
	}
}

// Status returns the last status the model saw.
func (m WaitModel[T]) Status() poll.Status[T] {
	return m.status
}

type waitStatusMsg[T any] struct {
	status poll.Status[T]
	closed bool
}

// Init implements tea.Model.
func (m WaitModel[T]) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, nextStatus(m.session))
}

func nextStatus[T any](s *poll.Session[T]) tea.Cmd {
	return func() tea.Msg {
		st, ok := <-s.Changes()
		if !ok {
			return waitStatusMsg[T]{status: s.Status(), closed: true}
		}
		return waitStatusMsg[T]{status: st}
	}
}

// Update implements tea.Model.
func (m WaitModel[T]) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			m.session.Cancel()
		}
		return m, nil

	case waitStatusMsg[T]:
		m.status = msg.status
		if msg.closed || m.status.State.Terminal() {
			m.done = true
			return m, tea.Quit
		}
		return m, nextStatus(m.session)

	case spinner.TickMsg:
		m.now = time.Now()
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View implements tea.Model.
func (m WaitModel[T]) View() string {
	st := m.status
	if !m.done {
		elapsed := m.now.Sub(m.started).Round(time.Second)
		line := fmt.Sprintf("%s %s", m.spinner.View(), m.title)
		meta := fmt.Sprintf(" (%d checks, %s)", st.Checks, elapsed)
		if st.Err != nil {
			meta = fmt.Sprintf(" (%d checks, last error: %v)", st.Checks, st.Err)
		}
		return line + m.styles.MutedText.Render(meta) + "\n"
	}

	switch st.State {
	case poll.StateResolved:
		text := m.title + ": done"
		if st.Ambiguous {
			return m.styles.WarningText.Render("? "+m.title+": finished without details") + "\n"
		}
		if m.describe != nil {
			if d := strings.TrimSpace(m.describe(st.Payload)); d != "" {
				text = d
			}
		}
		return m.styles.SuccessText.Render("✓ "+text) + "\n"
	case poll.StateCancelled:
		return m.styles.MutedText.Render("- "+m.title+": cancelled") + "\n"
	default:
		return m.styles.DangerText.Render(fmt.Sprintf("✗ %s: %v", m.title, st.Err)) + "\n"
	}
}

// RunWait renders a WaitModel on out until the session ends and returns its
// final status. Cancelling ctx cancels the session.
func RunWait[T any](ctx context.Context, out io.Writer, title string, session *poll.Session[T], describe func(T) string) (poll.Status[T], error) {
	m := NewWaitModel(title, session, describe)
	p := tea.NewProgram(m, tea.WithContext(ctx), tea.WithOutput(out))
	final, err := p.Run()
	if err != nil {
		session.Cancel()
		if ctx.Err() != nil {
			return session.Status(), ctx.Err()
		}
		return session.Status(), fmt.Errorf("run wait view: %w", err)
	}
	if wm, ok := final.(WaitModel[T]); ok {
		return wm.Status(), nil
	}
	return session.Status(), nil
}
