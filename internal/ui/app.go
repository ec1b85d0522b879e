package ui

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/bringyour/byctl/internal/api"
	"github.com/bringyour/byctl/internal/device"
	"github.com/bringyour/byctl/internal/state"
)

// maxNotices bounds the status lines kept under the device table.
const maxNotices = 5

// Toggler flips the provide mode of a device optimistically.
type Toggler interface {
	Toggle(ctx context.Context, clientID string) (*device.Mutation, error)
}

// Options configures the dashboard.
type Options struct {
	Context     context.Context
	Store       *state.Store
	Toggler     Toggler
	Refresh     func() // asks the background poller for an early refresh
	PollTick    time.Duration
	NetworkName string
	ThemeName   string
}

// notice is one line in the status area. Each settled mutation produces
// exactly one.
type notice struct {
	text string
	err  bool
}

// Model is the dashboard state for Bubble Tea.
type Model struct {
	ctx         context.Context
	store       *state.Store
	toggler     Toggler
	refresh     func()
	pollTick    time.Duration
	networkName string

	theme   Theme
	keys    keyMap
	help    help.Model
	spinner spinner.Model
	width   int
	height  int
	ready   bool

	snapshot state.Snapshot
	selected int

	notices  []notice
	settled  map[string]bool // mutation ids already reported
	toggling map[string]bool // client ids toggled from this model and not yet settled
}

// New creates a dashboard model.
func New(opts Options) Model {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	pollTick := opts.PollTick
	if pollTick <= 0 {
		pollTick = time.Second
	}
	refresh := opts.Refresh
	if refresh == nil {
		refresh = func() {}
	}

	sp := spinner.New(spinner.WithSpinner(spinner.Dot))
	theme := GetTheme(opts.ThemeName)
	sp.Style = theme.Styles().AccentText

	return Model{
		ctx:         ctx,
		store:       opts.Store,
		toggler:     opts.Toggler,
		refresh:     refresh,
		pollTick:    pollTick,
		networkName: opts.NetworkName,
		theme:       theme,
		keys:        DefaultKeyMap(),
		help:        help.New(),
		spinner:     sp,
		settled:     make(map[string]bool),
		toggling:    make(map[string]bool),
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{tickCmd(m.pollTick), m.spinner.Tick}
	if m.store != nil {
		cmds = append(cmds, fetchSnapshotCmd(m.store))
	}
	return tea.Batch(cmds...)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.ready = true
		return m, nil

	case tickMsg:
		var cmds []tea.Cmd
		if m.store != nil {
			cmds = append(cmds, fetchSnapshotCmd(m.store))
		}
		cmds = append(cmds, tickCmd(m.pollTick))
		return m, tea.Batch(cmds...)

	case snapshotMsg:
		m.snapshot = state.Snapshot(msg)
		m.selected = clamp(m.selected, 0, len(m.snapshot.Devices)-1)
		return m, nil

	case toggleStartedMsg:
		if msg.err != nil {
			delete(m.toggling, msg.clientID)
			m.addNotice(fmt.Sprintf("%s: %v", msg.name, msg.err), true)
			return m, nil
		}
		cmds := []tea.Cmd{waitForMutation(m.ctx, msg.name, msg.mutation)}
		if m.store != nil {
			cmds = append(cmds, fetchSnapshotCmd(m.store))
		}
		return m, tea.Batch(cmds...)

	case settledMsg:
		return m.handleSettled(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	last := len(m.snapshot.Devices) - 1
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	case key.Matches(msg, m.keys.CycleTheme):
		m.theme = GetTheme(NextTheme(m.theme.Name))
		m.spinner.Style = m.theme.Styles().AccentText
	case key.Matches(msg, m.keys.Up):
		m.selected = clamp(m.selected-1, 0, last)
	case key.Matches(msg, m.keys.Down):
		m.selected = clamp(m.selected+1, 0, last)
	case key.Matches(msg, m.keys.Top):
		m.selected = 0
	case key.Matches(msg, m.keys.Bottom):
		m.selected = clamp(last, 0, last)
	case key.Matches(msg, m.keys.Refresh):
		m.refresh()
		if m.store != nil {
			return m, fetchSnapshotCmd(m.store)
		}
	case key.Matches(msg, m.keys.ToggleProvide):
		return m, m.toggleSelected()
	}
	return m, nil
}

// toggleSelected starts a provide toggle for the highlighted device. A device
// that already has a change in flight is left alone, including one whose
// toggle was requested but is not in a snapshot yet.
func (m Model) toggleSelected() tea.Cmd {
	d, ok := m.selectedDevice()
	if !ok || m.toggler == nil {
		return nil
	}
	if m.snapshot.Pending[d.ClientID] || m.toggling[d.ClientID] {
		return nil
	}
	m.toggling[d.ClientID] = true
	return toggleCmd(m.ctx, m.toggler, d)
}

func (m Model) handleSettled(msg settledMsg) (tea.Model, tea.Cmd) {
	if m.settled[msg.id] {
		return m, nil
	}
	m.settled[msg.id] = true
	delete(m.toggling, msg.clientID)

	if msg.err != nil {
		m.addNotice(fmt.Sprintf("%s: provide change rolled back: %v", msg.name, msg.err), true)
	} else {
		m.addNotice(fmt.Sprintf("%s: now %s", msg.name, msg.value.ProvideMode.Label()), false)
	}

	// Settled values are confirmed by the next full refresh.
	m.refresh()
	if m.store != nil {
		return m, fetchSnapshotCmd(m.store)
	}
	return m, nil
}

func (m *Model) addNotice(text string, isErr bool) {
	m.notices = append(m.notices, notice{text: text, err: isErr})
	if len(m.notices) > maxNotices {
		m.notices = m.notices[len(m.notices)-maxNotices:]
	}
}

func (m Model) selectedDevice() (api.Device, bool) {
	if m.selected < 0 || m.selected >= len(m.snapshot.Devices) {
		return api.Device{}, false
	}
	return m.snapshot.Devices[m.selected], true
}

// Messages

type tickMsg time.Time

type snapshotMsg state.Snapshot

type toggleStartedMsg struct {
	clientID string
	name     string
	mutation *device.Mutation
	err      error
}

type settledMsg struct {
	id       string
	clientID string
	name     string
	value    api.Device
	err      error
}

// Commands

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func fetchSnapshotCmd(store *state.Store) tea.Cmd {
	return func() tea.Msg {
		return snapshotMsg(store.Snapshot())
	}
}

func toggleCmd(ctx context.Context, toggler Toggler, d api.Device) tea.Cmd {
	name := d.Name()
	return func() tea.Msg {
		mut, err := toggler.Toggle(ctx, d.ClientID)
		return toggleStartedMsg{clientID: d.ClientID, name: name, mutation: mut, err: err}
	}
}

func waitForMutation(ctx context.Context, name string, mut *device.Mutation) tea.Cmd {
	return func() tea.Msg {
		value, err := mut.Wait(ctx)
		if err != nil && ctx.Err() != nil {
			return nil
		}
		return settledMsg{id: mut.ID(), clientID: mut.Target(), name: name, value: value, err: err}
	}
}

// Run starts the dashboard and blocks until the user quits or the context in
// opts is cancelled.
func Run(opts Options) error {
	m := New(opts)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(m.ctx))
	_, err := p.Run()
	if err != nil && m.ctx.Err() != nil {
		return nil
	}
	return err
}
