// Package tui implements the stat-pulse terminal dashboard, a bubbletea
// consumer of the statistics, change-view and send-frame-action channels.
package tui

import (
	"io"
	"log/slog"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	zone "github.com/lrstanley/bubblezone"

	"gitlab.com/tinyland/lab/stat-pulse/collectors"
	"gitlab.com/tinyland/lab/stat-pulse/display/widgets"
	"gitlab.com/tinyland/lab/stat-pulse/history"
	"gitlab.com/tinyland/lab/stat-pulse/transport"
	"gitlab.com/tinyland/lab/stat-pulse/view"
)

// Options configures a dashboard Model.
type Options struct {
	// Endpoint the dashboard consumes. Required.
	Endpoint transport.Endpoint
	// Capacity of the sample history. If 0, history.DefaultCapacity.
	Capacity int
	// InitialView is the view charted at startup. Invalid means CPU.
	InitialView view.View
	// Zones enables mouse selection of metric cards. Nil disables it.
	Zones *zone.Manager
	// Logger for dropped payloads and ignored frame actions. Nil is safe.
	Logger *slog.Logger
}

// Model is the top-level Bubbletea model for the stat-pulse dashboard.
// Each Model owns its own history, so two dashboards on one producer never
// share state.
type Model struct {
	ep     transport.Endpoint
	stats  *transport.Subscription
	views  *transport.Subscription
	frames *transport.Subscription

	buf  *history.Buffer
	proj *view.Projector

	static    *collectors.StaticCapabilities
	staticErr error
	link      widgets.LinkState

	width       int
	height      int
	ready       bool
	help        help.Model
	zones       *zone.Manager
	logger      *slog.Logger
	lastUpdated time.Time
}

// NewModel subscribes to the consumer channels and returns a Model with an
// empty history. Subscribing here, before the program starts, means no
// sample published after NewModel returns is missed.
func NewModel(opts Options) Model {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	buf := history.New(opts.Capacity)

	return Model{
		ep:     opts.Endpoint,
		stats:  opts.Endpoint.Subscribe(transport.ChannelStatistics),
		views:  opts.Endpoint.Subscribe(transport.ChannelChangeView),
		frames: opts.Endpoint.Subscribe(transport.ChannelFrameAction),
		buf:    buf,
		proj:   view.NewProjector(buf, opts.InitialView),
		link:   widgets.LinkWaiting,
		help:   help.New(),
		zones:  opts.Zones,
		logger: logger,
	}
}

// Close detaches the Model's subscriptions.
func (m Model) Close() {
	m.stats.Close()
	m.views.Close()
	m.frames.Close()
}

// ActiveView returns the view currently charted.
func (m Model) ActiveView() view.View {
	return m.proj.Active()
}

// History returns the Model's sample buffer.
func (m Model) History() *history.Buffer {
	return m.buf
}

// Init implements tea.Model. It starts the channel listeners and requests
// the static capabilities.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		listenCmd(m.stats),
		listenCmd(m.views),
		listenCmd(m.frames),
		fetchStaticCmd(m.ep),
	)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, keys.NextView):
			m.proj.Switch(m.proj.Active().Next())
		case key.Matches(msg, keys.PrevView):
			m.proj.Switch(m.proj.Active().Prev())
		case key.Matches(msg, keys.CPU):
			m.proj.Switch(view.CPU)
		case key.Matches(msg, keys.RAM):
			m.proj.Switch(view.RAM)
		case key.Matches(msg, keys.Storage):
			m.proj.Switch(view.Storage)
		case key.Matches(msg, keys.Help):
			m.help.ShowAll = !m.help.ShowAll
		}

	case tea.MouseMsg:
		if v, ok := m.cardAt(msg); ok {
			m.proj.Switch(v)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.ready = true

	case sampleMsg:
		m.buf.Push(msg.sample)
		m.link = widgets.LinkLive
		m.lastUpdated = time.Now()
		return m, listenCmd(m.stats)

	case viewMsg:
		m.proj.Switch(msg.view)
		return m, listenCmd(m.views)

	case frameMsg:
		if msg.action == transport.FrameClose {
			return m, tea.Quit
		}
		m.logger.Debug("frame action has no terminal equivalent", "action", msg.action)
		return m, listenCmd(m.frames)

	case staticMsg:
		if msg.err != nil {
			m.staticErr = msg.err
			m.logger.Warn("static data unavailable", "error", msg.err)
			break
		}
		caps := msg.caps
		m.static = &caps
		m.staticErr = nil

	case decodeErrMsg:
		m.logger.Debug("dropped undecodable payload", "channel", msg.channel, "error", msg.err)
		return m, m.relisten(msg.channel)

	case closedMsg:
		if msg.channel == transport.ChannelStatistics {
			m.link = widgets.LinkLost
		}
	}

	return m, nil
}

// relisten re-arms the listener for channel.
func (m Model) relisten(channel string) tea.Cmd {
	switch channel {
	case transport.ChannelStatistics:
		return listenCmd(m.stats)
	case transport.ChannelChangeView:
		return listenCmd(m.views)
	case transport.ChannelFrameAction:
		return listenCmd(m.frames)
	}
	return nil
}

// cardAt returns the view whose card a left click released on.
func (m Model) cardAt(msg tea.MouseMsg) (view.View, bool) {
	if m.zones == nil {
		return "", false
	}
	if msg.Action != tea.MouseActionRelease || msg.Button != tea.MouseButtonLeft {
		return "", false
	}
	for _, v := range view.All() {
		if z := m.zones.Get(cardZoneID(v)); z != nil && z.InBounds(msg) {
			return v, true
		}
	}
	return "", false
}

// View implements tea.Model. It renders the header, the metric cards, the
// active chart and the footer.
func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}

	layout := layoutFor(m.width)

	header := m.renderHeader()
	content := lipgloss.JoinVertical(lipgloss.Left,
		m.renderCards(layout),
		"",
		m.renderChart(layout),
	)
	footer := m.renderFooter()

	out := lipgloss.JoinVertical(lipgloss.Left,
		header,
		st.content.Width(m.width).Render(content),
		footer,
	)
	if m.zones != nil {
		return m.zones.Scan(out)
	}
	return out
}
