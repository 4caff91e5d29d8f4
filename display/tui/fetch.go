package tui

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"gitlab.com/tinyland/lab/stat-pulse/collectors"
	"gitlab.com/tinyland/lab/stat-pulse/transport"
	"gitlab.com/tinyland/lab/stat-pulse/view"
)

// staticTimeout bounds the get-static-data round trip.
const staticTimeout = 5 * time.Second

// sampleMsg carries one statistics event.
type sampleMsg struct {
	sample collectors.Sample
}

// viewMsg carries one change-view command.
type viewMsg struct {
	view view.View
}

// frameMsg carries one window-control command.
type frameMsg struct {
	action string
}

// staticMsg carries the get-static-data reply.
type staticMsg struct {
	caps collectors.StaticCapabilities
	err  error
}

// decodeErrMsg reports a payload that could not be decoded. The listener
// keeps running.
type decodeErrMsg struct {
	channel string
	err     error
}

// closedMsg reports that a subscription ended, normally because the
// endpoint went away.
type closedMsg struct {
	channel string
}

// listenCmd blocks for the next payload on sub and converts it into a message.
// Update re-arms the listener after each message, so payloads are applied in
// channel order.
func listenCmd(sub *transport.Subscription) tea.Cmd {
	return func() tea.Msg {
		raw, ok := <-sub.C
		if !ok {
			return closedMsg{channel: sub.Channel()}
		}
		return decodeMsg(sub.Channel(), raw)
	}
}

func decodeMsg(channel string, raw json.RawMessage) tea.Msg {
	switch channel {
	case transport.ChannelStatistics:
		s, err := transport.Decode[collectors.Sample](raw)
		if err != nil {
			return decodeErrMsg{channel: channel, err: err}
		}
		return sampleMsg{sample: s}
	case transport.ChannelChangeView:
		name, err := transport.Decode[string](raw)
		if err != nil {
			return decodeErrMsg{channel: channel, err: err}
		}
		v, err := view.Parse(name)
		if err != nil {
			return decodeErrMsg{channel: channel, err: err}
		}
		return viewMsg{view: v}
	case transport.ChannelFrameAction:
		action, err := transport.Decode[string](raw)
		if err != nil {
			return decodeErrMsg{channel: channel, err: err}
		}
		return frameMsg{action: action}
	}
	return decodeErrMsg{channel: channel, err: fmt.Errorf("tui: unexpected channel %q", channel)}
}

// fetchStaticCmd asks the producer for the static capabilities once.
func fetchStaticCmd(ep transport.Endpoint) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), staticTimeout)
		defer cancel()

		var caps collectors.StaticCapabilities
		err := ep.Invoke(ctx, transport.ChannelStaticData, &caps)
		return staticMsg{caps: caps, err: err}
	}
}
