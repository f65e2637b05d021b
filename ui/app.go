package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/codybloemhard/termdaw-go/internal/engine"
	"github.com/codybloemhard/termdaw-go/internal/midiio"
	"github.com/codybloemhard/termdaw-go/internal/workflow"
)

// tickMsg drives the periodic repaint; the actual engine worker runs
// on its own goroutine inside internal/workflow, this just refreshes
// what the TUI displays of it.
type tickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Model is the bubbletea program for both workflows: a thin view over an
// engine.State plus a command channel feeding a workflow.Runner
// running on its own goroutine (started by the caller before the
// program is run).
type Model struct {
	state    *engine.State
	commands chan<- workflow.Command
	acks     <-chan struct{}
	cancel   context.CancelFunc
	midi     *midiio.Handler

	selected    int
	playing     bool
	devices     *DeviceSelector
	showDevices bool
	err         string
}

// NewModel wires a Model to an already-running workflow.Runner (its
// RunUI or RunStream goroutine reads commands and writes acks) and, for Stream
// projects, the midiio.Handler the user can pick a port for.
func NewModel(state *engine.State, commands chan<- workflow.Command, acks <-chan struct{}, cancel context.CancelFunc, midiHandler *midiio.Handler) Model {
	return Model{
		state:    state,
		commands: commands,
		acks:     acks,
		cancel:   cancel,
		midi:     midiHandler,
		devices:  NewDeviceSelector(),
	}
}

func (m Model) Init() tea.Cmd {
	return tick()
}

// send posts a command and blocks for its ack, mirroring the
// synchronous per-verb handshake workflow.Runner expects from a UI
// thread.
func (m Model) send(msg workflow.Msg, seconds float64) {
	select {
	case m.commands <- workflow.Command{Msg: msg, Seconds: seconds}:
		<-m.acks
	case <-time.After(time.Second):
	}
}

func (m *Model) adjustGain(delta float32) {
	names := m.state.G.Names()
	if m.selected >= len(names) {
		return
	}
	idx, ok := m.state.G.GetIndex(names[m.selected])
	if !ok {
		return
	}
	gain, _ := m.state.G.GainAngle(idx)
	m.state.G.SetGain(idx, gain+delta)
}

func (m *Model) adjustAngle(delta float32) {
	names := m.state.G.Names()
	if m.selected >= len(names) {
		return
	}
	idx, ok := m.state.G.GetIndex(names[m.selected])
	if !ok {
		return
	}
	_, angle := m.state.G.GainAngle(idx)
	m.state.G.SetAngle(idx, angle+delta)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		return m, tick()

	case tea.KeyMsg:
		if m.showDevices {
			return m.updateDevices(msg)
		}
		return m.updateMixer(msg)
	}
	return m, nil
}

func (m Model) updateDevices(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up":
		m.devices.MoveUp()
	case "down":
		m.devices.MoveDown()
	case "r":
		m.devices.Refresh()
	case "esc":
		m.showDevices = false
	case "enter":
		if port, ok := m.devices.GetSelected(); ok && m.midi != nil {
			if err := m.midi.Connect(port, "live", m.state.Config.Settings.ProjectSampleRate()); err != nil {
				m.err = err.Error()
			}
		}
		m.showDevices = false
	case "q", "ctrl+c":
		m.send(workflow.MsgQuit, 0)
		if m.cancel != nil {
			m.cancel()
		}
		return m, tea.Quit
	}
	return m, nil
}

func (m Model) updateMixer(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	names := m.state.G.Names()

	switch msg.String() {
	case "q", "ctrl+c":
		m.send(workflow.MsgQuit, 0)
		if m.cancel != nil {
			m.cancel()
		}
		return m, tea.Quit
	case "left":
		if m.selected > 0 {
			m.selected--
		}
	case "right":
		if m.selected < len(names)-1 {
			m.selected++
		}
	case "up":
		m.adjustGain(0.05)
	case "down":
		m.adjustGain(-0.05)
	case "[":
		m.adjustAngle(-5)
	case "]":
		m.adjustAngle(5)
	case " ":
		if m.playing {
			m.send(workflow.MsgPause, 0)
		} else {
			m.send(workflow.MsgPlay, 0)
		}
		m.playing = !m.playing
	case "s":
		m.send(workflow.MsgStop, 0)
		m.playing = false
	case ">":
		m.send(workflow.MsgSkip, 0)
	case "<":
		m.send(workflow.MsgPrev, 0)
	case "r":
		m.send(workflow.MsgRefresh, 0)
		m.playing = false
	case "w":
		m.send(workflow.MsgRender, 0)
		m.playing = false
	case "n":
		m.send(workflow.MsgNormalize, 0)
		m.playing = false
	case "v":
		m.send(workflow.MsgNormVals, 0)
	case "d":
		m.showDevices = true
		m.devices.Refresh()
	}
	return m, nil
}

func (m Model) View() string {
	if m.showDevices {
		return RenderDeviceSelector(m.devices)
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render(fmt.Sprintf("TermDaw — %s", m.state.Config.Project.Name())))
	b.WriteString("\n")
	b.WriteString(RenderGraph(m.state.G, m.selected))
	b.WriteString("\n")

	if buf, ok := m.state.G.OutputBuffer(); ok {
		b.WriteString(RenderWaveform(buf))
		b.WriteString("\n")
		b.WriteString(RenderVUMeter(buf))
		b.WriteString("\n")
	}

	b.WriteString(RenderStatus(m.state, m.playing))
	b.WriteString("\n")
	if m.err != "" {
		b.WriteString(ValueStyle.Render("error: " + m.err))
		b.WriteString("\n")
	}
	b.WriteString(RenderHelp())
	return b.String()
}
