package ui

import (
	"fmt"
	"strings"

	"github.com/codybloemhard/termdaw-go/internal/midiio"
)

// DeviceSelector handles MIDI input port selection. TermDaw only ever
// listens to MIDI (it renders or plays its own audio out), so unlike
// the teacher's in/out pair this tracks a single list.
type DeviceSelector struct {
	Ports    []string
	Selected int
}

// NewDeviceSelector lists the currently available MIDI input ports.
func NewDeviceSelector() *DeviceSelector {
	return &DeviceSelector{
		Ports:    midiio.Ports(),
		Selected: -1,
	}
}

// Refresh reloads available MIDI ports.
func (d *DeviceSelector) Refresh() {
	d.Ports = midiio.Ports()
}

// MoveUp moves the selection up the list.
func (d *DeviceSelector) MoveUp() {
	if d.Selected > 0 {
		d.Selected--
	} else if d.Selected == -1 && len(d.Ports) > 0 {
		d.Selected = 0
	}
}

// MoveDown moves the selection down the list.
func (d *DeviceSelector) MoveDown() {
	if d.Selected < len(d.Ports)-1 {
		d.Selected++
	}
}

// GetSelected returns the selected port name, if any.
func (d *DeviceSelector) GetSelected() (string, bool) {
	if d.Selected >= 0 && d.Selected < len(d.Ports) {
		return d.Ports[d.Selected], true
	}
	return "", false
}

// RenderDeviceSelector renders the MIDI input selection view.
func RenderDeviceSelector(d *DeviceSelector) string {
	var sections []string

	sections = append(sections, TitleStyle.Render("MIDI Input Selection"))
	sections = append(sections, "")
	sections = append(sections, ChannelNameStyle.Render("▸ Input Ports"))

	if len(d.Ports) == 0 {
		sections = append(sections, DeviceItemStyle.Render("  No input devices found"))
	} else {
		for i, name := range d.Ports {
			if i == d.Selected {
				sections = append(sections, DeviceSelectedStyle.Render(fmt.Sprintf("● %s", name)))
			} else {
				sections = append(sections, DeviceItemStyle.Render(fmt.Sprintf("  %s", name)))
			}
		}
	}

	sections = append(sections, "")
	sections = append(sections, HelpStyle.Render("↑/↓: Select  Enter: Connect  R: Refresh  Esc: Cancel"))

	content := strings.Join(sections, "\n")
	return DeviceListStyle.Render(content)
}
