package ui

import (
	"fmt"
	"math"
	"strings"

	"github.com/codybloemhard/termdaw-go/internal/engine"
	"github.com/codybloemhard/termdaw-go/internal/graph"
	"github.com/codybloemhard/termdaw-go/internal/sample"

	"github.com/charmbracelet/lipgloss"
)

const (
	FaderHeight    = 10 // Number of rows for fader display
	WaveformWidth  = 80
	WaveformHeight = 8

	// maxDisplayGain is the fader's full-scale gain; vertex gains above
	// this still apply to audio but peg the fader visually.
	maxDisplayGain = 2.0
)

// RenderFader renders a vertical fader for a value 0-127
func RenderFader(value uint8, height int) string {
	// Calculate filled blocks
	filled := int(float64(value) / 127.0 * float64(height))

	var lines []string
	for i := height - 1; i >= 0; i-- {
		if i < filled {
			lines = append(lines, FaderFillStyle.Render("██"))
		} else {
			lines = append(lines, FaderTrackStyle.Render("░░"))
		}
	}

	return strings.Join(lines, "\n")
}

// RenderPanKnob renders a simple pan indicator
func RenderPanKnob(pan uint8) string {
	// Convert 0-127 to position indicator
	// 0 = full left, 64 = center, 127 = full right
	const width = 7
	pos := int(float64(pan) / 127.0 * float64(width-1))

	indicator := strings.Repeat("─", pos) + "●" + strings.Repeat("─", width-1-pos)

	label := "C"
	if pan < 54 {
		label = fmt.Sprintf("L%d", (64-int(pan))*100/64)
	} else if pan > 74 {
		label = fmt.Sprintf("R%d", (int(pan)-64)*100/63)
	}

	return PanStyle.Render(fmt.Sprintf("[%s]\n %s", indicator, label))
}

// gainToFaderValue maps a vertex's post-processing gain to the
// fader's 0-127 display range, clamping above maxDisplayGain.
func gainToFaderValue(gain float32) uint8 {
	if gain < 0 {
		gain = 0
	}
	if gain > maxDisplayGain {
		gain = maxDisplayGain
	}
	return uint8(gain / maxDisplayGain * 127)
}

// angleToPanValue maps a vertex's [-90, 90] pan angle to the pan
// knob's 0-127 display range.
func angleToPanValue(angle float32) uint8 {
	v := (angle + 90) / 180 * 127
	if v < 0 {
		v = 0
	}
	if v > 127 {
		v = 127
	}
	return uint8(v)
}

// RenderVertex renders a single graph vertex's strip: name, gain
// fader, and pan knob.
func RenderVertex(name string, gain, angle float32, selected bool) string {
	var parts []string

	label := name
	if len(label) > 8 {
		label = label[:8]
	}
	parts = append(parts, ChannelNameStyle.Render(label))
	parts = append(parts, "")

	parts = append(parts, RenderFader(gainToFaderValue(gain), FaderHeight))
	parts = append(parts, ValueStyle.Render(fmt.Sprintf("%.2fx", gain)))
	parts = append(parts, "")

	parts = append(parts, RenderPanKnob(angleToPanValue(angle)))

	content := strings.Join(parts, "\n")

	if selected {
		return SelectedChannelStyle.Render(content)
	}
	return ChannelStyle.Render(content)
}

// RenderGraph renders every declared vertex as a strip, in insertion
// order, highlighting the one at selected.
func RenderGraph(g *graph.Graph, selected int) string {
	names := g.Names()
	if len(names) == 0 {
		return ChannelStyle.Render(ValueStyle.Render("no vertices"))
	}

	views := make([]string, 0, len(names))
	for i, name := range names {
		idx, ok := g.GetIndex(name)
		if !ok {
			continue
		}
		gain, angle := g.GainAngle(idx)
		views = append(views, RenderVertex(name, gain, angle, i == selected))
	}

	return lipgloss.JoinHorizontal(lipgloss.Top, views...)
}

// RenderHelp renders the help bar
func RenderHelp() string {
	help := "←/→: Select  ↑/↓: Gain  [/]: Pan  Space: Play/Pause  S: Stop  </>: Prev/Skip  " +
		"R: Refresh  W: Render  N: Normalize  V: Norm-Vals  D: Devices  Q: Quit"
	return HelpStyle.Render(help)
}

// RenderStatus renders the status bar: project name, load/playback
// state, and the configured workflow mode.
func RenderStatus(state *engine.State, playing bool) string {
	loadedStr := "not loaded"
	if state.Loaded() {
		loadedStr = "loaded"
	}
	playStr := "paused"
	if playing {
		playStr = "playing"
	}

	status := fmt.Sprintf("%s │ %s │ %s │ workflow: %s",
		state.Config.Project.Name(), loadedStr, playStr, state.Config.Settings.WorkflowMode())
	return StatusStyle.Render(status)
}

// RenderWaveform renders a stereo waveform oscilloscope from a chunk
// of rendered audio.
func RenderWaveform(chunk sample.Sample) string {
	if chunk.Len() == 0 {
		return ""
	}

	width := WaveformWidth
	height := WaveformHeight

	step := chunk.Len() / width
	if step < 1 {
		step = 1
	}

	var lines []string

	headerStyle := lipgloss.NewStyle().Foreground(ColorAccent).Bold(true)
	lines = append(lines, headerStyle.Render("┌─ WAVEFORM ─────────────────────────────────────────────────────────────────┐"))

	display := make([][]string, height)
	for i := range display {
		display[i] = make([]string, width)
		for j := range display[i] {
			display[i][j] = " "
		}
	}

	leftStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#06B6D4"))
	rightStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#D946EF"))

	halfHeight := height / 2

	for x := 0; x < width && x*step < chunk.Len(); x++ {
		lSample := float64(chunk.L[x*step])
		rSample := float64(chunk.R[x*step])

		lY := int((1 - lSample) * float64(halfHeight-1))
		rY := halfHeight + int((1-rSample)*float64(halfHeight-1))

		if lY < 0 {
			lY = 0
		}
		if lY >= halfHeight {
			lY = halfHeight - 1
		}
		if rY < halfHeight {
			rY = halfHeight
		}
		if rY >= height {
			rY = height - 1
		}

		display[lY][x] = "L"
		display[rY][x] = "R"
	}

	for y := 0; y < height; y++ {
		var line strings.Builder
		line.WriteString("│")
		for x := 0; x < width; x++ {
			char := display[y][x]
			switch char {
			case "L":
				line.WriteString(leftStyle.Render("█"))
			case "R":
				line.WriteString(rightStyle.Render("█"))
			default:
				if y == halfHeight-1 || y == halfHeight {
					line.WriteString(lipgloss.NewStyle().Foreground(ColorSurface).Render("─"))
				} else {
					line.WriteString(" ")
				}
			}
		}
		line.WriteString("│")
		lines = append(lines, line.String())
	}

	footerStyle := lipgloss.NewStyle().Foreground(ColorTextDim)
	lines = append(lines, footerStyle.Render("└─ ")+leftStyle.Render("■ LEFT")+footerStyle.Render("  ")+rightStyle.Render("■ RIGHT")+footerStyle.Render(" ──────────────────────────────────────────────────────────┘"))

	return strings.Join(lines, "\n")
}

// RenderVUMeter renders a horizontal RMS VU meter from a chunk of
// rendered audio.
func RenderVUMeter(chunk sample.Sample) string {
	var leftRMS, rightRMS float64
	for i := 0; i < chunk.Len(); i++ {
		l := float64(chunk.L[i])
		r := float64(chunk.R[i])
		leftRMS += l * l
		rightRMS += r * r
	}
	if chunk.Len() > 0 {
		leftRMS = math.Sqrt(leftRMS / float64(chunk.Len()))
		rightRMS = math.Sqrt(rightRMS / float64(chunk.Len()))
	}

	width := 40
	leftBars := int(leftRMS * float64(width) * 2)
	rightBars := int(rightRMS * float64(width) * 2)
	if leftBars > width {
		leftBars = width
	}
	if rightBars > width {
		rightBars = width
	}

	greenStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#22C55E"))
	yellowStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#EAB308"))
	redStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))
	dimStyle := lipgloss.NewStyle().Foreground(ColorSurface)

	renderBar := func(level int) string {
		var bar strings.Builder
		for i := 0; i < width; i++ {
			if i < level {
				if i < width*6/10 {
					bar.WriteString(greenStyle.Render("█"))
				} else if i < width*8/10 {
					bar.WriteString(yellowStyle.Render("█"))
				} else {
					bar.WriteString(redStyle.Render("█"))
				}
			} else {
				bar.WriteString(dimStyle.Render("░"))
			}
		}
		return bar.String()
	}

	leftLabel := lipgloss.NewStyle().Foreground(lipgloss.Color("#06B6D4")).Render("L ")
	rightLabel := lipgloss.NewStyle().Foreground(lipgloss.Color("#D946EF")).Render("R ")

	return leftLabel + renderBar(leftBars) + "\n" + rightLabel + renderBar(rightBars)
}
