package engine

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// Logger prints the engine's status/info/warning/error lines,
// color-coded the way the original's term_basics_linux::UC helper
// did (status/info plain, ok green, warnings yellow, errors red).
// Colors are only applied when out is a terminal.
type Logger struct {
	out   io.Writer
	color bool
	ok    lipgloss.Style
	warn  lipgloss.Style
	err   lipgloss.Style
}

// NewLogger builds a Logger writing to out.
func NewLogger(out io.Writer) *Logger {
	color := false
	if f, ok := out.(*os.File); ok {
		color = isatty.IsTerminal(f.Fd())
	}
	return &Logger{
		out:   out,
		color: color,
		ok:    lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
		warn:  lipgloss.NewStyle().Foreground(lipgloss.Color("3")),
		err:   lipgloss.NewStyle().Foreground(lipgloss.Color("1")),
	}
}

// Status reports a plain status line ("doing X now").
func (l *Logger) Status(format string, a ...interface{}) {
	l.plain("Status: "+format, a...)
}

// Info reports a plain informational line.
func (l *Logger) Info(format string, a ...interface{}) {
	l.plain("Info: "+format, a...)
}

// Ok reports a successful completion, in green when attached to a terminal.
func (l *Logger) Ok(format string, a ...interface{}) {
	l.styled(l.ok, "Ok: "+format, a...)
}

// Warn reports a non-fatal problem, in yellow when attached to a terminal.
func (l *Logger) Warn(format string, a ...interface{}) {
	l.styled(l.warn, "TermDaw: warning: "+format, a...)
}

// Error reports a fatal problem, in red when attached to a terminal.
func (l *Logger) Error(format string, a ...interface{}) {
	l.styled(l.err, "TermDaw: error: "+format, a...)
}

func (l *Logger) plain(format string, a ...interface{}) {
	fmt.Fprintln(l.out, fmt.Sprintf(format, a...))
}

func (l *Logger) styled(style lipgloss.Style, format string, a ...interface{}) {
	msg := fmt.Sprintf(format, a...)
	if l.color {
		msg = style.Render(msg)
	}
	fmt.Fprintln(l.out, msg)
}
