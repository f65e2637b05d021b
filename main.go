package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/codybloemhard/termdaw-go/internal/audiodevice"
	"github.com/codybloemhard/termdaw-go/internal/config"
	"github.com/codybloemhard/termdaw-go/internal/engine"
	"github.com/codybloemhard/termdaw-go/internal/midiio"
	"github.com/codybloemhard/termdaw-go/internal/workflow"
	"github.com/codybloemhard/termdaw-go/ui"
)

func main() {
	projectDir := flag.String("project", ".", "project directory containing project.toml")
	renderOnly := flag.Bool("render", false, "render the project to WAV and exit, instead of starting the workflow")
	flag.Parse()

	logger := engine.NewLogger(os.Stdout)

	cfgPath := filepath.Join(*projectDir, "project.toml")
	cfg, err := config.Read(cfgPath)
	if err != nil {
		logger.Error("%v", err)
		os.Exit(1)
	}

	state := engine.New(*projectDir, cfg, logger)
	state.Refresh()
	if !state.Loaded() {
		os.Exit(1)
	}

	if *renderOnly {
		if err := state.Render(); err != nil {
			logger.Error("%v", err)
			os.Exit(1)
		}
		return
	}

	device, err := audiodevice.New(cfg.Settings.ProjectSampleRate())
	if err != nil {
		logger.Error("could not open audio device: %v", err)
		os.Exit(1)
	}
	defer device.Close()

	runner := workflow.New(state, device, cfg.Settings.ProjectSampleRate(), cfg.Settings.BufferLength())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	commands := make(chan workflow.Command, 4)
	acks := make(chan struct{}, 4)

	var midiHandler *midiio.Handler
	switch cfg.Settings.WorkflowMode() {
	case config.Stream:
		midiHandler = midiio.New(64)
		defer midiHandler.Close()
		go runner.RunStream(ctx, commands, midiHandler.Packets(), acks)
	default:
		go runner.RunUI(ctx, commands, acks)
	}

	model := ui.NewModel(state, commands, acks, cancel, midiHandler)
	program := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "termdaw: %v\n", err)
		os.Exit(1)
	}
}
