// Package config loads project.toml, the static settings document that
// names the project, the main script to evaluate, and the workflow
// mode the engine should run under.
package config

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// Workflow selects which control driver (internal/workflow) the
// engine starts under.
type Workflow int

const (
	Manual Workflow = iota
	Stream
)

func (w Workflow) String() string {
	switch w {
	case Stream:
		return "stream"
	default:
		return "manual"
	}
}

// Project is the `[project]` table.
type Project struct {
	NameField *string `toml:"name"`
}

// Name defaults to "unnamed" when absent.
func (p Project) Name() string {
	if p.NameField == nil {
		return "unnamed"
	}
	return *p.NameField
}

// Settings is the `[settings]` table.
type Settings struct {
	Main                string  `toml:"main"`
	BufferLengthField   *int    `toml:"buffer_length"`
	ProjectSRField      *int    `toml:"project_samplerate"`
	WorkflowField       *string `toml:"workflow"`
}

// BufferLength defaults to 1024 when absent.
func (s Settings) BufferLength() int {
	if s.BufferLengthField == nil {
		return 1024
	}
	return *s.BufferLengthField
}

// ProjectSampleRate defaults to 44100 when absent.
func (s Settings) ProjectSampleRate() int {
	if s.ProjectSRField == nil {
		return 44100
	}
	return *s.ProjectSRField
}

// WorkflowMode defaults to Manual when absent or unrecognized.
func (s Settings) WorkflowMode() Workflow {
	if s.WorkflowField == nil {
		return Manual
	}
	if *s.WorkflowField == "stream" {
		return Stream
	}
	return Manual
}

// Config is the full project.toml document.
type Config struct {
	Project  Project  `toml:"project"`
	Settings Settings `toml:"settings"`
}

// Read parses the TOML document at path.
func Read(path string) (Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: Read: could not parse %q: %w", path, err)
	}
	return cfg, nil
}
