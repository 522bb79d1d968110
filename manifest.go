package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"rlframework/config"
	"rlframework/simulator"

	"gopkg.in/yaml.v3"
)

type classSummary struct {
	Games    int     `yaml:"games"`
	WinRate  float64 `yaml:"win_rate"`
	TieRate  float64 `yaml:"tie_rate"`
	AvgScore float64 `yaml:"avg_score"`
}

type summary struct {
	Games     int                     `yaml:"games"`
	Successes int                     `yaml:"successes"`
	Failures  map[string]int          `yaml:"failures,omitempty"`
	Skipped   int                     `yaml:"skipped"`
	TieRate   float64                 `yaml:"tie_rate"`
	Classes   map[string]classSummary `yaml:"classes"`
	Samples   int                     `yaml:"samples,omitempty"`
}

// manifest describes a run: the config it used, when it ran and, once
// complete, how it went.
type manifest struct {
	RunID    string         `yaml:"run_id"`
	Started  time.Time      `yaml:"started"`
	Finished *time.Time     `yaml:"finished,omitempty"`
	Duration string         `yaml:"duration,omitempty"`
	Config   *config.Config `yaml:"config"`
	Summary  *summary       `yaml:"summary,omitempty"`
}

func newManifest(runID string, cfg *config.Config) *manifest {
	return &manifest{RunID: runID, Started: time.Now(), Config: cfg}
}

func (m *manifest) Complete(report *simulator.Report) {
	finished := time.Now()
	m.Finished = &finished
	m.Duration = report.Duration.String()

	s := &summary{
		Games:     report.Games,
		Successes: report.Successes,
		Failures:  map[string]int{},
		Skipped:   report.Skipped,
		TieRate:   report.TieRate(),
		Classes:   map[string]classSummary{},
	}
	for kind, n := range report.Failures {
		s.Failures[string(kind)] = n
	}
	for class, stats := range report.Classes {
		s.Classes[class] = classSummary{
			Games:    stats.Games,
			WinRate:  stats.WinRate(),
			TieRate:  stats.TieRate(),
			AvgScore: stats.AvgScore(),
		}
	}
	if report.Dataset != nil {
		s.Samples = report.Dataset.Rows
	}
	m.Summary = s
}

func (m *manifest) Write(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create run directory: %w", err)
	}
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "manifest.yaml"), data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}
