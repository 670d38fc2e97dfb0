// Package diagram renders tree decompositions and graphs as ASCII box-art,
// adapted from a mermaid-flowchart ASCII renderer: a small graph source is
// generated from a treedecomp.Tree or dimacs.Graph, then parsed and rendered
// through the same Parse -> Render pipeline the generator feeds.
package diagram

import (
	"fmt"
	"strings"
)

// Diagram is something that can be parsed from generated flowchart source
// and rendered to an ASCII box layout.
type Diagram interface {
	Parse(input string) error
	Render(cfg *Config) (string, error)
	Type() string
}

// Config controls box-art rendering.
type Config struct {
	Direction        string // "LR" or "TD"
	UseAscii         bool   // plain '+-|' borders instead of box-drawing runes
	BoxBorderPadding int
	PaddingBetweenX  int
	PaddingBetweenY  int
}

// DefaultConfig returns the rendering defaults used when a caller passes nil.
func DefaultConfig() *Config {
	return &Config{
		Direction:        "LR",
		UseAscii:         false,
		BoxBorderPadding: 1,
		PaddingBetweenX:  4,
		PaddingBetweenY:  1,
	}
}

// DiagramFactory inspects generated source and returns the Diagram that
// parses it. Every source this package generates is a flowchart, so this
// only needs to recognize the one declaration line and reject anything else
// rather than guessing at arbitrary hand-written mermaid.
func DiagramFactory(input string) (Diagram, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return nil, fmt.Errorf("empty diagram source")
	}
	firstLine := strings.TrimSpace(strings.SplitN(trimmed, "\n", 2)[0])
	if strings.HasPrefix(firstLine, "flowchart ") || strings.HasPrefix(firstLine, "graph ") {
		return &GraphDiagram{}, nil
	}
	return nil, fmt.Errorf("unrecognized diagram source (expected a flowchart declaration, got %q)", firstLine)
}
