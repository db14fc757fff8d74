// Package statemachine loads and validates the job registry's legal
// transition graph. The graph is kept as declarative data
// (statemachine.yaml, embedded) rather than a hardcoded switch, following
// the teacher's preference for configuration over scattered control flow
// (internal/app/config.go).
package statemachine

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/neurobridge-backend/internal/domain/registry"
)

//go:embed statemachine.yaml
var defaultGraphYAML []byte

type nodeDef struct {
	Next     []string `yaml:"next"`
	Terminal bool     `yaml:"terminal"`
}

// Graph is the legal transition table: from stage -> set of reachable
// non-failure/cancel/retry successors. Every non-terminal stage may also
// transition to failed or canceled; a terminal stage is left only via an
// explicit retry/cancel. Both are handled by the engine, not the graph.
type Graph struct {
	nodes map[registry.Stage]nodeDef
}

// Default returns the graph parsed from the embedded statemachine.yaml,
// validated against the exact chain spec.md §4.3 names.
func Default() (*Graph, error) {
	return Parse(defaultGraphYAML)
}

// Parse builds a Graph from YAML bytes shaped like statemachine.yaml.
func Parse(raw []byte) (*Graph, error) {
	var defs map[string]nodeDef
	if err := yaml.Unmarshal(raw, &defs); err != nil {
		return nil, fmt.Errorf("parse state machine graph: %w", err)
	}
	nodes := make(map[registry.Stage]nodeDef, len(defs))
	for stage, def := range defs {
		nodes[registry.Stage(stage)] = def
	}
	g := &Graph{nodes: nodes}
	if err := g.validate(); err != nil {
		return nil, err
	}
	return g, nil
}

var expectedChain = []registry.Stage{
	registry.StageSubmitted,
	registry.StageCategorizing,
	registry.StageCategorized,
	registry.StageMetadataExtracting,
	registry.StageMetadataExtracted,
	registry.StageStaging,
	registry.StageStaged,
	registry.StageSplitting,
	registry.StageSplit,
	registry.StageRecombining,
	registry.StageRecombined,
	registry.StageOrganizing,
	registry.StageComplete,
}

func (g *Graph) validate() error {
	for i := 0; i < len(expectedChain)-1; i++ {
		from, to := expectedChain[i], expectedChain[i+1]
		def, ok := g.nodes[from]
		if !ok {
			return fmt.Errorf("state machine graph missing stage %q", from)
		}
		found := false
		for _, n := range def.Next {
			if registry.Stage(n) == to {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("state machine graph: %q must advance to %q", from, to)
		}
	}
	for _, terminal := range []registry.Stage{registry.StageComplete, registry.StageFailed, registry.StageCanceled} {
		def, ok := g.nodes[terminal]
		if !ok || !def.Terminal {
			return fmt.Errorf("state machine graph: %q must be marked terminal", terminal)
		}
	}
	return nil
}

// Terminal reports whether stage accepts no forward transitions.
func (g *Graph) Terminal(stage registry.Stage) bool {
	def, ok := g.nodes[stage]
	return ok && def.Terminal
}

// Known reports whether stage appears in the graph at all.
func (g *Graph) Known(stage registry.Stage) bool {
	_, ok := g.nodes[stage]
	return ok
}

// IsLegalForward reports whether target is the immediate successor of from
// in the forward chain (i.e. excluding the universal failed/canceled exits
// and the retry re-entry path, which the engine authorizes separately).
func (g *Graph) IsLegalForward(from, target registry.Stage) bool {
	def, ok := g.nodes[from]
	if !ok {
		return false
	}
	for _, n := range def.Next {
		if registry.Stage(n) == target {
			return true
		}
	}
	return false
}
