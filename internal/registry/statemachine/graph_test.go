package statemachine_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yungbote/neurobridge-backend/internal/domain/registry"
	"github.com/yungbote/neurobridge-backend/internal/registry/statemachine"
)

func TestDefault_ValidatesTheExpectedChain(t *testing.T) {
	g, err := statemachine.Default()
	require.NoError(t, err)
	require.True(t, g.IsLegalForward(registry.StageSubmitted, registry.StageCategorizing))
	require.True(t, g.IsLegalForward(registry.StageOrganizing, registry.StageComplete))
	require.False(t, g.IsLegalForward(registry.StageSubmitted, registry.StageComplete))
}

func TestDefault_TerminalStagesAreMarked(t *testing.T) {
	g, err := statemachine.Default()
	require.NoError(t, err)
	require.True(t, g.Terminal(registry.StageComplete))
	require.True(t, g.Terminal(registry.StageFailed))
	require.True(t, g.Terminal(registry.StageCanceled))
	require.False(t, g.Terminal(registry.StageSubmitted))
}

func TestParse_MissingChainLinkFailsValidation(t *testing.T) {
	raw := []byte(`
submitted:
  next: []
  terminal: false
complete:
  next: []
  terminal: true
failed:
  next: []
  terminal: true
canceled:
  next: []
  terminal: true
`)
	_, err := statemachine.Parse(raw)
	require.Error(t, err)
}

func TestParse_NonTerminalCompleteFailsValidation(t *testing.T) {
	raw := []byte(`
submitted:
  next: [categorizing]
  terminal: false
categorizing:
  next: [categorized]
  terminal: false
categorized:
  next: [metadata_extracting]
  terminal: false
metadata_extracting:
  next: [metadata_extracted]
  terminal: false
metadata_extracted:
  next: [staging]
  terminal: false
staging:
  next: [staged]
  terminal: false
staged:
  next: [splitting]
  terminal: false
splitting:
  next: [split]
  terminal: false
split:
  next: [recombining]
  terminal: false
recombining:
  next: [recombined]
  terminal: false
recombined:
  next: [organizing]
  terminal: false
organizing:
  next: [complete]
  terminal: false
complete:
  next: []
  terminal: false
failed:
  next: []
  terminal: true
canceled:
  next: []
  terminal: true
`)
	_, err := statemachine.Parse(raw)
	require.Error(t, err)
}

func TestKnown(t *testing.T) {
	g, err := statemachine.Default()
	require.NoError(t, err)
	require.True(t, g.Known(registry.StageStaged))
	require.False(t, g.Known(registry.Stage("not-a-real-stage")))
}
