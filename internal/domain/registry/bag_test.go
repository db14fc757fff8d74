package registry_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/yungbote/neurobridge-backend/internal/domain/registry"
)

func TestDecodeBag_EmptyIsEmptyMap(t *testing.T) {
	m, err := registry.DecodeBag(nil)
	require.NoError(t, err)
	require.Empty(t, m)
}

func TestMergeBag_OverlaysKeysLeavingOthersIntact(t *testing.T) {
	base := datatypes.JSON([]byte(`{"a":"1","b":"2"}`))
	merged, err := registry.MergeBag(base, map[string]any{"b": "3", "c": "4"})
	require.NoError(t, err)

	m, err := registry.DecodeBag(merged)
	require.NoError(t, err)
	require.Equal(t, "1", m["a"])
	require.Equal(t, "3", m["b"])
	require.Equal(t, "4", m["c"])
}

func TestMergeBag_NilPatchIsANoOp(t *testing.T) {
	base := datatypes.JSON([]byte(`{"a":"1"}`))
	merged, err := registry.MergeBag(base, nil)
	require.NoError(t, err)

	m, err := registry.DecodeBag(merged)
	require.NoError(t, err)
	require.Equal(t, "1", m["a"])
}

func TestStage_Terminal(t *testing.T) {
	require.True(t, registry.StageComplete.Terminal())
	require.True(t, registry.StageFailed.Terminal())
	require.True(t, registry.StageCanceled.Terminal())
	require.False(t, registry.StageSubmitted.Terminal())
	require.False(t, registry.StageCategorizing.Terminal())
}
