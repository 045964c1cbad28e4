package eventdata

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValueScanRoundTripManualItem(t *testing.T) {
	original := ForManualItem(ManualItem{
		TriggeredBy:         "operator",
		Reason:              "price correction",
		EnvironmentOverride: "sandbox",
		LiveSync:            true,
		Override:            true,
	})

	value, err := original.Value()
	require.NoError(t, err)

	var restored EventData
	require.NoError(t, restored.Scan(value))

	require.Equal(t, KindManualItem, restored.Kind)
	require.True(t, restored.LiveSync())
	require.True(t, restored.Override())
	require.Equal(t, "sandbox", restored.EnvironmentOverride())
	require.True(t, restored.IsManual())
}

func TestValueScanRoundTripPolling(t *testing.T) {
	original := ForPolling(Polling{WatermarkBefore: "2026-01-01T00:00:00Z", ModifiedAt: "2026-01-02T00:00:00Z"})

	value, err := original.Value()
	require.NoError(t, err)

	var restored EventData
	require.NoError(t, restored.Scan(value))

	require.Equal(t, KindPolling, restored.Kind)
	require.True(t, restored.LiveSync(), "non-manual provenance always implies a live sync")
	require.False(t, restored.Override())
	require.Empty(t, restored.EnvironmentOverride())
	require.False(t, restored.IsManual())
}

func TestScanHandlesNilValue(t *testing.T) {
	var e EventData
	require.NoError(t, e.Scan(nil))
	require.Equal(t, Kind(""), e.Kind)
}

func TestManualItemLiveSyncFalseSkipsDispatch(t *testing.T) {
	e := ForManualItem(ManualItem{TriggeredBy: "operator", LiveSync: false})
	require.False(t, e.LiveSync())
}
