package ingest

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const snapshots = `{"now": 1709287200.0, "messages": 10, "aircraft": [
  {"hex": "39AB12", "flight": "AFR12   ", "alt_baro": 34000, "gs": 450, "track": 90.5, "lat": 44.0, "lon": 1.0, "seen_pos": 0.5},
  {"hex": "400aaa", "alt_baro": "ground", "lat": 51.4, "lon": -0.4},
  {"hex": "400bbb", "alt_baro": 12000}
]}
{"now": 1709287201.0, "aircraft": [
  {"hex": "39ab12", "alt_baro": "34025", "lat": 44.0, "lon": 1.01, "seen_pos": 0.5},
  {"hex": "39ab12", "alt_baro": 34025, "lat": 44.0, "lon": 1.01, "seen_pos": 0.5}
]}
{"now": 1709288401.0, "aircraft": [
  {"hex": "39ab12", "flight": "AFR12", "alt_baro": 35000, "lat": 44.5, "lon": 3.0}
]}
`

func TestFlexibleField(t *testing.T) {
	var f FlexibleField
	require.NoError(t, f.UnmarshalJSON([]byte(`"ground"`)))
	assert.True(t, f.IsGround())
	_, ok := f.Float64()
	assert.False(t, ok)

	require.NoError(t, f.UnmarshalJSON([]byte(`"1200"`)))
	v, ok := f.Float64()
	assert.True(t, ok)
	assert.Equal(t, 1200.0, v)

	require.NoError(t, f.UnmarshalJSON([]byte(`null`)))
	_, ok = f.Float64()
	assert.False(t, ok)

	assert.Error(t, f.UnmarshalJSON([]byte(`{}`)))
}

func TestTrackBuilderSplitsOnGap(t *testing.T) {
	b := NewTrackBuilder(10*time.Minute, 0)
	count := 0
	err := DecodeSnapshots(strings.NewReader(snapshots), func(s Snapshot) error {
		count++
		b.Add(s)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	flights, err := b.Flights()
	require.NoError(t, err)
	require.Len(t, flights, 2)

	first := flights[0]
	assert.Equal(t, "AFR12_1709287199", first.ID())
	assert.Equal(t, "39ab12", first.Icao24())
	assert.Equal(t, "AFR12", first.Callsign())
	// The duplicate timestamp is dropped
	require.Equal(t, 2, first.Len())
	assert.Equal(t, time.Unix(1709287199, 500000000).UTC(), first.Start())
	assert.True(t, first.At(0).HasTrack)
	assert.False(t, first.At(1).HasTrack)
	assert.Equal(t, 34025.0, first.At(1).Altitude)

	assert.Equal(t, "AFR12_1709288401", flights[1].ID())
	assert.Equal(t, 1, flights[1].Len())
}

func TestTrackBuilderMinAltitude(t *testing.T) {
	b := NewTrackBuilder(10*time.Minute, 34010)
	require.NoError(t, DecodeSnapshots(strings.NewReader(snapshots), func(s Snapshot) error {
		b.Add(s)
		return nil
	}))
	flights, err := b.Flights()
	require.NoError(t, err)
	require.Len(t, flights, 2)
	assert.Equal(t, "AFR12_1709287200", flights[0].ID())
}

func TestDecodeSnapshotsInvalid(t *testing.T) {
	err := DecodeSnapshots(strings.NewReader(`{"now": "x"}`), func(Snapshot) error { return nil })
	assert.Error(t, err)
}
