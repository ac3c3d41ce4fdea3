package ingest

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yegors/flightdev/internal/trajectory"
)

const trajectoriesCSV = `flight_id,timestamp,latitude,longitude,altitude,groundspeed,track,callsign,icao24
AFR12,2024-03-01T10:00:01Z,44.0,1.0,34000,450,90,AFR12,39AB12
BAW4,1709287200,45.0,2.0,36000,,,BAW4,400AAA
AFR12,2024-03-01T10:00:00Z,44.0,0.99,34000,450,90,,
BAW4,1709287201.5,45.01,2.0,36000,,,,
`

func TestReadTrajectories(t *testing.T) {
	flights, err := ReadTrajectories(strings.NewReader(trajectoriesCSV))
	require.NoError(t, err)
	require.Len(t, flights, 2)

	afr := flights[0]
	assert.Equal(t, "AFR12", afr.ID())
	assert.Equal(t, "AFR12", afr.Callsign())
	assert.Equal(t, "39ab12", afr.Icao24())
	require.Equal(t, 2, afr.Len())
	// Rows are sorted by time within a flight
	assert.Equal(t, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), afr.Start())
	assert.True(t, afr.At(0).HasTrack)
	assert.Equal(t, 450.0, afr.At(0).GroundSpeed)

	baw := flights[1]
	assert.Equal(t, "BAW4", baw.ID())
	assert.False(t, baw.At(0).HasTrack)
	assert.Equal(t, time.Unix(1709287200, 0).UTC(), baw.Start())
	assert.Equal(t, 1500*time.Millisecond, baw.Duration())
}

func TestReadTrajectoriesErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"missing column", "flight_id,timestamp,latitude,longitude\nA,0,1,2\n"},
		{"bad timestamp", "flight_id,timestamp,latitude,longitude,altitude\nA,yesterday,1,2,3\n"},
		{"bad latitude", "flight_id,timestamp,latitude,longitude,altitude\nA,0,north,2,3\n"},
		{"missing altitude", "flight_id,timestamp,latitude,longitude,altitude\nA,0,1,2,\n"},
		{"empty id", "flight_id,timestamp,latitude,longitude,altitude\n,0,1,2,3\n"},
		{"out of range", "flight_id,timestamp,latitude,longitude,altitude\nA,0,91,2,3\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadTrajectories(strings.NewReader(tt.input))
			assert.Error(t, err)
		})
	}
}

func TestReadTrajectoriesMissingColumnIsTyped(t *testing.T) {
	_, err := ReadTrajectories(strings.NewReader("flight_id,timestamp\n"))
	assert.ErrorIs(t, err, ErrMissingColumn)

	_, err = ReadTrajectories(strings.NewReader("flight_id,timestamp,latitude,longitude,altitude\nA,0,91,2,3\n"))
	assert.ErrorIs(t, err, trajectory.ErrInvalidPoint)
}

func TestParseTimestamp(t *testing.T) {
	want := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	for _, s := range []string{"2024-03-01T10:00:00Z", "2024-03-01T11:00:00+01:00", "2024-03-01 10:00:00+00:00", "1709287200"} {
		got, err := ParseTimestamp(s)
		require.NoError(t, err, s)
		assert.True(t, want.Equal(got), s)
		assert.Equal(t, time.UTC, got.Location())
	}
}

func TestReadFilings(t *testing.T) {
	rows, err := ReadFilings(strings.NewReader("flight_id,icao24,route\nAFR12,39AB12,N0450F340 LACOU DCT BAMES\n,,skipped\n"))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "AFR12", rows[0].FlightID)
	assert.Equal(t, "39ab12", rows[0].Icao24)
	assert.Equal(t, "N0450F340 LACOU DCT BAMES", rows[0].Route)
}

func TestReadNavpoints(t *testing.T) {
	navpoints, err := ReadNavpoints(strings.NewReader("name,latitude,longitude\nlacou,44.5,1.2\nBAMES,45,2\n"))
	require.NoError(t, err)
	require.Len(t, navpoints, 2)
	assert.Equal(t, "LACOU", navpoints[0].Name)
	assert.Equal(t, 44.5, navpoints[0].Lat)

	_, err = ReadNavpoints(strings.NewReader("name,latitude,longitude\nLACOU,,1.2\n"))
	assert.Error(t, err)
}
