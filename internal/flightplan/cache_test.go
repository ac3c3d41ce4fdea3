package flightplan

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingMetadata struct {
	*MapMetadata
	calls int
	err   error
}

func (c *countingMetadata) Lookup(ctx context.Context, flightID string) (*FlightPlan, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return c.MapMetadata.Lookup(ctx, flightID)
}

func TestCachedMetadata(t *testing.T) {
	ctx := context.Background()
	source := &countingMetadata{MapMetadata: NewMapMetadata(&FlightPlan{FlightID: "A", Route: "EAST"})}
	c := NewCachedMetadata(source, nil)

	for i := 0; i < 3; i++ {
		fp, err := c.Lookup(ctx, "A")
		require.NoError(t, err)
		assert.Equal(t, "EAST", fp.Route)

		_, err = c.Lookup(ctx, "B")
		assert.ErrorIs(t, err, ErrPlanNotFound)
	}
	assert.Equal(t, 2, source.calls)

	stats := c.Stats()
	assert.Equal(t, 2, stats["entries"])
	assert.Equal(t, 4, stats["hits"])
	assert.Equal(t, 2, stats["misses"])

	c.Invalidate()
	_, err := c.Lookup(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, 3, source.calls)
}

func TestCachedMetadataDoesNotCacheFailures(t *testing.T) {
	source := &countingMetadata{MapMetadata: NewMapMetadata(), err: errors.New("database is locked")}
	c := NewCachedMetadata(source, nil)

	_, err := c.Lookup(context.Background(), "A")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrPlanNotFound)

	source.err = nil
	source.Put(&FlightPlan{FlightID: "A"})
	fp, err := c.Lookup(context.Background(), "A")
	require.NoError(t, err)
	assert.Equal(t, "A", fp.FlightID)
	assert.Equal(t, 2, source.calls)
}
