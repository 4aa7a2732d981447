package store

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ptv-collector/internal/ptv"
)

func TestBuildBulkInsert(t *testing.T) {
	dir := 1
	heading := 180.5
	vehicles := []ptv.VehiclePosition{
		{
			VehicleID: "v-1", RouteID: "3", RunID: "10",
			Latitude: -37.81, Longitude: 144.96,
			Timestamp: "2025-01-16T10:30:00Z",
			DirectionID: &dir, Heading: &heading, RouteType: 0,
		},
		{
			VehicleID: "v-2", RouteID: "77", RunID: "20",
			Latitude: -37.86, Longitude: 144.99,
			Timestamp: "2025-01-16T10:30:05Z",
			RouteType: 1,
		},
	}

	query, args := buildBulkInsert(vehicles)

	assert.True(t, strings.HasPrefix(query, "INSERT INTO vehicle_locations"))
	assert.Contains(t, query, "($1, $2, $3, $4, $5, $6, $7, $8, $9)")
	assert.Contains(t, query, "($10, $11, $12, $13, $14, $15, $16, $17, $18)")
	assert.True(t, strings.HasSuffix(query, `ON CONFLICT (vehicle_id, "timestamp") DO NOTHING`))

	require.Len(t, args, 18)
	assert.Equal(t, "v-1", args[0])
	assert.Equal(t, 1, args[6])
	assert.Equal(t, 180.5, args[7])

	// Optional fields of the second row become SQL NULLs.
	assert.Equal(t, "v-2", args[9])
	assert.Nil(t, args[15])
	assert.Nil(t, args[16])
	assert.Equal(t, 1, args[17])
}

func TestBuildBulkInsertSingleRow(t *testing.T) {
	query, args := buildBulkInsert([]ptv.VehiclePosition{{VehicleID: "v", Timestamp: "t"}})

	require.Len(t, args, 9)
	assert.Equal(t, 1, strings.Count(query, "($"), "exactly one placeholder group")
}
