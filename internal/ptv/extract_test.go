package ptv

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func floatPtr(f float64) *float64 { return &f }
func intPtr(i int) *int           { return &i }

func validRun() Run {
	return Run{
		RunID:       952031,
		RunRef:      "952031",
		RouteID:     3,
		DirectionID: intPtr(1),
		VehiclePosition: &wirePosition{
			Latitude:    floatPtr(-37.8136),
			Longitude:   floatPtr(144.9631),
			Bearing:     floatPtr(180.5),
			DatetimeUTC: "2025-01-16T10:30:00Z",
		},
	}
}

func TestExtractVehicle(t *testing.T) {
	v, ok := extractVehicle(validRun(), RouteTypeTrain)
	require.True(t, ok)

	assert.Equal(t, "952031", v.VehicleID)
	assert.Equal(t, "3", v.RouteID)
	assert.Equal(t, "952031", v.RunID)
	assert.Equal(t, -37.8136, v.Latitude)
	assert.Equal(t, 144.9631, v.Longitude)
	assert.Equal(t, "2025-01-16T10:30:00Z", v.Timestamp)
	require.NotNil(t, v.DirectionID)
	assert.Equal(t, 1, *v.DirectionID)
	require.NotNil(t, v.Heading)
	assert.Equal(t, 180.5, *v.Heading)
	assert.Equal(t, RouteTypeTrain, v.RouteType)
}

func TestExtractVehicleFallsBackToRunID(t *testing.T) {
	run := validRun()
	run.RunRef = ""
	run.RunID = 78

	v, ok := extractVehicle(run, RouteTypeTram)
	require.True(t, ok)
	assert.Equal(t, "78", v.VehicleID)
}

func TestExtractVehicleMissingCoordinates(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Run)
	}{
		{"nil position", func(r *Run) { r.VehiclePosition = nil }},
		{"nil latitude", func(r *Run) { r.VehiclePosition.Latitude = nil }},
		{"nil longitude", func(r *Run) { r.VehiclePosition.Longitude = nil }},
		{"NaN latitude", func(r *Run) { r.VehiclePosition.Latitude = floatPtr(math.NaN()) }},
		{"Inf longitude", func(r *Run) { r.VehiclePosition.Longitude = floatPtr(math.Inf(1)) }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			run := validRun()
			tc.mutate(&run)
			_, ok := extractVehicle(run, RouteTypeTrain)
			assert.False(t, ok)
		})
	}
}

func TestExtractVehicleZeroBearingMeansNoHeading(t *testing.T) {
	run := validRun()
	run.VehiclePosition.Bearing = floatPtr(0)

	v, ok := extractVehicle(run, RouteTypeTrain)
	require.True(t, ok)
	assert.Nil(t, v.Heading)

	run.VehiclePosition.Bearing = nil
	v, ok = extractVehicle(run, RouteTypeTrain)
	require.True(t, ok)
	assert.Nil(t, v.Heading)
}
