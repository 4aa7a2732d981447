package ptv

import (
	"math"
	"strconv"
)

// extractVehicle converts a run into a VehiclePosition. Runs without finite
// coordinates are dropped silently; per-record logging at this density would
// flood the logs.
//
// A bearing of zero is treated as "no bearing", not due north. The upstream
// feed reports zero for vehicles with no bearing fix, so the two cases are
// indistinguishable here.
func extractVehicle(run Run, routeType int) (VehiclePosition, bool) {
	pos := run.VehiclePosition
	if pos == nil || pos.Latitude == nil || pos.Longitude == nil {
		return VehiclePosition{}, false
	}
	lat, lng := *pos.Latitude, *pos.Longitude
	if !finite(lat) || !finite(lng) {
		return VehiclePosition{}, false
	}

	vehicleID := run.RunRef
	if vehicleID == "" {
		vehicleID = strconv.FormatInt(run.RunID, 10)
	}

	var heading *float64
	if pos.Bearing != nil && *pos.Bearing != 0 {
		b := *pos.Bearing
		heading = &b
	}

	return VehiclePosition{
		VehicleID:   vehicleID,
		RouteID:     strconv.Itoa(run.RouteID),
		RunID:       strconv.FormatInt(run.RunID, 10),
		Latitude:    lat,
		Longitude:   lng,
		Timestamp:   pos.DatetimeUTC,
		DirectionID: run.DirectionID,
		Heading:     heading,
		RouteType:   routeType,
	}, true
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
