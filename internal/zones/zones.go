// Package zones corrects mislabeled route identifiers by geography. The PTV
// feed occasionally reports a neighbouring route's id for vehicles on shared
// track; a vehicle observed inside a zone's bounding box is assigned that
// zone's route id regardless of what the feed said.
package zones

import "log"

// BBox is an axis-aligned bounding box in degrees. All four edges are
// inclusive.
type BBox struct {
	MinLng, MinLat, MaxLng, MaxLat float64
}

// Contains reports whether the point lies inside the box, edges included.
func (b BBox) Contains(lng, lat float64) bool {
	return b.MinLng <= lng && lng <= b.MaxLng && b.MinLat <= lat && lat <= b.MaxLat
}

// Zone asserts the authoritative route id for one or more boxes.
type Zone struct {
	RouteID string
	Boxes   []BBox
}

// Table is an ordered sequence of zones. Overlaps are resolved by
// first match in declaration order; the order must be preserved exactly
// for compatibility with the historical data.
type Table []Zone

// Correct returns the authoritative route id for a position. The first zone
// containing the point wins; a point in no zone, or an empty input route id,
// passes through unchanged. Overrides are logged with the vehicle id.
func (t Table) Correct(lng, lat float64, routeID, vehicleID string) string {
	if routeID == "" {
		return routeID
	}
	for _, zone := range t {
		for _, box := range zone.Boxes {
			if !box.Contains(lng, lat) {
				continue
			}
			if routeID != zone.RouteID {
				log.Printf("overriding route for vehicle %s: route %s -> %s", vehicleID, routeID, zone.RouteID)
				return zone.RouteID
			}
			return routeID
		}
	}
	return routeID
}

// Default is the production correction table: tram corridors around
// Melbourne where the feed is known to mislabel routes. Declaration order
// is priority order.
var Default = Table{
	{
		// Route 77: Balaclava to East Coburg corridor.
		RouteID: "77",
		Boxes: []BBox{
			{MinLng: 144.9856, MinLat: -37.8770, MaxLng: 145.0050, MaxLat: -37.8560},
			{MinLng: 144.9600, MinLat: -37.8560, MaxLng: 144.9870, MaxLat: -37.8380},
		},
	},
	{
		// Route 58: West Coburg to Toorak via William St.
		RouteID: "58",
		Boxes: []BBox{
			{MinLng: 144.9390, MinLat: -37.7820, MaxLng: 144.9620, MaxLat: -37.7450},
		},
	},
	{
		// Route 82: Footscray to Moonee Ponds.
		RouteID: "82",
		Boxes: []BBox{
			{MinLng: 144.8850, MinLat: -37.8010, MaxLng: 144.9230, MaxLat: -37.7650},
		},
	},
}
